package driver

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const addScenario = `
schema = 1
target = "x86_64-linux-gnu"

[options]
exceptions = false

[[func]]
name = "add"
ret = "i32"

[[func.param]]
name = "a"
type = "i32"

[[func.param]]
name = "b"
type = "i32"

[[func.step]]
op = "call"
callee = "add"
name = "r"
args = ["a", "b"]

[[func.step]]
op = "return"
args = ["r"]
`

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestDecodeScenario(t *testing.T) {
	sc, err := DecodeScenario("add.toml", []byte(addScenario))
	if err != nil {
		t.Fatalf("DecodeScenario failed: %v", err)
	}
	if sc.Target != "x86_64-linux-gnu" {
		t.Errorf("Expected target x86_64-linux-gnu, got %q", sc.Target)
	}
	if len(sc.Funcs) != 1 {
		t.Fatalf("Expected 1 func, got %d", len(sc.Funcs))
	}
	fn := sc.Funcs[0]
	if fn.Name != "add" || fn.Ret != "i32" {
		t.Errorf("Expected add returning i32, got %q returning %q", fn.Name, fn.Ret)
	}
	if len(fn.Params) != 2 || fn.Params[0].Name != "a" || fn.Params[1].Type != "i32" {
		t.Errorf("Unexpected params: %+v", fn.Params)
	}
	if len(fn.Body) != 2 {
		t.Fatalf("Expected 2 steps, got %d", len(fn.Body))
	}
	if fn.Body[0].Op != "call" || fn.Body[0].Callee != "add" || len(fn.Body[0].Args) != 2 {
		t.Errorf("Unexpected call step: %+v", fn.Body[0])
	}
	if fn.Body[1].Op != "return" || fn.Body[1].Args[0] != "r" {
		t.Errorf("Unexpected return step: %+v", fn.Body[1])
	}
}

func TestDecodeScenarioRecords(t *testing.T) {
	src := `
[[record]]
name = "Pair"

[[record.field]]
name = "a"
type = "i32"

[[record.field]]
name = "b"
type = "i32"

[[func]]
name = "mk"
ret = "Pair"
`
	sc, err := DecodeScenario("pair.toml", []byte(src))
	if err != nil {
		t.Fatalf("DecodeScenario failed: %v", err)
	}
	if len(sc.Records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(sc.Records))
	}
	rec := sc.Records[0]
	if rec.Name != "Pair" || len(rec.Fields) != 2 {
		t.Errorf("Unexpected record: %+v", rec)
	}
	if rec.Fields[1].Name != "b" || rec.Fields[1].Type != "i32" {
		t.Errorf("Unexpected field: %+v", rec.Fields[1])
	}
}

func TestNormalizeSymbolNFC(t *testing.T) {
	// "é" as 'e' plus a combining acute accent folds to the precomposed form.
	decomposed := "café"
	composed := "café"
	if got := NormalizeSymbol(decomposed); got != composed {
		t.Errorf("Expected %q, got %q", composed, got)
	}
	if got := NormalizeSymbol(composed); got != composed {
		t.Errorf("Expected NFC input to pass through, got %q", got)
	}
}

func TestDecodeScenarioNormalizesNames(t *testing.T) {
	src := "[[func]]\nname = \"café\"\n"
	sc, err := DecodeScenario("nfc.toml", []byte(src))
	if err != nil {
		t.Fatalf("DecodeScenario failed: %v", err)
	}
	if sc.Funcs[0].Name != "café" {
		t.Errorf("Expected NFC-normalized name, got %q", sc.Funcs[0].Name)
	}
}

func TestDecodeScenarioErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"no funcs", `target = "x"`, "declares no functions"},
		{"schema mismatch", "schema = 9\n[[func]]\nname = \"f\"\n", "unsupported scenario schema"},
		{"duplicate func", "[[func]]\nname = \"f\"\n[[func]]\nname = \"f\"\n", "duplicate func"},
		{"unknown kind", "[[func]]\nname = \"f\"\nkind = \"closure\"\n", "unknown kind"},
		{"method without parent", "[[func]]\nname = \"f\"\nkind = \"method\"\n", "needs a parent record"},
		{"unknown parent", "[[func]]\nname = \"f\"\nkind = \"method\"\nparent = \"Gone\"\n", "unknown parent record"},
		{"bad object size", "[[func]]\nname = \"f\"\n[[func.param]]\ntype = \"i32\"\nobject_size = \"7\"\n", "object_size must be 0..3"},
		{"bad variant", "[[func]]\nname = \"f\"\nkind = \"ctor\"\nparent = \"R\"\nvariants = [\"partial\"]\n[[record]]\nname = \"R\"\n", "unknown structor variant"},
		{"noproto with params", "[[func]]\nname = \"f\"\nno_proto = true\n[[func.param]]\ntype = \"i32\"\n", "no_proto excludes params"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeScenario(tc.name+".toml", []byte(tc.src))
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadScenarioFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "add.toml", addScenario)
	sc, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("LoadScenario failed: %v", err)
	}
	if len(sc.Funcs) != 1 || sc.Funcs[0].Name != "add" {
		t.Errorf("Unexpected scenario: %+v", sc.Funcs)
	}
	if _, err := LoadScenario(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

func TestListScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "b.toml", addScenario)
	writeScenario(t, dir, "a.toml", addScenario)
	writeScenario(t, dir, "notes.txt", "not a scenario")
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	writeScenario(t, sub, "c.toml", addScenario)

	files, err := ListScenarioFiles([]string{dir, filepath.Join(dir, "a.toml")})
	if err != nil {
		t.Fatalf("ListScenarioFiles failed: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("Expected 3 files (deduped), got %d: %v", len(files), files)
	}
	for i := 1; i < len(files); i++ {
		if files[i-1] >= files[i] {
			t.Errorf("Expected sorted order, got %v", files)
		}
	}
	if _, err := ListScenarioFiles([]string{filepath.Join(dir, "gone")}); err == nil {
		t.Error("Expected an error for a missing argument")
	}
}
