// Package driver loads lowering scenarios from TOML, runs them through a
// lowering context, and caches the printed KIR on disk. Scenarios are
// declarative data: type and declaration tables plus flat step lists, not a
// source language.
package driver

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/unicode/norm"
)

// Scenario is one decoded lowering scenario.
type Scenario struct {
	Schema  int
	Target  string
	Options ScenarioOptions
	Records []ScenarioRecord
	Funcs   []ScenarioFunc
}

// ScenarioOptions mirror the lowering context options.
type ScenarioOptions struct {
	Exceptions       bool   `toml:"exceptions"`
	Personality      string `toml:"personality"`
	O0               bool   `toml:"o0"`
	NullChecks       bool   `toml:"null_checks"`
	Device           bool   `toml:"device"`
	Dialect          int    `toml:"dialect"`
	UniformWorkGroup bool   `toml:"uniform_work_group"`
}

// ScenarioRecord declares one nominal record type.
type ScenarioRecord struct {
	Name         string          `toml:"name"`
	VirtualBases bool            `toml:"virtual_bases"`
	Fields       []ScenarioField `toml:"field"`
}

// ScenarioField is one field of a record declaration.
type ScenarioField struct {
	Name string `toml:"name"`
	Type string `toml:"type"`
}

// ScenarioParam is one formal parameter of a function declaration.
type ScenarioParam struct {
	Name       string `toml:"name"`
	Type       string `toml:"type"`
	NonNull    bool   `toml:"non_null"`
	NoEscape   bool   `toml:"no_escape"`
	ObjectSize string `toml:"object_size"` // "0".."3", or "" for none
	Dynamic    bool   `toml:"dynamic"`
}

// ScenarioFunc declares one function, optionally with a body.
type ScenarioFunc struct {
	Name     string          `toml:"name"`
	Kind     string          `toml:"kind"`   // free|method|ctor|dtor; "" = free
	Parent   string          `toml:"parent"` // record name for methods/structors
	Ret      string          `toml:"ret"`    // "" = void
	Params   []ScenarioParam `toml:"param"`
	Variadic bool            `toml:"variadic"`
	NoProto  bool            `toml:"no_proto"`
	Attrs    []string        `toml:"attrs"`
	Except   string          `toml:"except"` // none|nothrow|throws|unresolved
	CC       string          `toml:"cc"`
	Virtual  bool            `toml:"virtual"`
	Slot     uint32          `toml:"slot"`
	Inherits bool            `toml:"inherits"`
	VirtBase bool            `toml:"constructs_virtual_base"`
	Variants []string        `toml:"variants"`       // structors: declared variants
	Variant  string          `toml:"define_variant"` // structors: variant the body defines
	Body     []ScenarioStep  `toml:"step"`
}

// ScenarioStep is one flat body step. Op selects the shape; the remaining
// fields are read per op.
type ScenarioStep struct {
	Op      string   `toml:"op"`
	Name    string   `toml:"name"`
	Type    string   `toml:"type"`
	Value   int64    `toml:"value"`
	Float   float64  `toml:"float"`
	Callee  string   `toml:"callee"`
	Variant string   `toml:"variant"`
	Virtual bool     `toml:"virtual"`
	Args    []string `toml:"args"`
	List    string   `toml:"list"`
}

type scenarioFile struct {
	Schema  int              `toml:"schema"`
	Target  string           `toml:"target"`
	Options ScenarioOptions  `toml:"options"`
	Records []ScenarioRecord `toml:"record"`
	Funcs   []ScenarioFunc   `toml:"func"`
}

// ScenarioSchemaVersion is the scenario format this build reads.
const ScenarioSchemaVersion = 1

var (
	// ErrSchemaVersion indicates a scenario written for another format version.
	ErrSchemaVersion = errors.New("unsupported scenario schema")
	// ErrNoFuncs indicates a scenario without a single declaration.
	ErrNoFuncs = errors.New("scenario declares no functions")
)

// LoadScenario reads and validates one scenario file. Record and function
// names are NFC-normalized so lookups and emitted symbols agree no matter
// how the file was encoded.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeScenario(path, data)
}

// DecodeScenario parses scenario TOML already held in memory. path is used
// for error messages only.
func DecodeScenario(path string, data []byte) (*Scenario, error) {
	var cfg scenarioFile
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if meta.IsDefined("schema") && cfg.Schema != ScenarioSchemaVersion {
		return nil, fmt.Errorf("%s: %w: got %d, want %d", path, ErrSchemaVersion, cfg.Schema, ScenarioSchemaVersion)
	}
	sc := &Scenario{
		Schema:  ScenarioSchemaVersion,
		Target:  cfg.Target,
		Options: cfg.Options,
		Records: cfg.Records,
		Funcs:   cfg.Funcs,
	}
	normalizeScenario(sc)
	if err := validateScenario(path, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

// NormalizeSymbol folds a scenario symbol name to NFC.
func NormalizeSymbol(name string) string {
	return norm.NFC.String(name)
}

func normalizeScenario(sc *Scenario) {
	for i := range sc.Records {
		sc.Records[i].Name = NormalizeSymbol(sc.Records[i].Name)
		for j := range sc.Records[i].Fields {
			sc.Records[i].Fields[j].Name = NormalizeSymbol(sc.Records[i].Fields[j].Name)
			sc.Records[i].Fields[j].Type = NormalizeSymbol(sc.Records[i].Fields[j].Type)
		}
	}
	for i := range sc.Funcs {
		fn := &sc.Funcs[i]
		fn.Name = NormalizeSymbol(fn.Name)
		fn.Parent = NormalizeSymbol(fn.Parent)
		fn.Ret = NormalizeSymbol(fn.Ret)
		for j := range fn.Params {
			fn.Params[j].Name = NormalizeSymbol(fn.Params[j].Name)
			fn.Params[j].Type = NormalizeSymbol(fn.Params[j].Type)
		}
		for j := range fn.Body {
			st := &fn.Body[j]
			st.Name = NormalizeSymbol(st.Name)
			st.Type = NormalizeSymbol(st.Type)
			st.Callee = NormalizeSymbol(st.Callee)
			st.List = NormalizeSymbol(st.List)
			for k := range st.Args {
				st.Args[k] = NormalizeSymbol(st.Args[k])
			}
		}
	}
}

func validateScenario(path string, sc *Scenario) error {
	if len(sc.Funcs) == 0 {
		return fmt.Errorf("%s: %w", path, ErrNoFuncs)
	}
	records := make(map[string]bool, len(sc.Records))
	for _, r := range sc.Records {
		if r.Name == "" {
			return fmt.Errorf("%s: record without a name", path)
		}
		if records[r.Name] {
			return fmt.Errorf("%s: duplicate record %q", path, r.Name)
		}
		records[r.Name] = true
	}
	funcs := make(map[string]bool, len(sc.Funcs))
	for i := range sc.Funcs {
		fn := &sc.Funcs[i]
		if fn.Name == "" {
			return fmt.Errorf("%s: func without a name", path)
		}
		if funcs[fn.Name] {
			return fmt.Errorf("%s: duplicate func %q", path, fn.Name)
		}
		funcs[fn.Name] = true
		switch fn.Kind {
		case "", "free", "method", "ctor", "dtor":
		default:
			return fmt.Errorf("%s: func %q: unknown kind %q", path, fn.Name, fn.Kind)
		}
		if fn.Kind == "method" || fn.Kind == "ctor" || fn.Kind == "dtor" {
			if fn.Parent == "" {
				return fmt.Errorf("%s: func %q: kind %q needs a parent record", path, fn.Name, fn.Kind)
			}
			if !records[fn.Parent] {
				return fmt.Errorf("%s: func %q: unknown parent record %q", path, fn.Name, fn.Parent)
			}
		}
		for _, v := range fn.Variants {
			switch v {
			case "complete", "base", "deleting":
			default:
				return fmt.Errorf("%s: func %q: unknown structor variant %q", path, fn.Name, v)
			}
		}
		switch fn.Variant {
		case "", "complete", "base", "deleting":
		default:
			return fmt.Errorf("%s: func %q: unknown define_variant %q", path, fn.Name, fn.Variant)
		}
		for _, p := range fn.Params {
			switch p.ObjectSize {
			case "", "0", "1", "2", "3":
			default:
				return fmt.Errorf("%s: func %q: object_size must be 0..3, got %q", path, fn.Name, p.ObjectSize)
			}
		}
		if fn.NoProto && (len(fn.Params) > 0 || fn.Variadic) {
			return fmt.Errorf("%s: func %q: no_proto excludes params and variadic", path, fn.Name)
		}
	}
	return nil
}

// FuncNames lists the scenario's declared symbols in declaration order.
func (sc *Scenario) FuncNames() []string {
	out := make([]string, len(sc.Funcs))
	for i := range sc.Funcs {
		out[i] = sc.Funcs[i].Name
	}
	return out
}

// SortedRecordNames lists record names in lexical order, for stable output.
func (sc *Scenario) SortedRecordNames() []string {
	out := make([]string, len(sc.Records))
	for i := range sc.Records {
		out[i] = sc.Records[i].Name
	}
	sort.Strings(out)
	return out
}

func splitPointer(spec string) (elem string, depth int) {
	for strings.HasPrefix(spec, "*") {
		spec = spec[1:]
		depth++
	}
	return spec, depth
}
