package trace

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestParseStore(t *testing.T) {
	cases := []struct {
		in      string
		want    Store
		wantErr bool
	}{
		{"stream", StoreStream, false},
		{"RING", StoreRing, false},
		{"both", StoreBoth, false},
		{"disk", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseStore(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseStore(%q) expected an error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseStore(%q) failed: %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParseStore(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestRingWraparound(t *testing.T) {
	ring := NewRingTracer(4, LevelDebug)
	names := []string{"a", "b", "c", "d", "e", "f"}
	for _, n := range names {
		Point(ring, ScopeDriver, n, "", Link{})
	}

	snap := ring.Snapshot()
	if len(snap) != 4 {
		t.Fatalf("Snapshot returned %d events, want 4", len(snap))
	}
	for i, want := range []string{"c", "d", "e", "f"} {
		if snap[i].Name != want {
			t.Errorf("snap[%d].Name = %q, want %q", i, snap[i].Name, want)
		}
	}
}

func TestLevelFiltersScopes(t *testing.T) {
	var buf bytes.Buffer
	st := NewStreamTracer(&buf, LevelPhase, FormatText)

	Point(st, ScopeCall, "call @f", "", Link{})
	if buf.Len() != 0 {
		t.Errorf("LevelPhase wrote a call-scope event: %q", buf.String())
	}
	Point(st, ScopeModule, "lower calls.toml", "", Link{})
	if !strings.Contains(buf.String(), "lower calls.toml") {
		t.Errorf("LevelPhase dropped a module-scope event, got %q", buf.String())
	}
}

func TestSpanLinking(t *testing.T) {
	ring := NewRingTracer(16, LevelDebug)

	root := Begin(ring, ScopeModule, "lower calls.toml", Link{Lane: 3})
	child := Begin(ring, ScopeFunc, "define f", root.Link())
	child.End("")
	root.End("2 funcs")

	snap := ring.Snapshot()
	if len(snap) != 4 {
		t.Fatalf("expected 4 events, got %d", len(snap))
	}
	if snap[1].ParentID != root.ID() {
		t.Errorf("child ParentID = %d, want root %d", snap[1].ParentID, root.ID())
	}
	for i, ev := range snap {
		if ev.Lane != 3 {
			t.Errorf("snap[%d].Lane = %d, want 3 (inherited through Link)", i, ev.Lane)
		}
	}
	if snap[3].Detail != "2 funcs" {
		t.Errorf("root end Detail = %q, want %q", snap[3].Detail, "2 funcs")
	}
}

func TestMutedSpans(t *testing.T) {
	s := Begin(Nop, ScopeFunc, "define f", Link{Lane: 7})
	if s.ID() != 0 {
		t.Errorf("muted span got ID %d", s.ID())
	}
	if s.End("") != 0 {
		t.Error("muted span reported a duration")
	}
	if (s.Link() != Link{}) {
		t.Errorf("muted span Link = %+v, want zero", s.Link())
	}

	var nilSpan *Span
	nilSpan.End("") // must not panic
}

func TestNDJSONCarriesLane(t *testing.T) {
	ev := Event{Kind: KindPoint, Scope: ScopeCall, Lane: 5, Name: "call @printf"}
	out := string(FormatEvent(&ev, FormatNDJSON))
	if !strings.Contains(out, `"lane":5`) {
		t.Errorf("ndjson missing lane: %s", out)
	}
	if !strings.Contains(out, `"name":"call @printf"`) {
		t.Errorf("ndjson missing name: %s", out)
	}
}

func TestChromeLaneIsTrack(t *testing.T) {
	ev := Event{Kind: KindSpanBegin, Scope: ScopeModule, Lane: 5, Name: "lower a.toml"}
	out := string(FormatEvent(&ev, FormatChrome))
	if !strings.Contains(out, `"tid":5`) {
		t.Errorf("chrome event not on lane track: %s", out)
	}
	if !strings.Contains(out, `"ph":"B"`) {
		t.Errorf("span begin should be phase B: %s", out)
	}
}

func TestNewBothMode(t *testing.T) {
	var buf bytes.Buffer
	tr, err := New(Config{Level: LevelDebug, Mode: StoreBoth, Output: &buf, Format: FormatText})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	Point(tr, ScopeDriver, "batch", "", Link{})
	if !strings.Contains(buf.String(), "batch") {
		t.Error("both mode did not stream the event")
	}
	if err := tr.Flush(); err != nil {
		t.Errorf("Flush failed: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestNewOffIsNop(t *testing.T) {
	tr, err := New(Config{Level: LevelOff})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if tr.Enabled() {
		t.Error("LevelOff tracer is enabled")
	}
}

func TestHeartbeat(t *testing.T) {
	if StartHeartbeat(Nop, time.Millisecond) != nil {
		t.Error("heartbeat started on a disabled tracer")
	}
	var none *Heartbeat
	none.Stop() // must not panic

	ring := NewRingTracer(64, LevelPhase)
	h := StartHeartbeat(ring, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	h.Stop()
	h.Stop() // idempotent

	beats := 0
	for _, ev := range ring.Snapshot() {
		if ev.Kind == KindHeartbeat {
			beats++
		}
	}
	if beats == 0 {
		t.Error("no heartbeat events recorded")
	}
}
