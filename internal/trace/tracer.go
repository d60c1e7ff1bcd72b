package trace

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Tracer receives lowering events. Implementations must be goroutine-safe:
// the batch driver lowers scenario files in parallel and every lane emits
// into the same tracer.
type Tracer interface {
	Emit(ev *Event)
	Flush() error
	Close() error
	Level() Level
	Enabled() bool
}

// Store selects where emitted events end up.
type Store uint8

const (
	StoreStream Store = iota + 1 // written to the output as they happen
	StoreRing                    // kept in memory for a post-mortem dump
	StoreBoth                    // both at once
)

func (s Store) String() string {
	switch s {
	case StoreStream:
		return "stream"
	case StoreRing:
		return "ring"
	case StoreBoth:
		return "both"
	default:
		return "unknown"
	}
}

// ParseStore converts a --trace-mode flag value to a Store.
func ParseStore(s string) (Store, error) {
	switch strings.ToLower(s) {
	case "stream":
		return StoreStream, nil
	case "ring":
		return StoreRing, nil
	case "both":
		return StoreBoth, nil
	default:
		return 0, fmt.Errorf("invalid storage mode: %q (expected: stream|ring|both)", s)
	}
}

// Config describes the tracer a lowering run wants.
type Config struct {
	Level      Level
	Mode       Store
	Format     Format        // FormatAuto sniffs the output path
	Output     io.Writer     // takes precedence over OutputPath
	OutputPath string        // "-" or empty means stderr
	RingSize   int           // events kept for a dump (default 4096)
	Heartbeat  time.Duration // 0 disables the liveness pulse
}

// New builds a tracer for a lowering run. LevelOff yields the nop tracer so
// the hot path pays nothing.
func New(cfg Config) (Tracer, error) {
	if cfg.Level == LevelOff {
		return Nop, nil
	}
	if cfg.RingSize <= 0 {
		cfg.RingSize = 4096
	}

	var sinks []Tracer
	if cfg.Mode == StoreStream || cfg.Mode == StoreBoth {
		w := cfg.Output
		if w == nil {
			var err error
			if w, err = openPath(cfg.OutputPath); err != nil {
				return nil, err
			}
		}
		sinks = append(sinks, NewStreamTracer(w, cfg.Level, resolveFormat(cfg)))
	}
	if cfg.Mode == StoreRing || cfg.Mode == StoreBoth {
		sinks = append(sinks, NewRingTracer(cfg.RingSize, cfg.Level))
	}
	switch len(sinks) {
	case 0:
		return nil, fmt.Errorf("unknown storage mode: %v", cfg.Mode)
	case 1:
		return sinks[0], nil
	default:
		return tee{level: cfg.Level, out: sinks}, nil
	}
}

// resolveFormat picks the concrete format, sniffing the path extension when
// the config leaves it on auto.
func resolveFormat(cfg Config) Format {
	if cfg.Format != FormatAuto {
		return cfg.Format
	}
	switch {
	case strings.HasSuffix(cfg.OutputPath, ".ndjson"):
		return FormatNDJSON
	case strings.HasSuffix(cfg.OutputPath, ".json"):
		return FormatChrome
	default:
		return FormatText
	}
}

func openPath(path string) (io.Writer, error) {
	if path == "" || path == "-" {
		return os.Stderr, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace output: %w", err)
	}
	return f, nil
}

// tee fans one event out to several stores. "both" mode streams a live log
// while the ring keeps a dump window.
type tee struct {
	level Level
	out   []Tracer
}

func (t tee) Emit(ev *Event) {
	for _, tr := range t.out {
		tr.Emit(ev)
	}
}

func (t tee) Flush() error { return t.each(Tracer.Flush) }
func (t tee) Close() error { return t.each(Tracer.Close) }

func (t tee) each(op func(Tracer) error) error {
	var first error
	for _, tr := range t.out {
		if err := op(tr); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (t tee) Level() Level  { return t.level }
func (t tee) Enabled() bool { return t.level > LevelOff }

// nopTracer drops everything. It is what disabled tracing costs.
type nopTracer struct{}

func (nopTracer) Emit(*Event)   {}
func (nopTracer) Flush() error  { return nil }
func (nopTracer) Close() error  { return nil }
func (nopTracer) Level() Level  { return LevelOff }
func (nopTracer) Enabled() bool { return false }

// Nop is the shared disabled tracer.
var Nop Tracer = nopTracer{}

type ctxKey struct{}

// WithTracer threads a tracer through the driver's context.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	return context.WithValue(ctx, ctxKey{}, t)
}

// FromContext returns the context's tracer, or Nop when none was attached.
func FromContext(ctx context.Context) Tracer {
	if ctx == nil {
		return Nop
	}
	if t, ok := ctx.Value(ctxKey{}).(Tracer); ok {
		return t
	}
	return Nop
}
