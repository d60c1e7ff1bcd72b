package observ

import "time"

// Stopwatch measures one phase of a scenario lowering (load, lower, print,
// cache traffic). Obtained from Timer.Start, closed with Stop.
type Stopwatch struct {
	name  string
	start time.Time
	dur   time.Duration
	note  string
}

// Stop freezes the stopwatch and records an optional note. A second Stop
// overwrites the first measurement; callers don't do that.
func (s *Stopwatch) Stop(note string) {
	if s == nil {
		return
	}
	s.dur = time.Since(s.start)
	s.note = note
}

// Timer collects the phases of one file's lowering in the order they ran.
// Not goroutine-safe; each lane owns its own Timer.
type Timer struct {
	phases []*Stopwatch
}

// NewTimer creates an empty Timer.
func NewTimer() *Timer { return &Timer{phases: make([]*Stopwatch, 0, 8)} }

// Start opens a new phase.
func (t *Timer) Start(name string) *Stopwatch {
	s := &Stopwatch{name: name, start: time.Now()}
	t.phases = append(t.phases, s)
	return s
}

// PhaseReport представляет сжатую информацию об одной фазе.
type PhaseReport struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
	Note       string  `json:"note,omitempty"`
}

// Report — агрегированные замеры одного файла.
type Report struct {
	TotalMS float64       `json:"total_ms"`
	Phases  []PhaseReport `json:"phases"`
}

// Report snapshots all phases in run order. A phase still running reports
// the time elapsed so far.
func (t *Timer) Report() Report {
	if len(t.phases) == 0 {
		return Report{}
	}
	out := Report{Phases: make([]PhaseReport, len(t.phases))}
	var total time.Duration
	for i, s := range t.phases {
		dur := s.dur
		if dur == 0 {
			dur = time.Since(s.start)
		}
		total += dur
		out.Phases[i] = PhaseReport{
			Name:       s.name,
			DurationMS: millis(dur),
			Note:       s.note,
		}
	}
	out.TotalMS = millis(total)
	return out
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
