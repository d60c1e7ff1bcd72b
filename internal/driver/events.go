package driver

import "time"

// Stage describes one batch pipeline phase.
type Stage string

const (
	// StageLoad is the scenario decode stage.
	StageLoad Stage = "load"
	// StageLower is the signature arrangement and call lowering stage.
	StageLower Stage = "lower"
	// StagePrint is the KIR rendering stage.
	StagePrint Stage = "print"
	// StageCache is the disk cache read/write stage.
	StageCache Stage = "cache"
)

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the file is waiting to start.
	StatusQueued Status = "queued"
	// StatusWorking indicates the file is currently being processed.
	StatusWorking Status = "working"
	// StatusCached indicates the file was served from the disk cache.
	StatusCached Status = "cached"
	// StatusDone indicates the file finished cleanly.
	StatusDone Status = "done"
	// StatusError indicates the file failed.
	StatusError Status = "error"
)

// Event reports progress for a file (or for the whole batch when File is
// empty).
type Event struct {
	File    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

type nopSink struct{}

func (nopSink) OnEvent(Event) {}
