package version

import (
	"regexp"
	"testing"
)

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func TestFingerprintShape(t *testing.T) {
	plain := ansi.ReplaceAllString(Version, "")
	if plain != "0.1.0-dev" {
		t.Errorf("Version without color = %q, want %q", plain, "0.1.0-dev")
	}
}

func TestBuildMetadataDefaults(t *testing.T) {
	// Commit, message and date arrive via -ldflags; a plain `go build`
	// leaves them empty.
	if GitCommit != "" {
		t.Errorf("GitCommit = %q, want empty default", GitCommit)
	}
	if GitMessage != "" {
		t.Errorf("GitMessage = %q, want empty default", GitMessage)
	}
	if BuildDate != "" {
		t.Errorf("BuildDate = %q, want empty default", BuildDate)
	}
}

func TestBuildMetadataOverride(t *testing.T) {
	origCommit, origDate := GitCommit, BuildDate
	defer func() {
		GitCommit, BuildDate = origCommit, origDate
	}()

	GitCommit = "0b9d31e"
	BuildDate = "2026-08-30T00:00:00Z"
	if GitCommit != "0b9d31e" || BuildDate != "2026-08-30T00:00:00Z" {
		t.Errorf("ldflags-style override did not stick: commit=%q date=%q", GitCommit, BuildDate)
	}
}
