package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"karst/internal/trace"
)

// setupTracing builds a tracer from the persistent trace flags, attaches it
// to the command context, and returns the cleanup that stops the heartbeat
// and drains the tracer. With tracing off the cleanup is a no-op.
func setupTracing(cmd *cobra.Command) (func(), error) {
	flags := cmd.Root().PersistentFlags()

	output, err := flags.GetString("trace")
	if err != nil {
		return nil, err
	}
	levelValue, err := flags.GetString("trace-level")
	if err != nil {
		return nil, err
	}
	level, err := trace.ParseLevel(levelValue)
	if err != nil {
		return nil, err
	}

	if level == trace.LevelOff && output == "" {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return func() {}, nil
	}

	modeValue, err := flags.GetString("trace-mode")
	if err != nil {
		return nil, err
	}
	mode, err := trace.ParseStore(modeValue)
	if err != nil {
		return nil, err
	}
	ringSize, err := flags.GetInt("trace-ring-size")
	if err != nil {
		return nil, err
	}
	pulse, err := flags.GetDuration("trace-heartbeat")
	if err != nil {
		return nil, err
	}

	tracer, err := trace.New(trace.Config{
		Level:      level,
		Mode:       mode,
		OutputPath: output,
		RingSize:   ringSize,
		Heartbeat:  pulse,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	ctx := trace.WithTracer(cmd.Context(), tracer)
	cmd.SetContext(ctx)
	cmd.Root().SetContext(ctx)

	heartbeat := trace.StartHeartbeat(tracer, pulse)

	cleanup := func() {
		heartbeat.Stop()
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}
	return cleanup, nil
}
