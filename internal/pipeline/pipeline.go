// Package pipeline sequences the external tools that postprocess a
// rendered GTFS bundle. The tools are opaque binaries; only their CLI
// contracts and exit codes matter here.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"strings"
)

// Stage is one external command invocation with a captured result.
type Stage struct {
	Name    string
	Command string
	Args    []string
	Dir     string
}

// StageError reports a failed stage with the tail of its output.
type StageError struct {
	Stage  string
	Err    error
	Output string
}

func (e *StageError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("stage %s failed: %v\n%s", e.Stage, e.Err, e.Output)
}

func (e *StageError) Unwrap() error { return e.Err }

// Run executes the stage and fails on a non-zero exit.
func (s Stage) Run(ctx context.Context) error {
	log.Printf("pipeline: running %s: %s %s", s.Name, s.Command, strings.Join(s.Args, " "))

	cmd := exec.CommandContext(ctx, s.Command, s.Args...)
	cmd.Dir = s.Dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return &StageError{Stage: s.Name, Err: err, Output: tail(string(output), 20)}
	}
	return nil
}

// Pipeline is an ordered list of stages. A stage failure stops the
// pipeline; no partial feed is published past a failed stage.
type Pipeline struct {
	stages []Stage
}

// New builds a pipeline from stages.
func New(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// Preflight verifies every stage's binary is on PATH before any stage
// runs, so a missing tool fails fast instead of mid-pipeline.
func (p *Pipeline) Preflight() error {
	for _, s := range p.stages {
		if _, err := exec.LookPath(s.Command); err != nil {
			return fmt.Errorf("stage %s: %w", s.Name, err)
		}
	}
	return nil
}

// Run executes all stages in order.
func (p *Pipeline) Run(ctx context.Context) error {
	for _, s := range p.stages {
		if err := s.Run(ctx); err != nil {
			return err
		}
	}
	return nil
}

func tail(s string, lines int) string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return ""
	}
	all := strings.Split(s, "\n")
	if len(all) <= lines {
		return s
	}
	return strings.Join(all[len(all)-lines:], "\n")
}
