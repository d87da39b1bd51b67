// Package engine runs pipelines: given a pipeline name, it executes
// the steps inside a fresh workspace in declaration order, resolving
// variable tokens against values captured from earlier steps, and
// reports pipeline-wide success or failure.
package engine

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/localci/rlci/internal/events"
	"github.com/localci/rlci/internal/model"
	"github.com/localci/rlci/internal/process"
	"github.com/localci/rlci/internal/report"
	"github.com/localci/rlci/internal/store"
	"github.com/localci/rlci/internal/workspace"
	"github.com/localci/rlci/pkg/cierrors"
)

// Engine runs pipelines fetched from a Store, reporting progress
// through a Sink and writing an HTML report after every run that
// acquired a workspace (a workspace-create failure writes none).
type Engine struct {
	Store  *store.Store
	Sink   events.Sink
	Report report.Writer
	Runner process.Runner
}

// New returns an Engine wired to the real process runner and the
// filesystem-backed report writer.
func New(s *store.Store, sink events.Sink) *Engine {
	return &Engine{
		Store:  s,
		Sink:   sink,
		Report: report.New(sink),
		Runner: process.NewExecRunner(sink),
	}
}

func (e *Engine) sink() events.Sink {
	if e.Sink == nil {
		return events.Discard
	}
	return e.Sink
}

func (e *Engine) runner() process.Runner {
	if e.Runner == nil {
		return process.NewExecRunner(e.sink())
	}
	return e.Runner
}

// Trigger runs the named pipeline to completion and returns whether it
// succeeded. It never returns a Go error: every failure mode (unknown
// pipeline, workspace failure, a step's non-zero exit, an unresolved
// variable) is folded into the boolean result, with STDOUT events
// marking the externally observable outcome. An unknown pipeline
// returns false without starting a run.
func (e *Engine) Trigger(ctx context.Context, name string) bool {
	pipeline, err := e.Store.GetPipeline(name)
	if err != nil {
		return false
	}

	e.sink().Emit(events.KindStdout, "Triggered "+pipeline.Name)
	e.Store.BeginRun()
	startedAt := time.Now()

	runner := &loggingRunner{store: e.Store, next: e.runner()}

	ws, release, err := workspace.Acquire(ctx, runner)
	if err != nil {
		e.sink().Emit(events.KindStdout, "FAIL")
		return false
	}

	// Released exactly once: eagerly on the normal path so the removal
	// precedes the report write, and via defer if runSteps panics.
	released := false
	releaseOnce := func() {
		if !released {
			released = true
			release()
		}
	}
	defer releaseOnce()

	runErr := e.runSteps(ctx, ws, pipeline)
	if runErr != nil {
		log.Debug().Err(runErr).Str("pipeline", pipeline.Name).Msg("engine: run failed")
	}
	success := runErr == nil

	releaseOnce()
	record := model.RunRecord{
		PipelineName:  pipeline.Name,
		StartedAt:     startedAt,
		EndedAt:       time.Now(),
		Success:       success,
		StageCommands: e.Store.GetStageCommands(),
	}
	e.Store.FinishRun(record)
	e.writeReport(record)
	if !success {
		e.sink().Emit(events.KindStdout, "FAIL")
	}
	return success
}

func (e *Engine) writeReport(record model.RunRecord) {
	if e.Report == nil {
		return
	}
	e.Report.Write(report.Run{
		PipelineName:  record.PipelineName,
		Success:       record.Success,
		StageCommands: record.StageCommands,
	})
}

func (e *Engine) runSteps(ctx context.Context, ws workspace.Executor, pipeline model.Pipeline) error {
	vars := map[string]string{}

	for _, step := range pipeline.Steps {
		command, err := resolve(step.Command, vars)
		if err != nil {
			return err
		}

		var captured []string
		code := ws.Run(ctx, command, func(line string) {
			if step.Variable != "" {
				captured = append(captured, line)
			}
		})

		if code != 0 {
			return cierrors.NewCommandFailure(strings.Join(command, " "), code)
		}
		if step.Variable != "" {
			// Multi-line output concatenates without a separator; the
			// bound value is substituted as a single argv element and
			// never re-split.
			vars[step.Variable] = strings.Join(captured, "")
		}
	}
	return nil
}

// loggingRunner wraps a process.Runner so every spawned command, its
// output lines, and its exit code land in the store's stage-command
// log: one AppendStageCommand before any output, one
// SetStageCommandReturncode after all of it. The workspace's own
// create and remove commands go through it too, so they show up in the
// log alongside the steps.
type loggingRunner struct {
	store *store.Store
	next  process.Runner
}

func (r *loggingRunner) Run(ctx context.Context, command []string, onLine func(string)) int {
	r.store.AppendStageCommand(append([]string(nil), command...))
	code := r.next.Run(ctx, command, func(line string) {
		r.store.AppendStageCommandOutputLine(line)
		onLine(line)
	})
	r.store.SetStageCommandReturncode(code)
	return code
}

// resolve substitutes every VariableRef token with its bound value,
// failing with UnresolvedVariable if a step references a variable no
// earlier step bound. Pipeline.Validate already rejects this
// statically for pipelines loaded through store.LoadDir, but
// SavePipeline does not validate, so resolve re-checks dynamically.
func resolve(tokens []model.Token, vars map[string]string) ([]string, error) {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		switch t := tok.(type) {
		case model.Literal:
			out[i] = string(t)
		case model.VariableRef:
			v, ok := vars[string(t)]
			if !ok {
				return nil, cierrors.NewUnresolvedVariable(string(t))
			}
			out[i] = v
		}
	}
	return out, nil
}
