package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localci/rlci/internal/events"
	"github.com/localci/rlci/internal/model"
	"github.com/localci/rlci/internal/process"
	"github.com/localci/rlci/internal/report"
	"github.com/localci/rlci/internal/store"
	"github.com/localci/rlci/internal/workspace"
)

const testWorkspace = "/tmp/rlci-ws-test"

type fakeReport struct {
	runs []report.Run
}

func (f *fakeReport) Write(run report.Run) { f.runs = append(f.runs, run) }

// newTestEngine wires an Engine to a NullRunner and a shared Recorder,
// with the runner already configured to hand out testWorkspace for the
// workspace-create command.
func newTestEngine(t *testing.T) (*Engine, *process.NullRunner, *events.Recorder, *fakeReport) {
	t.Helper()
	rec := events.NewRecorder()
	runner := process.NewNullRunner(rec)
	runner.On([]string{"mktemp", "-d"}, process.Response{Output: []string{testWorkspace}})
	rep := &fakeReport{}
	e := &Engine{
		Store:  store.New(),
		Sink:   rec,
		Report: rep,
		Runner: runner,
	}
	return e, runner, rec, rep
}

// shim mirrors the argv Workspace.Run produces for a step command run
// inside testWorkspace.
func shim(command ...string) []string {
	ws := &workspace.Workspace{Directory: testWorkspace}
	return ws.Shim(command)
}

func lit(tokens ...string) []model.Token {
	out := make([]model.Token, len(tokens))
	for i, tok := range tokens {
		out[i] = model.Literal(tok)
	}
	return out
}

func TestTriggerRunsStepsInOrderWithWorkspaceLifecycle(t *testing.T) {
	e, _, rec, rep := newTestEngine(t)
	e.Store.SavePipeline("X", model.Pipeline{
		Name: "X",
		Steps: []model.Step{
			{Command: lit("echo", "hi")},
			{Command: lit("echo", "bye")},
		},
	})

	ok := e.Trigger(context.Background(), "X")

	assert.True(t, ok)
	want := []events.Event{
		{Kind: events.KindStdout, Data: "Triggered X"},
		{Kind: events.KindProcess, Data: []string{"mktemp", "-d"}},
		{Kind: events.KindProcess, Data: shim("echo", "hi")},
		{Kind: events.KindProcess, Data: shim("echo", "bye")},
		{Kind: events.KindProcess, Data: []string{"rm", "-rf", testWorkspace}},
	}
	assert.Equal(t, want, rec.All())
	require.Len(t, rep.runs, 1)
	assert.True(t, rep.runs[0].Success)
}

func TestTriggerUnknownPipelineFailsWithoutStartingRun(t *testing.T) {
	e, _, rec, rep := newTestEngine(t)

	ok := e.Trigger(context.Background(), "missing")

	assert.False(t, ok)
	assert.Empty(t, rec.Filter(events.KindProcess))
	assert.Empty(t, rep.runs)
}

func TestTriggerCapturesVariableAndSubstitutesIntoLaterStep(t *testing.T) {
	e, runner, rec, _ := newTestEngine(t)
	runner.On(shim("cat", "path.txt"), process.Response{Output: []string{"secret"}})
	e.Store.SavePipeline("X", model.Pipeline{
		Name: "X",
		Steps: []model.Step{
			{Command: lit("cat", "path.txt"), Variable: "p"},
			{Command: []model.Token{model.Literal("cd"), model.VariableRef("p")}},
		},
	})

	ok := e.Trigger(context.Background(), "X")

	assert.True(t, ok)
	assert.True(t, rec.Has(events.KindProcess, shim("cd", "secret")))
}

func TestTriggerConcatenatesMultiLineCaptureWithoutSeparator(t *testing.T) {
	e, runner, rec, _ := newTestEngine(t)
	runner.On(shim("git", "rev-parse", "HEAD"), process.Response{Output: []string{"abc", "123"}})
	e.Store.SavePipeline("X", model.Pipeline{
		Name: "X",
		Steps: []model.Step{
			{Command: lit("git", "rev-parse", "HEAD"), Variable: "sha"},
			{Command: []model.Token{model.Literal("echo"), model.VariableRef("sha")}},
		},
	})

	ok := e.Trigger(context.Background(), "X")

	assert.True(t, ok)
	assert.True(t, rec.Has(events.KindProcess, shim("echo", "abc123")))
}

func TestTriggerWorkspaceCreateFailureSkipsStepsAndRelease(t *testing.T) {
	rec := events.NewRecorder()
	runner := process.NewNullRunner(rec)
	runner.On([]string{"mktemp", "-d"}, process.Response{ReturnCode: 99})
	rep := &fakeReport{}
	e := &Engine{Store: store.New(), Sink: rec, Report: rep, Runner: runner}
	e.Store.SavePipeline("X", model.Pipeline{
		Name:  "X",
		Steps: []model.Step{{Command: lit("echo", "hi")}},
	})

	ok := e.Trigger(context.Background(), "X")

	assert.False(t, ok)
	want := []events.Event{
		{Kind: events.KindStdout, Data: "Triggered X"},
		{Kind: events.KindProcess, Data: []string{"mktemp", "-d"}},
		{Kind: events.KindStdout, Data: "FAIL"},
	}
	assert.Equal(t, want, rec.All())
	assert.Empty(t, rep.runs)
}

func TestTriggerMidPipelineFailureStillReleasesWorkspace(t *testing.T) {
	e, runner, rec, rep := newTestEngine(t)
	runner.On(shim("b"), process.Response{ReturnCode: 99})
	e.Store.SavePipeline("X", model.Pipeline{
		Name: "X",
		Steps: []model.Step{
			{Command: lit("a")},
			{Command: lit("b")},
			{Command: lit("c")},
		},
	})

	ok := e.Trigger(context.Background(), "X")

	assert.False(t, ok)
	processes := rec.Filter(events.KindProcess)
	require.Len(t, processes, 4)
	assert.Equal(t, []string{"mktemp", "-d"}, processes[0].Data)
	assert.Equal(t, shim("a"), processes[1].Data)
	assert.Equal(t, shim("b"), processes[2].Data)
	assert.Equal(t, []string{"rm", "-rf", testWorkspace}, processes[3].Data)
	assert.True(t, rec.Has(events.KindStdout, "FAIL"))
	require.Len(t, rep.runs, 1)
	assert.False(t, rep.runs[0].Success)
}

func TestTriggerEmptyStepsLogsCreateAndRemoveStageCommands(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	e.Store.SavePipeline("X", model.Pipeline{Name: "X"})

	ok := e.Trigger(context.Background(), "X")

	assert.True(t, ok)
	commands := e.Store.GetStageCommands()
	require.Len(t, commands, 2)
	assert.Equal(t, []string{"mktemp", "-d"}, commands[0].Command)
	assert.Equal(t, []string{"rm", "-rf", testWorkspace}, commands[1].Command)
	require.NotNil(t, commands[0].ReturnCode)
	assert.Equal(t, 0, *commands[0].ReturnCode)
}

func TestTriggerUnresolvedVariableFails(t *testing.T) {
	e, _, rec, _ := newTestEngine(t)
	e.Store.SavePipeline("X", model.Pipeline{
		Name: "X",
		Steps: []model.Step{
			{Command: []model.Token{model.Literal("echo"), model.VariableRef("missing")}},
			{Command: lit("never")},
		},
	})

	ok := e.Trigger(context.Background(), "X")

	assert.False(t, ok)
	assert.False(t, rec.Has(events.KindProcess, shim("never")))
	assert.True(t, rec.Has(events.KindStdout, "FAIL"))
}

func TestTriggerLogsStepOutputAndReturncodeInOrder(t *testing.T) {
	e, runner, _, _ := newTestEngine(t)
	runner.On(shim("echo", "hi"), process.Response{Output: []string{"hi"}})
	e.Store.SavePipeline("X", model.Pipeline{
		Name:  "X",
		Steps: []model.Step{{Command: lit("echo", "hi")}},
	})

	ok := e.Trigger(context.Background(), "X")

	assert.True(t, ok)
	commands := e.Store.GetStageCommands()
	require.Len(t, commands, 3)
	assert.Equal(t, shim("echo", "hi"), commands[1].Command)
	assert.Equal(t, []string{"hi"}, commands[1].Output)
	require.NotNil(t, commands[1].ReturnCode)
	assert.Equal(t, 0, *commands[1].ReturnCode)
}

func TestRetriggeringProducesIdenticalProcessEvents(t *testing.T) {
	e, runner, rec, _ := newTestEngine(t)
	runner.On([]string{"mktemp", "-d"}, process.Response{Output: []string{testWorkspace}})
	e.Store.SavePipeline("X", model.Pipeline{
		Name:  "X",
		Steps: []model.Step{{Command: lit("echo", "hi")}},
	})

	require.True(t, e.Trigger(context.Background(), "X"))
	first := rec.Filter(events.KindProcess)

	require.True(t, e.Trigger(context.Background(), "X"))
	all := rec.Filter(events.KindProcess)

	assert.Equal(t, first, all[len(first):])
}

func TestTriggerRecordsCompletedRunInStore(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	e.Store.SavePipeline("X", model.Pipeline{
		Name:  "X",
		Steps: []model.Step{{Command: lit("echo", "hi")}},
	})

	require.True(t, e.Trigger(context.Background(), "X"))

	record, ok := e.Store.LastRun()
	require.True(t, ok)
	assert.Equal(t, "X", record.PipelineName)
	assert.True(t, record.Success)
	assert.False(t, record.EndedAt.Before(record.StartedAt))
	require.Len(t, record.StageCommands, 3)
}
