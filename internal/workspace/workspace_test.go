package workspace

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localci/rlci/internal/events"
	"github.com/localci/rlci/internal/process"
	"github.com/localci/rlci/pkg/cierrors"
)

func TestAcquireCreatesAndReleaseRemovesDirectory(t *testing.T) {
	runner := process.NewExecRunner(events.Discard)

	ws, release, err := Acquire(context.Background(), runner)
	require.NoError(t, err)

	info, err := os.Stat(ws.Directory)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	release()

	_, err = os.Stat(ws.Directory)
	assert.True(t, os.IsNotExist(err))
}

func TestAcquireEmitsCreateAndReleaseEmitsRemove(t *testing.T) {
	rec := events.NewRecorder()
	runner := process.NewNullRunner(rec)
	runner.On([]string{"mktemp", "-d"}, process.Response{Output: []string{"/tmp/ws-test"}})

	ws, release, err := Acquire(context.Background(), runner)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/ws-test", ws.Directory)
	assert.True(t, rec.Has(events.KindProcess, []string{"mktemp", "-d"}))

	release()

	assert.True(t, rec.Has(events.KindProcess, []string{"rm", "-rf", "/tmp/ws-test"}))
}

func TestAcquireFailsWhenCreateCommandFails(t *testing.T) {
	runner := process.NewNullRunner(events.Discard)
	runner.On([]string{"mktemp", "-d"}, process.Response{ReturnCode: 99})

	_, release, err := Acquire(context.Background(), runner)

	var wsErr *cierrors.WorkspaceError
	require.ErrorAs(t, err, &wsErr)
	assert.Nil(t, release)
}

func TestRunShimsCommandThroughWorkspaceDirectory(t *testing.T) {
	null := process.NewNullRunner(events.Discard)
	null.On([]string{"mktemp", "-d"}, process.Response{Output: []string{"/tmp/ws-test"}})

	ws, _, err := Acquire(context.Background(), null)
	require.NoError(t, err)

	null.On(ws.Shim([]string{"git", "status"}), process.Response{ReturnCode: 3})

	code := ws.Run(context.Background(), []string{"git", "status"}, func(string) {})

	assert.Equal(t, 3, code)
}

func TestShimIsLiteralArgvIncludingWorkspacePath(t *testing.T) {
	ws := &Workspace{Directory: "/tmp/rlci-workspace-example"}

	got := ws.Shim([]string{"echo", "hi"})

	require.GreaterOrEqual(t, len(got), 4)
	assert.Equal(t, "-c", got[1])
	assert.Contains(t, got, "/tmp/rlci-workspace-example")
	assert.Equal(t, []string{"echo", "hi"}, got[len(got)-2:])
}
