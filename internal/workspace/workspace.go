// Package workspace provides the ephemeral directory every pipeline
// step runs inside. A workspace is created by running `mktemp -d`
// through the process runner and removed by running `rm -rf`, so both
// ends of its lifecycle are observable as ordinary process spawns with
// their own stage-command log entries.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/localci/rlci/internal/process"
	"github.com/localci/rlci/pkg/cierrors"
)

// Executor runs a command rooted in a workspace's directory, merging
// its stdout and stderr into onLine the same way process.Runner does.
type Executor interface {
	Run(ctx context.Context, command []string, onLine func(string)) int
}

// Workspace is the live handle returned by Acquire. Directory is
// exposed for callers that need the path itself; nothing but the
// Executor may write into it.
type Workspace struct {
	Directory string
	runner    process.Runner
}

// Acquire creates a fresh empty directory by running `mktemp -d`
// through runner and returns an Executor bound to it, plus a release
// func the caller MUST defer immediately: release removes the
// directory recursively and is safe to call on every exit path,
// including a panic mid-run.
//
// If creation fails, Acquire returns a WorkspaceError and a nil
// release; the caller must not call it.
func Acquire(ctx context.Context, runner process.Runner) (*Workspace, func(), error) {
	var lines []string
	code := runner.Run(ctx, []string{"mktemp", "-d"}, func(line string) {
		lines = append(lines, line)
	})
	if code != 0 {
		return nil, nil, cierrors.NewWorkspaceError(fmt.Errorf("mktemp -d exited %d", code))
	}

	dir := strings.Join(lines, "")
	if dir == "" {
		return nil, nil, cierrors.NewWorkspaceError(errors.New("mktemp -d produced no path"))
	}

	ws := &Workspace{Directory: dir, runner: runner}
	release := func() {
		// Cleanup still runs when the trigger's context has already
		// been cancelled; a release failure never flips a prior
		// success to a failure.
		rmCtx := context.WithoutCancel(ctx)
		if code := runner.Run(rmCtx, []string{"rm", "-rf", dir}, func(string) {}); code != 0 {
			log.Warn().Str("workspace", dir).Int("returncode", code).Msg("workspace: release failed")
		}
	}
	return ws, release, nil
}

// Run wraps command in the chdir-into-workspace shim so the child's
// working directory is the workspace, then hands it to the runner. The
// emitted PROCESS event shows the literal argv actually executed,
// shim included.
func (w *Workspace) Run(ctx context.Context, command []string, onLine func(string)) int {
	return w.runner.Run(ctx, w.Shim(command), onLine)
}

// Shim builds `{interpreter} -c "chdir; exec" <workspace> <...command>`.
// Exported so callers configuring a process.NullRunner's responses can
// key them off the exact argv Workspace.Run will send.
func (w *Workspace) Shim(command []string) []string {
	interpreter := pythonInterpreter()
	script := `import os, sys; os.chdir(sys.argv[1]); os.execvp(sys.argv[2], sys.argv[2:])`
	shimmed := make([]string, 0, len(command)+4)
	shimmed = append(shimmed, interpreter, "-c", script, w.Directory)
	shimmed = append(shimmed, command...)
	return shimmed
}

// pythonInterpreter resolves the interpreter the shim invokes. A
// missing interpreter surfaces as an ordinary spawn failure from the
// underlying runner, same as any other missing binary.
func pythonInterpreter() string {
	if path, err := exec.LookPath("python3"); err == nil {
		return path
	}
	return "python3"
}
