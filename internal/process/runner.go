// Package process spawns external commands, streaming each one's
// merged stdout+stderr line by line and returning its exit code. It
// also carries the optional resource containment applied around a
// spawned child: cgroup isolation and a memory watchdog.
package process

import (
	"bufio"
	"context"
	"io"
	"os/exec"

	"github.com/rs/zerolog/log"

	"github.com/localci/rlci/internal/events"
	"github.com/localci/rlci/pkg/cierrors"
)

// Runner is the contract the engine and the workspace require of a
// process runner. It blocks until the child exits and all of its
// output has been consumed by onLine, then returns the exit code. A
// child that cannot be spawned returns ExitSpawnFailed, which callers
// treat like any other non-zero exit code.
type Runner interface {
	Run(ctx context.Context, command []string, onLine func(string)) int
}

// ExitSpawnFailed is returned by ExecRunner (and may be configured on
// NullRunner) when the child process could not be started at all.
const ExitSpawnFailed = -1

// ExecRunner is the production Runner: it really spawns command[0] with
// command[1:] as arguments.
type ExecRunner struct {
	Sink        events.Sink
	Isolation   IsolationPolicy
	MemoryLimit uint64
}

// NewExecRunner returns a Runner that emits to sink and applies no
// isolation policy beyond the OS default.
func NewExecRunner(sink events.Sink) *ExecRunner {
	return &ExecRunner{Sink: sink, Isolation: NoIsolation{}}
}

func (r *ExecRunner) Run(ctx context.Context, command []string, onLine func(string)) int {
	r.sink().Emit(events.KindProcess, append([]string(nil), command...))

	if len(command) == 0 {
		return ExitSpawnFailed
	}

	cmd := exec.Command(command[0], command[1:]...)
	setProcessGroup(cmd)

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			onLine(scanner.Text())
		}
	}()

	if err := cmd.Start(); err != nil {
		log.Debug().Err(cierrors.NewSpawnError(command, err)).Msg("process: spawn failed")
		_ = pw.Close()
		_ = pr.Close()
		<-scanDone
		return ExitSpawnFailed
	}

	if isolation := r.Isolation; isolation != nil {
		if err := isolation.Setup(ctx, uint64(cmd.Process.Pid)); err == nil {
			defer func() { _ = isolation.Teardown(ctx) }()
		}
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			killProcessGroup(cmd)
		case <-done:
		}
	}()

	if r.MemoryLimit > 0 {
		guard := &MemoryGuard{ByteLimit: r.MemoryLimit, Sink: r.sink()}
		guardCtx, stopGuard := context.WithCancel(ctx)
		defer stopGuard()
		go guard.Watch(guardCtx, cmd.Process.Pid, func() { killProcessGroup(cmd) })
	}

	waitErr := cmd.Wait()
	close(done)

	_ = pw.Close()
	<-scanDone
	_ = pr.Close()

	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}

	if waitErr != nil {
		return ExitSpawnFailed
	}
	return 0
}

func (r *ExecRunner) sink() events.Sink {
	if r.Sink == nil {
		return events.Discard
	}
	return r.Sink
}
