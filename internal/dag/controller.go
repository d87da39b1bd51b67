// Package dag implements the job controller: a set of tasks whose
// dependency edges are declared by WaitFor, dispatched in
// batch-parallel waves until every task reaches a terminal state.
//
// Tasks live in an arena: every task sits at a fixed index in parallel
// slices, edges are index pairs, and status lives in its own slice
// that only the Controller ever mutates.
package dag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/localci/rlci/internal/events"
)

// Controller owns the arena of Tasks and runs them to completion.
type Controller struct {
	sink events.Sink

	names     []string
	index     map[string]int
	waitFor   [][]int // predecessor indices, parallel to names
	ignore    [][]ignoreFlags
	work      []Work
	status    []Status
	durations []time.Duration
}

var taskValidate = validator.New(validator.WithRequiredStructEnabled())

type ignoreFlags struct {
	fail bool
	skip bool
}

// New returns an empty Controller emitting to sink.
func New(sink events.Sink) *Controller {
	return &Controller{sink: sink, index: map[string]int{}}
}

func (c *Controller) sinkOrDiscard() events.Sink {
	if c.sink == nil {
		return events.Discard
	}
	return c.sink
}

// Add registers every spec as a Task in the arena. It must be called
// before Run, and only once per name; a duplicate name or a waitFor
// referencing an unknown name is a programmer error returned as an
// error rather than guessed at.
func (c *Controller) Add(specs ...*TaskSpec) error {
	for _, spec := range specs {
		if err := taskValidate.Struct(spec); err != nil {
			return fmt.Errorf("dag: invalid task: %w", err)
		}
		if _, exists := c.index[spec.Name]; exists {
			return fmt.Errorf("dag: duplicate task name %q", spec.Name)
		}
		c.index[spec.Name] = len(c.names)
		c.names = append(c.names, spec.Name)
		c.waitFor = append(c.waitFor, nil)
		c.ignore = append(c.ignore, nil)
		c.work = append(c.work, spec.work)
		c.status = append(c.status, Waiting)
		c.durations = append(c.durations, 0)
	}

	for _, spec := range specs {
		i := c.index[spec.Name]
		preds := make([]int, 0, len(spec.waitFor))
		flags := make([]ignoreFlags, 0, len(spec.waitFor))
		for _, name := range spec.waitFor {
			p, ok := c.index[name]
			if !ok {
				return fmt.Errorf("dag: task %q waits for unknown task %q", spec.Name, name)
			}
			preds = append(preds, p)
			flags = append(flags, ignoreFlags{
				fail: spec.ignoreFail[name],
				skip: spec.ignoreSkip[name],
			})
		}
		c.waitFor[i] = preds
		c.ignore[i] = flags
	}
	return nil
}

// Stop marks the named task Stopped before Run: it will never be
// dispatched, counts as terminal for its dependents' promotion, but
// (unlike failed/skipped) never causes a downstream skip cascade.
func (c *Controller) Stop(name string) error {
	i, ok := c.index[name]
	if !ok {
		return fmt.Errorf("dag: cannot stop unknown task %q", name)
	}
	c.status[i] = Stopped
	return nil
}

// Run executes the arena to completion and returns the final status of
// every task keyed by name. It never returns a Go error from the
// scheduling itself; individual task failures are reflected in the
// returned statuses, not in the error return.
func (c *Controller) Run(ctx context.Context) (map[string]Status, error) {
	for {
		c.promote()

		ready := c.readyIndices()
		if len(ready) == 0 && c.runningCount() == 0 {
			break
		}
		if len(ready) > 0 {
			if err := c.dispatch(ctx, ready); err != nil {
				return nil, err
			}
		}
	}

	log.Debug().Msg(c.Report())

	result := make(map[string]Status, len(c.names))
	for i, name := range c.names {
		result[name] = c.status[i]
	}
	return result, nil
}

// promote runs one promotion pass: every Waiting task whose
// predecessors are all terminal becomes either Ready or, if skip/fail
// propagation applies, Skipped immediately (which may itself unblock a
// further promotion pass on the next Run loop iteration, cascading the
// skip down the graph).
func (c *Controller) promote() {
	for i := range c.names {
		if c.status[i] != Waiting {
			continue
		}

		allTerminal := true
		for _, p := range c.waitFor[i] {
			if !c.status[p].terminal() {
				allTerminal = false
				break
			}
		}
		if !allTerminal {
			continue
		}

		if c.shouldSkip(i) {
			c.status[i] = Skipped
			c.sinkOrDiscard().Emit(events.KindExit, map[string]any{"task": c.names[i], "status": Skipped.String()})
			continue
		}
		c.status[i] = Ready
	}
}

func (c *Controller) shouldSkip(i int) bool {
	for j, p := range c.waitFor[i] {
		switch c.status[p] {
		case Failed:
			if !c.ignore[i][j].fail {
				return true
			}
		case Skipped:
			if !c.ignore[i][j].skip {
				return true
			}
		}
	}
	return false
}

func (c *Controller) readyIndices() []int {
	var ready []int
	for i := range c.names {
		if c.status[i] == Ready {
			ready = append(ready, i)
		}
	}
	return ready
}

func (c *Controller) runningCount() int {
	n := 0
	for _, s := range c.status {
		if s == Running {
			n++
		}
	}
	return n
}

// dispatch moves every index in ready to Running and runs its Work
// concurrently via an errgroup, blocking until the whole batch reaches
// a terminal state before returning. The batch completes before the
// next promotion pass begins, so no separate collect step is needed:
// every task in the batch is already terminal by the time dispatch
// returns.
func (c *Controller) dispatch(ctx context.Context, ready []int) error {
	for _, i := range ready {
		c.status[i] = Running
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, i := range ready {
		i := i
		g.Go(func() error {
			c.status[i] = c.runOne(gctx, i)
			return nil
		})
	}
	return g.Wait()
}

// runOne executes a single task's Work, recovering a panic into
// Failed.
func (c *Controller) runOne(ctx context.Context, i int) (status Status) {
	name := c.names[i]
	started := time.Now()
	defer func() {
		c.durations[i] = time.Since(started)
		if r := recover(); r != nil {
			status = Failed
			c.sinkOrDiscard().Emit(events.KindExit, map[string]any{"task": name, "status": Failed.String(), "panic": fmt.Sprint(r)})
		}
	}()

	work := c.work[i]
	if work == nil {
		return OK
	}
	result := work(ctx)
	if result != OK && result != Failed {
		result = Failed
	}
	c.sinkOrDiscard().Emit(events.KindExit, map[string]any{"task": name, "status": result.String()})
	return result
}

// Report renders a human-readable summary of the job: one line per
// task with its name, final status, and how long its work ran. Tasks
// that were never dispatched (skipped, stopped, still waiting) show a
// dash instead of a duration. Run logs it when a job completes.
func (c *Controller) Report() string {
	var b strings.Builder
	b.WriteString("job report:\n")
	for i, name := range c.names {
		duration := "-"
		if c.status[i] == OK || c.status[i] == Failed {
			duration = c.durations[i].Round(time.Millisecond).String()
		}
		fmt.Fprintf(&b, "  %-20s %-8s %s\n", name, c.status[i], duration)
	}
	return b.String()
}
