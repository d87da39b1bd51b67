// Package store holds pipeline definitions keyed by name, plus the
// current run's append-only StageCommand log. The store is
// process-local and in-memory; concurrent reads are safe and writes
// are serialized behind a single mutex.
package store

import (
	"sync"

	"github.com/localci/rlci/internal/model"
	"github.com/localci/rlci/pkg/cierrors"
)

// Store is safe for concurrent use: GetPipeline/GetStageCommands may
// be called from any goroutine while a run is in flight; the mutating
// operations are serialized against each other and against the
// readers.
type Store struct {
	mu sync.Mutex

	pipelines map[string]model.Pipeline
	run       []model.StageCommand
	lastRun   *model.RunRecord
}

// New returns an empty Store.
func New() *Store {
	return &Store{pipelines: map[string]model.Pipeline{}}
}

// SavePipeline stores p under name, overwriting any existing
// definition. Idempotent: calling it twice with the same arguments
// leaves the store in the same state as calling it once.
func (s *Store) SavePipeline(name string, p model.Pipeline) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipelines[name] = p
}

// GetPipeline returns the pipeline saved under name, or NotFound if no
// pipeline by that name has been saved.
func (s *Store) GetPipeline(name string) (model.Pipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pipelines[name]
	if !ok {
		return model.Pipeline{}, cierrors.NewNotFound("pipeline", name)
	}
	return p, nil
}

// ListPipelines returns the names of every saved pipeline, in no
// particular order.
func (s *Store) ListPipelines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.pipelines))
	for name := range s.pipelines {
		names = append(names, name)
	}
	return names
}

// BeginRun resets the current run's StageCommand log. It must be
// called once at the start of every trigger, before any
// AppendStageCommand call.
func (s *Store) BeginRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run = nil
}

// AppendStageCommand appends a new StageCommand to the current run's
// log. Subsequent AppendStageCommandOutputLine/SetStageCommandReturncode
// calls mutate this entry until the next AppendStageCommand.
func (s *Store) AppendStageCommand(command []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run = append(s.run, model.StageCommand{Command: command})
}

// AppendStageCommandOutputLine appends line to the most recently
// appended StageCommand's output. Exactly one AppendStageCommand
// precedes any output line for a given stage command; calling this
// with no prior AppendStageCommand is a no-op.
func (s *Store) AppendStageCommandOutputLine(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.run) == 0 {
		return
	}
	last := &s.run[len(s.run)-1]
	last.Output = append(last.Output, line)
}

// SetStageCommandReturncode sets the returncode of the most recently
// appended StageCommand. Same precondition as
// AppendStageCommandOutputLine.
func (s *Store) SetStageCommandReturncode(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.run) == 0 {
		return
	}
	rc := code
	s.run[len(s.run)-1].ReturnCode = &rc
}

// FinishRun records the completed run. The engine owns the RunRecord
// while the trigger is in flight and transfers it here on completion.
func (s *Store) FinishRun(record model.RunRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun = &record
}

// LastRun returns the most recently completed run, if any.
func (s *Store) LastRun() (model.RunRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun == nil {
		return model.RunRecord{}, false
	}
	return *s.lastRun, true
}

// GetStageCommands returns a snapshot of the current run's log. The
// returned slice is owned by the caller; later mutations to the store
// do not affect it.
func (s *Store) GetStageCommands() []model.StageCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.StageCommand, len(s.run))
	copy(out, s.run)
	return out
}
