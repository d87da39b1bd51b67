package model

import "time"

// StageCommand is a single child-process invocation together with its
// captured output lines and exit code. ReturnCode is nil only while
// the command is still running; it is set exactly once.
type StageCommand struct {
	Command    []string
	Output     []string
	ReturnCode *int
}

// RunRecord is the outcome of one trigger of a pipeline: the ordered
// stage commands it produced and whether the run, as a whole,
// succeeded.
type RunRecord struct {
	PipelineName  string
	StartedAt     time.Time
	EndedAt       time.Time
	Success       bool
	StageCommands []StageCommand
}
