package process

import (
	"context"
	"strings"
	"sync"

	"github.com/localci/rlci/internal/events"
)

// Response is a configured NullRunner reply: the lines it feeds to
// onLine and the exit code it returns.
type Response struct {
	Output     []string
	ReturnCode int
}

// NullRunner is the Runner test double: it spawns nothing and instead
// replays a configured Response keyed by exact command equality. It
// emits the same PROCESS event the real runner would. Responses are consumed
// first-match-wins; a command with no configured response gets the
// zero Response (no output, exit 0).
type NullRunner struct {
	Sink events.Sink

	mu        sync.Mutex
	responses map[string][]Response
}

// NewNullRunner returns a NullRunner with no configured responses;
// every call to Run returns the zero Response until one is added with
// On.
func NewNullRunner(sink events.Sink) *NullRunner {
	return &NullRunner{Sink: sink, responses: map[string][]Response{}}
}

// On queues resp to be returned the next time Run is called with the
// exact command. Multiple calls for the same command queue multiple
// responses, consumed in the order they were added.
func (n *NullRunner) On(command []string, resp Response) {
	n.mu.Lock()
	defer n.mu.Unlock()
	key := commandKey(command)
	n.responses[key] = append(n.responses[key], resp)
}

func (n *NullRunner) Run(ctx context.Context, command []string, onLine func(string)) int {
	sink := n.Sink
	if sink == nil {
		sink = events.Discard
	}
	sink.Emit(events.KindProcess, append([]string(nil), command...))

	resp := n.consume(command)
	for _, line := range resp.Output {
		onLine(line)
	}
	return resp.ReturnCode
}

func (n *NullRunner) consume(command []string) Response {
	n.mu.Lock()
	defer n.mu.Unlock()

	key := commandKey(command)
	queue := n.responses[key]
	if len(queue) == 0 {
		return Response{}
	}
	n.responses[key] = queue[1:]
	return queue[0]
}

func commandKey(command []string) string {
	return strings.Join(command, "\x00")
}
