// Package server implements the engine's request side: a Unix domain
// socket listener that serves one trigger request per connection, and
// the client that speaks its wire protocol. The request payload is the
// raw pipeline name; the reply is the ASCII literal True or False.
package server

import (
	"context"
	"errors"
	"net"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/localci/rlci/internal/events"
	"github.com/localci/rlci/pkg/cierrors"
)

// DefaultSocketPath is where the engine listens unless told otherwise.
const DefaultSocketPath = "/tmp/rlci-engine.socket"

const (
	replyTrue  = "True"
	replyFalse = "False"
)

// Trigger is the one operation the server exposes: run the named
// pipeline and report whether it succeeded. The method value of
// (*engine.Engine).Trigger satisfies this without the server package
// importing engine, avoiding a cycle with engine's own dependents.
type Trigger func(ctx context.Context, name string) bool

// Server listens on a Unix domain socket and serves one Trigger call
// per accepted connection.
type Server struct {
	Path    string
	Trigger Trigger
	Sink    events.Sink

	listener net.Listener
}

// New returns a Server bound to path (DefaultSocketPath if empty),
// invoking trigger for each request.
func New(path string, trigger Trigger, sink events.Sink) *Server {
	if path == "" {
		path = DefaultSocketPath
	}
	return &Server{Path: path, Trigger: trigger, Sink: sink}
}

func (s *Server) sink() events.Sink {
	if s.Sink == nil {
		return events.Discard
	}
	return s.Sink
}

// Listen binds the socket, removing any stale file left over from a
// previous run first.
func (s *Server) Listen() error {
	_ = removeStaleSocket(s.Path)

	l, err := net.Listen("unix", s.Path)
	if err != nil {
		return cierrors.NewTransportError(err)
	}
	s.listener = l
	return nil
}

// Serve accepts connections until ctx is cancelled or the listener is
// closed. A single handler's failure or panic is logged and never
// takes the listener down.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				if errors.Is(err, net.ErrClosed) {
					return nil
				}
				log.Error().Err(err).Msg("server: accept failed, continuing")
				continue
			}
		}
		s.handle(ctx, conn)
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("server: handler panicked, connection dropped")
		}
	}()

	name, err := readRequest(conn)
	if err != nil {
		log.Warn().Err(err).Msg("server: failed to read request")
		s.reply(conn, false)
		return
	}

	// The run is detached from ctx so a shutdown signal stops new
	// accepts without killing the step already in flight.
	ok := s.Trigger(context.WithoutCancel(ctx), name)
	s.sink().Emit(events.KindServerResponse, ok)
	s.reply(conn, ok)
}

func (s *Server) reply(conn net.Conn, ok bool) {
	payload := replyFalse
	if ok {
		payload = replyTrue
	}
	_, _ = conn.Write([]byte(payload))
}

// Close stops accepting new connections. A handler already running is
// allowed to finish.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func removeStaleSocket(path string) error {
	return os.Remove(path)
}

func readRequest(conn net.Conn) (string, error) {
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		return "", cierrors.NewTransportError(err)
	}
	return string(buf[:n]), nil
}
