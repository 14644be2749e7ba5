// Package appctl provides the daemon's administrative control socket.
//
// Commands arrive as line-delimited JSON over a unix-domain socket and are
// dispatched to registered handlers. The daemon registers "exit" (request
// shutdown) and "dump" (internal state snapshot); tooling connects with the
// Client in this package.
package appctl

import (
	"bufio"
	"encoding/json"
	stderrors "errors"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vinayprograms/lacpd/errors"
	"github.com/vinayprograms/lacpd/logging"
)

// Common errors.
var (
	ErrClosed         = errors.New(errors.CodeClosed, "control server closed")
	ErrUnknownCommand = errors.New(errors.CodeCommandUnknown, "unknown command")
)

// Request is one command sent over the control socket.
type Request struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// Response answers one Request.
type Response struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorInfo      `json:"error,omitempty"`
}

// ErrorInfo is the wire form of a command failure.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Handler handles one command invocation. The returned value is JSON
// encoded into the response.
type Handler func(args []string) (any, error)

// maxLineBytes bounds one request line. Admin commands are tiny; anything
// larger is rejected with an error response.
const maxLineBytes = 64 << 10

// Server serves commands on a unix-domain socket.
type Server struct {
	path   string
	logger *logging.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
	conns    map[net.Conn]struct{}

	ln     net.Listener
	closed atomic.Bool
	wg     sync.WaitGroup
}

// NewServer creates a server for the given socket path.
func NewServer(path string, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{
		path:     path,
		logger:   logger,
		handlers: make(map[string]Handler),
		conns:    make(map[net.Conn]struct{}),
	}
}

// Register adds a command handler. Registering must happen before Start;
// re-registering a name replaces the previous handler.
func (s *Server) Register(name string, handler Handler) {
	s.mu.Lock()
	s.handlers[name] = handler
	s.mu.Unlock()
}

// Path returns the socket path.
func (s *Server) Path() string {
	return s.path
}

// Start binds the socket and begins accepting connections.
// A bind failure is fatal to the daemon.
func (s *Server) Start() error {
	// Remove a stale socket left by an earlier unclean exit.
	_ = os.Remove(s.path)

	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeListenerBind, "bind control socket")
	}
	s.ln = ln

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// acceptLoop accepts connections until the server closes.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.closed.Load() || stderrors.Is(err, net.ErrClosed) {
				return
			}
			// Transient failures (fd exhaustion and the like) must not
			// kill the admin surface; keep accepting.
			s.logger.Warn("accept_error", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}

		if !s.track(conn) {
			conn.Close()
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.handleConn(conn)
		}()
	}
}

// track registers a live connection so Close can unblock its reader.
// Returns false once the server is closed.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

// untrack forgets a finished connection.
func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// handleConn serves one connection: one JSON request per line, one JSON
// response per line.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 1024), maxLineBytes)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			enc.Encode(Response{Error: &ErrorInfo{
				Code:    string(errors.CodeInvalidInput),
				Message: "malformed request: " + err.Error(),
			}})
			continue
		}

		start := time.Now()
		result, err := s.dispatch(req)
		s.logger.CommandServed(req.Command, time.Since(start), err)

		if err != nil {
			enc.Encode(Response{Error: toErrorInfo(err)})
			continue
		}
		enc.Encode(Response{Result: result})
	}

	// An over-long line gets an error response before the connection drops.
	if err := scanner.Err(); stderrors.Is(err, bufio.ErrTooLong) {
		enc.Encode(Response{Error: &ErrorInfo{
			Code:    string(errors.CodeInvalidInput),
			Message: "request line too long",
		}})
	}
}

// dispatch routes one request to its handler.
func (s *Server) dispatch(req Request) (json.RawMessage, error) {
	s.mu.RLock()
	handler, ok := s.handlers[req.Command]
	s.mu.RUnlock()

	if !ok {
		return nil, errors.Newf(errors.CodeCommandUnknown, "unknown command %q", req.Command)
	}

	result, err := handler(req.Args)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, errors.Wrap(err, "encode command result")
	}
	return data, nil
}

// toErrorInfo maps a handler error onto the wire form.
func toErrorInfo(err error) *ErrorInfo {
	var derr *errors.Error
	if stderrors.As(err, &derr) {
		return &ErrorInfo{Code: string(derr.Code()), Message: derr.Error()}
	}
	return &ErrorInfo{Code: string(errors.CodeInternal), Message: err.Error()}
}

// Close stops accepting, disconnects live clients, waits for the
// connection goroutines and removes the socket file. Idempotent.
func (s *Server) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}

	// Closing the connections unblocks readers sitting in Scan; without
	// this a connected client would hold up shutdown indefinitely.
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	_ = os.Remove(s.path)
	return err
}
