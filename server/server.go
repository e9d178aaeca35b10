package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"mumpsdb/command"
)

// Server is the line-oriented socket front-end. Each accepted connection
// gets its own goroutine and its own session state; the store and executor
// are shared.
type Server struct {
	addr     string
	welcome  string
	maxConns int
	executor *command.Executor
	log      *logrus.Entry

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewServer creates a server listening on the given address. maxConns
// bounds concurrent sessions; zero means unlimited.
func NewServer(addr, welcome string, maxConns int, executor *command.Executor, log *logrus.Entry) *Server {
	return &Server{
		addr:     addr,
		welcome:  welcome,
		maxConns: maxConns,
		executor: executor,
		log:      log,
		conns:    make(map[net.Conn]struct{}),
	}
}

// Start listens and accepts connections until Stop is called. It blocks
// until the listener closes.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		listener.Close()
		return nil
	}
	s.listener = listener
	s.mu.Unlock()

	s.log.WithField("addr", s.addr).Info("socket server listening")

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			s.log.WithError(err).Warn("accept failed")
			continue
		}

		s.mu.Lock()
		if s.maxConns > 0 && len(s.conns) >= s.maxConns {
			s.mu.Unlock()
			s.log.WithField("remote", conn.RemoteAddr().String()).Warn("connection limit reached, rejecting")
			conn.Close()
			continue
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// Stop closes the listener, unblocks sessions stuck in reads by closing
// their sockets, and waits for handlers to finish.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	if s.listener != nil {
		s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("timed out waiting for sessions to close")
	}
	s.log.Info("socket server stopped")
	return nil
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	sess := command.NewSession()
	log := s.log.WithFields(logrus.Fields{
		"session": sess.ID,
		"remote":  conn.RemoteAddr().String(),
	})
	log.Info("session opened")

	writer := bufio.NewWriter(conn)
	banner := s.welcome + "\n" + command.HelpText() + "\n\n"
	if _, err := writer.WriteString(banner + "> "); err != nil {
		return
	}
	writer.Flush()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 8192), 8192)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			writer.WriteString("> ")
			writer.Flush()
			continue
		}

		response, exit := s.executor.Execute(sess, line)
		if exit {
			writer.WriteString(response + "\n")
			writer.Flush()
			log.Info("session closed by client")
			return
		}

		writer.WriteString(response + "\n> ")
		writer.Flush()
	}
	log.Info("session disconnected")
}
