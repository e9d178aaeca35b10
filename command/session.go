package command

import (
	"github.com/google/uuid"

	"mumpsdb/core"
)

// Session is the per-connection REPL state: local variables and the
// active transaction. Sessions are confined to a single connection's
// goroutine and never shared.
type Session struct {
	ID     string
	locals map[string]core.Value
	tx     *core.Transaction
}

// NewSession creates a fresh session
func NewSession() *Session {
	return &Session{
		ID:     uuid.NewString(),
		locals: make(map[string]core.Value),
	}
}

// Local returns the value of a local variable
func (s *Session) Local(name string) (core.Value, bool) {
	v, ok := s.locals[name]
	return v, ok
}

// SetLocal binds a local variable
func (s *Session) SetLocal(name string, v core.Value) {
	s.locals[name] = v
}

// Transaction returns the active transaction, or nil
func (s *Session) Transaction() *core.Transaction {
	return s.tx
}

// InTransaction reports whether a transaction is active
func (s *Session) InTransaction() bool {
	return s.tx != nil
}
