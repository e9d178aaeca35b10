package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLog() *logrus.Entry {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log.WithField("component", "test")
}

func TestShutdownRunsInPriorityOrder(t *testing.T) {
	m := NewManager(5*time.Second, testLog())

	var order []string
	m.Register("third", 3, func(ctx context.Context) error {
		order = append(order, "third")
		return nil
	})
	m.Register("first", 1, func(ctx context.Context) error {
		order = append(order, "first")
		return nil
	})
	m.Register("second", 2, func(ctx context.Context) error {
		order = append(order, "second")
		return nil
	})

	m.Shutdown()
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestShutdownRunsOnce(t *testing.T) {
	m := NewManager(5*time.Second, testLog())

	count := 0
	m.Register("counter", 1, func(ctx context.Context) error {
		count++
		return nil
	})

	m.Shutdown()
	m.Shutdown()
	assert.Equal(t, 1, count)
}

func TestShutdownContinuesPastFailures(t *testing.T) {
	m := NewManager(5*time.Second, testLog())

	ran := false
	m.Register("failing", 1, func(ctx context.Context) error {
		return errors.New("boom")
	})
	m.Register("after", 2, func(ctx context.Context) error {
		ran = true
		return nil
	})

	m.Shutdown()
	assert.True(t, ran, "a failing step must not stop the remaining steps")
}

func TestWaitUnblocksAfterShutdown(t *testing.T) {
	m := NewManager(5*time.Second, testLog())

	done := make(chan struct{})
	go func() {
		m.Wait()
		close(done)
	}()

	m.Shutdown()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not unblock after Shutdown")
	}
}

func TestStartupAbortsOnFirstFailure(t *testing.T) {
	m := NewStartupManager(5*time.Second, testLog())

	var order []string
	m.Register("ok", 1, func(ctx context.Context) error {
		order = append(order, "ok")
		return nil
	})
	m.Register("failing", 2, func(ctx context.Context) error {
		return errors.New("boom")
	})
	m.Register("never", 3, func(ctx context.Context) error {
		order = append(order, "never")
		return nil
	})

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"ok"}, order)
}
