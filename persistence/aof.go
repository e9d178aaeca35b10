package persistence

import (
	"bufio"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"mumpsdb/monitoring"
)

// AOFWriter appends textual operation records to the append-only log. A
// single writer goroutine consumes a bounded queue; producers never block.
// I/O failures are logged and counted, never surfaced to clients — the
// in-memory store stays authoritative until the next snapshot.
type AOFWriter struct {
	path    string
	queue   chan string
	metrics *monitoring.Metrics
	log     *logrus.Entry

	mu      sync.Mutex // guards file replace during Truncate
	file    *os.File
	writer  *bufio.Writer
	running atomic.Bool
	done    chan struct{}
}

// NewAOFWriter creates a writer for the given log file
func NewAOFWriter(path string, queueSize int, metrics *monitoring.Metrics, log *logrus.Entry) *AOFWriter {
	if queueSize <= 0 {
		queueSize = 10000
	}
	return &AOFWriter{
		path:    path,
		queue:   make(chan string, queueSize),
		metrics: metrics,
		log:     log,
		done:    make(chan struct{}),
	}
}

// Start opens the log file and launches the writer goroutine
func (w *AOFWriter) Start() error {
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrap(err, "failed to open AOF file")
	}
	w.file = file
	w.writer = bufio.NewWriter(file)
	w.running.Store(true)

	go w.writeLoop()
	w.log.WithField("file", w.path).Info("AOF writer started")
	return nil
}

// Append enqueues one operation record. When the queue is full the record
// is dropped and counted; producers return immediately.
func (w *AOFWriter) Append(record string) {
	if !w.running.Load() {
		return
	}
	select {
	case w.queue <- record:
	default:
		w.metrics.AOFDropped.Inc()
		w.log.Warn("AOF queue full, dropping record")
	}
}

func (w *AOFWriter) writeLoop() {
	defer close(w.done)
	for record := range w.queue {
		w.mu.Lock()
		if _, err := w.writer.WriteString(record + "\n"); err != nil {
			w.metrics.AOFErrors.Inc()
			w.log.WithError(err).Error("AOF write failed")
			w.mu.Unlock()
			continue
		}
		if err := w.writer.Flush(); err != nil {
			w.metrics.AOFErrors.Inc()
			w.log.WithError(err).Error("AOF flush failed")
			w.mu.Unlock()
			continue
		}
		w.mu.Unlock()
		w.metrics.AOFAppended.Inc()
	}
}

// Stop drains the queue with a bounded timeout, then closes the file
func (w *AOFWriter) Stop(timeout time.Duration) {
	if !w.running.CompareAndSwap(true, false) {
		return
	}
	close(w.queue)

	select {
	case <-w.done:
	case <-time.After(timeout):
		w.log.Warn("AOF drain timed out, forcing shutdown")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writer != nil {
		if err := w.writer.Flush(); err != nil {
			w.metrics.AOFErrors.Inc()
			w.log.WithError(err).Error("final AOF flush failed")
		}
	}
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			w.log.WithError(err).Error("failed to close AOF file")
		}
	}
	w.log.Info("AOF writer stopped")
}

// Truncate resets the log. Called right before a snapshot is taken:
// records written between the truncate and the snapshot export land both
// in the log and in the snapshot, which replay-idempotent operations make
// harmless.
func (w *AOFWriter) Truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return os.Truncate(w.path, 0)
	}
	if err := w.writer.Flush(); err != nil {
		return errors.Wrap(err, "failed to flush before truncate")
	}
	if err := w.file.Truncate(0); err != nil {
		return errors.Wrap(err, "failed to truncate AOF file")
	}
	if _, err := w.file.Seek(0, 0); err != nil {
		return errors.Wrap(err, "failed to rewind AOF file")
	}
	w.writer.Reset(w.file)
	return nil
}

// Replay feeds every record of the log file to the callback. Records that
// fail are logged, counted and skipped; replay continues.
func Replay(path string, metrics *monitoring.Metrics, log *logrus.Entry, apply func(record string) error) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "failed to open AOF file for replay")
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	replayed := 0
	for scanner.Scan() {
		record := scanner.Text()
		if record == "" {
			continue
		}
		if err := apply(record); err != nil {
			metrics.AOFSkipped.Inc()
			log.WithError(err).WithField("record", record).Warn("skipping unreplayable AOF record")
			continue
		}
		metrics.AOFReplayed.Inc()
		replayed++
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "failed to read AOF file")
	}
	log.WithField("records", replayed).Info("AOF replay complete")
	return nil
}
