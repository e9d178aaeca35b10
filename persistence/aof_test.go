package persistence

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mumpsdb/monitoring"
)

func TestAOFAppendAndReplay(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "commands.aof")

	w := NewAOFWriter(file, 100, monitoring.NewMetrics(), testLog())
	require.NoError(t, w.Start())

	records := []string{
		`SET ^P(1,"name")="John"`,
		`SET ^P(1,"age")=35`,
		"KILL ^P(1)",
	}
	for _, r := range records {
		w.Append(r)
	}
	w.Stop(5 * time.Second)

	var replayed []string
	err := Replay(file, monitoring.NewMetrics(), testLog(), func(record string) error {
		replayed = append(replayed, record)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, records, replayed)
}

func TestAOFReplaySkipsBadRecords(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "commands.aof")
	content := "SET ^A=1\nGARBAGE LINE\nSET ^B=2\n"
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))

	var replayed []string
	err := Replay(file, monitoring.NewMetrics(), testLog(), func(record string) error {
		if strings.HasPrefix(record, "GARBAGE") {
			return assert.AnError
		}
		replayed = append(replayed, record)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"SET ^A=1", "SET ^B=2"}, replayed)
}

func TestAOFReplayMissingFile(t *testing.T) {
	err := Replay(filepath.Join(t.TempDir(), "absent.aof"), monitoring.NewMetrics(), testLog(), func(string) error {
		t.Fatal("callback must not run for a missing file")
		return nil
	})
	assert.NoError(t, err)
}

func TestAOFTruncate(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "commands.aof")

	w := NewAOFWriter(file, 100, monitoring.NewMetrics(), testLog())
	require.NoError(t, w.Start())

	w.Append("SET ^A=1")
	// Give the writer goroutine a moment to drain
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(file)
		return err == nil && len(data) > 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, w.Truncate())
	w.Append("SET ^B=2")
	w.Stop(5 * time.Second)

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "SET ^B=2\n", string(data))
}

func TestAOFAppendAfterStopIsIgnored(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "commands.aof")

	w := NewAOFWriter(file, 10, monitoring.NewMetrics(), testLog())
	require.NoError(t, w.Start())
	w.Stop(time.Second)

	// Must not panic on a closed queue
	w.Append("SET ^A=1")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Empty(t, string(data))
}
