package persistence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mumpsdb/core"
	"mumpsdb/monitoring"
)

func testLog() *logrus.Entry {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log.WithField("component", "test")
}

func populate(t *testing.T, store *core.Store) {
	t.Helper()
	require.NoError(t, store.Set("^A", nil, core.IntValue(1)))
	require.NoError(t, store.Set("^P", core.Path{core.IntSubscript(1), core.StringSubscript("name")}, core.StringValue("John")))
	require.NoError(t, store.Set("^P", core.Path{core.IntSubscript(1), core.StringSubscript("age")}, core.IntValue(35)))
	require.NoError(t, store.Set("^F", core.Path{core.FloatSubscript(1.5)}, core.FloatValue(2.25)))
	require.NoError(t, store.Set("^S", core.Path{core.StringSubscript("q")}, core.StringValue(`say "hi"`)))
}

func dump(t *testing.T, store *core.Store) map[string][]string {
	t.Helper()
	out := make(map[string][]string)
	for _, name := range store.GlobalNames() {
		nodes, err := store.DumpGlobal(name, nil)
		require.NoError(t, err)
		for _, pv := range nodes {
			out[name] = append(out[name], pv.Path.ZWrite()+"="+pv.Value.ZWrite())
		}
	}
	return out
}

func TestSnapshotRoundTrip(t *testing.T) {
	for _, codec := range []string{"none", "gzip", "snappy", "lz4", "zstd"} {
		t.Run(codec, func(t *testing.T) {
			dir := t.TempDir()
			file := filepath.Join(dir, "database.snapshot")

			src := core.NewStore(nil)
			populate(t, src)

			svc, err := NewSnapshotService(src, file, codec, monitoring.NewMetrics(), testLog())
			require.NoError(t, err)
			require.NoError(t, svc.Save())

			dst := core.NewStore(nil)
			restored, err := NewSnapshotService(dst, file, codec, monitoring.NewMetrics(), testLog())
			require.NoError(t, err)
			require.NoError(t, restored.Load())

			assert.Equal(t, src.GlobalNames(), dst.GlobalNames())
			assert.Equal(t, dump(t, src), dump(t, dst))

			// Type tags survive the round trip
			v, err := dst.Get("^A", nil)
			require.NoError(t, err)
			assert.Equal(t, core.KindInt, v.Kind())
			v, err = dst.Get("^F", core.Path{core.FloatSubscript(1.5)})
			require.NoError(t, err)
			assert.Equal(t, core.KindFloat, v.Kind())
		})
	}
}

func TestSnapshotLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	store := core.NewStore(nil)
	svc, err := NewSnapshotService(store, filepath.Join(dir, "absent.snapshot"), "gzip", monitoring.NewMetrics(), testLog())
	require.NoError(t, err)
	require.NoError(t, svc.Load())
	assert.Empty(t, store.GlobalNames())
}

func TestSnapshotRejectsBadHeader(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "bad.snapshot")
	require.NoError(t, os.WriteFile(file, []byte("not a snapshot"), 0o644))

	store := core.NewStore(nil)
	svc, err := NewSnapshotService(store, file, "gzip", monitoring.NewMetrics(), testLog())
	require.NoError(t, err)
	assert.Error(t, svc.Load())
}

func TestSnapshotUnknownCodecRejected(t *testing.T) {
	_, err := NewSnapshotService(core.NewStore(nil), "x", "brotli", monitoring.NewMetrics(), testLog())
	assert.Error(t, err)
}

func TestSnapshotOverwriteKeepsLatestState(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "database.snapshot")

	store := core.NewStore(nil)
	svc, err := NewSnapshotService(store, file, "gzip", monitoring.NewMetrics(), testLog())
	require.NoError(t, err)

	require.NoError(t, store.Set("^A", nil, core.IntValue(1)))
	require.NoError(t, svc.Save())
	require.NoError(t, store.Set("^A", nil, core.IntValue(2)))
	require.NoError(t, svc.Save())

	dst := core.NewStore(nil)
	restored, err := NewSnapshotService(dst, file, "gzip", monitoring.NewMetrics(), testLog())
	require.NoError(t, err)
	require.NoError(t, restored.Load())

	v, err := dst.Get("^A", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.Int())
}
