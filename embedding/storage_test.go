package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mumpsdb/core"
	"mumpsdb/monitoring"
)

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	c := []float32{0, 1, 0}
	d := []float32{-1, 0, 0}

	assert.InDelta(t, 1.0, CosineSimilarity(a, b), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity(a, c), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity(a, d), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity(a, []float32{1, 2}), "mismatched dimensions yield 0")
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
}

func TestStorageNearest(t *testing.T) {
	st := NewStorage()
	p := func(i int64) core.Path { return core.Path{core.IntSubscript(i)} }

	st.Put("^A", p(1), core.StringValue("north"), []float32{1, 0})
	st.Put("^A", p(2), core.StringValue("east"), []float32{0, 1})
	st.Put("^B", p(1), core.StringValue("northish"), []float32{0.9, 0.1})

	query := []float32{1, 0}
	hits := st.Nearest(query, 10, "", 0.5)
	require.Len(t, hits, 2)
	assert.Equal(t, "north", hits[0].Value.Text())
	assert.Equal(t, "northish", hits[1].Value.Text())
	assert.True(t, hits[0].Similarity >= hits[1].Similarity)

	scoped := st.Nearest(query, 10, "^B", 0.5)
	require.Len(t, scoped, 1)
	assert.Equal(t, "^B", scoped[0].Global)

	topped := st.Nearest(query, 1, "", 0.0)
	assert.Len(t, topped, 1)

	none := st.Nearest(query, 10, "", math.Nextafter(1, 2))
	assert.Empty(t, none)
}

func TestStorageRemove(t *testing.T) {
	st := NewStorage()
	p := core.Path{core.IntSubscript(1)}

	st.Put("^A", p, core.StringValue("v"), []float32{1})
	st.Put("^B", p, core.StringValue("v"), []float32{1})
	require.Equal(t, 2, st.Count())

	st.Remove("^A", p)
	assert.Equal(t, 1, st.Count())

	st.RemoveGlobal("^B")
	assert.Equal(t, 0, st.Count())
}

func TestDisabledServiceDegradesToEmpty(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	svc := NewService(Config{Enabled: false}, monitoring.NewMetrics(), log.WithField("component", "embedding"))

	assert.False(t, svc.Enabled())
	assert.Equal(t, 0, svc.Count())

	hits, err := svc.SimilaritySearch(context.Background(), "query", 5, "")
	assert.NoError(t, err)
	assert.Empty(t, hits)

	// A nil service is a valid disabled collaborator
	var nilSvc *Service
	assert.False(t, nilSvc.Enabled())
}
