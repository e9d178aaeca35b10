package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mumpsdb/core"
)

func TestParseSet(t *testing.T) {
	cmd := Parse(`SET ^P(1,"name")="John"`)
	require.Equal(t, TypeSet, cmd.Type)
	assert.Equal(t, "^P", cmd.Name)
	require.Len(t, cmd.Path, 2)
	assert.Equal(t, core.KindInt, cmd.Path[0].Kind())
	assert.Equal(t, "name", cmd.Path[1].Str())
	assert.Equal(t, `"John"`, cmd.ValueText)
}

func TestParseSetAliasAndLocal(t *testing.T) {
	cmd := Parse("S node=1")
	require.Equal(t, TypeSet, cmd.Type)
	assert.Equal(t, "node", cmd.Name)
	assert.Empty(t, cmd.Path)
	assert.Equal(t, "1", cmd.ValueText)
}

func TestParseGetKill(t *testing.T) {
	cmd := Parse("GET ^A")
	require.Equal(t, TypeGet, cmd.Type)
	assert.Equal(t, "^A", cmd.Name)

	cmd = Parse(`g ^P(1,"age")`)
	require.Equal(t, TypeGet, cmd.Type)
	require.Len(t, cmd.Path, 2)

	cmd = Parse("KILL ^G(1)")
	require.Equal(t, TypeKill, cmd.Type)
	require.Len(t, cmd.Path, 1)
	assert.Equal(t, int64(1), cmd.Path[0].Int())

	cmd = Parse("K ^G")
	require.Equal(t, TypeKill, cmd.Type)
}

func TestParseQuery(t *testing.T) {
	cmd := Parse("QUERY ^G DEPTH 2")
	require.Equal(t, TypeQuery, cmd.Type)
	assert.Equal(t, "^G", cmd.Name)
	assert.Equal(t, 2, cmd.Depth)

	cmd = Parse("QUERY ^G(1)")
	require.Equal(t, TypeQuery, cmd.Type)
	assert.Equal(t, 0, cmd.Depth)
}

func TestParseWriteAndZWrite(t *testing.T) {
	cmd := Parse(`WRITE "x=",^G(1)`)
	require.Equal(t, TypeWrite, cmd.Type)
	assert.Equal(t, `"x=",^G(1)`, cmd.ValueText)

	cmd = Parse("ZW")
	require.Equal(t, TypeZWrite, cmd.Type)
	assert.Empty(t, cmd.Filter)

	cmd = Parse("zwrite ^G")
	require.Equal(t, TypeZWrite, cmd.Type)
	assert.Equal(t, "^G", cmd.Filter)
}

func TestParseSearches(t *testing.T) {
	cmd := Parse("FSEARCH foo")
	require.Equal(t, TypeFastSearch, cmd.Type)
	assert.Equal(t, "foo", cmd.ValueText)

	cmd = Parse("FS bar")
	require.Equal(t, TypeFastSearch, cmd.Type)
	assert.Equal(t, "bar", cmd.ValueText)

	cmd = Parse("EXACTSEARCH foo IN ^G")
	require.Equal(t, TypeExactSearch, cmd.Type)
	assert.Equal(t, "foo", cmd.ValueText)
	assert.Equal(t, "^G", cmd.Name)

	cmd = Parse("SIMSEARCH hello world TOP 5")
	require.Equal(t, TypeSimilaritySearch, cmd.Type)
	assert.Equal(t, "hello world", cmd.ValueText)
	assert.Equal(t, 5, cmd.TopK)

	cmd = Parse("SIMSEARCH foo IN ^G TOP 3")
	require.Equal(t, TypeSimilaritySearch, cmd.Type)
	assert.Equal(t, "^G", cmd.Name)
	assert.Equal(t, 3, cmd.TopK)
}

func TestParseKeywords(t *testing.T) {
	cases := map[string]Type{
		"TSTART":            TypeBeginTransaction,
		"BEGIN TRANSACTION": TypeBeginTransaction,
		"tcommit":           TypeCommit,
		"COMMIT":            TypeCommit,
		"ROLLBACK":          TypeRollback,
		"TROLLBACK":         TypeRollback,
		"STATS":             TypeStats,
		"$S":                TypeStats,
		"HELP":              TypeHelp,
		"EXIT":              TypeExit,
	}
	for input, want := range cases {
		cmd := Parse(input)
		assert.Equal(t, want, cmd.Type, "input %q", input)
	}
}

func TestParseErrors(t *testing.T) {
	assert.True(t, Parse("").IsError())
	assert.True(t, Parse("   ").IsError())
	assert.True(t, Parse("FROBNICATE ^G").IsError())
}

func TestParsePathQuoting(t *testing.T) {
	p := ParsePath(`1,"a,b",'c',2.5,bare`)
	require.Len(t, p, 5)
	assert.Equal(t, int64(1), p[0].Int())
	assert.Equal(t, "a,b", p[1].Str())
	assert.Equal(t, "c", p[2].Str())
	assert.Equal(t, core.KindFloat, p[3].Kind())
	assert.Equal(t, "bare", p[4].Str())
}

func TestParsePathEscapedQuote(t *testing.T) {
	p := ParsePath(`"say ""hi"""`)
	require.Len(t, p, 1)
	assert.Equal(t, `say "hi"`, p[0].Str())
}

func TestParsePathCanonicalizesNumbers(t *testing.T) {
	// Quoted integer text still canonicalizes to an integer subscript
	p := ParsePath(`"10"`)
	require.Len(t, p, 1)
	assert.Equal(t, core.KindInt, p[0].Kind())
	assert.Equal(t, int64(10), p[0].Int())
}
