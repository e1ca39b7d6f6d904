package vector

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeTag(t *testing.T) {
	assert.Equal(t, `resume\:abc123`, escapeTag("resume:abc123"))
	assert.Equal(t, `a\-b\.c_d`, escapeTag("a-b.c_d"))
	assert.Equal(t, "plain", escapeTag("plain"))
}

func TestParseSearchReply(t *testing.T) {
	reply := []interface{}{
		int64(2),
		"cvsearch:cv:chunk-1",
		[]interface{}{"dist", "0.25", "text", "go developer", "document_id", "resume:1", "source_path", "/cv/a.pdf"},
		"cvsearch:cv:chunk-2",
		[]interface{}{"dist", "0.5", "text", "rust", "document_id", "resume:2", "source_path", "/cv/b.pdf"},
	}
	matches, err := parseSearchReply(reply, redisKeyPrefix("cv"))
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "chunk-1", matches[0].ID)
	assert.InDelta(t, 0.75, matches[0].Similarity, 1e-9)
	assert.Equal(t, "go developer", matches[0].Text)
	assert.Equal(t, "resume:1", matches[0].DocumentID)
	assert.Equal(t, "/cv/a.pdf", matches[0].SourcePath)
	assert.InDelta(t, 0.5, matches[1].Similarity, 1e-9)
}

func TestParseSearchReply_Empty(t *testing.T) {
	matches, err := parseSearchReply([]interface{}{int64(0)}, "p:")
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = parseSearchReply("oops", "p:")
	assert.Error(t, err)

	_, err = parseSearchReply([]interface{}{int64(1), "k", []interface{}{"dist", "x"}}, "p:")
	assert.Error(t, err)
}

func TestParseKeysReply(t *testing.T) {
	keys, err := parseKeysReply([]interface{}{int64(2), "cvsearch:cv:a", "cvsearch:cv:b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"cvsearch:cv:a", "cvsearch:cv:b"}, keys)

	keys, err = parseKeysReply([]interface{}{})
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestIsUnknownIndex(t *testing.T) {
	assert.True(t, isUnknownIndex(errors.New("Unknown Index name")))
	assert.True(t, isUnknownIndex(errors.New("cv: no such index")))
	assert.False(t, isUnknownIndex(errors.New("connection refused")))
	assert.False(t, isUnknownIndex(nil))
}
