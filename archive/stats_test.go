package archive

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	long := strings.Repeat("x", 40)
	raws, err := Decode([]byte(`[
		{"uuid": "a", "name": "one", "chat_messages": [{"sender": "human", "text": "hi"}]},
		{"uuid": "b", "name": "empty", "chat_messages": []},
		{"uuid": "c", "name": "images", "chat_messages": [
			{"sender": "human", "content": [{"type": "image"}]},
			{"sender": "assistant", "content": [{"type": "image"}]}
		]},
		{"uuid": "d", "name": "broken", "chat_messages": "nope"},
		{"uuid": "e", "name": "big", "chat_messages": [
			{"sender": "human", "text": "` + long + `"},
			{"sender": "assistant", "text": "a"},
			{"sender": "human", "text": "b"}
		]}
	]`))
	require.NoError(t, err)

	nz := newTestNormalizer(t, WithMaxChars(20))
	summary := nz.Summarize(raws, 2)

	assert.Equal(t, 5, summary.Conversations)
	assert.Equal(t, 6, summary.Messages)
	assert.Equal(t, 2, summary.Importable)
	assert.Equal(t, 1, summary.Truncated)
	assert.Equal(t, 1, summary.NoMessages)
	assert.Equal(t, 1, summary.NoText)
	assert.Equal(t, 1, summary.Malformed)

	require.Len(t, summary.Largest, 2)
	assert.Equal(t, "e", summary.Largest[0].ID)
	assert.Equal(t, 3, summary.Largest[0].Messages)
	assert.Equal(t, "c", summary.Largest[1].ID)
	assert.Equal(t, "images", summary.Largest[1].Title)
}

func TestSummarize_Empty(t *testing.T) {
	nz := newTestNormalizer(t)
	summary := nz.Summarize(nil, 10)
	assert.Equal(t, 0, summary.Conversations)
	assert.Empty(t, summary.Largest)
}
