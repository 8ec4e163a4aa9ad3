package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrameJSON(t *testing.T) {
	f, err := ParseFrameJSON([]byte(`{"event":"joinRoom","data":{"roomId":"r1"}}`))
	require.NoError(t, err)
	assert.Equal(t, EvtJoinRoom, f.Event)

	_, err = ParseFrameJSON([]byte(`{"data":{}}`))
	assert.Error(t, err, "event is mandatory")

	_, err = ParseFrameJSON([]byte(`not json`))
	assert.Error(t, err)
}

func TestContentRichPassthrough(t *testing.T) {
	rich := json.RawMessage(`{"blocks":[{"t":"img","src":"/x.png"}]}`)
	kind, body := encodeContent(Content{Kind: "rich", Rich: rich})
	assert.Equal(t, "rich", kind)

	got := decodeContent(kind, body)
	assert.Equal(t, "rich", got.Kind)
	assert.JSONEq(t, string(rich), string(got.Rich), "rich payloads are relayed opaquely")
}

func TestContentTextDefault(t *testing.T) {
	kind, body := encodeContent(TextContent("hello"))
	assert.Equal(t, "text", kind)
	assert.Equal(t, "hello", body)

	// Unknown kinds fall back to text so old clients stay readable.
	kind, body = encodeContent(Content{Text: "bare"})
	assert.Equal(t, "text", kind)
	assert.Equal(t, "bare", body)
}
