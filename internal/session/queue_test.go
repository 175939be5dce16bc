package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandQueuePushPop(t *testing.T) {
	q := NewCommandQueue()
	q.PushTail(Command{ApplicationName: "a"})
	q.PushTail(Command{ApplicationName: "b"})
	q.PushHead(Command{ApplicationName: "z"})

	require.Equal(t, 3, q.Len())

	c, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "z", c.ApplicationName)

	c, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, "a", c.ApplicationName)

	c, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, "b", c.ApplicationName)

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestCommandQueueDropsCommandsWithNoApplicationName(t *testing.T) {
	q := NewCommandQueue()
	q.PushTail(Command{})
	q.PushHead(Command{})
	assert.True(t, q.IsEmpty())
}

func TestCommandQueueFlush(t *testing.T) {
	q := NewCommandQueue()
	q.PushTail(Command{ApplicationName: "a"})
	q.PushTail(Command{ApplicationName: "b"})
	q.Flush()
	assert.True(t, q.IsEmpty())
	assert.Equal(t, 0, q.Len())
}

// P4: ingesting a batch at tail is observationally equivalent to ingesting
// its elements individually at tail.
func TestCommandQueueBatchEquivalence(t *testing.T) {
	individual := NewCommandQueue()
	individual.PushTail(parseCommand(map[string]interface{}{"Application-Name": "playback", "Msg-ID": "1"}))
	individual.PushTail(parseCommand(map[string]interface{}{"Application-Name": "playback", "Msg-ID": "2"}))
	individual.PushTail(parseCommand(map[string]interface{}{"Application-Name": "hangup", "Msg-ID": "3"}))

	batch := NewCommandQueue()
	for _, cmd := range explodeBatch(parseCommand(map[string]interface{}{
		"Application-Name": "queue",
		"Commands": []interface{}{
			map[string]interface{}{"Application-Name": "playback", "Msg-ID": "1"},
			map[string]interface{}{"Application-Name": "playback", "Msg-ID": "2"},
			map[string]interface{}{"Application-Name": "hangup", "Msg-ID": "3"},
		},
	})) {
		batch.PushTail(cmd)
	}

	assert.Equal(t, individual.Snapshot(), batch.Snapshot())
}
