package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInsertAt(t *testing.T) {
	cases := map[string]InsertAt{
		"":      InsertTail,
		"tail":  InsertTail,
		"head":  InsertHead,
		"now":   InsertNow,
		"flush": InsertFlush,
		"bogus": InsertTail,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseInsertAt(in), "input %q", in)
	}
}

func TestInsertAtString(t *testing.T) {
	assert.Equal(t, "tail", InsertTail.String())
	assert.Equal(t, "head", InsertHead.String())
	assert.Equal(t, "now", InsertNow.String())
	assert.Equal(t, "flush", InsertFlush.String())
	assert.Equal(t, "unknown", InsertAt(99).String())
}

func TestParseCommand(t *testing.T) {
	raw := map[string]interface{}{
		"Application-Name": "playback",
		"Msg-ID":            "msg-1",
		"Call-ID":           "call-A",
		"Group-ID":          "g1",
		"Insert-At":         "head",
	}
	cmd := parseCommand(raw)
	require.Equal(t, "playback", cmd.ApplicationName)
	assert.Equal(t, "msg-1", cmd.MsgID)
	assert.Equal(t, "call-A", cmd.CallID)
	assert.Equal(t, "g1", cmd.GroupID)
	assert.Equal(t, InsertHead, cmd.Insert)
	assert.Equal(t, raw, cmd.Fields)
	assert.Equal(t, raw, cmd.Raw)
}

func TestParseCommandMissingApplicationName(t *testing.T) {
	cmd := parseCommand(map[string]interface{}{"Msg-ID": "msg-1"})
	assert.Equal(t, "", cmd.ApplicationName)
}

func TestIsNoopAndIsQueueBatch(t *testing.T) {
	assert.True(t, Command{ApplicationName: "noop"}.IsNoop())
	assert.False(t, Command{ApplicationName: "playback"}.IsNoop())
	assert.True(t, Command{ApplicationName: "queue"}.IsQueueBatch())
	assert.False(t, Command{ApplicationName: "noop"}.IsQueueBatch())
}

func TestFilterApplicationsBareNames(t *testing.T) {
	cmd := Command{Fields: map[string]interface{}{
		"Filter-Applications": []interface{}{"playback", "bridge"},
	}}
	specs := cmd.FilterApplications()
	require.Len(t, specs, 2)
	assert.Equal(t, "playback", specs[0].ApplicationName)
	assert.Equal(t, "bridge", specs[1].ApplicationName)
}

func TestFilterApplicationsWithFields(t *testing.T) {
	cmd := Command{Fields: map[string]interface{}{
		"Filter-Applications": []interface{}{
			map[string]interface{}{
				"application_name": "playback",
				"fields": map[string]interface{}{
					"Group-ID": "g1",
				},
			},
		},
	}}
	specs := cmd.FilterApplications()
	require.Len(t, specs, 1)
	assert.Equal(t, "playback", specs[0].ApplicationName)
	assert.Equal(t, "g1", specs[0].Fields["Group-ID"])
}

func TestFilterApplicationsAbsent(t *testing.T) {
	assert.Nil(t, Command{}.FilterApplications())
	assert.Nil(t, Command{Fields: map[string]interface{}{}}.FilterApplications())
}

func TestExplodeBatchMergesDefaults(t *testing.T) {
	raw := map[string]interface{}{
		"Application-Name": "queue",
		"Call-ID":           "call-A",
		"Group-ID":          "g1",
		"Commands": []interface{}{
			map[string]interface{}{"Application-Name": "playback", "Msg-ID": "m1"},
			map[string]interface{}{"Application-Name": "hangup", "Msg-ID": "m2", "Group-ID": "g2"},
		},
	}
	batch := parseCommand(raw)
	require.True(t, batch.IsQueueBatch())

	children := explodeBatch(batch)
	require.Len(t, children, 2)

	assert.Equal(t, "playback", children[0].ApplicationName)
	assert.Equal(t, "call-A", children[0].CallID)
	assert.Equal(t, "g1", children[0].GroupID)
	assert.Equal(t, "m1", children[0].MsgID)

	assert.Equal(t, "hangup", children[1].ApplicationName)
	assert.Equal(t, "call-A", children[1].CallID)
	// child's own Group-ID overrides the batch default.
	assert.Equal(t, "g2", children[1].GroupID)
	assert.Equal(t, "m2", children[1].MsgID)
}

func TestExplodeBatchEmptyCommands(t *testing.T) {
	batch := parseCommand(map[string]interface{}{
		"Application-Name": "queue",
		"Call-ID":           "call-A",
	})
	assert.Empty(t, explodeBatch(batch))
}
