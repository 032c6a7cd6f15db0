package snapshot

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/tiered-memory/internal/model"
)

func TestEncodeEmptyCollections(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b, err := Encode(&Snapshot{Timestamp: ts})
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.JSONEq(t, `[]`, string(raw["longTermMemory"]))
	assert.JSONEq(t, `[]`, string(raw["semanticMemory"]))
	assert.JSONEq(t, `[]`, string(raw["episodicMemory"]))
	assert.JSONEq(t, `"2026-03-01T12:00:00Z"`, string(raw["timestamp"]))
}

func TestEntryEncodesAsPair(t *testing.T) {
	e := Entry{Key: "k", Item: &model.Item{ID: "01A", Content: model.TextContent("x")}}
	b, err := json.Marshal(e)
	require.NoError(t, err)

	var pair []json.RawMessage
	require.NoError(t, json.Unmarshal(b, &pair))
	require.Len(t, pair, 2)
	assert.JSONEq(t, `"k"`, string(pair[0]))

	var back Entry
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, "k", back.Key)
	assert.Equal(t, "01A", back.Item.ID)
	assert.Equal(t, "x", back.Item.Content.Text)
}

func TestRoundTrip(t *testing.T) {
	lt := &model.Item{ID: "L1", Content: model.TextContent("kept"), Importance: 0.9, Tier: model.TierLongTerm}
	sem := &model.Item{ID: "S1", Content: model.StructuredContent(map[string]any{"k": "v"}), Tier: model.TierSemantic}
	ep := &model.Item{ID: "E1", Content: model.TextContent("went out"), Tags: []string{"time"}, Tier: model.TierEpisodic}

	in := &Snapshot{
		LongTermMemory: []Entry{{Key: lt.ID, Item: lt}},
		SemanticMemory: []Entry{{Key: "kept-key", Item: sem}},
		EpisodicMemory: []*model.Item{ep},
		Timestamp:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	b, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Len())
	assert.Equal(t, in.Timestamp, out.Timestamp)
	assert.Equal(t, "kept-key", out.SemanticMemory[0].Key)
	assert.Equal(t, map[string]any{"k": "v"}, out.SemanticMemory[0].Item.Content.Data)
	assert.Equal(t, []string{"time"}, out.EpisodicMemory[0].Tags)
	assert.Equal(t, 0.9, out.LongTermMemory[0].Item.Importance)
}

func TestDecodeCorrupt(t *testing.T) {
	tests := map[string]string{
		"not json":          `{"longTermMemory":`,
		"wrong shape":       `{"longTermMemory":{"a":1}}`,
		"short entry":       `{"longTermMemory":[["only-key"]]}`,
		"null item":         `{"longTermMemory":[["a",null]]}`,
		"key mismatch":      `{"longTermMemory":[["a",{"id":"b"}]]}`,
		"semantic no key":   `{"semanticMemory":[["",{"id":"b"}]]}`,
		"episodic no id":    `{"episodicMemory":[{"content":{"text":"x"}}]}`,
		"non-string key":    `{"semanticMemory":[[7,{"id":"b"}]]}`,
		"episodic nil item": `{"episodicMemory":[null]}`,
		"importance range":  `{"longTermMemory":[["a",{"id":"a","importance":1.5}]]}`,
		"negative semantic": `{"semanticMemory":[["k",{"id":"b","importance":-0.1}]]}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCorrupt), "got %v", err)
		})
	}
}

func TestDecodeToleratesMissingCollections(t *testing.T) {
	s, err := Decode([]byte(`{"timestamp":"2026-03-01T00:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}
