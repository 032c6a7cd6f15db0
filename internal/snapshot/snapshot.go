// Package snapshot encodes the durable tiers into a single document.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rcliao/tiered-memory/internal/model"
)

// ErrCorrupt is returned when snapshot bytes cannot be decoded.
var ErrCorrupt = errors.New("corrupt snapshot")

// Entry is a (key, item) pair. It encodes as a two-element JSON array.
type Entry struct {
	Key  string
	Item *model.Item
}

func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{e.Key, e.Item})
}

func (e *Entry) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("entry: want 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &e.Key); err != nil {
		return fmt.Errorf("entry key: %w", err)
	}
	return json.Unmarshal(pair[1], &e.Item)
}

// Snapshot is the persisted layout of the long-term, semantic and episodic tiers.
type Snapshot struct {
	LongTermMemory []Entry       `json:"longTermMemory"`
	SemanticMemory []Entry       `json:"semanticMemory"`
	EpisodicMemory []*model.Item `json:"episodicMemory"`
	Timestamp      time.Time     `json:"timestamp"`
}

// Encode serializes s.
func Encode(s *Snapshot) ([]byte, error) {
	if s.LongTermMemory == nil {
		s.LongTermMemory = []Entry{}
	}
	if s.SemanticMemory == nil {
		s.SemanticMemory = []Entry{}
	}
	if s.EpisodicMemory == nil {
		s.EpisodicMemory = []*model.Item{}
	}
	return json.Marshal(s)
}

// Decode parses and validates snapshot bytes. Any failure wraps ErrCorrupt.
func Decode(b []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &s, nil
}

func (s *Snapshot) validate() error {
	for i, e := range s.LongTermMemory {
		if e.Item == nil || e.Key == "" || e.Item.ID == "" {
			return fmt.Errorf("longTermMemory[%d]: missing id or item", i)
		}
		if err := checkImportance(e.Item); err != nil {
			return fmt.Errorf("longTermMemory[%d]: %w", i, err)
		}
		if e.Key != e.Item.ID {
			return fmt.Errorf("longTermMemory[%d]: key %q does not match item id %q", i, e.Key, e.Item.ID)
		}
	}
	for i, e := range s.SemanticMemory {
		if e.Item == nil || e.Key == "" || e.Item.ID == "" {
			return fmt.Errorf("semanticMemory[%d]: missing key or item", i)
		}
		if err := checkImportance(e.Item); err != nil {
			return fmt.Errorf("semanticMemory[%d]: %w", i, err)
		}
	}
	for i, it := range s.EpisodicMemory {
		if it == nil || it.ID == "" {
			return fmt.Errorf("episodicMemory[%d]: missing item", i)
		}
		if err := checkImportance(it); err != nil {
			return fmt.Errorf("episodicMemory[%d]: %w", i, err)
		}
	}
	return nil
}

func checkImportance(it *model.Item) error {
	if math.IsNaN(it.Importance) || it.Importance < 0 || it.Importance > 1 {
		return fmt.Errorf("item %s: importance %v outside [0,1]", it.ID, it.Importance)
	}
	return nil
}

// Len returns the number of items across all collections.
func (s *Snapshot) Len() int {
	return len(s.LongTermMemory) + len(s.SemanticMemory) + len(s.EpisodicMemory)
}
