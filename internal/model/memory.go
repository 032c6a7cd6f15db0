// Package model defines the core memory data types.
package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Tier identifies the retention class that owns an item.
type Tier string

const (
	TierWorking   Tier = "working"
	TierShortTerm Tier = "short_term"
	TierLongTerm  Tier = "long_term"
	TierEpisodic  Tier = "episodic"
	TierSemantic  Tier = "semantic"
)

// AllTiers lists every tier in retrieval order.
var AllTiers = []Tier{TierWorking, TierShortTerm, TierLongTerm, TierEpisodic, TierSemantic}

// ValidTiers are the allowed tier names.
var ValidTiers = map[Tier]bool{
	TierWorking:   true,
	TierShortTerm: true,
	TierLongTerm:  true,
	TierEpisodic:  true,
	TierSemantic:  true,
}

var tierAliases = map[string]Tier{
	"working":    TierWorking,
	"short_term": TierShortTerm,
	"shortterm":  TierShortTerm,
	"short-term": TierShortTerm,
	"long_term":  TierLongTerm,
	"longterm":   TierLongTerm,
	"long-term":  TierLongTerm,
	"episodic":   TierEpisodic,
	"semantic":   TierSemantic,
}

// ParseTier accepts snake_case, kebab-case and camelCase tier names.
func ParseTier(s string) (Tier, bool) {
	t, ok := tierAliases[strings.ToLower(strings.TrimSpace(s))]
	return t, ok
}

// Content is the caller-supplied payload: either free text or a structured value.
type Content struct {
	Text string         `json:"text,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

// TextContent wraps a plain string.
func TextContent(s string) Content { return Content{Text: s} }

// StructuredContent wraps a structured value.
func StructuredContent(data map[string]any) Content { return Content{Data: data} }

// IsStructured reports whether the payload carries structured data.
func (c Content) IsStructured() bool { return c.Data != nil }

// String returns the normalized string view used by all text heuristics.
// Structured content renders as JSON with sorted keys.
func (c Content) String() string {
	if !c.IsStructured() {
		return c.Text
	}
	b, err := json.Marshal(c.Data)
	if err != nil {
		return c.Text
	}
	if c.Text != "" {
		return c.Text + " " + string(b)
	}
	return string(b)
}

// Item is the unit of storage.
type Item struct {
	ID             string         `json:"id"`
	Content        Content        `json:"content"`
	CreatedAt      time.Time      `json:"created_at"`
	LastAccessedAt time.Time      `json:"last_accessed_at"`
	Importance     float64        `json:"importance"`
	Tags           []string       `json:"tags,omitempty"`
	AccessCount    int            `json:"access_count"`
	Tier           Tier           `json:"tier"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Clone returns a deep-enough copy that callers can read without holding tier locks.
func (it *Item) Clone() *Item {
	if it == nil {
		return nil
	}
	c := *it
	if it.Tags != nil {
		c.Tags = append([]string(nil), it.Tags...)
	}
	if it.Content.Data != nil {
		c.Content.Data = make(map[string]any, len(it.Content.Data))
		for k, v := range it.Content.Data {
			c.Content.Data[k] = v
		}
	}
	if it.Metadata != nil {
		c.Metadata = make(map[string]any, len(it.Metadata))
		for k, v := range it.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// HasTag reports whether the item carries tag t.
func (it *Item) HasTag(t string) bool {
	for _, tag := range it.Tags {
		if tag == t {
			return true
		}
	}
	return false
}

// ScoredItem is a retrieval hit.
type ScoredItem struct {
	*Item
	Relevance float64 `json:"relevance"`
}
