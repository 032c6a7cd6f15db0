// Package analyzer holds the pure text heuristics used to classify and score memories.
package analyzer

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

const (
	// DefaultKeywordCount is how many keywords make up a derived key.
	DefaultKeywordCount = 5

	// MinTermLength is the shortest query term that counts toward overlap.
	MinTermLength = 3

	baseImportance = 0.5
)

// Tag names produced by Tags.
const (
	TagQuestion = "question"
	TagTask     = "task"
	TagFact     = "fact"
	TagEmotion  = "emotion"
	TagTime     = "time"
	TagLocation = "location"
)

var (
	questionPattern = regexp.MustCompile(`(?i)\?|^\s*(who|what|when|where|why|how|which|is|are|can|does|do)\b`)
	taskPattern     = regexp.MustCompile(`(?i)\b(todo|to-do|task|need to|must|should|remind me|deadline|don't forget)\b`)
	factPattern     = regexp.MustCompile(`(?i)\b(is|are|was|were|means|refers to|defined as|definition|equals|consists of|known as)\b`)
	emotionPattern  = regexp.MustCompile(`(?i)\b(happy|sad|angry|love|hate|afraid|excited|worried|anxious|glad|upset|feel|feeling|felt)\b`)
	timePattern     = regexp.MustCompile(`(?i)\b(today|tomorrow|yesterday|tonight|morning|afternoon|evening|monday|tuesday|wednesday|thursday|friday|saturday|sunday|last (week|month|year|night)|next (week|month|year)|\d{1,2}:\d{2})\b`)
	locationPattern = regexp.MustCompile(`(?i)\b(at home|at work|in the office|located|location|city|street|address|country|where)\b`)
	episodePattern  = regexp.MustCompile(`(?i)\b(yesterday|today|tonight|this morning|last (week|month|year|night)|happened|i (went|saw|met|did|visited|had|was)|we (went|saw|met|did|visited|had|were)|when i|experience|event)\b`)
	cuePattern      = regexp.MustCompile(`(?i)\b(important|critical|urgent|remember|never|always|must|key|essential|password|deadline)\b`)
)

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true, "not": true,
	"you": true, "all": true, "any": true, "can": true, "had": true, "her": true,
	"was": true, "one": true, "our": true, "out": true, "has": true, "have": true,
	"his": true, "how": true, "its": true, "may": true, "new": true, "now": true,
	"old": true, "see": true, "two": true, "who": true, "did": true, "she": true,
	"use": true, "way": true, "that": true, "this": true, "with": true, "from": true,
	"they": true, "will": true, "would": true, "there": true, "their": true,
	"what": true, "about": true, "which": true, "when": true, "were": true,
	"been": true, "into": true, "than": true, "then": true, "them": true,
	"these": true, "some": true, "what's": true, "where": true, "your": true,
	"also": true, "just": true, "very": true,
}

// Words lowercases s and splits it on anything that is not a letter or digit.
func Words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Terms returns the distinct query terms of s, keeping words of MinTermLength or more.
func Terms(s string) []string {
	seen := map[string]bool{}
	var out []string
	for _, w := range Words(s) {
		if len([]rune(w)) < MinTermLength || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// WordSet returns the set of all words in s.
func WordSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, w := range Words(s) {
		set[w] = true
	}
	return set
}

// Keywords returns up to n content keywords ordered by frequency, then first occurrence.
func Keywords(s string, n int) []string {
	counts := map[string]int{}
	first := map[string]int{}
	for i, w := range Words(s) {
		if len([]rune(w)) < MinTermLength || stopWords[w] {
			continue
		}
		if _, ok := first[w]; !ok {
			first[w] = i
		}
		counts[w]++
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return first[words[i]] < first[words[j]]
	})
	if n > 0 && len(words) > n {
		words = words[:n]
	}
	return words
}

// DerivedKey is the semantic dedup key: the top keywords, sorted and joined.
// Returns "" when s has no keywords.
func DerivedKey(s string) string {
	kw := Keywords(s, DefaultKeywordCount)
	sort.Strings(kw)
	return strings.Join(kw, "-")
}

// Tags returns the pattern tags matched by s, in a fixed order.
func Tags(s string) []string {
	var tags []string
	if questionPattern.MatchString(s) {
		tags = append(tags, TagQuestion)
	}
	if taskPattern.MatchString(s) {
		tags = append(tags, TagTask)
	}
	if factPattern.MatchString(s) {
		tags = append(tags, TagFact)
	}
	if emotionPattern.MatchString(s) {
		tags = append(tags, TagEmotion)
	}
	if timePattern.MatchString(s) {
		tags = append(tags, TagTime)
	}
	if locationPattern.MatchString(s) {
		tags = append(tags, TagLocation)
	}
	return tags
}

// IsFactual reports whether s reads like a fact or definition.
func IsFactual(s string) bool {
	return factPattern.MatchString(s) && !questionPattern.MatchString(s)
}

// IsEpisodic reports whether s reads like an experience or event.
func IsEpisodic(s string) bool {
	return episodePattern.MatchString(s)
}

// Importance estimates a [0,1] importance from length, keyword cues and structure.
func Importance(s string, structured bool) float64 {
	score := baseImportance
	switch n := len(s); {
	case n > 500:
		score += 0.2
	case n > 100:
		score += 0.1
	case n < 10:
		score -= 0.1
	}
	if cuePattern.MatchString(s) {
		score += 0.2
	}
	if structured {
		score += 0.1
	}
	return Clamp(score)
}

// Clamp bounds v to [0,1]. NaN maps to 0.
func Clamp(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
