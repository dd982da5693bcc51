package reasoning

import (
	"encoding/hex"
	"hash/fnv"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Default chain limits. Overridable via engine Config.
const (
	DefaultMaxDepth    = 100
	DefaultTokenBudget = 50000

	// DefaultSimilarityThreshold is the cosine/Jaccard score above which
	// an appended thought is merged into the previous one.
	DefaultSimilarityThreshold = 0.92
)

// defaultConfidence is assigned to every new thought. There is no learned
// confidence estimation; the field exists for forward extensibility.
const defaultConfidence = 0.95

// fingerprintLen is the hex length of a semantic fingerprint.
const fingerprintLen = 16

// Thought is one entry in a reasoning chain.
//
// JSON field names define the persisted layout shared by both storage
// backends, so a chain written by one backend loads from the other.
type Thought struct {
	// Step is the entry's position at creation time, assigned as the
	// chain length at append time. Never renumbered afterwards.
	Step int `json:"step"`

	// Text is the reasoning content. Non-empty after trimming.
	Text string `json:"text"`

	// Timestamp is unix seconds, set at creation and refreshed on merge
	// or revise.
	Timestamp int64 `json:"timestamp"`

	// ID is assigned at creation and immutable.
	ID uuid.UUID `json:"uuid"`

	// Fingerprint is a short digest of the text, kept for dedup
	// bookkeeping. Not used for equality checks.
	Fingerprint string `json:"semantic_id"`

	Confidence float64 `json:"confidence"`

	// Parent is the index this thought was branched from. Present only
	// on branch-created thoughts.
	Parent *int `json:"parent,omitempty"`
}

// Tokens returns the thought's whitespace token count.
func (t *Thought) Tokens() int {
	return TokenCount(t.Text)
}

// Chain is the full ordered sequence of thoughts for one session.
type Chain struct {
	Thoughts []Thought

	// LastEmbedding caches the embedding vector of the newest thought so
	// the next dedup check does not re-embed it. Only the primary
	// backend persists it; loads from the file mirror leave it nil.
	LastEmbedding []float32
}

// NewChain returns an empty chain.
func NewChain() *Chain {
	return &Chain{}
}

// Len returns the number of thoughts.
func (c *Chain) Len() int {
	return len(c.Thoughts)
}

// Last returns the most recent thought, or nil for an empty chain.
func (c *Chain) Last() *Thought {
	if len(c.Thoughts) == 0 {
		return nil
	}
	return &c.Thoughts[len(c.Thoughts)-1]
}

// TokenCount returns the cumulative token count across all thoughts.
func (c *Chain) TokenCount() int {
	total := 0
	for i := range c.Thoughts {
		total += c.Thoughts[i].Tokens()
	}
	return total
}

// sortBySteps orders thoughts by step ascending. Backends call this after
// loading because storage order is not guaranteed to match step order.
func (c *Chain) sortBySteps() {
	sort.SliceStable(c.Thoughts, func(i, j int) bool {
		return c.Thoughts[i].Step < c.Thoughts[j].Step
	})
}

// TokenCount counts whitespace-separated words. This is the engine's token
// approximation everywhere budgets are enforced.
func TokenCount(text string) int {
	return len(strings.Fields(text))
}

// fingerprintText derives a fingerprint from raw text. Used when no
// embedding is available.
func fingerprintText(text string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)[:fingerprintLen]
}

// fingerprintVector derives a fingerprint from an embedding's sign bits,
// so semantically close texts tend to share a prefix.
func fingerprintVector(vec []float32) string {
	if len(vec) == 0 {
		return ""
	}

	packed := make([]byte, (len(vec)+7)/8)
	for i, v := range vec {
		if v > 0 {
			packed[i/8] |= 1 << (7 - i%8)
		}
	}

	s := hex.EncodeToString(packed)
	if len(s) > fingerprintLen {
		s = s[:fingerprintLen]
	}
	return s
}
