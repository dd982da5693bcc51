package reasoning

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"time"

	"github.com/firebase/genkit/go/ai"
	"google.golang.org/genai"
)

// VectorDimension is the embedding dimensionality shared with the
// reasoning_chains.last_embedding column.
const VectorDimension int32 = 768

// embedTimeout bounds a single embedding call so a slow embedding API
// cannot stall a think request indefinitely.
const embedTimeout = 10 * time.Second

// Embedder is the subset of Genkit's ai.Embedder the deduplicator needs.
// Interfaces are defined by the consumer; tests supply a fake.
type Embedder interface {
	Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error)
}

// contradictionPattern matches whole-word contrast markers. A thought
// carrying one is always appended, never merged: collapsing a correction
// into the statement it corrects would destroy the reasoning trail.
var contradictionPattern = regexp.MustCompile(`(?i)\b(however|but|actually|wait|no)\b`)

// ContainsContradiction reports whether text carries a contrast marker.
func ContainsContradiction(text string) bool {
	return contradictionPattern.MatchString(text)
}

// Decision is the deduplicator's verdict for a candidate append.
type Decision struct {
	// Merge is true when the candidate should be folded into the last
	// thought instead of creating a new entry.
	Merge bool

	// Similarity is the computed score against the last thought.
	// Zero when the chain was empty.
	Similarity float64

	// CandidateEmbedding is the candidate text's embedding, when one was
	// computed. The engine caches it on the chain so the next append
	// does not re-embed.
	CandidateEmbedding []float32
}

// Deduplicator decides whether an incoming thought duplicates the chain's
// most recent entry.
//
// With an embedder configured it scores cosine similarity over normalized
// embeddings; without one (or when embedding fails) it falls back to
// Jaccard similarity over lowercased word sets.
type Deduplicator struct {
	embedder  Embedder // nil enables the lexical fallback permanently
	threshold float64
	logger    *slog.Logger
}

// NewDeduplicator creates a Deduplicator. A nil embedder selects the
// lexical fallback; threshold <= 0 selects the default.
func NewDeduplicator(embedder Embedder, threshold float64, logger *slog.Logger) *Deduplicator {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Deduplicator{embedder: embedder, threshold: threshold, logger: logger}
}

// Evaluate scores candidate text against the last thought of a chain.
//
// last may be nil (empty chain): no merge is possible, but the candidate
// is still embedded so its vector can be cached and fingerprinted.
// lastEmbedding, when non-nil, is the cached vector for last.Text and
// saves one embedding call.
func (d *Deduplicator) Evaluate(ctx context.Context, last *Thought, lastEmbedding []float32, candidate string) Decision {
	decision := Decision{}

	if d.embedder != nil {
		vec, err := d.embed(ctx, candidate)
		if err != nil {
			d.logger.Warn("embedding candidate thought failed, using lexical similarity",
				"error", err)
		} else {
			decision.CandidateEmbedding = vec
		}
	}

	if last == nil {
		return decision
	}

	if ContainsContradiction(candidate) {
		return decision
	}

	decision.Similarity = d.similarity(ctx, last, lastEmbedding, decision.CandidateEmbedding, candidate)
	decision.Merge = decision.Similarity > d.threshold
	return decision
}

// similarity computes the score between the last thought and the candidate,
// preferring embeddings and degrading to Jaccard.
func (d *Deduplicator) similarity(ctx context.Context, last *Thought, lastEmbedding, candidateEmbedding []float32, candidate string) float64 {
	if candidateEmbedding != nil {
		lastVec := lastEmbedding
		if lastVec == nil {
			vec, err := d.embed(ctx, last.Text)
			if err != nil {
				d.logger.Warn("embedding previous thought failed, using lexical similarity",
					"error", err)
				return Jaccard(last.Text, candidate)
			}
			lastVec = vec
		}
		return Cosine(lastVec, candidateEmbedding)
	}

	return Jaccard(last.Text, candidate)
}

// embed generates a vector embedding for the given text.
func (d *Deduplicator) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	dim := VectorDimension
	resp, err := d.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, errEmptyEmbedding
	}
	return resp.Embeddings[0].Embedding, nil
}

var errEmptyEmbedding = errors.New("empty embedding response")
