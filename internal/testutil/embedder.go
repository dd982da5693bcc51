package testutil

import (
	"context"
	"crypto/sha256"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
)

// FakeEmbedder is an in-process embedder for tests. Vectors are a
// deterministic function of the input text unless pinned with SetVector,
// so tests control similarity outcomes without a live embedding API.
//
// FakeEmbedder is safe for concurrent use.
type FakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	err     error
	calls   int
}

// NewFakeEmbedder creates a FakeEmbedder with no pinned vectors.
func NewFakeEmbedder() *FakeEmbedder {
	return &FakeEmbedder{vectors: make(map[string][]float32)}
}

// SetVector pins the vector returned for an exact text.
func (f *FakeEmbedder) SetVector(text string, vec []float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors[text] = vec
}

// Fail makes every subsequent Embed call return err. Pass nil to recover.
func (f *FakeEmbedder) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Calls returns how many Embed calls were made.
func (f *FakeEmbedder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Embed implements the embedder contract used by the reasoning package.
func (f *FakeEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	resp := &ai.EmbedResponse{}
	for _, doc := range req.Input {
		text := documentText(doc)
		vec, ok := f.vectors[text]
		if !ok {
			vec = hashVector(text)
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{Embedding: vec})
	}
	return resp, nil
}

func documentText(doc *ai.Document) string {
	var b strings.Builder
	for _, part := range doc.Content {
		b.WriteString(part.Text)
	}
	return b.String()
}

// hashVector derives a small deterministic vector from text. Distinct
// texts produce near-orthogonal vectors, identical texts identical ones.
func hashVector(text string) []float32 {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, 8)
	for i := range vec {
		vec[i] = float32(sum[i]) - 128
	}
	return vec
}
