package reasoning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Operation selects how a thought enters the chain.
type Operation string

const (
	// OpAppend adds a thought at the end of the chain, subject to
	// deduplication and budget checks.
	OpAppend Operation = "append"

	// OpRevise rewrites the text of an existing thought in place.
	OpRevise Operation = "revise"

	// OpBranch adds a thought that forks from an earlier one.
	OpBranch Operation = "branch"
)

// ParseOperation maps a wire string to an Operation. Empty selects append.
func ParseOperation(s string) (Operation, error) {
	switch Operation(strings.ToLower(strings.TrimSpace(s))) {
	case "", OpAppend:
		return OpAppend, nil
	case OpRevise:
		return OpRevise, nil
	case OpBranch:
		return OpBranch, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOperation, s)
	}
}

// DefaultSession is used when a request carries no session id.
const DefaultSession = "default"

// previewLen caps the text preview in session stats.
const previewLen = 100

// Request is one thought submission.
type Request struct {
	// SessionID scopes the chain. Empty selects DefaultSession.
	SessionID string

	// Text is the thought content. Must be non-empty after trimming.
	Text string

	// Operation defaults to OpAppend when zero.
	Operation Operation

	// BranchFrom is the target index for OpRevise and OpBranch.
	// Ignored by OpAppend.
	BranchFrom *int
}

// Result describes what Think did with a request.
type Result struct {
	// Thought is the entry that was created or updated.
	Thought Thought

	// Merged is true when the text was folded into the previous thought
	// instead of creating a new one.
	Merged bool

	// Chain is the session's chain after the operation.
	Chain *Chain

	// Transcript is the formatted chain.
	Transcript string

	// Save reports the per-backend persistence outcome.
	Save SaveReport
}

// Config holds the engine's chain limits. Zero values select defaults.
// The dedup similarity threshold lives on the Deduplicator, not here.
type Config struct {
	MaxDepth    int
	TokenBudget int
}

// Engine applies reasoning operations to session chains.
//
// Each session is serialized by its own lock, so concurrent submissions
// to one session apply one at a time while distinct sessions proceed in
// parallel.
type Engine struct {
	store       *Store
	dedup       *Deduplicator
	maxDepth    int
	tokenBudget int

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	tracer trace.Tracer
	logger *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(store *Store, dedup *Deduplicator, cfg Config, logger *slog.Logger) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if dedup == nil {
		return nil, fmt.Errorf("deduplicator is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = DefaultTokenBudget
	}

	return &Engine{
		store:       store,
		dedup:       dedup,
		maxDepth:    cfg.MaxDepth,
		tokenBudget: cfg.TokenBudget,
		locks:       make(map[string]*sync.Mutex),
		tracer:      otel.Tracer("pensiv/reasoning"),
		logger:      logger,
	}, nil
}

// sessionLock returns the mutex serializing one session's operations.
func (e *Engine) sessionLock(sessionID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[sessionID] = lock
	}
	return lock
}

// Think applies one reasoning operation and persists the updated chain.
func (e *Engine) Think(ctx context.Context, req Request) (*Result, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrEmptyThought
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = DefaultSession
	}

	op := req.Operation
	if op == "" {
		op = OpAppend
	}

	ctx, span := e.tracer.Start(ctx, "reasoning.think",
		trace.WithAttributes(
			attribute.String("reasoning.session_id", sessionID),
			attribute.String("reasoning.operation", string(op)),
		))
	defer span.End()

	lock := e.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	chain := e.store.Load(ctx, sessionID)

	var (
		result *Result
		err    error
	)
	switch op {
	case OpAppend:
		result, err = e.append(ctx, chain, text)
	case OpRevise:
		result, err = e.revise(chain, req.BranchFrom, text)
	case OpBranch:
		result, err = e.branch(chain, req.BranchFrom, text)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}
	if err != nil {
		return nil, err
	}

	result.Chain = chain
	result.Save = e.store.Save(ctx, sessionID, chain)
	result.Transcript = FormatChain(chain)

	e.logger.Info("thought recorded",
		"session_id", sessionID,
		"operation", string(op),
		"step", result.Thought.Step,
		"merged", result.Merged,
		"chain_len", chain.Len(),
		"fully_persisted", result.Save.FullyPersisted())
	return result, nil
}

// append adds text as a new thought, or folds it into the previous one
// when the deduplicator judges them near-duplicates.
func (e *Engine) append(ctx context.Context, chain *Chain, text string) (*Result, error) {
	if chain.Len() >= e.maxDepth {
		return nil, fmt.Errorf("%w: %d thoughts", ErrDepthExceeded, chain.Len())
	}
	if chain.TokenCount()+TokenCount(text) > e.tokenBudget {
		return nil, fmt.Errorf("%w: budget %d", ErrTokenBudgetExceeded, e.tokenBudget)
	}

	decision := e.dedup.Evaluate(ctx, chain.Last(), chain.LastEmbedding, text)

	if decision.Merge {
		last := chain.Last()
		last.Text += "\n[merged] " + text
		last.Timestamp = time.Now().Unix()
		chain.LastEmbedding = decision.CandidateEmbedding

		e.logger.Debug("merged near-duplicate thought",
			"step", last.Step, "similarity", decision.Similarity)
		return &Result{Thought: *last, Merged: true}, nil
	}

	fingerprint := fingerprintVector(decision.CandidateEmbedding)
	if fingerprint == "" {
		fingerprint = fingerprintText(text)
	}

	thought := Thought{
		Step:        chain.Len(),
		Text:        text,
		Timestamp:   time.Now().Unix(),
		ID:          uuid.New(),
		Fingerprint: fingerprint,
		Confidence:  defaultConfidence,
	}
	chain.Thoughts = append(chain.Thoughts, thought)
	chain.LastEmbedding = decision.CandidateEmbedding

	return &Result{Thought: thought}, nil
}

// revise rewrites an existing thought's text in place. Depth and token
// budgets do not apply: revision replaces content, it does not grow the
// chain.
func (e *Engine) revise(chain *Chain, index *int, text string) (*Result, error) {
	if index == nil || *index < 0 || *index >= chain.Len() {
		return nil, fmt.Errorf("%w: revise target", ErrInvalidIndex)
	}

	t := &chain.Thoughts[*index]
	t.Text = text
	t.Timestamp = time.Now().Unix()
	t.Fingerprint = fingerprintText(text)

	// The cached embedding described the old text.
	if *index == chain.Len()-1 {
		chain.LastEmbedding = nil
	}

	return &Result{Thought: *t}, nil
}

// branch adds a thought forked from an earlier index. Branching grows the
// chain, so depth and token budgets apply exactly as on append.
func (e *Engine) branch(chain *Chain, from *int, text string) (*Result, error) {
	if from == nil || *from < 0 || *from >= chain.Len() {
		return nil, fmt.Errorf("%w: branch target", ErrInvalidIndex)
	}
	if chain.Len() >= e.maxDepth {
		return nil, fmt.Errorf("%w: %d thoughts", ErrDepthExceeded, chain.Len())
	}
	if chain.TokenCount()+TokenCount(text) > e.tokenBudget {
		return nil, fmt.Errorf("%w: budget %d", ErrTokenBudgetExceeded, e.tokenBudget)
	}

	parent := *from
	thought := Thought{
		Step:        chain.Len(),
		Text:        text,
		Timestamp:   time.Now().Unix(),
		ID:          uuid.New(),
		Fingerprint: fingerprintText(text),
		Confidence:  defaultConfidence,
		Parent:      &parent,
	}
	chain.Thoughts = append(chain.Thoughts, thought)

	// A branch breaks the "candidate vs newest" dedup chain.
	chain.LastEmbedding = nil

	return &Result{Thought: thought}, nil
}

// Review returns the formatted transcript for a session.
func (e *Engine) Review(ctx context.Context, sessionID string) string {
	if sessionID == "" {
		sessionID = DefaultSession
	}

	lock := e.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	return FormatChain(e.store.Load(ctx, sessionID))
}

// Clear deletes a session's chain from every backend.
func (e *Engine) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		sessionID = DefaultSession
	}

	lock := e.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	return e.store.Clear(ctx, sessionID)
}

// Sessions lists known session ids.
func (e *Engine) Sessions(ctx context.Context) ([]string, error) {
	return e.store.Sessions(ctx)
}

// SessionStats summarizes one session without exposing the full chain.
type SessionStats struct {
	SessionID   string `json:"session_id"`
	Thoughts    int    `json:"thoughts"`
	Tokens      int    `json:"tokens"`
	LastUpdated int64  `json:"last_updated,omitempty"`
	LastPreview string `json:"last_preview,omitempty"`
}

// Stats returns summary statistics for a session.
func (e *Engine) Stats(ctx context.Context, sessionID string) SessionStats {
	if sessionID == "" {
		sessionID = DefaultSession
	}

	lock := e.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	chain := e.store.Load(ctx, sessionID)
	stats := SessionStats{
		SessionID: sessionID,
		Thoughts:  chain.Len(),
		Tokens:    chain.TokenCount(),
	}

	if last := chain.Last(); last != nil {
		stats.LastUpdated = last.Timestamp
		preview := last.Text
		// Truncate on rune boundaries so multi-byte text stays valid UTF-8.
		if runes := []rune(preview); len(runes) > previewLen {
			preview = string(runes[:previewLen]) + "..."
		}
		stats.LastPreview = preview
	}
	return stats
}
