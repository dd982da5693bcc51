// Package tools provides Genkit tool registration for the reasoning engine.
package tools

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/pensiv/pensiv/internal/reasoning"
)

// Tool name constants registered with Genkit.
const (
	// SequentialThinkName is the Genkit tool name for recording a thought.
	SequentialThinkName = "sequential_think"
	// SequentialReviewName is the Genkit tool name for reviewing or
	// clearing a session's chain.
	SequentialReviewName = "sequential_review"
)

// User-facing validation messages. These reach the model verbatim, so
// they state exactly what to correct.
const (
	msgEmptyThought      = "Please provide a non-empty thought."
	msgInvalidBranchFrom = "Invalid branch_from value. Use integer or 'None'."
)

// ThinkInput defines input for the sequential_think tool.
type ThinkInput struct {
	Thought    string `json:"thought" jsonschema_description:"The reasoning step to record"`
	SessionID  string `json:"session_id,omitempty" jsonschema_description:"Session scoping the chain (default: 'default')"`
	Operation  string `json:"operation,omitempty" jsonschema_description:"One of 'append', 'revise', 'branch' (default: 'append')"`
	BranchFrom string `json:"branch_from,omitempty" jsonschema_description:"Target thought index for revise/branch, or 'None'"`
}

// ReviewInput defines input for the sequential_review tool.
type ReviewInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema_description:"Session to review (default: 'default')"`
	Clear     bool   `json:"clear,omitempty" jsonschema_description:"Delete the session's chain instead of reviewing it"`
}

// Reasoning holds dependencies for the reasoning tool handlers.
type Reasoning struct {
	engine *reasoning.Engine
	logger *slog.Logger
}

// NewReasoning creates a Reasoning instance.
func NewReasoning(engine *reasoning.Engine, logger *slog.Logger) (*Reasoning, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Reasoning{engine: engine, logger: logger}, nil
}

// RegisterReasoning registers the reasoning tools with Genkit.
func RegisterReasoning(g *genkit.Genkit, rt *Reasoning) ([]ai.Tool, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if rt == nil {
		return nil, fmt.Errorf("Reasoning is required")
	}

	tools := []ai.Tool{
		genkit.DefineTool(g, SequentialThinkName,
			"Record one step of sequential reasoning in a session-scoped chain. "+
				"Operations: 'append' adds a thought (near-duplicates are merged into the previous one), "+
				"'revise' rewrites the thought at index branch_from, "+
				"'branch' forks an alternative line from index branch_from. "+
				"Returns: the updated chain as a numbered transcript. "+
				"Use this to: build up multi-step reasoning that survives across calls.",
			rt.Think),
		genkit.DefineTool(g, SequentialReviewName,
			"Review the recorded reasoning chain for a session, or clear it. "+
				"Returns: the numbered transcript, or a confirmation when clear is true. "+
				"Use this to: re-read earlier reasoning before continuing, or start over.",
			rt.Review),
	}

	return tools, nil
}

// parseBranchFrom maps the wire value to an optional index. Accepts an
// integer, 'None' in any case, or empty.
func parseBranchFrom(s string) (*int, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return nil, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, false
	}
	return &n, true
}

// Think records one reasoning step.
func (r *Reasoning) Think(ctx *ai.ToolContext, input ThinkInput) (Result, error) {
	r.logger.Info("Think called",
		"session_id", input.SessionID, "operation", input.Operation)

	if strings.TrimSpace(input.Thought) == "" {
		return Result{
			Status: StatusError,
			Error:  &Error{Code: ErrCodeValidation, Message: msgEmptyThought},
		}, nil
	}

	op, err := reasoning.ParseOperation(input.Operation)
	if err != nil {
		return Result{
			Status: StatusError,
			Error: &Error{
				Code:    ErrCodeValidation,
				Message: fmt.Sprintf("Invalid operation %q. Use 'append', 'revise', or 'branch'.", input.Operation),
			},
		}, nil
	}

	branchFrom, ok := parseBranchFrom(input.BranchFrom)
	if !ok {
		return Result{
			Status: StatusError,
			Error:  &Error{Code: ErrCodeValidation, Message: msgInvalidBranchFrom},
		}, nil
	}

	res, err := r.engine.Think(ctx, reasoning.Request{
		SessionID:  input.SessionID,
		Text:       input.Thought,
		Operation:  op,
		BranchFrom: branchFrom,
	})
	if err != nil {
		r.logger.Warn("Think failed",
			"session_id", input.SessionID, "operation", string(op), "error", err)
		return Result{
			Status: StatusError,
			Error: &Error{
				Code:    ErrCodeExecution,
				Message: fmt.Sprintf("Error in sequential thinking: %v", err),
			},
		}, nil
	}

	r.logger.Info("Think succeeded",
		"session_id", input.SessionID, "step", res.Thought.Step, "merged", res.Merged)
	return Result{
		Status: StatusSuccess,
		Data: map[string]any{
			"session_id":      sessionOrDefault(input.SessionID),
			"step":            res.Thought.Step,
			"merged":          res.Merged,
			"thoughts":        res.Chain.Len(),
			"transcript":      res.Transcript,
			"fully_persisted": res.Save.FullyPersisted(),
		},
	}, nil
}

// Review returns a session's transcript, or clears the session.
func (r *Reasoning) Review(ctx *ai.ToolContext, input ReviewInput) (Result, error) {
	sessionID := sessionOrDefault(input.SessionID)
	r.logger.Info("Review called", "session_id", sessionID, "clear", input.Clear)

	if input.Clear {
		if err := r.engine.Clear(ctx, sessionID); err != nil {
			r.logger.Warn("Review clear failed", "session_id", sessionID, "error", err)
			return Result{
				Status: StatusError,
				Error: &Error{
					Code:    ErrCodeExecution,
					Message: fmt.Sprintf("Error in sequential thinking: %v", err),
				},
			}, nil
		}
		return Result{
			Status: StatusSuccess,
			Data: map[string]any{
				"session_id": sessionID,
				"message":    fmt.Sprintf("Session '%s' cleared.", sessionID),
			},
		}, nil
	}

	transcript := r.engine.Review(ctx, sessionID)
	return Result{
		Status: StatusSuccess,
		Data: map[string]any{
			"session_id": sessionID,
			"transcript": transcript,
		},
	}, nil
}

func sessionOrDefault(id string) string {
	if id == "" {
		return reasoning.DefaultSession
	}
	return id
}
