package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"

	"github.com/pensiv/pensiv/internal/reasoning"
	"github.com/pensiv/pensiv/internal/testutil"
)

func newTestReasoning(t *testing.T) *Reasoning {
	t.Helper()

	mirror, err := reasoning.NewFileStore(t.TempDir(), testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	store, err := reasoning.NewStore(nil, mirror, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	dedup := reasoning.NewDeduplicator(nil, 0, testutil.DiscardLogger())
	engine, err := reasoning.NewEngine(store, dedup, reasoning.Config{}, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	rt, err := NewReasoning(engine, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("NewReasoning() error = %v", err)
	}
	return rt
}

func toolCtx() *ai.ToolContext {
	return &ai.ToolContext{Context: context.Background()}
}

func TestParseBranchFrom(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    *int
		wantOK  bool
		wantIdx int
	}{
		{name: "empty", input: "", wantOK: true},
		{name: "none lowercase", input: "none", wantOK: true},
		{name: "None", input: "None", wantOK: true},
		{name: "NONE", input: "NONE", wantOK: true},
		{name: "integer", input: "3", wantOK: true, want: new(int), wantIdx: 3},
		{name: "zero", input: "0", wantOK: true, want: new(int), wantIdx: 0},
		{name: "negative integer parses", input: "-1", wantOK: true, want: new(int), wantIdx: -1},
		{name: "whitespace around integer", input: " 2 ", wantOK: true, want: new(int), wantIdx: 2},
		{name: "garbage", input: "first", wantOK: false},
		{name: "float", input: "1.5", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseBranchFrom(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("parseBranchFrom(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if tt.want == nil {
				if got != nil {
					t.Errorf("parseBranchFrom(%q) = %d, want nil", tt.input, *got)
				}
				return
			}
			if got == nil || *got != tt.wantIdx {
				t.Errorf("parseBranchFrom(%q) = %v, want %d", tt.input, got, tt.wantIdx)
			}
		})
	}
}

func TestThinkToolValidation(t *testing.T) {
	rt := newTestReasoning(t)

	t.Run("empty thought", func(t *testing.T) {
		result, err := rt.Think(toolCtx(), ThinkInput{Thought: "   "})
		if err != nil {
			t.Fatalf("Think() error = %v", err)
		}
		if result.Status != StatusError {
			t.Fatalf("Status = %q, want %q", result.Status, StatusError)
		}
		if result.Error.Message != "Please provide a non-empty thought." {
			t.Errorf("Message = %q", result.Error.Message)
		}
		if result.Error.Code != ErrCodeValidation {
			t.Errorf("Code = %q, want %q", result.Error.Code, ErrCodeValidation)
		}
	})

	t.Run("bad branch_from", func(t *testing.T) {
		result, err := rt.Think(toolCtx(), ThinkInput{Thought: "x", BranchFrom: "first"})
		if err != nil {
			t.Fatalf("Think() error = %v", err)
		}
		if result.Status != StatusError {
			t.Fatalf("Status = %q, want %q", result.Status, StatusError)
		}
		if result.Error.Message != "Invalid branch_from value. Use integer or 'None'." {
			t.Errorf("Message = %q", result.Error.Message)
		}
	})

	t.Run("bad operation", func(t *testing.T) {
		result, err := rt.Think(toolCtx(), ThinkInput{Thought: "x", Operation: "delete"})
		if err != nil {
			t.Fatalf("Think() error = %v", err)
		}
		if result.Status != StatusError || result.Error.Code != ErrCodeValidation {
			t.Errorf("result = %+v, want validation error", result)
		}
	})
}

func TestThinkToolAppend(t *testing.T) {
	rt := newTestReasoning(t)

	result, err := rt.Think(toolCtx(), ThinkInput{
		Thought:   "check the connection pool first",
		SessionID: "debug",
	})
	if err != nil {
		t.Fatalf("Think() error = %v", err)
	}
	if result.Status != StatusSuccess {
		t.Fatalf("Status = %q, error = %+v", result.Status, result.Error)
	}

	data, ok := result.Data.(map[string]any)
	if !ok {
		t.Fatalf("Data has type %T, want map", result.Data)
	}
	if data["session_id"] != "debug" {
		t.Errorf("session_id = %v", data["session_id"])
	}
	if data["step"] != 0 {
		t.Errorf("step = %v, want 0", data["step"])
	}
	if data["merged"] != false {
		t.Errorf("merged = %v, want false", data["merged"])
	}
	transcript, _ := data["transcript"].(string)
	if !strings.Contains(transcript, "00: check the connection pool first") {
		t.Errorf("transcript = %q", transcript)
	}
}

func TestThinkToolBranchFlow(t *testing.T) {
	rt := newTestReasoning(t)
	ctx := toolCtx()

	for _, thought := range []string{"examine the logs", "suspect a resource leak somewhere"} {
		result, err := rt.Think(ctx, ThinkInput{Thought: thought, SessionID: "s"})
		if err != nil || result.Status != StatusSuccess {
			t.Fatalf("Think(%q) = %+v, %v", thought, result, err)
		}
	}

	result, err := rt.Think(ctx, ThinkInput{
		Thought:    "alternatively check file descriptors",
		SessionID:  "s",
		Operation:  "branch",
		BranchFrom: "0",
	})
	if err != nil {
		t.Fatalf("Think() error = %v", err)
	}
	if result.Status != StatusSuccess {
		t.Fatalf("Status = %q, error = %+v", result.Status, result.Error)
	}

	data := result.Data.(map[string]any)
	transcript, _ := data["transcript"].(string)
	if !strings.Contains(transcript, "  02→0: alternatively check file descriptors") {
		t.Errorf("transcript = %q, missing branch line", transcript)
	}
}

func TestThinkToolEngineErrorsAreResults(t *testing.T) {
	rt := newTestReasoning(t)

	// Branch without a target index reaches the engine and comes back as
	// an execution error, not a Go error.
	result, err := rt.Think(toolCtx(), ThinkInput{
		Thought:   "orphan branch",
		Operation: "branch",
	})
	if err != nil {
		t.Fatalf("Think() error = %v", err)
	}
	if result.Status != StatusError {
		t.Fatalf("Status = %q, want %q", result.Status, StatusError)
	}
	if result.Error.Code != ErrCodeExecution {
		t.Errorf("Code = %q, want %q", result.Error.Code, ErrCodeExecution)
	}
	if !strings.HasPrefix(result.Error.Message, "Error in sequential thinking: ") {
		t.Errorf("Message = %q", result.Error.Message)
	}
}

func TestReviewTool(t *testing.T) {
	rt := newTestReasoning(t)
	ctx := toolCtx()

	t.Run("empty session", func(t *testing.T) {
		result, err := rt.Review(ctx, ReviewInput{SessionID: "empty"})
		if err != nil {
			t.Fatalf("Review() error = %v", err)
		}
		data := result.Data.(map[string]any)
		if data["transcript"] != "No thoughts recorded yet." {
			t.Errorf("transcript = %v", data["transcript"])
		}
	})

	if _, err := rt.Think(ctx, ThinkInput{Thought: "something to review", SessionID: "r"}); err != nil {
		t.Fatalf("Think() error = %v", err)
	}

	t.Run("recorded session", func(t *testing.T) {
		result, err := rt.Review(ctx, ReviewInput{SessionID: "r"})
		if err != nil {
			t.Fatalf("Review() error = %v", err)
		}
		data := result.Data.(map[string]any)
		transcript, _ := data["transcript"].(string)
		if !strings.Contains(transcript, "00: something to review") {
			t.Errorf("transcript = %q", transcript)
		}
	})

	t.Run("clear", func(t *testing.T) {
		result, err := rt.Review(ctx, ReviewInput{SessionID: "r", Clear: true})
		if err != nil {
			t.Fatalf("Review() error = %v", err)
		}
		data := result.Data.(map[string]any)
		if data["message"] != "Session 'r' cleared." {
			t.Errorf("message = %v", data["message"])
		}

		after, err := rt.Review(ctx, ReviewInput{SessionID: "r"})
		if err != nil {
			t.Fatalf("Review() error = %v", err)
		}
		if after.Data.(map[string]any)["transcript"] != "No thoughts recorded yet." {
			t.Errorf("session not cleared: %+v", after.Data)
		}
	})

	t.Run("default session id", func(t *testing.T) {
		result, err := rt.Review(ctx, ReviewInput{})
		if err != nil {
			t.Fatalf("Review() error = %v", err)
		}
		data := result.Data.(map[string]any)
		if data["session_id"] != "default" {
			t.Errorf("session_id = %v, want default", data["session_id"])
		}
	})
}
