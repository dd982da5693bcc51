package mcp

import (
	"strings"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pensiv/pensiv/internal/reasoning"
	"github.com/pensiv/pensiv/internal/testutil"
	"github.com/pensiv/pensiv/internal/tools"
)

func newTestReasoning(t *testing.T) *tools.Reasoning {
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
	rt, err := tools.NewReasoning(engine, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("NewReasoning() error = %v", err)
	}
	return rt
}

func TestNewServerValidation(t *testing.T) {
	rt := newTestReasoning(t)

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing name", cfg: Config{Version: "1.0.0", Reasoning: rt}},
		{name: "missing version", cfg: Config{Name: "pensiv", Reasoning: rt}},
		{name: "missing reasoning", cfg: Config{Name: "pensiv", Version: "1.0.0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewServer(tt.cfg); err == nil {
				t.Error("NewServer() = nil error, want validation failure")
			}
		})
	}

	t.Run("valid config", func(t *testing.T) {
		s, err := NewServer(Config{Name: "pensiv", Version: "1.0.0", Reasoning: rt})
		if err != nil {
			t.Fatalf("NewServer() error = %v", err)
		}
		if s == nil {
			t.Fatal("NewServer() returned nil server")
		}
	})
}

func TestToCallToolResult(t *testing.T) {
	t.Run("error result sets IsError", func(t *testing.T) {
		got := toCallToolResult(tools.Result{
			Status: tools.StatusError,
			Error:  &tools.Error{Code: tools.ErrCodeValidation, Message: "Please provide a non-empty thought."},
		}, "transcript")

		if !got.IsError {
			t.Error("IsError = false, want true")
		}
		text := got.Content[0].(*sdkmcp.TextContent).Text
		if text != "Please provide a non-empty thought." {
			t.Errorf("text = %q", text)
		}
	})

	t.Run("success extracts the named field", func(t *testing.T) {
		got := toCallToolResult(tools.Result{
			Status: tools.StatusSuccess,
			Data:   map[string]any{"transcript": "00: first"},
		}, "transcript")

		if got.IsError {
			t.Error("IsError = true, want false")
		}
		text := got.Content[0].(*sdkmcp.TextContent).Text
		if text != "00: first" {
			t.Errorf("text = %q", text)
		}
	})

	t.Run("unexpected data shape is an error result", func(t *testing.T) {
		got := toCallToolResult(tools.Result{
			Status: tools.StatusSuccess,
			Data:   "not a map",
		}, "transcript")

		if !got.IsError {
			t.Error("IsError = false, want true")
		}
		text := got.Content[0].(*sdkmcp.TextContent).Text
		if !strings.Contains(text, "unexpected data format") {
			t.Errorf("text = %q", text)
		}
	})
}
