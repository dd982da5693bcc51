package reasoning

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/pensiv/pensiv/internal/testutil"
)

// fakeDocumentStore is an in-memory DocumentStore with switchable failures.
type fakeDocumentStore struct {
	chains map[string]*Chain
	err    error
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{chains: make(map[string]*Chain)}
}

func (f *fakeDocumentStore) LoadChain(_ context.Context, sessionID string) (*Chain, error) {
	if f.err != nil {
		return nil, f.err
	}
	chain, ok := f.chains[sessionID]
	if !ok {
		return NewChain(), nil
	}
	copied := NewChain()
	copied.Thoughts = append(copied.Thoughts, chain.Thoughts...)
	copied.LastEmbedding = chain.LastEmbedding
	return copied, nil
}

func (f *fakeDocumentStore) SaveChain(_ context.Context, sessionID string, chain *Chain) error {
	if f.err != nil {
		return f.err
	}
	copied := NewChain()
	copied.Thoughts = append(copied.Thoughts, chain.Thoughts...)
	copied.LastEmbedding = chain.LastEmbedding
	f.chains[sessionID] = copied
	return nil
}

func (f *fakeDocumentStore) ClearChain(_ context.Context, sessionID string) error {
	if f.err != nil {
		return f.err
	}
	delete(f.chains, sessionID)
	return nil
}

func (f *fakeDocumentStore) Sessions(_ context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	var ids []string
	for id := range f.chains {
		ids = append(ids, id)
	}
	return ids, nil
}

func newTestStore(t *testing.T, primary DocumentStore) *Store {
	t.Helper()
	mirror := newTestFileStore(t)
	store, err := NewStore(primary, mirror, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func testChain(texts ...string) *Chain {
	chain := NewChain()
	for i, text := range texts {
		chain.Thoughts = append(chain.Thoughts, Thought{
			Step: i, Text: text, Timestamp: int64(i), ID: uuid.New(), Confidence: 0.95,
		})
	}
	return chain
}

func TestStoreSaveDualWrite(t *testing.T) {
	primary := newFakeDocumentStore()
	store := newTestStore(t, primary)
	ctx := context.Background()

	report := store.Save(ctx, "s1", testChain("a"))
	if !report.PrimaryOK || !report.MirrorOK {
		t.Errorf("Save report = %+v, want both backends ok", report)
	}
	if !report.FullyPersisted() || !report.Persisted() {
		t.Errorf("report predicates = fully %v persisted %v, want true true",
			report.FullyPersisted(), report.Persisted())
	}

	if got, _ := primary.LoadChain(ctx, "s1"); got.Len() != 1 {
		t.Error("primary did not receive the chain")
	}
	if got := store.Load(ctx, "s1"); got.Len() != 1 {
		t.Error("store did not round-trip the chain")
	}
}

func TestStoreSavePrimaryDown(t *testing.T) {
	primary := newFakeDocumentStore()
	primary.err = errors.New("connection refused")
	store := newTestStore(t, primary)
	ctx := context.Background()

	report := store.Save(ctx, "s1", testChain("a"))
	if report.PrimaryOK {
		t.Error("PrimaryOK = true, want false")
	}
	if report.PrimaryErr == nil {
		t.Error("PrimaryErr = nil, want the failure")
	}
	if !report.MirrorOK {
		t.Error("MirrorOK = false, the mirror write must not be aborted")
	}
	if report.FullyPersisted() {
		t.Error("FullyPersisted() = true with a failed primary")
	}
	if !report.Persisted() {
		t.Error("Persisted() = false with a healthy mirror")
	}

	// The mirror must answer reads while the primary is down.
	if got := store.Load(ctx, "s1"); got.Len() != 1 {
		t.Errorf("Load() returned %d thoughts, want 1 from mirror", got.Len())
	}
}

func TestStoreLoadPrefersPrimary(t *testing.T) {
	primary := newFakeDocumentStore()
	store := newTestStore(t, primary)
	ctx := context.Background()

	if err := primary.SaveChain(ctx, "s1", testChain("from primary", "second")); err != nil {
		t.Fatalf("SaveChain() error = %v", err)
	}
	if err := store.mirror.SaveChain(ctx, "s1", testChain("from mirror")); err != nil {
		t.Fatalf("SaveChain() error = %v", err)
	}

	got := store.Load(ctx, "s1")
	if got.Len() != 2 {
		t.Errorf("Load() returned %d thoughts, want 2 from primary", got.Len())
	}
}

func TestStoreLoadEmptyPrimaryUsesMirror(t *testing.T) {
	primary := newFakeDocumentStore()
	store := newTestStore(t, primary)
	ctx := context.Background()

	// The chain was saved while the primary was down, so only the mirror
	// holds it. A recovered primary answers with an empty chain and must
	// not shadow the mirror copy.
	if err := store.mirror.SaveChain(ctx, "s1", testChain("written during outage")); err != nil {
		t.Fatalf("SaveChain() error = %v", err)
	}

	got := store.Load(ctx, "s1")
	if got.Len() != 1 {
		t.Fatalf("Load() returned %d thoughts, want 1 from mirror fallback", got.Len())
	}
	if got.Thoughts[0].Text != "written during outage" {
		t.Errorf("Load() text = %q, want the mirror's thought", got.Thoughts[0].Text)
	}

	// Both backends empty still yields an empty chain without error.
	if empty := store.Load(ctx, "unknown"); empty == nil || empty.Len() != 0 {
		t.Errorf("Load() for unknown session = %+v, want empty chain", empty)
	}
}

func TestStoreLoadBothBackendsDown(t *testing.T) {
	primary := newFakeDocumentStore()
	primary.err = errors.New("down")
	store := newTestStore(t, primary)

	// No mirror file exists either, so the session starts empty.
	got := store.Load(context.Background(), "s1")
	if got == nil || got.Len() != 0 {
		t.Errorf("Load() = %+v, want empty chain", got)
	}
}

func TestStoreFileOnly(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	report := store.Save(ctx, "s1", testChain("a"))
	if !report.MirrorOK || report.PrimaryOK {
		t.Errorf("report = %+v, want mirror-only write", report)
	}
	if !report.FullyPersisted() {
		t.Error("FullyPersisted() = false with no primary configured")
	}

	if got := store.Load(ctx, "s1"); got.Len() != 1 {
		t.Errorf("Load() returned %d thoughts, want 1", got.Len())
	}
}

func TestStoreClear(t *testing.T) {
	primary := newFakeDocumentStore()
	store := newTestStore(t, primary)
	ctx := context.Background()

	store.Save(ctx, "s1", testChain("a"))
	if err := store.Clear(ctx, "s1"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if got := store.Load(ctx, "s1"); got.Len() != 0 {
		t.Errorf("Load() after clear returned %d thoughts", got.Len())
	}

	t.Run("primary failure surfaces", func(t *testing.T) {
		primary.err = errors.New("down")
		if err := store.Clear(ctx, "s1"); err == nil {
			t.Error("Clear() = nil, want the primary failure")
		}
		primary.err = nil
	})
}

func TestStoreSessions(t *testing.T) {
	primary := newFakeDocumentStore()
	store := newTestStore(t, primary)
	ctx := context.Background()

	store.Save(ctx, "s1", testChain("a"))
	store.Save(ctx, "s2", testChain("b"))

	ids, err := store.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("Sessions() = %v, want 2 entries", ids)
	}

	t.Run("mirror answers when primary is down", func(t *testing.T) {
		primary.err = errors.New("down")
		defer func() { primary.err = nil }()

		ids, err := store.Sessions(ctx)
		if err != nil {
			t.Fatalf("Sessions() error = %v", err)
		}
		if len(ids) != 2 {
			t.Errorf("Sessions() = %v, want 2 entries from mirror", ids)
		}
	})

	t.Run("mirror-only sessions are included", func(t *testing.T) {
		// s3 was written while the primary was down, so only the mirror
		// knows it. The union must still list it once the primary is back.
		if err := store.mirror.SaveChain(ctx, "s3", testChain("c")); err != nil {
			t.Fatalf("SaveChain() error = %v", err)
		}

		ids, err := store.Sessions(ctx)
		if err != nil {
			t.Fatalf("Sessions() error = %v", err)
		}
		if len(ids) != 3 {
			t.Fatalf("Sessions() = %v, want 3 entries across both backends", ids)
		}

		seen := make(map[string]int)
		for _, id := range ids {
			seen[id]++
		}
		for _, id := range []string{"s1", "s2", "s3"} {
			if seen[id] != 1 {
				t.Errorf("Sessions() listed %q %d times, want exactly once", id, seen[id])
			}
		}
	})
}
