package reasoning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// DocumentStore is the backend contract shared by the primary store and
// the file mirror. Interfaces are defined by the consumer.
type DocumentStore interface {
	LoadChain(ctx context.Context, sessionID string) (*Chain, error)
	SaveChain(ctx context.Context, sessionID string, chain *Chain) error
	ClearChain(ctx context.Context, sessionID string) error
	Sessions(ctx context.Context) ([]string, error)
}

// SaveReport records the per-backend outcome of a dual write. The engine
// treats a save as successful when at least one backend accepted it.
type SaveReport struct {
	PrimaryOK bool
	MirrorOK  bool

	PrimaryErr error
	MirrorErr  error
}

// FullyPersisted reports whether every configured backend accepted the
// write. A nil primary counts as fully persisted: there is nothing to
// degrade from.
func (r SaveReport) FullyPersisted() bool {
	return r.PrimaryErr == nil && r.MirrorErr == nil
}

// Persisted reports whether at least one backend accepted the write.
func (r SaveReport) Persisted() bool {
	return r.PrimaryOK || r.MirrorOK
}

// Store is the two-tier persistence layer: an optional primary document
// store fronted by a mandatory file mirror.
//
// Reads prefer the primary and fall back to the mirror. Writes go to both,
// availability first: a failing backend is logged and reported, never
// allowed to fail the operation as long as the other backend took the
// write.
type Store struct {
	primary DocumentStore // nil runs file-only
	mirror  *FileStore
	logger  *slog.Logger
}

// NewStore creates a Store. primary may be nil for file-only operation;
// mirror is required.
func NewStore(primary DocumentStore, mirror *FileStore, logger *slog.Logger) (*Store, error) {
	if mirror == nil {
		return nil, fmt.Errorf("mirror store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{primary: primary, mirror: mirror, logger: logger}, nil
}

// Load reads a session's chain, preferring the primary. When the primary
// fails, or is healthy but holds no thoughts for the session, the mirror
// answers instead; when both fail the session starts from an empty chain.
// Load never returns an error: a reasoning session must stay usable
// through storage outages.
//
// The empty-primary fallback matters after an outage: a chain written
// while the primary was down exists only in the mirror, and a recovered
// primary would otherwise shadow it with a fresh empty chain.
func (s *Store) Load(ctx context.Context, sessionID string) *Chain {
	if s.primary != nil {
		chain, err := s.primary.LoadChain(ctx, sessionID)
		switch {
		case err != nil:
			s.logger.Warn("primary load failed, falling back to mirror",
				"session_id", sessionID, "error", err)
		case chain.Len() == 0:
			if mirrored, mErr := s.mirror.LoadChain(ctx, sessionID); mErr == nil && mirrored.Len() > 0 {
				s.logger.Warn("primary has no thoughts for session, using mirror copy",
					"session_id", sessionID, "thoughts", mirrored.Len())
				return mirrored
			}
			return chain
		default:
			return chain
		}
	}

	chain, err := s.mirror.LoadChain(ctx, sessionID)
	if err == nil {
		return chain
	}
	s.logger.Error("mirror load failed, starting from empty chain",
		"session_id", sessionID, "error", err)
	return NewChain()
}

// Save writes the chain to both backends and reports per-backend results.
// Neither failure aborts the other write.
func (s *Store) Save(ctx context.Context, sessionID string, chain *Chain) SaveReport {
	report := SaveReport{}

	if s.primary != nil {
		if err := s.primary.SaveChain(ctx, sessionID, chain); err != nil {
			report.PrimaryErr = err
			s.logger.Warn("primary save failed",
				"session_id", sessionID, "error", err)
		} else {
			report.PrimaryOK = true
		}
	}

	if err := s.mirror.SaveChain(ctx, sessionID, chain); err != nil {
		report.MirrorErr = err
		s.logger.Warn("mirror save failed",
			"session_id", sessionID, "error", err)
	} else {
		report.MirrorOK = true
	}

	if !report.Persisted() {
		s.logger.Error("chain not persisted to any backend", "session_id", sessionID)
	}
	return report
}

// Clear removes the session from every configured backend. Unlike Save,
// Clear surfaces errors: a half-cleared session would silently resurrect
// old thoughts on the next load.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	var primaryErr error
	if s.primary != nil {
		primaryErr = s.primary.ClearChain(ctx, sessionID)
	}
	mirrorErr := s.mirror.ClearChain(ctx, sessionID)
	return errors.Join(primaryErr, mirrorErr)
}

// Sessions lists known session ids across both backends: the primary's
// ordering comes first, mirror-only sessions (written during a primary
// outage) follow. Either backend failing leaves the other's view intact.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	mirrorIDs, mirrorErr := s.mirror.Sessions(ctx)

	if s.primary == nil {
		return mirrorIDs, mirrorErr
	}

	ids, err := s.primary.Sessions(ctx)
	if err != nil {
		s.logger.Warn("primary session listing failed, falling back to mirror",
			"error", err)
		return mirrorIDs, mirrorErr
	}
	if mirrorErr != nil {
		s.logger.Warn("mirror session listing failed", "error", mirrorErr)
		return ids, nil
	}

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	for _, id := range mirrorIDs {
		if _, ok := seen[id]; !ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
