// Package reasoning implements the session-scoped reasoning chain engine:
// an append/revise/branch thought log with semantic deduplication,
// token-budget enforcement, and depth limits.
//
// Layering (leaves first): token counting and similarity primitives →
// chain store (PostgreSQL primary + JSONL file mirror) → deduplicator →
// engine (mutations, budgets, per-session locking) → formatter.
//
// The store is deliberately availability-first: persistence failures are
// swallowed rather than propagated so a broken backend never blocks the
// reasoning process. Callers that care about durability inspect the
// SaveReport attached to every mutation result.
package reasoning
