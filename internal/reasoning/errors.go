package reasoning

import "errors"

var (
	// ErrEmptyThought indicates the thought text is empty after trimming.
	ErrEmptyThought = errors.New("thought text is empty")

	// ErrUnknownOperation indicates an operation other than append,
	// revise, or branch.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrInvalidIndex indicates branch_from does not reference an
	// existing thought in the chain.
	ErrInvalidIndex = errors.New("branch_from index out of range")

	// ErrDepthExceeded indicates the chain already holds the maximum
	// number of thoughts.
	ErrDepthExceeded = errors.New("maximum chain depth reached")

	// ErrTokenBudgetExceeded indicates the new thought would push the
	// chain past its cumulative token budget.
	ErrTokenBudgetExceeded = errors.New("token budget exceeded")
)
