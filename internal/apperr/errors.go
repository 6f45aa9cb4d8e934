// Package apperr holds the error taxonomy shared by the voting, ledger and
// payment packages. Handlers translate these into HTTP statuses.
package apperr

import "errors"

// Authentication and authorization.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrUnauthorized    = errors.New("not allowed for this user")
)

// Input and lookup.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrMalformedMetadata = errors.New("malformed payment metadata")
	ErrNotFound          = errors.New("not found")
)

// Voting.
var (
	ErrAlreadyVoted        = errors.New("already voted on this chapter")
	ErrChapterClosed       = errors.New("chapter is not open for voting")
	ErrNotYetVoted         = errors.New("free vote required before spending coins")
	ErrInsufficientBalance = errors.New("insufficient coin balance")
)

// Chapter lifecycle.
var (
	ErrSequenceConflict = errors.New("chapter number is not the next in sequence")
	ErrStoryCompleted   = errors.New("story is completed")
	ErrAlreadyCompleted = errors.New("story is already completed")
	ErrNotLatest        = errors.New("chapter is not the latest")
	ErrVotingClosed     = errors.New("voting window has closed")
)

// Payments.
var (
	ErrGateway        = errors.New("payment gateway error")
	ErrReconciliation = errors.New("payment reconciliation failed")
)
