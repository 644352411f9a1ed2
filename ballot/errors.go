package ballot

import "golang.org/x/xerrors"

// Validation errors. They are returned before anything is applied.
var (
	ErrEmptyTitle       = xerrors.New("title is empty")
	ErrTitleTooLong     = xerrors.New("title is too long")
	ErrChoiceCount      = xerrors.New("invalid number of choices")
	ErrEmptyChoice      = xerrors.New("choice label is empty")
	ErrInvalidWindow    = xerrors.New("invalid voting window")
	ErrInvalidThreshold = xerrors.New("invalid passing threshold")
	ErrInvalidMode      = xerrors.New("invalid casting mode")
	ErrInvalidSelection = xerrors.New("invalid selection")
	ErrDuplicateTitle   = xerrors.New("title already used")
)

// State errors. They leave the ballot untouched.
var (
	ErrNotFound         = xerrors.New("not found")
	ErrWindowClosed     = xerrors.New("voting window is closed")
	ErrAlreadyVoted     = xerrors.New("already voted")
	ErrNotClosed        = xerrors.New("ballot is not closed")
	ErrAlreadyRequested = xerrors.New("reveal already requested")
	ErrAlreadyResolved  = xerrors.New("ballot already resolved")
	ErrNotRequested     = xerrors.New("reveal not requested")
	ErrNotPending       = xerrors.New("ballot is not pending")
	ErrUnauthorized     = xerrors.New("unauthorized")
)

// ErrNotEligible is returned when the voter is refused by the eligibility
// oracle.
var ErrNotEligible = xerrors.New("not eligible")

// ErrCapacityExceeded is returned when a vote could push a total beyond what
// the backend is able to reveal. The vote is not applied.
var ErrCapacityExceeded = xerrors.New("capacity exceeded")

// ErrInvalidProof is returned when a reveal does not verify. The ballot stays
// in the reveal requested state.
var ErrInvalidProof = xerrors.New("invalid proof")
