package ballot

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"golang.org/x/xerrors"
)

// Params are the parameters of a new ballot.
type Params struct {
	Space          string    `json:"space"`
	Title          string    `json:"title"`
	BodyReference  string    `json:"body"`
	Mode           Mode      `json:"mode"`
	Choices        []string  `json:"choices"`
	IncludeAbstain bool      `json:"abstain"`
	WindowStart    time.Time `json:"start"`
	WindowEnd      time.Time `json:"end"`
	BasisPoints    uint32    `json:"bps"`
}

// Validate checks the parameters against the creation rules at the given time.
func (p Params) Validate(now time.Time) error {
	if p.Title == "" {
		return ErrEmptyTitle
	}

	if len(p.Title) > MaxTitleLength {
		return xerrors.Errorf("%w: %d > %d", ErrTitleTooLong, len(p.Title), MaxTitleLength)
	}

	if !p.Mode.Valid() {
		return xerrors.Errorf("%w: %d", ErrInvalidMode, p.Mode)
	}

	max := MaxChoices
	if p.IncludeAbstain {
		max--
	}

	if len(p.Choices) < MinChoices || len(p.Choices) > max {
		return xerrors.Errorf("%w: %d not in [%d, %d]",
			ErrChoiceCount, len(p.Choices), MinChoices, max)
	}

	for i, label := range p.Choices {
		if label == "" {
			return xerrors.Errorf("%w: index %d", ErrEmptyChoice, i)
		}
	}

	if !p.WindowEnd.After(p.WindowStart) {
		return xerrors.Errorf("%w: end is not after start", ErrInvalidWindow)
	}

	if p.WindowEnd.Sub(p.WindowStart) < MinDuration {
		return xerrors.Errorf("%w: shorter than %v", ErrInvalidWindow, MinDuration)
	}

	if !p.WindowEnd.After(now) {
		return xerrors.Errorf("%w: end is in the past", ErrInvalidWindow)
	}

	if p.BasisPoints > MaxBasisPoints {
		return xerrors.Errorf("%w: %d > %d", ErrInvalidThreshold, p.BasisPoints, MaxBasisPoints)
	}

	return nil
}

// Labels returns the final list of choices, with the abstain slot appended
// last when it is requested.
func (p Params) Labels() []string {
	labels := append([]string(nil), p.Choices...)
	if p.IncludeAbstain {
		labels = append(labels, AbstainLabel)
	}

	return labels
}

// MakeID returns the deterministic identifier of the ballot with the given
// title in the space.
func MakeID(space, title string) string {
	h := sha256.New()
	h.Write([]byte(space))
	h.Write([]byte{0})
	h.Write([]byte(title))

	return hex.EncodeToString(h.Sum(nil))
}
