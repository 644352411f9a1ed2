// Package ballot defines the ballot record, its lifecycle and the pure
// functions of the engine: parameter validation, identifiers and the winner
// algorithm.
//
// A ballot keeps one encrypted accumulator per choice. The state of a ballot
// is partially stored (reveal requested, resolved, cancelled) and partially
// computed from the clock (pending, open, closed).
//
// Documentation Last Review: 19.10.2026
//
package ballot

import (
	"time"

	"go.dedis.ch/ballotbox/accumulator"
	"go.dedis.ch/ballotbox/eligibility"
)

const (
	// MinChoices is the minimum number of choices of a ballot.
	MinChoices = 2

	// MaxChoices is the maximum number of choices of a ballot, including the
	// abstain slot.
	MaxChoices = 10

	// MaxTitleLength is the maximum length in bytes of a title.
	MaxTitleLength = 200

	// MinDuration is the minimum length of the voting window.
	MinDuration = 5 * time.Minute

	// MaxBasisPoints is the largest passing threshold.
	MaxBasisPoints = 10_000

	// MaxPercentage is the largest value of a fractional allocation.
	MaxPercentage = 100

	// AbstainLabel is the label of the abstain slot.
	AbstainLabel = "Abstain"

	// Draw is the winner index of a ballot without a unique winner.
	Draw = -1
)

// Mode is the casting mode of a ballot.
type Mode uint8

const (
	// SingleChoice gives one vote of weight one to a single choice.
	SingleChoice Mode = iota

	// WeightedSingleChoice gives the whole eligibility weight to a single
	// choice.
	WeightedSingleChoice

	// WeightedFractional splits the eligibility weight across choices by
	// percentages.
	WeightedFractional
)

// String returns a human-readable name of the mode.
func (m Mode) String() string {
	switch m {
	case SingleChoice:
		return "single"
	case WeightedSingleChoice:
		return "weighted"
	case WeightedFractional:
		return "fractional"
	default:
		return "unknown"
	}
}

// Valid returns true if the mode is known.
func (m Mode) Valid() bool {
	return m <= WeightedFractional
}

// Weighted returns true if the voter weight comes from the eligibility oracle.
func (m Mode) Weighted() bool {
	return m == WeightedSingleChoice || m == WeightedFractional
}

// Domain returns the cleartext domain a selection of this mode must lie in.
func (m Mode) Domain() accumulator.Domain {
	if m == WeightedFractional {
		return accumulator.Domain{Max: MaxPercentage}
	}

	return accumulator.Domain{Max: 1, OneHot: true}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, ErrInvalidMode
	}

	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	mode, err := ParseMode(string(text))
	if err != nil {
		return err
	}

	*m = mode

	return nil
}

// ParseMode returns the mode matching the name.
func ParseMode(name string) (Mode, error) {
	for _, m := range []Mode{SingleChoice, WeightedSingleChoice, WeightedFractional} {
		if m.String() == name {
			return m, nil
		}
	}

	return 0, ErrInvalidMode
}

// State is the lifecycle state of a ballot.
type State uint8

const (
	// Pending is the state before the window opens.
	Pending State = iota
	// Open is the state during the window.
	Open
	// Closed is the state after the window and before a reveal is requested.
	Closed
	// RevealRequested is the state while the decryption is pending.
	RevealRequested
	// Resolved is the final state once the totals are known.
	Resolved
	// Cancelled is the final state of a ballot cancelled before it opens.
	Cancelled
)

// String returns a human-readable name of the state.
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Open:
		return "open"
	case Closed:
		return "closed"
	case RevealRequested:
		return "reveal-requested"
	case Resolved:
		return "resolved"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result is the outcome of a resolved ballot. It is written once.
type Result struct {
	Totals     []uint64  `cbor:"totals" json:"totals"`
	Winner     int       `cbor:"winner" json:"winner"`
	Passed     bool      `cbor:"passed" json:"passed"`
	ResolvedAt time.Time `cbor:"resolved_at" json:"resolvedAt"`
}

// Ballot is the record of a ballot.
type Ballot struct {
	ID            string             `cbor:"id"`
	Sequence      uint64             `cbor:"seq"`
	Space         string             `cbor:"space"`
	Creator       string             `cbor:"creator"`
	Title         string             `cbor:"title"`
	BodyReference string             `cbor:"body,omitempty"`
	Mode          Mode               `cbor:"mode"`
	Choices       []string           `cbor:"choices"`
	Abstain       bool               `cbor:"abstain,omitempty"`
	WindowStart   time.Time          `cbor:"start"`
	WindowEnd     time.Time          `cbor:"end"`
	Eligibility   eligibility.Config `cbor:"eligibility"`
	BasisPoints   uint32             `cbor:"bps"`
	CreatedAt     time.Time          `cbor:"created_at"`

	// Accumulators holds the encrypted total of each choice, in the order of
	// the choices.
	Accumulators []accumulator.Handle `cbor:"accumulators"`

	// Bounds is the largest cleartext each accumulator can hold, derived from
	// the public weights of the voters and the domain of the mode.
	Bounds []uint64 `cbor:"bounds,omitempty"`

	// Voters is the set of principals who already voted.
	Voters map[string]bool `cbor:"voters,omitempty"`

	Cancelled       bool `cbor:"cancelled,omitempty"`
	RevealRequested bool `cbor:"reveal_requested,omitempty"`

	// RevealToken correlates the pending decryption request.
	RevealToken string `cbor:"reveal_token,omitempty"`

	// RevealHandles is the snapshot of the accumulators sent for decryption.
	RevealHandles []accumulator.Handle `cbor:"reveal_handles,omitempty"`

	Result *Result `cbor:"result,omitempty"`
}

// State returns the state of the ballot at the given time.
func (b *Ballot) State(now time.Time) State {
	switch {
	case b.Result != nil:
		return Resolved
	case b.RevealRequested:
		return RevealRequested
	case b.Cancelled:
		return Cancelled
	case now.Before(b.WindowStart):
		return Pending
	case now.Before(b.WindowEnd):
		return Open
	default:
		return Closed
	}
}

// HasVoted returns true if the principal already voted.
func (b *Ballot) HasVoted(principal string) bool {
	return b.Voters[principal]
}

// VoterCount returns the number of principals who voted.
func (b *Ballot) VoterCount() int {
	return len(b.Voters)
}

// Clone returns a deep copy of the ballot.
func (b *Ballot) Clone() *Ballot {
	clone := *b

	clone.Choices = append([]string(nil), b.Choices...)
	clone.Accumulators = cloneHandles(b.Accumulators)
	clone.Bounds = append([]uint64(nil), b.Bounds...)
	clone.RevealHandles = cloneHandles(b.RevealHandles)

	if b.Voters != nil {
		clone.Voters = make(map[string]bool, len(b.Voters))
		for voter := range b.Voters {
			clone.Voters[voter] = true
		}
	}

	if b.Result != nil {
		res := *b.Result
		res.Totals = append([]uint64(nil), b.Result.Totals...)
		clone.Result = &res
	}

	return &clone
}

func cloneHandles(handles []accumulator.Handle) []accumulator.Handle {
	if handles == nil {
		return nil
	}

	res := make([]accumulator.Handle, len(handles))
	for i, h := range handles {
		res[i] = append(accumulator.Handle(nil), h...)
	}

	return res
}
