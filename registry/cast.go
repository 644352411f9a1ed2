package registry

import (
	"math/bits"

	"go.dedis.ch/ballotbox/accumulator"
	"go.dedis.ch/ballotbox/ballot"
	"go.dedis.ch/ballotbox/eligibility"
	"golang.org/x/xerrors"
)

// Cast accumulates the encrypted selection of the voter into the ballot. The
// selection is verified against the domain of the casting mode before
// anything is mutated, and the voter is recorded so that it cannot vote
// twice.
func (r *Registry) Cast(id, voter string, sel accumulator.Selection) error {
	r.Lock()

	b, found := r.ballots[id]
	if !found {
		r.Unlock()
		return xerrors.Errorf("ballot '%s': %w", id, ballot.ErrNotFound)
	}

	if !r.oracle.SpaceExists(b.Space) || !r.oracle.SpaceIsActive(b.Space) {
		r.Unlock()
		return xerrors.Errorf("space '%s': %w", b.Space, ballot.ErrNotFound)
	}

	state := b.State(r.clock())
	if state != ballot.Open {
		r.Unlock()
		return xerrors.Errorf("ballot is %v: %w", state, ballot.ErrWindowClosed)
	}

	if b.HasVoted(voter) {
		r.Unlock()
		return xerrors.Errorf("voter '%s': %w", voter, ballot.ErrAlreadyVoted)
	}

	weight, err := r.votingWeight(b, voter)
	if err != nil {
		r.Unlock()
		return xerrors.Errorf("voter '%s': %w", voter, err)
	}

	dom := b.Mode.Domain()

	bounds, err := reserve(b.Bounds, len(b.Choices), weight, dom.Max, r.backend.Capacity())
	if err != nil {
		r.Unlock()
		promRejected.WithLabelValues("capacity").Inc()
		return xerrors.Errorf("voter '%s': %w", voter, err)
	}

	err = r.backend.CheckSelection(sel, len(b.Choices), dom)
	if err != nil {
		r.Unlock()
		promRejected.WithLabelValues("selection").Inc()
		return xerrors.Errorf("%w: %v", ballot.ErrInvalidSelection, err)
	}

	next := b.Clone()
	next.Bounds = bounds

	for i, entry := range sel.Entries {
		acc, err := r.backend.Load(next.Accumulators[i])
		if err != nil {
			r.Unlock()
			return xerrors.Errorf("failed to load accumulator %d: %v", i, err)
		}

		err = acc.Add(entry, weight)
		if err != nil {
			r.Unlock()
			return xerrors.Errorf("%w: choice %d: %v", ballot.ErrInvalidSelection, i, err)
		}

		next.Accumulators[i] = acc.Snapshot()
	}

	if next.Voters == nil {
		next.Voters = make(map[string]bool)
	}

	next.Voters[voter] = true

	err = r.persist(next, false)
	if err != nil {
		r.Unlock()
		return xerrors.Errorf("failed to store ballot: %v", err)
	}

	r.ballots[id] = next

	r.Unlock()

	promVotes.Inc()

	r.logger.Debug().Str("ballot", id).Str("voter", voter).Msg("vote cast")

	r.watcher.Notify(VoteCast{BallotID: id, Voter: voter})

	return nil
}

// reserve returns the bounds of the accumulators after a vote of the weight
// where every entry takes the largest value of the domain. It fails when a
// bound would exceed the capacity so that every total stays revealable.
func reserve(bounds []uint64, n int, weight, max, capacity uint64) ([]uint64, error) {
	hi, increment := bits.Mul64(weight, max)
	if hi != 0 {
		return nil, xerrors.Errorf("weight %d: %w", weight, ballot.ErrCapacityExceeded)
	}

	next := make([]uint64, n)
	copy(next, bounds)

	for i := range next {
		sum, carry := bits.Add64(next[i], increment, 0)
		if carry != 0 || sum > capacity {
			return nil, xerrors.Errorf("choice %d could exceed %d: %w", i, capacity,
				ballot.ErrCapacityExceeded)
		}

		next[i] = sum
	}

	return next, nil
}

// votingWeight converts the answer of the oracle into the weight of the voter.
// Whitelisted spaces require the voter to be a member. A single choice ballot
// always weighs one for an eligible voter.
func (r *Registry) votingWeight(b *ballot.Ballot, voter string) (uint64, error) {
	if b.Eligibility.Type == eligibility.Whitelist && !r.oracle.IsMember(b.Space, voter) {
		return 0, xerrors.Errorf("not a member: %w", ballot.ErrNotEligible)
	}

	weight := r.oracle.EligibilityWeight(b.Space, voter, b.Eligibility)
	if weight == 0 {
		return 0, xerrors.Errorf("zero weight: %w", ballot.ErrNotEligible)
	}

	if !b.Mode.Weighted() {
		return 1, nil
	}

	return weight, nil
}
