package registry

import (
	"github.com/rs/xid"
	"go.dedis.ch/ballotbox/accumulator"
	"go.dedis.ch/ballotbox/ballot"
	"go.dedis.ch/ballotbox/reveal"
	"golang.org/x/xerrors"
)

// RequestReveal moves a closed ballot to the reveal requested state and issues
// a decryption request for its accumulators. The state is persisted before the
// request is issued, so that a failing facility leaves the ballot waiting for
// a retry.
func (r *Registry) RequestReveal(id string) error {
	r.Lock()

	req, err := r.prepareReveal(id)

	r.Unlock()

	if err != nil {
		return err
	}

	return r.issue(req)
}

// RetryReveal issues a fresh decryption request for a ballot stuck in the
// reveal requested state. Only the owner of the registry can retry.
func (r *Registry) RetryReveal(id, caller string) error {
	r.Lock()

	if r.owner == "" || caller != r.owner {
		r.Unlock()
		return xerrors.Errorf("caller '%s': %w", caller, ballot.ErrUnauthorized)
	}

	b, found := r.ballots[id]
	if !found {
		r.Unlock()
		return xerrors.Errorf("ballot '%s': %w", id, ballot.ErrNotFound)
	}

	if b.Result != nil {
		r.Unlock()
		return xerrors.Errorf("ballot '%s': %w", id, ballot.ErrAlreadyResolved)
	}

	if !b.RevealRequested {
		r.Unlock()
		return xerrors.Errorf("ballot '%s': %w", id, ballot.ErrNotRequested)
	}

	next := b.Clone()
	next.RevealToken = xid.New().String()

	err := r.persist(next, false)
	if err != nil {
		r.Unlock()
		return xerrors.Errorf("failed to store ballot: %v", err)
	}

	r.ballots[id] = next

	req := reveal.Request{
		BallotID: id,
		Token:    next.RevealToken,
		Handles:  next.RevealHandles,
	}

	r.Unlock()

	r.logger.Info().Str("ballot", id).Str("token", req.Token).Msg("reveal retried")

	return r.issue(req)
}

// OnRevealCallback implements reveal.Receiver. It verifies the totals against
// the handles recorded when the reveal was requested, then computes the
// winner and resolves the ballot. A callback for a resolved ballot is
// rejected without touching the result, and an invalid proof leaves the
// ballot waiting for a valid one.
func (r *Registry) OnRevealCallback(id string, totals []uint64, proof []byte) error {
	r.Lock()

	b, found := r.ballots[id]
	if !found {
		r.Unlock()
		return xerrors.Errorf("ballot '%s': %w", id, ballot.ErrNotFound)
	}

	if b.Result != nil {
		r.Unlock()
		promRejected.WithLabelValues("resolved").Inc()
		return xerrors.Errorf("ballot '%s': %w", id, ballot.ErrAlreadyResolved)
	}

	if !b.RevealRequested {
		r.Unlock()
		promRejected.WithLabelValues("not-requested").Inc()
		return xerrors.Errorf("ballot '%s': %w", id, ballot.ErrNotRequested)
	}

	err := r.backend.VerifyReveal(b.RevealHandles, totals, proof)
	if err != nil {
		r.Unlock()
		promRejected.WithLabelValues("proof").Inc()
		r.logger.Warn().Err(err).Str("ballot", id).Msg("invalid reveal proof")
		return xerrors.Errorf("%w: %v", ballot.ErrInvalidProof, err)
	}

	winner, passed := ballot.Tally(totals, b.Abstain, b.BasisPoints)

	next := b.Clone()
	next.Result = &ballot.Result{
		Totals:     append([]uint64(nil), totals...),
		Winner:     winner,
		Passed:     passed,
		ResolvedAt: r.clock(),
	}

	err = r.persist(next, false)
	if err != nil {
		r.Unlock()
		return xerrors.Errorf("failed to store ballot: %v", err)
	}

	r.ballots[id] = next

	r.Unlock()

	promResolved.Inc()

	r.logger.Info().Str("ballot", id).Int("winner", winner).Bool("passed", passed).
		Msg("ballot resolved")

	r.watcher.Notify(RevealResolved{
		BallotID: id,
		Winner:   winner,
		Passed:   passed,
		Totals:   append([]uint64(nil), totals...),
	})

	return nil
}

// prepareReveal applies the transition to the reveal requested state and
// returns the request to issue. It must be called with the lock held.
func (r *Registry) prepareReveal(id string) (reveal.Request, error) {
	b, found := r.ballots[id]
	if !found {
		return reveal.Request{}, xerrors.Errorf("ballot '%s': %w", id, ballot.ErrNotFound)
	}

	state := b.State(r.clock())

	switch state {
	case ballot.Closed:
	case ballot.RevealRequested, ballot.Resolved:
		return reveal.Request{}, xerrors.Errorf("ballot is %v: %w", state, ballot.ErrAlreadyRequested)
	default:
		return reveal.Request{}, xerrors.Errorf("ballot is %v: %w", state, ballot.ErrNotClosed)
	}

	next := b.Clone()
	next.RevealRequested = true
	next.RevealToken = xid.New().String()
	next.RevealHandles = make([]accumulator.Handle, len(next.Accumulators))
	copy(next.RevealHandles, next.Accumulators)

	err := r.persist(next, false)
	if err != nil {
		return reveal.Request{}, xerrors.Errorf("failed to store ballot: %v", err)
	}

	r.ballots[id] = next
	r.pending.Delete(indexItem{end: next.WindowEnd, id: id})

	req := reveal.Request{
		BallotID: id,
		Token:    next.RevealToken,
		Handles:  next.RevealHandles,
	}

	return req, nil
}

// issue sends the request to the facility and notifies the observers.
func (r *Registry) issue(req reveal.Request) error {
	promRequested.Inc()

	r.watcher.Notify(RevealRequested{BallotID: req.BallotID, Token: req.Token})

	err := r.facility.RequestReveal(req)
	if err != nil {
		r.logger.Err(err).Str("ballot", req.BallotID).Msg("decryption request failed")
		return xerrors.Errorf("failed to request reveal: %v", err)
	}

	r.logger.Info().Str("ballot", req.BallotID).Str("token", req.Token).
		Msg("reveal requested")

	return nil
}
