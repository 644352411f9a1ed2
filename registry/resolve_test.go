package registry

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/ballotbox/accumulator/plain"
	"go.dedis.ch/ballotbox/ballot"
	"go.dedis.ch/ballotbox/internal/testing/fake"
	"golang.org/x/xerrors"
)

func TestRegistry_ResolveSingleChoice(t *testing.T) {
	r, _, clock, facility := makeRegistry(t)

	obs := &fake.Observer{}
	r.Watch(obs)

	id := mustCreate(t, r, makeParams("dao", "single", ballot.SingleChoice, "a", "b", "c"))
	clock.Advance(2 * time.Minute)

	vote(t, r, id, "alice", 0, 1, 0)
	vote(t, r, id, "bob", 0, 1, 0)
	vote(t, r, id, "carol", 1, 0, 0)

	res := closeAndResolve(t, r, clock, facility, id)
	require.Equal(t, []uint64{1, 2, 0}, res.Totals)
	require.Equal(t, 1, res.Winner)
	require.True(t, res.Passed)
	require.Equal(t, clock.Now(), res.ResolvedAt)

	state, err := r.State(id)
	require.NoError(t, err)
	require.Equal(t, ballot.Resolved, state)

	events := obs.Events()
	require.Equal(t, RevealResolved{
		BallotID: id,
		Winner:   1,
		Passed:   true,
		Totals:   []uint64{1, 2, 0},
	}, events[len(events)-1])
}

func TestRegistry_ResolveWeighted(t *testing.T) {
	r, _, clock, facility := makeRegistry(t)

	id := mustCreate(t, r, makeParams("dao", "weighted", ballot.WeightedSingleChoice, "a", "b"))
	clock.Advance(2 * time.Minute)

	vote(t, r, id, "carol", 1, 0)
	vote(t, r, id, "dave", 0, 1)

	res := closeAndResolve(t, r, clock, facility, id)
	require.Equal(t, []uint64{1000, 2000}, res.Totals)
	require.Equal(t, 1, res.Winner)
}

func TestRegistry_ResolveFractional(t *testing.T) {
	r, _, clock, facility := makeRegistry(t)

	id := mustCreate(t, r, makeParams("dao", "fractional", ballot.WeightedFractional, "a", "b", "c"))
	clock.Advance(2 * time.Minute)

	vote(t, r, id, "carol", 60, 30, 10)
	vote(t, r, id, "dave", 20, 50, 30)

	res := closeAndResolve(t, r, clock, facility, id)
	require.Equal(t, []uint64{100000, 130000, 70000}, res.Totals)
	require.Equal(t, 1, res.Winner)
}

func TestRegistry_ResolveAbstain(t *testing.T) {
	r, _, clock, facility := makeRegistry(t)

	params := makeParams("dao", "abstain", ballot.SingleChoice, "a", "b")
	params.IncludeAbstain = true

	id := mustCreate(t, r, params)
	clock.Advance(2 * time.Minute)

	vote(t, r, id, "alice", 0, 0, 1)
	vote(t, r, id, "bob", 0, 0, 1)
	vote(t, r, id, "carol", 0, 0, 1)
	vote(t, r, id, "dave", 0, 1, 0)

	res := closeAndResolve(t, r, clock, facility, id)
	require.Equal(t, []uint64{0, 1, 3}, res.Totals)
	require.Equal(t, 1, res.Winner)
	require.True(t, res.Passed)
}

func TestRegistry_ResolveDraw(t *testing.T) {
	r, _, clock, facility := makeRegistry(t)

	params := makeParams("dao", "draw", ballot.SingleChoice, "a", "b")
	params.BasisPoints = 5000

	id := mustCreate(t, r, params)
	clock.Advance(2 * time.Minute)

	vote(t, r, id, "alice", 1, 0)
	vote(t, r, id, "bob", 0, 1)
	vote(t, r, id, "carol", 1, 0)
	vote(t, r, id, "dave", 0, 1)

	res := closeAndResolve(t, r, clock, facility, id)
	require.Equal(t, []uint64{2, 2}, res.Totals)
	require.Equal(t, ballot.Draw, res.Winner)
	require.False(t, res.Passed)
}

func TestRegistry_ResolveThreshold(t *testing.T) {
	r, _, clock, facility := makeRegistry(t)

	params := makeParams("dao", "threshold", ballot.SingleChoice, "a", "b")
	params.BasisPoints = 6000

	id := mustCreate(t, r, params)
	clock.Advance(2 * time.Minute)

	vote(t, r, id, "alice", 1, 0)
	vote(t, r, id, "bob", 1, 0)
	vote(t, r, id, "carol", 1, 0)
	vote(t, r, id, "dave", 0, 1)
	vote(t, r, id, "erin", 0, 1)

	// 3 out of 5 is exactly 60%, which is not strictly above the threshold.
	res := closeAndResolve(t, r, clock, facility, id)
	require.Equal(t, 0, res.Winner)
	require.False(t, res.Passed)
}

func TestRegistry_ResolveWithoutVotes(t *testing.T) {
	r, _, clock, facility := makeRegistry(t)

	id := mustCreate(t, r, makeParams("dao", "empty", ballot.SingleChoice, "a", "b"))

	res := closeAndResolve(t, r, clock, facility, id)
	require.Equal(t, []uint64{0, 0}, res.Totals)
	require.Equal(t, ballot.Draw, res.Winner)
	require.False(t, res.Passed)
}

func TestRegistry_RequestReveal(t *testing.T) {
	r, _, clock, facility := makeRegistry(t)

	id := mustCreate(t, r, makeParams("dao", "reveal", ballot.SingleChoice, "a", "b"))

	err := r.RequestReveal(id)
	require.True(t, xerrors.Is(err, ballot.ErrNotClosed), err)

	clock.Advance(2 * time.Minute)

	err = r.RequestReveal(id)
	require.True(t, xerrors.Is(err, ballot.ErrNotClosed), err)

	vote(t, r, id, "carol", 1, 0)

	clock.Advance(time.Hour)

	err = r.RequestReveal("unknown")
	require.True(t, xerrors.Is(err, ballot.ErrNotFound), err)

	require.NoError(t, r.RequestReveal(id))
	require.Len(t, facility.Requests(), 1)

	req := facility.Last()
	require.Equal(t, id, req.BallotID)
	require.NotEmpty(t, req.Token)
	require.Equal(t, handlesOf(1, 0), req.Handles)

	b := mustBallot(t, r, id)
	require.True(t, b.RevealRequested)
	require.Equal(t, req.Token, b.RevealToken)
	require.Equal(t, b.Accumulators, b.RevealHandles)

	err = r.RequestReveal(id)
	require.True(t, xerrors.Is(err, ballot.ErrAlreadyRequested), err)
	require.Len(t, facility.Requests(), 1)

	resolve(t, r, req)

	err = r.RequestReveal(id)
	require.True(t, xerrors.Is(err, ballot.ErrAlreadyRequested), err)
}

func TestRegistry_RequestRevealCancelled(t *testing.T) {
	r, _, clock, _ := makeRegistry(t)

	id := mustCreate(t, r, makeParams("dao", "cancelled", ballot.SingleChoice, "a", "b"))
	require.NoError(t, r.Cancel(id, "carol"))

	clock.Advance(2 * time.Hour)

	err := r.RequestReveal(id)
	require.True(t, xerrors.Is(err, ballot.ErrNotClosed), err)
}

func TestRegistry_Callback(t *testing.T) {
	r, _, clock, facility := makeRegistry(t)

	id := mustCreate(t, r, makeParams("dao", "callback", ballot.SingleChoice, "a", "b"))
	clock.Advance(2 * time.Minute)

	vote(t, r, id, "carol", 1, 0)

	clock.Advance(time.Hour)

	err := r.OnRevealCallback("unknown", []uint64{1, 0}, nil)
	require.True(t, xerrors.Is(err, ballot.ErrNotFound), err)

	totals := []uint64{1, 0}
	proof := plain.Attest(handlesOf(1, 0), totals)

	// A callback without a pending request is refused.
	err = r.OnRevealCallback(id, totals, proof)
	require.True(t, xerrors.Is(err, ballot.ErrNotRequested), err)

	require.NoError(t, r.RequestReveal(id))
	require.NoError(t, r.OnRevealCallback(id, totals, proof))

	// The result is written once.
	err = r.OnRevealCallback(id, []uint64{0, 1}, plain.Attest(handlesOf(1, 0), []uint64{0, 1}))
	require.True(t, xerrors.Is(err, ballot.ErrAlreadyResolved), err)

	res := mustBallot(t, r, id).Result
	require.Equal(t, []uint64{1, 0}, res.Totals)
	require.Equal(t, 0, res.Winner)

	require.Len(t, facility.Requests(), 1)
}

func TestRegistry_CallbackInvalidProof(t *testing.T) {
	buffer := new(bytes.Buffer)
	logger := zerolog.New(buffer)

	r, _, clock, facility := makeRegistry(t, WithLogger(logger))

	id := mustCreate(t, r, makeParams("dao", "proof", ballot.SingleChoice, "a", "b"))
	clock.Advance(2 * time.Minute)

	vote(t, r, id, "carol", 1, 0)
	vote(t, r, id, "dave", 1, 0)

	clock.Advance(time.Hour)
	require.NoError(t, r.RequestReveal(id))

	req := facility.Last()

	cases := []struct {
		totals []uint64
		proof  []byte
	}{
		// forged totals
		{[]uint64{0, 2}, plain.Attest(req.Handles, []uint64{0, 2})},
		// proof of other totals
		{[]uint64{2, 0}, plain.Attest(req.Handles, []uint64{0, 2})},
		// wrong arity
		{[]uint64{2}, plain.Attest(req.Handles[:1], []uint64{2})},
		// no proof
		{[]uint64{2, 0}, nil},
	}

	for i, c := range cases {
		err := r.OnRevealCallback(id, c.totals, c.proof)
		require.True(t, xerrors.Is(err, ballot.ErrInvalidProof), "case %d: %v", i, err)
	}

	require.Contains(t, buffer.String(), "invalid reveal proof")

	state, err := r.State(id)
	require.NoError(t, err)
	require.Equal(t, ballot.RevealRequested, state)

	resolve(t, r, req)

	res := mustBallot(t, r, id).Result
	require.Equal(t, []uint64{2, 0}, res.Totals)
}

func TestRegistry_RetryReveal(t *testing.T) {
	r, _, clock, facility := makeRegistry(t)

	id := mustCreate(t, r, makeParams("dao", "retry", ballot.SingleChoice, "a", "b"))
	clock.Advance(2 * time.Minute)

	vote(t, r, id, "carol", 0, 1)

	err := r.RetryReveal(id, registryOwner)
	require.True(t, xerrors.Is(err, ballot.ErrNotRequested), err)

	clock.Advance(time.Hour)

	facility.SetError(fake.GetError())

	err = r.RequestReveal(id)
	require.EqualError(t, err, fake.Err("failed to request reveal"))

	// The transition is kept and the request can be retried.
	state, err := r.State(id)
	require.NoError(t, err)
	require.Equal(t, ballot.RevealRequested, state)

	first := facility.Last()

	err = r.RetryReveal(id, "carol")
	require.True(t, xerrors.Is(err, ballot.ErrUnauthorized), err)

	err = r.RetryReveal("unknown", registryOwner)
	require.True(t, xerrors.Is(err, ballot.ErrNotFound), err)

	err = r.RetryReveal(id, registryOwner)
	require.EqualError(t, err, fake.Err("failed to request reveal"))

	facility.SetError(nil)

	require.NoError(t, r.RetryReveal(id, registryOwner))
	require.Len(t, facility.Requests(), 3)

	second := facility.Last()
	require.NotEqual(t, first.Token, second.Token)
	require.Equal(t, first.Handles, second.Handles)
	require.Equal(t, second.Token, mustBallot(t, r, id).RevealToken)

	resolve(t, r, second)

	err = r.RetryReveal(id, registryOwner)
	require.True(t, xerrors.Is(err, ballot.ErrAlreadyResolved), err)
}

func TestRegistry_RetryRevealWithoutOwner(t *testing.T) {
	r, _, _, _ := makeRegistry(t, WithOwner(""))

	id := mustCreate(t, r, makeParams("dao", "owner", ballot.SingleChoice, "a", "b"))

	err := r.RetryReveal(id, "")
	require.True(t, xerrors.Is(err, ballot.ErrUnauthorized), err)
}

func TestRegistry_DefaultFacility(t *testing.T) {
	clock := fake.NewClock(epoch)

	r, err := NewRegistry(makeOracle(t), plain.NewBackend(), WithClock(clock.Now))
	require.NoError(t, err)

	params := makeParams("dao", "drop", ballot.SingleChoice, "a", "b")
	params.WindowStart = epoch.Add(-time.Hour)
	params.WindowEnd = epoch.Add(time.Minute)

	id, err := r.Create("carol", params)
	require.NoError(t, err)

	clock.Advance(time.Hour)

	err = r.RequestReveal(id)
	require.EqualError(t, err, "failed to request reveal: no decryption facility")

	state, err := r.State(id)
	require.NoError(t, err)
	require.Equal(t, ballot.RevealRequested, state)
}
