// Package registry implements the registry of ballots. It owns every ballot,
// the global title index and the scheduler that requests the reveal of the
// ballots whose voting window elapsed.
//
// Every mutation is atomic: it is validated, persisted and only then applied
// to the memory state, so that a failure leaves the registry untouched. Events
// are notified to the observers after the mutation is applied.
//
// Documentation Last Review: 19.10.2026
//
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/rs/zerolog"
	"go.dedis.ch/ballotbox"
	"go.dedis.ch/ballotbox/accumulator"
	"go.dedis.ch/ballotbox/ballot"
	"go.dedis.ch/ballotbox/core"
	"go.dedis.ch/ballotbox/core/store/kv"
	"go.dedis.ch/ballotbox/eligibility"
	"go.dedis.ch/ballotbox/reveal"
	"golang.org/x/xerrors"
)

// DefaultMaxBatch is the default maximum number of ballots returned by a scan.
const DefaultMaxBatch = 20

// Option is the type of option to set some fields of a registry.
type Option func(*Registry)

// WithClock is an option to set the source of the current time.
func WithClock(clock func() time.Time) Option {
	return func(r *Registry) {
		r.clock = clock
	}
}

// WithMaxBatch is an option to set the maximum size of a scan batch.
func WithMaxBatch(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxBatch = n
		}
	}
}

// WithStorage is an option to persist the ballots in the database.
func WithStorage(db kv.DB) Option {
	return func(r *Registry) {
		r.storage = newStorage(db)
	}
}

// WithFacility is an option to set the decryption facility that receives the
// reveal requests.
func WithFacility(f reveal.Facility) Option {
	return func(r *Registry) {
		r.facility = f
	}
}

// WithLogger is an option to set the logger of the registry.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithOwner is an option to set the owner of the registry. The owner can
// cancel any pending ballot and re-issue stuck reveal requests.
func WithOwner(owner string) Option {
	return func(r *Registry) {
		r.owner = owner
	}
}

// Registry is the registry of ballots.
//
// - implements reveal.Receiver
type Registry struct {
	sync.Mutex

	oracle   eligibility.Oracle
	backend  accumulator.Backend
	facility reveal.Facility
	storage  *storage
	watcher  *core.Watcher
	logger   zerolog.Logger
	clock    func() time.Time
	owner    string
	maxBatch int

	ballots map[string]*ballot.Ballot
	order   []string
	titles  map[string]string
	pending *btree.BTreeG[indexItem]
}

// NewRegistry returns a new registry using the oracle to check the
// eligibility of the voters and the backend for the accumulators. When a
// storage is provided, the ballots it contains are loaded.
func NewRegistry(oracle eligibility.Oracle, backend accumulator.Backend, opts ...Option) (*Registry, error) {
	r := &Registry{
		oracle:   oracle,
		backend:  backend,
		facility: dropFacility{},
		watcher:  core.NewWatcher(),
		logger:   ballotbox.Logger.With().Str("module", "registry").Logger(),
		clock:    time.Now,
		maxBatch: DefaultMaxBatch,
		ballots:  make(map[string]*ballot.Ballot),
		titles:   make(map[string]string),
		pending:  newIndex(),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.storage != nil {
		err := r.load()
		if err != nil {
			return nil, xerrors.Errorf("failed to load: %v", err)
		}
	}

	return r, nil
}

// Watch registers the observer to the events of the registry. It returns a
// function to unregister it.
func (r *Registry) Watch(obs core.Observer) func() {
	r.watcher.Add(obs)

	return func() {
		r.watcher.Remove(obs)
	}
}

// Ballot returns a copy of the ballot with the given identifier.
func (r *Registry) Ballot(id string) (*ballot.Ballot, error) {
	r.Lock()
	defer r.Unlock()

	b, found := r.ballots[id]
	if !found {
		return nil, xerrors.Errorf("ballot '%s': %w", id, ballot.ErrNotFound)
	}

	return b.Clone(), nil
}

// State returns the current state of the ballot.
func (r *Registry) State(id string) (ballot.State, error) {
	r.Lock()
	defer r.Unlock()

	b, found := r.ballots[id]
	if !found {
		return 0, xerrors.Errorf("ballot '%s': %w", id, ballot.ErrNotFound)
	}

	return b.State(r.clock()), nil
}

// List returns a copy of the ballots of the space, or of every space if it is
// empty, in the order of creation.
func (r *Registry) List(space string) []*ballot.Ballot {
	r.Lock()
	defer r.Unlock()

	res := make([]*ballot.Ballot, 0, len(r.order))

	for _, id := range r.order {
		b := r.ballots[id]
		if space == "" || b.Space == space {
			res = append(res, b.Clone())
		}
	}

	return res
}

// HasVoted returns true if the principal voted for the ballot.
func (r *Registry) HasVoted(id, principal string) (bool, error) {
	r.Lock()
	defer r.Unlock()

	b, found := r.ballots[id]
	if !found {
		return false, xerrors.Errorf("ballot '%s': %w", id, ballot.ErrNotFound)
	}

	return b.HasVoted(principal), nil
}

// Create creates a new ballot in the space on behalf of the creator and
// returns its identifier. The creator must be the owner, an admin or a member
// of the space.
func (r *Registry) Create(creator string, params ballot.Params) (string, error) {
	r.Lock()

	now := r.clock()

	err := params.Validate(now)
	if err != nil {
		r.Unlock()
		return "", xerrors.Errorf("invalid parameters: %w", err)
	}

	if !r.oracle.SpaceExists(params.Space) || !r.oracle.SpaceIsActive(params.Space) {
		r.Unlock()
		return "", xerrors.Errorf("space '%s': %w", params.Space, ballot.ErrNotFound)
	}

	if !r.canCreate(params.Space, creator) {
		r.Unlock()
		return "", xerrors.Errorf("creator '%s': %w", creator, ballot.ErrUnauthorized)
	}

	_, found := r.titles[params.Title]
	if found {
		r.Unlock()
		return "", xerrors.Errorf("title '%s': %w", params.Title, ballot.ErrDuplicateTitle)
	}

	labels := params.Labels()

	accumulators := make([]accumulator.Handle, len(labels))
	for i := range accumulators {
		accumulators[i] = r.backend.Zero().Snapshot()
	}

	b := &ballot.Ballot{
		ID:            ballot.MakeID(params.Space, params.Title),
		Sequence:      uint64(len(r.order)),
		Space:         params.Space,
		Creator:       creator,
		Title:         params.Title,
		BodyReference: params.BodyReference,
		Mode:          params.Mode,
		Choices:       labels,
		Abstain:       params.IncludeAbstain,
		WindowStart:   params.WindowStart,
		WindowEnd:     params.WindowEnd,
		Eligibility:   r.oracle.SpaceEligibility(params.Space),
		BasisPoints:   params.BasisPoints,
		CreatedAt:     now,
		Accumulators:  accumulators,
	}

	err = r.persist(b, true)
	if err != nil {
		r.Unlock()
		return "", xerrors.Errorf("failed to store ballot: %v", err)
	}

	r.ballots[b.ID] = b
	r.order = append(r.order, b.ID)
	r.titles[b.Title] = b.ID
	r.pending.ReplaceOrInsert(indexItem{end: b.WindowEnd, id: b.ID})

	r.Unlock()

	promBallots.Inc()

	r.logger.Info().Str("ballot", b.ID).Str("space", b.Space).
		Str("mode", b.Mode.String()).Msg("ballot created")

	r.watcher.Notify(BallotCreated{BallotID: b.ID, Space: b.Space, Title: b.Title})

	return b.ID, nil
}

// Cancel cancels a ballot before its window opens. Only the creator of the
// ballot or the owner of the registry can cancel it.
func (r *Registry) Cancel(id, caller string) error {
	r.Lock()

	b, found := r.ballots[id]
	if !found {
		r.Unlock()
		return xerrors.Errorf("ballot '%s': %w", id, ballot.ErrNotFound)
	}

	if caller != b.Creator && (r.owner == "" || caller != r.owner) {
		r.Unlock()
		return xerrors.Errorf("caller '%s': %w", caller, ballot.ErrUnauthorized)
	}

	state := b.State(r.clock())
	if state != ballot.Pending {
		r.Unlock()
		return xerrors.Errorf("ballot is %v: %w", state, ballot.ErrNotPending)
	}

	next := b.Clone()
	next.Cancelled = true

	err := r.persist(next, false)
	if err != nil {
		r.Unlock()
		return xerrors.Errorf("failed to store ballot: %v", err)
	}

	r.ballots[id] = next
	r.pending.Delete(indexItem{end: next.WindowEnd, id: id})

	r.Unlock()

	r.logger.Info().Str("ballot", id).Str("caller", caller).Msg("ballot cancelled")

	r.watcher.Notify(BallotCancelled{BallotID: id})

	return nil
}

func (r *Registry) canCreate(space, creator string) bool {
	return creator == r.oracle.SpaceOwner(space) ||
		r.oracle.IsAdmin(space, creator) ||
		r.oracle.IsMember(space, creator)
}

// persist stores the ballot when a storage is set. The title index is written
// alongside when the ballot is new.
func (r *Registry) persist(b *ballot.Ballot, created bool) error {
	if r.storage == nil {
		return nil
	}

	return r.storage.store(b, created)
}

func (r *Registry) load() error {
	ballots, err := r.storage.loadAll()
	if err != nil {
		return err
	}

	sort.SliceStable(ballots, func(i, j int) bool {
		return ballots[i].Sequence < ballots[j].Sequence
	})

	for _, b := range ballots {
		r.ballots[b.ID] = b
		r.order = append(r.order, b.ID)
		r.titles[b.Title] = b.ID

		if !b.Cancelled && !b.RevealRequested && b.Result == nil {
			r.pending.ReplaceOrInsert(indexItem{end: b.WindowEnd, id: b.ID})
		}
	}

	r.logger.Info().Int("ballots", len(ballots)).Msg("registry loaded")

	return nil
}

// dropFacility is the facility used when none is provided. The requests are
// dropped and the ballots stay in the reveal requested state until a retry.
//
// - implements reveal.Facility
type dropFacility struct{}

func (dropFacility) RequestReveal(reveal.Request) error {
	return xerrors.New("no decryption facility")
}
