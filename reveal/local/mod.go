// Package local implements a decryption facility running in the same process
// as the engine. Requests are queued and served by a worker that decrypts the
// handles and calls the receiver back.
package local

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"go.dedis.ch/ballotbox"
	"go.dedis.ch/ballotbox/accumulator"
	"go.dedis.ch/ballotbox/reveal"
	"golang.org/x/xerrors"
)

// DefaultQueueSize is the default number of pending requests.
const DefaultQueueSize = 64

// ErrQueueFull is returned when the facility cannot accept more requests.
var ErrQueueFull = xerrors.New("queue is full")

// Facility is a local decryption facility.
//
// - implements reveal.Facility
type Facility struct {
	sync.Mutex

	decrypter accumulator.Decrypter
	queue     chan reveal.Request
	logger    zerolog.Logger
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewFacility returns a new facility using the decrypter.
func NewFacility(dec accumulator.Decrypter, queueSize int) *Facility {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	return &Facility{
		decrypter: dec,
		queue:     make(chan reveal.Request, queueSize),
		logger:    ballotbox.Logger.With().Str("module", "reveal").Logger(),
	}
}

// RequestReveal implements reveal.Facility. It queues the request without
// blocking.
func (f *Facility) RequestReveal(req reveal.Request) error {
	select {
	case f.queue <- req:
		f.logger.Debug().Str("ballot", req.BallotID).Str("token", req.Token).
			Msg("reveal request queued")
		return nil
	default:
		return ErrQueueFull
	}
}

// Start starts the worker serving the requests. It returns an error if the
// facility is already running.
func (f *Facility) Start(ctx context.Context, receiver reveal.Receiver) error {
	f.Lock()
	defer f.Unlock()

	if f.cancel != nil {
		return xerrors.New("facility already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.done = make(chan struct{})

	go f.serve(ctx, receiver, f.done)

	return nil
}

// Stop stops the worker and waits for it to return. Queued requests are kept
// for the next start.
func (f *Facility) Stop() {
	f.Lock()
	defer f.Unlock()

	if f.cancel != nil {
		f.cancel()
		<-f.done

		f.cancel = nil
	}
}

func (f *Facility) serve(ctx context.Context, receiver reveal.Receiver, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-f.queue:
			f.handle(req, receiver)
		}
	}
}

func (f *Facility) handle(req reveal.Request, receiver reveal.Receiver) {
	totals, proof, err := f.decrypter.Reveal(req.Handles)
	if err != nil {
		f.logger.Err(err).Str("ballot", req.BallotID).Msg("failed to decrypt")
		return
	}

	err = receiver.OnRevealCallback(req.BallotID, totals, proof)
	if err != nil {
		f.logger.Warn().Err(err).Str("ballot", req.BallotID).Msg("callback refused")
		return
	}

	f.logger.Info().Str("ballot", req.BallotID).Str("token", req.Token).
		Msg("reveal delivered")
}
