// Package automation implements the service that periodically scans the
// registry for closed ballots and requests their reveal.
//
// Documentation Last Review: 19.10.2026
//
package automation

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.dedis.ch/ballotbox"
	"go.dedis.ch/ballotbox/registry"
	"golang.org/x/xerrors"
)

// DefaultInterval is the default time between two scans.
const DefaultInterval = 10 * time.Second

// Scheduler is the interface of the component that finds the work and applies
// it.
type Scheduler interface {
	Scan() registry.ScanResult
	Apply(batch []string) int
}

// Service runs the scan and apply steps on a ticker.
type Service struct {
	sync.Mutex

	scheduler Scheduler
	interval  time.Duration
	logger    zerolog.Logger
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewService returns a new service running the scheduler at the interval.
func NewService(scheduler Scheduler, interval time.Duration) *Service {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Service{
		scheduler: scheduler,
		interval:  interval,
		logger:    ballotbox.Logger.With().Str("module", "automation").Logger(),
	}
}

// Start starts the loop in the background. It returns an error if the service
// is already running.
func (s *Service) Start(ctx context.Context) error {
	s.Lock()
	defer s.Unlock()

	if s.cancel != nil {
		return xerrors.New("service already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx, s.done)

	s.logger.Info().Dur("interval", s.interval).Msg("automation started")

	return nil
}

// Stop stops the loop and waits for the current tick to finish.
func (s *Service) Stop() {
	s.Lock()
	defer s.Unlock()

	if s.cancel != nil {
		s.cancel()
		<-s.done

		s.cancel = nil

		s.logger.Info().Msg("automation stopped")
	}
}

// Tick runs a single scan and applies the batch when work is found. It
// returns the number of ballots that advanced.
func (s *Service) Tick() int {
	res := s.scheduler.Scan()
	if !res.WorkFound {
		return 0
	}

	s.logger.Debug().Int("size", len(res.Batch)).Msg("work found")

	return s.scheduler.Apply(res.Batch)
}

func (s *Service) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A full batch means more ballots may be waiting, so the scan is
			// repeated until the registry is drained.
			for s.Tick() > 0 && ctx.Err() == nil {
			}
		}
	}
}
