package automation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/ballotbox/accumulator/plain"
	"go.dedis.ch/ballotbox/ballot"
	"go.dedis.ch/ballotbox/eligibility"
	"go.dedis.ch/ballotbox/eligibility/memory"
	"go.dedis.ch/ballotbox/internal/testing/fake"
	"go.dedis.ch/ballotbox/registry"
)

func TestService_Tick(t *testing.T) {
	sched := &fakeScheduler{
		batches: [][]string{{"a", "b"}},
	}

	srvc := NewService(sched, 0)
	require.Equal(t, DefaultInterval, srvc.interval)

	require.Equal(t, 2, srvc.Tick())
	require.Equal(t, [][]string{{"a", "b"}}, sched.applied)

	// Nothing to apply when the scan is empty.
	require.Equal(t, 0, srvc.Tick())
	require.Len(t, sched.applied, 1)
}

func TestService_StartStop(t *testing.T) {
	sched := &fakeScheduler{
		batches: [][]string{{"a"}, {"b", "c"}},
	}

	logger, wait := fake.WaitLog("automation stopped", 5*time.Second)

	srvc := NewService(sched, time.Millisecond)
	srvc.logger = logger

	require.NoError(t, srvc.Start(context.Background()))

	err := srvc.Start(context.Background())
	require.EqualError(t, err, "service already running")

	require.Eventually(t, func() bool {
		return sched.appliedCount() == 2
	}, 5*time.Second, time.Millisecond)

	srvc.Stop()
	wait(t)

	// Stopping twice is a no-op.
	srvc.Stop()

	// The service can be restarted.
	require.NoError(t, srvc.Start(context.Background()))
	srvc.Stop()
}

func TestService_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	srvc := NewService(&fakeScheduler{}, time.Millisecond)
	require.NoError(t, srvc.Start(ctx))

	cancel()

	done := make(chan struct{})
	go func() {
		srvc.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}
}

func TestService_Registry(t *testing.T) {
	epoch := time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

	oracle := memory.NewOracle()
	require.NoError(t, oracle.AddSpace(memory.Space{
		ID:          "dao",
		Owner:       "alice",
		Members:     []string{"alice"},
		Eligibility: eligibility.Config{Type: eligibility.Whitelist},
	}))

	clock := fake.NewClock(epoch)
	facility := &fake.Facility{}

	reg, err := registry.NewRegistry(oracle, plain.NewBackend(),
		registry.WithClock(clock.Now), registry.WithFacility(facility), registry.WithMaxBatch(2))
	require.NoError(t, err)

	for _, title := range []string{"a", "b", "c", "d", "e"} {
		_, err := reg.Create("alice", ballot.Params{
			Space:       "dao",
			Title:       title,
			Mode:        ballot.SingleChoice,
			Choices:     []string{"yes", "no"},
			WindowStart: epoch,
			WindowEnd:   epoch.Add(time.Hour),
		})
		require.NoError(t, err)
	}

	srvc := NewService(reg, time.Millisecond)

	require.Equal(t, 0, srvc.Tick())

	clock.Advance(2 * time.Hour)

	require.NoError(t, srvc.Start(context.Background()))

	require.Eventually(t, func() bool {
		return len(facility.Requests()) == 5
	}, 5*time.Second, time.Millisecond)

	srvc.Stop()

	for _, b := range reg.List("dao") {
		require.True(t, b.RevealRequested)
	}
}

// -----------------------------------------------------------------------------
// Utility functions

type fakeScheduler struct {
	sync.Mutex
	batches [][]string
	applied [][]string
}

func (s *fakeScheduler) Scan() registry.ScanResult {
	s.Lock()
	defer s.Unlock()

	if len(s.batches) == 0 {
		return registry.ScanResult{Batch: []string{}}
	}

	return registry.ScanResult{WorkFound: true, Batch: s.batches[0]}
}

func (s *fakeScheduler) Apply(batch []string) int {
	s.Lock()
	defer s.Unlock()

	s.batches = s.batches[1:]
	s.applied = append(s.applied, batch)

	return len(batch)
}

func (s *fakeScheduler) appliedCount() int {
	s.Lock()
	defer s.Unlock()

	return len(s.applied)
}
