package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.dedis.ch/ballotbox"
)

// defines prometheus metrics
var (
	promBallots = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ballotbox_registry_ballots_total",
		Help: "total number of ballots created",
	})

	promVotes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ballotbox_registry_votes_total",
		Help: "total number of votes accumulated",
	})

	promRequested = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ballotbox_registry_reveals_requested_total",
		Help: "total number of decryption requests issued",
	})

	promResolved = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ballotbox_registry_ballots_resolved_total",
		Help: "total number of ballots resolved",
	})

	promScheduled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ballotbox_registry_scheduler_advanced_total",
		Help: "total number of ballots advanced by the scheduler",
	})

	promRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ballotbox_registry_rejected_total",
		Help: "total number of rejected selections and callbacks",
	}, []string{"reason"})
)

func init() {
	ballotbox.PromCollectors = append(ballotbox.PromCollectors, promBallots,
		promVotes, promRequested, promResolved, promScheduled, promRejected)
}
