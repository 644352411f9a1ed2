// Package ballotbox implements an engine for private group decisions. Ballots
// accumulate encrypted votes that are only revealed, through a verified
// decryption, once the voting window has elapsed.
package ballotbox

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var logout = zerolog.ConsoleWriter{
	Out:        os.Stdout,
	TimeFormat: time.RFC3339,
}

// Logger is a globally available logger instance.
var Logger = zerolog.New(logout).
	With().Timestamp().Logger().
	With().Caller().Logger().
	Level(zerolog.DebugLevel)

// PromCollectors exposes the collectors of the modules so that they can be
// registered by the prometheus handler.
var PromCollectors []prometheus.Collector
