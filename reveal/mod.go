// Package reveal defines the round trip with the decryption facility. The
// engine issues a request with the encrypted totals of a ballot and the
// facility answers later through the receiver with the cleartext totals and a
// proof of correct decryption.
package reveal

import "go.dedis.ch/ballotbox/accumulator"

// Request is a decryption request for the accumulators of a ballot.
type Request struct {
	BallotID string
	Token    string
	Handles  []accumulator.Handle
}

// Receiver is the callback surface of the engine.
type Receiver interface {
	// OnRevealCallback delivers the totals of a ballot alongside the proof
	// that they are the decryption of the requested handles.
	OnRevealCallback(ballotID string, totals []uint64, proof []byte) error
}

// Facility is the external decryption facility. A request must not block:
// the answer is delivered asynchronously to the receiver.
type Facility interface {
	RequestReveal(req Request) error
}
