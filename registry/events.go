package registry

// BallotCreated is notified when a ballot is created.
type BallotCreated struct {
	BallotID string
	Space    string
	Title    string
}

// BallotCancelled is notified when a ballot is cancelled.
type BallotCancelled struct {
	BallotID string
}

// VoteCast is notified when a vote is accumulated. It never contains the
// selection.
type VoteCast struct {
	BallotID string
	Voter    string
}

// RevealRequested is notified when a decryption request is issued.
type RevealRequested struct {
	BallotID string
	Token    string
}

// RevealResolved is notified when a ballot is resolved.
type RevealResolved struct {
	BallotID string
	Winner   int
	Passed   bool
	Totals   []uint64
}

// BatchProcessed is notified after a scheduler batch is applied.
type BatchProcessed struct {
	Scanned  int
	Advanced int
}
