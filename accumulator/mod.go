// Package accumulator defines the abstraction of the encrypted per-choice
// counters of a ballot.
//
// A backend provides accumulators that start at an encrypted zero and only
// support the commutative addition of an encrypted value scaled by a public
// weight. The cleartext is never read by the engine: it is revealed by an
// external decryption facility whose answer is verified by the backend.
//
// Documentation Last Review: 19.10.2026
//
package accumulator

// Handle is the serialized form of an encrypted value.
type Handle []byte

// Domain describes the cleartext values a selection is allowed to encrypt.
type Domain struct {
	// Max is the largest value of each entry.
	Max uint64

	// OneHot requires exactly one entry to encrypt one and all others to
	// encrypt zero.
	OneHot bool
}

// Selection is an encrypted vote. It contains one entry per choice alongside
// a proof that the entries lie in the domain.
type Selection struct {
	Entries []Handle
	Proof   []byte
}

// Accumulator is a running encrypted total.
type Accumulator interface {
	// Add adds the encrypted value multiplied by the public weight to the
	// total.
	Add(value Handle, weight uint64) error

	// Snapshot returns the current total.
	Snapshot() Handle
}

// Backend is the cryptographic backend of the accumulators.
type Backend interface {
	// Name returns the identifier of the backend.
	Name() string

	// Capacity returns the largest total an accumulator can hold and still be
	// revealed.
	Capacity() uint64

	// Zero returns a new accumulator holding an encrypted zero.
	Zero() Accumulator

	// Load returns an accumulator restored from a snapshot.
	Load(Handle) (Accumulator, error)

	// CheckSelection verifies that the selection has n entries which all lie
	// in the domain. It must reject the selection without decrypting it.
	CheckSelection(sel Selection, n int, dom Domain) error

	// VerifyReveal verifies that the totals are the decryption of the handles
	// according to the proof.
	VerifyReveal(handles []Handle, totals []uint64, proof []byte) error
}

// Encrypter is the voter side of a backend.
type Encrypter interface {
	// EncryptSelection encrypts the values and proves they lie in the domain.
	EncryptSelection(values []uint64, dom Domain) (Selection, error)
}

// Decrypter is the decryption facility side of a backend.
type Decrypter interface {
	// Reveal decrypts the handles and returns the totals alongside a proof of
	// correct decryption.
	Reveal(handles []Handle) ([]uint64, []byte, error)
}
