// Package elgamal implements the accumulator backend with exponential ElGamal
// on the Ed25519 curve.
//
// A value m is encrypted as (K, C) = (rG, mG + rH) where H is the public key
// of the decryption facility. Ciphertexts are added component-wise and scaled
// by a public weight, so that the accumulators never leave the encrypted
// domain. Selections carry disjunctive proofs that each entry encrypts a value
// of the domain, and reveals carry Chaum-Pedersen proofs of correct
// decryption.
//
// Documentation Last Review: 19.10.2026
//
package elgamal

import (
	"math"

	"go.dedis.ch/ballotbox/accumulator"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/suites"
	"golang.org/x/xerrors"
)

// Name is the name of the backend.
const Name = "elgamal-ed25519"

// suite is the Kyber suite for the accumulators.
var suite = suites.MustFind("Ed25519")

// Ciphertext is an exponential ElGamal ciphertext.
type Ciphertext struct {
	K kyber.Point
	C kyber.Point
}

// NewZero returns the trivial encryption of zero.
func NewZero() Ciphertext {
	return Ciphertext{
		K: suite.Point().Null(),
		C: suite.Point().Null(),
	}
}

// Encrypt encrypts the value with the public key and returns the ciphertext
// alongside the random nonce.
func Encrypt(pub kyber.Point, value uint64) (Ciphertext, kyber.Scalar) {
	r := suite.Scalar().Pick(suite.RandomStream())

	ct := Ciphertext{
		K: suite.Point().Mul(r, nil),
		C: suite.Point().Add(
			suite.Point().Mul(scalarOf(value), nil),
			suite.Point().Mul(r, pub),
		),
	}

	return ct, r
}

// Add sets the ciphertext to the sum of itself and the other ciphertext
// scaled by the weight.
func (ct *Ciphertext) Add(other Ciphertext, weight kyber.Scalar) {
	ct.K = suite.Point().Add(ct.K, suite.Point().Mul(weight, other.K))
	ct.C = suite.Point().Add(ct.C, suite.Point().Mul(weight, other.C))
}

// Handle returns the serialized ciphertext.
func (ct Ciphertext) Handle() accumulator.Handle {
	h := make(accumulator.Handle, 0, 2*suite.PointLen())

	// Ed25519 points never fail to marshal.
	k, _ := ct.K.MarshalBinary()
	c, _ := ct.C.MarshalBinary()

	h = append(h, k...)
	h = append(h, c...)

	return h
}

// Decode returns the ciphertext of the handle.
func Decode(h accumulator.Handle) (Ciphertext, error) {
	size := suite.PointLen()

	if len(h) != 2*size {
		return Ciphertext{}, xerrors.Errorf("invalid handle length %d", len(h))
	}

	ct := NewZero()

	err := ct.K.UnmarshalBinary(h[:size])
	if err != nil {
		return ct, xerrors.Errorf("failed to unmarshal K: %v", err)
	}

	err = ct.C.UnmarshalBinary(h[size:])
	if err != nil {
		return ct, xerrors.Errorf("failed to unmarshal C: %v", err)
	}

	return ct, nil
}

// Backend is the ElGamal backend. It only knows the public key, which is
// enough to accumulate, encrypt selections and verify reveals.
//
// - implements accumulator.Backend
// - implements accumulator.Encrypter
type Backend struct {
	pubkey   kyber.Point
	capacity uint64
}

// NewBackend returns a new backend for the public key. The capacity must be
// the largest total the decrypter recovers, DefaultMaxTotal when zero.
func NewBackend(pubkey kyber.Point, capacity uint64) Backend {
	if capacity == 0 {
		capacity = DefaultMaxTotal
	}

	return Backend{
		pubkey:   pubkey,
		capacity: capacity,
	}
}

// Capacity implements accumulator.Backend.
func (b Backend) Capacity() uint64 {
	return b.capacity
}

// Name implements accumulator.Backend.
func (b Backend) Name() string {
	return Name
}

// Zero implements accumulator.Backend.
func (b Backend) Zero() accumulator.Accumulator {
	return &encryptedCounter{ct: NewZero()}
}

// Load implements accumulator.Backend.
func (b Backend) Load(h accumulator.Handle) (accumulator.Accumulator, error) {
	ct, err := Decode(h)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode: %v", err)
	}

	return &encryptedCounter{ct: ct}, nil
}

// encryptedCounter is an accumulator over ciphertexts.
//
// - implements accumulator.Accumulator
type encryptedCounter struct {
	ct Ciphertext
}

// Add implements accumulator.Accumulator.
func (c *encryptedCounter) Add(h accumulator.Handle, weight uint64) error {
	value, err := Decode(h)
	if err != nil {
		return xerrors.Errorf("failed to decode: %v", err)
	}

	c.ct.Add(value, scalarOf(weight))

	return nil
}

// Snapshot implements accumulator.Accumulator.
func (c *encryptedCounter) Snapshot() accumulator.Handle {
	return c.ct.Handle()
}

// scalarOf returns the scalar of an unsigned integer.
func scalarOf(value uint64) kyber.Scalar {
	if value <= math.MaxInt64 {
		return suite.Scalar().SetInt64(int64(value))
	}

	half := suite.Scalar().SetInt64(int64(value >> 1))
	s := suite.Scalar().Add(half, half)

	return s.Add(s, suite.Scalar().SetInt64(int64(value&1)))
}
