// Package plain implements a transparent accumulator backend. The values are
// not encrypted and the reveal proof is a digest of the handles and the
// totals. It is meant for tests and dry runs of the engine.
package plain

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/bits"

	"go.dedis.ch/ballotbox/accumulator"
	"golang.org/x/xerrors"
)

// Name is the name of the backend.
const Name = "plain"

const handleSize = 8

// Backend is the transparent backend.
//
// - implements accumulator.Backend
// - implements accumulator.Encrypter
// - implements accumulator.Decrypter
type Backend struct{}

// NewBackend returns a new transparent backend.
func NewBackend() Backend {
	return Backend{}
}

// Name implements accumulator.Backend.
func (Backend) Name() string {
	return Name
}

// Capacity implements accumulator.Backend. The handles hold any unsigned
// 64-bit total.
func (Backend) Capacity() uint64 {
	return math.MaxUint64
}

// Zero implements accumulator.Backend.
func (Backend) Zero() accumulator.Accumulator {
	return &counter{}
}

// Load implements accumulator.Backend.
func (Backend) Load(h accumulator.Handle) (accumulator.Accumulator, error) {
	value, err := Decode(h)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode: %v", err)
	}

	return &counter{value: value}, nil
}

// CheckSelection implements accumulator.Backend. The proof is ignored.
func (Backend) CheckSelection(sel accumulator.Selection, n int, dom accumulator.Domain) error {
	if len(sel.Entries) != n {
		return xerrors.Errorf("expected %d entries, got %d", n, len(sel.Entries))
	}

	var sum uint64

	for i, entry := range sel.Entries {
		value, err := Decode(entry)
		if err != nil {
			return xerrors.Errorf("entry %d: %v", i, err)
		}

		if value > dom.Max {
			return xerrors.Errorf("entry %d: %d > %d", i, value, dom.Max)
		}

		sum += value
	}

	if dom.OneHot && sum != 1 {
		return xerrors.Errorf("entries sum to %d instead of 1", sum)
	}

	return nil
}

// VerifyReveal implements accumulator.Backend.
func (Backend) VerifyReveal(handles []accumulator.Handle, totals []uint64, proof []byte) error {
	if len(handles) != len(totals) {
		return xerrors.Errorf("expected %d totals, got %d", len(handles), len(totals))
	}

	for i, h := range handles {
		value, err := Decode(h)
		if err != nil {
			return xerrors.Errorf("handle %d: %v", i, err)
		}

		if value != totals[i] {
			return xerrors.Errorf("total %d mismatch", i)
		}
	}

	if !bytes.Equal(proof, Attest(handles, totals)) {
		return xerrors.New("attestation mismatch")
	}

	return nil
}

// EncryptSelection implements accumulator.Encrypter.
func (Backend) EncryptSelection(values []uint64, dom accumulator.Domain) (accumulator.Selection, error) {
	entries := make([]accumulator.Handle, len(values))
	for i, value := range values {
		if value > dom.Max {
			return accumulator.Selection{}, xerrors.Errorf("value %d out of domain", i)
		}

		entries[i] = Encode(value)
	}

	return accumulator.Selection{Entries: entries}, nil
}

// Reveal implements accumulator.Decrypter.
func (Backend) Reveal(handles []accumulator.Handle) ([]uint64, []byte, error) {
	totals := make([]uint64, len(handles))

	for i, h := range handles {
		value, err := Decode(h)
		if err != nil {
			return nil, nil, xerrors.Errorf("handle %d: %v", i, err)
		}

		totals[i] = value
	}

	return totals, Attest(handles, totals), nil
}

// Encode returns the handle of a value.
func Encode(value uint64) accumulator.Handle {
	h := make(accumulator.Handle, handleSize)
	binary.BigEndian.PutUint64(h, value)

	return h
}

// Decode returns the value of a handle.
func Decode(h accumulator.Handle) (uint64, error) {
	if len(h) != handleSize {
		return 0, xerrors.Errorf("invalid handle length %d", len(h))
	}

	return binary.BigEndian.Uint64(h), nil
}

// Attest returns the proof binding the handles to the totals.
func Attest(handles []accumulator.Handle, totals []uint64) []byte {
	h := sha256.New()

	for _, handle := range handles {
		h.Write(handle)
	}

	buffer := make([]byte, handleSize)
	for _, total := range totals {
		binary.BigEndian.PutUint64(buffer, total)
		h.Write(buffer)
	}

	return h.Sum(nil)
}

// counter is a transparent accumulator.
//
// - implements accumulator.Accumulator
type counter struct {
	value uint64
}

// Add implements accumulator.Accumulator. It returns an error on overflow.
func (c *counter) Add(h accumulator.Handle, weight uint64) error {
	value, err := Decode(h)
	if err != nil {
		return xerrors.Errorf("failed to decode: %v", err)
	}

	hi, scaled := bits.Mul64(value, weight)
	if hi != 0 {
		return xerrors.New("overflow")
	}

	sum, carry := bits.Add64(c.value, scaled, 0)
	if carry != 0 {
		return xerrors.New("overflow")
	}

	c.value = sum

	return nil
}

// Snapshot implements accumulator.Accumulator.
func (c *counter) Snapshot() accumulator.Handle {
	return Encode(c.value)
}
