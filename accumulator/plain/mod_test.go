package plain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/ballotbox/accumulator"
)

var oneHot = accumulator.Domain{Max: 1, OneHot: true}

func TestBackend_Accumulate(t *testing.T) {
	backend := NewBackend()
	require.Equal(t, Name, backend.Name())
	require.Equal(t, uint64(math.MaxUint64), backend.Capacity())

	acc := backend.Zero()
	require.NoError(t, acc.Add(Encode(1), 1000))
	require.NoError(t, acc.Add(Encode(3), 2))

	value, err := Decode(acc.Snapshot())
	require.NoError(t, err)
	require.Equal(t, uint64(1006), value)

	loaded, err := backend.Load(acc.Snapshot())
	require.NoError(t, err)
	require.NoError(t, loaded.Add(Encode(1), 4))
	require.Equal(t, Encode(1010), loaded.Snapshot())

	_, err = backend.Load([]byte{1})
	require.EqualError(t, err, "failed to decode: invalid handle length 1")

	require.EqualError(t, acc.Add([]byte{}, 1), "failed to decode: invalid handle length 0")
	require.EqualError(t, acc.Add(Encode(2), math.MaxUint64), "overflow")

	full, err := backend.Load(Encode(math.MaxUint64))
	require.NoError(t, err)
	require.EqualError(t, full.Add(Encode(1), 1), "overflow")
}

func TestBackend_CheckSelection(t *testing.T) {
	backend := NewBackend()

	sel, err := backend.EncryptSelection([]uint64{0, 1, 0}, oneHot)
	require.NoError(t, err)
	require.NoError(t, backend.CheckSelection(sel, 3, oneHot))

	err = backend.CheckSelection(sel, 2, oneHot)
	require.EqualError(t, err, "expected 2 entries, got 3")

	sel = accumulator.Selection{Entries: []accumulator.Handle{Encode(1), Encode(1)}}
	err = backend.CheckSelection(sel, 2, oneHot)
	require.EqualError(t, err, "entries sum to 2 instead of 1")

	sel = accumulator.Selection{Entries: []accumulator.Handle{Encode(0), Encode(2)}}
	err = backend.CheckSelection(sel, 2, oneHot)
	require.EqualError(t, err, "entry 1: 2 > 1")

	sel = accumulator.Selection{Entries: []accumulator.Handle{{0}, Encode(1)}}
	err = backend.CheckSelection(sel, 2, oneHot)
	require.EqualError(t, err, "entry 0: invalid handle length 1")

	fractional := accumulator.Domain{Max: 100}
	sel, err = backend.EncryptSelection([]uint64{60, 30, 10}, fractional)
	require.NoError(t, err)
	require.NoError(t, backend.CheckSelection(sel, 3, fractional))

	_, err = backend.EncryptSelection([]uint64{101}, fractional)
	require.EqualError(t, err, "value 0 out of domain")
}

func TestBackend_Reveal(t *testing.T) {
	backend := NewBackend()

	handles := []accumulator.Handle{Encode(2), Encode(1)}

	totals, proof, err := backend.Reveal(handles)
	require.NoError(t, err)
	require.Equal(t, []uint64{2, 1}, totals)
	require.NoError(t, backend.VerifyReveal(handles, totals, proof))

	err = backend.VerifyReveal(handles, []uint64{2}, proof)
	require.EqualError(t, err, "expected 2 totals, got 1")

	err = backend.VerifyReveal(handles, []uint64{1, 2}, proof)
	require.EqualError(t, err, "total 0 mismatch")

	err = backend.VerifyReveal(handles, totals, []byte("forged"))
	require.EqualError(t, err, "attestation mismatch")

	err = backend.VerifyReveal([]accumulator.Handle{{1}}, []uint64{1}, proof)
	require.EqualError(t, err, "handle 0: invalid handle length 1")

	_, _, err = backend.Reveal([]accumulator.Handle{{1}})
	require.EqualError(t, err, "handle 0: invalid handle length 1")
}
