package elgamal

import (
	"crypto/sha256"
	"math"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"go.dedis.ch/ballotbox/accumulator"
	"go.dedis.ch/kyber/v3"
	"golang.org/x/xerrors"
)

// DefaultMaxTotal is the default largest total a decrypter can recover.
const DefaultMaxTotal = 1 << 32

// share is the decryption share of a single ciphertext alongside the proof
// that it was computed with the secret of the public key.
type share struct {
	U []byte `cbor:"1,keyasint"`
	E []byte `cbor:"2,keyasint"`
	F []byte `cbor:"3,keyasint"`
}

type revealProof struct {
	Shares []share `cbor:"1,keyasint"`
}

// Decrypter decrypts accumulators for the owner of the secret key.
//
// - implements accumulator.Decrypter
type Decrypter struct {
	secret kyber.Scalar
	pubkey kyber.Point
	max    uint64

	once  sync.Once
	table *babySteps
}

// NewDecrypter returns a decrypter for the key pair that can recover totals up
// to the maximum.
func NewDecrypter(kp KeyPair, max uint64) *Decrypter {
	if max == 0 {
		max = DefaultMaxTotal
	}

	return &Decrypter{
		secret: kp.Secret,
		pubkey: kp.Public,
		max:    max,
	}
}

// Reveal implements accumulator.Decrypter. It decrypts each handle and proves
// the decryption.
func (d *Decrypter) Reveal(handles []accumulator.Handle) ([]uint64, []byte, error) {
	d.once.Do(func() {
		d.table = newBabySteps(d.max)
	})

	totals := make([]uint64, len(handles))
	rp := revealProof{Shares: make([]share, len(handles))}

	for i, h := range handles {
		ct, err := Decode(h)
		if err != nil {
			return nil, nil, xerrors.Errorf("handle %d: %v", i, err)
		}

		U := suite.Point().Mul(d.secret, ct.K)
		M := suite.Point().Sub(ct.C, U)

		total, found := d.table.log(M)
		if !found {
			return nil, nil, xerrors.Errorf("handle %d: total out of range", i)
		}

		totals[i] = total

		s := suite.Scalar().Pick(suite.RandomStream())
		UHat := suite.Point().Mul(s, ct.K)
		HHat := suite.Point().Mul(s, nil)

		E := challenge(ct.K, U, d.pubkey, UHat, HHat)
		F := suite.Scalar().Add(s, suite.Scalar().Mul(E, d.secret))

		rp.Shares[i], err = makeShare(U, E, F)
		if err != nil {
			return nil, nil, xerrors.Errorf("handle %d: %v", i, err)
		}
	}

	data, err := cbor.Marshal(rp)
	if err != nil {
		return nil, nil, xerrors.Errorf("failed to encode proof: %v", err)
	}

	return totals, data, nil
}

// VerifyReveal implements accumulator.Backend. It checks the proof of each
// decryption share, then that the share decrypts the handle to the total.
func (b Backend) VerifyReveal(handles []accumulator.Handle, totals []uint64, data []byte) error {
	if len(handles) != len(totals) {
		return xerrors.Errorf("expected %d totals, got %d", len(handles), len(totals))
	}

	var rp revealProof

	err := cbor.Unmarshal(data, &rp)
	if err != nil {
		return xerrors.Errorf("failed to decode proof: %v", err)
	}

	if len(rp.Shares) != len(handles) {
		return xerrors.Errorf("expected %d shares, got %d", len(handles), len(rp.Shares))
	}

	for i, h := range handles {
		ct, err := Decode(h)
		if err != nil {
			return xerrors.Errorf("handle %d: %v", i, err)
		}

		err = b.checkShare(ct, rp.Shares[i], totals[i])
		if err != nil {
			return xerrors.Errorf("share %d: %v", i, err)
		}
	}

	return nil
}

func (b Backend) checkShare(ct Ciphertext, sh share, total uint64) error {
	U := suite.Point()
	E := suite.Scalar()
	F := suite.Scalar()

	err := U.UnmarshalBinary(sh.U)
	if err != nil {
		return xerrors.Errorf("failed to unmarshal U: %v", err)
	}

	err = E.UnmarshalBinary(sh.E)
	if err != nil {
		return xerrors.Errorf("failed to unmarshal E: %v", err)
	}

	err = F.UnmarshalBinary(sh.F)
	if err != nil {
		return xerrors.Errorf("failed to unmarshal F: %v", err)
	}

	tmp1 := suite.Point().Mul(F, ct.K)
	tmp2 := suite.Point().Mul(E, U)
	UHat := suite.Point().Sub(tmp1, tmp2)

	tmp1 = suite.Point().Mul(F, nil)
	tmp2 = suite.Point().Mul(E, b.pubkey)
	HHat := suite.Point().Sub(tmp1, tmp2)

	tmp := challenge(ct.K, U, b.pubkey, UHat, HHat)
	if !tmp.Equal(E) {
		return xerrors.Errorf("hash is not valid: %x != %x", E, tmp)
	}

	M := suite.Point().Sub(ct.C, U)
	if !M.Equal(suite.Point().Mul(scalarOf(total), nil)) {
		return xerrors.New("total does not match")
	}

	return nil
}

func challenge(K, U, H, UHat, HHat kyber.Point) kyber.Scalar {
	hash := sha256.New()
	K.MarshalTo(hash)
	U.MarshalTo(hash)
	H.MarshalTo(hash)
	UHat.MarshalTo(hash)
	HHat.MarshalTo(hash)

	return suite.Scalar().SetBytes(hash.Sum(nil))
}

func makeShare(U kyber.Point, E, F kyber.Scalar) (share, error) {
	u, err := U.MarshalBinary()
	if err != nil {
		return share{}, xerrors.Errorf("failed to marshal U: %v", err)
	}

	e, err := E.MarshalBinary()
	if err != nil {
		return share{}, xerrors.Errorf("failed to marshal E: %v", err)
	}

	f, err := F.MarshalBinary()
	if err != nil {
		return share{}, xerrors.Errorf("failed to marshal F: %v", err)
	}

	return share{U: u, E: e, F: f}, nil
}

// babySteps solves the discrete logarithm of points mB with m in [0, max]
// with the baby-step giant-step algorithm.
type babySteps struct {
	max   uint64
	steps uint64
	table map[string]uint64
	giant kyber.Point
}

func newBabySteps(max uint64) *babySteps {
	steps := uint64(math.Ceil(math.Sqrt(float64(max) + 1)))

	table := make(map[string]uint64, steps)
	point := suite.Point().Null()
	base := suite.Point().Base()

	for j := uint64(0); j < steps; j++ {
		table[point.String()] = j
		point = suite.Point().Add(point, base)
	}

	return &babySteps{
		max:   max,
		steps: steps,
		table: table,
		giant: suite.Point().Neg(point),
	}
}

func (bs *babySteps) log(M kyber.Point) (uint64, bool) {
	gamma := suite.Point().Set(M)

	for i := uint64(0); i <= bs.steps; i++ {
		j, found := bs.table[gamma.String()]
		if found {
			m := i*bs.steps + j
			return m, m <= bs.max
		}

		gamma = suite.Point().Add(gamma, bs.giant)
	}

	return 0, false
}
