package elgamal

import (
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"go.dedis.ch/ballotbox/accumulator"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/proof"
	"golang.org/x/xerrors"
)

const (
	rangeProtocol = "ballotbox/selection/range/%d/%d"
	sumProtocol   = "ballotbox/selection/sum"
)

// selectionProof is the proof that the entries of a selection lie in the
// domain. Entries holds one disjunctive proof per entry, and Sum proves that
// the entries of a one-hot selection encrypt one in total.
type selectionProof struct {
	Entries [][]byte `cbor:"1,keyasint"`
	Sum     []byte   `cbor:"2,keyasint,omitempty"`
}

// EncryptSelection implements accumulator.Encrypter.
func (b Backend) EncryptSelection(values []uint64, dom accumulator.Domain) (accumulator.Selection, error) {
	cts := make([]Ciphertext, len(values))
	nonces := make([]kyber.Scalar, len(values))
	entries := make([]accumulator.Handle, len(values))

	var sp selectionProof
	var sum uint64

	for i, value := range values {
		if value > dom.Max {
			return accumulator.Selection{}, xerrors.Errorf("value %d out of domain", i)
		}

		cts[i], nonces[i] = Encrypt(b.pubkey, value)
		entries[i] = cts[i].Handle()
		sum += value

		pred := rangePredicate(dom.Max)
		secrets := map[string]kyber.Scalar{"r": nonces[i]}
		choice := map[proof.Predicate]int{pred: int(value)}

		prover := pred.Prover(suite, secrets, b.rangePoints(cts[i], dom.Max), choice)

		label, err := b.statement(fmt.Sprintf(rangeProtocol, i, dom.Max), cts[i])
		if err != nil {
			return accumulator.Selection{}, xerrors.Errorf("entry %d: %v", i, err)
		}

		prf, err := proof.HashProve(suite, label, prover)
		if err != nil {
			return accumulator.Selection{}, xerrors.Errorf("failed to prove entry %d: %v", i, err)
		}

		sp.Entries = append(sp.Entries, prf)
	}

	if dom.OneHot {
		if sum != 1 {
			return accumulator.Selection{}, xerrors.Errorf("values sum to %d instead of 1", sum)
		}

		total := NewZero()
		r := suite.Scalar().Zero()

		for i := range cts {
			total.Add(cts[i], suite.Scalar().One())
			r.Add(r, nonces[i])
		}

		pred := sumPredicate()
		secrets := map[string]kyber.Scalar{"r": r}

		prover := pred.Prover(suite, secrets, b.sumPoints(total), nil)

		label, err := b.statement(sumProtocol, total)
		if err != nil {
			return accumulator.Selection{}, xerrors.Errorf("sum: %v", err)
		}

		prf, err := proof.HashProve(suite, label, prover)
		if err != nil {
			return accumulator.Selection{}, xerrors.Errorf("failed to prove sum: %v", err)
		}

		sp.Sum = prf
	}

	data, err := cbor.Marshal(sp)
	if err != nil {
		return accumulator.Selection{}, xerrors.Errorf("failed to encode proof: %v", err)
	}

	sel := accumulator.Selection{
		Entries: entries,
		Proof:   data,
	}

	return sel, nil
}

// CheckSelection implements accumulator.Backend.
func (b Backend) CheckSelection(sel accumulator.Selection, n int, dom accumulator.Domain) error {
	if len(sel.Entries) != n {
		return xerrors.Errorf("expected %d entries, got %d", n, len(sel.Entries))
	}

	var sp selectionProof

	err := cbor.Unmarshal(sel.Proof, &sp)
	if err != nil {
		return xerrors.Errorf("failed to decode proof: %v", err)
	}

	if len(sp.Entries) != n {
		return xerrors.Errorf("expected %d entry proofs, got %d", n, len(sp.Entries))
	}

	total := NewZero()

	for i, entry := range sel.Entries {
		ct, err := Decode(entry)
		if err != nil {
			return xerrors.Errorf("entry %d: %v", i, err)
		}

		verifier := rangePredicate(dom.Max).Verifier(suite, b.rangePoints(ct, dom.Max))

		label, err := b.statement(fmt.Sprintf(rangeProtocol, i, dom.Max), ct)
		if err != nil {
			return xerrors.Errorf("entry %d: %v", i, err)
		}

		err = proof.HashVerify(suite, label, verifier, sp.Entries[i])
		if err != nil {
			return xerrors.Errorf("entry %d: range proof: %v", i, err)
		}

		total.Add(ct, suite.Scalar().One())
	}

	if dom.OneHot {
		if len(sp.Sum) == 0 {
			return xerrors.New("missing sum proof")
		}

		verifier := sumPredicate().Verifier(suite, b.sumPoints(total))

		label, err := b.statement(sumProtocol, total)
		if err != nil {
			return xerrors.Errorf("sum: %v", err)
		}

		err = proof.HashVerify(suite, label, verifier, sp.Sum)
		if err != nil {
			return xerrors.Errorf("sum proof: %v", err)
		}
	}

	return nil
}

// statement returns the label seeding the challenge of a proof. The challenge
// of proof.HashProve only depends on the label and the commitments, so the
// label must commit to the public key and the ciphertext the proof is about.
func (b Backend) statement(protocol string, ct Ciphertext) (string, error) {
	h := suite.Hash()
	h.Write([]byte(protocol))

	for _, point := range []kyber.Point{suite.Point().Base(), b.pubkey, ct.K, ct.C} {
		_, err := point.MarshalTo(h)
		if err != nil {
			return "", xerrors.Errorf("failed to hash statement: %v", err)
		}
	}

	return protocol + "/" + hex.EncodeToString(h.Sum(nil)), nil
}

// rangePredicate returns the predicate that (K, C) encrypts one of 0..max:
// for some v, K = rB and C - vB = rH.
func rangePredicate(max uint64) proof.Predicate {
	branches := make([]proof.Predicate, max+1)

	for v := range branches {
		branches[v] = proof.And(
			proof.Rep("K", "r", "B"),
			proof.Rep(shiftedName(uint64(v)), "r", "H"),
		)
	}

	return proof.Or(branches...)
}

func (b Backend) rangePoints(ct Ciphertext, max uint64) map[string]kyber.Point {
	points := map[string]kyber.Point{
		"B": suite.Point().Base(),
		"H": b.pubkey,
		"K": ct.K,
	}

	shifted := suite.Point().Set(ct.C)
	base := suite.Point().Base()

	for v := uint64(0); v <= max; v++ {
		points[shiftedName(v)] = suite.Point().Set(shifted)
		shifted.Sub(shifted, base)
	}

	return points
}

// sumPredicate returns the predicate that (K, C) encrypts one: K = rB and
// C - B = rH.
func sumPredicate() proof.Predicate {
	return proof.And(
		proof.Rep("K", "r", "B"),
		proof.Rep("D", "r", "H"),
	)
}

func (b Backend) sumPoints(total Ciphertext) map[string]kyber.Point {
	return map[string]kyber.Point{
		"B": suite.Point().Base(),
		"H": b.pubkey,
		"K": total.K,
		"D": suite.Point().Sub(total.C, suite.Point().Base()),
	}
}

func shiftedName(v uint64) string {
	return fmt.Sprintf("D%d", v)
}
