package ballot

import "math/big"

var basisPointsScale = big.NewInt(MaxBasisPoints)

// Tally computes the winner of a ballot from the revealed totals. The abstain
// slot, when present, is the last total and is ignored. A tie for the maximum
// or an empty ballot is a draw that never passes. Otherwise the winner is the
// choice with the maximum total, and it passes when its share strictly
// exceeds the threshold, or when the ballot has any vote if there is no
// threshold.
func Tally(totals []uint64, abstain bool, bps uint32) (int, bool) {
	counted := totals
	if abstain && len(counted) > 0 {
		counted = counted[:len(counted)-1]
	}

	total := new(big.Int)
	best := -1
	tie := false

	for i, value := range counted {
		total.Add(total, new(big.Int).SetUint64(value))

		switch {
		case best < 0 || value > counted[best]:
			best = i
			tie = false
		case value == counted[best]:
			tie = true
		}
	}

	if best < 0 || tie || total.Sign() == 0 {
		return Draw, false
	}

	if bps == 0 {
		return best, true
	}

	// best * 10000 > total * bps
	lhs := new(big.Int).Mul(new(big.Int).SetUint64(counted[best]), basisPointsScale)
	rhs := new(big.Int).Mul(total, big.NewInt(int64(bps)))

	return best, lhs.Cmp(rhs) > 0
}
