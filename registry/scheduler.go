package registry

import (
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/btree"
	"go.dedis.ch/ballotbox/ballot"
	"golang.org/x/xerrors"
)

// indexItem is an entry of the index of the ballots waiting for a reveal,
// ordered by the end of their window.
type indexItem struct {
	end time.Time
	id  string
}

func newIndex() *btree.BTreeG[indexItem] {
	return btree.NewG(16, func(a, b indexItem) bool {
		if a.end.Equal(b.end) {
			return a.id < b.id
		}

		return a.end.Before(b.end)
	})
}

// ScanResult is the work found by a scan.
type ScanResult struct {
	WorkFound bool     `cbor:"1,keyasint" json:"workFound"`
	Batch     []string `cbor:"2,keyasint" json:"batch"`
}

// Encode returns the compact form of the result.
func (res ScanResult) Encode() ([]byte, error) {
	encOpts := cbor.CoreDetEncOptions()

	em, err := encOpts.EncMode()
	if err != nil {
		return nil, xerrors.Errorf("failed to create encoder: %v", err)
	}

	data, err := em.Marshal(res)
	if err != nil {
		return nil, xerrors.Errorf("failed to encode: %v", err)
	}

	return data, nil
}

// DecodeScanResult returns the result of its compact form.
func DecodeScanResult(data []byte) (ScanResult, error) {
	var res ScanResult

	err := cbor.Unmarshal(data, &res)
	if err != nil {
		return res, xerrors.Errorf("failed to decode: %v", err)
	}

	return res, nil
}

// Scan returns the closed ballots, at most the maximum batch size, ordered by
// the end of their window. It does not mutate the registry.
func (r *Registry) Scan() ScanResult {
	r.Lock()
	defer r.Unlock()

	now := r.clock()
	batch := []string{}

	r.pending.Ascend(func(item indexItem) bool {
		if item.end.After(now) || len(batch) >= r.maxBatch {
			return false
		}

		if r.ballots[item.id].State(now) == ballot.Closed {
			batch = append(batch, item.id)
		}

		return true
	})

	return ScanResult{
		WorkFound: len(batch) > 0,
		Batch:     batch,
	}
}

// Apply requests the reveal of each ballot of the batch that is still closed
// and returns the number of ballots that advanced. Ballots that changed state
// since the scan are skipped.
func (r *Registry) Apply(batch []string) int {
	advanced := 0

	for _, id := range batch {
		r.Lock()
		req, err := r.prepareReveal(id)
		r.Unlock()

		if err != nil {
			r.logger.Debug().Err(err).Str("ballot", id).Msg("skipped")
			continue
		}

		advanced++

		// The ballot has advanced even if the facility refuses the request,
		// which can be retried by the owner.
		_ = r.issue(req)
	}

	promScheduled.Add(float64(advanced))

	r.logger.Info().Int("scanned", len(batch)).Int("advanced", advanced).
		Msg("batch processed")

	r.watcher.Notify(BatchProcessed{Scanned: len(batch), Advanced: advanced})

	return advanced
}
