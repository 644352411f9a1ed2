package registry

import (
	"github.com/fxamacker/cbor/v2"
	"go.dedis.ch/ballotbox/ballot"
	"go.dedis.ch/ballotbox/core/store/kv"
	"golang.org/x/xerrors"
)

var (
	ballotsBucket = []byte("ballots")
	titlesBucket  = []byte("titles")
)

// storage persists one record per ballot, keyed by its identifier, and the
// global title index.
type storage struct {
	db kv.DB
}

func newStorage(db kv.DB) *storage {
	return &storage{db: db}
}

func (s *storage) store(b *ballot.Ballot, created bool) error {
	data, err := encodeBallot(b)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx kv.WritableTx) error {
		records, err := tx.GetBucketOrCreate(ballotsBucket)
		if err != nil {
			return err
		}

		if created {
			titles, err := tx.GetBucketOrCreate(titlesBucket)
			if err != nil {
				return err
			}

			if titles.Get([]byte(b.Title)) != nil {
				return xerrors.Errorf("title '%s': %w", b.Title, ballot.ErrDuplicateTitle)
			}

			err = titles.Set([]byte(b.Title), []byte(b.ID))
			if err != nil {
				return xerrors.Errorf("failed to write title: %v", err)
			}
		}

		err = records.Set([]byte(b.ID), data)
		if err != nil {
			return xerrors.Errorf("failed to write record: %v", err)
		}

		return nil
	})
}

func (s *storage) loadAll() ([]*ballot.Ballot, error) {
	var ballots []*ballot.Ballot

	err := s.db.View(func(tx kv.ReadableTx) error {
		records := tx.GetBucket(ballotsBucket)
		if records == nil {
			return nil
		}

		titles := tx.GetBucket(titlesBucket)

		return records.ForEach(func(k, v []byte) error {
			b, err := decodeBallot(v)
			if err != nil {
				return xerrors.Errorf("record '%s': %v", k, err)
			}

			if titles == nil || string(titles.Get([]byte(b.Title))) != b.ID {
				return xerrors.Errorf("record '%s': title index mismatch", k)
			}

			ballots = append(ballots, b)

			return nil
		})
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to read: %v", err)
	}

	return ballots, nil
}

func encodeBallot(b *ballot.Ballot) ([]byte, error) {
	encOpts := cbor.CoreDetEncOptions()
	encOpts.Time = cbor.TimeRFC3339Nano

	em, err := encOpts.EncMode()
	if err != nil {
		return nil, xerrors.Errorf("failed to create encoder: %v", err)
	}

	data, err := em.Marshal(b)
	if err != nil {
		return nil, xerrors.Errorf("failed to encode ballot: %v", err)
	}

	return data, nil
}

func decodeBallot(data []byte) (*ballot.Ballot, error) {
	b := new(ballot.Ballot)

	err := cbor.Unmarshal(data, b)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode ballot: %v", err)
	}

	return b, nil
}
