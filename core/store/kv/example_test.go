package kv

import (
	"fmt"
	"os"
	"path/filepath"
)

// The keys of a bucket are sorted, so a prefix scan lists the ballots of a
// space in order.
func ExampleBucket_Scan() {
	dir, err := os.MkdirTemp(os.TempDir(), "example")
	if err != nil {
		panic("failed to create folder: " + err.Error())
	}

	defer os.RemoveAll(dir)

	db, err := New(filepath.Join(dir, "ballots.db"))
	if err != nil {
		panic("failed to open db: " + err.Error())
	}

	defer db.Close()

	ballots := map[string]string{
		"dao/budget":    "open",
		"token/mint":    "pending",
		"dao/charter":   "resolved",
		"dao/elections": "closed",
	}

	err = db.Update(func(tx WritableTx) error {
		bucket, err := tx.GetBucketOrCreate([]byte("ballots"))
		if err != nil {
			return err
		}

		for key, state := range ballots {
			err = bucket.Set([]byte(key), []byte(state))
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		panic("database write failed: " + err.Error())
	}

	err = db.View(func(tx ReadableTx) error {
		bucket := tx.GetBucket([]byte("ballots"))
		if bucket == nil {
			return nil
		}

		return bucket.Scan([]byte("dao/"), func(key, value []byte) error {
			fmt.Printf("%s %s\n", key, value)
			return nil
		})
	})
	if err != nil {
		panic("database read failed: " + err.Error())
	}

	// Output: dao/budget open
	// dao/charter resolved
	// dao/elections closed
}
