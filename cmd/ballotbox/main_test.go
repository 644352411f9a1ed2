package main

import (
	"bytes"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/ballotbox/ballot"
)

const seed = `
spaces:
  - id: dao
    owner: alice
    members: [alice, carol, dave]
`

func TestBallotbox_Scenario(t *testing.T) {
	dir, err := os.MkdirTemp(os.TempDir(), "ballotbox")
	require.NoError(t, err)

	defer os.RemoveAll(dir)

	spaces := filepath.Join(dir, "spaces.yaml")
	require.NoError(t, os.WriteFile(spaces, []byte(seed), 0600))

	sigs := make(chan os.Signal)
	wg := sync.WaitGroup{}
	wg.Add(1)

	go func() {
		defer wg.Done()

		err := runWithCfg([]string{
			os.Args[0], "--config", dir, "start",
			"--spaces", spaces, "--backend", "plain", "--owner", "root",
		}, config{Channel: sigs, Writer: io.Discard})
		require.NoError(t, err)
	}()

	defer func() {
		// Simulate a Ctrl+C
		close(sigs)
		wg.Wait()
	}()

	waitDaemon(t, dir)

	id := ballot.MakeID("dao", "Budget")

	out := runCmd(t, dir, "ballot", "create", "--creator", "alice", "--space", "dao",
		"--title", "Budget", "--choice", "yes", "--choice", "no", "--duration", "1h")
	require.Contains(t, out, id)

	out = runCmd(t, dir, "ballot", "vote", "--id", id, "--voter", "carol",
		"--value", "0", "--value", "1")
	require.Contains(t, out, "vote cast")

	out = runCmd(t, dir, "ballot", "list", "--space", "dao")
	require.Contains(t, out, id+"\topen\t1\tBudget")

	err = runWithCfg([]string{
		os.Args[0], "--config", dir, "ballot", "reveal", "--id", id,
	}, config{Writer: io.Discard})
	require.Error(t, err)
	require.Contains(t, err.Error(), "ballot is not closed")

	err = runWithCfg([]string{
		os.Args[0], "--config", dir, "ballot", "vote", "--id", id, "--voter", "carol",
		"--value", "1", "--value", "0",
	}, config{Writer: io.Discard})
	require.Error(t, err)
	require.Contains(t, err.Error(), "already voted")

	out = runCmd(t, dir, "ballot", "scan")
	require.Empty(t, out)

	_, err = os.Stat(filepath.Join(dir, "ballots.db"))
	require.NoError(t, err)
}

// -----------------------------------------------------------------------------
// Utility functions

func runCmd(t *testing.T, dir string, args ...string) string {
	out := new(bytes.Buffer)

	err := runWithCfg(append([]string{os.Args[0], "--config", dir}, args...), config{Writer: out})
	require.NoError(t, err)

	return out.String()
}

func waitDaemon(t *testing.T, dir string) {
	num := 50

	for i := 0; i < num; i++ {
		// Windows: we have to check the file as Dial on Windows creates the
		// file and prevent to listen.
		_, err := os.Stat(filepath.Join(dir, "daemon.sock"))
		if !os.IsNotExist(err) {
			conn, err := net.Dial("unix", filepath.Join(dir, "daemon.sock"))
			if err == nil {
				conn.Close()
				return
			}
		}

		time.Sleep(30 * time.Millisecond)
	}

	t.Fatal("timeout")
}
