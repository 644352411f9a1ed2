package fake

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// WaitLog returns a logger and a function that blocks until the message is
// logged, or fails the test after the timeout. The logger stays usable once
// the message is found.
func WaitLog(msg string, timeout time.Duration) (zerolog.Logger, func(t *testing.T)) {
	reader, writer := io.Pipe()
	done := make(chan struct{})
	found := false

	buffer := &syncBuffer{}
	tee := io.TeeReader(reader, buffer)

	go func() {
		select {
		case <-done:
		case <-time.After(timeout):
			writer.Close()
		}
	}()

	go func() {
		data := make([]byte, 1024)

		for {
			n, err := tee.Read(data)
			if err != nil {
				close(done)
				return
			}

			if strings.Contains(string(data[:n]), fmt.Sprintf(`"%s"`, msg)) {
				found = true
				close(done)

				// Keep draining so that the next writes do not block.
				_, _ = io.Copy(io.Discard, reader)
				return
			}
		}
	}()

	wait := func(t *testing.T) {
		<-done
		if !found {
			t.Fatalf("log not found in %s", buffer.String())
		}
	}

	return zerolog.New(writer), wait
}

// CheckLog returns a logger and a check function. When called, the function
// will verify if the logger has seen the message printed.
func CheckLog(msg string) (zerolog.Logger, func(t *testing.T)) {
	buffer := &syncBuffer{}

	check := func(t *testing.T) {
		require.Contains(t, buffer.String(), fmt.Sprintf(`"%s"`, msg))
	}

	return zerolog.New(buffer), check
}

// syncBuffer is a buffer safe for concurrent writers and readers.
type syncBuffer struct {
	sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.Lock()
	defer b.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.Lock()
	defer b.Unlock()

	return b.buf.String()
}
