package node

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.dedis.ch/ballotbox"
	"go.dedis.ch/ballotbox/cli"
	"golang.org/x/xerrors"
)

const (
	socketName = "daemon.sock"
	socketPerm = 0600
	ioTimeout  = 30 * time.Second
)

// Command is the request of the CLI to the daemon: the index of the action and
// the values of the flags of the command line.
type Command struct {
	Action uint16  `json:"action"`
	Flags  FlagSet `json:"flags"`
}

// reply is one message of the daemon to the CLI. The stream of replies ends
// when the daemon closes the connection, or after the first reply holding an
// error.
type reply struct {
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// unixClient sends commands to the daemon listening on a UNIX socket.
//
// - implements node.Client
type unixClient struct {
	path    string
	out     io.Writer
	timeout time.Duration
	dial    func(network, addr string, timeout time.Duration) (net.Conn, error)
}

// Send implements node.Client. It copies the output of the action to the
// writer of the client and returns the error of the action, if any.
func (c unixClient) Send(cmd Command) error {
	conn, err := c.dial("unix", c.path, c.timeout)
	if err != nil {
		return xerrors.Errorf("couldn't open connection: %v", err)
	}

	defer conn.Close()

	err = json.NewEncoder(conn).Encode(cmd)
	if err != nil {
		return xerrors.Errorf("couldn't write to daemon: %v", err)
	}

	dec := json.NewDecoder(conn)

	for {
		var rep reply

		err = dec.Decode(&rep)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return xerrors.Errorf("couldn't read reply: %v", err)
		}

		if rep.Error != "" {
			return xerrors.New(rep.Error)
		}

		fmt.Fprintln(c.out, rep.Output)
	}
}

// unixDaemon executes the commands received on a UNIX socket in the
// configuration folder. The socket is only accessible to the user running the
// node.
//
// - implements node.Daemon
type unixDaemon struct {
	wg      sync.WaitGroup
	logger  zerolog.Logger
	path    string
	inj     Injector
	actions *actionTable
	done    chan struct{}
	timeout time.Duration
	listen  func(network, addr string) (net.Listener, error)
}

// Listen implements node.Daemon. It binds the socket and serves the
// connections in the background until the daemon is closed.
func (d *unixDaemon) Listen() error {
	err := removeStaleSocket(d.path)
	if err != nil {
		return xerrors.Errorf("couldn't clean socket: %v", err)
	}

	ln, err := d.listen("unix", d.path)
	if err != nil {
		return xerrors.Errorf("couldn't bind socket: %v", err)
	}

	err = os.Chmod(d.path, socketPerm)
	if err != nil {
		ln.Close()
		return xerrors.Errorf("couldn't restrict socket: %v", err)
	}

	d.wg.Add(1)

	go func() {
		defer d.wg.Done()

		<-d.done
		ln.Close()
	}()

	d.wg.Add(1)

	go d.serve(ln)

	return nil
}

func (d *unixDaemon) serve(ln net.Listener) {
	defer d.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-d.done:
			default:
				d.logger.Err(err).Msg("socket closed unexpectedly")
			}

			return
		}

		go d.handle(conn)
	}
}

func (d *unixDaemon) handle(conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(d.timeout))

	var cmd Command

	err := json.NewDecoder(conn).Decode(&cmd)
	if err == io.EOF {
		// Nothing was sent, which is how the CLI checks that the daemon runs.
		return
	}
	if err != nil {
		d.fail(conn, xerrors.Errorf("malformed command: %v", err))
		return
	}

	action := d.actions.lookup(cmd.Action)
	if action == nil {
		d.fail(conn, xerrors.Errorf("unknown action %d", cmd.Action))
		return
	}

	if cmd.Flags == nil {
		cmd.Flags = make(FlagSet)
	}

	start := time.Now()

	err = execute(action, Context{
		Injector: d.inj,
		Flags:    cmd.Flags,
		Out:      replyWriter{enc: json.NewEncoder(conn)},
	})
	if err != nil {
		d.fail(conn, xerrors.Errorf("action failed: %v", err))
		return
	}

	d.logger.Debug().
		Str("action", fmt.Sprintf("%T", action)).
		Dur("duration", time.Since(start)).
		Msg("action executed")
}

func (d *unixDaemon) fail(conn net.Conn, err error) {
	d.logger.Debug().Err(err).Msg("command rejected")

	err = json.NewEncoder(conn).Encode(reply{Error: err.Error()})
	if err != nil {
		d.logger.Warn().Err(err).Msg("couldn't reply to client")
	}
}

// Close implements node.Daemon. It returns once the socket is closed. Actions
// still running are not waited for.
func (d *unixDaemon) Close() error {
	close(d.done)
	d.wg.Wait()

	return nil
}

// execute runs the action and turns a panic into an error.
func execute(action ActionTemplate, ctx Context) (err error) {
	defer func() {
		r := recover()
		if r != nil {
			err = xerrors.Errorf("action panicked: %v", r)
		}
	}()

	return action.Execute(ctx)
}

// removeStaleSocket removes the socket file left by a node that did not
// stop properly. A socket that still accepts connections is kept so that the
// bind fails.
func removeStaleSocket(path string) error {
	_, err := os.Stat(path)
	if err != nil {
		return nil
	}

	conn, err := net.DialTimeout("unix", path, time.Second)
	if err == nil {
		conn.Close()
		return nil
	}

	return os.Remove(path)
}

// replyWriter sends each write of an action as one reply.
type replyWriter struct {
	enc *json.Encoder
}

func (w replyWriter) Write(data []byte) (int, error) {
	err := w.enc.Encode(reply{Output: string(data)})
	if err != nil {
		return 0, xerrors.Errorf("couldn't send output: %v", err)
	}

	return len(data), nil
}

// unixFactory creates the daemon and the clients of the socket in the
// configuration folder.
//
// - implements node.DaemonFactory
type unixFactory struct {
	inj     Injector
	actions *actionTable
	out     io.Writer
}

// ClientFromContext implements node.DaemonFactory.
func (f unixFactory) ClientFromContext(flags cli.Flags) (Client, error) {
	return unixClient{
		path:    socketPath(flags),
		out:     f.out,
		timeout: ioTimeout,
		dial:    net.DialTimeout,
	}, nil
}

// DaemonFromContext implements node.DaemonFactory.
func (f unixFactory) DaemonFromContext(flags cli.Flags) (Daemon, error) {
	path := socketPath(flags)

	return &unixDaemon{
		logger:  ballotbox.Logger.With().Str("daemon", path).Logger(),
		path:    path,
		inj:     f.inj,
		actions: f.actions,
		done:    make(chan struct{}),
		timeout: ioTimeout,
		listen:  net.Listen,
	}, nil
}

func socketPath(flags cli.Flags) string {
	return filepath.Join(flags.Path("config"), socketName)
}
