package node

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/ballotbox/cli"
	"go.dedis.ch/ballotbox/internal/testing/fake"
	"golang.org/x/xerrors"
)

func TestUnixClient_Send(t *testing.T) {
	dir := makeDir(t)
	defer os.RemoveAll(dir)

	out := new(bytes.Buffer)

	client := unixClient{
		path:    filepath.Join(dir, socketName),
		out:     out,
		timeout: time.Second,
		dial:    net.DialTimeout,
	}

	echo(t, client.path)

	err := client.Send(Command{Action: 3, Flags: FlagSet{"msg": "deadbeef"}})
	require.NoError(t, err)
	require.Equal(t, "3 deadbeef\n", out.String())
}

func TestUnixClient_FailDial_Send(t *testing.T) {
	client := unixClient{
		dial: func(network, addr string, timeout time.Duration) (net.Conn, error) {
			return nil, fake.GetError()
		},
	}

	err := client.Send(Command{})
	require.EqualError(t, err, fake.Err("couldn't open connection"))
}

func TestUnixClient_BadConn_Send(t *testing.T) {
	client := unixClient{
		dial: func(network, addr string, timeout time.Duration) (net.Conn, error) {
			return badConn{}, nil
		},
	}

	err := client.Send(Command{})
	require.EqualError(t, err, fake.Err("couldn't write to daemon"))

	client.dial = func(network, addr string, timeout time.Duration) (net.Conn, error) {
		return badConn{counter: fake.NewCounter(1)}, nil
	}

	err = client.Send(Command{})
	require.EqualError(t, err, fake.Err("couldn't read reply"))
}

func TestUnixDaemon_Listen(t *testing.T) {
	dir := makeDir(t)
	defer os.RemoveAll(dir)

	actions := &actionTable{}
	actions.register(fakeAction{intFlags: map[string]int{"count": 2}})
	actions.register(fakeAction{err: fake.GetError()})

	daemon := makeDaemon(filepath.Join(dir, socketName), actions)

	err := daemon.Listen()
	require.NoError(t, err)

	defer daemon.Close()

	out := new(bytes.Buffer)

	client := unixClient{
		path:    daemon.path,
		out:     out,
		timeout: time.Second,
		dial:    net.DialTimeout,
	}

	err = client.Send(Command{Action: 0, Flags: FlagSet{"count": 2}})
	require.NoError(t, err)
	require.Equal(t, "deadbeef\n", out.String())

	err = client.Send(Command{Action: 0})
	require.EqualError(t, err, "action failed: missing flag count")

	err = client.Send(Command{Action: 1})
	require.EqualError(t, err, fake.Err("action failed"))

	err = client.Send(Command{Action: 2})
	require.EqualError(t, err, "unknown action 2")

	res := sendRaw(t, daemon.path, []byte("[]\n"))
	require.Contains(t, res, `"error":"malformed command: `)
}

func TestUnixDaemon_Connectivity_Listen(t *testing.T) {
	dir := makeDir(t)
	defer os.RemoveAll(dir)

	daemon := makeDaemon(filepath.Join(dir, socketName), &actionTable{})

	err := daemon.Listen()
	require.NoError(t, err)

	defer daemon.Close()

	// A connection closed without a command is not an error.
	require.Empty(t, sendRaw(t, daemon.path, nil))
}

func TestUnixDaemon_StaleSocket_Listen(t *testing.T) {
	dir := makeDir(t)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, socketName)

	// A listener closed without unlinking leaves the file behind.
	socket, err := net.Listen("unix", path)
	require.NoError(t, err)

	socket.(*net.UnixListener).SetUnlinkOnClose(false)
	require.NoError(t, socket.Close())

	_, err = os.Stat(path)
	require.NoError(t, err)

	actions := &actionTable{}
	actions.register(panicAction{})

	daemon := makeDaemon(path, actions)

	err = daemon.Listen()
	require.NoError(t, err)

	defer daemon.Close()

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(socketPerm), info.Mode().Perm())

	client := unixClient{
		path:    path,
		out:     new(bytes.Buffer),
		timeout: time.Second,
		dial:    net.DialTimeout,
	}

	err = client.Send(Command{Action: 0})
	require.EqualError(t, err, "action failed: action panicked: oops")

	// The daemon survives and accepts new connections.
	err = client.Send(Command{Action: 1})
	require.EqualError(t, err, "unknown action 1")
}

func TestUnixDaemon_AlreadyRunning_Listen(t *testing.T) {
	dir := makeDir(t)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, socketName)

	socket, err := net.Listen("unix", path)
	require.NoError(t, err)

	defer socket.Close()

	go func() {
		for {
			conn, err := socket.Accept()
			if err != nil {
				return
			}

			conn.Close()
		}
	}()

	err = makeDaemon(path, nil).Listen()
	require.Error(t, err)
	require.Contains(t, err.Error(), "couldn't bind socket: ")
}

func TestUnixDaemon_FailBind_Listen(t *testing.T) {
	daemon := makeDaemon("", nil)
	daemon.listen = func(network, addr string) (net.Listener, error) {
		return nil, fake.GetError()
	}

	err := daemon.Listen()
	require.EqualError(t, err, fake.Err("couldn't bind socket"))
}

func TestUnixDaemon_BadConn_Handle(t *testing.T) {
	logger, check := fake.CheckLog("couldn't reply to client")

	daemon := makeDaemon("", &actionTable{})
	daemon.logger = logger

	daemon.handle(badConn{})

	check(t)
}

func TestReplyWriter_Write(t *testing.T) {
	buffer := new(bytes.Buffer)

	w := replyWriter{enc: json.NewEncoder(buffer)}

	n, err := w.Write([]byte("deadbeef"))
	require.NoError(t, err)
	require.Equal(t, 8, n)
	require.Equal(t, `{"output":"deadbeef"}`+"\n", buffer.String())

	w = replyWriter{enc: json.NewEncoder(badConn{})}

	n, err = w.Write([]byte("deadbeef"))
	require.Equal(t, 0, n)
	require.EqualError(t, err, fake.Err("couldn't send output"))
}

func TestUnixFactory_FromContext(t *testing.T) {
	factory := unixFactory{actions: &actionTable{}}

	client, err := factory.ClientFromContext(fakeContext{path: "cfgdir"})
	require.NoError(t, err)
	require.Equal(t, filepath.Join("cfgdir", socketName), client.(unixClient).path)

	daemon, err := factory.DaemonFromContext(fakeContext{path: "cfgdir"})
	require.NoError(t, err)
	require.Equal(t, filepath.Join("cfgdir", socketName), daemon.(*unixDaemon).path)
}

// -----------------------------------------------------------------------------
// Utility functions

func makeDir(t *testing.T) string {
	dir, err := os.MkdirTemp(os.TempDir(), "ballotbox")
	require.NoError(t, err)

	return dir
}

func makeDaemon(path string, actions *actionTable) *unixDaemon {
	return &unixDaemon{
		path:    path,
		actions: actions,
		done:    make(chan struct{}),
		timeout: 50 * time.Millisecond,
		listen:  net.Listen,
	}
}

// echo accepts one connection and replies with the action and the "msg" flag
// of the command.
func echo(t *testing.T, path string) {
	socket, err := net.Listen("unix", path)
	require.NoError(t, err)

	go func() {
		defer socket.Close()

		conn, err := socket.Accept()
		if err != nil {
			return
		}

		defer conn.Close()

		var cmd Command

		err = json.NewDecoder(conn).Decode(&cmd)
		if err != nil {
			return
		}

		json.NewEncoder(conn).Encode(reply{
			Output: fmt.Sprintf("%d %s", cmd.Action, cmd.Flags.String("msg")),
		})
	}()
}

func sendRaw(t *testing.T, path string, data []byte) string {
	conn, err := net.DialTimeout("unix", path, time.Second)
	require.NoError(t, err)

	defer conn.Close()

	if len(data) > 0 {
		_, err = conn.Write(data)
		require.NoError(t, err)
	}

	conn.(*net.UnixConn).CloseWrite()

	res, err := io.ReadAll(conn)
	require.NoError(t, err)

	return string(res)
}

type fakeInitializer struct {
	err     error
	errStop error
}

func (c fakeInitializer) SetCommands(Builder) {}

func (c fakeInitializer) OnStart(cli.Flags, Injector) error {
	return c.err
}

func (c fakeInitializer) OnStop(Injector) error {
	return c.errStop
}

type fakeClient struct {
	err   error
	calls *fake.Call
}

func (c fakeClient) Send(cmd Command) error {
	c.calls.Add(cmd)
	return c.err
}

type fakeDaemon struct {
	Daemon
	err error
}

func (d fakeDaemon) Listen() error {
	return d.err
}

func (d fakeDaemon) Close() error {
	return nil
}

type fakeFactory struct {
	DaemonFactory
	err       error
	errClient error
	errDaemon error
	calls     *fake.Call
}

func (f fakeFactory) ClientFromContext(cli.Flags) (Client, error) {
	return fakeClient{err: f.errClient, calls: f.calls}, f.err
}

func (f fakeFactory) DaemonFromContext(cli.Flags) (Daemon, error) {
	return fakeDaemon{err: f.errDaemon}, f.err
}

type fakeAction struct {
	err      error
	intFlags map[string]int
}

func (a fakeAction) Execute(req Context) error {
	if a.err != nil {
		return a.err
	}

	for k, v := range a.intFlags {
		if req.Flags.Int(k) != v {
			return xerrors.Errorf("missing flag %s", k)
		}
	}

	req.Out.Write([]byte("deadbeef"))
	return nil
}

type panicAction struct{}

func (panicAction) Execute(Context) error {
	panic("oops")
}

type fakeContext struct {
	cli.Flags
	path string
}

func (ctx fakeContext) Path(name string) string {
	return ctx.path
}

type badConn struct {
	net.Conn

	counter *fake.Counter
}

func (conn badConn) Read(data []byte) (int, error) {
	if !conn.counter.Done() {
		conn.counter.Decrease()
		return len(data), nil
	}

	return 0, fake.GetError()
}

func (conn badConn) Write(data []byte) (int, error) {
	if !conn.counter.Done() {
		conn.counter.Decrease()
		return len(data), nil
	}

	return 0, fake.GetError()
}

func (badConn) SetReadDeadline(t time.Time) error {
	return nil
}

func (badConn) Close() error {
	return nil
}
