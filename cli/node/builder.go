package node

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	urfave "github.com/urfave/cli/v2"
	"go.dedis.ch/ballotbox"
	"go.dedis.ch/ballotbox/cli"
	"go.dedis.ch/ballotbox/cli/ucli"
	"golang.org/x/xerrors"
)

// CLIBuilder builds the application of a node out of its initializers.
//
// - implements node.Builder
// - implements cli.Builder
type CLIBuilder struct {
	cli.Builder

	factory    DaemonFactory
	inj        Injector
	actions    *actionTable
	startFlags []cli.Flag
	inits      []Initializer

	// stop ends a running node. When nil, the node runs until SIGINT or
	// SIGTERM.
	stop chan os.Signal
}

// NewBuilder returns the builder of a node made of the initializers.
func NewBuilder(inits ...Initializer) *CLIBuilder {
	return NewBuilderWithCfg(nil, nil, inits...)
}

// NewBuilderWithCfg returns the builder of a node that stops when the channel
// receives or is closed, and whose actions print to the writer. The defaults
// are the signals of the process and the standard output.
func NewBuilderWithCfg(stop chan os.Signal, out io.Writer, inits ...Initializer) *CLIBuilder {
	if out == nil {
		out = os.Stdout
	}

	inj := NewInjector()
	actions := &actionTable{}

	config := cli.StringFlag{
		Name:  "config",
		Usage: "path to the config folder",
		Value: ".ballotbox",
	}

	return &CLIBuilder{
		Builder: ucli.NewBuilder("ballotbox", nil, config),
		factory: unixFactory{inj: inj, actions: actions, out: out},
		inj:     inj,
		actions: actions,
		inits:   inits,
		stop:    stop,
	}
}

// SetStartFlags implements node.Builder.
func (b *CLIBuilder) SetStartFlags(flags ...cli.Flag) {
	b.startFlags = append(b.startFlags, flags...)
}

// MakeAction implements node.Builder. The action sends the values of the flags
// of the command, its parents included, to the daemon.
func (b *CLIBuilder) MakeAction(tmpl ActionTemplate) cli.Action {
	index := b.actions.register(tmpl)

	return func(flags cli.Flags) error {
		client, err := b.factory.ClientFromContext(flags)
		if err != nil {
			return xerrors.Errorf("couldn't make client: %v", err)
		}

		cmd := Command{
			Action: index,
			Flags:  collectFlags(flags.(*urfave.Context)),
		}

		return client.Send(cmd)
	}
}

// collectFlags returns the values of the flags set on the command line or by
// default, for the command and all its parents.
func collectFlags(ctx *urfave.Context) FlagSet {
	fset := make(FlagSet)

	for _, c := range ctx.Lineage() {
		var flags []urfave.Flag

		if c.Command != nil {
			flags = append(flags, c.Command.Flags...)
		}
		if c.App != nil {
			flags = append(flags, c.App.Flags...)
		}

		for _, f := range flags {
			names := f.Names()
			if len(names) == 0 {
				continue
			}

			value := c.Value(names[0])

			// The slice type of urfave does not marshal to a JSON array.
			slice, ok := value.(urfave.StringSlice)
			if ok {
				value = slice.Value()
			}

			fset[names[0]] = value
		}
	}

	return fset
}

// Build implements node.Builder. The start command comes after the commands
// of the initializers.
func (b *CLIBuilder) Build() cli.Application {
	for _, ctrl := range b.inits {
		ctrl.SetCommands(b)
	}

	cmd := b.SetCommand("start")
	cmd.SetDescription("start the node")
	cmd.SetFlags(b.startFlags...)
	cmd.SetAction(b.start)

	return b.Builder.Build()
}

func (b *CLIBuilder) start(flags cli.Flags) error {
	stop := b.stop
	if stop == nil {
		stop = make(chan os.Signal, 1)

		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(stop)
	}

	dir := flags.Path("config")
	if dir != "" {
		err := os.MkdirAll(dir, 0700)
		if err != nil {
			return xerrors.Errorf("couldn't make path: %v", err)
		}
	}

	daemon, err := b.factory.DaemonFromContext(flags)
	if err != nil {
		return xerrors.Errorf("couldn't make daemon: %v", err)
	}

	for i, ctrl := range b.inits {
		err = ctrl.OnStart(flags, b.inj)
		if err != nil {
			b.stopInits(i)

			return xerrors.Errorf("couldn't run the controller: %v", err)
		}
	}

	// The socket is opened last so that the actions find every component.
	err = daemon.Listen()
	if err != nil {
		b.stopInits(len(b.inits))

		return xerrors.Errorf("couldn't start the daemon: %v", err)
	}

	defer daemon.Close()

	ballotbox.Logger.Info().Str("config", dir).Msg("node started")

	<-stop

	err = b.stopInits(len(b.inits))
	if err != nil {
		return xerrors.Errorf("couldn't stop controller: %v", err)
	}

	ballotbox.Logger.Info().Msg("node stopped")

	return nil
}

// stopInits stops the first n initializers, the last started first. All of
// them are stopped and the first error is returned.
func (b *CLIBuilder) stopInits(n int) error {
	var first error

	for i := n - 1; i >= 0; i-- {
		err := b.inits[i].OnStop(b.inj)
		if err != nil {
			ballotbox.Logger.Warn().Err(err).Int("index", i).Msg("controller failed to stop")

			if first == nil {
				first = err
			}
		}
	}

	return first
}

// actionTable indexes the action templates in the order they are registered,
// which is the same in the CLI process and in the daemon.
type actionTable struct {
	templates []ActionTemplate
}

func (t *actionTable) register(tmpl ActionTemplate) uint16 {
	t.templates = append(t.templates, tmpl)

	return uint16(len(t.templates) - 1)
}

func (t *actionTable) lookup(index uint16) ActionTemplate {
	if int(index) >= len(t.templates) {
		return nil
	}

	return t.templates[index]
}
