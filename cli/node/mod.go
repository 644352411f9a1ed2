// Package node builds the command line of a ballotbox node. The "start"
// command runs the node: it starts the initializers in order and opens a
// daemon on a UNIX socket of the configuration folder. Every other action
// made with Builder.MakeAction is forwarded by the CLI process to that daemon
// and executed there, against the components the initializers injected.
package node

import (
	"io"

	"go.dedis.ch/ballotbox/cli"
)

// Builder is given to the initializers to declare their commands.
type Builder interface {
	SetCommand(name string) cli.CommandBuilder

	// SetStartFlags adds flags to the start command.
	SetStartFlags(...cli.Flag)

	// MakeAction returns a CLI action that runs the template on the daemon.
	MakeAction(ActionTemplate) cli.Action
}

// ActionTemplate is the part of a command executed by the running node.
type ActionTemplate interface {
	Execute(Context) error
}

// Context is what an action receives on the daemon: the components of the
// node, the flags of the command line and the output sent back to the CLI.
type Context struct {
	Injector Injector
	Flags    cli.Flags
	Out      io.Writer
}

// Injector holds the components of a running node.
type Injector interface {
	// Resolve sets the pointer to the most recently injected component
	// assignable to it.
	Resolve(interface{}) error

	Inject(interface{})
}

// Initializer is implemented by the modules of the node.
type Initializer interface {
	// SetCommands declares the commands of the module.
	SetCommands(Builder)

	// OnStart starts the module and injects its components.
	OnStart(cli.Flags, Injector) error

	// OnStop releases the module. It is also called when a module started
	// later fails.
	OnStop(Injector) error
}

// Client sends commands to the daemon.
type Client interface {
	Send(Command) error
}

// Daemon serves the commands of the CLI while the node runs.
type Daemon interface {
	Listen() error
	Close() error
}

// DaemonFactory creates the daemon and its clients from the global flags.
type DaemonFactory interface {
	ClientFromContext(cli.Flags) (Client, error)
	DaemonFromContext(cli.Flags) (Daemon, error)
}
