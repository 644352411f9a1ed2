// Package controller implements the initializer of the HTTP proxy. The proxy
// is started with the node when an address is given, and the other
// controllers mount their handlers on it.
package controller

import (
	"go.dedis.ch/ballotbox/cli"
	"go.dedis.ch/ballotbox/cli/node"
	"go.dedis.ch/ballotbox/proxy"
	"golang.org/x/xerrors"
)

const defaultProm = "/metrics"

// NewController returns a new initializer of the proxy.
func NewController() node.Initializer {
	return minimal{}
}

// minimal is an initializer with the minimum set of commands. It creates and
// injects the client proxy.
//
// - implements node.Initializer
type minimal struct{}

// SetCommands implements node.Initializer.
func (m minimal) SetCommands(builder node.Builder) {
	builder.SetStartFlags(cli.StringFlag{
		Name:     "clientaddr",
		Required: false,
		Usage:    "the address of the http proxy, disabled when empty",
		Value:    "",
	})

	cmd := builder.SetCommand("proxy")
	sub := cmd.SetSubCommand("prom")

	sub.SetDescription("registers the collectors and starts a prometheus handler. " +
		"Will panic if the path is used more than once.")
	sub.SetFlags(cli.StringFlag{
		Name:     "path",
		Required: false,
		Usage:    "the handler path",
		Value:    defaultProm,
	})
	sub.SetAction(builder.MakeAction(promAction{}))
}

// OnStart implements node.Initializer. It creates, starts and injects the
// proxy when an address is provided.
func (m minimal) OnStart(flags cli.Flags, inj node.Injector) error {
	addr := flags.String("clientaddr")
	if addr == "" {
		return nil
	}

	p, err := startProxy(addr)
	if err != nil {
		return xerrors.Errorf("proxy: %v", err)
	}

	inj.Inject(p)

	return nil
}

// OnStop implements node.Initializer. It stops the http server.
func (m minimal) OnStop(inj node.Injector) error {
	var p proxy.Proxy

	err := inj.Resolve(&p)
	if err == nil {
		p.Stop()
	}

	return nil
}
