// Package ucli implements cli.Builder with urfave/cli. Each flag can also be
// set through the environment, for instance BALLOTBOX_CONFIG for the flag
// "config" of the application "ballotbox".
package ucli

import (
	"fmt"
	"strings"
	"unicode"

	urfave "github.com/urfave/cli/v2"
	"go.dedis.ch/ballotbox/cli"
)

// Builder collects the commands of an application.
//
// - implements cli.Builder
type Builder struct {
	name     string
	action   cli.Action
	flags    []cli.Flag
	commands []*cmdBuilder
}

// NewBuilder returns the builder of the application. The action runs when no
// command is given and may be nil. The flags are global.
func NewBuilder(name string, action cli.Action, flags ...cli.Flag) cli.Builder {
	return &Builder{
		name:   name,
		action: action,
		flags:  flags,
	}
}

// Build implements cli.Builder.
func (b Builder) Build() cli.Application {
	app := &urfave.App{
		Name:     b.name,
		Action:   makeAction(b.action),
		Flags:    buildFlags(envPrefix(b.name), b.flags),
		Commands: buildCommands(b.commands),
	}

	app.Setup()

	return app
}

// SetCommand implements cli.Builder.
func (b *Builder) SetCommand(name string) cli.CommandBuilder {
	cmd := &cmdBuilder{name: name, prefix: envPrefix(b.name)}
	b.commands = append(b.commands, cmd)

	return cmd
}

// cmdBuilder collects a command and its subcommands.
//
// - implements cli.CommandBuilder
type cmdBuilder struct {
	name        string
	prefix      string
	description string
	action      cli.Action
	flags       []urfave.Flag
	subcommands []*cmdBuilder
}

// SetDescription implements cli.CommandBuilder.
func (b *cmdBuilder) SetDescription(value string) {
	b.description = value
}

// SetFlags implements cli.CommandBuilder.
func (b *cmdBuilder) SetFlags(flags ...cli.Flag) {
	b.flags = buildFlags(b.prefix, flags)
}

// SetAction implements cli.CommandBuilder.
func (b *cmdBuilder) SetAction(action cli.Action) {
	b.action = action
}

// SetSubCommand implements cli.CommandBuilder.
func (b *cmdBuilder) SetSubCommand(name string) cli.CommandBuilder {
	sub := &cmdBuilder{name: name, prefix: b.prefix}
	b.subcommands = append(b.subcommands, sub)

	return sub
}

func buildCommands(cmds []*cmdBuilder) []*urfave.Command {
	res := make([]*urfave.Command, 0, len(cmds))

	for _, cmd := range cmds {
		res = append(res, &urfave.Command{
			Name:        cmd.name,
			Usage:       cmd.description,
			Action:      makeAction(cmd.action),
			Flags:       cmd.flags,
			Subcommands: buildCommands(cmd.subcommands),
		})
	}

	return res
}

// buildFlags returns the urfave flags. With an empty prefix, the flags ignore
// the environment. It panics on an unknown flag type.
func buildFlags(prefix string, flags []cli.Flag) []urfave.Flag {
	res := make([]urfave.Flag, 0, len(flags))

	for _, f := range flags {
		res = append(res, buildFlag(prefix, f))
	}

	return res
}

func buildFlag(prefix string, f cli.Flag) urfave.Flag {
	var env []string
	if f != nil && prefix != "" {
		env = []string{envName(prefix, f.Key())}
	}

	switch e := f.(type) {
	case cli.StringFlag:
		return &urfave.StringFlag{Name: e.Name, Usage: e.Usage, Required: e.Required,
			EnvVars: env, Value: e.Value}
	case cli.StringSliceFlag:
		return &urfave.StringSliceFlag{Name: e.Name, Usage: e.Usage, Required: e.Required,
			EnvVars: env, Value: urfave.NewStringSlice(e.Value...)}
	case cli.DurationFlag:
		return &urfave.DurationFlag{Name: e.Name, Usage: e.Usage, Required: e.Required,
			EnvVars: env, Value: e.Value}
	case cli.IntFlag:
		return &urfave.IntFlag{Name: e.Name, Usage: e.Usage, Required: e.Required,
			EnvVars: env, Value: e.Value}
	case cli.BoolFlag:
		return &urfave.BoolFlag{Name: e.Name, Usage: e.Usage, Required: e.Required,
			EnvVars: env, Value: e.Value}
	default:
		panic(fmt.Sprintf("flag type '%T' not supported", f))
	}
}

// envPrefix returns the prefix of the environment variables of an
// application.
func envPrefix(name string) string {
	return envName("", name)
}

// envName upper-cases the name and replaces anything but letters and digits
// with underscores.
func envName(prefix, name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToUpper(r)
		}
		return '_'
	}, name)

	if prefix == "" {
		return name
	}

	return prefix + "_" + name
}

func makeAction(action cli.Action) urfave.ActionFunc {
	if action == nil {
		return nil
	}

	return func(ctx *urfave.Context) error {
		return action(ctx)
	}
}
