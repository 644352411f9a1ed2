package node

import (
	"fmt"
	"os"

	"go.dedis.ch/ballotbox/ballot"
	"go.dedis.ch/ballotbox/cli"
)

func ExampleCLIBuilder_Build() {
	builder := NewBuilder(exampleController{})

	cmd := builder.SetCommand("id")

	cmd.SetFlags(cli.StringFlag{
		Name:  "space",
		Usage: "set the space",
		Value: "dao",
	}, cli.StringFlag{
		Name:  "title",
		Usage: "set the title",
	})

	// This action is only executed on the CLI process. It is also possible to
	// call commands on the daemon after it has been started with "start".
	cmd.SetAction(func(flags cli.Flags) error {
		fmt.Printf("%.8s", ballot.MakeID(flags.String("space"), flags.String("title")))
		return nil
	})

	app := builder.Build()

	err := app.Run([]string{os.Args[0], "id", "--title", "Budget"})
	if err != nil {
		panic("app failed: " + err.Error())
	}

	// Output: db508bb5
}

// Counter is an example of a component that can be injected and resolved on
// the daemon side.
type Counter interface {
	Count(space string) int
}

type staticCounter map[string]int

func (c staticCounter) Count(space string) int {
	return c[space]
}

// countAction is an example of an action template to be executed on the
// daemon.
//
// - implements node.ActionTemplate
type countAction struct{}

// Execute implements node.ActionTemplate. It resolves the counter component
// and prints the number of ballots of the space defined by the flag.
func (tmpl countAction) Execute(ctx Context) error {
	var counter Counter
	err := ctx.Injector.Resolve(&counter)
	if err != nil {
		return err
	}

	fmt.Fprintf(ctx.Out, "%d ballots", counter.Count(ctx.Flags.String("space")))

	return nil
}

// exampleController is an example of a controller passed to the builder. It
// defines the command available and the component that are injected when the
// daemon is started.
//
// - implements node.Initializer
type exampleController struct{}

// SetCommands implements node.Initializer. It defines the count command.
func (exampleController) SetCommands(builder Builder) {
	cmd := builder.SetCommand("count")

	// Set an action that will be executed on the daemon.
	cmd.SetAction(builder.MakeAction(countAction{}))

	cmd.SetDescription("Count the ballots of a space")
	cmd.SetFlags(cli.StringFlag{
		Name:  "space",
		Usage: "set the space",
		Value: "dao",
	})
}

// OnStart implements node.Initializer. It injects the counter component.
func (exampleController) OnStart(flags cli.Flags, inj Injector) error {
	inj.Inject(staticCounter{"dao": 3})

	return nil
}

// OnStop implements node.Initializer.
func (exampleController) OnStop(Injector) error {
	return nil
}
