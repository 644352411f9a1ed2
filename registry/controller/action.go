package controller

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.dedis.ch/ballotbox/accumulator"
	"go.dedis.ch/ballotbox/ballot"
	"go.dedis.ch/ballotbox/cli/node"
	"go.dedis.ch/ballotbox/registry"
	"go.dedis.ch/ballotbox/registry/api"
	"golang.org/x/xerrors"
)

// listAction is an action to list the ballots of a space.
//
// - implements node.ActionTemplate
type listAction struct{}

// Execute implements node.ActionTemplate. It prints one line per ballot.
func (listAction) Execute(ctx node.Context) error {
	reg, err := getRegistry(ctx)
	if err != nil {
		return err
	}

	for _, b := range reg.List(ctx.Flags.String("space")) {
		state, err := reg.State(b.ID)
		if err != nil {
			return xerrors.Errorf("failed to read state: %v", err)
		}

		fmt.Fprintf(ctx.Out, "%s\t%s\t%d\t%s\n", b.ID, state, b.VoterCount(), b.Title)
	}

	return nil
}

// showAction is an action to print a ballot.
//
// - implements node.ActionTemplate
type showAction struct{}

// Execute implements node.ActionTemplate. It prints the JSON view of the
// ballot.
func (showAction) Execute(ctx node.Context) error {
	reg, err := getRegistry(ctx)
	if err != nil {
		return err
	}

	id := ctx.Flags.String("id")

	b, err := reg.Ballot(id)
	if err != nil {
		return xerrors.Errorf("failed to read ballot: %w", err)
	}

	state, err := reg.State(id)
	if err != nil {
		return xerrors.Errorf("failed to read state: %w", err)
	}

	data, err := json.MarshalIndent(api.NewBallotView(b, state), "", "  ")
	if err != nil {
		return xerrors.Errorf("failed to marshal ballot: %v", err)
	}

	fmt.Fprintln(ctx.Out, string(data))

	return nil
}

// createAction is an action to create a ballot.
//
// - implements node.ActionTemplate
type createAction struct{}

// Execute implements node.ActionTemplate. It prints the identifier of the new
// ballot.
func (createAction) Execute(ctx node.Context) error {
	reg, err := getRegistry(ctx)
	if err != nil {
		return err
	}

	mode, err := ballot.ParseMode(ctx.Flags.String("mode"))
	if err != nil {
		return xerrors.Errorf("failed to parse mode: %w", err)
	}

	start := time.Now()

	text := ctx.Flags.String("start")
	if text != "" {
		start, err = time.Parse(time.RFC3339, text)
		if err != nil {
			return xerrors.Errorf("failed to parse start: %v", err)
		}
	}

	bps := ctx.Flags.Int("bps")
	if bps < 0 || bps > ballot.MaxBasisPoints {
		return xerrors.Errorf("bps %d: %w", bps, ballot.ErrInvalidThreshold)
	}

	params := ballot.Params{
		Space:          ctx.Flags.String("space"),
		Title:          ctx.Flags.String("title"),
		BodyReference:  ctx.Flags.String("body"),
		Mode:           mode,
		Choices:        ctx.Flags.StringSlice("choice"),
		IncludeAbstain: ctx.Flags.Bool("abstain"),
		WindowStart:    start,
		WindowEnd:      start.Add(ctx.Flags.Duration("duration")),
		BasisPoints:    uint32(bps),
	}

	id, err := reg.Create(ctx.Flags.String("creator"), params)
	if err != nil {
		return xerrors.Errorf("failed to create: %w", err)
	}

	fmt.Fprintln(ctx.Out, id)

	return nil
}

// cancelAction is an action to cancel a pending ballot.
//
// - implements node.ActionTemplate
type cancelAction struct{}

// Execute implements node.ActionTemplate.
func (cancelAction) Execute(ctx node.Context) error {
	reg, err := getRegistry(ctx)
	if err != nil {
		return err
	}

	err = reg.Cancel(ctx.Flags.String("id"), ctx.Flags.String("caller"))
	if err != nil {
		return xerrors.Errorf("failed to cancel: %w", err)
	}

	fmt.Fprintln(ctx.Out, "ballot cancelled")

	return nil
}

// voteAction is an action to encrypt a selection with the backend of the node
// and cast it.
//
// - implements node.ActionTemplate
type voteAction struct{}

// Execute implements node.ActionTemplate.
func (voteAction) Execute(ctx node.Context) error {
	reg, err := getRegistry(ctx)
	if err != nil {
		return err
	}

	var enc accumulator.Encrypter

	err = ctx.Injector.Resolve(&enc)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	id := ctx.Flags.String("id")

	b, err := reg.Ballot(id)
	if err != nil {
		return xerrors.Errorf("failed to read ballot: %w", err)
	}

	args := ctx.Flags.StringSlice("value")

	values := make([]uint64, len(args))
	for i, arg := range args {
		values[i], err = strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return xerrors.Errorf("failed to parse value %d: %v", i, err)
		}
	}

	sel, err := enc.EncryptSelection(values, b.Mode.Domain())
	if err != nil {
		return xerrors.Errorf("failed to encrypt: %v", err)
	}

	err = reg.Cast(id, ctx.Flags.String("voter"), sel)
	if err != nil {
		return xerrors.Errorf("failed to cast: %w", err)
	}

	fmt.Fprintln(ctx.Out, "vote cast")

	return nil
}

// revealAction is an action to request the reveal of a closed ballot.
//
// - implements node.ActionTemplate
type revealAction struct{}

// Execute implements node.ActionTemplate.
func (revealAction) Execute(ctx node.Context) error {
	reg, err := getRegistry(ctx)
	if err != nil {
		return err
	}

	err = reg.RequestReveal(ctx.Flags.String("id"))
	if err != nil {
		return xerrors.Errorf("failed to request reveal: %w", err)
	}

	fmt.Fprintln(ctx.Out, "reveal requested")

	return nil
}

// retryAction is an action to issue again a pending reveal request.
//
// - implements node.ActionTemplate
type retryAction struct{}

// Execute implements node.ActionTemplate.
func (retryAction) Execute(ctx node.Context) error {
	reg, err := getRegistry(ctx)
	if err != nil {
		return err
	}

	err = reg.RetryReveal(ctx.Flags.String("id"), ctx.Flags.String("caller"))
	if err != nil {
		return xerrors.Errorf("failed to retry: %w", err)
	}

	fmt.Fprintln(ctx.Out, "reveal requested")

	return nil
}

// callbackAction is an action to deliver the totals of a reveal and their
// proof, as the facility does when it is done.
//
// - implements node.ActionTemplate
type callbackAction struct{}

// Execute implements node.ActionTemplate.
func (callbackAction) Execute(ctx node.Context) error {
	reg, err := getRegistry(ctx)
	if err != nil {
		return err
	}

	args := ctx.Flags.StringSlice("total")

	totals := make([]uint64, len(args))
	for i, arg := range args {
		totals[i], err = strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return xerrors.Errorf("failed to parse total %d: %v", i, err)
		}
	}

	proof, err := hex.DecodeString(ctx.Flags.String("proof"))
	if err != nil {
		return xerrors.Errorf("failed to decode proof: %v", err)
	}

	err = reg.OnRevealCallback(ctx.Flags.String("id"), totals, proof)
	if err != nil {
		return xerrors.Errorf("failed to deliver reveal: %w", err)
	}

	fmt.Fprintln(ctx.Out, "reveal delivered")

	return nil
}

// scanAction is an action to scan the registry for elapsed ballots and
// optionally apply the batch.
//
// - implements node.ActionTemplate
type scanAction struct{}

// Execute implements node.ActionTemplate. It prints the batch, one identifier
// per line.
func (scanAction) Execute(ctx node.Context) error {
	reg, err := getRegistry(ctx)
	if err != nil {
		return err
	}

	res := reg.Scan()

	for _, id := range res.Batch {
		fmt.Fprintln(ctx.Out, id)
	}

	if ctx.Flags.Bool("apply") {
		fmt.Fprintf(ctx.Out, "%d ballot(s) advanced\n", reg.Apply(res.Batch))
	}

	return nil
}

func getRegistry(ctx node.Context) (*registry.Registry, error) {
	var reg *registry.Registry

	err := ctx.Injector.Resolve(&reg)
	if err != nil {
		return nil, xerrors.Errorf("injector: %v", err)
	}

	return reg, nil
}
