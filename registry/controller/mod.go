// Package controller implements the initializer of the registry. It opens the
// eligibility oracle and the accumulator backend, starts the decryption
// facility and the automation service, and mounts the API on the proxy when
// one is running.
package controller

import (
	"context"
	"path/filepath"
	"time"

	"go.dedis.ch/ballotbox/accumulator"
	"go.dedis.ch/ballotbox/accumulator/elgamal"
	"go.dedis.ch/ballotbox/accumulator/plain"
	"go.dedis.ch/ballotbox/automation"
	"go.dedis.ch/ballotbox/cli"
	"go.dedis.ch/ballotbox/cli/node"
	"go.dedis.ch/ballotbox/core/store/kv"
	"go.dedis.ch/ballotbox/eligibility/memory"
	"go.dedis.ch/ballotbox/proxy"
	"go.dedis.ch/ballotbox/registry"
	"go.dedis.ch/ballotbox/registry/api"
	"go.dedis.ch/ballotbox/reveal/local"
	"golang.org/x/xerrors"
)

const (
	keyFile = "elgamal.key"

	backendElGamal = "elgamal"
	backendPlain   = "plain"

	// APIPath is the path the API is mounted on.
	APIPath = "/api"
)

type minimal struct{}

// NewController returns a new initializer of the registry.
func NewController() node.Initializer {
	return minimal{}
}

// SetCommands implements node.Initializer.
func (minimal) SetCommands(builder node.Builder) {
	builder.SetStartFlags(
		cli.StringFlag{
			Name:  "spaces",
			Usage: "path to the YAML seed of the spaces",
		},
		cli.StringFlag{
			Name:  "owner",
			Usage: "principal allowed to cancel any pending ballot and to retry reveals",
		},
		cli.StringFlag{
			Name:  "backend",
			Usage: "accumulator backend, either elgamal or plain",
			Value: backendElGamal,
		},
		cli.DurationFlag{
			Name:  "interval",
			Usage: "period of the scan for elapsed ballots",
			Value: automation.DefaultInterval,
		},
		cli.IntFlag{
			Name:  "batch",
			Usage: "maximum number of ballots advanced per scan",
			Value: registry.DefaultMaxBatch,
		},
		cli.IntFlag{
			Name:  "maxtotal",
			Usage: "largest total the decryption facility can reveal, the default of the backend when zero",
		},
	)

	cmd := builder.SetCommand("ballot")
	cmd.SetDescription("Ballot administration")

	sub := cmd.SetSubCommand("list")
	sub.SetDescription("List the ballots of a space")
	sub.SetFlags(cli.StringFlag{
		Name:  "space",
		Usage: "identifier of the space, all the ballots when empty",
	})
	sub.SetAction(builder.MakeAction(listAction{}))

	sub = cmd.SetSubCommand("show")
	sub.SetDescription("Show a ballot")
	sub.SetFlags(idFlag)
	sub.SetAction(builder.MakeAction(showAction{}))

	sub = cmd.SetSubCommand("create")
	sub.SetDescription("Create a new ballot")
	sub.SetFlags(
		cli.StringFlag{Name: "creator", Required: true, Usage: "principal creating the ballot"},
		cli.StringFlag{Name: "space", Required: true, Usage: "identifier of the space"},
		cli.StringFlag{Name: "title", Required: true, Usage: "title of the ballot"},
		cli.StringFlag{Name: "body", Usage: "reference to the body of the ballot"},
		cli.StringFlag{Name: "mode", Usage: "single, weighted or fractional", Value: "single"},
		cli.StringSliceFlag{Name: "choice", Required: true, Usage: "one or several choices"},
		cli.BoolFlag{Name: "abstain", Usage: "append the abstain slot"},
		cli.StringFlag{Name: "start", Usage: "RFC3339 opening of the window, now when empty"},
		cli.DurationFlag{Name: "duration", Usage: "length of the window", Value: 24 * time.Hour},
		cli.IntFlag{Name: "bps", Usage: "passing threshold in basis points"},
	)
	sub.SetAction(builder.MakeAction(createAction{}))

	sub = cmd.SetSubCommand("cancel")
	sub.SetDescription("Cancel a pending ballot")
	sub.SetFlags(idFlag, callerFlag)
	sub.SetAction(builder.MakeAction(cancelAction{}))

	sub = cmd.SetSubCommand("vote")
	sub.SetDescription("Encrypt and cast a selection")
	sub.SetFlags(
		idFlag,
		cli.StringFlag{Name: "voter", Required: true, Usage: "principal casting the vote"},
		cli.StringSliceFlag{Name: "value", Required: true, Usage: "one value per choice"},
	)
	sub.SetAction(builder.MakeAction(voteAction{}))

	sub = cmd.SetSubCommand("reveal")
	sub.SetDescription("Request the reveal of a closed ballot")
	sub.SetFlags(idFlag)
	sub.SetAction(builder.MakeAction(revealAction{}))

	sub = cmd.SetSubCommand("retry")
	sub.SetDescription("Issue again a pending reveal request")
	sub.SetFlags(idFlag, callerFlag)
	sub.SetAction(builder.MakeAction(retryAction{}))

	sub = cmd.SetSubCommand("callback")
	sub.SetDescription("Deliver the totals of a reveal")
	sub.SetFlags(
		idFlag,
		cli.StringSliceFlag{Name: "total", Required: true, Usage: "one total per accumulator"},
		cli.StringFlag{Name: "proof", Usage: "hex-encoded proof of the totals"},
	)
	sub.SetAction(builder.MakeAction(callbackAction{}))

	sub = cmd.SetSubCommand("scan")
	sub.SetDescription("Scan for elapsed ballots")
	sub.SetFlags(cli.BoolFlag{Name: "apply", Usage: "request the reveal of the batch"})
	sub.SetAction(builder.MakeAction(scanAction{}))
}

var idFlag = cli.StringFlag{
	Name:     "id",
	Required: true,
	Usage:    "identifier of the ballot",
}

var callerFlag = cli.StringFlag{
	Name:     "caller",
	Required: true,
	Usage:    "principal performing the operation",
}

// OnStart implements node.Initializer. It creates the registry on top of the
// database and starts the background services.
func (minimal) OnStart(flags cli.Flags, inj node.Injector) error {
	var db kv.DB

	err := inj.Resolve(&db)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	oracle, err := loadOracle(flags.Path("spaces"))
	if err != nil {
		return xerrors.Errorf("oracle: %v", err)
	}

	backend, decrypter, info, err := loadBackend(flags)
	if err != nil {
		return xerrors.Errorf("backend: %v", err)
	}

	facility := local.NewFacility(decrypter, 0)

	reg, err := registry.NewRegistry(oracle, backend,
		registry.WithStorage(db),
		registry.WithFacility(facility),
		registry.WithOwner(flags.String("owner")),
		registry.WithMaxBatch(flags.Int("batch")))
	if err != nil {
		return xerrors.Errorf("registry: %v", err)
	}

	err = facility.Start(context.Background(), reg)
	if err != nil {
		return xerrors.Errorf("facility: %v", err)
	}

	srvc := automation.NewService(reg, flags.Duration("interval"))

	err = srvc.Start(context.Background())
	if err != nil {
		facility.Stop()
		return xerrors.Errorf("automation: %v", err)
	}

	var p proxy.Proxy

	err = inj.Resolve(&p)
	if err == nil {
		p.Mount(APIPath, api.NewAPI(reg, api.WithBackendInfo(info)).Router())
	}

	inj.Inject(oracle)
	inj.Inject(backend)
	inj.Inject(facility)
	inj.Inject(reg)
	inj.Inject(srvc)

	return nil
}

// OnStop implements node.Initializer. It stops the automation before the
// decryption facility.
func (minimal) OnStop(inj node.Injector) error {
	var srvc *automation.Service

	err := inj.Resolve(&srvc)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	srvc.Stop()

	var facility *local.Facility

	err = inj.Resolve(&facility)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	facility.Stop()

	return nil
}

func loadOracle(path string) (*memory.Oracle, error) {
	if path == "" {
		return memory.NewOracle(), nil
	}

	return memory.Load(path)
}

type encryptingBackend interface {
	accumulator.Backend
	accumulator.Encrypter
}

func loadBackend(flags cli.Flags) (encryptingBackend, accumulator.Decrypter, api.BackendInfo, error) {
	maxTotal := flags.Int("maxtotal")
	if maxTotal < 0 {
		maxTotal = 0
	}

	switch flags.String("backend") {
	case backendPlain:
		backend := plain.NewBackend()

		return backend, backend, api.BackendInfo{Name: plain.Name}, nil
	case backendElGamal, "":
		kp, err := elgamal.LoadOrCreateKey(filepath.Join(flags.Path("config"), keyFile))
		if err != nil {
			return nil, nil, api.BackendInfo{}, xerrors.Errorf("key: %v", err)
		}

		info := api.BackendInfo{
			Name:      elgamal.Name,
			PublicKey: elgamal.EncodePublic(kp.Public),
		}

		return elgamal.NewBackend(kp.Public, uint64(maxTotal)), elgamal.NewDecrypter(kp, uint64(maxTotal)), info, nil
	default:
		return nil, nil, api.BackendInfo{}, xerrors.Errorf("unknown backend '%s'", flags.String("backend"))
	}
}
