// Package controller implements the initializer of the database. The database
// is opened in the configuration folder of the node and injected for the
// components that persist their state.
package controller

import (
	"path/filepath"

	"go.dedis.ch/ballotbox/cli"
	"go.dedis.ch/ballotbox/cli/node"
	"go.dedis.ch/ballotbox/core/store/kv"
	"golang.org/x/xerrors"
)

// DBFile is the name of the database file in the configuration folder.
const DBFile = "ballots.db"

type minimal struct{}

// NewController returns a new initializer of the database.
func NewController() node.Initializer {
	return minimal{}
}

// SetCommands implements node.Initializer. The database has no command.
func (m minimal) SetCommands(builder node.Builder) {}

// OnStart implements node.Initializer. It opens and injects the database.
func (m minimal) OnStart(flags cli.Flags, inj node.Injector) error {
	db, err := kv.New(filepath.Join(flags.Path("config"), DBFile))
	if err != nil {
		return xerrors.Errorf("db: %v", err)
	}

	inj.Inject(db)

	return nil
}

// OnStop implements node.Initializer. It closes the database.
func (m minimal) OnStop(inj node.Injector) error {
	var db kv.DB
	err := inj.Resolve(&db)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	err = db.Close()
	if err != nil {
		return xerrors.Errorf("while closing db: %v", err)
	}

	return nil
}
