// Package memory implements an in-memory eligibility oracle. Spaces can be
// registered programmatically or loaded from a YAML seed file.
package memory

import (
	"os"
	"sync"

	"go.dedis.ch/ballotbox/eligibility"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// Space is the state of a single space known by the oracle.
type Space struct {
	ID          string             `yaml:"id"`
	Owner       string             `yaml:"owner"`
	Inactive    bool               `yaml:"inactive"`
	Admins      []string           `yaml:"admins"`
	Members     []string           `yaml:"members"`
	Eligibility eligibility.Config `yaml:"-"`

	// Gate is the YAML form of the eligibility type.
	Gate      string `yaml:"gate"`
	Token     string `yaml:"token"`
	Threshold uint64 `yaml:"threshold"`

	// Balances maps a principal to its holdings of the space token, or to the
	// number of items it holds for a non-fungible collection.
	Balances map[string]uint64 `yaml:"balances"`
}

type seed struct {
	Spaces []Space `yaml:"spaces"`
}

// Oracle is an in-memory eligibility oracle.
//
// - implements eligibility.Oracle
type Oracle struct {
	sync.RWMutex

	spaces map[string]*space
}

type space struct {
	owner    string
	active   bool
	admins   map[string]struct{}
	members  map[string]struct{}
	config   eligibility.Config
	balances map[string]uint64
}

// NewOracle returns a new empty oracle.
func NewOracle() *Oracle {
	return &Oracle{
		spaces: make(map[string]*space),
	}
}

// Load reads a YAML seed file and returns an oracle populated with its spaces.
func Load(path string) (*Oracle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("failed to read seed: %v", err)
	}

	return Parse(data)
}

// Parse returns an oracle populated with the spaces of the YAML document.
func Parse(data []byte) (*Oracle, error) {
	var s seed

	err := yaml.Unmarshal(data, &s)
	if err != nil {
		return nil, xerrors.Errorf("failed to unmarshal seed: %v", err)
	}

	oracle := NewOracle()

	for _, sp := range s.Spaces {
		gate, err := parseGate(sp.Gate)
		if err != nil {
			return nil, xerrors.Errorf("space '%s': %v", sp.ID, err)
		}

		sp.Eligibility = eligibility.Config{
			Type:            gate,
			TokenReference:  sp.Token,
			ThresholdAmount: sp.Threshold,
		}

		err = oracle.AddSpace(sp)
		if err != nil {
			return nil, xerrors.Errorf("failed to add space: %v", err)
		}
	}

	return oracle, nil
}

// AddSpace registers a new space. It returns an error if the identifier is
// empty or already used.
func (o *Oracle) AddSpace(sp Space) error {
	if sp.ID == "" {
		return xerrors.New("space identifier is empty")
	}

	o.Lock()
	defer o.Unlock()

	_, found := o.spaces[sp.ID]
	if found {
		return xerrors.Errorf("space '%s' already exists", sp.ID)
	}

	entry := &space{
		owner:    sp.Owner,
		active:   !sp.Inactive,
		admins:   make(map[string]struct{}),
		members:  make(map[string]struct{}),
		config:   sp.Eligibility,
		balances: make(map[string]uint64),
	}

	for _, admin := range sp.Admins {
		entry.admins[admin] = struct{}{}
	}

	for _, member := range sp.Members {
		entry.members[member] = struct{}{}
	}

	for principal, amount := range sp.Balances {
		entry.balances[principal] = amount
	}

	o.spaces[sp.ID] = entry

	return nil
}

// SetActive activates or deactivates a space.
func (o *Oracle) SetActive(id string, active bool) {
	o.Lock()
	defer o.Unlock()

	sp, found := o.spaces[id]
	if found {
		sp.active = active
	}
}

// AddMember adds the principal to the members of the space.
func (o *Oracle) AddMember(id, principal string) {
	o.Lock()
	defer o.Unlock()

	sp, found := o.spaces[id]
	if found {
		sp.members[principal] = struct{}{}
	}
}

// SetBalance sets the holdings of the principal in the space.
func (o *Oracle) SetBalance(id, principal string, amount uint64) {
	o.Lock()
	defer o.Unlock()

	sp, found := o.spaces[id]
	if found {
		sp.balances[principal] = amount
	}
}

// SetEligibility replaces the eligibility configuration of the space.
func (o *Oracle) SetEligibility(id string, cfg eligibility.Config) {
	o.Lock()
	defer o.Unlock()

	sp, found := o.spaces[id]
	if found {
		sp.config = cfg
	}
}

// SpaceExists implements eligibility.Oracle.
func (o *Oracle) SpaceExists(id string) bool {
	o.RLock()
	defer o.RUnlock()

	_, found := o.spaces[id]
	return found
}

// SpaceIsActive implements eligibility.Oracle.
func (o *Oracle) SpaceIsActive(id string) bool {
	o.RLock()
	defer o.RUnlock()

	sp, found := o.spaces[id]
	return found && sp.active
}

// IsMember implements eligibility.Oracle.
func (o *Oracle) IsMember(id, principal string) bool {
	o.RLock()
	defer o.RUnlock()

	sp, found := o.spaces[id]
	if !found {
		return false
	}

	_, member := sp.members[principal]
	return member
}

// IsAdmin implements eligibility.Oracle.
func (o *Oracle) IsAdmin(id, principal string) bool {
	o.RLock()
	defer o.RUnlock()

	sp, found := o.spaces[id]
	if !found {
		return false
	}

	_, admin := sp.admins[principal]
	return admin
}

// SpaceOwner implements eligibility.Oracle.
func (o *Oracle) SpaceOwner(id string) string {
	o.RLock()
	defer o.RUnlock()

	sp, found := o.spaces[id]
	if !found {
		return ""
	}

	return sp.owner
}

// SpaceEligibility implements eligibility.Oracle.
func (o *Oracle) SpaceEligibility(id string) eligibility.Config {
	o.RLock()
	defer o.RUnlock()

	sp, found := o.spaces[id]
	if !found {
		return eligibility.Config{}
	}

	return sp.config
}

// EligibilityWeight implements eligibility.Oracle. A whitelisted member weighs
// its token balance when the configuration names a token, otherwise one. Token
// gated spaces weigh the holdings when they reach the threshold.
func (o *Oracle) EligibilityWeight(id, principal string, cfg eligibility.Config) uint64 {
	o.RLock()
	defer o.RUnlock()

	sp, found := o.spaces[id]
	if !found {
		return 0
	}

	balance := sp.balances[principal]

	switch cfg.Type {
	case eligibility.Whitelist:
		_, member := sp.members[principal]
		if !member {
			return 0
		}

		if cfg.TokenReference != "" && balance > 0 {
			return balance
		}

		return 1
	case eligibility.FungibleToken, eligibility.NonFungibleToken:
		if balance == 0 || balance < cfg.ThresholdAmount {
			return 0
		}

		return balance
	default:
		return 0
	}
}

func parseGate(gate string) (eligibility.Type, error) {
	switch gate {
	case "", "whitelist":
		return eligibility.Whitelist, nil
	case "fungible":
		return eligibility.FungibleToken, nil
	case "nonfungible":
		return eligibility.NonFungibleToken, nil
	default:
		return 0, xerrors.Errorf("unknown gate '%s'", gate)
	}
}
