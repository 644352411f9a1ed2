// Package eligibility defines the boundary to the membership registry that
// decides who may vote in a space and with which weight.
//
// The engine only consumes the Oracle interface. The memory sub-package
// provides an implementation that is used by the daemon and the tests.
package eligibility

// Type is the kind of gate a space applies to its voters.
type Type uint8

const (
	// Whitelist only allows the members of the space.
	Whitelist Type = iota

	// FungibleToken allows any principal holding at least the threshold
	// amount of the token.
	FungibleToken

	// NonFungibleToken allows any principal holding at least the threshold
	// number of items of the collection.
	NonFungibleToken
)

// String returns a human-readable name of the type.
func (t Type) String() string {
	switch t {
	case Whitelist:
		return "whitelist"
	case FungibleToken:
		return "fungible"
	case NonFungibleToken:
		return "nonfungible"
	default:
		return "unknown"
	}
}

// Config is the eligibility configuration of a space. A ballot copies it when
// it is created and never reads it again from the space.
type Config struct {
	Type            Type   `cbor:"type" json:"type"`
	TokenReference  string `cbor:"token,omitempty" json:"token,omitempty"`
	ThresholdAmount uint64 `cbor:"threshold,omitempty" json:"threshold,omitempty"`
}

// Oracle answers the questions the engine asks about spaces and principals.
type Oracle interface {
	// SpaceExists returns true if the space is known.
	SpaceExists(space string) bool

	// SpaceIsActive returns true if the space accepts new ballots and votes.
	SpaceIsActive(space string) bool

	// IsMember returns true if the principal is a member of the space.
	IsMember(space, principal string) bool

	// IsAdmin returns true if the principal administers the space.
	IsAdmin(space, principal string) bool

	// SpaceOwner returns the owner of the space.
	SpaceOwner(space string) string

	// SpaceEligibility returns the current eligibility configuration of the
	// space.
	SpaceEligibility(space string) Config

	// EligibilityWeight returns the voting weight of the principal according
	// to the configuration. Zero means the principal is not eligible.
	EligibilityWeight(space, principal string, cfg Config) uint64
}
