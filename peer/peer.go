// Package peer defines peer identity: the address/public-key pair that
// Topology orders into consensus roles.
package peer

import (
	"fmt"

	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/ids"
)

// ID is {address, public_key}. It is the identity carried by every
// consensus message and the unit Topology orders into roles.
type ID struct {
	Address   string
	PublicKey *bls.PublicKey
}

// New builds a peer ID from an address and public key.
func New(address string, pub *bls.PublicKey) ID {
	return ID{Address: address, PublicKey: pub}
}

// NodeID derives the stable node identifier used as a map/set key.
// Two IDs with the same public key compare equal regardless of address,
// matching the source's identity-by-key semantics (addresses can change
// out from under a registered peer; see peergossip).
func (p ID) NodeID() ids.NodeID {
	if p.PublicKey == nil {
		return ids.NodeID{}
	}
	var nodeID ids.NodeID
	copy(nodeID[:], bls.PublicKeyToCompressedBytes(p.PublicKey))
	return nodeID
}

// Equal compares peers by public key, not by address.
func (p ID) Equal(other ID) bool {
	return p.NodeID() == other.NodeID()
}

func (p ID) String() string {
	return fmt.Sprintf("%s@%s", p.NodeID(), p.Address)
}
