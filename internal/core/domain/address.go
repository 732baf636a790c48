package domain

import (
	"encoding/hex"
	"strings"

	"github.com/anchorswap/swapd/pkg/errors"
	"github.com/btcsuite/btcd/btcec/v2"
)

// NetworkAddress identifies a peer on the payment-channel network. The
// string form is "<pubkey>" or "<pubkey>@<host>". A missing host means the
// peer is assumed already reachable by the local node.
type NetworkAddress struct {
	PublicKey string
	Host      string
}

// ParseNetworkAddress parses and validates a payment-channel network
// address. The public key part must be a compressed secp256k1 key.
func ParseNetworkAddress(addr string) (NetworkAddress, error) {
	pubkey := addr
	host := ""
	if at := strings.Index(addr, "@"); at >= 0 {
		pubkey = addr[:at]
		host = addr[at+1:]
		if host == "" {
			return NetworkAddress{}, errors.INVALID_ADDRESS.New(
				"network address %q has an empty host", addr,
			).WithMetadata(errors.AddressMetadata{Address: addr})
		}
	}

	buf, err := hex.DecodeString(pubkey)
	if err != nil {
		return NetworkAddress{}, errors.INVALID_ADDRESS.New(
			"network address pubkey is not hex: %s", err,
		).WithMetadata(errors.AddressMetadata{Address: addr})
	}
	if _, err := btcec.ParsePubKey(buf); err != nil {
		return NetworkAddress{}, errors.INVALID_ADDRESS.New(
			"invalid network address pubkey: %s", err,
		).WithMetadata(errors.AddressMetadata{Address: addr})
	}

	return NetworkAddress{PublicKey: pubkey, Host: host}, nil
}

func (a NetworkAddress) String() string {
	if a.Host == "" {
		return a.PublicKey
	}
	return a.PublicKey + "@" + a.Host
}
