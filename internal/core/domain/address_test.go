package domain_test

import (
	"encoding/hex"
	"testing"

	"github.com/anchorswap/swapd/internal/core/domain"
	"github.com/anchorswap/swapd/pkg/errors"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"
)

func randomPubkey(t *testing.T) string {
	t.Helper()
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return hex.EncodeToString(key.PubKey().SerializeCompressed())
}

func TestParseNetworkAddress(t *testing.T) {
	t.Parallel()

	pubkey := randomPubkey(t)

	addr, err := domain.ParseNetworkAddress(pubkey)
	require.NoError(t, err)
	require.Equal(t, pubkey, addr.PublicKey)
	require.Empty(t, addr.Host)
	require.Equal(t, pubkey, addr.String())

	addr, err = domain.ParseNetworkAddress(pubkey + "@1.2.3.4:9735")
	require.NoError(t, err)
	require.Equal(t, pubkey, addr.PublicKey)
	require.Equal(t, "1.2.3.4:9735", addr.Host)
	require.Equal(t, pubkey+"@1.2.3.4:9735", addr.String())
}

func TestParseNetworkAddressInvalid(t *testing.T) {
	t.Parallel()

	tests := []string{
		"",
		"not-hex@1.2.3.4:9735",
		"deadbeef", // too short to be a pubkey
		randomPubkey(t) + "@",
	}
	for _, addr := range tests {
		_, err := domain.ParseNetworkAddress(addr)
		require.True(t, errors.INVALID_ADDRESS.Is(err), "address %q", addr)
	}
}
