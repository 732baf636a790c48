package domain_test

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/anchorswap/swapd/internal/core/domain"
	"github.com/anchorswap/swapd/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestSecretRoundTrip(t *testing.T) {
	t.Parallel()

	preimageBuf := make([]byte, domain.SecretSize)
	for i := range preimageBuf {
		preimageBuf[i] = byte(i)
	}
	hashBuf := sha256.Sum256(preimageBuf)

	preimage, err := domain.NewSwapPreimage(preimageBuf)
	require.NoError(t, err)
	require.Equal(t, base64.StdEncoding.EncodeToString(preimageBuf), string(preimage))

	hash, err := domain.NewSwapHash(hashBuf[:])
	require.NoError(t, err)

	gotBuf, err := hash.Bytes()
	require.NoError(t, err)
	require.Equal(t, hashBuf[:], gotBuf)

	wire, err := hash.Hex()
	require.NoError(t, err)
	require.Equal(t, hex.EncodeToString(hashBuf[:]), wire)

	back, err := domain.SwapHashFromWireHex(wire)
	require.NoError(t, err)
	require.Equal(t, hash, back)

	preimageWire, err := preimage.Hex()
	require.NoError(t, err)
	preimageBack, err := domain.SwapPreimageFromWireHex(preimageWire)
	require.NoError(t, err)
	require.Equal(t, preimage, preimageBack)
}

func TestMalformedSecrets(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		buf  []byte
	}{
		{"empty", nil},
		{"short", make([]byte, 20)},
		{"long", make([]byte, 33)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := domain.NewSwapHash(tt.buf)
			require.Error(t, err)
			require.True(t, errors.INVALID_ENCODING.Is(err))

			_, err = domain.NewSwapPreimage(tt.buf)
			require.Error(t, err)
			require.True(t, errors.INVALID_ENCODING.Is(err))
		})
	}

	_, err := domain.FromWireHex("not hex at all")
	require.True(t, errors.INVALID_ENCODING.Is(err))

	// valid hex but wrong length
	_, err = domain.FromWireHex("deadbeef")
	require.True(t, errors.INVALID_ENCODING.Is(err))

	_, err = domain.SwapHash("%%%not-base64%%%").Bytes()
	require.True(t, errors.INVALID_ENCODING.Is(err))
}
