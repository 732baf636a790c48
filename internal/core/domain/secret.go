package domain

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/anchorswap/swapd/pkg/errors"
)

// SecretSize is the size in bytes of a swap hash and of its preimage.
const SecretSize = 32

// SwapHash is the canonical in-memory form of a swap payment hash: the
// std base64 encoding of the 32-byte digest. The escrow wire protocol
// speaks hex, the channel engine speaks raw bytes; both conversions go
// through this type.
type SwapHash string

// SwapPreimage is the canonical in-memory form of a swap preimage,
// encoded like SwapHash.
type SwapPreimage string

// NewSwapHash builds a canonical hash from its raw 32 bytes.
func NewSwapHash(buf []byte) (SwapHash, error) {
	if len(buf) != SecretSize {
		return "", errors.INVALID_ENCODING.New(
			"invalid hash length, got %d bytes, expected %d", len(buf), SecretSize,
		).WithMetadata(errors.SecretMetadata{Length: len(buf)})
	}
	return SwapHash(base64.StdEncoding.EncodeToString(buf)), nil
}

// NewSwapPreimage builds a canonical preimage from its raw 32 bytes.
func NewSwapPreimage(buf []byte) (SwapPreimage, error) {
	if len(buf) != SecretSize {
		return "", errors.INVALID_ENCODING.New(
			"invalid preimage length, got %d bytes, expected %d", len(buf), SecretSize,
		).WithMetadata(errors.SecretMetadata{Length: len(buf)})
	}
	return SwapPreimage(base64.StdEncoding.EncodeToString(buf)), nil
}

func (h SwapHash) Bytes() ([]byte, error) {
	return secretBytes(string(h))
}

func (h SwapHash) Hex() (string, error) {
	return ToWireHex(string(h))
}

func (p SwapPreimage) Bytes() ([]byte, error) {
	return secretBytes(string(p))
}

func (p SwapPreimage) Hex() (string, error) {
	return ToWireHex(string(p))
}

// ToWireHex converts a canonical secret to the escrow service's hex wire
// form.
func ToWireHex(secret string) (string, error) {
	buf, err := secretBytes(secret)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// FromWireHex converts a hex-encoded secret from the escrow wire into its
// canonical form.
func FromWireHex(wire string) (string, error) {
	buf, err := hex.DecodeString(wire)
	if err != nil {
		return "", errors.INVALID_ENCODING.Wrap(
			fmt.Errorf("invalid hex secret: %s", err),
		).WithMetadata(errors.SecretMetadata{Length: len(wire)})
	}
	if len(buf) != SecretSize {
		return "", errors.INVALID_ENCODING.New(
			"invalid secret length, got %d bytes, expected %d", len(buf), SecretSize,
		).WithMetadata(errors.SecretMetadata{Length: len(buf)})
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// SwapHashFromWireHex decodes a hash from the escrow wire.
func SwapHashFromWireHex(wire string) (SwapHash, error) {
	canonical, err := FromWireHex(wire)
	if err != nil {
		return "", err
	}
	return SwapHash(canonical), nil
}

// SwapPreimageFromWireHex decodes a preimage from the escrow wire.
func SwapPreimageFromWireHex(wire string) (SwapPreimage, error) {
	canonical, err := FromWireHex(wire)
	if err != nil {
		return "", err
	}
	return SwapPreimage(canonical), nil
}

func secretBytes(secret string) ([]byte, error) {
	buf, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, errors.INVALID_ENCODING.Wrap(
			fmt.Errorf("invalid base64 secret: %s", err),
		).WithMetadata(errors.SecretMetadata{Length: len(secret)})
	}
	if len(buf) != SecretSize {
		return nil, errors.INVALID_ENCODING.New(
			"invalid secret length, got %d bytes, expected %d", len(buf), SecretSize,
		).WithMetadata(errors.SecretMetadata{Length: len(buf)})
	}
	return buf, nil
}
