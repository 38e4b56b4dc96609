package crypto

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
)

// AddressPrefix defines the human-readable part of a rendered address.
type AddressPrefix string

const (
	PUSDPrefix AddressPrefix = "pusd"
)

// Bech32 renders a 20-byte account with the given prefix.
func Bech32(prefix AddressPrefix, addr common.Address) string {
	conv, err := bech32.ConvertBits(addr.Bytes(), 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// String renders addr with the PUSD prefix.
func String(addr common.Address) string {
	return Bech32(PUSDPrefix, addr)
}

// ParseAddress accepts either a bech32 string with the PUSD prefix or a
// 0x-prefixed hex address.
func ParseAddress(raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return common.Address{}, fmt.Errorf("address required")
	}
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		if !common.IsHexAddress(raw) {
			return common.Address{}, fmt.Errorf("invalid hex address %q", raw)
		}
		return common.HexToAddress(raw), nil
	}
	prefix, decoded, err := bech32.Decode(raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	if AddressPrefix(prefix) != PUSDPrefix {
		return common.Address{}, fmt.Errorf("unexpected address prefix %q", prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return common.Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != common.AddressLength {
		return common.Address{}, fmt.Errorf("address must be 20 bytes long")
	}
	return common.BytesToAddress(conv), nil
}
