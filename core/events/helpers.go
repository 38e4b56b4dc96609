package events

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"pegvault/crypto"
)

func normalizeAsset(asset string) string {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return ""
	}
	return strings.ToUpper(trimmed)
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func formatAddr(addr common.Address) string {
	return crypto.String(addr)
}

func zeroAddress(addr common.Address) bool {
	return addr == (common.Address{})
}
