package state

import (
	"encoding/binary"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	rolePrefix  = []byte("role/")
	pausePrefix = []byte("pause/")

	walletPrefix       = []byte("custody/wallet/")
	vaultPrefix        = []byte("custody/vault/")
	feePrefix          = []byte("custody/fees/")
	vaultAssetsKey     = []byte("custody/vault-assets")
	reserveKey         = []byte("custody/reserve")
	peggedSupplyKey    = []byte("custody/pegged-supply")
	positionPrefix     = []byte("positions/record/")
	positionOwnerKey   = []byte("positions/owner/")
	positionCustodyKey = []byte("positions/custody/")
	ownerIndexPrefix   = []byte("positions/by-owner/")
	nextPositionKey    = []byte("positions/next-id")

	yieldParamsKey    = []byte("yield/params")
	yieldTotalsKey    = []byte("yield/totals")
	apyHistoryKey     = []byte("yield/apy-history")
	lockTiersKey      = []byte("yield/lock-tiers")
	poolPrefix        = []byte("yield/pool/")
	yieldAssetPrefix  = []byte("yield/asset/")
	yieldAssetListKey = []byte("yield/asset-list")
	bridgeNoncePrefix = []byte("bridge/nonce/")
	bridgeDonePrefix  = []byte("bridge/completed/")

	lendingParamsKey   = []byte("lending/params")
	loanPrefix         = []byte("lending/loan/")
	loanTiersKey       = []byte("lending/loan-tiers")
	debtAssetPrefix    = []byte("lending/debt-asset/")
	debtAssetListKey   = []byte("lending/debt-asset-list")
	borrowerLoanPrefix = []byte("lending/by-borrower/")
)

func join(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, part := range parts {
		size += len(part) + 1
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for i, part := range parts {
		if i > 0 {
			buf = append(buf, ':')
		}
		buf = append(buf, part...)
	}
	return buf
}

func u64(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}

func symbolBytes(symbol string) []byte {
	return []byte(strings.ToUpper(strings.TrimSpace(symbol)))
}

func roleKey(role string) []byte { return join(rolePrefix, []byte(role)) }

func pauseKey(module string) []byte { return join(pausePrefix, []byte(strings.TrimSpace(module))) }

func walletKey(addr common.Address, symbol string) []byte {
	return join(walletPrefix, symbolBytes(symbol), addr.Bytes())
}

func vaultKey(symbol string) []byte { return join(vaultPrefix, symbolBytes(symbol)) }

func feeKey(symbol string) []byte { return join(feePrefix, symbolBytes(symbol)) }

func positionKey(id uint64) []byte { return join(positionPrefix, u64(id)) }

func ownerKey(id uint64) []byte { return join(positionOwnerKey, u64(id)) }

func custodyKey(id uint64) []byte { return join(positionCustodyKey, u64(id)) }

func ownerIndexKey(owner common.Address) []byte { return join(ownerIndexPrefix, owner.Bytes()) }

func poolKey(duration uint64) []byte { return join(poolPrefix, u64(duration)) }

func yieldAssetKey(symbol string) []byte { return join(yieldAssetPrefix, symbolBytes(symbol)) }

func bridgeNonceKey(dest uint64) []byte { return join(bridgeNoncePrefix, u64(dest)) }

func bridgeDoneKey(key common.Hash) []byte { return join(bridgeDonePrefix, key.Bytes()) }

func loanKey(id uint64) []byte { return join(loanPrefix, u64(id)) }

func debtAssetKey(symbol string) []byte { return join(debtAssetPrefix, symbolBytes(symbol)) }

func borrowerLoansKey(borrower common.Address) []byte {
	return join(borrowerLoanPrefix, borrower.Bytes())
}
