package yield

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"pegvault/core/events"
	nativecommon "pegvault/native/common"
)

// BridgeKey identifies a transfer by (source, dest, nonce).
func BridgeKey(sourceChain, destChain, nonce uint64) common.Hash {
	var buf [24]byte
	binary.BigEndian.PutUint64(buf[0:8], sourceChain)
	binary.BigEndian.PutUint64(buf[8:16], destChain)
	binary.BigEndian.PutUint64(buf[16:24], nonce)
	return ethcrypto.Keccak256Hash([]byte("bridge"), buf[:])
}

// BridgeOut burns PUSD bound for destChain. The bridge fee stays in custody
// as a PUSD fee; the returned nonce identifies the transfer on the
// destination chain.
func (e *Engine) BridgeOut(caller common.Address, amount *big.Int, destChain uint64) (nonce uint64, err error) {
	done, err := e.enter(true)
	if err != nil {
		return 0, err
	}
	defer done(&err)

	if amount == nil || amount.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	params, err := e.params()
	if err != nil {
		return 0, err
	}
	if destChain == 0 || destChain == params.ChainID {
		return 0, ErrInvalidChain
	}
	fee := nativecommon.ApplyBps(amount, params.BridgeFeeBps)
	net := new(big.Int).Sub(amount, fee)
	if net.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}

	if err := e.state.BurnPegged(caller, net); err != nil {
		return 0, err
	}
	if fee.Sign() > 0 {
		if err := e.state.DepositFor(caller, nativecommon.PeggedSymbol, fee); err != nil {
			return 0, err
		}
		if err := e.state.AddFee(nativecommon.PeggedSymbol, fee); err != nil {
			return 0, err
		}
	}
	nonce, err = e.state.NextBridgeNonce(destChain)
	if err != nil {
		return 0, err
	}
	e.emit(events.BridgeTransfer{
		Account:     caller,
		Amount:      net,
		Fee:         fee,
		SourceChain: params.ChainID,
		DestChain:   destChain,
		Nonce:       nonce,
	})
	return nonce, nil
}

// CompleteBridge mints an inbound transfer. Each (source, dest, nonce) can be
// completed once.
func (e *Engine) CompleteBridge(caller common.Address, sourceChain, nonce uint64, recipient common.Address, amount *big.Int) (err error) {
	done, err := e.enter(true)
	if err != nil {
		return err
	}
	defer done(&err)

	if err := nativecommon.RequireRole(e.state, nativecommon.RoleRelayer, caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if recipient == (common.Address{}) {
		return ErrInvalidRecipient
	}
	params, err := e.params()
	if err != nil {
		return err
	}
	if sourceChain == 0 || sourceChain == params.ChainID {
		return ErrInvalidChain
	}
	key := BridgeKey(sourceChain, params.ChainID, nonce)
	completed, err := e.state.BridgeCompleted(key)
	if err != nil {
		return err
	}
	if completed {
		return ErrBridgeReplay
	}
	if err := e.state.MarkBridgeCompleted(key); err != nil {
		return err
	}
	if err := e.state.MintPegged(recipient, amount); err != nil {
		return err
	}
	e.emit(events.BridgeTransfer{
		Inbound:     true,
		Account:     recipient,
		Amount:      new(big.Int).Set(amount),
		SourceChain: sourceChain,
		DestChain:   params.ChainID,
		Nonce:       nonce,
	})
	return nil
}
