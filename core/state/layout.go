package state

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"pegvault/native/lending"
	"pegvault/native/yield"
)

// WordSize is the width of one slot in the fixed record layout.
const WordSize = 32

const (
	positionWords = 8
	loanWords     = 14
)

var (
	errSlotOverflow = errors.New("state: value exceeds 256 bits")
	errSlotLength   = errors.New("state: malformed slot layout")
)

type slotWriter struct {
	buf []byte
	err error
}

func (w *slotWriter) word(v *uint256.Int) {
	b := v.Bytes32()
	w.buf = append(w.buf, b[:]...)
}

func (w *slotWriter) u64(v uint64) { w.word(uint256.NewInt(v)) }

func (w *slotWriter) flag(v bool) {
	if v {
		w.u64(1)
		return
	}
	w.u64(0)
}

func (w *slotWriter) amount(v *big.Int) {
	if v == nil {
		w.u64(0)
		return
	}
	if v.Sign() < 0 {
		w.err = errSlotOverflow
		w.u64(0)
		return
	}
	word, overflow := uint256.FromBig(v)
	if overflow {
		w.err = errSlotOverflow
	}
	w.word(word)
}

func (w *slotWriter) addr(addr common.Address) {
	w.word(new(uint256.Int).SetBytes(addr.Bytes()))
}

// text stores up to 32 bytes left-aligned, as fixed-size strings are laid
// out in contract storage.
func (w *slotWriter) str(s string) {
	if len(s) > WordSize {
		w.err = fmt.Errorf("state: %q does not fit one slot", s)
		s = s[:WordSize]
	}
	var word [WordSize]byte
	copy(word[:], s)
	w.buf = append(w.buf, word[:]...)
}

type slotReader struct {
	data []byte
	pos  int
}

func (r *slotReader) next() []byte {
	word := r.data[r.pos : r.pos+WordSize]
	r.pos += WordSize
	return word
}

func (r *slotReader) word256() *uint256.Int { return new(uint256.Int).SetBytes32(r.next()) }

func (r *slotReader) u64() uint64 { return r.word256().Uint64() }

func (r *slotReader) flag() bool { return !r.word256().IsZero() }

func (r *slotReader) amount() *big.Int { return r.word256().ToBig() }

func (r *slotReader) addr() common.Address {
	return common.BytesToAddress(r.next()[WordSize-common.AddressLength:])
}

func (r *slotReader) str() string { return string(bytes.TrimRight(r.next(), "\x00")) }

// EncodePositionSlots lays a position out as consecutive 32-byte words:
// id, principal, start, lock duration, last claim, multiplier, active,
// pending reward.
func EncodePositionSlots(pos *yield.Position) ([]byte, error) {
	if pos == nil {
		return nil, fmt.Errorf("state: position must not be nil")
	}
	w := &slotWriter{buf: make([]byte, 0, positionWords*WordSize)}
	w.u64(pos.ID)
	w.amount(pos.Principal)
	w.u64(pos.StartTime)
	w.u64(pos.LockDuration)
	w.u64(pos.LastClaimTime)
	w.u64(pos.RewardMultiplier)
	w.flag(pos.Active)
	w.amount(pos.PendingReward)
	return w.buf, w.err
}

// DecodePositionSlots reverses EncodePositionSlots.
func DecodePositionSlots(data []byte) (*yield.Position, error) {
	if len(data) != positionWords*WordSize {
		return nil, errSlotLength
	}
	r := &slotReader{data: data}
	return &yield.Position{
		ID:               r.u64(),
		Principal:        r.amount(),
		StartTime:        r.u64(),
		LockDuration:     r.u64(),
		LastClaimTime:    r.u64(),
		RewardMultiplier: r.u64(),
		Active:           r.flag(),
		PendingReward:    r.amount(),
	}, nil
}

// EncodeLoanSlots lays a loan out as consecutive 32-byte words in field
// order. The two flags share the second word: bit 0 active, bit 1
// collateral reclaimed.
func EncodeLoanSlots(loan *lending.Loan) ([]byte, error) {
	if loan == nil {
		return nil, fmt.Errorf("state: loan must not be nil")
	}
	var flags uint64
	if loan.Active {
		flags |= 1
	}
	if loan.CollateralReclaimed {
		flags |= 2
	}
	w := &slotWriter{buf: make([]byte, 0, loanWords*WordSize)}
	w.u64(loan.PositionID)
	w.u64(flags)
	w.addr(loan.Borrower)
	w.amount(loan.RemainingCollateral)
	w.str(loan.DebtAsset)
	w.amount(loan.Principal)
	w.u64(loan.LoanDuration)
	w.u64(loan.InterestRateBps)
	w.u64(loan.StartTime)
	w.u64(loan.EndTime)
	w.u64(loan.LastInterestAccrual)
	w.amount(loan.AccruedInterest)
	w.u64(loan.LastPenaltyAccrual)
	w.amount(loan.AccruedPenalty)
	return w.buf, w.err
}

// DecodeLoanSlots reverses EncodeLoanSlots.
func DecodeLoanSlots(data []byte) (*lending.Loan, error) {
	if len(data) != loanWords*WordSize {
		return nil, errSlotLength
	}
	r := &slotReader{data: data}
	loan := &lending.Loan{PositionID: r.u64()}
	flags := r.u64()
	loan.Active = flags&1 != 0
	loan.CollateralReclaimed = flags&2 != 0
	loan.Borrower = r.addr()
	loan.RemainingCollateral = r.amount()
	loan.DebtAsset = r.str()
	loan.Principal = r.amount()
	loan.LoanDuration = r.u64()
	loan.InterestRateBps = r.u64()
	loan.StartTime = r.u64()
	loan.EndTime = r.u64()
	loan.LastInterestAccrual = r.u64()
	loan.AccruedInterest = r.amount()
	loan.LastPenaltyAccrual = r.u64()
	loan.AccruedPenalty = r.amount()
	return loan, nil
}

// PositionSlots returns the slot layout of the stored position id.
func (m *Manager) PositionSlots(id uint64) ([]byte, error) {
	pos, err := m.Position(id)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, fmt.Errorf("state: position %d not found", id)
	}
	return EncodePositionSlots(pos)
}

// LoanSlots returns the slot layout of the stored loan id.
func (m *Manager) LoanSlots(id uint64) ([]byte, error) {
	loan, err := m.Loan(id)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, fmt.Errorf("state: loan %d not found", id)
	}
	return EncodeLoanSlots(loan)
}
