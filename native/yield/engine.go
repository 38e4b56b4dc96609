package yield

import (
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"pegvault/core/events"
	"pegvault/core/pricing"
	nativecommon "pegvault/native/common"
)

const moduleName = "yield"

// Custodian holds funds on behalf of the ledger. Transfers are journaled by
// the surrounding transaction, so a failed call unwinds them.
type Custodian interface {
	DepositFor(user common.Address, asset string, amount *big.Int) error
	WithdrawTo(user common.Address, asset string, amount *big.Int) error
	AddFee(asset string, amount *big.Int) error
	// DistributeFromReserve pays a reward from the reserve. It reports false
	// instead of failing when the reserve cannot cover the amount.
	DistributeFromReserve(to common.Address, amount *big.Int) bool
	FundReserve(from common.Address, amount *big.Int) error
	ReserveBalance() (*big.Int, error)
	MintPegged(to common.Address, amount *big.Int) error
	BurnPegged(from common.Address, amount *big.Int) error
	ReleasePosition(id uint64, to common.Address) error
	AssetValueTotals() (map[string]*big.Int, error)
}

// PositionLedger stores position records together with their owner and
// custody holder.
type PositionLedger interface {
	CreatePosition(owner common.Address, pos *Position) (uint64, error)
	Position(id uint64) (*Position, error)
	PutPosition(pos *Position) error
	BurnPosition(id uint64) error
	OwnerOf(id uint64) (common.Address, error)
	CustodianOf(id uint64) (common.Address, error)
	SetCustody(id uint64, holder common.Address) error
	PositionsOf(owner common.Address) ([]uint64, error)
}

// Transactor scopes a group of writes. Finish reverts everything written since
// the matching Begin when err is non-nil and commits once the outermost scope
// closes.
type Transactor interface {
	Begin() int
	Finish(snapshot int, err error) error
	Emit(evt events.Event)
}

type engineState interface {
	Transactor
	Custodian
	PositionLedger
	nativecommon.RoleView
	nativecommon.PauseView

	YieldParams() (*Params, error)
	PutYieldParams(params *Params) error
	YieldTotals() (*Totals, error)
	PutYieldTotals(totals *Totals) error
	APYHistory() ([]APYRecord, error)
	PutAPYHistory(records []APYRecord) error
	LockTiers() ([]LockTier, error)
	PutLockTiers(tiers []LockTier) error
	PoolTotal(duration uint64) (*big.Int, error)
	PutPoolTotal(duration uint64, amount *big.Int) error
	YieldAsset(symbol string) (*Asset, error)
	PutYieldAsset(asset *Asset) error
	DeleteYieldAsset(symbol string) error
	YieldAssets() ([]*Asset, error)
	NextBridgeNonce(destChain uint64) (uint64, error)
	BridgeCompleted(key common.Hash) (bool, error)
	MarkBridgeCompleted(key common.Hash) error
	SetPaused(module string, paused bool) error
}

// Engine implements staking, reward accrual, asset conversion and bridging
// for the pegged unit.
type Engine struct {
	state  engineState
	feed   pricing.Feed
	guard  nativecommon.EntryGuard
	nowFn  func() uint64
	logger *slog.Logger
	// maxPriceAge bounds quote age for conversions.
	maxPriceAge uint64
}

// DefaultMaxPriceAge is the quote age accepted until SetMaxPriceAge is called.
const DefaultMaxPriceAge = 3600

// NewEngine constructs a yield engine bound to the supplied state and feed.
func NewEngine(state engineState, feed pricing.Feed) *Engine {
	return &Engine{
		state:       state,
		feed:        feed,
		nowFn:       func() uint64 { return uint64(time.Now().Unix()) },
		logger:      slog.Default(),
		maxPriceAge: DefaultMaxPriceAge,
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) {
	if e == nil {
		return
	}
	e.state = state
}

// SetFeed replaces the price feed used for conversions.
func (e *Engine) SetFeed(feed pricing.Feed) {
	if e == nil {
		return
	}
	e.feed = feed
}

// SetNowFunc overrides the clock used for accrual. Primarily used in tests.
func (e *Engine) SetNowFunc(now func() uint64) {
	if e == nil || now == nil {
		return
	}
	e.nowFn = now
}

// SetLogger replaces the structured logger.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if e == nil || logger == nil {
		return
	}
	e.logger = logger
}

// SetMaxPriceAge bounds the age of quotes accepted by Deposit and Withdraw.
// Zero is ignored; the bound cannot be switched off.
func (e *Engine) SetMaxPriceAge(seconds uint64) {
	if e == nil || seconds == 0 {
		return
	}
	e.maxPriceAge = seconds
}

func (e *Engine) now() uint64 {
	if e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	return e.nowFn()
}

// enter claims the single-entry guard and opens a state transaction. The
// returned function closes both and must be deferred with the named error.
func (e *Engine) enter(checkPause bool) (func(*error), error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if checkPause {
		if err := nativecommon.Guard(e.state, moduleName); err != nil {
			return nil, err
		}
	}
	release, err := e.guard.Enter()
	if err != nil {
		return nil, err
	}
	snapshot := e.state.Begin()
	return func(errp *error) {
		*errp = e.state.Finish(snapshot, *errp)
		release()
	}, nil
}

func (e *Engine) params() (*Params, error) {
	params, err := e.state.YieldParams()
	if err != nil {
		return nil, err
	}
	if params == nil {
		return nil, ErrNotConfigured
	}
	return params, nil
}

func (e *Engine) totals() (*Totals, error) {
	totals, err := e.state.YieldTotals()
	if err != nil {
		return nil, err
	}
	if totals == nil {
		totals = &Totals{}
	}
	totals.TotalStaked = nativecommon.Amount(totals.TotalStaked)
	totals.TotalPendingRewards = nativecommon.Amount(totals.TotalPendingRewards)
	return totals, nil
}

func (e *Engine) multiplier(duration uint64) (uint64, error) {
	tiers, err := e.state.LockTiers()
	if err != nil {
		return 0, err
	}
	for _, tier := range tiers {
		if tier.Duration == duration && tier.Multiplier > 0 {
			return tier.Multiplier, nil
		}
	}
	return 0, ErrUnsupportedDuration
}

func (e *Engine) adjustPool(duration uint64, delta *big.Int) error {
	current, err := e.state.PoolTotal(duration)
	if err != nil {
		return err
	}
	next := new(big.Int).Add(nativecommon.Amount(current), delta)
	if next.Sign() < 0 {
		next.SetInt64(0)
	}
	return e.state.PutPoolTotal(duration, next)
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.state == nil || evt == nil {
		return
	}
	e.state.Emit(evt)
}

// loadOwnedPosition fetches an active position and enforces ownership. Positions
// held in custody by another party cannot be moved by their owner.
func (e *Engine) loadOwnedPosition(caller common.Address, id uint64) (*Position, error) {
	pos, err := e.state.Position(id)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, ErrPositionNotFound
	}
	owner, err := e.state.OwnerOf(id)
	if err != nil {
		return nil, err
	}
	if owner != caller {
		return nil, ErrNotOwner
	}
	if !pos.Active {
		return nil, ErrPositionInactive
	}
	holder, err := e.state.CustodianOf(id)
	if err != nil {
		return nil, err
	}
	if holder != (common.Address{}) {
		return nil, ErrPositionInCustody
	}
	pos.normalize()
	return pos, nil
}

// rewardOf evaluates the accrual for pos as of asOf against the stored history.
func (e *Engine) rewardOf(pos *Position, asOf uint64) (*big.Int, error) {
	history, err := e.state.APYHistory()
	if err != nil {
		return nil, err
	}
	totals, err := e.totals()
	if err != nil {
		return nil, err
	}
	return Reward(pos, history, totals.CurrentAPY, asOf), nil
}
