package lending

import (
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"pegvault/core/events"
	"pegvault/core/pricing"
	nativecommon "pegvault/native/common"
	"pegvault/native/yield"
)

const moduleName = "lending"

// CollateralHooks is the narrow surface of the yield engine used to keep a
// custodied position in step with its loan.
type CollateralHooks interface {
	UpdateCollateral(caller common.Address, id uint64, principal *big.Int) error
	CloseCollateral(caller common.Address, id uint64, to common.Address) (*big.Int, bool, error)
}

type engineState interface {
	yield.Transactor
	nativecommon.RoleView
	nativecommon.PauseView

	Position(id uint64) (*yield.Position, error)
	OwnerOf(id uint64) (common.Address, error)
	CustodianOf(id uint64) (common.Address, error)
	SetCustody(id uint64, holder common.Address) error
	ReleasePosition(id uint64, to common.Address) error
	DepositFor(user common.Address, asset string, amount *big.Int) error
	WithdrawTo(user common.Address, asset string, amount *big.Int) error
	AddFee(asset string, amount *big.Int) error

	LendingParams() (*Params, error)
	PutLendingParams(params *Params) error
	Loan(id uint64) (*Loan, error)
	PutLoan(loan *Loan) error
	LoanTiers() ([]LoanTier, error)
	PutLoanTiers(tiers []LoanTier) error
	DebtAsset(symbol string) (*DebtAsset, error)
	PutDebtAsset(asset *DebtAsset) error
	DebtAssets() ([]*DebtAsset, error)
	BorrowerLoans(borrower common.Address) ([]uint64, error)
	SetPaused(module string, paused bool) error
}

// Engine orchestrates loans backed by yield positions. The module address
// holds custody of every collateralised position.
type Engine struct {
	state         engineState
	feed          pricing.Feed
	hooks         CollateralHooks
	moduleAddress common.Address
	guard         nativecommon.EntryGuard
	nowFn         func() uint64
	logger        *slog.Logger
}

// NewEngine constructs a lending engine whose custody account is moduleAddr.
func NewEngine(moduleAddr common.Address, state engineState, feed pricing.Feed, hooks CollateralHooks) *Engine {
	return &Engine{
		state:         state,
		feed:          feed,
		hooks:         hooks,
		moduleAddress: moduleAddr,
		nowFn:         func() uint64 { return uint64(time.Now().Unix()) },
		logger:        slog.Default(),
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetFeed replaces the price feed.
func (e *Engine) SetFeed(feed pricing.Feed) {
	if e == nil {
		return
	}
	e.feed = feed
}

// SetNowFunc overrides the clock. Primarily used in tests.
func (e *Engine) SetNowFunc(now func() uint64) {
	if e == nil || now == nil {
		return
	}
	e.nowFn = now
}

func (e *Engine) SetLogger(logger *slog.Logger) {
	if e == nil || logger == nil {
		return
	}
	e.logger = logger
}

// ModuleAddress returns the custody account of the engine.
func (e *Engine) ModuleAddress() common.Address {
	if e == nil {
		return common.Address{}
	}
	return e.moduleAddress
}

func (e *Engine) now() uint64 {
	if e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	return e.nowFn()
}

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
	params, err := e.state.LendingParams()
	if err != nil {
		return nil, err
	}
	if params == nil {
		return nil, ErrNotConfigured
	}
	return params, nil
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.state == nil || evt == nil {
		return
	}
	e.state.Emit(evt)
}

func (e *Engine) debtAsset(symbol string) (*DebtAsset, error) {
	asset, err := e.state.DebtAsset(normalizeSymbol(symbol))
	if err != nil {
		return nil, err
	}
	if asset == nil || !asset.Allowed {
		return nil, ErrAssetNotAllowed
	}
	return asset, nil
}

func (e *Engine) tierRate(duration uint64) (uint64, error) {
	tiers, err := e.state.LoanTiers()
	if err != nil {
		return 0, err
	}
	for _, tier := range tiers {
		if tier.Duration == duration {
			return tier.RateBps, nil
		}
	}
	return 0, ErrUnsupportedDuration
}

func (e *Engine) activePosition(id uint64) (*yield.Position, error) {
	pos, err := e.state.Position(id)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, ErrPositionNotFound
	}
	if !pos.Active {
		return nil, ErrPositionInactive
	}
	return pos, nil
}

func (e *Engine) loadLoan(id uint64) (*Loan, error) {
	loan, err := e.state.Loan(id)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, ErrLoanNotFound
	}
	loan.PositionID = id
	loan.normalize()
	return loan, nil
}

func (e *Engine) loadActiveLoan(id uint64) (*Loan, error) {
	loan, err := e.loadLoan(id)
	if err != nil {
		return nil, err
	}
	if !loan.Active {
		return nil, ErrLoanInactive
	}
	return loan, nil
}

// maxBorrowable prices principal against the debt asset using a fresh quote.
func (e *Engine) maxBorrowable(params *Params, principal *big.Int, asset *DebtAsset, now uint64) (*big.Int, error) {
	quote, err := pricing.Fetch(e.feed, asset.Symbol, now, params.MaxPriceAge)
	if err != nil {
		return nil, err
	}
	return borrowLimit(principal, quote.Price, params.LiquidationRatioBps, asset.Decimals)
}
