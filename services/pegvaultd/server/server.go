package server

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pegvault/core/events"
	nativecommon "pegvault/native/common"
	"pegvault/native/lending"
	"pegvault/native/yield"
	"pegvault/observability"
	"pegvault/storage/eventlog"
)

// Ledger is the state surface the daemon reads directly.
type Ledger interface {
	HasRole(role string, addr common.Address) bool
	PositionSlots(id uint64) ([]byte, error)
	LoanSlots(id uint64) ([]byte, error)
}

// PriceRecorder accepts oracle observations.
type PriceRecorder interface {
	RecordPrice(asset string, price *big.Int, ts uint64) error
	RecordRate(asset string, rate *big.Rat, ts uint64) error
}

// EventSource pages through committed events.
type EventSource interface {
	List(after uint64, limit int, eventType string) ([]events.Record, error)
}

// Config wires the server dependencies.
type Config struct {
	Ledger    Ledger
	Yield     *yield.Engine
	Lending   *lending.Engine
	Prices    PriceRecorder
	Events    EventSource
	Auth      AuthConfig
	RateLimit RateLimit
	Logger    *slog.Logger
	Now       func() time.Time
}

// Server exposes both engines over HTTP/JSON. Every engine call runs under
// one mutex so views never observe another request's open transaction.
type Server struct {
	ledger  Ledger
	yield   *yield.Engine
	lending *lending.Engine
	prices  PriceRecorder
	events  EventSource
	auth    *Authenticator
	limiter *RateLimiter
	logger  *slog.Logger
	metrics *observability.LedgerMetrics
	tracer  trace.Tracer
	nowFn   func() time.Time

	mu sync.Mutex
}

// New validates the dependencies and builds a server.
func New(cfg Config) (*Server, error) {
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if cfg.Yield == nil || cfg.Lending == nil {
		return nil, fmt.Errorf("yield and lending engines required")
	}
	if cfg.Prices == nil {
		return nil, fmt.Errorf("price recorder required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Server{
		ledger:  cfg.Ledger,
		yield:   cfg.Yield,
		lending: cfg.Lending,
		prices:  cfg.Prices,
		events:  cfg.Events,
		auth:    NewAuthenticator(cfg.Auth, logger),
		limiter: NewRateLimiter(cfg.RateLimit),
		logger:  logger,
		metrics: observability.Ledger(),
		tracer:  otel.Tracer("pegvault/services/pegvaultd"),
		nowFn:   now,
	}, nil
}

// Routes returns the instrumented HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(api chi.Router) {
		api.Use(s.limiter.Middleware)

		api.Get("/positions/{id}", s.handlePosition)
		api.Get("/loans/{id}", s.handleLoan)
		api.Get("/borrowers/{addr}/loans", s.handleBorrowerLoans)
		api.Get("/yield/stats", s.handleStats)
		api.Get("/events", s.handleEvents)

		api.Group(func(protected chi.Router) {
			protected.Use(s.auth.Middleware)
			protected.Post("/prices", s.handlePrice)
			protected.Post("/deposit", s.handleDeposit)
			protected.Post("/withdraw", s.handleWithdraw)
			protected.Post("/stake", s.handleStake)
			protected.Post("/claim", s.handleClaim)
			protected.Post("/renew", s.handleRenew)
			protected.Post("/unstake", s.handleUnstake)
			protected.Post("/bridge/out", s.handleBridgeOut)
			protected.Post("/bridge/complete", s.handleBridgeComplete)
			protected.Post("/loans/borrow", s.handleBorrow)
			protected.Post("/loans/repay", s.handleRepay)
			protected.Post("/loans/liquidate", s.handleLiquidate)
			protected.Post("/loans/seize", s.handleSeize)
			protected.Post("/loans/reclaim", s.handleReclaim)
			protected.Post("/admin/apy", s.handleSetAPY)
		})
	})
	return otelhttp.NewHandler(r, "pegvaultd")
}

// run executes fn under the engine mutex inside a span and records the
// outcome.
func (s *Server) run(ctx context.Context, operation string, fn func() error) error {
	_, span := s.tracer.Start(ctx, operation)
	defer span.End()
	if caller := CallerFrom(ctx); caller != (common.Address{}) {
		span.SetAttributes(attribute.String("pegvault.caller", caller.Hex()))
	}

	start := time.Now()
	s.mu.Lock()
	err := fn()
	s.mu.Unlock()
	s.metrics.Observe(operation, time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("operation failed",
			slog.String("operation", operation),
			slog.String("requestid", RequestIDFrom(ctx)),
			slog.String("error", err.Error()))
	}
	return err
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	writeProblem(w, r, status, message, nativecommon.Classify(err).String())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	caller := CallerFrom(r.Context())
	var req priceRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	asset := strings.TrimSpace(req.Asset)
	if asset == "" || (req.Price == "") == (req.Rate == "") {
		s.fail(w, r, fmt.Errorf("%w: asset and exactly one of price or rate required", errBadRequest))
		return
	}
	err := s.run(r.Context(), "record_price", func() error {
		if !s.ledger.HasRole(nativecommon.RoleOracle, caller) && !s.ledger.HasRole(nativecommon.RoleAdmin, caller) {
			return nativecommon.ErrUnauthorized
		}
		ts := uint64(s.nowFn().Unix())
		if req.Price != "" {
			price, err := parseAmount(req.Price)
			if err != nil {
				return err
			}
			return s.prices.RecordPrice(asset, price, ts)
		}
		rate, err := parseRate(req.Rate)
		if err != nil {
			return err
		}
		return s.prices.RecordRate(asset, rate, ts)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	s.convert(w, r, "deposit", s.yield.Deposit)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.convert(w, r, "withdraw", s.yield.Withdraw)
}

func (s *Server) convert(w http.ResponseWriter, r *http.Request, operation string, fn func(common.Address, string, *big.Int) (*big.Int, error)) {
	var req convertRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var out *big.Int
	err = s.run(r.Context(), operation, func() error {
		var err error
		out, err = fn(CallerFrom(r.Context()), req.Asset, amount)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, amountResponse{Amount: amountString(out)})
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	var req stakeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var id uint64
	err = s.run(r.Context(), "stake", func() error {
		var err error
		id, err = s.yield.Stake(CallerFrom(r.Context()), amount, req.LockDuration)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stakeResponse{PositionID: id})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	var reward *big.Int
	err := s.run(r.Context(), "claim", func() error {
		var err error
		reward, err = s.yield.ClaimStakeRewards(CallerFrom(r.Context()), req.PositionID)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, amountResponse{Amount: amountString(reward)})
}

func (s *Server) handleRenew(w http.ResponseWriter, r *http.Request) {
	var req renewRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	var reward *big.Int
	err := s.run(r.Context(), "renew", func() error {
		var err error
		reward, err = s.yield.RenewStake(CallerFrom(r.Context()), req.PositionID, req.Compound, req.NewLockDuration)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, amountResponse{Amount: amountString(reward)})
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	var resp unstakeResponse
	err := s.run(r.Context(), "unstake", func() error {
		principal, reward, paid, err := s.yield.UnstakePUSD(CallerFrom(r.Context()), req.PositionID)
		if err != nil {
			return err
		}
		resp = unstakeResponse{Principal: amountString(principal), Reward: amountString(reward), RewardPaid: paid}
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBridgeOut(w http.ResponseWriter, r *http.Request) {
	var req bridgeOutRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var nonce uint64
	err = s.run(r.Context(), "bridge_out", func() error {
		var err error
		nonce, err = s.yield.BridgeOut(CallerFrom(r.Context()), amount, req.DestChain)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bridgeOutResponse{Nonce: nonce})
}

func (s *Server) handleBridgeComplete(w http.ResponseWriter, r *http.Request) {
	var req bridgeCompleteRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	recipient, err := parseAccount(req.Recipient)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	err = s.run(r.Context(), "bridge_complete", func() error {
		return s.yield.CompleteBridge(CallerFrom(r.Context()), req.SourceChain, req.Nonce, recipient, amount)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request) {
	var req borrowRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var summary *lending.Summary
	err = s.run(r.Context(), "borrow", func() error {
		if err := s.lending.BorrowWithNFT(CallerFrom(r.Context()), req.PositionID, req.Asset, amount, req.LoanDuration); err != nil {
			return err
		}
		var err error
		summary, err = s.lending.Summary(req.PositionID)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLoanResponse(summary, nil))
}

func (s *Server) handleRepay(w http.ResponseWriter, r *http.Request) {
	var req repayRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	var amount *big.Int
	if strings.TrimSpace(req.Amount) != "" {
		parsed, err := parseAmount(req.Amount)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		amount = parsed
	}
	var applied *big.Int
	err := s.run(r.Context(), "repay", func() error {
		var err error
		caller := CallerFrom(r.Context())
		if amount == nil {
			applied, err = s.lending.RepayFull(caller, req.PositionID)
		} else {
			applied, err = s.lending.Repay(caller, req.PositionID, amount)
		}
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, amountResponse{Amount: amountString(applied)})
}

func (s *Server) handleLiquidate(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	var resp liquidateResponse
	err := s.run(r.Context(), "liquidate", func() error {
		repaid, seized, err := s.lending.Liquidate(CallerFrom(r.Context()), req.PositionID)
		if err != nil {
			return err
		}
		resp = liquidateResponse{Repaid: amountString(repaid), Seized: amountString(seized)}
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSeize(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	err := s.run(r.Context(), "seize", func() error {
		return s.lending.SeizeOverdueNFT(CallerFrom(r.Context()), req.PositionID)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReclaim(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	var amount *big.Int
	err := s.run(r.Context(), "reclaim", func() error {
		var err error
		amount, err = s.lending.ReclaimCollateral(CallerFrom(r.Context()), req.PositionID)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, amountResponse{Amount: amountString(amount)})
}

func (s *Server) handleSetAPY(w http.ResponseWriter, r *http.Request) {
	var req apyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	err := s.run(r.Context(), "set_apy", func() error {
		return s.yield.SetAPY(CallerFrom(r.Context()), req.APY)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var resp positionResponse
	err = s.run(r.Context(), "position", func() error {
		view, err := s.yield.Position(id)
		if err != nil {
			return err
		}
		slots, err := s.ledger.PositionSlots(id)
		if err != nil {
			return err
		}
		resp = toPositionResponse(view, slots)
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLoan(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var resp loanResponse
	err = s.run(r.Context(), "loan", func() error {
		summary, err := s.lending.Summary(id)
		if err != nil {
			return err
		}
		slots, err := s.ledger.LoanSlots(id)
		if err != nil {
			return err
		}
		resp = toLoanResponse(summary, slots)
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBorrowerLoans(w http.ResponseWriter, r *http.Request) {
	borrower, err := parseAccount(chi.URLParam(r, "addr"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := make([]loanResponse, 0)
	err = s.run(r.Context(), "borrower_loans", func() error {
		summaries, err := s.lending.BorrowerLoans(borrower)
		if err != nil {
			return err
		}
		for _, summary := range summaries {
			resp = append(resp, toLoanResponse(summary, nil))
		}
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var resp statsResponse
	err := s.run(r.Context(), "stats", func() error {
		stats, err := s.yield.Stats()
		if err != nil {
			return err
		}
		resp = toStatsResponse(stats)
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		s.fail(w, r, fmt.Errorf("%w: event log disabled", errNotFound))
		return
	}
	query := r.URL.Query()
	var after uint64
	if raw := query.Get("after"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			s.fail(w, r, fmt.Errorf("%w: invalid after cursor", errBadRequest))
			return
		}
		after = parsed
	}
	limit := eventlog.DefaultListLimit
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.fail(w, r, fmt.Errorf("%w: invalid limit", errBadRequest))
			return
		}
		limit = parsed
	}
	records, err := s.events.List(after, limit, query.Get("type"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if records == nil {
		records = []events.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func parseID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid id %q", errBadRequest, raw)
	}
	return id, nil
}
