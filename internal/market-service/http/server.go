package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/prediction-market-poc/internal/market"
	"github.com/radieske/prediction-market-poc/internal/market-service/dto"
	"github.com/radieske/prediction-market-poc/internal/market-service/repo"
	"github.com/radieske/prediction-market-poc/internal/pool"
	"github.com/radieske/prediction-market-poc/internal/resolution"
)

// RecentWindow é quantas apostas ativas recentes entram em um snapshot de order book
const RecentWindow = 20

// Resolver é o scheduler de resolução
type Resolver interface {
	ProcessAll(ctx context.Context) (resolution.Summary, error)
	ProcessMarket(ctx context.Context, id string, manual bool) (resolution.Report, error)
	Pending(ctx context.Context) ([]market.PendingResolution, error)
	Stats(ctx context.Context) (market.ResolutionStats, error)
}

// Store são as leituras e a colocação de apostas
type Store interface {
	GetMarket(ctx context.Context, id string) (market.Market, error)
	Snapshot(ctx context.Context, marketID string, recent int) (pool.Snapshot, error)
	PlaceBet(ctx context.Context, in repo.PlaceBet) (market.Bet, market.Market, error)
	UserStats(ctx context.Context, userID string) (market.UserStats, error)
}

// ViewCache guarda visões de pool e order book já montadas
type ViewCache interface {
	GetOrderBook(ctx context.Context, marketID string, dst any) (bool, error)
	SetOrderBook(ctx context.Context, marketID string, v any) error
	GetPool(ctx context.Context, marketID string, dst any) (bool, error)
	SetPool(ctx context.Context, marketID string, v any) error
	Invalidate(ctx context.Context, marketID string) error
}

type BetPublisher interface {
	BetPlaced(ctx context.Context, b market.Bet, m market.Market) error
}

// API expõe os endpoints de resolução, pool, order book e apostas.
// Cache e Publisher são opcionais.
type API struct {
	Resolver  Resolver
	Store     Store
	Cache     ViewCache
	Publisher BetPublisher
	Secret    string // segredo do resolve-all, injetado na inicialização
	Depth     int
	Log       *zap.Logger

	OnBetPlaced func(market.Bet) // métricas
}

func (a *API) Router() http.Handler {
	if a.Log == nil {
		a.Log = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(Logging(a.Log))

	r.Route("/api/markets", func(r chi.Router) {
		r.With(Auth(a.Secret)).Post("/resolve-all", a.resolveAll) // varredura completa
		r.Get("/resolve-all", a.pendingOverview)
		r.Get("/resolve", a.pendingOverview)

		r.Post("/{id}/resolve", a.resolveMarket)
		r.Get("/{id}/resolve", a.resolutionStatus)
		r.Get("/{id}/pool", a.getPool)
		r.Get("/{id}/orderbook", a.getOrderBook)
		r.Post("/{id}/bets", a.placeBet)
	})
	r.Get("/api/users/{id}/stats", a.userStats)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError mapeia a classe do erro para o status HTTP; erros internos não vazam detalhes
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch market.Classify(err) {
	case market.ClassValidation:
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: publicMessage(err)})
	case market.ClassNotFound:
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "market not found"})
	case market.ClassConflict:
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: publicMessage(err)})
	case market.ClassTransient:
		writeJSON(w, http.StatusServiceUnavailable, dto.ErrorResponse{Error: "oracle temporarily unavailable"})
	default:
		a.Log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}
}

// publicMessage devolve a mensagem do sentinel conhecido, sem contexto interno
func publicMessage(err error) string {
	for _, known := range []error{
		market.ErrMarketNotDue, market.ErrMarketTerminal, market.ErrMarketClosed,
		market.ErrInvalidOutcome, market.ErrInvalidSide, market.ErrInvalidStake,
		market.ErrLeaseHeld, market.ErrAlreadySettled, market.ErrMarketDisputed,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return err.Error()
}
