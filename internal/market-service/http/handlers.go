package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/prediction-market-poc/internal/market"
	"github.com/radieske/prediction-market-poc/internal/market-service/dto"
	"github.com/radieske/prediction-market-poc/internal/market-service/repo"
	"github.com/radieske/prediction-market-poc/internal/pool"
	"github.com/radieske/prediction-market-poc/internal/resolution"
)

// resolveAll processa todos os mercados vencidos
func (a *API) resolveAll(w http.ResponseWriter, r *http.Request) {
	sum, err := a.Resolver.ProcessAll(r.Context())
	if err != nil {
		a.Log.Error("resolve-all failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "failed to process resolutions"})
		return
	}
	writeJSON(w, http.StatusOK, dto.ResolveAllResponse{Success: true, Stats: sum})
}

// pendingOverview é somente leitura: contadores e prévia dos mercados vencidos
func (a *API) pendingOverview(w http.ResponseWriter, r *http.Request) {
	stats, err := a.Resolver.Stats(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	pending, err := a.Resolver.Pending(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if pending == nil {
		pending = []market.PendingResolution{}
	}
	writeJSON(w, http.StatusOK, dto.PendingOverviewResponse{Stats: stats, PendingResolutions: pending})
}

// resolveMarket dispara a resolução de um mercado, ignorando o backoff agendado
func (a *API) resolveMarket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rep, err := a.Resolver.ProcessMarket(r.Context(), id, true)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	switch rep.Result {
	case resolution.ResultResolved:
		writeJSON(w, http.StatusOK, dto.ResolveMarketResponse{
			Success: true, Resolution: rep, Message: fmt.Sprintf("market resolved: %s", rep.Outcome),
		})
	case resolution.ResultDisputed:
		writeJSON(w, http.StatusOK, dto.ResolveMarketResponse{
			Success: false, Resolution: rep, Message: "market disputed: " + rep.Reason,
		})
	case resolution.ResultRetry:
		writeJSON(w, http.StatusServiceUnavailable, dto.ResolveMarketResponse{
			Success: false, Resolution: rep, Message: "oracle temporarily unavailable, retry scheduled",
		})
	default:
		writeJSON(w, http.StatusOK, dto.ResolveMarketResponse{Success: false, Resolution: rep, Message: "market not processed"})
	}
}

func (a *API) resolutionStatus(w http.ResponseWriter, r *http.Request) {
	m, err := a.Store.GetMarket(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ResolutionStatusResponse{
		MarketID:       m.ID,
		Status:         m.Status,
		Resolution:     m.ResolutionOutcome,
		ResolutionData: m.ResolutionData,
		ResolvedAt:     m.ResolvedAt,
		DisputeReason:  m.DisputeReason,
		Attempts:       m.ResolutionAttempts,
		NextAttemptAt:  m.NextAttemptAt,
		LastError:      m.LastError,
	})
}

// getPool retorna o pool atual; token só é usado quando o mercado não tem símbolo próprio
func (a *API) getPool(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var v pool.PoolView
	hit := false
	if a.Cache != nil {
		hit, _ = a.Cache.GetPool(r.Context(), id, &v)
	}
	if !hit {
		snap, err := a.Store.Snapshot(r.Context(), id, RecentWindow)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		v = pool.BuildPoolView(snap)
		if a.Cache != nil {
			_ = a.Cache.SetPool(r.Context(), id, v)
		}
	}

	if v.TokenSymbol == "" {
		v.TokenSymbol = strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("token")))
	}
	writeJSON(w, http.StatusOK, v)
}

// getOrderBook monta order book, última negociação e pool a partir do mesmo snapshot
func (a *API) getOrderBook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var ob pool.OrderBook
	if a.Cache != nil {
		if ok, _ := a.Cache.GetOrderBook(r.Context(), id, &ob); ok {
			writeJSON(w, http.StatusOK, ob)
			return
		}
	}

	snap, err := a.Store.Snapshot(r.Context(), id, RecentWindow)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ob = pool.BuildOrderBook(snap, a.Depth)
	if a.Cache != nil {
		_ = a.Cache.SetOrderBook(r.Context(), id, ob)
	}
	writeJSON(w, http.StatusOK, ob)
}

func (a *API) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return
	}
	if req.UserID == "" || req.Side == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "userId and side are required"})
		return
	}

	id := chi.URLParam(r, "id")
	b, m, err := a.Store.PlaceBet(r.Context(), repo.PlaceBet{
		MarketID:         id,
		UserID:           req.UserID,
		WalletAddress:    req.WalletAddress,
		Side:             market.Side(req.Side),
		StakeAmount:      req.StakeAmount,
		StakeTokenAmount: req.StakeTokenAmount,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	a.invalidate(r, id)
	if a.OnBetPlaced != nil {
		a.OnBetPlaced(b)
	}
	if a.Publisher != nil {
		if err := a.Publisher.BetPlaced(r.Context(), b, m); err != nil {
			a.Log.Warn("failed to publish bet placed", zap.String("betId", b.ID), zap.Error(err))
		}
	}

	prices := pool.Prices(m)
	writeJSON(w, http.StatusCreated, dto.PlaceBetResponse{
		Success:    true,
		BetID:      b.ID,
		Side:       b.Side,
		EntryPrice: b.EntryPrice,
		PriceYes:   prices[market.SideYes],
		PriceNo:    prices[market.SideNo],
		Message:    fmt.Sprintf("bet placed: %d on %s", b.StakeAmount, strings.ToUpper(string(b.Side))),
	})
}

func (a *API) userStats(w http.ResponseWriter, r *http.Request) {
	s, err := a.Store.UserStats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (a *API) invalidate(r *http.Request, marketID string) {
	if a.Cache == nil {
		return
	}
	if err := a.Cache.Invalidate(r.Context(), marketID); err != nil {
		a.Log.Warn("failed to invalidate market views", zap.String("marketId", marketID), zap.Error(err))
	}
}
