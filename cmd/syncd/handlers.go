package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/chainsafe/solver-middleware/pkg/config"
	"github.com/chainsafe/solver-middleware/pkg/gas"
	"github.com/chainsafe/solver-middleware/pkg/syncdb/dao"
	"github.com/chainsafe/solver-middleware/pkg/syncer"
)

const defaultSettlementsLimit = 100

// queryStore is the read surface the API handlers need, satisfied by
// syncdb.Store.
type queryStore interface {
	ListSettlements(ctx context.Context, chainID int64, limit int) ([]dao.SettlementDao, error)
	ListGasSnapshots(ctx context.Context) ([]dao.GasSnapshotDao, error)
	ListChainSyncStates(ctx context.Context) ([]dao.ChainSyncStateDao, error)
}

func newRouter(cfg *config.Config, store queryStore, engine *syncer.Engine, tracker *gas.Tracker, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth())
	if cfg.Monitoring.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/settlements", handleListSettlements(store, logger))
		r.Get("/gas", handleListGasSnapshots(store, logger))
		r.Get("/sync/status", handleSyncStatus(store, engine, tracker, logger))
		r.Post("/sync", handleTriggerSync(engine, tracker, logger))
	})
	return r
}

func handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, nil)
	}
}

func handleListSettlements(store queryStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var chainID int64
		if raw := r.URL.Query().Get("chain_id"); raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid chain_id"}, logger)
				return
			}
			chainID = parsed
		}

		limit := defaultSettlementsLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"}, logger)
				return
			}
			limit = parsed
		}

		settlements, err := store.ListSettlements(r.Context(), chainID, limit)
		if err != nil {
			logger.Error("failed to list settlements", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"}, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"settlements": settlements}, logger)
	}
}

func handleListGasSnapshots(store queryStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshots, err := store.ListGasSnapshots(r.Context())
		if err != nil {
			logger.Error("failed to list gas snapshots", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"}, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"gas": snapshots}, logger)
	}
}

func handleSyncStatus(store queryStore, engine *syncer.Engine, tracker *gas.Tracker, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		states, err := store.ListChainSyncStates(r.Context())
		if err != nil {
			logger.Error("failed to list sync states", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"}, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"settlement_syncing": engine.IsSyncing(),
			"gas_syncing":        tracker.IsSyncing(),
			"chains":             states,
		}, logger)
	}
}

// handleTriggerSync kicks off both pipelines in the background and returns
// immediately. A pipeline that is already running declines via its
// single-flight guard.
func handleTriggerSync(engine *syncer.Engine, tracker *gas.Tracker, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine.IsSyncing() || tracker.IsSyncing() {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "sync already in progress"}, logger)
			return
		}

		go func() {
			// detached from the request; a closed connection must not
			// cancel the run
			ctx := context.Background()
			if err := engine.Run(ctx); err != nil && !errors.Is(err, syncer.ErrSyncInProgress) {
				logger.Error("triggered settlement sync failed", zap.Error(err))
			}
			if err := tracker.Run(ctx); err != nil && !errors.Is(err, gas.ErrTrackingInProgress) {
				logger.Error("triggered gas tracking failed", zap.Error(err))
			}
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"}, logger)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && logger != nil {
		logger.Warn("failed to encode response", zap.Error(err))
	}
}
