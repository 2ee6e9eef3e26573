// Package metrics defines the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncRunsTotal counts sync runs per pipeline and result.
	SyncRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solver_sync_runs_total",
		Help: "Total number of sync runs by pipeline and result",
	}, []string{"pipeline", "result"})

	// SyncDuration observes how long a full sync run takes.
	SyncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "solver_sync_duration_seconds",
		Help:    "Duration of sync runs in seconds",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"pipeline"})

	// OrdersProcessed counts reconciled orders per chain and outcome.
	OrdersProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solver_orders_processed_total",
		Help: "Total number of orders processed by chain and outcome",
	}, []string{"chain", "outcome"})

	// LastSyncBlock tracks the settlement sync watermark per chain.
	LastSyncBlock = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "solver_last_sync_block",
		Help: "Last synced block number by chain",
	}, []string{"chain"})

	// GasBalanceUSD tracks the solver's native balance in USD per chain.
	GasBalanceUSD = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "solver_gas_balance_usd",
		Help: "Solver native token balance in USD by chain",
	}, []string{"chain"})

	// ChainErrors counts per-chain failures by component.
	ChainErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solver_chain_errors_total",
		Help: "Total number of per-chain sync errors by component",
	}, []string{"chain", "component"})
)
