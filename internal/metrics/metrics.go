// Package metrics exposes Prometheus collectors for the ledger and token services.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Transfers counts transfer attempts by outcome (ok or the error kind).
	Transfers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "card_service_transfers_total",
		Help: "Transfers between own cards by outcome",
	}, []string{"outcome"})

	// CardsExpired counts ACTIVE to EXPIRED transitions by path (lazy or sweep).
	CardsExpired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "card_service_cards_expired_total",
		Help: "Cards transitioned to EXPIRED",
	}, []string{"path"})

	// TokenValidations counts token validation results.
	TokenValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "card_service_token_validations_total",
		Help: "Token validations by kind and result",
	}, []string{"kind", "result"})

	// Revocations counts revocation records actually inserted.
	Revocations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "card_service_token_revocations_total",
		Help: "Revocation records inserted",
	})

	// RevocationCheckDurationMs observes revocation set lookups.
	RevocationCheckDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "card_service_revocation_check_duration_ms",
		Help:    "Latency of revocation set membership checks in milliseconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
	})
)
