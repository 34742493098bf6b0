package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"copytrader/src/matcher"
	"copytrader/src/model"
)

type signalCreator interface {
	Create(ctx context.Context, signal *model.Signal) error
}

type signalLister interface {
	FindLatest(ctx context.Context, limit int) ([]model.Signal, error)
}

type matchResolver interface {
	Match(ctx context.Context, signal *model.Signal) ([]model.SignalSubscription, error)
}

type executionDispatcher interface {
	Dispatch(signal *model.Signal, matches []model.SignalSubscription)
}

// signalPayload is the inbound webhook body. Price accepts a JSON number or
// a quoted string; provider webhooks disagree on which one they send.
type signalPayload struct {
	ProviderID string          `json:"provider_id"`
	Symbol     string          `json:"symbol"`
	Action     string          `json:"action"`
	Price      decimal.Decimal `json:"price"`
	Confidence int             `json:"confidence"`
	Timestamp  *time.Time      `json:"timestamp"`
}

func (p *signalPayload) validate() string {
	switch {
	case p.ProviderID == "":
		return "provider_id is required"
	case p.Symbol == "":
		return "symbol is required"
	case !model.ValidSignalAction(p.Action):
		return "action must be one of buy, sell, close"
	case !p.Price.IsPositive():
		return "price must be a positive number"
	}
	return ""
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// IngestSignalHandler accepts provider webhooks. The contract is
// acknowledge-then-execute: the 202 means the signal row is durable, and
// fan-out to subscribers happens after the response on the worker pool.
func IngestSignalHandler(
	repo signalCreator,
	resolver matchResolver,
	dispatcher executionDispatcher,
	broadcast func(signal *model.Signal),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := http.MaxBytesReader(w, r.Body, 1<<16)

		raw, err := io.ReadAll(body)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "unable to read request body")
			return
		}

		var payload signalPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			writeJSONError(w, http.StatusBadRequest, "malformed JSON payload")
			return
		}

		if msg := payload.validate(); msg != "" {
			writeJSONError(w, http.StatusBadRequest, msg)
			return
		}

		receivedAt := time.Now().UTC()
		if payload.Timestamp != nil {
			receivedAt = payload.Timestamp.UTC()
		}

		signal := &model.Signal{
			ID:         uuid.New().String(),
			ProviderID: payload.ProviderID,
			Symbol:     payload.Symbol,
			Action:     payload.Action,
			Price:      payload.Price,
			Confidence: payload.Confidence,
			ReceivedAt: receivedAt,
			RawPayload: string(raw),
		}

		if err := repo.Create(r.Context(), signal); err != nil {
			logger.WithError(err).Error("failed to persist signal")
			writeJSONError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		// the caller is acknowledged here; everything after is async
		go fanOut(resolver, dispatcher, broadcast, signal)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		if err := json.NewEncoder(w).Encode(map[string]string{"signal_id": signal.ID}); err != nil {
			logger.WithError(err).Error("failed to encode signal ingestion response")
		}
	}
}

// fanOut resolves matches and hands the auto-trade ones to the worker pool.
// Matching errors are logged, never surfaced: the signal row is already
// durable and the recovery sweep cannot help before any pending rows exist,
// so the provider would only get noise.
func fanOut(
	resolver matchResolver,
	dispatcher executionDispatcher,
	broadcast func(signal *model.Signal),
	signal *model.Signal,
) {
	if broadcast != nil {
		broadcast(signal)
	}

	matches, err := resolver.Match(context.Background(), signal)
	if err != nil {
		logger.WithError(err).WithField("signal_id", signal.ID).
			Error("subscription matching failed")
		return
	}

	targets := matcher.AutoTradeOnly(matches)
	if len(targets) == 0 {
		return
	}

	dispatcher.Dispatch(signal, targets)
}

// LatestSignalsHandler lists the most recent signals, newest first. Backs
// the public signal board.
func LatestSignalsHandler(repo signalLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 10
		if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
			parsed, err := strconv.Atoi(limitParam)
			if err != nil || parsed <= 0 {
				writeJSONError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = parsed
		}
		if limit > 100 {
			limit = 100
		}

		signals, err := repo.FindLatest(r.Context(), limit)
		if err != nil {
			logger.WithError(err).Error("failed to list latest signals")
			writeJSONError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(signals); err != nil {
			logger.WithError(err).Error("failed to encode signal list response")
		}
	}
}
