package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	logger "github.com/sirupsen/logrus"

	"copytrader/src/auth"
	"copytrader/src/model"
	"copytrader/src/repository"
)

type copyTradeLister interface {
	FindByUser(ctx context.Context, userID uint, limit int) ([]model.CopyTradeLog, error)
}

// CopyTradesHandler lists the authenticated user's execution records,
// newest first. Terminal and in-flight rows both appear; the client reads
// execution_status to tell them apart.
func CopyTradesHandler(repo copyTradeLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.GetUserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		limit := 50
		if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
			parsed, err := strconv.Atoi(limitParam)
			if err != nil || parsed <= 0 {
				writeJSONError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = parsed
		}
		if limit > 200 {
			limit = 200
		}

		logs, err := repo.FindByUser(r.Context(), userID, limit)
		if err != nil {
			logger.WithError(err).WithField("user_id", userID).
				Error("failed to list copy trades")
			writeJSONError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(logs); err != nil {
			logger.WithError(err).Error("failed to encode copy trade response")
		}
	}
}

// DefaultCopyTradesHandler wires the handler to the production repository.
func DefaultCopyTradesHandler() http.HandlerFunc {
	return CopyTradesHandler(repository.NewCopyTradeLogRepository())
}
