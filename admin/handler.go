// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bureau-foundation/mavlink-bridge/bridge"
	"github.com/bureau-foundation/mavlink-bridge/lib/keyexpr"
	"github.com/bureau-foundation/mavlink-bridge/overlay"
)

// StatusSource is anything that can report a bridge status.
// bridge.RunningInstance and *bridge.Runtime both satisfy it.
type StatusSource interface {
	Status() bridge.RuntimeStatus
}

// LivelinessResponse is the body of GET /liveliness.
type LivelinessResponse struct {
	KeyExpr string   `json:"key_expr"`
	Alive   []string `json:"alive"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewHandler returns the admin routes for one bridge. session answers
// liveliness queries.
func NewHandler(source StatusSource, session overlay.Session, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /status", func(writer http.ResponseWriter, request *http.Request) {
		writeJSON(writer, logger, http.StatusOK, source.Status())
	})

	mux.HandleFunc("GET /liveliness", func(writer http.ResponseWriter, request *http.Request) {
		expr := request.URL.Query().Get("key")
		if expr == "" {
			expr = bridge.DiscoveryExpr
		}
		if err := keyexpr.ValidateExpr(expr); err != nil {
			writeJSON(writer, logger, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		alive, err := session.Liveliness(request.Context(), expr)
		if err != nil {
			logger.Warn("liveliness query failed", "key_expr", expr, "error", err)
			writeJSON(writer, logger, http.StatusBadGateway, errorResponse{Error: err.Error()})
			return
		}
		if alive == nil {
			alive = []string{}
		}
		writeJSON(writer, logger, http.StatusOK, LivelinessResponse{KeyExpr: expr, Alive: alive})
	})

	return mux
}

func writeJSON(writer http.ResponseWriter, logger *slog.Logger, status int, body any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(body); err != nil {
		logger.Debug("writing admin response failed", "error", err)
	}
}
