package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Pinger is a dependency whose reachability is reported, such as a shared
// cache server.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies needed for health checks.
type Handler struct {
	Client *mongo.Client
	Cache  Pinger // nil when the cache is in-process
	Log    *zap.Logger
}

// NewHandler constructs a health Handler with the Mongo client and logger.
func NewHandler(client *mongo.Client, cache Pinger, logger *zap.Logger) *Handler {
	return &Handler{
		Client: client,
		Cache:  cache,
		Log:    logger,
	}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Cache    string `json:"cache"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "cache":"memory" }
//
// On DB failure: 503 and
//
//	{ "status":"error", "message":"Database unavailable", "error":"…"}
//
// A cache failure is reported as "degraded" with 200, since reads fall back
// to MongoDB.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{
		Status:   "ok",
		Database: "connected",
		Cache:    "memory",
	}

	if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	if h.Cache != nil {
		resp.Cache = "connected"
		if err := h.Cache.Ping(ctx); err != nil {
			h.Log.Warn("health-check: cache ping failed", zap.Error(err))
			resp.Status = "degraded"
			resp.Cache = "disconnected"
			resp.Error = err.Error()
		}
	}

	_ = json.NewEncoder(w).Encode(resp)
}
