package reqlog_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/taskhub/internal/app/system/reqlog"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMiddleware(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	var seen string
	h := reqlog.Middleware(zap.New(core), "/health")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = reqlog.ID(r.Context())
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
		}
	}))

	tests := []struct {
		name    string
		path    string
		inbound string
		status  int
		logged  bool
	}{
		{"generated id", "/boards", "", http.StatusOK, true},
		{"inbound id kept", "/boards", "abc-123", http.StatusOK, true},
		{"error status", "/missing", "", http.StatusNotFound, true},
		{"skipped path", "/health", "", http.StatusOK, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := logs.Len()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.inbound != "" {
				req.Header.Set(reqlog.Header, tt.inbound)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			got := rec.Header().Get(reqlog.Header)
			if got == "" || got != seen {
				t.Errorf("response id %q, context id %q", got, seen)
			}
			if tt.inbound != "" && got != tt.inbound {
				t.Errorf("id = %q, want %q", got, tt.inbound)
			}
			if (logs.Len() > before) != tt.logged {
				t.Fatalf("logged = %v, want %v", logs.Len() > before, tt.logged)
			}
			if tt.logged {
				entry := logs.All()[logs.Len()-1]
				if st := entry.ContextMap()["status"]; st != int64(tt.status) {
					t.Errorf("status field = %v, want %d", st, tt.status)
				}
			}
		})
	}
}
