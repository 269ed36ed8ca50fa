package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

type Checker struct {
	JournalPing func(ctx context.Context) error
}

// Serve starts a minimal /healthz handler.
func Serve(addr string, checker Checker) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := map[string]string{"status": "ok"}
		code := http.StatusOK

		if checker.JournalPing != nil {
			if err := checker.JournalPing(ctx); err != nil {
				status["journal"] = "fail"
				code = http.StatusServiceUnavailable
			} else {
				status["journal"] = "ok"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 3 * time.Second,
	}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

// Shutdown gracefully shuts down the health server.
func Shutdown(ctx context.Context, srv *http.Server) error {
	return srv.Shutdown(ctx)
}
