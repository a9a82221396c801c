// Command query-receiver is a minimal endpoint for QUERY_WEBHOOK_URL. It
// verifies the signature of each delivery and logs the raised query.
//
//	QUERY_WEBHOOK_SECRET=... go run ./cmd/query-receiver -addr :9000
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/projectdesk/projectdesk/internal/notify"
)

const maxBody = 64 << 10

func main() {
	addr := flag.String("addr", ":9000", "listen address")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	secret := os.Getenv("QUERY_WEBHOOK_SECRET")
	if secret == "" {
		logger.Error("QUERY_WEBHOOK_SECRET is required")
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.Handle("POST /webhook", receiver(secret, logger, time.Now))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("listening", "addr", *addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func receiver(secret string, logger *slog.Logger, now func() time.Time) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		ts, err := strconv.ParseInt(r.Header.Get(notify.HeaderTimestamp), 10, 64)
		if err != nil {
			http.Error(w, "missing timestamp", http.StatusUnauthorized)
			return
		}
		sig := r.Header.Get(notify.HeaderSignature)
		if err := notify.Verify(secret, sig, ts, body, notify.DefaultReplayWindow, now()); err != nil {
			logger.Warn("rejected delivery", "delivery_id", r.Header.Get(notify.HeaderDeliveryID), "error", err)
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		var ev notify.Event
		if err := json.Unmarshal(body, &ev); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}

		logger.Info("query received",
			"delivery_id", ev.DeliveryID,
			"project", ev.Query.ProjectName,
			"raised_by", ev.Query.RaisedBy,
			"message", ev.Query.Message,
			"raised_at", ev.Query.RaisedAt,
		)
		w.WriteHeader(http.StatusNoContent)
	})
}
