// Package server exposes an agent's health, supervisor status and a live
// event stream over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"cryptoagents/src/events"
	"cryptoagents/src/model"
	"cryptoagents/src/supervisor"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type statusSource interface {
	Status() supervisor.Status
}

type eventSource interface {
	Subscribe(buffer int) (<-chan events.Event, func())
}

type exceptionSource interface {
	Recent(ctx context.Context, service string, limit int) ([]model.Exception, error)
}

type RouterOption func(chi.Router)

// WithExceptions serves the newest persisted exceptions on /exceptions,
// filtered by the optional service and limit query parameters.
func WithExceptions(src exceptionSource) RouterOption {
	return func(r chi.Router) {
		r.Get("/exceptions", func(w http.ResponseWriter, r *http.Request) {
			limit := 20
			if raw := r.URL.Query().Get("limit"); raw != "" {
				n, err := strconv.Atoi(raw)
				if err != nil || n <= 0 {
					http.Error(w, "invalid limit", http.StatusBadRequest)
					return
				}
				limit = n
			}

			rows, err := src.Recent(r.Context(), r.URL.Query().Get("service"), limit)
			if err != nil {
				logger.WithError(err).Error("/exceptions query error")
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(rows); err != nil {
				logger.WithError(err).Error("/exceptions encode error")
			}
		})
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the monitor is an internal endpoint
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewRouter builds the monitoring routes.
func NewRouter(status statusSource, hub eventSource, clientBuffer int, opts ...RouterOption) http.Handler {
	if clientBuffer <= 0 {
		clientBuffer = 64
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("/healthcheck write error")
		}
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		st := status.Status()
		w.Header().Set("Content-Type", "application/json")
		if st.State == supervisor.StateFailed {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(st); err != nil {
			logger.WithError(err).Error("/status encode error")
		}
	})

	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.WithError(err).Warn("websocket upgrade failed")
			return
		}
		stream, cancel := hub.Subscribe(clientBuffer)
		serveEvents(r.Context(), conn, stream, cancel)
	})

	for _, opt := range opts {
		opt(r)
	}
	return r
}

func serveEvents(ctx context.Context, conn *websocket.Conn, stream <-chan events.Event, cancel func()) {
	log := logger.WithFields(logger.Fields{"component": "monitor", "remote": conn.RemoteAddr().String()})
	defer func() {
		cancel()
		_ = conn.Close()
		log.Debug("websocket client disconnected")
	}()

	// reads only serve control frames; a read error means the client left
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	log.Debug("websocket client connected")
	for {
		select {
		case <-ctx.Done():
			return
		case <-gone:
			return
		case ev, ok := <-stream:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				log.WithError(err).Debug("websocket write failed")
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// StartServer serves handler on port until ctx is cancelled, then shuts down
// gracefully. An empty port disables the server.
func StartServer(ctx context.Context, port string, handler http.Handler) error {
	if port == "" {
		return nil
	}

	addr := ":" + port
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown error")
		return err
	}
	return nil
}
