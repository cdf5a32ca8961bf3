package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cryptoagents/src/events"
	"cryptoagents/src/model"
	"cryptoagents/src/supervisor"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type fixedStatus struct {
	st supervisor.Status
}

func (f fixedStatus) Status() supervisor.Status { return f.st }

func TestHealthcheck(t *testing.T) {
	srv := httptest.NewServer(NewRouter(fixedStatus{}, events.NewHub("test"), 4))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthcheck")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "OK", string(body))
}

func TestStatus(t *testing.T) {
	st := supervisor.Status{Agent: "swing", State: supervisor.StateRunning, Cycles: 3}
	srv := httptest.NewServer(NewRouter(fixedStatus{st: st}, events.NewHub("swing"), 4))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got supervisor.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, "swing", got.Agent)
	require.Equal(t, supervisor.StateRunning, got.State)
	require.Equal(t, int64(3), got.Cycles)
}

func TestStatus_FailedIsUnavailable(t *testing.T) {
	st := supervisor.Status{Agent: "risk", State: supervisor.StateFailed}
	srv := httptest.NewServer(NewRouter(fixedStatus{st: st}, events.NewHub("risk"), 4))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestWebsocketStreamsEvents(t *testing.T) {
	hub := events.NewHub("executor")
	srv := httptest.NewServer(NewRouter(fixedStatus{}, hub, 4))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	hub.Emit(events.KindTradeExecuted, map[string]string{"symbol": "BTC/USDT"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev events.Event
	require.NoError(t, conn.ReadJSON(&ev))
	require.Equal(t, events.KindTradeExecuted, ev.Kind)
	require.Equal(t, "executor", ev.Agent)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStartServer_DisabledWithoutPort(t *testing.T) {
	require.NoError(t, StartServer(context.Background(), "", http.NotFoundHandler()))
}

func TestStartServer_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- StartServer(ctx, "0", http.NotFoundHandler()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down")
	}
}

type fakeExceptions struct {
	service string
	limit   int
}

func (f *fakeExceptions) Recent(_ context.Context, service string, limit int) ([]model.Exception, error) {
	f.service, f.limit = service, limit
	return []model.Exception{{ID: 7, Service: "execution", Message: "order rejected", Level: "error"}}, nil
}

func TestExceptions(t *testing.T) {
	src := &fakeExceptions{}
	srv := httptest.NewServer(NewRouter(fixedStatus{}, events.NewHub("test"), 4, WithExceptions(src)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/exceptions?service=execution&limit=5")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rows []model.Exception
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rows))
	require.Len(t, rows, 1)
	require.Equal(t, "order rejected", rows[0].Message)
	require.Equal(t, "execution", src.service)
	require.Equal(t, 5, src.limit)

	bad, err := http.Get(srv.URL + "/exceptions?limit=abc")
	require.NoError(t, err)
	defer bad.Body.Close()
	require.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestExceptions_NotMountedByDefault(t *testing.T) {
	srv := httptest.NewServer(NewRouter(fixedStatus{}, events.NewHub("test"), 4))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/exceptions")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
