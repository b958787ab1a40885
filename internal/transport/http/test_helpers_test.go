package http

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-dm/internal/config"
	"github.com/vovakirdan/wirechat-dm/internal/core"
	"github.com/vovakirdan/wirechat-dm/internal/proto"
	"github.com/vovakirdan/wirechat-dm/internal/service/messages"
	"github.com/vovakirdan/wirechat-dm/internal/service/readstate"
	"github.com/vovakirdan/wirechat-dm/internal/store"
	"github.com/vovakirdan/wirechat-dm/internal/store/sqlite"
)

type testServer struct {
	*httptest.Server
	hub core.Hub
}

// startTestServer wires the full stack over an in-memory SQLite store.
func startTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()

	cfg := config.Default()
	cfg.PingInterval = 0
	if mutate != nil {
		mutate(&cfg)
	}

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	return startTestServerWithStore(t, st, &cfg)
}

func startTestServerWithStore(t *testing.T, st store.MessageStore, cfg *config.Config) *testServer {
	t.Helper()

	logger := zerolog.Nop()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := core.NewHub(&logger)
	go hub.Run(ctx)

	msgs := messages.New(st, cfg.MaxContentLength)
	tracker := readstate.New(st)
	relay := core.NewRelay(hub, msgs, tracker, &logger)
	gateway := core.NewGateway(hub, relay, cfg.SendBuffer, &logger)

	handler := NewHandler(Services{
		Hub:      hub,
		Gateway:  gateway,
		Relay:    relay,
		Messages: msgs,
		Tracker:  tracker,
	}, cfg, &logger)

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	return &testServer{Server: ts, hub: hub}
}

func (s *testServer) postJSON(t *testing.T, path string, body any) *stdhttp.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := s.Client().Post(s.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (s *testServer) get(t *testing.T, path string) *stdhttp.Response {
	t.Helper()

	resp, err := s.Client().Get(s.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *stdhttp.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// waitOnline polls presence until userID reaches the wanted state.
func (s *testServer) waitOnline(t *testing.T, userID string, want bool) {
	t.Helper()

	require.Eventually(t, func() bool {
		return s.hub.IsOnline(context.Background(), userID) == want
	}, 2*time.Second, 10*time.Millisecond)
}

type wsClient struct {
	conn *websocket.Conn
	ctx  context.Context
}

func (s *testServer) dial(t *testing.T) *wsClient {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	wsURL := strings.Replace(s.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })

	return &wsClient{conn: conn, ctx: ctx}
}

func (c *wsClient) send(t *testing.T, typ string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, wsjson.Write(c.ctx, c.conn, proto.Inbound{Type: typ, Data: payload}))
}

type rawOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func (c *wsClient) read(t *testing.T) rawOutbound {
	t.Helper()

	var out rawOutbound
	require.NoError(t, wsjson.Read(c.ctx, c.conn, &out))
	return out
}

// readEvent reads the next frame and requires it to be the named event.
func (c *wsClient) readEvent(t *testing.T, event string, v any) {
	t.Helper()

	out := c.read(t)
	require.Equal(t, proto.OutboundTypeEvent, out.Type, "unexpected frame: %+v", out)
	require.Equal(t, event, out.Event)
	if v != nil {
		require.NoError(t, json.Unmarshal(out.Data, v))
	}
}

func (c *wsClient) readError(t *testing.T) *proto.Error {
	t.Helper()

	out := c.read(t)
	require.Equal(t, proto.OutboundTypeError, out.Type, "unexpected frame: %+v", out)
	require.NotNil(t, out.Error)
	return out.Error
}

func (c *wsClient) join(t *testing.T, userID string) proto.EventJoined {
	t.Helper()

	c.send(t, proto.InboundTypeJoin, proto.JoinData{UserID: userID})
	var joined proto.EventJoined
	c.readEvent(t, proto.EventNameJoined, &joined)
	return joined
}
