package websocket

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airtrail/airtrail/internal/dispatcher"
	"github.com/airtrail/airtrail/internal/feature"
	"github.com/airtrail/airtrail/internal/geo"
	"github.com/airtrail/airtrail/pkg/core"
	"github.com/airtrail/airtrail/pkg/streaming"
)

// renderer is a fake map frontend: it records envelopes, acks
// register_style and can push messages back to the sink.
type renderer struct {
	srv *httptest.Server

	mu       sync.Mutex
	messages []streaming.Envelope
	secrets  []string
	conn     *ws.Conn
	ready    chan struct{}
	noAck    bool
}

func newRenderer(t *testing.T, noAck bool) *renderer {
	t.Helper()
	r := &renderer{ready: make(chan struct{}, 1), noAck: noAck}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	r.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		c, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		r.mu.Lock()
		r.conn = c
		r.secrets = append(r.secrets, req.URL.Query().Get("secret"))
		r.mu.Unlock()
		r.ready <- struct{}{}

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			r.mu.Lock()
			r.messages = append(r.messages, env)
			r.mu.Unlock()

			if env.Type == streaming.TypeRegisterStyle && !r.noAck {
				data, _ := json.Marshal(streaming.AckMessage{Type: streaming.TypeAck, For: env.Type})
				r.mu.Lock()
				err := c.WriteMessage(ws.TextMessage, data)
				r.mu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(r.srv.Close)
	return r
}

func (r *renderer) url() string {
	return "ws" + strings.TrimPrefix(r.srv.URL, "http")
}

func (r *renderer) push(t *testing.T, raw string) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NoError(t, r.conn.WriteMessage(ws.TextMessage, []byte(raw)))
}

func (r *renderer) all() []streaming.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]streaming.Envelope, len(r.messages))
	copy(cp, r.messages)
	return cp
}

func (r *renderer) waitFor(t *testing.T, msgType string, n int) []streaming.Envelope {
	t.Helper()
	var found []streaming.Envelope
	require.Eventually(t, func() bool {
		found = found[:0]
		for _, m := range r.all() {
			if m.Type == msgType {
				found = append(found, m)
			}
		}
		return len(found) >= n
	}, 2*time.Second, 10*time.Millisecond)
	return found
}

// eventLog collects dispatcher events coming from the read loop.
type eventLog struct {
	mu     sync.Mutex
	events []dispatcher.Event
}

func (l *eventLog) add(e dispatcher.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) all() []dispatcher.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]dispatcher.Event(nil), l.events...)
}

func connect(t *testing.T, r *renderer, events *eventLog) *Sink {
	t.Helper()
	var onEvent func(dispatcher.Event)
	if events != nil {
		onEvent = events.add
	}
	s := New(Config{URL: r.url(), Secret: "test"}, geo.Identity, onEvent, nil)
	require.NoError(t, s.Init())
	t.Cleanup(func() { _ = s.Close() })
	<-r.ready
	return s
}

func TestRegisterStyle_WaitsForAck(t *testing.T) {
	r := newRenderer(t, false)
	s := connect(t, r, nil)

	require.NoError(t, s.RegisterStyle(feature.DefaultStyle()))
	// same style again is a no-op
	require.NoError(t, s.RegisterStyle(feature.DefaultStyle()))

	msgs := r.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, streaming.TypeRegisterStyle, msgs[0].Type)

	var style feature.Style
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &style))
	assert.Equal(t, "airplane", style.Icon)
	assert.Equal(t, "#F7455D", style.TrailColor)

	r.mu.Lock()
	assert.Equal(t, []string{"test"}, r.secrets)
	r.mu.Unlock()
}

func TestInit_DialFailure(t *testing.T) {
	s := New(Config{URL: "ws://127.0.0.1:59999/render"}, geo.Identity, nil, nil) // unlikely to be listening
	err := s.Init()
	require.Error(t, err)
	assert.ErrorIs(t, err, streaming.ErrRenderBackend)
}

func TestFireAndForgetMessages(t *testing.T) {
	r := newRenderer(t, false)
	s := connect(t, r, nil)
	require.NoError(t, s.RegisterStyle(feature.DefaultStyle()))

	require.NoError(t, s.ReplacePoints(core.RenderFrame{Points: []core.FramePoint{
		{ID: "A", Position: core.Position{X: 29, Y: 41}, Heading: 90, Icon: core.IconNormal},
	}}))
	require.NoError(t, s.ReplaceTrails(map[core.EntityID]core.Polyline{
		"A": {{X: 28, Y: 41}, {X: 29, Y: 41}},
	}))
	require.NoError(t, s.PublishSelection(&core.Selection{ID: "A", Attributes: core.Attributes{
		"name":     "TK1",
		"model":    "A321",
		"altitude": 11000.0,
		"id":       "A",
	}}))
	require.NoError(t, s.PublishSelection(nil))

	points := r.waitFor(t, streaming.TypePoints, 1)
	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			ID         string         `json:"id"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(points[0].Payload, &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "A", fc.Features[0].ID)
	assert.Equal(t, "normal", fc.Features[0].Properties["icon-state"])

	r.waitFor(t, streaming.TypeTrails, 1)

	sels := r.waitFor(t, streaming.TypeSelection, 2)
	var first, second streaming.SelectionPayload
	require.NoError(t, json.Unmarshal(sels[0].Payload, &first))
	require.NoError(t, json.Unmarshal(sels[1].Payload, &second))
	assert.True(t, first.Selected)
	assert.Equal(t, "A", first.ID)
	assert.Equal(t, "TK1", first.Name)
	assert.Equal(t, "A321", first.Model)
	assert.Equal(t, []streaming.SelectionField{{Key: "altitude", Value: "11000"}}, first.Fields)
	assert.False(t, second.Selected)
	assert.Empty(t, second.ID)
	assert.Empty(t, second.Fields)
}

func TestRegisterStyle_AckTimeoutIsRenderBackendError(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the ack timeout")
	}
	r := newRenderer(t, true)
	s := connect(t, r, nil)

	err := s.RegisterStyle(feature.DefaultStyle())
	require.Error(t, err)
	assert.ErrorIs(t, err, streaming.ErrRenderBackend)
}

func TestPointerEventsBecomeDispatcherEvents(t *testing.T) {
	r := newRenderer(t, false)
	events := &eventLog{}
	connect(t, r, events)

	r.push(t, `{"type":"pointer_enter","payload":{"id":"TK1721"}}`)
	r.push(t, `{"type":"click","payload":{"id":7,"properties":{"name":"Seven"}}}`)
	r.push(t, `{"type":"pointer_leave"}`)
	r.push(t, `{"type":"dismiss"}`)
	r.push(t, `{"type":"pointer_enter","payload":{}}`) // no id: ignored
	r.push(t, `{"type":"render_error","payload":{"asset":"airplane","message":"image not found"}}`)

	require.Eventually(t, func() bool { return len(events.all()) == 4 }, 2*time.Second, 10*time.Millisecond)

	got := events.all()
	assert.Equal(t, streaming.TypePointerEnter, got[0].Command)
	assert.Equal(t, []string{"TK1721"}, got[0].Args)

	assert.Equal(t, streaming.TypeClick, got[1].Command)
	assert.Equal(t, []string{"7"}, got[1].Args)

	assert.Equal(t, streaming.TypePointerLeave, got[2].Command)
	assert.Empty(t, got[2].Args)
	assert.Equal(t, streaming.TypeDismiss, got[3].Command)
}

func TestRenderErrorPayloads(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := New(Config{URL: "ws://localhost:5000/render"}, geo.Identity, nil, logger)

	s.handleMessage(inbound{Type: streaming.TypeRenderError, Payload: json.RawMessage(`{"asset":"airplane","message":"image not found"}`)})
	assert.Contains(t, buf.String(), "asset=airplane")
	assert.NotContains(t, buf.String(), "Bad render_error payload")

	buf.Reset()
	s.handleMessage(inbound{Type: streaming.TypeRenderError, Payload: json.RawMessage(`{"asset":`)})
	assert.Contains(t, buf.String(), "Bad render_error payload")
	assert.Contains(t, buf.String(), "unreadable error report")
}

func TestCloseIsIdempotent(t *testing.T) {
	r := newRenderer(t, false)
	s := New(Config{URL: r.url()}, geo.Identity, nil, nil)
	require.NoError(t, s.Init())
	<-r.ready

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())

	r.mu.Lock()
	assert.Equal(t, []string{""}, r.secrets)
	r.mu.Unlock()
}
