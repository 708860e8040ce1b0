package server

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cardroom-server/internal/protocol"
)

// fakeWire records outbound frames in place of a live socket.
type fakeWire struct {
	mu          sync.Mutex
	frames      [][]byte
	closed      bool
	closeCode   websocket.StatusCode
	closeReason string
}

func (f *fakeWire) WriteFrame(_ context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, append([]byte(nil), data...))
	return nil
}

func (f *fakeWire) CloseWith(code websocket.StatusCode, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closeCode = code
	f.closeReason = reason
	return nil
}

func (f *fakeWire) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeWire) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (f *fakeWire) messages(t *testing.T) []frame {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]frame, 0, len(f.frames))
	for _, data := range f.frames {
		var fr frame
		require.NoError(t, json.Unmarshal(data, &fr))
		out = append(out, fr)
	}
	return out
}

// waitFrames blocks until the writer goroutine has flushed at least n
// frames, then returns them all.
func (f *fakeWire) waitFrames(t *testing.T, n int) []frame {
	t.Helper()
	require.Eventually(t, func() bool { return f.frameCount() >= n },
		2*time.Second, 2*time.Millisecond, "expected at least %d frames", n)
	return f.messages(t)
}

// waitView blocks until the newest StateUpdate frame renders the given
// view, then returns it decoded.
func (f *fakeWire) waitView(t *testing.T, view string) protocol.StateUpdatePayload {
	t.Helper()
	var state protocol.StateUpdatePayload
	require.Eventually(t, func() bool {
		for _, fr := range f.messages(t) {
			if fr.Type != protocol.TypeStateUpdate {
				continue
			}
			var candidate protocol.StateUpdatePayload
			if json.Unmarshal(fr.Payload, &candidate) == nil && candidate.View == view {
				state = candidate
			}
		}
		return state.View == view
	}, 2*time.Second, 2*time.Millisecond, "no %s view arrived", view)
	return state
}

// waitViewWhere blocks until a StateUpdate frame renders the given view
// and satisfies ok, then returns it decoded.
func (f *fakeWire) waitViewWhere(t *testing.T, view string, ok func(protocol.StateUpdatePayload) bool) protocol.StateUpdatePayload {
	t.Helper()
	var state protocol.StateUpdatePayload
	found := false
	require.Eventually(t, func() bool {
		for _, fr := range f.messages(t) {
			if fr.Type != protocol.TypeStateUpdate {
				continue
			}
			var candidate protocol.StateUpdatePayload
			if json.Unmarshal(fr.Payload, &candidate) == nil &&
				candidate.View == view && ok(candidate) {
				state = candidate
				found = true
			}
		}
		return found
	}, 2*time.Second, 2*time.Millisecond, "no matching %s view arrived", view)
	return state
}

// waitError blocks until an Error frame containing substr arrives.
func (f *fakeWire) waitError(t *testing.T, substr string) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, fr := range f.messages(t) {
			if fr.Type != protocol.TypeError {
				continue
			}
			var payload protocol.ErrorPayload
			if json.Unmarshal(fr.Payload, &payload) == nil &&
				strings.Contains(payload.Message, substr) {
				return true
			}
		}
		return false
	}, 2*time.Second, 2*time.Millisecond, "no error containing %q arrived", substr)
}

func helloResponse(t *testing.T, fr frame) protocol.HelloResponsePayload {
	t.Helper()
	require.Equal(t, protocol.TypeHelloResponse, fr.Type)
	var payload protocol.HelloResponsePayload
	require.NoError(t, json.Unmarshal(fr.Payload, &payload))
	return payload
}

// stubEngine records every forwarded message and produces trivially
// personalized views.
type stubEngine struct {
	seats    []EngineSeat
	received []stubMove
}

type stubMove struct {
	from    string
	payload string
}

func (e *stubEngine) HandleMessage(fromPlayerID string, payload json.RawMessage) {
	e.received = append(e.received, stubMove{from: fromPlayerID, payload: string(payload)})
}

func (e *stubEngine) StateFor(playerID string) any {
	return map[string]any{"for": playerID, "moves": len(e.received)}
}

func newTestRegistry() *Registry {
	return newTestRegistryMin(2)
}

func newTestRegistryMin(minPlayers int) *Registry {
	return NewRegistry(minPlayers, func(seats []EngineSeat) Engine {
		return &stubEngine{seats: seats}
	}, zap.NewNop().Sugar())
}

func dial(r *Registry) (*Connection, *fakeWire) {
	w := &fakeWire{}
	return r.AddConnection(w), w
}

func sendMsg(r *Registry, c *Connection, msgType string, payload any) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			panic(err)
		}
		raw = data
	}
	r.HandleMessage(c, protocol.ClientMessage{Type: msgType, Payload: raw})
}

// handshake performs Hello (and SetName when name is non-empty) on a
// fresh connection.
func handshake(t *testing.T, r *Registry, name string) (*Connection, *fakeWire, protocol.HelloResponsePayload) {
	t.Helper()
	c, w := dial(r)
	sendMsg(r, c, protocol.TypeHello, nil)
	hello := helloResponse(t, w.waitFrames(t, 1)[0])
	if name != "" {
		sendMsg(r, c, protocol.TypeSetName, protocol.SetNamePayload{Name: name})
		w.waitView(t, protocol.ViewIdle)
	}
	return c, w, hello
}

// openLobbyCount and friends peek at registry internals under its own
// lock, mirroring how the event path reads them.
func openLobbyCount(r *Registry) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.openLobbies)
}

func playingCount(r *Registry) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.playing)
}

func openLobbyMembers(r *Registry, name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.openLobbies[name]
	if !ok {
		return -1
	}
	return l.memberCount()
}

// assertNoNewFrames verifies the wire stayed quiet after an action.
func assertNoNewFrames(t *testing.T, w *fakeWire, before int) {
	t.Helper()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, before, w.frameCount())
}
