package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parking-reservation/internal/model"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Clients() == n }, 2*time.Second, 10*time.Millisecond)
}

func event(lotID uint64, avail int) model.ReservationEvent {
	return model.ReservationEvent{Type: model.EventReservationStarted, LotID: lotID, AvailableCount: &avail}
}

func TestHubRoutesUpdatesByLot(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	lot2 := dial(t, srv, "?lot_id=2")
	all := dial(t, srv, "")
	waitForClients(t, h, 2)

	ctx := context.Background()
	require.NoError(t, h.Publish(ctx, event(3, 9)))
	require.NoError(t, h.Publish(ctx, event(2, 4)))

	var u Update
	require.NoError(t, lot2.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := lot2.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(msg, &u))
	assert.Equal(t, Update{LotID: 2, AvailableCount: 4, Type: model.EventReservationStarted}, u)

	require.NoError(t, all.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err = all.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(msg, &u))
	assert.Equal(t, uint64(3), u.LotID)
	_, msg, err = all.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(msg, &u))
	assert.Equal(t, uint64(2), u.LotID)
}

func TestHubIgnoresEventsWithoutCount(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	conn := dial(t, srv, "?lot_id=5")
	waitForClients(t, h, 1)

	require.NoError(t, h.Publish(context.Background(), model.ReservationEvent{Type: model.EventReservationStarted, LotID: 5}))
	require.NoError(t, h.Publish(context.Background(), event(5, 1)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var u Update
	require.NoError(t, json.Unmarshal(msg, &u))
	assert.Equal(t, 1, u.AvailableCount)
}

func TestHubUnsubscribesOnClose(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	conn := dial(t, srv, "?lot_id=1")
	waitForClients(t, h, 1)
	require.NoError(t, conn.Close())
	waitForClients(t, h, 0)
}

func TestServeWSRejectsBadLotID(t *testing.T) {
	h := NewHub(nil)
	rec := httptest.NewRecorder()
	h.ServeWS(rec, httptest.NewRequest(http.MethodGet, "/v1/ws/availability?lot_id=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
