package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func newHubServer(t *testing.T, hub *Hub, userID string, isAdmin bool) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(userID, isAdmin, w, r)
	}))
	t.Cleanup(server.Close)
	return server
}

func dialHub(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func waitForRoomSize(t *testing.T, hub *Hub, room string, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.RoomSize(room) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("room %q never reached size %d (current %d)", room, want, hub.RoomSize(room))
}

func TestHubJoinsNotificationFeedOnConnect(t *testing.T) {
	hub := NewHub()
	server := newHubServer(t, hub, "user-1", false)
	dialHub(t, server)

	waitForRoomSize(t, hub, RoomNotifications, 1)
	require.Equal(t, 0, hub.RoomSize(RoomAdmin))

	hub.BroadcastToUser(RoomNotifications, "user-1", Message{
		Event: EventNotificationCreated,
		Data:  map[string]any{"id": "n1"},
	})
}

func TestHubAdminRoomIsImplicit(t *testing.T) {
	hub := NewHub()

	adminServer := newHubServer(t, hub, "admin-1", true)
	adminConn := dialHub(t, adminServer)

	customerServer := newHubServer(t, hub, "user-1", false)
	customerConn := dialHub(t, customerServer)

	waitForRoomSize(t, hub, RoomAdmin, 1)

	// Clients cannot join the admin room themselves.
	require.NoError(t, customerConn.WriteJSON(map[string]string{
		"action": "join-admin-room", "id": "",
	}))
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 1, hub.RoomSize(RoomAdmin))

	hub.BroadcastRoom(RoomAdmin, Message{Event: EventNewOrder, Data: map[string]any{"order_id": "o1"}})

	msg := readMessage(t, adminConn)
	require.Equal(t, EventNewOrder, msg.Event)
	require.Equal(t, RoomAdmin, msg.Room)
}

func TestHubOrderRoomJoinLeave(t *testing.T) {
	hub := NewHub()
	server := newHubServer(t, hub, "user-1", false)
	conn := dialHub(t, server)

	require.NoError(t, conn.WriteJSON(controlMessage{Action: ActionJoinOrderRoom, ID: "o42"}))
	waitForRoomSize(t, hub, OrderRoom("o42"), 1)

	hub.BroadcastRoom(OrderRoom("o42"), Message{
		Event: EventOrderStatusUpdated,
		Data:  map[string]any{"status": "preparing"},
	})

	msg := readMessage(t, conn)
	require.Equal(t, EventOrderStatusUpdated, msg.Event)
	require.Equal(t, OrderRoom("o42"), msg.Room)

	require.NoError(t, conn.WriteJSON(controlMessage{Action: ActionLeaveOrderRoom, ID: "o42"}))
	waitForRoomSize(t, hub, OrderRoom("o42"), 0)
}

func TestHubIgnoresEmptyScopeJoin(t *testing.T) {
	hub := NewHub()
	server := newHubServer(t, hub, "user-1", false)
	conn := dialHub(t, server)

	waitForRoomSize(t, hub, RoomNotifications, 1)

	require.NoError(t, conn.WriteJSON(controlMessage{Action: ActionJoinOrderRoom, ID: "  "}))
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 0, hub.RoomSize(OrderRoom("")))
}

func TestHubBroadcastToUserTargetsOnlyThatUser(t *testing.T) {
	hub := NewHub()

	aliceConn := dialHub(t, newHubServer(t, hub, "alice", false))
	bobConn := dialHub(t, newHubServer(t, hub, "bob", false))

	waitForRoomSize(t, hub, RoomNotifications, 2)

	hub.BroadcastToUser(RoomNotifications, "alice", Message{
		Event: EventNotificationCreated,
		Data:  map[string]any{"id": "n1"},
	})

	msg := readMessage(t, aliceConn)
	require.Equal(t, EventNotificationCreated, msg.Event)

	require.NoError(t, bobConn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	var stray Message
	require.Error(t, bobConn.ReadJSON(&stray))
}

func TestHubPingControl(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, newHubServer(t, hub, "user-1", false))

	require.NoError(t, conn.WriteJSON(controlMessage{Action: ActionPing}))

	msg := readMessage(t, conn)
	require.Equal(t, "pong", msg.Event)
}

func TestHubUnregisterOnDisconnect(t *testing.T) {
	hub := NewHub()
	server := newHubServer(t, hub, "user-1", false)
	conn := dialHub(t, server)

	require.NoError(t, conn.WriteJSON(controlMessage{Action: ActionJoinOrderRoom, ID: "o1"}))
	waitForRoomSize(t, hub, OrderRoom("o1"), 1)

	require.NoError(t, conn.Close())
	waitForRoomSize(t, hub, OrderRoom("o1"), 0)
	waitForRoomSize(t, hub, RoomNotifications, 0)
}

func TestConnectionSendAfterCloseIsNoOp(t *testing.T) {
	hub := NewHub()

	conns := make(chan *websocket.Conn, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
	}))
	t.Cleanup(server.Close)

	dialHub(t, server)

	var serverConn *websocket.Conn
	select {
	case serverConn = <-conns:
	case <-time.After(2 * time.Second):
		t.Fatal("server connection never arrived")
	}

	conn := newConnection(hub, serverConn, "user-1", false)
	conn.close()

	// A pong reply racing shutdown must not panic on the closed channel.
	conn.trySend(Message{Event: "pong"})
	conn.close()
}

func TestRoomBuildersAndJoinable(t *testing.T) {
	require.Equal(t, "order:o1", OrderRoom(" o1 "))
	require.Equal(t, "payment:p1", PaymentRoom("p1"))

	require.True(t, joinableRoom(OrderRoom("o1")))
	require.True(t, joinableRoom(PaymentRoom("p1")))
	require.False(t, joinableRoom(RoomAdmin))
	require.False(t, joinableRoom(RoomNotifications))
}

func TestMessageJSONShape(t *testing.T) {
	payload, err := json.Marshal(Message{Room: "order:o1", Event: EventOrderStatusUpdated})
	require.NoError(t, err)
	require.JSONEq(t, `{"room":"order:o1","event":"order-status-updated"}`, string(payload))
}
