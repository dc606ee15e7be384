package chat

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// dialRoom spins up a server-side socket registered in the hub and returns
// the client side of the connection.
func dialRoom(t *testing.T, hub *Hub, potID string) *websocket.Conn {
	t.Helper()

	registered := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		conn := hub.Register(potID, ws)
		close(registered)
		// Hold the socket open until the hub drops the room at test end.
		defer hub.Unregister(potID, conn)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	select {
	case <-registered:
	case <-time.After(2 * time.Second):
		t.Fatal("server never registered the connection")
	}
	return client
}

func readEvent(t *testing.T, client *websocket.Conn) Event {
	t.Helper()
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	if err := client.ReadJSON(&ev); err != nil {
		t.Fatalf("reading event: %v", err)
	}
	return ev
}

func newTestHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
}

func TestBroadcast_ReachesEveryConnectionInRoom(t *testing.T) {
	hub := newTestHub()
	client1 := dialRoom(t, hub, "pot-1")
	client2 := dialRoom(t, hub, "pot-1")

	hub.Broadcast("pot-1", Event{Type: EventTalk, PotID: "pot-1", Message: "hello room"})

	for _, client := range []*websocket.Conn{client1, client2} {
		ev := readEvent(t, client)
		if ev.Type != EventTalk || ev.Message != "hello room" {
			t.Errorf("got event %+v, want TALK hello room", ev)
		}
	}
}

func TestBroadcast_DoesNotLeakAcrossRooms(t *testing.T) {
	hub := newTestHub()
	inRoom := dialRoom(t, hub, "pot-1")
	otherRoom := dialRoom(t, hub, "pot-2")

	hub.Broadcast("pot-1", Event{Type: EventEnter, PotID: "pot-1", Message: "welcome"})

	ev := readEvent(t, inRoom)
	if ev.Type != EventEnter {
		t.Errorf("in-room event = %+v, want ENTER", ev)
	}

	otherRoom.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var stray Event
	if err := otherRoom.ReadJSON(&stray); err == nil {
		t.Errorf("pot-2 connection received pot-1 event: %+v", stray)
	}
}

func TestUnregister_EmptiesRoom(t *testing.T) {
	hub := newTestHub()
	client := dialRoom(t, hub, "pot-1")

	if n := hub.RoomSize("pot-1"); n != 1 {
		t.Fatalf("RoomSize = %d, want 1", n)
	}

	client.Close()
	// The server-side read loop notices the close and unregisters.
	deadline := time.Now().Add(2 * time.Second)
	for hub.RoomSize("pot-1") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("room never emptied after the client closed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
