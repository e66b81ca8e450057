package renderer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestConnectAndSendUpdate(t *testing.T) {
	received := make(chan string, 1)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer ws.Close()
		_, msg, err := ws.ReadMessage()
		if err != nil {
			return
		}
		received <- string(msg)
		// Send an acknowledgement to exercise the read pump.
		_ = ws.WriteMessage(websocket.TextMessage, []byte("ack"))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, err := Connect(context.Background(), url, Options{})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	if !conn.SendUpdate("<html/>") {
		t.Fatal("send queue rejected the update")
	}

	select {
	case got := <-received:
		if got != "<html/>" {
			t.Fatalf("server received %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive the update")
	}
}

func TestConnectFailure(t *testing.T) {
	_, err := Connect(context.Background(), "ws://127.0.0.1:1/nope",
		Options{HandshakeTimeout: 200 * time.Millisecond})
	if err == nil {
		t.Fatal("dial to a dead endpoint succeeded")
	}
}
