package ws

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

func TestClientReplaysHelloAndPings(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	msgCh := make(chan []byte, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept ws: %v", err)
			return
		}
		defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			select {
			case msgCh <- data:
			default:
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	client := New(wsURL, 10*time.Millisecond, 20*time.Millisecond, zap.NewNop())
	hello := []byte("hello-frame")
	ping := []byte("ping-frame")
	client.SetHello(hello)
	client.SetPing(ping)

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	go func() {
		_ = client.Run(runCtx, nil)
	}()

	// The hello frame must arrive first, then keepalive pings.
	select {
	case msg := <-msgCh:
		if !bytes.Equal(msg, hello) {
			t.Fatalf("expected hello frame first, got %q", msg)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for hello frame")
	}
	select {
	case msg := <-msgCh:
		if !bytes.Equal(msg, ping) {
			t.Fatalf("expected ping frame, got %q", msg)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for ping frame")
	}
}

func TestWriteRequiresConnection(t *testing.T) {
	client := New("ws://127.0.0.1:0", time.Second, 0, zap.NewNop())
	if err := client.Write(context.Background(), []byte("frame")); err == nil {
		t.Fatalf("expected error when writing before connect")
	}
}
