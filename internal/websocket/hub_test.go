package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gorilla "github.com/gorilla/websocket"
)

func dialTestHub(t *testing.T, hub *Hub) *gorilla.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, w, r, nil)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("client count never reached %d, at %d", want, hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	hub := NewHub(nil)
	hub.Start()
	defer hub.Stop()

	c1 := dialTestHub(t, hub)
	c2 := dialTestHub(t, hub)
	waitForClients(t, hub, 2)

	hub.PublishEvent("slice:complete", map[string]interface{}{"key": "1|PT01|2024"})

	for _, conn := range []*gorilla.Conn{c1, c2} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)

		var env Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		assert.Equal(t, "slice:complete", env.Type)
		assert.NotEmpty(t, env.Timestamp)

		data, ok := env.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "1|PT01|2024", data["key"])
	}
}

func TestHub_ClientDisconnectUpdatesCount(t *testing.T) {
	hub := NewHub(nil)
	hub.Start()
	defer hub.Stop()

	conn := dialTestHub(t, hub)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}

func TestHub_PublishWithoutClientsDoesNotBlock(t *testing.T) {
	hub := NewHub(nil)
	hub.Start()
	defer hub.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			hub.PublishEvent("cycle:start", nil)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publishing with no clients blocked")
	}
}

func TestHub_StartIsIdempotent(t *testing.T) {
	hub := NewHub(nil)
	hub.Start()
	hub.Start()
	defer hub.Stop()

	dialTestHub(t, hub)
	waitForClients(t, hub, 1)
}

func TestHub_StopDisconnectsClients(t *testing.T) {
	hub := NewHub(nil)
	hub.Start()

	conn := dialTestHub(t, hub)
	waitForClients(t, hub, 1)

	hub.Stop()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
