package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestReadDeadlineSpansTwoPings(t *testing.T) {
	require.Greater(t, readWait, 2*PingPeriod)
	require.Less(t, readWait, 3*PingPeriod)
}

func TestWriteTypedReadJSON(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		KeepAlive(conn)
		var req Request
		if err := ReadJSON(conn, &req); err != nil {
			return
		}
		_ = WriteTyped(conn, AckResponse{Event: EventAck, Ref: req.Ref})
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "next", "ref": "r1"}))
	var ack AckResponse
	require.NoError(t, conn.ReadJSON(&ack))
	require.Equal(t, EventAck, ack.Event)
	require.Equal(t, "r1", ack.Ref)
}
