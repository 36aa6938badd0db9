package srv

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"k8s.io/klog/v2"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  2048,
	WriteBufferSize: 2048,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSHandler bridges browser clients onto the same line protocol: one
// websocket text message carries one line, so TCP and websocket players share
// lobbies and duels.
func WSHandler(h *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			klog.Errorf("websocket upgrade: %v", err)
			return
		}
		h.handleLineConn(&wsConn{c: conn})
	}
}

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) ReadLine() (string, error) {
	for {
		mt, data, err := w.c.ReadMessage()
		if err != nil {
			return "", err
		}
		if mt != websocket.TextMessage {
			continue
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}
}

func (w *wsConn) WriteLine(line string) error {
	return w.c.WriteMessage(websocket.TextMessage, []byte(line))
}

func (w *wsConn) Close() error       { return w.c.Close() }
func (w *wsConn) RemoteAddr() string { return w.c.RemoteAddr().String() }
