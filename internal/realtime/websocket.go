package realtime

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Tables that may be subscribed to over the websocket endpoint.
var subscribable = map[string]bool{
	"rants":         true,
	"notifications": true,
}

// ViewerFilter builds the subscription filter for a request. Notification
// subscriptions are always narrowed to the viewer's own rows.
func ViewerFilter(viewerID, table, field, value string) (Filter, bool) {
	if !subscribable[table] {
		return Filter{}, false
	}
	f := Filter{Table: table, Field: field, Value: value}
	if table == "notifications" {
		f.Field = "user_id"
		f.Value = viewerID
	}
	if f.Field == "" {
		f.Value = ""
	}
	return f, true
}

// Handler upgrades to a websocket and streams changes matching the
// table/field/value query parameters. Requires the auth middleware.
func Handler(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		viewerID := c.GetString("user_id")
		if viewerID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}

		filter, ok := ViewerFilter(viewerID, c.Query("table"), c.Query("field"), c.Query("value"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown table"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("❌ WebSocket upgrade failed: %v", err)
			return
		}

		sub := hub.Subscribe(filter)
		go readPump(conn, sub)
		writePump(conn, sub)
	}
}

// readPump discards client frames and unsubscribes once the peer goes away.
func readPump(conn *websocket.Conn, sub *Subscription) {
	defer sub.Unsubscribe()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("❌ WebSocket read error: %v", err)
			}
			return
		}
	}
}

func writePump(conn *websocket.Conn, sub *Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.Unsubscribe()
		conn.Close()
	}()

	for {
		select {
		case change, ok := <-sub.C():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(change); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
