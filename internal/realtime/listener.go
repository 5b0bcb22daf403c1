package realtime

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"

	"github.com/emilythestrangee/campus/backend/internal/database"
)

const listenerPingInterval = 90 * time.Second

// Listen bridges the database change channel into hub until ctx is done.
func Listen(ctx context.Context, dsn string, hub *Hub) error {
	report := func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
			log.Printf("❌ Change listener connection problem: %v", err)
		case pq.ListenerEventReconnected:
			log.Println("✅ Change listener reconnected")
		}
	}

	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, report)
	defer listener.Close()

	if err := listener.Listen(database.ChangeChannel); err != nil {
		return fmt.Errorf("listen %s: %w", database.ChangeChannel, err)
	}
	log.Printf("🔌 Listening for changes on %s", database.ChangeChannel)

	ticker := time.NewTicker(listenerPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			// nil after a reconnect; changes made while disconnected are lost
			if n == nil {
				continue
			}
			c, err := ParseChange(n.Extra)
			if err != nil {
				log.Printf("❌ Dropping change notification: %v", err)
				continue
			}
			hub.Publish(c)
		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					log.Printf("❌ Change listener ping failed: %v", err)
				}
			}()
		}
	}
}
