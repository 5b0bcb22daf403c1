package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

// ChangeChannel is the LISTEN/NOTIFY channel carrying row changes.
const ChangeChannel = "campus_changes"

// Every insert, update and delete on the watched tables is published on
// ChangeChannel as {"table", "type", "record"}. The rant owner column is
// stripped so anonymous rants stay anonymous on the wire, and updates that
// clear the hidden flag carry "unhidden": true.
const triggerSchema = `
CREATE OR REPLACE FUNCTION campus_notify_change() RETURNS trigger AS $$
DECLARE
    rec RECORD;
BEGIN
    IF TG_OP = 'DELETE' THEN
        rec := OLD;
    ELSE
        rec := NEW;
    END IF;
    PERFORM pg_notify('campus_changes', json_build_object(
        'table', TG_TABLE_NAME,
        'type', TG_OP,
        'record', to_jsonb(rec) - 'user_id',
        'unhidden', COALESCE(TG_OP = 'UPDATE' AND OLD.hidden AND NOT NEW.hidden, false)
    )::text);
    RETURN NULL;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS rants_notify_change ON rants;
CREATE TRIGGER rants_notify_change
    AFTER INSERT OR UPDATE OR DELETE ON rants
    FOR EACH ROW EXECUTE FUNCTION campus_notify_change();

CREATE OR REPLACE FUNCTION campus_notify_notification() RETURNS trigger AS $$
BEGIN
    PERFORM pg_notify('campus_changes', json_build_object(
        'table', TG_TABLE_NAME,
        'type', TG_OP,
        'record', to_jsonb(NEW)
    )::text);
    RETURN NULL;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS notifications_notify_change ON notifications;
CREATE TRIGGER notifications_notify_change
    AFTER INSERT OR UPDATE ON notifications
    FOR EACH ROW EXECUTE FUNCTION campus_notify_notification();
`

// InstallTriggers creates the change notification functions and triggers.
func InstallTriggers(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, triggerSchema); err != nil {
		return fmt.Errorf("error creating triggers: %w", err)
	}

	log.Println("✅ Change notification triggers created/verified")
	return nil
}
