package events

import (
	"context"
	"database/sql"
	"time"
)

// Writer appends to the activity audit trail. Appends always ride the caller's
// transaction so a status flip and its event land together or not at all.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

const dateLayout = "2006-01-02"

// Append records an activity event inside tx. eventDate defaults to "now" when zero
// (import paths backfill it).
func (w Writer) Append(ctx context.Context, tx *sql.Tx, activityID, eventType string, eventDate time.Time, actor string) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	if eventDate.IsZero() {
		eventDate = now().UTC()
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO activity_events(activity_id,event_type,event_date,recorded_by,recorded_at) VALUES (?,?,?,?,?)`,
		activityID, eventType, eventDate.UTC().Format(dateLayout), actor, now().UTC().Format(time.RFC3339))
	return err
}
