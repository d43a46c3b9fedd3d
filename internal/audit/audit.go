// Package audit is the append-only history of every traveler mutation.
// Entries are never updated or deleted; they are the sole source of history
// for a traveler and are retained even after the traveler itself is removed.
package audit

import (
	"context"
	"time"

	"github.com/nexusmfg/traveler/model"
)

// Store persists audit entries.
type Store interface {
	// Append inserts one entry and returns it with its assigned ID.
	// There is deliberately no update or delete.
	Append(ctx context.Context, entry model.AuditEntry) (model.AuditEntry, error)

	// History returns all entries for a traveler in chronological order.
	History(ctx context.Context, travelerID int64) ([]model.AuditEntry, error)
}

// Recorder is the write-side convenience used by the services. It fills in
// the acting user and request origin from the Actor.
type Recorder struct {
	store Store
}

// NewRecorder creates a Recorder over the given store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Record appends one entry attributed to the actor.
func (r *Recorder) Record(ctx context.Context, travelerID int64, actor *model.Actor, action model.AuditAction, field, oldValue, newValue string) error {
	_, err := r.store.Append(ctx, model.AuditEntry{
		TravelerID:   travelerID,
		UserID:       actor.UserID,
		Action:       action,
		FieldChanged: field,
		OldValue:     oldValue,
		NewValue:     newValue,
		Origin:       actor.Origin,
		CreatedAt:    time.Now().UTC(),
	})
	return err
}

// History returns the traveler's full history, oldest first.
func (r *Recorder) History(ctx context.Context, travelerID int64) ([]model.AuditEntry, error) {
	return r.store.History(ctx, travelerID)
}
