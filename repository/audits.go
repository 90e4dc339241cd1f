package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	management "github.com/robertoporfiro/gravitee-management-rest-api"
	"github.com/robertoporfiro/gravitee-management-rest-api/activitymap"
	"github.com/uptrace/bun"
)

// AuditRecord is a persisted activity event
type AuditRecord struct {
	bun.BaseModel `bun:"table:audits,alias:aud"`
	ID            uuid.UUID                `bun:"id,pk,type:uuid" json:"id"`
	ReferenceType string                   `bun:"reference_type,notnull" json:"reference_type"`
	ReferenceID   string                   `bun:"reference_id,notnull" json:"reference_id"`
	Actor         string                   `bun:"actor,notnull" json:"actor"`
	Event         string                   `bun:"event,notnull" json:"event"`
	ObjectType    string                   `bun:"object_type" json:"object_type"`
	ObjectID      string                   `bun:"object_id" json:"object_id"`
	Properties    map[string]any           `bun:"properties" json:"properties,omitempty"`
	Before        *management.UserSnapshot `bun:"before" json:"before,omitempty"`
	After         *management.UserSnapshot `bun:"after" json:"after,omitempty"`
	CreatedAt     time.Time                `bun:"created_at,notnull" json:"created_at"`
}

// AuditStore is the bun backed ActivitySink
type AuditStore struct {
	db   bun.IDB
	opts []activitymap.Option
}

var _ management.ActivitySink = (*AuditStore)(nil)

func NewAuditStore(db bun.IDB, opts ...activitymap.Option) *AuditStore {
	return &AuditStore{db: db, opts: opts}
}

func (s *AuditStore) Record(ctx context.Context, event management.ActivityEvent) error {
	rec := activitymap.Normalize(event, s.opts...)

	_, err := s.db.NewInsert().
		Model(&AuditRecord{
			ID:            uuid.New(),
			ReferenceType: rec.ReferenceType,
			ReferenceID:   rec.ReferenceID,
			Actor:         rec.Actor,
			Event:         rec.Event,
			ObjectType:    rec.ObjectType,
			ObjectID:      rec.ObjectID,
			Properties:    rec.Properties,
			Before:        rec.Before,
			After:         rec.After,
			CreatedAt:     rec.OccurredAt,
		}).
		Exec(ctx)
	return err
}

// ListByObject returns the records of one object, oldest first.
func (s *AuditStore) ListByObject(ctx context.Context, objectType, objectID string) ([]*AuditRecord, error) {
	records := []*AuditRecord{}
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.object_type = ?", objectType).
		Where("?TableAlias.object_id = ?", objectID).
		OrderExpr("?TableAlias.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}
