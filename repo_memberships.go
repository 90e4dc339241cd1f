package management

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Memberships stores role grants of users on referenced objects
type Memberships interface {
	AddMember(ctx context.Context, membership *Membership) error
	AddMemberTx(ctx context.Context, tx bun.IDB, membership *Membership) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Membership, error)
	RemoveUser(ctx context.Context, userID uuid.UUID) error
	RemoveUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error
}

type memberships struct {
	db *bun.DB
}

var _ Memberships = (*memberships)(nil)

func NewMembershipsRepository(db *bun.DB) Memberships {
	return &memberships{db: db}
}

func (r *memberships) AddMember(ctx context.Context, membership *Membership) error {
	return r.AddMemberTx(ctx, r.db, membership)
}

// AddMemberTx grants the role. An existing grant for the same user,
// reference and scope has its role replaced.
func (r *memberships) AddMemberTx(ctx context.Context, tx bun.IDB, membership *Membership) error {
	if membership.ID == uuid.Nil {
		membership.ID = uuid.New()
	}
	if membership.CreatedAt.IsZero() {
		membership.CreatedAt = time.Now()
	}

	_, err := tx.NewInsert().
		Model(membership).
		On("CONFLICT (user_id, reference_type, reference_id, role_scope) DO UPDATE").
		Set("role_name = EXCLUDED.role_name").
		Exec(ctx)
	return err
}

func (r *memberships) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Membership, error) {
	records := []*Membership{}
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		OrderExpr("?TableAlias.reference_type ASC, ?TableAlias.role_scope ASC").
		Scan(ctx)
	if err != nil && !isRecordNotFound(err) {
		return nil, err
	}
	return records, nil
}

func (r *memberships) RemoveUser(ctx context.Context, userID uuid.UUID) error {
	return r.RemoveUserTx(ctx, r.db, userID)
}

func (r *memberships) RemoveUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
	_, err := tx.NewDelete().
		Model((*Membership)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	return err
}
