package management

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Invitations is the invitation store
type Invitations interface {
	ListPending(ctx context.Context) ([]*Invitation, error)
	ListPendingByEmail(ctx context.Context, email string) ([]*Invitation, error)
	CreateInvitation(ctx context.Context, invitation *Invitation) (*Invitation, error)
	Delete(ctx context.Context, id uuid.UUID, referenceID string) error
	DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID, referenceID string) error
}

type invitations struct {
	repository.Repository[*Invitation]
	db *bun.DB
}

var _ Invitations = (*invitations)(nil)

func NewInvitationsRepository(db *bun.DB) Invitations {
	repo := repository.NewRepository[*Invitation](db, repository.ModelHandlers[*Invitation]{
		NewRecord: func() *Invitation { return &Invitation{} },
		GetID: func(i *Invitation) uuid.UUID {
			if i == nil {
				return uuid.Nil
			}
			return i.ID
		},
		SetID: func(i *Invitation, id uuid.UUID) {
			if i != nil {
				i.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &invitations{
		Repository: repo,
		db:         db,
	}
}

func (r *invitations) ListPending(ctx context.Context) ([]*Invitation, error) {
	records := []*Invitation{}
	err := r.db.NewSelect().
		Model(&records).
		OrderExpr("?TableAlias.created_at ASC").
		Scan(ctx)
	if err != nil && !isRecordNotFound(err) {
		return nil, err
	}
	return records, nil
}

func (r *invitations) ListPendingByEmail(ctx context.Context, email string) ([]*Invitation, error) {
	records := []*Invitation{}
	err := r.db.NewSelect().
		Model(&records).
		Where("LOWER(?TableAlias.email) = ?", strings.ToLower(strings.TrimSpace(email))).
		OrderExpr("?TableAlias.created_at ASC").
		Scan(ctx)
	if err != nil && !isRecordNotFound(err) {
		return nil, err
	}
	return records, nil
}

func (r *invitations) CreateInvitation(ctx context.Context, invitation *Invitation) (*Invitation, error) {
	if invitation.ID == uuid.Nil {
		invitation.ID = uuid.New()
	}
	if invitation.CreatedAt.IsZero() {
		invitation.CreatedAt = time.Now()
	}
	invitation.Email = strings.TrimSpace(invitation.Email)
	return r.Repository.CreateTx(ctx, r.db, invitation)
}

func (r *invitations) Delete(ctx context.Context, id uuid.UUID, referenceID string) error {
	return r.DeleteTx(ctx, r.db, id, referenceID)
}

// DeleteTx removes the invitation. Deleting a missing invitation reports a
// record not found error so callers can tell a concurrent consumer apart.
func (r *invitations) DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID, referenceID string) error {
	res, err := tx.NewDelete().
		Model((*Invitation)(nil)).
		Where("id = ?", id).
		Where("reference_id = ?", referenceID).
		Exec(ctx)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id":           id.String(),
				"reference_id": referenceID,
			})
	}

	return nil
}
