package management

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the identity store
type Users interface {
	repository.Repository[*User]

	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)
	FindBySource(ctx context.Context, source, sourceID string) (*User, error)
	FindBySourceTx(ctx context.Context, tx bun.IDB, source, sourceID string) (*User, error)
	ListByIDs(ctx context.Context, ids ...uuid.UUID) ([]*User, error)

	Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error)
	Save(ctx context.Context, record *User) error
	SaveTx(ctx context.Context, tx bun.IDB, record *User) error

	UpdateStatus(ctx context.Context, id uuid.UUID, status UserStatus, opts ...StatusUpdateOption) (*User, error)
	UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status UserStatus, opts ...StatusUpdateOption) (*User, error)
	Archive(ctx context.Context, actor ActorRef, user *User, opts ...TransitionOption) (*User, error)
}

type users struct {
	repository.Repository[*User]
	db                  *bun.DB
	stateMachine        UserStateMachine
	stateMachineOptions []StateMachineOption
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

type UsersOption func(*users)

func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "source_id"
		},
	})

	repoUsers := &users{
		Repository: repo,
		db:         db,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}

	return repoUsers
}

func WithUsersStateMachineOptions(options ...StateMachineOption) UsersOption {
	return func(u *users) {
		if len(options) == 0 {
			return
		}
		u.stateMachineOptions = append(u.stateMachineOptions, options...)
		u.stateMachine = nil
	}
}

func WithUsersStateMachine(sm UserStateMachine) UsersOption {
	return func(u *users) {
		u.stateMachine = sm
	}
}

func (a *users) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.FindByIDTx(ctx, a.db, id)
}

func (a *users) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"id": id.String(),
				})
		}
		return nil, err
	}
	return record, nil
}

func (a *users) FindBySource(ctx context.Context, source, sourceID string) (*User, error) {
	return a.FindBySourceTx(ctx, a.db, source, sourceID)
}

// FindBySourceTx matches source_id case insensitive, emails are used as
// source ids for internal identities.
func (a *users) FindBySourceTx(ctx context.Context, tx bun.IDB, source, sourceID string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.source = ?", source).
		Where("LOWER(?TableAlias.source_id) = ?", strings.ToLower(strings.TrimSpace(sourceID))).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"source":    source,
					"source_id": sourceID,
				})
		}
		return nil, err
	}
	return record, nil
}

func (a *users) ListByIDs(ctx context.Context, ids ...uuid.UUID) ([]*User, error) {
	records := []*User{}
	if len(ids) == 0 {
		return records, nil
	}

	err := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.id IN (?)", bun.In(ids)).
		OrderExpr("?TableAlias.created_at ASC").
		Scan(ctx)
	if err != nil && !isRecordNotFound(err) {
		return nil, err
	}
	return records, nil
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *users) Save(ctx context.Context, record *User) error {
	return a.SaveTx(ctx, a.db, record)
}

// SaveTx writes every column of record only if the stored version still
// matches record.Version. On success the version is bumped in place, on a
// mismatch ErrConcurrentModification is returned and record is untouched.
func (a *users) SaveTx(ctx context.Context, tx bun.IDB, record *User) error {
	if record == nil || record.ID == uuid.Nil {
		return repository.NewRecordNotFound()
	}

	expected := record.Version
	record.Version = expected + 1

	res, err := tx.NewUpdate().
		Model(record).
		WherePK().
		Where("version = ?", expected).
		Exec(ctx)
	if err != nil {
		record.Version = expected
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		record.Version = expected
		return err
	}

	if affected == 0 {
		record.Version = expected
		return ErrConcurrentModification
	}

	return nil
}

func (a *users) UpdateStatus(ctx context.Context, id uuid.UUID, status UserStatus, opts ...StatusUpdateOption) (*User, error) {
	return a.UpdateStatusTx(ctx, a.db, id, status, opts...)
}

func (a *users) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status UserStatus, opts ...StatusUpdateOption) (*User, error) {
	record, err := a.FindByIDTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	record.Status = status
	for _, opt := range opts {
		if opt != nil {
			opt(record)
		}
	}

	if err := a.SaveTx(ctx, tx, record); err != nil {
		return nil, err
	}

	return record, nil
}

func (a *users) Archive(ctx context.Context, actor ActorRef, user *User, opts ...TransitionOption) (*User, error) {
	return a.lifecycleMachine().Transition(ctx, actor, user, UserStatusArchived, opts...)
}

// StatusUpdateOption allows callers to mutate the user record before persisting status changes.
type StatusUpdateOption func(*User)

// WithStatusUpdatedAt stamps updated_at during a status transition.
func WithStatusUpdatedAt(at time.Time) StatusUpdateOption {
	return func(u *User) {
		u.UpdatedAt = at
	}
}

// WithSourceID rewrites the source id during a status transition.
func WithSourceID(sourceID string) StatusUpdateOption {
	return func(u *User) {
		u.SourceID = sourceID
	}
}

// WithAnonymizedProfile blanks the personal fields of the record.
func WithAnonymizedProfile() StatusUpdateOption {
	return func(u *User) {
		u.FirstName = "Unknown"
		u.LastName = ""
		u.Email = ""
		u.Picture = ""
	}
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	record.EnsureStatus()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.Version == 0 {
		record.Version = 1
	}

	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}
}

func (a *users) lifecycleMachine() UserStateMachine {
	if a.stateMachine == nil {
		a.stateMachine = NewUserStateMachine(a, a.stateMachineOptions...)
	}
	return a.stateMachine
}
