package repository

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	management "github.com/robertoporfiro/gravitee-management-rest-api"
	"github.com/uptrace/bun"
)

type index struct {
	name    string
	model   any
	unique  bool
	columns []string
}

var models = []any{
	(*management.User)(nil),
	(*management.Invitation)(nil),
	(*management.Membership)(nil),
	(*AuditRecord)(nil),
}

var indexes = []index{
	{name: "ux_users_source", model: (*management.User)(nil), unique: true, columns: []string{"source", "source_id"}},
	{name: "ix_invitations_email", model: (*management.Invitation)(nil), columns: []string{"email"}},
	{name: "ux_memberships_grant", model: (*management.Membership)(nil), unique: true,
		columns: []string{"user_id", "reference_type", "reference_id", "role_scope"}},
	{name: "ix_audits_object", model: (*AuditRecord)(nil), columns: []string{"object_type", "object_id"}},
}

// Migrate creates the tables and indexes that do not exist yet.
func Migrate(ctx context.Context, db bun.IDB) error {
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create table")
		}
	}

	for _, idx := range indexes {
		q := db.NewCreateIndex().
			Model(idx.model).
			IfNotExists().
			Index(idx.name).
			Column(idx.columns...)
		if idx.unique {
			q = q.Unique()
		}
		if _, err := q.Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create index").
				WithMetadata(map[string]any{"index": idx.name})
		}
	}

	return nil
}
