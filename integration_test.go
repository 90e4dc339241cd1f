package management_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	management "github.com/robertoporfiro/gravitee-management-rest-api"
	"github.com/robertoporfiro/gravitee-management-rest-api/activitymap"
	"github.com/robertoporfiro/gravitee-management-rest-api/config"
	"github.com/robertoporfiro/gravitee-management-rest-api/repository"
	"github.com/robertoporfiro/gravitee-management-rest-api/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deployment struct {
	ctx      context.Context
	settings *config.Settings
	audits   *repository.AuditStore
	index    *search.Index
	notifier *capturingNotifier
	clock    *testClock
	service  *management.UserService
}

// newDeployment wires the service the way a binary would: settings from the
// environment, a migrated database, audits persisted next to the users.
func newDeployment(t *testing.T) *deployment {
	t.Helper()
	ctx := context.Background()

	settings, err := config.Load("", config.WithEnvironment(map[string]string{
		"MANAGEMENT_SIGNING_KEY": testSigningKey,
		"MANAGEMENT_PORTAL_URL":  "https://portal.example.com",
		"MANAGEMENT_DB_DSN":      fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	}))
	require.NoError(t, err)

	db, err := repository.Open(ctx, settings.Database.Driver, settings.Database.DSN)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, repository.Migrate(ctx, db))

	d := &deployment{
		ctx:      ctx,
		settings: settings,
		index:    search.NewIndex(),
		notifier: &capturingNotifier{},
		clock:    newTestClock(),
	}
	d.audits = repository.NewAuditStore(db, activitymap.WithClock(d.clock.Now))

	repo := repository.NewManager(db, d.audits)
	d.service = management.NewUserService(repo, settings,
		management.WithClock(d.clock.Now),
		management.WithActivitySink(d.audits),
		management.WithSearchIndexer(d.index),
		management.WithNotifier(d.notifier),
	)
	return d
}

func TestLifecycleFinalizePreCreatedIdentity(t *testing.T) {
	d := newDeployment(t)

	u1, err := d.service.Create(d.ctx, management.NewExternalUser{Email: "a@b.com"}, true)
	require.NoError(t, err)

	tok, err := d.service.IssueActionToken(management.NewIdentityFromUser(u1), management.ActionRegistration, "")
	require.NoError(t, err)
	assert.True(t, d.clock.Now().Add(24*time.Hour).Equal(tok.ExpiresAt))
	assert.Equal(t, "https://portal.example.com/#!/registration/confirm/"+tok.Token, tok.URL)

	d.clock.Advance(time.Minute)
	_, err = d.service.CompleteRegistration(d.ctx, tok.Token, "Secret123", "", "")
	require.NoError(t, err)

	records, err := d.audits.ListByObject(d.ctx, activitymap.ObjectTypeUser, u1.ID.String())
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, string(management.ActivityEventUserCreated), rec.Event)
		assert.Equal(t, "ENVIRONMENT", rec.ReferenceType)
	}
	require.NotNil(t, records[1].After)
	assert.True(t, records[1].After.HasPassword)

	hits := d.index.Search("a@b")
	require.Len(t, hits, 1)
	assert.Equal(t, u1.ID, hits[0].ID)

	_, err = d.service.CompleteRegistration(d.ctx, tok.Token, "Secret123", "", "")
	assert.True(t, management.IsIdentityAlreadyFinalized(err))
}

func TestLifecycleGroupInvitation(t *testing.T) {
	d := newDeployment(t)

	invitation, tok, err := d.service.Invite(d.ctx, management.InvitationPayload{
		Email:         "carol@x.com",
		ReferenceType: management.ReferenceGroup,
		ReferenceID:   "g1",
		APIRole:       "API_VIEWER",
	})
	require.NoError(t, err)

	records, err := d.audits.ListByObject(d.ctx, activitymap.ObjectTypeInvitation, invitation.ID.String())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "system", records[0].Actor)

	d.notifier.waitNotification(t, management.TemplateGroupInvitation)

	carol, err := d.service.CompleteRegistration(d.ctx, tok.Token, "Secret123", "Carol", "")
	require.NoError(t, err)

	records, err = d.audits.ListByObject(d.ctx, activitymap.ObjectTypeMembership, carol.ID.String())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "API_VIEWER", records[0].Properties["role_name"])

	hits := d.index.Search("carol")
	require.Len(t, hits, 1)
	assert.Equal(t, "Carol", hits[0].DisplayName)
}

func TestLifecycleDeleteAuditsArchive(t *testing.T) {
	d := newDeployment(t)

	u1, err := d.service.Register(d.ctx, management.NewExternalUser{Email: "a@b.com"})
	require.NoError(t, err)
	require.NoError(t, d.service.Delete(d.ctx, u1.ID))

	records, err := d.audits.ListByObject(d.ctx, activitymap.ObjectTypeUser, u1.ID.String())
	require.NoError(t, err)

	events := make([]string, 0, len(records))
	var statusChange *repository.AuditRecord
	for _, rec := range records {
		events = append(events, rec.Event)
		if rec.Event == string(management.ActivityEventUserStatusChanged) {
			statusChange = rec
		}
	}
	assert.ElementsMatch(t, []string{
		string(management.ActivityEventUserCreated),
		string(management.ActivityEventUserStatusChanged),
		string(management.ActivityEventUserDeleted),
	}, events)
	require.NotNil(t, statusChange)
	assert.Equal(t, "ARCHIVED", statusChange.Properties[activitymap.MetadataKeyToStatus])
	assert.Zero(t, d.index.Len())
}
