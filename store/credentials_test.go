package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArtJustine/scheduler-sub001/models"
	"github.com/ArtJustine/scheduler-sub001/store/storetest"
)

func TestCredentialUpsertReplaces(t *testing.T) {
	s := NewCredentialStore(storetest.Open(t))
	ctx := context.Background()

	first := &models.Credential{WorkspaceID: "ws1", Platform: "twitter", AccountID: "1", AccessToken: "a1", Connected: true}
	require.NoError(t, s.Upsert(ctx, first))

	second := &models.Credential{WorkspaceID: "ws1", Platform: "twitter", AccountID: "2", AccessToken: "a2", RefreshToken: "r2", Connected: true}
	require.NoError(t, s.Upsert(ctx, second))
	assert.Equal(t, first.ID, second.ID, "upsert keeps the existing row")

	got, err := s.Find(ctx, "ws1", "twitter")
	require.NoError(t, err)
	assert.Equal(t, "2", got.AccountID)
	assert.Equal(t, "a2", got.AccessToken)
	assert.True(t, got.Usable())

	list, err := s.List(ctx, "ws1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCredentialConnectedNeedsToken(t *testing.T) {
	s := NewCredentialStore(storetest.Open(t))
	err := s.Upsert(context.Background(), &models.Credential{WorkspaceID: "ws1", Platform: "tiktok", Connected: true})
	assert.ErrorIs(t, err, models.ErrConnectedWithoutToken)
}

func TestCredentialDisconnectClearsTokens(t *testing.T) {
	s := NewCredentialStore(storetest.Open(t))
	ctx := context.Background()
	exp := time.Now().Add(time.Hour).UTC()
	require.NoError(t, s.Upsert(ctx, &models.Credential{
		WorkspaceID: "ws1", Platform: "linkedin", AccountID: "m", AccessToken: "a", RefreshToken: "r", ExpiresAt: &exp, Connected: true,
	}))

	require.NoError(t, s.Disconnect(ctx, "ws1", "linkedin"))
	got, err := s.Find(ctx, "ws1", "linkedin")
	require.NoError(t, err)
	assert.False(t, got.Connected)
	assert.Empty(t, got.AccessToken)
	assert.Empty(t, got.RefreshToken)
	assert.Nil(t, got.ExpiresAt)
	assert.Equal(t, "m", got.AccountID, "history is kept")
	assert.False(t, got.Usable())

	assert.ErrorIs(t, s.Disconnect(ctx, "ws1", "youtube"), ErrNotFound)
}

func TestCredentialUpdateToken(t *testing.T) {
	s := NewCredentialStore(storetest.Open(t))
	ctx := context.Background()
	c := &models.Credential{WorkspaceID: "ws1", Platform: "youtube", AccessToken: "old", RefreshToken: "r", Connected: true}
	require.NoError(t, s.Upsert(ctx, c))

	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, s.UpdateToken(ctx, c.ID, "new", "", &exp))

	got, err := s.Find(ctx, "ws1", "youtube")
	require.NoError(t, err)
	assert.Equal(t, "new", got.AccessToken)
	assert.Equal(t, "r", got.RefreshToken)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, exp.Equal(*got.ExpiresAt))

	assert.ErrorIs(t, s.UpdateToken(ctx, c.ID, "", "", nil), models.ErrConnectedWithoutToken)
}

func TestWorkspaceResolve(t *testing.T) {
	s := NewWorkspaceStore(storetest.Open(t))
	ctx := context.Background()

	first := &models.Workspace{OwnerID: "u1", Name: "Personal"}
	require.NoError(t, s.Create(ctx, first))
	second := &models.Workspace{OwnerID: "u1", Name: "Agency"}
	require.NoError(t, s.Create(ctx, second))
	assert.True(t, first.IsDefault)
	assert.False(t, second.IsDefault)

	w, err := s.Resolve(ctx, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, w.ID)

	w, err = s.Resolve(ctx, "u1", second.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, w.ID)

	_, err = s.Resolve(ctx, "u2", second.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := s.ListForOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
}
