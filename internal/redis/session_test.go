package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/vaccine-reservation-scheduling/internal/identity"
)

func TestSessionStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	store := NewSessionStore(client, time.Hour)

	token, err := store.Create(ctx, identity.Session{Username: "pat", Role: identity.RolePatient})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	sess, err := store.Get(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, &identity.Session{Username: "pat", Role: identity.RolePatient}, sess)

	require.NoError(t, store.Delete(ctx, token))

	_, err = store.Get(ctx, token)
	assert.ErrorIs(t, err, identity.ErrSessionNotFound)
	assert.ErrorIs(t, store.Delete(ctx, token), identity.ErrSessionNotFound)
}

func TestSessionStore_Expires(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	store := NewSessionStore(client, time.Minute)

	token, err := store.Create(ctx, identity.Session{Username: "cg", Role: identity.RoleCaregiver})
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = store.Get(ctx, token)
	assert.ErrorIs(t, err, identity.ErrSessionNotFound)
}

func TestSessionStore_Unreachable(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewSessionStore(client, time.Minute)
	mr.Close()

	_, err := store.Get(context.Background(), "whatever")
	require.Error(t, err)
	assert.NotErrorIs(t, err, identity.ErrSessionNotFound)
}
