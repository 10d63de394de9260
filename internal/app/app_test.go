package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/vaccine-reservation-scheduling/internal/config"
	"github.com/hackgods/vaccine-reservation-scheduling/internal/identity"
	redisclient "github.com/hackgods/vaccine-reservation-scheduling/internal/redis"
	"github.com/hackgods/vaccine-reservation-scheduling/internal/scheduling"
)

func memoryConfig() config.Config {
	return config.Config{
		Store:         config.StoreMemory,
		SessionTTL:    time.Hour,
		LockTTL:       time.Second,
		LockWait:      time.Second,
		TxMaxAttempts: 3,
		BcryptCost:    4,
	}
}

func TestBuild_Memory(t *testing.T) {
	ctx := context.Background()
	a, err := Build(ctx, memoryConfig(), zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Pinger())
	assert.IsType(t, &identity.MemorySessionStore{}, a.Sessions)

	require.NoError(t, a.Identity.Register(ctx, identity.RoleCaregiver, "alice", "pw"))
	sess, err := a.Identity.Login(ctx, identity.RoleCaregiver, "alice", "pw")
	require.NoError(t, err)

	date, err := scheduling.ParseDate("2024-01-10")
	require.NoError(t, err)
	require.NoError(t, a.Scheduling.PublishAvailability(ctx, sess, date))
}

func TestBuild_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig()
	cfg.RedisAddr = mr.Addr()

	ctx := context.Background()
	a, err := Build(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &redisclient.SessionStore{}, a.Sessions)

	token, err := a.Sessions.Create(ctx, identity.Session{Username: "pat", Role: identity.RolePatient})
	require.NoError(t, err)
	assert.True(t, mr.Exists("session:"+token))
}

func TestBuild_RedisUnreachable(t *testing.T) {
	cfg := memoryConfig()
	cfg.RedisAddr = "127.0.0.1:1"

	_, err := Build(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}
