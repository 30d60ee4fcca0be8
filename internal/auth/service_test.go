package auth

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/2beens/gymtracker/internal/workout"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var testUser = workout.User{
	ID:         "user-1",
	Name:       "Test User",
	AccessCode: "secret-code",
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// INFO: https://github.com/go-redis/redis/issues/1029
		goleak.IgnoreTopFunction(
			"github.com/go-redis/redis/v8/internal/pool.(*ConnPool).reaper",
		),
	)
}

func sessionJson(t *testing.T, createdAt time.Time) []byte {
	t.Helper()
	data, err := json.Marshal(storedSession{User: testUser, CreatedAt: createdAt})
	require.NoError(t, err)
	return data
}

func newTestService(t *testing.T, ttl time.Duration, now time.Time) (*Service, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	t.Cleanup(func() {
		_ = db.Close()
	})

	authService := NewAuthService(NewDirectory([]workout.User{testUser}), ttl, db)
	authService.RandStringFunc = func(s int) (string, error) {
		return "test_token", nil
	}
	authService.NowFunc = func() time.Time {
		return now
	}
	return authService, mock
}

func TestAuthService_Login(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	authService, mock := newTestService(t, time.Hour, now)
	ctx := context.Background()

	mock.ExpectSet(sessionKeyPrefix+"test_token", sessionJson(t, now), 0).SetVal("OK")
	mock.ExpectSAdd(tokensSetKey, "test_token").SetVal(1)

	session, err := authService.Login(ctx, " secret-code ")
	require.NoError(t, err)
	assert.Equal(t, "test_token", session.Token)
	assert.Equal(t, testUser, session.User)
	assert.Equal(t, now, session.CreatedAt)

	// wrong and empty codes never touch redis
	session, err = authService.Login(ctx, "invalid-code")
	assert.ErrorIs(t, err, ErrInvalidAccessCode)
	assert.Nil(t, session)
	_, err = authService.Login(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidAccessCode)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthService_LoginRedisError(t *testing.T) {
	now := time.Now()
	authService, mock := newTestService(t, time.Hour, now)

	mock.ExpectSet(sessionKeyPrefix+"test_token", sessionJson(t, now), 0).SetErr(errors.New("redis down"))

	session, err := authService.Login(context.Background(), "secret-code")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidAccessCode)
	assert.Nil(t, session)
}

func TestAuthService_Restore(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	authService, mock := newTestService(t, time.Hour, now)
	ctx := context.Background()

	mock.ExpectGet(sessionKeyPrefix + "fresh").SetVal(string(sessionJson(t, now.Add(-time.Minute))))
	session, err := authService.Restore(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, "fresh", session.Token)
	assert.Equal(t, testUser.ID, session.User.ID)

	mock.ExpectGet(sessionKeyPrefix + "old").SetVal(string(sessionJson(t, now.Add(-2*time.Hour))))
	_, err = authService.Restore(ctx, "old")
	assert.ErrorIs(t, err, ErrSessionExpired)

	mock.ExpectGet(sessionKeyPrefix + "unknown").RedisNil()
	_, err = authService.Restore(ctx, "unknown")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	mock.ExpectGet(sessionKeyPrefix + "garbage").SetVal("1704110400")
	_, err = authService.Restore(ctx, "garbage")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = authService.Restore(ctx, "")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthService_Logout(t *testing.T) {
	now := time.Now()
	authService, mock := newTestService(t, time.Hour, now)
	ctx := context.Background()

	mock.ExpectGet(sessionKeyPrefix + "token1").SetVal(string(sessionJson(t, now)))
	mock.ExpectDel(sessionKeyPrefix + "token1").SetVal(1)
	mock.ExpectSRem(tokensSetKey, "token1").SetVal(1)

	session, err := authService.Logout(ctx, "token1")
	require.NoError(t, err)
	assert.Equal(t, testUser.ID, session.User.ID)

	mock.ExpectGet(sessionKeyPrefix + "token1").RedisNil()
	_, err = authService.Logout(ctx, "token1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthService_ScanAndClean(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	authService, mock := newTestService(t, time.Hour, now)

	t1, t2, t3 := "token1", "token2", "token3"
	mock.ExpectSMembers(tokensSetKey).SetVal([]string{t1, t2, t3})
	mock.ExpectGet(sessionKeyPrefix + t1).SetVal(string(sessionJson(t, now.Add(-2*time.Hour))))
	mock.ExpectGet(sessionKeyPrefix + t2).SetVal(string(sessionJson(t, now)))
	mock.ExpectGet(sessionKeyPrefix + t3).RedisNil()
	// expired t1 and dangling t3 are removed, t2 stays
	mock.ExpectDel(sessionKeyPrefix + t1).SetVal(1)
	mock.ExpectSRem(tokensSetKey, t1).SetVal(1)
	mock.ExpectDel(sessionKeyPrefix + t3).SetVal(0)
	mock.ExpectSRem(tokensSetKey, t3).SetVal(1)

	authService.ScanAndClean(context.Background())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDirectory_Authenticate(t *testing.T) {
	directory := NewDirectory([]workout.User{
		testUser,
		{ID: "user-2", Name: "Padded", AccessCode: "  padded  "},
		{ID: "user-3", Name: "No Code", AccessCode: " "},
	})
	ctx := context.Background()

	user, err := directory.Authenticate(ctx, "secret-code")
	require.NoError(t, err)
	assert.Equal(t, testUser, *user)

	user, err = directory.Authenticate(ctx, "padded ")
	require.NoError(t, err)
	assert.Equal(t, "user-2", user.ID)

	for _, code := range []string{"", " ", "SECRET-CODE", "secret"} {
		_, err = directory.Authenticate(ctx, code)
		assert.ErrorIs(t, err, workout.ErrUserNotFound, code)
	}
}
