package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/internal/workout"
	"github.com/2beens/gymtracker/pkg"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultTTL       = 24 * 7 * time.Hour
	sessionKeyPrefix = "tracker-session||"
	tokensSetKey     = "tracker-sessions"
	tokenLength      = 35
)

var (
	ErrInvalidAccessCode = errors.New("invalid access code")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionExpired    = errors.New("session expired")
)

type storedSession struct {
	User      workout.User `json:"user"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Service keeps login sessions in redis.
type Service struct {
	authenticator Authenticator
	redisClient   *redis.Client
	ttl           time.Duration
	// ability to inject random string generator func for tokens (for unit and dev testing)
	RandStringFunc func(s int) (string, error)
	NowFunc        func() time.Time
}

func NewAuthService(
	authenticator Authenticator,
	ttl time.Duration,
	redisClient *redis.Client,
) *Service {
	return &Service{
		authenticator:  authenticator,
		ttl:            ttl,
		redisClient:    redisClient,
		RandStringFunc: pkg.GenerateRandomString,
		NowFunc:        time.Now,
	}
}

// Login creates a session for the owner of the access code.
func (as *Service) Login(ctx context.Context, accessCode string) (_ *Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "auth.login")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	user, err := as.authenticator.Authenticate(ctx, accessCode)
	if errors.Is(err, workout.ErrUserNotFound) {
		return nil, ErrInvalidAccessCode
	}
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	token, err := as.RandStringFunc(tokenLength)
	if err != nil {
		return nil, err
	}

	session := &Session{
		Token:     token,
		User:      *user,
		CreatedAt: as.NowFunc(),
	}
	sessionJson, err := json.Marshal(storedSession{User: session.User, CreatedAt: session.CreatedAt})
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}

	sessionKey := sessionKeyPrefix + token
	if err := as.redisClient.Set(ctx, sessionKey, sessionJson, 0).Err(); err != nil {
		return nil, err
	}

	// add token to list of sessions
	if err := as.redisClient.SAdd(ctx, tokensSetKey, token).Err(); err != nil {
		return nil, err
	}

	return session, nil
}

// Restore returns the session of a token, failing for unknown and expired ones.
func (as *Service) Restore(ctx context.Context, token string) (*Session, error) {
	session, err := as.get(ctx, token)
	if err != nil {
		return nil, err
	}
	if as.expired(session) {
		return nil, ErrSessionExpired
	}
	return session, nil
}

// Logout ends the session and returns it, so the caller can tear down the user's state.
func (as *Service) Logout(ctx context.Context, token string) (*Session, error) {
	session, err := as.get(ctx, token)
	if err != nil {
		return nil, err
	}

	if err := as.remove(ctx, token); err != nil {
		return nil, err
	}

	return session, nil
}

// ScanAndClean will run through all sessions, check the TTL, and clean them if old
func (as *Service) ScanAndClean(ctx context.Context) {
	sessionTokens, err := as.redisClient.SMembers(ctx, tokensSetKey).Result()
	if err != nil {
		log.Errorf("!!! auth service, scan and clean, get sessions: %s", err)
		return
	}

	if len(sessionTokens) == 0 {
		log.Debugln("=> auth service, scan and clean abort, no sessions")
		return
	}

	log.Debugf("=> auth service, scan and clean [%d sessions] start ...", len(sessionTokens))
	var toRemove []string
	for _, token := range sessionTokens {
		session, err := as.get(ctx, token)
		switch {
		case errors.Is(err, ErrSessionNotFound):
			toRemove = append(toRemove, token)
		case err != nil:
			log.Errorf("=> auth service, scan and clean token %s: %s", token, err)
		case as.expired(session):
			log.Infof("=>\twill clean the session of user [%s]", session.User.ID)
			toRemove = append(toRemove, token)
		}
	}

	for _, token := range toRemove {
		if err := as.remove(ctx, token); err != nil {
			log.Errorf("=> auth service, clean token: %s", err)
		}
	}
}

func (as *Service) get(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}

	sessionJson, err := as.redisClient.Get(ctx, sessionKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var stored storedSession
	if err := json.Unmarshal(sessionJson, &stored); err != nil {
		// unreadable sessions are as good as gone
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, err)
	}

	return &Session{
		Token:     token,
		User:      stored.User,
		CreatedAt: stored.CreatedAt,
	}, nil
}

func (as *Service) remove(ctx context.Context, token string) error {
	if err := as.redisClient.Del(ctx, sessionKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	// remove token from the list of sessions
	if err := as.redisClient.SRem(ctx, tokensSetKey, token).Err(); err != nil {
		return fmt.Errorf("remove session token: %w", err)
	}
	return nil
}

func (as *Service) expired(session *Session) bool {
	return as.NowFunc().Sub(session.CreatedAt) > as.ttl
}
