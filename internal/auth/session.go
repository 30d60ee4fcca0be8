package auth

import (
	"context"
	"time"

	"github.com/2beens/gymtracker/internal/workout"
)

// Session is the explicit "who is logged in" object passed down with each request.
type Session struct {
	Token     string       `json:"-"`
	User      workout.User `json:"user"`
	CreatedAt time.Time    `json:"createdAt"`
}

type sessionContextKey struct{}

func NewContext(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, session)
}

func FromContext(ctx context.Context) (*Session, bool) {
	session, ok := ctx.Value(sessionContextKey{}).(*Session)
	return session, ok && session != nil
}
