package auth

import (
	"context"
	"strings"

	"github.com/2beens/gymtracker/internal/workout"
)

// Authenticator resolves an access code to its user.
// Unknown codes are reported with workout.ErrUserNotFound.
type Authenticator interface {
	Authenticate(ctx context.Context, accessCode string) (*workout.User, error)
}

// Directory authenticates against a fixed list of users, used in local storage mode.
type Directory struct {
	users map[string]workout.User
}

func NewDirectory(users []workout.User) *Directory {
	d := &Directory{
		users: make(map[string]workout.User, len(users)),
	}
	for _, u := range users {
		code := strings.TrimSpace(u.AccessCode)
		if code == "" {
			continue
		}
		u.AccessCode = code
		d.users[code] = u
	}
	return d
}

func (d *Directory) Authenticate(_ context.Context, accessCode string) (*workout.User, error) {
	accessCode = strings.TrimSpace(accessCode)
	if accessCode == "" {
		return nil, workout.ErrUserNotFound
	}
	user, ok := d.users[accessCode]
	if !ok {
		return nil, workout.ErrUserNotFound
	}
	return &user, nil
}
