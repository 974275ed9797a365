// Package auth authenticates one set of credentials against every
// configured remote service and accepts the user when at least one service
// grants the required role.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/proarc/proarc-api/pkg/remote"
)

// RoleConvertor is the remote role required for access.
const RoleConvertor = "convertor"

// BaselinePermission is granted to a remote group on first creation only.
const BaselinePermission = "proarc.permission.import"

// Status is the terminal outcome of an authentication attempt. The three
// states are mutually exclusive.
type Status string

const (
	// StatusIgnored means required fields were missing; no service was called.
	StatusIgnored Status = "IGNORED"
	// StatusForbidden means every service was tried and none authorized.
	StatusForbidden Status = "FORBIDDEN"
	// StatusAuthenticated means at least one service granted the role.
	StatusAuthenticated Status = "AUTHENTICATED"
)

// Credentials carry the login request.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Producer string `json:"producer"`
}

// User is the local profile.
type User struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Email    string `json:"email"`
	Group    string `json:"group,omitempty"`
}

// Outcome is the authentication result.
type Outcome struct {
	Status Status   `json:"status"`
	User   *User    `json:"user,omitempty"`
	Roles  []string `json:"roles,omitempty"`
}

// ErrUserNotFound is returned by UserStore lookups.
var ErrUserNotFound = errors.New("user not found")

// UserStore persists local profiles and remote groups.
type UserStore interface {
	FindUser(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, u *User) error
	// EnsureGroup creates the remote group keyed by the producer code when
	// missing; created reports whether it was new.
	EnsureGroup(ctx context.Context, producer string) (group string, created bool, err error)
	GrantPermission(ctx context.Context, group, permission string) error
	AddMember(ctx context.Context, username, group string) error
}

// Config selects the fan-out behavior.
type Config struct {
	RequiredRole string
	// OneAuthIsEnough stops probing after the first authorized response;
	// otherwise all services are called to keep group bookkeeping complete.
	OneAuthIsEnough bool
}

// Authenticator runs the multi-service fan-out.
type Authenticator struct {
	services []remote.Client
	users    UserStore
	cfg      Config
}

func New(services []remote.Client, users UserStore, cfg Config) *Authenticator {
	if cfg.RequiredRole == "" {
		cfg.RequiredRole = RoleConvertor
	}
	return &Authenticator{services: services, users: users, cfg: cfg}
}

// Authenticate probes the configured services in declaration order. An
// explicit rejection skips the service; any other service error aborts with
// a configuration failure distinct from rejected credentials.
func (a *Authenticator) Authenticate(ctx context.Context, c Credentials) (Outcome, error) {
	if c.Username == "" || c.Password == "" || c.Producer == "" {
		return Outcome{Status: StatusIgnored}, nil
	}

	var authorized *remote.User
	var roles []string
	for _, svc := range a.services {
		ru, err := svc.Authenticate(ctx, c.Username, c.Password, c.Producer)
		if errors.Is(err, remote.ErrRejected) {
			slog.Debug("Service rejected credentials", "service", svc.ID(), "username", c.Username)
			continue
		}
		if err != nil {
			return Outcome{}, fmt.Errorf("authentication service failure: %w", err)
		}

		roles = append(roles, ru.Roles...)
		if !hasRole(ru.Roles, a.cfg.RequiredRole) {
			continue
		}
		if authorized == nil {
			authorized = ru
		}
		if a.cfg.OneAuthIsEnough {
			break
		}
	}

	if authorized == nil {
		return Outcome{Status: StatusForbidden}, nil
	}

	user, err := a.ensureProfile(ctx, c, authorized)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Status: StatusAuthenticated, User: user, Roles: roles}, nil
}

// ensureProfile creates or reuses the local user and the remote group keyed
// by the producer code. The baseline permission is granted only when the
// group is first created.
func (a *Authenticator) ensureProfile(ctx context.Context, c Credentials, ru *remote.User) (*User, error) {
	group, created, err := a.users.EnsureGroup(ctx, c.Producer)
	if err != nil {
		return nil, fmt.Errorf("cannot ensure remote group: %w", err)
	}
	if created {
		if err := a.users.GrantPermission(ctx, group, BaselinePermission); err != nil {
			return nil, fmt.Errorf("cannot grant baseline permission: %w", err)
		}
		slog.Info("Created remote group", "group", group, "producer", c.Producer)
	}

	user, err := a.users.FindUser(ctx, c.Username)
	if errors.Is(err, ErrUserNotFound) {
		user = &User{
			Username: c.Username,
			Name:     ru.Name,
			Surname:  ru.Surname,
			Email:    ru.Email,
			Group:    group,
		}
		if err := a.users.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("cannot create user profile: %w", err)
		}
		slog.Info("Created local user profile", "username", c.Username)
	} else if err != nil {
		return nil, fmt.Errorf("cannot look up user: %w", err)
	}

	if err := a.users.AddMember(ctx, c.Username, group); err != nil {
		return nil, fmt.Errorf("cannot add group member: %w", err)
	}
	user.Group = group
	return user, nil
}

func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
