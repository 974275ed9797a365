package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/proarc/proarc-api/pkg/auth"
)

// UserStore persists remote-login profiles in the relational tables.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore() *UserStore {
	return &UserStore{db: DB}
}

func (s *UserStore) FindUser(ctx context.Context, username string) (*auth.User, error) {
	var row User
	err := s.db.WithContext(ctx).First(&row, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", auth.ErrUserNotFound, username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", username, err)
	}

	u := &auth.User{
		Username: row.Username,
		Name:     row.Name,
		Surname:  row.Surname,
		Email:    row.Email,
	}

	var m Membership
	err = s.db.WithContext(ctx).First(&m, "username = ?", username).Error
	if err == nil {
		u.Group = m.GroupName
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load membership of %s: %w", username, err)
	}
	return u, nil
}

func (s *UserStore) CreateUser(ctx context.Context, u *auth.User) error {
	row := User{
		Username: u.Username,
		Name:     u.Name,
		Surname:  u.Surname,
		Email:    u.Email,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "surname", "email", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", u.Username, err)
	}
	return nil
}

// EnsureGroup creates the group for the producer code when missing. The
// created flag tells the caller to grant the baseline permission.
func (s *UserStore) EnsureGroup(ctx context.Context, producer string) (string, bool, error) {
	name := "remote_" + producer

	var existing Group
	err := s.db.WithContext(ctx).First(&existing, "producer = ?", producer).Error
	if err == nil {
		return existing.Name, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, fmt.Errorf("failed to look up group for %s: %w", producer, err)
	}

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&Group{Name: name, Producer: producer})
	if res.Error != nil {
		return "", false, fmt.Errorf("failed to create group %s: %w", name, res.Error)
	}
	// a racing login may have inserted the group first
	return name, res.RowsAffected > 0, nil
}

func (s *UserStore) GrantPermission(ctx context.Context, group, permission string) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "group_name"}, {Name: "action"}},
		DoNothing: true,
	}).Create(&Permission{GroupName: group, Action: permission}).Error
	if err != nil {
		return fmt.Errorf("failed to grant %s to %s: %w", permission, group, err)
	}
	return nil
}

func (s *UserStore) AddMember(ctx context.Context, username, group string) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}, {Name: "group_name"}},
		DoNothing: true,
	}).Create(&Membership{Username: username, GroupName: group}).Error
	if err != nil {
		return fmt.Errorf("failed to add %s to %s: %w", username, group, err)
	}
	return nil
}
