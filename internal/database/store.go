package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// UserStore is the gorm backed identity store. Every call runs under its own
// timeout derived from the caller's context.
type UserStore struct {
	db      *gorm.DB
	timeout time.Duration
}

func NewUserStore(db *gorm.DB, timeout time.Duration) *UserStore {
	return &UserStore{db: db, timeout: timeout}
}

func (s *UserStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *UserStore) findOne(ctx context.Context, op, query string, arg any) (*User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var user User
	result := s.db.WithContext(ctx).First(&user, query, arg)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storageError(op, result.Error)
	}
	return &user, nil
}

func (s *UserStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	return s.findOne(ctx, "find user by username", "username = ?", username)
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.findOne(ctx, "find user by email", "email = ?", email)
}

func (s *UserStore) FindByID(ctx context.Context, id int64) (*User, error) {
	return s.findOne(ctx, "find user by id", "id = ?", id)
}

func (s *UserStore) Create(ctx context.Context, user *User) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return translateWriteError("create user", err)
	}
	return nil
}

// profileColumns are the columns an account edit owns. The password, login
// dates and immutable identifiers have their own writers.
var profileColumns = []string{
	"first_name", "last_name", "username", "email", "profile_image_url",
	"role", "authorities", "enabled", "non_locked", "auto_locked",
}

// Save writes the profile columns of an existing user.
func (s *UserStore) Save(ctx context.Context, user *User) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result := s.db.WithContext(ctx).Model(user).Select(profileColumns).Updates(user)
	if result.Error != nil {
		return translateWriteError("save user", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// update writes only columns on the user with id, narrowed further by the
// optional guard condition. It reports how many rows matched.
func (s *UserStore) update(ctx context.Context, op string, id int64, columns map[string]any, guard ...any) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", id)
	if len(guard) > 0 {
		tx = tx.Where(guard[0], guard[1:]...)
	}
	result := tx.Updates(columns)
	if result.Error != nil {
		return 0, translateWriteError(op, result.Error)
	}
	return result.RowsAffected, nil
}

func (s *UserStore) updateExisting(ctx context.Context, op string, id int64, columns map[string]any) error {
	n, err := s.update(ctx, op, id, columns)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateLoginDates records a successful login. display is the previous
// last login and may be nil.
func (s *UserStore) UpdateLoginDates(ctx context.Context, id int64, last time.Time, display *time.Time) error {
	return s.updateExisting(ctx, "update login dates", id, map[string]any{
		"last_login_date":         last,
		"last_login_date_display": display,
	})
}

func (s *UserStore) UpdatePassword(ctx context.Context, id int64, hash string) error {
	return s.updateExisting(ctx, "update password", id, map[string]any{
		"password": hash,
	})
}

func (s *UserStore) UpdateProfileImageURL(ctx context.Context, id int64, url string) error {
	return s.updateExisting(ctx, "update profile image url", id, map[string]any{
		"profile_image_url": url,
	})
}

// UpdateLockState sets both lock columns unconditionally.
func (s *UserStore) UpdateLockState(ctx context.Context, id int64, nonLocked, autoLocked bool) error {
	return s.updateExisting(ctx, "update lock state", id, map[string]any{
		"non_locked":  nonLocked,
		"auto_locked": autoLocked,
	})
}

// LockAutomatically locks an open account. It reports false when the
// account was already locked or no longer exists.
func (s *UserStore) LockAutomatically(ctx context.Context, id int64) (bool, error) {
	n, err := s.update(ctx, "lock user", id, map[string]any{
		"non_locked":  false,
		"auto_locked": true,
	}, "non_locked = ?", true)
	return n > 0, err
}

// ReopenAutoLocked lifts an automatic lock. Operator locks are left alone
// and reported as false.
func (s *UserStore) ReopenAutoLocked(ctx context.Context, id int64) (bool, error) {
	n, err := s.update(ctx, "reopen user", id, map[string]any{
		"non_locked":  true,
		"auto_locked": false,
	}, "auto_locked = ?", true)
	return n > 0, err
}

func (s *UserStore) DeleteByID(ctx context.Context, id int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result := s.db.WithContext(ctx).Delete(&User{}, id)
	if result.Error != nil {
		return storageError("delete user", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
