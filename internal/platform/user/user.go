package user

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"supportportal/internal/auth"
	"supportportal/internal/database"
	"supportportal/internal/platform/loginattempt"
	"supportportal/internal/platform/storage"
	"supportportal/pkg/utils"
)

const (
	PasswordLength = 10
	UserIDLength   = 10
)

// Store is the identity store. Lookups return a nil user, not an error, when
// nothing matches. Create and Save must enforce unique username and email
// and report conflicts as *database.ConstraintError.
//
// Save writes the profile columns of an account edit. The Update methods and
// the lock transitions write only the columns they name, so none of them
// reverts a concurrent change to the password or the login dates.
// They return database.ErrNotFound when id no longer exists. The lock
// transitions are conditional and report whether they applied.
type Store interface {
	FindByUsername(ctx context.Context, username string) (*database.User, error)
	FindByEmail(ctx context.Context, email string) (*database.User, error)
	FindByID(ctx context.Context, id int64) (*database.User, error)
	Create(ctx context.Context, user *database.User) error
	Save(ctx context.Context, user *database.User) error
	UpdateLoginDates(ctx context.Context, id int64, last time.Time, display *time.Time) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
	UpdateProfileImageURL(ctx context.Context, id int64, url string) error
	UpdateLockState(ctx context.Context, id int64, nonLocked, autoLocked bool) error
	LockAutomatically(ctx context.Context, id int64) (bool, error)
	ReopenAutoLocked(ctx context.Context, id int64) (bool, error)
	DeleteByID(ctx context.Context, id int64) error
}

type Mailer interface {
	SendNewPasswordEmail(ctx context.Context, firstName, password, email string) error
}

type AvatarStore interface {
	Save(username, contentType string, r io.Reader) (string, error)
	Rename(oldUsername, newUsername string) (string, error)
	Delete(username string) error
	ProfileImageURL(username string) string
	TemporaryProfileImageURL(username string) string
}

// ProfileImage is an uploaded avatar, already opened by the caller.
type ProfileImage struct {
	ContentType string
	Body        io.Reader
}

type NewUserInput struct {
	FirstName    string
	LastName     string
	Username     string
	Email        string
	Role         string
	Enabled      bool
	NonLocked    bool
	ProfileImage *ProfileImage
}

type UpdateUserInput struct {
	FirstName    string
	LastName     string
	Username     string
	Email        string
	Role         string
	Enabled      bool
	NonLocked    bool
	ProfileImage *ProfileImage
}

type UserService struct {
	store   Store
	tracker loginattempt.Tracker
	mailer  Mailer
	avatars AvatarStore
	now     func() time.Time
}

func NewService(store Store, tracker loginattempt.Tracker, mailer Mailer, avatars AvatarStore) *UserService {
	return &UserService{
		store:   store,
		tracker: tracker,
		mailer:  mailer,
		avatars: avatars,
		now:     time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Authenticate runs the login state machine for one attempt. A wrong
// password counts towards the lockout threshold; the attempt that reaches it
// still reports ErrInvalidCredentials and locks the account for the next one.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*database.User, error) {
	username = strings.TrimSpace(username)

	user, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}

	if err := s.validateLoginAttempt(ctx, user); err != nil {
		return nil, err
	}
	if user.Locked() {
		return nil, ErrAccountLocked
	}
	if !user.Enabled {
		return nil, ErrAccountDisabled
	}

	if !utils.VerifyPassword(password, user.PasswordHash) {
		count, err := s.tracker.RecordFailure(ctx, user.Username)
		if err != nil {
			return nil, fmt.Errorf("record login failure: %w", err)
		}
		if count >= s.tracker.MaxAttempts() {
			locked, err := s.store.LockAutomatically(ctx, user.ID)
			if err != nil {
				return nil, err
			}
			if locked {
				log.Warn().Str("username", user.Username).Int("failed_attempts", count).Msg("Account locked after repeated login failures")
			}
		}
		return nil, ErrInvalidCredentials
	}

	if err := s.tracker.Evict(ctx, user.Username); err != nil {
		return nil, fmt.Errorf("reset login attempts: %w", err)
	}

	now := s.now()
	if err := s.store.UpdateLoginDates(ctx, user.ID, now, user.LastLoginDate); err != nil {
		return nil, s.missing(err, user.Username)
	}
	user.LastLoginDateDisplay = user.LastLoginDate
	user.LastLoginDate = &now

	return user, nil
}

// validateLoginAttempt reconciles the persisted lock flag with the tracker.
// An open account whose tracker entry crossed the threshold is locked. An
// automatically locked account whose entry was evicted or expired is
// reopened. Accounts locked by an operator stay locked.
func (s *UserService) validateLoginAttempt(ctx context.Context, user *database.User) error {
	exceeded, err := s.tracker.HasExceededMaxAttempts(ctx, user.Username)
	if err != nil {
		return fmt.Errorf("check login attempts: %w", err)
	}

	var applied, locking bool
	switch {
	case user.NonLocked && exceeded:
		locking = true
		applied, err = s.store.LockAutomatically(ctx, user.ID)
	case user.AutoLocked && !exceeded:
		applied, err = s.store.ReopenAutoLocked(ctx, user.ID)
	default:
		return nil
	}
	if err != nil {
		return err
	}

	if !applied {
		// The lock state moved underneath us; continue with the stored record.
		fresh, err := s.store.FindByID(ctx, user.ID)
		if err != nil {
			return err
		}
		if fresh == nil {
			return fmt.Errorf("%w: %s", ErrUserNotFound, user.Username)
		}
		*user = *fresh
		return nil
	}

	user.NonLocked = !locking
	user.AutoLocked = locking
	log.Info().Str("username", user.Username).Bool("locked", user.Locked()).Msg("Account lock state reassessed")
	return nil
}

// missing maps a write against a deleted record to ErrUserNotFound.
func (s *UserService) missing(err error, username string) error {
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	return err
}

// Unlock clears the failure history of username and reopens the account.
func (s *UserService) Unlock(ctx context.Context, username string) (*database.User, error) {
	user, err := s.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := s.tracker.Evict(ctx, user.Username); err != nil {
		return nil, fmt.Errorf("reset login attempts: %w", err)
	}
	if user.NonLocked {
		return user, nil
	}

	if err := s.store.UpdateLockState(ctx, user.ID, true, false); err != nil {
		return nil, s.missing(err, user.Username)
	}
	user.NonLocked = true
	user.AutoLocked = false
	log.Info().Str("username", user.Username).Msg("Account unlocked")
	return user, nil
}

// ValidateNewUsernameAndEmail is the uniqueness pre-check for create and
// update. With an empty currentUsername it guards a create and returns a
// nil user. Otherwise it returns the current record, and the new values may
// equal the record's own. Empty newUsername or newEmail skip that lookup.
//
// The check races with concurrent writers; the store's unique constraints
// are authoritative and persist() maps their violations to the same errors.
func (s *UserService) ValidateNewUsernameAndEmail(ctx context.Context, currentUsername, newUsername, newEmail string) (*database.User, error) {
	var current *database.User
	if currentUsername != "" {
		var err error
		current, err = s.store.FindByUsername(ctx, currentUsername)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, currentUsername)
		}
	}

	if newUsername != "" {
		byUsername, err := s.store.FindByUsername(ctx, newUsername)
		if err != nil {
			return nil, err
		}
		if byUsername != nil && (current == nil || byUsername.ID != current.ID) {
			return nil, ErrUsernameExists
		}
	}

	if newEmail != "" {
		byEmail, err := s.store.FindByEmail(ctx, newEmail)
		if err != nil {
			return nil, err
		}
		if byEmail != nil && (current == nil || byEmail.ID != current.ID) {
			return nil, ErrEmailExists
		}
	}

	return current, nil
}

// translateConstraint maps a late unique violation to the pre-check errors.
func translateConstraint(err error) error {
	var constraintErr *database.ConstraintError
	if !errors.As(err, &constraintErr) {
		return err
	}
	switch constraintErr.Constraint {
	case database.ConstraintUsername:
		return ErrUsernameExists
	case database.ConstraintEmail:
		return ErrEmailExists
	}
	return fmt.Errorf("%w: %w", database.ErrStorage, err)
}

func (s *UserService) persist(ctx context.Context, user *database.User, create bool) error {
	var err error
	if create {
		err = s.store.Create(ctx, user)
	} else {
		err = s.store.Save(ctx, user)
	}
	if err != nil {
		return translateConstraint(err)
	}
	return nil
}

// Register signs up a self-service account with ROLE_USER. The generated
// password is mailed, never stored in plain text.
func (s *UserService) Register(ctx context.Context, firstName, lastName, username, email string) (*database.User, error) {
	return s.create(ctx, NewUserInput{
		FirstName: firstName,
		LastName:  lastName,
		Username:  username,
		Email:     email,
		Role:      auth.RoleUser.String(),
		Enabled:   true,
		NonLocked: true,
	})
}

// AddNewUser is the operator variant of Register with an explicit role,
// account flags and an optional avatar.
func (s *UserService) AddNewUser(ctx context.Context, in NewUserInput) (*database.User, error) {
	return s.create(ctx, in)
}

func (s *UserService) create(ctx context.Context, in NewUserInput) (*database.User, error) {
	username := strings.TrimSpace(in.Username)
	email := normalizeEmail(in.Email)
	if username == "" || email == "" {
		return nil, fmt.Errorf("%w: username and email are required", ErrInvalidInput)
	}

	role, err := auth.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}
	if in.ProfileImage != nil && !storage.IsImageTypeAllowed(in.ProfileImage.ContentType) {
		return nil, fmt.Errorf("%w: %s", storage.ErrUnsupportedImageType, in.ProfileImage.ContentType)
	}

	if _, err := s.ValidateNewUsernameAndEmail(ctx, "", username, email); err != nil {
		return nil, err
	}

	password := utils.GenerateRandomString(PasswordLength)
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &database.User{
		UserID:          utils.GenerateRandomNumeric(UserIDLength),
		FirstName:       strings.TrimSpace(in.FirstName),
		LastName:        strings.TrimSpace(in.LastName),
		Username:        username,
		Email:           email,
		PasswordHash:    hash,
		ProfileImageURL: s.avatars.TemporaryProfileImageURL(username),
		JoinDate:        s.now(),
		Role:            role.String(),
		Authorities:     role.Authorities(),
		Enabled:         in.Enabled,
		NonLocked:       in.NonLocked,
	}

	if err := s.persist(ctx, user, true); err != nil {
		return nil, err
	}

	log.Info().Str("username", user.Username).Str("user_id", user.UserID).Str("role", user.Role).Msg("User created")

	if err := s.mailer.SendNewPasswordEmail(ctx, user.FirstName, password, user.Email); err != nil {
		return nil, err
	}

	if in.ProfileImage != nil {
		if err := s.saveProfileImage(ctx, user, in.ProfileImage); err != nil {
			log.Warn().Err(err).Str("username", user.Username).Msg("Failed to store profile image for new user")
		}
	}

	return user, nil
}

// UpdateUser re-validates uniqueness against the new username and email,
// excluding the account itself, then applies every field of in.
func (s *UserService) UpdateUser(ctx context.Context, currentUsername string, in UpdateUserInput) (*database.User, error) {
	username := strings.TrimSpace(in.Username)
	email := normalizeEmail(in.Email)
	if username == "" || email == "" {
		return nil, fmt.Errorf("%w: username and email are required", ErrInvalidInput)
	}

	role, err := auth.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}

	user, err := s.ValidateNewUsernameAndEmail(ctx, currentUsername, username, email)
	if err != nil {
		return nil, err
	}

	previousUsername := user.Username
	storedAvatar := user.ProfileImageURL == s.avatars.ProfileImageURL(previousUsername)
	if user.ProfileImageURL == s.avatars.TemporaryProfileImageURL(previousUsername) {
		user.ProfileImageURL = s.avatars.TemporaryProfileImageURL(username)
	}

	user.FirstName = strings.TrimSpace(in.FirstName)
	user.LastName = strings.TrimSpace(in.LastName)
	user.Username = username
	user.Email = email
	user.Role = role.String()
	user.Authorities = role.Authorities()
	user.Enabled = in.Enabled

	unlocking := in.NonLocked && user.Locked()
	user.NonLocked = in.NonLocked
	user.AutoLocked = false

	if err := s.persist(ctx, user, false); err != nil {
		return nil, s.missing(err, previousUsername)
	}

	if unlocking || previousUsername != username {
		if err := s.tracker.Evict(ctx, previousUsername); err != nil {
			log.Warn().Err(err).Str("username", previousUsername).Msg("Failed to reset login attempts")
		}
	}

	if storedAvatar && previousUsername != username {
		if err := s.moveProfileImage(ctx, user, previousUsername, in.ProfileImage != nil); err != nil {
			log.Warn().Err(err).Str("username", username).Str("previous_username", previousUsername).Msg("Failed to move profile image")
		}
	}

	if in.ProfileImage != nil {
		if err := s.saveProfileImage(ctx, user, in.ProfileImage); err != nil {
			return nil, err
		}
	}

	return user, nil
}

// moveProfileImage makes the stored avatar follow a rename. A replacement
// upload only needs the old object removed. Without a stored object the
// account falls back to the placeholder.
func (s *UserService) moveProfileImage(ctx context.Context, user *database.User, previousUsername string, replaced bool) error {
	if replaced {
		return s.avatars.Delete(previousUsername)
	}

	url, err := s.avatars.Rename(previousUsername, user.Username)
	if err != nil {
		return err
	}
	if url == "" {
		url = s.avatars.TemporaryProfileImageURL(user.Username)
	}
	if err := s.store.UpdateProfileImageURL(ctx, user.ID, url); err != nil {
		return s.missing(err, user.Username)
	}
	user.ProfileImageURL = url
	return nil
}

// UpdateProfileImage replaces the avatar of username.
func (s *UserService) UpdateProfileImage(ctx context.Context, username string, image *ProfileImage) (*database.User, error) {
	if image == nil {
		return nil, fmt.Errorf("%w: profile image is required", ErrInvalidInput)
	}

	user, err := s.ValidateNewUsernameAndEmail(ctx, username, "", "")
	if err != nil {
		return nil, err
	}

	if err := s.saveProfileImage(ctx, user, image); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) saveProfileImage(ctx context.Context, user *database.User, image *ProfileImage) error {
	url, err := s.avatars.Save(user.Username, image.ContentType, image.Body)
	if err != nil {
		return err
	}

	if err := s.store.UpdateProfileImageURL(ctx, user.ID, url); err != nil {
		return s.missing(err, user.Username)
	}
	user.ProfileImageURL = url

	log.Info().Str("username", user.Username).Msg("Profile image saved")
	return nil
}

// ResetPassword replaces the password of the account owning email with a
// generated one and mails it. The mail only goes out once the new hash is
// persisted, so a failed save never leaks a password that does not work.
func (s *UserService) ResetPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("%w: %s", ErrEmailNotFound, email)
	}

	password := utils.GenerateRandomString(PasswordLength)
	hash, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.store.UpdatePassword(ctx, user.ID, hash); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrEmailNotFound, email)
		}
		return err
	}
	user.PasswordHash = hash

	if err := s.tracker.Evict(ctx, user.Username); err != nil {
		log.Warn().Err(err).Str("username", user.Username).Msg("Failed to reset login attempts")
	}

	log.Info().Str("username", user.Username).Msg("Password reset")

	return s.mailer.SendNewPasswordEmail(ctx, user.FirstName, password, user.Email)
}

func (s *UserService) DeleteUser(ctx context.Context, id int64) error {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("%w: id %d", ErrUserNotFound, id)
	}

	if err := s.store.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("%w: id %d", ErrUserNotFound, id)
		}
		return err
	}

	if err := s.tracker.Evict(ctx, user.Username); err != nil {
		log.Warn().Err(err).Str("username", user.Username).Msg("Failed to reset login attempts")
	}
	if err := s.avatars.Delete(user.Username); err != nil {
		log.Warn().Err(err).Str("username", user.Username).Msg("Failed to delete profile image")
	}

	log.Info().Str("username", user.Username).Int64("id", id).Msg("User deleted")
	return nil
}

func (s *UserService) FindByUsername(ctx context.Context, username string) (*database.User, error) {
	user, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	return user, nil
}

func (s *UserService) FindByEmail(ctx context.Context, email string) (*database.User, error) {
	email = normalizeEmail(email)
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", ErrEmailNotFound, email)
	}
	return user, nil
}
