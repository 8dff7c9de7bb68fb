package storage

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// MaxAvatarSize caps uploads at 5 MiB.
const MaxAvatarSize = 5 << 20

const avatarExtension = "jpg"

var (
	ErrUnsupportedImageType = errors.New("unsupported image type")
	ErrAvatarTooLarge       = errors.New("avatar exceeds maximum size")
	ErrInvalidAvatarKey     = errors.New("invalid avatar key")
	ErrAvatarNotFound       = errors.New("avatar not found")
)

const (
	MIMEImageJPEG = "image/jpeg"
	MIMEImagePNG  = "image/png"
	MIMEImageGIF  = "image/gif"
)

var allowedImageTypes = []string{MIMEImageJPEG, MIMEImagePNG, MIMEImageGIF}

// IsImageTypeAllowed reports whether contentType is JPEG, PNG or GIF.
func IsImageTypeAllowed(contentType string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	for _, allowed := range allowedImageTypes {
		if mediaType == allowed {
			return true
		}
	}
	return false
}

// AvatarStore keeps profile images in any fiber.Storage, S3 in production.
// Every image lives at {username}/{username}.jpg regardless of its format.
type AvatarStore struct {
	storage fiber.Storage
	baseURL string
}

func NewAvatarStore(storage fiber.Storage, baseURL string) *AvatarStore {
	return &AvatarStore{storage: storage, baseURL: strings.TrimSuffix(baseURL, "/")}
}

func AvatarKey(username string) string {
	return fmt.Sprintf("%s/%s.%s", username, username, avatarExtension)
}

func validUsernameSegment(username string) bool {
	return username != "" && username != "." && username != ".." && !strings.ContainsAny(username, `/\`)
}

// ProfileImageURL is the public address of a stored avatar.
func (s *AvatarStore) ProfileImageURL(username string) string {
	return fmt.Sprintf("%s/user/image/%s/%s.%s", s.baseURL, username, username, avatarExtension)
}

// TemporaryProfileImageURL is the placeholder used until an avatar is uploaded.
func (s *AvatarStore) TemporaryProfileImageURL(username string) string {
	return fmt.Sprintf("%s/user/image/profile/%s", s.baseURL, username)
}

// Save stores the image and returns its public URL. Both the declared
// content type and the sniffed one must be an allowed image type.
func (s *AvatarStore) Save(username, contentType string, r io.Reader) (string, error) {
	if !validUsernameSegment(username) {
		return "", ErrInvalidAvatarKey
	}
	if !IsImageTypeAllowed(contentType) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedImageType, contentType)
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxAvatarSize+1))
	if err != nil {
		return "", fmt.Errorf("read avatar: %w", err)
	}
	if len(data) > MaxAvatarSize {
		return "", ErrAvatarTooLarge
	}
	if sniffed := http.DetectContentType(data); !IsImageTypeAllowed(sniffed) {
		return "", fmt.Errorf("%w: content is %s", ErrUnsupportedImageType, sniffed)
	}

	key := AvatarKey(username)
	if err := s.storage.Delete(key); err != nil {
		return "", fmt.Errorf("remove previous avatar: %w", err)
	}
	if err := s.storage.Set(key, data, 0); err != nil {
		return "", fmt.Errorf("store avatar: %w", err)
	}
	return s.ProfileImageURL(username), nil
}

// Load returns the stored image bytes for {username}/{filename}.
func (s *AvatarStore) Load(username, filename string) ([]byte, error) {
	if !validUsernameSegment(username) || !validUsernameSegment(filename) {
		return nil, ErrInvalidAvatarKey
	}
	data, err := s.storage.Get(username + "/" + filename)
	if err != nil {
		return nil, fmt.Errorf("load avatar: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrAvatarNotFound
	}
	return data, nil
}

func (s *AvatarStore) Delete(username string) error {
	if !validUsernameSegment(username) {
		return ErrInvalidAvatarKey
	}
	return s.storage.Delete(AvatarKey(username))
}

// Rename moves the avatar of oldUsername to newUsername's key and returns
// the new public URL. It returns "" when oldUsername has no stored avatar.
func (s *AvatarStore) Rename(oldUsername, newUsername string) (string, error) {
	if !validUsernameSegment(oldUsername) || !validUsernameSegment(newUsername) {
		return "", ErrInvalidAvatarKey
	}
	if oldUsername == newUsername {
		return s.ProfileImageURL(newUsername), nil
	}

	data, err := s.storage.Get(AvatarKey(oldUsername))
	if err != nil {
		return "", fmt.Errorf("load avatar: %w", err)
	}
	if len(data) == 0 {
		return "", nil
	}
	if err := s.storage.Set(AvatarKey(newUsername), data, 0); err != nil {
		return "", fmt.Errorf("store avatar: %w", err)
	}
	if err := s.storage.Delete(AvatarKey(oldUsername)); err != nil {
		return "", fmt.Errorf("remove previous avatar: %w", err)
	}
	return s.ProfileImageURL(newUsername), nil
}

// ContentType sniffs a stored avatar for serving.
func ContentType(data []byte) string {
	ct := http.DetectContentType(data)
	if IsImageTypeAllowed(ct) {
		return ct
	}
	return MIMEImageJPEG
}
