package handlers

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"supportportal/internal/auth"
	"supportportal/internal/config"
	"supportportal/internal/platform/storage"
	puser "supportportal/internal/platform/user"
)

const (
	messageEmailSent   = "An email with a new password was sent to: "
	messageUserDeleted = "User deleted successfully"
)

type userForm struct {
	CurrentUsername string `form:"currentUsername"`
	FirstName       string `form:"firstName" validate:"required"`
	LastName        string `form:"lastName" validate:"required"`
	Username        string `form:"username" validate:"required"`
	Email           string `form:"email" validate:"required,email"`
	Role            string `form:"role" validate:"required"`
	IsEnabled       bool   `form:"isEnabled"`
	IsNonLocked     bool   `form:"isNonLocked"`
}

// profileImage returns the optional "profileImage" part of a multipart form.
// The caller must close the returned body.
func profileImage(c *fiber.Ctx) (*puser.ProfileImage, func(), error) {
	header, err := c.FormFile("profileImage")
	if err != nil {
		return nil, func() {}, nil
	}

	file, err := header.Open()
	if err != nil {
		return nil, func() {}, fmt.Errorf("open profile image: %w", err)
	}

	image := &puser.ProfileImage{
		ContentType: header.Header.Get(fiber.HeaderContentType),
		Body:        file,
	}
	return image, func() { file.Close() }, nil
}

func Login(c *fiber.Ctx) error {
	cfg := c.Locals("config").(*config.Config)
	users := c.Locals("users").(*puser.UserService)
	issuer := c.Locals("issuer").(*auth.Issuer)

	type LoginInput struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	var input LoginInput
	if err := c.BodyParser(&input); err != nil {
		return respond(c, fiber.StatusBadRequest, "Invalid input")
	}

	if err := config.Validate.Struct(input); err != nil {
		return respond(c, fiber.StatusBadRequest, validationMessage(err))
	}

	user, err := users.Authenticate(c.UserContext(), input.Username, input.Password)
	if err != nil {
		// Unknown usernames look like a wrong password to the client.
		if errors.Is(err, puser.ErrUserNotFound) {
			err = puser.ErrInvalidCredentials
		}
		return respondError(c, err)
	}

	token, err := issuer.Issue(user)
	if err != nil {
		return respondError(c, err)
	}

	c.Set(cfg.JWTTokenHeader, token)
	return c.JSON(user)
}

func Register(c *fiber.Ctx) error {
	users := c.Locals("users").(*puser.UserService)

	type RegisterInput struct {
		FirstName string `json:"firstName" validate:"required"`
		LastName  string `json:"lastName" validate:"required"`
		Username  string `json:"username" validate:"required"`
		Email     string `json:"email" validate:"required,email"`
	}

	var input RegisterInput
	if err := c.BodyParser(&input); err != nil {
		return respond(c, fiber.StatusBadRequest, "Invalid input")
	}

	if err := config.Validate.Struct(input); err != nil {
		return respond(c, fiber.StatusBadRequest, validationMessage(err))
	}

	user, err := users.Register(c.UserContext(), input.FirstName, input.LastName, input.Username, input.Email)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(user)
}

func AddNewUser(c *fiber.Ctx) error {
	users := c.Locals("users").(*puser.UserService)

	var input userForm
	if err := c.BodyParser(&input); err != nil {
		return respond(c, fiber.StatusBadRequest, "Invalid input")
	}

	if err := config.Validate.Struct(input); err != nil {
		return respond(c, fiber.StatusBadRequest, validationMessage(err))
	}

	image, closeImage, err := profileImage(c)
	if err != nil {
		return respondError(c, err)
	}
	defer closeImage()

	user, err := users.AddNewUser(c.UserContext(), puser.NewUserInput{
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Username:     input.Username,
		Email:        input.Email,
		Role:         input.Role,
		Enabled:      input.IsEnabled,
		NonLocked:    input.IsNonLocked,
		ProfileImage: image,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(user)
}

func UpdateUser(c *fiber.Ctx) error {
	users := c.Locals("users").(*puser.UserService)

	var input userForm
	if err := c.BodyParser(&input); err != nil {
		return respond(c, fiber.StatusBadRequest, "Invalid input")
	}

	if err := config.Validate.Struct(input); err != nil {
		return respond(c, fiber.StatusBadRequest, validationMessage(err))
	}
	if input.CurrentUsername == "" {
		return respond(c, fiber.StatusBadRequest, "Current username is required")
	}

	image, closeImage, err := profileImage(c)
	if err != nil {
		return respondError(c, err)
	}
	defer closeImage()

	user, err := users.UpdateUser(c.UserContext(), input.CurrentUsername, puser.UpdateUserInput{
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Username:     input.Username,
		Email:        input.Email,
		Role:         input.Role,
		Enabled:      input.IsEnabled,
		NonLocked:    input.IsNonLocked,
		ProfileImage: image,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(user)
}

func FindUser(c *fiber.Ctx) error {
	users := c.Locals("users").(*puser.UserService)

	user, err := users.FindByUsername(c.UserContext(), c.Params("username"))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(user)
}

func ResetPassword(c *fiber.Ctx) error {
	users := c.Locals("users").(*puser.UserService)

	email, err := url.PathUnescape(c.Params("email"))
	if err != nil {
		return respond(c, fiber.StatusBadRequest, "Invalid input")
	}

	if err := users.ResetPassword(c.UserContext(), email); err != nil {
		return respondError(c, err)
	}

	return respond(c, fiber.StatusOK, messageEmailSent+email)
}

func DeleteUser(c *fiber.Ctx) error {
	users := c.Locals("users").(*puser.UserService)

	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return respond(c, fiber.StatusBadRequest, "Invalid user id")
	}

	if err := users.DeleteUser(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}

	return respond(c, fiber.StatusOK, messageUserDeleted)
}

func UnlockUser(c *fiber.Ctx) error {
	users := c.Locals("users").(*puser.UserService)
	claims := c.Locals("claims").(*auth.Claims)

	user, err := users.Unlock(c.UserContext(), c.Params("username"))
	if err != nil {
		return respondError(c, err)
	}

	log.Info().Str("username", user.Username).Str("operator", claims.Subject).Msg("Account unlocked by operator")

	return c.JSON(user)
}

// UpdateProfileImage lets a user replace their own avatar. Replacing someone
// else's requires the update authority.
func UpdateProfileImage(c *fiber.Ctx) error {
	users := c.Locals("users").(*puser.UserService)
	claims := c.Locals("claims").(*auth.Claims)

	username := strings.TrimSpace(c.FormValue("username"))
	if username == "" {
		return respond(c, fiber.StatusBadRequest, "Username is required")
	}

	if username != claims.Subject && !auth.HasAuthority(claims.Authorities, auth.AuthorityUserUpdate) {
		return respond(c, fiber.StatusForbidden, "You do not have enough permission")
	}

	image, closeImage, err := profileImage(c)
	if err != nil {
		return respondError(c, err)
	}
	defer closeImage()

	if image == nil {
		return respond(c, fiber.StatusBadRequest, "Profile image is required")
	}

	user, err := users.UpdateProfileImage(c.UserContext(), username, image)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(user)
}

func GetProfileImage(c *fiber.Ctx) error {
	avatars := c.Locals("avatars").(*storage.AvatarStore)

	data, err := avatars.Load(c.Params("username"), c.Params("filename"))
	if err != nil {
		return respondError(c, err)
	}

	c.Set(fiber.HeaderContentType, storage.ContentType(data))
	return c.Send(data)
}

func GetTemporaryProfileImage(c *fiber.Ctx) error {
	cfg := c.Locals("config").(*config.Config)

	target := strings.ReplaceAll(cfg.AvatarPlaceholderURL, "{username}", url.QueryEscape(c.Params("username")))
	return c.Redirect(target, fiber.StatusFound)
}
