package handlers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
	"github.com/rs/zerolog/log"

	"supportportal/internal/auth"
	"supportportal/internal/platform/storage"
	puser "supportportal/internal/platform/user"
)

const (
	messageInvalidCredentials = "Username / password incorrect. Please try again"
	messageAccountLocked      = "Your account has been locked. Please contact administration"
	messageAccountDisabled    = "Your account has been disabled. If this is an error, please contact administration"
	messageInternalError      = "An error occurred while processing the request"
)

// HttpResponse is the body of every non-entity response.
type HttpResponse struct {
	HttpStatusCode int       `json:"httpStatusCode"`
	TimeStamp      time.Time `json:"timeStamp"`
	HttpStatus     string    `json:"httpStatus"`
	Reason         string    `json:"reason"`
	Message        string    `json:"message"`
}

func NewHttpResponse(status int, message string) HttpResponse {
	reason := strings.ToUpper(fiberutils.StatusMessage(status))
	return HttpResponse{
		HttpStatusCode: status,
		TimeStamp:      time.Now(),
		HttpStatus:     strings.ReplaceAll(reason, " ", "_"),
		Reason:         reason,
		Message:        message,
	}
}

func respond(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(NewHttpResponse(status, message))
}

// validationMessage flattens validator errors into "Field is tag" pairs.
func validationMessage(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		messages = append(messages, fmt.Sprintf("%s is %s", e.Field(), e.Tag()))
	}
	return strings.Join(messages, ", ")
}

// respondError maps domain errors onto a status. Anything unrecognised is an
// infrastructure fault: it is logged and hidden from the caller.
func respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, puser.ErrInvalidCredentials):
		return respond(c, fiber.StatusBadRequest, messageInvalidCredentials)
	case errors.Is(err, puser.ErrAccountLocked):
		return respond(c, fiber.StatusUnauthorized, messageAccountLocked)
	case errors.Is(err, puser.ErrAccountDisabled):
		return respond(c, fiber.StatusBadRequest, messageAccountDisabled)
	case errors.Is(err, puser.ErrUsernameExists):
		return respond(c, fiber.StatusBadRequest, "Username already exists")
	case errors.Is(err, puser.ErrEmailExists):
		return respond(c, fiber.StatusBadRequest, "Email already exists")
	case errors.Is(err, puser.ErrNotFound),
		errors.Is(err, puser.ErrInvalidInput),
		errors.Is(err, auth.ErrInvalidRole),
		errors.Is(err, storage.ErrUnsupportedImageType),
		errors.Is(err, storage.ErrAvatarTooLarge),
		errors.Is(err, storage.ErrInvalidAvatarKey):
		return respond(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrAvatarNotFound):
		return respond(c, fiber.StatusNotFound, err.Error())
	}

	log.Error().Err(err).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Interface("request_id", c.Locals("requestid")).
		Msg("Request failed")
	return respond(c, fiber.StatusInternalServerError, messageInternalError)
}
