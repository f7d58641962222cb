package handlers

import (
	"errors"
	"net/http"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/ShubhamSingh-04/attendance-system-server/models"
)

// convert string -> int; fall back to default when not parseable
func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// pageParams reads page/size query params with the shared clamps.
func pageParams(c echo.Context) (page, size int) {
	page = atoiOr(c.QueryParam("page"), 1)
	if page < 1 {
		page = 1
	}
	size = atoiOr(c.QueryParam("size"), 20)
	if size < 1 {
		size = 1
	} else if size > 100 {
		size = 100
	}
	return page, size
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report fields under their json names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// fieldErrors flattens validator errors into the field → message map
// VALIDATION_ERROR bodies carry.
func fieldErrors(err error) map[string]string {
	out := map[string]string{}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		out["payload"] = err.Error()
		return out
	}
	for _, fe := range ves {
		out[fe.Field()] = ruleMessage(fe)
	}
	return out
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "alphanum":
		return "must contain only letters and digits"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}

// internalError answers a 500. The raw cause goes into the body only
// outside production; production callers get the code alone.
func internalError(c echo.Context, code string, err error) error {
	body := map[string]any{"error": code, "message": "internal server error"}
	if os.Getenv("APP_ENV") != "production" {
		body["message"] = err.Error()
	}
	return c.JSON(http.StatusInternalServerError, body)
}

// passwordFailure answers a refused password hash. bcrypt caps its
// input at 72 bytes; a hash that was never produced must never reach
// the users table as an empty string.
func passwordFailure(c echo.Context, err error) error {
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error":   "PASSWORD_TOO_LONG",
			"message": "password must be at most 72 bytes",
		})
	}
	return internalError(c, "HASH_FAILED", err)
}

// isDuplicate reports whether err is a unique-constraint violation.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "23505")
}

// currentUser reads the identity RequireAuth stashed in the context.
func currentUser(c echo.Context) (uint, models.Role) {
	uid, _ := c.Get("user_id").(uint)
	role, _ := c.Get("role").(models.Role)
	return uid, role
}
