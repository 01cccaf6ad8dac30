package handler

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"museum_nav/internal/errs"
)

const (
	msgInvalidInputTypes = "Invalid input types"
	msgInvalidRequest    = "Invalid request body"
)

// envelope is the shape of every JSON response.
type envelope struct {
	Success bool    `json:"success"`
	Data    any     `json:"data"`
	Message string  `json:"message"`
	Error   *string `json:"error"`
}

func respond(c *gin.Context, status int, data any, message string) {
	c.JSON(status, envelope{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// respondError renders err and aborts the chain. Internal causes are only
// exposed outside production.
func (h *Handler) respondError(c *gin.Context, err error) {
	appErr := errs.As(err)

	detail := appErr.Message
	if appErr.Kind == errs.KindInternal {
		h.log.Error("request failed",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Any("error", err),
		)
		if !h.production && appErr.Err != nil {
			detail = appErr.Err.Error()
		}
	}

	c.AbortWithStatusJSON(appErr.Kind.Status(), envelope{
		Success: false,
		Message: appErr.Message,
		Error:   &detail,
	})
}

var registerTagNameOnce sync.Once

// useJSONFieldNames makes validation errors name fields as clients send them.
func useJSONFieldNames() {
	registerTagNameOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// decodeJSON reads the request body into dst and validates its binding tags.
func decodeJSON(c *gin.Context, dst any) error {
	body, err := c.GetRawData()
	if err != nil {
		return errs.Validation(msgInvalidRequest)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}

	if !json.Valid(body) {
		return errs.Validation(msgInvalidRequest)
	}
	// the body is well-formed, so any decoding failure is a type mismatch
	if err := json.Unmarshal(body, dst); err != nil {
		return errs.Validation(msgInvalidInputTypes)
	}

	if err := binding.Validator.ValidateStruct(dst); err != nil {
		return bindError(err)
	}
	return nil
}

// bindError turns a validation failure into a 400.
func bindError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		return errs.Validation(translateFieldError(validationErrs[0]))
	}

	return errs.Validation(msgInvalidRequest)
}

func translateFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "latitude", "longitude":
		return "Invalid coordinates"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must contain at least %s item(s)", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
