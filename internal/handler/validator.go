package handler

import (
    "errors"
    "fmt"
    "net/http"
    "reflect"
    "strings"

    "github.com/go-playground/validator/v10"
    "github.com/labstack/echo/v4"
)

// Validator adapts go-playground/validator to echo.Validator.
type Validator struct {
    v *validator.Validate
}

// NewValidator returns a Validator using json tag names in messages.
func NewValidator() *Validator {
    v := validator.New(validator.WithRequiredStructEnabled())
    v.RegisterTagNameFunc(func(f reflect.StructField) string {
        name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
        if name == "-" {
            return ""
        }
        return name
    })
    return &Validator{v: v}
}

// Validate implements echo.Validator.
func (cv *Validator) Validate(i interface{}) error {
    return cv.v.Struct(i)
}

// bindValid binds the request body into req and validates it.  On failure
// it writes a 400 or 422 response and returns false.
func bindValid(c echo.Context, req interface{}) (bool, error) {
    if err := c.Bind(req); err != nil {
        return false, badRequest(c, "invalid body")
    }
    if err := c.Validate(req); err != nil {
        return false, c.JSON(http.StatusUnprocessableEntity, echo.Map{
            "error":   "validation_failed",
            "message": validationMessage(err),
        })
    }
    return true, nil
}

func validationMessage(err error) string {
    var ve validator.ValidationErrors
    if !errors.As(err, &ve) {
        return err.Error()
    }
    parts := make([]string, 0, len(ve))
    for _, fe := range ve {
        if fe.Param() != "" {
            parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
        } else {
            parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
        }
    }
    return strings.Join(parts, "; ")
}
