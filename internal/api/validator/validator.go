package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"cms0/internal/models"

	playgroundvalidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var entityNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidationErrors wraps the validator's ValidationErrors
type ValidationErrors []playgroundvalidator.FieldError

// CustomValidator wraps go-playground/validator
type CustomValidator struct {
	validator *playgroundvalidator.Validate
}

// NewValidator creates a new validator instance
func NewValidator() echo.Validator {
	v := playgroundvalidator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	for tag, fn := range map[string]playgroundvalidator.Func{
		"permission_action": validatePermissionAction,
		"user_status":       validateUserStatus,
		"menu_platform":     validateMenuPlatform,
		"content_status":    validateContentStatus,
		"entity_name":       validateEntityName,
	} {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("register validation %s: %v", tag, err))
		}
	}

	return &CustomValidator{validator: v}
}

func validatePermissionAction(fl playgroundvalidator.FieldLevel) bool {
	return models.IsValidPermissionAction(models.PermissionAction(strings.ToLower(fl.Field().String())))
}

func validateUserStatus(fl playgroundvalidator.FieldLevel) bool {
	return models.IsValidUserStatus(models.UserStatus(fl.Field().String()))
}

func validateMenuPlatform(fl playgroundvalidator.FieldLevel) bool {
	return models.IsValidPlatform(models.Platform(fl.Field().String()))
}

func validateContentStatus(fl playgroundvalidator.FieldLevel) bool {
	return models.IsValidContentStatus(models.ContentStatus(fl.Field().String()))
}

func validateEntityName(fl playgroundvalidator.FieldLevel) bool {
	return entityNamePattern.MatchString(strings.ToLower(fl.Field().String()))
}

// Validate implements echo.Validator interface
func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		var validationErrors playgroundvalidator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return ValidationErrors(validationErrors)
		}
		return err
	}
	return nil
}

// Error implements the error interface for ValidationErrors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}
	var fields []string
	for _, err := range ve {
		fields = append(fields, err.Field())
	}
	return fmt.Sprintf("validation failed on fields: %s", strings.Join(fields, ", "))
}

// Fields maps each failing json field to a short message.
func (ve ValidationErrors) Fields() map[string]string {
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		switch fe.Tag() {
		case "required":
			out[fe.Field()] = "is required"
		case "email":
			out[fe.Field()] = "must be a valid email"
		case "min":
			out[fe.Field()] = fmt.Sprintf("must be at least %s", fe.Param())
		case "uuid":
			out[fe.Field()] = "must be a uuid"
		default:
			out[fe.Field()] = fmt.Sprintf("failed %s", fe.Tag())
		}
	}
	return out
}

type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName"`
}

type LoginRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	AffiliateID string `json:"affiliateId" validate:"omitempty,uuid"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// MenuRequest creates a menu. Links is either the item tree or a string holding it.
type MenuRequest struct {
	Title    string          `json:"title" validate:"required,min=2"`
	Platform models.Platform `json:"platform" validate:"omitempty,menu_platform"`
	Status   string          `json:"status" validate:"omitempty,content_status"`
	Links    json.RawMessage `json:"links" swaggertype:"string"`
}

// MenuUpdateRequest changes only what is set. A present links field replaces the whole tree.
type MenuUpdateRequest struct {
	Title    string          `json:"title" validate:"omitempty,min=2"`
	Platform models.Platform `json:"platform" validate:"omitempty,menu_platform"`
	Status   string          `json:"status" validate:"omitempty,content_status"`
	Links    json.RawMessage `json:"links" swaggertype:"string"`
}

type MenuItemRequest struct {
	Parent      string `json:"parent"`
	Title       string `json:"title" validate:"required"`
	URL         string `json:"url"`
	Target      string `json:"target" validate:"omitempty,oneof=_self _blank"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
}

type MenuItemPatchRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1"`
	URL         *string `json:"url"`
	Target      *string `json:"target" validate:"omitempty,oneof=_self _blank"`
	Icon        *string `json:"icon"`
	Description *string `json:"description"`
}

type MoveRequest struct {
	Source      string `json:"source" validate:"required"`
	Destination string `json:"destination" validate:"required"`
}

type PermissionIDsRequest struct {
	PermissionIDs []string `json:"permissionIds" validate:"dive,uuid"`
}

type MemberRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
}
