package middleware

import (
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/Mrhamza01/prlabel/pkg/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

var (
	shipmentIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)
	entityIDRegex   = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.@-]{0,63}$`)
)

var customValidations = map[string]validator.Func{
	"shipment_id": func(fl validator.FieldLevel) bool {
		return shipmentIDRegex.MatchString(fl.Field().String())
	},
	"entity_id": func(fl validator.FieldLevel) bool {
		return entityIDRegex.MatchString(fl.Field().String())
	},
	"list_status": func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "pending", "completed", "all":
			return true
		}
		return false
	},
}

func jsonTagName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return fld.Name
}

func register(v *validator.Validate) {
	for tag, fn := range customValidations {
		_ = v.RegisterValidation(tag, fn)
	}
	v.RegisterTagNameFunc(jsonTagName)
}

// InitValidator registers the dispatch validation rules on both the package
// validator and gin's binding validator.
func InitValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		register(validate)

		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			register(v)
		}
	})
	return validate
}

// ValidationErrorFormatter formats validation errors into a field map
func ValidationErrorFormatter(err error) map[string]string {
	fields := make(map[string]string)
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			fields[e.Field()] = formatValidationError(e)
		}
	}
	return fields
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "shipment_id":
		return "must be a carrier shipment ID such as se-123456"
	case "entity_id":
		return "must be a valid entity ID"
	case "list_status":
		return "must be one of: pending, completed, all"
	default:
		return "is invalid"
	}
}

// ValidateStruct validates a struct using the dispatch validator
func ValidateStruct(obj interface{}) *errors.AppError {
	if err := InitValidator().Struct(obj); err != nil {
		appErr := errors.ErrValidation("validation failed")
		for field, msg := range ValidationErrorFormatter(err) {
			appErr.WithDetail(field, msg)
		}
		return appErr
	}
	return nil
}

// SanitizeString strips NUL bytes and surrounding whitespace. Barcode
// scanners commonly append CR/LF or pad with spaces.
func SanitizeString(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
}

// InputSanitizer middleware sanitizes query parameters
func InputSanitizer() gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Request.URL.Query()
		for key, values := range query {
			for i, v := range values {
				values[i] = SanitizeString(v)
			}
			query[key] = values
		}
		c.Request.URL.RawQuery = query.Encode()
		c.Next()
	}
}

// ContentType middleware requires JSON bodies on POST and PUT
func ContentType() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodPost || c.Request.Method == http.MethodPut {
			contentType := c.GetHeader("Content-Type")
			if !strings.HasPrefix(contentType, "application/json") && c.Request.ContentLength > 0 {
				AbortWithAppError(c, errors.NewAppError("INVALID_CONTENT_TYPE", "Content-Type must be application/json", http.StatusUnsupportedMediaType))
				return
			}
		}
		c.Next()
	}
}
