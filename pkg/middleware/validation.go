package middleware

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/printflow/job-lifecycle/pkg/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	extraMu       sync.RWMutex
	extraMessages = map[string]string{}
)

var (
	jobCardIDRegex  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9\-_/]{1,63}$`)
	safeStringRegex = regexp.MustCompile(`^[^\x00-\x08\x0B\x0C\x0E-\x1F]*$`)
)

var validPriorities = map[string]bool{
	"LOW":      true,
	"MEDIUM":   true,
	"HIGH":     true,
	"CRITICAL": true,
}

var validStatusDomains = map[string]bool{
	"job":        true,
	"prepress":   true,
	"production": true,
	"cutting":    true,
}

func builtinValidators() map[string]validator.Func {
	return map[string]validator.Func{
		"job_card_id":   validateJobCardID,
		"priority":      validatePriority,
		"status_domain": validateStatusDomain,
		"safe_string":   validateSafeString,
	}
}

func jsonTagName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "" {
		name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
	}
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}

// InitValidator initializes the validator with custom validators and installs
// them on Gin's binding engine.
func InitValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(jsonTagName)
		for tag, fn := range builtinValidators() {
			_ = validate.RegisterValidation(tag, fn)
		}

		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(jsonTagName)
			for tag, fn := range builtinValidators() {
				_ = v.RegisterValidation(tag, fn)
			}
		}
	})

	return validate
}

// GetValidator returns the singleton validator instance
func GetValidator() *validator.Validate {
	return InitValidator()
}

// RegisterValidator adds an application specific validation tag to both the
// shared validator and Gin's binding engine. message is used in field errors.
func RegisterValidator(tag string, fn validator.Func, message string) error {
	v := InitValidator()
	if err := v.RegisterValidation(tag, fn); err != nil {
		return err
	}
	if engine, ok := binding.Validator.Engine().(*validator.Validate); ok && engine != v {
		if err := engine.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}

	extraMu.Lock()
	extraMessages[tag] = message
	extraMu.Unlock()
	return nil
}

func validateJobCardID(fl validator.FieldLevel) bool {
	return jobCardIDRegex.MatchString(fl.Field().String())
}

func validatePriority(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return validPriorities[strings.ToUpper(value)]
}

func validateStatusDomain(fl validator.FieldLevel) bool {
	return validStatusDomains[strings.ToLower(fl.Field().String())]
}

func validateSafeString(fl validator.FieldLevel) bool {
	return safeStringRegex.MatchString(fl.Field().String())
}

// ValidationErrorFormatter formats validation errors into a map
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
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "dive":
		return "contains an invalid element"
	case "job_card_id":
		return "must be a valid job card ID (2-64 alphanumeric characters, dashes or slashes)"
	case "priority":
		return "must be one of: LOW, MEDIUM, HIGH, CRITICAL"
	case "status_domain":
		return "must be one of: job, prepress, production, cutting"
	case "safe_string":
		return "contains invalid characters"
	case "oneof":
		return "must be one of: " + e.Param()
	}

	extraMu.RLock()
	msg, ok := extraMessages[e.Tag()]
	extraMu.RUnlock()
	if ok {
		return msg
	}
	return "is invalid"
}

func bindingError(err error) *errors.AppError {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		return errors.ErrValidationWithFields("validation failed", ValidationErrorFormatter(validationErrors))
	}
	return errors.ErrBadRequest("invalid request: " + err.Error())
}

// BindAndValidate binds the JSON request body and validates it
func BindAndValidate(c *gin.Context, obj interface{}) *errors.AppError {
	if err := c.ShouldBindJSON(obj); err != nil {
		return bindingError(err)
	}
	return nil
}

// BindQueryAndValidate binds query parameters and validates them
func BindQueryAndValidate(c *gin.Context, obj interface{}) *errors.AppError {
	if err := c.ShouldBindQuery(obj); err != nil {
		return bindingError(err)
	}
	return nil
}

// ValidateStruct validates a struct using the validator
func ValidateStruct(obj interface{}) *errors.AppError {
	if err := GetValidator().Struct(obj); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return errors.ErrValidationWithFields("validation failed", ValidationErrorFormatter(validationErrors))
		}
		return errors.ErrBadRequest("validation failed: " + err.Error())
	}
	return nil
}

// SanitizeString strips null bytes and surrounding whitespace
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

// ContentType middleware rejects non-JSON bodies on POST/PUT/PATCH
func ContentType() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case "POST", "PUT", "PATCH":
			contentType := c.GetHeader("Content-Type")
			if !strings.HasPrefix(contentType, "application/json") && c.Request.ContentLength > 0 {
				AbortWithAppError(c, &errors.AppError{
					Code:       "INVALID_CONTENT_TYPE",
					Message:    "Content-Type must be application/json",
					HTTPStatus: 415,
				})
				return
			}
		}
		c.Next()
	}
}
