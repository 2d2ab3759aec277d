package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/mehmetcc/campaign-auth-service/internal/utils"
)

var registerOnce sync.Once

// RegisterValidators installs the custom binding tags used by request structs:
//
//	phone  any accepted spelling of a UK number
//	otp    a numeric code of the configured length
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return fld.Name
		})
		_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			_, err := utils.NormalizePhone(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("otp", func(fl validator.FieldLevel) bool {
			code := fl.Field().String()
			if len(code) != utils.OtpLength {
				return false
			}
			for _, c := range code {
				if c < '0' || c > '9' {
					return false
				}
			}
			return true
		})
	})
}

// BindJSON decodes the body into obj. On failure it writes the envelope
// (400 for a malformed body, 422 with field details otherwise) and returns false.
func BindJSON(c *gin.Context, obj any) bool {
	RegisterValidators()

	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &verrs):
		Invalid(c, FieldErrors(verrs))
	case errors.As(err, &typeErr) && typeErr.Field != "":
		Invalid(c, map[string]string{typeErr.Field: "has the wrong type"})
	default:
		Error(c, http.StatusBadRequest, CodeInvalidJSON, "request body must be a valid JSON object")
	}
	return false
}

// BindQuery binds the query string into obj, writing a 422 on failure.
func BindQuery(c *gin.Context, obj any) bool {
	RegisterValidators()

	err := c.ShouldBindQuery(obj)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		Invalid(c, FieldErrors(verrs))
	} else {
		Error(c, http.StatusBadRequest, CodeBadRequest, "malformed query string")
	}
	return false
}

// FieldErrors flattens validator errors into {field: message}.
func FieldErrors(verrs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = fieldMessage(fe)
	}
	return details
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if", "required_with":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "phone":
		return "must be a valid UK phone number"
	case "otp":
		return "must be a 6-digit code"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "is invalid"
	}
}
