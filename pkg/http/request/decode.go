package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// maxBodyBytes caps request bodies; quiz payloads are tiny.
const maxBodyBytes = 64 << 10

// validate is shared by every handler. Field names in errors use json tags.
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// ErrMalformed is returned when the body is not a JSON object of the expected shape.
var ErrMalformed = errors.New("malformed JSON payload")

// FieldError names the first field that failed validation.
type FieldError struct {
	Field string
	Tag   string
	Param string
}

func (e *FieldError) Error() string {
	switch e.Tag {
	case "required":
		return fmt.Sprintf("%s is required", e.Field)
	case "min", "max", "gte", "lte":
		return fmt.Sprintf("%s fails %s=%s", e.Field, e.Tag, e.Param)
	default:
		return fmt.Sprintf("%s is invalid", e.Field)
	}
}

// Missing reports whether the field was absent rather than malformed.
func (e *FieldError) Missing() bool {
	return e.Tag == "required"
}

// DecodeAndValidate reads a JSON body into dst and runs its validate tags.
// Unknown fields are rejected as malformed.
func DecodeAndValidate(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return Struct(dst)
}

// Struct validates an already populated value.
func Struct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &FieldError{Field: fe.Field(), Tag: fe.Tag(), Param: fe.Param()}
	}
	return err
}
