package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	govalidator "github.com/go-playground/validator/v10"
)

// Subject ids are opaque, but they end up in URLs and log lines, so only
// plain identifier characters are accepted. UUIDs and Mongo ObjectIDs pass.
var subjectIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

var messages = map[string]string{
	"required":  "is required",
	"max":       "is too long",
	"subjectid": "must contain only letters, digits, '-' and '_'",
}

func SubjectID(fl govalidator.FieldLevel) bool {
	return IsSubjectID(fl.Field().String())
}

// IsSubjectID applies the subjectid rule to a value outside a struct, such
// as a path parameter.
func IsSubjectID(s string) bool {
	return len(s) <= 128 && subjectIDPattern.MatchString(s)
}

// Register installs the custom tags on v and reports fields by their json name.
func Register(v *govalidator.Validate) error {
	if err := v.RegisterValidation("subjectid", SubjectID); err != nil {
		return fmt.Errorf("failed to register subjectid validator: %w", err)
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return nil
}

var (
	ginOnce sync.Once
	ginErr  error
)

// RegisterGin installs the custom tags on gin's binding validator. It is
// safe to call more than once.
func RegisterGin() error {
	ginOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*govalidator.Validate)
		if !ok {
			ginErr = errors.New("gin binding validator is not go-playground/validator")
			return
		}
		ginErr = Register(v)
	})
	return ginErr
}

// Describe turns a binding error into a short client-facing message.
func Describe(err error) string {
	var verrs govalidator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request body"
	}

	parts := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msg, ok := messages[e.Tag()]
		if !ok {
			msg = "is invalid"
		}
		parts = append(parts, e.Field()+" "+msg)
	}
	return strings.Join(parts, "; ")
}
