package middleware

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/claims-api/internal/model"
)

var messages = map[string]string{
	"required":       "is required",
	"gt":             "must be greater than %s",
	"gte":            "must be at least %s",
	"max":            "is too long",
	"min":            "is too short",
	"oneof":          "must be one of: %s",
	"url":            "must be a valid URL",
	"claim_decision": "must be Approved or Rejected",
}

var registerOnce sync.Once

// RegisterValidators installs the custom binding tags on gin's validator and
// reports field names by their json tag.
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = errors.New("unexpected binding validator engine")
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
		err = v.RegisterValidation("claim_decision", claimDecision)
	})
	return err
}

func claimDecision(fl validator.FieldLevel) bool {
	switch model.ClaimStatus(fl.Field().String()) {
	case model.ClaimStatusApproved, model.ClaimStatusRejected:
		return true
	}
	return false
}

// DescribeValidation renders binding errors as "field message" pairs. Other
// errors, e.g. malformed JSON, yield a generic message.
func DescribeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request body"
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := messages[fe.Tag()]
		if !ok {
			msg = "is invalid"
		}
		if strings.Contains(msg, "%s") {
			msg = fmt.Sprintf(msg, fe.Param())
		}
		parts = append(parts, fe.Field()+" "+msg)
	}
	return strings.Join(parts, "; ")
}
