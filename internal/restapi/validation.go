package restapi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// fieldErrorsFrom turns validator failures into the fieldErrors map clients already parse.
func fieldErrorsFrom(err error) map[string][]string {
	fieldErrors := make(map[string][]string)

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fieldErrors["body"] = []string{err.Error()}
		return fieldErrors
	}

	for _, fe := range verrs {
		// drop the root struct name: "locationBody.Lng" -> "lng"
		name := fe.Namespace()
		if i := strings.Index(name, "."); i >= 0 {
			name = name[i+1:]
		}
		name = strings.ToLower(name[:1]) + name[1:]
		fieldErrors[name] = append(fieldErrors[name], fmt.Sprintf("Invalid field value for field %q (%s).", name, fe.Tag()))
	}
	return fieldErrors
}
