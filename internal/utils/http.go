package utils

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"
)

// ExtractParam retrieves a path parameter from the request context and removes a ".json" suffix.
func ExtractParam(r *http.Request, paramName string) string {
	params := httprouter.ParamsFromContext(r.Context())
	rawID := params.ByName(paramName)
	return strings.TrimSuffix(rawID, ".json")
}

// ExtractIDFromParams is ExtractParam for the conventional "id" parameter.
func ExtractIDFromParams(r *http.Request) string {
	return ExtractParam(r, "id")
}

// ParseFloatParam retrieves a float64 value from the provided URL query parameters.
// Missing keys yield 0 and ok=false; malformed values are recorded in fieldErrors.
func ParseFloatParam(params url.Values, key string, fieldErrors map[string][]string) (value float64, ok bool) {
	val := params.Get(key)
	if val == "" {
		return 0, false
	}

	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		fieldErrors[key] = append(fieldErrors[key], fmt.Sprintf("Invalid field value for field %q.", key))
		return 0, false
	}
	return f, true
}

// ParseIntParam is ParseFloatParam for integers.
func ParseIntParam(params url.Values, key string, fieldErrors map[string][]string) (value int, ok bool) {
	val := params.Get(key)
	if val == "" {
		return 0, false
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		fieldErrors[key] = append(fieldErrors[key], fmt.Sprintf("Invalid field value for field %q.", key))
		return 0, false
	}
	return i, true
}
