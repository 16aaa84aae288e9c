package shared

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// Job submissions and other request bodies are small JSON documents; cap
// reads well below anything a legitimate client would send.
const maxRequestBodyBytes = 64 * 1024

// Shared validator instance; validator.Validate caches struct metadata.
var validate = validator.New()

// DecodeJSON strictly decodes the request body into v. Unknown fields and
// oversized bodies are rejected so malformed submissions fail before any
// job state is created.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// ValidateRequest runs struct-tag validation over a decoded request DTO.
// DTOs with their own Validate method use that instead.
func ValidateRequest(v any) error {
	if validatable, ok := v.(interface{ Validate() error }); ok {
		return validatable.Validate()
	}
	return validate.Struct(v)
}
