// Package validation provides custom validation rules for the application.
package validation

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/eventbus/internal/errors"
)

var (
	// eventTypeRegex accepts identifiers such as "UserRegistered" or "user.registered.v2".
	eventTypeRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9._\-]{0,254}$`)
	// serviceNameRegex accepts lowercase service identifiers such as "billing-api".
	serviceNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9._\-]{0,254}$`)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// EventType validates an event type identifier.
var EventType = validation.NewStringRuleWithError(
	eventTypeRegex.MatchString,
	validation.NewError("validation_event_type", "must start with a letter and contain only letters, digits, '.', '_' or '-'"),
)

// ServiceName validates a service identifier.
var ServiceName = validation.NewStringRuleWithError(
	serviceNameRegex.MatchString,
	validation.NewError("validation_service_name", "must be lowercase letters, digits, '.', '_' or '-'"),
)

// WebhookURL validates an absolute http or https URL.
var WebhookURL = validation.NewStringRuleWithError(
	func(s string) bool {
		u, err := url.Parse(s)
		return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
	},
	validation.NewError("validation_webhook_url", "must be an absolute http or https URL"),
)

// JSONObject validates that a raw JSON value is an object.
var JSONObject = validation.By(func(value interface{}) error {
	raw, ok := value.(json.RawMessage)
	if !ok {
		return validation.NewError("validation_json_object_type", "must be raw JSON")
	}
	if len(raw) == 0 {
		return nil // Let Required handle empty values
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return validation.NewError("validation_json_object", "must be a JSON object")
	}
	return nil
})

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)
