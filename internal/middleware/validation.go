package middleware

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
)

// Validation limits.
const (
	// MaxEmailLength is the maximum length for an email address.
	MaxEmailLength = 254

	// MaxNameLength is the maximum length for user display names.
	MaxNameLength = 100
)

// Validation errors.
var (
	ErrIDInvalid    = errors.New("identifier is not a valid ULID")
	ErrEmailTooLong = errors.New("email exceeds maximum length")
	ErrEmailInvalid = errors.New("email is invalid")
	ErrNameTooLong  = errors.New("name exceeds maximum length")
	ErrNameInvalid  = errors.New("name contains control characters")
)

// ValidateID checks that id is a canonical ULID.
func ValidateID(id string) error {
	if _, err := ulid.ParseStrict(id); err != nil {
		return ErrIDInvalid
	}
	return nil
}

// ValidateEmail checks that email is a bare address, without display name.
func ValidateEmail(email string) error {
	if len(email) > MaxEmailLength {
		return ErrEmailTooLong
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrEmailInvalid
	}
	return nil
}

// ValidateName checks a display name. Empty is valid.
func ValidateName(name string) error {
	if len(name) > MaxNameLength {
		return ErrNameTooLong
	}
	if strings.ContainsFunc(name, func(r rune) bool { return r < 0x20 || r == 0x7f }) {
		return ErrNameInvalid
	}
	return nil
}

// ValidateIDParams rejects requests whose named chi URL parameters are not ULIDs.
// Must be applied where the parameters have already been matched.
func ValidateIDParams(names ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, name := range names {
				value := chi.URLParam(r, name)
				if value == "" {
					continue
				}
				if err := ValidateID(value); err != nil {
					writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "Invalid "+name)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
