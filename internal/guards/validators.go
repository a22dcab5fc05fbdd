package guards

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/rts-ladder/ranked-core/internal/apperr"
)

// reservedDisplayNames is the case-insensitive display-name deny-list.
var reservedDisplayNames = map[string]bool{
	"admin": true, "administrator": true, "mod": true, "moderator": true,
	"player": true, "bot": true, "system": true, "root": true, "owner": true,
}

var (
	englishNamePattern      = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	internationalNamePattern = regexp.MustCompile(`^[\p{L}\p{N}_-]+$`)
	battleTagPattern        = regexp.MustCompile(`^[A-Za-z0-9_-]{1,15}#\d{1,6}$`)
)

// validatorInstance is constructed once and reused for the lifetime of
// the process.
var (
	validatorInstance *validator.Validate
	validatorOnce     sync.Once
)

func sharedValidator() *validator.Validate {
	validatorOnce.Do(func() {
		validatorInstance = validator.New(validator.WithRequiredStructEnabled())
	})
	return validatorInstance
}

// ValidateStruct runs struct-tag validation (the `validate:"..."` tags on
// internal/models' request DTOs) through a single shared validator
// instance, translating the first failing field into an apperr.Validation.
func ValidateStruct(v interface{}) error {
	if err := sharedValidator().Struct(v); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return apperr.Validation(fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()), err)
		}
		return apperr.Validation("validation failed", err)
	}
	return nil
}

// ValidateDisplayName enforces length 3-12, charset, and the reserved-word
// deny-list. international enables the Unicode character class instead of
// the English-only [A-Za-z0-9_-] class, toggled by deployment config.
func ValidateDisplayName(name string, international bool) error {
	if len(name) < 3 || len(name) > 12 {
		return apperr.Validation("display name must be 3-12 characters", nil)
	}
	pattern := englishNamePattern
	if international {
		pattern = internationalNamePattern
	}
	if !pattern.MatchString(name) {
		return apperr.Validation("display name contains disallowed characters", nil)
	}
	if reservedDisplayNames[strings.ToLower(name)] {
		return apperr.Validation("display name is reserved", nil)
	}
	return nil
}

// ValidateBattleTag enforces `name#digits`, total length <= 20.
func ValidateBattleTag(tag string) error {
	if tag == "" {
		return nil // optional field
	}
	if len(tag) > 20 {
		return apperr.Validation("battle tag must be 20 characters or fewer", nil)
	}
	if !battleTagPattern.MatchString(tag) {
		return apperr.Validation("battle tag must match name#digits", nil)
	}
	return nil
}
