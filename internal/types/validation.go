package types

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// KeyValidationConfig controls which tenant keys are accepted.
type KeyValidationConfig struct {
	ReservedPatterns []string
	MaxKeyLength     int
	AllowWhitespace  bool
}

// DefaultKeyValidationConfig returns the rules applied when none are configured.
func DefaultKeyValidationConfig() KeyValidationConfig {
	return KeyValidationConfig{
		MaxKeyLength:    256,
		AllowWhitespace: false,
	}
}

// KeyValidator checks tenant keys before they reach the cache or gateway.
type KeyValidator struct {
	config KeyValidationConfig
}

func NewKeyValidator(config KeyValidationConfig) *KeyValidator {
	return &KeyValidator{config: config}
}

// Validate returns an error wrapping ErrInvalidKey when tenant is rejected.
// Empty keys, invalid UTF-8 and control characters are always rejected.
func (v *KeyValidator) Validate(tenant string) error {
	if tenant == "" {
		return fmt.Errorf("%w: tenant cannot be empty", ErrInvalidKey)
	}

	if v.config.MaxKeyLength > 0 && len(tenant) > v.config.MaxKeyLength {
		return fmt.Errorf("%w: tenant length %d exceeds maximum %d bytes",
			ErrInvalidKey, len(tenant), v.config.MaxKeyLength)
	}

	if !utf8.ValidString(tenant) {
		return fmt.Errorf("%w: tenant contains invalid UTF-8", ErrInvalidKey)
	}

	for i, r := range tenant {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: tenant contains control character at position %d", ErrInvalidKey, i)
		}
		if !v.config.AllowWhitespace && unicode.IsSpace(r) {
			return fmt.Errorf("%w: tenant contains whitespace at position %d", ErrInvalidKey, i)
		}
	}

	for _, pattern := range v.config.ReservedPatterns {
		if pattern != "" && strings.Contains(tenant, pattern) {
			return fmt.Errorf("%w: tenant contains reserved pattern %q", ErrInvalidKey, pattern)
		}
	}

	return nil
}

// DefaultKeyValidator validates with DefaultKeyValidationConfig.
var DefaultKeyValidator = NewKeyValidator(DefaultKeyValidationConfig())

// ValidateKey validates a tenant with the default validator.
func ValidateKey(tenant string) error {
	return DefaultKeyValidator.Validate(tenant)
}
