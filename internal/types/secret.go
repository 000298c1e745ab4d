package types

import (
	"encoding/json"
	"log/slog"
)

// SecretString holds a credential such as a database or Redis password.
// Its value never appears in JSON output, fmt verbs or slog records.
type SecretString struct {
	value string
}

const redacted = "[REDACTED]"

func NewSecretString(value string) SecretString {
	return SecretString{value: value}
}

// Value returns the plain text. Only pass it to the driver that needs it.
func (s SecretString) Value() string {
	return s.value
}

func (s SecretString) IsEmpty() bool {
	return s.value == ""
}

func (s SecretString) masked() string {
	if s.value == "" {
		return ""
	}
	return redacted
}

func (s SecretString) String() string {
	return s.masked()
}

func (s SecretString) GoString() string {
	return `types.SecretString("` + s.masked() + `")`
}

func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(s.masked())
}

func (s SecretString) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.masked())
}

func (s *SecretString) UnmarshalJSON(data []byte) error {
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	s.value = value
	return nil
}

var _ slog.LogValuer = SecretString{}
