package voicegrant

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

const redacted = "[REDACTED]"

// KeyMaterial is the signing configuration for one platform account. It is
// loaded once at startup and copied into the Engine by Build.
type KeyMaterial struct {
	// AccountID becomes the sub claim.
	AccountID string `yaml:"account_id"`
	// KeyID identifies the signing key; it becomes iss and prefixes jti.
	KeyID string `yaml:"key_id"`
	// Secret is the HMAC key. It is never logged or serialized.
	Secret string `yaml:"secret"`
	// ApplicationTarget routes outgoing calls.
	ApplicationTarget string `yaml:"application_target"`
}

// Validate reports ErrMisconfigured when any field is blank. The error does
// not say which one.
func (k KeyMaterial) Validate() error {
	if strings.TrimSpace(k.AccountID) == "" ||
		strings.TrimSpace(k.KeyID) == "" ||
		strings.TrimSpace(k.Secret) == "" ||
		strings.TrimSpace(k.ApplicationTarget) == "" {
		return ErrMisconfigured
	}
	return nil
}

// Complete is Validate as a boolean.
func (k KeyMaterial) Complete() bool {
	return k.Validate() == nil
}

func (k KeyMaterial) String() string {
	return fmt.Sprintf("KeyMaterial{AccountID:%s KeyID:%s Secret:%s ApplicationTarget:%s}",
		k.AccountID, k.KeyID, k.redactedSecret(), k.ApplicationTarget)
}

// GoString keeps %#v from printing the secret.
func (k KeyMaterial) GoString() string {
	return k.String()
}

// MarshalJSON emits the non-secret fields and a redaction marker.
func (k KeyMaterial) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		AccountID         string `json:"account_id"`
		KeyID             string `json:"key_id"`
		Secret            string `json:"secret"`
		ApplicationTarget string `json:"application_target"`
	}{
		AccountID:         k.AccountID,
		KeyID:             k.KeyID,
		Secret:            k.redactedSecret(),
		ApplicationTarget: k.ApplicationTarget,
	})
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (k KeyMaterial) MarshalZerologObject(e *zerolog.Event) {
	e.Str("account_id", k.AccountID).
		Str("key_id", k.KeyID).
		Str("secret", k.redactedSecret()).
		Str("application_target", k.ApplicationTarget)
}

func (k KeyMaterial) redactedSecret() string {
	if k.Secret == "" {
		return ""
	}
	return redacted
}
