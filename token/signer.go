package token

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptySecret is returned when a signer or verifier is built without key bytes.
	ErrEmptySecret = errors.New("empty signing secret")
	// ErrMalformed is returned for token strings that are not three segments.
	ErrMalformed = errors.New("malformed token")
)

// Signer produces HS256 tokens with a fixed shared secret.
//
// Signer instances are immutable after construction and safe for concurrent use.
type Signer struct {
	secret []byte
}

// NewSigner copies secret into a new Signer. An empty secret is rejected so
// that predictable signatures are never produced.
func NewSigner(secret []byte) (*Signer, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &Signer{secret: key}, nil
}

// Sign serializes header and claims, encodes both, and appends the signature.
func (s *Signer) Sign(header Header, claims Claims) (string, error) {
	if s == nil || len(s.secret) == 0 {
		return "", ErrEmptySecret
	}

	headerJSON, err := marshalCanonical(header)
	if err != nil {
		return "", fmt.Errorf("encode header: %w", err)
	}
	claimsJSON, err := marshalCanonical(claims)
	if err != nil {
		return "", fmt.Errorf("encode claims: %w", err)
	}

	input := SigningInput(EncodeSegment(headerJSON), EncodeSegment(claimsJSON))
	return input + "." + Signature(input, s.secret), nil
}

// SigningInput joins the encoded header and claims with a single period.
func SigningInput(encodedHeader, encodedClaims string) string {
	return encodedHeader + "." + encodedClaims
}

// Signature returns the base64url (unpadded) HMAC-SHA256 of input.
func Signature(input string, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(input))
	return EncodeSegment(mac.Sum(nil))
}

// CheckSignature recomputes the signature over the first two segments of tok
// and compares it in constant time with the third.
func CheckSignature(tok string, secret []byte) error {
	if len(secret) == 0 {
		return ErrEmptySecret
	}
	idx := strings.LastIndexByte(tok, '.')
	if idx < 0 || strings.Count(tok, ".") != 2 {
		return ErrMalformed
	}
	want := Signature(tok[:idx], secret)
	if !hmac.Equal([]byte(want), []byte(tok[idx+1:])) {
		return errors.New("signature mismatch")
	}
	return nil
}

// EncodeSegment is standard base64 with '+' -> '-', '/' -> '_' and the '='
// padding stripped, which is exactly the raw URL alphabet.
func EncodeSegment(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeSegment reverses EncodeSegment.
func DecodeSegment(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

// marshalCanonical emits compact JSON in struct field order without HTML
// escaping and without the encoder's trailing newline. U+2028 and U+2029 are
// written as raw UTF-8.
func marshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return unescapeLineSeparators(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// unescapeLineSeparators reverts encoding/json's \u2028 and \u2029 escapes.
// Escape sequences are consumed pairwise, so an escaped backslash followed by
// the text u2028 is left untouched.
func unescapeLineSeparators(b []byte) []byte {
	if !bytes.Contains(b, []byte(`\u202`)) {
		return b
	}
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] != '\\' || i+1 == len(b) {
			out = append(out, b[i])
			continue
		}
		if isLineSeparatorEscape(b[i:]) {
			// U+2028 is E2 80 A8, U+2029 is E2 80 A9.
			out = append(out, 0xE2, 0x80, 0xA8+(b[i+5]-'8'))
			i += 5
			continue
		}
		out = append(out, b[i], b[i+1])
		i++
	}
	return out
}

func isLineSeparatorEscape(b []byte) bool {
	return len(b) >= 6 && bytes.HasPrefix(b, []byte(`\u202`)) && (b[5] == '8' || b[5] == '9')
}
