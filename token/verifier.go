package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// VerifierConfig describes what a valid token must look like.
type VerifierConfig struct {
	Secret      []byte
	Issuer      string
	Subject     string
	ContentType string
	Leeway      time.Duration
	// Now overrides the parser clock. Nil means time.Now.
	Now func() time.Time
}

// VerifiedClaims is the parsed payload of a token that passed verification.
type VerifiedClaims struct {
	Grants Grants `json:"grants"`
	jwt.RegisteredClaims
}

// Verifier checks signature, header and registered claims of issued tokens.
type Verifier struct {
	config VerifierConfig
	parser *jwt.Parser
}

// NewVerifier validates cfg and prepares a reusable parser.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrEmptySecret
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.ContentType == "" {
		cfg.ContentType = ContentTypeVoiceV1
	}
	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	cfg.Secret = secret

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Subject != "" {
		options = append(options, jwt.WithSubject(cfg.Subject))
	}
	if cfg.Now != nil {
		options = append(options, jwt.WithTimeFunc(cfg.Now))
	}

	return &Verifier{config: cfg, parser: jwt.NewParser(options...)}, nil
}

// Verify parses tokenStr and returns its claims when every check passes.
func (v *Verifier) Verify(tokenStr string) (*VerifiedClaims, error) {
	tok, err := v.parser.ParseWithClaims(tokenStr, &VerifiedClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		cty, _ := t.Header["cty"].(string)
		if cty != v.config.ContentType {
			return nil, fmt.Errorf("unexpected content type %q", cty)
		}
		return v.config.Secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := tok.Claims.(*VerifiedClaims)
	if !ok || !tok.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.ID == "" {
		return nil, errors.New("token has no jti")
	}
	if claims.Grants.Identity == "" {
		return nil, errors.New("token grants carry no identity")
	}
	return claims, nil
}
