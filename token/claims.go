package token

import (
	"strconv"
	"time"
)

const (
	// AlgHS256 is the only signing algorithm issued or accepted.
	AlgHS256 = "HS256"
	// TypeJWT is the fixed typ header value.
	TypeJWT = "JWT"
	// ContentTypeVoiceV1 tags the grant schema carried by the claims.
	ContentTypeVoiceV1 = "twilio-fpa;v=1"
)

// Header is the JOSE header. Field order is part of the wire contract.
type Header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
	Cty string `json:"cty"`
}

// NewHeader returns the fixed header for the given grant schema tag.
func NewHeader(contentType string) Header {
	return Header{Alg: AlgHS256, Typ: TypeJWT, Cty: contentType}
}

// Claims is the signed payload. Field order is part of the wire contract:
// jti, iss, sub, exp, grants.
type Claims struct {
	JTI    string `json:"jti"`
	Iss    string `json:"iss"`
	Sub    string `json:"sub"`
	Exp    int64  `json:"exp"`
	Grants Grants `json:"grants"`
}

// Grants scopes what the bearer may do.
type Grants struct {
	Identity string     `json:"identity"`
	Voice    VoiceGrant `json:"voice"`
}

// VoiceGrant authorizes receiving calls and placing calls through an
// application target.
type VoiceGrant struct {
	Incoming IncomingGrant `json:"incoming"`
	Outgoing OutgoingGrant `json:"outgoing"`
}

type IncomingGrant struct {
	Allow bool `json:"allow"`
}

// OutgoingGrant routes outbound calls. The target is carried on the wire as
// "application_sid".
type OutgoingGrant struct {
	ApplicationTarget string `json:"application_sid"`
}

// ClaimsInput carries everything needed to build one claim set.
type ClaimsInput struct {
	JTI               string
	KeyID             string
	AccountID         string
	ApplicationTarget string
	Identity          string
	IssuedAt          time.Time
	TTL               time.Duration
}

// BuildClaims assembles the claim set. exp is issuedAt (whole seconds) plus
// the TTL (whole seconds).
func BuildClaims(in ClaimsInput) Claims {
	issuedAt := in.IssuedAt.Unix()
	return Claims{
		JTI: in.JTI,
		Iss: in.KeyID,
		Sub: in.AccountID,
		Exp: issuedAt + int64(in.TTL/time.Second),
		Grants: Grants{
			Identity: in.Identity,
			Voice: VoiceGrant{
				Incoming: IncomingGrant{Allow: true},
				Outgoing: OutgoingGrant{ApplicationTarget: in.ApplicationTarget},
			},
		},
	}
}

// SecondJTI derives the token id from the key id and the issuance second.
// Two tokens for the same key in the same second share an id.
func SecondJTI(keyID string, issuedAt time.Time) string {
	return keyID + "-" + strconv.FormatInt(issuedAt.Unix(), 10)
}
