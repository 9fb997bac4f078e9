package voicegrant

import "time"

// CredentialRequest is the caller's ask for a voice token. Identity is the
// principal the token authorizes; UserID and UserName are echoed back only.
type CredentialRequest struct {
	Identity string `json:"identity"`
	UserID   string `json:"userId,omitempty"`
	UserName string `json:"userName,omitempty"`
}

// IssuedToken is the result of one successful issuance. Nothing about it is
// retained by the Engine.
type IssuedToken struct {
	Token     string
	JTI       string
	Identity  string
	UserID    string
	UserName  string
	ExpiresIn int
	IssuedAt  time.Time
	ExpiresAt time.Time
}
