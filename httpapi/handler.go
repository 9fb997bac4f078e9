package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	voicegrant "github.com/MrEthical07/voicegrant"
	"github.com/MrEthical07/voicegrant/middleware"
	"github.com/labstack/echo/v4"
)

const (
	msgMethodNotAllowed = "Method not allowed"
	msgIdentityRequired = "Identity is required"
	msgMisconfigured    = "Missing Twilio env vars on server"
	msgRateLimited      = "Too many requests"
	msgUnavailable      = "Token service unavailable"
	msgTokenError       = "Token error"
)

type errorResponse struct {
	Error string `json:"error"`
}

type failureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	Identity  string `json:"identity"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	ExpiresIn int    `json:"expiresIn"`
	Success   bool   `json:"success"`
}

type introspectResponse struct {
	Identity          string `json:"identity"`
	TokenID           string `json:"jti"`
	Issuer            string `json:"iss"`
	Subject           string `json:"sub"`
	ExpiresAt         int64  `json:"exp"`
	Incoming          bool   `json:"incoming"`
	ApplicationTarget string `json:"applicationTarget"`
}

func (s *Server) handleToken(c echo.Context) error {
	switch c.Request().Method {
	case http.MethodOptions:
		return c.NoContent(http.StatusOK)
	case http.MethodPost:
	default:
		return c.JSON(http.StatusMethodNotAllowed, errorResponse{Error: msgMethodNotAllowed})
	}

	if err := s.engine.Ready(); err != nil {
		return s.writeIssueError(c, err)
	}

	var req voicegrant.CredentialRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		if errors.Is(err, echo.ErrStatusRequestEntityTooLarge) {
			return err
		}
		return c.JSON(http.StatusBadRequest, errorResponse{Error: msgIdentityRequired})
	}

	ctx := voicegrant.WithClientIP(c.Request().Context(), c.RealIP())
	ctx = voicegrant.WithRequestID(ctx, c.Response().Header().Get(echo.HeaderXRequestID))

	issued, err := s.engine.Issue(ctx, req)
	if err != nil {
		return s.writeIssueError(c, err)
	}

	return c.JSON(http.StatusOK, tokenResponse{
		Token:     issued.Token,
		Identity:  issued.Identity,
		UserID:    issued.UserID,
		UserName:  issued.UserName,
		ExpiresIn: issued.ExpiresIn,
		Success:   true,
	})
}

func (s *Server) writeIssueError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, voicegrant.ErrMisconfigured):
		return c.JSON(http.StatusInternalServerError, failureResponse{Error: msgMisconfigured})
	case errors.Is(err, voicegrant.ErrBadRequest):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: msgIdentityRequired})
	case errors.Is(err, voicegrant.ErrRateLimited):
		return c.JSON(http.StatusTooManyRequests, failureResponse{Error: msgRateLimited})
	case errors.Is(err, voicegrant.ErrIssuanceUnavailable):
		return c.JSON(http.StatusServiceUnavailable, failureResponse{Error: msgUnavailable})
	}

	s.logger.Error().
		Err(err).
		Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
		Msg("token request failed")

	msg := msgTokenError
	if s.engine.ExposeInternalErrors() {
		msg = err.Error()
	}
	return c.JSON(http.StatusInternalServerError, failureResponse{Error: msg})
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.engine.Ready(); err != nil {
		return c.String(http.StatusServiceUnavailable, "misconfigured")
	}
	return c.String(http.StatusOK, "ok")
}

func (s *Server) handleIntrospect(c echo.Context) error {
	claims, ok := middleware.ClaimsFromContext(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
	}

	var exp int64
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Unix()
	}

	return c.JSON(http.StatusOK, introspectResponse{
		Identity:          claims.Grants.Identity,
		TokenID:           claims.ID,
		Issuer:            claims.Issuer,
		Subject:           claims.Subject,
		ExpiresAt:         exp,
		Incoming:          claims.Grants.Voice.Incoming.Allow,
		ApplicationTarget: claims.Grants.Voice.Outgoing.ApplicationTarget,
	})
}
