package sdk

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/curaious/ors/internal/perrors"
	"github.com/curaious/ors/pkg/fleet"
	"github.com/curaious/ors/pkg/validation"
)

type authPayload struct {
	Token string     `json:"token"`
	User  fleet.User `json:"user"`
}

// authResponse accepts the session either at the top level or inside the
// usual data envelope.
type authResponse struct {
	authPayload
	Message string       `json:"message"`
	Data    *authPayload `json:"data"`
}

func (r authResponse) payload() authPayload {
	if r.Token == "" && r.Data != nil {
		return *r.Data
	}
	return r.authPayload
}

// Login authenticates with the backend. On success the session is replaced
// and the entity cache is reset, so nothing fetched under a previous
// identity can be served afterwards.
func (c *Client) Login(ctx context.Context, creds fleet.Credentials) (fleet.Session, error) {
	ctx, span := tracer.Start(ctx, "SDK.Login")
	defer span.End()

	if err := validation.Struct(creds); err != nil {
		return fleet.Session{}, recordError(span, err)
	}

	var res authResponse
	if err := c.api.Do(ctx, http.MethodPost, "/auth/login", creds, &res); err != nil {
		return fleet.Session{}, recordError(span, authError("login failed", err))
	}

	session, err := c.establish(ctx, res.payload())
	if err != nil {
		return fleet.Session{}, recordError(span, err)
	}

	slog.InfoContext(ctx, "logged in", slog.String("user_id", session.User.ID), slog.String("role", string(session.User.Role)))
	return session, nil
}

// Register creates an account. When the backend answers with a token the
// new account becomes the current session, exactly as after Login.
func (c *Client) Register(ctx context.Context, in fleet.UserInput) (fleet.Session, error) {
	ctx, span := tracer.Start(ctx, "SDK.Register")
	defer span.End()

	if err := validation.Struct(in); err != nil {
		return fleet.Session{}, recordError(span, err)
	}

	var res authResponse
	if err := c.api.Do(ctx, http.MethodPost, "/auth/register", in, &res); err != nil {
		return fleet.Session{}, recordError(span, authError("registration failed", err))
	}

	payload := res.payload()
	if payload.Token == "" {
		slog.InfoContext(ctx, "registered, login required", slog.String("email", in.Email))
		return fleet.Session{User: payload.User}, nil
	}

	session, err := c.establish(ctx, payload)
	if err != nil {
		return fleet.Session{}, recordError(span, err)
	}
	slog.InfoContext(ctx, "registered", slog.String("user_id", session.User.ID))
	return session, nil
}

// Logout drops the session and everything cached under it.
func (c *Client) Logout(ctx context.Context) {
	c.session.Clear()
	c.cache.Reset(ctx)
	slog.InfoContext(ctx, "logged out")
}

func (c *Client) establish(ctx context.Context, payload authPayload) (fleet.Session, error) {
	if payload.Token == "" {
		return fleet.Session{}, perrors.NewErrAuth("no token in auth response", nil)
	}

	c.session.Set(fleet.Session{User: payload.User, Token: payload.Token})
	c.cache.Reset(ctx)

	session, ok := c.session.Current()
	if !ok {
		c.session.Clear()
		return fleet.Session{}, perrors.NewErrAuth("token already expired", nil)
	}
	return session, nil
}

// authError keeps network failures distinguishable and reports everything
// else with the backend's message as an auth error.
func authError(msg string, err error) error {
	if perrors.HasCode(err, perrors.ErrCodeNetwork) {
		return err
	}

	var perr perrors.Err
	if errors.As(err, &perr) && perr.Message != "" {
		msg = perr.Message
	}
	return perrors.NewErrAuth(msg, err)
}
