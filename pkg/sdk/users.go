package sdk

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/curaious/ors/pkg/access"
	"github.com/curaious/ors/pkg/fleet"
	"github.com/curaious/ors/pkg/sdk/adapters"
	"github.com/curaious/ors/pkg/sdk/cache"
	"github.com/curaious/ors/pkg/validation"
	"go.opentelemetry.io/otel/attribute"
)

var userListKey = cache.QueryKey{Tag: cache.TagUser, Name: "list"}

type userListResponse struct {
	Users []fleet.User `json:"users"`
	Data  []fleet.User `json:"data"`
}

func (r userListResponse) list() []fleet.User {
	switch {
	case r.Users != nil:
		return r.Users
	case r.Data != nil:
		return r.Data
	}
	return []fleet.User{}
}

func userPath(id string) string {
	return "/user/" + url.PathEscape(id)
}

// ListUsers returns all accounts. Only admins may list users; for anyone
// else no request is made.
func (c *Client) ListUsers(ctx context.Context) ([]fleet.User, error) {
	ctx, span := tracer.Start(ctx, "SDK.ListUsers")
	defer span.End()

	if _, err := c.requireSession(fleet.RoleAdmin); err != nil {
		return nil, recordError(span, err)
	}

	users, err := cache.Query(ctx, c.cache, userListKey, func(ctx context.Context) ([]fleet.User, error) {
		var res userListResponse
		if err := c.api.Do(ctx, http.MethodGet, "/user", nil, &res); err != nil {
			return nil, err
		}
		return res.list(), nil
	})
	if err != nil {
		return nil, recordError(span, err)
	}
	span.SetAttributes(attribute.Int("users", len(users)))
	return users, nil
}

func (c *Client) FilteredUsers(ctx context.Context, filter access.UserFilter) ([]fleet.User, error) {
	users, err := c.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	return access.FilterUsers(users, filter), nil
}

// CreateUser adds an account on behalf of an admin.
func (c *Client) CreateUser(ctx context.Context, in fleet.UserInput) (fleet.User, error) {
	ctx, span := tracer.Start(ctx, "SDK.CreateUser")
	defer span.End()

	if _, err := c.requireSession(fleet.RoleAdmin); err != nil {
		return fleet.User{}, recordError(span, err)
	}
	if err := validation.Struct(in); err != nil {
		return fleet.User{}, recordError(span, err)
	}

	var res adapters.Response[fleet.User]
	if err := c.api.Do(ctx, http.MethodPost, "/user", in, &res); err != nil {
		return fleet.User{}, recordError(span, err)
	}

	c.cache.Invalidate(ctx, cache.TagUser)
	slog.InfoContext(ctx, "user created", slog.String("email", in.Email), slog.String("role", string(in.Role)))
	return res.Data, nil
}

// UpdateUserRole changes a user's role and returns the user as the backend
// now has it.
func (c *Client) UpdateUserRole(ctx context.Context, id string, role fleet.Role) (fleet.User, error) {
	ctx, span := tracer.Start(ctx, "SDK.UpdateUserRole")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", id), attribute.String("role", string(role)))

	if _, err := c.requireSession(fleet.RoleAdmin); err != nil {
		return fleet.User{}, recordError(span, err)
	}
	body := fleet.RoleUpdate{Role: role}
	if err := validation.Struct(body); err != nil {
		return fleet.User{}, recordError(span, err)
	}

	var res adapters.Response[fleet.User]
	if err := c.api.Do(ctx, http.MethodPatch, userPath(id)+"/role", body, &res); err != nil {
		return fleet.User{}, recordError(span, err)
	}

	c.cache.Invalidate(ctx, cache.TagUser)
	slog.InfoContext(ctx, "user role updated", slog.String("id", id), slog.String("role", string(role)))
	if res.Data.ID == "" {
		// backend acknowledged without echoing the user
		return fleet.User{ID: id, Role: role}, nil
	}
	return res.Data, nil
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "SDK.DeleteUser")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", id))

	if _, err := c.requireSession(fleet.RoleAdmin); err != nil {
		return recordError(span, err)
	}

	if err := c.api.Do(ctx, http.MethodDelete, userPath(id), nil, nil); err != nil {
		return recordError(span, err)
	}

	c.cache.Invalidate(ctx, cache.TagUser)
	slog.InfoContext(ctx, "user deleted", slog.String("id", id))
	return nil
}
