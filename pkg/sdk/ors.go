package sdk

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/curaious/ors/internal/perrors"
	"github.com/curaious/ors/pkg/access"
	"github.com/curaious/ors/pkg/fleet"
	"github.com/curaious/ors/pkg/sdk/adapters"
	"github.com/curaious/ors/pkg/sdk/cache"
	"github.com/curaious/ors/pkg/validation"
	"go.opentelemetry.io/otel/attribute"
)

var orsListKey = cache.QueryKey{Tag: cache.TagORS, Name: "list"}

func orsPath(id string) string {
	return "/ors/" + url.PathEscape(id)
}

// ListOrsPlans returns every plan the backend exposes to the session.
// Concurrent callers share a single request.
func (c *Client) ListOrsPlans(ctx context.Context) ([]fleet.OrsPlan, error) {
	ctx, span := tracer.Start(ctx, "SDK.ListOrsPlans")
	defer span.End()

	if _, err := c.requireSession(); err != nil {
		return nil, recordError(span, err)
	}

	plans, err := cache.Query(ctx, c.cache, orsListKey, func(ctx context.Context) ([]fleet.OrsPlan, error) {
		var res adapters.Response[[]fleet.OrsPlan]
		if err := c.api.Do(ctx, http.MethodGet, "/ors", nil, &res); err != nil {
			return nil, err
		}
		if res.Data == nil {
			return []fleet.OrsPlan{}, nil
		}
		return res.Data, nil
	})
	if err != nil {
		return nil, recordError(span, err)
	}
	span.SetAttributes(attribute.Int("plans", len(plans)))
	return plans, nil
}

// CachedOrsPlans returns the cached plan list without making a request.
func (c *Client) CachedOrsPlans(ctx context.Context) ([]fleet.OrsPlan, bool, error) {
	return cache.Peek[[]fleet.OrsPlan](ctx, c.cache, orsListKey)
}

// GetOrsPlan looks a plan up in the (possibly freshly fetched) list.
func (c *Client) GetOrsPlan(ctx context.Context, id string) (fleet.OrsPlan, error) {
	plans, err := c.ListOrsPlans(ctx)
	if err != nil {
		return fleet.OrsPlan{}, err
	}
	plan, ok := fleet.FindPlan(plans, id)
	if !ok {
		return fleet.OrsPlan{}, perrors.New(perrors.ErrCodeNotFound, "ORS plan not found", nil, map[string]interface{}{"id": id})
	}
	return plan, nil
}

// VisiblePlans applies the session's visibility rule and then filter.
func (c *Client) VisiblePlans(ctx context.Context, filter access.PlanFilter) ([]fleet.OrsPlan, error) {
	session, err := c.requireSession()
	if err != nil {
		return nil, err
	}
	plans, err := c.ListOrsPlans(ctx)
	if err != nil {
		return nil, err
	}
	return access.FilterPlans(access.VisiblePlans(plans, session.User), filter), nil
}

// CreateOrsPlan posts a new plan and marks the plan list stale.
func (c *Client) CreateOrsPlan(ctx context.Context, in fleet.OrsPlanInput) (fleet.OrsPlan, error) {
	ctx, span := tracer.Start(ctx, "SDK.CreateOrsPlan")
	defer span.End()

	session, err := c.requireSession()
	if err != nil {
		return fleet.OrsPlan{}, recordError(span, err)
	}
	if !access.CanModify(session.User) {
		return fleet.OrsPlan{}, recordError(span, perrors.NewErrForbidden("viewers cannot create ORS plans"))
	}

	in = in.Normalized()
	if err := validation.Struct(in); err != nil {
		return fleet.OrsPlan{}, recordError(span, err)
	}

	var res adapters.Response[fleet.OrsPlan]
	if err := c.api.Do(ctx, http.MethodPost, "/ors", in, &res); err != nil {
		return fleet.OrsPlan{}, recordError(span, err)
	}

	c.cache.Invalidate(ctx, cache.TagORS)
	slog.InfoContext(ctx, "ORS plan created", slog.String("id", res.Data.ID), slog.String("vehicle", in.Vehicle))
	return res.Data, nil
}

// UpdateOrsPlan merges patch into the cached list before the request is
// sent. The merge is kept if the backend accepts the update; otherwise only
// the fields this update touched are put back, so a concurrent update of
// another plan survives. The list is not refetched. An inspector may only
// update plans assigned to or created by them.
func (c *Client) UpdateOrsPlan(ctx context.Context, id string, patch fleet.OrsPlanPatch) (fleet.OrsPlan, error) {
	ctx, span := tracer.Start(ctx, "SDK.UpdateOrsPlan")
	defer span.End()
	span.SetAttributes(attribute.String("plan_id", id))

	session, err := c.requireSession()
	if err != nil {
		return fleet.OrsPlan{}, recordError(span, err)
	}
	if !access.CanModify(session.User) {
		return fleet.OrsPlan{}, recordError(span, perrors.NewErrForbidden("viewers cannot edit ORS plans"))
	}

	patch = patch.Normalized()
	if patch.IsEmpty() {
		return fleet.OrsPlan{}, recordError(span, perrors.NewErrValidation("nothing to update", nil))
	}
	if err := validation.Struct(patch); err != nil {
		return fleet.OrsPlan{}, recordError(span, err)
	}

	tx, err := cache.BeginPatch(ctx, c.cache, orsListKey, func(plans *[]fleet.OrsPlan) (func(*[]fleet.OrsPlan), error) {
		before, ok := fleet.FindPlan(*plans, id)
		if !ok {
			return nil, nil
		}
		if !access.CanEdit(session.User, before) {
			return nil, perrors.NewErrForbidden("ORS plan is not assigned to or created by you")
		}
		fleet.ApplyPatch(*plans, id, patch)
		inverse := patch.Inverse(before)
		return func(plans *[]fleet.OrsPlan) { fleet.ApplyPatch(*plans, id, inverse) }, nil
	})
	if err != nil {
		return fleet.OrsPlan{}, recordError(span, err)
	}
	defer tx.Close()

	var res adapters.Response[fleet.OrsPlan]
	if err := c.api.Do(ctx, http.MethodPut, orsPath(id), patch, &res); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.WarnContext(ctx, "rollback of ORS plan update failed", slog.String("id", id), slog.Any("error", rbErr))
		}
		return fleet.OrsPlan{}, recordError(span, err)
	}
	tx.Commit()

	if tx.Applied() {
		if plans, ok, _ := c.CachedOrsPlans(ctx); ok {
			if plan, found := fleet.FindPlan(plans, id); found {
				return plan, nil
			}
		}
	}
	return res.Data, nil
}

// DeleteOrsPlan removes a plan and marks the plan list stale.
func (c *Client) DeleteOrsPlan(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "SDK.DeleteOrsPlan")
	defer span.End()
	span.SetAttributes(attribute.String("plan_id", id))

	session, err := c.requireSession()
	if err != nil {
		return recordError(span, err)
	}
	if !access.CanDelete(session.User) {
		return recordError(span, perrors.NewErrForbidden("only admins can delete ORS plans"))
	}

	if err := c.api.Do(ctx, http.MethodDelete, orsPath(id), nil, nil); err != nil {
		return recordError(span, err)
	}

	c.cache.Invalidate(ctx, cache.TagORS)
	slog.InfoContext(ctx, "ORS plan deleted", slog.String("id", id))
	return nil
}

// Dashboard summarizes the plans visible to the session.
func (c *Client) Dashboard(ctx context.Context) (access.Summary, error) {
	plans, err := c.VisiblePlans(ctx, access.PlanFilter{})
	if err != nil {
		return access.Summary{}, err
	}
	return access.Summarize(plans), nil
}
