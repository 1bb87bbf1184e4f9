package sdk

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/curaious/ors/internal/perrors"
	"github.com/curaious/ors/internal/utils"
	"github.com/curaious/ors/pkg/access"
	"github.com/curaious/ors/pkg/fleet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loggedIn(t *testing.T, b *fakeBackend, email string) *Client {
	t.Helper()
	c := b.client()
	_, err := c.Login(context.Background(), fleet.Credentials{Email: email, Password: password})
	require.NoError(t, err)
	return c
}

func cachedPlans(t *testing.T, c *Client) []fleet.OrsPlan {
	t.Helper()
	plans, ok, err := c.CachedOrsPlans(context.Background())
	require.NoError(t, err)
	require.True(t, ok, "plan list should be cached")
	return plans
}

func TestNewRequiresEndpoint(t *testing.T) {
	_, err := New(&ClientOptions{})
	assert.Error(t, err)
	_, err = New(nil)
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	b := newFakeBackend(t)
	c := b.client()

	session, err := c.Login(context.Background(), fleet.Credentials{Email: "insp@ors.io", Password: password})
	require.NoError(t, err)
	assert.Equal(t, "u-insp", session.User.ID)
	assert.Equal(t, fleet.RoleInspector, session.User.Role)
	assert.False(t, session.ExpiresAt.IsZero())

	current, ok := c.Session()
	require.True(t, ok)
	assert.Equal(t, session.Token, current.Token)

	_, err = c.ListOrsPlans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer "+session.Token, b.authHeader())
}

func TestLoginValidationMakesNoRequest(t *testing.T) {
	b := newFakeBackend(t)
	c := b.client()

	_, err := c.Login(context.Background(), fleet.Credentials{Email: "not-an-email", Password: password})
	require.Error(t, err)
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeValidation))

	_, err = c.Login(context.Background(), fleet.Credentials{Email: "insp@ors.io", Password: "123"})
	require.Error(t, err)
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeValidation))

	assert.Zero(t, b.totalHits())
}

func TestLoginRejectedIsAuthError(t *testing.T) {
	b := newFakeBackend(t)
	c := b.client()

	_, err := c.Login(context.Background(), fleet.Credentials{Email: "insp@ors.io", Password: "wrong-password"})
	require.Error(t, err)
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeAuth))

	var perr perrors.Err
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "Invalid credentials", perr.Message)

	_, ok := c.Session()
	assert.False(t, ok)
}

func TestLoginWithExpiredTokenFails(t *testing.T) {
	b := newFakeBackend(t)
	b.tokenTTL = -time.Minute
	c := b.client()

	_, err := c.Login(context.Background(), fleet.Credentials{Email: "insp@ors.io", Password: password})
	require.Error(t, err)
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeAuth))
	_, ok := c.Session()
	assert.False(t, ok)
}

func TestLoginResetsCache(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)
	c := loggedIn(t, b, "insp@ors.io")

	_, err := c.ListOrsPlans(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, b.count(http.MethodGet, "/ors"))

	_, err = c.Login(ctx, fleet.Credentials{Email: "admin@ors.io", Password: password})
	require.NoError(t, err)

	_, ok, err := c.CachedOrsPlans(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "nothing from the previous identity survives")

	_, err = c.ListOrsPlans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, b.count(http.MethodGet, "/ors"))
}

func TestLoginDuringFetchDoesNotCacheOldIdentity(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)
	c := loggedIn(t, b, "insp@ors.io")

	gate := make(chan struct{})
	b.mu.Lock()
	b.listGate = gate
	b.mu.Unlock()

	done := make(chan error)
	go func() {
		_, err := c.ListOrsPlans(ctx)
		done <- err
	}()

	require.Eventually(t, func() bool { return b.count(http.MethodGet, "/ors") == 1 }, 2*time.Second, 5*time.Millisecond)

	_, err := c.Login(ctx, fleet.Credentials{Email: "view@ors.io", Password: password})
	require.NoError(t, err)
	close(gate)
	require.NoError(t, <-done)

	_, ok, err := c.CachedOrsPlans(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)
	c := loggedIn(t, b, "admin@ors.io")

	_, err := c.ListOrsPlans(ctx)
	require.NoError(t, err)

	c.Logout(ctx)

	_, ok := c.Session()
	assert.False(t, ok)
	_, ok, err = c.CachedOrsPlans(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.ListOrsPlans(ctx)
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeUnauthorized))
	assert.Equal(t, 1, b.count(http.MethodGet, "/ors"))
}

func TestRegister(t *testing.T) {
	b := newFakeBackend(t)
	c := b.client()

	session, err := c.Register(context.Background(), fleet.UserInput{
		Username: "newinspector",
		Email:    "new@ors.io",
		Password: password,
		Role:     fleet.RoleInspector,
	})
	require.NoError(t, err)
	assert.Equal(t, "u-new", session.User.ID)
	assert.True(t, session.Authenticated())

	_, err = c.Register(context.Background(), fleet.UserInput{
		Username: "dup-admin",
		Email:    "admin@ors.io",
		Password: password,
		Role:     fleet.RoleAdmin,
	})
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeAuth))

	_, err = c.Register(context.Background(), fleet.UserInput{
		Username: "abc",
		Email:    "short@ors.io",
		Password: password,
		Role:     fleet.RoleViewer,
	})
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeValidation))
	assert.Equal(t, 2, b.count(http.MethodPost, "/auth/register"))
}

func TestConcurrentListsShareOneRequest(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)
	c := loggedIn(t, b, "admin@ors.io")

	gate := make(chan struct{})
	b.mu.Lock()
	b.listGate = gate
	b.mu.Unlock()

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			plans, err := c.ListOrsPlans(ctx)
			assert.NoError(t, err)
			assert.Len(t, plans, 2)
		}()
	}

	require.Eventually(t, func() bool { return b.count(http.MethodGet, "/ors") == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, 1, b.count(http.MethodGet, "/ors"))
}

func TestListDecodesMixedReferences(t *testing.T) {
	b := newFakeBackend(t)
	c := loggedIn(t, b, "admin@ors.io")

	plans, err := c.ListOrsPlans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 2)

	assert.Equal(t, "u-insp", plans[0].AssignedTo.ID())
	user, ok := plans[0].AssignedTo.User()
	require.True(t, ok)
	assert.Equal(t, "inspector1", user.Username)
	assert.Equal(t, "u-admin", plans[0].CreatedBy.ID())
	assert.Equal(t, "u-other", plans[1].AssignedTo.ID())
}

func TestVisiblePlansForInspector(t *testing.T) {
	b := newFakeBackend(t)
	c := loggedIn(t, b, "insp@ors.io")

	plans, err := c.VisiblePlans(context.Background(), access.PlanFilter{})
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "p1", plans[0].ID)

	plans, err = c.VisiblePlans(context.Background(), access.PlanFilter{ScoreBand: access.BandLow})
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestDashboard(t *testing.T) {
	b := newFakeBackend(t)
	c := loggedIn(t, b, "view@ors.io")

	summary, err := c.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.ByBand[access.BandHigh])
	assert.Equal(t, 1, summary.ByBand[access.BandLow])
	assert.Equal(t, 1, summary.NeedsAction)
}

func TestGetOrsPlan(t *testing.T) {
	b := newFakeBackend(t)
	c := loggedIn(t, b, "admin@ors.io")

	plan, err := c.GetOrsPlan(context.Background(), "p2")
	require.NoError(t, err)
	assert.Equal(t, "Van-04", plan.Vehicle)

	_, err = c.GetOrsPlan(context.Background(), "missing")
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeNotFound))
	assert.Equal(t, 1, b.count(http.MethodGet, "/ors"))
}

func TestCreateOrsPlanInvalidatesList(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)
	c := loggedIn(t, b, "insp@ors.io")

	_, err := c.ListOrsPlans(ctx)
	require.NoError(t, err)

	b.setPlans(`[` + createdPlan + `]`)
	created, err := c.CreateOrsPlan(ctx, fleet.OrsPlanInput{
		Vehicle:             "Bus-21",
		RoadWorthinessScore: "70",
		OverallTrafficScore: fleet.GradeB,
	})
	require.NoError(t, err)
	assert.Equal(t, "p3", created.ID)

	plans, err := c.ListOrsPlans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, b.count(http.MethodGet, "/ors"))
	assert.Equal(t, "Bus-21", plans[0].Vehicle)
}

func TestCreateOrsPlanSendsNormalizedScore(t *testing.T) {
	b := newFakeBackend(t)
	c := loggedIn(t, b, "admin@ors.io")

	_, err := c.CreateOrsPlan(context.Background(), fleet.OrsPlanInput{
		Vehicle:             " Truck-99 ",
		RoadWorthinessScore: "78",
		OverallTrafficScore: fleet.GradeA,
	})
	require.NoError(t, err)

	var sent fleet.OrsPlanInput
	require.NoError(t, sonic.Unmarshal(b.created(), &sent))
	assert.Equal(t, "78%", sent.RoadWorthinessScore)
	assert.Equal(t, "Truck-99", sent.Vehicle)
	require.Len(t, sent.Documents, 1)
	assert.Len(t, sent.Documents[0].TextDoc, 1)
}

func TestCreateOrsPlanFailureLeavesCache(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)
	c := loggedIn(t, b, "insp@ors.io")

	_, err := c.ListOrsPlans(ctx)
	require.NoError(t, err)

	_, err = c.CreateOrsPlan(ctx, fleet.OrsPlanInput{Vehicle: "Bus-21", RoadWorthinessScore: "abc", OverallTrafficScore: fleet.GradeB})
	require.Error(t, err)
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeValidation))
	assert.Equal(t, 0, b.count(http.MethodPost, "/ors"))

	_, ok, err := c.CachedOrsPlans(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestViewerCannotMutatePlans(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)
	c := loggedIn(t, b, "view@ors.io")

	_, err := c.CreateOrsPlan(ctx, fleet.OrsPlanInput{Vehicle: "Bus-21", RoadWorthinessScore: "70", OverallTrafficScore: fleet.GradeB})
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeForbidden))

	_, err = c.UpdateOrsPlan(ctx, "p1", fleet.OrsPlanPatch{Vehicle: utils.Ptr("x")})
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeForbidden))

	err = c.DeleteOrsPlan(ctx, "p1")
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeForbidden))

	ic := loggedIn(t, b, "insp@ors.io")
	err = ic.DeleteOrsPlan(ctx, "p1")
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeForbidden))

	assert.Equal(t, 0, b.count(http.MethodPost, "/ors"))
	assert.Equal(t, 0, b.count(http.MethodPut, "/ors/p1"))
	assert.Equal(t, 0, b.count(http.MethodDelete, "/ors/p1"))
}

func TestUpdateOrsPlanIsVisibleBeforeResponse(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)
	c := loggedIn(t, b, "insp@ors.io")

	_, err := c.ListOrsPlans(ctx)
	require.NoError(t, err)

	var seenDuringRequest fleet.OrsPlan
	b.onPut = func(w http.ResponseWriter, r *http.Request) {
		plans, _, _ := c.CachedOrsPlans(context.Background())
		seenDuringRequest, _ = fleet.FindPlan(plans, "p1")
		writeJSON(w, http.StatusOK, `{"success":true,"data":{"_id":"p1","vehicle":"Truck-12B","assignedTo":"u-insp"}}`)
	}

	updated, err := c.UpdateOrsPlan(ctx, "p1", fleet.OrsPlanPatch{Vehicle: utils.Ptr("Truck-12B"), RoadWorthinessScore: utils.Ptr("90")})
	require.NoError(t, err)

	assert.Equal(t, "Truck-12B", seenDuringRequest.Vehicle)
	assert.Equal(t, "90%", seenDuringRequest.RoadWorthinessScore)

	assert.Equal(t, "Truck-12B", updated.Vehicle)
	_, populated := updated.AssignedTo.User()
	assert.True(t, populated, "merged plan keeps the populated reference")

	plans := cachedPlans(t, c)
	assert.Equal(t, "Truck-12B", plans[0].Vehicle)
	assert.Equal(t, "Van-04", plans[1].Vehicle)
	assert.Equal(t, 1, b.count(http.MethodGet, "/ors"), "update does not refetch")
}

func TestUpdateOrsPlanRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)
	c := loggedIn(t, b, "admin@ors.io")

	_, err := c.ListOrsPlans(ctx)
	require.NoError(t, err)
	before, err := sonic.Marshal(cachedPlans(t, c))
	require.NoError(t, err)

	b.onPut = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"message":"database unavailable"}`)
	}

	_, err = c.UpdateOrsPlan(ctx, "p2", fleet.OrsPlanPatch{ActionRequired: utils.Ptr("none")})
	require.Error(t, err)
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeServer))

	after, err := sonic.Marshal(cachedPlans(t, c))
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestOverlappingUpdatesRollBackIndependently(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)
	c := loggedIn(t, b, "admin@ors.io")

	_, err := c.ListOrsPlans(ctx)
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	b.onPut = func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "p1" {
			close(started)
			<-release
			writeJSON(w, http.StatusInternalServerError, `{"message":"database unavailable"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"success":true,"data":{"_id":"p2","actionRequired":"accepted edit"}}`)
	}

	failed := make(chan error, 1)
	go func() {
		_, err := c.UpdateOrsPlan(ctx, "p1", fleet.OrsPlanPatch{ActionRequired: utils.Ptr("rejected edit")})
		failed <- err
	}()
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("p1 update never reached the backend")
	}

	_, err = c.UpdateOrsPlan(ctx, "p2", fleet.OrsPlanPatch{ActionRequired: utils.Ptr("accepted edit")})
	require.NoError(t, err)

	close(release)
	select {
	case err := <-failed:
		assert.True(t, perrors.HasCode(err, perrors.ErrCodeServer))
	case <-time.After(2 * time.Second):
		t.Fatal("p1 update did not return")
	}

	plans := cachedPlans(t, c)
	p1, _ := fleet.FindPlan(plans, "p1")
	p2, _ := fleet.FindPlan(plans, "p2")
	assert.Equal(t, "none", p1.ActionRequired)
	assert.Equal(t, "accepted edit", p2.ActionRequired)
}

func TestInspectorCannotUpdateOthersPlan(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)
	c := loggedIn(t, b, "insp@ors.io")

	_, err := c.ListOrsPlans(ctx)
	require.NoError(t, err)
	before, err := sonic.Marshal(cachedPlans(t, c))
	require.NoError(t, err)

	_, err = c.UpdateOrsPlan(ctx, "p2", fleet.OrsPlanPatch{ActionRequired: utils.Ptr("none")})
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeForbidden))
	assert.Equal(t, 0, b.count(http.MethodPut, "/ors/p2"))

	after, err := sonic.Marshal(cachedPlans(t, c))
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))

	_, err = c.UpdateOrsPlan(ctx, "p1", fleet.OrsPlanPatch{ActionRequired: utils.Ptr("fix brakes")})
	require.NoError(t, err, "own plan stays editable")
}

func TestUpdateOrsPlanWithoutCachedList(t *testing.T) {
	b := newFakeBackend(t)
	c := loggedIn(t, b, "admin@ors.io")

	updated, err := c.UpdateOrsPlan(context.Background(), "p1", fleet.OrsPlanPatch{Vehicle: utils.Ptr("from server")})
	require.NoError(t, err)
	assert.Equal(t, "from server", updated.Vehicle)
	assert.Equal(t, 1, b.count(http.MethodPut, "/ors/p1"))
}

func TestUpdateOrsPlanRejectsEmptyPatch(t *testing.T) {
	b := newFakeBackend(t)
	c := loggedIn(t, b, "admin@ors.io")

	_, err := c.UpdateOrsPlan(context.Background(), "p1", fleet.OrsPlanPatch{})
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeValidation))

	_, err = c.UpdateOrsPlan(context.Background(), "p1", fleet.OrsPlanPatch{OverallTrafficScore: utils.Ptr(fleet.Grade("E"))})
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeValidation))
	assert.Equal(t, 0, b.count(http.MethodPut, "/ors/p1"))
}

func TestDeleteOrsPlanInvalidatesList(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)
	c := loggedIn(t, b, "admin@ors.io")

	_, err := c.ListOrsPlans(ctx)
	require.NoError(t, err)

	require.NoError(t, c.DeleteOrsPlan(ctx, "p2"))
	_, ok, err := c.CachedOrsPlans(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListUsersIsAdminOnly(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)

	for _, email := range []string{"insp@ors.io", "view@ors.io"} {
		c := loggedIn(t, b, email)
		_, err := c.ListUsers(ctx)
		require.Error(t, err)
		assert.True(t, perrors.HasCode(err, perrors.ErrCodeForbidden), email)
	}
	assert.Equal(t, 0, b.count(http.MethodGet, "/user"))

	c := loggedIn(t, b, "admin@ors.io")
	users, err := c.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, 1, b.count(http.MethodGet, "/user"))
}

func TestListUsersAcceptsDataEnvelope(t *testing.T) {
	b := newFakeBackend(t)
	b.users = `{"success":true,"data":[{"_id":"u-view","username":"viewer1","email":"view@ors.io","role":"viewer"}]}`
	c := loggedIn(t, b, "admin@ors.io")

	users, err := c.FilteredUsers(context.Background(), access.UserFilter{Role: "viewer"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "viewer1", users[0].Username)
}

func TestUserMutationsInvalidateUserList(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)
	c := loggedIn(t, b, "admin@ors.io")

	_, err := c.ListUsers(ctx)
	require.NoError(t, err)

	_, err = c.CreateUser(ctx, fleet.UserInput{Username: "newuser", Email: "new@ors.io", Password: password, Role: fleet.RoleViewer})
	require.NoError(t, err)
	_, err = c.ListUsers(ctx)
	require.NoError(t, err)

	updated, err := c.UpdateUserRole(ctx, "u-new", fleet.RoleInspector)
	require.NoError(t, err)
	assert.Equal(t, "u-new", updated.ID)
	assert.Equal(t, fleet.RoleInspector, updated.Role)
	_, err = c.ListUsers(ctx)
	require.NoError(t, err)

	require.NoError(t, c.DeleteUser(ctx, "u-new"))
	_, err = c.ListUsers(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, b.count(http.MethodGet, "/user"))
	assert.Equal(t, 1, b.count(http.MethodPatch, "/user/u-new/role"))
}

func TestUserMutationFailureKeepsCache(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend(t)
	c := loggedIn(t, b, "admin@ors.io")

	_, err := c.ListUsers(ctx)
	require.NoError(t, err)

	b.onUserMutation = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"message":"User not found"}`)
	}
	err = c.DeleteUser(ctx, "ghost")
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeNotFound))

	_, err = c.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, b.count(http.MethodGet, "/user"))
}

func TestUpdateUserRoleWithoutEchoedUser(t *testing.T) {
	b := newFakeBackend(t)
	c := loggedIn(t, b, "admin@ors.io")
	b.onUserMutation = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success":true,"message":"Role updated"}`)
	}

	user, err := c.UpdateUserRole(context.Background(), "u-insp", fleet.RoleViewer)
	require.NoError(t, err)
	assert.Equal(t, fleet.User{ID: "u-insp", Role: fleet.RoleViewer}, user)
}

func TestUpdateUserRoleValidatesRole(t *testing.T) {
	b := newFakeBackend(t)
	c := loggedIn(t, b, "admin@ors.io")

	_, err := c.UpdateUserRole(context.Background(), "u-insp", fleet.Role("superuser"))
	require.Error(t, err)
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeValidation))
	assert.Equal(t, 0, b.count(http.MethodPatch, "/user/u-insp/role"))
}
