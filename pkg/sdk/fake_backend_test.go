package sdk

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/curaious/ors/pkg/fleet"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const password = "secret1"

var accounts = map[string]fleet.User{
	"admin@ors.io": {ID: "u-admin", Username: "admin01", Email: "admin@ors.io", Role: fleet.RoleAdmin},
	"insp@ors.io":  {ID: "u-insp", Username: "inspector1", Email: "insp@ors.io", Role: fleet.RoleInspector},
	"view@ors.io":  {ID: "u-view", Username: "viewer1", Email: "view@ors.io", Role: fleet.RoleViewer},
}

// p1 carries populated references, p2 bare ids.
const seedPlans = `[
	{"_id":"p1","vehicle":"Truck-12","roadWorthinessScore":"85%","overallTrafficScore":"A","actionRequired":"none",
	 "documents":[{"textDoc":[{"label":"brakes","description":"ok"}],"attachments":[]}],
	 "assignedTo":{"_id":"u-insp","username":"inspector1","email":"insp@ors.io","role":"inspector"},
	 "createdBy":"u-admin"},
	{"_id":"p2","vehicle":"Van-04","roadWorthinessScore":"55%","overallTrafficScore":"C","actionRequired":"replace tyres",
	 "documents":[],"assignedTo":"u-other","createdBy":"u-admin"}
]`

const createdPlan = `{"_id":"p3","vehicle":"Bus-21","roadWorthinessScore":"70%","overallTrafficScore":"B","actionRequired":"",
	"documents":[{"textDoc":[{"label":"","description":""}],"attachments":[]}],"createdBy":"u-insp"}`

type fakeBackend struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	hits     map[string]int
	lastAuth string
	lastBody []byte
	plans    string
	users    string
	tokenTTL time.Duration

	// listGate, when set, holds GET /ors until closed.
	listGate chan struct{}
	// onPut replaces the default PUT /ors/{id} handler.
	onPut http.HandlerFunc
	// onUserMutation replaces the default user mutation handlers.
	onUserMutation http.HandlerFunc
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()

	b := &fakeBackend{
		t:        t,
		hits:     map[string]int{},
		plans:    seedPlans,
		users:    `{"users":[{"_id":"u-admin","username":"admin01","email":"admin@ors.io","role":"admin"},{"_id":"u-insp","username":"inspector1","email":"insp@ors.io","role":"inspector"}]}`,
		tokenTTL: time.Hour,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", b.login)
	mux.HandleFunc("POST /api/v1/auth/register", b.register)
	mux.HandleFunc("GET /api/v1/ors", b.listPlans)
	mux.HandleFunc("POST /api/v1/ors", b.createPlan)
	mux.HandleFunc("PUT /api/v1/ors/{id}", b.updatePlan)
	mux.HandleFunc("DELETE /api/v1/ors/{id}", b.ok)
	mux.HandleFunc("GET /api/v1/user", b.listUsers)
	mux.HandleFunc("POST /api/v1/user", b.userMutation)
	mux.HandleFunc("PATCH /api/v1/user/{id}/role", b.updateRole)
	mux.HandleFunc("DELETE /api/v1/user/{id}", b.userMutation)

	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.hits[r.Method+" "+r.URL.Path]++
		b.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) endpoint() string {
	return b.srv.URL + "/api/v1"
}

func (b *fakeBackend) client() *Client {
	b.t.Helper()
	c, err := New(&ClientOptions{Endpoint: b.endpoint(), Timeout: 5 * time.Second})
	require.NoError(b.t, err)
	return c
}

func (b *fakeBackend) count(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[method+" /api/v1"+path]
}

func (b *fakeBackend) totalHits() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, v := range b.hits {
		n += v
	}
	return n
}

func (b *fakeBackend) authHeader() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastAuth
}

func (b *fakeBackend) setPlans(plans string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.plans = plans
}

func signToken(userID string, exp time.Time) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": userID, "exp": exp.Unix()})
	s, _ := tok.SignedString([]byte("test-secret"))
	return s
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (b *fakeBackend) login(w http.ResponseWriter, r *http.Request) {
	var creds fleet.Credentials
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, `{"message":"bad body"}`)
		return
	}
	user, ok := accounts[creds.Email]
	if !ok || creds.Password != password {
		writeJSON(w, http.StatusUnauthorized, `{"message":"Invalid credentials"}`)
		return
	}

	b.mu.Lock()
	ttl := b.tokenTTL
	b.mu.Unlock()

	userJSON, _ := sonic.Marshal(user)
	writeJSON(w, http.StatusOK, `{"success":true,"token":"`+signToken(user.ID, time.Now().Add(ttl))+`","user":`+string(userJSON)+`}`)
}

func (b *fakeBackend) register(w http.ResponseWriter, r *http.Request) {
	var in fleet.UserInput
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, `{"message":"bad body"}`)
		return
	}
	if _, taken := accounts[in.Email]; taken {
		writeJSON(w, http.StatusConflict, `{"message":"Email already registered"}`)
		return
	}
	user := fleet.User{ID: "u-new", Username: in.Username, Email: in.Email, Role: in.Role}
	userJSON, _ := sonic.Marshal(user)
	writeJSON(w, http.StatusCreated, `{"success":true,"data":{"token":"`+signToken(user.ID, time.Now().Add(time.Hour))+`","user":`+string(userJSON)+`}}`)
}

func (b *fakeBackend) listPlans(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.lastAuth = r.Header.Get("Authorization")
	gate := b.listGate
	plans := b.plans
	b.mu.Unlock()

	if gate != nil {
		<-gate
	}
	writeJSON(w, http.StatusOK, `{"success":true,"data":`+plans+`}`)
}

func (b *fakeBackend) created() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastBody
}

func (b *fakeBackend) createPlan(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	b.mu.Lock()
	b.lastBody = body
	b.mu.Unlock()

	writeJSON(w, http.StatusCreated, `{"success":true,"data":`+createdPlan+`}`)
}

func (b *fakeBackend) updatePlan(w http.ResponseWriter, r *http.Request) {
	if b.onPut != nil {
		b.onPut(w, r)
		return
	}
	writeJSON(w, http.StatusOK, `{"success":true,"data":{"_id":"`+r.PathValue("id")+`","vehicle":"from server","assignedTo":"u-insp"}}`)
}

func (b *fakeBackend) ok(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, `{"success":true}`)
}

func (b *fakeBackend) listUsers(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	users := b.users
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, users)
}

func (b *fakeBackend) updateRole(w http.ResponseWriter, r *http.Request) {
	if b.onUserMutation != nil {
		b.onUserMutation(w, r)
		return
	}
	var body fleet.RoleUpdate
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, `{"message":"bad body"}`)
		return
	}
	writeJSON(w, http.StatusOK, `{"success":true,"data":{"_id":"`+r.PathValue("id")+`","username":"newuser","email":"new@ors.io","role":"`+string(body.Role)+`"}}`)
}

func (b *fakeBackend) userMutation(w http.ResponseWriter, r *http.Request) {
	if b.onUserMutation != nil {
		b.onUserMutation(w, r)
		return
	}
	writeJSON(w, http.StatusOK, `{"success":true,"data":{"_id":"u-new","username":"newuser","email":"new@ors.io","role":"viewer"}}`)
}
