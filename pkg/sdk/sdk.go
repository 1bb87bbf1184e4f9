package sdk

import (
	"fmt"
	"net/http"
	"time"

	"github.com/curaious/ors/pkg/access"
	"github.com/curaious/ors/pkg/fleet"
	"github.com/curaious/ors/pkg/sdk/adapters"
	"github.com/curaious/ors/pkg/sdk/cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("SDK")

const DefaultTimeout = 30 * time.Second

// Client is the dashboard's view of the ORS backend: session, requests and
// the entity cache behind them.
type Client struct {
	api     *adapters.APIClient
	session *SessionStore
	cache   *cache.Cache
}

type ClientOptions struct {
	// Endpoint of the ORS API including the version prefix, e.g.
	// "http://localhost:5000/api/v1".
	Endpoint string

	// HTTPClient overrides the instrumented default client.
	HTTPClient *http.Client

	// Timeout applies to the default client. Zero means DefaultTimeout.
	Timeout time.Duration

	// Storage backs the entity cache. Nil keeps it in memory.
	Storage cache.Storage
}

func New(opts *ClientOptions) (*Client, error) {
	if opts == nil || opts.Endpoint == "" {
		return nil, fmt.Errorf("no endpoint")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	session := NewSessionStore()
	return &Client{
		api:     adapters.NewAPIClient(opts.Endpoint, session, opts.HTTPClient, timeout),
		session: session,
		cache:   cache.New(opts.Storage),
	}, nil
}

// Session returns the current session, if any.
func (c *Client) Session() (fleet.Session, bool) {
	return c.session.Current()
}

func (c *Client) Cache() *cache.Cache {
	return c.cache
}

func recordError(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// requireSession returns the session or an unauthorized error without
// touching the network.
func (c *Client) requireSession(allowed ...fleet.Role) (fleet.Session, error) {
	session, _ := c.session.Current()
	if err := access.Authorize(session, allowed...); err != nil {
		return fleet.Session{}, err
	}
	return session, nil
}
