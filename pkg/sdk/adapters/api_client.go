package adapters

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/curaious/ors/internal/perrors"
	"github.com/curaious/ors/internal/utils"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Response is the envelope the backend wraps payloads in.
type Response[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// TokenSource supplies the bearer token for each request; "" sends none.
type TokenSource interface {
	Token() string
}

// APIClient calls the ORS REST backend.
type APIClient struct {
	endpoint   string
	tokens     TokenSource
	httpClient *http.Client
}

// NewAPIClient creates a client for endpoint (e.g. "https://host/api/v1").
// A nil httpClient gets an otel-instrumented default with the given timeout.
func NewAPIClient(endpoint string, tokens TokenSource, httpClient *http.Client, timeout time.Duration) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		}
	}

	return &APIClient{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		tokens:     tokens,
		httpClient: httpClient,
	}
}

func (a *APIClient) Endpoint() string {
	return a.endpoint
}

// Do sends body as JSON and decodes the response into out. Either may be nil.
// Transport failures become network errors; HTTP error statuses are mapped
// with perrors.FromStatus and carry the backend's message.
func (a *APIClient) Do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := sonic.Marshal(body)
		if err != nil {
			return perrors.NewErrInvalidRequest("failed to marshal request", err)
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, a.endpoint+path, reader)
	if err != nil {
		return perrors.NewErrInvalidRequest("failed to create request", err)
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for k, v := range carrier {
		httpReq.Header.Set(k, v)
	}

	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-Id", requestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if a.tokens != nil {
		if token := a.tokens.Token(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		slog.WarnContext(ctx, "api request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("request_id", requestID),
			slog.Any("error", err))
		return perrors.NewErrNetwork(fmt.Sprintf("%s %s failed", method, path), err)
	}
	defer resp.Body.Close()

	slog.DebugContext(ctx, "api request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
		slog.String("request_id", requestID))

	if resp.StatusCode >= 400 {
		var errResp errorBody
		_ = utils.DecodeJSON(resp.Body, &errResp)

		msg := errResp.Message
		if msg == "" {
			msg = errResp.Error
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return perrors.New(perrors.FromStatus(resp.StatusCode), msg,
			fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode),
			map[string]interface{}{"status": resp.StatusCode, "request_id": requestID})
	}

	if out == nil {
		return nil
	}
	if err := utils.DecodeJSON(resp.Body, out); err != nil {
		return perrors.New(perrors.ErrCodeServer, "failed to decode response", err)
	}
	return nil
}
