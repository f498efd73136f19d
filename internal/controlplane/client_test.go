package controlplane

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sdkerrors "github.com/wagiedev/sandbox-sdk-go/internal/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return New(log, srv.Client(), srv.URL+"/", "secret", "sandbox-sdk-go/test")
}

func TestClient_GetSandbox(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v2/sandboxes/boxes/my box", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "sandbox-sdk-go/test", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"name": "my box",
			"template_name": "python",
			"dataplane_url": "https://dp.example.com/",
			"id": "sb-1",
			"created_at": "2026-01-01T00:00:00Z"
		}`))
	})

	info, err := client.GetSandbox(context.Background(), "my box")
	require.NoError(t, err)
	require.Equal(t, "my box", info.Name)
	require.Equal(t, "python", info.TemplateName)
	require.Equal(t, "https://dp.example.com", info.DataplaneURL)
	require.Equal(t, "sb-1", info.ID)
	require.Empty(t, info.UpdatedAt)
}

func TestClient_GetSandbox_Errors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Sandbox 'ghost' not found"}`))
	})

	_, err := client.GetSandbox(context.Background(), "ghost")

	var notFound *sdkerrors.NotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "Sandbox 'ghost' not found", notFound.Name)
}

func TestClient_GetSandbox_InvalidBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	_, err := client.GetSandbox(context.Background(), "box")

	var opErr *sdkerrors.OperationError
	require.ErrorAs(t, err, &opErr)
	require.Equal(t, "decode", opErr.Operation)
}

func TestParseHTTPError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized with detail",
			status: http.StatusUnauthorized,
			body:   `{"detail":"Invalid API key"}`,
			check: func(t *testing.T, err error) {
				t.Helper()

				var authErr *sdkerrors.AuthError
				require.ErrorAs(t, err, &authErr)
				require.Equal(t, "Invalid API key", authErr.Message)
			},
		},
		{
			name:   "forbidden with message",
			status: http.StatusForbidden,
			body:   `{"message":"no access"}`,
			check: func(t *testing.T, err error) {
				t.Helper()

				var authErr *sdkerrors.AuthError
				require.ErrorAs(t, err, &authErr)
				require.Equal(t, "no access", authErr.Message)
			},
		},
		{
			name:   "not found",
			status: http.StatusNotFound,
			body:   `{"detail":"missing"}`,
			check: func(t *testing.T, err error) {
				t.Helper()

				var notFound *sdkerrors.NotFoundError
				require.ErrorAs(t, err, &notFound)
				require.Equal(t, "resource", notFound.ResourceType)
			},
		},
		{
			name:   "server error with plain body",
			status: http.StatusBadGateway,
			body:   "upstream unavailable\n",
			check: func(t *testing.T, err error) {
				t.Helper()

				var httpErr *sdkerrors.HTTPError
				require.ErrorAs(t, err, &httpErr)
				require.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
				require.Equal(t, "upstream unavailable", httpErr.Body)
			},
		},
		{
			name:   "json without known fields keeps body",
			status: http.StatusTeapot,
			body:   `{"detail":[{"msg":"bad"}]}`,
			check: func(t *testing.T, err error) {
				t.Helper()

				var httpErr *sdkerrors.HTTPError
				require.ErrorAs(t, err, &httpErr)
				require.Equal(t, `{"detail":[{"msg":"bad"}]}`, httpErr.Body)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, ParseHTTPError(tt.status, []byte(tt.body)))
		})
	}
}
