package xano

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xano-mcp/pkg/auth"
	"xano-mcp/pkg/tooling"
)

// capture is the request the fake registry saw last.
type capture struct {
	path    string
	body    requestBody
	headers http.Header
}

func newFakeRegistry(t *testing.T, status int, envelope string) (*Client, *capture) {
	t.Helper()
	got := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.headers = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got.body))
		w.WriteHeader(status)
		fmt.Fprint(w, envelope)
	}))
	t.Cleanup(srv.Close)

	client, err := New(Config{
		BaseURL:    srv.URL,
		APIKey:     "key-1",
		APISecret:  "secret-1",
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)
	return client, got
}

func TestListToolsDecodesResult(t *testing.T) {
	envelope := `{"code": 0, "result": [
		{"name": "lookup", "execution": {"type": "endpoint", "endpoint": "crm/lookup"}}
	]}`
	client, got := newFakeRegistry(t, http.StatusOK, envelope)

	cred := Credential{Token: "xano-abc", UserID: "42"}
	tools, err := client.ListTools(context.Background(), cred)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "lookup", tools[0].Name)
	assert.Equal(t, tooling.EndpointDirective{Endpoint: "crm/lookup"}, tools[0].Execution)

	// The call carries the real credential and user, plus signing headers.
	assert.Equal(t, "/call", got.path)
	assert.Equal(t, "ListTools", got.body.Fn)
	assert.Equal(t, "xano-abc", got.body.Token)
	assert.Equal(t, "42", got.body.UserID)
	assert.NotEmpty(t, got.body.RequestID)
	assert.Equal(t, "key-1", got.headers.Get(auth.HeaderAccessKey))
	assert.NotEmpty(t, got.headers.Get(auth.HeaderSignature))
}

func TestHTTPErrorSurfacesAsAPIError(t *testing.T) {
	client, _ := newFakeRegistry(t, http.StatusBadGateway, "upstream exploded")

	_, err := client.ListTools(context.Background(), Credential{Token: "tok", UserID: "1"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "ListTools", apiErr.Fn)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Contains(t, apiErr.Error(), "502")
	assert.True(t, apiErr.Unavailable())
}

func TestEnvelopeErrorSurfacesAsAPIError(t *testing.T) {
	envelope := `{"code": 12, "message": "token expired", "msgDetails": "credential rejected by upstream"}`
	client, _ := newFakeRegistry(t, http.StatusOK, envelope)

	_, err := client.GetTool(context.Background(), Credential{Token: "tok", UserID: "1"}, "lookup")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "GetTool", apiErr.Fn)
	assert.Equal(t, 12, apiErr.Code)
	assert.Equal(t, "credential rejected by upstream", apiErr.Message)
	assert.False(t, apiErr.Unavailable(), "an envelope rejection is a registry decision")
}

func TestMalformedEnvelopeIsAnError(t *testing.T) {
	client, _ := newFakeRegistry(t, http.StatusOK, "<html>definitely not json</html>")

	_, err := client.ListTools(context.Background(), Credential{Token: "tok", UserID: "1"})
	require.Error(t, err)

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr), "decode failures are transport errors, not APIErrors")
}

func TestCallEndpointRequiresName(t *testing.T) {
	client, _ := newFakeRegistry(t, http.StatusOK, `{"code": 0, "result": null}`)

	_, err := client.CallEndpoint(context.Background(), Credential{Token: "t", UserID: "1"}, "  ", nil)
	assert.Error(t, err)
}

func TestSessionCallsArePlainInvocations(t *testing.T) {
	client, got := newFakeRegistry(t, http.StatusOK, `{"code": 0, "result": null}`)
	cred := Credential{Token: "tok", UserID: "9"}

	require.NoError(t, client.TouchSession(context.Background(), cred, "sess-1"))
	assert.Equal(t, "TouchSession", got.body.Fn)

	require.NoError(t, client.LogUsage(context.Background(), cred, Usage{SessionID: "sess-1", Tool: "lookup"}))
	assert.Equal(t, "LogUsage", got.body.Fn)
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
