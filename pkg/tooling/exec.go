package tooling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/devfans/golang/log"
)

// EndpointCaller executes a registry-hosted endpoint. The registry client
// satisfies this once a credential is bound; see xano.Client.
type EndpointCaller interface {
	CallEndpoint(ctx context.Context, endpoint string, args map[string]any) (json.RawMessage, error)
}

// Executor runs a tool descriptor's execution directive and applies its
// declared response transform.
type Executor struct {
	Endpoints  EndpointCaller
	HTTPClient *http.Client
}

// NewExecutor builds an executor. A nil httpClient selects the default
// client, which callers should avoid outside tests because it carries no
// timeout.
func NewExecutor(endpoints EndpointCaller, httpClient *http.Client) *Executor {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Executor{Endpoints: endpoints, HTTPClient: httpClient}
}

// Execute dispatches on the directive variant and returns the raw result
// with the transform applied. A descriptor without a directive is an error,
// as is a directive variant this executor does not know.
func (e *Executor) Execute(ctx context.Context, desc Descriptor, args map[string]any) (json.RawMessage, error) {
	var (
		result json.RawMessage
		err    error
	)

	switch directive := desc.Execution.(type) {
	case HTTPDirective:
		result, err = e.executeHTTP(ctx, desc.Name, directive, args)
	case EndpointDirective:
		result, err = e.Endpoints.CallEndpoint(ctx, directive.Endpoint, args)
	case ScriptDirective:
		result, err = evaluateExpression(directive.Expression, args)
	case nil:
		return nil, fmt.Errorf("tool %q has no execution directive", desc.Name)
	default:
		return nil, fmt.Errorf("tool %q: unhandled directive %q", desc.Name, directive.directiveKind())
	}
	if err != nil {
		return nil, err
	}

	return applyTransform(desc.Transform, result)
}

// executeHTTP performs the directive's HTTP call directly. Arguments travel
// as query parameters for GET and as a JSON body otherwise.
func (e *Executor) executeHTTP(ctx context.Context, tool string, d HTTPDirective, args map[string]any) (json.RawMessage, error) {
	method := strings.ToUpper(strings.TrimSpace(d.Method))
	if method == "" {
		method = http.MethodPost
	}

	var body io.Reader
	target := d.URL
	if method == http.MethodGet {
		u, err := url.Parse(d.URL)
		if err != nil {
			return nil, fmt.Errorf("tool %q: invalid directive url: %w", tool, err)
		}
		q := u.Query()
		for k, v := range args {
			q.Set(k, renderScalar(v))
		}
		u.RawQuery = q.Encode()
		target = u.String()
	} else {
		encoded, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("tool %q: encode arguments: %w", tool, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("tool %q: build request: %w", tool, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range d.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", tool, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tool %q: read response: %w", tool, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Error("Tool HTTP call failed", "tool", tool, "status_code", resp.StatusCode)
		return nil, fmt.Errorf("tool %q: http status %d", tool, resp.StatusCode)
	}

	if !json.Valid(payload) {
		// Non-JSON upstream payloads are passed through as a JSON string.
		quoted, _ := json.Marshal(string(payload))
		return quoted, nil
	}
	return payload, nil
}

var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_]+)\}`)

// evaluateExpression substitutes ${name} placeholders in the expression with
// the matching argument values. This is the whole script language: a closed
// template substitution, not general evaluation. A placeholder without a
// matching argument fails the call.
func evaluateExpression(expression string, args map[string]any) (json.RawMessage, error) {
	var missing []string
	out := placeholderPattern.ReplaceAllStringFunc(expression, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		v, ok := args[name]
		if !ok {
			missing = append(missing, name)
			return match
		}
		return renderScalar(v)
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("expression references undefined arguments: %s", strings.Join(missing, ", "))
	}

	quoted, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return quoted, nil
}

// applyTransform reshapes the raw result per the descriptor's transform:
// pick extracts one field, wrap nests the result under a key. Pick runs
// first so both can combine.
func applyTransform(t *Transform, result json.RawMessage) (json.RawMessage, error) {
	if t == nil {
		return result, nil
	}

	if t.Pick != "" {
		var object map[string]json.RawMessage
		if err := json.Unmarshal(result, &object); err != nil {
			return nil, fmt.Errorf("transform pick %q: result is not an object: %w", t.Pick, err)
		}
		picked, ok := object[t.Pick]
		if !ok {
			return nil, fmt.Errorf("transform pick %q: field not present in result", t.Pick)
		}
		result = picked
	}

	if t.Wrap != "" {
		wrapped, err := json.Marshal(map[string]json.RawMessage{t.Wrap: result})
		if err != nil {
			return nil, fmt.Errorf("transform wrap %q: %w", t.Wrap, err)
		}
		result = wrapped
	}

	return result, nil
}

// Render turns a raw result into the text placed in the MCP content
// envelope. JSON strings are unquoted; everything else is compact JSON.
func Render(result json.RawMessage) string {
	var s string
	if err := json.Unmarshal(result, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, result); err != nil {
		return string(result)
	}
	return buf.String()
}

// renderScalar formats a decoded JSON value for query strings and templates.
func renderScalar(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	case nil:
		return ""
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprintf("%v", value)
		}
		return string(encoded)
	}
}
