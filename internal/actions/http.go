package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rendis/ticketflow/pkg/schema"
)

// HTTPConfig configures the outbound-call handlers.
type HTTPConfig struct {
	MaxResponseBody int64
	// Timeout is the fixed per-call timeout.
	Timeout time.Duration
	Client  *http.Client
}

const (
	defaultMaxResponseBody = 10 * 1024 * 1024 // 10MB
	defaultHTTPTimeout     = 30 * time.Second
)

func (c HTTPConfig) withDefaults() HTTPConfig {
	if c.MaxResponseBody <= 0 {
		c.MaxResponseBody = defaultMaxResponseBody
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultHTTPTimeout
	}
	if c.Client == nil {
		c.Client = &http.Client{}
	}
	return c
}

// allowedMethods is the closed set of outbound verbs.
var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// HTTPHandlers returns the webhook and API-call handlers.
func HTTPHandlers(deps Deps) []Handler {
	return []Handler{
		&outboundHandler{
			deps:          deps,
			kind:          schema.KindSendWebhook,
			defaultMethod: http.MethodPost,
			bodyKey:       "payload",
			description:   "Send one HTTP request to a webhook and report the status.",
		},
		&outboundHandler{
			deps:          deps,
			kind:          schema.KindCallAPI,
			defaultMethod: http.MethodGet,
			bodyKey:       "body",
			description:   "Call an external API and report status and body.",
		},
	}
}

const outboundConfigSchema = `{
  "type": "object",
  "properties": {
    "url": {"type": "string"},
    "method": {"type": "string"},
    "headers": {"type": "object", "additionalProperties": {"type": ["string", "number", "boolean"]}},
    "payload": {},
    "body": {},
    "extract": {"type": "string"},
    "success_when": {"type": "string"}
  }
}`

// outboundHandler implements send_webhook and call_api. They differ only in
// default method and in the config key carrying the request body.
type outboundHandler struct {
	deps          Deps
	kind          schema.ActionKind
	defaultMethod string
	bodyKey       string
	description   string
}

func (h *outboundHandler) Kind() schema.ActionKind { return h.kind }

func (h *outboundHandler) Schema() HandlerSchema {
	return HandlerSchema{
		Description:  h.description,
		ConfigSchema: json.RawMessage(outboundConfigSchema),
	}
}

func (h *outboundHandler) Validate(config map[string]any) error {
	rawURL := stringParam(config, "url", "")
	if rawURL == "" {
		return missingConfig(h.kind, "url")
	}
	u, err := url.ParseRequestURI(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return schema.NewErrorf(schema.ErrCodeConfig, "%s: invalid url %q", h.kind, rawURL)
	}
	method := h.method(config)
	if !allowedMethods[method] {
		return schema.NewErrorf(schema.ErrCodeUnsupportedMethod, "%s: unsupported method %q", h.kind, method)
	}
	return nil
}

func (h *outboundHandler) method(config map[string]any) string {
	return strings.ToUpper(strings.TrimSpace(stringParam(config, "method", h.defaultMethod)))
}

func (h *outboundHandler) Execute(ctx context.Context, in Input) (map[string]any, error) {
	cfg := h.deps.HTTP
	method := h.method(in.Config)
	rawURL := stringParam(in.Config, "url", "")

	var bodyReader io.Reader
	if raw, ok := in.Config[h.bodyKey]; ok && raw != nil {
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeConfig, "%s: %s is not JSON-serializable", h.kind, h.bodyKey).WithCause(err)
		}
		bodyReader = bytes.NewReader(b)
	}

	reqCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, rawURL, bodyReader)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeConfig, "%s: failed to create request", h.kind).WithCause(err)
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json, text/plain;q=0.9, */*;q=0.8")
	if in.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", in.IdempotencyKey)
	}
	for k, v := range mapParam(in.Config, "headers") {
		if s, ok := scalarText(v); ok {
			req.Header.Set(k, s)
		}
	}

	start := time.Now()
	resp, err := cfg.Client.Do(req)
	durationMs := time.Since(start).Milliseconds()
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, schema.NewErrorf(schema.ErrCodeTimeout, "%s: request timed out after %s", h.kind, cfg.Timeout).WithCause(err)
		}
		return nil, schema.NewErrorf(schema.ErrCodeDependency, "%s: request failed: %v", h.kind, err).WithCause(err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, cfg.MaxResponseBody))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeDependency, "%s: failed to read response body", h.kind).WithCause(err)
	}
	body := parseBody(bodyBytes)

	result := map[string]any{
		"status_code": resp.StatusCode,
		"method":      method,
		"url":         rawURL,
		"duration_ms": durationMs,
	}
	if h.kind == schema.KindCallAPI {
		headers := make(map[string]any, len(resp.Header))
		for k := range resp.Header {
			headers[k] = resp.Header.Get(k)
		}
		result["headers"] = headers
		result["body"] = body
	}

	if expr := stringParam(in.Config, "extract", ""); expr != "" {
		extracted, err := h.deps.JQ.Evaluate(ctx, expr, body)
		if err != nil {
			return nil, err
		}
		result["extracted"] = extracted
	}

	if cond := stringParam(in.Config, "success_when", ""); cond != "" {
		ok, err := h.deps.Expr.EvaluateBool(ctx, cond, map[string]any{
			"status_code": resp.StatusCode,
			"body":        body,
		})
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeDependency,
				"%s: success_when not satisfied (status %d)", h.kind, resp.StatusCode).
				WithDetails(map[string]any{"status_code": resp.StatusCode})
		}
	}
	return result, nil
}

// parseBody decodes JSON when possible and falls back to text.
func parseBody(b []byte) any {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err == nil {
		return v
	}
	return string(b)
}
