package volt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-openapi/runtime"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// maxErrorBodySize limits the size of error response bodies read from the server.
const maxErrorBodySize = 4096

// maxResponseBodySize limits successful response bodies.
const maxResponseBodySize = 8 << 20

// do issues one logical request: it encodes body, sends it with retries,
// classifies the outcome and decodes the response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	ctx, span := c.tracer.Start(ctx, "volt "+method, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	start := time.Now()
	status, err := c.send(ctx, method, path, query, body, out)
	c.metrics.observe(method, status, time.Since(start))

	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
		attribute.Int("http.response.status_code", status),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Debug("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Error(err))
	}
	return err
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body, out any) (int, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rawBody any
	if body != nil {
		var buf bytes.Buffer
		if err := runtime.JSONProducer().Produce(&buf, body); err != nil {
			return 0, newError(CodeValidation, "failed to encode request body", 0, err)
		}
		rawBody = buf.Bytes()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, u, rawBody)
	if err != nil {
		return 0, newError(CodeConfiguration, "failed to create request", 0, err)
	}
	c.setHeaders(req.Header, body != nil)
	req.Header.Set(runtime.HeaderAccept, runtime.JSONMime)

	resp, err := c.newRetryClient().Do(req)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return 0, transportError(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.checkServerVersion(resp.Header.Get(apiVersionHeader))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, responseError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize))
		return resp.StatusCode, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return resp.StatusCode, transportError(ctx, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return resp.StatusCode, decodeError(fmt.Sprintf("empty response body from %s %s", method, path), nil)
	}
	if err := runtime.JSONConsumer().Consume(bytes.NewReader(data), out); err != nil {
		return resp.StatusCode, decodeError(fmt.Sprintf("cannot decode %s %s response", method, path), err)
	}
	return resp.StatusCode, nil
}

// setHeaders applies authentication and identification headers.
func (c *Client) setHeaders(h http.Header, hasBody bool) {
	h.Set("Authorization", "Bearer "+c.apiKey)
	h.Set("User-Agent", c.userAgent)
	h.Set("X-Request-ID", uuid.NewString())
	if hasBody {
		h.Set(runtime.HeaderContentType, runtime.JSONMime)
	}
}

func (c *Client) checkServerVersion(v string) {
	if v == "" {
		return
	}
	c.versionOnce.Do(func() {
		res := CheckCompatibility(v)
		if !res.IsCompatible() {
			c.logger.Warn(res.Message, zap.String("server_version", v))
		}
	})
}

// transportError classifies a failure that produced no HTTP response.
func transportError(ctx context.Context, err error) *Error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return contextError(ctxErr)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(CodeTimeout, "request timed out", 0, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(CodeTimeout, "request timed out", 0, err)
	}
	return newError(CodeNetwork, "request failed", 0, err)
}

// apiErrorBody covers the error shapes the API returns:
// {"error": "..."}, {"message": "...", "field": "..."} and
// {"detail": "..."} or {"detail": [{"loc": [...], "msg": "..."}]}.
type apiErrorBody struct {
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Field   string          `json:"field"`
	Detail  json.RawMessage `json:"detail"`
}

type apiErrorDetail struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

func responseError(resp *http.Response) *Error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	message, field := parseErrorBody(data)
	return statusError(resp.StatusCode, message, field)
}

func parseErrorBody(data []byte) (message, field string) {
	var body apiErrorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return strings.TrimSpace(string(data)), ""
	}
	field = body.Field
	switch {
	case body.Message != "":
		message = body.Message
	case body.Error != "":
		message = body.Error
	}
	if len(body.Detail) > 0 {
		var s string
		var details []apiErrorDetail
		switch {
		case json.Unmarshal(body.Detail, &s) == nil:
			if message == "" {
				message = s
			}
		case json.Unmarshal(body.Detail, &details) == nil && len(details) > 0:
			if message == "" {
				message = details[0].Msg
			}
			if field == "" && len(details[0].Loc) > 0 {
				field = fmt.Sprint(details[0].Loc[len(details[0].Loc)-1])
			}
		}
	}
	return message, field
}
