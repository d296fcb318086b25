// Package executor performs the single HTTP exchange behind a Tower
// job-template work item.
//
// An invocation is one synchronous request/response: build the request,
// authenticate with a bearer token, optionally serialize a body, send it
// once, and map a 2xx response body onto a registered result type. There is
// no retry. Non-2xx responses are not errors: they produce a result that
// carries only the status code.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oriys/tower/internal/codec"
	"github.com/oriys/tower/internal/domain"
	"github.com/oriys/tower/internal/logging"
	"github.com/oriys/tower/internal/metrics"
	"github.com/oriys/tower/internal/observability"
	"github.com/oriys/tower/internal/resulttype"
	"github.com/oriys/tower/internal/secrets"
)

const defaultUserAgent = "tower-workitem/1.0"

// Invoker abstracts the remote call so the work item handler can be driven
// by a real executor or a test double.
type Invoker interface {
	Invoke(ctx context.Context, req *domain.InvocationRequest) (*domain.InvocationResult, error)
}

// Executor is the remote job invoker. It holds no per-call state and is
// safe for concurrent use.
type Executor struct {
	client           *http.Client
	types            *resulttype.Registry
	tokens           *secrets.Resolver
	logger           *logging.Logger
	captureErrorBody bool
	maxResponseBytes int64
	userAgent        string
}

// New creates an executor with the given options.
func New(opts ...Option) *Executor {
	e := &Executor{
		client:    &http.Client{},
		types:     resulttype.Default(),
		tokens:    secrets.NewResolver(nil),
		logger:    logging.Default(),
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type workItemKey struct{}

// ContextWithWorkItemID tags ctx with the work item being executed, for
// logs and spans.
func ContextWithWorkItemID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, workItemKey{}, id)
}

// WorkItemIDFromContext returns the work item ID set by ContextWithWorkItemID.
func WorkItemIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(workItemKey{}).(string)
	return id
}

// exchange carries the accounting of one call.
type exchange struct {
	requestBytes  int
	responseBytes int
	statusCode    int
}

// Invoke performs the call described by req.
func (e *Executor) Invoke(ctx context.Context, req *domain.InvocationRequest) (*domain.InvocationResult, error) {
	if req == nil {
		return nil, domain.NewError(domain.KindMissingParameter, "invoke", fmt.Errorf("nil request"))
	}

	requestID := uuid.New().String()
	workItemID := WorkItemIDFromContext(ctx)

	ctx, span := observability.StartClientSpan(ctx, "tower.invoke",
		observability.AttrRequestID.String(requestID),
		observability.AttrWorkItemID.String(workItemID),
		observability.AttrHTTPMethod.String(string(req.Method)),
		observability.AttrHTTPURL.String(req.TargetURL),
		observability.AttrResultType.String(req.ResultType),
	)
	defer span.End()

	metrics.IncActiveInvocations()
	defer metrics.DecActiveInvocations()

	start := time.Now()
	var ex exchange
	result, err := e.invoke(ctx, req, &ex)
	duration := time.Since(start)

	entry := &logging.RequestLog{
		RequestID:     requestID,
		WorkItemID:    workItemID,
		TraceID:       observability.GetTraceID(ctx),
		SpanID:        observability.GetSpanID(ctx),
		Method:        string(req.Method),
		URL:           req.TargetURL,
		Status:        ex.statusCode,
		DurationMs:    duration.Milliseconds(),
		Success:       err == nil,
		RequestBytes:  ex.requestBytes,
		ResponseBytes: ex.responseBytes,
	}

	if err != nil {
		kind := domain.KindOf(err)
		entry.Error = err.Error()
		observability.SetSpanError(span, err)
		span.SetAttributes(observability.AttrErrorKind.String(string(kind)))
		metrics.RecordInvocationError(string(kind))
		if ex.statusCode > 0 {
			metrics.RecordInvocation(string(req.Method), ex.statusCode, duration.Milliseconds(), ex.responseBytes)
		}
		logging.Op().Warn("invocation failed",
			"request_id", requestID,
			"work_item_id", workItemID,
			"url", req.TargetURL,
			"kind", kind,
			"error", err)
	} else {
		span.SetAttributes(observability.AttrHTTPStatus.Int(ex.statusCode))
		observability.SetSpanOK(span)
		metrics.RecordInvocation(string(req.Method), ex.statusCode, duration.Milliseconds(), ex.responseBytes)
		logging.Op().Debug("invocation completed",
			"request_id", requestID,
			"work_item_id", workItemID,
			"url", req.TargetURL,
			"status", ex.statusCode,
			"duration_ms", duration.Milliseconds())
	}

	if e.logger != nil {
		e.logger.Log(entry)
	}
	return result, err
}

func (e *Executor) invoke(ctx context.Context, req *domain.InvocationRequest, ex *exchange) (*domain.InvocationResult, error) {
	if !req.Method.IsValid() {
		return nil, domain.NewError(domain.KindUnsupportedMethod, "invoke",
			fmt.Errorf("method %q is not supported (valid: GET, POST)", req.Method))
	}
	if strings.TrimSpace(req.TargetURL) == "" {
		return nil, domain.NewError(domain.KindMissingParameter, "invoke",
			fmt.Errorf("missing required parameter: %s", domain.ParamTowerURL))
	}

	token, err := e.tokens.Resolve(ctx, req.BearerToken)
	if err != nil {
		return nil, domain.NewError(domain.KindCredential, "resolve bearer token", err)
	}

	// The body is encoded before anything touches the network, so an
	// unsupported content type never produces a request.
	var body []byte
	hasBody := req.Method == domain.MethodPost && req.Body != nil
	if hasBody {
		body, err = encodeBody(req.Body, req.ContentType())
		if err != nil {
			return nil, err
		}
	}
	ex.requestBytes = len(body)

	var bodyReader io.Reader
	if hasBody {
		bodyReader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, string(req.Method), req.TargetURL, bodyReader)
	if err != nil {
		return nil, domain.NewError(domain.KindInvalidParameter, "build request", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("User-Agent", e.userAgent)
	if req.Method == domain.MethodPost {
		httpReq.Header.Set("Content-Type", req.ContentType())
	}
	observability.InjectHTTPHeaders(ctx, httpReq.Header)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, domain.NewError(domain.KindTransport, "send request", err)
	}
	defer resp.Body.Close()

	ex.statusCode = resp.StatusCode

	// One byte past the cap tells a body that fits exactly from one that
	// does not.
	var reader io.Reader = resp.Body
	if e.maxResponseBytes > 0 {
		reader = io.LimitReader(resp.Body, e.maxResponseBytes+1)
	}
	respBody, err := io.ReadAll(reader)
	if err != nil {
		return nil, domain.NewError(domain.KindTransport, "read response", err)
	}
	ex.responseBytes = len(respBody)
	oversized := e.maxResponseBytes > 0 && int64(len(respBody)) > e.maxResponseBytes

	result := &domain.InvocationResult{StatusCode: resp.StatusCode}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if e.captureErrorBody && len(respBody) > 0 {
			if oversized {
				respBody = respBody[:e.maxResponseBytes]
				logging.Op().Warn("captured error body truncated",
					"url", req.TargetURL,
					"status", resp.StatusCode,
					"max_response_bytes", e.maxResponseBytes)
			}
			result.Result = string(respBody)
		}
		return result, nil
	}

	if oversized {
		return nil, domain.NewError(domain.KindTransport, "read response",
			fmt.Errorf("body exceeds %d bytes", e.maxResponseBytes))
	}

	value, err := e.postProcess(respBody, req.ResultType, resp.Header.Get("Content-Type"), req.TargetURL)
	if err != nil {
		return nil, err
	}
	result.Result = value

	msg := fmt.Sprintf("request to endpoint %s successfully completed %s", req.TargetURL, reasonPhrase(resp))
	result.StatusMessage = &msg
	return result, nil
}

// encodeBody serializes a request body. Strings and byte slices are sent
// verbatim; everything else goes through the codec for contentType.
func encodeBody(body any, contentType string) ([]byte, error) {
	switch b := body.(type) {
	case string:
		return []byte(b), nil
	case []byte:
		return b, nil
	}

	kind := codec.Select(contentType)
	if kind == codec.KindUnknown {
		return nil, domain.NewError(domain.KindUnsupportedContentType, "encode request",
			fmt.Errorf("no transformer for content type %q to handle %T", contentType, body))
	}
	data, err := codec.Encode(kind, body)
	if err != nil {
		return nil, domain.NewError(domain.KindSerialization, "encode request", err)
	}
	return data, nil
}

// postProcess maps a 2xx body onto the result value.
func (e *Executor) postProcess(body []byte, resultType, contentType, url string) (any, error) {
	if resultType == "" || contentType == "" {
		return string(body), nil
	}

	target, err := e.types.New(resultType)
	if err != nil {
		return nil, domain.NewError(domain.KindReflection, "bind result type", err)
	}

	kind := codec.Select(contentType)
	if kind == codec.KindUnknown {
		logging.Op().Warn("no transformer for response content type, returning raw body",
			"content_type", contentType,
			"result_type", resultType,
			"url", url)
		return string(body), nil
	}

	if err := codec.Decode(kind, body, target); err != nil {
		return nil, domain.NewError(domain.KindSerialization, "decode response",
			fmt.Errorf("into %s: %w", resultType, err))
	}
	return target, nil
}

// reasonPhrase returns the reason phrase the server sent, falling back to
// the standard text for the code.
func reasonPhrase(resp *http.Response) string {
	prefix := strconv.Itoa(resp.StatusCode) + " "
	if phrase := strings.TrimPrefix(resp.Status, prefix); phrase != resp.Status && phrase != "" {
		return phrase
	}
	return http.StatusText(resp.StatusCode)
}
