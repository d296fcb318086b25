package domain

import "strings"

// Method is the HTTP method used to call the job-template endpoint.
type Method string

const (
	MethodGet  Method = "GET"
	MethodPost Method = "POST"
)

// DefaultContentType is used for request bodies when the work item does not
// name one.
const DefaultContentType = "application/json"

// ParseMethod normalizes a method name. Matching is case-insensitive and an
// empty value selects GET.
func ParseMethod(s string) (Method, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(MethodGet):
		return MethodGet, true
	case string(MethodPost):
		return MethodPost, true
	}
	return "", false
}

func (m Method) IsValid() bool {
	return m == MethodGet || m == MethodPost
}

// InvocationRequest describes a single call against the automation platform.
// It is built fresh for every work item execution.
type InvocationRequest struct {
	TargetURL       string `json:"target_url"`
	BearerToken     string `json:"-"`
	Method          Method `json:"method"`
	Body            any    `json:"body,omitempty"`
	BodyContentType string `json:"content_type,omitempty"`
	ResultType      string `json:"result_type,omitempty"`
}

// ContentType returns the body content type, falling back to JSON.
func (r *InvocationRequest) ContentType() string {
	if r.BodyContentType == "" {
		return DefaultContentType
	}
	return r.BodyContentType
}

// InvocationResult is what a call hands back to the workflow.
// StatusMessage and Result are nil when absent.
type InvocationResult struct {
	StatusCode    int     `json:"status" yaml:"status"`
	StatusMessage *string `json:"status_msg,omitempty" yaml:"status_msg,omitempty"`
	Result        any     `json:"result,omitempty" yaml:"result,omitempty"`
}

// Results renders the result as the host-facing result map. Absent fields
// are left out of the map rather than set to nil.
func (r *InvocationResult) Results() map[string]any {
	out := map[string]any{ResultStatus: r.StatusCode}
	if r.StatusMessage != nil {
		out[ResultStatusMsg] = *r.StatusMessage
	}
	if r.Result != nil {
		out[ResultResult] = r.Result
	}
	return out
}
