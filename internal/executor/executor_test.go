package executor

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oriys/tower/internal/codec"
	"github.com/oriys/tower/internal/domain"
	"github.com/oriys/tower/internal/logging"
	"github.com/oriys/tower/internal/resulttype"
	"github.com/oriys/tower/internal/secrets"
)

// captured records what the fake Tower endpoint received.
type captured struct {
	method      string
	auth        string
	contentType string
	body        string
}

func newTowerServer(t *testing.T, status int, respContentType, respBody string) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		got.method = r.Method
		got.auth = r.Header.Get("Authorization")
		got.contentType = r.Header.Get("Content-Type")
		got.body = string(data)
		if respContentType != "" {
			w.Header().Set("Content-Type", respContentType)
		}
		w.WriteHeader(status)
		io.WriteString(w, respBody)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func newTestExecutor(opts ...Option) *Executor {
	return New(append([]Option{WithLogger(logging.NewLogger(io.Discard))}, opts...)...)
}

func TestInvoke_GetSuccess(t *testing.T) {
	srv, got := newTowerServer(t, http.StatusOK, "text/plain", "pong")
	e := newTestExecutor()

	res, err := e.Invoke(context.Background(), &domain.InvocationRequest{
		TargetURL:   srv.URL + "/api/v2/ping/",
		BearerToken: "tok-123",
		Method:      domain.MethodGet,
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	if got.method != http.MethodGet {
		t.Errorf("method = %q", got.method)
	}
	if got.auth != "Bearer tok-123" {
		t.Errorf("Authorization = %q", got.auth)
	}
	if got.contentType != "" {
		t.Errorf("GET should not carry Content-Type, got %q", got.contentType)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d", res.StatusCode)
	}
	if res.StatusMessage == nil {
		t.Fatal("StatusMessage should be set on 2xx")
	}
	want := "request to endpoint " + srv.URL + "/api/v2/ping/ successfully completed OK"
	if *res.StatusMessage != want {
		t.Errorf("StatusMessage = %q, want %q", *res.StatusMessage, want)
	}
	if res.Result != "pong" {
		t.Errorf("Result = %v, want raw body", res.Result)
	}
}

func TestInvoke_PostJSONBody(t *testing.T) {
	srv, got := newTowerServer(t, http.StatusCreated, "application/json", `{"job":42}`)
	e := newTestExecutor()

	body := map[string]any{"extra_vars": map[string]any{"env": "prod"}, "limit": "web"}
	res, err := e.Invoke(context.Background(), &domain.InvocationRequest{
		TargetURL:       srv.URL,
		BearerToken:     "t",
		Method:          domain.MethodPost,
		Body:            body,
		BodyContentType: "application/json",
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	want, _ := codec.Encode(codec.KindJSON, body)
	if got.body != string(want) {
		t.Errorf("body = %s, want %s", got.body, want)
	}
	if got.contentType != "application/json" {
		t.Errorf("Content-Type = %q", got.contentType)
	}
	if res.StatusCode != http.StatusCreated {
		t.Errorf("StatusCode = %d", res.StatusCode)
	}
	if !strings.HasSuffix(*res.StatusMessage, "successfully completed Created") {
		t.Errorf("StatusMessage = %q", *res.StatusMessage)
	}
}

type launchRequest struct {
	XMLName   xml.Name `xml:"launch"`
	Inventory int      `xml:"inventory"`
	Limit     string   `xml:"limit"`
}

func TestInvoke_PostXMLBody(t *testing.T) {
	srv, got := newTowerServer(t, http.StatusAccepted, "", "")
	e := newTestExecutor()

	body := launchRequest{Inventory: 3, Limit: "db"}
	_, err := e.Invoke(context.Background(), &domain.InvocationRequest{
		TargetURL:       srv.URL,
		BearerToken:     "t",
		Method:          domain.MethodPost,
		Body:            body,
		BodyContentType: "application/xml",
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	want, _ := codec.Encode(codec.KindXML, body)
	if got.body != string(want) {
		t.Errorf("body = %s, want %s", got.body, want)
	}
	if got.contentType != "application/xml" {
		t.Errorf("Content-Type = %q", got.contentType)
	}
}

func TestInvoke_PostStringBodyIsVerbatim(t *testing.T) {
	srv, got := newTowerServer(t, http.StatusOK, "", "")
	e := newTestExecutor()

	raw := `{"already":"serialized"}`
	_, err := e.Invoke(context.Background(), &domain.InvocationRequest{
		TargetURL:       srv.URL,
		BearerToken:     "t",
		Method:          domain.MethodPost,
		Body:            raw,
		BodyContentType: "text/plain",
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got.body != raw {
		t.Errorf("body = %q, want %q", got.body, raw)
	}
	if got.contentType != "text/plain" {
		t.Errorf("Content-Type = %q", got.contentType)
	}
}

func TestInvoke_PostWithoutBodyKeepsContentType(t *testing.T) {
	srv, got := newTowerServer(t, http.StatusOK, "", "")
	e := newTestExecutor()

	_, err := e.Invoke(context.Background(), &domain.InvocationRequest{
		TargetURL:   srv.URL,
		BearerToken: "t",
		Method:      domain.MethodPost,
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got.body != "" {
		t.Errorf("body = %q, want empty", got.body)
	}
	if got.contentType != domain.DefaultContentType {
		t.Errorf("Content-Type = %q, want default", got.contentType)
	}
}

func TestInvoke_UnsupportedContentTypeMakesNoCall(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()
	e := newTestExecutor()

	_, err := e.Invoke(context.Background(), &domain.InvocationRequest{
		TargetURL:       srv.URL,
		BearerToken:     "t",
		Method:          domain.MethodPost,
		Body:            map[string]any{"a": 1},
		BodyContentType: "application/x-www-form-urlencoded",
	})
	if domain.KindOf(err) != domain.KindUnsupportedContentType {
		t.Fatalf("expected %s, got %v", domain.KindUnsupportedContentType, err)
	}
	if hits.Load() != 0 {
		t.Fatalf("expected no network call, got %d", hits.Load())
	}
}

func TestInvoke_SerializationError(t *testing.T) {
	srv, _ := newTowerServer(t, http.StatusOK, "", "")
	e := newTestExecutor()

	_, err := e.Invoke(context.Background(), &domain.InvocationRequest{
		TargetURL:       srv.URL,
		BearerToken:     "t",
		Method:          domain.MethodPost,
		Body:            map[string]any{"ch": make(chan int)},
		BodyContentType: "application/json",
	})
	if domain.KindOf(err) != domain.KindSerialization {
		t.Fatalf("expected %s, got %v", domain.KindSerialization, err)
	}
}

func TestInvoke_Non2xxLeavesResultAbsent(t *testing.T) {
	for _, status := range []int{http.StatusMovedPermanently, http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError} {
		srv, _ := newTowerServer(t, status, "application/json", `{"detail":"nope"}`)
		e := newTestExecutor()

		res, err := e.Invoke(context.Background(), &domain.InvocationRequest{
			TargetURL:   srv.URL,
			BearerToken: "t",
			Method:      domain.MethodGet,
			ResultType:  "tower.Job",
		})
		if err != nil {
			t.Fatalf("status %d: non-2xx must not be an error: %v", status, err)
		}
		if res.StatusCode != status {
			t.Errorf("StatusCode = %d, want %d", res.StatusCode, status)
		}
		if res.StatusMessage != nil || res.Result != nil {
			t.Errorf("status %d: StatusMessage and Result should be absent, got %v / %v", status, res.StatusMessage, res.Result)
		}
	}
}

func TestInvoke_Non2xxWithErrorBodyCapture(t *testing.T) {
	srv, _ := newTowerServer(t, http.StatusForbidden, "application/json", `{"detail":"forbidden"}`)
	e := newTestExecutor(WithErrorBodyCapture(true))

	res, err := e.Invoke(context.Background(), &domain.InvocationRequest{
		TargetURL:   srv.URL,
		BearerToken: "t",
		Method:      domain.MethodGet,
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.Result != `{"detail":"forbidden"}` {
		t.Errorf("Result = %v", res.Result)
	}
	if res.StatusMessage != nil {
		t.Error("StatusMessage stays absent for non-2xx")
	}
}

func TestInvoke_ResultTypeJSON(t *testing.T) {
	srv, _ := newTowerServer(t, http.StatusCreated, "application/json; charset=utf-8",
		`{"job":118,"id":118,"type":"job","url":"/api/v2/jobs/118/","status":"pending","ignored_fields":{}}`)
	e := newTestExecutor()

	res, err := e.Invoke(context.Background(), &domain.InvocationRequest{
		TargetURL:   srv.URL,
		BearerToken: "t",
		Method:      domain.MethodPost,
		Body:        map[string]any{},
		ResultType:  "tower.JobLaunch",
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	launch, ok := res.Result.(*resulttype.JobLaunch)
	if !ok {
		t.Fatalf("Result = %T, want *resulttype.JobLaunch", res.Result)
	}
	if launch.Job != 118 || launch.Status != "pending" || launch.URL != "/api/v2/jobs/118/" {
		t.Errorf("unexpected launch: %+v", launch)
	}
}

func TestInvoke_ResultTypeXML(t *testing.T) {
	srv, _ := newTowerServer(t, http.StatusOK, "application/xml",
		`<job><id>7</id><name>deploy</name><status>successful</status><failed>false</failed></job>`)
	e := newTestExecutor()

	res, err := e.Invoke(context.Background(), &domain.InvocationRequest{
		TargetURL:   srv.URL,
		BearerToken: "t",
		Method:      domain.MethodGet,
		ResultType:  "tower.Job",
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	job, ok := res.Result.(*resulttype.Job)
	if !ok {
		t.Fatalf("Result = %T, want *resulttype.Job", res.Result)
	}
	if job.ID != 7 || job.Name != "deploy" || job.Status != "successful" {
		t.Errorf("unexpected job: %+v", job)
	}
}

func TestInvoke_CustomResultType(t *testing.T) {
	type ping struct {
		Version string `json:"version"`
	}
	types := resulttype.NewRegistry()
	if err := resulttype.RegisterType[ping](types, "com.example.Ping"); err != nil {
		t.Fatal(err)
	}
	srv, _ := newTowerServer(t, http.StatusOK, "application/json", `{"version":"23.1.0"}`)
	e := newTestExecutor(WithResultTypes(types))

	res, err := e.Invoke(context.Background(), &domain.InvocationRequest{
		TargetURL:   srv.URL,
		BearerToken: "t",
		Method:      domain.MethodGet,
		ResultType:  "com.example.Ping",
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if p, ok := res.Result.(*ping); !ok || p.Version != "23.1.0" {
		t.Fatalf("Result = %#v", res.Result)
	}
}

func TestInvoke_UnknownContentTypeReturnsRawBody(t *testing.T) {
	srv, _ := newTowerServer(t, http.StatusOK, "text/html", "<html>hi</html>")
	e := newTestExecutor()

	res, err := e.Invoke(context.Background(), &domain.InvocationRequest{
		TargetURL:   srv.URL,
		BearerToken: "t",
		Method:      domain.MethodGet,
		ResultType:  "tower.Job",
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.Result != "<html>hi</html>" {
		t.Errorf("Result = %v, want raw body", res.Result)
	}
}

func TestInvoke_UnknownResultType(t *testing.T) {
	srv, _ := newTowerServer(t, http.StatusOK, "application/json", `{}`)
	e := newTestExecutor()

	_, err := e.Invoke(context.Background(), &domain.InvocationRequest{
		TargetURL:   srv.URL,
		BearerToken: "t",
		Method:      domain.MethodGet,
		ResultType:  "com.example.DoesNotExist",
	})
	if domain.KindOf(err) != domain.KindReflection {
		t.Fatalf("expected %s, got %v", domain.KindReflection, err)
	}
	if !errors.Is(err, resulttype.ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType in chain, got %v", err)
	}
}

func TestInvoke_DecodeFailure(t *testing.T) {
	srv, _ := newTowerServer(t, http.StatusOK, "application/json", `{not json`)
	e := newTestExecutor()

	_, err := e.Invoke(context.Background(), &domain.InvocationRequest{
		TargetURL:   srv.URL,
		BearerToken: "t",
		Method:      domain.MethodGet,
		ResultType:  "tower.Job",
	})
	if domain.KindOf(err) != domain.KindSerialization {
		t.Fatalf("expected %s, got %v", domain.KindSerialization, err)
	}
}

func TestInvoke_EmptyBodyWithoutResultType(t *testing.T) {
	srv, _ := newTowerServer(t, http.StatusNoContent, "", "")
	e := newTestExecutor()

	res, err := e.Invoke(context.Background(), &domain.InvocationRequest{
		TargetURL:   srv.URL,
		BearerToken: "t",
		Method:      domain.MethodGet,
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.Result != "" {
		t.Errorf("Result = %#v, want empty string", res.Result)
	}
	if _, ok := res.Results()[domain.ResultResult]; !ok {
		t.Error("Result key missing for an empty 2xx body")
	}
	if res.StatusMessage == nil || !strings.HasSuffix(*res.StatusMessage, "No Content") {
		t.Errorf("StatusMessage = %v", res.StatusMessage)
	}
}

func TestInvoke_TextPlainWithResultTypeReturnsRawBody(t *testing.T) {
	srv, _ := newTowerServer(t, http.StatusOK, "text/plain; charset=utf-8", "job 42 queued")
	e := newTestExecutor(WithResultTypes(resulttype.Default()))

	res, err := e.Invoke(context.Background(), &domain.InvocationRequest{
		TargetURL:   srv.URL,
		BearerToken: "t",
		Method:      domain.MethodGet,
		ResultType:  "tower.Job",
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.Result != "job 42 queued" {
		t.Errorf("Result = %#v, want raw body", res.Result)
	}
}

func TestInvoke_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	e := newTestExecutor()
	_, err := e.Invoke(context.Background(), &domain.InvocationRequest{
		TargetURL:   url,
		BearerToken: "t",
		Method:      domain.MethodGet,
	})
	if domain.KindOf(err) != domain.KindTransport {
		t.Fatalf("expected %s, got %v", domain.KindTransport, err)
	}
}

func TestInvoke_ContextCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	e := newTestExecutor()
	_, err := e.Invoke(ctx, &domain.InvocationRequest{
		TargetURL:   srv.URL,
		BearerToken: "t",
		Method:      domain.MethodGet,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestInvoke_InvalidRequests(t *testing.T) {
	e := newTestExecutor()
	tests := []struct {
		name string
		req  *domain.InvocationRequest
		want domain.ErrorKind
	}{
		{"nil", nil, domain.KindMissingParameter},
		{"bad method", &domain.InvocationRequest{TargetURL: "http://x", Method: "PUT"}, domain.KindUnsupportedMethod},
		{"no url", &domain.InvocationRequest{Method: domain.MethodGet}, domain.KindMissingParameter},
		{"malformed url", &domain.InvocationRequest{TargetURL: "http://[::1", Method: domain.MethodGet}, domain.KindInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Invoke(context.Background(), tt.req)
			if domain.KindOf(err) != tt.want {
				t.Fatalf("expected %s, got %v", tt.want, err)
			}
		})
	}
}

func TestInvoke_TokenReference(t *testing.T) {
	t.Setenv("TOWER_TEST_TOKEN", "from-env")
	srv, got := newTowerServer(t, http.StatusOK, "", "")
	e := newTestExecutor(WithTokenResolver(secrets.NewResolver(nil)))

	_, err := e.Invoke(context.Background(), &domain.InvocationRequest{
		TargetURL:   srv.URL,
		BearerToken: "$ENV:TOWER_TEST_TOKEN",
		Method:      domain.MethodGet,
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got.auth != "Bearer from-env" {
		t.Errorf("Authorization = %q", got.auth)
	}

	_, err = e.Invoke(context.Background(), &domain.InvocationRequest{
		TargetURL:   srv.URL,
		BearerToken: "$SECRET:prod",
		Method:      domain.MethodGet,
	})
	if domain.KindOf(err) != domain.KindCredential {
		t.Fatalf("expected %s, got %v", domain.KindCredential, err)
	}
}

func TestInvoke_MaxResponseBytes(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		capture bool
		want    any
		wantErr bool
	}{
		{"fits exactly", http.StatusOK, strings.Repeat("x", 10), false, strings.Repeat("x", 10), false},
		{"2xx over cap fails", http.StatusOK, strings.Repeat("x", 11), false, nil, true},
		{"non-2xx over cap is not a fault", http.StatusBadGateway, strings.Repeat("x", 100), false, nil, false},
		{"captured error body is cut", http.StatusBadGateway, strings.Repeat("x", 100), true, strings.Repeat("x", 10), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTowerServer(t, tt.status, "text/plain", tt.body)
			e := newTestExecutor(WithMaxResponseBytes(10), WithErrorBodyCapture(tt.capture))

			res, err := e.Invoke(context.Background(), &domain.InvocationRequest{
				TargetURL:   srv.URL,
				BearerToken: "t",
				Method:      domain.MethodGet,
			})
			if tt.wantErr {
				if domain.KindOf(err) != domain.KindTransport {
					t.Fatalf("expected %s, got %v", domain.KindTransport, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Invoke: %v", err)
			}
			if res.StatusCode != tt.status || res.Result != tt.want {
				t.Errorf("got status=%d result=%#v", res.StatusCode, res.Result)
			}
		})
	}
}

func TestWorkItemIDContext(t *testing.T) {
	ctx := ContextWithWorkItemID(context.Background(), "wi-9")
	if WorkItemIDFromContext(ctx) != "wi-9" {
		t.Fatal("work item id not carried")
	}
	if WorkItemIDFromContext(context.Background()) != "" {
		t.Fatal("expected empty id")
	}
}
