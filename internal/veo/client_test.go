package veo

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(Options{}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}
}

func TestGenerateVideosSubmitsPromptAndParameters(t *testing.T) {
	transport := newStubTransport()
	client := newTestClient(t, transport)

	transport.setJSONResponse("/v1beta/models/veo-3.0-generate-preview:predictLongRunning", http.StatusOK, map[string]any{
		"name": "models/veo-3.0-generate-preview/operations/op-1",
	})

	op, err := client.GenerateVideos(context.Background(), GenerateRequest{
		Prompt:         "a tiny robot tending glowing mushrooms",
		NegativePrompt: "text overlays",
		AspectRatio:    "16:9",
	})
	if err != nil {
		t.Fatalf("generate videos: %v", err)
	}
	if op.Name != "models/veo-3.0-generate-preview/operations/op-1" {
		t.Fatalf("operation name = %q", op.Name)
	}
	if op.Done {
		t.Fatalf("fresh operation should not be done")
	}

	if transport.lastQuery.Get("key") != "test-key" {
		t.Fatalf("key query param missing, got %q", transport.lastQuery.Encode())
	}
	var payload map[string]any
	if err := json.Unmarshal(transport.lastBody, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	instances := payload["instances"].([]any)
	if len(instances) != 1 {
		t.Fatalf("instances len = %d, want 1", len(instances))
	}
	if prompt := instances[0].(map[string]any)["prompt"]; prompt != "a tiny robot tending glowing mushrooms" {
		t.Fatalf("prompt = %v", prompt)
	}
	params := payload["parameters"].(map[string]any)
	if params["negativePrompt"] != "text overlays" {
		t.Fatalf("negativePrompt = %v", params["negativePrompt"])
	}
	if params["aspectRatio"] != "16:9" {
		t.Fatalf("aspectRatio = %v", params["aspectRatio"])
	}
}

func TestGenerateVideosOmitsEmptyParameters(t *testing.T) {
	transport := newStubTransport()
	client := newTestClient(t, transport)

	transport.setJSONResponse("/v1beta/models/veo-3.0-generate-preview:predictLongRunning", http.StatusOK, map[string]any{
		"name": "models/veo-3.0-generate-preview/operations/op-2",
	})

	if _, err := client.GenerateVideos(context.Background(), GenerateRequest{Prompt: "a cat"}); err != nil {
		t.Fatalf("generate videos: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(transport.lastBody, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if _, ok := payload["parameters"]; ok {
		t.Fatalf("parameters should be omitted when empty")
	}
}

func TestGenerateVideosRequiresPrompt(t *testing.T) {
	client := newTestClient(t, newStubTransport())
	if _, err := client.GenerateVideos(context.Background(), GenerateRequest{Prompt: "   "}); err == nil {
		t.Fatalf("expected error for blank prompt")
	}
}

func TestGetOperationParsesDoneSnapshot(t *testing.T) {
	transport := newStubTransport()
	client := newTestClient(t, transport)

	name := "models/veo-3.0-generate-preview/operations/op-3"
	transport.setJSONResponse("/v1beta/"+name, http.StatusOK, map[string]any{
		"name": name,
		"done": true,
		"response": map[string]any{
			"generateVideoResponse": map[string]any{
				"generatedSamples": []any{
					map[string]any{"video": map[string]any{"uri": "https://example.test/dl/first", "encoding": "video/mp4"}},
					map[string]any{"video": map[string]any{"uri": "https://example.test/dl/second"}},
				},
			},
		},
	})

	op, err := client.GetOperation(context.Background(), name)
	if err != nil {
		t.Fatalf("get operation: %v", err)
	}
	if !op.Done {
		t.Fatalf("expected done snapshot")
	}
	videos := op.Videos()
	if len(videos) != 2 {
		t.Fatalf("videos len = %d, want 2", len(videos))
	}
	if videos[0].URI != "https://example.test/dl/first" {
		t.Fatalf("first video uri = %q", videos[0].URI)
	}
}

func TestGetOperationParsesPendingSnapshot(t *testing.T) {
	transport := newStubTransport()
	client := newTestClient(t, transport)

	name := "models/veo-3.0-generate-preview/operations/op-4"
	transport.setJSONResponse("/v1beta/"+name, http.StatusOK, map[string]any{"name": name})

	op, err := client.GetOperation(context.Background(), name)
	if err != nil {
		t.Fatalf("get operation: %v", err)
	}
	if op.Done {
		t.Fatalf("pending snapshot reported done")
	}
	if videos := op.Videos(); len(videos) != 0 {
		t.Fatalf("pending snapshot carries videos: %#v", videos)
	}
}

func TestDownloadReturnsBytesAndMIME(t *testing.T) {
	transport := newStubTransport()
	client := newTestClient(t, transport)

	transport.setBinaryResponse("/dl/video-1", []byte{0x00, 0x00, 0x00, 0x18}, "video/mp4")

	data, mime, err := client.Download(context.Background(), Video{URI: "https://example.test/dl/video-1"})
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if len(data) != 4 {
		t.Fatalf("data len = %d, want 4", len(data))
	}
	if mime != "video/mp4" {
		t.Fatalf("mime = %q, want video/mp4", mime)
	}
}

func TestDownloadResolvesRelativeURI(t *testing.T) {
	transport := newStubTransport()
	client := newTestClient(t, transport)

	transport.setBinaryResponse("/v1beta/files/video-2:download", []byte{0x01}, "video/mp4")

	if _, _, err := client.Download(context.Background(), Video{URI: "files/video-2:download"}); err != nil {
		t.Fatalf("download: %v", err)
	}
}

func TestInvokeClassifiesHTTPFailures(t *testing.T) {
	cases := []struct {
		status int
		want   Kind
	}{
		{http.StatusUnauthorized, KindAuth},
		{http.StatusForbidden, KindAuth},
		{http.StatusTooManyRequests, KindQuota},
		{http.StatusBadRequest, KindInvalid},
		{http.StatusInternalServerError, KindUnavailable},
		{http.StatusServiceUnavailable, KindUnavailable},
	}
	for _, tc := range cases {
		transport := newStubTransport()
		client := newTestClient(t, transport)
		transport.setJSONResponse("/v1beta/models/veo-3.0-generate-preview:predictLongRunning", tc.status, map[string]any{
			"error": map[string]any{"code": tc.status, "message": "nope"},
		})

		_, err := client.GenerateVideos(context.Background(), GenerateRequest{Prompt: "a cat"})
		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		if got := KindOf(err); got != tc.want {
			t.Fatalf("status %d: kind = %q, want %q", tc.status, got, tc.want)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Message != "nope" {
			t.Fatalf("status %d: message not decoded: %v", tc.status, err)
		}
	}
}

func TestTransportFailureIsNetworkKind(t *testing.T) {
	client := newTestClient(t, failingTransport{})
	_, err := client.GenerateVideos(context.Background(), GenerateRequest{Prompt: "a cat"})
	if KindOf(err) != KindNetwork {
		t.Fatalf("kind = %q, want network", KindOf(err))
	}
}

func newTestClient(t *testing.T, transport http.RoundTripper) *Client {
	t.Helper()
	client, err := NewClient(Options{
		APIKey:     "test-key",
		BaseURL:    "https://example.test/v1beta",
		HTTPClient: &http.Client{Transport: transport},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

type stubTransport struct {
	responses map[string]stubResponse
	lastBody  []byte
	lastQuery url.Values
}

type stubResponse struct {
	status int
	header http.Header
	body   []byte
}

func newStubTransport() *stubTransport {
	return &stubTransport{responses: map[string]stubResponse{}}
}

func (s *stubTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.lastQuery = req.URL.Query()
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		s.lastBody = body
	}
	if stub, ok := s.responses[req.URL.Path]; ok {
		return stub.toResponse(), nil
	}
	return &http.Response{
		StatusCode: http.StatusNotFound,
		Body:       io.NopCloser(strings.NewReader("not found")),
	}, nil
}

func (s *stubTransport) setJSONResponse(path string, status int, payload any) {
	body, _ := json.Marshal(payload)
	s.responses[path] = stubResponse{
		status: status,
		header: http.Header{"Content-Type": []string{"application/json"}},
		body:   body,
	}
}

func (s *stubTransport) setBinaryResponse(path string, data []byte, mime string) {
	s.responses[path] = stubResponse{
		status: http.StatusOK,
		header: http.Header{"Content-Type": []string{mime}},
		body:   data,
	}
}

func (s stubResponse) toResponse() *http.Response {
	header := http.Header{}
	for k, values := range s.header {
		cloned := make([]string, len(values))
		copy(cloned, values)
		header[k] = cloned
	}
	return &http.Response{
		StatusCode: s.status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(string(s.body))),
	}
}

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}
