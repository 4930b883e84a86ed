package veo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"videogen/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("veo: api key is required")

// Options configures the Veo long-running video generation client. The client
// never reads ambient environment state: credentials and endpoints arrive
// here explicitly.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the generative language API's
// predictLongRunning, operation and file-download endpoints.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// GenerateRequest captures the inputs for a video generation job.
type GenerateRequest struct {
	Prompt         string
	NegativePrompt string
	AspectRatio    string
}

// Video references a generated artifact held by the remote service.
type Video struct {
	URI      string `json:"uri,omitempty"`
	Encoding string `json:"encoding,omitempty"`
}

// GeneratedSample wraps one generated video in the operation response.
type GeneratedSample struct {
	Video Video `json:"video"`
}

// OperationError is the service-reported failure on a done operation.
type OperationError struct {
	Code    int    `json:"code,omitempty"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// Err converts the operation failure into a classified *APIError.
func (e *OperationError) Err() *APIError {
	message := e.Message
	if message == "" {
		message = e.Status
	}
	return &APIError{Kind: classifyOperationStatus(e.Status), Message: message}
}

// GenerateVideoResponse carries the generated artifacts of a done operation,
// along with counts for samples the service filtered out.
type GenerateVideoResponse struct {
	GeneratedSamples        []GeneratedSample `json:"generatedSamples"`
	RAIMediaFilteredCount   int               `json:"raiMediaFilteredCount,omitempty"`
	RAIMediaFilteredReasons []string          `json:"raiMediaFilteredReasons,omitempty"`
}

// OperationResponse is the typed payload of a successful operation.
type OperationResponse struct {
	GenerateVideoResponse GenerateVideoResponse `json:"generateVideoResponse"`
}

// Operation is a snapshot of a remote long-running job. It is never live:
// refreshing the state means fetching a new snapshot via GetOperation.
type Operation struct {
	Name     string             `json:"name"`
	Done     bool               `json:"done,omitempty"`
	Error    *OperationError    `json:"error,omitempty"`
	Response *OperationResponse `json:"response,omitempty"`
}

// Videos returns the generated artifacts carried by a done operation.
func (o *Operation) Videos() []Video {
	if o == nil || o.Response == nil {
		return nil
	}
	videos := make([]Video, 0, len(o.Response.GenerateVideoResponse.GeneratedSamples))
	for _, sample := range o.Response.GenerateVideoResponse.GeneratedSamples {
		videos = append(videos, sample.Video)
	}
	return videos
}

type instance struct {
	Prompt string `json:"prompt"`
}

type parameters struct {
	NegativePrompt string `json:"negativePrompt,omitempty"`
	AspectRatio    string `json:"aspectRatio,omitempty"`
}

type predictLongRunningRequest struct {
	Instances  []instance  `json:"instances"`
	Parameters *parameters `json:"parameters,omitempty"`
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Status  string `json:"status,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "veo-3.0-generate-preview"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Model returns the configured video model identifier.
func (c *Client) Model() string {
	return c.model
}

// GenerateVideos submits a generation job and returns the operation handle.
// The returned snapshot is normally not done yet.
func (c *Client) GenerateVideos(ctx context.Context, req GenerateRequest) (*Operation, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, errors.New("veo: prompt is required")
	}
	payload := predictLongRunningRequest{
		Instances: []instance{{Prompt: prompt}},
	}
	if req.NegativePrompt != "" || req.AspectRatio != "" {
		payload.Parameters = &parameters{
			NegativePrompt: strings.TrimSpace(req.NegativePrompt),
			AspectRatio:    strings.TrimSpace(req.AspectRatio),
		}
	}

	path := fmt.Sprintf("/models/%s:predictLongRunning", url.PathEscape(c.model))
	var op Operation
	if err := c.invoke(ctx, http.MethodPost, path, payload, &op); err != nil {
		return nil, err
	}
	if op.Name == "" {
		return nil, &APIError{Kind: KindUnavailable, Message: "operation name missing from response"}
	}
	c.logger.Debug().
		Str("model", c.model).
		Str("operation", op.Name).
		Msg("veo: generation submitted")
	return &op, nil
}

// GetOperation fetches a fresh snapshot of the named operation.
func (c *Client) GetOperation(ctx context.Context, name string) (*Operation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("veo: operation name is required")
	}
	var op Operation
	if err := c.invoke(ctx, http.MethodGet, "/"+strings.TrimLeft(name, "/"), nil, &op); err != nil {
		return nil, err
	}
	c.logger.Debug().
		Str("operation", op.Name).
		Bool("done", op.Done).
		Msg("veo: operation polled")
	return &op, nil
}

// Download fetches the bytes of a generated video and reports its MIME type.
func (c *Client) Download(ctx context.Context, video Video) ([]byte, string, error) {
	uri := strings.TrimSpace(video.URI)
	if uri == "" {
		return nil, "", errors.New("veo: video uri is required")
	}
	target := uri
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(uri, "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("veo: build download request: %w", err)
	}
	q := req.URL.Query()
	q.Set("key", c.apiKey)
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", &APIError{Kind: KindNetwork, Message: "download video", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", c.decodeError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &APIError{Kind: KindNetwork, Message: "read video body", Err: err}
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "video/mp4"
	}
	c.logger.Debug().
		Str("uri", uri).
		Int("size", len(data)).
		Msg("veo: video downloaded")
	return data, mime, nil
}

func (c *Client) invoke(ctx context.Context, method, path string, payload, out any) error {
	endpoint := c.baseURL + path
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("veo: encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("veo: build request: %w", err)
	}
	q := req.URL.Query()
	q.Set("key", c.apiKey)
	req.URL.RawQuery = q.Encode()
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Kind: KindNetwork, Message: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("veo: decode response: %w", err)
	}
	return nil
}

func (c *Client) decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)
	kind := classifyStatus(resp.StatusCode)
	var detail apiErrorResponse
	if err := json.Unmarshal(raw, &detail); err == nil && detail.Error.Message != "" {
		return &APIError{Kind: kind, StatusCode: resp.StatusCode, Message: detail.Error.Message}
	}
	message := strings.TrimSpace(string(raw))
	return &APIError{Kind: kind, StatusCode: resp.StatusCode, Message: message}
}
