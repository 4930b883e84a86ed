package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"videogen/internal/infra"
	"videogen/internal/storage"
	"videogen/internal/veo"
)

// ErrNoVideos indicates that the service reported completion without
// returning any generated artifact, typically because every sample was
// filtered.
var ErrNoVideos = errors.New("video: operation completed with no generated videos")

// Client is the surface of the Veo API the pipeline depends on.
type Client interface {
	GenerateVideos(ctx context.Context, req veo.GenerateRequest) (*veo.Operation, error)
	GetOperation(ctx context.Context, name string) (*veo.Operation, error)
	Download(ctx context.Context, video veo.Video) ([]byte, string, error)
}

// Store persists downloaded artifact bytes under a relative key.
type Store interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
}

// Options configures the generation pipeline.
type Options struct {
	Client Client
	Store  Store
	Logger *infra.Logger

	// PollInterval is the initial wait between operation polls; it grows
	// exponentially up to MaxInterval. Timeout bounds the whole wait.
	PollInterval time.Duration
	MaxInterval  time.Duration
	Timeout      time.Duration
}

// Generator drives one generation job from submission to saved file.
type Generator struct {
	client       Client
	store        Store
	logger       *infra.Logger
	pollInterval time.Duration
	maxInterval  time.Duration
	timeout      time.Duration
}

// Request describes one video to generate and where to save it.
type Request struct {
	Prompt         string
	NegativePrompt string
	AspectRatio    string
	OutputKey      string
}

// Result reports what was generated and where it was saved.
type Result struct {
	Path      string
	URI       string
	MIME      string
	Size      int64
	Polls     int
	Operation string
}

// NewGenerator validates dependencies and applies polling defaults.
func NewGenerator(opts Options) (*Generator, error) {
	if opts.Client == nil {
		return nil, errors.New("video: client is required")
	}
	if opts.Store == nil {
		return nil, errors.New("video: store is required")
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	maxInterval := opts.MaxInterval
	if maxInterval < pollInterval {
		maxInterval = pollInterval
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Generator{
		client:       opts.Client,
		store:        opts.Store,
		logger:       logger,
		pollInterval: pollInterval,
		maxInterval:  maxInterval,
		timeout:      timeout,
	}, nil
}

// Generate submits the job, polls the operation until it reports done,
// downloads the first generated video and persists it. The artifact is never
// written while the operation is still pending.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	requestID := uuid.NewString()
	logger := g.logger.With().Str("request_id", requestID).Logger()

	op, err := g.client.GenerateVideos(ctx, veo.GenerateRequest{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		AspectRatio:    req.AspectRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("video: submit generation: %w", err)
	}
	logger.Info().Str("operation", op.Name).Msg("video: generation submitted")

	op, polls, err := g.await(ctx, logger, op)
	if err != nil {
		return nil, err
	}
	if op.Error != nil {
		return nil, fmt.Errorf("video: generation failed: %w", op.Error.Err())
	}

	videos := op.Videos()
	if len(videos) == 0 {
		return nil, ErrNoVideos
	}
	// Always the first sample, however many came back.
	artifact := videos[0]

	data, mime, err := g.client.Download(ctx, artifact)
	if err != nil {
		return nil, fmt.Errorf("video: download artifact: %w", err)
	}

	key := storage.EnsureExtension(req.OutputKey, mime)
	saved, err := g.store.Write(ctx, key, data)
	if err != nil {
		return nil, fmt.Errorf("video: save artifact: %w", err)
	}
	logger.Info().
		Str("path", saved).
		Str("mime", mime).
		Int("size", len(data)).
		Int("polls", polls).
		Msg("video: artifact saved")

	return &Result{
		Path:      saved,
		URI:       artifact.URI,
		MIME:      mime,
		Size:      int64(len(data)),
		Polls:     polls,
		Operation: op.Name,
	}, nil
}

// await re-fetches operation snapshots until one reports done. The wait
// between polls grows exponentially and the loop gives up once the policy's
// elapsed budget is spent, so a stuck job cannot hold the process forever.
func (g *Generator) await(ctx context.Context, logger infra.Logger, op *veo.Operation) (*veo.Operation, int, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = g.pollInterval
	policy.MaxInterval = g.maxInterval
	policy.MaxElapsedTime = g.timeout
	policy.Reset()

	polls := 0
	for !op.Done {
		wait := policy.NextBackOff()
		if wait == backoff.Stop {
			return nil, polls, fmt.Errorf("video: timed out after %s waiting for operation %s", g.timeout, op.Name)
		}
		logger.Info().
			Str("operation", op.Name).
			Dur("wait", wait).
			Msg("video: waiting for generation to complete")

		select {
		case <-ctx.Done():
			return nil, polls, ctx.Err()
		case <-time.After(wait):
		}

		next, err := g.client.GetOperation(ctx, op.Name)
		if err != nil {
			return nil, polls, fmt.Errorf("video: poll operation: %w", err)
		}
		op = next
		polls++
	}
	return op, polls, nil
}
