package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"videogen/internal/infra"
	"videogen/internal/storage"
	"videogen/internal/veo"
	"videogen/internal/video"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "videogen",
		Usage: "generate a video from a text prompt with the Veo API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "prompt", Aliases: []string{"p"}, Usage: "text prompt describing the video", Required: true},
			&cli.StringFlag{Name: "model", Usage: "video model identifier (defaults to VEO_MODEL)"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output filename (defaults to VIDEO_OUTPUT)"},
			&cli.StringFlag{Name: "storage-dir", Usage: "directory to save the video under (defaults to STORAGE_PATH)"},
			&cli.StringFlag{Name: "negative-prompt", Usage: "what the video should avoid"},
			&cli.StringFlag{Name: "aspect-ratio", Usage: "aspect ratio, e.g. 16:9"},
			&cli.StringFlag{Name: "api-key", Usage: "Gemini API key (defaults to GEMINI_API_KEY)"},
			&cli.DurationFlag{Name: "poll-interval", Usage: "initial wait between status polls (defaults to POLL_INTERVAL_SECONDS)"},
			&cli.DurationFlag{Name: "timeout", Usage: "overall polling budget (defaults to POLL_TIMEOUT_SECONDS)"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return err
	}
	applyFlags(c, cfg)

	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		return fmt.Errorf("gemini api key is required via --api-key or GEMINI_API_KEY")
	}

	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := veo.NewClient(veo.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		Model:      cfg.VideoModel,
		HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
		Logger:     &logger,
	})
	if err != nil {
		return err
	}

	store, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		return err
	}

	generator, err := video.NewGenerator(video.Options{
		Client:       client,
		Store:        store,
		Logger:       &logger,
		PollInterval: cfg.PollInterval,
		MaxInterval:  cfg.PollMaxInterval,
		Timeout:      cfg.PollTimeout,
	})
	if err != nil {
		return err
	}

	result, err := generator.Generate(ctx, video.Request{
		Prompt:         c.String("prompt"),
		NegativePrompt: c.String("negative-prompt"),
		AspectRatio:    c.String("aspect-ratio"),
		OutputKey:      cfg.OutputKey,
	})
	if err != nil {
		if kind := veo.KindOf(err); kind != "" {
			logger.Error().Err(err).Str("kind", string(kind)).Msg("videogen: generation failed")
		}
		return err
	}

	fmt.Printf("Generated video saved to %s\n", filepath.Join(store.BasePath(), filepath.FromSlash(result.Path)))
	return nil
}

func applyFlags(c *cli.Context, cfg *infra.Config) {
	if c.IsSet("model") {
		cfg.VideoModel = c.String("model")
	}
	if c.IsSet("output") {
		cfg.OutputKey = c.String("output")
	}
	if c.IsSet("storage-dir") {
		cfg.StoragePath = c.String("storage-dir")
	}
	if c.IsSet("api-key") {
		cfg.GeminiAPIKey = c.String("api-key")
	}
	if c.IsSet("poll-interval") {
		cfg.PollInterval = c.Duration("poll-interval")
	}
	if c.IsSet("timeout") {
		cfg.PollTimeout = c.Duration("timeout")
	}
}
