// Command runner executes one bounded pipeline run. It is meant to be
// triggered by cron or an equivalent scheduler; there is no background loop.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"contentpipe/internal/domain"
	"contentpipe/internal/infra"
	"contentpipe/internal/infra/credentials"
	"contentpipe/internal/lifecycle"
	"contentpipe/internal/notify"
	"contentpipe/internal/pipeline"
	"contentpipe/internal/providers/caption"
	"contentpipe/internal/providers/image"
	"contentpipe/internal/providers/poster"
	"contentpipe/internal/resilience"
	"contentpipe/internal/runlock"
	"contentpipe/internal/storage"
	"contentpipe/internal/store/postgres"

	"github.com/google/uuid"
)

func main() {
	root := &cobra.Command{
		Use:           "runner",
		Short:         "Content pipeline runner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newSeedCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var (
		jobName  string
		deadline time.Duration
		workers  int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Advance every eligible item of a job by one step",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(jobName, deadline, workers)
		},
	}
	cmd.Flags().StringVar(&jobName, "job", pipeline.JobGeneration, "job to run (content-generation or posting)")
	cmd.Flags().DurationVar(&deadline, "deadline", 0, "optional run deadline, e.g. 10m (0 = none)")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent items (0 = from environment)")
	return cmd
}

func newSeedCmd() *cobra.Command {
	var (
		kind           string
		location       string
		prompt         string
		negativePrompt string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Queue a new content item for the next generation run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return seed(kind, location, prompt, negativePrompt)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(domain.KindPost), "content kind (post or story)")
	cmd.Flags().StringVar(&location, "location", "", "location the caption and image refer to")
	cmd.Flags().StringVar(&prompt, "prompt", "", "image generation prompt (required)")
	cmd.Flags().StringVar(&negativePrompt, "negative-prompt", "", "things the image must avoid")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}

func seed(kind, location, prompt, negativePrompt string) error {
	switch domain.Kind(kind) {
	case domain.KindPost, domain.KindStory:
	default:
		return fmt.Errorf("unknown kind %q", kind)
	}
	_ = godotenv.Load()
	cfg, err := infra.LoadConfig()
	if err != nil {
		return err
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "runner").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("runner: db connection failed")
		return err
	}
	defer pool.Close()

	item := &domain.ContentItem{
		ID:             uuid.NewString(),
		Kind:           domain.Kind(kind),
		State:          domain.StateCaptionPending,
		Location:       strings.TrimSpace(location),
		Prompt:         strings.TrimSpace(prompt),
		NegativePrompt: strings.TrimSpace(negativePrompt),
		Approval:       domain.ApprovalPending,
	}
	store := postgres.NewContentStore(infra.NewSQLRunner(pool, logger))
	if err := store.Create(ctx, item); err != nil {
		return err
	}
	fmt.Println(item.ID)
	return nil
}

func run(jobName string, deadline time.Duration, workers int) error {
	_ = godotenv.Load()
	cfg, err := infra.LoadConfig()
	if err != nil {
		return err
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "runner").Str("job", jobName).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if deadline <= 0 {
		deadline = cfg.RunDeadline
	}
	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("runner: db connection failed")
		return err
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)

	fileStore, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Error().Err(err).Msg("runner: failed to configure storage")
		return err
	}

	contentStore := postgres.NewContentStore(runner)
	leaseStore := postgres.NewLeaseStore(runner)
	credStore := credentials.NewStore(runner)

	captioner := buildCaptioner(ctx, cfg, credStore, logger)
	generator, err := image.NewSDGenerator(image.SDOptions{BaseURL: cfg.SDBaseURL})
	if err != nil {
		return err
	}
	post, err := poster.NewBridgePoster(poster.BridgeOptions{BaseURL: cfg.PosterBaseURL})
	if err != nil {
		return err
	}
	notifier := buildNotifier(ctx, cfg, credStore, logger)

	budget := resilience.Budget{
		MaxAttempts: cfg.RetryMax,
		BaseDelay:   cfg.RetryBase,
		MaxDelay:    cfg.RetryMaxWait,
		Jitter:      0.2,
	}
	breakers := resilience.NewRegistry(resilience.BreakerConfig{
		Window:    cfg.BreakerWindow,
		Threshold: cfg.BreakerThreshold,
		Cooldown:  cfg.BreakerCooldown,
	})

	machine := lifecycle.NewMachine(
		contentStore, captioner, generator, post, notifier, fileStore,
		breakers,
		lifecycle.Budgets{Caption: budget, Image: budget, Persist: budget, Post: budget},
		logger,
	)
	holder, _ := os.Hostname()
	if holder == "" {
		holder = "runner"
	}
	holder = holder + "-" + uuid.NewString()
	locker := runlock.NewLocker(leaseStore, holder, cfg.LeaseTTL, logger)
	if workers <= 0 {
		workers = cfg.Workers
	}
	pipe := pipeline.NewRunner(locker, contentStore, machine, notifier, breakers, budget, workers, logger)

	summary, err := pipe.RunOnce(ctx, jobName)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyRunning) {
			return fmt.Errorf("job %q is already running", jobName)
		}
		return err
	}
	fmt.Println(summary.String())
	for _, itemErr := range summary.Errors {
		fmt.Printf("  %s (%s): %s\n", itemErr.ItemID, itemErr.State, itemErr.Err)
	}
	return nil
}

func buildCaptioner(ctx context.Context, cfg *infra.Config, credStore *credentials.Store, logger infra.Logger) caption.Captioner {
	apiKey := strings.TrimSpace(cfg.OpenAIAPIKey)
	if apiKey == "" {
		keyFromStore, err := credStore.OpenAIAPIKey(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("runner: failed to load openai api key from store")
		} else {
			apiKey = keyFromStore
		}
	}
	if apiKey == "" {
		logger.Warn().Msg("runner: openai api key missing, using static captions")
		return caption.NewStaticCaptioner()
	}
	captioner, err := caption.NewOpenAICaptioner(caption.OpenAIOptions{
		APIKey:       apiKey,
		Model:        cfg.OpenAIModel,
		BaseURL:      cfg.OpenAIBaseURL,
		Organization: cfg.OpenAIOrg,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	})
	if err != nil {
		logger.Warn().Err(err).Msg("runner: failed to configure openai captioner, using static captions")
		return caption.NewStaticCaptioner()
	}
	return captioner
}

func buildNotifier(ctx context.Context, cfg *infra.Config, credStore *credentials.Store, logger infra.Logger) notify.Notifier {
	token := strings.TrimSpace(cfg.TelegramBotToken)
	if token == "" {
		fromStore, err := credStore.TelegramBotToken(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("runner: failed to load telegram token from store")
		} else {
			token = fromStore
		}
	}
	if token == "" || cfg.TelegramChatID == "" {
		logger.Warn().Msg("runner: telegram not configured, notifications disabled")
		return notify.NopNotifier{}
	}
	notifier, err := notify.NewTelegramNotifier(notify.TelegramOptions{
		BotToken: token,
		ChatID:   cfg.TelegramChatID,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("runner: failed to configure telegram, notifications disabled")
		return notify.NopNotifier{}
	}
	return notifier
}
