package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"adcraft/internal/adapter/repo"
	"adcraft/internal/domain"
	"adcraft/internal/infra"
	"adcraft/internal/infra/credentials"
	"adcraft/internal/jobs"
	"adcraft/internal/notify"
	"adcraft/internal/pipeline"
	"adcraft/internal/promptcache"
	"adcraft/internal/providers/image"
	"adcraft/internal/providers/llm"
	"adcraft/internal/ranking"
	"adcraft/internal/retry"
	"adcraft/internal/sqlinline"
	"adcraft/internal/storage"
	"adcraft/internal/telemetry"
)

var errNoJobAvailable = errors.New("no job available")

type claimedJob struct {
	ID         string
	Type       domain.JobType
	InputJSON  []byte
	DevMode    bool
	Locale     string
	APIVersion string
}

type jobWorker struct {
	ctx          context.Context
	runner       *infra.SQLRunner
	deps         jobs.Deps
	orchestrator *pipeline.Orchestrator
	analytics    domain.AnalyticsRepository
	logger       infra.Logger
	poll         time.Duration
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)

	objects, err := newObjectStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: storage configuration failed")
	}
	results := storage.NewResultStore(objects)

	creds := credentials.NewStore(runner)
	chatter := newChatter(ctx, cfg, creds, logger)
	generator := newGenerator(ctx, cfg, creds, logger)

	var rankingService *ranking.Service
	if chatter != nil {
		rankingService = ranking.NewService(chatter, logger)
	}

	jobRepo := repo.NewJobRepository(pool)
	deps := jobs.Deps{
		LLM:        chatter,
		Images:     generator,
		Prompts:    promptcache.New(repo.NewPromptRepository(pool), cfg.PromptCacheTTL),
		Results:    results,
		Telemetry:  telemetry.NewRecorder(objects, logger),
		Ranking:    rankingService,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Retry:      retry.Default(domain.IsTransient),
		Logger:     logger,
	}

	worker := &jobWorker{
		ctx:    ctx,
		runner: runner,
		deps:   deps,
		orchestrator: &pipeline.Orchestrator{
			Jobs:         jobRepo,
			Results:      results,
			Notifier:     notify.NewNotifier(infra.NewRedisClient(cfg), cfg.RedisChannel, logger),
			Logger:       logger,
			FixtureJobID: cfg.DevFixtureJobID,
		},
		analytics: repo.NewAnalyticsRepository(pool),
		logger:    logger,
		poll:      cfg.WorkerPoll,
	}

	if err := worker.Run(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

// newChatter builds the text provider, falling back to a key stored in the
// credentials table so deployments can rotate without restarts.
func newChatter(ctx context.Context, cfg *infra.Config, creds *credentials.Store, logger infra.Logger) llm.Chatter {
	key := strings.TrimSpace(cfg.OpenAIAPIKey)
	if key == "" {
		stored, err := creds.Token(ctx, credentials.ProviderOpenAI)
		if err != nil {
			logger.Warn().Err(err).Msg("worker: failed to load openai key from store")
		}
		key = stored
	}
	if key == "" {
		logger.Warn().Msg("worker: no openai key configured, text pipelines will fail jobs")
		return nil
	}
	client, err := llm.NewClient(llm.Options{
		APIKey:  key,
		Model:   cfg.OpenAIModel,
		BaseURL: cfg.OpenAIBaseURL,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure llm client")
	}
	return client
}

func newGenerator(ctx context.Context, cfg *infra.Config, creds *credentials.Store, logger infra.Logger) *image.Client {
	key := strings.TrimSpace(cfg.ImageAPIKey)
	if key == "" {
		stored, err := creds.Token(ctx, credentials.ProviderImage)
		if err != nil {
			logger.Warn().Err(err).Msg("worker: failed to load image key from store")
		}
		key = stored
	}
	client := image.NewClient(image.Options{
		APIKey:  key,
		BaseURL: cfg.ImageBaseURL,
		Model:   cfg.ImageModel,
		Logger:  logger,
	})
	if key == "" {
		logger.Warn().Str("model", client.Model()).Msg("worker: image api key missing, using synthetic generation")
	}
	return client
}

func (w *jobWorker) Run() error {
	w.logger.Info().Msg("worker: started")
	for {
		select {
		case <-w.ctx.Done():
			return w.ctx.Err()
		default:
		}

		job, err := w.claimJob()
		if err != nil {
			if !errors.Is(err, errNoJobAvailable) {
				w.logger.Error().Err(err).Msg("worker: failed to claim job")
			}
			select {
			case <-w.ctx.Done():
				return w.ctx.Err()
			case <-time.After(w.poll):
			}
			continue
		}

		w.handleJob(job)
	}
}

func (w *jobWorker) claimJob() (claimedJob, error) {
	row := w.runner.QueryRow(w.ctx, sqlinline.QWorkerClaimJob)
	var j claimedJob
	if err := row.Scan(&j.ID, &j.Type, &j.InputJSON, &j.DevMode, &j.Locale, &j.APIVersion); err != nil {
		if infra.IsNoRows(err) {
			return claimedJob{}, errNoJobAvailable
		}
		return claimedJob{}, err
	}
	j.InputJSON = append([]byte(nil), j.InputJSON...)
	return j, nil
}

func (w *jobWorker) handleJob(j claimedJob) {
	w.logger.Info().Str("job_id", j.ID).Str("job_type", string(j.Type)).Msg("worker: picked job")

	jc := &pipeline.Context{
		JobID:   j.ID,
		JobType: j.Type,
		DevMode: j.DevMode,
		Locale:  j.Locale,
	}
	resp := w.run(jc, j)

	counter := "jobs_failed"
	if resp.StatusCode < 400 {
		counter = "jobs_succeeded"
	}
	pipeline.BestEffort(w.logger, "analytics.job_counter", func() error {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(w.ctx), 2*time.Second)
		defer cancel()
		day := time.Now().UTC().Format("2006-01-02")
		return w.analytics.IncrementCounters(ctx, day, map[string]int{counter: 1})
	})
}

func (w *jobWorker) run(jc *pipeline.Context, j claimedJob) *pipeline.Response {
	// Stored jobs were validated at ingress, but the schema may have moved
	// underneath long-queued rows; re-validate before running.
	input, err := domain.DecodeInput(j.Type, j.InputJSON)
	if err != nil {
		return w.orchestrator.Run(w.ctx, jc, []pipeline.Step{failingStep("decode_input", err)})
	}
	jc.Input = input

	if w.deps.LLM == nil && j.Type != domain.JobTypeImageGen && !j.DevMode {
		err := errors.New("text provider not configured")
		return w.orchestrator.Run(w.ctx, jc, []pipeline.Step{failingStep("configure_provider", err)})
	}

	return w.orchestrator.Run(w.ctx, jc, jobs.Steps(j.Type, w.deps))
}

// failingStep routes a pre-flight error through the orchestrator so the job
// still gets its FAILED transition and notification.
func failingStep(name string, err error) pipeline.Step {
	return pipeline.StepFunc{StepName: name, Fn: func(context.Context, *pipeline.Context) error {
		return err
	}}
}

func newObjectStore(ctx context.Context, cfg *infra.Config, logger infra.Logger) (storage.ObjectStore, error) {
	client, err := infra.NewMinioClient(cfg)
	if err != nil {
		return nil, err
	}
	if client != nil {
		store := storage.NewS3Store(client, cfg.S3Bucket, cfg.S3Region)
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	}
	logger.Warn().Str("path", cfg.StoragePath).Msg("no S3 endpoint configured, using filesystem storage")
	return storage.NewFileStore(cfg.StoragePath)
}
