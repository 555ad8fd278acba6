// Command bot runs the WhatsApp recipe bot: an HTTP server receiving webhook
// deliveries, a daily scheduler pushing the evening recipe suggestion, and
// the maintenance jobs that keep the SQLite store bounded.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-bot/internal/clock"
	"github.com/tbourn/go-recipe-bot/internal/config"
	httpapi "github.com/tbourn/go-recipe-bot/internal/http"
	"github.com/tbourn/go-recipe-bot/internal/observability"
	"github.com/tbourn/go-recipe-bot/internal/repo"
	"github.com/tbourn/go-recipe-bot/internal/scheduler"
	"github.com/tbourn/go-recipe-bot/internal/services"
	"github.com/tbourn/go-recipe-bot/internal/sysutil"
	"github.com/tbourn/go-recipe-bot/internal/whatsapp"
)

// Job names registered with the scheduler; the ops fire endpoint addresses
// jobs by these.
const (
	jobDailyRecipe = "daily_recipe"
	jobDailyReset  = "daily_reset"
	jobRetentionGC = "retention_gc"
)

// jobRunRecorder adapts the repository free functions to the
// scheduler.RunRecorder interface, keeping the scheduler free of gorm.
type jobRunRecorder struct {
	db *gorm.DB
}

func (r jobRunRecorder) LastRunDay(ctx context.Context, name string) (string, error) {
	return repo.LastJobRunDay(ctx, r.db, name)
}

func (r jobRunRecorder) RecordRun(ctx context.Context, name, day string, at time.Time) error {
	return repo.RecordJobRun(ctx, r.db, name, day, at)
}

func main() {
	// .env is a dev convenience; absence is not an error.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	version := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), "dev")
	log.Info().Str("version", version).Str("timezone", cfg.Timezone).Msg("starting recipe bot")

	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}
	if n, err := repo.SeedDefaultRecipes(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("seed default recipes")
	} else if n > 0 {
		log.Info().Int("recipes", n).Msg("seeded default recipe pool")
	}

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("setup tracing")
	}

	loc := cfg.Location()
	clk := clock.Real{}

	sender := whatsapp.NewClient(cfg.WhatsApp.APIBaseURL, cfg.WhatsApp.Token, cfg.WhatsApp.PhoneNumberID, log.Logger)

	rotation := services.NewRotationService(db, clk, loc)
	grocery := &services.GroceryService{
		DB:          db,
		Clock:       clk,
		Loc:         loc,
		Sender:      sender,
		Predictor:   services.HeuristicPredictor{Clock: clk},
		MinReceipts: int64(cfg.MinReceipts),
	}
	bot := &services.BotService{
		DB:             db,
		Clock:          clk,
		Loc:            loc,
		Sender:         sender,
		Rotation:       rotation,
		Grocery:        grocery,
		Log:            log.Logger,
		EventTTL:       cfg.EventTTL,
		RecipientPhone: cfg.RecipientPhone,
		SendTimeLocal:  cfg.Schedule.RecipeSendTime,
	}
	maint := &services.MaintenanceService{
		DB:            db,
		Clock:         clk,
		Loc:           loc,
		Log:           log.Logger,
		RetentionDays: cfg.RetentionDays,
	}

	policy := scheduler.CatchUpSkip
	if cfg.Schedule.CatchUp == "fire" {
		policy = scheduler.CatchUpFire
	}
	sched := scheduler.New(clk, loc, log.Logger, jobRunRecorder{db: db})
	addJob(sched, jobDailyRecipe, cfg.Schedule.RecipeSendTime, policy, bot.SendDailyRecipe)
	addJob(sched, jobDailyReset, cfg.Schedule.ResetTime, scheduler.CatchUpSkip, func(ctx context.Context) error {
		_, err := rotation.ResetDay(ctx)
		return err
	})
	addJob(sched, jobRetentionGC, cfg.Schedule.GCTime, scheduler.CatchUpSkip, maint.RunRetention)
	sched.Start(ctx)

	router := gin.New()
	httpapi.RegisterRoutes(router, db, bot, sched, clk, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}

	sched.Wait()

	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown")
	}
	log.Info().Msg("bye")
}

// addJob registers a daily job or exits: a bad schedule is a configuration
// error and the process should not come up half-scheduled.
func addJob(s *scheduler.Scheduler, name, at string, policy scheduler.CatchUpPolicy, fn scheduler.JobFunc) {
	hour, minute, err := config.ParseClock(at)
	if err != nil {
		log.Fatal().Err(err).Str("job", name).Msg("invalid schedule")
	}
	if err := s.AddJob(name, hour, minute, policy, fn); err != nil {
		log.Fatal().Err(err).Str("job", name).Msg("register job")
	}
}
