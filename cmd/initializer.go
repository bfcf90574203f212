package main

import (
	"context"
	"database/sql"
	"time"

	"firebase.google.com/go/messaging"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tolkback/internal/booking/lifecycle"
	"tolkback/internal/booking/matching"
	"tolkback/internal/booking/notify"
	"tolkback/internal/config"
	"tolkback/internal/handlers"
	"tolkback/internal/models"
	"tolkback/internal/notifications"
	"tolkback/internal/repositories"
	"tolkback/internal/timeutil"
)

type application struct {
	cfg    config.Config
	logger *zap.Logger

	bookingHandler *handlers.BookingHandler
	tokenHandler   *handlers.TokenHandler
	deferredWorker *notify.Worker
}

// matchingStore glues the matching engine's read interface onto the two
// repositories that actually hold the data.
type matchingStore struct {
	jobs        *repositories.JobsRepository
	translators *repositories.TranslatorsRepository
}

func (s matchingStore) PendingJobs(ctx context.Context) ([]models.Job, error) {
	return s.jobs.PendingJobs(ctx)
}

func (s matchingStore) Profile(ctx context.Context, userID int64) (models.TranslatorProfile, error) {
	return s.translators.Profile(ctx, userID)
}

func (s matchingStore) CandidateProfiles(ctx context.Context, translatorType models.TranslatorType) ([]models.TranslatorProfile, error) {
	return s.translators.CandidateProfiles(ctx, translatorType)
}

func (s matchingStore) BlacklistSet(ctx context.Context, customerID int64) (map[int64]struct{}, error) {
	return s.translators.BlacklistSet(ctx, customerID)
}

func initializeApp(cfg config.Config, db *sql.DB, redisClient *redis.Client, msgClient *messaging.Client, logger *zap.Logger) *application {
	jobsRepo := &repositories.JobsRepository{DB: db}
	assignmentsRepo := &repositories.AssignmentsRepository{DB: db}
	translatorsRepo := &repositories.TranslatorsRepository{DB: db}

	hours := timeutil.NewBusinessHours(cfg.Notify.NightStart, cfg.Notify.NightEnd)

	fcmSender := notifications.NewFCMSender(msgClient, translatorsRepo, logger)
	smsClient := notifications.NewSMSClient(cfg.SMS.Endpoint, cfg.SMS.APIKey, nil)
	emailClient := notifications.NewEmailClient(cfg.Email.Endpoint, cfg.Email.APIKey, cfg.Email.FromAddress, cfg.Email.FromName, nil)

	queue := notify.NewRedisDeferredQueue(redisClient)
	dispatcher := notify.NewDispatcher(fcmSender, smsClient, emailClient, queue, hours, logger,
		durationOr(cfg.Notify.DispatchTimeout, 10*time.Second))
	worker := notify.NewWorker(queue, fcmSender, logger,
		durationOr(cfg.Notify.DeferredInterval, time.Minute))

	engine := matching.NewEngine(
		matchingStore{jobs: jobsRepo, translators: translatorsRepo},
		translatorsRepo,
		logger,
	)

	service := lifecycle.NewService(jobsRepo, assignmentsRepo, translatorsRepo, engine, dispatcher, translatorsRepo, logger)

	return &application{
		cfg:    cfg,
		logger: logger,
		bookingHandler: &handlers.BookingHandler{
			Service: service,
			Engine:  engine,
			Logger:  logger,
		},
		tokenHandler: &handlers.TokenHandler{
			Store:  translatorsRepo,
			Logger: logger,
		},
		deferredWorker: worker,
	}
}

func durationOr(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
