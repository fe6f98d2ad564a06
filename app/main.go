package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sushihentaime/postboard/internal/blogservice"
	"github.com/sushihentaime/postboard/internal/common"
	"github.com/sushihentaime/postboard/internal/mailservice"
	"github.com/sushihentaime/postboard/internal/mediaservice"
	"github.com/sushihentaime/postboard/internal/userservice"
)

type application struct {
	config        *Config
	logger        *slog.Logger
	userService   *userservice.UserService
	blogService   *blogservice.BlogService
	mailService   *mailservice.MailService
	cleanupWorker *mediaservice.CleanupWorker
	broker        *common.MessageBroker
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := loadConfig(".env")
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	db, err := common.NewDB(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, 10, 5, 15*time.Minute)
	if err != nil {
		logger.Error("failed to connect to the database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer common.CloseDB(db)

	_, err = common.MigrateDB("file://migrations", common.DSN(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName))
	if err != nil {
		logger.Error("failed to migrate the database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	URI := fmt.Sprintf("amqp://%s:%s@%s:%s/", cfg.MQUser, cfg.MQPassword, cfg.MQHost, cfg.MQPort)
	broker, err := common.NewMessageBroker(URI)
	if err != nil {
		logger.Error("failed to connect to the message broker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer broker.Close()

	for name, setup := range map[string]func(*common.MessageBroker) error{
		"user":  common.SetupUserExchange,
		"media": common.SetupMediaExchange,
	} {
		if err := setup(broker); err != nil {
			logger.Error("failed to setup the exchange", slog.String("exchange", name), slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	gateway, err := newGateway(cfg, logger)
	if err != nil {
		logger.Error("failed to create the object store gateway", slog.String("error", err.Error()))
		os.Exit(1)
	}

	userService := userservice.NewUserService(db, broker, cfg.JWTSecret, cfg.JWTTTL, cfg.DBTimeout, logger)

	app := &application{
		config:        cfg,
		logger:        logger,
		userService:   userService,
		blogService:   blogservice.NewBlogService(db, cfg.DBTimeout, gateway, userService, mediaservice.NewCleanupPublisher(broker), cfg.DefaultCoverImage, logger),
		mailService:   mailservice.NewMailService(broker, cfg.MailHost, cfg.MailUser, cfg.MailPassword, cfg.MailSender, cfg.MailPort, logger),
		cleanupWorker: mediaservice.NewCleanupWorker(broker, gateway, logger),
		broker:        broker,
	}

	app.mailService.SendWelcomeEmail()
	app.cleanupWorker.Start()

	err = app.serve()
	if err != nil {
		logger.Error("failed to start the server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// newGateway returns the S3 gateway when a bucket is configured and an
// in-memory one otherwise.
func newGateway(cfg *Config, logger *slog.Logger) (mediaservice.Gateway, error) {
	if cfg.S3Bucket == "" {
		logger.Warn("S3_BUCKET is not set, cover images are kept in memory")
		return mediaservice.NewMemoryGateway("http://localhost" + cfg.addr() + "/media"), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return mediaservice.NewS3Gateway(ctx, mediaservice.S3Config{
		Region:          cfg.S3Region,
		Bucket:          cfg.S3Bucket,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		Endpoint:        cfg.S3Endpoint,
		UsePathStyle:    cfg.S3UsePathStyle,
		PublicBaseURL:   cfg.S3PublicBaseURL,
		Timeout:         cfg.S3Timeout,
	})
}

func (app *application) stopWorkers() {
	if app.mailService != nil {
		app.mailService.Close()
	}
	if app.cleanupWorker != nil {
		app.cleanupWorker.Close()
	}
}
