package cmd

import (
	"context"
	"fmt"

	"fym-server/internal/clock"
	"fym-server/internal/config"
	"fym-server/internal/mail"
	"fym-server/internal/repository"
	"fym-server/internal/repository/gormstore"
	"fym-server/internal/services"
	"fym-server/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// app holds the wired dependencies shared by every subcommand
type app struct {
	players     repository.PlayerStore
	trains      repository.TrainStore
	localBlobs  *storage.LocalStore
	credentials *services.CredentialService
	gate        *services.Gate
	mailbox     *services.MailboxService
	hub         *services.NotificationHub

	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	clk := clock.New()

	if err := a.openStores(ctx, cfg.Database); err != nil {
		return nil, err
	}

	blobs, err := a.openBlobs(ctx, cfg, clk)
	if err != nil {
		a.Close()
		return nil, err
	}

	var mailer mail.Sender
	if cfg.Mail.Host == "" {
		log.Warn().Msg("mail.host not set, authentication codes will not be emailed")
		mailer = mail.NewLogSender()
	} else {
		mailer = mail.NewSMTPSender(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.Username, cfg.Mail.Password, cfg.Mail.Timeout)
	}

	a.hub = services.NewNotificationHub()
	a.credentials = services.NewCredentialService(a.players, mailer, clk, services.CredentialConfig{
		ServerSecret:    cfg.Auth.SecretKey,
		StepSeconds:     int64(cfg.Auth.OTPStepSecs),
		DriftRange:      int64(cfg.Auth.DriftRange()),
		FromAddress:     cfg.Mail.From,
		DeliveryTimeout: cfg.Mail.Timeout,
	})
	a.gate = services.NewGate(a.players)
	a.mailbox = services.NewMailboxService(a.trains, blobs, a.hub, clk)

	return a, nil
}

func (a *app) openStores(ctx context.Context, dc config.DatabaseConfig) error {
	switch dc.Driver {
	case "postgres":
		db, err := pgxpool.New(ctx, dc.DSN())
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)

		if err := db.Ping(ctx); err != nil {
			a.Close()
			return fmt.Errorf("failed to ping database: %w", err)
		}
		log.Info().Msg("Database connection established")

		if dc.AutoMigrate {
			if err := repository.Migrate(ctx, db); err != nil {
				a.Close()
				return err
			}
		}
		a.players = repository.NewPlayerRepository(db)
		a.trains = repository.NewTrainRepository(db)

	default:
		db, err := gormstore.Open(dc.Driver, dc.DSN())
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { _ = gormstore.Close(db) })

		if dc.AutoMigrate {
			if err := gormstore.AutoMigrate(db); err != nil {
				a.Close()
				return err
			}
		}
		a.players = gormstore.NewPlayerStore(db)
		a.trains = gormstore.NewTrainStore(db)
	}
	return nil
}

func (a *app) openBlobs(ctx context.Context, cfg *config.Config, clk clock.Clock) (storage.BlobStore, error) {
	if cfg.Storage.Backend == "s3" {
		s3Store, err := storage.NewS3Store(ctx, cfg.Storage.AWS)
		if err != nil {
			return nil, err
		}
		log.Info().Str("bucket", cfg.Storage.AWS.S3Bucket).Msg("Using S3 train storage")
		return s3Store, nil
	}

	local, err := storage.NewLocalStore(
		cfg.Storage.Local.Root,
		cfg.Server.BaseURL,
		[]byte(cfg.Auth.SecretKey),
		cfg.Storage.Local.URLExpiry,
		clk,
	)
	if err != nil {
		return nil, err
	}
	log.Info().Str("root", cfg.Storage.Local.Root).Msg("Using local train storage")
	a.localBlobs = local
	return local, nil
}

// Close releases database connections
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
