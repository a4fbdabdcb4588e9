// Command bot sends WhatsApp class reminders from the class schedule.
//
// Usage:
//
//	class-reminder-bot serve     # poll on CRON_SPEC_POLL until interrupted
//	class-reminder-bot poll      # run a single poll cycle and exit
//	class-reminder-bot migrate   # apply the SQL schema (postgres/sqlite stores)
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"class_reminder_bot/internal/app"
	"class_reminder_bot/internal/domain/alert"
	"class_reminder_bot/internal/domain/schedule"
	"class_reminder_bot/internal/infra/config"
	idb "class_reminder_bot/internal/infra/database"
	"class_reminder_bot/internal/infra/gupshup"
	"class_reminder_bot/internal/infra/logger"
	"class_reminder_bot/internal/infra/scheduler"
	"class_reminder_bot/internal/infra/sheets"
	"class_reminder_bot/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/telebot.v3"
)

func main() {
	root := &cobra.Command{
		Use:           "class-reminder-bot",
		Short:         "WhatsApp reminders for scheduled classes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), pollCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		logger.Log.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}

// application holds the wired components shared by all commands.
type application struct {
	cfg          *config.AppConfig
	notifService *app.NotificationServiceImpl
	bot          *telebot.Bot // nil when TELEGRAM_TOKEN is unset
	closeStore   func()
}

func loadConfig() (*config.AppConfig, *logrus.Entry, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("could not load application configuration: %w", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")
	mainLogger.WithFields(logrus.Fields{
		"store":           cfg.StoreBackend,
		"delay":           cfg.Delay,
		"retry_threshold": cfg.RetryThreshold,
		"environment":     cfg.Environment,
	}).Info("Configuration loaded")
	return cfg, mainLogger, nil
}

func buildApplication(ctx context.Context, cfg *config.AppConfig, mainLogger *logrus.Entry, longPoll bool) (*application, error) {
	zones, err := schedule.ParseZoneTable(cfg.ZoneOffsets)
	if err != nil {
		return nil, fmt.Errorf("invalid ZONE_OFFSETS: %w", err)
	}

	repo, closeStore, err := openRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}
	mainLogger.Info("Schedule repository initialized.")

	gatewayClient := gupshup.NewClient(gupshup.Config{
		Endpoint:          cfg.GupshupEndpoint,
		APIKey:            cfg.GupshupAPIKey,
		SourcePhone:       cfg.SourcePhone,
		BotName:           cfg.BotName,
		RequestsPerMinute: cfg.GatewayRequestsPerMinute,
		Timeout:           cfg.GatewayTimeout,
	})

	a := &application{cfg: cfg, closeStore: closeStore}

	var alerter alert.Notifier
	if cfg.TelegramToken != "" {
		a.bot, err = newBot(cfg.TelegramToken, longPoll)
		if err != nil {
			closeStore()
			return nil, fmt.Errorf("could not create Telegram bot: %w", err)
		}
		alerter = telegram.NewTelebotAdapter(a.bot, cfg.AdminTelegramID)
		mainLogger.Info("Telegram alerts enabled.")
	}

	dispatcher := app.NewDispatcher(gatewayClient, cfg.ReminderLeadMinutes, cfg.MessageSignature, logger.Component("dispatcher"))
	a.notifService = app.NewNotificationServiceImpl(repo, dispatcher, alerter, logger.Component("notification_service"), app.Options{
		Delay:          cfg.Delay,
		RetryThreshold: cfg.RetryThreshold,
		PMMarker:       cfg.PMMarker,
		Zones:          zones,
		Location:       cfg.Timezone,
	})
	return a, nil
}

func openRepository(ctx context.Context, cfg *config.AppConfig) (schedule.Repository, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendSheets:
		svc, err := sheets.NewService(ctx, cfg.CredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		repo := sheets.NewRepository(svc, cfg.SpreadsheetID, cfg.SpreadsheetName, logger.Component("sheets"))
		return repo, func() {}, nil
	default:
		db, dialect, err := openDatabase(cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := idb.RunMigrations(db, dialect); err != nil {
			db.Close()
			return nil, nil, err
		}
		return idb.NewScheduleRepository(db, dialect), func() { db.Close() }, nil
	}
}

func newBot(token string, longPoll bool) (*telebot.Bot, error) {
	botLogger := logger.Component("telebot")
	pref := telebot.Settings{
		Token:   token,
		Offline: !longPoll,
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := botLogger.WithError(err)
			if c != nil && c.Sender() != nil {
				entry = entry.WithField("sender_id", c.Sender().ID)
			}
			entry.Error("Telegram handler error")
		},
	}
	if longPoll {
		pref.Poller = &telebot.LongPoller{Timeout: 10 * time.Second}
	}
	return telebot.NewBot(pref)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Poll the schedule on a cron spec until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, mainLogger, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			a, err := buildApplication(ctx, cfg, mainLogger, true)
			if err != nil {
				return err
			}
			defer a.closeStore()

			notifScheduler := scheduler.NewNotificationScheduler(
				a.notifService,
				logger.Component("scheduler"),
				cfg.CronSpecPoll,
				cfg.Timezone,
			)
			if err := notifScheduler.Start(); err != nil {
				return err
			}

			if a.bot != nil {
				adminService := app.NewAdminService(a.notifService, cfg.AdminTelegramID)
				telegram.RegisterAdminHandlers(ctx, a.bot, adminService, cfg.AdminTelegramID, logger.Component("telegram"))
				go a.bot.Start()
				mainLogger.Info("Admin command handlers registered.")
			}

			mainLogger.Info("Application setup complete. Scheduler is running...")

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit // Block until a signal is received

			mainLogger.Info("Shutting down application...")
			if a.bot != nil {
				a.bot.Stop()
			}
			notifScheduler.Stop()
			mainLogger.Info("Application shut down gracefully.")
			return nil
		},
	}
}

func pollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Run one poll cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, mainLogger, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApplication(ctx, cfg, mainLogger, false)
			if err != nil {
				return err
			}
			defer a.closeStore()

			report, err := a.notifService.RunCycle(ctx, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.Summary())
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the class_schedule schema to the SQL store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, mainLogger, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.StoreBackend == config.BackendSheets {
				return fmt.Errorf("migrate needs STORE_BACKEND=%s or %s", config.BackendPostgres, config.BackendSQLite)
			}
			db, dialect, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := idb.RunMigrations(db, dialect); err != nil {
				return err
			}
			mainLogger.WithField("dialect", dialect).Info("Migrations applied")
			return nil
		},
	}
}

func openDatabase(cfg *config.AppConfig) (*sql.DB, idb.Dialect, error) {
	if cfg.StoreBackend == config.BackendSQLite {
		db, err := idb.NewSQLiteConnection(cfg.SQLitePath)
		return db, idb.DialectSQLite, err
	}
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	return db, idb.DialectPostgres, err
}
