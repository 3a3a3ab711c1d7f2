package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ahlev/Parlaybot/internal/config"
	"github.com/ahlev/Parlaybot/internal/domain/pick"
	"github.com/ahlev/Parlaybot/internal/infrastructure/jobqueue"
	"github.com/ahlev/Parlaybot/internal/infrastructure/repository/jsonfile"
	"github.com/ahlev/Parlaybot/internal/infrastructure/repository/memory"
	"github.com/ahlev/Parlaybot/internal/infrastructure/repository/postgres"
	"github.com/ahlev/Parlaybot/internal/interfaces/command"
	"github.com/ahlev/Parlaybot/internal/interfaces/discordbot"
	"github.com/ahlev/Parlaybot/internal/interfaces/httpapi"
	"github.com/ahlev/Parlaybot/internal/platform/logging"
	"github.com/ahlev/Parlaybot/internal/platform/resilience"
	"github.com/ahlev/Parlaybot/internal/usecase"
	"github.com/sourcegraph/conc/pool"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
	"go.opentelemetry.io/otel/attribute"
)

const dbPingTimeout = 5 * time.Second

// App owns every long running component of the bot.
type App struct {
	logger    *logging.Logger
	ledger    *usecase.PickLedgerService
	router    *command.Router
	bot       *discordbot.Bot
	scheduler *usecase.WeeklyResetScheduler
	server    *http.Server
	closers   []func() error
}

// New wires the store, the pick ledger and the enabled surfaces. The ledger is
// loaded before New returns so no surface ever serves an empty week by
// accident.
func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}

	a := &App{logger: logger}

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}

	a.ledger = usecase.NewPickLedgerService(store, logger.Named("ledger"))
	if err := a.ledger.Load(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("load pick ledger: %w", err)
	}

	a.router = command.NewRouter(a.ledger, cfg.DiscordCommandPrefix, logger.Named("command"))

	var announcer usecase.ResetAnnouncer
	if cfg.DiscordEnabled {
		bot, err := discordbot.New(discordbot.Config{
			Token:             cfg.DiscordBotToken,
			AnnounceChannelID: cfg.DiscordAnnounceChannelID,
		}, a.router, logger.Named("discordbot"))
		if err != nil {
			a.close()
			return nil, fmt.Errorf("build discord bot: %w", err)
		}
		a.bot = bot
		announcer = bot
	}

	if cfg.WeeklyResetEnabled {
		a.scheduler = usecase.NewWeeklyResetScheduler(
			a.ledger,
			announcer,
			newJobQueue(cfg, logger),
			usecase.WeeklyResetConfig{
				Interval: cfg.WeeklyResetInterval,
				Dispatch: cfg.WeeklyResetDispatch,
			},
			logger.Named("scheduler"),
		)
	}

	if cfg.HTTPEnabled {
		var resetJobs httpapi.WeeklyResetJobRunner
		if a.scheduler != nil {
			resetJobs = a.scheduler
		}
		handler := httpapi.NewHandler(a.ledger, resetJobs, logger.Named("httpapi"))
		srv, err := httpapi.NewServer(httpapi.ServerConfig{
			Addr:               cfg.HTTPAddr,
			ReadTimeout:        cfg.ReadTimeout,
			WriteTimeout:       cfg.WriteTimeout,
			CORSAllowedOrigins: cfg.CORSAllowedOrigins,
			InternalJobToken:   cfg.InternalJobToken,
		}, handler, logger.Named("httpapi"))
		if err != nil {
			a.close()
			return nil, fmt.Errorf("build http server: %w", err)
		}
		a.server = srv
	}

	return a, nil
}

// Run blocks until ctx is cancelled or one component fails; a failure cancels
// the others.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	p := pool.New().WithContext(ctx).WithCancelOnError()
	if a.bot != nil {
		p.Go(a.bot.Run)
	}
	if a.scheduler != nil {
		p.Go(a.scheduler.Run)
	}
	if a.server != nil {
		p.Go(func(ctx context.Context) error {
			return httpapi.Serve(ctx, a.server, a.logger.Named("httpapi"))
		})
	}

	err := p.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Info("parlaybot stopped")
	return nil
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close resource failed", "error", err)
		}
	}
	a.closers = nil
}

func openStore(ctx context.Context, cfg config.Config, logger *logging.Logger) (pick.Store, func() error, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logger.Warn("using in-memory pick store, picks are lost on restart")
		return memory.NewPickStore(pick.NewState()), nil, nil
	case config.StoreDriverPostgres:
		dbName := dbNameFromURL(cfg.DBURL)
		db, err := otelsqlx.Open("postgres", cfg.DBURL,
			otelsql.WithDBName(dbName),
			otelsql.WithAttributes(attribute.String("db.system", "postgresql")),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}

		pingCtx, cancel := context.WithTimeout(ctx, dbPingTimeout)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}

		logger.Info("pick store ready", "driver", cfg.StoreDriver, "db_name", dbName)
		return postgres.NewPickStore(db), db.Close, nil
	case config.StoreDriverFile, "":
		store := jsonfile.NewPickStore(cfg.DataDir)
		logger.Info("pick store ready", "driver", config.StoreDriverFile, "dir", store.Dir())
		return store, nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func newJobQueue(cfg config.Config, logger *logging.Logger) usecase.JobQueue {
	if cfg.WeeklyResetDispatch != config.DispatchQStash {
		return usecase.NewNoopJobQueue()
	}

	return jobqueue.NewQStashPublisher(jobqueue.QStashPublisherConfig{
		BaseURL:          cfg.QStashBaseURL,
		Token:            cfg.QStashToken,
		TargetBaseURL:    cfg.QStashTargetBaseURL,
		Retries:          cfg.QStashRetries,
		InternalJobToken: cfg.InternalJobToken,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.QStashCircuitEnabled,
			FailureThreshold: cfg.QStashCircuitFailureCount,
			OpenTimeout:      cfg.QStashCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.QStashCircuitHalfOpenMaxReq,
		},
	}, logger.Named("jobqueue"))
}
