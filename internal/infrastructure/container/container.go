package container

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/config"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/delivery/http"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/delivery/http/handler"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/delivery/http/middleware"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/delivery/socket"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/infrastructure/database"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/infrastructure/gemini"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/infrastructure/server"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/notify"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/presence"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/repository"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/repository/memory"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/repository/postgres"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/usecase/auth"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/usecase/chat"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/usecase/lifecycle"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/usecase/matching"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/usecase/wingman"
	"github.com/jmoiron/sqlx"
	"github.com/mama165/sdk-go/logs"
	"github.com/redis/go-redis/v9"
)

// Container holds all application dependencies
type Container struct {
	Config   *config.Config
	Log      *slog.Logger
	DB       *sqlx.DB
	Redis    *redis.Client
	Server   *server.Server
	Socket   *socket.Server
	Gemini   *gemini.GeminiClient
	Matching *matching.MatchingUseCase
	Wingman  *wingman.WingmanUseCase

	cancel context.CancelFunc
}

type repositories struct {
	tx       repository.TxManager
	users    repository.UserRepository
	matches  repository.MatchRepository
	waitlist repository.WaitlistRepository
	messages repository.MessageRepository
}

// NewContainer creates a new dependency injection container
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	log := logs.GetLoggerFromString(strings.ToUpper(cfg.Logging.Level))
	bg, cancel := context.WithCancel(context.Background())
	c := &Container{Config: cfg, Log: log, cancel: cancel}

	repos, err := c.initStorage(ctx)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	registry := presence.NewRegistry()
	local := notify.NewLocal(registry, log)
	var notifier notify.Notifier = local

	if cfg.Redis.Enabled {
		c.Redis, err = database.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		fanout := notify.NewFanout(c.Redis, local, cfg.Redis.Channel, log)
		go runFanout(bg, fanout, log)
		notifier = fanout
	}

	// Initialize use cases
	c.Matching = matching.NewMatchingUseCase(
		repos.tx,
		repos.waitlist,
		repos.matches,
		registry,
		notifier,
		matching.Config{Roles: cfg.Match.Roles(), QueueTimeout: cfg.Match.QueueTimeout},
		log,
	)

	lifecycleUseCase := lifecycle.NewLifecycleUseCase(
		repos.tx,
		repos.matches,
		repos.users,
		c.Matching,
		registry,
		notifier,
		log,
	)

	chatUseCase := chat.NewChatUseCase(
		repos.messages,
		lifecycleUseCase,
		notifier,
		cfg.Match.HistoryLimit,
		log,
	)

	if cfg.GeminiAPIKey != "" {
		c.Gemini, err = gemini.NewGeminiClient(ctx, cfg.GeminiAPIKey, gemini.DefaultModel)
		if err != nil {
			// Matching works without icebreakers.
			log.Warn("Failed to initialize Gemini client", "error", err)
		} else {
			c.Wingman = wingman.NewWingmanUseCase(repos.users, c.Gemini, notifier, log)
			c.Matching.OnMatched(c.Wingman.OnMatched)
		}
	}

	tokens := auth.NewTokenService(cfg.JWT.AccessSecret)

	// Initialize socket server
	socketHandler := socket.NewHandler(tokens, c.Matching, lifecycleUseCase, chatUseCase, registry, log)
	c.Socket = socket.NewServer(socketHandler, cfg.CORS.AllowedOrigins, log)
	go c.Socket.Serve()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(repos.users, log)
	matchHandler := handler.NewMatchHandler(c.Matching, lifecycleUseCase, chatUseCase, log)
	authMiddleware := middleware.NewAuthMiddleware(tokens)

	router := http.NewRouter(authHandler, matchHandler, authMiddleware, c.Socket, log)
	c.Server = server.NewServer(&cfg.Server, &cfg.CORS, router.Setup(), log)

	go c.Matching.Expiry().RunSweeper(bg, cfg.Match.SweepInterval)

	return c, nil
}

const fanoutRetryInterval = 5 * time.Second

// runFanout keeps the subscription alive. While it is down the fan-out
// delivers to local connections only.
func runFanout(ctx context.Context, fanout *notify.Fanout, log *slog.Logger) {
	for {
		err := fanout.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Error("Notification fan-out stopped, retrying", "error", err, "retry_in", fanoutRetryInterval)
		select {
		case <-ctx.Done():
			return
		case <-time.After(fanoutRetryInterval):
		}
	}
}

func (c *Container) initStorage(ctx context.Context) (repositories, error) {
	if c.Config.Storage.Type == config.StorageMemory {
		c.Log.Warn("Using in-memory storage, state is lost on restart")
		store := memory.NewStore()
		return repositories{
			tx:       store.TxManager(),
			users:    store.Users(),
			matches:  store.Matches(),
			waitlist: store.Waitlist(),
			messages: store.Messages(),
		}, nil
	}

	db, err := database.NewPostgresDB(ctx, &c.Config.Database)
	if err != nil {
		return repositories{}, fmt.Errorf("failed to initialize database: %w", err)
	}
	c.DB = db

	if err := database.Migrate(ctx, db); err != nil {
		return repositories{}, err
	}

	return repositories{
		tx:       postgres.NewTxManager(db),
		users:    postgres.NewUserRepository(db),
		matches:  postgres.NewMatchRepository(db),
		waitlist: postgres.NewWaitlistRepository(db),
		messages: postgres.NewMessageRepository(db),
	}, nil
}

// Close closes all connections
func (c *Container) Close() error {
	c.cancel()

	if c.Matching != nil {
		c.Matching.Expiry().Stop()
	}

	if c.Wingman != nil {
		c.Wingman.Wait()
	}

	if c.Socket != nil {
		if err := c.Socket.Close(); err != nil {
			c.Log.Error("Error closing socket server", "error", err)
		}
	}

	if c.Gemini != nil {
		if err := c.Gemini.Close(); err != nil {
			c.Log.Error("Error closing Gemini client", "error", err)
		}
	}

	// Close Redis
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Log.Error("Error closing Redis", "error", err)
		}
	}

	// Close database
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}

	return nil
}
