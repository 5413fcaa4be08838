// Package container builds the process-wide components once at startup and
// hands them to the router.
package container

import (
	"context"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/staff-directory/config"
	"github.com/oksasatya/staff-directory/internal/application"
	"github.com/oksasatya/staff-directory/internal/domain/repository"
	"github.com/oksasatya/staff-directory/internal/infrastructure/cache"
	esinfra "github.com/oksasatya/staff-directory/internal/infrastructure/elasticsearch"
	"github.com/oksasatya/staff-directory/internal/infrastructure/memory"
	pginfra "github.com/oksasatya/staff-directory/internal/infrastructure/postgres"
	"github.com/oksasatya/staff-directory/pkg/helpers"
)

const pingTimeout = 3 * time.Second

type Container struct {
	Config *config.Config
	Logger *logrus.Logger

	PGPool    *pgxpool.Pool
	Redis     *redis.Client
	ES        *elasticsearch.Client
	RabbitPub *helpers.RabbitPublisher

	JWT       *helpers.JWTManager
	Hasher    *helpers.PasswordHasher
	Users     repository.UserRepository
	Directory *esinfra.DirectoryIndex
	Service   *application.Service
}

// New connects the configured backends. Only the user store is mandatory;
// Redis, Elasticsearch, and RabbitMQ degrade to disabled when unreachable,
// except that SEARCH_BACKEND=elasticsearch requires a working index.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (_ *Container, err error) {
	c := &Container{
		Config: cfg,
		Logger: logger,
		JWT:    helpers.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL),
		Hasher: helpers.NewPasswordHasher(cfg.BcryptCost),
	}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		logger.Warn("using in-memory user storage; data is lost on restart")
		c.Users = memory.NewUserRepository()
	default:
		if c.PGPool, err = pginfra.NewPool(ctx, cfg); err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		c.Users = pginfra.NewUserRepository(c.PGPool)
	}

	c.Service = application.NewService(c.Users, c.Hasher, c.JWT, logger)
	c.Service.MailEnabled = cfg.MailSendEnabled
	c.Service.CompanyName = cfg.CompanyName

	if cfg.RedisAddr != "" {
		c.Redis = helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		if perr := c.Redis.Ping(pctx).Err(); perr != nil {
			logger.WithError(perr).Warn("redis unreachable; profile cache will retry per request")
		}
		cancel()
		c.Service.Cache = cache.NewProfileCache(c.Redis, cfg.ProfileCacheTTL)
	}

	if len(cfg.ElasticsearchAddrs) > 0 {
		if ierr := c.initDirectoryIndex(ctx); ierr != nil {
			if cfg.SearchBackend == config.SearchBackendElasticsearch {
				return nil, fmt.Errorf("elasticsearch: %w", ierr)
			}
			logger.WithError(ierr).Warn("elasticsearch unavailable; directory index disabled")
		}
	}
	if c.Directory != nil {
		c.Service.Index = c.Directory
		if cfg.SearchBackend == config.SearchBackendElasticsearch {
			c.Service.Searcher = c.Directory
		}
	}

	if cfg.RabbitMQURL != "" {
		pub, perr := helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue)
		if perr != nil {
			logger.WithError(perr).Warn("rabbitmq unavailable; welcome emails disabled")
		} else {
			c.RabbitPub = pub
			c.Service.Publisher = pub
		}
	}

	return c, nil
}

func (c *Container) initDirectoryIndex(ctx context.Context) error {
	cfg := c.Config
	es, err := esinfra.NewClient(cfg.ElasticsearchAddrs, cfg.ElasticsearchUser, cfg.ElasticsearchPass)
	if err != nil {
		return err
	}
	c.ES = es
	idx := esinfra.NewDirectoryIndex(es, cfg.ESUsersIndex, c.Logger)
	if err := idx.EnsureIndex(ctx); err != nil {
		return err
	}
	c.Directory = idx
	return nil
}

// Close releases every connection opened by New.
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.RabbitPub != nil {
		c.RabbitPub.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.PGPool != nil {
		c.PGPool.Close()
	}
}
