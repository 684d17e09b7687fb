package initialization

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/devblin/infisical/internal/config"
	"github.com/devblin/infisical/internal/controllers"
	"github.com/devblin/infisical/internal/managers"
	"github.com/devblin/infisical/internal/observability"
	"github.com/devblin/infisical/internal/version"
	"github.com/devblin/infisical/pkg/clients/infisical"
	"github.com/devblin/infisical/pkg/domain"
	"github.com/devblin/infisical/pkg/integrations/refresh"
	"github.com/devblin/infisical/pkg/query"
	queryinmemory "github.com/devblin/infisical/pkg/query/inmemory"
	queryredis "github.com/devblin/infisical/pkg/query/redis"
	"github.com/devblin/infisical/pkg/secrets"
	storageinmemory "github.com/devblin/infisical/pkg/storage/inmemory"
	storagemongodb "github.com/devblin/infisical/pkg/storage/mongodb"
	storagepostgresql "github.com/devblin/infisical/pkg/storage/postgresql"

	"github.com/rs/zerolog/log"
)

const reporterFlushTimeout = 2 * time.Second

type IntegrationDependencies struct {
	AuthManager               domain.IntegrationAuthManager
	Exchanger                 *refresh.Exchanger
	AccessManager             domain.IntegrationAccessManager
	RefreshScheduler          *managers.RefreshScheduler
	IntegrationAuthController *controllers.IntegrationAuthController
}

type SecretsDependencies struct {
	InfisicalClient *infisical.Client
	QueryClient     *query.Client
	SecretsService  *secrets.Service
}

// Container builds the object graph for one process from its config.
type Container struct {
	config   *config.Config
	reporter domain.ErrorReporter
	closers  []func(ctx context.Context) error
}

func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config: cfg,
		reporter: observability.NewErrorReporter(observability.SentryReporterOptions{
			DSN:         cfg.SentryDSN,
			Environment: cfg.Environment,
		}),
	}
}

func (c *Container) GetConfig() *config.Config {
	return c.config
}

func (c *Container) GetErrorReporter() domain.ErrorReporter {
	return c.reporter
}

func (c *Container) BuildIntegrationDependencies(ctx context.Context) (*IntegrationDependencies, error) {
	log.Info().Str("store_driver", c.config.StoreDriver).Msg("Building integration dependencies")

	if err := c.config.RequireIntegrationAuths(); err != nil {
		return nil, err
	}

	store, err := c.newIntegrationAuthStore(ctx)
	if err != nil {
		return nil, err
	}

	authManager, err := managers.NewIntegrationAuthManager(managers.IntegrationAuthManagerDependencies{
		Store:         store,
		EncryptionKey: c.config.RootEncryptionKey,
	})
	if err != nil {
		return nil, err
	}

	exchanger := refresh.NewExchanger(refresh.ExchangerDependencies{
		Setter:    authManager,
		Reporter:  c.reporter,
		Providers: refresh.DefaultProviders(c.clientCredentials(), c.tokenURLs()),
	})

	accessManager := managers.NewIntegrationAccessManager(managers.IntegrationAccessManagerDependencies{
		AuthManager: authManager,
		Exchanger:   exchanger,
	})

	refreshScheduler, err := managers.NewRefreshScheduler(managers.RefreshSchedulerDependencies{
		AuthManager:   authManager,
		AccessManager: accessManager,
		Schedule:      c.config.RefreshSchedule,
		Window:        c.config.RefreshWindow,
		Supports:      exchanger.Supports,
	})
	if err != nil {
		return nil, err
	}

	integrationAuthController := controllers.NewIntegrationAuthController(controllers.IntegrationAuthControllerDependencies{
		AccessManager: accessManager,
	})

	log.Info().Msg("Integration dependencies built successfully")

	return &IntegrationDependencies{
		AuthManager:               authManager,
		Exchanger:                 exchanger,
		AccessManager:             accessManager,
		RefreshScheduler:          refreshScheduler,
		IntegrationAuthController: integrationAuthController,
	}, nil
}

func (c *Container) BuildSecretsDependencies(ctx context.Context) (*SecretsDependencies, error) {
	log.Debug().Str("cache_driver", c.config.CacheDriver).Msg("Building secrets dependencies")

	if err := c.config.RequireSecretsAPI(); err != nil {
		return nil, err
	}

	store, err := c.newQueryStore(ctx)
	if err != nil {
		return nil, err
	}

	queryClient := query.NewClient(query.ClientConfig{
		Store:     store,
		StaleTime: c.config.QueryStaleTime,
		CacheTime: c.config.QueryCacheTime,
	})

	infisicalClient := infisical.NewClient(
		infisical.WithBaseURL(c.config.APIBaseURL),
		infisical.WithToken(c.config.APIToken),
		infisical.WithUserAgent("infisical-cli/"+version.GetShortVersion()),
	)

	secretsService := secrets.NewService(secrets.ServiceDependencies{
		API:         infisicalClient,
		Query:       queryClient,
		PrivateKeys: secrets.StaticPrivateKey(c.config.PrivateKey),
	})

	return &SecretsDependencies{
		InfisicalClient: infisicalClient,
		QueryClient:     queryClient,
		SecretsService:  secretsService,
	}, nil
}

// Close releases connections opened by the build methods, newest first.
func (c *Container) Close(ctx context.Context) error {
	var errs []error

	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil

	if flusher, ok := c.reporter.(interface{ Flush(time.Duration) bool }); ok {
		flusher.Flush(reporterFlushTimeout)
	}

	return errors.Join(errs...)
}

func (c *Container) newIntegrationAuthStore(ctx context.Context) (domain.IntegrationAuthStore, error) {
	switch c.config.StoreDriver {
	case config.StoreDriverMongoDB:
		store, client, err := storagemongodb.Connect(ctx, storagemongodb.Opts{
			URI:      c.config.MongoURI,
			Database: c.config.MongoDatabase,
		})
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, client.Disconnect)
		return store, nil

	case config.StoreDriverPostgreSQL:
		store, err := storagepostgresql.New(ctx, storagepostgresql.Opts{
			URI: c.config.PostgresURI,
		})
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func(context.Context) error {
			store.Close()
			return nil
		})
		return store, nil

	case config.StoreDriverMemory:
		log.Warn().Msg("Using in-memory integration auth store, records are lost on exit")
		return storageinmemory.New(), nil
	}

	return nil, fmt.Errorf("unsupported store driver %q", c.config.StoreDriver)
}

func (c *Container) newQueryStore(ctx context.Context) (query.Store, error) {
	switch c.config.CacheDriver {
	case config.CacheDriverRedis:
		store, err := queryredis.New(ctx, queryredis.Opts{
			Addr:     c.config.RedisAddr,
			Username: c.config.RedisUsername,
			Password: c.config.RedisPassword,
			DB:       c.config.RedisDB,
			TLS:      c.config.RedisTLS,
		})
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func(context.Context) error {
			return store.Close()
		})
		return store, nil

	case config.CacheDriverMemory:
		return queryinmemory.New(), nil
	}

	return nil, fmt.Errorf("unsupported cache driver %q", c.config.CacheDriver)
}

func (c *Container) clientCredentials() refresh.ClientCredentials {
	return refresh.ClientCredentials{
		SiteURL:            c.config.SiteURL,
		AzureClientID:      c.config.ClientIDAzure,
		AzureClientSecret:  c.config.ClientSecretAzure,
		HerokuClientSecret: c.config.ClientSecretHeroku,
		GitLabClientID:     c.config.ClientIDGitLab,
		GitLabClientSecret: c.config.ClientSecretGitLab,
		GCPClientID:        c.config.ClientIDGCPSecretManager,
		GCPClientSecret:    c.config.ClientSecretGCPSecretManager,
	}
}

func (c *Container) tokenURLs() refresh.TokenURLs {
	return refresh.TokenURLs{
		Azure:  c.config.AzureTokenURL,
		Heroku: c.config.HerokuTokenURL,
		GitLab: c.config.GitLabTokenURL,
		GCP:    c.config.GCPTokenURL,
	}
}
