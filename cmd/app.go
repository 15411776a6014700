package main

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadfinder/internal/config"
	"github.com/sells-group/leadfinder/internal/cost"
	"github.com/sells-group/leadfinder/internal/credit"
	"github.com/sells-group/leadfinder/internal/db"
	"github.com/sells-group/leadfinder/internal/discovery"
	"github.com/sells-group/leadfinder/internal/enrich"
	"github.com/sells-group/leadfinder/internal/inference"
	"github.com/sells-group/leadfinder/internal/leadfinder"
	"github.com/sells-group/leadfinder/internal/resilience"
	"github.com/sells-group/leadfinder/pkg/apify"
	"github.com/sells-group/leadfinder/pkg/google"
	"github.com/sells-group/leadfinder/pkg/zerobounce"
)

// appEnv holds the initialized ledger, providers, and orchestrator used by
// every command. Callers should defer env.Close().
type appEnv struct {
	Orchestrator *enrich.Orchestrator
	Ledger       *credit.Ledger
	Store        *ledgerStore
	Engine       *inference.Engine // nil without a zerobounce key
	Discovery    *discovery.Service
	Apify        *discovery.ApifyProvider // nil without an apify token
	Finder       *leadfinder.Finder
	Calc         *cost.Calculator
	Breakers     *resilience.Breakers
}

// Close releases resources held by the environment.
func (a *appEnv) Close() {
	if a.Store != nil {
		a.Store.Close()
	}
}

// ledgerStore pairs the credit store the config selected with its
// lifecycle hooks. Hooks are nil when the driver has no such step. Hand
// the embedded Store, not the wrapper, to the ledger so atomic stores
// keep their atomic path.
type ledgerStore struct {
	credit.Store
	migrate func(context.Context) error
	ping    func(context.Context) error
	close   func()
}

// Migrate creates the credit table when the backend needs one.
func (s *ledgerStore) Migrate(ctx context.Context) error {
	if s.migrate == nil {
		return nil
	}
	return s.migrate(ctx)
}

// Ping checks the backend is reachable.
func (s *ledgerStore) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Close releases the backend connection.
func (s *ledgerStore) Close() {
	if s.close != nil {
		s.close()
	}
}

// initStore opens the credit store named by sc.Driver.
func initStore(ctx context.Context, sc config.StoreConfig) (*ledgerStore, error) {
	switch sc.Driver {
	case "memory":
		return &ledgerStore{Store: credit.NewMemoryStore()}, nil

	case "sqlite":
		st, err := credit.NewSQLite(sc.SQLitePath)
		if err != nil {
			return nil, eris.Wrap(err, "init sqlite store")
		}
		return &ledgerStore{
			Store:   st,
			migrate: st.Migrate,
			ping:    st.Ping,
			close:   func() { _ = st.Close() },
		}, nil

	case "postgres":
		pool, err := db.Open(ctx, sc.DatabaseURL, db.PoolConfig{MaxConns: sc.MaxConns, MinConns: sc.MinConns})
		if err != nil {
			return nil, eris.Wrap(err, "init postgres store")
		}
		st := credit.NewPostgres(pool)
		return &ledgerStore{
			Store:   st,
			migrate: st.Migrate,
			ping:    st.Ping,
			close:   pool.Close,
		}, nil

	case "redis":
		opts, err := redis.ParseURL(sc.RedisURL)
		if err != nil {
			return nil, eris.Wrap(err, "init redis store: parse url")
		}
		client := redis.NewClient(opts)
		st := credit.NewRedis(client)
		if err := st.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, eris.Wrap(err, "init redis store")
		}
		return &ledgerStore{
			Store: st,
			ping:  st.Ping,
			close: func() { _ = client.Close() },
		}, nil

	default:
		return nil, eris.Errorf("unknown store driver %q", sc.Driver)
	}
}

// initApp builds the environment from the global config.
func initApp(ctx context.Context) (*appEnv, error) {
	return buildApp(ctx, cfg)
}

// buildApp opens the store and wires every provider that has credentials.
// Providers without credentials are left out; the orchestrator rejects
// options that need them.
func buildApp(ctx context.Context, c *config.Config) (*appEnv, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx, c.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	env := &appEnv{
		Store:    st,
		Ledger:   credit.NewLedger(st.Store, c.Credits.DefaultGrant),
		Calc:     cost.NewCalculator(c.Pricing),
		Breakers: resilience.NewBreakers(c.Breaker.Resilience()),
	}

	opts := []enrich.Option{
		enrich.WithLedger(env.Ledger),
		enrich.WithCalculator(env.Calc),
		enrich.WithHealthCheck("store", st.Ping),
	}

	if c.Apify.Token != "" {
		client := apify.NewClient(c.Apify.Token, apify.WithBaseURL(c.Apify.BaseURL))
		env.Apify = discovery.NewApifyProvider(client, c.Apify.ActorID)
		env.Discovery = discovery.NewService(
			env.Apify,
			discovery.WithRetry(c.Retry.Resilience()),
			discovery.WithPollInterval(c.Apify.PollInterval()),
			discovery.WithTimeout(c.Apify.Timeout()),
			discovery.WithCalculator(env.Calc),
		)
		opts = append(opts,
			enrich.WithDiscoverer(env.Discovery),
			enrich.WithHealthCheck("apify", func(ctx context.Context) error {
				_, err := env.Apify.Usage(ctx)
				return err
			}),
			enrich.WithUsage("apify", func(ctx context.Context) (any, error) {
				return env.Apify.Usage(ctx)
			}),
		)
	}

	if c.ZeroBounce.APIKey != "" {
		icfg := inference.DefaultConfig()
		if c.ZeroBounce.InferenceConfig != "" {
			loaded, err := inference.LoadConfig(c.ZeroBounce.InferenceConfig)
			if err != nil {
				st.Close()
				return nil, err
			}
			icfg = *loaded
		}
		zb := inference.NewZeroBounce(zerobounce.NewClient(c.ZeroBounce.APIKey, zerobounce.WithBaseURL(c.ZeroBounce.BaseURL)))
		zb.IPAddress = c.ZeroBounce.IPAddress
		env.Engine = inference.NewEngine(zb, zb,
			inference.WithConfig(icfg),
			inference.WithBreakers(env.Breakers),
		)
		opts = append(opts,
			enrich.WithEmailFinder(env.Engine),
			enrich.WithBulkValidator(env.Engine),
			enrich.WithHealthCheck("zerobounce", func(ctx context.Context) error {
				_, err := env.Engine.Credits(ctx)
				return err
			}),
			enrich.WithUsage("zerobounce", func(ctx context.Context) (any, error) {
				n, err := env.Engine.Credits(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]int{"credits": n}, nil
			}),
		)
	}

	if c.Google.APIKey != "" {
		client := google.NewClient(c.Google.APIKey, google.WithBaseURL(c.Google.BaseURL))
		env.Finder = leadfinder.NewFinder(leadfinder.NewPlacesProvider(client))
		opts = append(opts, enrich.WithLeadSearcher(env.Finder))
	}

	env.Orchestrator = enrich.New(opts...)

	zap.L().Debug("app: initialized",
		zap.String("store", c.Store.Driver),
		zap.Bool("discovery", env.Discovery != nil),
		zap.Bool("inference", env.Engine != nil),
		zap.Bool("search", env.Finder != nil),
	)
	return env, nil
}
