package main

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"presale/internal/audit"
	"presale/internal/kyc/claim"
	"presale/internal/kyc/ledger"
	ledgerstore "presale/internal/kyc/ledger/store"
	kycmetrics "presale/internal/kyc/metrics"
	"presale/internal/kyc/pool"
	poolstore "presale/internal/kyc/pool/store"
	"presale/internal/platform/config"
	"presale/internal/platform/postgres"
	"presale/internal/platform/redis"
	httptransport "presale/internal/transport/http"
	"presale/internal/whitelist"
	"presale/internal/whitelist/ethrpc"
	"presale/pkg/platform/circuit"
)

// infra holds the backing services. Each one falls back to an in-process
// implementation when it is not configured.
type infra struct {
	poolStore   pool.Store
	ledgerStore ledger.Store
	claimer     claim.Claimer
	auditor     audit.Publisher
	checks      map[string]httptransport.HealthCheck
	auditWorker *audit.Worker

	db     *sql.DB
	redis  *redis.Client
	kafka  *audit.KafkaPublisher
	logger *slog.Logger
}

func openInfra(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	in := &infra{
		checks: make(map[string]httptransport.HealthCheck),
		logger: log,
	}

	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		in.db = db
		if cfg.Database.Migrate {
			if err := postgres.Migrate(db); err != nil {
				in.close(0)
				return nil, err
			}
		}
		in.poolStore = poolstore.NewPostgres(db)
		in.ledgerStore = ledgerstore.NewPostgres(db)
		in.checks["postgres"] = db.PingContext
		log.Info("using postgres stores")
	} else {
		in.poolStore = poolstore.NewInMemoryStore()
		in.ledgerStore = ledgerstore.NewInMemoryStore()
		log.Warn("DATABASE_URL not set; using in-memory stores")
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		in.close(0)
		return nil, err
	}
	if rc != nil {
		in.redis = rc
		in.claimer = claim.NewRedis(rc.Client, cfg.Server.ClaimTTL)
		in.checks["redis"] = rc.Health
	} else {
		in.claimer = claim.NewMemory(cfg.Server.ClaimTTL)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		pub, err := audit.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			in.close(0)
			return nil, err
		}
		in.kafka = pub
		if err := pub.EnsureTopic(ctx, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
			log.Warn("ensure audit topic", "topic", cfg.Kafka.Topic, "error", err)
		}
		in.auditor, in.auditWorker = audit.NewQueue(cfg.Kafka.BufferSize, pub,
			audit.WithLogger(log),
			audit.WithDrainTimeout(cfg.Server.ShutdownTimeout),
		)
	} else {
		in.auditor = audit.Discard{}
	}

	return in, nil
}

func (in *infra) close(timeout time.Duration) {
	if in.kafka != nil {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		in.kafka.Close(ctx)
	}
	if in.redis != nil {
		if err := in.redis.Close(); err != nil {
			in.logger.Warn("close redis", "error", err)
		}
	}
	if in.db != nil {
		if err := in.db.Close(); err != nil {
			in.logger.Warn("close postgres", "error", err)
		}
	}
}

// chain is the sale contract connection. The engine and the public
// registration route get separately guarded clients so that registration
// traffic cannot open the breaker the callback path depends on.
type chain struct {
	whitelist  whitelist.Client
	allotment  whitelist.Client
	configured bool
	close      func()
}

func openWhitelist(ctx context.Context, cfg config.Whitelist, m *kycmetrics.Metrics, log *slog.Logger) (*chain, error) {
	if cfg.RPCURL == "" {
		log.Warn("WHITELIST_RPC_URL not set; whitelist transactions will fail")
		return &chain{
			whitelist: whitelist.Unavailable{},
			allotment: whitelist.Unavailable{},
			close:     func() {},
		}, nil
	}

	rpc, err := ethrpc.Dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	guarded := func(name string) whitelist.Client {
		breaker := circuit.New(name,
			circuit.WithFailureThreshold(cfg.FailureThreshold),
			circuit.WithSuccessThreshold(cfg.SuccessThreshold),
		)
		return whitelist.NewGuarded(rpc, cfg.Timeout, log,
			whitelist.WithBreaker(breaker),
			whitelist.WithMetrics(m),
		)
	}
	return &chain{
		whitelist:  guarded("whitelist"),
		allotment:  guarded("allotment"),
		configured: true,
		close:      rpc.Close,
	}, nil
}
