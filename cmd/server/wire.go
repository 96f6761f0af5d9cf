package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"certvault/internal/certificate/contentstore"
	"certvault/internal/certificate/gateway"
	"certvault/internal/certificate/ledger"
	"certvault/internal/certificate/ledger/ethereum"
	"certvault/internal/certificate/metrics"
	"certvault/internal/certificate/mirror"
	"certvault/internal/certificate/service"
	jwttoken "certvault/internal/jwt_token"
	"certvault/internal/platform/config"
	"certvault/internal/platform/kafka"
	httpmetrics "certvault/internal/platform/metrics"
	"certvault/internal/platform/postgres"
	redisclient "certvault/internal/platform/redis"
	audit "certvault/pkg/platform/audit"
	"certvault/pkg/platform/audit/publisher"
	auditkafka "certvault/pkg/platform/audit/publishers/kafka"
	auditmemory "certvault/pkg/platform/audit/store/memory"
	auditpostgres "certvault/pkg/platform/audit/store/postgres"
	"certvault/pkg/platform/audit/worker"
)

type healthCheck struct {
	name  string
	check func(context.Context) error
}

// app holds everything main wires together.
type app struct {
	cfg      config.Server
	logger   *slog.Logger
	registry *prometheus.Registry
	http     *httpmetrics.HTTP

	service   *service.Service
	tokens    *jwttoken.JWTService
	content   http.Handler
	mirror    *mirror.Writer
	relay     *worker.Relay
	publisher *publisher.Publisher

	health  []healthCheck
	closers []func()
}

func build(ctx context.Context, cfg config.Server, logger *slog.Logger) (_ *app, err error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		tokens:   jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.TokenIssuer, cfg.TokenAudience),
	}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.http = httpmetrics.NewHTTP(a.registry)
	m := metrics.New(a.registry)

	auditStore, err := a.buildAudit(ctx)
	if err != nil {
		return nil, err
	}
	a.publisher = publisher.NewPublisher(auditStore,
		publisher.WithAsyncBuffer(cfg.Audit.AsyncBuffer),
		publisher.WithLogger(logger),
	)
	a.closers = append(a.closers, a.publisher.Close)

	ledgerClient, err := a.buildLedger(ctx)
	if err != nil {
		return nil, err
	}
	store, gateways, err := a.buildContentStore()
	if err != nil {
		return nil, err
	}
	resolver, err := gateway.New(gateways,
		gateway.WithTimeout(cfg.Gateways.Timeout),
		gateway.WithMaxBodyBytes(cfg.Gateways.MaxBodyBytes),
		gateway.WithLogger(logger),
		gateway.WithMetrics(m),
	)
	if err != nil {
		return nil, fmt.Errorf("build gateway resolver: %w", err)
	}

	opts := []service.Option{
		service.WithAuditor(a.publisher),
		service.WithMetrics(m),
		service.WithLogger(logger),
		service.WithCallTimeout(cfg.CallTimeout),
	}
	mirrorStore, err := a.buildMirrorStore(ctx)
	if err != nil {
		return nil, err
	}
	if mirrorStore != nil {
		a.mirror = mirror.NewWriter(mirrorStore,
			mirror.WithQueueSize(cfg.Mirror.QueueSize),
			mirror.WithWorkers(cfg.Mirror.Workers),
			mirror.WithWriteTimeout(cfg.Mirror.WriteTimeout),
			mirror.WithLogger(logger),
			mirror.WithMetrics(m),
			mirror.WithFailureHook(service.MirrorFailureHook(a.publisher)),
		)
		opts = append(opts, service.WithMirror(a.mirror))
	}

	a.service, err = service.New(ledgerClient, store, resolver, opts...)
	if err != nil {
		return nil, fmt.Errorf("build certificate service: %w", err)
	}
	return a, nil
}

func (a *app) buildAudit(ctx context.Context) (audit.Store, error) {
	if !a.cfg.Audit.Outbox {
		return auditmemory.NewInMemoryStore(), nil
	}
	pool, err := postgres.NewPool(ctx, a.cfg.Postgres.DSN)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pool.Close)
	outbox := auditpostgres.New(pool)
	if err := outbox.Migrate(ctx); err != nil {
		return nil, err
	}

	client, err := kafka.New(ctx, a.cfg.Audit.KafkaBrokers)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	sink := auditkafka.NewSink(client, auditkafka.WithTopicPrefix(a.cfg.Audit.TopicPrefix))
	if err := sink.EnsureTopics(ctx, client.Admin, 1, 1); err != nil {
		return nil, err
	}
	a.relay = worker.NewRelay(outbox, sink,
		worker.WithInterval(a.cfg.Audit.RelayInterval),
		worker.WithLogger(a.logger),
	)
	a.health = append(a.health, healthCheck{name: "audit_outbox", check: pool.Ping})
	return outbox, nil
}

func (a *app) buildLedger(ctx context.Context) (service.Ledger, error) {
	cfg := a.cfg.Ledger
	if cfg.Backend == config.BackendMemory {
		a.logger.Warn("using in-memory ledger; records are lost on restart")
		return ledger.NewInMemoryLedger(), nil
	}

	backend, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial ethereum rpc: %w", err)
	}
	a.closers = append(a.closers, backend.Close)

	var opts []ethereum.Option
	if cfg.SignerKey != "" {
		key, err := ethereum.ParseSigningKey(cfg.SignerKey)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ethereum.WithSigner(key, big.NewInt(cfg.ChainID)))
	}
	opts = append(opts, ethereum.WithLogger(a.logger))
	client, err := ethereum.New(backend, cfg.ContractAddress, opts...)
	if err != nil {
		return nil, err
	}
	a.health = append(a.health, healthCheck{name: "ledger", check: client.Health})
	return client, nil
}

// buildContentStore returns the store issue writes to and the gateway list
// verification reads from. The in-memory store is served by this process
// under /ipfs so the default gateway is the server itself.
func (a *app) buildContentStore() (service.ContentStore, []string, error) {
	gateways := a.cfg.Gateways.URLs
	if a.cfg.Content.Backend == config.BackendMemory {
		store := contentstore.NewInMemoryStore()
		a.content = store
		if len(gateways) == 0 {
			gateways = []string{selfGateway(a.cfg.Addr)}
		}
		return store, gateways, nil
	}

	var opts []contentstore.PinataOption
	if a.cfg.Content.PinataURL != "" {
		opts = append(opts, contentstore.WithPinataURL(a.cfg.Content.PinataURL))
	}
	opts = append(opts, contentstore.WithPinataLogger(a.logger))
	store, err := contentstore.NewPinataStore(a.cfg.Content.PinataKey, a.cfg.Content.PinataSecret, opts...)
	if err != nil {
		return nil, nil, err
	}
	if len(gateways) == 0 {
		gateways = gateway.DefaultGateways
	}
	a.health = append(a.health, healthCheck{name: "content_store", check: store.Health})
	return store, gateways, nil
}

func (a *app) buildMirrorStore(ctx context.Context) (mirror.Store, error) {
	switch a.cfg.Mirror.Backend {
	case config.BackendMemory:
		return mirror.NewInMemoryStore(), nil
	case config.BackendPostgres:
		db, err := postgres.Open(ctx, a.cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		store := mirror.NewPostgresStore(db)
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		a.health = append(a.health, healthCheck{name: "mirror", check: db.PingContext})
		return store, nil
	case config.BackendRedis:
		client, err := redisclient.New(ctx, a.cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		a.health = append(a.health, healthCheck{name: "mirror", check: client.Health})
		return mirror.NewRedisStore(client.Client, a.cfg.Mirror.RedisTTL), nil
	default:
		return nil, nil
	}
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func selfGateway(addr string) string {
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "127.0.0.1" + host
	}
	return "http://" + host + "/ipfs"
}
