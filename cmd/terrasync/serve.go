package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"terrasync/internal/audit"
	"terrasync/internal/commit"
	"terrasync/internal/conflict"
	"terrasync/internal/container"
	"terrasync/internal/dedupe"
	"terrasync/internal/devicesync"
	"terrasync/internal/ingest"
	"terrasync/internal/intake"
	"terrasync/internal/jwttoken"
	"terrasync/internal/platform/config"
	"terrasync/internal/platform/httpserver"
	"terrasync/internal/platform/logger"
	"terrasync/internal/platform/metrics"
	"terrasync/internal/platform/postgres"
	"terrasync/internal/platform/redis"
	"terrasync/internal/production"
	"terrasync/internal/sequence"
	"terrasync/internal/staging"
	httptransport "terrasync/internal/transport/http"
	"terrasync/internal/validation"
	"terrasync/internal/vocabulary"
)

const (
	tokenIssuer   = "terrasync"
	tokenAudience = "terrasync-sync"

	requestTimeout  = 60 * time.Second
	shutdownTimeout = 10 * time.Second
	outboxInterval  = 2 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the import core server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

// stores is the persistence set behind the services. Postgres in
// production; in-memory when no DSN is configured (local development).
type stores struct {
	packages   ingest.Store
	staging    staging.Store
	conflicts  conflict.Store
	sessions   devicesync.SessionStore
	vocabs     vocabulary.Store
	audit      audit.Store
	seq        sequence.Sequence
	production interface {
		production.EntityReader
		production.AssignmentStore
	}
	commit commit.Store
}

func serve(parent context.Context) error {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}
	rules, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		return err
	}
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, cleanup, err := buildStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	var cache *vocabulary.SnapshotCache
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		cache = vocabulary.NewSnapshotCache(redisClient, cfg.Redis.SnapshotTTL)
	}

	svcs, err := buildServices(cfg, rules, st, cache, m, log)
	if err != nil {
		return err
	}
	syncSvc := devicesync.NewService(st.sessions, st.production, svcs.vocabs,
		svcs.importer, m, svcs.auditor, log)

	jwtSvc := jwttoken.NewJWTService(cfg.JWTSigningKey, tokenIssuer, tokenAudience)
	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		Metrics:        m,
		TokenValidator: jwtSvc,
		RequestTimeout: requestTimeout,
		Packages:       ingest.NewHandler(svcs.importer, log),
		Conflicts:      conflict.NewHandler(svcs.conflicts, log),
		Vocabularies:   vocabulary.NewHandler(svcs.vocabs, log),
		Sync:           devicesync.NewHandler(syncSvc, log),
	})
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("terrasync listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if len(cfg.Kafka.Brokers) > 0 {
		client, err := kgo.NewClient(kgo.SeedBrokers(cfg.Kafka.Brokers...))
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer client.Close()
		worker := audit.NewWorker(st.audit, client, cfg.Kafka.Topic, outboxInterval, log)
		if err := worker.EnsureTopic(ctx); err != nil {
			return err
		}
		g.Go(func() error {
			if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("audit worker: %w", err)
			}
			return nil
		})
	}

	if cfg.SpoolDir != "" {
		watcher := intake.NewWatcher(cfg.SpoolDir, svcs.importer, log)
		g.Go(func() error {
			if err := watcher.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("intake watcher: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// buildStores picks Postgres or the in-memory set. The memory set shares
// one production registry so committed records are immediately visible to
// duplicate detection and assignment downloads.
func buildStores(ctx context.Context, cfg config.Server) (*stores, func(), error) {
	if cfg.PostgresDSN == "" {
		registry := production.NewInMemoryStore()
		return &stores{
			packages:   ingest.NewInMemoryStore(),
			staging:    staging.NewInMemoryStore(),
			conflicts:  conflict.NewInMemoryStore(),
			sessions:   devicesync.NewInMemorySessionStore(),
			vocabs:     vocabulary.NewInMemoryStore(),
			audit:      audit.NewInMemoryStore(),
			seq:        sequence.NewInMemory(),
			production: registry,
			commit:     commit.NewInMemoryStore(registry),
		}, func() {}, nil
	}

	db, err := postgres.Open(cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	pool, err := postgres.OpenPool(ctx, cfg.PostgresDSN)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	cleanup := func() {
		pool.Close()
		db.Close()
	}
	return &stores{
		packages:   ingest.NewPostgresStore(db),
		staging:    staging.NewPostgresStore(db),
		conflicts:  conflict.NewPostgresStore(db),
		sessions:   devicesync.NewPostgresSessionStore(db),
		vocabs:     vocabulary.NewPostgresStore(db),
		audit:      audit.NewPostgresStore(db),
		seq:        sequence.NewPostgres(db),
		production: production.NewPostgresStore(db),
		commit:     commit.NewPostgresStore(pool),
	}, cleanup, nil
}

// services is the wired import core shared by serve and the one-shot
// import command.
type services struct {
	importer  *ingest.Service
	conflicts *conflict.Service
	vocabs    *vocabulary.Service
	auditor   *audit.Publisher
}

func buildServices(cfg config.Server, rules config.Rules, st *stores,
	cache *vocabulary.SnapshotCache, m *metrics.Metrics, log *slog.Logger) (*services, error) {
	codec, err := container.NewCodec(rules.SchemaVersions)
	if err != nil {
		return nil, fmt.Errorf("compile container schemas: %w", err)
	}
	signingKey, err := parseSigningKey(cfg.SigningKeyHex)
	if err != nil {
		return nil, err
	}

	auditor := audit.NewPublisher(st.audit, log)
	vocabSvc := vocabulary.NewService(st.vocabs, cache, log)
	pipeline := validation.NewPipeline(st.staging, m, log,
		validation.DefaultChain(rules, vocabSvc, log)...)
	conflictSvc := conflict.NewService(st.conflicts, st.seq, rules.Conflict, m, auditor, log)
	detector := dedupe.NewEngine(st.staging, st.production, conflictSvc, rules.Dedupe, log)
	committer := commit.NewEngine(st.staging, st.commit, m, log)
	ingestSvc := ingest.NewService(st.packages, st.staging, staging.NewLoader(st.staging),
		codec, ingest.NewVerifier(codec, signingKey), vocabSvc, pipeline, detector,
		committer, st.seq, m, auditor, log)
	conflictSvc.SetPackageAdvancer(ingestSvc)

	return &services{
		importer:  ingestSvc,
		conflicts: conflictSvc,
		vocabs:    vocabSvc,
		auditor:   auditor,
	}, nil
}

func parseSigningKey(hexKey string) (ed25519.PublicKey, error) {
	if hexKey == "" {
		return nil, nil
	}
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode package signing key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("package signing key must be %d bytes, got %d",
			ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}
