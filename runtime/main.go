package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/nereus-labs/nautilus-go/internal/attest"
	"github.com/nereus-labs/nautilus-go/internal/contentstore"
	"github.com/nereus-labs/nautilus-go/internal/domain"
	"github.com/nereus-labs/nautilus-go/internal/platform/auditlog"
	"github.com/nereus-labs/nautilus-go/internal/platform/httpserver"
	"github.com/nereus-labs/nautilus-go/internal/platform/objectstore"
	"github.com/nereus-labs/nautilus-go/internal/platform/postgres"
	"github.com/nereus-labs/nautilus-go/internal/registry"
	"github.com/nereus-labs/nautilus-go/internal/runtimeexec"
	"github.com/nereus-labs/nautilus-go/internal/service/execution"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := runtimeConfigFromEnv()
	if err != nil {
		logger.Error("invalid runtime config", "error", err)
		os.Exit(2)
	}
	interps, err := cfg.interpreters()
	if err != nil {
		logger.Error("invalid interpreter config", "error", err)
		os.Exit(2)
	}
	executor, err := runtimeexec.NewProcessExecutor(cfg.executorConfig(interps, logger))
	if err != nil {
		logger.Error("executor init failed", "error", err)
		os.Exit(2)
	}

	readiness := []httpserver.ReadinessCheck{
		{Name: "interpreters", Check: interpretersCheck(interps)},
	}

	storeCfg, err := contentstore.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid content store config", "error", err)
		os.Exit(2)
	}
	var blobs contentstore.BlobReader
	switch storeCfg.Backend {
	case contentstore.BackendMinio:
		objCfg, err := objectstore.ConfigFromEnv()
		if err != nil {
			logger.Error("invalid object store config", "error", err)
			os.Exit(2)
		}
		client, err := objectstore.NewMinIOClient(objCfg)
		if err != nil {
			logger.Error("object store client init failed", "error", err)
			os.Exit(2)
		}
		startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := objectstore.CheckBucket(startupCtx, client, objCfg); err != nil {
			cancel()
			logger.Error("object store unavailable", "error", err)
			os.Exit(1)
		}
		cancel()
		reader, err := contentstore.NewMinioReader(client, objCfg, storeCfg.MaxBytes)
		if err != nil {
			logger.Error("content store init failed", "error", err)
			os.Exit(2)
		}
		blobs = reader
		readiness = append(readiness, httpserver.ReadinessCheck{
			Name: "minio",
			Check: reader.Check,
		})
	default:
		reader, err := contentstore.NewWalrusReader(storeCfg, nil)
		if err != nil {
			logger.Error("content store init failed", "error", err)
			os.Exit(2)
		}
		blobs = reader
	}
	logger.Info("content store configured", "backend", storeCfg.Backend, "store", fmt.Sprint(blobs))

	signer, err := attest.NewEd25519Signer(cfg.SigningKey)
	if err != nil {
		logger.Error("invalid signing key", "error", err)
		os.Exit(2)
	}
	if signer.Ephemeral() {
		logger.Warn("RUNTIME_SIGNING_KEY not set, using an ephemeral signing key")
	}
	logger.Info("signer ready", "public_key", signer.PublicKeyHex())

	var appender execution.AuditAppender
	if cfg.AuditEnabled {
		dbCfg, err := postgres.ConfigFromEnv()
		if err != nil {
			logger.Error("invalid database config", "error", err)
			os.Exit(2)
		}
		db, err := postgres.Open(ctx, dbCfg, logger)
		if err != nil {
			logger.Error("database unavailable", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()

		schemaCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := auditlog.EnsureSchema(schemaCtx, db); err != nil {
			cancel()
			logger.Error("audit schema unavailable", "error", err)
			os.Exit(1)
		}
		cancel()

		dbAppender, err := auditlog.NewDBAppender(db)
		if err != nil {
			logger.Error("audit log init failed", "error", err)
			os.Exit(2)
		}
		appender = dbAppender
		readiness = append(readiness, httpserver.ReadinessCheck{
			Name: "postgres",
			Check: db.PingContext,
		})
	}

	svc, err := execution.New(executor, registry.New(), execution.Options{
		Blobs:  blobs,
		Signer: signer,
		Audit:  appender,
		Logger: logger,
	})
	if err != nil {
		logger.Error("execution service init failed", "error", err)
		os.Exit(2)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz(serviceName))
	mux.HandleFunc("/readyz", httpserver.Readyz(serviceName, time.Second, readiness...))

	api := newRuntimeAPI(logger, svc, signer, cfg.MaxRequestBytes)
	api.register(mux)

	srvCfg := httpserver.Config{
		Service:         serviceName,
		Addr:            cfg.Addr,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}
	if err := httpserver.Run(ctx, logger, srvCfg, httpserver.Wrap(logger, serviceName, mux)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// interpretersCheck reports the first interpreter family whose command cannot
// be resolved.
func interpretersCheck(interps runtimeexec.Interpreters) func(context.Context) error {
	return func(context.Context) error {
		for _, family := range []domain.Family{domain.FamilyNode, domain.FamilyPython} {
			interp := interps[family]
			if _, err := exec.LookPath(interp.Command); err != nil {
				return fmt.Errorf("%s interpreter %q: %w", family, interp.Command, err)
			}
		}
		return nil
	}
}
