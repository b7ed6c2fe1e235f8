package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"

	"github.com/casevault/citeline/internal/adapters/cache"
	"github.com/casevault/citeline/internal/adapters/database"
	"github.com/casevault/citeline/internal/application/services"
	"github.com/casevault/citeline/internal/domain/entities"
	"github.com/casevault/citeline/internal/infrastructure/clients/postgres"
	redisclient "github.com/casevault/citeline/internal/infrastructure/clients/redis"
	"github.com/casevault/citeline/internal/infrastructure/observability"
	"github.com/casevault/citeline/pkg/config"
)

func main() {
	bundlePath := flag.String("bundle", "-", "path to the case bundle JSON, or - for stdin")
	includeAudit := flag.Bool("audit", false, "include selection audits and skip records in the output")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	observability.InitLogger(cfg.App.ServiceName, cfg.App.Environment)
	logger := observability.GetLogger()
	ctx := context.Background()

	if cfg.OTEL.Enabled {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to set up tracing, continuing without it")
		} else {
			defer shutdown(ctx)
		}
	}

	bundle, err := readBundle(*bundlePath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *bundlePath).Msg("failed to read case bundle")
	}

	var projectionCache *services.ProjectionCache
	if cfg.Redis.Enabled {
		rc, err := redisclient.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, building without cache")
		} else {
			defer rc.Close()
			projectionCache = services.NewProjectionCache(cache.NewRedisAdapter(rc), *logger)
		}
	}

	var projection entities.Projection
	if projectionCache != nil {
		if cached, ok := projectionCache.Get(ctx, bundle); ok {
			logger.Info().Str("case_id", bundle.CaseID).Msg("serving cached projection")
			projection = *cached
		}
	}
	if len(projection.Entries) == 0 && projection.GeneratedAt.IsZero() {
		service := services.NewChronologyService(cfg.Selection, *logger)
		projection = service.Build(ctx, bundle)
		if projectionCache != nil {
			projectionCache.Put(ctx, bundle, &projection)
		}
	}

	if cfg.Database.Enabled {
		pgClient, err := postgres.NewClient(&cfg.Database)
		if err != nil {
			logger.Warn().Err(err).Msg("postgres unavailable, skipping run persistence")
		} else {
			defer pgClient.Close()
			repo := database.NewProjectionAdapter(pgClient)
			runID, err := repo.SaveRun(ctx, bundle.CaseID, &projection)
			if err != nil {
				logger.Warn().Err(err).Msg("failed to persist run")
			} else {
				logger.Info().Str("run_id", runID).Msg("run persisted")
			}
		}
	}

	if !*includeAudit {
		projection.Audits = nil
		projection.Skips = nil
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(projection); err != nil {
		logger.Fatal().Err(err).Msg("failed to encode projection")
	}
}

func readBundle(path string) (entities.CaseBundle, error) {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return entities.CaseBundle{}, err
	}
	var bundle entities.CaseBundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return entities.CaseBundle{}, err
	}
	return bundle, nil
}
