// Package wiring builds the Per-Home Pipeline Orchestrator from an opened
// storage backend, shared by the HTTP API and the cron worker so both
// construct the exact same live collaborators instead of drifting apart.
package wiring

import (
	"log"

	"github.com/wattbuy/planengine/internal/computability"
	"github.com/wattbuy/planengine/internal/config"
	"github.com/wattbuy/planengine/internal/pipeline"
	"github.com/wattbuy/planengine/internal/rates"
	"github.com/wattbuy/planengine/internal/storage"
)

// BuildOrchestrator wires the live HTTP/file collaborators (offer source,
// EFL fetcher, TDSP rates table, usage buckets source) to a backend's
// PipelineRepos bundle.
func BuildOrchestrator(cfg config.Config, repos storage.PipelineRepos) *pipeline.Orchestrator {
	tdspSource, err := pipeline.NewFileTdspRatesSource(cfg.TdspRatesPath)
	if err != nil {
		log.Printf("tdsp rates file load failed (%s): %v; falling back to an empty table", cfg.TdspRatesPath, err)
		tdspSource, _ = pipeline.NewFileTdspRatesSource("")
	}

	return &pipeline.Orchestrator{
		CalcVersion:   cfg.CalcVersion,
		EngineVersion: cfg.EngineVersion,

		Offers:         pipeline.NewCachedOfferSource(pipeline.NewHTTPOfferFetcher(cfg.OffersAPIBaseURL)),
		EFL:            pipeline.NewHTTPEFLFetcher(),
		AIParser:       rates.NullAIDraftParser{},
		TdspRates:      tdspSource,
		Buckets:        pipeline.NewHTTPUsageBucketsSource(cfg.UsageAPIBaseURL),
		HouseAddresses: repos.HouseAddresses,

		RatePlans:     repos.RatePlans,
		OfferMap:      repos.OfferMap,
		Jobs:          repos.Jobs,
		ReviewQueue:   repos.Queue,
		EstimateCache: repos.EstimateCache,

		ComputabilityOptions: computability.Options{},
	}
}
