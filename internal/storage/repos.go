package storage

import (
	"fmt"

	"github.com/wattbuy/planengine/internal/cache"
	"github.com/wattbuy/planengine/internal/pipeline"
	"github.com/wattbuy/planengine/internal/queue"
)

// PipelineRepos bundles every collaborator the Per-Home Pipeline
// Orchestrator (spec §4.10) needs from persistence, independent of which
// backend produced it. GormStorage and MemoryStorage expose the same
// concerns through differently-typed accessors (adapter structs vs.
// internal/pipeline's Memory* types); ReposFor is the one place that knows
// how to pick the right accessor for each.
type PipelineRepos struct {
	RatePlans      pipeline.RatePlanRepo
	OfferMap       pipeline.OfferIdRatePlanMapRepo
	Jobs           pipeline.PipelineJobRepo
	HouseAddresses pipeline.HouseAddressRepo
	Homes          pipeline.HomeLister
	Queue          queue.Repo
	QueueList      queue.Lister
	EstimateCache  cache.Store
}

// ReposFor extracts a PipelineRepos bundle from an opened Storage. It only
// understands the two backends this package ships (*GormStorage,
// *MemoryStorage); a third backend would need a case here too.
func ReposFor(st Storage) (PipelineRepos, error) {
	switch s := st.(type) {
	case *GormStorage:
		return PipelineRepos{
			RatePlans:      s,
			OfferMap:       s.OfferMap(),
			Jobs:           s.Jobs(),
			HouseAddresses: s.Pipeline(),
			Homes:          s.Pipeline(),
			Queue:          s.Queue(),
			QueueList:      s.Queue(),
			EstimateCache:  s.EstimateCache(),
		}, nil
	case *MemoryStorage:
		return PipelineRepos{
			RatePlans:      s.RatePlans(),
			OfferMap:       s.OfferMap(),
			Jobs:           s.Jobs(),
			HouseAddresses: s.Pipeline(),
			Homes:          s.Pipeline(),
			Queue:          s.Queue(),
			QueueList:      s.Queue(),
			EstimateCache:  s.EstimateCache(),
		}, nil
	default:
		return PipelineRepos{}, fmt.Errorf("storage: backend %T does not expose pipeline repositories", st)
	}
}
