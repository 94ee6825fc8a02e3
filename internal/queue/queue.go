// Package queue implements the Admin Review Queue (spec §4.11): idempotent
// upserts of EFL_PARSE and PLAN_CALC_QUARANTINE items keyed by
// (kind, dedupeKey), with auto-resolution when a later pipeline run
// succeeds. Grounded on the teacher's idempotent-upsert repository style
// (bher20-eratemanager/internal/storage/gorm_storage.go's Upsert methods)
// and its notification-on-queue-change pattern in internal/notification.
package queue

import (
	"time"

	"github.com/wattbuy/planengine/internal/rates"
)

// Kind distinguishes the two review-item shapes this queue holds.
type Kind string

const (
	KindEFLParse          Kind = "EFL_PARSE"
	KindPlanCalcQuarantine Kind = "PLAN_CALC_QUARANTINE"
)

// FinalStatus is a review item's terminal classification while open.
type FinalStatus string

const (
	StatusNeedsReview FinalStatus = "NEEDS_REVIEW"
	StatusOpen        FinalStatus = "OPEN"
	StatusFail        FinalStatus = "FAIL"
)

// Item is one admin review queue row (spec §3's ReviewQueueItem).
type Item struct {
	Kind        Kind
	DedupeKey   string
	FinalStatus FinalStatus
	OfferID     string
	RatePlanID  string
	QueueReason rates.QueueReason
	CreatedAt   time.Time
	ResolvedAt  *time.Time
	ResolvedBy  string
}

// Repo is the queue's storage boundary (one of spec §6's repositories).
type Repo interface {
	Upsert(item Item) error
	Resolve(kind Kind, dedupeKey, resolvedBy string, resolvedAt time.Time) error
	Get(kind Kind, dedupeKey string) (Item, bool)
}

// Lister enumerates every queue item, resolved ones included. The admin
// listing endpoint and the batch sweep's review digest use it; it's kept
// separate from Repo the same way pipeline.HomeLister is kept separate from
// pipeline.HouseAddressRepo.
type Lister interface {
	List() ([]Item, error)
}

// EnqueueEFLParse upserts a NEEDS_REVIEW item for a parse/validate gap on a
// given offer, deduped by offerID (falling back to the EFL content SHA when
// no offerID is available, per spec §4.11).
func EnqueueEFLParse(repo Repo, offerID, eflSha256 string, reason rates.QueueReason, createdAt time.Time) error {
	dedupeKey := offerID
	if dedupeKey == "" {
		dedupeKey = eflSha256
	}
	return repo.Upsert(Item{
		Kind:        KindEFLParse,
		DedupeKey:   dedupeKey,
		FinalStatus: StatusNeedsReview,
		OfferID:     offerID,
		QueueReason: reason,
		CreatedAt:   createdAt,
	})
}

// EnqueuePlanCalcQuarantine upserts an OPEN item for a structurally
// defective template, deduped by offerID.
func EnqueuePlanCalcQuarantine(repo Repo, offerID, ratePlanID string, reason rates.QueueReason, createdAt time.Time) error {
	return repo.Upsert(Item{
		Kind:        KindPlanCalcQuarantine,
		DedupeKey:   offerID,
		FinalStatus: StatusOpen,
		OfferID:     offerID,
		RatePlanID:  ratePlanID,
		QueueReason: reason,
		CreatedAt:   createdAt,
	})
}

// AutoResolveQuarantine marks a PLAN_CALC_QUARANTINE item resolved once a
// subsequent pipeline run produces an OK/APPROXIMATE estimate for the
// mapped template (spec §4.11's "auto-resolve"). It never deletes the row,
// preserving the review history.
func AutoResolveQuarantine(repo Repo, offerID string, resolvedAt time.Time) error {
	if _, ok := repo.Get(KindPlanCalcQuarantine, offerID); !ok {
		return nil
	}
	return repo.Resolve(KindPlanCalcQuarantine, offerID, "pipeline:auto-resolve", resolvedAt)
}
