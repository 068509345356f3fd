// Package services – InsightService
//
// This file implements the AI-insight read path and its cache contract. A GET
// resolves the portfolio cache key and returns the newest live cache entry;
// a miss enqueues (or reuses) a background task and tells the caller to poll.
// The background worker calls Put once generation finishes, which is what
// turns later misses into hits.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/debtease/go-debtease-backend/internal/domain"
	"github.com/debtease/go-debtease-backend/internal/insights"
	"github.com/debtease/go-debtease-backend/internal/repo"
)

// analysisDocument is the shape stored in the debt_analysis cache column.
type analysisDocument struct {
	DebtSummary        json.RawMessage `json:"debtSummary"`
	DTI                json.RawMessage `json:"dtiAnalysis,omitempty"`
	StrategyComparison json.RawMessage `json:"strategyComparison"`
}

// InsightResponse is the API document assembled from a cache entry. Field
// names follow the web client contract.
type InsightResponse struct {
	DebtSummary                 json.RawMessage `json:"debtSummary"`
	DTI                         json.RawMessage `json:"dtiAnalysis,omitempty"`
	ProfessionalRecommendations json.RawMessage `json:"professionalRecommendations"`
	StrategyComparison          json.RawMessage `json:"strategyComparison"`
	Metadata                    map[string]any  `json:"metadata"`
}

// InsightService coordinates the cache and the processing queue.
type InsightService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Debts resolves portfolios and cache keys.
	Debts *DebtService
	// Queue schedules background generation.
	Queue *QueueService
	// TTL is the lifetime of cache entries written through Put.
	TTL time.Duration
	// Now overrides the clock in tests; nil means time.Now().UTC.
	Now func() time.Time
}

// NewInsightService constructs an InsightService with the given cache TTL.
func NewInsightService(db *gorm.DB, debts *DebtService, queue *QueueService, ttl time.Duration) *InsightService {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &InsightService{DB: db, Debts: debts, Queue: queue, TTL: ttl}
}

func (s *InsightService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Get returns the assembled insight document for the user's current
// portfolio, or ErrCacheMiss when no live entry exists.
func (s *InsightService) Get(ctx context.Context, userID string) (*InsightResponse, error) {
	key, err := s.Debts.CacheKey(ctx, userID)
	if err != nil {
		return nil, err
	}
	entry, err := repo.GetInsightCache(ctx, s.DB, userID, key, s.now())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return assembleResponse(entry)
}

// Request schedules background generation for the user's current portfolio
// and returns the queue task to poll. An already pending task for the same
// portfolio is reused instead of stacking duplicates; force skips that check
// after expiring the live cache (the regenerate path).
func (s *InsightService) Request(ctx context.Context, userID string, includeDTI bool, monthlyIncome float64, force bool) (*domain.QueueTask, error) {
	key, err := s.Debts.CacheKey(ctx, userID)
	if err != nil {
		return nil, err
	}

	if force {
		if _, err := repo.InvalidateInsightCache(ctx, s.DB, userID, key, s.now()); err != nil {
			return nil, err
		}
	} else {
		latest, err := s.Queue.LatestForUser(ctx, userID, domain.TaskTypeInsights)
		if err == nil && !latest.Terminal() && samePortfolio(latest.Payload, key) {
			return latest, nil
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	payload, err := json.Marshal(insights.TaskPayload{
		CacheKey:      key,
		IncludeDTI:    includeDTI,
		MonthlyIncome: monthlyIncome,
	})
	if err != nil {
		return nil, err
	}
	return s.Queue.Enqueue(ctx, userID, domain.TaskTypeInsights, payload, domain.DefaultPriority)
}

// Put stores a completed generation result as a fresh cache entry for
// (userID, cacheKey) and returns it. Called by the worker.
func (s *InsightService) Put(ctx context.Context, userID, cacheKey string, result *insights.Result, processingTime float64) (*domain.InsightCache, error) {
	doc := analysisDocument{}
	var err error
	if doc.DebtSummary, err = json.Marshal(result.DebtSummary); err != nil {
		return nil, err
	}
	if result.DTI != nil {
		if doc.DTI, err = json.Marshal(result.DTI); err != nil {
			return nil, err
		}
	}
	if doc.StrategyComparison, err = json.Marshal(result.StrategyComparison); err != nil {
		return nil, err
	}

	analysis, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	recs, err := json.Marshal(result.ProfessionalRecommendations)
	if err != nil {
		return nil, err
	}
	meta, err := json.Marshal(result.Metadata)
	if err != nil {
		return nil, err
	}

	model := insights.ModelName
	entry, err := repo.PutInsightCache(ctx, s.DB, userID, cacheKey,
		analysis, recs, meta, s.TTL, &processingTime, &model, s.now())
	if errors.Is(err, repo.ErrReference) {
		return nil, ErrReference
	}
	return entry, err
}

// Invalidate expires every live cache entry of the user.
func (s *InsightService) Invalidate(ctx context.Context, userID string) (int64, error) {
	return repo.InvalidateInsightCache(ctx, s.DB, userID, "", s.now())
}

// PurgeExpired hard-deletes cache rows whose expiry passed more than one TTL
// ago, keeping the table from growing without bound while leaving a window of
// recently expired rows for debugging.
func (s *InsightService) PurgeExpired(ctx context.Context) (int64, error) {
	return repo.PurgeExpiredInsightCache(ctx, s.DB, s.now().Add(-s.TTL))
}

// Status returns the most recent insights task for the user, or ErrNotFound.
func (s *InsightService) Status(ctx context.Context, userID string) (*domain.QueueTask, error) {
	return s.Queue.LatestForUser(ctx, userID, domain.TaskTypeInsights)
}

// assembleResponse expands a cache entry back into the client document,
// folding cache bookkeeping into the metadata block.
func assembleResponse(entry *domain.InsightCache) (*InsightResponse, error) {
	var doc analysisDocument
	if err := json.Unmarshal(entry.DebtAnalysis, &doc); err != nil {
		return nil, err
	}

	meta := map[string]any{}
	if len(entry.Metadata) > 0 {
		if err := json.Unmarshal(entry.Metadata, &meta); err != nil {
			return nil, err
		}
	}
	meta["cached"] = true
	meta["cache_version"] = entry.Version
	meta["expires_at"] = entry.ExpiresAt.Format(time.RFC3339)
	if entry.AIModelUsed != nil {
		meta["ai_model_used"] = *entry.AIModelUsed
	}
	if entry.ProcessingTime != nil {
		meta["processing_time"] = *entry.ProcessingTime
	}

	return &InsightResponse{
		DebtSummary:                 doc.DebtSummary,
		DTI:                         doc.DTI,
		ProfessionalRecommendations: json.RawMessage(entry.Recommendations),
		StrategyComparison:          doc.StrategyComparison,
		Metadata:                    meta,
	}, nil
}

// samePortfolio reports whether a task payload targets the given cache key.
func samePortfolio(payload datatypes.JSON, key string) bool {
	var p insights.TaskPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return false
	}
	return p.CacheKey == key
}
