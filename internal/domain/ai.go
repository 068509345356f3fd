// AI insight cache and processing queue models.
//
// These two tables back the asynchronous insight pipeline: the API enqueues an
// ai_processing_queue row, a worker claims it, runs the analyzers, and seeds
// an ai_insights_cache row that later requests read instead of recomputing.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"gorm.io/datatypes"
)

// CacheStatus is the lifecycle state of an InsightCache row. Only
// CacheCompleted rows count as live cache hits.
type CacheStatus string

// Cache entry states.
const (
	CachePending    CacheStatus = "pending"
	CacheProcessing CacheStatus = "processing"
	CacheCompleted  CacheStatus = "completed"
	CacheFailed     CacheStatus = "failed"
)

// InsightCache stores one generated insight result for a (user, cache key)
// pair. Rows are never updated into a different result: regeneration inserts a
// new row with a higher version, and readers pick the latest completed,
// unexpired one. Invalidation sets expires_at to now instead of deleting, so
// the history stays around for audit.
//
// Invariant: ExpiresAt is strictly after GeneratedAt.
type InsightCache struct {
	ID     string `json:"id"      gorm:"type:char(36);primaryKey"`
	UserID string `json:"user_id" gorm:"type:char(36);not null;index:idx_ai_insights_user_id;index:idx_ai_insights_user_status,priority:1"`

	// Payload documents, stored as JSON for structured queries.
	DebtAnalysis    datatypes.JSON `json:"debt_analysis"      gorm:"not null"`
	Recommendations datatypes.JSON `json:"recommendations"    gorm:"not null"`
	Metadata        datatypes.JSON `json:"metadata,omitempty" gorm:"column:ai_metadata"`

	// Cache management. The key is a hash of the user's debt portfolio, so it
	// changes whenever a debt changes. Deliberately not unique: concurrent
	// regenerations coexist as versions.
	CacheKey    string    `json:"cache_key"    gorm:"type:varchar(255);not null;index:idx_ai_insights_cache_key"`
	GeneratedAt time.Time `json:"generated_at" gorm:"not null"`
	ExpiresAt   time.Time `json:"expires_at"   gorm:"not null;index:idx_ai_insights_expires"`
	Version     int       `json:"version"      gorm:"not null;default:1"`

	Status CacheStatus `json:"status" gorm:"type:varchar(20);not null;default:'completed';index:idx_ai_insights_status;index:idx_ai_insights_user_status,priority:2"`

	// Diagnostics.
	ProcessingTime *float64 `json:"processing_time,omitempty"`
	AIModelUsed    *string  `json:"ai_model_used,omitempty" gorm:"type:varchar(100)"`
	ErrorLog       *string  `json:"error_log,omitempty"     gorm:"type:text"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for InsightCache.
func (InsightCache) TableName() string { return "ai_insights_cache" }

// Live reports whether the entry is a valid cache hit at time now:
// completed and not yet expired.
func (c *InsightCache) Live(now time.Time) bool {
	return c.Status == CacheCompleted && now.Before(c.ExpiresAt)
}

// TaskStatus is the lifecycle state of a QueueTask row.
//
// Transitions: queued → processing → {completed | failed}. A failed row with
// attempts < max_attempts is re-claimable (retry); once attempts reach
// max_attempts the failure is terminal.
type TaskStatus string

// Queue task states.
const (
	TaskQueued     TaskStatus = "queued"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// TaskTypeInsights is the default task type: generate AI insights for a user.
const TaskTypeInsights = "ai_insights"

// Priority bounds. 1 is the most urgent, 10 the least; DefaultPriority is the
// middle of the range.
const (
	PriorityHighest = 1
	PriorityLowest  = 10
	DefaultPriority = 5
)

// QueueTask is one unit of deferred background work with retry bookkeeping.
// Workers claim rows via an atomic status transition; the producer only ever
// inserts queued rows.
//
// Invariants:
//   - 0 <= Attempts <= MaxAttempts.
//   - StartedAt is nil until the row leaves "queued".
//   - CompletedAt is nil until the row is terminal (completed, or failed with
//     attempts exhausted).
type QueueTask struct {
	ID     string `json:"id"      gorm:"type:char(36);primaryKey"`
	UserID string `json:"user_id" gorm:"type:char(36);not null;index:idx_ai_queue_user_id"`

	TaskType string     `json:"task_type" gorm:"type:varchar(50);not null;default:'ai_insights';index:idx_ai_queue_task_type,priority:1"`
	Status   TaskStatus `json:"status"    gorm:"type:varchar(20);not null;default:'queued';index:idx_ai_queue_status;index:idx_ai_queue_task_type,priority:2"`
	Priority int        `json:"priority"  gorm:"not null;default:5;index:idx_ai_queue_priority,priority:1"`

	Attempts    int     `json:"attempts"     gorm:"not null;default:0"`
	MaxAttempts int     `json:"max_attempts" gorm:"not null;default:3"`
	ErrorLog    *string `json:"error_log,omitempty" gorm:"type:text"`

	Payload datatypes.JSON `json:"payload,omitempty"`
	Result  datatypes.JSON `json:"result,omitempty"`

	CreatedAt   time.Time  `json:"created_at" gorm:"index:idx_ai_queue_priority,priority:2"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for QueueTask.
func (QueueTask) TableName() string { return "ai_processing_queue" }

// Claimable reports whether a worker may take the task: freshly queued, or
// failed with retry budget left.
func (t *QueueTask) Claimable() bool {
	return t.Status == TaskQueued ||
		(t.Status == TaskFailed && t.Attempts < t.MaxAttempts)
}

// Terminal reports whether the task has reached a final state.
func (t *QueueTask) Terminal() bool {
	return t.Status == TaskCompleted ||
		(t.Status == TaskFailed && t.Attempts >= t.MaxAttempts)
}

// ProcessingSeconds returns the wall time spent processing, or nil if the task
// has not both started and finished.
func (t *QueueTask) ProcessingSeconds() *float64 {
	if t.StartedAt == nil || t.CompletedAt == nil {
		return nil
	}
	s := t.CompletedAt.Sub(*t.StartedAt).Seconds()
	return &s
}

// debtSignature is the per-debt slice of fields that participates in the cache
// key. Anything that changes the analysis result must appear here.
type debtSignature struct {
	ID             string   `json:"id"`
	Balance        float64  `json:"balance"`
	InterestRate   float64  `json:"interest_rate"`
	MinimumPayment float64  `json:"minimum_payment"`
	DebtType       DebtType `json:"debt_type"`
}

// CacheKeyForDebts derives the insight cache key for a user's portfolio: a
// SHA-256 over the owner id and the sorted, analysis-relevant debt fields.
// The key changes whenever a debt is added, removed, or materially edited,
// which is what invalidates stale insights.
func CacheKeyForDebts(userID string, debts []Debt) string {
	sigs := make([]debtSignature, 0, len(debts))
	for _, d := range debts {
		sigs = append(sigs, debtSignature{
			ID:             d.ID,
			Balance:        d.CurrentBalance,
			InterestRate:   d.InterestRate,
			MinimumPayment: d.MinimumPayment,
			DebtType:       d.DebtType,
		})
	}
	sort.Slice(sigs, func(i, j int) bool { return sigs[i].ID < sigs[j].ID })

	payload := struct {
		UserID string          `json:"user_id"`
		Debts  []debtSignature `json:"debts"`
	}{UserID: userID, Debts: sigs}

	b, _ := json.Marshal(payload)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
