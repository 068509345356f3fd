package domain

import (
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:domain_models?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so cascades actually execute.
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(User{}).TableName():                 "users",
		(Session{}).TableName():              "sessions",
		(Debt{}).TableName():                 "debts",
		(InsightCache{}).TableName():         "ai_insights_cache",
		(QueueTask{}).TableName():            "ai_processing_queue",
		(Notification{}).TableName():         "notifications",
		(VerifiableCredential{}).TableName(): "verifiable_credentials",
		(Payment{}).TableName():              "payments",
		(RepaymentPlan{}).TableName():        "repayment_plans",
		(Idempotency{}).TableName():          "idempotency",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestEnumValidators(t *testing.T) {
	if !ValidDebtType(DebtCreditCard) || !ValidDebtType(DebtOther) {
		t.Fatalf("known debt types should validate")
	}
	if ValidDebtType("mortgage-ish") {
		t.Fatalf("unknown debt type should not validate")
	}
	if !ValidPaymentStatus(PaymentConfirmed) || ValidPaymentStatus("settled") {
		t.Fatalf("payment status validation mismatch")
	}
	if !ValidStrategy(StrategyAvalanche) || !ValidStrategy(StrategySnowball) || ValidStrategy("hybrid") {
		t.Fatalf("strategy validation mismatch")
	}
}

func TestMigrations_Indexes_AndCascades(t *testing.T) {
	db := newDomainDB(t)

	if err := db.AutoMigrate(
		&User{}, &Session{}, &Debt{}, &InsightCache{}, &QueueTask{},
		&Notification{}, &VerifiableCredential{}, &Payment{}, &RepaymentPlan{},
		&Idempotency{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()

	for _, tbl := range []any{&User{}, &Debt{}, &InsightCache{}, &QueueTask{}, &Payment{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}

	// Indexes from tags exist
	if !m.HasIndex(&Debt{}, "idx_user_debts") {
		t.Fatalf("expected index idx_user_debts on debts")
	}
	if !m.HasIndex(&InsightCache{}, "idx_ai_insights_user_status") {
		t.Fatalf("expected index idx_ai_insights_user_status on ai_insights_cache")
	}
	if !m.HasIndex(&QueueTask{}, "idx_ai_queue_priority") {
		t.Fatalf("expected index idx_ai_queue_priority on ai_processing_queue")
	}
	if !m.HasIndex(&Idempotency{}, "ux_user_debt_key") {
		t.Fatalf("expected unique index ux_user_debt_key on idempotency")
	}

	// Seed a user, a debt, and a payment tied to the debt
	now := time.Now().UTC()

	u := &User{ID: "u1", Email: "u1@example.com", PasswordHash: "h", Name: "U", CreatedAt: now, UpdatedAt: now}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("insert user: %v", err)
	}

	d := &Debt{
		ID: "d1", UserID: "u1", Name: "Visa", DebtType: DebtCreditCard,
		PrincipalAmount: 1000, CurrentBalance: 500, InterestRate: 19.9, MinimumPayment: 25,
		Lender: "Bank", PaymentFrequency: FreqMonthly, Source: "manual",
		CreatedAt: now, UpdatedAt: now,
	}
	if err := db.Create(d).Error; err != nil {
		t.Fatalf("insert debt: %v", err)
	}

	p := &Payment{
		ID: "p1", DebtID: "d1", UserID: "u1", Amount: 100, PaymentDate: "2026-08-29",
		Status: PaymentConfirmed, CreatedAt: now, UpdatedAt: now,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("insert payment: %v", err)
	}

	// CASCADE: deleting a debt should delete its payments
	if err := db.Unscoped().Delete(&Debt{}, "id = ?", "d1").Error; err != nil {
		t.Fatalf("delete d1: %v", err)
	}
	var cnt int64
	if err := db.Model(&Payment{}).Where("debt_id = ?", "d1").Count(&cnt).Error; err != nil {
		t.Fatalf("count payments after debt delete: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected payments to cascade-delete when debt deleted, got count=%d", cnt)
	}

	// CASCADE: deleting the user should delete everything that hangs off it
	task := &QueueTask{ID: "t1", UserID: "u1", TaskType: TaskTypeInsights, Status: TaskQueued, Priority: DefaultPriority, MaxAttempts: 3, CreatedAt: now, UpdatedAt: now}
	if err := db.Create(task).Error; err != nil {
		t.Fatalf("insert task: %v", err)
	}
	if err := db.Unscoped().Delete(&User{}, "id = ?", "u1").Error; err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if err := db.Model(&QueueTask{}).Where("user_id = ?", "u1").Count(&cnt).Error; err != nil {
		t.Fatalf("count tasks after user delete: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected queue tasks to cascade-delete when user deleted, got count=%d", cnt)
	}
}
