package insights

import (
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/debtease/go-debtease-backend/internal/domain"
)

// simulation bounds and tuning knobs for the payoff models.
const (
	// maxMonths caps the amortization loop; portfolios that cannot be paid
	// off within 50 years under the assumed budget are reported at the cap.
	maxMonths = 600

	// extraBudgetShare is the assumed surplus over the minimum payments that
	// the strategies allocate to the focus debt (10%).
	extraBudgetShare = 0.10

	// highInterestThreshold marks a rate as worth a dedicated recommendation.
	highInterestThreshold = 15.0

	// ModelName identifies the deterministic analyzer in cache diagnostics.
	ModelName = "debtease-analyzer/v1"
)

// Generator produces insight Results from a debt portfolio.
type Generator struct {
	// Now overrides the clock in tests; nil means time.Now().UTC.
	Now func() time.Time
}

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now().UTC()
}

// Generate runs the analyzers over the portfolio. An empty portfolio is valid
// and yields a zeroed summary with a single onboarding recommendation.
func (g *Generator) Generate(debts []domain.Debt, includeDTI bool, monthlyIncome float64) *Result {
	summary := summarize(debts)
	comparison := compareStrategies(debts)

	res := &Result{
		DebtSummary:                 summary,
		ProfessionalRecommendations: recommend(debts, summary, comparison),
		StrategyComparison:          comparison,
		Metadata: Metadata{
			EnhancementMethod:        "deterministic_analyzer",
			ProfessionalQualityScore: qualityScore(debts),
			FallbackUsed:             true,
			GeneratedAt:              g.now().Format(time.RFC3339),
		},
	}
	if includeDTI && monthlyIncome > 0 {
		res.DTI = analyzeDTI(summary, monthlyIncome)
	}
	return res
}

// summarize folds the portfolio into the headline numbers.
func summarize(debts []domain.Debt) DebtSummary {
	s := DebtSummary{DebtCount: len(debts)}
	if len(debts) == 0 {
		return s
	}
	var rateSum float64
	for _, d := range debts {
		s.TotalDebt += d.CurrentBalance
		s.TotalMinimumPayment += d.MinimumPayment
		rateSum += d.InterestRate
		if d.InterestRate > s.HighestInterestRate {
			s.HighestInterestRate = d.InterestRate
		}
	}
	s.TotalDebt = round2(s.TotalDebt)
	s.TotalMinimumPayment = round2(s.TotalMinimumPayment)
	s.AverageInterestRate = round2(rateSum / float64(len(debts)))
	return s
}

// compareStrategies simulates avalanche and snowball payoff under the same
// budget and recommends the one that pays less interest. On a tie (including
// the empty portfolio) avalanche wins: same cost, mathematically cleaner.
func compareStrategies(debts []domain.Debt) StrategyComparison {
	avalanche := simulate(debts, func(a, b *simDebt) bool {
		if a.rate != b.rate {
			return a.rate > b.rate
		}
		return a.balance > b.balance
	})
	snowball := simulate(debts, func(a, b *simDebt) bool {
		if a.balance != b.balance {
			return a.balance < b.balance
		}
		return a.rate > b.rate
	})

	recommended := string(domain.StrategyAvalanche)
	if snowball.TotalInterestPaid < avalanche.TotalInterestPaid {
		recommended = string(domain.StrategySnowball)
	}
	return StrategyComparison{
		Recommended: recommended,
		Avalanche:   avalanche,
		Snowball:    snowball,
	}
}

type simDebt struct {
	id      string
	name    string
	balance float64
	rate    float64
	minimum float64
}

// simulate amortizes the portfolio month by month. Each month every debt
// accrues interest and receives its minimum payment; the surplus budget goes
// to the first debt in the strategy order. The payoff order lists debt names
// in the order they reach zero.
func simulate(debts []domain.Debt, less func(a, b *simDebt) bool) StrategyOutcome {
	if len(debts) == 0 {
		return StrategyOutcome{PayoffOrder: []string{}}
	}

	sims := make([]*simDebt, 0, len(debts))
	var budget float64
	for _, d := range debts {
		sims = append(sims, &simDebt{
			id:      d.ID,
			name:    d.Name,
			balance: d.CurrentBalance,
			rate:    d.InterestRate,
			minimum: d.MinimumPayment,
		})
		budget += d.MinimumPayment
	}
	budget *= 1 + extraBudgetShare

	out := StrategyOutcome{PayoffOrder: make([]string, 0, len(sims))}
	remaining := sims

	for months := 0; len(remaining) > 0 && months < maxMonths; months++ {
		sort.SliceStable(remaining, func(i, j int) bool { return less(remaining[i], remaining[j]) })

		// Accrue a month of interest.
		for _, sd := range remaining {
			interest := sd.balance * sd.rate / 1200
			sd.balance += interest
			out.TotalInterestPaid += interest
		}

		// Minimums first, then the surplus to the focus debt.
		cash := budget
		for _, sd := range remaining {
			pay := math.Min(sd.minimum, sd.balance)
			sd.balance -= pay
			cash -= pay
		}
		for _, sd := range remaining {
			if cash <= 0 {
				break
			}
			pay := math.Min(cash, sd.balance)
			sd.balance -= pay
			cash -= pay
		}

		next := remaining[:0]
		for _, sd := range remaining {
			if sd.balance <= 0.01 {
				out.PayoffOrder = append(out.PayoffOrder, sd.name)
				continue
			}
			next = append(next, sd)
		}
		remaining = next
		out.MonthsToDebtFree = months + 1
	}

	out.TotalInterestPaid = round2(out.TotalInterestPaid)
	return out
}

// recommend derives professional-style suggestions from portfolio features.
// The output is deterministic for a given portfolio.
func recommend(debts []domain.Debt, summary DebtSummary, cmp StrategyComparison) []Recommendation {
	p := message.NewPrinter(language.English)

	if len(debts) == 0 {
		return []Recommendation{{
			Title:         "Add your debts to get started",
			Description:   "No debts are on file yet, so there is nothing to analyze.",
			PriorityScore: 5,
			ActionSteps:   []string{"Add each loan and card with its balance, rate, and minimum payment."},
			Benefits:      []string{"Unlocks payoff planning and interest projections."},
			Risks:         []string{},
		}}
	}

	recs := make([]Recommendation, 0, 4)

	if summary.HighestInterestRate >= highInterestThreshold {
		var worst domain.Debt
		for _, d := range debts {
			if d.InterestRate >= worst.InterestRate {
				worst = d
			}
		}
		recs = append(recs, Recommendation{
			Title: "Attack your highest-interest balance first",
			Description: p.Sprintf("%s carries a %.1f%% APR on a balance of $%.2f, which compounds faster than anything else you owe.",
				worst.Name, worst.InterestRate, worst.CurrentBalance),
			PriorityScore: 9,
			ActionSteps: []string{
				p.Sprintf("Direct every spare dollar at %s while paying minimums elsewhere.", worst.Name),
				"Check whether a balance transfer or consolidation loan beats the current rate.",
			},
			Benefits: []string{"Cuts the fastest-growing interest cost in the portfolio."},
			Risks:    []string{"Balance transfers can carry fees and teaser-rate expirations."},
		})
	}

	diff := cmp.Snowball.TotalInterestPaid - cmp.Avalanche.TotalInterestPaid
	if diff > 0.01 && len(debts) > 1 {
		recs = append(recs, Recommendation{
			Title: "Use the avalanche payoff order",
			Description: p.Sprintf("Ordering payments by interest rate saves about $%.2f versus the snowball order for this portfolio.",
				diff),
			PriorityScore: 7,
			ActionSteps: []string{
				"Keep every minimum payment on autopay.",
				"Send all surplus cash to the highest-rate debt until it clears, then roll down.",
			},
			Benefits: []string{p.Sprintf("Roughly $%.2f less interest paid over the payoff.", diff)},
			Risks:    []string{"Slower first payoff can feel less motivating than the snowball."},
		})
	}

	var highPriority int
	for _, d := range debts {
		if d.IsHighPriority {
			highPriority++
		}
	}
	if highPriority > 0 {
		recs = append(recs, Recommendation{
			Title:         "Review your flagged debts monthly",
			Description:   p.Sprintf("%d debt(s) are marked high priority; their terms deserve a standing review.", highPriority),
			PriorityScore: 6,
			ActionSteps:   []string{"Set a monthly reminder to re-check balances and rates on flagged debts."},
			Benefits:      []string{"Catches rate changes and fees before they compound."},
			Risks:         []string{},
		})
	}

	recs = append(recs, Recommendation{
		Title: "Keep a one-month payment buffer",
		Description: p.Sprintf("Your minimum payments total $%.2f per month; holding at least that much in reserve protects your payment history.",
			summary.TotalMinimumPayment),
		PriorityScore: 5,
		ActionSteps:   []string{p.Sprintf("Build a cash buffer of $%.2f before accelerating payoff.", summary.TotalMinimumPayment)},
		Benefits:      []string{"One missed paycheck no longer risks late fees or credit damage."},
		Risks:         []string{"Cash held in reserve earns less than debt interest saved."},
	})

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].PriorityScore > recs[j].PriorityScore })
	return recs
}

// analyzeDTI computes the debt-to-income block from the summary and a known
// monthly income.
func analyzeDTI(summary DebtSummary, monthlyIncome float64) *DTIAnalysis {
	ratio := summary.TotalMinimumPayment / monthlyIncome
	assessment := "healthy"
	switch {
	case ratio >= 0.43:
		assessment = "critical"
	case ratio >= 0.36:
		assessment = "stretched"
	case ratio >= 0.28:
		assessment = "elevated"
	}
	return &DTIAnalysis{
		MonthlyIncome:     round2(monthlyIncome),
		MonthlyDebtOutlay: summary.TotalMinimumPayment,
		Ratio:             math.Round(ratio*1000) / 1000,
		Assessment:        assessment,
	}
}

// qualityScore grades how much signal the analyzers had to work with. More
// debts with complete terms score higher; the scale is 0..1.
func qualityScore(debts []domain.Debt) float64 {
	if len(debts) == 0 {
		return 0
	}
	complete := 0
	for _, d := range debts {
		if d.InterestRate > 0 && d.MinimumPayment > 0 && d.CurrentBalance > 0 {
			complete++
		}
	}
	base := 0.5 + 0.5*float64(complete)/float64(len(debts))
	return math.Round(base*100) / 100
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }

// String implements fmt.Stringer for log lines.
func (s DebtSummary) String() string {
	return fmt.Sprintf("debts=%d total=%.2f avg_rate=%.2f", s.DebtCount, s.TotalDebt, s.AverageInterestRate)
}
