// Package insights generates debt-analysis results for the background
// pipeline: a portfolio summary, professional-style recommendations, an
// avalanche-versus-snowball strategy comparison, and optional debt-to-income
// figures. The generator is pure and clock-injected so results are
// deterministic under test.
package insights

// TaskPayload is the JSON body of an ai_insights queue task.
type TaskPayload struct {
	// CacheKey pins the portfolio snapshot the request was made against.
	CacheKey string `json:"cache_key"`
	// IncludeDTI requests the debt-to-income block.
	IncludeDTI bool `json:"include_dti,omitempty"`
	// MonthlyIncome feeds the DTI calculation; zero means unknown.
	MonthlyIncome float64 `json:"monthly_income,omitempty"`
}

// DebtSummary aggregates the portfolio numbers shown at the top of the
// insights response.
type DebtSummary struct {
	TotalDebt           float64 `json:"totalDebt"`
	DebtCount           int     `json:"debtCount"`
	AverageInterestRate float64 `json:"averageInterestRate"`
	TotalMinimumPayment float64 `json:"totalMinimumPayment"`
	HighestInterestRate float64 `json:"highestInterestRate"`
}

// Recommendation is one professional-style suggestion. PriorityScore runs
// from 1 (nice to have) to 10 (urgent).
type Recommendation struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	PriorityScore int      `json:"priority_score"`
	ActionSteps   []string `json:"actionSteps"`
	Benefits      []string `json:"benefits"`
	Risks         []string `json:"risks"`
}

// StrategyOutcome is the simulated result of following one payoff strategy
// with the current minimum payments plus a fixed extra budget.
type StrategyOutcome struct {
	TotalInterestPaid float64  `json:"totalInterestPaid"`
	MonthsToDebtFree  int      `json:"monthsToDebtFree"`
	PayoffOrder       []string `json:"payoffOrder"`
}

// StrategyComparison contrasts the avalanche and snowball outcomes and names
// the recommended one.
type StrategyComparison struct {
	Recommended string          `json:"recommended"`
	Avalanche   StrategyOutcome `json:"avalanche"`
	Snowball    StrategyOutcome `json:"snowball"`
}

// DTIAnalysis is the optional debt-to-income block.
type DTIAnalysis struct {
	MonthlyIncome     float64 `json:"monthlyIncome"`
	MonthlyDebtOutlay float64 `json:"monthlyDebtOutlay"`
	Ratio             float64 `json:"ratio"`
	Assessment        string  `json:"assessment"`
}

// Metadata describes how the result was produced.
type Metadata struct {
	EnhancementMethod        string  `json:"enhancement_method"`
	ProfessionalQualityScore float64 `json:"professionalQualityScore"`
	FallbackUsed             bool    `json:"fallback_used"`
	GeneratedAt              string  `json:"generated_at"`
}

// Result is the full insights document stored in the cache and returned by
// the API.
type Result struct {
	DebtSummary                 DebtSummary        `json:"debtSummary"`
	DTI                         *DTIAnalysis       `json:"dtiAnalysis,omitempty"`
	ProfessionalRecommendations []Recommendation   `json:"professionalRecommendations"`
	StrategyComparison          StrategyComparison `json:"strategyComparison"`
	Metadata                    Metadata           `json:"metadata"`
}
