package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"costline/internal/config"
	"costline/internal/domain"
)

// Metrics is the earned-value snapshot of one project. It is computed fresh on
// every query and never persisted: a pure function of the project, its baseline
// schedule and its expenditure log evaluated at a given instant.
type Metrics struct {
	ProjectID     string          `json:"project_id"`
	ProjectName   string          `json:"project_name"`
	ProjectNumber string          `json:"project_number"`
	ProjectStatus string          `json:"project_status"`

	TotalBudget decimal.Decimal `json:"total_budget"`
	TotalSpent  decimal.Decimal `json:"total_spent"`
	Remaining   decimal.Decimal `json:"remaining"`

	// TotalPlanned is BAC over the baseline schedule; EarnedValue the budgeted
	// cost of Complete activities; PlannedValue the budgeted cost of activities
	// scheduled to be finished by now.
	TotalPlanned decimal.Decimal `json:"total_planned"`
	EarnedValue  decimal.Decimal `json:"earned_value"`
	PlannedValue decimal.Decimal `json:"planned_value"`

	PctComplete   float64 `json:"pct_complete"`
	BudgetUsedPct float64 `json:"budget_used_pct"`
	CPI           float64 `json:"cpi"`
	SPI           float64 `json:"spi"`

	CostVariance         decimal.Decimal `json:"cost_variance"`
	ScheduleVariance     decimal.Decimal `json:"schedule_variance"`
	Forecast             decimal.Decimal `json:"forecast"`
	EstimateToComplete   decimal.Decimal `json:"estimate_to_complete"`
	VarianceAtCompletion decimal.Decimal `json:"variance_at_completion"`

	BurnRate      decimal.Decimal `json:"burn_rate"`
	DaysRemaining *int            `json:"days_remaining,omitempty"`

	BudgetHealth   string `json:"budget_health" enum:"Green,Yellow,Red"`
	ScheduleHealth string `json:"schedule_health" enum:"Green,Red"`

	TotalActivities     int `json:"total_activities"`
	CompletedActivities int `json:"completed_activities"`
	ActiveActivities    int `json:"active_activities"`
}

// Calculator derives performance signals from raw ledgers. A nil Cfg falls back
// to the default thresholds.
type Calculator struct {
	Cfg *config.Config
}

func (c Calculator) cfg() *config.Config {
	if c.Cfg != nil {
		return c.Cfg
	}
	return config.Default("")
}

// Metrics computes the full earned-value metric set for one project at "now".
func (c Calculator) Metrics(p domain.Project, activities []domain.BaselineActivity, expenditures []domain.ExpenditureRecord, now time.Time) Metrics {
	cfg := c.cfg()
	m := Metrics{
		ProjectID:     p.ID,
		ProjectName:   p.Name,
		ProjectNumber: p.Number,
		ProjectStatus: p.Status,
		TotalBudget:   p.TotalBudget,
	}

	for _, e := range expenditures {
		m.TotalSpent = m.TotalSpent.Add(e.Amount)
	}
	m.Remaining = p.TotalBudget.Sub(m.TotalSpent)

	today := dateOnly(now)
	for _, a := range activities {
		m.TotalActivities++
		m.TotalPlanned = m.TotalPlanned.Add(a.BudgetedCost)
		switch a.Status {
		case domain.StatusComplete:
			m.CompletedActivities++
			m.EarnedValue = m.EarnedValue.Add(a.BudgetedCost)
		case domain.StatusActive:
			m.ActiveActivities++
		}
		if !dateOnly(a.PlannedFinish).After(today) {
			m.PlannedValue = m.PlannedValue.Add(a.BudgetedCost)
		}
	}

	if m.TotalPlanned.IsPositive() {
		m.PctComplete = clamp(m.EarnedValue.Div(m.TotalPlanned).InexactFloat64()*100, 0, 100)
	}
	if p.TotalBudget.IsPositive() {
		m.BudgetUsedPct = m.TotalSpent.Div(p.TotalBudget).InexactFloat64() * 100
	}

	// Performance indices default to 1.0 ("on plan") when nothing has been
	// spent or nothing was due yet.
	m.CPI = 1.0
	if m.TotalSpent.IsPositive() {
		m.CPI = m.EarnedValue.Div(m.TotalSpent).InexactFloat64()
	}
	m.SPI = 1.0
	if m.PlannedValue.IsPositive() {
		m.SPI = m.EarnedValue.Div(m.PlannedValue).InexactFloat64()
	}
	m.CostVariance = m.EarnedValue.Sub(m.TotalSpent)
	m.ScheduleVariance = m.EarnedValue.Sub(m.PlannedValue)

	// EAC = AC + (BAC - EV): remaining work proceeds at planned cost. The
	// CPI-adjusted variant is deliberately not used.
	m.Forecast = m.TotalSpent.Add(p.TotalBudget.Sub(m.EarnedValue))
	m.EstimateToComplete = decimal.Max(m.Forecast.Sub(m.TotalSpent), decimal.Zero)
	m.VarianceAtCompletion = p.TotalBudget.Sub(m.Forecast)

	m.BurnRate = burnRate(m.TotalSpent, expenditures)
	if p.TargetEndDate != nil {
		days := daysBetween(today, dateOnly(*p.TargetEndDate))
		if days < 0 {
			days = 0
		}
		m.DaysRemaining = &days
	}

	m.BudgetHealth = budgetHealth(cfg, p.TotalBudget, m.TotalSpent, m.Forecast, m.CPI)
	m.ScheduleHealth = scheduleHealth(activities, today)
	return m
}

// budgetHealth applies the ordered rules: forecast overrun first, then CPI.
// First match wins.
func budgetHealth(cfg *config.Config, budget, spent, forecast decimal.Decimal, cpi float64) string {
	redFactor := decimal.NewFromFloat(cfg.Health.ForecastRedFactor)
	switch {
	case budget.IsPositive() && forecast.GreaterThan(budget.Mul(redFactor)):
		return domain.HealthRed
	case budget.IsPositive() && forecast.GreaterThan(budget):
		return domain.HealthYellow
	case cpi < cfg.Health.CPIRedBelow && spent.IsPositive():
		return domain.HealthRed
	case cpi < cfg.Health.CPIYellowBelow && spent.IsPositive():
		return domain.HealthYellow
	}
	return domain.HealthGreen
}

// scheduleHealth flags any overdue non-Complete activity, regardless of
// whether it is Active or NotStarted. Deliberately coarse.
func scheduleHealth(activities []domain.BaselineActivity, today time.Time) string {
	for _, a := range activities {
		if a.Status != domain.StatusComplete && dateOnly(a.PlannedFinish).Before(today) {
			return domain.HealthRed
		}
	}
	return domain.HealthGreen
}

// burnRate is average spend per elapsed day across the expenditure log, where
// elapsed days span first to last spend date (minimum 1).
func burnRate(totalSpent decimal.Decimal, expenditures []domain.ExpenditureRecord) decimal.Decimal {
	if len(expenditures) == 0 {
		return decimal.Zero
	}
	first := dateOnly(expenditures[0].SpendDate)
	last := first
	for _, e := range expenditures[1:] {
		d := dateOnly(e.SpendDate)
		if d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}
	days := daysBetween(first, last)
	if days < 1 {
		days = 1
	}
	return totalSpent.Div(decimal.NewFromInt(int64(days)))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
