package analytics_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"costline/internal/analytics"
	"costline/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func money(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func project(budget int64) domain.Project {
	start := date(2025, 1, 1)
	end := date(2025, 4, 1)
	return domain.Project{
		ID:            "p1",
		Name:          "Feeder Line",
		Number:        "P-100",
		TotalBudget:   money(budget),
		StartDate:     &start,
		TargetEndDate: &end,
		Status:        "Active",
	}
}

func activity(id string, budget int64, status string, finish time.Time) domain.BaselineActivity {
	return domain.BaselineActivity{
		ID:            id,
		ProjectID:     "p1",
		Name:          id,
		PlannedStart:  date(2025, 1, 1),
		PlannedFinish: finish,
		BudgetedCost:  money(budget),
		Status:        status,
	}
}

func spend(amount int64, day time.Time) domain.ExpenditureRecord {
	return domain.ExpenditureRecord{
		ProjectID: "p1",
		Category:  domain.CategoryLabour,
		Amount:    money(amount),
		SpendDate: day,
	}
}

func TestMetricsEarnedValue(t *testing.T) {
	calc := analytics.Calculator{}
	now := date(2025, 2, 15)
	activities := []domain.BaselineActivity{
		activity("a", 20000, domain.StatusComplete, date(2025, 1, 20)),
		activity("b", 30000, domain.StatusActive, date(2025, 2, 10)),
		activity("c", 50000, domain.StatusNotStarted, date(2025, 3, 20)),
	}
	expenditures := []domain.ExpenditureRecord{
		spend(10000, date(2025, 1, 10)),
		spend(15000, date(2025, 2, 9)),
	}

	m := calc.Metrics(project(100000), activities, expenditures, now)

	if !m.EarnedValue.Equal(money(20000)) {
		t.Errorf("EV = %s, want 20000", m.EarnedValue)
	}
	// a and b are due by Feb 15, c is not
	if !m.PlannedValue.Equal(money(50000)) {
		t.Errorf("PV = %s, want 50000", m.PlannedValue)
	}
	if !m.TotalSpent.Equal(money(25000)) {
		t.Errorf("AC = %s, want 25000", m.TotalSpent)
	}
	if m.CPI != 0.8 {
		t.Errorf("CPI = %v, want 0.8", m.CPI)
	}
	if m.SPI != 0.4 {
		t.Errorf("SPI = %v, want 0.4", m.SPI)
	}
	if !m.CostVariance.Equal(money(-5000)) {
		t.Errorf("CV = %s, want -5000", m.CostVariance)
	}
	if !m.ScheduleVariance.Equal(money(-30000)) {
		t.Errorf("SV = %s, want -30000", m.ScheduleVariance)
	}
	// EAC = AC + (budget - EV), not CPI-adjusted
	if !m.Forecast.Equal(money(105000)) {
		t.Errorf("EAC = %s, want 105000", m.Forecast)
	}
	if !m.EstimateToComplete.Equal(money(80000)) {
		t.Errorf("ETC = %s, want 80000", m.EstimateToComplete)
	}
	if !m.VarianceAtCompletion.Equal(money(-5000)) {
		t.Errorf("VAC = %s, want -5000", m.VarianceAtCompletion)
	}
	if m.PctComplete != 20 {
		t.Errorf("pct complete = %v, want 20", m.PctComplete)
	}
	if m.BudgetUsedPct != 25 {
		t.Errorf("budget used = %v, want 25", m.BudgetUsedPct)
	}
	// 25000 over the 30 days between first and last spend
	if got := m.BurnRate.StringFixed(2); got != "833.33" {
		t.Errorf("burn rate = %s, want 833.33", got)
	}
	if m.DaysRemaining == nil || *m.DaysRemaining != 45 {
		t.Errorf("days remaining = %v, want 45", m.DaysRemaining)
	}
	if m.TotalActivities != 3 || m.CompletedActivities != 1 || m.ActiveActivities != 1 {
		t.Errorf("counts = %d/%d/%d", m.TotalActivities, m.ActiveActivities, m.CompletedActivities)
	}
}

func TestMetricsIndicesDefaultToOnPlan(t *testing.T) {
	calc := analytics.Calculator{}
	// nothing spent, nothing due yet
	activities := []domain.BaselineActivity{
		activity("a", 20000, domain.StatusNotStarted, date(2025, 3, 20)),
	}
	m := calc.Metrics(project(100000), activities, nil, date(2025, 1, 5))
	if m.CPI != 1.0 || m.SPI != 1.0 {
		t.Errorf("CPI/SPI = %v/%v, want 1.0/1.0", m.CPI, m.SPI)
	}
	if !m.Forecast.Equal(money(100000)) {
		t.Errorf("EAC = %s, want 100000", m.Forecast)
	}
	if !m.BurnRate.Equal(decimal.Zero) {
		t.Errorf("burn rate = %s, want 0", m.BurnRate)
	}
	if m.BudgetHealth != domain.HealthGreen {
		t.Errorf("budget health = %s, want Green", m.BudgetHealth)
	}
}

func TestMetricsZeroBudgetProject(t *testing.T) {
	calc := analytics.Calculator{}
	activities := []domain.BaselineActivity{
		activity("a", 5000, domain.StatusComplete, date(2025, 1, 20)),
	}
	expenditures := []domain.ExpenditureRecord{spend(4000, date(2025, 1, 15))}
	m := calc.Metrics(project(0), activities, expenditures, date(2025, 2, 15))

	if m.BudgetUsedPct != 0 {
		t.Errorf("budget used must stay 0 without a budget, got %v", m.BudgetUsedPct)
	}
	if m.PctComplete != 100 {
		t.Errorf("pct complete = %v, want 100", m.PctComplete)
	}
	// forecast overrun rules need a positive budget; CPI carries the signal
	if m.CPI != 1.25 {
		t.Errorf("CPI = %v, want 1.25", m.CPI)
	}
	if m.BudgetHealth != domain.HealthGreen {
		t.Errorf("budget health = %s, want Green", m.BudgetHealth)
	}
}

func TestBudgetHealthRules(t *testing.T) {
	calc := analytics.Calculator{}
	now := date(2025, 2, 15)

	// forecast above budget*1.05 is Red regardless of CPI
	m := calc.Metrics(project(100000), []domain.BaselineActivity{
		activity("a", 10000, domain.StatusComplete, date(2025, 1, 20)),
	}, []domain.ExpenditureRecord{spend(20000, date(2025, 1, 15))}, now)
	// EAC = 20000 + 90000 = 110000 > 105000
	if m.BudgetHealth != domain.HealthRed {
		t.Errorf("budget health = %s, want Red", m.BudgetHealth)
	}

	// forecast just above budget is Yellow
	m = calc.Metrics(project(100000), []domain.BaselineActivity{
		activity("a", 10000, domain.StatusComplete, date(2025, 1, 20)),
	}, []domain.ExpenditureRecord{spend(12000, date(2025, 1, 15))}, now)
	// EAC = 12000 + 90000 = 102000
	if m.BudgetHealth != domain.HealthYellow {
		t.Errorf("budget health = %s, want Yellow", m.BudgetHealth)
	}

	// without a budget the forecast rules are skipped and CPI carries the signal
	m = calc.Metrics(project(0), []domain.BaselineActivity{
		activity("a", 4000, domain.StatusComplete, date(2025, 1, 20)),
	}, []domain.ExpenditureRecord{spend(5000, date(2025, 1, 15))}, now)
	// CPI = 0.8 < 0.85
	if m.BudgetHealth != domain.HealthRed {
		t.Errorf("budget health = %s, want Red", m.BudgetHealth)
	}
	m = calc.Metrics(project(0), []domain.BaselineActivity{
		activity("a", 4500, domain.StatusComplete, date(2025, 1, 20)),
	}, []domain.ExpenditureRecord{spend(5000, date(2025, 1, 15))}, now)
	// CPI = 0.9, between the thresholds
	if m.BudgetHealth != domain.HealthYellow {
		t.Errorf("budget health = %s, want Yellow", m.BudgetHealth)
	}

	// nothing spent stays Green even with low CPI denominator
	m = calc.Metrics(project(100000), []domain.BaselineActivity{
		activity("a", 100000, domain.StatusNotStarted, date(2025, 3, 20)),
	}, nil, now)
	if m.BudgetHealth != domain.HealthGreen {
		t.Errorf("budget health = %s, want Green", m.BudgetHealth)
	}
}

func TestScheduleHealthOverdue(t *testing.T) {
	calc := analytics.Calculator{}
	now := date(2025, 2, 15)

	m := calc.Metrics(project(100000), []domain.BaselineActivity{
		activity("a", 10000, domain.StatusActive, date(2025, 2, 10)),
	}, nil, now)
	if m.ScheduleHealth != domain.HealthRed {
		t.Errorf("overdue Active activity: schedule health = %s, want Red", m.ScheduleHealth)
	}

	m = calc.Metrics(project(100000), []domain.BaselineActivity{
		activity("a", 10000, domain.StatusComplete, date(2025, 2, 10)),
		activity("b", 10000, domain.StatusNotStarted, date(2025, 3, 20)),
	}, nil, now)
	if m.ScheduleHealth != domain.HealthGreen {
		t.Errorf("nothing overdue: schedule health = %s, want Green", m.ScheduleHealth)
	}
}

func TestBurnRateSingleDay(t *testing.T) {
	calc := analytics.Calculator{}
	m := calc.Metrics(project(100000), nil, []domain.ExpenditureRecord{
		spend(300, date(2025, 1, 10)),
		spend(700, date(2025, 1, 10)),
	}, date(2025, 1, 11))
	// elapsed span clamps to one day
	if !m.BurnRate.Equal(money(1000)) {
		t.Errorf("burn rate = %s, want 1000", m.BurnRate)
	}
}
