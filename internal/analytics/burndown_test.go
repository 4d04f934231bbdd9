package analytics_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"costline/internal/analytics"
	"costline/internal/domain"
)

// 2025-01-01 to 2025-04-01: 90 days, 91 ideal points.
func burnProject(budget int64) domain.Project {
	return project(budget)
}

func TestBurndownIdealLine(t *testing.T) {
	calc := analytics.Calculator{}
	b := calc.Burndown(burnProject(100000), []domain.ExpenditureRecord{
		spend(3000, date(2025, 1, 5)),
	}, date(2025, 1, 11))

	if len(b.Ideal) != 91 {
		t.Fatalf("ideal points = %d, want 91", len(b.Ideal))
	}
	first, last := b.Ideal[0], b.Ideal[len(b.Ideal)-1]
	if !first.Date.Equal(date(2025, 1, 1)) || !first.Remaining.Equal(money(100000)) {
		t.Errorf("ideal start = %v %s", first.Date, first.Remaining)
	}
	if !last.Date.Equal(date(2025, 4, 1)) || !last.Remaining.Equal(decimal.Zero) {
		t.Errorf("ideal must hit zero exactly at the end date, got %s on %v", last.Remaining, last.Date)
	}
	// day 10 of 90: 100000 * (1 - 10/90)
	if got := b.Ideal[10].Remaining.StringFixed(2); got != "88888.89" {
		t.Errorf("ideal day 10 = %s, want 88888.89", got)
	}
}

func TestBurndownStatusOnTrack(t *testing.T) {
	calc := analytics.Calculator{}
	b := calc.Burndown(burnProject(100000), []domain.ExpenditureRecord{
		spend(3000, date(2025, 1, 8)),
	}, date(2025, 1, 11))
	// remaining 97000 vs ideal 88888.89: ahead of the line
	if b.Status != domain.BurndownOnTrack {
		t.Errorf("status = %s, want OnTrack", b.Status)
	}
}

func TestBurndownStatusAtRisk(t *testing.T) {
	calc := analytics.Calculator{}
	b := calc.Burndown(burnProject(100000), []domain.ExpenditureRecord{
		spend(25000, date(2025, 1, 8)),
	}, date(2025, 1, 11))
	// remaining 75000 vs ideal 88888.89: 13.9% of budget behind
	if b.Status != domain.BurndownAtRisk {
		t.Errorf("status = %s, want AtRisk", b.Status)
	}
}

func TestBurndownStatusOverBudget(t *testing.T) {
	calc := analytics.Calculator{}
	b := calc.Burndown(burnProject(100000), []domain.ExpenditureRecord{
		spend(120000, date(2025, 1, 8)),
	}, date(2025, 1, 11))
	if b.Status != domain.BurndownOverBudget {
		t.Errorf("status = %s, want OverBudget", b.Status)
	}
	last := b.Actual[len(b.Actual)-1]
	if !last.Remaining.Equal(money(-20000)) {
		t.Errorf("actual may go negative, got %s", last.Remaining)
	}
}

func TestBurndownNoData(t *testing.T) {
	calc := analytics.Calculator{}

	// no expenditures
	b := calc.Burndown(burnProject(100000), nil, date(2025, 1, 11))
	if b.Status != domain.BurndownNoData {
		t.Errorf("status without spend = %s, want NoData", b.Status)
	}
	if len(b.Actual) != 0 {
		t.Errorf("actual should be empty, got %d points", len(b.Actual))
	}

	// no schedule dates
	p := burnProject(100000)
	p.StartDate = nil
	p.TargetEndDate = nil
	b = calc.Burndown(p, []domain.ExpenditureRecord{spend(3000, date(2025, 1, 8))}, date(2025, 1, 11))
	if b.Status != domain.BurndownNoData {
		t.Errorf("status without dates = %s, want NoData", b.Status)
	}
	if len(b.Ideal) != 0 {
		t.Errorf("ideal should be empty, got %d points", len(b.Ideal))
	}

	// zero budget
	b = calc.Burndown(burnProject(0), []domain.ExpenditureRecord{spend(3000, date(2025, 1, 8))}, date(2025, 1, 11))
	if b.Status != domain.BurndownNoData {
		t.Errorf("status with zero budget = %s, want NoData", b.Status)
	}
}

func TestBurndownActualAnchor(t *testing.T) {
	calc := analytics.Calculator{}

	// start precedes first spend: anchor at start
	b := calc.Burndown(burnProject(100000), []domain.ExpenditureRecord{
		spend(3000, date(2025, 1, 5)),
	}, date(2025, 1, 11))
	if len(b.Actual) != 2 {
		t.Fatalf("actual points = %d, want 2", len(b.Actual))
	}
	if !b.Actual[0].Date.Equal(date(2025, 1, 1)) || !b.Actual[0].Remaining.Equal(money(100000)) {
		t.Errorf("anchor = %v %s, want 2025-01-01 at full budget", b.Actual[0].Date, b.Actual[0].Remaining)
	}

	// first spend precedes start: anchor at first spend date
	p := burnProject(100000)
	early := date(2024, 12, 20)
	b = calc.Burndown(p, []domain.ExpenditureRecord{
		spend(3000, early),
	}, date(2025, 1, 11))
	if !b.Actual[0].Date.Equal(early) {
		t.Errorf("anchor = %v, want %v", b.Actual[0].Date, early)
	}

	// same-day spends collapse into one point
	b = calc.Burndown(p, []domain.ExpenditureRecord{
		spend(1000, date(2025, 1, 5)),
		spend(2000, date(2025, 1, 5)),
	}, date(2025, 1, 11))
	if len(b.Actual) != 2 {
		t.Fatalf("actual points = %d, want 2", len(b.Actual))
	}
	if !b.Actual[1].Remaining.Equal(money(97000)) {
		t.Errorf("day total = %s, want 97000", b.Actual[1].Remaining)
	}
}

func TestBurndownForecast(t *testing.T) {
	calc := analytics.Calculator{}
	// anchor 2025-01-01, spends on day 5 and day 10: 20000 over 10 elapsed days
	b := calc.Burndown(burnProject(100000), []domain.ExpenditureRecord{
		spend(10000, date(2025, 1, 6)),
		spend(10000, date(2025, 1, 11)),
	}, date(2025, 1, 11))

	// 80 days from the last actual point to the end date
	if len(b.Forecast) != 80 {
		t.Fatalf("forecast points = %d, want 80", len(b.Forecast))
	}
	if !b.Forecast[0].Date.Equal(date(2025, 1, 12)) || !b.Forecast[0].Remaining.Equal(money(78000)) {
		t.Errorf("first forecast point = %v %s, want 2025-01-12 78000", b.Forecast[0].Date, b.Forecast[0].Remaining)
	}
	// the projection exhausts the budget after 40 days and floors at zero
	if !b.Forecast[39].Remaining.Equal(decimal.Zero) {
		t.Errorf("forecast day 40 = %s, want 0", b.Forecast[39].Remaining)
	}
	if !b.Forecast[79].Remaining.Equal(decimal.Zero) {
		t.Errorf("forecast must not go negative, got %s", b.Forecast[79].Remaining)
	}

	// no end date, nothing to project towards
	p := burnProject(100000)
	p.TargetEndDate = nil
	b = calc.Burndown(p, []domain.ExpenditureRecord{
		spend(10000, date(2025, 1, 6)),
	}, date(2025, 1, 11))
	if len(b.Forecast) != 0 {
		t.Errorf("forecast without an end date should be empty, got %d points", len(b.Forecast))
	}

	// spending past the end date leaves no horizon
	b = calc.Burndown(burnProject(100000), []domain.ExpenditureRecord{
		spend(10000, date(2025, 1, 6)),
		spend(10000, date(2025, 4, 10)),
	}, date(2025, 4, 11))
	if len(b.Forecast) != 0 {
		t.Errorf("forecast past the end date should be empty, got %d points", len(b.Forecast))
	}
}
