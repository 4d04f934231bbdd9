package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"costline/internal/domain"
)

// Point is one (date, remaining budget) sample of a burndown series.
type Point struct {
	Date      time.Time       `json:"date"`
	Remaining decimal.Decimal `json:"remaining"`
}

// Burndown holds the three series of a project's budget trajectory. Series that
// cannot be computed from the available data are left empty rather than failing;
// partial burndown information is still useful.
type Burndown struct {
	ProjectID   string          `json:"project_id"`
	TotalBudget decimal.Decimal `json:"total_budget"`
	StartDate   *time.Time      `json:"start_date,omitempty"`
	EndDate     *time.Time      `json:"end_date,omitempty"`
	Today       time.Time       `json:"today"`

	Ideal    []Point `json:"ideal"`
	Actual   []Point `json:"actual"`
	Forecast []Point `json:"forecast"`

	Status string `json:"status" enum:"OnTrack,AtRisk,OverBudget,NoData"`
}

// Burndown builds the ideal, actual and forecast series for one project and
// classifies the overall trajectory as of "now".
func (c Calculator) Burndown(p domain.Project, expenditures []domain.ExpenditureRecord, now time.Time) Burndown {
	today := dateOnly(now)
	b := Burndown{
		ProjectID:   p.ID,
		TotalBudget: p.TotalBudget,
		StartDate:   p.StartDate,
		EndDate:     p.TargetEndDate,
		Today:       today,
		Status:      domain.BurndownNoData,
	}

	b.Ideal = idealSeries(p)
	b.Actual = actualSeries(p, expenditures)
	b.Forecast = forecastSeries(p, b.Actual)

	if len(b.Ideal) == 0 || len(b.Actual) == 0 {
		return b
	}
	actualToday := valueAsOf(b.Actual, today)
	idealToday := valueAsOf(b.Ideal, today)
	diffPct := actualToday.Sub(idealToday).Div(p.TotalBudget).InexactFloat64() * 100
	switch {
	case actualToday.IsNegative():
		b.Status = domain.BurndownOverBudget
	case diffPct < c.cfg().Burndown.AtRiskDiffPct:
		b.Status = domain.BurndownAtRisk
	default:
		b.Status = domain.BurndownOnTrack
	}
	return b
}

// idealSeries is a straight-line depletion from full budget at start_date to
// zero exactly at end_date, one point per day inclusive.
func idealSeries(p domain.Project) []Point {
	if p.StartDate == nil || p.TargetEndDate == nil || !p.TotalBudget.IsPositive() {
		return nil
	}
	start := dateOnly(*p.StartDate)
	end := dateOnly(*p.TargetEndDate)
	total := daysBetween(start, end)
	if total <= 0 {
		return nil
	}
	series := make([]Point, 0, total+1)
	for i := 0; i <= total; i++ {
		remaining := p.TotalBudget.Sub(p.TotalBudget.Mul(decimal.NewFromInt(int64(i))).Div(decimal.NewFromInt(int64(total))))
		series = append(series, Point{Date: start.AddDate(0, 0, i), Remaining: remaining})
	}
	return series
}

// actualSeries subtracts the cumulative daily spend from the total budget. An
// anchor point at full budget is prepended so the line always starts at the
// top; the series may go negative on overspend.
func actualSeries(p domain.Project, expenditures []domain.ExpenditureRecord) []Point {
	if len(expenditures) == 0 {
		return nil
	}
	byDay := map[time.Time]decimal.Decimal{}
	for _, e := range expenditures {
		d := dateOnly(e.SpendDate)
		byDay[d] = byDay[d].Add(e.Amount)
	}
	days := make([]time.Time, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	anchor := days[0]
	if p.StartDate != nil && dateOnly(*p.StartDate).Before(anchor) {
		anchor = dateOnly(*p.StartDate)
	}
	series := make([]Point, 0, len(days)+1)
	series = append(series, Point{Date: anchor, Remaining: p.TotalBudget})
	remaining := p.TotalBudget
	for _, d := range days {
		remaining = remaining.Sub(byDay[d])
		series = append(series, Point{Date: d, Remaining: remaining})
	}
	return series
}

// forecastSeries extends the actual line to end_date at the observed daily burn
// rate. The projection floors at zero even where the actual line went negative.
func forecastSeries(p domain.Project, actual []Point) []Point {
	if len(actual) < 2 || p.TargetEndDate == nil {
		return nil
	}
	last := actual[len(actual)-1]
	end := dateOnly(*p.TargetEndDate)
	horizon := daysBetween(last.Date, end)
	if horizon <= 0 {
		return nil
	}
	spent := p.TotalBudget.Sub(last.Remaining)
	elapsed := daysBetween(actual[0].Date, last.Date)
	if elapsed < 1 {
		elapsed = 1
	}
	dailyBurn := spent.Div(decimal.NewFromInt(int64(elapsed)))
	series := make([]Point, 0, horizon)
	for i := 1; i <= horizon; i++ {
		remaining := decimal.Max(last.Remaining.Sub(dailyBurn.Mul(decimal.NewFromInt(int64(i)))), decimal.Zero)
		series = append(series, Point{Date: last.Date.AddDate(0, 0, i), Remaining: remaining})
	}
	return series
}

// valueAsOf returns the series value at or immediately before day, falling back
// to the first point when day precedes the series.
func valueAsOf(series []Point, day time.Time) decimal.Decimal {
	v := series[0].Remaining
	for _, pt := range series {
		if pt.Date.After(day) {
			break
		}
		v = pt.Remaining
	}
	return v
}
