package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Activity lifecycle. Linear: NotStarted -> Active -> Complete.
const (
	StatusNotStarted = "NotStarted"
	StatusActive     = "Active"
	StatusComplete   = "Complete"
)

// Audit event types recorded on activity transitions.
const (
	EventStarted  = "Started"
	EventFinished = "Finished"
	EventReset    = "Reset"
)

// Expenditure categories.
const (
	CategoryLabour   = "Labour"
	CategoryMaterial = "Material"
	CategoryVehicle  = "Vehicle"
	CategoryDiesel   = "Diesel"
	CategoryOther    = "Other"
)

// Health colors for budget/schedule classification.
const (
	HealthGreen  = "Green"
	HealthYellow = "Yellow"
	HealthRed    = "Red"
)

// Burndown trajectory classification.
const (
	BurndownOnTrack    = "OnTrack"
	BurndownAtRisk     = "AtRisk"
	BurndownOverBudget = "OverBudget"
	BurndownNoData     = "NoData"
)

type Project struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Number        string          `json:"number"`
	Client        string          `json:"client,omitempty"`
	TotalBudget   decimal.Decimal `json:"total_budget"`
	StartDate     *time.Time      `json:"start_date,omitempty"`
	TargetEndDate *time.Time      `json:"target_end_date,omitempty"`
	Status        string          `json:"status"`
	CreatedAt     string          `json:"created_at" format:"date-time"`
	CreatedBy     string          `json:"created_by"`
}

type BaselineActivity struct {
	ID            string          `json:"id"`
	ProjectID     string          `json:"project_id"`
	Name          string          `json:"name"`
	PlannedStart  time.Time       `json:"planned_start"`
	PlannedFinish time.Time       `json:"planned_finish"`
	BudgetedCost  decimal.Decimal `json:"budgeted_cost"`
	DependsOn     *string         `json:"depends_on,omitempty"`
	Status        string          `json:"status" enum:"NotStarted,Active,Complete"`
	SortOrder     int             `json:"sort_order"`
}

type ExpenditureRecord struct {
	ID          string          `json:"id"`
	ProjectID   string          `json:"project_id"`
	ActivityID  *string         `json:"activity_id,omitempty"`
	Category    string          `json:"category" enum:"Labour,Material,Vehicle,Diesel,Other"`
	Description string          `json:"description,omitempty"`
	ReferenceID string          `json:"reference_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	SpendDate   time.Time       `json:"spend_date"`
	RecordedBy  string          `json:"recorded_by"`
	RecordedAt  string          `json:"recorded_at" format:"date-time"`
}

type ActivityEvent struct {
	ID         int64     `json:"id"`
	ActivityID string    `json:"activity_id"`
	EventType  string    `json:"event_type" enum:"Started,Finished,Reset"`
	EventDate  time.Time `json:"event_date"`
	RecordedBy string    `json:"recorded_by"`
	RecordedAt string    `json:"recorded_at" format:"date-time"`
}

type Risk struct {
	ID               string    `json:"id"`
	ProjectID        string    `json:"project_id"`
	DateIdentified   time.Time `json:"date_identified"`
	Description      string    `json:"description"`
	Impact           string    `json:"impact" enum:"Low,Medium,High"`
	Status           string    `json:"status" enum:"Open,Mitigating,Closed"`
	MitigationAction string    `json:"mitigation_action,omitempty"`
	RecordedBy       string    `json:"recorded_by"`
}

// ValidStatus reports whether s is a known activity status.
func ValidStatus(s string) bool {
	switch s {
	case StatusNotStarted, StatusActive, StatusComplete:
		return true
	}
	return false
}

// ValidCategory reports whether c is a known expenditure category.
func ValidCategory(c string) bool {
	switch c {
	case CategoryLabour, CategoryMaterial, CategoryVehicle, CategoryDiesel, CategoryOther:
		return true
	}
	return false
}
