package server

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q, expected YYYY-MM-DD", field, value)
	}
	return t, nil
}

func parseOptionalDate(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := parseDate(field, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type CreateProjectRequest struct {
	ID            string  `json:"id,omitempty" doc:"Caller-chosen identifier; generated when empty"`
	Name          string  `json:"name" minLength:"1"`
	Number        string  `json:"number" minLength:"1" doc:"Unique project number"`
	Client        string  `json:"client,omitempty"`
	TotalBudget   float64 `json:"total_budget" minimum:"0"`
	StartDate     string  `json:"start_date,omitempty" doc:"YYYY-MM-DD"`
	TargetEndDate string  `json:"target_end_date,omitempty" doc:"YYYY-MM-DD"`
	Actor         string  `json:"actor" minLength:"1"`
}

type CreateActivityRequest struct {
	ID            string  `json:"id,omitempty"`
	Name          string  `json:"name" minLength:"1"`
	PlannedStart  string  `json:"planned_start" doc:"YYYY-MM-DD"`
	PlannedFinish string  `json:"planned_finish" doc:"YYYY-MM-DD"`
	BudgetedCost  float64 `json:"budgeted_cost" minimum:"0"`
	DependsOn     string  `json:"depends_on,omitempty" doc:"Predecessor activity id in the same project"`
	SortOrder     int     `json:"sort_order,omitempty"`
}

type TransitionRequest struct {
	TargetStatus string `json:"target_status" enum:"Active,Complete"`
	Actor        string `json:"actor" minLength:"1"`
	EventDate    string `json:"event_date,omitempty" doc:"YYYY-MM-DD backfill date; defaults to today"`
}

type RecordExpenditureRequest struct {
	ActivityID  string  `json:"activity_id,omitempty"`
	Category    string  `json:"category" enum:"Labour,Material,Vehicle,Diesel,Other"`
	Description string  `json:"description,omitempty"`
	ReferenceID string  `json:"reference_id,omitempty"`
	Amount      float64 `json:"amount" exclusiveMinimum:"0"`
	SpendDate   string  `json:"spend_date" doc:"YYYY-MM-DD"`
	Actor       string  `json:"actor" minLength:"1"`
}

type AddRiskRequest struct {
	Description      string `json:"description" minLength:"1"`
	Impact           string `json:"impact,omitempty" doc:"Low, Medium or High; defaults to Medium"`
	MitigationAction string `json:"mitigation_action,omitempty"`
	DateIdentified   string `json:"date_identified,omitempty" doc:"YYYY-MM-DD"`
	Actor            string `json:"actor" minLength:"1"`
}
