package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"costline/internal/config"
	"costline/internal/domain"
	"costline/internal/events"
	"costline/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// ProjectCreateOptions are parameters for registering a project.
type ProjectCreateOptions struct {
	ID            string
	Name          string
	Number        string
	Client        string
	TotalBudget   decimal.Decimal
	StartDate     *time.Time
	TargetEndDate *time.Time
	ActorID       string
}

// CreateProject registers a project with its default analytics config.
// Budget and dates are immutable afterwards; there is no resize operation.
func (e Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) (domain.Project, error) {
	if opts.Name == "" {
		return domain.Project{}, errors.New("name is required")
	}
	if opts.Number == "" {
		return domain.Project{}, errors.New("number is required")
	}
	if opts.TotalBudget.IsNegative() {
		return domain.Project{}, errors.New("total budget must not be negative")
	}
	if opts.StartDate != nil && opts.TargetEndDate != nil && opts.TargetEndDate.Before(*opts.StartDate) {
		return domain.Project{}, errors.New("target end date precedes start date")
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	p := domain.Project{
		ID:            id,
		Name:          opts.Name,
		Number:        opts.Number,
		Client:        opts.Client,
		TotalBudget:   opts.TotalBudget,
		StartDate:     opts.StartDate,
		TargetEndDate: opts.TargetEndDate,
		Status:        "Active",
		CreatedAt:     e.now().UTC().Format(time.RFC3339),
		CreatedBy:     opts.ActorID,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertProject(ctx, tx, p); err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	if err := e.Repo.UpsertAnalyticsConfigTx(ctx, tx, p.ID, config.Default(p.ID)); err != nil {
		return domain.Project{}, fmt.Errorf("seed analytics config: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// ActivityCreateOptions are parameters for adding a baseline activity.
type ActivityCreateOptions struct {
	ID            string
	ProjectID     string
	Name          string
	PlannedStart  time.Time
	PlannedFinish time.Time
	BudgetedCost  decimal.Decimal
	DependsOn     string
	SortOrder     int
}

// AddActivity appends an activity to a project's baseline schedule. The
// depends_on edge is validated here, not at transition time: self-references,
// cross-project references and cycles are rejected before anything persists.
func (e Engine) AddActivity(ctx context.Context, opts ActivityCreateOptions) (domain.BaselineActivity, error) {
	if opts.Name == "" {
		return domain.BaselineActivity{}, errors.New("name is required")
	}
	if opts.ProjectID == "" {
		return domain.BaselineActivity{}, errors.New("project is required")
	}
	if opts.PlannedFinish.Before(opts.PlannedStart) {
		return domain.BaselineActivity{}, errors.New("planned finish precedes planned start")
	}
	if opts.BudgetedCost.IsNegative() {
		return domain.BaselineActivity{}, errors.New("budgeted cost must not be negative")
	}
	if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
		return domain.BaselineActivity{}, err
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	var dependsOn *string
	if opts.DependsOn != "" {
		if opts.DependsOn == id {
			return domain.BaselineActivity{}, errors.New("activity cannot depend on itself")
		}
		pred, err := e.Repo.GetActivity(ctx, opts.DependsOn)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return domain.BaselineActivity{}, fmt.Errorf("predecessor %s: %w", opts.DependsOn, err)
			}
			return domain.BaselineActivity{}, err
		}
		if pred.ProjectID != opts.ProjectID {
			return domain.BaselineActivity{}, fmt.Errorf("predecessor %s belongs to a different project", opts.DependsOn)
		}
		schedule, err := e.Repo.GetBaselineSchedule(ctx, opts.ProjectID)
		if err != nil {
			return domain.BaselineActivity{}, err
		}
		if path := newDependencyGraph(schedule).wouldCycle(id, opts.DependsOn); path != nil {
			return domain.BaselineActivity{}, DependencyCycleError{Path: path}
		}
		dependsOn = &opts.DependsOn
	}
	a := domain.BaselineActivity{
		ID:            id,
		ProjectID:     opts.ProjectID,
		Name:          opts.Name,
		PlannedStart:  opts.PlannedStart,
		PlannedFinish: opts.PlannedFinish,
		BudgetedCost:  opts.BudgetedCost,
		DependsOn:     dependsOn,
		Status:        domain.StatusNotStarted,
		SortOrder:     opts.SortOrder,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.BaselineActivity{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertActivityTx(ctx, tx, a); err != nil {
		return domain.BaselineActivity{}, fmt.Errorf("insert activity: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.BaselineActivity{}, err
	}
	return a, nil
}

func ensureTransition(oldStatus, newStatus string) error {
	switch oldStatus {
	case domain.StatusNotStarted:
		if newStatus == domain.StatusActive {
			return nil
		}
	case domain.StatusActive:
		if newStatus == domain.StatusComplete {
			return nil
		}
	}
	return InvalidTransitionError{From: oldStatus, To: newStatus}
}

// TransitionActivity advances an activity to Active or Complete, appending the
// matching audit event in the same transaction. eventDate is zero for "now";
// import paths may backfill it. A transition to the current status is a no-op.
func (e Engine) TransitionActivity(ctx context.Context, activityID, target, actor string, eventDate time.Time) (domain.BaselineActivity, error) {
	if target != domain.StatusActive && target != domain.StatusComplete {
		return domain.BaselineActivity{}, fmt.Errorf("target status must be %s or %s", domain.StatusActive, domain.StatusComplete)
	}
	a, err := e.Repo.GetActivity(ctx, activityID)
	if err != nil {
		return a, err
	}
	if a.Status == target {
		return a, nil
	}
	if a.DependsOn != nil {
		pred, err := e.Repo.GetActivity(ctx, *a.DependsOn)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				// fail closed on a dangling edge rather than unblocking the activity
				return a, DependencyNotSatisfiedError{ActivityID: a.ID, PredecessorID: *a.DependsOn, PredecessorName: *a.DependsOn}
			}
			return a, err
		}
		if pred.Status != domain.StatusComplete {
			return a, DependencyNotSatisfiedError{ActivityID: a.ID, PredecessorID: pred.ID, PredecessorName: pred.Name}
		}
	}
	if err := ensureTransition(a.Status, target); err != nil {
		return a, err
	}
	eventType := domain.EventStarted
	if target == domain.StatusComplete {
		eventType = domain.EventFinished
	}
	if eventDate.IsZero() {
		eventDate = e.now().UTC()
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return a, err
	}
	defer tx.Rollback()
	if err := e.Repo.SetActivityStatusTx(ctx, tx, a.ID, target); err != nil {
		return a, err
	}
	if err := e.Events.Append(ctx, tx, a.ID, eventType, eventDate, actor); err != nil {
		return a, err
	}
	if err := tx.Commit(); err != nil {
		return a, err
	}
	a.Status = target
	return a, nil
}

// ResetActivity is the administrative backward transition: it returns an
// activity to NotStarted and logs a Reset event. Not reachable from the
// public transition surface.
func (e Engine) ResetActivity(ctx context.Context, activityID, actor string) (domain.BaselineActivity, error) {
	a, err := e.Repo.GetActivity(ctx, activityID)
	if err != nil {
		return a, err
	}
	if a.Status == domain.StatusNotStarted {
		return a, nil
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return a, err
	}
	defer tx.Rollback()
	if err := e.Repo.SetActivityStatusTx(ctx, tx, a.ID, domain.StatusNotStarted); err != nil {
		return a, err
	}
	if err := e.Events.Append(ctx, tx, a.ID, domain.EventReset, e.now().UTC(), actor); err != nil {
		return a, err
	}
	if err := tx.Commit(); err != nil {
		return a, err
	}
	a.Status = domain.StatusNotStarted
	return a, nil
}

// ExpenditureOptions are parameters for recording a spend.
type ExpenditureOptions struct {
	ProjectID   string
	ActivityID  string
	Category    string
	Description string
	ReferenceID string
	Amount      decimal.Decimal
	SpendDate   time.Time
	ActorID     string
}

// RecordExpenditure appends to the expenditure log. The log is append-only;
// records are never updated or deleted.
func (e Engine) RecordExpenditure(ctx context.Context, opts ExpenditureOptions) (domain.ExpenditureRecord, error) {
	if opts.ProjectID == "" {
		return domain.ExpenditureRecord{}, errors.New("project is required")
	}
	if !opts.Amount.IsPositive() {
		return domain.ExpenditureRecord{}, errors.New("amount must be positive")
	}
	if !e.validCategory(opts.Category) {
		return domain.ExpenditureRecord{}, fmt.Errorf("unknown expenditure category %q", opts.Category)
	}
	if opts.SpendDate.IsZero() {
		return domain.ExpenditureRecord{}, errors.New("spend date is required")
	}
	if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
		return domain.ExpenditureRecord{}, err
	}
	var activityID *string
	if opts.ActivityID != "" {
		a, err := e.Repo.GetActivity(ctx, opts.ActivityID)
		if err != nil {
			return domain.ExpenditureRecord{}, err
		}
		if a.ProjectID != opts.ProjectID {
			return domain.ExpenditureRecord{}, fmt.Errorf("activity %s belongs to a different project", opts.ActivityID)
		}
		activityID = &opts.ActivityID
	}
	rec := domain.ExpenditureRecord{
		ID:          uuid.New().String(),
		ProjectID:   opts.ProjectID,
		ActivityID:  activityID,
		Category:    opts.Category,
		Description: opts.Description,
		ReferenceID: opts.ReferenceID,
		Amount:      opts.Amount,
		SpendDate:   opts.SpendDate,
		RecordedBy:  opts.ActorID,
		RecordedAt:  e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.AppendExpenditure(ctx, rec); err != nil {
		return domain.ExpenditureRecord{}, fmt.Errorf("append expenditure: %w", err)
	}
	return rec, nil
}

func (e Engine) validCategory(c string) bool {
	if e.Config != nil && len(e.Config.Expenditure.Categories) > 0 {
		for _, known := range e.Config.Expenditure.Categories {
			if c == known {
				return true
			}
		}
		return false
	}
	return domain.ValidCategory(c)
}

// RiskOptions are parameters for logging a risk.
type RiskOptions struct {
	ProjectID        string
	Description      string
	Impact           string
	MitigationAction string
	DateIdentified   time.Time
	ActorID          string
}

// AddRisk appends to the project's risk register.
func (e Engine) AddRisk(ctx context.Context, opts RiskOptions) (domain.Risk, error) {
	if opts.ProjectID == "" {
		return domain.Risk{}, errors.New("project is required")
	}
	if opts.Description == "" {
		return domain.Risk{}, errors.New("description is required")
	}
	switch opts.Impact {
	case "":
		opts.Impact = "Medium"
	case "Low", "Medium", "High":
	default:
		return domain.Risk{}, fmt.Errorf("unknown risk impact %q", opts.Impact)
	}
	if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
		return domain.Risk{}, err
	}
	identified := opts.DateIdentified
	if identified.IsZero() {
		identified = e.now().UTC()
	}
	risk := domain.Risk{
		ID:               uuid.New().String(),
		ProjectID:        opts.ProjectID,
		DateIdentified:   identified,
		Description:      opts.Description,
		Impact:           opts.Impact,
		Status:           "Open",
		MitigationAction: opts.MitigationAction,
		RecordedBy:       opts.ActorID,
	}
	if err := e.Repo.InsertRisk(ctx, risk); err != nil {
		return domain.Risk{}, fmt.Errorf("insert risk: %w", err)
	}
	return risk, nil
}

// CloseRisk marks a risk Closed.
func (e Engine) CloseRisk(ctx context.Context, riskID string) error {
	return e.Repo.UpdateRiskStatus(ctx, riskID, "Closed")
}
