package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"costline/internal/config"
	"costline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const dateLayout = "2006-01-02"

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func nullableDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatDate(*t)
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// --- projects ---

const projectColumns = `id,name,number,COALESCE(client,''),total_budget,start_date,target_end_date,status,created_at,created_by`

func scanProject(scan func(dest ...any) error) (domain.Project, error) {
	var p domain.Project
	var start, end sql.NullString
	err := scan(&p.ID, &p.Name, &p.Number, &p.Client, &p.TotalBudget, &start, &end, &p.Status, &p.CreatedAt, &p.CreatedBy)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if start.Valid && start.String != "" {
		t, err := parseDate(start.String)
		if err != nil {
			return p, fmt.Errorf("project %s start_date: %w", p.ID, err)
		}
		p.StartDate = &t
	}
	if end.Valid && end.String != "" {
		t, err := parseDate(end.String)
		if err != nil {
			return p, fmt.Errorf("project %s target_end_date: %w", p.ID, err)
		}
		p.TargetEndDate = &t
	}
	return p, nil
}

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO projects(id,name,number,client,total_budget,start_date,target_end_date,status,created_at,created_by) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Name, p.Number, nullableString(p.Client), p.TotalBudget, nullableDate(p.StartDate), nullableDate(p.TargetEndDate), p.Status, p.CreatedAt, p.CreatedBy)
	return err
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=?`, id)
	return scanProject(row.Scan)
}

func (r Repo) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// --- baseline activities ---

const activityColumns = `id,project_id,name,planned_start,planned_finish,budgeted_cost,depends_on,status,sort_order`

func scanActivity(scan func(dest ...any) error) (domain.BaselineActivity, error) {
	var a domain.BaselineActivity
	var start, finish string
	var dep sql.NullString
	err := scan(&a.ID, &a.ProjectID, &a.Name, &start, &finish, &a.BudgetedCost, &dep, &a.Status, &a.SortOrder)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if a.PlannedStart, err = parseDate(start); err != nil {
		return a, fmt.Errorf("activity %s planned_start: %w", a.ID, err)
	}
	if a.PlannedFinish, err = parseDate(finish); err != nil {
		return a, fmt.Errorf("activity %s planned_finish: %w", a.ID, err)
	}
	if dep.Valid && dep.String != "" {
		a.DependsOn = &dep.String
	}
	return a, nil
}

func (r Repo) InsertActivityTx(ctx context.Context, tx *sql.Tx, a domain.BaselineActivity) error {
	var dep any
	if a.DependsOn != nil {
		dep = *a.DependsOn
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO baseline_activities(id,project_id,name,planned_start,planned_finish,budgeted_cost,depends_on,status,sort_order) VALUES (?,?,?,?,?,?,?,?,?)`,
		a.ID, a.ProjectID, a.Name, formatDate(a.PlannedStart), formatDate(a.PlannedFinish), a.BudgetedCost, dep, a.Status, a.SortOrder)
	return err
}

func (r Repo) GetActivity(ctx context.Context, id string) (domain.BaselineActivity, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+activityColumns+` FROM baseline_activities WHERE id=?`, id)
	return scanActivity(row.Scan)
}

// GetBaselineSchedule returns all activities of a project in schedule order.
func (r Repo) GetBaselineSchedule(ctx context.Context, projectID string) ([]domain.BaselineActivity, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+activityColumns+` FROM baseline_activities WHERE project_id=? ORDER BY sort_order, planned_start, id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.BaselineActivity
	for rows.Next() {
		a, err := scanActivity(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) SetActivityStatusTx(ctx context.Context, tx *sql.Tx, id, status string) error {
	res, err := tx.ExecContext(ctx, `UPDATE baseline_activities SET status=? WHERE id=?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- expenditures ---

const expenditureColumns = `id,project_id,activity_id,category,COALESCE(description,''),COALESCE(reference_id,''),amount,spend_date,recorded_by,recorded_at`

func scanExpenditure(scan func(dest ...any) error) (domain.ExpenditureRecord, error) {
	var e domain.ExpenditureRecord
	var activityID sql.NullString
	var spend string
	err := scan(&e.ID, &e.ProjectID, &activityID, &e.Category, &e.Description, &e.ReferenceID, &e.Amount, &spend, &e.RecordedBy, &e.RecordedAt)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	if err != nil {
		return e, err
	}
	if e.SpendDate, err = parseDate(spend); err != nil {
		return e, fmt.Errorf("expenditure %s spend_date: %w", e.ID, err)
	}
	if activityID.Valid && activityID.String != "" {
		e.ActivityID = &activityID.String
	}
	return e, nil
}

func (r Repo) AppendExpenditure(ctx context.Context, e domain.ExpenditureRecord) error {
	var activityID any
	if e.ActivityID != nil {
		activityID = *e.ActivityID
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO expenditures(id,project_id,activity_id,category,description,reference_id,amount,spend_date,recorded_by,recorded_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.ProjectID, activityID, e.Category, nullableString(e.Description), nullableString(e.ReferenceID), e.Amount, formatDate(e.SpendDate), e.RecordedBy, e.RecordedAt)
	return err
}

func (r Repo) GetExpenditures(ctx context.Context, projectID string) ([]domain.ExpenditureRecord, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+expenditureColumns+` FROM expenditures WHERE project_id=? ORDER BY spend_date, id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ExpenditureRecord
	for rows.Next() {
		e, err := scanExpenditure(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// --- activity events ---

// GetActivityEvents returns the audit trail for every activity of a project,
// oldest first. Audit display only; never the source of truth for status.
func (r Repo) GetActivityEvents(ctx context.Context, projectID string) ([]domain.ActivityEvent, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT ae.id,ae.activity_id,ae.event_type,ae.event_date,ae.recorded_by,ae.recorded_at
FROM activity_events ae JOIN baseline_activities ba ON ae.activity_id = ba.id
WHERE ba.project_id=? ORDER BY ae.id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ActivityEvent
	for rows.Next() {
		var ev domain.ActivityEvent
		var date string
		if err := rows.Scan(&ev.ID, &ev.ActivityID, &ev.EventType, &date, &ev.RecordedBy, &ev.RecordedAt); err != nil {
			return nil, err
		}
		if ev.EventDate, err = parseDate(date); err != nil {
			return nil, fmt.Errorf("event %d event_date: %w", ev.ID, err)
		}
		res = append(res, ev)
	}
	return res, rows.Err()
}

// --- risks ---

func (r Repo) InsertRisk(ctx context.Context, risk domain.Risk) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO risks(id,project_id,date_identified,description,impact,status,mitigation_action,recorded_by) VALUES (?,?,?,?,?,?,?,?)`,
		risk.ID, risk.ProjectID, formatDate(risk.DateIdentified), risk.Description, risk.Impact, risk.Status, nullableString(risk.MitigationAction), risk.RecordedBy)
	return err
}

func (r Repo) ListRisks(ctx context.Context, projectID string) ([]domain.Risk, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,project_id,date_identified,description,impact,status,COALESCE(mitigation_action,''),recorded_by FROM risks WHERE project_id=? ORDER BY date_identified DESC, id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Risk
	for rows.Next() {
		var risk domain.Risk
		var identified string
		if err := rows.Scan(&risk.ID, &risk.ProjectID, &identified, &risk.Description, &risk.Impact, &risk.Status, &risk.MitigationAction, &risk.RecordedBy); err != nil {
			return nil, err
		}
		if risk.DateIdentified, err = parseDate(identified); err != nil {
			return nil, fmt.Errorf("risk %s date_identified: %w", risk.ID, err)
		}
		res = append(res, risk)
	}
	return res, rows.Err()
}

func (r Repo) UpdateRiskStatus(ctx context.Context, id, status string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE risks SET status=? WHERE id=?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- analytics config ---

func (r Repo) UpsertAnalyticsConfig(ctx context.Context, projectID string, cfg *config.Config) error {
	return upsertAnalyticsConfig(ctx, r.DB, nil, projectID, cfg)
}

func (r Repo) UpsertAnalyticsConfigTx(ctx context.Context, tx *sql.Tx, projectID string, cfg *config.Config) error {
	return upsertAnalyticsConfig(ctx, nil, tx, projectID, cfg)
}

func upsertAnalyticsConfig(ctx context.Context, db *sql.DB, tx *sql.Tx, projectID string, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config nil")
	}
	cfg.Project.ID = projectID
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	exec := func(query string, args ...any) (sql.Result, error) {
		if tx != nil {
			return tx.ExecContext(ctx, query, args...)
		}
		return db.ExecContext(ctx, query, args...)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = exec(`INSERT INTO analytics_configs(project_id,config_json,created_at,updated_at) VALUES (?,?,?,?)
ON CONFLICT(project_id) DO UPDATE SET config_json=excluded.config_json, updated_at=excluded.updated_at`, projectID, string(payload), now, now)
	return err
}

func (r Repo) GetAnalyticsConfig(ctx context.Context, projectID string) (*config.Config, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT config_json FROM analytics_configs WHERE project_id=?`, projectID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return nil, err
	}
	if cfg.Project.ID == "" {
		cfg.Project.ID = projectID
	}
	return &cfg, cfg.Validate()
}
