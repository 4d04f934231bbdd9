package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"costline/internal/analytics"
	"costline/internal/domain"
	"costline/internal/engine"
	"costline/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine    engine.Engine
	Analytics analytics.Service
	BasePath  string
	Log       *logrus.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"dependency_not_satisfied"`
	Message string         `json:"message" example:"cannot progress: predecessor \"Trenching\" must be Complete first"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the analytics engine API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}

	router := chi.NewRouter()
	hcfg := huma.DefaultConfig("Costline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerProjects(group, cfg.Engine)
	registerActivities(group, cfg.Engine)
	registerExpenditures(group, cfg.Engine)
	registerRisks(group, cfg.Engine)
	registerAnalytics(group, cfg.Analytics, cfg.Log)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	default:
		return "internal_error"
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var dep engine.DependencyNotSatisfiedError
	if errors.As(err, &dep) {
		return newAPIError(http.StatusUnprocessableEntity, "dependency_not_satisfied", err.Error(), map[string]any{
			"activity_id":      dep.ActivityID,
			"predecessor_id":   dep.PredecessorID,
			"predecessor_name": dep.PredecessorName,
		})
	}
	var cyc engine.DependencyCycleError
	if errors.As(err, &cyc) {
		return newAPIError(http.StatusUnprocessableEntity, "dependency_cycle", err.Error(), map[string]any{"path": cyc.Path})
	}
	var inv engine.InvalidTransitionError
	if errors.As(err, &inv) {
		return newAPIError(http.StatusUnprocessableEntity, "invalid_transition", err.Error(), map[string]any{"from": inv.From, "to": inv.To})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "unique"):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "required") ||
		strings.Contains(lowered, "must") || strings.Contains(lowered, "unknown") ||
		strings.Contains(lowered, "precedes") || strings.Contains(lowered, "different project") ||
		strings.Contains(lowered, "itself"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body struct {
			Status string `json:"status" example:"ok"`
		}
	}, error) {
		resp := &struct {
			Body struct {
				Status string `json:"status" example:"ok"`
			}
		}{}
		resp.Body.Status = "ok"
		return resp, nil
	})
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Register a project",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest
	}) (*struct{ Body domain.Project }, error) {
		start, err := parseOptionalDate("start_date", input.Body.StartDate)
		if err != nil {
			return nil, handleError(err)
		}
		end, err := parseOptionalDate("target_end_date", input.Body.TargetEndDate)
		if err != nil {
			return nil, handleError(err)
		}
		p, err := e.CreateProject(ctx, engine.ProjectCreateOptions{
			ID:            input.Body.ID,
			Name:          input.Body.Name,
			Number:        input.Body.Number,
			Client:        input.Body.Client,
			TotalBudget:   decimal.NewFromFloat(input.Body.TotalBudget),
			StartDate:     start,
			TargetEndDate: end,
			ActorID:       input.Body.Actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.Project }{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body struct {
			Projects []domain.Project `json:"projects"`
		}
	}, error) {
		items, err := e.Repo.ListProjects(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		resp := &struct {
			Body struct {
				Projects []domain.Project `json:"projects"`
			}
		}{}
		resp.Body.Projects = items
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{id}",
		Summary:     "Get a project",
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{ Body domain.Project }, error) {
		p, err := e.Repo.GetProject(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.Project }{Body: p}, nil
	})
}

func registerActivities(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-activity",
		Method:        http.MethodPost,
		Path:          "/projects/{id}/activities",
		Summary:       "Add a baseline activity",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body CreateActivityRequest
	}) (*struct{ Body domain.BaselineActivity }, error) {
		start, err := parseDate("planned_start", input.Body.PlannedStart)
		if err != nil {
			return nil, handleError(err)
		}
		finish, err := parseDate("planned_finish", input.Body.PlannedFinish)
		if err != nil {
			return nil, handleError(err)
		}
		a, err := e.AddActivity(ctx, engine.ActivityCreateOptions{
			ID:            input.Body.ID,
			ProjectID:     input.ID,
			Name:          input.Body.Name,
			PlannedStart:  start,
			PlannedFinish: finish,
			BudgetedCost:  decimal.NewFromFloat(input.Body.BudgetedCost),
			DependsOn:     input.Body.DependsOn,
			SortOrder:     input.Body.SortOrder,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.BaselineActivity }{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-schedule",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/schedule",
		Summary:     "Get the baseline schedule",
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body struct {
			Activities []domain.BaselineActivity `json:"activities"`
		}
	}, error) {
		if _, err := e.Repo.GetProject(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.GetBaselineSchedule(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := &struct {
			Body struct {
				Activities []domain.BaselineActivity `json:"activities"`
			}
		}{}
		resp.Body.Activities = items
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-activity",
		Method:      http.MethodPost,
		Path:        "/activities/{id}/transition",
		Summary:     "Advance an activity's status",
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body TransitionRequest
	}) (*struct{ Body domain.BaselineActivity }, error) {
		eventDate, err := parseOptionalDate("event_date", input.Body.EventDate)
		if err != nil {
			return nil, handleError(err)
		}
		var backfill time.Time
		if eventDate != nil {
			backfill = *eventDate
		}
		a, err := e.TransitionActivity(ctx, input.ID, input.Body.TargetStatus, input.Body.Actor, backfill)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.BaselineActivity }{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-activity-events",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/events",
		Summary:     "Get the activity audit trail",
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body struct {
			Events []domain.ActivityEvent `json:"events"`
		}
	}, error) {
		if _, err := e.Repo.GetProject(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.GetActivityEvents(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := &struct {
			Body struct {
				Events []domain.ActivityEvent `json:"events"`
			}
		}{}
		resp.Body.Events = items
		return resp, nil
	})
}

func registerExpenditures(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "record-expenditure",
		Method:        http.MethodPost,
		Path:          "/projects/{id}/expenditures",
		Summary:       "Record an expenditure",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body RecordExpenditureRequest
	}) (*struct{ Body domain.ExpenditureRecord }, error) {
		spend, err := parseDate("spend_date", input.Body.SpendDate)
		if err != nil {
			return nil, handleError(err)
		}
		rec, err := e.RecordExpenditure(ctx, engine.ExpenditureOptions{
			ProjectID:   input.ID,
			ActivityID:  input.Body.ActivityID,
			Category:    input.Body.Category,
			Description: input.Body.Description,
			ReferenceID: input.Body.ReferenceID,
			Amount:      decimal.NewFromFloat(input.Body.Amount),
			SpendDate:   spend,
			ActorID:     input.Body.Actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.ExpenditureRecord }{Body: rec}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-expenditures",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/expenditures",
		Summary:     "List expenditures",
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body struct {
			Expenditures []domain.ExpenditureRecord `json:"expenditures"`
		}
	}, error) {
		if _, err := e.Repo.GetProject(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.GetExpenditures(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := &struct {
			Body struct {
				Expenditures []domain.ExpenditureRecord `json:"expenditures"`
			}
		}{}
		resp.Body.Expenditures = items
		return resp, nil
	})
}

func registerRisks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-risk",
		Method:        http.MethodPost,
		Path:          "/projects/{id}/risks",
		Summary:       "Log a risk",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body AddRiskRequest
	}) (*struct{ Body domain.Risk }, error) {
		identified, err := parseOptionalDate("date_identified", input.Body.DateIdentified)
		if err != nil {
			return nil, handleError(err)
		}
		opts := engine.RiskOptions{
			ProjectID:        input.ID,
			Description:      input.Body.Description,
			Impact:           input.Body.Impact,
			MitigationAction: input.Body.MitigationAction,
			ActorID:          input.Body.Actor,
		}
		if identified != nil {
			opts.DateIdentified = *identified
		}
		risk, err := e.AddRisk(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.Risk }{Body: risk}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-risks",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/risks",
		Summary:     "List risks, newest first",
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body struct {
			Risks []domain.Risk `json:"risks"`
		}
	}, error) {
		if _, err := e.Repo.GetProject(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListRisks(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := &struct {
			Body struct {
				Risks []domain.Risk `json:"risks"`
			}
		}{}
		resp.Body.Risks = items
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "close-risk",
		Method:      http.MethodPost,
		Path:        "/risks/{id}/close",
		Summary:     "Close a risk",
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body struct {
			Status string `json:"status" example:"Closed"`
		}
	}, error) {
		if err := e.CloseRisk(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		resp := &struct {
			Body struct {
				Status string `json:"status" example:"Closed"`
			}
		}{}
		resp.Body.Status = "Closed"
		return resp, nil
	})
}

func registerAnalytics(api huma.API, svc analytics.Service, log *logrus.Logger) {
	huma.Register(api, huma.Operation{
		OperationID: "compute-metrics",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/metrics",
		Summary:     "Earned-value metrics snapshot",
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{ Body analytics.Metrics }, error) {
		m, err := svc.ComputeMetrics(ctx, input.ID)
		if err != nil {
			if !errors.Is(err, repo.ErrNotFound) {
				log.WithField("project_id", input.ID).WithError(err).Error("metrics computation failed")
			}
			return nil, handleError(err)
		}
		return &struct{ Body analytics.Metrics }{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "compute-burndown",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/burndown",
		Summary:     "Budget burndown projection",
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{ Body analytics.Burndown }, error) {
		b, err := svc.ComputeBurndown(ctx, input.ID)
		if err != nil {
			if !errors.Is(err, repo.ErrNotFound) {
				log.WithField("project_id", input.ID).WithError(err).Error("burndown computation failed")
			}
			return nil, handleError(err)
		}
		return &struct{ Body analytics.Burndown }{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "portfolio-summary",
		Method:      http.MethodGet,
		Path:        "/portfolio/summary",
		Summary:     "Metrics for every project",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body struct {
			Projects []analytics.Metrics `json:"projects"`
		}
	}, error) {
		items, err := svc.SummarizeAll(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		resp := &struct {
			Body struct {
				Projects []analytics.Metrics `json:"projects"`
			}
		}{}
		resp.Body.Projects = items
		return resp, nil
	})
}
