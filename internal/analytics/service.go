package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"costline/internal/config"
	"costline/internal/repo"
)

// Service wires the calculators to the Record Store. All methods are read-only
// and side-effect-free; they may run concurrently across projects.
type Service struct {
	Repo repo.Repo
	Log  *logrus.Logger
	Now  func() time.Time
}

func NewService(r repo.Repo) Service {
	return Service{Repo: r, Log: logrus.StandardLogger(), Now: time.Now}
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Service) log() *logrus.Logger {
	if s.Log != nil {
		return s.Log
	}
	return logrus.StandardLogger()
}

// calculator loads the project's analytics config, falling back to defaults
// when none was stored.
func (s Service) calculator(ctx context.Context, projectID string) Calculator {
	cfg, err := s.Repo.GetAnalyticsConfig(ctx, projectID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			s.log().WithField("project_id", projectID).WithError(err).Warn("analytics config unreadable, using defaults")
		}
		cfg = config.Default(projectID)
	}
	return Calculator{Cfg: cfg}
}

// ComputeMetrics returns the earned-value snapshot for one project, or
// repo.ErrNotFound when the identifier does not resolve.
func (s Service) ComputeMetrics(ctx context.Context, projectID string) (Metrics, error) {
	p, err := s.Repo.GetProject(ctx, projectID)
	if err != nil {
		return Metrics{}, err
	}
	activities, err := s.Repo.GetBaselineSchedule(ctx, projectID)
	if err != nil {
		return Metrics{}, err
	}
	expenditures, err := s.Repo.GetExpenditures(ctx, projectID)
	if err != nil {
		return Metrics{}, err
	}
	return s.calculator(ctx, projectID).Metrics(p, activities, expenditures, s.now()), nil
}

// ComputeBurndown returns the budget trajectory for one project, or
// repo.ErrNotFound when the identifier does not resolve.
func (s Service) ComputeBurndown(ctx context.Context, projectID string) (Burndown, error) {
	p, err := s.Repo.GetProject(ctx, projectID)
	if err != nil {
		return Burndown{}, err
	}
	expenditures, err := s.Repo.GetExpenditures(ctx, projectID)
	if err != nil {
		return Burndown{}, err
	}
	return s.calculator(ctx, projectID).Burndown(p, expenditures, s.now()), nil
}

// SummarizeAll computes metrics for every project, ordered by project number.
// Projects whose computation fails are logged and omitted: one bad project
// must not blank the whole portfolio view.
func (s Service) SummarizeAll(ctx context.Context) ([]Metrics, error) {
	projects, err := s.Repo.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	summary := make([]Metrics, 0, len(projects))
	for _, p := range projects {
		m, err := s.ComputeMetrics(ctx, p.ID)
		if err != nil {
			s.log().WithFields(logrus.Fields{"project_id": p.ID, "project_number": p.Number}).
				WithError(err).Warn("metrics unavailable, omitting project from portfolio summary")
			continue
		}
		summary = append(summary, m)
	}
	return summary, nil
}
