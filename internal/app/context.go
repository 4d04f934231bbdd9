package app

import (
	"context"
	"fmt"

	"costline/internal/domain"
	"costline/internal/repo"
)

// ResolveProject picks the active project for a CLI invocation: the explicit
// override wins, otherwise a single-project workspace resolves to that project.
func ResolveProject(ctx context.Context, projectOverride string, r repo.Repo) (domain.Project, error) {
	if projectOverride != "" {
		return r.GetProject(ctx, projectOverride)
	}
	projects, err := r.ListProjects(ctx)
	if err != nil {
		return domain.Project{}, err
	}
	switch len(projects) {
	case 0:
		return domain.Project{}, fmt.Errorf("no projects in workspace; create one with cl project create")
	case 1:
		return projects[0], nil
	default:
		return domain.Project{}, fmt.Errorf("multiple projects exist; specify --project")
	}
}
