package projects

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kis-labs/webbuilder/internal/actionlog"
	"github.com/kis-labs/webbuilder/internal/alias"
	"github.com/kis-labs/webbuilder/internal/gate"
	"github.com/kis-labs/webbuilder/internal/platform/db"
	"github.com/kis-labs/webbuilder/internal/shared"
)

// DefaultDuplicateAttempts bounds the read-compute-insert cycle of Duplicate.
const DefaultDuplicateAttempts = 3

// RepositoryPort defines data access methods for projects.
type RepositoryPort interface {
	Insert(ctx context.Context, p *Project) error
	FindByID(ctx context.Context, ownerID, id int64) (*Project, error)
	FindByAlias(ctx context.Context, ownerID int64, alias string) (*Project, error)
	AliasesLike(ctx context.Context, pattern string) ([]string, error)
	List(ctx context.Context, ownerID int64, q ListQuery) ([]Project, int, error)
}

// RepositoryFactory binds a RepositoryPort to the request's connection.
type RepositoryFactory func(conn db.Conn) RepositoryPort

// Service handles project business logic.
type Service struct {
	repos       RepositoryFactory
	recorder    actionlog.Recorder
	logger      *slog.Logger
	maxAttempts int
}

// NewService builds Service instance. A nil factory uses NewRepository and
// maxAttempts <= 0 uses DefaultDuplicateAttempts.
func NewService(repos RepositoryFactory, recorder actionlog.Recorder, logger *slog.Logger, maxAttempts int) *Service {
	if repos == nil {
		repos = func(conn db.Conn) RepositoryPort { return NewRepository(conn) }
	}
	if recorder == nil {
		recorder = actionlog.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultDuplicateAttempts
	}
	return &Service{repos: repos, recorder: recorder, logger: logger, maxAttempts: maxAttempts}
}

// Create stores a new project owned by the caller. When no alias is given it
// is derived from the name.
func (s *Service) Create(ctx context.Context, g gate.Grant, in CreateInput) (*Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	projectAlias := strings.TrimSpace(in.Alias)
	if projectAlias == "" {
		projectAlias = Slugify(name)
		if projectAlias == "" {
			return nil, fmt.Errorf("%w: alias cannot be derived from name, please provide one", shared.ErrValidation)
		}
	}
	if !aliasFormat.MatchString(projectAlias) {
		return nil, fmt.Errorf("%w: alias should be lowercase and hyphen-separated", shared.ErrValidation)
	}

	p := &Project{
		OwnerID:     g.Principal.ID,
		Name:        name,
		Alias:       projectAlias,
		Description: strings.TrimSpace(in.Description),
		Thumbnail:   stripQuery(in.Thumbnail),
	}
	if err := s.repos(g.Conn).Insert(ctx, p); err != nil {
		return nil, err
	}
	s.recorder.Record(ctx, g.Principal.ID, actionlog.ActionProjectCreate)
	return p, nil
}

// List returns one page of the caller's projects.
func (s *Service) List(ctx context.Context, g gate.Grant, q ListQuery) (*Page, error) {
	if _, ok := sortColumns[q.SortBy]; !ok {
		q.SortBy = SortCreatedAt
	}
	q.Name = strings.TrimSpace(q.Name)
	items, total, err := s.repos(g.Conn).List(ctx, g.Principal.ID, q)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Project{}
	}
	meta := shared.NewPagination(q.Page.Page, q.Page.PerPage, total)
	return &Page{
		Projects:   items,
		TotalPages: meta.TotalPages,
		Count:      meta.Total,
		Page:       meta.Page,
		Limit:      meta.PerPage,
	}, nil
}

// GetByAlias returns the caller's project with projectAlias.
func (s *Service) GetByAlias(ctx context.Context, g gate.Grant, projectAlias string) (*Project, error) {
	projectAlias = strings.TrimSpace(projectAlias)
	if projectAlias == "" {
		return nil, fmt.Errorf("%w: alias is required", shared.ErrValidation)
	}
	return s.repos(g.Conn).FindByAlias(ctx, g.Principal.ID, projectAlias)
}

// Duplicate copies the caller's project id under the next free copy alias.
// Another writer may claim the computed alias first, so the alias is
// recomputed and the insert retried up to maxAttempts times before
// shared.ErrAliasConflict is returned.
func (s *Service) Duplicate(ctx context.Context, g gate.Grant, id int64) (*Project, error) {
	repo := s.repos(g.Conn)
	src, err := repo.FindByID(ctx, g.Principal.ID, id)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		existing, err := repo.AliasesLike(ctx, alias.Pattern(src.Alias))
		if err != nil {
			return nil, err
		}
		dup := &Project{
			OwnerID:     src.OwnerID,
			Name:        "Copy of " + src.Name,
			Alias:       alias.Next(src.Alias, existing),
			Description: src.Description,
			Thumbnail:   src.Thumbnail,
		}
		err = repo.Insert(ctx, dup)
		if err == nil {
			s.recorder.Record(ctx, g.Principal.ID, actionlog.ActionProjectDuplicate)
			return dup, nil
		}
		if !errors.Is(err, shared.ErrAliasConflict) {
			return nil, err
		}
		s.logger.Info("duplicate alias taken, retrying",
			slog.Int64("project_id", src.ID),
			slog.String("alias", dup.Alias),
			slog.Int("attempt", attempt))
	}
	return nil, shared.ErrAliasConflict
}

func stripQuery(thumbnail string) string {
	thumbnail = strings.TrimSpace(thumbnail)
	if i := strings.IndexByte(thumbnail, '?'); i >= 0 {
		return thumbnail[:i]
	}
	return thumbnail
}
