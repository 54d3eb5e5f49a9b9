package projects

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/kis-labs/webbuilder/internal/platform/db"
	"github.com/kis-labs/webbuilder/internal/shared"
)

const projectColumns = `id, owner_id, name, alias, description, thumbnail, created_at, updated_at`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	conn db.Conn
}

// NewRepository constructs a repository over conn.
func NewRepository(conn db.Conn) *Repository {
	return &Repository{conn: conn}
}

// Insert stores p and fills its generated fields. A taken alias yields
// shared.ErrAliasConflict.
func (r *Repository) Insert(ctx context.Context, p *Project) error {
	err := r.conn.QueryRow(ctx,
		`INSERT INTO projects (owner_id, name, alias, description, thumbnail)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		p.OwnerID, p.Name, p.Alias, p.Description, p.Thumbnail,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return shared.ErrAliasConflict
		}
		return fmt.Errorf("projects: insert: %w", err)
	}
	return nil
}

// FindByID returns ownerID's project id.
func (r *Repository) FindByID(ctx context.Context, ownerID, id int64) (*Project, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1 AND owner_id = $2`, id, ownerID)
	return scanProject(row)
}

// FindByAlias returns ownerID's project with alias.
func (r *Repository) FindByAlias(ctx context.Context, ownerID int64, alias string) (*Project, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE alias = $1 AND owner_id = $2`, alias, ownerID)
	return scanProject(row)
}

// AliasesLike returns every alias matching the LIKE pattern, which must use
// backslash escapes.
func (r *Repository) AliasesLike(ctx context.Context, pattern string) ([]string, error) {
	rows, err := r.conn.Query(ctx, `SELECT alias FROM projects WHERE alias LIKE $1 ESCAPE '\'`, pattern)
	if err != nil {
		return nil, fmt.Errorf("projects: aliases: %w", err)
	}
	aliases, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("projects: aliases: %w", err)
	}
	return aliases, nil
}

// List returns one page of ownerID's projects and the total match count.
func (r *Repository) List(ctx context.Context, ownerID int64, q ListQuery) ([]Project, int, error) {
	where := `owner_id = $1`
	args := []any{ownerID}
	if q.Name != "" {
		where += ` AND name ILIKE $2 ESCAPE '\'`
		args = append(args, "%"+likeEscaper.Replace(q.Name)+"%")
	}

	var total int
	if err := r.conn.QueryRow(ctx, `SELECT count(*) FROM projects WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("projects: count: %w", err)
	}

	column, ok := sortColumns[q.SortBy]
	if !ok {
		column = sortColumns[SortCreatedAt]
	}
	limitArg := len(args) + 1
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE %s ORDER BY %s DESC, id DESC LIMIT $%d OFFSET $%d`,
		projectColumns, where, column, limitArg, limitArg+1)
	args = append(args, q.Page.PerPage, q.Page.Offset())

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("projects: list: %w", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Project, error) {
		var p Project
		err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Alias, &p.Description, &p.Thumbnail, &p.CreatedAt, &p.UpdatedAt)
		return p, err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("projects: list: %w", err)
	}
	return list, total, nil
}

func scanProject(row pgx.Row) (*Project, error) {
	var p Project
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Alias, &p.Description, &p.Thumbnail, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFound("Project not found")
		}
		return nil, fmt.Errorf("projects: scan: %w", err)
	}
	return &p, nil
}
