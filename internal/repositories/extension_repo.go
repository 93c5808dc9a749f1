package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tick42/quicksilver/internal/database"
	"github.com/tick42/quicksilver/internal/models"
)

type ExtensionRepository struct {
	db *database.DB
}

func NewExtensionRepository(db *database.DB) *ExtensionRepository {
	return &ExtensionRepository{db: db}
}

// Every read joins users so listings carry the owner's name without a
// second round trip.
const extensionColumns = `
	e.id, e.name, e.description, e.version, e.owner_id, u.username,
	e.state, e.featured, e.downloads, e.logo, e.cover, e.file,
	e.github_link, e.last_commit, e.open_issues, e.pull_requests,
	e.last_success, e.last_fail, e.fail_message,
	e.created_at, e.updated_at`

const extensionSelect = `SELECT` + extensionColumns + ` FROM extensions e JOIN users u ON u.id = e.owner_id`

func scanExtensionRow(scanner rowScanner) (*models.Extension, error) {
	var ext models.Extension
	var githubLink *string
	var lastCommit, lastSuccess, lastFail *time.Time
	var openIssues, pullRequests int
	var failMessage *string

	err := scanner.Scan(
		&ext.ID, &ext.Name, &ext.Description, &ext.Version, &ext.OwnerID, &ext.OwnerName,
		&ext.State, &ext.Featured, &ext.Downloads, &ext.Logo, &ext.Cover, &ext.File,
		&githubLink, &lastCommit, &openIssues, &pullRequests,
		&lastSuccess, &lastFail, &failMessage,
		&ext.CreatedAt, &ext.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if githubLink != nil {
		ext.GitHub = &models.GitHubStats{
			Link:         *githubLink,
			LastCommit:   lastCommit,
			OpenIssues:   openIssues,
			PullRequests: pullRequests,
			LastSuccess:  lastSuccess,
			LastFail:     lastFail,
			FailMessage:  failMessage,
		}
	}

	return &ext, nil
}

func scanExtensionRows(rows pgx.Rows) ([]*models.Extension, error) {
	defer rows.Close()

	extensions := make([]*models.Extension, 0)

	for rows.Next() {
		ext, err := scanExtensionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan extension: %w", err)
		}
		extensions = append(extensions, ext)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return extensions, nil
}

func (r *ExtensionRepository) GetByID(ctx context.Context, id int64) (*models.Extension, error) {
	query := extensionSelect + ` WHERE e.id = $1`

	return scanExtensionRow(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *ExtensionRepository) GetByName(ctx context.Context, name string) (*models.Extension, error) {
	query := extensionSelect + ` WHERE e.name = $1`

	return scanExtensionRow(r.db.Pool.QueryRow(ctx, query, name))
}

func (r *ExtensionRepository) Create(ctx context.Context, ext *models.Extension) (*models.Extension, error) {
	now := time.Now()
	ext.CreatedAt = now
	ext.UpdatedAt = now

	if ext.State == "" {
		ext.State = models.ExtensionStateUnpublished
	}

	var githubLink *string
	if ext.GitHub != nil {
		githubLink = &ext.GitHub.Link
	}

	query := `
		WITH inserted AS (
			INSERT INTO extensions (
				name, description, version, owner_id, state, featured, downloads,
				logo, cover, file, github_link, created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, false, 0, $6, $7, $8, $9, $10, $11)
			RETURNING *
		)
		SELECT` + extensionColumns + ` FROM inserted e JOIN users u ON u.id = e.owner_id`

	return scanExtensionRow(r.db.Pool.QueryRow(ctx, query,
		ext.Name, ext.Description, ext.Version, ext.OwnerID, ext.State,
		ext.Logo, ext.Cover, ext.File, githubLink, ext.CreatedAt, ext.UpdatedAt,
	))
}

// Update writes the merged record back, github stat columns included, so a
// link change that reset the stats in memory is also reset in the row.
func (r *ExtensionRepository) Update(ctx context.Context, id int64, ext *models.Extension) (*models.Extension, error) {
	ext.UpdatedAt = time.Now()

	var githubLink *string
	var lastCommit, lastSuccess, lastFail *time.Time
	var openIssues, pullRequests int
	var failMessage *string
	if ext.GitHub != nil {
		githubLink = &ext.GitHub.Link
		lastCommit = ext.GitHub.LastCommit
		openIssues = ext.GitHub.OpenIssues
		pullRequests = ext.GitHub.PullRequests
		lastSuccess = ext.GitHub.LastSuccess
		lastFail = ext.GitHub.LastFail
		failMessage = ext.GitHub.FailMessage
	}

	query := `
		WITH updated AS (
			UPDATE extensions SET
				name = $1, description = $2, version = $3,
				logo = $4, cover = $5, file = $6,
				github_link = $7, last_commit = $8, open_issues = $9,
				pull_requests = $10, last_success = $11, last_fail = $12,
				fail_message = $13, updated_at = $14
			WHERE id = $15
			RETURNING *
		)
		SELECT` + extensionColumns + ` FROM updated e JOIN users u ON u.id = e.owner_id`

	return scanExtensionRow(r.db.Pool.QueryRow(ctx, query,
		ext.Name, ext.Description, ext.Version,
		ext.Logo, ext.Cover, ext.File,
		githubLink, lastCommit, openIssues, pullRequests,
		lastSuccess, lastFail, failMessage, ext.UpdatedAt, id,
	))
}

func (r *ExtensionRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM extensions WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// SetPublishedState transitions an extension between PUBLISHED and
// UNPUBLISHED. Recalling an extension clears its featured flag in the same
// statement so a featured-but-hidden row can never be observed.
func (r *ExtensionRepository) SetPublishedState(ctx context.Context, id int64, state string) (*models.Extension, error) {
	query := `
		WITH updated AS (
			UPDATE extensions SET
				state = $1,
				featured = CASE WHEN $1 = 'PUBLISHED' THEN featured ELSE false END,
				updated_at = $2
			WHERE id = $3
			RETURNING *
		)
		SELECT` + extensionColumns + ` FROM updated e JOIN users u ON u.id = e.owner_id`

	return scanExtensionRow(r.db.Pool.QueryRow(ctx, query, state, time.Now(), id))
}

// SetFeatured flips the featured flag. Featuring is conditional on the row
// being PUBLISHED; the caller distinguishes "missing" from "unpublished"
// via the returned error.
func (r *ExtensionRepository) SetFeatured(ctx context.Context, id int64, featured bool) (*models.Extension, error) {
	query := `
		WITH updated AS (
			UPDATE extensions SET featured = $1, updated_at = $2
			WHERE id = $3 AND (NOT $1 OR state = 'PUBLISHED')
			RETURNING *
		)
		SELECT` + extensionColumns + ` FROM updated e JOIN users u ON u.id = e.owner_id`

	ext, err := scanExtensionRow(r.db.Pool.QueryRow(ctx, query, featured, time.Now(), id))
	if errors.Is(err, models.ErrNotFound) {
		// The row may exist but be unpublished.
		if _, getErr := r.GetByID(ctx, id); getErr == nil {
			return nil, models.ErrInvalidState
		}
		return nil, models.ErrNotFound
	}

	return ext, err
}

// IncrementDownloads bumps the download counter and returns the fresh row.
func (r *ExtensionRepository) IncrementDownloads(ctx context.Context, id int64) (*models.Extension, error) {
	query := `
		WITH updated AS (
			UPDATE extensions SET downloads = downloads + 1, updated_at = $1
			WHERE id = $2
			RETURNING *
		)
		SELECT` + extensionColumns + ` FROM updated e JOIN users u ON u.id = e.owner_id`

	return scanExtensionRow(r.db.Pool.QueryRow(ctx, query, time.Now(), id))
}

// UpdateGitHubStats persists the result of a repository sync, success or
// failure, without touching updated_at so syncs stay invisible to clients.
func (r *ExtensionRepository) UpdateGitHubStats(ctx context.Context, id int64, stats *models.GitHubStats) error {
	query := `
		UPDATE extensions SET
			last_commit = $1, open_issues = $2, pull_requests = $3,
			last_success = $4, last_fail = $5, fail_message = $6
		WHERE id = $7`

	result, err := r.db.Pool.Exec(ctx, query,
		stats.LastCommit, stats.OpenIssues, stats.PullRequests,
		stats.LastSuccess, stats.LastFail, stats.FailMessage, id,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// ListTracked returns the id and repository link of every extension that has
// a link to sync against.
func (r *ExtensionRepository) ListTracked(ctx context.Context) ([]*models.Extension, error) {
	query := extensionSelect + ` WHERE e.github_link IS NOT NULL ORDER BY e.id`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query extensions: %w", err)
	}

	return scanExtensionRows(rows)
}

func (r *ExtensionRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*models.Extension, error) {
	query := extensionSelect + ` WHERE e.owner_id = $1 ORDER BY e.created_at DESC`

	rows, err := r.db.Pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query extensions: %w", err)
	}

	return scanExtensionRows(rows)
}

// orderClause maps a catalog ordering key to SQL. Keys are validated at the
// service boundary; anything else falls back to newest-first.
func orderClause(orderBy string) string {
	switch orderBy {
	case models.OrderByDownloads:
		return "e.downloads DESC"
	case models.OrderByName:
		return "e.name ASC"
	case models.OrderByLastCommit:
		return "e.last_commit DESC NULLS LAST"
	default:
		return "e.created_at DESC"
	}
}

// List returns one page of the catalog matching the filter, plus the total
// match count before pagination.
func (r *ExtensionRepository) List(ctx context.Context, filter models.ExtensionFilter) ([]*models.Extension, int, error) {
	conditions := make([]string, 0)
	args := make([]interface{}, 0)

	if filter.Name != "" {
		args = append(args, "%"+filter.Name+"%")
		conditions = append(conditions, fmt.Sprintf("e.name ILIKE $%d", len(args)))
	}
	if filter.State != "" {
		args = append(args, filter.State)
		conditions = append(conditions, fmt.Sprintf("e.state = $%d", len(args)))
	}
	if filter.Featured != nil {
		args = append(args, *filter.Featured)
		conditions = append(conditions, fmt.Sprintf("e.featured = $%d", len(args)))
	}
	if filter.OwnerID != 0 {
		args = append(args, filter.OwnerID)
		conditions = append(conditions, fmt.Sprintf("e.owner_id = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM extensions e` + where
	if err := r.db.Pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, database.MapPostgresError(err)
	}

	query := extensionSelect + where + ` ORDER BY ` + orderClause(filter.OrderBy)
	if filter.PerPage > 0 {
		args = append(args, filter.PerPage)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		args = append(args, filter.Offset())
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query extensions: %w", err)
	}

	extensions, err := scanExtensionRows(rows)
	if err != nil {
		return nil, 0, err
	}

	return extensions, total, nil
}
