package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/triage-service/internal/domain"
)

// WorkItemRepository encapsulates work item persistence for the triage
// pipeline. Save only writes the pipeline-owned fields.
type WorkItemRepository interface {
	GetByID(ctx context.Context, id string) (*domain.WorkItem, error)
	GetOpenItems(ctx context.Context) ([]domain.WorkItem, error)
	Save(ctx context.Context, item *domain.WorkItem) error
	FindDuplicateCandidates(ctx context.Context, contentHash string, since time.Time, excludeID string) ([]domain.WorkItem, error)
	HasChildren(ctx context.Context, id string) (bool, error)
	CountOpen(ctx context.Context) (int, error)
	CountOpenByAssignee(ctx context.Context) (map[string]int, error)
	DailyCreatedCounts(ctx context.Context, since time.Time) ([]domain.InflowPoint, error)
	CompletedPairCounts(ctx context.Context) (map[string]map[string]int, error)
}

type workItemRepository struct {
	pool *pgxpool.Pool
}

// NewWorkItemRepository instantiates the repository.
func NewWorkItemRepository(pool *pgxpool.Pool) WorkItemRepository {
	return &workItemRepository{pool: pool}
}

const workItemColumns = `id, requester_id, assignee_id, description, status, effort_points,
               priority_score, tags, parent_id, content_hash, completion_target,
               custom_fields, created_at, updated_at`

func (r *workItemRepository) GetByID(ctx context.Context, id string) (*domain.WorkItem, error) {
	query := `SELECT ` + workItemColumns + ` FROM work_items WHERE id=$1`
	var item domain.WorkItem
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&item.ID,
		&item.RequesterID,
		&item.AssigneeID,
		&item.Description,
		&item.Status,
		&item.EffortPoints,
		&item.PriorityScore,
		&item.Tags,
		&item.ParentID,
		&item.ContentHash,
		&item.CompletionTarget,
		&item.CustomFields,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *workItemRepository) GetOpenItems(ctx context.Context) ([]domain.WorkItem, error) {
	query := `SELECT ` + workItemColumns + `
        FROM work_items
        WHERE status NOT IN ('COMPLETED','FAILED')
        ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWorkItems(rows)
}

func (r *workItemRepository) Save(ctx context.Context, item *domain.WorkItem) error {
	const query = `
        UPDATE work_items SET description=$1, effort_points=$2, priority_score=$3,
            tags=$4, parent_id=$5, content_hash=$6, assignee_id=$7, updated_at=NOW()
        WHERE id=$8`
	cmd, err := r.pool.Exec(ctx, query,
		item.Description,
		item.EffortPoints,
		item.PriorityScore,
		item.Tags,
		item.ParentID,
		item.ContentHash,
		item.AssigneeID,
		item.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *workItemRepository) FindDuplicateCandidates(ctx context.Context, contentHash string, since time.Time, excludeID string) ([]domain.WorkItem, error) {
	query := `SELECT ` + workItemColumns + `
        FROM work_items
        WHERE content_hash=$1
          AND created_at >= $2
          AND id != $3
          AND status NOT IN ('COMPLETED','FAILED')
        ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, contentHash, since, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWorkItems(rows)
}

func (r *workItemRepository) HasChildren(ctx context.Context, id string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM work_items WHERE parent_id=$1)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *workItemRepository) CountOpen(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM work_items WHERE status NOT IN ('COMPLETED','FAILED')`
	var count int
	if err := r.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *workItemRepository) CountOpenByAssignee(ctx context.Context) (map[string]int, error) {
	const query = `
        SELECT assignee_id, COUNT(*)
        FROM work_items
        WHERE assignee_id IS NOT NULL
          AND status NOT IN ('COMPLETED','FAILED')
        GROUP BY assignee_id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var agentID string
		var count int
		if err := rows.Scan(&agentID, &count); err != nil {
			return nil, err
		}
		result[agentID] = count
	}
	return result, rows.Err()
}

func (r *workItemRepository) DailyCreatedCounts(ctx context.Context, since time.Time) ([]domain.InflowPoint, error) {
	const query = `
        SELECT date_trunc('day', created_at) AS day, COUNT(*)
        FROM work_items
        WHERE created_at >= $1
        GROUP BY day
        ORDER BY day`
	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var series []domain.InflowPoint
	for rows.Next() {
		var point domain.InflowPoint
		if err := rows.Scan(&point.Date, &point.Count); err != nil {
			return nil, err
		}
		series = append(series, point)
	}
	return series, rows.Err()
}

func (r *workItemRepository) CompletedPairCounts(ctx context.Context) (map[string]map[string]int, error) {
	const query = `
        SELECT requester_id, assignee_id, COUNT(*)
        FROM work_items
        WHERE assignee_id IS NOT NULL AND status='COMPLETED'
        GROUP BY requester_id, assignee_id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]map[string]int)
	for rows.Next() {
		var requesterID, agentID string
		var count int
		if err := rows.Scan(&requesterID, &agentID, &count); err != nil {
			return nil, err
		}
		if result[requesterID] == nil {
			result[requesterID] = make(map[string]int)
		}
		result[requesterID][agentID] = count
	}
	return result, rows.Err()
}

func scanWorkItems(rows pgx.Rows) ([]domain.WorkItem, error) {
	var result []domain.WorkItem
	for rows.Next() {
		var item domain.WorkItem
		if err := rows.Scan(
			&item.ID,
			&item.RequesterID,
			&item.AssigneeID,
			&item.Description,
			&item.Status,
			&item.EffortPoints,
			&item.PriorityScore,
			&item.Tags,
			&item.ParentID,
			&item.ContentHash,
			&item.CompletionTarget,
			&item.CustomFields,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}
