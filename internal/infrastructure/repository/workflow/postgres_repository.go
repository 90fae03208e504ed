package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "line-dify-bridge/internal/domain/workflow"
	"line-dify-bridge/internal/infrastructure/database/entities"
)

// PostgresRepository stores workflow instances and their step log with GORM.
// Claims lock rows with FOR UPDATE SKIP LOCKED so concurrent runners never share one.
type PostgresRepository struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewPostgresRepository(db *gorm.DB, log zerolog.Logger) *PostgresRepository {
	return &PostgresRepository{
		db:  db,
		log: log.With().Str("component", "workflow-repository").Logger(),
	}
}

func (r *PostgresRepository) Create(ctx context.Context, inst *domain.Instance) error {
	row, err := toEntity(inst)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicateEvent
		}
		return fmt.Errorf("create workflow instance: %w", err)
	}
	inst.CreatedAt = row.CreatedAt
	inst.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*domain.Instance, error) {
	var row entities.WorkflowInstance
	err := r.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get workflow instance: %w", err)
	}
	return toDomain(row)
}

// runnable matches pending instances past their retry delay and running
// instances whose lease expired.
const runnable = "((status = ? AND (lease_until IS NULL OR lease_until <= ?)) OR (status = ? AND lease_until < ?))"

func (r *PostgresRepository) Claim(ctx context.Context, id string, lease time.Duration) (*domain.Instance, error) {
	return r.claim(ctx, lease, func(tx *gorm.DB, now time.Time) *gorm.DB {
		return tx.Raw("SELECT * FROM workflow_instances WHERE id = ? AND "+runnable+" LIMIT 1 FOR UPDATE SKIP LOCKED",
			id, string(domain.StatusPending), now, string(domain.StatusRunning), now)
	})
}

func (r *PostgresRepository) ClaimNext(ctx context.Context, lease time.Duration) (*domain.Instance, error) {
	return r.claim(ctx, lease, func(tx *gorm.DB, now time.Time) *gorm.DB {
		return tx.Raw("SELECT * FROM workflow_instances WHERE "+runnable+" ORDER BY created_at ASC LIMIT 1 FOR UPDATE SKIP LOCKED",
			string(domain.StatusPending), now, string(domain.StatusRunning), now)
	})
}

// claim locks the row chosen by query and moves it to running under a fresh lease.
func (r *PostgresRepository) claim(ctx context.Context, lease time.Duration, query func(tx *gorm.DB, now time.Time) *gorm.DB) (*domain.Instance, error) {
	var claimed *entities.WorkflowInstance
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		var row entities.WorkflowInstance
		if err := query(tx, now).Scan(&row).Error; err != nil {
			return err
		}
		if row.ID == "" {
			return nil
		}

		until := now.Add(lease)
		if err := tx.Model(&entities.WorkflowInstance{}).
			Where("id = ?", row.ID).
			Updates(map[string]interface{}{
				"status":      string(domain.StatusRunning),
				"attempts":    gorm.Expr("attempts + 1"),
				"lease_until": until,
				"updated_at":  now,
			}).Error; err != nil {
			return err
		}
		row.Status = string(domain.StatusRunning)
		row.Attempts++
		row.LeaseUntil = &until
		claimed = &row
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim workflow instance: %w", err)
	}
	if claimed == nil {
		return nil, nil
	}
	return toDomain(*claimed)
}

func (r *PostgresRepository) FindStep(ctx context.Context, instanceID, name string) (*domain.StepRecord, error) {
	var rows []entities.WorkflowStep
	err := r.db.WithContext(ctx).
		Where("instance_id = ? AND name = ?", instanceID, name).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find workflow step: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	step := toStepDomain(rows[0])
	return &step, nil
}

// SaveStep upserts the checkpoint keyed by (instance_id, name).
func (r *PostgresRepository) SaveStep(ctx context.Context, instanceID string, step domain.StepRecord) error {
	now := time.Now().UTC()
	row := entities.WorkflowStep{
		InstanceID: instanceID,
		Name:       step.Name,
		Status:     string(step.Status),
		Attempts:   step.Attempts,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if len(step.Output) > 0 {
		row.Output = datatypes.JSON(step.Output)
	}
	if step.Error != "" {
		row.Error = &step.Error
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "instance_id"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "output", "attempts", "error", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save workflow step: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Complete(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return r.finish(ctx, id, "complete", map[string]interface{}{
		"status":       string(domain.StatusCompleted),
		"lease_until":  nil,
		"last_error":   nil,
		"completed_at": now,
		"updated_at":   now,
	})
}

func (r *PostgresRepository) Fail(ctx context.Context, id string, reason string) error {
	now := time.Now().UTC()
	return r.finish(ctx, id, "fail", map[string]interface{}{
		"status":       string(domain.StatusFailed),
		"lease_until":  nil,
		"last_error":   reason,
		"completed_at": now,
		"updated_at":   now,
	})
}

// Release parks the instance in pending; lease_until doubles as its not-before time.
func (r *PostgresRepository) Release(ctx context.Context, id string, reason string, delay time.Duration) error {
	now := time.Now().UTC()
	var notBefore interface{}
	if delay > 0 {
		notBefore = now.Add(delay)
	}
	return r.finish(ctx, id, "release", map[string]interface{}{
		"status":      string(domain.StatusPending),
		"lease_until": notBefore,
		"last_error":  reason,
		"updated_at":  now,
	})
}

// finish applies updates to a running instance. A terminal or unknown instance
// reports ErrNotFound.
func (r *PostgresRepository) finish(ctx context.Context, id, op string, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&entities.WorkflowInstance{}).
		Where("id = ? AND status = ?", id, string(domain.StatusRunning)).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("%s workflow instance: %w", op, result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) RecoverStale(ctx context.Context, maxAttempts int) (int64, int64, error) {
	now := time.Now().UTC()
	var released, failed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entities.WorkflowInstance{}).
			Where("status = ? AND lease_until < ? AND attempts >= ?", string(domain.StatusRunning), now, maxAttempts).
			Updates(map[string]interface{}{
				"status":       string(domain.StatusFailed),
				"lease_until":  nil,
				"last_error":   "lease expired after final attempt",
				"completed_at": now,
				"updated_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		failed = res.RowsAffected

		res = tx.Model(&entities.WorkflowInstance{}).
			Where("status = ? AND lease_until < ?", string(domain.StatusRunning), now).
			Updates(map[string]interface{}{
				"status":      string(domain.StatusPending),
				"lease_until": nil,
				"last_error":  "lease expired",
				"updated_at":  now,
			})
		if res.Error != nil {
			return res.Error
		}
		released = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("recover stale workflow instances: %w", err)
	}
	return released, failed, nil
}

// PurgeFinished relies on ON DELETE CASCADE to drop the step log.
func (r *PostgresRepository) PurgeFinished(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", []string{string(domain.StatusCompleted), string(domain.StatusFailed)}, cutoff).
		Delete(&entities.WorkflowInstance{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge workflow instances: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func toEntity(inst *domain.Instance) (entities.WorkflowInstance, error) {
	params, err := json.Marshal(inst.Params)
	if err != nil {
		return entities.WorkflowInstance{}, fmt.Errorf("encode workflow params: %w", err)
	}
	row := entities.WorkflowInstance{
		ID:       inst.ID,
		Workflow: inst.Workflow,
		Params:   datatypes.JSON(params),
		Status:   string(inst.Status),
		Attempts: inst.Attempts,
	}
	if inst.WebhookEventID != "" {
		eventID := inst.WebhookEventID
		row.WebhookEventID = &eventID
	}
	return row, nil
}

func toDomain(row entities.WorkflowInstance) (*domain.Instance, error) {
	var params domain.Params
	if err := json.Unmarshal(row.Params, &params); err != nil {
		return nil, fmt.Errorf("decode workflow params: %w", err)
	}
	inst := &domain.Instance{
		ID:          row.ID,
		Workflow:    row.Workflow,
		Params:      params,
		Status:      domain.Status(row.Status),
		Attempts:    row.Attempts,
		LeaseUntil:  row.LeaseUntil,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
		CompletedAt: row.CompletedAt,
	}
	if row.WebhookEventID != nil {
		inst.WebhookEventID = *row.WebhookEventID
	}
	if row.LastError != nil {
		inst.LastError = *row.LastError
	}
	for _, s := range row.Steps {
		inst.Steps = append(inst.Steps, toStepDomain(s))
	}
	return inst, nil
}

func toStepDomain(row entities.WorkflowStep) domain.StepRecord {
	step := domain.StepRecord{
		Name:      row.Name,
		Status:    domain.StepStatus(row.Status),
		Output:    json.RawMessage(row.Output),
		Attempts:  row.Attempts,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if row.Error != nil {
		step.Error = *row.Error
	}
	return step
}

var _ domain.Repository = (*PostgresRepository)(nil)
