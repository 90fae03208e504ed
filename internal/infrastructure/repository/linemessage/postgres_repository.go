package linemessage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	domain "line-dify-bridge/internal/domain/message"
	"line-dify-bridge/internal/infrastructure/database/entities"
)

// PostgresRepository persists message records via PostgreSQL using GORM.
type PostgresRepository struct {
	db *gorm.DB
}

// NewPostgresRepository creates a repository backed by the provided DB.
func NewPostgresRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, rec *domain.Record) error {
	row := toEntity(rec)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	rec.ID = row.ID
	rec.CreatedAt = row.CreatedAt
	rec.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (*domain.Record, error) {
	var row entities.LineMessage
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return toDomain(row), nil
}

// FindLatestByUserID uses idx_line_messages_user_created.
func (r *PostgresRepository) FindLatestByUserID(ctx context.Context, userID string) (*domain.Record, error) {
	var rows []entities.LineMessage
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return toDomain(rows[0]), nil
}

func (r *PostgresRepository) List(ctx context.Context, filter domain.Filter) ([]*domain.Record, int64, error) {
	query := r.db.WithContext(ctx).Model(&entities.LineMessage{})
	if filter.ConversationID != "" {
		query = query.Where("conversation_id = ?", filter.ConversationID)
	}
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.StartDate != nil {
		query = query.Where("created_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("created_at <= ?", *filter.EndDate)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []entities.LineMessage
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	records := make([]*domain.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, toDomain(row))
	}
	return records, total, nil
}

func toEntity(rec *domain.Record) entities.LineMessage {
	return entities.LineMessage{
		ConversationID: rec.ConversationID,
		UserID:         rec.UserID,
		MessageType:    rec.MessageType,
		MessageContent: rec.MessageContent,
		ImageURL:       rec.ImageURL,
		DifyResponse:   rec.DifyResponse,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
}

func toDomain(row entities.LineMessage) *domain.Record {
	return &domain.Record{
		ID:             row.ID,
		ConversationID: row.ConversationID,
		UserID:         row.UserID,
		MessageType:    row.MessageType,
		MessageContent: row.MessageContent,
		ImageURL:       row.ImageURL,
		DifyResponse:   row.DifyResponse,
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}
}

var _ domain.Repository = (*PostgresRepository)(nil)
