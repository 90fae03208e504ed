package message

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"line-dify-bridge/internal/utils/platformerrors"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// Service describes the message history operations used by the workflow and the admin API.
type Service interface {
	Save(ctx context.Context, in NewRecord) (*Record, error)
	Get(ctx context.Context, id int64) (*Record, error)
	List(ctx context.Context, filter Filter) (*Page, error)
	ResolveConversationID(ctx context.Context, userID string) (string, error)
}

type service struct {
	repo Repository
	now  func() time.Time
	log  zerolog.Logger
}

// NewService wires the message service with its repository.
func NewService(repo Repository, log zerolog.Logger) Service {
	return &service{
		repo: repo,
		now:  time.Now,
		log:  log.With().Str("component", "message-service").Logger(),
	}
}

// Save appends one record. A conversation id that is not a UUID is stored as "".
func (s *service) Save(ctx context.Context, in NewRecord) (*Record, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "user id is required", nil, "")
	}

	conversationID := NormalizeConversationID(in.ConversationID)
	if conversationID == "" && in.ConversationID != "" {
		s.log.Warn().Str("conversation_id", in.ConversationID).Msg("discarding malformed conversation id")
	}

	// Postgres keeps microseconds; ISO output keeps milliseconds.
	now := s.now().UTC().Truncate(time.Millisecond)
	rec := &Record{
		ConversationID: conversationID,
		UserID:         in.UserID,
		MessageType:    in.MessageType,
		MessageContent: in.MessageContent,
		ImageURL:       in.ImageURL,
		DifyResponse:   in.DifyResponse,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeDatabaseError, "insert message record", err, "")
	}
	return rec, nil
}

func (s *service) Get(ctx context.Context, id int64) (*Record, error) {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "message not found", err, "")
		}
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeDatabaseError, "get message record", err, "")
	}
	return rec, nil
}

func (s *service) List(ctx context.Context, filter Filter) (*Page, error) {
	if filter.Limit == 0 {
		filter.Limit = DefaultListLimit
	}
	if filter.Limit < 1 || filter.Limit > MaxListLimit {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "limit must be between 1 and 100", nil, "")
	}
	if filter.Offset < 0 {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "offset must be zero or greater", nil, "")
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "end_date must not precede start_date", nil, "")
	}

	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeDatabaseError, "list message records", err, "")
	}
	if records == nil {
		records = []*Record{}
	}
	return &Page{
		Messages: records,
		Total:    total,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	}, nil
}

// ResolveConversationID returns the continuation token for the user's next turn.
// Only the most recent record counts; a missing or malformed id starts a fresh conversation.
func (s *service) ResolveConversationID(ctx context.Context, userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "user id is required", nil, "")
	}

	latest, err := s.repo.FindLatestByUserID(ctx, userID)
	if err != nil {
		return "", platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeDatabaseError, "find latest message", err, "")
	}
	if latest == nil {
		return "", nil
	}
	if !IsConversationID(latest.ConversationID) {
		if latest.ConversationID != "" {
			s.log.Warn().Int64("record_id", latest.ID).Msg("stored conversation id is not a valid uuid, starting fresh")
		}
		return "", nil
	}
	return latest.ConversationID, nil
}
