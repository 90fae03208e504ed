package message_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"line-dify-bridge/internal/domain/message"
	"line-dify-bridge/internal/infrastructure/repository/linemessage"
	"line-dify-bridge/internal/utils/platformerrors"
)

const validConversationID = "550e8400-e29b-41d4-a716-446655440000"

func strPtr(s string) *string { return &s }

func newService() (message.Service, *linemessage.InMemoryRepository) {
	repo := linemessage.NewInMemoryRepository()
	return message.NewService(repo, zerolog.Nop()), repo
}

func TestIsConversationID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{validConversationID, true},
		{"550E8400-E29B-41D4-A716-446655440000", true},
		{"not-a-uuid", false},
		{"", false},
		{"550e8400-e29b-61d4-a716-446655440000", false}, // version 6
		{"550e8400-e29b-41d4-c716-446655440000", false}, // bad variant
		{" 550e8400-e29b-41d4-a716-446655440000", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, message.IsConversationID(tt.id), tt.id)
	}
}

func TestResolveConversationID_NoHistory(t *testing.T) {
	svc, _ := newService()
	id, err := svc.ResolveConversationID(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, "", id)
}

func TestResolveConversationID_RejectsMalformedStoredID(t *testing.T) {
	svc, repo := newService()
	ctx := context.Background()

	// bypass Save so a legacy malformed row can exist
	require.NoError(t, repo.Insert(ctx, &message.Record{
		ConversationID: "not-a-uuid",
		UserID:         "U1",
		MessageType:    "text",
	}))

	id, err := svc.ResolveConversationID(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, "", id)
}

func TestResolveConversationID_ReturnsStoredUUIDUnchanged(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, err := svc.Save(ctx, message.NewRecord{
		ConversationID: validConversationID,
		UserID:         "U1",
		MessageType:    "text",
		MessageContent: strPtr("hi"),
		DifyResponse:   strPtr("Hello"),
	})
	require.NoError(t, err)

	first, err := svc.ResolveConversationID(ctx, "U1")
	require.NoError(t, err)
	second, err := svc.ResolveConversationID(ctx, "U1")
	require.NoError(t, err)

	assert.Equal(t, validConversationID, first)
	assert.Equal(t, first, second)
}

func TestResolveConversationID_UsesMostRecentRecordOnly(t *testing.T) {
	svc, repo := newService()
	ctx := context.Background()
	base := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Insert(ctx, &message.Record{ConversationID: validConversationID, UserID: "U1", MessageType: "text", CreatedAt: base, UpdatedAt: base}))
	require.NoError(t, repo.Insert(ctx, &message.Record{ConversationID: "", UserID: "U1", MessageType: "image", CreatedAt: base.Add(time.Minute), UpdatedAt: base.Add(time.Minute)}))

	id, err := svc.ResolveConversationID(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, "", id)
}

func TestResolveConversationID_RequiresUserID(t *testing.T) {
	svc, _ := newService()
	_, err := svc.ResolveConversationID(context.Background(), " ")
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
}

func TestSave_RoundTrip(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	saved, err := svc.Save(ctx, message.NewRecord{
		ConversationID: validConversationID,
		UserID:         "U1",
		MessageType:    "image",
		ImageURL:       strPtr("https://example.com/a.png"),
		DifyResponse:   strPtr(""),
	})
	require.NoError(t, err)
	require.NotZero(t, saved.ID)
	assert.Equal(t, saved.CreatedAt, saved.UpdatedAt)

	loaded, err := svc.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
	assert.Nil(t, loaded.MessageContent)
	assert.Equal(t, message.FormatTime(saved.CreatedAt), message.FormatTime(loaded.CreatedAt))
}

func TestSave_NormalizesConversationID(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	upper, err := svc.Save(ctx, message.NewRecord{ConversationID: "550E8400-E29B-41D4-A716-446655440000", UserID: "U1", MessageType: "text"})
	require.NoError(t, err)
	assert.Equal(t, validConversationID, upper.ConversationID)

	bogus, err := svc.Save(ctx, message.NewRecord{ConversationID: "conv-123", UserID: "U1", MessageType: "text"})
	require.NoError(t, err)
	assert.Equal(t, "", bogus.ConversationID)
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := newService()
	_, err := svc.Get(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
}

func TestList_PaginationAndFilters(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Save(ctx, message.NewRecord{ConversationID: validConversationID, UserID: "U1", MessageType: "text"})
		require.NoError(t, err)
	}
	_, err := svc.Save(ctx, message.NewRecord{UserID: "U2", MessageType: "text"})
	require.NoError(t, err)

	page, err := svc.List(ctx, message.Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.Total)
	assert.Equal(t, message.DefaultListLimit, page.Limit)
	assert.Len(t, page.Messages, 4)

	page, err = svc.List(ctx, message.Filter{UserID: "U1", Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Messages, 2)
	assert.Equal(t, 1, page.Offset)

	page, err = svc.List(ctx, message.Filter{ConversationID: validConversationID})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
}

func TestList_Validation(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	start := time.Now()
	end := start.Add(-time.Hour)

	cases := []message.Filter{
		{Limit: 101},
		{Limit: -1},
		{Offset: -1},
		{StartDate: &start, EndDate: &end},
	}
	for _, f := range cases {
		_, err := svc.List(ctx, f)
		require.Error(t, err)
		assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
	}
}
