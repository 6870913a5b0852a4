package repository

import (
	"context"
	"time"

	"github.com/miroirapp/miroir/internal/db"
	"github.com/miroirapp/miroir/internal/utils/pagination"

	"gorm.io/gorm"
)

// MessageRepository provides data access for chat messages.
// Messages are append-only; the only mutations are the delivered/read
// timestamps.
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a repository bound to the given DB.
func NewMessageRepository(database *gorm.DB) *MessageRepository {
	return &MessageRepository{db: database}
}

// Append persists a new chat message.
func (r *MessageRepository) Append(ctx context.Context, msg *db.ChatMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// History returns messages of a match, newest first, totally ordered by
// (sent_at, id). Supports cursor-based pagination.
func (r *MessageRepository) History(
	ctx context.Context,
	matchID uint64,
	paginationToken *string,
	limit int,
) ([]db.ChatMessage, *string, error) {
	var messages []db.ChatMessage

	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Table("chat_messages cm").
		Where("cm.match_id = ?", matchID).
		Order("cm.sent_at DESC, cm.id DESC").
		Limit(limit + 1)

	if cursor.ID > 0 && cursor.Unix > 0 {
		ts := time.UnixMilli(cursor.Unix)
		query = query.Where(
			"(cm.sent_at < ? OR (cm.sent_at = ? AND cm.id < ?))",
			ts, ts, cursor.ID,
		)
	}

	if err := query.Find(&messages).Error; err != nil {
		return nil, nil, err
	}

	var nextToken *string
	if len(messages) > limit {
		last := messages[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			ID:   last.ID,
			Unix: last.SentAt.UnixMilli(),
		})
		nextToken = &token
		messages = messages[:limit]
	}

	return messages, nextToken, nil
}

// SetDelivered stamps a single message as delivered.
func (r *MessageRepository) SetDelivered(ctx context.Context, messageID uint64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&db.ChatMessage{}).
		Where("id = ? AND delivered_at IS NULL", messageID).
		Update("delivered_at", at).Error
}

// MarkDeliveredFrom stamps every undelivered message of the match that was
// sent by senderID. Used for redelivery when the counterpart reconnects
// and reads history.
func (r *MessageRepository) MarkDeliveredFrom(
	ctx context.Context,
	matchID, senderID uint64,
	at time.Time,
) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.ChatMessage{}).
		Where("match_id = ? AND sender_id = ? AND delivered_at IS NULL", matchID, senderID).
		Update("delivered_at", at)
	return res.RowsAffected, res.Error
}

// CountUndelivered counts messages addressed to the user (sent by the
// other participant of any of their matches) that were never delivered.
// Backs the cache-first unread counter.
func (r *MessageRepository) CountUndelivered(ctx context.Context, userID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("chat_messages cm").
		Joins("JOIN matches m ON m.id = cm.match_id").
		Where("(m.user_a = ? OR m.user_b = ?)", userID, userID).
		Where("cm.sender_id <> ?", userID).
		Where("cm.delivered_at IS NULL").
		Count(&count).Error
	return count, err
}

// MarkRead stamps read_at on messages of the match sent by senderID with
// id ≤ uptoID that are not read yet. Re-marking already-read rows is a
// no-op, which makes the operation idempotent. Returns affected rows.
func (r *MessageRepository) MarkRead(
	ctx context.Context,
	matchID, senderID, uptoID uint64,
	at time.Time,
) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.ChatMessage{}).
		Where("match_id = ? AND sender_id = ? AND id <= ? AND read_at IS NULL",
			matchID, senderID, uptoID).
		Update("read_at", at)
	return res.RowsAffected, res.Error
}
