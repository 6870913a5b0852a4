package repository

import (
	"context"
	"errors"
	"time"

	"github.com/miroirapp/miroir/internal/db"
	"github.com/miroirapp/miroir/internal/utils/pagination"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MirrorRequestRepository provides data access for directed mirror requests.
type MirrorRequestRepository struct {
	db *gorm.DB
}

// NewMirrorRequestRepository creates a repository bound to the given DB.
func NewMirrorRequestRepository(database *gorm.DB) *MirrorRequestRepository {
	return &MirrorRequestRepository{db: database}
}

// Get returns the directed request sender → receiver, or nil when no row
// exists for that direction.
func (r *MirrorRequestRepository) Get(
	ctx context.Context,
	senderID, receiverID uint64,
) (*db.MirrorRequest, error) {
	var req db.MirrorRequest
	err := r.db.WithContext(ctx).
		Where("sender_id = ? AND receiver_id = ?", senderID, receiverID).
		First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// Upsert writes the directed request with the given status. The unique
// (sender_id, receiver_id) index makes this an overwrite: a fresh like
// after expiry reuses the existing row.
func (r *MirrorRequestRepository) Upsert(
	ctx context.Context,
	senderID, receiverID uint64,
	status string,
) error {
	req := db.MirrorRequest{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     status,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sender_id"}, {Name: "receiver_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
		}).
		Create(&req).Error
}

// MarkPairMatched flips both directions of the pair to matched.
func (r *MirrorRequestRepository) MarkPairMatched(
	ctx context.Context,
	userX, userY uint64,
) error {
	return r.db.WithContext(ctx).
		Model(&db.MirrorRequest{}).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userX, userY, userY, userX).
		Update("status", db.StatusMatched).Error
}

// GetAdmirers returns users with a pending request toward the receiver.
//
// Behavior:
//   - Only status = pending rows are returned (matched/declined/expired
//     directions never reappear here).
//   - Ordered by updated_at DESC, sender_id DESC.
//   - Supports cursor-based pagination via paginationToken.
func (r *MirrorRequestRepository) GetAdmirers(
	ctx context.Context,
	receiverID uint64,
	paginationToken *string,
	limit int,
) ([]db.MirrorRequest, *string, error) {
	var requests []db.MirrorRequest

	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Table("mirror_requests mr").
		Where("mr.receiver_id = ? AND mr.status = ?", receiverID, db.StatusPending).
		Order("mr.updated_at DESC, mr.sender_id DESC").
		Limit(limit + 1)

	if cursor.ID > 0 && cursor.Unix > 0 {
		ts := time.UnixMilli(cursor.Unix)
		query = query.Where(
			"(mr.updated_at < ? OR (mr.updated_at = ? AND mr.sender_id < ?))",
			ts, ts, cursor.ID,
		)
	}

	if err := query.Find(&requests).Error; err != nil {
		return nil, nil, err
	}

	var nextToken *string
	if len(requests) > limit {
		last := requests[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			ID:   last.SenderID,
			Unix: last.UpdatedAt.UnixMilli(),
		})
		nextToken = &token
		requests = requests[:limit]
	}

	return requests, nextToken, nil
}

// CountAdmirers returns how many pending requests target the receiver.
// Used together with the Redis counter cache (DB is the fallback).
func (r *MirrorRequestRepository) CountAdmirers(
	ctx context.Context,
	receiverID uint64,
) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.MirrorRequest{}).
		Where("receiver_id = ? AND status = ?", receiverID, db.StatusPending).
		Count(&count).Error
	return count, err
}

// ExpirePending transitions every pending request last touched before
// cutoff to expired. Returns the number of affected rows.
func (r *MirrorRequestRepository) ExpirePending(
	ctx context.Context,
	cutoff time.Time,
) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.MirrorRequest{}).
		Where("status = ? AND updated_at < ?", db.StatusPending, cutoff).
		Update("status", db.StatusExpired)
	return res.RowsAffected, res.Error
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
