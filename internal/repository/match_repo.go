package repository

import (
	"context"
	"errors"

	"github.com/miroirapp/miroir/internal/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MatchRepository provides data access for confirmed matches.
type MatchRepository struct {
	db *gorm.DB
}

// NewMatchRepository creates a repository bound to the given DB.
func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// CreateIfAbsent inserts the canonical match for the pair, or returns the
// existing one. The unique (user_a, user_b) index makes the insert a
// no-op when the row already exists, so two racing mutual likes can never
// produce two matches. Returns created = true only for the caller that
// actually inserted the row.
func (r *MatchRepository) CreateIfAbsent(
	ctx context.Context,
	userX, userY uint64,
) (*db.Match, bool, error) {
	a, b := db.CanonicalPair(userX, userY)

	match := db.Match{UserA: a, UserB: b, Active: true}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_a"}, {Name: "user_b"}},
			DoNothing: true,
		}).
		Create(&match)
	if res.Error != nil {
		return nil, false, res.Error
	}
	created := res.RowsAffected > 0

	if !created {
		// conflict path: fetch the row the other writer inserted
		existing, err := r.GetByPair(ctx, a, b)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	return &match, true, nil
}

// GetByID loads a match by primary key, or nil when absent.
func (r *MatchRepository) GetByID(ctx context.Context, matchID uint64) (*db.Match, error) {
	var match db.Match
	err := r.db.WithContext(ctx).First(&match, matchID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// GetByPair loads the canonical match for two users, or nil when absent.
func (r *MatchRepository) GetByPair(ctx context.Context, userX, userY uint64) (*db.Match, error) {
	a, b := db.CanonicalPair(userX, userY)

	var match db.Match
	err := r.db.WithContext(ctx).
		Where("user_a = ? AND user_b = ?", a, b).
		First(&match).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// Deactivate sets active = false. The row is kept for audit and to keep
// the pair excluded from discovery.
func (r *MatchRepository) Deactivate(ctx context.Context, matchID uint64) error {
	return r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ?", matchID).
		Update("active", false).Error
}
