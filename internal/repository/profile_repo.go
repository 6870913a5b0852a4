package repository

import (
	"context"
	"errors"

	"github.com/miroirapp/miroir/internal/db"

	"gorm.io/gorm"
)

// ProfileRepository provides data access for user profiles.
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a repository bound to the given DB.
func NewProfileRepository(database *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: database}
}

// GetByID loads a profile by user ID, or nil when absent.
func (r *ProfileRepository) GetByID(ctx context.Context, userID uint64) (*db.Profile, error) {
	var profile db.Profile
	err := r.db.WithContext(ctx).First(&profile, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// FindCandidates returns visible profiles matching the gender/age
// constraints, excluding:
//   - the requester themself,
//   - anyone in a declined mirror relationship with the requester
//     (either direction),
//   - anyone sharing a Match row with the requester, active or not
//     (unmatched pairs stay excluded until an explicit policy change).
//
// Distance filtering and ordering happen in the discovery layer; the
// candidate set here is bounded by the age/gender/visibility index.
func (r *ProfileRepository) FindCandidates(
	ctx context.Context,
	requesterID uint64,
	genderFilter string,
	minAge, maxAge int,
) ([]db.Profile, error) {
	var profiles []db.Profile

	query := r.db.WithContext(ctx).
		Table("profiles p").
		Where("p.visible = ?", true).
		Where("p.user_id <> ?", requesterID).
		Where("p.age BETWEEN ? AND ?", minAge, maxAge).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM mirror_requests mr
				WHERE mr.status = ?
				  AND ((mr.sender_id = ? AND mr.receiver_id = p.user_id)
				    OR (mr.sender_id = p.user_id AND mr.receiver_id = ?))
			)`, db.StatusDeclined, requesterID, requesterID).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM matches m
				WHERE (m.user_a = ? AND m.user_b = p.user_id)
				   OR (m.user_a = p.user_id AND m.user_b = ?)
			)`, requesterID, requesterID)

	if genderFilter != "" {
		query = query.Where("p.gender = ?", genderFilter)
	}

	if err := query.Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}
