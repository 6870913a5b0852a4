package discovery

import (
	"context"
	"fmt"
	"sort"

	"github.com/miroirapp/miroir/internal/app"
	"github.com/miroirapp/miroir/internal/db"
	"github.com/miroirapp/miroir/internal/domain"
	"github.com/miroirapp/miroir/internal/repository"
)

const defaultLimit = 10

// Query carries the discovery constraints. Transient, never persisted.
type Query struct {
	Gender        string // optional; empty means any
	MinAge        int
	MaxAge        int
	MaxDistanceKm float64
	Limit         int // 0 means defaultLimit
	Offset        int
}

// Candidate is one discovered profile together with its distance from
// the requester.
type Candidate struct {
	Profile    db.Profile
	DistanceKm float64
}

// Service filters and orders profiles for a requester.
type Service struct {
	appCtx      *app.AppContext
	profileRepo *repository.ProfileRepository
}

// NewService creates the discovery service.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:      appCtx,
		profileRepo: repository.NewProfileRepository(appCtx.DB),
	}
}

// Search returns candidates matching the query, ordered by ascending
// distance then descending profile recency, plus the offset of the next
// page (-1 when exhausted).
//
// Excluded: the requester, hidden profiles, anyone in a declined mirror
// relationship with the requester, anyone sharing a Match row with the
// requester. Validation failures return a field-level ValidationError
// and no partial results.
func (s *Service) Search(ctx context.Context, requesterID uint64, q Query) ([]Candidate, int, error) {
	s.appCtx.Logger.Debug("Search called",
		"requester", requesterID, "gender", q.Gender,
		"min_age", q.MinAge, "max_age", q.MaxAge,
		"max_km", q.MaxDistanceKm, "limit", q.Limit, "offset", q.Offset)

	if err := validate(&q); err != nil {
		return nil, 0, err
	}

	requester, err := s.profileRepo.GetByID(ctx, requesterID)
	if err != nil {
		return nil, 0, err
	}
	if requester == nil {
		return nil, 0, domain.Invalid("requester_id", "unknown user")
	}

	profiles, err := s.profileRepo.FindCandidates(ctx, requesterID, q.Gender, q.MinAge, q.MaxAge)
	if err != nil {
		return nil, 0, err
	}

	candidates := make([]Candidate, 0, len(profiles))
	for _, p := range profiles {
		d := distanceKm(requester.Lat, requester.Lng, p.Lat, p.Lng)
		if d > q.MaxDistanceKm {
			continue
		}
		candidates = append(candidates, Candidate{Profile: p, DistanceKm: d})
	}

	// ascending distance, newest profile first on ties; user id as the
	// final tie-break keeps repeated identical queries stable
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		if !a.Profile.UpdatedAt.Equal(b.Profile.UpdatedAt) {
			return a.Profile.UpdatedAt.After(b.Profile.UpdatedAt)
		}
		return a.Profile.UserID < b.Profile.UserID
	})

	if q.Offset >= len(candidates) {
		return []Candidate{}, -1, nil
	}

	end := q.Offset + q.Limit
	nextOffset := -1
	if end < len(candidates) {
		nextOffset = end
	} else {
		end = len(candidates)
	}

	return candidates[q.Offset:end], nextOffset, nil
}

func validate(q *Query) error {
	if q.Gender != "" && !db.ValidGender(q.Gender) {
		return domain.Invalid("gender", fmt.Sprintf("unknown value %q", q.Gender))
	}
	if q.MinAge < 18 || q.MinAge > 99 {
		return domain.Invalid("min_age", "must be between 18 and 99")
	}
	if q.MaxAge < 18 || q.MaxAge > 99 {
		return domain.Invalid("max_age", "must be between 18 and 99")
	}
	if q.MaxAge < q.MinAge {
		return domain.Invalid("max_age", "must be >= min_age")
	}
	if q.MaxDistanceKm < 1 || q.MaxDistanceKm > 500 {
		return domain.Invalid("max_distance_km", "must be between 1 and 500")
	}
	if q.Limit == 0 {
		q.Limit = defaultLimit
	}
	if q.Limit < 1 || q.Limit > 50 {
		return domain.Invalid("limit", "must be between 1 and 50")
	}
	if q.Offset < 0 {
		return domain.Invalid("offset", "must be >= 0")
	}
	return nil
}
