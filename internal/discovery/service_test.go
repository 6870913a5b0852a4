package discovery_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/miroirapp/miroir/internal/app"
	"github.com/miroirapp/miroir/internal/cache"
	"github.com/miroirapp/miroir/internal/config"
	"github.com/miroirapp/miroir/internal/db"
	"github.com/miroirapp/miroir/internal/discovery"
	"github.com/miroirapp/miroir/internal/domain"
	"github.com/miroirapp/miroir/internal/notify"
	"github.com/miroirapp/miroir/internal/presence"
)

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(notify.Event) {}

// Seed layout (requester = user 1, at the center of Paris):
//
//	user 2: femme, 25, ~1 km away
//	user 3: femme, 30, ~5 km away
//	user 4: femme, 25, ~300 km away (Lyon-ish)
//	user 5: homme, 25, ~1 km away
//	user 6: femme, 40, ~1 km away, hidden
func seedProfiles(t *testing.T, gdb *gorm.DB) {
	t.Helper()

	profiles := []db.Profile{
		{UserID: 1, Username: "seeker", Email: "s@test.com", PasswordHash: "x", Gender: db.GenderHomme, Age: 25, Lat: 48.8566, Lng: 2.3522, Visible: true},
		{UserID: 2, Username: "near", Email: "n@test.com", PasswordHash: "x", Gender: db.GenderFemme, Age: 25, Lat: 48.8656, Lng: 2.3522, Visible: true},
		{UserID: 3, Username: "close", Email: "c@test.com", PasswordHash: "x", Gender: db.GenderFemme, Age: 30, Lat: 48.9016, Lng: 2.3522, Visible: true},
		{UserID: 4, Username: "far", Email: "f@test.com", PasswordHash: "x", Gender: db.GenderFemme, Age: 25, Lat: 45.7640, Lng: 4.8357, Visible: true},
		{UserID: 5, Username: "guy", Email: "g@test.com", PasswordHash: "x", Gender: db.GenderHomme, Age: 25, Lat: 48.8656, Lng: 2.3622, Visible: true},
		{UserID: 6, Username: "ghost", Email: "h@test.com", PasswordHash: "x", Gender: db.GenderFemme, Age: 40, Lat: 48.8656, Lng: 2.3522, Visible: false},
	}
	require.NoError(t, gdb.Create(&profiles).Error)
}

func setupDiscovery(t *testing.T) (*discovery.Service, *gorm.DB) {
	t.Helper()

	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbase, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := dbase.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(dbase))
	seedProfiles(t, dbase)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	appCtx := app.New(dbase, cache.NewRedisCache(cfg), presence.NewRegistry(), noopDispatcher{}, logger)
	return discovery.NewService(appCtx), dbase
}

func baseQuery() discovery.Query {
	return discovery.Query{
		Gender:        db.GenderFemme,
		MinAge:        18,
		MaxAge:        99,
		MaxDistanceKm: 500,
	}
}

func TestSearchFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupDiscovery(t)

	candidates, next, err := svc.Search(ctx, 1, baseQuery())
	require.NoError(t, err)
	assert.Equal(t, -1, next)

	// femme + visible within 500 km: users 2, 3, 4 ordered by distance
	require.Len(t, candidates, 3)
	assert.Equal(t, uint64(2), candidates[0].Profile.UserID)
	assert.Equal(t, uint64(3), candidates[1].Profile.UserID)
	assert.Equal(t, uint64(4), candidates[2].Profile.UserID)

	// returned rows all satisfy the constraints
	for _, c := range candidates {
		assert.Equal(t, db.GenderFemme, c.Profile.Gender)
		assert.GreaterOrEqual(t, c.Profile.Age, 18)
		assert.LessOrEqual(t, c.DistanceKm, 500.0)
		assert.NotEqual(t, uint64(1), c.Profile.UserID)
	}
}

func TestSearchDistanceCutoff(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupDiscovery(t)

	q := baseQuery()
	q.MaxDistanceKm = 10

	candidates, _, err := svc.Search(ctx, 1, q)
	require.NoError(t, err)
	require.Len(t, candidates, 2) // Lyon is out
	assert.Less(t, candidates[0].DistanceKm, candidates[1].DistanceKm)
}

func TestSearchAgeFilter(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupDiscovery(t)

	q := baseQuery()
	q.MinAge = 28
	q.MaxAge = 35

	candidates, _, err := svc.Search(ctx, 1, q)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, uint64(3), candidates[0].Profile.UserID)
}

func TestSearchNoGenderFilter(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupDiscovery(t)

	q := baseQuery()
	q.Gender = ""

	candidates, _, err := svc.Search(ctx, 1, q)
	require.NoError(t, err)
	require.Len(t, candidates, 4) // user 5 now included, ghost still hidden
}

func TestSearchExcludesDeclinedAndMatched(t *testing.T) {
	ctx := context.Background()
	svc, dbase := setupDiscovery(t)

	// pending interest does not hide anyone
	require.NoError(t, dbase.Create(&db.MirrorRequest{SenderID: 2, ReceiverID: 1, Status: db.StatusPending}).Error)

	candidates, _, err := svc.Search(ctx, 1, baseQuery())
	require.NoError(t, err)
	require.Len(t, candidates, 3)

	// a declined direction hides the counterpart
	require.NoError(t, dbase.Create(&db.MirrorRequest{SenderID: 3, ReceiverID: 1, Status: db.StatusDeclined}).Error)
	// a match row hides the counterpart even when inactive
	require.NoError(t, dbase.Create(&db.Match{UserA: 1, UserB: 4, Active: false}).Error)

	candidates, _, err = svc.Search(ctx, 1, baseQuery())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, uint64(2), candidates[0].Profile.UserID)
}

func TestSearchPagination(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupDiscovery(t)

	q := baseQuery()
	q.Limit = 2

	page1, next, err := svc.Search(ctx, 1, q)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.Equal(t, 2, next)

	q.Offset = next
	page2, next, err := svc.Search(ctx, 1, q)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, -1, next)
	assert.NotEqual(t, page1[0].Profile.UserID, page2[0].Profile.UserID)
}

func TestSearchValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupDiscovery(t)

	cases := []struct {
		name  string
		tweak func(*discovery.Query)
		field string
	}{
		{"bad gender", func(q *discovery.Query) { q.Gender = "robot" }, "gender"},
		{"min age too low", func(q *discovery.Query) { q.MinAge = 17 }, "min_age"},
		{"max age too high", func(q *discovery.Query) { q.MaxAge = 120 }, "max_age"},
		{"inverted range", func(q *discovery.Query) { q.MinAge = 40; q.MaxAge = 30 }, "max_age"},
		{"distance zero", func(q *discovery.Query) { q.MaxDistanceKm = 0 }, "max_distance_km"},
		{"distance too far", func(q *discovery.Query) { q.MaxDistanceKm = 501 }, "max_distance_km"},
		{"limit too big", func(q *discovery.Query) { q.Limit = 51 }, "limit"},
		{"negative offset", func(q *discovery.Query) { q.Offset = -1 }, "offset"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := baseQuery()
			tc.tweak(&q)

			candidates, _, err := svc.Search(ctx, 1, q)
			require.Error(t, err)
			assert.Nil(t, candidates) // no partial results

			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
		})
	}
}
