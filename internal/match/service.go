package match

import (
	"context"
	"strconv"
	"time"

	"github.com/miroirapp/miroir/internal/app"
	"github.com/miroirapp/miroir/internal/db"
	"github.com/miroirapp/miroir/internal/domain"
	"github.com/miroirapp/miroir/internal/notify"
	"github.com/miroirapp/miroir/internal/repository"
)

// Service is the mirror match engine. It owns the per-direction request
// state machine {pending, matched, declined, expired} and the promotion
// of mutual interest into a canonical Match.
type Service struct {
	appCtx     *app.AppContext
	mirrorRepo *repository.MirrorRequestRepository
	matchRepo  *repository.MatchRepository
	locks      *pairLock
	retention  time.Duration
}

// NewService creates the engine. retention controls how long a pending
// request survives before the expiry sweep claims it.
func NewService(appCtx *app.AppContext, retention time.Duration) *Service {
	return &Service{
		appCtx:     appCtx,
		mirrorRepo: repository.NewMirrorRequestRepository(appCtx.DB),
		matchRepo:  repository.NewMatchRepository(appCtx.DB),
		locks:      newPairLock(),
		retention:  retention,
	}
}

// LikeResult reports the outcome of a like. Match is non-nil only when
// this like completed a mutual pair.
type LikeResult struct {
	Request *db.MirrorRequest
	Match   *db.Match
}

// Like records sender's interest in receiver and promotes the pair to a
// Match when the reverse direction is already pending or matched.
//
// The mutuality check and match creation run under the canonical pair
// lock, so two simultaneous opposite likes serialize and exactly one of
// them creates the Match; the unique index on matches(user_a, user_b)
// backs that up at the storage layer.
func (s *Service) Like(ctx context.Context, senderID, receiverID uint64) (*LikeResult, error) {
	log := s.appCtx.Logger
	log.Debug("Like called", "sender", senderID, "receiver", receiverID)

	if senderID == 0 {
		return nil, domain.Invalid("sender_id", "must be a valid user id")
	}
	if receiverID == 0 {
		return nil, domain.Invalid("receiver_id", "must be a valid user id")
	}
	if senderID == receiverID {
		return nil, domain.ErrSelfReference
	}

	s.locks.Lock(senderID, receiverID)
	defer s.locks.Unlock(senderID, receiverID)

	existing, err := s.mirrorRepo.Get(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !db.TerminalStatus(existing.Status) {
			// still pending, or already matched
			return nil, domain.ErrDuplicateRequest
		}
		if existing.Status == db.StatusDeclined {
			// declined stays closed until an explicit reset, which
			// does not exist yet
			return nil, domain.ErrDuplicateRequest
		}
		// expired: the upsert revives the row
	}

	if err := s.mirrorRepo.Upsert(ctx, senderID, receiverID, db.StatusPending); err != nil {
		return nil, err
	}
	request, err := s.mirrorRepo.Get(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}

	reverse, err := s.mirrorRepo.Get(ctx, receiverID, senderID)
	if err != nil {
		return nil, err
	}

	result := &LikeResult{Request: request}

	if reverse == nil || db.TerminalStatus(reverse.Status) {
		// one-way like: receiver gains an admirer
		s.appCtx.RedisCache.BumpCounter(ctx, s.appCtx.RedisCache.KeyForAdmirerCount(receiverID), 1)
		return result, nil
	}

	// mutual interest: promote to a match
	created, err := s.promote(ctx, senderID, receiverID, result)
	if err != nil {
		return nil, err
	}
	if created {
		log.Info("match created", "match_id", result.Match.ID,
			"user_a", result.Match.UserA, "user_b", result.Match.UserB)
	}
	return result, nil
}

func (s *Service) promote(ctx context.Context, senderID, receiverID uint64, result *LikeResult) (bool, error) {
	match, created, err := s.matchRepo.CreateIfAbsent(ctx, senderID, receiverID)
	if err != nil {
		return false, err
	}
	if err := s.mirrorRepo.MarkPairMatched(ctx, senderID, receiverID); err != nil {
		return false, err
	}
	result.Match = match
	if result.Request != nil {
		result.Request.Status = db.StatusMatched
	}

	// the reverse pending was counting toward sender's admirers and is
	// now matched; the fresh like never reached the counter
	s.appCtx.RedisCache.BumpCounter(ctx, s.appCtx.RedisCache.KeyForAdmirerCount(senderID), -1)

	if created {
		payload := map[string]any{
			"match_id": strconv.FormatUint(match.ID, 10),
			"user_a":   strconv.FormatUint(match.UserA, 10),
			"user_b":   strconv.FormatUint(match.UserB, 10),
		}
		s.appCtx.Dispatcher.Dispatch(notify.NewEvent(notify.KindMatchCreated, match.UserA, payload))
		s.appCtx.Dispatcher.Dispatch(notify.NewEvent(notify.KindMatchCreated, match.UserB, payload))
	}
	return created, nil
}

// Decline records that decliner rejects declined's interest. The directed
// request declined → decliner is written (or overwritten) as declined,
// which is terminal: a later like from that side can never match.
func (s *Service) Decline(ctx context.Context, declinerID, declinedID uint64) error {
	s.appCtx.Logger.Debug("Decline called", "decliner", declinerID, "declined", declinedID)

	if declinerID == 0 || declinedID == 0 {
		return domain.Invalid("receiver_id", "must be a valid user id")
	}
	if declinerID == declinedID {
		return domain.ErrSelfReference
	}

	s.locks.Lock(declinerID, declinedID)
	defer s.locks.Unlock(declinerID, declinedID)

	prior, err := s.mirrorRepo.Get(ctx, declinedID, declinerID)
	if err != nil {
		return err
	}
	if prior != nil && prior.Status == db.StatusMatched {
		// the pair already matched; overwriting the row with declined
		// would leave a declined request next to a Match
		return domain.ErrPairMatched
	}

	if err := s.mirrorRepo.Upsert(ctx, declinedID, declinerID, db.StatusDeclined); err != nil {
		return err
	}

	if prior != nil && prior.Status == db.StatusPending {
		s.appCtx.RedisCache.BumpCounter(ctx, s.appCtx.RedisCache.KeyForAdmirerCount(declinerID), -1)
	}
	return nil
}

// Unmatch deactivates the match. Chat history is kept, the pair stays
// excluded from discovery, and the row itself is never deleted.
func (s *Service) Unmatch(ctx context.Context, userID, matchID uint64) error {
	s.appCtx.Logger.Debug("Unmatch called", "user", userID, "match", matchID)

	m, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return err
	}
	if m == nil {
		return domain.ErrMatchNotFound
	}
	if !m.HasUser(userID) {
		return domain.ErrNotParticipant
	}
	return s.matchRepo.Deactivate(ctx, matchID)
}

// ExpirePending sweeps pending requests older than the retention window
// into the expired state. Expired directions accept a fresh like.
// Triggered periodically from outside the core.
func (s *Service) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-s.retention)
	n, err := s.mirrorRepo.ExpirePending(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.appCtx.Logger.Info("expired pending mirror requests", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

// Admirer is one user with a pending request toward the caller.
type Admirer struct {
	UserID  uint64
	LikedAt time.Time
}

// ListAdmirers returns users whose like toward userID is still pending,
// newest first, cursor-paginated.
func (s *Service) ListAdmirers(
	ctx context.Context,
	userID uint64,
	paginationToken *string,
	limit int,
) ([]Admirer, *string, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	requests, nextToken, err := s.mirrorRepo.GetAdmirers(ctx, userID, paginationToken, limit)
	if err != nil {
		return nil, nil, err
	}

	admirers := make([]Admirer, 0, len(requests))
	for _, req := range requests {
		admirers = append(admirers, Admirer{UserID: req.SenderID, LikedAt: req.UpdatedAt})
	}
	return admirers, nextToken, nil
}

// CountAdmirers returns how many pending likes target userID.
// Cache-first: Redis counter with TTL refresh, DB fallback that reprimes
// the cache.
func (s *Service) CountAdmirers(ctx context.Context, userID uint64) (int64, error) {
	key := s.appCtx.RedisCache.KeyForAdmirerCount(userID)

	if n, ok, err := s.appCtx.RedisCache.GetCounter(ctx, key); err == nil && ok {
		return n, nil
	}

	count, err := s.mirrorRepo.CountAdmirers(ctx, userID)
	if err != nil {
		return 0, err
	}
	_ = s.appCtx.RedisCache.SetCounter(ctx, key, count)
	return count, nil
}
