package chat

import (
	"context"
	"strconv"
	"time"

	"github.com/miroirapp/miroir/internal/app"
	"github.com/miroirapp/miroir/internal/db"
	"github.com/miroirapp/miroir/internal/domain"
	"github.com/miroirapp/miroir/internal/notify"
	"github.com/miroirapp/miroir/internal/presence"
	"github.com/miroirapp/miroir/internal/repository"
)

// Push event types seen by connected clients.
const (
	EventMessageNew  = "message.new"
	EventTyping      = "typing"
	EventMessageRead = "message.read"
)

// Pusher delivers one payload to one live connection. Implementations are
// best-effort: a stale handle or a slow socket returns an error and the
// pipeline reclassifies the recipient as offline.
type Pusher interface {
	Push(ctx context.Context, handle presence.Handle, eventType string, payload map[string]any) error
}

// Service is the chat delivery pipeline: synchronous persistence followed
// by best-effort fan-out to the recipient's connections, with notification
// fallback when nothing is reachable.
type Service struct {
	appCtx      *app.AppContext
	matchRepo   *repository.MatchRepository
	messageRepo *repository.MessageRepository
	pusher      Pusher
	pushTimeout time.Duration
}

// NewService creates the pipeline. pusher may be nil, in which case every
// recipient is treated as offline.
func NewService(appCtx *app.AppContext, pusher Pusher, pushTimeout time.Duration) *Service {
	if pushTimeout <= 0 {
		pushTimeout = 3 * time.Second
	}
	return &Service{
		appCtx:      appCtx,
		matchRepo:   repository.NewMatchRepository(appCtx.DB),
		messageRepo: repository.NewMessageRepository(appCtx.DB),
		pusher:      pusher,
		pushTimeout: pushTimeout,
	}
}

// Send persists the message, then attempts delivery to every live
// connection of the other participant. Persistence always precedes the
// first delivery attempt: a crash after the insert can lose at most the
// push, never the message. Push failures are never surfaced to the
// sender; an all-offline recipient gets a notification instead.
func (s *Service) Send(ctx context.Context, senderID, matchID uint64, body string) (*db.ChatMessage, error) {
	log := s.appCtx.Logger
	log.Debug("Send called", "sender", senderID, "match", matchID)

	if body == "" {
		return nil, domain.Invalid("body", "must not be empty")
	}

	match, err := s.loadMatch(ctx, senderID, matchID)
	if err != nil {
		return nil, err
	}
	if !match.Active {
		return nil, domain.ErrInactiveMatch
	}

	msg := &db.ChatMessage{
		MatchID:  matchID,
		SenderID: senderID,
		Body:     body,
		SentAt:   time.Now().UTC(),
	}
	if err := s.messageRepo.Append(ctx, msg); err != nil {
		return nil, err
	}

	recipientID, _ := match.OtherUser(senderID)

	if s.fanOut(ctx, recipientID, EventMessageNew, messagePayload(msg)) {
		now := time.Now().UTC()
		if err := s.messageRepo.SetDelivered(ctx, msg.ID, now); err != nil {
			log.Error("failed to stamp delivery", "message_id", msg.ID, "err", err)
		} else {
			msg.DeliveredAt = &now
		}
		return msg, nil
	}

	// recipient offline (or every push failed): hand off a summary
	s.appCtx.Dispatcher.Dispatch(notify.NewEvent(notify.KindMessageReceived, recipientID, map[string]any{
		"message_id": strconv.FormatUint(msg.ID, 10),
		"match_id":   strconv.FormatUint(matchID, 10),
		"from":       strconv.FormatUint(senderID, 10),
		"preview":    preview(body),
	}))
	s.appCtx.RedisCache.BumpCounter(ctx, s.appCtx.RedisCache.KeyForUnread(recipientID), 1)

	return msg, nil
}

// Typing forwards a typing indicator to the other participant's live
// connections. Never persisted, never queued: an offline recipient simply
// misses it.
func (s *Service) Typing(ctx context.Context, userID, matchID uint64, isTyping bool) error {
	match, err := s.loadMatch(ctx, userID, matchID)
	if err != nil {
		return err
	}
	if !match.Active {
		return domain.ErrInactiveMatch
	}

	recipientID, _ := match.OtherUser(userID)
	s.fanOut(ctx, recipientID, EventTyping, map[string]any{
		"match_id":  strconv.FormatUint(matchID, 10),
		"user_id":   strconv.FormatUint(userID, 10),
		"is_typing": isTyping,
	})
	return nil
}

// MarkRead stamps read_at on the other participant's messages up to and
// including uptoMessageID. Idempotent: re-marking already-read messages
// changes nothing. Works on inactive matches too, since unmatch keeps
// history readable.
func (s *Service) MarkRead(ctx context.Context, userID, matchID, uptoMessageID uint64) error {
	match, err := s.loadMatch(ctx, userID, matchID)
	if err != nil {
		return err
	}

	otherID, _ := match.OtherUser(userID)
	n, err := s.messageRepo.MarkRead(ctx, matchID, otherID, uptoMessageID, time.Now().UTC())
	if err != nil {
		return err
	}

	if n > 0 {
		// let the original sender update their read receipts live
		s.fanOut(ctx, otherID, EventMessageRead, map[string]any{
			"match_id":  strconv.FormatUint(matchID, 10),
			"reader_id": strconv.FormatUint(userID, 10),
			"up_to_id":  strconv.FormatUint(uptoMessageID, 10),
		})
	}
	return nil
}

// History returns the match's messages newest first, cursor-paginated.
// Messages from the other participant that were never delivered are
// stamped delivered now. This is the redelivery path for reconnecting
// clients.
func (s *Service) History(
	ctx context.Context,
	userID, matchID uint64,
	paginationToken *string,
	limit int,
) ([]db.ChatMessage, *string, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	match, err := s.loadMatch(ctx, userID, matchID)
	if err != nil {
		return nil, nil, err
	}

	messages, nextToken, err := s.messageRepo.History(ctx, matchID, paginationToken, limit)
	if err != nil {
		return nil, nil, err
	}

	otherID, _ := match.OtherUser(userID)
	now := time.Now().UTC()
	if _, err := s.messageRepo.MarkDeliveredFrom(ctx, matchID, otherID, now); err != nil {
		s.appCtx.Logger.Error("failed to stamp redelivery", "match_id", matchID, "err", err)
	} else {
		for i := range messages {
			if messages[i].SenderID == otherID && messages[i].DeliveredAt == nil {
				messages[i].DeliveredAt = &now
			}
		}
		_ = s.appCtx.RedisCache.Del(ctx, s.appCtx.RedisCache.KeyForUnread(userID))
	}

	return messages, nextToken, nil
}

// UnreadCount returns how many messages await the user, cache-first with
// a DB fallback that reprimes the cache.
func (s *Service) UnreadCount(ctx context.Context, userID uint64) (int64, error) {
	key := s.appCtx.RedisCache.KeyForUnread(userID)

	if n, ok, err := s.appCtx.RedisCache.GetCounter(ctx, key); err == nil && ok {
		return n, nil
	}

	count, err := s.messageRepo.CountUndelivered(ctx, userID)
	if err != nil {
		return 0, err
	}
	_ = s.appCtx.RedisCache.SetCounter(ctx, key, count)
	return count, nil
}

// loadMatch fetches the match and enforces participation.
func (s *Service) loadMatch(ctx context.Context, userID, matchID uint64) (*db.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, domain.ErrMatchNotFound
	}
	if !match.HasUser(userID) {
		return nil, domain.ErrNotParticipant
	}
	return match, nil
}

// fanOut pushes the payload to every live connection of the recipient,
// each attempt bounded by the push timeout. Reports whether at least one
// push succeeded. Failures are logged only; the registry is advisory and
// stale handles are expected.
func (s *Service) fanOut(ctx context.Context, recipientID uint64, eventType string, payload map[string]any) bool {
	if s.pusher == nil {
		return false
	}

	handles := s.appCtx.Presence.Lookup(recipientID)
	if len(handles) == 0 {
		return false
	}

	delivered := false
	for _, h := range handles {
		pushCtx, cancel := context.WithTimeout(ctx, s.pushTimeout)
		err := s.pusher.Push(pushCtx, h, eventType, payload)
		cancel()
		if err != nil {
			s.appCtx.Logger.Debug("push failed",
				"handle", h.ID, "user", recipientID, "event", eventType, "err", err)
			continue
		}
		delivered = true
	}
	return delivered
}

func messagePayload(msg *db.ChatMessage) map[string]any {
	return map[string]any{
		"message_id": strconv.FormatUint(msg.ID, 10),
		"match_id":   strconv.FormatUint(msg.MatchID, 10),
		"sender_id":  strconv.FormatUint(msg.SenderID, 10),
		"body":       msg.Body,
		"sent_at":    msg.SentAt.UnixMilli(),
	}
}

func preview(body string) string {
	const max = 80
	if len(body) <= max {
		return body
	}
	return body[:max]
}
