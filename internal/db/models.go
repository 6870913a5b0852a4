package db

import (
	"time"
)

// Gender values accepted on a profile.
const (
	GenderHomme      = "homme"
	GenderFemme      = "femme"
	GenderNonBinaire = "non-binaire"
	GenderAutre      = "autre"
)

// ValidGender reports whether g is one of the accepted enum values.
func ValidGender(g string) bool {
	switch g {
	case GenderHomme, GenderFemme, GenderNonBinaire, GenderAutre:
		return true
	}
	return false
}

// Profile table. Location is a plain lat/long pair; distance filtering is
// done in the discovery layer so queries stay portable across MySQL/SQLite.
type Profile struct {
	UserID       uint64 `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"uniqueIndex;size:64;not null"`
	Email        string `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	Gender       string `gorm:"size:16;not null;index:idx_visible_gender_age,priority:2"`
	Age          int    `gorm:"not null;index:idx_visible_gender_age,priority:3"`
	Lat          float64
	Lng          float64
	Visible      bool      `gorm:"default:true;index:idx_visible_gender_age,priority:1"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// Mirror request statuses.
const (
	StatusPending  = "pending"
	StatusMatched  = "matched"
	StatusDeclined = "declined"
	StatusExpired  = "expired"
)

// TerminalStatus reports whether s ends the directed relationship.
// Declined is terminal for good; Expired is terminal but permits a fresh like.
func TerminalStatus(s string) bool {
	return s == StatusDeclined || s == StatusExpired
}

// MirrorRequest represents a one-directional expression of interest
// from sender to receiver.
//
// Unique index (sender_id, receiver_id) guarantees a single row per
// direction: a fresh like after Expired reuses the row rather than
// inserting a second one.
//
// Index idx_receiver_status_updated(receiver_id, status, updated_at DESC,
// sender_id) backs the paginated "who liked me" listing.
type MirrorRequest struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	SenderID   uint64    `gorm:"not null;uniqueIndex:idx_sender_receiver,priority:1"`
	ReceiverID uint64    `gorm:"not null;uniqueIndex:idx_sender_receiver,priority:2;index:idx_receiver_status_updated,priority:1"`
	Status     string    `gorm:"size:16;not null;index:idx_receiver_status_updated,priority:2"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime;index:idx_receiver_status_updated,priority:3,sort:desc"`
}

// Match is the confirmed bidirectional relationship. UserA < UserB always
// (canonical ordering); the unique index on the pair is the transactional
// backstop against two concurrent mutual likes creating duplicates.
// Rows are never deleted, only deactivated, so chat history keeps an owner.
type Match struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UserA     uint64    `gorm:"not null;uniqueIndex:idx_pair,priority:1"`
	UserB     uint64    `gorm:"not null;uniqueIndex:idx_pair,priority:2"`
	Active    bool      `gorm:"default:true"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// HasUser reports whether userID is one of the two participants.
func (m *Match) HasUser(userID uint64) bool {
	return m.UserA == userID || m.UserB == userID
}

// OtherUser returns the participant opposite to userID.
func (m *Match) OtherUser(userID uint64) (uint64, bool) {
	switch userID {
	case m.UserA:
		return m.UserB, true
	case m.UserB:
		return m.UserA, true
	}
	return 0, false
}

// CanonicalPair orders two user IDs so that (a, b) and (b, a) map to the
// same Match row.
func CanonicalPair(x, y uint64) (uint64, uint64) {
	if x < y {
		return x, y
	}
	return y, x
}

// ChatMessage is append-only. Total order within a match is
// (sent_at, id); DeliveredAt/ReadAt are set after the fact and never
// affect ordering.
type ChatMessage struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	MatchID     uint64    `gorm:"not null;index:idx_match_sent,priority:1"`
	SenderID    uint64    `gorm:"not null"`
	Body        string    `gorm:"type:text;not null"`
	SentAt      time.Time `gorm:"not null;index:idx_match_sent,priority:2"`
	DeliveredAt *time.Time
	ReadAt      *time.Time
}
