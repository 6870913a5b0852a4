package db_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/miroirapp/miroir/internal/db"
)

func TestTerminalStatus(t *testing.T) {
	assert.False(t, db.TerminalStatus(db.StatusPending))
	assert.False(t, db.TerminalStatus(db.StatusMatched))
	assert.True(t, db.TerminalStatus(db.StatusDeclined))
	assert.True(t, db.TerminalStatus(db.StatusExpired))
}

func TestCanonicalPair(t *testing.T) {
	a, b := db.CanonicalPair(9, 3)
	assert.Equal(t, uint64(3), a)
	assert.Equal(t, uint64(9), b)

	a, b = db.CanonicalPair(3, 9)
	assert.Equal(t, uint64(3), a)
	assert.Equal(t, uint64(9), b)
}

func TestMatchParticipants(t *testing.T) {
	m := db.Match{UserA: 3, UserB: 9}

	assert.True(t, m.HasUser(3))
	assert.True(t, m.HasUser(9))
	assert.False(t, m.HasUser(4))

	other, ok := m.OtherUser(3)
	assert.True(t, ok)
	assert.Equal(t, uint64(9), other)

	_, ok = m.OtherUser(4)
	assert.False(t, ok)
}
