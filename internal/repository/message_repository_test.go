package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miroirapp/miroir/internal/db"
	"github.com/miroirapp/miroir/internal/repository"
)

func TestHistoryOrderingAndCursor(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMessageRepository(dbase)

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i := 0; i < 5; i++ {
		msg := &db.ChatMessage{
			MatchID:  1,
			SenderID: 1,
			Body:     fmt.Sprintf("m%d", i),
			SentAt:   base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, repo.Append(ctx, msg))
	}

	page1, next, err := repo.History(ctx, 1, nil, 3)
	require.NoError(t, err)
	require.NotNil(t, next)
	require.Len(t, page1, 3)
	assert.Equal(t, "m4", page1[0].Body)
	assert.Equal(t, "m2", page1[2].Body)

	page2, next, err := repo.History(ctx, 1, next, 3)
	require.NoError(t, err)
	assert.Nil(t, next)
	require.Len(t, page2, 2)
	assert.Equal(t, "m0", page2[1].Body)
}

func TestMarkReadBoundaries(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMessageRepository(dbase)

	now := time.Now().UTC().Truncate(time.Millisecond)
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Append(ctx, &db.ChatMessage{
			MatchID: 1, SenderID: 2, Body: "x", SentAt: now,
		}))
	}

	// read up to the second message only
	n, err := repo.MarkRead(ctx, 1, 2, 2, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// repeating is a no-op
	n, err = repo.MarkRead(ctx, 1, 2, 2, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)

	var unread int64
	dbase.Model(&db.ChatMessage{}).Where("read_at IS NULL").Count(&unread)
	assert.Equal(t, int64(1), unread)
}

func TestCountUndelivered(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMessageRepository(dbase)

	require.NoError(t, dbase.Create(&db.Match{UserA: 1, UserB: 2, Active: true}).Error)

	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, repo.Append(ctx, &db.ChatMessage{MatchID: 1, SenderID: 1, Body: "a", SentAt: now}))
	require.NoError(t, repo.Append(ctx, &db.ChatMessage{MatchID: 1, SenderID: 1, Body: "b", SentAt: now}))
	require.NoError(t, repo.Append(ctx, &db.ChatMessage{MatchID: 1, SenderID: 2, Body: "c", SentAt: now}))

	count, err := repo.CountUndelivered(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	n, err := repo.MarkDeliveredFrom(ctx, 1, 1, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	count, err = repo.CountUndelivered(ctx, 2)
	require.NoError(t, err)
	assert.Zero(t, count)
}
