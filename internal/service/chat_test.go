package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fulljjb/server/internal/models"
)

func newChatService(t *testing.T) *ChatService {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.ChatMessage{}))

	return &ChatService{DB: db}
}

func seedUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	user := &models.User{Name: name, Email: name + "@example.com", Password: "x", Confirmed: true, Role: "user"}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestChatListOrdersByCreatedAt(t *testing.T) {
	svc := newChatService(t)
	alice := seedUser(t, svc.DB, "alice")
	bob := seedUser(t, svc.DB, "bob")

	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	// Insert out of id order so ordering must come from created_at.
	rows := []models.ChatMessage{
		{SenderID: bob.ID, Message: "second", CreatedAt: base.Add(2 * time.Minute)},
		{SenderID: alice.ID, Message: "first", CreatedAt: base.Add(1 * time.Minute)},
		{SenderID: alice.ID, Message: "third", CreatedAt: base.Add(3 * time.Minute)},
	}
	for i := range rows {
		require.NoError(t, svc.DB.Create(&rows[i]).Error)
	}

	got, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "first", got[0].Message)
	assert.Equal(t, "alice", got[0].Sender.Name)
	assert.Equal(t, "second", got[1].Message)
	assert.Equal(t, "bob", got[1].Sender.Name)
	assert.Equal(t, "third", got[2].Message)
}

func TestChatCreate(t *testing.T) {
	svc := newChatService(t)
	alice := seedUser(t, svc.DB, "alice")

	dto, err := svc.Create(context.Background(), alice.ID, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", dto.Message)
	assert.Equal(t, alice.ID, dto.SenderID)
	assert.Equal(t, Sender{ID: alice.ID, Name: "alice"}, dto.Sender)

	var count int64
	svc.DB.Model(&models.ChatMessage{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestChatCreateEmptyMessage(t *testing.T) {
	svc := newChatService(t)
	alice := seedUser(t, svc.DB, "alice")

	_, err := svc.Create(context.Background(), alice.ID, "  \t ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestChatCreateUnknownSender(t *testing.T) {
	svc := newChatService(t)

	_, err := svc.Create(context.Background(), 999, "hello")
	assert.ErrorIs(t, err, ErrSenderNotFound)
}

func TestChatDelete(t *testing.T) {
	svc := newChatService(t)
	alice := seedUser(t, svc.DB, "alice")

	dto, err := svc.Create(context.Background(), alice.ID, "hello")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), dto.ID))
	assert.ErrorIs(t, svc.Delete(context.Background(), dto.ID), ErrMessageNotFound)
}
