package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/fulljjb/server/internal/events"
	"github.com/fulljjb/server/internal/logging"
	"github.com/fulljjb/server/internal/models"
	"github.com/fulljjb/server/internal/ws"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrEmptyMessage    = errors.New("message is empty")
	ErrSenderNotFound  = errors.New("sender not found")
)

// Sender is the resolved author of a chat message, looked up at
// read/emit time rather than denormalized at rest.
type Sender struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type MessageDTO struct {
	ID        uint      `json:"id"`
	SenderID  uint      `json:"sender_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Sender    Sender    `json:"sender"`
}

// ChatService is the single write path for chat messages. Both the
// HTTP handlers and the socket event handlers call into it, so
// validation and broadcast behavior are identical regardless of entry
// point.
type ChatService struct {
	DB       *gorm.DB
	Hub      *ws.Hub
	Producer *events.Producer
}

// List returns the full message log ordered by creation time
// ascending, each message resolved with its sender's id and name.
func (s *ChatService) List(ctx context.Context) ([]MessageDTO, error) {
	var msgs []models.ChatMessage
	if err := s.DB.Order("created_at ASC").Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("chat: list failed: %w", err)
	}

	senders, err := s.resolveSenders(msgs)
	if err != nil {
		return nil, err
	}

	out := make([]MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toDTO(m, senders[m.SenderID]))
	}
	return out, nil
}

// Create persists a message, resolves its sender and broadcasts the
// result to every connected client as a new_chat_message event.
func (s *ChatService) Create(ctx context.Context, senderID uint, text string) (*MessageDTO, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	var sender models.User
	if err := s.DB.First(&sender, senderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSenderNotFound
		}
		return nil, fmt.Errorf("chat: sender lookup failed: %w", err)
	}

	msg := models.ChatMessage{SenderID: senderID, Message: text}
	if err := s.DB.Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("chat: create failed: %w", err)
	}

	dto := toDTO(msg, Sender{ID: sender.ID, Name: sender.Name})

	if s.Hub != nil {
		s.Hub.Broadcast("new_chat_message", dto)
	}
	s.publish(ctx, map[string]interface{}{
		"type":      "chat_message_created",
		"messageID": msg.ID,
		"senderID":  senderID,
	})

	return &dto, nil
}

// Delete removes a message by id and broadcasts message_deleted to
// every connected client.
func (s *ChatService) Delete(ctx context.Context, id uint) error {
	var msg models.ChatMessage
	if err := s.DB.First(&msg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMessageNotFound
		}
		return fmt.Errorf("chat: lookup failed: %w", err)
	}

	if err := s.DB.Delete(&msg).Error; err != nil {
		return fmt.Errorf("chat: delete failed: %w", err)
	}

	if s.Hub != nil {
		s.Hub.Broadcast("message_deleted", id)
	}
	s.publish(ctx, map[string]interface{}{
		"type":      "chat_message_deleted",
		"messageID": id,
	})

	return nil
}

// HandleNewMessage adapts Create to the socket event signature.
func (s *ChatService) HandleNewMessage(ctx context.Context, senderID uint, text string) error {
	_, err := s.Create(ctx, senderID, text)
	return err
}

// HandleDeleteMessage adapts Delete to the socket event signature.
func (s *ChatService) HandleDeleteMessage(ctx context.Context, id uint) error {
	return s.Delete(ctx, id)
}

func (s *ChatService) publish(ctx context.Context, event map[string]interface{}) {
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.Producer.PublishEvent(pubCtx, "chat_events", fmt.Sprint(event["messageID"]), event); err != nil {
		logging.FromContext(ctx).Error("kafka publish error", "error", err)
	}
}

func (s *ChatService) resolveSenders(msgs []models.ChatMessage) (map[uint]Sender, error) {
	seen := make(map[uint]struct{}, len(msgs))
	ids := make([]uint, 0, len(msgs))
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; ok {
			continue
		}
		seen[m.SenderID] = struct{}{}
		ids = append(ids, m.SenderID)
	}

	senders := make(map[uint]Sender, len(ids))
	if len(ids) > 0 {
		var users []models.User
		if err := s.DB.Select("id", "name").Where("id IN ?", ids).Find(&users).Error; err != nil {
			return nil, fmt.Errorf("chat: sender resolution failed: %w", err)
		}
		for _, u := range users {
			senders[u.ID] = Sender{ID: u.ID, Name: u.Name}
		}
	}
	return senders, nil
}

func toDTO(m models.ChatMessage, sender Sender) MessageDTO {
	return MessageDTO{
		ID:        m.ID,
		SenderID:  m.SenderID,
		Message:   m.Message,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		Sender:    sender,
	}
}
