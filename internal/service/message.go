package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/zigg31416/Chatx/internal/domain"
	"github.com/zigg31416/Chatx/internal/repository"
)

// DefaultRecentLimit 是 Recent 未指定 limit 时返回的消息数。
const DefaultRecentLimit = 50

// MessageService 负责房间消息的追加与读取。
type MessageService struct {
	msgRepo repository.MessageRepository
	bus     repository.EventBus
	now     func() time.Time
}

// NewMessageService 创建 MessageService 实例。
func NewMessageService(msgRepo repository.MessageRepository, bus repository.EventBus) *MessageService {
	if msgRepo == nil {
		panic("MessageRepository cannot be nil for MessageService")
	}
	if bus == nil {
		panic("EventBus cannot be nil for MessageService")
	}
	return &MessageService{msgRepo: msgRepo, bus: bus, now: time.Now}
}

// Append 写入一条消息并把完整消息发布到房间的消息频道。
// 这是聊天内容唯一的写入路径，系统通知也走这里 (type=system)。
func (s *MessageService) Append(ctx context.Context, roomID, username, content string, msgType domain.MessageType) (*domain.Message, error) {
	if roomID == "" || strings.TrimSpace(username) == "" || strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: room id, username and content are required", ErrInvalidInput)
	}
	if msgType == "" {
		msgType = domain.MessageTypeUser
	}
	if !msgType.Valid() {
		return nil, fmt.Errorf("%w: unknown message type %q", ErrInvalidInput, msgType)
	}

	msg := &domain.Message{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		Username:  username,
		Content:   content,
		Type:      msgType,
		CreatedAt: s.now().UTC(),
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "message_id": msg.ID, "type": msgType})

	if err := s.msgRepo.Append(ctx, msg, domain.RoomTTL); err != nil {
		logCtx.WithError(err).Error("Failed to append message")
		return nil, storeError(err)
	}

	// 发布失败不影响写入，订阅者可以通过 Recent 补齐
	if err := s.bus.Publish(ctx, domain.ChannelMessages, roomID, msg); err != nil {
		logCtx.WithError(err).Warn("Failed to publish message")
	}
	logCtx.Debug("Message appended")
	return msg, nil
}

// Recent 返回房间最近 limit 条消息，按 created_at 升序；已过期的消息被跳过。
func (s *MessageService) Recent(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	if roomID == "" {
		return nil, fmt.Errorf("%w: room id is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	ids, err := s.msgRepo.RecentIDs(ctx, roomID, limit)
	if err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Error("Failed to read message list")
		return nil, storeError(err)
	}
	messages, err := s.msgRepo.FindByIDs(ctx, ids)
	if err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Error("Failed to read message bodies")
		return nil, storeError(err)
	}
	// 列表顺序即插入顺序，稳定排序保证同一时间戳按插入顺序排列
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, nil
}
