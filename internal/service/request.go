package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/zigg31416/Chatx/internal/domain"
	"github.com/zigg31416/Chatx/internal/repository"
)

// JoinRequestService 负责加入申请的创建、查询和审批。
type JoinRequestService struct {
	reqRepo repository.JoinRequestRepository
	bus     repository.EventBus
	now     func() time.Time
}

// NewJoinRequestService 创建 JoinRequestService 实例。
func NewJoinRequestService(reqRepo repository.JoinRequestRepository, bus repository.EventBus) *JoinRequestService {
	if reqRepo == nil {
		panic("JoinRequestRepository cannot be nil for JoinRequestService")
	}
	if bus == nil {
		panic("EventBus cannot be nil for JoinRequestService")
	}
	return &JoinRequestService{reqRepo: reqRepo, bus: bus, now: time.Now}
}

// Request 创建一个待处理的加入申请，并在申请频道发布 new_request 事件。
func (s *JoinRequestService) Request(ctx context.Context, roomID, username string) (*domain.JoinRequest, error) {
	username = strings.TrimSpace(username)
	if roomID == "" || username == "" {
		return nil, fmt.Errorf("%w: room id and username are required", ErrInvalidInput)
	}

	req := &domain.JoinRequest{
		ID:         uuid.NewString(),
		ChatroomID: roomID,
		Username:   username,
		Status:     domain.RequestPending,
		CreatedAt:  s.now().UTC(),
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "request_id": req.ID, "username": username})

	if err := s.reqRepo.Create(ctx, req, domain.JoinRequestTTL); err != nil {
		logCtx.WithError(err).Error("Failed to create join request")
		return nil, storeError(err)
	}

	event := domain.RequestEvent{Type: domain.RequestEventNew, RequestID: req.ID, Username: username}
	if err := s.bus.Publish(ctx, domain.ChannelJoinRequests, roomID, event); err != nil {
		logCtx.WithError(err).Warn("Failed to publish new join request")
	}
	logCtx.Info("Join request created")
	return req, nil
}

// Get 读取单个申请。
func (s *JoinRequestService) Get(ctx context.Context, requestID string) (*domain.JoinRequest, error) {
	if requestID == "" {
		return nil, fmt.Errorf("%w: request id is required", ErrInvalidInput)
	}
	req, err := s.reqRepo.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			return nil, ErrRequestNotFound
		}
		logrus.WithField("request_id", requestID).WithError(err).Error("Failed to load join request")
		return nil, storeError(err)
	}
	return req, nil
}

// Pending 返回房间当前所有待处理的申请，按 created_at 升序。
func (s *JoinRequestService) Pending(ctx context.Context, roomID string) ([]domain.JoinRequest, error) {
	if roomID == "" {
		return nil, fmt.Errorf("%w: room id is required", ErrInvalidInput)
	}
	ids, err := s.reqRepo.PendingIDs(ctx, roomID)
	if err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Error("Failed to read pending set")
		return nil, storeError(err)
	}
	requests, err := s.reqRepo.FindByIDs(ctx, ids)
	if err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Error("Failed to read pending requests")
		return nil, storeError(err)
	}

	pending := make([]domain.JoinRequest, 0, len(requests))
	for _, req := range requests {
		if req.Status == domain.RequestPending {
			pending = append(pending, req)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending, nil
}

// Resolve 把待处理申请转为 approved 或 rejected。
// 非 pending 的申请返回 ErrInvalidState；并发审批时先写入者胜出，后者返回 ErrConflict。
func (s *JoinRequestService) Resolve(ctx context.Context, requestID string, status domain.RequestStatus) (*domain.JoinRequest, error) {
	if requestID == "" {
		return nil, fmt.Errorf("%w: request id is required", ErrInvalidInput)
	}
	if !status.IsTerminal() {
		return nil, fmt.Errorf("%w: status must be approved or rejected, got %q", ErrInvalidInput, status)
	}
	logCtx := logrus.WithFields(logrus.Fields{"request_id": requestID, "status": status})

	updated, err := s.reqRepo.Transition(ctx, requestID, func(req *domain.JoinRequest) error {
		if !req.CanTransitionTo(status) {
			return fmt.Errorf("%w: request is already %s", ErrInvalidState, req.Status)
		}
		req.Status = status
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidState):
			logCtx.Warn("Resolve rejected: request is not pending")
			return nil, err
		case errors.Is(err, repository.ErrRequestNotFound):
			return nil, ErrRequestNotFound
		case errors.Is(err, repository.ErrConflict):
			logCtx.Warn("Resolve lost a concurrent update")
			return nil, ErrConflict
		default:
			logCtx.WithError(err).Error("Failed to resolve join request")
			return nil, storeError(err)
		}
	}

	event := domain.RequestEvent{
		Type:      domain.RequestEventStatusUpdate,
		RequestID: updated.ID,
		Username:  updated.Username,
		Status:    updated.Status,
	}
	if err := s.bus.Publish(ctx, domain.ChannelJoinRequests, updated.ChatroomID, event); err != nil {
		logCtx.WithError(err).Warn("Failed to publish join request status update")
	}
	logCtx.WithField("room_id", updated.ChatroomID).Info("Join request resolved")
	return updated, nil
}

// ConsumeApproval 把已批准的申请标记为已使用，保证一个批准只能进入房间一次。
// 未批准或已使用的申请返回 ErrInvalidState；并发使用时只有一个调用成功，其余返回 ErrConflict。
func (s *JoinRequestService) ConsumeApproval(ctx context.Context, requestID string) (*domain.JoinRequest, error) {
	if requestID == "" {
		return nil, fmt.Errorf("%w: request id is required", ErrInvalidInput)
	}
	logCtx := logrus.WithField("request_id", requestID)

	updated, err := s.reqRepo.Transition(ctx, requestID, func(req *domain.JoinRequest) error {
		if !req.CanEnter() {
			if req.Entered {
				return fmt.Errorf("%w: approval has already been used", ErrInvalidState)
			}
			return fmt.Errorf("%w: join request is %s", ErrInvalidState, req.Status)
		}
		req.Entered = true
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidState):
			logCtx.Warn("ConsumeApproval rejected")
			return nil, err
		case errors.Is(err, repository.ErrRequestNotFound):
			return nil, ErrRequestNotFound
		case errors.Is(err, repository.ErrConflict):
			logCtx.Warn("ConsumeApproval lost a concurrent update")
			return nil, ErrConflict
		default:
			logCtx.WithError(err).Error("Failed to consume join request approval")
			return nil, storeError(err)
		}
	}
	logCtx.WithField("room_id", updated.ChatroomID).Info("Join request approval consumed")
	return updated, nil
}
