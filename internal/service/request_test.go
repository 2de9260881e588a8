package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zigg31416/Chatx/internal/domain"
	"github.com/zigg31416/Chatx/internal/repository"
	"github.com/zigg31416/Chatx/internal/repository/mocks"
	"github.com/zigg31416/Chatx/internal/service"
)

// transitionOn 返回一个在给定申请上执行 mutate 的 Transition 桩实现。
func transitionOn(stored *domain.JoinRequest) func(context.Context, string, func(*domain.JoinRequest) error) (*domain.JoinRequest, error) {
	return func(_ context.Context, _ string, mutate func(*domain.JoinRequest) error) (*domain.JoinRequest, error) {
		working := *stored
		if err := mutate(&working); err != nil {
			return nil, err
		}
		*stored = working
		return &working, nil
	}
}

func TestJoinRequestService_Request_Success(t *testing.T) {
	mockReqRepo := new(mocks.JoinRequestRepository)
	mockBus := new(mocks.EventBus)
	reqService := service.NewJoinRequestService(mockReqRepo, mockBus)
	ctx := context.Background()

	mockReqRepo.On("Create", ctx, mock.MatchedBy(func(req *domain.JoinRequest) bool {
		return req.ChatroomID == "room-1" && req.Username == "VOID" && req.Status == domain.RequestPending
	}), domain.JoinRequestTTL).Return(nil).Once()
	mockBus.On("Publish", ctx, domain.ChannelJoinRequests, "room-1", mock.MatchedBy(func(ev domain.RequestEvent) bool {
		return ev.Type == domain.RequestEventNew && ev.Username == "VOID" && ev.RequestID != ""
	})).Return(nil).Once()

	req, err := reqService.Request(ctx, "room-1", " VOID ")

	require.NoError(t, err)
	assert.Equal(t, "VOID", req.Username)
	assert.Equal(t, domain.RequestPending, req.Status)
	mockReqRepo.AssertExpectations(t)
	mockBus.AssertExpectations(t)
}

func TestJoinRequestService_Request_InvalidInput(t *testing.T) {
	mockReqRepo := new(mocks.JoinRequestRepository)
	reqService := service.NewJoinRequestService(mockReqRepo, new(mocks.EventBus))

	_, err := reqService.Request(context.Background(), "room-1", "")
	assert.ErrorIs(t, err, service.ErrInvalidInput)
	_, err = reqService.Request(context.Background(), "", "VOID")
	assert.ErrorIs(t, err, service.ErrInvalidInput)
	mockReqRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestJoinRequestService_Pending_FiltersAndSorts(t *testing.T) {
	mockReqRepo := new(mocks.JoinRequestRepository)
	reqService := service.NewJoinRequestService(mockReqRepo, new(mocks.EventBus))
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	ids := []string{"r2", "r1", "r3"}
	mockReqRepo.On("PendingIDs", ctx, "room-1").Return(ids, nil).Once()
	mockReqRepo.On("FindByIDs", ctx, ids).Return([]domain.JoinRequest{
		{ID: "r2", Status: domain.RequestPending, CreatedAt: base.Add(time.Minute)},
		{ID: "r1", Status: domain.RequestPending, CreatedAt: base},
		{ID: "r3", Status: domain.RequestApproved, CreatedAt: base},
	}, nil).Once()

	pending, err := reqService.Pending(ctx, "room-1")

	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "r1", pending[0].ID)
	assert.Equal(t, "r2", pending[1].ID)
}

func TestJoinRequestService_Resolve_Approve(t *testing.T) {
	mockReqRepo := new(mocks.JoinRequestRepository)
	mockBus := new(mocks.EventBus)
	reqService := service.NewJoinRequestService(mockReqRepo, mockBus)
	ctx := context.Background()
	stored := &domain.JoinRequest{ID: "r1", ChatroomID: "room-1", Username: "VOID", Status: domain.RequestPending}

	mockReqRepo.On("Transition", ctx, "r1", mock.Anything).Return(transitionOn(stored), nil).Once()
	mockBus.On("Publish", ctx, domain.ChannelJoinRequests, "room-1", domain.RequestEvent{
		Type:      domain.RequestEventStatusUpdate,
		RequestID: "r1",
		Username:  "VOID",
		Status:    domain.RequestApproved,
	}).Return(nil).Once()

	req, err := reqService.Resolve(ctx, "r1", domain.RequestApproved)

	require.NoError(t, err)
	assert.Equal(t, domain.RequestApproved, req.Status)
	assert.Equal(t, domain.RequestApproved, stored.Status)
	mockReqRepo.AssertExpectations(t)
	mockBus.AssertExpectations(t)
}

func TestJoinRequestService_Resolve_AlreadyResolved(t *testing.T) {
	mockReqRepo := new(mocks.JoinRequestRepository)
	mockBus := new(mocks.EventBus)
	ctx := context.Background()
	stored := &domain.JoinRequest{ID: "r1", ChatroomID: "room-1", Status: domain.RequestRejected}

	mockReqRepo.On("Transition", ctx, "r1", mock.Anything).Return(transitionOn(stored), nil).Once()

	_, err := service.NewJoinRequestService(mockReqRepo, mockBus).Resolve(ctx, "r1", domain.RequestApproved)

	assert.ErrorIs(t, err, service.ErrInvalidState)
	assert.Equal(t, domain.RequestRejected, stored.Status, "终态不可再变更")
	mockBus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestJoinRequestService_Resolve_RepositoryErrors(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name    string
		repoErr error
		want    error
	}{
		{"not found", repository.ErrRequestNotFound, service.ErrRequestNotFound},
		{"concurrent update", repository.ErrConflict, service.ErrConflict},
		{"store down", errors.New("connection reset"), service.ErrStoreUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mockReqRepo := new(mocks.JoinRequestRepository)
			mockReqRepo.On("Transition", ctx, "r1", mock.Anything).Return(nil, tc.repoErr).Once()

			_, err := service.NewJoinRequestService(mockReqRepo, new(mocks.EventBus)).Resolve(ctx, "r1", domain.RequestRejected)

			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestJoinRequestService_Resolve_InvalidStatus(t *testing.T) {
	mockReqRepo := new(mocks.JoinRequestRepository)

	_, err := service.NewJoinRequestService(mockReqRepo, new(mocks.EventBus)).Resolve(context.Background(), "r1", domain.RequestPending)

	assert.ErrorIs(t, err, service.ErrInvalidInput)
	mockReqRepo.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything)
}

func TestJoinRequestService_Get(t *testing.T) {
	mockReqRepo := new(mocks.JoinRequestRepository)
	ctx := context.Background()
	mockReqRepo.On("FindByID", ctx, "r1").Return(&domain.JoinRequest{ID: "r1"}, nil).Once()
	mockReqRepo.On("FindByID", ctx, "gone").Return(nil, repository.ErrRequestNotFound).Once()
	reqService := service.NewJoinRequestService(mockReqRepo, new(mocks.EventBus))

	req, err := reqService.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", req.ID)

	_, err = reqService.Get(ctx, "gone")
	assert.ErrorIs(t, err, service.ErrRequestNotFound)
}

func TestJoinRequestService_ConsumeApproval_OnlyOnce(t *testing.T) {
	mockReqRepo := new(mocks.JoinRequestRepository)
	reqService := service.NewJoinRequestService(mockReqRepo, new(mocks.EventBus))
	ctx := context.Background()
	stored := &domain.JoinRequest{ID: "r1", ChatroomID: "room-1", Username: "VOID", Status: domain.RequestApproved}
	mockReqRepo.On("Transition", ctx, "r1", mock.Anything).Return(transitionOn(stored), nil).Twice()

	consumed, err := reqService.ConsumeApproval(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, consumed.Entered)
	assert.True(t, stored.Entered)

	_, err = reqService.ConsumeApproval(ctx, "r1")
	assert.ErrorIs(t, err, service.ErrInvalidState)
	mockReqRepo.AssertExpectations(t)
}

func TestJoinRequestService_ConsumeApproval_RequiresApproval(t *testing.T) {
	ctx := context.Background()
	for _, status := range []domain.RequestStatus{domain.RequestPending, domain.RequestRejected} {
		t.Run(string(status), func(t *testing.T) {
			mockReqRepo := new(mocks.JoinRequestRepository)
			stored := &domain.JoinRequest{ID: "r1", ChatroomID: "room-1", Status: status}
			mockReqRepo.On("Transition", ctx, "r1", mock.Anything).Return(transitionOn(stored), nil).Once()

			_, err := service.NewJoinRequestService(mockReqRepo, new(mocks.EventBus)).ConsumeApproval(ctx, "r1")

			assert.ErrorIs(t, err, service.ErrInvalidState)
			assert.False(t, stored.Entered)
		})
	}
}

func TestJoinRequestService_ConsumeApproval_RepositoryErrors(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name    string
		repoErr error
		want    error
	}{
		{"not found", repository.ErrRequestNotFound, service.ErrRequestNotFound},
		{"concurrent use", repository.ErrConflict, service.ErrConflict},
		{"store down", errors.New("connection reset"), service.ErrStoreUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mockReqRepo := new(mocks.JoinRequestRepository)
			mockReqRepo.On("Transition", ctx, "r1", mock.Anything).Return(nil, tc.repoErr).Once()

			_, err := service.NewJoinRequestService(mockReqRepo, new(mocks.EventBus)).ConsumeApproval(ctx, "r1")

			assert.ErrorIs(t, err, tc.want)
		})
	}
}
