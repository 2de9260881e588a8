package domain

import "time"

// JoinRequestTTL 加入申请的存活时间，与状态无关。
const JoinRequestTTL = 30 * time.Minute

// RequestStatus 是加入申请的状态。
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// IsTerminal 报告状态是否为终态 (approved / rejected)。
func (s RequestStatus) IsTerminal() bool {
	return s == RequestApproved || s == RequestRejected
}

// JoinRequest 表示访客进入房间的申请。
// 状态机: pending -> approved | rejected，终态不可再变更。
// 批准的申请只能用来进入房间一次，使用后 Entered 置为 true。
type JoinRequest struct {
	ID         string        `json:"id"`
	ChatroomID string        `json:"chatroom_id"`
	Username   string        `json:"username"`
	Status     RequestStatus `json:"status"`
	Entered    bool          `json:"entered"`
	CreatedAt  time.Time     `json:"created_at"`
}

// CanTransitionTo 检查从当前状态到目标状态是否合法。
func (r *JoinRequest) CanTransitionTo(next RequestStatus) bool {
	return r.Status == RequestPending && next.IsTerminal()
}

// CanEnter 报告申请能否用来进入房间：已批准且尚未使用。
func (r *JoinRequest) CanEnter() bool {
	return r.Status == RequestApproved && !r.Entered
}
