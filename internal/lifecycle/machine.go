package lifecycle

// Status 许可单状态
type Status string

const (
	StatusPending        Status = "PENDING"
	StatusApproved       Status = "APPROVED"
	StatusRejected       Status = "REJECTED"
	StatusExtended       Status = "EXTENDED"
	StatusRevoked        Status = "REVOKED"
	StatusReapproved     Status = "REAPPROVED"
	StatusClosed         Status = "CLOSED"
	// StatusPendingRemarks 是安全备注覆盖条件的标签状态,没有任何转换会产生它,
	// 仅出现在历史数据中并参与 addSafetyRemarks 的前置条件集合
	StatusPendingRemarks Status = "PENDING_REMARKS"
)

// Event 生命周期事件
type Event string

const (
	EventApprove   Event = "APPROVE"
	EventReject    Event = "REJECT"
	EventExtend    Event = "EXTEND"
	EventRevoke    Event = "REVOKE"
	EventReapprove Event = "REAPPROVE"
	EventClose     Event = "CLOSE"
)

// Decision 审批记录决定
type Decision string

const (
	DecisionPending    Decision = "PENDING"
	DecisionApproved   Decision = "APPROVED"
	DecisionRejected   Decision = "REJECTED"
	DecisionReapproved Decision = "REAPPROVED"
)

// Action 操作历史动作
type Action string

const (
	ActionRevoked    Action = "REVOKED"
	ActionReapproved Action = "REAPPROVED"
	ActionExtended   Action = "EXTENDED"
	ActionClosed     Action = "CLOSED"
)

// transitions 状态转换表,以 (事件, 当前状态) 为键
// 不在表中的组合一律视为非法转换
var transitions = map[Event]map[Status]Status{
	EventApprove: {
		StatusPending: StatusApproved,
	},
	EventReject: {
		StatusPending: StatusRejected,
	},
	EventExtend: {
		StatusApproved: StatusExtended,
	},
	EventRevoke: {
		StatusApproved:   StatusRevoked,
		StatusExtended:   StatusRevoked,
		StatusReapproved: StatusRevoked,
	},
	EventReapprove: {
		StatusRevoked: StatusReapproved,
	},
	// close 只接受 APPROVED/EXTENDED,REAPPROVED 的许可单必须重新经过
	// revoke/审批循环后才能关闭
	EventClose: {
		StatusApproved: StatusClosed,
		StatusExtended: StatusClosed,
	},
}

// remarksAllowed addSafetyRemarks 的前置状态集合
var remarksAllowed = map[Status]bool{
	StatusApproved:       true,
	StatusPendingRemarks: true,
	StatusClosed:         true,
}

// ValidStatus 判断状态是否属于封闭集合
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusExtended,
		StatusRevoked, StatusReapproved, StatusClosed, StatusPendingRemarks:
		return true
	}
	return false
}

// Next 对当前状态应用事件,返回目标状态
// 转换表中不存在的组合返回 InvalidState 错误,重复应用同一事件同样失败
func Next(current Status, event Event) (Status, error) {
	targets, ok := transitions[event]
	if !ok {
		return "", NewInvalidState("unknown lifecycle event %q", event)
	}
	next, ok := targets[current]
	if !ok {
		return "", NewInvalidState("cannot apply %s to permit in status %s", event, current)
	}
	return next, nil
}

// CanAddRemarks 判断当前状态是否允许追加安全备注
func CanAddRemarks(current Status) bool {
	return remarksAllowed[current]
}

// DecisionEvent 将审批决定映射为生命周期事件
func DecisionEvent(decision Decision) (Event, error) {
	switch decision {
	case DecisionApproved:
		return EventApprove, nil
	case DecisionRejected:
		return EventReject, nil
	}
	return "", NewValidation("decision must be APPROVED or REJECTED, got %q", decision)
}
