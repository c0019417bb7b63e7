package lifecycle_test

import (
	"testing"

	"github.com/mautops/permit-gin/internal/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNext_ValidTransitions 测试合法状态转换
func TestNext_ValidTransitions(t *testing.T) {
	cases := []struct {
		current lifecycle.Status
		event   lifecycle.Event
		want    lifecycle.Status
	}{
		{lifecycle.StatusPending, lifecycle.EventApprove, lifecycle.StatusApproved},
		{lifecycle.StatusPending, lifecycle.EventReject, lifecycle.StatusRejected},
		{lifecycle.StatusApproved, lifecycle.EventExtend, lifecycle.StatusExtended},
		{lifecycle.StatusApproved, lifecycle.EventRevoke, lifecycle.StatusRevoked},
		{lifecycle.StatusExtended, lifecycle.EventRevoke, lifecycle.StatusRevoked},
		{lifecycle.StatusReapproved, lifecycle.EventRevoke, lifecycle.StatusRevoked},
		{lifecycle.StatusRevoked, lifecycle.EventReapprove, lifecycle.StatusReapproved},
		{lifecycle.StatusApproved, lifecycle.EventClose, lifecycle.StatusClosed},
		{lifecycle.StatusExtended, lifecycle.EventClose, lifecycle.StatusClosed},
	}

	for _, tc := range cases {
		next, err := lifecycle.Next(tc.current, tc.event)
		require.NoError(t, err, "applying %s to %s", tc.event, tc.current)
		assert.Equal(t, tc.want, next)
	}
}

// TestNext_InvalidTransitions 测试非法状态转换
func TestNext_InvalidTransitions(t *testing.T) {
	cases := []struct {
		current lifecycle.Status
		event   lifecycle.Event
	}{
		{lifecycle.StatusApproved, lifecycle.EventApprove}, // 重复审批
		{lifecycle.StatusRejected, lifecycle.EventApprove},
		{lifecycle.StatusClosed, lifecycle.EventRevoke},
		{lifecycle.StatusPending, lifecycle.EventExtend},
		{lifecycle.StatusExtended, lifecycle.EventExtend}, // 重复延期
		{lifecycle.StatusPending, lifecycle.EventClose},
		{lifecycle.StatusRevoked, lifecycle.EventClose},
		{lifecycle.StatusApproved, lifecycle.EventReapprove},
		{lifecycle.StatusClosed, lifecycle.EventClose}, // 重复关闭
	}

	for _, tc := range cases {
		_, err := lifecycle.Next(tc.current, tc.event)
		require.Error(t, err, "applying %s to %s should fail", tc.event, tc.current)
		assert.Equal(t, lifecycle.KindInvalidState, lifecycle.KindOf(err))
	}
}

// TestNext_ReapprovedCannotClose 重新审批后的许可单不能直接关闭
func TestNext_ReapprovedCannotClose(t *testing.T) {
	_, err := lifecycle.Next(lifecycle.StatusReapproved, lifecycle.EventClose)
	require.Error(t, err)
	assert.Equal(t, lifecycle.KindInvalidState, lifecycle.KindOf(err))
}

// TestNext_UnknownEvent 测试未知事件
func TestNext_UnknownEvent(t *testing.T) {
	_, err := lifecycle.Next(lifecycle.StatusPending, lifecycle.Event("FROBNICATE"))
	require.Error(t, err)
	assert.Equal(t, lifecycle.KindInvalidState, lifecycle.KindOf(err))
}

// TestValidStatus 测试状态封闭集合
func TestValidStatus(t *testing.T) {
	valid := []lifecycle.Status{
		lifecycle.StatusPending, lifecycle.StatusApproved, lifecycle.StatusRejected,
		lifecycle.StatusExtended, lifecycle.StatusRevoked, lifecycle.StatusReapproved,
		lifecycle.StatusClosed, lifecycle.StatusPendingRemarks,
	}
	for _, s := range valid {
		assert.True(t, lifecycle.ValidStatus(s), "status %s should be valid", s)
	}

	assert.False(t, lifecycle.ValidStatus(lifecycle.Status("DRAFT")))
	assert.False(t, lifecycle.ValidStatus(lifecycle.Status("")))
}

// TestCanAddRemarks 测试安全备注前置状态
func TestCanAddRemarks(t *testing.T) {
	assert.True(t, lifecycle.CanAddRemarks(lifecycle.StatusApproved))
	assert.True(t, lifecycle.CanAddRemarks(lifecycle.StatusPendingRemarks))
	assert.True(t, lifecycle.CanAddRemarks(lifecycle.StatusClosed))

	assert.False(t, lifecycle.CanAddRemarks(lifecycle.StatusPending))
	assert.False(t, lifecycle.CanAddRemarks(lifecycle.StatusRevoked))
	assert.False(t, lifecycle.CanAddRemarks(lifecycle.StatusExtended))
	assert.False(t, lifecycle.CanAddRemarks(lifecycle.StatusRejected))
}

// TestDecisionEvent 测试审批决定到事件的映射
func TestDecisionEvent(t *testing.T) {
	event, err := lifecycle.DecisionEvent(lifecycle.DecisionApproved)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.EventApprove, event)

	event, err = lifecycle.DecisionEvent(lifecycle.DecisionRejected)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.EventReject, event)

	_, err = lifecycle.DecisionEvent(lifecycle.DecisionPending)
	require.Error(t, err)
	assert.Equal(t, lifecycle.KindValidation, lifecycle.KindOf(err))

	_, err = lifecycle.DecisionEvent(lifecycle.Decision("MAYBE"))
	require.Error(t, err)
}
