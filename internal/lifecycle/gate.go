// Package lifecycle derives an election's effective state from its window
// and optional override, and decides which operations that state allows.
package lifecycle

import (
	"time"

	"github.com/lvdashuaibi/votely/internal/model"
)

func rank(s model.ElectionStatus) int {
	switch s {
	case model.StatusOngoing:
		return 1
	case model.StatusEnded:
		return 2
	default:
		return 0
	}
}

// Derive 根据时间窗口 [start, end) 计算状态
func Derive(start, end, now time.Time) model.ElectionStatus {
	switch {
	case now.Before(start):
		return model.StatusUpcoming
	case now.Before(end):
		return model.StatusOngoing
	default:
		return model.StatusEnded
	}
}

// Effective 计算有效状态。显式覆盖的状态一直生效，直到窗口推导的状态在覆盖之后
// 发生变化并且越过了覆盖状态
func Effective(e *model.Election, now time.Time) model.ElectionStatus {
	derived := Derive(e.StartDate, e.EndDate, now)
	if e.StatusOverride == "" || e.OverriddenAt == nil {
		return derived
	}
	atOverride := Derive(e.StartDate, e.EndDate, *e.OverriddenAt)
	if derived != atOverride && rank(derived) > rank(e.StatusOverride) {
		return derived
	}
	return e.StatusOverride
}

// CheckVotable 投票和新增候选人都要求选举进行中
func CheckVotable(e *model.Election, now time.Time) error {
	if Effective(e, now) != model.StatusOngoing {
		return model.ErrElectionNotOngoing
	}
	return nil
}

func CheckCandidateCreate(e *model.Election, now time.Time) error {
	if Effective(e, now) != model.StatusOngoing {
		return model.ErrCandidateNotOngoing
	}
	return nil
}

// CheckDateChange 只有未开始的选举才能修改时间
func CheckDateChange(e *model.Election, now time.Time) error {
	if Effective(e, now) != model.StatusUpcoming {
		return model.ErrElectionStarted
	}
	return nil
}

// CheckStatusTransition 非管理员只能 upcoming->ongoing、ongoing->ended，管理员可设任意状态
func CheckStatusTransition(current, next model.ElectionStatus, isAdmin bool) error {
	if !next.Valid() {
		return model.ErrInvalidTransition
	}
	if isAdmin || current == next {
		return nil
	}
	if (current == model.StatusUpcoming && next == model.StatusOngoing) ||
		(current == model.StatusOngoing && next == model.StatusEnded) {
		return nil
	}
	return model.ErrInvalidTransition
}

func CheckElectionDeletable(hasVotes bool) error {
	if hasVotes {
		return model.ErrElectionHasVotes
	}
	return nil
}

func CheckCandidateDeletable(hasVotes bool) error {
	if hasVotes {
		return model.ErrCandidateHasVotes
	}
	return nil
}

// CheckWindow 结束时间必须晚于开始时间
func CheckWindow(start, end time.Time) error {
	if !start.Before(end) {
		return model.ErrInvalidElectionDates
	}
	return nil
}
