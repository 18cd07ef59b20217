package model

import (
	"time"

	"github.com/lvdashuaibi/votely/internal/apperr"
)

// Role 用户角色
type Role string

const (
	RoleAdmin Role = "Admin"
	RoleVoter Role = "Voter"
)

// UserStatus 用户状态
type UserStatus string

const (
	UserActive   UserStatus = "Active"
	UserInactive UserStatus = "Inactive"
)

// ElectionStatus 选举生命周期状态
type ElectionStatus string

const (
	StatusUpcoming ElectionStatus = "upcoming"
	StatusOngoing  ElectionStatus = "ongoing"
	StatusEnded    ElectionStatus = "ended"
)

// Valid 是否为合法的状态值
func (s ElectionStatus) Valid() bool {
	return s == StatusUpcoming || s == StatusOngoing || s == StatusEnded
}

var (
	ErrElectionNotFound       = apperr.NotFound("Election not found")
	ErrCandidateNotFound      = apperr.NotFound("Candidate not found")
	ErrCandidateNotInElection = apperr.NotFound("Candidate not found in this election")
	ErrVoteNotFound           = apperr.NotFound("Vote not found")
	ErrUserNotFound           = apperr.NotFound("User not found")

	ErrAlreadyVoted         = apperr.Conflict("You have already voted in this election")
	ErrElectionNotOngoing   = apperr.Conflict("Election is not currently active")
	ErrElectionStarted      = apperr.Conflict("Cannot change dates for an ongoing or ended election")
	ErrInvalidTransition    = apperr.Conflict("Invalid status transition")
	ErrElectionHasVotes     = apperr.Conflict("Cannot delete an election that has votes")
	ErrCandidateHasVotes    = apperr.Conflict("Cannot delete a candidate that has votes")
	ErrCandidateNotOngoing  = apperr.Conflict("Candidates can only be added to an ongoing election")
	ErrResultsNotAvailable  = apperr.Forbidden("Results are only available after the election has ended")
	ErrNotAdmin             = apperr.Forbidden("Not authorized as an admin")
	ErrNotOwnerOrAdmin      = apperr.Forbidden("Not authorized to access this resource")
	ErrUserInactive         = apperr.Forbidden("User account is inactive")
	ErrEmailTaken           = apperr.Conflict("User with this email already exists")
	ErrInvalidCredentials   = apperr.Unauthenticated("Invalid credentials")
	ErrAccountDeactivated   = apperr.Unauthenticated("Your account has been deactivated. Please contact an administrator.")
	ErrInvalidElectionDates = apperr.Validation("End date must be after start date")
)

// User 用户，VotedElections 是投票账本的投影。PasswordHash 是 bcrypt 哈希，不会序列化
type User struct {
	ID             string     `json:"id"`
	FullName       string     `json:"fullName"`
	Email          string     `json:"email"`
	PhoneNumber    string     `json:"phoneNumber,omitempty"`
	PasswordHash   string     `json:"-"`
	Role           Role       `json:"role"`
	Status         UserStatus `json:"status"`
	VotedElections []string   `json:"votedElections"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Election 选举。Status 为对外展示的有效状态，由生命周期计算得出
type Election struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Image          string         `json:"image,omitempty"`
	StartDate      time.Time      `json:"startDate"`
	EndDate        time.Time      `json:"endDate"`
	Status         ElectionStatus `json:"status"`
	StatusOverride ElectionStatus `json:"-"`
	OverriddenAt   *time.Time     `json:"-"`
	CreatedBy      string         `json:"createdBy"`
	Candidates     []string       `json:"candidates"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Candidate 候选人，VotesCount 只允许通过计票引擎原子增减
type Candidate struct {
	ID          string    `json:"id"`
	ElectionID  string    `json:"electionId"`
	FullName    string    `json:"fullName"`
	Description string    `json:"description"`
	Image       string    `json:"image,omitempty"`
	VotesCount  int64     `json:"votesCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Vote 投票记录，创建后不可修改，只能整条删除
type Vote struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	ElectionID  string    `json:"electionId"`
	CandidateID string    `json:"candidateId"`
	VotedAt     time.Time `json:"votedAt"`
}

// ElectionDetail 选举及其候选人
type ElectionDetail struct {
	*Election
	CandidateList []*Candidate `json:"candidateList"`
}

// Results 选举结果，候选人按票数降序
type Results struct {
	Election   *Election    `json:"election"`
	Candidates []*Candidate `json:"candidates"`
	TotalVotes int64        `json:"totalVotes"`
}

// TallyDelta 推送到选举房间的计票变化
type TallyDelta struct {
	ElectionID  string `json:"electionId"`
	CandidateID string `json:"candidateId"`
	VotesCount  int64  `json:"votesCount"`
}

// VoteRecord 推送到管理员房间的完整投票记录
type VoteRecord struct {
	VoteID      string    `json:"voteId"`
	ElectionID  string    `json:"electionId"`
	CandidateID string    `json:"candidateId"`
	VoterID     string    `json:"voterId"`
	VotedAt     time.Time `json:"votedAt"`
}

func NewVoteRecord(v *Vote) VoteRecord {
	return VoteRecord{
		VoteID:      v.ID,
		ElectionID:  v.ElectionID,
		CandidateID: v.CandidateID,
		VoterID:     v.UserID,
		VotedAt:     v.VotedAt,
	}
}

// VoteEventType 账本变更类型
type VoteEventType string

const (
	VoteEventCast    VoteEventType = "vote-cast"
	VoteEventDeleted VoteEventType = "vote-deleted"
)

// VoteEvent Kafka账本变更事件，提交之后才会发送
type VoteEvent struct {
	Type       VoteEventType `json:"type"`
	Vote       VoteRecord    `json:"vote"`
	VotesCount int64         `json:"votesCount"`
	OccurredAt time.Time     `json:"occurredAt"`
}
