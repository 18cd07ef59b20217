package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lvdashuaibi/votely/internal/model"
	"github.com/lvdashuaibi/votely/internal/service"
)

// Handlers REST 接口，业务规则全部在 service 层
type Handlers struct {
	votes     *service.VoteService
	elections *service.ElectionService
	users     *service.UserService
	tally     *service.TallyEngine
	logger    *zap.Logger
}

func NewHandlers(
	votes *service.VoteService,
	elections *service.ElectionService,
	users *service.UserService,
	tally *service.TallyEngine,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{votes: votes, elections: elections, users: users, tally: tally, logger: logger}
}

type castVoteRequest struct {
	ElectionID  string `json:"electionId"`
	CandidateID string `json:"candidateId"`
}

// CastVote POST /api/votes
func (h *Handlers) CastVote(c *gin.Context) {
	var req castVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, h.logger, errBadBody)
		return
	}
	h.castVote(c, req.ElectionID, req.CandidateID)
}

// VoteInElection POST /api/elections/:id/vote
func (h *Handlers) VoteInElection(c *gin.Context) {
	var req castVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, h.logger, errBadBody)
		return
	}
	h.castVote(c, c.Param("id"), req.CandidateID)
}

func (h *Handlers) castVote(c *gin.Context, electionID, candidateID string) {
	vote, err := h.votes.CastVote(c.Request.Context(), currentUser(c), electionID, candidateID)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusCreated, "Vote cast successfully", vote)
}

func (h *Handlers) DeleteVote(c *gin.Context) {
	if _, err := h.votes.RetractVote(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Vote deleted successfully", nil)
}

func (h *Handlers) ListVotes(c *gin.Context) {
	votes, err := h.votes.ListVotes(c.Request.Context(), currentUser(c))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Votes retrieved successfully", votes)
}

func (h *Handlers) MyVotes(c *gin.Context) {
	votes, err := h.votes.ListUserVotes(c.Request.Context(), currentUser(c))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "User votes retrieved successfully", votes)
}

func (h *Handlers) GetVote(c *gin.Context) {
	vote, err := h.votes.GetVote(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Vote retrieved successfully", vote)
}

type electionRequest struct {
	Title       *string               `json:"title"`
	Description *string               `json:"description"`
	Image       *string               `json:"image"`
	StartDate   *time.Time            `json:"startDate"`
	EndDate     *time.Time            `json:"endDate"`
	Status      *model.ElectionStatus `json:"status"`
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func (h *Handlers) ListElections(c *gin.Context) {
	elections, err := h.elections.ListElections(c.Request.Context())
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Elections retrieved successfully", elections)
}

func (h *Handlers) GetElection(c *gin.Context) {
	detail, err := h.elections.GetElection(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Election retrieved successfully", detail)
}

func (h *Handlers) CreateElection(c *gin.Context) {
	var req electionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, h.logger, errBadBody)
		return
	}
	e, err := h.elections.CreateElection(c.Request.Context(), currentUser(c), service.ElectionInput{
		Title:       deref(req.Title),
		Description: deref(req.Description),
		Image:       deref(req.Image),
		StartDate:   deref(req.StartDate),
		EndDate:     deref(req.EndDate),
	})
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusCreated, "Election created successfully", e)
}

func (h *Handlers) UpdateElection(c *gin.Context) {
	var req electionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, h.logger, errBadBody)
		return
	}
	e, err := h.elections.UpdateElection(c.Request.Context(), currentUser(c), c.Param("id"), service.ElectionPatch{
		Title:       req.Title,
		Description: req.Description,
		Image:       req.Image,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Status:      req.Status,
	})
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Election updated successfully", e)
}

func (h *Handlers) DeleteElection(c *gin.Context) {
	if err := h.elections.DeleteElection(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Election deleted successfully", nil)
}

func (h *Handlers) ElectionCandidates(c *gin.Context) {
	candidates, err := h.elections.ListCandidates(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Candidates retrieved successfully", candidates)
}

// ElectionResults 未结束的选举只有管理员能看到结果
func (h *Handlers) ElectionResults(c *gin.Context) {
	results, err := h.tally.Results(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Election results retrieved successfully", results)
}

type candidateRequest struct {
	ElectionID  string  `json:"electionId"`
	FullName    *string `json:"fullName"`
	Description *string `json:"description"`
	Image       *string `json:"image"`
}

// ListCandidates GET /api/candidates
func (h *Handlers) ListCandidates(c *gin.Context) {
	candidates, err := h.elections.ListAllCandidates(c.Request.Context())
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Candidates retrieved successfully", candidates)
}

func (h *Handlers) GetCandidate(c *gin.Context) {
	candidate, err := h.elections.GetCandidate(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Candidate retrieved successfully", candidate)
}

func (h *Handlers) CreateCandidate(c *gin.Context) {
	var req candidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, h.logger, errBadBody)
		return
	}
	candidate, err := h.elections.CreateCandidate(c.Request.Context(), currentUser(c), service.CandidateInput{
		ElectionID:  req.ElectionID,
		FullName:    deref(req.FullName),
		Description: deref(req.Description),
		Image:       deref(req.Image),
	})
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusCreated, "Candidate created successfully", candidate)
}

// UpdateCandidate 请求体中的 votesCount 和 electionId 会被忽略
func (h *Handlers) UpdateCandidate(c *gin.Context) {
	var req candidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, h.logger, errBadBody)
		return
	}
	candidate, err := h.elections.UpdateCandidate(c.Request.Context(), currentUser(c), c.Param("id"), service.CandidatePatch{
		FullName:    req.FullName,
		Description: req.Description,
		Image:       req.Image,
	})
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Candidate updated successfully", candidate)
}

func (h *Handlers) DeleteCandidate(c *gin.Context) {
	if err := h.elections.DeleteCandidate(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Candidate deleted successfully", nil)
}
