package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/lvdashuaibi/votely/config"
	"github.com/lvdashuaibi/votely/internal/auth"
	"github.com/lvdashuaibi/votely/internal/model"
	"github.com/lvdashuaibi/votely/internal/repository"
	"github.com/lvdashuaibi/votely/internal/service"
)

type testServer struct {
	router *gin.Engine
	store  *repository.MemoryRepository
	tokens map[string]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	logger := zap.NewNop()

	store := repository.NewMemoryRepository()
	now := time.Now().UTC()
	users := []*model.User{
		{ID: "admin", Role: model.RoleAdmin, Status: model.UserActive},
		{ID: "v1", Role: model.RoleVoter, Status: model.UserActive},
		{ID: "v2", Role: model.RoleVoter, Status: model.UserActive},
	}
	for _, u := range users {
		require.NoError(t, store.CreateUser(ctx, u))
	}
	require.NoError(t, store.CreateElection(ctx, &model.Election{
		ID: "e1", Title: "Board", StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour),
		CreatedBy: "admin", CreatedAt: now,
	}))
	for _, id := range []string{"c1", "c2"} {
		require.NoError(t, store.CreateCandidate(ctx, &model.Candidate{ID: id, ElectionID: "e1", FullName: id, CreatedAt: now}))
	}

	tm := auth.NewTokenManager(config.AuthConfig{JWTSecret: "secret", TokenTTL: time.Hour})
	tokens := make(map[string]string)
	for _, u := range users {
		token, err := tm.Issue(u)
		require.NoError(t, err)
		tokens[u.ID] = token
	}

	tally := service.NewTallyEngine(store, nil, time.Hour, logger)
	votes := service.NewVoteService(store, tally, nil, nil, logger)
	elections := service.NewElectionService(store, tally, logger)

	accounts := service.NewUserService(store, tm, config.AuthConfig{
		BcryptCost:  bcrypt.MinCost,
		AdminEmails: []string{"Root@Votely.Local"},
	}, logger)

	router := NewRouter(RouterConfig{
		Handlers: NewHandlers(votes, elections, accounts, tally, logger),
		Auth:     auth.NewAuthenticator(tm, store),
		Logger:   logger,
	})
	return &testServer{router: router, store: store, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path, user string, body any) (int, Response) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+s.tokens[user])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func dataMap(t *testing.T, resp Response) map[string]any {
	t.Helper()
	m, ok := resp.Data.(map[string]any)
	require.True(t, ok, "data is %T", resp.Data)
	return m
}

func TestHealthAndNotFound(t *testing.T) {
	s := newTestServer(t)

	code, resp := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, code)
	require.True(t, resp.Status)

	code, resp = s.do(t, http.MethodGet, "/api/nowhere", "", nil)
	require.Equal(t, http.StatusNotFound, code)
	require.False(t, resp.Status)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	code, resp := s.do(t, http.MethodPost, "/api/votes", "", castVoteRequest{ElectionID: "e1", CandidateID: "c1"})
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, "Not authorized, no token", resp.Message)

	// 候选人列表不需要登录
	code, resp = s.do(t, http.MethodGet, "/api/elections/e1/candidates", "", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, resp.Data, 2)

	code, _ = s.do(t, http.MethodGet, "/api/candidates/c1", "", nil)
	require.Equal(t, http.StatusOK, code)
}

func TestCastAndRetractVote(t *testing.T) {
	s := newTestServer(t)

	code, resp := s.do(t, http.MethodPost, "/api/elections/e1/vote", "v1", castVoteRequest{CandidateID: "c1"})
	require.Equal(t, http.StatusCreated, code)
	require.True(t, resp.Status)
	vote := dataMap(t, resp)
	require.Equal(t, "v1", vote["userId"])
	voteID := vote["id"].(string)

	code, resp = s.do(t, http.MethodPost, "/api/votes", "v1", castVoteRequest{ElectionID: "e1", CandidateID: "c2"})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, model.ErrAlreadyVoted.Message, resp.Message)

	code, resp = s.do(t, http.MethodPost, "/api/votes", "v2", castVoteRequest{ElectionID: "e1", CandidateID: "nope"})
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, model.ErrCandidateNotInElection.Message, resp.Message)

	code, _ = s.do(t, http.MethodPost, "/api/votes", "v2", castVoteRequest{ElectionID: "missing", CandidateID: "c1"})
	require.Equal(t, http.StatusNotFound, code)

	code, resp = s.do(t, http.MethodGet, "/api/votes/me", "v1", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, resp.Data, 1)

	code, _ = s.do(t, http.MethodGet, "/api/votes/"+voteID, "v2", nil)
	require.Equal(t, http.StatusForbidden, code)
	code, _ = s.do(t, http.MethodGet, "/api/votes/"+voteID, "v1", nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodDelete, "/api/votes/"+voteID, "v1", nil)
	require.Equal(t, http.StatusForbidden, code)

	code, resp = s.do(t, http.MethodDelete, "/api/votes/"+voteID, "admin", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "Vote deleted successfully", resp.Message)

	c1, err := s.store.GetCandidate(context.Background(), "c1")
	require.NoError(t, err)
	require.Zero(t, c1.VotesCount)

	code, _ = s.do(t, http.MethodDelete, "/api/votes/"+voteID, "admin", nil)
	require.Equal(t, http.StatusNotFound, code)
}

func TestResultsVisibility(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodPost, "/api/votes", "v1", castVoteRequest{ElectionID: "e1", CandidateID: "c2"})
	require.Equal(t, http.StatusCreated, code)

	code, resp := s.do(t, http.MethodGet, "/api/elections/e1/results", "v1", nil)
	require.Equal(t, http.StatusForbidden, code)
	require.Equal(t, model.ErrResultsNotAvailable.Message, resp.Message)

	code, resp = s.do(t, http.MethodGet, "/api/elections/e1/results", "admin", nil)
	require.Equal(t, http.StatusOK, code)
	results := dataMap(t, resp)
	require.EqualValues(t, 1, results["totalVotes"])
	candidates := results["candidates"].([]any)
	require.Equal(t, "c2", candidates[0].(map[string]any)["id"])
}

func TestElectionAndCandidateAdmin(t *testing.T) {
	s := newTestServer(t)
	start := time.Now().UTC().Add(24 * time.Hour)

	body := map[string]any{"title": "Council", "startDate": start, "endDate": start.Add(time.Hour)}
	code, _ := s.do(t, http.MethodPost, "/api/elections", "v1", body)
	require.Equal(t, http.StatusForbidden, code)

	code, resp := s.do(t, http.MethodPost, "/api/elections", "admin", map[string]any{"title": "Council"})
	require.Equal(t, http.StatusBadRequest, code)
	require.False(t, resp.Status)

	code, resp = s.do(t, http.MethodPost, "/api/elections", "admin", body)
	require.Equal(t, http.StatusCreated, code)
	created := dataMap(t, resp)
	require.Equal(t, string(model.StatusUpcoming), created["status"])
	id := created["id"].(string)

	code, resp = s.do(t, http.MethodPut, "/api/elections/"+id, "admin", map[string]any{"title": "Renamed"})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "Renamed", dataMap(t, resp)["title"])

	// 未开始的选举不能添加候选人
	code, _ = s.do(t, http.MethodPost, "/api/candidates", "admin", map[string]any{"electionId": id, "fullName": "Ada"})
	require.Equal(t, http.StatusBadRequest, code)

	code, resp = s.do(t, http.MethodPost, "/api/candidates", "admin", map[string]any{"electionId": "e1", "fullName": "Ada"})
	require.Equal(t, http.StatusCreated, code)
	candidateID := dataMap(t, resp)["id"].(string)

	code, resp = s.do(t, http.MethodPut, "/api/candidates/"+candidateID, "admin", map[string]any{"description": "math", "votesCount": 99})
	require.Equal(t, http.StatusOK, code)
	updated := dataMap(t, resp)
	require.Equal(t, "math", updated["description"])
	require.EqualValues(t, 0, updated["votesCount"])

	code, _ = s.do(t, http.MethodDelete, "/api/candidates/"+candidateID, "v1", nil)
	require.Equal(t, http.StatusForbidden, code)
	code, _ = s.do(t, http.MethodDelete, "/api/candidates/"+candidateID, "admin", nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodDelete, "/api/elections/"+id, "admin", nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodGet, "/api/elections/"+id, "admin", nil)
	require.Equal(t, http.StatusNotFound, code)

	code, resp = s.do(t, http.MethodGet, "/api/elections", "v1", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, resp.Data, 1)
}

func TestRegisterLoginAndUsers(t *testing.T) {
	s := newTestServer(t)

	code, resp := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{"fullName": "Ada", "password": "secret1"})
	require.Equal(t, http.StatusBadRequest, code)
	require.False(t, resp.Status)

	code, _ = s.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"fullName": "Ada", "email": "not-an-email", "password": "secret1",
	})
	require.Equal(t, http.StatusBadRequest, code)

	code, resp = s.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"fullName": "Ada", "email": "Ada@Example.com", "password": "secret1", "phoneNumber": "+15550001111",
	})
	require.Equal(t, http.StatusCreated, code)
	registered := dataMap(t, resp)
	require.Equal(t, "ada@example.com", registered["email"])
	require.Equal(t, string(model.RoleVoter), registered["role"])
	require.NotEmpty(t, registered["token"])
	require.NotContains(t, registered, "passwordHash")

	code, resp = s.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"fullName": "Ada Again", "email": "ada@example.com", "password": "secret2",
	})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, model.ErrEmailTaken.Message, resp.Message)

	code, resp = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{"email": "ada@example.com", "password": "wrong!!"})
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, model.ErrInvalidCredentials.Message, resp.Message)

	code, resp = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{"email": "ADA@example.com ", "password": "secret1"})
	require.Equal(t, http.StatusOK, code)
	s.tokens["ada"] = dataMap(t, resp)["token"].(string)

	code, resp = s.do(t, http.MethodGet, "/api/users/me", "ada", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, registered["id"], dataMap(t, resp)["id"])

	// 新注册的用户可以直接投票
	code, _ = s.do(t, http.MethodPost, "/api/elections/e1/vote", "ada", castVoteRequest{CandidateID: "c1"})
	require.Equal(t, http.StatusCreated, code)

	code, _ = s.do(t, http.MethodGet, "/api/users", "ada", nil)
	require.Equal(t, http.StatusForbidden, code)
	code, resp = s.do(t, http.MethodGet, "/api/users", "admin", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, resp.Data, 4)

	code, resp = s.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"fullName": "Root", "email": "root@votely.local", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, string(model.RoleAdmin), dataMap(t, resp)["role"])

	code, _ = s.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	require.Equal(t, http.StatusOK, code)
}

func TestListAllCandidatesIsPublic(t *testing.T) {
	s := newTestServer(t)

	code, resp := s.do(t, http.MethodGet, "/api/candidates", "", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, resp.Data, 2)
}
