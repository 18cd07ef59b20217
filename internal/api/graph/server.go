package graph

import (
	"context"
	"net/http"
	"time"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
	"go.uber.org/zap"

	"github.com/lvdashuaibi/votely/internal/apperr"
	"github.com/lvdashuaibi/votely/internal/auth"
	"github.com/lvdashuaibi/votely/internal/model"
	"github.com/lvdashuaibi/votely/internal/service"
)

// GraphQLServer 只读的GraphQL查询接口
type GraphQLServer struct {
	schema   *graphql.Schema
	handler  *relay.Handler
	resolver *Resolver
}

const schemaString = `
type Candidate {
  id: String!
  electionId: String!
  fullName: String!
  description: String!
  image: String!
  votesCount: Int!
}

type Election {
  id: String!
  title: String!
  description: String!
  image: String!
  startDate: String!
  endDate: String!
  status: String!
  createdBy: String!
  candidates: [Candidate!]!
}

type Results {
  election: Election!
  candidates: [Candidate!]!
  totalVotes: Int!
}

type Vote {
  id: String!
  electionId: String!
  candidateId: String!
  votedAt: String!
}

type Query {
  # 所有选举
  elections: [Election!]!

  election(id: String!): Election!

  # 选举结果，未结束时只有管理员可见
  results(electionId: String!): Results!

  # 当前用户的投票，需要登录
  myVotes: [Vote!]!
}

schema {
  query: Query
}
`

// NewGraphQLServer 创建GraphQL服务
func NewGraphQLServer(votes *service.VoteService, elections *service.ElectionService, tally *service.TallyEngine, logger *zap.Logger) *GraphQLServer {
	resolver := &Resolver{votes: votes, elections: elections, tally: tally, logger: logger}
	schema := graphql.MustParseSchema(schemaString, resolver)

	return &GraphQLServer{
		schema:   schema,
		handler:  &relay.Handler{Schema: schema},
		resolver: resolver,
	}
}

// Handler 挂载到 gin 路由上，身份由外层中间件写入 context
func (s *GraphQLServer) Handler() http.Handler {
	return s.handler
}

// Resolver GraphQL解析器
type Resolver struct {
	votes     *service.VoteService
	elections *service.ElectionService
	tally     *service.TallyEngine
	logger    *zap.Logger
}

// resolverError 只向客户端暴露可公开的错误信息
type resolverError struct {
	err error
}

func (e resolverError) Error() string { return apperr.PublicMessage(e.err) }

func (e resolverError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": apperr.KindOf(e.err).String()}
}

func (r *Resolver) wrap(op string, err error) error {
	if apperr.KindOf(err) == apperr.KindInternal {
		r.logger.Error("GraphQL查询失败", zap.String("op", op), zap.Error(err))
	}
	return resolverError{err: err}
}

func (r *Resolver) Elections(ctx context.Context) ([]*ElectionResolver, error) {
	elections, err := r.elections.ListElections(ctx)
	if err != nil {
		return nil, r.wrap("elections", err)
	}
	out := make([]*ElectionResolver, len(elections))
	for i, e := range elections {
		out[i] = &ElectionResolver{root: r, election: e}
	}
	return out, nil
}

func (r *Resolver) Election(ctx context.Context, args struct{ ID string }) (*ElectionResolver, error) {
	detail, err := r.elections.GetElection(ctx, args.ID)
	if err != nil {
		return nil, r.wrap("election", err)
	}
	return &ElectionResolver{root: r, election: detail.Election, candidates: detail.CandidateList, loaded: true}, nil
}

func (r *Resolver) Results(ctx context.Context, args struct{ ElectionID string }) (*ResultsResolver, error) {
	results, err := r.tally.Results(ctx, args.ElectionID, auth.UserFromContext(ctx))
	if err != nil {
		return nil, r.wrap("results", err)
	}
	return &ResultsResolver{root: r, results: results}, nil
}

func (r *Resolver) MyVotes(ctx context.Context) ([]*VoteResolver, error) {
	user := auth.UserFromContext(ctx)
	if user == nil {
		return nil, r.wrap("myVotes", auth.ErrNoToken)
	}
	votes, err := r.votes.ListUserVotes(ctx, user)
	if err != nil {
		return nil, r.wrap("myVotes", err)
	}
	out := make([]*VoteResolver, len(votes))
	for i, v := range votes {
		out[i] = &VoteResolver{vote: v}
	}
	return out, nil
}

// ElectionResolver 选举解析器，候选人在需要时才加载
type ElectionResolver struct {
	root       *Resolver
	election   *model.Election
	candidates []*model.Candidate
	loaded     bool
}

func (r *ElectionResolver) ID() string          { return r.election.ID }
func (r *ElectionResolver) Title() string       { return r.election.Title }
func (r *ElectionResolver) Description() string { return r.election.Description }
func (r *ElectionResolver) Image() string       { return r.election.Image }
func (r *ElectionResolver) StartDate() string   { return r.election.StartDate.Format(time.RFC3339) }
func (r *ElectionResolver) EndDate() string     { return r.election.EndDate.Format(time.RFC3339) }
func (r *ElectionResolver) Status() string      { return string(r.election.Status) }
func (r *ElectionResolver) CreatedBy() string   { return r.election.CreatedBy }

func (r *ElectionResolver) Candidates(ctx context.Context) ([]*CandidateResolver, error) {
	if !r.loaded {
		candidates, err := r.root.elections.ListCandidates(ctx, r.election.ID)
		if err != nil {
			return nil, r.root.wrap("election.candidates", err)
		}
		r.candidates, r.loaded = candidates, true
	}
	return candidateResolvers(r.candidates), nil
}

func candidateResolvers(candidates []*model.Candidate) []*CandidateResolver {
	out := make([]*CandidateResolver, len(candidates))
	for i, c := range candidates {
		out[i] = &CandidateResolver{candidate: c}
	}
	return out
}

// CandidateResolver 候选人解析器
type CandidateResolver struct {
	candidate *model.Candidate
}

func (r *CandidateResolver) ID() string          { return r.candidate.ID }
func (r *CandidateResolver) ElectionID() string  { return r.candidate.ElectionID }
func (r *CandidateResolver) FullName() string    { return r.candidate.FullName }
func (r *CandidateResolver) Description() string { return r.candidate.Description }
func (r *CandidateResolver) Image() string       { return r.candidate.Image }
func (r *CandidateResolver) VotesCount() int32   { return int32(r.candidate.VotesCount) }

// ResultsResolver 选举结果解析器
type ResultsResolver struct {
	root    *Resolver
	results *model.Results
}

func (r *ResultsResolver) Election() *ElectionResolver {
	return &ElectionResolver{root: r.root, election: r.results.Election, candidates: r.results.Candidates, loaded: true}
}

func (r *ResultsResolver) Candidates() []*CandidateResolver {
	return candidateResolvers(r.results.Candidates)
}

func (r *ResultsResolver) TotalVotes() int32 { return int32(r.results.TotalVotes) }

// VoteResolver 投票解析器
type VoteResolver struct {
	vote *model.Vote
}

func (r *VoteResolver) ID() string          { return r.vote.ID }
func (r *VoteResolver) ElectionID() string  { return r.vote.ElectionID }
func (r *VoteResolver) CandidateID() string { return r.vote.CandidateID }
func (r *VoteResolver) VotedAt() string     { return r.vote.VotedAt.Format(time.RFC3339) }
