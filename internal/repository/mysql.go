package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/lvdashuaibi/votely/config"
	"github.com/lvdashuaibi/votely/internal/lifecycle"
	"github.com/lvdashuaibi/votely/internal/model"
)

// MySQL 唯一键冲突错误码
const errDuplicateEntry = 1062

// MySQLRepository 记录存储。读走从库，账本事务、删除和计票读取走主库
type MySQLRepository struct {
	masterDB *sql.DB
	slaveDB  *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

func openDB(dsn string, cfg config.MySQLConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)
	return db, nil
}

func NewMySQLRepository(ctx context.Context, cfg config.MySQLConfig, logger *zap.Logger) (*MySQLRepository, error) {
	masterDB, err := openDB(cfg.Master, cfg)
	if err != nil {
		return nil, fmt.Errorf("连接主数据库失败: %w", err)
	}
	if err = masterDB.PingContext(ctx); err != nil {
		masterDB.Close()
		return nil, fmt.Errorf("主数据库连接测试失败: %w", err)
	}

	slaveDB := masterDB
	if cfg.Slave != "" {
		db, err := openDB(cfg.Slave, cfg)
		if err != nil {
			return nil, fmt.Errorf("连接从数据库失败: %w", err)
		}
		if err = db.PingContext(ctx); err != nil {
			logger.Warn("从数据库连接测试失败，将使用主数据库代替", zap.Error(err))
			db.Close()
		} else {
			slaveDB = db
		}
	}

	return NewMySQLRepositoryFromDB(masterDB, slaveDB), nil
}

// NewMySQLRepositoryFromDB 使用已有连接，slave 为 nil 时读写都走主库
func NewMySQLRepositoryFromDB(master, slave *sql.DB) *MySQLRepository {
	if slave == nil {
		slave = master
	}
	return &MySQLRepository{masterDB: master, slaveDB: slave}
}

const userColumns = "id, full_name, email, phone_number, password_hash, role, status, created_at"

func scanUser(s rowScanner) (*model.User, error) {
	var u model.User
	err := s.Scan(&u.ID, &u.FullName, &u.Email, &u.PhoneNumber, &u.PasswordHash, &u.Role, &u.Status, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.VotedElections = []string{}
	return &u, nil
}

// GetUser 获取用户及其已投票的选举
func (r *MySQLRepository) GetUser(ctx context.Context, id string) (*model.User, error) {
	return r.getUser(ctx, r.slaveDB, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

// GetUserByEmail 登录用，读主库，刚注册的用户可以立即登录
func (r *MySQLRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getUser(ctx, r.masterDB, "SELECT "+userColumns+" FROM users WHERE email = ?", email)
}

func (r *MySQLRepository) getUser(ctx context.Context, db *sql.DB, query, arg string) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		"SELECT election_id FROM user_voted_elections WHERE user_id = ? ORDER BY created_at", u.ID)
	if err != nil {
		return nil, fmt.Errorf("查询用户已投票选举失败: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var electionID string
		if err := rows.Scan(&electionID); err != nil {
			return nil, fmt.Errorf("扫描用户已投票选举失败: %w", err)
		}
		u.VotedElections = append(u.VotedElections, electionID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("迭代用户已投票选举失败: %w", err)
	}
	return u, nil
}

// ListUsers 获取所有用户，最新注册的在前
func (r *MySQLRepository) ListUsers(ctx context.Context) ([]*model.User, error) {
	rows, err := r.slaveDB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("查询所有用户失败: %w", err)
	}
	defer rows.Close()

	users := []*model.User{}
	byID := make(map[string]*model.User)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("扫描用户失败: %w", err)
		}
		users = append(users, u)
		byID[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("迭代用户失败: %w", err)
	}

	vrows, err := r.slaveDB.QueryContext(ctx,
		"SELECT user_id, election_id FROM user_voted_elections ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("查询用户已投票选举失败: %w", err)
	}
	defer vrows.Close()

	for vrows.Next() {
		var userID, electionID string
		if err := vrows.Scan(&userID, &electionID); err != nil {
			return nil, fmt.Errorf("扫描用户已投票选举失败: %w", err)
		}
		if u, ok := byID[userID]; ok {
			u.VotedElections = append(u.VotedElections, electionID)
		}
	}
	if err := vrows.Err(); err != nil {
		return nil, fmt.Errorf("迭代用户已投票选举失败: %w", err)
	}
	return users, nil
}

// CreateUser 邮箱唯一由 uk_users_email 保证
func (r *MySQLRepository) CreateUser(ctx context.Context, u *model.User) error {
	query := "INSERT INTO users (" + userColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?)"
	_, err := r.masterDB.ExecContext(ctx, query,
		u.ID, u.FullName, u.Email, u.PhoneNumber, u.PasswordHash, u.Role, u.Status, u.CreatedAt)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == errDuplicateEntry {
			return model.ErrEmailTaken
		}
		return fmt.Errorf("创建用户失败: %w", err)
	}
	return nil
}

const electionColumns = "id, title, description, image, start_date, end_date, status_override, overridden_at, created_by, created_at, updated_at"

func scanElection(s rowScanner) (*model.Election, error) {
	var (
		e            model.Election
		overriddenAt sql.NullTime
	)
	err := s.Scan(&e.ID, &e.Title, &e.Description, &e.Image, &e.StartDate, &e.EndDate,
		&e.StatusOverride, &overriddenAt, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if overriddenAt.Valid {
		t := overriddenAt.Time
		e.OverriddenAt = &t
	}
	e.Candidates = []string{}
	return &e, nil
}

// GetElection 获取选举，候选人ID按创建顺序排列
func (r *MySQLRepository) GetElection(ctx context.Context, id string) (*model.Election, error) {
	query := "SELECT " + electionColumns + " FROM elections WHERE id = ?"
	e, err := scanElection(r.slaveDB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrElectionNotFound
		}
		return nil, fmt.Errorf("查询选举失败: %w", err)
	}

	rows, err := r.slaveDB.QueryContext(ctx,
		"SELECT id FROM candidates WHERE election_id = ? ORDER BY created_at, id", id)
	if err != nil {
		return nil, fmt.Errorf("查询选举候选人失败: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cid string
		if err := rows.Scan(&cid); err != nil {
			return nil, fmt.Errorf("扫描候选人ID失败: %w", err)
		}
		e.Candidates = append(e.Candidates, cid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("迭代候选人ID失败: %w", err)
	}
	return e, nil
}

// ListElections 获取所有选举，最新创建的在前
func (r *MySQLRepository) ListElections(ctx context.Context) ([]*model.Election, error) {
	rows, err := r.slaveDB.QueryContext(ctx,
		"SELECT "+electionColumns+" FROM elections ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("查询所有选举失败: %w", err)
	}
	defer rows.Close()

	elections := []*model.Election{}
	byID := make(map[string]*model.Election)
	for rows.Next() {
		e, err := scanElection(rows)
		if err != nil {
			return nil, fmt.Errorf("扫描选举失败: %w", err)
		}
		elections = append(elections, e)
		byID[e.ID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("迭代选举失败: %w", err)
	}

	crows, err := r.slaveDB.QueryContext(ctx,
		"SELECT election_id, id FROM candidates ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("查询候选人ID失败: %w", err)
	}
	defer crows.Close()

	for crows.Next() {
		var electionID, cid string
		if err := crows.Scan(&electionID, &cid); err != nil {
			return nil, fmt.Errorf("扫描候选人ID失败: %w", err)
		}
		if e, ok := byID[electionID]; ok {
			e.Candidates = append(e.Candidates, cid)
		}
	}
	if err := crows.Err(); err != nil {
		return nil, fmt.Errorf("迭代候选人ID失败: %w", err)
	}
	return elections, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (r *MySQLRepository) CreateElection(ctx context.Context, e *model.Election) error {
	query := "INSERT INTO elections (" + electionColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	_, err := r.masterDB.ExecContext(ctx, query,
		e.ID, e.Title, e.Description, e.Image, e.StartDate, e.EndDate,
		e.StatusOverride, nullTime(e.OverriddenAt), e.CreatedBy, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("创建选举失败: %w", err)
	}
	return nil
}

// UpdateElection 更新可编辑字段，创建者和创建时间不变
func (r *MySQLRepository) UpdateElection(ctx context.Context, e *model.Election) error {
	query := `UPDATE elections SET title = ?, description = ?, image = ?, start_date = ?, end_date = ?,
			 status_override = ?, overridden_at = ?, updated_at = ?
			 WHERE id = ?`
	_, err := r.masterDB.ExecContext(ctx, query,
		e.Title, e.Description, e.Image, e.StartDate, e.EndDate,
		e.StatusOverride, nullTime(e.OverriddenAt), e.UpdatedAt, e.ID,
	)
	if err != nil {
		return fmt.Errorf("更新选举失败: %w", err)
	}
	return nil
}

// lockVotes 对投票记录做加锁读取，锁住索引区间，并发的投票插入要等本事务结束。
// 投票事务先插入投票再更新候选人，这里同样先锁投票，不会互相等待
func lockVotes(ctx context.Context, tx *sql.Tx, column, id string) (bool, error) {
	var voteID string
	err := tx.QueryRowContext(ctx, "SELECT id FROM votes WHERE "+column+" = ? LIMIT 1 FOR UPDATE", id).Scan(&voteID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DeleteElection 在一个事务里检查投票并删除选举及其候选人
func (r *MySQLRepository) DeleteElection(ctx context.Context, id string) error {
	tx, err := r.masterDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开始事务失败: %w", err)
	}

	hasVotes, err := lockVotes(ctx, tx, "election_id", id)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("查询选举投票失败: %w", err)
	}
	if err := lifecycle.CheckElectionDeletable(hasVotes); err != nil {
		tx.Rollback()
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM candidates WHERE election_id = ?", id); err != nil {
		tx.Rollback()
		return fmt.Errorf("删除选举候选人失败: %w", err)
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM elections WHERE id = ?", id)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("删除选举失败: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("获取删除结果失败: %w", err)
	}
	if rowsAffected == 0 {
		tx.Rollback()
		return model.ErrElectionNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

const candidateColumns = "id, election_id, full_name, description, image, votes_count, created_at"

func scanCandidate(s rowScanner) (*model.Candidate, error) {
	var c model.Candidate
	if err := s.Scan(&c.ID, &c.ElectionID, &c.FullName, &c.Description, &c.Image, &c.VotesCount, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *MySQLRepository) GetCandidate(ctx context.Context, id string) (*model.Candidate, error) {
	query := "SELECT " + candidateColumns + " FROM candidates WHERE id = ?"
	c, err := scanCandidate(r.slaveDB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrCandidateNotFound
		}
		return nil, fmt.Errorf("查询候选人失败: %w", err)
	}
	return c, nil
}

func (r *MySQLRepository) ListCandidates(ctx context.Context, electionID string, byVotes bool) ([]*model.Candidate, error) {
	order := "created_at, id"
	if byVotes {
		order = "votes_count DESC, created_at, id"
	}
	return queryCandidates(ctx, r.slaveDB, order, electionID)
}

// ListAllCandidates 所有候选人，最新创建的在前
func (r *MySQLRepository) ListAllCandidates(ctx context.Context) ([]*model.Candidate, error) {
	rows, err := r.slaveDB.QueryContext(ctx, "SELECT "+candidateColumns+" FROM candidates ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("查询所有候选人失败: %w", err)
	}
	return scanCandidates(rows)
}

// TallyCandidates 从库可能落后于刚提交的账本事务，结果只从主库读取
func (r *MySQLRepository) TallyCandidates(ctx context.Context, electionID string) ([]*model.Candidate, error) {
	return queryCandidates(ctx, r.masterDB, "votes_count DESC, created_at, id", electionID)
}

func queryCandidates(ctx context.Context, db *sql.DB, order, electionID string) ([]*model.Candidate, error) {
	query := "SELECT " + candidateColumns + " FROM candidates WHERE election_id = ? ORDER BY " + order
	rows, err := db.QueryContext(ctx, query, electionID)
	if err != nil {
		return nil, fmt.Errorf("查询候选人列表失败: %w", err)
	}
	return scanCandidates(rows)
}

func scanCandidates(rows *sql.Rows) ([]*model.Candidate, error) {
	defer rows.Close()

	candidates := []*model.Candidate{}
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("扫描候选人失败: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("迭代候选人失败: %w", err)
	}
	return candidates, nil
}

// CreateCandidate 新候选人票数总是从0开始
func (r *MySQLRepository) CreateCandidate(ctx context.Context, c *model.Candidate) error {
	query := "INSERT INTO candidates (" + candidateColumns + ") VALUES (?, ?, ?, ?, ?, 0, ?)"
	_, err := r.masterDB.ExecContext(ctx, query, c.ID, c.ElectionID, c.FullName, c.Description, c.Image, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("创建候选人失败: %w", err)
	}
	return nil
}

func (r *MySQLRepository) UpdateCandidate(ctx context.Context, c *model.Candidate) error {
	query := "UPDATE candidates SET full_name = ?, description = ?, image = ? WHERE id = ?"
	if _, err := r.masterDB.ExecContext(ctx, query, c.FullName, c.Description, c.Image, c.ID); err != nil {
		return fmt.Errorf("更新候选人失败: %w", err)
	}
	return nil
}

// DeleteCandidate 删除没有投票的候选人。候选人被删除后，等待中的投票事务
// 更新票数时找不到候选人而回滚
func (r *MySQLRepository) DeleteCandidate(ctx context.Context, id string) error {
	tx, err := r.masterDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开始事务失败: %w", err)
	}

	hasVotes, err := lockVotes(ctx, tx, "candidate_id", id)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("查询候选人投票失败: %w", err)
	}
	if err := lifecycle.CheckCandidateDeletable(hasVotes); err != nil {
		tx.Rollback()
		return err
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM candidates WHERE id = ?", id)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("删除候选人失败: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("获取删除结果失败: %w", err)
	}
	if rowsAffected == 0 {
		tx.Rollback()
		return model.ErrCandidateNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

const voteColumns = "id, voter_id, election_id, candidate_id, voted_at"

func scanVote(s rowScanner) (*model.Vote, error) {
	var v model.Vote
	if err := s.Scan(&v.ID, &v.UserID, &v.ElectionID, &v.CandidateID, &v.VotedAt); err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *MySQLRepository) GetVote(ctx context.Context, id string) (*model.Vote, error) {
	v, err := scanVote(r.slaveDB.QueryRowContext(ctx, "SELECT "+voteColumns+" FROM votes WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrVoteNotFound
		}
		return nil, fmt.Errorf("查询投票失败: %w", err)
	}
	return v, nil
}

func (r *MySQLRepository) queryVotes(ctx context.Context, query string, args ...any) ([]*model.Vote, error) {
	rows, err := r.slaveDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("查询投票列表失败: %w", err)
	}
	defer rows.Close()

	votes := []*model.Vote{}
	for rows.Next() {
		v, err := scanVote(rows)
		if err != nil {
			return nil, fmt.Errorf("扫描投票失败: %w", err)
		}
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("迭代投票失败: %w", err)
	}
	return votes, nil
}

func (r *MySQLRepository) ListVotes(ctx context.Context) ([]*model.Vote, error) {
	return r.queryVotes(ctx, "SELECT "+voteColumns+" FROM votes ORDER BY voted_at DESC, id DESC")
}

func (r *MySQLRepository) ListVotesByUser(ctx context.Context, userID string) ([]*model.Vote, error) {
	return r.queryVotes(ctx,
		"SELECT "+voteColumns+" FROM votes WHERE voter_id = ? ORDER BY voted_at DESC, id DESC", userID)
}

func (r *MySQLRepository) count(ctx context.Context, query string, arg string) (int64, error) {
	var n int64
	if err := r.slaveDB.QueryRowContext(ctx, query, arg).Scan(&n); err != nil {
		return 0, fmt.Errorf("统计投票数失败: %w", err)
	}
	return n, nil
}

func (r *MySQLRepository) CountVotes(ctx context.Context, electionID string) (int64, error) {
	return r.count(ctx, "SELECT COUNT(*) FROM votes WHERE election_id = ?", electionID)
}

// CandidateTally 两个数在同一条语句里读取，并发投票不会造成假的不一致
func (r *MySQLRepository) CandidateTally(ctx context.Context, candidateID string) (int64, int64, error) {
	query := `SELECT c.votes_count, (SELECT COUNT(*) FROM votes v WHERE v.candidate_id = c.id)
			 FROM candidates c WHERE c.id = ?`
	var votesCount, ledgerCount int64
	if err := r.masterDB.QueryRowContext(ctx, query, candidateID).Scan(&votesCount, &ledgerCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, model.ErrCandidateNotFound
		}
		return 0, 0, fmt.Errorf("读取候选人计票失败: %w", err)
	}
	return votesCount, ledgerCount, nil
}

// InTx 在主库上开启账本事务
func (r *MySQLRepository) InTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	tx, err := r.masterDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开始事务失败: %w", err)
	}

	if err := fn(&mysqlTx{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

// Close 关闭数据库连接
func (r *MySQLRepository) Close() {
	if r.masterDB != nil {
		r.masterDB.Close()
	}
	if r.slaveDB != nil && r.slaveDB != r.masterDB {
		r.slaveDB.Close()
	}
}

type mysqlTx struct {
	tx *sql.Tx
}

// InsertVote 重复投票由唯一键 (voter_id, election_id) 拦截
func (t *mysqlTx) InsertVote(ctx context.Context, v *model.Vote) error {
	query := "INSERT INTO votes (" + voteColumns + ") VALUES (?, ?, ?, ?, ?)"
	_, err := t.tx.ExecContext(ctx, query, v.ID, v.UserID, v.ElectionID, v.CandidateID, v.VotedAt)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == errDuplicateEntry {
			return model.ErrAlreadyVoted
		}
		return fmt.Errorf("插入投票失败: %w", err)
	}
	return nil
}

func (t *mysqlTx) DeleteVote(ctx context.Context, id string) (*model.Vote, error) {
	v, err := scanVote(t.tx.QueryRowContext(ctx, "SELECT "+voteColumns+" FROM votes WHERE id = ? FOR UPDATE", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrVoteNotFound
		}
		return nil, fmt.Errorf("锁定投票失败: %w", err)
	}

	if _, err := t.tx.ExecContext(ctx, "DELETE FROM votes WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("删除投票失败: %w", err)
	}
	return v, nil
}

// adjustVotes 原地更新票数后读取新值，行锁保证读到的是本事务的结果
func (t *mysqlTx) adjustVotes(ctx context.Context, update, candidateID string) (int64, error) {
	if _, err := t.tx.ExecContext(ctx, update, candidateID); err != nil {
		return 0, fmt.Errorf("更新候选人票数失败: %w", err)
	}

	var votes int64
	err := t.tx.QueryRowContext(ctx, "SELECT votes_count FROM candidates WHERE id = ?", candidateID).Scan(&votes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, model.ErrCandidateNotFound
		}
		return 0, fmt.Errorf("读取候选人票数失败: %w", err)
	}
	return votes, nil
}

func (t *mysqlTx) IncrementVotes(ctx context.Context, candidateID string) (int64, error) {
	return t.adjustVotes(ctx, "UPDATE candidates SET votes_count = votes_count + 1 WHERE id = ?", candidateID)
}

func (t *mysqlTx) DecrementVotes(ctx context.Context, candidateID string) (int64, error) {
	return t.adjustVotes(ctx, "UPDATE candidates SET votes_count = GREATEST(votes_count - 1, 0) WHERE id = ?", candidateID)
}

func (t *mysqlTx) AddVotedElection(ctx context.Context, userID, electionID string) error {
	_, err := t.tx.ExecContext(ctx,
		"INSERT IGNORE INTO user_voted_elections (user_id, election_id) VALUES (?, ?)", userID, electionID)
	if err != nil {
		return fmt.Errorf("记录用户已投票选举失败: %w", err)
	}
	return nil
}

func (t *mysqlTx) RemoveVotedElection(ctx context.Context, userID, electionID string) error {
	_, err := t.tx.ExecContext(ctx,
		"DELETE FROM user_voted_elections WHERE user_id = ? AND election_id = ?", userID, electionID)
	if err != nil {
		return fmt.Errorf("移除用户已投票选举失败: %w", err)
	}
	return nil
}
