package repository

import (
	"context"
	"fmt"
)

// schemaStatements 建表语句，全部幂等。逐条执行，驱动默认不允许多语句
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            VARCHAR(36)  NOT NULL PRIMARY KEY,
		full_name     VARCHAR(255) NOT NULL,
		email         VARCHAR(255) NOT NULL,
		phone_number  VARCHAR(32)  NOT NULL DEFAULT '',
		password_hash VARCHAR(255) NOT NULL DEFAULT '',
		role          VARCHAR(16)  NOT NULL DEFAULT 'Voter',
		status        VARCHAR(16)  NOT NULL DEFAULT 'Active',
		created_at    DATETIME(6)  NOT NULL,
		UNIQUE KEY uk_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS elections (
		id              VARCHAR(36)   NOT NULL PRIMARY KEY,
		title           VARCHAR(255)  NOT NULL,
		description     TEXT          NOT NULL,
		image           VARCHAR(1024) NOT NULL DEFAULT '',
		start_date      DATETIME(6)   NOT NULL,
		end_date        DATETIME(6)   NOT NULL,
		status_override VARCHAR(16)   NOT NULL DEFAULT '',
		overridden_at   DATETIME(6)   NULL,
		created_by      VARCHAR(36)   NOT NULL,
		created_at      DATETIME(6)   NOT NULL,
		updated_at      DATETIME(6)   NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS candidates (
		id          VARCHAR(36)   NOT NULL PRIMARY KEY,
		election_id VARCHAR(36)   NOT NULL,
		full_name   VARCHAR(255)  NOT NULL,
		description TEXT          NOT NULL,
		image       VARCHAR(1024) NOT NULL DEFAULT '',
		votes_count BIGINT        NOT NULL DEFAULT 0,
		created_at  DATETIME(6)   NOT NULL,
		KEY idx_candidates_election (election_id, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS votes (
		id           VARCHAR(36) NOT NULL PRIMARY KEY,
		voter_id     VARCHAR(36) NOT NULL,
		election_id  VARCHAR(36) NOT NULL,
		candidate_id VARCHAR(36) NOT NULL,
		voted_at     DATETIME(6) NOT NULL,
		UNIQUE KEY uk_votes_voter_election (voter_id, election_id),
		KEY idx_votes_candidate (candidate_id),
		KEY idx_votes_election (election_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS user_voted_elections (
		user_id     VARCHAR(36) NOT NULL,
		election_id VARCHAR(36) NOT NULL,
		created_at  DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		PRIMARY KEY (user_id, election_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema 在主库上创建缺失的表
func (r *MySQLRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := r.masterDB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("创建数据表失败: %w", err)
		}
	}
	return nil
}
