package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zhihao1021/tjoy/module/chat/model"
	"github.com/zhihao1021/tjoy/tools/errs"
	"github.com/zhihao1021/tjoy/tools/ids"
)

// PgConfig configures the postgres pool.
type PgConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

// pgConn is the subset of *pgxpool.Pool the store needs.
type pgConn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgStore struct {
	db   pgConn
	pool *pgxpool.Pool
}

// OpenPg builds a pool from c, pings it and optionally applies the schema.
func OpenPg(ctx context.Context, c PgConfig) (*PgStore, error) {
	if c.DSN == "" {
		return nil, errs.ErrArgs.WrapMsg("postgres dsn is required")
	}
	cfg, err := pgxpool.ParseConfig(c.DSN)
	if err != nil {
		return nil, errs.WrapMsg(err, "parse postgres dsn")
	}
	if c.MaxConns > 0 {
		cfg.MaxConns = c.MaxConns
	}
	if c.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = c.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errs.WrapMsg(err, "unable to connect to database")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errs.WrapMsg(err, "ping database")
	}
	s := &PgStore{db: pool, pool: pool}
	if c.Migrate {
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *PgStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return errs.WrapMsg(err, "apply schema")
		}
	}
	return nil
}

// SaveMessage inserts m in its own transaction; any failure rolls it back.
func (s *PgStore) SaveMessage(ctx context.Context, m model.Message) (model.Message, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return model.Message{}, errs.WrapMsg(err, "begin tx")
	}
	// Commit 之后 Rollback 为空操作
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, insertMessage,
		m.ID.Int64(), m.AuthorID.Int64(), m.ConversationID.Int64(), m.Content, m.TranslatedContent); err != nil {
		return model.Message{}, errs.WrapMsg(err, "insert message", "id", m.ID)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Message{}, errs.WrapMsg(err, "commit message", "id", m.ID)
	}
	return m, nil
}

func (s *PgStore) MembersOfConversation(ctx context.Context, convID ids.ID) ([]ids.ID, error) {
	rows, err := s.db.Query(ctx, selectMembers, convID.Int64())
	if err != nil {
		return nil, errs.WrapMsg(err, "query members", "conv", convID)
	}
	raw, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, errs.WrapMsg(err, "scan members", "conv", convID)
	}
	out := make([]ids.ID, len(raw))
	for i, v := range raw {
		out[i] = ids.ID(v)
	}
	return out, nil
}

func (s *PgStore) AddMember(ctx context.Context, convID, userID ids.ID) error {
	_, err := s.db.Exec(ctx, insertMember, userID.Int64(), convID.Int64())
	return errs.WrapMsg(err, "add member", "conv", convID, "user", userID)
}

func (s *PgStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
