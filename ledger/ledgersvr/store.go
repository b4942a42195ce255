// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ledgersvr 是開發用的遠端帳本：以 sqlite 實作 ledger.Client 依賴的 HTTP 合約。
//
// 只給本機開發與整合測試使用，正式環境的帳本由帳戶服務提供。
package ledgersvr

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/ledger"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id       TEXT PRIMARY KEY,
	email    TEXT NOT NULL UNIQUE,
	balance  INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS transactions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id     TEXT NOT NULL REFERENCES users(id),
	amount      INTEGER NOT NULL,
	type        TEXT NOT NULL,
	status      TEXT NOT NULL,
	created_at  INTEGER NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	idem_key    TEXT UNIQUE
);
CREATE INDEX IF NOT EXISTS idx_tx_user ON transactions(user_id, created_at);
`

const statusCompleted = "COMPLETED"

// Store sqlite 帳本。
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open 開啟（或建立）sqlite 檔案並建表。path 為 ":memory:" 時只開一條連線。
func Open(path string) (*Store, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errs.Wrap(err, "open sqlite")
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errs.Wrap(err, "migrate sqlite")
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureUser 取得 email 對應的帳戶，不存在時以 initial（分）開戶。
func (s *Store) EnsureUser(ctx context.Context, email string, initial int64) (ledger.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ledger.Account{}, errs.NewKind(errs.Warn, errs.InvalidConfig, "email required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(id,email,balance) VALUES (?,?,?) ON CONFLICT(email) DO NOTHING`,
		uuid.NewString(), email, initial)
	if err != nil {
		return ledger.Account{}, errs.Wrap(err, "insert user")
	}
	return s.UserByEmail(ctx, email)
}

func (s *Store) UserByEmail(ctx context.Context, email string) (ledger.Account, error) {
	var a ledger.Account
	err := s.db.QueryRowContext(ctx,
		`SELECT id,email,balance FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email))).Scan(&a.ID, &a.Email, &a.Balance)
	if errors.Is(err, sql.ErrNoRows) {
		return a, errs.NewKind(errs.Warn, errs.NotFound, "user not found: "+email)
	}
	if err != nil {
		return a, errs.Wrap(err, "query user")
	}
	return a, nil
}

func (s *Store) Users(ctx context.Context) ([]ledger.Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,email,balance FROM users ORDER BY email`)
	if err != nil {
		return nil, errs.Wrap(err, "query users")
	}
	defer rows.Close()
	out := []ledger.Account{}
	for rows.Next() {
		var a ledger.Account
		if err := rows.Scan(&a.ID, &a.Email, &a.Balance); err != nil {
			return nil, errs.Wrap(err, "scan user")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Create 寫入一筆交易並更新餘額，同一把 key 重送時回傳原交易、不重複套用。
//
// 扣款（BET_PLACED）大於餘額時回傳 InsufficientFunds。
func (s *Store) Create(ctx context.Context, userID string, typ ledger.TxType, amount int64, key, desc string) (ledger.Transaction, bool, error) {
	if amount <= 0 {
		return ledger.Transaction{}, false, errs.NewKind(errs.Warn, errs.InvalidConfig, "amount must be > 0")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Transaction{}, false, errs.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	if key != "" {
		var id int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM transactions WHERE idem_key = ?`, key).Scan(&id)
		if err == nil {
			t, err := s.transaction(ctx, tx, id)
			return t, true, err
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return ledger.Transaction{}, false, errs.Wrap(err, "query idempotency key")
		}
	}

	var balance int64
	err = tx.QueryRowContext(ctx, `SELECT balance FROM users WHERE id = ?`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Transaction{}, false, errs.NewKind(errs.Warn, errs.NotFound, "user not found: "+userID)
	}
	if err != nil {
		return ledger.Transaction{}, false, errs.Wrap(err, "query balance")
	}
	delta := amount
	if !typ.Credit() {
		if amount > balance {
			return ledger.Transaction{}, false, errs.NewKind(errs.Warn, errs.InsufficientFunds,
				fmt.Sprintf("insufficient balance: have %d want %d", balance, amount))
		}
		delta = -amount
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET balance = balance + ? WHERE id = ?`, delta, userID); err != nil {
		return ledger.Transaction{}, false, errs.Wrap(err, "update balance")
	}

	var nullKey any
	if key != "" {
		nullKey = key
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO transactions(user_id,amount,type,status,created_at,description,idem_key) VALUES (?,?,?,?,?,?,?)`,
		userID, amount, string(typ), statusCompleted, s.now().UTC().UnixMilli(), desc, nullKey)
	if err != nil {
		return ledger.Transaction{}, false, errs.Wrap(err, "insert transaction")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ledger.Transaction{}, false, errs.Wrap(err, "last insert id")
	}
	t, err := s.transaction(ctx, tx, id)
	if err != nil {
		return t, false, err
	}
	if err := tx.Commit(); err != nil {
		return ledger.Transaction{}, false, errs.Wrap(err, "commit")
	}
	return t, false, nil
}

func (s *Store) TransactionByID(ctx context.Context, id int64) (ledger.Transaction, error) {
	return s.transaction(ctx, s.db, id)
}

func (s *Store) TransactionsByUser(ctx context.Context, userID string) ([]ledger.Transaction, error) {
	return s.transactions(ctx, `WHERE user_id = ?`, userID)
}

func (s *Store) AllTransactions(ctx context.Context) ([]ledger.Transaction, error) {
	return s.transactions(ctx, "")
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const txColumns = `SELECT id,user_id,amount,type,status,created_at,description FROM transactions `

func (s *Store) transaction(ctx context.Context, q querier, id int64) (ledger.Transaction, error) {
	t, err := scanTx(q.QueryRowContext(ctx, txColumns+`WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return t, errs.NewKind(errs.Warn, errs.NotFound, fmt.Sprintf("transaction %d not found", id))
	}
	if err != nil {
		return t, errs.Wrap(err, "query transaction")
	}
	return t, nil
}

func (s *Store) transactions(ctx context.Context, where string, args ...any) ([]ledger.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, txColumns+where+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, errs.Wrap(err, "query transactions")
	}
	defer rows.Close()
	out := []ledger.Transaction{}
	for rows.Next() {
		t, err := scanTx(rows)
		if err != nil {
			return nil, errs.Wrap(err, "scan transaction")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTx(sc scanner) (ledger.Transaction, error) {
	var (
		t   ledger.Transaction
		typ string
		ms  int64
	)
	if err := sc.Scan(&t.ID, &t.UserID, &t.Amount, &typ, &t.Status, &ms, &t.Description); err != nil {
		return t, err
	}
	t.Type = ledger.TxType(typ)
	t.CreatedAt = time.UnixMilli(ms).UTC()
	return t, nil
}
