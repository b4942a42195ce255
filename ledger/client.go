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

// Package ledger 是遊戲與遠端帳戶系統之間唯一的金流通道。
//
// 所有會動到餘額的動作（押注扣款、派彩入帳）都經過 Client：
//   - 押注：先檢查快取餘額，再送出 BET_PLACED，確認後從遠端重讀餘額
//   - 派彩：送出 BET_WIN，確認後重讀；失敗時留在未入帳清單，由呼叫端明確要求才重送
//
// 快取餘額只來自遠端，從不在本地做加減。
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zintix-labs/minelab/auth"
	"github.com/zintix-labs/minelab/errs"
)

// IdempotencyHeader 交易寫入時帶的去重鍵標頭。
const IdempotencyHeader = "Idempotency-Key"

// Config 帳本客戶端設定。
type Config struct {
	BaseURL    string        // 帳本服務位址，例如 http://localhost:8083
	Identity   string        // 查帳戶用的身分鍵（email）
	Timeout    time.Duration // 單次遠端呼叫逾時，0 代表 10 秒
	HTTPClient *http.Client  // 選填；測試時注入
}

// Client 一位玩家的帳本客戶端，可同時被多個 goroutine 使用。
type Client struct {
	base *url.URL
	cfg  Config
	hc   *http.Client
	sess auth.Session
	log  *slog.Logger

	mu      sync.Mutex
	account Account
	balance float64
	pending []Pending
	subs    map[int]chan BalanceEvent
	nextSub int
}

// New 建立 Client；尚未讀取餘額，呼叫端需先 Reload。
func New(cfg Config, sess auth.Session, log *slog.Logger) (*Client, error) {
	if sess == nil {
		return nil, errs.NewKind(errs.Fatal, errs.InvalidConfig, "ledger: session required")
	}
	if strings.TrimSpace(cfg.Identity) == "" {
		return nil, errs.NewKind(errs.Fatal, errs.InvalidConfig, "ledger: identity required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errs.NewKind(errs.Fatal, errs.InvalidConfig, fmt.Sprintf("ledger: invalid base url %q", cfg.BaseURL))
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		base: base,
		cfg:  cfg,
		hc:   hc,
		sess: sess,
		log:  log.With(slog.String("identity", cfg.Identity)),
		subs: map[int]chan BalanceEvent{},
	}, nil
}

// Identity 回傳此客戶端綁定的身分鍵。
func (c *Client) Identity() string { return c.cfg.Identity }

// CurrentBalance 最後一次從遠端讀到的餘額，不發出網路呼叫。
func (c *Client) CurrentBalance() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balance
}

// Account 最後一次讀到的帳戶。
func (c *Client) Account() Account {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.account
}

// Reload GET {base}/users/{identity}，以遠端餘額（分 / 100）覆寫快取。
func (c *Client) Reload(ctx context.Context) error {
	return c.reload(ctx, "")
}

func (c *Client) reload(ctx context.Context, reason TxType) error {
	var acc Account
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(c.cfg.Identity), nil, nil, nil, &acc); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.balance
	c.account = acc
	c.balance = FromCents(acc.Balance)
	if c.balance != prev {
		c.publishLocked(BalanceEvent{Balance: c.balance, Previous: prev, Reason: reason, At: time.Now()})
	}
	return nil
}

// Sync POST {base}/users/sync，讓帳本建立（或確認）此身分的帳戶，之後重讀餘額。
func (c *Client) Sync(ctx context.Context) error {
	body, _ := json.Marshal(map[string]string{"email": c.cfg.Identity})
	if err := c.do(ctx, http.MethodPost, "/users/sync", nil, body, nil, nil); err != nil {
		return err
	}
	return c.Reload(ctx)
}

// PlaceBet 扣款。
//
// amount <= 0 或大於快取餘額時直接回傳 false，不發出網路呼叫。
// 遠端確認後回傳 true 並重讀餘額；重讀失敗只記錄，不影響結果。
func (c *Client) PlaceBet(ctx context.Context, amount float64) bool {
	if amount <= 0 || amount > c.CurrentBalance() {
		c.log.Debug("ledger.place_bet refused", slog.Float64("amount", amount), slog.Float64("balance", c.CurrentBalance()))
		return false
	}
	cents := ToCents(amount)
	if err := c.create(ctx, BetPlaced, cents, uuid.NewString()); err != nil {
		c.log.Warn("ledger.place_bet failed", slog.Float64("amount", amount), slog.Any("err", err))
		return false
	}
	if err := c.reload(ctx, BetPlaced); err != nil {
		c.log.Warn("ledger.reload after bet failed", slog.Any("err", err))
	}
	return true
}

// RecordWin 派彩入帳。
//
// 失敗時回傳 false，這筆入帳連同去重鍵留在 Unsettled，不自動重試。
func (c *Client) RecordWin(ctx context.Context, amount float64) bool {
	if amount < 0 {
		return false
	}
	cents := ToCents(amount)
	if cents == 0 {
		return true
	}
	key := uuid.NewString()
	if err := c.create(ctx, BetWin, cents, key); err != nil {
		c.log.Warn("ledger.record_win failed", slog.Float64("amount", amount), slog.String("key", key), slog.Any("err", err))
		c.mu.Lock()
		c.pending = append(c.pending, Pending{
			Key:       key,
			Type:      BetWin,
			Amount:    amount,
			Cents:     cents,
			At:        time.Now(),
			Attempts:  1,
			LastError: err.Error(),
		})
		c.mu.Unlock()
		return false
	}
	if err := c.reload(ctx, BetWin); err != nil {
		c.log.Warn("ledger.reload after win failed", slog.Any("err", err))
	}
	return true
}

// Unsettled 尚未被遠端確認的入帳（複本）。
func (c *Client) Unsettled() []Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Pending(nil), c.pending...)
}

// SettlePending 以原本的去重鍵依序重送未入帳的派彩，回傳成功筆數。
//
// 部分失敗時其餘仍會嘗試，失敗者留在清單並回傳 NetworkFailure / LedgerRejected。
func (c *Client) SettlePending(ctx context.Context) (int, error) {
	todo := c.Unsettled()
	if len(todo) == 0 {
		return 0, nil
	}
	done := make(map[string]struct{}, len(todo))
	failed := make(map[string]string, len(todo))
	var errList []error
	for _, p := range todo {
		if err := c.create(ctx, p.Type, p.Cents, p.Key); err != nil {
			failed[p.Key] = err.Error()
			errList = append(errList, err)
			continue
		}
		done[p.Key] = struct{}{}
	}

	c.mu.Lock()
	kept := c.pending[:0]
	for _, p := range c.pending {
		if _, ok := done[p.Key]; ok {
			continue
		}
		if msg, ok := failed[p.Key]; ok {
			p.Attempts++
			p.LastError = msg
		}
		kept = append(kept, p)
	}
	c.pending = kept
	c.mu.Unlock()

	if len(done) > 0 {
		if err := c.reload(ctx, BetWin); err != nil {
			c.log.Warn("ledger.reload after settle failed", slog.Any("err", err))
		}
	}
	c.log.Info("ledger.settle_pending", slog.Int("settled", len(done)), slog.Int("failed", len(failed)))
	if len(errList) > 0 {
		return len(done), errs.WrapKind(errors.Join(errList...), errs.Warn, errs.KindOf(errList[0]),
			fmt.Sprintf("%d of %d pending credits not settled", len(failed), len(todo)))
	}
	return len(done), nil
}

// Transactions GET {base}/transactions/user/{userId}。
func (c *Client) Transactions(ctx context.Context) ([]Transaction, error) {
	id, err := c.userID(ctx)
	if err != nil {
		return nil, err
	}
	var out []Transaction
	if err := c.do(ctx, http.MethodGet, "/transactions/user/"+url.PathEscape(id), nil, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Transaction GET {base}/transactions/{id}。
func (c *Client) Transaction(ctx context.Context, id int64) (Transaction, error) {
	var tx Transaction
	err := c.do(ctx, http.MethodGet, "/transactions/"+strconv.FormatInt(id, 10), nil, nil, nil, &tx)
	return tx, err
}

// Subscribe 訂閱餘額變動。消費太慢的訂閱者會掉事件，不會卡住帳本。
//
// 回傳的 cancel 可重複呼叫，呼叫後 channel 關閉。
func (c *Client) Subscribe() (<-chan BalanceEvent, func()) {
	ch := make(chan BalanceEvent, 8)
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}

func (c *Client) publishLocked(ev BalanceEvent) {
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (c *Client) userID(ctx context.Context) (string, error) {
	if id := c.Account().ID; id != "" {
		return id, nil
	}
	if err := c.Reload(ctx); err != nil {
		return "", err
	}
	if id := c.Account().ID; id != "" {
		return id, nil
	}
	return "", errs.NewKind(errs.Warn, errs.NotFound, "ledger: account has no id")
}

// create POST {base}/transactions/create/{userId}?type=&amount=<cents>。
func (c *Client) create(ctx context.Context, typ TxType, cents int64, key string) error {
	id, err := c.userID(ctx)
	if err != nil {
		return err
	}
	q := url.Values{}
	q.Set("type", string(typ))
	q.Set("amount", strconv.FormatInt(cents, 10))
	hdr := http.Header{}
	hdr.Set(IdempotencyHeader, key)
	return c.do(ctx, http.MethodPost, "/transactions/create/"+url.PathEscape(id), q, nil, hdr, nil)
}

// do 發出一次遠端呼叫。成功為任何 2xx；out 為 nil 時不解析回應內容。
func (c *Client) do(ctx context.Context, method, path string, q url.Values, body []byte, hdr http.Header, out any) error {
	tok, ok := c.sess.Token()
	if !c.sess.Active() || !ok {
		return errs.NewKind(errs.Warn, errs.Unauthenticated, "ledger: no active session")
	}
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = q.Encode()

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return errs.WrapKind(err, errs.Fatal, errs.InvalidConfig, "ledger: build request")
	}
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return errs.WrapKind(err, errs.Warn, errs.NetworkFailure, fmt.Sprintf("ledger: %s %s", method, path))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		e := errs.NewKind(errs.Warn, statusKind(resp.StatusCode), fmt.Sprintf("ledger: %s %s status %d", method, path, resp.StatusCode))
		e.Extra = strings.TrimSpace(string(snippet))
		return e
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(out); err != nil {
		return errs.WrapKind(err, errs.Warn, errs.LedgerRejected, fmt.Sprintf("ledger: decode %s", path))
	}
	return nil
}

func statusKind(code int) errs.Kind {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errs.Unauthenticated
	case http.StatusNotFound:
		return errs.NotFound
	case http.StatusPaymentRequired, http.StatusConflict:
		return errs.InsufficientFunds
	}
	if code >= 500 {
		return errs.NetworkFailure
	}
	return errs.LedgerRejected
}
