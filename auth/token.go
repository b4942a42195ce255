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

package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/zintix-labs/minelab/errs"
)

// Claims IdP 發出的 access token 內容（只取需要的欄位）。
type Claims struct {
	Email             string `json:"email,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	jwt.RegisteredClaims
}

// Identity 帳本以 email 查帳戶；缺 email 時退回 preferred_username，再退回 sub。
func (c *Claims) Identity() string {
	for _, s := range []string{c.Email, c.PreferredUsername, c.Subject} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// Expires 回傳 exp；未設定時為零值。
func (c *Claims) Expires() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Verifier 解析 bearer token。
//
// 有 secret 時以 HS256 驗章；沒有時只解析內容並檢查 exp，
// 適用於前面已有 gateway 驗過章的部署。
type Verifier struct {
	secret []byte
	leeway time.Duration
	now    func() time.Time
}

func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret, leeway: 5 * time.Second, now: time.Now}
}

// Verified 回報是否會驗章。
func (v *Verifier) Verified() bool {
	return len(v.secret) > 0
}

// Parse 解析並檢查 token，失敗一律回傳 Unauthenticated。
func (v *Verifier) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	if v.Verified() {
		_, err := jwt.ParseWithClaims(token, claims,
			func(t *jwt.Token) (any, error) { return v.secret, nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithLeeway(v.leeway),
			jwt.WithTimeFunc(v.now),
		)
		if err != nil {
			return nil, errs.WrapKind(err, errs.Warn, errs.Unauthenticated, "invalid bearer token")
		}
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, errs.WrapKind(err, errs.Warn, errs.Unauthenticated, "malformed bearer token")
		}
		if exp := claims.Expires(); !exp.IsZero() && !v.now().Before(exp.Add(v.leeway)) {
			return nil, errs.NewKind(errs.Warn, errs.Unauthenticated, "bearer token expired")
		}
	}
	if claims.Identity() == "" {
		return nil, errs.NewKind(errs.Warn, errs.Unauthenticated, "bearer token carries no identity")
	}
	return claims, nil
}

// Issue 簽出 HS256 token，給開發用帳本與測試使用。
func Issue(secret []byte, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  email,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
	if err != nil {
		return "", errs.Wrap(err, "sign token")
	}
	return s, nil
}
