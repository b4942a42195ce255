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
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zintix-labs/minelab/errs"
)

var secret = []byte("dev-secret")

func TestStatic(t *testing.T) {
	var s Session = Static("abc")
	if tok, ok := s.Token(); !ok || tok != "abc" || !s.Active() {
		t.Fatalf("static session must be active")
	}
	s = Static("")
	if _, ok := s.Token(); ok || s.Active() {
		t.Fatalf("empty static session must be inactive")
	}
}

func TestBearerExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBearer("tok", now.Add(time.Minute))
	b.now = func() time.Time { return now }
	if !b.Active() {
		t.Fatalf("bearer must be active before exp")
	}
	b.now = func() time.Time { return now.Add(2 * time.Minute) }
	if _, ok := b.Token(); ok {
		t.Fatalf("bearer must be inactive after exp")
	}
	b.Set("tok2", time.Time{})
	if tok, ok := b.Token(); !ok || tok != "tok2" {
		t.Fatalf("bearer without exp must stay active")
	}
	b.Clear()
	if b.Active() {
		t.Fatalf("cleared bearer must be inactive")
	}
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	if _, ok := BearerToken(r); ok {
		t.Fatalf("missing header must fail")
	}
	r.Header.Set("Authorization", "bearer  xyz ")
	if tok, ok := BearerToken(r); !ok || tok != "xyz" {
		t.Fatalf("got %q", tok)
	}
	r.Header.Set("Authorization", "Basic xyz")
	if _, ok := BearerToken(r); ok {
		t.Fatalf("basic auth must not be accepted")
	}
}

func TestVerifierSigned(t *testing.T) {
	tok, err := Issue(secret, "alice@example.com", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	v := NewVerifier(secret)
	c, err := v.Parse(tok)
	if err != nil {
		t.Fatal(err)
	}
	if c.Identity() != "alice@example.com" || c.Expires().IsZero() {
		t.Fatalf("unexpected claims: %+v", c)
	}
	if _, err := NewVerifier([]byte("other")).Parse(tok); !errs.IsKind(err, errs.Unauthenticated) {
		t.Fatalf("wrong secret must be Unauthenticated, got %v", err)
	}
}

func TestVerifierUnverified(t *testing.T) {
	tok, err := Issue([]byte("idp-key"), "bob@example.com", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	v := NewVerifier(nil)
	c, err := v.Parse(tok)
	if err != nil || c.Identity() != "bob@example.com" {
		t.Fatalf("unverified parse failed: %v", err)
	}
	v.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := v.Parse(tok); !errs.IsKind(err, errs.Unauthenticated) {
		t.Fatalf("expired token must fail, got %v", err)
	}
	if _, err := v.Parse("not-a-jwt"); err == nil {
		t.Fatalf("garbage token must fail")
	}
}

func TestPrincipalContext(t *testing.T) {
	ctx := WithPrincipal(context.Background(), Principal{Identity: "a", Token: "t"})
	p, ok := FromContext(ctx)
	if !ok || p.Identity != "a" {
		t.Fatalf("principal lost")
	}
	if _, ok := FromContext(context.Background()); ok {
		t.Fatalf("empty context must not carry a principal")
	}
}
