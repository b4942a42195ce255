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

package netsvr

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestChiServerOptions(t *testing.T) {
	c := NewChiServer("", WithWriteTimeout(time.Minute), WithIdleTimeout(0))
	if !c.Ready() || c.Address() != defaultAddr {
		t.Fatalf("root server not ready: %q", c.Address())
	}
	if c.srv.WriteTimeout != time.Minute || c.srv.IdleTimeout != 2*time.Minute {
		t.Fatalf("options not applied: write=%v idle=%v", c.srv.WriteTimeout, c.srv.IdleTimeout)
	}
	if NewChiServer(":0", WithWriteTimeout(-1)).srv.WriteTimeout != 0 {
		t.Fatalf("negative write timeout must disable the limit")
	}
}

func TestChiRouting(t *testing.T) {
	c := NewChiServer(":0")
	tag := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Guard", "1")
			next.ServeHTTP(w, r)
		})
	}
	c.Group("/v1", func(r NetRouter) {
		if sub, ok := r.(*ChiAdapter); !ok || sub.Ready() {
			t.Fatalf("sub router must not be runnable")
		}
		r.Get("/games", func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "games") })
		r.With(tag).Post("/rounds", func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "round") })
	})
	c.Mount("/ledger", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ledger:"+r.URL.Path)
	}))

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	get := func(method, path string) (*http.Response, string) {
		req, _ := http.NewRequest(method, srv.URL+path, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return resp, string(b)
	}
	if _, body := get(http.MethodGet, "/v1/games"); body != "games" {
		t.Fatalf("GET /v1/games = %q", body)
	}
	resp, body := get(http.MethodPost, "/v1/rounds")
	if body != "round" || resp.Header.Get("X-Guard") != "1" {
		t.Fatalf("With middleware not applied: %q %v", body, resp.Header)
	}
	if resp, _ := get(http.MethodGet, "/v1/rounds"); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET on a POST route must be 405, got %d", resp.StatusCode)
	}
	if _, body := get(http.MethodGet, "/ledger/users"); !strings.HasSuffix(body, "/users") {
		t.Fatalf("mounted handler got %q", body)
	}
}
