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

package httperr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zintix-labs/minelab/errs"
)

func TestStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{errs.NewKind(errs.Warn, errs.InsufficientFunds, "wager exceeds balance"), http.StatusPaymentRequired},
		{errs.NewKind(errs.Warn, errs.InvalidReveal, "tile already revealed"), http.StatusConflict},
		{errs.NewKind(errs.Fatal, errs.NetworkFailure, "ledger unreachable"), http.StatusBadGateway},
		{fmt.Errorf("session: %w", errs.NewKind(errs.Warn, errs.NotFound, "no session")), http.StatusNotFound},
		{errs.NewWarn("bad query"), http.StatusBadRequest},
		{errs.NewFatal("boom"), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
		{fmt.Errorf("ledger call: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{context.Canceled, http.StatusRequestTimeout},
	}
	for _, c := range cases {
		if got := StatusCode(c.err); got != c.want {
			t.Fatalf("StatusCode(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestErrsAndLog(t *testing.T) {
	w := httptest.NewRecorder()
	Errs(w, errs.NewKind(errs.Warn, errs.InvalidState, "round already running"))
	if w.Code != http.StatusConflict || !strings.Contains(w.Body.String(), "round already running") {
		t.Fatalf("unexpected response %d %q", w.Code, w.Body.String())
	}
	w = httptest.NewRecorder()
	Errs(w, nil)
	if w.Body.Len() != 0 {
		t.Fatalf("nil error must not write")
	}

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	Log(log, "bad request", errs.NewWarn("ignored"))
	if buf.Len() != 0 {
		t.Fatalf("plain 4xx must not be logged: %s", buf.String())
	}
	Log(log, "ledger", errs.NewKind(errs.Fatal, errs.NetworkFailure, "down"))
	Log(log, "crash", errs.NewFatal("boom"))
	out := buf.String()
	if !strings.Contains(out, "level=WARN msg=ledger") || !strings.Contains(out, "level=ERROR msg=crash") {
		t.Fatalf("unexpected log output: %s", out)
	}
}
