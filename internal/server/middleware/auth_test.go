package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZewK3/Home-sub002/internal/audit"
	"github.com/ZewK3/Home-sub002/internal/policy/engine"
	sessiondomain "github.com/ZewK3/Home-sub002/internal/session/domain"
	sessionservice "github.com/ZewK3/Home-sub002/internal/session/service"
)

type fakeValidator struct {
	mu     sync.Mutex
	tokens map[string]sessiondomain.Principal
	err    error
	calls  []string
}

func (f *fakeValidator) Validate(_ context.Context, token string) (sessiondomain.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, token)
	if f.err != nil {
		return sessiondomain.Principal{}, f.err
	}
	if token == "" {
		return sessiondomain.Principal{}, sessionservice.ErrMissingToken
	}
	p, ok := f.tokens[token]
	if !ok {
		return sessiondomain.Principal{}, sessionservice.ErrInvalidToken
	}
	return p, nil
}

type fakeAuthorizer struct {
	allow map[string]bool
	err   error
}

func (f *fakeAuthorizer) Allow(_ context.Context, in engine.Input) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.allow[in.Action], nil
}

type auditEntry struct {
	principalID, action, resource, metadata string
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (r *recordingAudit) LogEvent(_ context.Context, principalID, action, resource, metadata string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, auditEntry{principalID, action, resource, metadata})
}

var customer = sessiondomain.Principal{ID: "u1", Kind: sessiondomain.PrincipalCustomer}

func newGuard(v *fakeValidator, a *fakeAuthorizer, au *recordingAudit, m *Metrics) *Guard {
	var al audit.AuditLogger
	if au != nil {
		al = au
	}
	return NewGuard(v, a, al, nil, m, zerolog.Nop())
}

func echoPrincipal() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := GetPrincipal(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_, _ = w.Write([]byte(p.ID))
	})
}

func TestProtect_Allowed(t *testing.T) {
	v := &fakeValidator{tokens: map[string]sessiondomain.Principal{"tok": customer}}
	au := &recordingAudit{}
	g := newGuard(v, &fakeAuthorizer{allow: map[string]bool{"getOrders": true}}, au, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	g.Protect("getOrders", echoPrincipal()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", rec.Body.String())
	assert.Equal(t, []string{"tok"}, v.calls, "Validate runs exactly once")
	require.Len(t, au.entries, 1)
	assert.Equal(t, "u1", au.entries[0].principalID)
	assert.Equal(t, "list", au.entries[0].action)
	assert.Equal(t, "order", au.entries[0].resource)
	assert.Contains(t, au.entries[0].metadata, `"status_code":200`)
}

func TestProtect_QueryTokenWinsOverHeader(t *testing.T) {
	v := &fakeValidator{tokens: map[string]sessiondomain.Principal{
		"query-tok":  customer,
		"header-tok": {ID: "u2", Kind: sessiondomain.PrincipalCustomer},
	}}
	g := newGuard(v, &fakeAuthorizer{allow: map[string]bool{"getUser": true}}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/?action=getUser&token=query-tok", nil)
	req.Header.Set("Authorization", "Bearer header-tok")
	rec := httptest.NewRecorder()
	g.Protect("getUser", echoPrincipal()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", rec.Body.String())
	assert.Equal(t, []string{"query-tok"}, v.calls)
}

func TestProtect_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		validErr   error
		authzErr   error
		allow      bool
		wantStatus int
		wantReason string
	}{
		{"missing token", "", nil, nil, true, http.StatusUnauthorized, "missing"},
		{"unknown token", "Bearer nope", nil, nil, true, http.StatusUnauthorized, "invalid"},
		{"expired token", "Bearer tok", sessionservice.ErrExpiredToken, nil, true, http.StatusUnauthorized, "expired"},
		{"storage failure", "Bearer tok", sessionservice.ErrStorage, nil, true, http.StatusInternalServerError, "storage"},
		{"policy denies", "Bearer tok", nil, nil, false, http.StatusForbidden, "forbidden"},
		{"policy error", "Bearer tok", nil, errors.New("eval failed"), true, http.StatusForbidden, "forbidden"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &fakeValidator{tokens: map[string]sessiondomain.Principal{"tok": customer}, err: tt.validErr}
			reg := prometheus.NewRegistry()
			m := NewMetrics(reg)
			au := &recordingAudit{}
			g := newGuard(v, &fakeAuthorizer{allow: map[string]bool{"saveOrder": tt.allow}, err: tt.authzErr}, au, m)

			req := httptest.NewRequest(http.MethodPost, "/v1/orders", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			called := false
			g.Protect("saveOrder", http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.False(t, called, "handler must not run")
			assert.Empty(t, au.entries)
			assert.JSONEq(t, `{"message":"`+messageFor(tt.wantStatus, tt.validErr, tt.header)+`"}`, rec.Body.String())
			assert.Equal(t, 1.0, testutil.ToFloat64(m.authFailures.WithLabelValues("saveOrder", tt.wantReason)))
		})
	}
}

func messageFor(status int, validErr error, header string) string {
	switch status {
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal error"
	}
	if validErr != nil {
		return validErr.Error()
	}
	if header == "" {
		return sessionservice.ErrMissingToken.Error()
	}
	return sessionservice.ErrInvalidToken.Error()
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		header, want string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"BEARER  abc ", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		assert.Equal(t, tt.want, ExtractBearer(req), "header %q", tt.header)
	}
}
