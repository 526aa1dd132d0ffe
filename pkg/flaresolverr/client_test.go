package flaresolverr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"m3u8-resolver/pkg/logging"
)

func TestSolve_ReturnsCookiesAndUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1" || r.Method != http.MethodPost {
			t.Errorf("got %s %s, want POST /v1", r.Method, r.URL.Path)
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Cmd != "request.get" || req.URL != "https://site.test/" || req.MaxTimeout != 5000 {
			t.Errorf("request = %+v", req)
		}
		w.Write([]byte(`{
			"status": "ok",
			"message": "Challenge solved!",
			"solution": {
				"url": "https://site.test/",
				"status": 200,
				"userAgent": "Mozilla/5.0 Solver",
				"cookies": [
					{"name": "cf_clearance", "value": "abc", "domain": ".site.test", "path": "/", "expires": 1900000000, "secure": true},
					{"name": "", "value": "dropped"}
				]
			}
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, logging.Discard())
	cookies, ua, err := c.Solve(context.Background(), "https://site.test/")
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	if ua != "Mozilla/5.0 Solver" {
		t.Errorf("userAgent = %q", ua)
	}
	if len(cookies) != 1 {
		t.Fatalf("cookies = %d, want 1", len(cookies))
	}
	ck := cookies[0]
	if ck.Name != "cf_clearance" || ck.Value != "abc" || !ck.Secure || ck.Expires.Unix() != 1900000000 {
		t.Errorf("cookie = %+v", ck)
	}
}

func TestSolve_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"solver error status", http.StatusOK, `{"status":"error","message":"timeout"}`, "timeout"},
		{"http failure", http.StatusInternalServerError, `{}`, "status 500"},
		{"invalid json", http.StatusOK, `<html>`, "invalid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, time.Second, logging.Discard())
			_, _, err := c.Solve(context.Background(), "https://site.test/")
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Solve() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSolve_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(srv.URL, time.Second, logging.Discard())
	if _, _, err := c.Solve(ctx, "https://site.test/"); err == nil {
		t.Error("expected an error for a cancelled context")
	}
}
