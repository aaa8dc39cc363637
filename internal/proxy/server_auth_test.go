package proxy

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/philipexavier/proxy-rasa/internal/config"
)

func TestAuthMiddlewareAccessTokenValidation(t *testing.T) {
	const okStatus = http.StatusTeapot

	cases := []struct {
		name           string
		method         string
		path           string
		accessToken    string
		headers        map[string]string
		wantStatusCode int
		wantContains   string
	}{
		{
			name:           "no configured access token bypasses middleware",
			method:         http.MethodPost,
			path:           "/v1/chat/completions",
			wantStatusCode: okStatus,
		},
		{
			name:           "health root bypasses middleware",
			method:         http.MethodGet,
			path:           "/",
			accessToken:    "secret-token",
			wantStatusCode: okStatus,
		},
		{
			name:           "health endpoint bypasses middleware",
			method:         http.MethodGet,
			path:           "/health",
			accessToken:    "secret-token",
			wantStatusCode: okStatus,
		},
		{
			name:           "metrics endpoint bypasses middleware",
			method:         http.MethodGet,
			path:           "/metrics",
			accessToken:    "secret-token",
			wantStatusCode: okStatus,
		},
		{
			name:           "options requests bypass middleware",
			method:         http.MethodOptions,
			path:           "/v1/chat/completions",
			accessToken:    "secret-token",
			wantStatusCode: okStatus,
		},
		{
			name:           "missing auth header returns unauthorized",
			method:         http.MethodPost,
			path:           "/v1/chat/completions",
			accessToken:    "secret-token",
			wantStatusCode: http.StatusUnauthorized,
			wantContains:   serverAccessTokenError,
		},
		{
			name:        "wrong bearer token returns unauthorized",
			method:      http.MethodPost,
			path:        "/v1/chat/completions",
			accessToken: "secret-token",
			headers: map[string]string{
				"Authorization": "Bearer wrong-token",
			},
			wantStatusCode: http.StatusUnauthorized,
			wantContains:   "authentication_error",
		},
		{
			name:        "non bearer auth returns unauthorized",
			method:      http.MethodGet,
			path:        "/v1/models",
			accessToken: "secret-token",
			headers: map[string]string{
				"Authorization": "Basic c2VjcmV0LXRva2Vu",
			},
			wantStatusCode: http.StatusUnauthorized,
			wantContains:   serverAccessTokenError,
		},
		{
			name:        "valid bearer token passes",
			method:      http.MethodPost,
			path:        "/v1/chat/completions",
			accessToken: "secret-token",
			headers: map[string]string{
				"Authorization": "Bearer secret-token",
			},
			wantStatusCode: okStatus,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &Server{Config: &config.ServerConfig{AccessToken: tc.accessToken}}
			handler := s.authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(okStatus)
			}))

			req := httptest.NewRequest(tc.method, tc.path, nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tc.wantStatusCode {
				t.Fatalf("status: got %d, want %d", w.Code, tc.wantStatusCode)
			}
			if tc.wantContains != "" && !strings.Contains(w.Body.String(), tc.wantContains) {
				t.Fatalf("body %q should contain %q", w.Body.String(), tc.wantContains)
			}
		})
	}
}

func TestParseBearerAuthToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"  Bearer   abc  ", "abc", true},
		{"bearer abc", "", false},
		{"Bearer", "", false},
		{"Bearer a b", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := parseBearerAuthToken(tc.header)
		if got != tc.want || ok != tc.ok {
			t.Errorf("parseBearerAuthToken(%q) = %q, %v; want %q, %v", tc.header, got, ok, tc.want, tc.ok)
		}
	}
}
