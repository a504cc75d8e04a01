package http

import (
	"context"
	"io"
	"testing"
)

func TestRequest_Build(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		path        string
		baseURL     string
		queryParams map[string]string
		body        interface{}
		expectedURL string
		expectJSON  bool
	}{
		{
			name:        "Simple GET request",
			method:      "GET",
			path:        "/profile",
			baseURL:     "https://api.example.com",
			expectedURL: "https://api.example.com/profile",
		},
		{
			name:        "Request with query parameters",
			method:      "GET",
			path:        "/groups",
			baseURL:     "https://api.example.com",
			queryParams: map[string]string{"page": "1", "limit": "10"},
			expectedURL: "https://api.example.com/groups?limit=10&page=1",
		},
		{
			name:        "Trailing slash in base URL",
			method:      "GET",
			path:        "/groups/42",
			baseURL:     "https://api.example.com/",
			expectedURL: "https://api.example.com/groups/42",
		},
		{
			name:        "Base URL with path prefix",
			method:      "GET",
			path:        "/profile",
			baseURL:     "https://api.example.com/v1",
			expectedURL: "https://api.example.com/v1/profile",
		},
		{
			name:        "Escaped id segment",
			method:      "GET",
			path:        "/groups/a%20b",
			baseURL:     "https://api.example.com",
			expectedURL: "https://api.example.com/groups/a%20b",
		},
		{
			name:        "Escaped slash in id segment",
			method:      "GET",
			path:        "/groups/x%2Fy",
			baseURL:     "https://api.example.com",
			expectedURL: "https://api.example.com/groups/x%2Fy",
		},
		{
			name:        "Escaped id segment under path prefix",
			method:      "GET",
			path:        "/groups/a%20b",
			baseURL:     "https://api.example.com/v1/",
			expectedURL: "https://api.example.com/v1/groups/a%20b",
		},
		{
			name:        "POST request with JSON body",
			method:      "POST",
			path:        "/auth/login",
			baseURL:     "https://api.example.com",
			body:        map[string]string{"email": "a@example.com", "password": "secret"},
			expectedURL: "https://api.example.com/auth/login",
			expectJSON:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := NewRequest(tt.method, tt.path)
			for k, v := range tt.queryParams {
				req.WithQueryParam(k, v)
			}
			if tt.body != nil {
				req.WithBody(tt.body)
			}

			httpReq, err := req.Build(context.Background(), tt.baseURL)
			if err != nil {
				t.Fatalf("Build() error: %v", err)
			}

			if httpReq.URL.String() != tt.expectedURL {
				t.Errorf("URL = %s, want %s", httpReq.URL.String(), tt.expectedURL)
			}
			if httpReq.Method != tt.method {
				t.Errorf("Method = %s, want %s", httpReq.Method, tt.method)
			}

			gotJSON := httpReq.Header.Get("Content-Type") == "application/json"
			if gotJSON != tt.expectJSON {
				t.Errorf("JSON content type = %v, want %v", gotJSON, tt.expectJSON)
			}
		})
	}
}

func TestRequest_BuildDoesNotMutateHeaders(t *testing.T) {
	req := NewRequest("POST", "/groups").WithBody(map[string]string{"name": "x"})

	if _, err := req.Build(context.Background(), "http://localhost"); err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if _, ok := req.Headers["Content-Type"]; ok {
		t.Error("Build() should not add headers to the Request")
	}
}

func TestRequest_WithBearer(t *testing.T) {
	req := NewRequest("GET", "/profile").WithBearer("abc")

	httpReq, err := req.Build(context.Background(), "http://localhost")
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if got := httpReq.Header.Get("Authorization"); got != "Bearer abc" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer abc")
	}
}

func TestRequest_StringBody(t *testing.T) {
	req := NewRequest("POST", "/raw").WithBody("plain")

	httpReq, err := req.Build(context.Background(), "http://localhost")
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	body, _ := io.ReadAll(httpReq.Body)
	if string(body) != "plain" {
		t.Errorf("body = %q, want %q", body, "plain")
	}
	if httpReq.Header.Get("Content-Type") != "" {
		t.Error("string bodies should not get a JSON content type")
	}
}

func TestRequest_InvalidBaseURL(t *testing.T) {
	if _, err := NewRequest("GET", "/").Build(context.Background(), "://bad"); err == nil {
		t.Error("expected an error for an invalid base URL")
	}
}

func TestRequest_InvalidEscapedPath(t *testing.T) {
	if _, err := NewRequest("GET", "/groups/%zz").Build(context.Background(), "http://localhost"); err == nil {
		t.Error("Build() should reject a malformed escaped path")
	}
}
