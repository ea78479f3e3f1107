package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"sikuli-bot/src/failure"
)

func TestClient_NewClient(t *testing.T) {
	client := NewClient("fake-token", "")
	if client == nil {
		t.Fatal("NewClient() returned nil")
	}
	if client.baseURL != "https://api.github.com" {
		t.Errorf("baseURL = %q", client.baseURL)
	}
	if c := NewClient("t", "https://ghe.example.com/api/v3/"); c.baseURL != "https://ghe.example.com/api/v3" {
		t.Errorf("baseURL = %q, want trailing slash trimmed", c.baseURL)
	}
}

func TestClient_ListPullRequests_Paginated(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("unexpected Authorization header: %s", r.Header.Get("Authorization"))
		}
		if r.URL.Path != "/repos/MiraGeoscience/InSight/pulls" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("state") != "open" {
			t.Errorf("state = %q, want open", r.URL.Query().Get("state"))
		}

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "" {
			w.Header().Set("Link", fmt.Sprintf(`<%s/repos/MiraGeoscience/InSight/pulls?state=open&page=2>; rel="next", <%s/x?page=2>; rel="last"`, server.URL, server.URL))
			w.Write([]byte(`[{"number": 1, "head": {"label": "alice:GA-1", "ref": "GA-1", "sha": "aaa", "repo": {"full_name": "alice/InSight"}}}]`))
			return
		}
		w.Write([]byte(`[{"number": 2, "head": {"label": "bob:GA-2", "ref": "GA-2", "sha": "bbb", "repo": {"full_name": "bob/InSight"}}}]`))
	}))
	defer server.Close()

	client := NewClient("test-token", "")
	client.baseURL = server.URL

	prs, err := client.ListPullRequests(context.Background(), "MiraGeoscience", "InSight", "open")
	if err != nil {
		t.Fatalf("ListPullRequests() error = %v", err)
	}
	if len(prs) != 2 {
		t.Fatalf("got %d pull requests, want 2", len(prs))
	}
	if prs[1].Head.Repo.FullName != "bob/InSight" || prs[1].Head.SHA != "bbb" {
		t.Errorf("second page decoded as %+v", prs[1].Head)
	}
}

func TestClient_ListPullRequests_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		headers map[string]string
		wantErr error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: failure.ErrAuthFailed},
		{name: "forbidden", status: http.StatusForbidden, wantErr: failure.ErrAuthFailed},
		{
			name:    "rate limited",
			status:  http.StatusForbidden,
			headers: map[string]string{"X-RateLimit-Remaining": "0"},
			wantErr: failure.ErrRateLimited,
		},
		{name: "secondary rate limit", status: http.StatusTooManyRequests, wantErr: failure.ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"message": "nope"}`))
			}))
			defer server.Close()

			client := NewClient("test-token", server.URL)
			_, err := client.ListPullRequests(context.Background(), "o", "r", "open")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestClient_ListPullRequests_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient("test-token", server.URL)
	_, err := client.ListPullRequests(context.Background(), "o", "r", "open")
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if errors.Is(err, failure.ErrAuthFailed) {
		t.Errorf("500 reported as auth failure: %v", err)
	}
}

func TestClient_ListPullRequests_NoToken(t *testing.T) {
	client := NewClient("", "http://127.0.0.1:1")
	_, err := client.ListPullRequests(context.Background(), "o", "r", "open")
	if !errors.Is(err, failure.ErrTokenMissing) {
		t.Errorf("error = %v, want ErrTokenMissing", err)
	}
}

func TestParseLinkNext(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "empty", header: "", want: ""},
		{
			name:   "next and last",
			header: `<https://api.github.com/repos/o/r/pulls?page=2>; rel="next", <https://api.github.com/repos/o/r/pulls?page=5>; rel="last"`,
			want:   "https://api.github.com/repos/o/r/pulls?page=2",
		},
		{
			name:   "prev first",
			header: `<https://api.github.com/repos/o/r/pulls?page=1>; rel="prev", <https://api.github.com/repos/o/r/pulls?page=3>; rel="next"`,
			want:   "https://api.github.com/repos/o/r/pulls?page=3",
		},
		{
			name:   "last page",
			header: `<https://api.github.com/repos/o/r/pulls?page=1>; rel="first"`,
			want:   "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseLinkNext(tt.header); got != tt.want {
				t.Errorf("parseLinkNext() = %q, want %q", got, tt.want)
			}
		})
	}
}
