package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/campus/backend/internal/middleware"
	"github.com/emilythestrangee/campus/backend/internal/models"
)

func validToken(t *testing.T) string {
	t.Helper()
	tok, err := middleware.IssueToken([]byte("cli-secret"), "u1", "ada", models.RoleStudent)
	require.NoError(t, err)
	return tok
}

// run executes the root command with fresh flag state and an isolated
// config dir.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	apiURL, token = defaultAPI, ""
	feedCategory, postCategory, postAnonymous = "", "", false
	loginPassword, watchFeed = "", false

	var out, errOut bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&errOut)
	RootCmd.SetIn(strings.NewReader(""))
	RootCmd.SetArgs(args)
	err := RootCmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestLoginSavesToken(t *testing.T) {
	tok := validToken(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.LoginRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ada@campus.edu", req.Email)
		assert.Equal(t, "hunter22", req.Password)
		json.NewEncoder(w).Encode(map[string]any{"token": tok, "user": map[string]any{"id": "u1", "username": "ada"}})
	}))
	defer srv.Close()

	out, _, err := run(t, "login", "ada@campus.edu", "-p", "hunter22", "--api", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as")
	assert.Contains(t, out, "ada")

	saved, err := os.ReadFile(filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "campus", "token"))
	require.NoError(t, err)
	assert.Equal(t, tok, strings.TrimSpace(string(saved)))
}

func TestFeedRendersTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "rage", r.URL.Query().Get("category"))
		w.Write([]byte(`[{"id":"r1","content":"the shuttle never comes","category":"rage","anonymous":true,"upvotes":3,"downvotes":1,"my_vote":0}]`))
	}))
	defer srv.Close()

	out, _, err := run(t, "feed", "-c", "rage", "--api", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "r1")
	assert.Contains(t, out, "+3/-1")
	assert.Contains(t, out, "anonymous")
	assert.Contains(t, out, "the shuttle never comes")
}

func TestFeedEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	out, _, err := run(t, "feed", "--api", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "No rants yet")
}

func voteServer(t *testing.T, toggle http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/rants/r1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"r1","content":"x","upvotes":10,"downvotes":2,"my_vote":0}`))
	})
	mux.HandleFunc("/api/rpc/toggle_vote", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		toggle(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestVoteUp(t *testing.T) {
	srv, calls := voteServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req models.ToggleVoteRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if assert.NotNil(t, req.Value) {
			assert.Equal(t, models.Upvote, *req.Value)
		}
		w.Write([]byte(`{"upvotes":11,"downvotes":2,"my_vote":1}`))
	})

	out, _, err := run(t, "vote", "r1", "up", "--api", srv.URL, "--token", validToken(t))
	require.NoError(t, err)
	assert.Contains(t, out, "upvoted rant r1 (+11/-2)")
	assert.EqualValues(t, 1, calls.Load())
}

func TestVoteSignedOut(t *testing.T) {
	srv, calls := voteServer(t, func(w http.ResponseWriter, r *http.Request) {})

	_, errOut, err := run(t, "vote", "r1", "down", "--api", srv.URL)
	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, errOut, "sign in to vote")
	assert.EqualValues(t, 0, calls.Load())
}

func TestVoteRemoteFailureAlerts(t *testing.T) {
	srv, _ := voteServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Failed to vote"}`))
	})

	_, errOut, err := run(t, "vote", "r1", "up", "--api", srv.URL, "--token", validToken(t))
	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, errOut, "vote not recorded")
}

func TestVoteRejectsBadDirection(t *testing.T) {
	_, _, err := run(t, "vote", "r1", "sideways")
	assert.ErrorContains(t, err, "direction must be up or down")
}

func TestPostSendsOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateRantRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "parking is a myth", req.Content)
		assert.True(t, req.Anonymous)
		if assert.NotNil(t, req.Category) {
			assert.Equal(t, "transport", *req.Category)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"r7","content":"parking is a myth"}`))
	}))
	defer srv.Close()

	out, _, err := run(t, "post", "parking", "is", "a", "myth", "-a", "-c", "transport", "--api", srv.URL, "--token", validToken(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Posted rant r7")
}

func TestWatchRequiresSession(t *testing.T) {
	_, _, err := run(t, "watch")
	assert.ErrorIs(t, err, errSignedOut)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short one", preview("short\n  one"))
	long := strings.Repeat("é", 80)
	got := preview(long)
	assert.Equal(t, previewLength, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "…"))
}
