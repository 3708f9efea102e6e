package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fragmede/authpanel/internal/api"
	"github.com/fragmede/authpanel/internal/api/apitest"
)

func newClient(t *testing.T, baseURL string) *api.Client {
	t.Helper()
	c, err := api.NewClient(baseURL, nil, 0)
	require.NoError(t, err)
	return c
}

func TestLoginSendsOnlyUsernameAndPassword(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("alice", "a@x.com", "secret")
	c := newClient(t, srv.URL)

	user, err := c.Login(context.Background(), api.LoginRequest{Username: "alice", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "a@x.com", user.Email)
	assert.Equal(t, "1", user.ExtraString("id"))

	req, ok := srv.LastRequest("/api/login")
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"username": "alice", "password": "secret"}, req.Body)
}

func TestLoginRejected(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("alice", "a@x.com", "secret")
	c := newClient(t, srv.URL)

	_, err := c.Login(context.Background(), api.LoginRequest{Username: "alice", Password: "wrong"})
	var rejected *api.RejectedError
	require.True(t, errors.As(err, &rejected), "got %v", err)
	assert.Equal(t, http.StatusUnauthorized, rejected.Status)
	assert.Equal(t, "Invalid username or password", rejected.Message)
}

func TestRegisterThenCheckAuth(t *testing.T) {
	srv := apitest.New(t)
	c := newClient(t, srv.URL)
	ctx := context.Background()

	before, err := c.CheckAuth(ctx)
	require.NoError(t, err)
	assert.False(t, before.Authenticated)
	assert.Nil(t, before.User)

	user, err := c.Register(ctx, api.RegisterRequest{Username: "bob", Email: "b@x.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "bob", user.Username)

	req, _ := srv.LastRequest("/api/register")
	assert.Equal(t, map[string]interface{}{"username": "bob", "email": "b@x.com", "password": "pw"}, req.Body)

	after, err := c.CheckAuth(ctx)
	require.NoError(t, err)
	assert.True(t, after.Authenticated)
	require.NotNil(t, after.User)
	assert.Equal(t, "b@x.com", after.User.Email)
}

func TestRegisterDuplicate(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("bob", "b@x.com", "pw")
	c := newClient(t, srv.URL)

	_, err := c.Register(context.Background(), api.RegisterRequest{Username: "bob", Email: "other@x.com", Password: "pw"})
	var rejected *api.RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, http.StatusConflict, rejected.Status)
	assert.Equal(t, "Username or email already exists", rejected.Message)
}

func TestLogoutEndsSession(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("alice", "a@x.com", "secret")
	c := newClient(t, srv.URL)
	ctx := context.Background()

	_, err := c.Login(ctx, api.LoginRequest{Username: "alice", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, 1, srv.ActiveSessions())

	require.NoError(t, c.Logout(ctx))
	assert.Equal(t, 0, srv.ActiveSessions())

	resp, err := c.CheckAuth(ctx)
	require.NoError(t, err)
	assert.False(t, resp.Authenticated)
}

func TestHealth(t *testing.T) {
	srv := apitest.New(t)
	c := newClient(t, srv.URL)
	assert.NoError(t, c.Health(context.Background()))

	srv.Fail("/health", http.StatusServiceUnavailable)
	assert.Error(t, c.Health(context.Background()))
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newClient(t, url)
	_, err := c.Login(context.Background(), api.LoginRequest{Username: "a", Password: "b"})
	var transport *api.TransportError
	require.True(t, errors.As(err, &transport), "got %v", err)
	assert.Equal(t, "POST /api/login", transport.Op)
}

func TestErrorBodies(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"json error", http.StatusUnauthorized, `{"error":"invalid password"}`, "invalid password"},
		{"json without error", http.StatusForbidden, `{"detail":"nope"}`, "Forbidden"},
		{"html page", http.StatusBadGateway, "<html><body><h1>502 Bad Gateway</h1><hr>nginx</body></html>", "502 Bad Gateway"},
		{"empty", http.StatusInternalServerError, "", "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newClient(t, srv.URL).Login(context.Background(), api.LoginRequest{})
			var rejected *api.RejectedError
			require.True(t, errors.As(err, &rejected), "got %v", err)
			assert.Equal(t, tt.status, rejected.Status)
			assert.Equal(t, tt.want, rejected.Message)
		})
	}
}

func TestUndecodableSuccessIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>welcome</html>"))
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL).Login(context.Background(), api.LoginRequest{})
	var transport *api.TransportError
	assert.True(t, errors.As(err, &transport), "got %v", err)
}

func TestSuccessWithoutUserIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"ok"}`))
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL).Register(context.Background(), api.RegisterRequest{})
	var transport *api.TransportError
	assert.True(t, errors.As(err, &transport), "got %v", err)
}

func TestParseBaseURL(t *testing.T) {
	u, err := api.ParseBaseURL("http://localhost:5000/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5000", u.String())

	for _, bad := range []string{"localhost:5000", "ftp://host", "http://"} {
		_, err := api.ParseBaseURL(bad)
		assert.Error(t, err, bad)
	}
}
