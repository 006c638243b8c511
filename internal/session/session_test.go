package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"appwini/internal/apiclient"
	"appwini/internal/config"
	"appwini/internal/db"
	"appwini/internal/server"
)

func catalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Migrate(context.Background(), conn))

	cfg := config.Config{AppEnv: "dev", JWTIssuer: "test", JWTSecret: "secret", TokenTTLMin: 30}
	srv := httptest.NewServer(server.NewRouter(cfg, conn, zap.NewNop()))
	t.Cleanup(srv.Close)
	return srv
}

func TestFileStore(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "nested", "token.json"))

	tok, err := store.Token(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tok, "missing file means signed out")

	require.NoError(t, store.Save(Session{Token: "abc", ExpiresAt: time.Now().Add(time.Hour)}))
	tok, err = store.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	require.NoError(t, store.Save(Session{Token: "old", ExpiresAt: time.Now().Add(-time.Minute)}))
	tok, err = store.Token(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tok, "expired sessions are treated as signed out")

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())
}

func TestRegisterAndLogin(t *testing.T) {
	srv := catalogServer(t)
	api := apiclient.New(srv.URL+"/api", nil)
	store := NewFileStore(filepath.Join(t.TempDir(), "token.json"))
	ctx := context.Background()

	sess, err := Register(ctx, api, store, "Luis", "luis@example.com", "chocolate")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, "luis@example.com", sess.User.Email)
	assert.False(t, sess.ExpiresAt.IsZero())

	_, err = Register(ctx, api, store, "Luis", "luis@example.com", "chocolate")
	assert.True(t, apiclient.IsStatus(err, http.StatusConflict))

	sess, err = Login(ctx, api, store, "luis@example.com", "chocolate")
	require.NoError(t, err)

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, sess.Token, stored.Token)

	// the stored token authenticates against the protected route
	authed := apiclient.New(srv.URL+"/api", store)
	var me User
	require.NoError(t, authed.Get(ctx, "/me", nil, &me))
	assert.Equal(t, "Luis", me.Name)

	_, err = Login(ctx, api, store, "luis@example.com", "wrong")
	assert.True(t, apiclient.IsStatus(err, http.StatusUnauthorized))
}

func TestLogin_Validation(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "token.json"))
	_, err := Login(context.Background(), apiclient.New("http://127.0.0.1:0", nil), store, " ", "")
	assert.True(t, apiclient.IsValidation(err))
}
