package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appwini/internal/apiclient"
	"appwini/internal/order"
	"appwini/internal/sandbox"
	"appwini/internal/session"
)

type cli struct {
	t   *testing.T
	dir string
	sb  *sandbox.Server
}

func newCLI(t *testing.T, signedIn bool) *cli {
	sb := sandbox.New(sandbox.Options{})
	srv := httptest.NewServer(sb.Handler())
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	t.Setenv("APPWINI_PLATFORM", "desktop")
	t.Setenv("APPWINI_API_URL", srv.URL)
	t.Setenv("APPWINI_TOKEN_FILE", filepath.Join(dir, "token.json"))
	if signedIn {
		require.NoError(t, session.NewFileStore(filepath.Join(dir, "token.json")).Save(session.Session{Token: "t"}))
	}
	return &cli{t: t, dir: dir, sb: sb}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	return c.runCtx(context.Background(), args...)
}

func (c *cli) runCtx(ctx context.Context, args ...string) (string, error) {
	c.t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", filepath.Join(c.dir, "missing.yaml")}, args...))
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, out)
	return out
}

func TestCheckoutFlow(t *testing.T) {
	c := newCLI(t, true)

	c.mustRun("cart", "add", "1", "--qty", "2")
	out := c.mustRun("cart")
	assert.Contains(t, out, "Esmeraldas 70%")
	assert.Contains(t, out, "$9.00")

	out = c.mustRun("address", "add", "--main", "Av. Amazonas N24-03", "--city", "Quito")
	assert.Contains(t, out, "Av. Amazonas N24-03, Quito")

	out = c.mustRun("checkout", "--payment", "transfer")
	assert.Contains(t, out, "placed (pending), total $9.00")

	out = c.mustRun("cart")
	assert.Contains(t, out, "your cart is empty")

	ids := c.sb.OrderIDs()
	require.Len(t, ids, 1)
	out = c.mustRun("orders")
	assert.Contains(t, out, ids[0])

	out = c.mustRun("track", ids[0], "--once")
	assert.Contains(t, out, "[no_driver] Pending")
}

func TestTrackPrintsLastSeenOnStop(t *testing.T) {
	c := newCLI(t, true)
	c.mustRun("cart", "add", "2")
	c.mustRun("address", "add", "--main", "Calle Larga 7-45", "--city", "Cuenca")
	c.mustRun("checkout")
	ids := c.sb.OrderIDs()
	require.Len(t, ids, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 800*time.Millisecond)
	defer cancel()
	out, err := c.runCtx(ctx, "track", ids[0])
	require.NoError(t, err, out)
	assert.Contains(t, out, "stopped, last seen: [")
}

func TestCheckoutRejectsBeforeNetwork(t *testing.T) {
	c := newCLI(t, true)

	_, err := c.run("checkout", "--payment", "card")
	assert.ErrorIs(t, err, order.ErrInvalidPayment)

	_, err = c.run("checkout")
	assert.True(t, apiclient.IsValidation(err))
	assert.Equal(t, "your cart is empty", describe(err))
	assert.Zero(t, c.sb.OrderAttempts())
}

func TestSignedOut(t *testing.T) {
	c := newCLI(t, false)
	_, err := c.run("cart")
	require.ErrorIs(t, err, apiclient.ErrNoSession)
	assert.Contains(t, describe(err), "appwini login")
}

func TestGeoAndProfileCommands(t *testing.T) {
	c := newCLI(t, true)

	out := c.mustRun("geo", "search", "amazonas", "--limit", "1")
	assert.Contains(t, out, "1. Av. Amazonas N24-03, Quito")

	out = c.mustRun("geo", "route", "--", "-0.1807,-78.4678", "-0.2006,-78.4918")
	assert.Contains(t, out, "about 9 min")

	_, err := c.run("geo", "route", "--", "nowhere", "-0.2,-78.4")
	assert.True(t, apiclient.IsValidation(err))

	out = c.mustRun("profile", "update", "--phone", "0991234567")
	assert.Contains(t, out, "0991234567")

	out = c.mustRun("profile", "roles", "request", "driver", "--reason", "weekends")
	assert.Contains(t, out, "is pending")
}
