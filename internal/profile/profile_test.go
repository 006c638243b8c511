package profile

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appwini/internal/apiclient"
	"appwini/internal/sandbox"
)

func newClient(t *testing.T) (*Client, *sandbox.Server) {
	t.Helper()
	sb := sandbox.New(sandbox.Options{})
	srv := httptest.NewServer(sb.Handler())
	t.Cleanup(srv.Close)
	return NewClient(apiclient.New(srv.URL, apiclient.StaticToken("t")), true), sb
}

func ptr(s string) *string { return &s }

func TestMeAndUpdate(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	me, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "demo@appwini.ec", me.Email)
	assert.Equal(t, "customer", me.Role)

	me, err = c.UpdateMe(ctx, Update{Name: ptr("  Ana Paredes "), Phone: ptr("0991234567")})
	require.NoError(t, err)
	assert.Equal(t, "Ana Paredes", me.Name)
	assert.Equal(t, "0991234567", me.Phone)
	assert.Equal(t, "demo@appwini.ec", me.Email)

	_, err = c.UpdateMe(ctx, Update{Email: ptr("not-an-email")})
	assert.True(t, apiclient.IsValidation(err))
	_, err = c.UpdateMe(ctx, Update{Name: ptr("  ")})
	assert.True(t, apiclient.IsValidation(err))
}

func TestValidatePasswordChange(t *testing.T) {
	for name, tc := range map[string]struct {
		cur, next, confirm string
		field              string
	}{
		"missing":   {"", "newpass12", "newpass12", "password"},
		"short":     {"demo1234", "short", "short", "new_password"},
		"mismatch":  {"demo1234", "newpass12", "newpass13", "confirm_password"},
		"unchanged": {"demo1234", "demo1234", "demo1234", "new_password"},
		"ok":        {"demo1234", "newpass12", "newpass12", ""},
	} {
		t.Run(name, func(t *testing.T) {
			err := ValidatePasswordChange(tc.cur, tc.next, tc.confirm)
			if tc.field == "" {
				assert.NoError(t, err)
				return
			}
			var ve *apiclient.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tc.field, ve.Field)
		})
	}
}

func TestChangePassword(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	err := c.ChangePassword(ctx, "wrong-pass", "newpass12", "newpass12")
	var se *apiclient.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Equal(t, "current_password: Incorrect password.", se.Message)

	require.NoError(t, c.ChangePassword(ctx, "demo1234", "newpass12", "newpass12"))
	require.NoError(t, c.ChangePassword(ctx, "newpass12", "other-pass", "other-pass"))
}

func TestRoleRequests(t *testing.T) {
	c, sb := newClient(t)
	ctx := context.Background()

	list, err := c.ListRoleRequests(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = c.CreateRoleRequest(ctx, "", "x")
	assert.True(t, apiclient.IsValidation(err))
	_, err = c.CreateRoleRequest(ctx, "superuser", "x")
	assert.True(t, apiclient.IsValidation(err))

	rr, err := c.CreateRoleRequest(ctx, " Driver ", "I have a motorbike")
	require.NoError(t, err)
	assert.Equal(t, "driver", rr.Role)
	assert.True(t, rr.Pending())

	_, err = c.CreateRoleRequest(ctx, "driver", "again")
	assert.True(t, apiclient.IsStatus(err, http.StatusBadRequest))

	seller, err := c.CreateRoleRequest(ctx, "seller", "")
	require.NoError(t, err)
	require.True(t, sb.ResolveRoleRequest(seller.ID.String(), true))

	err = c.CancelRoleRequest(ctx, seller.ID.String())
	assert.True(t, apiclient.IsStatus(err, http.StatusBadRequest))
	require.NoError(t, c.CancelRoleRequest(ctx, rr.ID.String()))

	list, err = c.ListRoleRequests(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "approved", list[0].Status)

	me, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "seller", me.Role)
}
