// Package profile reads and edits the signed-in user's account and role
// upgrade requests.
package profile

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"appwini/internal/apiclient"
)

// MinPasswordLength matches the backend's password policy.
const MinPasswordLength = 8

type Profile struct {
	ID    apiclient.ID `json:"id"`
	Name  string       `json:"name"`
	Email string       `json:"email"`
	Phone string       `json:"phone"`
	Role  string       `json:"role"`
}

// Update carries only the fields to change.
type Update struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

type RoleRequest struct {
	ID        apiclient.ID `json:"id"`
	Role      string       `json:"role"`
	Reason    string       `json:"reason"`
	Status    string       `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}

func (r RoleRequest) Pending() bool { return r.Status == "pending" }

var requestableRoles = map[string]bool{"seller": true, "driver": true, "admin": true}

type Client struct {
	api    *apiclient.Client
	strict bool
}

func NewClient(api *apiclient.Client, strict bool) *Client {
	return &Client{api: api, strict: strict}
}

func (c *Client) Me(ctx context.Context) (Profile, error) {
	var p Profile
	err := c.api.Get(ctx, "/me/", nil, &p)
	return p, err
}

func (c *Client) UpdateMe(ctx context.Context, u Update) (Profile, error) {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return Profile{}, apiclient.Invalid("name", "name cannot be empty")
	}
	if u.Email != nil && !strings.Contains(*u.Email, "@") {
		return Profile{}, apiclient.Invalid("email", "enter a valid email address")
	}
	var p Profile
	err := c.api.Patch(ctx, "/me/", u, &p)
	return p, err
}

// ValidatePasswordChange runs the local checks ChangePassword applies
// before any request.
func ValidatePasswordChange(current, next, confirm string) error {
	switch {
	case current == "" || next == "" || confirm == "":
		return apiclient.Invalid("password", "all password fields are required")
	case len(next) < MinPasswordLength:
		return apiclient.Invalid("new_password", "the new password must have at least 8 characters")
	case next != confirm:
		return apiclient.Invalid("confirm_password", "passwords do not match")
	case next == current:
		return apiclient.Invalid("new_password", "the new password must be different from the current one")
	}
	return nil
}

func (c *Client) ChangePassword(ctx context.Context, current, next, confirm string) error {
	if err := ValidatePasswordChange(current, next, confirm); err != nil {
		return err
	}
	body := map[string]string{"current_password": current, "new_password": next}
	return c.api.Post(ctx, "/me/change-password/", body, nil)
}

func (c *Client) ListRoleRequests(ctx context.Context) ([]RoleRequest, error) {
	body, err := c.api.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: "/role-requests/"})
	if err != nil {
		return []RoleRequest{}, err
	}
	out := []RoleRequest{}
	if err := apiclient.DecodeList(body, c.strict, &out); err != nil {
		return []RoleRequest{}, err
	}
	return out, nil
}

func (c *Client) CreateRoleRequest(ctx context.Context, role, reason string) (RoleRequest, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return RoleRequest{}, apiclient.Invalid("role", "choose a role")
	}
	if !requestableRoles[role] {
		return RoleRequest{}, apiclient.Invalid("role", "role must be seller, driver or admin")
	}
	var out RoleRequest
	err := c.api.Post(ctx, "/role-requests/", map[string]string{"role": role, "reason": strings.TrimSpace(reason)}, &out)
	return out, err
}

func (c *Client) CancelRoleRequest(ctx context.Context, id string) error {
	if id == "" {
		return apiclient.Invalid("id", "request id is required")
	}
	return c.api.Delete(ctx, "/role-requests/"+url.PathEscape(id)+"/")
}
