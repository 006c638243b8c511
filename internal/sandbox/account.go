package sandbox

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type addressRec struct {
	ID           int64    `json:"id"`
	MainAddress  string   `json:"main_address"`
	SecondStreet string   `json:"secondary_street"`
	Apartment    string   `json:"apartment"`
	City         string   `json:"city"`
	Instructions string   `json:"delivery_instructions"`
	IsDefault    bool     `json:"is_default"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
}

type profile struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Role  string `json:"role"`
}

type roleRequest struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Reason    string    `json:"reason"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) address(id string) *addressRec {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil
	}
	for _, a := range s.addresses {
		if a.ID == n {
			return a
		}
	}
	return nil
}

func (s *Server) makeDefault(a *addressRec) {
	for _, o := range s.addresses {
		o.IsDefault = o == a
	}
}

func (s *Server) listAddresses(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"items": s.addresses})
}

func (s *Server) createAddress(w http.ResponseWriter, r *http.Request) {
	var a addressRec
	if err := decode(r, &a); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if strings.TrimSpace(a.MainAddress) == "" {
		writeFieldError(w, "main_address", "This field may not be blank.")
		return
	}
	if strings.TrimSpace(a.City) == "" {
		writeFieldError(w, "city", "This field may not be blank.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.id()
	rec := &a
	s.addresses = append(s.addresses, rec)
	if a.IsDefault || len(s.addresses) == 1 {
		s.makeDefault(rec)
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) updateAddress(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if err := decode(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.address(chi.URLParam(r, "id"))
	if a == nil {
		writeError(w, http.StatusNotFound, "Not found.")
		return
	}
	str := func(k string, dst *string) {
		if v, ok := patch[k].(string); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	str("main_address", &a.MainAddress)
	str("secondary_street", &a.SecondStreet)
	str("apartment", &a.Apartment)
	str("city", &a.City)
	str("delivery_instructions", &a.Instructions)
	if v, ok := patch["latitude"].(float64); ok {
		a.Latitude = &v
	}
	if v, ok := patch["longitude"].(float64); ok {
		a.Longitude = &v
	}
	if v, ok := patch["is_default"].(bool); ok && v {
		s.makeDefault(a)
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) deleteAddress(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.address(chi.URLParam(r, "id"))
	if a == nil {
		writeError(w, http.StatusNotFound, "Not found.")
		return
	}
	kept := s.addresses[:0]
	for _, o := range s.addresses {
		if o != a {
			kept = append(kept, o)
		}
	}
	s.addresses = kept
	if a.IsDefault && len(s.addresses) > 0 {
		s.makeDefault(s.addresses[0])
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.profile)
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  *string `json:"name"`
		Email *string `json:"email"`
		Phone *string `json:"phone"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.Name != nil {
		s.profile.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		e := strings.TrimSpace(*req.Email)
		if !strings.Contains(e, "@") {
			writeFieldError(w, "email", "Enter a valid email address.")
			return
		}
		s.profile.Email = e
	}
	if req.Phone != nil {
		s.profile.Phone = strings.TrimSpace(*req.Phone)
	}
	writeJSON(w, http.StatusOK, s.profile)
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Current string `json:"current_password"`
		New     string `json:"new_password"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.Current != s.password {
		writeFieldError(w, "current_password", "Incorrect password.")
		return
	}
	if len(req.New) < 8 {
		writeFieldError(w, "new_password", "This password is too short.")
		return
	}
	s.password = req.New
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Password updated."})
}

func (s *Server) listRoleRequests(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"items": s.roles})
}

func (s *Server) createRoleRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role   string `json:"role"`
		Reason string `json:"reason"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	switch req.Role {
	case "seller", "driver", "admin":
	default:
		writeFieldError(w, "role", "Invalid role.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rr := range s.roles {
		if rr.Role == req.Role && rr.Status == "pending" {
			writeError(w, http.StatusBadRequest, "you already have a pending request for this role")
			return
		}
	}
	rr := &roleRequest{
		ID:        uuid.NewString(),
		Role:      req.Role,
		Reason:    strings.TrimSpace(req.Reason),
		Status:    "pending",
		CreatedAt: s.now().UTC(),
	}
	s.roles = append(s.roles, rr)
	writeJSON(w, http.StatusCreated, rr)
}

func (s *Server) cancelRoleRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, rr := range s.roles {
		if rr.ID != id {
			continue
		}
		if rr.Status != "pending" {
			writeError(w, http.StatusBadRequest, "only pending requests can be cancelled")
			return
		}
		s.roles = append(s.roles[:i], s.roles[i+1:]...)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeError(w, http.StatusNotFound, "Not found.")
}

// ResolveRoleRequest approves or rejects a pending request.
func (s *Server) ResolveRoleRequest(id string, approve bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rr := range s.roles {
		if rr.ID == id && rr.Status == "pending" {
			if approve {
				rr.Status = "approved"
				s.profile.Role = rr.Role
			} else {
				rr.Status = "rejected"
			}
			return true
		}
	}
	return false
}
