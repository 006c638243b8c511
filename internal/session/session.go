// Package session keeps the bearer token between CLI invocations and obtains
// it from the catalog backend's auth endpoints.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"appwini/internal/apiclient"
)

type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	User      User      `json:"user"`
}

// FileStore persists one Session as JSON. It satisfies apiclient.TokenSource.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Session{}, nil
	}
	if err != nil {
		return Session{}, err
	}
	var sess Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return Session{}, fmt.Errorf("corrupt session file %s: %w", s.path, err)
	}
	return sess, nil
}

func (s *FileStore) Save(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, b, 0o600)
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Token returns "" for a missing or expired session.
func (s *FileStore) Token(context.Context) (string, error) {
	sess, err := s.Load()
	if err != nil {
		return "", err
	}
	if !sess.ExpiresAt.IsZero() && time.Now().After(sess.ExpiresAt) {
		return "", nil
	}
	return sess.Token, nil
}

type authResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	User      User   `json:"user"`
}

func (r authResponse) session() (Session, error) {
	if strings.TrimSpace(r.Token) == "" {
		return Session{}, errors.New("auth response carried no token")
	}
	s := Session{Token: r.Token, User: r.User}
	if r.ExpiresAt != "" {
		if t, err := time.Parse(time.RFC3339, r.ExpiresAt); err == nil {
			s.ExpiresAt = t
		}
	}
	return s, nil
}

// Login signs in against the catalog backend and stores the session.
func Login(ctx context.Context, api *apiclient.Client, store *FileStore, email, password string) (Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Session{}, apiclient.Invalid("email", "email and password are required")
	}
	var resp authResponse
	err := api.JSON(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   map[string]string{"email": email, "password": password},
		Public: true,
	}, &resp)
	if err != nil {
		return Session{}, err
	}
	return persist(store, resp)
}

func Register(ctx context.Context, api *apiclient.Client, store *FileStore, name, email, password string) (Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Session{}, apiclient.Invalid("email", "email and password are required")
	}
	if len(password) < 6 {
		return Session{}, apiclient.Invalid("password", "password must be at least 6 characters")
	}
	var resp authResponse
	err := api.JSON(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   "/auth/register",
		Body:   map[string]string{"name": strings.TrimSpace(name), "email": email, "password": password},
		Public: true,
	}, &resp)
	if err != nil {
		return Session{}, err
	}
	return persist(store, resp)
}

func persist(store *FileStore, resp authResponse) (Session, error) {
	sess, err := resp.session()
	if err != nil {
		return Session{}, err
	}
	if err := store.Save(sess); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}
