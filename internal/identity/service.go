package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ticklist/internal/docstore"
	"github.com/ticklist/internal/model"
)

const tokenTTL = 30 * 24 * time.Hour

// Service is an account-backed identity provider: registration and login
// against the users collection, bcrypt password hashes, and signed bearer
// tokens. Admin capability is granted to the configured admin email or to
// users whose document carries isAdmin.
type Service struct {
	store      docstore.Store
	secret     []byte
	adminEmail string
	logger     *slog.Logger

	mu   sync.RWMutex
	user *model.User

	readyOnce sync.Once
	ready     chan struct{}
}

func NewService(store docstore.Store, secret []byte, adminEmail string, logger *slog.Logger) *Service {
	return &Service{
		store:      store,
		secret:     secret,
		adminEmail: adminEmail,
		logger:     logger,
		ready:      make(chan struct{}),
	}
}

// --- Provider implementation ---

func (s *Service) CurrentUserID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return "", false
	}
	return s.user.ID, true
}

func (s *Service) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.userIsAdmin(*s.user)
}

func (s *Service) Loading() bool {
	select {
	case <-s.ready:
		return false
	default:
		return true
	}
}

func (s *Service) AwaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// --- Account operations ---

// Register creates an account and its user document and signs the new user
// in. New accounts are never admins.
func (s *Service) Register(ctx context.Context, email, password, displayName string) (*model.User, string, error) {
	defer s.markReady()

	existing, err := s.store.Query(ctx, docstore.CollUsers,
		[]docstore.Filter{{Field: "email", Value: email}}, nil)
	if err != nil {
		return nil, "", fmt.Errorf("check email: %w", err)
	}
	if len(existing) > 0 {
		return nil, "", ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	now := time.Now()
	id, err := s.store.Add(ctx, docstore.CollUsers, map[string]any{
		"email":        email,
		"displayName":  displayName,
		"createdAt":    now,
		"isAdmin":      false,
		"passwordHash": string(hash),
	})
	if err != nil {
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	user := model.User{ID: id, Email: email, DisplayName: displayName, CreatedAt: now}
	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}

	s.setUser(&user)
	s.logger.Info("user registered", "user_id", id)
	return &user, token, nil
}

// Login verifies credentials, stamps lastLogin, signs the user in, and
// returns a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	defer s.markReady()

	docs, err := s.store.Query(ctx, docstore.CollUsers,
		[]docstore.Filter{{Field: "email", Value: email}}, nil)
	if err != nil {
		return nil, "", fmt.Errorf("look up user: %w", err)
	}
	if len(docs) == 0 {
		return nil, "", ErrInvalidCredentials
	}

	doc := docs[0]
	hash, _ := doc.Fields["passwordHash"].(string)
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	now := time.Now()
	if err := s.store.Update(ctx, docstore.CollUsers, doc.ID, map[string]any{"lastLogin": now}); err != nil {
		s.logger.Error("stamp last login", "user_id", doc.ID, "error", err)
	}

	user := model.UserFromFields(doc.ID, doc.Fields)
	user.LastLogin = &now

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}

	s.setUser(&user)
	return &user, token, nil
}

// Resume restores the signed-in user from a previously issued token. The auth
// state counts as resolved afterwards even if the token was rejected: the
// resolution is then "signed out".
func (s *Service) Resume(ctx context.Context, token string) error {
	defer s.markReady()

	user, err := s.Verify(ctx, token)
	if err != nil {
		s.setUser(nil)
		return err
	}
	s.setUser(user)
	return nil
}

// Logout signs the current user out. The auth state stays resolved.
func (s *Service) Logout() {
	s.setUser(nil)
	s.markReady()
}

// Verify parses and validates a bearer token and loads its user.
func (s *Service) Verify(ctx context.Context, tokenStr string) (*model.User, error) {
	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, ErrInvalidCredentials
	}

	sub, err := tok.Claims.GetSubject()
	if err != nil || sub == "" {
		return nil, ErrInvalidCredentials
	}

	doc, err := s.store.Get(ctx, docstore.CollUsers, sub)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	user := model.UserFromFields(doc.ID, doc.Fields)
	return &user, nil
}

// UserIsAdmin reports admin capability for an arbitrary user record.
func (s *Service) UserIsAdmin(u model.User) bool {
	return s.userIsAdmin(u)
}

func (s *Service) userIsAdmin(u model.User) bool {
	if u.IsAdmin {
		return true
	}
	return s.adminEmail != "" && u.Email == s.adminEmail
}

func (s *Service) issueToken(u model.User) (string, error) {
	claims := jwt.MapClaims{
		"sub": u.ID,
		"iat": jwt.NewNumericDate(time.Now()),
		"exp": jwt.NewNumericDate(time.Now().Add(tokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

func (s *Service) setUser(u *model.User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}

func (s *Service) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}
