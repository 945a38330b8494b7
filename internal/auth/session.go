package auth

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// UserData is the cached identity of a signed-in ERP user.
type UserData struct {
	UserName               string          `json:"user_name"`
	IsAdmin                bool            `json:"is_admin"`
	Permissions            map[string]bool `json:"permissions"`
	PermissionsLastUpdated time.Time       `json:"permissions_last_updated"`
	RememberMe             bool            `json:"remember_me"`
}

func (u *UserData) clone() *UserData {
	c := *u
	c.Permissions = maps.Clone(u.Permissions)
	return &c
}

// RightsSource answers permission questions for a user.
type RightsSource interface {
	CheckRights(ctx context.Context, userName string) (map[string]bool, error)
	IsAdmin(ctx context.Context, userName string) (bool, error)
}

// UserDataStore is the durable "remember me" copy of UserData.
type UserDataStore interface {
	SaveUserData(ctx context.Context, u UserData) error
	LoadUserData(ctx context.Context, userName string) (*UserData, error)
	DeleteUserData(ctx context.Context, userName string) error
}

// SessionService keeps UserData in an in-memory session cache, and in the
// durable store as well for users who asked to be remembered. Permissions are
// refetched only once they are older than the permissions TTL.
type SessionService struct {
	rights         RightsSource
	local          UserDataStore
	session        *cache.Cache
	permissionsTTL time.Duration
	log            *zap.Logger
	now            func() time.Time

	mu sync.Mutex
}

func NewSessionService(rights RightsSource, local UserDataStore, sessionTTL, permissionsTTL time.Duration, log *zap.Logger) *SessionService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionService{
		rights:         rights,
		local:          local,
		session:        cache.New(sessionTTL, 10*time.Minute),
		permissionsTTL: permissionsTTL,
		log:            log.With(zap.String("module", "auth")),
		now:            time.Now,
	}
}

// Login fetches the user's admin flag and rights and caches them. With
// rememberMe the data is also written to the durable store; without it any
// earlier durable copy is removed.
func (s *SessionService) Login(ctx context.Context, userName string, rememberMe bool) (*UserData, error) {
	isAdmin, err := s.rights.IsAdmin(ctx, userName)
	if err != nil {
		return nil, fmt.Errorf("failed to check admin status: %w", err)
	}
	perms, err := s.rights.CheckRights(ctx, userName)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch permissions: %w", err)
	}
	u := &UserData{
		UserName:               userName,
		IsAdmin:                isAdmin,
		Permissions:            perms,
		PermissionsLastUpdated: s.now(),
		RememberMe:             rememberMe,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store(ctx, u); err != nil {
		return nil, err
	}
	if !rememberMe && s.local != nil {
		if err := s.local.DeleteUserData(ctx, userName); err != nil {
			s.log.Warn("failed to clear remembered user data", zap.String("user", userName), zap.Error(err))
		}
	}
	s.log.Info("user signed in", zap.String("user", userName), zap.Bool("admin", isAdmin), zap.Bool("rememberMe", rememberMe))
	return u.clone(), nil
}

// UserData returns the cached data, falling back to the durable store and
// finally to a fresh Login without rememberMe.
func (s *SessionService) UserData(ctx context.Context, userName string) (*UserData, error) {
	s.mu.Lock()
	u, err := s.lookup(ctx, userName)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if u != nil {
		return u.clone(), nil
	}
	return s.Login(ctx, userName, false)
}

// Permissions returns the user's rights, refetching them when the cached copy
// is older than the permissions TTL. A failed refetch serves the stale copy.
func (s *SessionService) Permissions(ctx context.Context, userName string) (map[string]bool, error) {
	u, err := s.UserData(ctx, userName)
	if err != nil {
		return nil, err
	}
	if s.now().Sub(u.PermissionsLastUpdated) < s.permissionsTTL {
		return u.Permissions, nil
	}

	perms, err := s.rights.CheckRights(ctx, userName)
	if err != nil {
		s.log.Warn("permission refresh failed, serving cached rights", zap.String("user", userName), zap.Error(err))
		return u.Permissions, nil
	}
	u.Permissions = perms
	u.PermissionsLastUpdated = s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store(ctx, u); err != nil {
		return nil, err
	}
	return maps.Clone(perms), nil
}

func (s *SessionService) Logout(ctx context.Context, userName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.Delete(userName)
	if s.local == nil {
		return nil
	}
	if err := s.local.DeleteUserData(ctx, userName); err != nil {
		return fmt.Errorf("failed to clear remembered user data: %w", err)
	}
	return nil
}

// lookup and store require s.mu.
func (s *SessionService) lookup(ctx context.Context, userName string) (*UserData, error) {
	if x, ok := s.session.Get(userName); ok {
		return x.(*UserData), nil
	}
	if s.local == nil {
		return nil, nil
	}
	u, err := s.local.LoadUserData(ctx, userName)
	if err != nil {
		return nil, fmt.Errorf("failed to load remembered user data: %w", err)
	}
	if u != nil {
		s.session.Set(userName, u, cache.DefaultExpiration)
	}
	return u, nil
}

func (s *SessionService) store(ctx context.Context, u *UserData) error {
	s.session.Set(u.UserName, u.clone(), cache.DefaultExpiration)
	if u.RememberMe && s.local != nil {
		if err := s.local.SaveUserData(ctx, *u); err != nil {
			return fmt.Errorf("failed to remember user data: %w", err)
		}
	}
	return nil
}
