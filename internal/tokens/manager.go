// Package tokens owns the QuickBooks OAuth lifecycle: the connect flow and
// the per-user, single-flight access token refresh.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/qbportal/internal/credentials"
)

const (
	defaultRefreshMargin  = 10 * time.Second
	defaultRefreshTimeout = 30 * time.Second
	stateTTL              = 10 * time.Minute
)

// RefreshRecorder counts refresh outcomes.
type RefreshRecorder interface {
	ObserveTokenRefresh(outcome string)
}

// ConnectHook runs after a user completed the connect flow.
type ConnectHook func(ctx context.Context, userID string) error

// ManagerConfig wires a Manager.
type ManagerConfig struct {
	Store          credentials.Store
	Grants         Grants
	States         StateStore
	Logger         *slog.Logger
	Metrics        RefreshRecorder
	RefreshMargin  time.Duration
	RefreshTimeout time.Duration
	OnConnect      []ConnectHook
	Clock          func() time.Time
}

// Manager hands out valid credentials. It is the only writer of the
// credential store.
type Manager struct {
	store          credentials.Store
	grants         Grants
	states         StateStore
	logger         *slog.Logger
	metrics        RefreshRecorder
	margin         time.Duration
	refreshTimeout time.Duration
	onConnect      []ConnectHook
	clock          func() time.Time

	flights singleflight.Group
	locks   keyedMutex
}

// NewManager constructs a Manager.
func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		store:          cfg.Store,
		grants:         cfg.Grants,
		states:         cfg.States,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		margin:         cfg.RefreshMargin,
		refreshTimeout: cfg.RefreshTimeout,
		onConnect:      cfg.OnConnect,
		clock:          cfg.Clock,
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.margin <= 0 {
		m.margin = defaultRefreshMargin
	}
	if m.refreshTimeout <= 0 {
		m.refreshTimeout = defaultRefreshTimeout
	}
	if m.clock == nil {
		m.clock = time.Now
	}
	return m
}

// OnConnect appends hooks run after a successful connect.
func (m *Manager) OnConnect(hooks ...ConnectHook) {
	m.onConnect = append(m.onConnect, hooks...)
}

// AcquireValidCredential returns a credential whose access token is usable
// now. Expired tokens are refreshed at most once concurrently per user; every
// concurrent caller observes the same outcome.
func (m *Manager) AcquireValidCredential(ctx context.Context, userID string) (credentials.Credential, error) {
	cred, err := m.load(ctx, userID)
	if err != nil {
		return credentials.Credential{}, err
	}
	if cred.Fresh(m.clock(), m.margin) {
		return cred, nil
	}
	return m.refresh(ctx, userID, false)
}

// Refresh rotates the user's tokens even when the access token is still
// fresh. It joins an in-flight refresh when there is one.
func (m *Manager) Refresh(ctx context.Context, userID string) (credentials.Credential, error) {
	if _, err := m.load(ctx, userID); err != nil {
		return credentials.Credential{}, err
	}
	return m.refresh(ctx, userID, true)
}

func (m *Manager) load(ctx context.Context, userID string) (credentials.Credential, error) {
	cred, err := m.store.Get(ctx, userID)
	if errors.Is(err, credentials.ErrNotFound) {
		return credentials.Credential{}, ErrNotConnected
	}
	if err != nil {
		return credentials.Credential{}, fmt.Errorf("tokens: load credential: %w", err)
	}
	if !cred.Connected || cred.RefreshToken == "" {
		return credentials.Credential{}, ErrNotConnected
	}
	return cred, nil
}

// refresh coalesces callers on the user's flight. The flight itself runs
// detached from any caller's cancellation; a caller that gives up only stops
// waiting.
func (m *Manager) refresh(ctx context.Context, userID string, force bool) (credentials.Credential, error) {
	ch := m.flights.DoChan(userID, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.refreshTimeout)
		defer cancel()
		return m.rotate(flightCtx, userID, force)
	})
	select {
	case <-ctx.Done():
		return credentials.Credential{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return credentials.Credential{}, res.Err
		}
		return res.Val.(credentials.Credential), nil
	}
}

func (m *Manager) rotate(ctx context.Context, userID string, force bool) (credentials.Credential, error) {
	unlock := m.locks.Lock(userID)
	defer unlock()

	// Re-read under the lock: a flight that finished just before this one
	// started may already have rotated the tokens.
	cred, err := m.load(ctx, userID)
	if err != nil {
		return credentials.Credential{}, err
	}
	if !force && cred.Fresh(m.clock(), m.margin) {
		return cred, nil
	}

	logger := m.logger.With(slog.String("user_id", userID))
	grant, err := m.grants.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrUpstreamRejected) {
			m.observe("rejected")
			logger.Warn("refresh token rejected, marking disconnected", slog.Any("error", err))
			if _, saveErr := m.store.Save(ctx, userID, credentials.Patch{Connected: ptr(false)}); saveErr != nil {
				logger.Error("mark credential disconnected", slog.Any("error", saveErr))
			}
			return credentials.Credential{}, fmt.Errorf("%w: %w", ErrUpstreamRejected, err)
		}
		m.observe("error")
		logger.Warn("token refresh failed", slog.Any("error", err))
		return credentials.Credential{}, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	patch := m.grantPatch(grant, cred.RefreshToken)
	saved, err := m.store.Save(ctx, userID, patch)
	if err != nil {
		m.observe("error")
		logger.Error("persist refreshed credential", slog.Any("error", err))
		return credentials.Credential{}, fmt.Errorf("%w: persist: %w", ErrRefreshFailed, err)
	}
	m.observe("ok")
	logger.Debug("token refreshed", slog.Time("expires_at", saved.ExpiresAt))
	return saved, nil
}

func (m *Manager) grantPatch(grant Grant, previousRefresh string) credentials.Patch {
	now := m.clock()
	expiresAt := now.Add(time.Duration(grant.ExpiresIn) * time.Second)
	refresh := grant.RefreshToken
	if refresh == "" {
		refresh = previousRefresh
	}
	patch := credentials.Patch{
		AccessToken:  ptr(grant.AccessToken),
		RefreshToken: ptr(refresh),
		ExpiresAt:    &expiresAt,
		Connected:    ptr(true),
	}
	if grant.RefreshExpiresIn > 0 {
		refreshExpiresAt := now.Add(time.Duration(grant.RefreshExpiresIn) * time.Second)
		patch.RefreshExpiresAt = &refreshExpiresAt
	}
	return patch
}

// AuthorizationURL starts the connect flow for userID.
func (m *Manager) AuthorizationURL(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", errors.New("tokens: user id required")
	}
	state := uuid.NewString()
	if err := m.states.Put(ctx, state, userID, stateTTL); err != nil {
		return "", err
	}
	return m.grants.AuthCodeURL(state), nil
}

// Complete finishes the connect flow: it redeems the code for the user bound
// to state and stores a connected credential for realmID.
func (m *Manager) Complete(ctx context.Context, state, code, realmID string) (credentials.Credential, error) {
	userID, err := m.states.Take(ctx, state)
	if err != nil {
		return credentials.Credential{}, err
	}
	grant, err := m.grants.Exchange(ctx, code)
	if err != nil {
		return credentials.Credential{}, fmt.Errorf("tokens: exchange code: %w", err)
	}

	unlock := m.locks.Lock(userID)
	patch := m.grantPatch(grant, "")
	patch.RealmID = ptr(realmID)
	saved, err := m.store.Save(ctx, userID, patch)
	unlock()
	if err != nil {
		return credentials.Credential{}, fmt.Errorf("tokens: save credential: %w", err)
	}

	logger := m.logger.With(slog.String("user_id", userID), slog.String("realm_id", realmID))
	logger.Info("quickbooks connected")
	for _, hook := range m.onConnect {
		if err := hook(ctx, userID); err != nil {
			logger.Warn("connect hook failed", slog.Any("error", err))
		}
	}
	return saved, nil
}

// Status describes a user's connection.
type Status struct {
	Connected        bool       `json:"connected"`
	RealmID          string     `json:"realmId,omitempty"`
	ExpiresAt        *time.Time `json:"expiresAt,omitempty"`
	RefreshExpiresAt *time.Time `json:"refreshExpiresAt,omitempty"`
}

// Status reports the user's connection without touching the upstream.
func (m *Manager) Status(ctx context.Context, userID string) (Status, error) {
	cred, err := m.store.Get(ctx, userID)
	if errors.Is(err, credentials.ErrNotFound) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("tokens: load credential: %w", err)
	}
	status := Status{Connected: cred.Connected, RealmID: cred.RealmID}
	if !cred.ExpiresAt.IsZero() {
		status.ExpiresAt = &cred.ExpiresAt
	}
	if !cred.RefreshExpiresAt.IsZero() {
		status.RefreshExpiresAt = &cred.RefreshExpiresAt
	}
	return status, nil
}

func (m *Manager) observe(outcome string) {
	if m.metrics != nil {
		m.metrics.ObserveTokenRefresh(outcome)
	}
}

// keyedMutex serialises credential writes per user.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func ptr[T any](v T) *T { return &v }
