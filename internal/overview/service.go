package overview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/qbportal/internal/credentials"
	"github.com/odyssey-erp/qbportal/internal/reports"
)

var (
	// ErrUnknownReport is returned by FetchReport for names outside the catalog.
	ErrUnknownReport = errors.New("overview: unknown report")
	// ErrReportUnavailable is returned by the single-widget fetches when the
	// upstream calls they depend on failed.
	ErrReportUnavailable = errors.New("overview: report unavailable")
)

// CredentialSource yields a credential that is valid for upstream calls.
// *tokens.Manager satisfies it.
type CredentialSource interface {
	AcquireValidCredential(ctx context.Context, userID string) (credentials.Credential, error)
}

// Config wires a Service.
type Config struct {
	Credentials CredentialSource
	API         API
	Cache       *Cache
	Logger      *slog.Logger
	Clock       func() time.Time
}

// Service aggregates upstream reports into dashboard payloads.
type Service struct {
	creds  CredentialSource
	api    API
	cache  *Cache
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		creds:  cfg.Credentials,
		api:    cfg.API,
		cache:  cfg.Cache,
		logger: logger,
		now:    func() time.Time { return now().UTC() },
	}
}

// FetchBusinessOverview returns the user's overview, from cache when a
// complete bundle is stored. The credential is checked before the cache so a
// disconnected user is never served a stale bundle.
func (s *Service) FetchBusinessOverview(ctx context.Context, userID string) (Bundle, error) {
	cred, err := s.creds.AcquireValidCredential(ctx, userID)
	if err != nil {
		return Bundle{}, err
	}
	var cached Bundle
	hit, err := s.cache.Get(ctx, userID, &cached)
	if err != nil {
		s.logger.Warn("overview cache unavailable", slog.String("user_id", userID), slog.Any("error", err))
	}
	if hit {
		return cached, nil
	}
	return s.assemble(ctx, userID, cred), nil
}

// RefreshBusinessOverview bypasses the cache, fetches every report and caches
// the result when no call failed.
func (s *Service) RefreshBusinessOverview(ctx context.Context, userID string) (Bundle, error) {
	cred, err := s.creds.AcquireValidCredential(ctx, userID)
	if err != nil {
		return Bundle{}, err
	}
	return s.assemble(ctx, userID, cred), nil
}

func (s *Service) assemble(ctx context.Context, userID string, cred credentials.Credential) Bundle {
	now := s.now()
	res := s.fetch(ctx, cred, overviewKeys, now)
	bundle := assembler{res: res, logger: s.logger, now: now}.bundle()
	if res.Complete() {
		if err := s.cache.Set(ctx, userID, bundle); err != nil {
			s.logger.Warn("cache overview", slog.String("user_id", userID), slog.Any("error", err))
		}
	} else {
		s.logger.Info("overview assembled with failed reports", slog.String("user_id", userID), slog.Any("failed", res.Failed()))
	}
	return bundle
}

// FetchCustomerStatus derives receivable status from the AR calls only.
func (s *Service) FetchCustomerStatus(ctx context.Context, userID string) (reports.AgingSummary, error) {
	res, now, err := s.run(ctx, userID, customerKeys)
	if err != nil {
		return reports.AgingSummary{}, err
	}
	summary := assembler{res: res, logger: s.logger, now: now}.receivables()
	if summary == nil {
		return reports.AgingSummary{}, fmt.Errorf("%w: receivables", ErrReportUnavailable)
	}
	return *summary, nil
}

// FetchVendorStatus derives payable status from the AP calls only.
func (s *Service) FetchVendorStatus(ctx context.Context, userID string) (reports.AgingSummary, error) {
	res, now, err := s.run(ctx, userID, vendorKeys)
	if err != nil {
		return reports.AgingSummary{}, err
	}
	summary := assembler{res: res, logger: s.logger, now: now}.payables()
	if summary == nil {
		return reports.AgingSummary{}, fmt.Errorf("%w: payables", ErrReportUnavailable)
	}
	return *summary, nil
}

// AccountsView is the bank and credit card widget payload.
type AccountsView struct {
	Accounts       []reports.MergedAccount `json:"accounts"`
	NetBankBalance float64                 `json:"netBankBalance"`
}

// FetchAccountsWithFeeds merges ledger accounts with the live bank feed.
func (s *Service) FetchAccountsWithFeeds(ctx context.Context, userID string) (AccountsView, error) {
	res, now, err := s.run(ctx, userID, accountKeys)
	if err != nil {
		return AccountsView{}, err
	}
	accounts := assembler{res: res, logger: s.logger, now: now}.accounts()
	if accounts == nil {
		return AccountsView{}, fmt.Errorf("%w: %w", ErrReportUnavailable, res.Err(KeyAccounts))
	}
	return AccountsView{Accounts: accounts, NetBankBalance: reports.NetBankBalance(accounts)}, nil
}

// FetchReport returns the raw upstream body of one catalog call.
func (s *Service) FetchReport(ctx context.Context, userID, name string) (json.RawMessage, error) {
	if _, ok := catalog[name]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownReport, name)
	}
	res, _, err := s.run(ctx, userID, []string{name})
	if err != nil {
		return nil, err
	}
	body, ok := res.Body(name)
	if !ok {
		return nil, fmt.Errorf("%w: %w", ErrReportUnavailable, res.Err(name))
	}
	return body, nil
}

func (s *Service) run(ctx context.Context, userID string, keys []string) (Results, time.Time, error) {
	cred, err := s.creds.AcquireValidCredential(ctx, userID)
	if err != nil {
		return Results{}, time.Time{}, err
	}
	now := s.now()
	return s.fetch(ctx, cred, keys, now), now, nil
}
