// Package entitlement is the core decision engine: it owns credit balances,
// earn cooldowns, verification token lifecycles, time-boxed access grants,
// and referral bookkeeping. All outcomes are explicit result values; only
// storage faults surface as errors.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"turnstile/internal/db"
	"turnstile/internal/gate"
	"turnstile/internal/models"
)

// LinkBuilder wraps a destination URL into the external verification link
// the user must complete. Best-effort collaborator; failures are retryable.
type LinkBuilder interface {
	Shorten(ctx context.Context, destination string) (string, error)
}

type Config struct {
	AccessTTL     time.Duration
	TokenTTL      time.Duration
	CreditCycle   time.Duration
	CreditCap     int64
	EarnAmount    int64
	UnlockCost    int64
	ReferralAward int64
	BaseURL       string
	TrustedAdmins map[string]bool
}

type Service struct {
	cfg       Config
	accounts  *db.AccountRepository
	tokens    *db.TokenRepository
	grants    *db.GrantRepository
	items     *db.ItemRepository
	referrals *db.ReferralRepository
	gate      *gate.Gate
	links     LinkBuilder
}

func NewService(
	cfg Config,
	accounts *db.AccountRepository,
	tokens *db.TokenRepository,
	grants *db.GrantRepository,
	items *db.ItemRepository,
	referrals *db.ReferralRepository,
	g *gate.Gate,
	links LinkBuilder,
) *Service {
	return &Service{
		cfg:       cfg,
		accounts:  accounts,
		tokens:    tokens,
		grants:    grants,
		items:     items,
		referrals: referrals,
		gate:      g,
		links:     links,
	}
}

// GetOrCreateAccount upserts the account for an external identity. Trusted
// identities from config are created with the admin role.
func (s *Service) GetOrCreateAccount(ctx context.Context, externalID, displayName string) (*models.Account, bool, error) {
	role := models.RoleUser
	if s.cfg.TrustedAdmins[externalID] {
		role = models.RoleAdmin
	}
	return s.accounts.GetOrCreate(ctx, externalID, displayName, role)
}

// IsAdmin is true for the configured trusted set or a stored admin role.
func (s *Service) IsAdmin(account *models.Account) bool {
	return s.cfg.TrustedAdmins[account.ExternalID] || account.Role == models.RoleAdmin
}

// RequestAccess decides how an account may reach a content item:
// immediate grant, verification flow, or denial. Precedence when several
// unlock paths apply: existing grant, then premium, then verification
// token; the credit-spend path is the separate UnlockWithCredit entry.
func (s *Service) RequestAccess(ctx context.Context, account *models.Account, itemID string) (*Decision, error) {
	if account.IsBanned() {
		return &Decision{Outcome: OutcomeDenied}, nil
	}

	admin := s.IsAdmin(account)

	if !admin {
		satisfied, statuses, err := s.gate.Check(ctx, account.ExternalID)
		if err != nil {
			return nil, fmt.Errorf("checking subscribe gate: %w", err)
		}
		if !satisfied {
			return &Decision{Outcome: OutcomeNeedsSubscription, MissingChannels: missing(statuses)}, nil
		}
	}

	item, err := s.items.FindByID(ctx, itemID)
	if errors.Is(err, db.ErrNotFound) {
		return &Decision{Outcome: OutcomeNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading item: %w", err)
	}

	now := time.Now().UTC()
	grant, err := s.grants.Find(ctx, account.ID, item.ID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("loading grant: %w", err)
	}

	// Unpublished items stay reachable for admins and for accounts whose
	// grant window has not closed yet; everyone else sees nothing.
	if !item.Published && !admin {
		stillValid := false
		if grant != nil {
			stillValid, _ = grantValid(grant.UnlockedAt, now, s.cfg.AccessTTL)
		}
		if !stillValid {
			return &Decision{Outcome: OutcomeNotFound}, nil
		}
	}

	if admin {
		return s.granted(ctx, item, nil, true)
	}

	if account.PremiumActive(now) {
		g, err := s.grants.Upsert(ctx, account.ID, item.ID, now)
		if err != nil {
			return nil, fmt.Errorf("renewing premium grant: %w", err)
		}
		return s.granted(ctx, item, g, false)
	}

	if grant != nil {
		if valid, _ := grantValid(grant.UnlockedAt, now, s.cfg.AccessTTL); valid {
			// Re-delivery inside the window is free.
			return s.granted(ctx, item, grant, false)
		}
	}

	return s.mintVerification(ctx, account, models.PurposeUnlock, &item.ID, 0)
}

// UnlockWithCredit is the direct consumption path: serve an existing valid
// grant for free, otherwise pay one credit. No verification flow here; the
// caller routes an insufficient balance to the earning flow.
func (s *Service) UnlockWithCredit(ctx context.Context, account *models.Account, itemID string) (*Decision, error) {
	if account.IsBanned() {
		return &Decision{Outcome: OutcomeDenied}, nil
	}

	admin := s.IsAdmin(account)

	if !admin {
		satisfied, statuses, err := s.gate.Check(ctx, account.ExternalID)
		if err != nil {
			return nil, fmt.Errorf("checking subscribe gate: %w", err)
		}
		if !satisfied {
			return &Decision{Outcome: OutcomeNeedsSubscription, MissingChannels: missing(statuses)}, nil
		}
	}

	item, err := s.items.FindByID(ctx, itemID)
	if errors.Is(err, db.ErrNotFound) {
		return &Decision{Outcome: OutcomeNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading item: %w", err)
	}

	now := time.Now().UTC()
	grant, err := s.grants.Find(ctx, account.ID, item.ID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("loading grant: %w", err)
	}

	if !item.Published && !admin {
		stillValid := false
		if grant != nil {
			stillValid, _ = grantValid(grant.UnlockedAt, now, s.cfg.AccessTTL)
		}
		if !stillValid {
			return &Decision{Outcome: OutcomeNotFound}, nil
		}
	}

	if admin {
		return s.granted(ctx, item, nil, true)
	}

	if account.PremiumActive(now) {
		g, err := s.grants.Upsert(ctx, account.ID, item.ID, now)
		if err != nil {
			return nil, fmt.Errorf("renewing premium grant: %w", err)
		}
		return s.granted(ctx, item, g, false)
	}

	if grant != nil {
		if valid, _ := grantValid(grant.UnlockedAt, now, s.cfg.AccessTTL); valid {
			return s.granted(ctx, item, grant, false)
		}
	}

	balance, ok, err := s.accounts.SpendCredit(ctx, account.ID, s.cfg.UnlockCost)
	if err != nil {
		return nil, fmt.Errorf("spending credit: %w", err)
	}
	if !ok {
		// The caller's snapshot may predate a concurrent spend; report the
		// balance the conditional update actually saw.
		current, err := s.accounts.FindByID(ctx, account.ID)
		if err != nil {
			return nil, fmt.Errorf("reloading account: %w", err)
		}
		return &Decision{Outcome: OutcomeInsufficientBalance, Balance: current.Balance}, nil
	}

	g, err := s.grants.Upsert(ctx, account.ID, item.ID, now)
	if err != nil {
		return nil, fmt.Errorf("recording grant: %w", err)
	}

	decision, err := s.granted(ctx, item, g, false)
	if err != nil {
		return nil, err
	}
	decision.Balance = balance
	return decision, nil
}

// RequestCreditGrant mirrors the content flow for earning credits: it mints
// a credit-purpose token once the cooldown allows earning.
func (s *Service) RequestCreditGrant(ctx context.Context, account *models.Account) (*Decision, error) {
	if account.IsBanned() {
		return &Decision{Outcome: OutcomeDenied}, nil
	}

	if !s.IsAdmin(account) {
		satisfied, statuses, err := s.gate.Check(ctx, account.ExternalID)
		if err != nil {
			return nil, fmt.Errorf("checking subscribe gate: %w", err)
		}
		if !satisfied {
			return &Decision{Outcome: OutcomeNeedsSubscription, MissingChannels: missing(statuses)}, nil
		}
	}

	status, err := s.CanEarn(ctx, account)
	if err != nil {
		return nil, err
	}
	if !status.Allowed {
		return &Decision{Outcome: OutcomeCooldownActive, ValidFor: status.Remaining, Balance: status.Balance}, nil
	}

	return s.mintVerification(ctx, account, models.PurposeCredit, nil, s.cfg.EarnAmount)
}

// ClaimContentToken finishes the unlock verification flow. The conditional
// consume in the token repository makes the grant side effect exactly-once
// even under concurrent claims of the same token.
func (s *Service) ClaimContentToken(ctx context.Context, account *models.Account, token string) (*Decision, error) {
	outcome, vt, err := s.checkToken(ctx, account, token, models.PurposeUnlock)
	if err != nil {
		return nil, err
	}
	if outcome != "" {
		return &Decision{Outcome: outcome}, nil
	}

	consumed, err := s.tokens.ConsumeVerified(ctx, vt.Token)
	if errors.Is(err, db.ErrNotFound) {
		// Lost a concurrent claim race; the benefit was already applied.
		return &Decision{Outcome: OutcomeAlreadyUsed}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("consuming token: %w", err)
	}

	if consumed.ItemID == nil {
		return &Decision{Outcome: OutcomeNotFound}, nil
	}

	item, err := s.items.FindByID(ctx, *consumed.ItemID)
	if errors.Is(err, db.ErrNotFound) {
		return &Decision{Outcome: OutcomeNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading item: %w", err)
	}

	g, err := s.grants.Upsert(ctx, account.ID, item.ID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("recording grant: %w", err)
	}

	return s.granted(ctx, item, g, false)
}

// ClaimCreditToken finishes the credit verification flow; on success the
// token's award lands on the owner's balance.
func (s *Service) ClaimCreditToken(ctx context.Context, account *models.Account, token string) (*Decision, error) {
	outcome, vt, err := s.checkToken(ctx, account, token, models.PurposeCredit)
	if err != nil {
		return nil, err
	}
	if outcome != "" {
		return &Decision{Outcome: outcome}, nil
	}

	consumed, err := s.tokens.ConsumeVerified(ctx, vt.Token)
	if errors.Is(err, db.ErrNotFound) {
		return &Decision{Outcome: OutcomeAlreadyUsed}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("consuming token: %w", err)
	}

	balance, err := s.earn(ctx, account.ID, consumed.Award)
	if err != nil {
		return nil, err
	}

	return &Decision{Outcome: OutcomeCredited, Balance: balance}, nil
}

// MarkVerified is the external verifier's callback. It only ever moves a
// token from pending to verified; repeated or late calls are no-ops, so the
// endpoint stays idempotent and free of domain side effects.
func (s *Service) MarkVerified(ctx context.Context, token string) error {
	notBefore := time.Now().UTC().Add(-s.cfg.TokenTTL)
	transitioned, err := s.tokens.MarkVerified(ctx, token, notBefore)
	if err != nil {
		return err
	}
	if !transitioned {
		slog.Info("verification callback was a no-op", "component", "entitlement")
	}
	return nil
}

type ReferralResult struct {
	Registered bool  `json:"registered"`
	Award      int64 `json:"award,omitempty"`
}

// RegisterReferral credits the referrer when a genuinely new account joins
// through their link. Self-referrals and repeat joins are silent no-ops;
// the registry's uniqueness constraint settles concurrent attempts.
func (s *Service) RegisterReferral(ctx context.Context, referrer *models.Account, referred *models.Account, referredIsNew bool) (*ReferralResult, error) {
	if !referredIsNew || referrer.ID == referred.ID {
		return &ReferralResult{Registered: false}, nil
	}

	created, err := s.referrals.Create(ctx, referrer.ID, referred.ID)
	if err != nil {
		return nil, fmt.Errorf("registering referral: %w", err)
	}
	if !created {
		return &ReferralResult{Registered: false}, nil
	}

	if _, err := s.accounts.AddCredits(ctx, referrer.ID, s.cfg.ReferralAward, models.ReasonReferral); err != nil {
		return nil, fmt.Errorf("awarding referral: %w", err)
	}

	return &ReferralResult{Registered: true, Award: s.cfg.ReferralAward}, nil
}

// checkToken resolves a token to either a terminal outcome ("" means ready
// to consume) or the loaded token. Expiry is evaluated lazily here.
func (s *Service) checkToken(ctx context.Context, account *models.Account, token string, purpose models.TokenPurpose) (Outcome, *models.VerifyToken, error) {
	vt, err := s.tokens.FindByToken(ctx, token)
	if errors.Is(err, db.ErrNotFound) {
		return OutcomeNotFound, nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("loading token: %w", err)
	}

	// A foreign or wrong-purpose token is indistinguishable from an
	// unknown one to the caller.
	if vt.AccountID != account.ID || vt.Purpose != purpose {
		return OutcomeNotFound, nil, nil
	}

	switch vt.Status {
	case models.TokenUsed:
		return OutcomeAlreadyUsed, nil, nil
	case models.TokenExpired:
		return OutcomeExpired, nil, nil
	}

	if time.Since(vt.CreatedAt) > s.cfg.TokenTTL {
		if err := s.tokens.MarkExpired(ctx, vt.ID); err != nil {
			return "", nil, fmt.Errorf("expiring token: %w", err)
		}
		return OutcomeExpired, nil, nil
	}

	if vt.Status == models.TokenPending {
		return OutcomeStillPending, nil, nil
	}

	return "", vt, nil
}

func (s *Service) mintVerification(ctx context.Context, account *models.Account, purpose models.TokenPurpose, itemID *string, award int64) (*Decision, error) {
	vt, err := s.tokens.Create(ctx, account.ID, purpose, itemID, award)
	if err != nil {
		return nil, fmt.Errorf("minting token: %w", err)
	}

	destination := fmt.Sprintf("%s/claim?token=%s", s.cfg.BaseURL, vt.Token)
	url, err := s.links.Shorten(ctx, destination)
	if err != nil {
		// The token stays pending and will simply expire; the user retries.
		slog.Error("link shortener failed", "component", "entitlement", "error", err)
		return &Decision{Outcome: OutcomeServiceUnavailable}, nil
	}

	return &Decision{Outcome: OutcomeNeedsVerification, Token: vt.Token, VerificationURL: url}, nil
}

func (s *Service) granted(ctx context.Context, item *models.ContentItem, grant *models.AccessGrant, adminPreview bool) (*Decision, error) {
	assets, err := s.items.ListAssets(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("loading assets: %w", err)
	}

	d := &Decision{
		Outcome:      OutcomeGranted,
		Item:         item,
		Assets:       assets,
		AdminPreview: adminPreview,
	}
	if grant != nil {
		_, left := grantValid(grant.UnlockedAt, time.Now().UTC(), s.cfg.AccessTTL)
		d.ValidFor = &left
	}
	return d, nil
}

func missing(statuses []gate.ChannelStatus) []*models.RequiredChannel {
	var channels []*models.RequiredChannel
	for _, st := range statuses {
		if !st.Joined {
			channels = append(channels, st.Channel)
		}
	}
	return channels
}
