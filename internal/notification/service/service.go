package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/giftpool/internal/config"
	giftdomain "github.com/smallbiznis/giftpool/internal/gift/domain"
	obsmetrics "github.com/smallbiznis/giftpool/internal/observability/metrics"
	"github.com/smallbiznis/giftpool/internal/providers/email"
	settlementdomain "github.com/smallbiznis/giftpool/internal/settlement/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const impactTokenBytes = 32

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Cfg         config.Config
	GiftRepo    giftdomain.Repository
	Settlements settlementdomain.Repository
	Email       email.Provider
	Metrics     *obsmetrics.Metrics `optional:"true"`
}

// Trigger fires each completion email at most once per gift.
type Trigger struct {
	db          *gorm.DB
	log         *zap.Logger
	baseURL     string
	giftRepo    giftdomain.Repository
	settlements settlementdomain.Repository
	email       email.Provider
	metrics     *obsmetrics.Metrics
	events      []event
	newToken    func() (string, error)
}

func New(p Params) *Trigger {
	return &Trigger{
		db:          p.DB,
		log:         p.Log.Named("notification.trigger"),
		baseURL:     strings.TrimRight(p.Cfg.PublicBaseURL, "/"),
		giftRepo:    p.GiftRepo,
		settlements: p.Settlements,
		email:       p.Email,
		metrics:     p.Metrics,
		events:      defaultEvents(),
		newToken:    randomToken,
	}
}

// snapshot is what the events are evaluated against.
type snapshot struct {
	gift          *giftdomain.Gift
	bonus         *settlementdomain.Settlement
	donation      *settlementdomain.Settlement
	tip           *settlementdomain.Settlement
	contributions []giftdomain.Contribution
	impactURL     string
}

type event struct {
	name       string
	flag       giftdomain.NotificationFlag
	template   string
	ready      func(s *snapshot) bool
	recipients func(s *snapshot) []string
	data       func(s *snapshot) map[string]any
}

func defaultEvents() []event {
	return []event{
		{
			name:     "recipient_notification",
			flag:     giftdomain.FlagRecipientNotificationSent,
			template: email.TemplateRecipientNotification,
			ready:    pairComplete,
			recipients: func(s *snapshot) []string {
				if s.bonus.RecipientEmail == "" {
					return nil
				}
				return []string{s.bonus.RecipientEmail}
			},
			data: func(s *snapshot) map[string]any {
				data := baseData(s)
				data["claim_url"] = s.bonus.ClaimURL
				return data
			},
		},
		{
			name:       "contributor_impact",
			flag:       giftdomain.FlagContributorImpactEmailsSent,
			template:   email.TemplateContributorImpact,
			ready:      pairComplete,
			recipients: contributorEmails,
			data:       baseData,
		},
		{
			name:     "tip_receipt",
			flag:     giftdomain.FlagTipReceiptSent,
			template: email.TemplateTipReceipt,
			ready:    func(s *snapshot) bool { return s.tip != nil },
			recipients: func(s *snapshot) []string {
				if s.gift.OrganizerEmail == "" {
					return nil
				}
				return []string{s.gift.OrganizerEmail}
			},
			data: func(s *snapshot) map[string]any {
				data := baseData(s)
				data["tip_amount"] = s.tip.Amount.StringFixed(2)
				return data
			},
		},
	}
}

func pairComplete(s *snapshot) bool {
	return s.bonus != nil && s.donation != nil
}

func baseData(s *snapshot) map[string]any {
	data := map[string]any{
		"gift_title":     s.gift.Title,
		"recipient_name": s.gift.RecipientName,
		"organizer_name": s.gift.OrganizerName,
		"impact_url":     s.impactURL,
	}
	if s.bonus != nil {
		data["bonus_amount"] = s.bonus.Amount.StringFixed(2)
	}
	if s.donation != nil {
		data["dedication"] = s.donation.Dedication
		if s.donation.Disposition == settlementdomain.DispositionCharity {
			data["donation_amount"] = s.donation.NetAmount.StringFixed(2)
			data["charity_name"] = s.donation.CharityName
		}
	}
	return data
}

// contributorEmails dedupes by lower-cased address and falls back to the
// organizer when no contributor left an email.
func contributorEmails(s *snapshot) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, c := range s.contributions {
		addr := strings.TrimSpace(c.Email)
		key := strings.ToLower(addr)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, addr)
	}
	if len(out) == 0 && s.gift.OrganizerEmail != "" {
		out = append(out, s.gift.OrganizerEmail)
	}
	return out
}

func (t *Trigger) CheckAndTrigger(ctx context.Context, giftID snowflake.ID) error {
	gift, err := t.giftRepo.FindByID(ctx, t.db, giftID)
	if err != nil {
		return err
	}
	if gift == nil {
		return giftdomain.ErrNotFound
	}

	pending := make([]event, 0, len(t.events))
	for _, ev := range t.events {
		if !gift.FlagSet(ev.flag) {
			pending = append(pending, ev)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	snap, err := t.snapshot(ctx, gift)
	if err != nil {
		return err
	}

	log := t.log.With(zap.String("gift_id", giftID.String()))
	var errs []error
	for _, ev := range pending {
		if err := t.fire(ctx, log, snap, ev); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ev.name, err))
		}
	}
	return errors.Join(errs...)
}

func (t *Trigger) snapshot(ctx context.Context, gift *giftdomain.Gift) (*snapshot, error) {
	rows, err := t.settlements.ListByGift(ctx, t.db, gift.ID)
	if err != nil {
		return nil, err
	}
	snap := &snapshot{gift: gift}
	// rows are newest first
	for i := range rows {
		row := &rows[i]
		if !row.Status.Active() {
			continue
		}
		switch row.Disposition {
		case settlementdomain.DispositionBonus:
			if snap.bonus == nil {
				snap.bonus = row
			}
		case settlementdomain.DispositionCharity, settlementdomain.DispositionTip:
			if snap.donation == nil {
				snap.donation = row
			}
			if row.Disposition == settlementdomain.DispositionTip && snap.tip == nil {
				snap.tip = row
			}
		}
	}
	if pairComplete(snap) {
		snap.contributions, err = t.giftRepo.ListContributions(ctx, t.db, gift.ID)
		if err != nil {
			return nil, err
		}
	}
	return snap, nil
}

func (t *Trigger) fire(ctx context.Context, log *zap.Logger, snap *snapshot, ev event) error {
	if !ev.ready(snap) {
		return nil
	}
	recipients := ev.recipients(snap)
	if len(recipients) == 0 {
		log.Warn("notification has no recipients", zap.String("event", ev.name))
		return nil
	}

	if snap.impactURL == "" {
		url, err := t.impactURL(ctx, snap.gift)
		if err != nil {
			return err
		}
		snap.impactURL = url
	}

	claimed, err := t.giftRepo.ClaimNotificationFlag(ctx, t.db, snap.gift.ID, ev.flag)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	data := ev.data(snap)
	var errs []error
	for _, to := range recipients {
		if err := t.email.SendTemplate(ctx, []string{to}, ev.template, data); err != nil {
			t.metrics.RecordNotification(ctx, ev.name, "failed")
			errs = append(errs, err)
			continue
		}
		t.metrics.RecordNotification(ctx, ev.name, "sent")
	}
	if len(errs) > 0 {
		log.Warn("notification partially failed, flag stays set",
			zap.String("event", ev.name),
			zap.Int("recipients", len(recipients)),
			zap.Int("failed", len(errs)),
			zap.Error(errors.Join(errs...)),
		)
		return nil
	}
	log.Info("notification sent", zap.String("event", ev.name), zap.Int("recipients", len(recipients)))
	return nil
}

// impactURL returns the public results link; the token is set once and
// never rotated.
func (t *Trigger) impactURL(ctx context.Context, gift *giftdomain.Gift) (string, error) {
	token := ""
	if gift.ImpactToken != nil {
		token = *gift.ImpactToken
	}
	if token == "" {
		candidate, err := t.newToken()
		if err != nil {
			return "", err
		}
		token, err = t.giftRepo.EnsureImpactToken(ctx, t.db, gift.ID, candidate)
		if err != nil {
			return "", err
		}
	}
	return t.baseURL + "/impact/" + token, nil
}

func randomToken() (string, error) {
	buf := make([]byte, impactTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
