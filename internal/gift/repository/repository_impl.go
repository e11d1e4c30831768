package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/giftpool/internal/gift/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const giftColumns = `id, title, recipient_name, organizer_user_id, organizer_name, organizer_email,
	target_amount, current_amount, status, recipient_notification_sent,
	contributor_impact_emails_sent, tip_receipt_sent, impact_token, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, gift *domain.Gift) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO gifts (`+giftColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		gift.ID,
		gift.Title,
		gift.RecipientName,
		gift.OrganizerUserID,
		gift.OrganizerName,
		gift.OrganizerEmail,
		gift.TargetAmount,
		gift.CurrentAmount,
		gift.Status,
		gift.RecipientNotificationSent,
		gift.ContributorImpactEmailsSent,
		gift.TipReceiptSent,
		gift.ImpactToken,
		gift.CreatedAt,
		gift.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Gift, error) {
	var gift domain.Gift
	err := db.WithContext(ctx).Raw(
		`SELECT `+giftColumns+` FROM gifts WHERE id = ?`,
		id,
	).Scan(&gift).Error
	if err != nil {
		return nil, err
	}
	if gift.ID == 0 {
		return nil, nil
	}
	return &gift, nil
}

func (r *repo) FindByImpactToken(ctx context.Context, db *gorm.DB, token string) (*domain.Gift, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	var gift domain.Gift
	err := db.WithContext(ctx).Raw(
		`SELECT `+giftColumns+` FROM gifts WHERE impact_token = ?`,
		token,
	).Scan(&gift).Error
	if err != nil {
		return nil, err
	}
	if gift.ID == 0 {
		return nil, nil
	}
	return &gift, nil
}

func (r *repo) TransitionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, to domain.Status) (bool, error) {
	if to != domain.StatusSettled && to != domain.StatusSettledCredits {
		return false, domain.ErrInvalidStatus
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE gifts SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to,
		time.Now().UTC(),
		id,
		domain.StatusActive,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) ClaimNotificationFlag(ctx context.Context, db *gorm.DB, id snowflake.ID, flag domain.NotificationFlag) (bool, error) {
	if !flag.Valid() {
		return false, domain.ErrInvalidFlag
	}
	// flag is one of the allowlisted column names above.
	column := string(flag)
	result := db.WithContext(ctx).Exec(
		`UPDATE gifts SET `+column+` = ?, updated_at = ? WHERE id = ? AND `+column+` = ?`,
		true,
		time.Now().UTC(),
		id,
		false,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) EnsureImpactToken(ctx context.Context, db *gorm.DB, id snowflake.ID, candidate string) (string, error) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return "", domain.ErrImpactTokenEmpty
	}
	if err := db.WithContext(ctx).Exec(
		`UPDATE gifts SET impact_token = ?, updated_at = ? WHERE id = ? AND impact_token IS NULL`,
		candidate,
		time.Now().UTC(),
		id,
	).Error; err != nil {
		return "", err
	}

	var row struct {
		ImpactToken *string
	}
	if err := db.WithContext(ctx).Raw(
		`SELECT impact_token FROM gifts WHERE id = ?`,
		id,
	).Scan(&row).Error; err != nil {
		return "", err
	}
	if row.ImpactToken == nil || *row.ImpactToken == "" {
		return "", domain.ErrNotFound
	}
	return *row.ImpactToken, nil
}

func (r *repo) InsertContribution(ctx context.Context, db *gorm.DB, c *domain.Contribution) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO contributions (
			id, gift_id, user_id, display_name, email, amount,
			payment_provider, payment_reference, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.GiftID,
		c.UserID,
		c.DisplayName,
		c.Email,
		c.Amount,
		c.PaymentProvider,
		c.PaymentReference,
		c.CreatedAt,
	).Error
}

func (r *repo) ListContributions(ctx context.Context, db *gorm.DB, giftID snowflake.ID) ([]domain.Contribution, error) {
	var contributions []domain.Contribution
	err := db.WithContext(ctx).Raw(
		`SELECT id, gift_id, user_id, display_name, email, amount,
			payment_provider, payment_reference, created_at
		 FROM contributions WHERE gift_id = ?
		 ORDER BY created_at ASC, id ASC`,
		giftID,
	).Scan(&contributions).Error
	if err != nil {
		return nil, err
	}
	return contributions, nil
}
