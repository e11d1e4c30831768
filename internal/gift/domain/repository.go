package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrNotFound         = errors.New("gift_not_found")
	ErrInvalidFlag      = errors.New("invalid_notification_flag")
	ErrInvalidStatus    = errors.New("invalid_gift_status")
	ErrImpactTokenEmpty = errors.New("impact_token_empty")
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, gift *Gift) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Gift, error)
	FindByImpactToken(ctx context.Context, db *gorm.DB, token string) (*Gift, error)
	// TransitionStatus moves an active gift to a settled status. It reports
	// false when the gift was no longer active.
	TransitionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, to Status) (bool, error)
	// ClaimNotificationFlag flips flag false->true and reports whether this
	// caller made the transition.
	ClaimNotificationFlag(ctx context.Context, db *gorm.DB, id snowflake.ID, flag NotificationFlag) (bool, error)
	// EnsureImpactToken stores candidate when the gift has no token yet and
	// returns whichever token is stored afterwards.
	EnsureImpactToken(ctx context.Context, db *gorm.DB, id snowflake.ID, candidate string) (string, error)

	InsertContribution(ctx context.Context, db *gorm.DB, contribution *Contribution) error
	ListContributions(ctx context.Context, db *gorm.DB, giftID snowflake.ID) ([]Contribution, error)
}
