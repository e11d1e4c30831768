package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/giftpool/internal/settlement/domain"
	"github.com/smallbiznis/giftpool/pkg/db"
	"github.com/smallbiznis/giftpool/pkg/money"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, row *domain.Settlement) error {
	row.Amount = money.RoundCents(row.Amount)
	row.NetAmount = money.RoundCents(row.NetAmount)
	row.FeeAmount = money.RoundCents(row.FeeAmount)
	row.TotalCollected = money.RoundCents(row.TotalCollected)
	row.FinalGiftPrice = money.RoundCents(row.FinalGiftPrice)
	if !row.Status.Active() {
		row.Slot = nil
	}

	err := conn.WithContext(ctx).Create(row).Error
	if err != nil && row.Slot != nil && db.IsDuplicateKeyErr(err) {
		return domain.ErrSlotTaken
	}
	return err
}

func (r *repo) ListByGift(ctx context.Context, conn *gorm.DB, giftID snowflake.ID) ([]domain.Settlement, error) {
	var rows []domain.Settlement
	err := conn.WithContext(ctx).Raw(
		`SELECT * FROM settlements WHERE gift_id = ? ORDER BY created_at DESC, id DESC`,
		giftID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return normalize(rows), nil
}

func (r *repo) FindActiveInSlot(ctx context.Context, conn *gorm.DB, giftID snowflake.ID, slot domain.Slot) (*domain.Settlement, error) {
	var rows []domain.Settlement
	err := conn.WithContext(ctx).Raw(
		`SELECT * FROM settlements WHERE gift_id = ? AND slot = ? LIMIT 1`,
		giftID,
		slot,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	row := normalize(rows)[0]
	return &row, nil
}

func (r *repo) ListActiveByOrigin(ctx context.Context, conn *gorm.DB, giftID snowflake.ID, origin domain.Disposition) ([]domain.Settlement, error) {
	var rows []domain.Settlement
	err := conn.WithContext(ctx).Raw(
		`SELECT * FROM settlements
		 WHERE gift_id = ? AND origin = ? AND status IN (?, ?)
		 ORDER BY created_at ASC, id ASC`,
		giftID,
		origin,
		domain.StatusCompleted,
		domain.StatusPendingPool,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return normalize(rows), nil
}

func (r *repo) ListByOrigin(ctx context.Context, conn *gorm.DB, giftID snowflake.ID, origin domain.Disposition) ([]domain.Settlement, error) {
	var rows []domain.Settlement
	err := conn.WithContext(ctx).Raw(
		`SELECT * FROM settlements WHERE gift_id = ? AND origin = ? ORDER BY created_at ASC, id ASC`,
		giftID,
		origin,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return normalize(rows), nil
}

func (r *repo) SumActive(ctx context.Context, conn *gorm.DB, giftID snowflake.ID) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := conn.WithContext(ctx).Raw(
		`SELECT SUM(amount) FROM settlements WHERE gift_id = ? AND status IN (?, ?)`,
		giftID,
		domain.StatusCompleted,
		domain.StatusPendingPool,
	).Row().Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return money.RoundCents(total.Decimal), nil
}

// normalize rounds amounts read back from stores without a fixed-point type.
func normalize(rows []domain.Settlement) []domain.Settlement {
	for i := range rows {
		rows[i].Amount = money.RoundCents(rows[i].Amount)
		rows[i].NetAmount = money.RoundCents(rows[i].NetAmount)
		rows[i].FeeAmount = money.RoundCents(rows[i].FeeAmount)
		rows[i].TotalCollected = money.RoundCents(rows[i].TotalCollected)
		rows[i].FinalGiftPrice = money.RoundCents(rows[i].FinalGiftPrice)
	}
	return rows
}
