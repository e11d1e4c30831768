package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	settlementdomain "github.com/smallbiznis/giftpool/internal/settlement/domain"
	"github.com/smallbiznis/giftpool/pkg/money"
)

type impactDisposition struct {
	Disposition string      `json:"disposition"`
	Amount      json.Number `json:"amount"`
	NetAmount   json.Number `json:"net_amount,omitempty"`
	CharityName string      `json:"charity_name,omitempty"`
	Dedication  string      `json:"dedication,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

type impactResponse struct {
	Title          string              `json:"title"`
	RecipientName  string              `json:"recipient_name"`
	OrganizerName  string              `json:"organizer_name"`
	TotalCollected json.Number         `json:"total_collected"`
	Dispositions   []impactDisposition `json:"dispositions"`
}

// GetImpact serves the public results page. Claim links, redeem codes and
// contributor identities are never exposed here.
func (s *Server) GetImpact(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		AbortWithError(c, ErrNotFound)
		return
	}

	ctx := c.Request.Context()
	gift, err := s.giftRepo.FindByImpactToken(ctx, s.db, token)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if gift == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	rows, err := s.settlements.List(ctx, gift.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := impactResponse{
		Title:          gift.Title,
		RecipientName:  gift.RecipientName,
		OrganizerName:  gift.OrganizerName,
		TotalCollected: money.JSON(gift.CurrentAmount),
		Dispositions:   []impactDisposition{},
	}
	// batched rows are summarized into one line per disposition
	batched := map[settlementdomain.Disposition]int{}
	sums := map[settlementdomain.Disposition]decimal.Decimal{}
	for _, row := range rows {
		if !row.Status.Active() {
			continue
		}
		if row.Disposition.Batched() {
			sums[row.Disposition] = money.Sum(sums[row.Disposition], row.Amount)
			if _, ok := batched[row.Disposition]; ok {
				continue
			}
			batched[row.Disposition] = len(resp.Dispositions)
		}
		item := impactDisposition{
			Disposition: string(row.Disposition),
			Amount:      money.JSON(row.Amount),
			CharityName: row.CharityName,
			Dedication:  row.Dedication,
			CreatedAt:   row.CreatedAt,
		}
		if !row.NetAmount.IsZero() {
			item.NetAmount = money.JSON(row.NetAmount)
		}
		resp.Dispositions = append(resp.Dispositions, item)
	}
	for d, idx := range batched {
		resp.Dispositions[idx].Amount = money.JSON(sums[d])
	}

	c.JSON(http.StatusOK, resp)
}
