// Package allocation splits a refundable pool across contributions in
// proportion to what each contributed.
package allocation

import (
	"sort"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/giftpool/pkg/money"
)

type Contribution struct {
	ID     snowflake.ID
	Amount decimal.Decimal
}

type Row struct {
	ContributionID snowflake.ID    `json:"contribution_id"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
	Share          decimal.Decimal `json:"share"`
}

type Allocation struct {
	TotalContributed  decimal.Decimal `json:"total_contributed"`
	TotalFees         decimal.Decimal `json:"total_fees"`
	NetRefundablePool decimal.Decimal `json:"net_refundable_pool"`
	Rows              []Row           `json:"rows"`
}

func (a Allocation) Empty() bool { return len(a.Rows) == 0 }

// SumShares is always equal to NetRefundablePool for a non-empty allocation.
func (a Allocation) SumShares() decimal.Decimal {
	total := decimal.Zero
	for _, r := range a.Rows {
		total = total.Add(r.Share)
	}
	return total
}

// Allocate distributes sum(amounts) - totalFees. Shares are computed in whole
// cents: each row takes the floor of its exact share, then leftover cents go
// one each to the rows with the largest fractional remainder. Ties go to the
// larger original amount, then to the earlier input position. The result sums
// to the pool exactly and no share is negative.
func Allocate(contributions []Contribution, totalFees decimal.Decimal) Allocation {
	total := totalOf(contributions)
	fees := money.RoundCents(totalFees)
	if fees.IsNegative() {
		fees = decimal.Zero
	}
	alloc := Distribute(contributions, total.Sub(fees))
	alloc.TotalFees = fees
	return alloc
}

// Distribute splits pool across contributions in proportion to their amounts.
func Distribute(contributions []Contribution, pool decimal.Decimal) Allocation {
	total := totalOf(contributions)
	net := money.RoundCents(pool)
	alloc := Allocation{
		TotalContributed:  total,
		TotalFees:         money.RoundCents(total.Sub(net)),
		NetRefundablePool: net,
	}
	if net.LessThan(money.Cent) || !total.IsPositive() {
		if net.IsNegative() {
			alloc.NetRefundablePool = decimal.Zero
		}
		return alloc
	}

	totalCents := decimal.NewFromInt(money.ToMinorUnits(total))
	netCents := money.ToMinorUnits(net)
	netCentsD := decimal.NewFromInt(netCents)

	type working struct {
		index     int
		row       Row
		cents     int64
		remainder decimal.Decimal
	}
	rows := make([]working, 0, len(contributions))
	var assigned int64
	for _, c := range contributions {
		amount := money.RoundCents(c.Amount)
		if !amount.IsPositive() {
			continue
		}
		amountCents := decimal.NewFromInt(money.ToMinorUnits(amount))
		q, r := amountCents.Mul(netCentsD).QuoRem(totalCents, 0)
		cents := q.IntPart()
		assigned += cents
		rows = append(rows, working{
			index:     len(rows),
			row:       Row{ContributionID: c.ID, OriginalAmount: amount},
			cents:     cents,
			remainder: r,
		})
	}

	leftover := netCents - assigned
	if leftover > 0 {
		order := make([]int, len(rows))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			ra, rb := rows[order[a]], rows[order[b]]
			if cmp := ra.remainder.Cmp(rb.remainder); cmp != 0 {
				return cmp > 0
			}
			if cmp := ra.row.OriginalAmount.Cmp(rb.row.OriginalAmount); cmp != 0 {
				return cmp > 0
			}
			return ra.index < rb.index
		})
		for i := int64(0); i < leftover; i++ {
			rows[order[int(i)%len(order)]].cents++
		}
	}

	alloc.Rows = make([]Row, len(rows))
	var sum int64
	largest := 0
	for i, w := range rows {
		w.row.Share = money.FromMinorUnits(w.cents)
		alloc.Rows[i] = w.row
		sum += w.cents
		if w.row.OriginalAmount.GreaterThan(alloc.Rows[largest].OriginalAmount) {
			largest = i
		}
	}
	// Corrective step; a no-op unless inputs changed between passes.
	if diff := netCents - sum; diff != 0 && len(alloc.Rows) > 0 {
		adjusted := alloc.Rows[largest].Share.Add(money.FromMinorUnits(diff))
		if !adjusted.IsNegative() {
			alloc.Rows[largest].Share = adjusted
		}
	}
	return alloc
}

func totalOf(contributions []Contribution) decimal.Decimal {
	total := decimal.Zero
	for _, c := range contributions {
		amount := money.RoundCents(c.Amount)
		if amount.IsPositive() {
			total = total.Add(amount)
		}
	}
	return total
}
