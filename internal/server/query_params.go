package server

import (
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/giftpool/pkg/money"
)

var errInvalidSnowflakeID = errors.New("invalid_snowflake_id")

func parseSnowflakeID(value string) (snowflake.ID, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || parsed == 0 {
		return 0, errInvalidSnowflakeID
	}
	return parsed, nil
}

func parseOptionalDecimal(value string) (*decimal.Decimal, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := money.Parse(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
