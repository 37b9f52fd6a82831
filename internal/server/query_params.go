package server

import (
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/estatebill/internal/billingperiod"
)

func parseSnowflakeID(value string) (snowflake.ID, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid_snowflake_id")
	}
	return parsed, nil
}

// parseOptionalPeriod returns the zero period for an empty value.
func parseOptionalPeriod(value string) (billingperiod.Period, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return billingperiod.Period{}, nil
	}
	return billingperiod.Parse(trimmed)
}
