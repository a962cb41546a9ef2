package config

import (
	"fmt"
	"os"
	"strconv"
)

// applyEnvOverrides overwrites fields whose HEAT_* variable is set.
func applyEnvOverrides(c *Root) error {
	o := &overrides{}

	o.str(&c.Log.Level, "HEAT_LOG_LEVEL")
	o.str(&c.Log.Format, "HEAT_LOG_FORMAT")
	o.str(&c.Metrics.Addr, "HEAT_METRICS_ADDR")

	o.integer(&c.Heat.Thresholds.HighConviction, "HEAT_HIGH_CONVICTION_THRESHOLD")
	o.integer(&c.Heat.Thresholds.Alert, "HEAT_ALERT_THRESHOLD")
	o.integer(&c.Heat.Thresholds.Watchlist, "HEAT_WATCHLIST_THRESHOLD")

	o.float(&c.Paper.PositionNotional, "HEAT_POSITION_NOTIONAL")
	o.float(&c.Paper.MaxDailyLoss, "HEAT_MAX_DAILY_LOSS")
	o.integer(&c.Paper.MaxConsecutiveLosses, "HEAT_MAX_CONSECUTIVE_LOSSES")
	o.str(&c.Paper.Timezone, "HEAT_TIMEZONE")
	o.str(&c.Paper.RiskLogDir, "HEAT_RISK_LOG_DIR")
	o.float(&c.Options.RiskFreeRate, "HEAT_RISK_FREE_RATE")

	o.str(&c.Store.Backend, "HEAT_STORE_BACKEND")
	o.str(&c.Store.Path, "HEAT_STORE_PATH")
	o.str(&c.Store.Redis.Addr, "HEAT_REDIS_ADDR")
	o.str(&c.Store.Redis.Password, "HEAT_REDIS_PASSWORD")
	o.integer(&c.Store.Redis.DB, "HEAT_REDIS_DB")
	o.str(&c.Store.Redis.Prefix, "HEAT_REDIS_PREFIX")

	o.boolean(&c.Outbox.Enabled, "HEAT_OUTBOX_ENABLED")
	o.str(&c.Outbox.Path, "HEAT_OUTBOX_PATH")
	o.boolean(&c.Notify.Enabled, "HEAT_NOTIFY_ENABLED")

	return o.err
}

// overrides keeps the first parse error so a typo in the environment is
// reported instead of silently ignored.
type overrides struct {
	err error
}

func (o *overrides) str(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (o *overrides) integer(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		o.fail(key, err)
		return
	}
	*dst = n
}

func (o *overrides) float(dst *float64, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		o.fail(key, err)
		return
	}
	*dst = f
}

func (o *overrides) boolean(dst *bool, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		o.fail(key, err)
		return
	}
	*dst = b
}

func (o *overrides) fail(key string, err error) {
	if o.err == nil {
		o.err = fmt.Errorf("env %s: %w", key, err)
	}
}
