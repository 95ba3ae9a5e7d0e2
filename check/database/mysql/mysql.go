package mysql

import (
	"context"

	"github.com/alarmistdev/readiness/check"
	"github.com/alarmistdev/readiness/check/database/sqlquery"
	"github.com/go-sql-driver/mysql"
)

const driverName = "mysql"

// Check creates a single-attempt probe running query against the server
// described by cfg.
func Check(cfg *mysql.Config, query string, expect sqlquery.Expectation) check.Check {
	return newProbe(driverName, cfg, query, expect).Check()
}

// Wait blocks until query returns a result matching expect or config.Timeout
// elapses. When cfg.Timeout is unset, config.AttemptTimeout bounds the dial.
func Wait(
	ctx context.Context,
	cfg *mysql.Config,
	query string,
	expect sqlquery.Expectation,
	config check.Config,
) (sqlquery.Result, error) {
	if cfg.Timeout == 0 {
		cfg = cfg.Clone()
		cfg.Timeout = config.AttemptTimeout
	}

	return sqlquery.Wait(ctx, Target(cfg), newProbe(driverName, cfg, query, expect), false, config)
}

// Target describes cfg for logs and errors. Only the first character of the
// password is shown.
func Target(cfg *mysql.Config) string {
	masked := cfg.Clone()
	if masked.Passwd != "" {
		masked.Passwd = sqlquery.ObfuscatePassword(cfg.Passwd) + "..."
	}

	return "mysql " + masked.FormatDSN()
}

func newProbe(driver string, cfg *mysql.Config, query string, expect sqlquery.Expectation) sqlquery.Probe {
	return sqlquery.Probe{
		Driver: driver,
		DSN:    cfg.FormatDSN(),
		Query:  query,
		Expect: expect,
	}
}
