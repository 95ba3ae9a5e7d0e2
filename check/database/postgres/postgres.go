package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/alarmistdev/readiness/check"
	"github.com/alarmistdev/readiness/check/database/sqlquery"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	_ "github.com/lib/pq"              // register postgres driver
)

const (
	// DriverPQ selects github.com/lib/pq.
	DriverPQ = "postgres"
	// DriverPGX selects github.com/jackc/pgx/v5/stdlib.
	DriverPGX = "pgx"

	defaultSSLMode        = "disable"
	defaultConnectTimeout = time.Second
)

// ConnParams identifies a Postgres-compatible endpoint.
type ConnParams struct {
	Host     string
	Port     int
	DBName   string
	User     string
	Password string
	// SSLMode defaults to "disable".
	SSLMode string
	// ConnectTimeout bounds connection establishment of a single attempt.
	// It is rounded up to whole seconds and defaults to one second.
	ConnectTimeout time.Duration
}

// ConnInfo returns the keyword/value connection string understood by both
// drivers. It contains the password.
func (p ConnParams) ConnInfo() string {
	pairs := p.pairs(quote(p.Password))
	pairs = append(pairs,
		"sslmode="+quote(p.sslMode()),
		"connect_timeout="+strconv.Itoa(connectTimeoutSeconds(p.ConnectTimeout)),
	)

	return strings.Join(pairs, " ")
}

// String describes p for logs. Only the first character of the password is
// shown.
func (p ConnParams) String() string {
	return p.describe(false)
}

func (p ConnParams) describe(redact bool) string {
	masked := ""
	if !redact {
		masked = sqlquery.ObfuscatePassword(p.Password)
	}

	return strings.Join(p.pairs(fmt.Sprintf("'%s...'", masked)), " ")
}

func (p ConnParams) pairs(password string) []string {
	return []string{
		"dbname=" + quote(p.DBName),
		"host=" + quote(p.Host),
		"port=" + strconv.Itoa(p.Port),
		"user=" + quote(p.User),
		"password=" + password,
	}
}

func (p ConnParams) sslMode() string {
	if p.SSLMode == "" {
		return defaultSSLMode
	}

	return p.SSLMode
}

type options struct {
	driver      string
	printResult bool
	redact      bool
	logger      *slog.Logger
}

// Option configures a Postgres readiness check.
type Option func(*options)

// WithDriver selects the database/sql driver, DriverPQ by default.
func WithDriver(driver string) Option {
	return func(o *options) {
		o.driver = driver
	}
}

// WithPrintResult logs the rows returned by the successful attempt.
func WithPrintResult(enabled bool) Option {
	return func(o *options) {
		o.printResult = enabled
	}
}

// WithRedactedPassword hides the password entirely in logs and errors,
// including its first character.
func WithRedactedPassword() Option {
	return func(o *options) {
		o.redact = true
	}
}

// WithLogger sets the logger Check prints results to, slog.Default() by
// default. Wait logs to config.Logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func newOptions(opts []Option) options {
	o := options{driver: DriverPQ, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// Check creates a single-attempt probe running query against params.
func Check(params ConnParams, query string, expect sqlquery.Expectation, opts ...Option) check.Check {
	o := newOptions(opts)
	p := probe(params, query, expect, o)

	if !o.printResult {
		return p.Check()
	}

	target := Target(params, o.redact)

	return check.CheckFunc(func(ctx context.Context) error {
		result, err := p.Run(ctx)
		if err != nil {
			return err
		}

		o.logger.InfoContext(ctx, "query result",
			"target", target, "rows", sqlquery.FormatRows(result.Rows), "no_result_set", result.NoResultSet)

		return nil
	})
}

// Wait blocks until query returns a result matching expect or config.Timeout
// elapses. Every attempt uses a new connection in autocommit mode.
func Wait(
	ctx context.Context,
	params ConnParams,
	query string,
	expect sqlquery.Expectation,
	config check.Config,
	opts ...Option,
) (sqlquery.Result, error) {
	o := newOptions(opts)

	return sqlquery.Wait(ctx, Target(params, o.redact), probe(params, query, expect, o), o.printResult, config)
}

// Target describes params for logs and errors with the password masked.
func Target(params ConnParams, redact bool) string {
	return "postgres " + params.describe(redact)
}

func probe(params ConnParams, query string, expect sqlquery.Expectation, o options) sqlquery.Probe {
	return sqlquery.Probe{
		Driver: o.driver,
		DSN:    params.ConnInfo(),
		Query:  query,
		Expect: expect,
	}
}

func connectTimeoutSeconds(d time.Duration) int {
	if d <= 0 {
		d = defaultConnectTimeout
	}

	return int(math.Ceil(d.Seconds()))
}

// quote escapes a conninfo value, quoting it when it is empty or contains
// spaces, quotes or backslashes.
func quote(value string) string {
	if value != "" && !strings.ContainsAny(value, ` '\`) {
		return value
	}

	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `'`, `\'`)

	return "'" + value + "'"
}
