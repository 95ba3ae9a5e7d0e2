// Package targets turns configured dependencies into readiness targets.
package targets

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/alarmistdev/readiness"
	"github.com/alarmistdev/readiness/check"
	"github.com/alarmistdev/readiness/check/database/mysql"
	"github.com/alarmistdev/readiness/check/database/postgres"
	"github.com/alarmistdev/readiness/check/database/redis"
	"github.com/alarmistdev/readiness/check/database/sqlquery"
	httpcheck "github.com/alarmistdev/readiness/check/network/http"
	"github.com/alarmistdev/readiness/check/network/tcp"
	"github.com/alarmistdev/readiness/check/queue/kafka"
	"github.com/alarmistdev/readiness/check/queue/nats"
	"github.com/alarmistdev/readiness/check/queue/rabbitmq"
	"github.com/alarmistdev/readiness/check/system/docker"
	"github.com/alarmistdev/readiness/internal/config"
	mysqldriver "github.com/go-sql-driver/mysql"
)

const defaultQuery = "SELECT 1"

// Register adds every target to w.
func Register(w *readiness.Waiter, targets []config.TargetConfig, cfg check.Config) error {
	for i, target := range targets {
		name, c, err := Build(target, cfg)
		if err != nil {
			return fmt.Errorf("targets[%d]: %w", i, err)
		}

		w.WithTarget(name, c, options(target)...)
	}

	return nil
}

// Build creates the check for target. The returned name is target.Name, or a
// description of the endpoint without secrets when the name is empty.
func Build(target config.TargetConfig, cfg check.Config) (string, check.Check, error) {
	switch target.Kind {
	case "tcp":
		return buildTCP(target, cfg)
	case "postgres":
		return buildPostgres(target, cfg)
	case "mysql":
		return buildMySQL(target, cfg)
	case "http", "graphql":
		return buildHTTP(target, cfg)
	case "redis":
		if target.Addr == "" {
			return "", nil, errors.New("redis: addr is required")
		}

		return nameOr(target, "redis "+target.Addr), redis.CheckWithAuth(target.Addr, target.Username, target.Password, cfg), nil
	case "nats":
		if target.URL == "" {
			return "", nil, errors.New("nats: url is required")
		}

		return nameOr(target, "nats"), nats.Check(target.URL, cfg), nil
	case "rabbitmq":
		if target.URL == "" {
			return "", nil, errors.New("rabbitmq: url is required")
		}

		return nameOr(target, "rabbitmq"), rabbitmq.Check(target.URL, cfg), nil
	case "kafka":
		if len(target.Brokers) == 0 {
			return "", nil, errors.New("kafka: brokers are required")
		}

		return nameOr(target, "kafka "+strings.Join(target.Brokers, ",")), kafka.Check(target.Brokers, cfg, target.Topics...), nil
	case "docker":
		c, err := docker.Check(target.Labels)
		if err != nil {
			return "", nil, err
		}

		return nameOr(target, "docker"), c, nil
	case "all", "any", "quorum":
		return buildComposite(target, cfg)
	default:
		return "", nil, fmt.Errorf("unknown kind %q", target.Kind)
	}
}

// ParseExpectation converts a configured expect value: empty or "any" accepts
// any result, a list of rows (each a list of values) requires exactly those
// rows in order.
func ParseExpectation(value any) (sqlquery.Expectation, error) {
	switch v := value.(type) {
	case nil:
		return sqlquery.AnyRows(), nil
	case string:
		if strings.EqualFold(v, "any") {
			return sqlquery.AnyRows(), nil
		}

		return sqlquery.Expectation{}, fmt.Errorf("expect must be \"any\" or a list of rows, got %q", v)
	case []any:
		rows := make([]sqlquery.Row, 0, len(v))
		for i, item := range v {
			values, ok := item.([]any)
			if !ok {
				return sqlquery.Expectation{}, fmt.Errorf("expect[%d]: row must be a list, got %T", i, item)
			}
			rows = append(rows, sqlquery.Row(values))
		}

		return sqlquery.ExactRows(rows...), nil
	default:
		return sqlquery.Expectation{}, fmt.Errorf("expect must be \"any\" or a list of rows, got %T", value)
	}
}

func buildTCP(target config.TargetConfig, cfg check.Config) (string, check.Check, error) {
	if target.Host == "" || target.Port == 0 {
		return "", nil, errors.New("tcp: host and port are required")
	}

	c := tcp.Check(target.Host, target.Port)
	if cfg.Tick > 0 {
		c = check.WithTimeout(c, cfg.Tick/2)
	}

	return nameOr(target, tcp.Target(target.Host, target.Port, target.Label)), c, nil
}

func buildPostgres(target config.TargetConfig, cfg check.Config) (string, check.Check, error) {
	if target.Host == "" || target.Port == 0 {
		return "", nil, errors.New("postgres: host and port are required")
	}

	expect, err := ParseExpectation(target.Expect)
	if err != nil {
		return "", nil, fmt.Errorf("postgres: %w", err)
	}

	params := postgres.ConnParams{
		Host:           target.Host,
		Port:           target.Port,
		DBName:         target.DBName,
		User:           target.User,
		Password:       target.Password,
		SSLMode:        target.SSLMode,
		ConnectTimeout: cfg.AttemptTimeout,
	}

	opts := []postgres.Option{
		postgres.WithDriver(postgresDriver(target.Driver)),
		postgres.WithPrintResult(target.PrintResult),
	}
	if target.RedactPassword {
		opts = append(opts, postgres.WithRedactedPassword())
	}
	if cfg.Logger != nil {
		opts = append(opts, postgres.WithLogger(cfg.Logger))
	}

	name := nameOr(target, postgres.Target(params, target.RedactPassword))

	return name, postgres.Check(params, queryOrDefault(target.Query), expect, opts...), nil
}

func buildMySQL(target config.TargetConfig, cfg check.Config) (string, check.Check, error) {
	expect, err := ParseExpectation(target.Expect)
	if err != nil {
		return "", nil, fmt.Errorf("mysql: %w", err)
	}

	var driverConfig *mysqldriver.Config
	switch {
	case target.DSN != "":
		driverConfig, err = mysqldriver.ParseDSN(target.DSN)
		if err != nil {
			return "", nil, fmt.Errorf("mysql: failed to parse dsn: %w", err)
		}
	case target.Host == "" || target.Port == 0:
		return "", nil, errors.New("mysql: dsn or host and port are required")
	default:
		driverConfig = mysqldriver.NewConfig()
		driverConfig.Net = "tcp"
		driverConfig.Addr = net.JoinHostPort(target.Host, strconv.Itoa(target.Port))
		driverConfig.User = target.User
		driverConfig.Passwd = target.Password
		driverConfig.DBName = target.DBName
	}
	if driverConfig.Timeout == 0 {
		driverConfig.Timeout = cfg.AttemptTimeout
	}

	return nameOr(target, mysql.Target(driverConfig)), mysql.Check(driverConfig, queryOrDefault(target.Query), expect), nil
}

func buildHTTP(target config.TargetConfig, cfg check.Config) (string, check.Check, error) {
	if target.URL == "" {
		return "", nil, fmt.Errorf("%s: url is required", target.Kind)
	}

	status := target.Status
	if status == 0 {
		status = http.StatusOK
	}

	if target.Kind == "graphql" {
		method := target.Method
		if method == "" {
			method = http.MethodPost
		}

		return nameOr(target, "graphql "+target.URL), httpcheck.CheckGraphQL(method, target.URL, status, cfg), nil
	}

	method := target.Method
	if method == "" {
		method = http.MethodGet
	}

	return nameOr(target, "http "+target.URL), httpcheck.Check(method, target.URL, status, cfg), nil
}

// buildComposite combines nested checks into one target. "all" needs every
// check to pass, "any" needs one, "quorum" needs Min. Each attempt probes
// every child.
func buildComposite(target config.TargetConfig, cfg check.Config) (string, check.Check, error) {
	if len(target.Checks) == 0 {
		return "", nil, fmt.Errorf("%s: checks are required", target.Kind)
	}

	names := make([]string, 0, len(target.Checks))
	checks := make([]check.Check, 0, len(target.Checks))
	for i, child := range target.Checks {
		name, c, err := Build(child, cfg)
		if err != nil {
			return "", nil, fmt.Errorf("%s.checks[%d]: %w", target.Kind, i, err)
		}
		names = append(names, name)
		checks = append(checks, c)
	}

	name := nameOr(target, fmt.Sprintf("%s(%s)", target.Kind, strings.Join(names, ", ")))

	switch target.Kind {
	case "all":
		return name, check.All(checks...), nil
	case "any":
		return name, check.Any(checks...), nil
	default:
		if target.Min <= 0 || target.Min > len(checks) {
			return "", nil, fmt.Errorf("quorum: min %d out of range for %d checks", target.Min, len(checks))
		}

		return name, check.WithThreshold(target.Min, checks...), nil
	}
}

func options(target config.TargetConfig) []readiness.TargetOption {
	var opts []readiness.TargetOption

	if target.Importance == string(readiness.TargetImportanceLow) {
		opts = append(opts, readiness.WithImportance(readiness.TargetImportanceLow))
	}
	if target.Group != "" {
		opts = append(opts, readiness.WithGroup(target.Group))
	}
	if target.Timeout > 0 {
		opts = append(opts, readiness.WithTimeout(target.Timeout))
	}

	return opts
}

// postgresDriver accepts "pq" and "pgx" as well as registered driver names.
func postgresDriver(driver string) string {
	switch driver {
	case "", "pq":
		return postgres.DriverPQ
	default:
		return driver
	}
}

func nameOr(target config.TargetConfig, fallback string) string {
	if target.Name != "" {
		return target.Name
	}

	return fallback
}

func queryOrDefault(query string) string {
	if query == "" {
		return defaultQuery
	}

	return query
}
