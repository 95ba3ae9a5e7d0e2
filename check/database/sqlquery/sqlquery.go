// Package sqlquery waits for a database/sql target to answer a query with an
// expected result.
package sqlquery

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/alarmistdev/readiness/check"
)

// Probe runs one query against a database/sql driver.
type Probe struct {
	// Driver is the registered database/sql driver name.
	Driver string
	// DSN is handed to the driver as is and may hold secrets; it is never logged.
	DSN    string
	Query  string
	Expect Expectation
}

// Result is what a successful probe observed.
type Result struct {
	// NoResultSet is set when the statement produced no result set at all,
	// e.g. DDL or SET.
	NoResultSet bool
	Rows        []Row
}

// Run performs a single attempt on a fresh connection that is closed before
// Run returns. The statement runs outside of any transaction.
func (p Probe) Run(ctx context.Context) (Result, error) {
	db, err := sql.Open(p.Driver, p.DSN)
	if err != nil {
		return Result{}, check.ConnectFailure(fmt.Errorf("failed to open %s connection: %w", p.Driver, err))
	}
	defer db.Close()

	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		return Result{}, check.ConnectFailure(fmt.Errorf("failed to connect to %s: %w", p.Driver, err))
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, p.Query)
	if err != nil {
		return Result{}, check.QueryFailure(fmt.Errorf("failed to execute %q: %w", p.Query, err))
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, check.QueryFailure(fmt.Errorf("failed to read columns: %w", err))
	}

	if len(columns) == 0 && p.Expect.IsAny() {
		if err := rows.Close(); err != nil {
			return Result{}, check.QueryFailure(fmt.Errorf("failed to execute %q: %w", p.Query, err))
		}

		return Result{NoResultSet: true}, nil
	}

	got, err := fetchAll(rows, len(columns))
	if err != nil {
		return Result{}, check.QueryFailure(err)
	}

	if !p.Expect.Matches(got) {
		return Result{Rows: got}, check.Mismatch(&MismatchError{Want: p.Expect.Rows(), Got: got})
	}

	return Result{Rows: got}, nil
}

// Check adapts p to check.Check.
func (p Probe) Check() check.Check {
	return check.CheckFunc(func(ctx context.Context) error {
		_, err := p.Run(ctx)

		return err
	})
}

// Wait polls p until it succeeds or config.Timeout elapses. target describes
// the database in logs and errors and must not contain the password.
// When printResult is set, the received rows are logged on success.
func Wait(ctx context.Context, target string, p Probe, printResult bool, config check.Config) (Result, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("waiting for query", "target", target, "query", p.Query, "expect", p.Expect.String())

	result, err := check.PollValue(ctx, target, p.Run, config)
	if err != nil {
		return Result{}, err
	}

	if printResult {
		logger.Info("query result", "target", target, "rows", FormatRows(result.Rows), "no_result_set", result.NoResultSet)
	}

	return result, nil
}

// ObfuscatePassword returns the part of password that may be logged: its
// first character, if any.
func ObfuscatePassword(password string) string {
	for _, r := range password {
		return string(r)
	}

	return ""
}

func fetchAll(rows *sql.Rows, width int) ([]Row, error) {
	got := []Row{}

	for rows.Next() {
		values := make([]any, width)
		pointers := make([]any, width)
		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		got = append(got, normalizeRow(values))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to fetch rows: %w", err)
	}

	return got, nil
}
