// Package sqltest provides an in-memory database/sql driver with scripted
// responses for testing query probes without a database.
package sqltest

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// DriverName is the name the fake driver is registered under.
const DriverName = "sqltest"

var (
	register sync.Once
	servers  sync.Map
	nextID   atomic.Int64
)

// Response scripts the outcome of one attempt.
type Response struct {
	// ConnectErr fails the connection before the query is run.
	ConnectErr error
	// QueryErr fails the query.
	QueryErr error
	// Columns of the result set. Leave empty for statements without one.
	Columns []string
	Rows    [][]driver.Value
}

// Server hands out Responses in order, repeating the last one.
type Server struct {
	dsn       string
	mu        sync.Mutex
	responses []Response
	next      int
	queries   []string
	dsns      []string
	open      int
	opened    int
}

// New registers a server for the lifetime of t.
func New(t testing.TB, responses ...Response) *Server {
	t.Helper()

	register.Do(func() {
		sql.Register(DriverName, fakeDriver{})
	})

	if len(responses) == 0 {
		responses = []Response{{}}
	}

	s := &Server{
		dsn:       fmt.Sprintf("sqltest_%d_", nextID.Add(1)),
		responses: responses,
	}
	servers.Store(s.dsn, s)
	t.Cleanup(func() { servers.Delete(s.dsn) })

	return s
}

// DSN identifies the server to the driver. The driver looks for it anywhere
// in the connection string, so it can be embedded in a host name or URL.
func (s *Server) DSN() string {
	return s.dsn
}

// Queries returns every query received so far.
func (s *Server) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.queries...)
}

// DSNs returns every full connection string received so far.
func (s *Server) DSNs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.dsns...)
}

// Opened returns the number of connections opened so far.
func (s *Server) Opened() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.opened
}

// Open returns the number of connections currently open.
func (s *Server) Open() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.open
}

func (s *Server) connect(dsn string) (*fakeConn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dsns = append(s.dsns, dsn)
	response := s.responses[min(s.next, len(s.responses)-1)]
	if response.ConnectErr != nil {
		s.next++

		return nil, response.ConnectErr
	}

	s.open++
	s.opened++

	return &fakeConn{server: s}, nil
}

func (s *Server) query(query string) (driver.Rows, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries = append(s.queries, query)
	response := s.responses[min(s.next, len(s.responses)-1)]
	s.next++

	if response.QueryErr != nil {
		return nil, response.QueryErr
	}

	return &fakeRows{columns: response.Columns, rows: response.Rows}, nil
}

func (s *Server) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.open--
}

type fakeDriver struct{}

func (fakeDriver) Open(dsn string) (driver.Conn, error) {
	var server *Server
	servers.Range(func(key, value any) bool {
		if strings.Contains(dsn, key.(string)) {
			server = value.(*Server)

			return false
		}

		return true
	})

	if server == nil {
		return nil, fmt.Errorf("sqltest: no server in %q", dsn)
	}

	return server.connect(dsn)
}

type fakeConn struct {
	server *Server
	closed bool
}

func (c *fakeConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("sqltest: prepared statements are not supported")
}

func (c *fakeConn) Close() error {
	if !c.closed {
		c.closed = true
		c.server.release()
	}

	return nil
}

func (c *fakeConn) Begin() (driver.Tx, error) {
	return nil, errors.New("sqltest: transactions are not supported")
}

func (c *fakeConn) QueryContext(ctx context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return c.server.query(query)
}

type fakeRows struct {
	columns []string
	rows    [][]driver.Value
	pos     int
}

func (r *fakeRows) Columns() []string {
	return r.columns
}

func (r *fakeRows) Close() error {
	return nil
}

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.rows) {
		return io.EOF
	}

	copy(dest, r.rows[r.pos])
	r.pos++

	return nil
}
