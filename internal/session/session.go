package session

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Row is one (id, value) pair of a verification query.
type Row struct {
	ID    int64
	Value int64
}

// Session is a persistent, stateful connection to the backend.
type Session interface {
	// Ordinal is the 1-based index scripts address with T<k>.
	Ordinal() int

	// Exec runs a statement and returns the rows affected, or -1 when the
	// driver cannot report it. Backend errors are returned unwrapped.
	Exec(ctx context.Context, stmt string) (int64, error)

	// Query runs a statement and projects every row onto its "id" and
	// "value" columns. Backend errors are returned unwrapped.
	Query(ctx context.Context, stmt string) ([]Row, error)

	// Close releases the connection.
	Close() error
}

// Conn is a Session backed by a pinned database/sql connection.
type Conn struct {
	ordinal int
	conn    *sql.Conn
	logger  *slog.Logger
}

// NewConn wraps conn as the session with the given 1-based ordinal.
// If logger is nil, a discard logger is used.
func NewConn(ordinal int, conn *sql.Conn, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Conn{
		ordinal: ordinal,
		conn:    conn,
		logger:  logger.With(slog.Int("session", ordinal)),
	}
}

// Ordinal implements Session.
func (c *Conn) Ordinal() int {
	return c.ordinal
}

// Exec implements Session.
func (c *Conn) Exec(ctx context.Context, stmt string) (int64, error) {
	c.logger.Debug("exec", slog.String("sql", stmt))

	res, err := c.conn.ExecContext(ctx, stmt)
	if err != nil {
		c.logger.Debug("exec failed", slog.String("error", err.Error()))
		return 0, err
	}

	// Multi-statement strings and DDL often have no meaningful count.
	n, err := res.RowsAffected()
	if err != nil {
		return -1, nil
	}
	return n, nil
}

// Query implements Session.
func (c *Conn) Query(ctx context.Context, stmt string) ([]Row, error) {
	c.logger.Debug("query", slog.String("sql", stmt))

	rows, err := c.conn.QueryContext(ctx, stmt)
	if err != nil {
		c.logger.Debug("query failed", slog.String("error", err.Error()))
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("get columns: %w", err)
	}
	idIdx, valueIdx := -1, -1
	for i, col := range columns {
		switch strings.ToLower(col) {
		case "id":
			idIdx = i
		case "value":
			valueIdx = i
		}
	}
	if idIdx < 0 || valueIdx < 0 {
		return nil, fmt.Errorf("result columns %v: need both id and value", columns)
	}

	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	var result []Row
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		id, err := toInt64(values[idIdx])
		if err != nil {
			return nil, fmt.Errorf("column id: %w", err)
		}
		value, err := toInt64(values[valueIdx])
		if err != nil {
			return nil, fmt.Errorf("column value: %w", err)
		}
		result = append(result, Row{ID: id, Value: value})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Close implements Session.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// toInt64 normalises the integer representations drivers hand back.
// MySQL's text protocol returns []byte, most others int64.
func toInt64(v any) (int64, error) {
	switch val := v.(type) {
	case nil:
		return 0, fmt.Errorf("unexpected NULL")
	case int64:
		return val, nil
	case int32:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case int:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case uint64:
		return int64(val), nil
	case float64:
		if val != float64(int64(val)) {
			return 0, fmt.Errorf("non-integer %v", val)
		}
		return int64(val), nil
	case []byte:
		return strconv.ParseInt(string(val), 10, 64)
	case string:
		return strconv.ParseInt(val, 10, 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

// ToMap projects rows into an id => value mapping. Duplicate ids overwrite,
// last row wins.
func ToMap(rows []Row) map[int64]int64 {
	m := make(map[int64]int64, len(rows))
	for _, r := range rows {
		m[r.ID] = r.Value
	}
	return m
}
