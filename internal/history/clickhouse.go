package history

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseSink sends events to ClickHouse using the official Go client.
type ClickHouseSink struct {
	conn  driver.Conn
	table string
}

// NewClickHouseSink connects to addr (host:port) and appends events to table.
func NewClickHouseSink(addr, database, username, password, table string) (*ClickHouseSink, error) {
	if database == "" {
		database = "default"
	}
	if table == "" {
		table = "process_history"
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	return &ClickHouseSink{conn: conn, table: table}, nil
}

func (s *ClickHouseSink) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		type String,
		occurred_at DateTime64(3),
		project_dir String,
		process_name String,
		pid Int64,
		exit_error String
	) ENGINE = MergeTree ORDER BY (project_dir, process_name, occurred_at)`, s.table)
	return s.conn.Exec(ctx, ddl)
}

func (s *ClickHouseSink) Send(ctx context.Context, e Event) error {
	q := fmt.Sprintf(`INSERT INTO %s (type, occurred_at, project_dir, process_name, pid, exit_error) VALUES (?, ?, ?, ?, ?, ?)`, s.table)
	if err := s.conn.Exec(ctx, q,
		string(e.Type), e.OccurredAt, e.ProjectDir, e.Process, int64(e.PID), e.ExitError); err != nil {
		return fmt.Errorf("failed to insert event into ClickHouse: %w", err)
	}
	return nil
}

func (s *ClickHouseSink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
