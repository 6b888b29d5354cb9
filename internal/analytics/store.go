// Package analytics aggregates competitor projects for dashboard charts in an
// in-memory DuckDB database.
package analytics

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/marcboeker/go-duckdb"

	"github.com/project-optimizer/console/internal/models"
)

// Star bucket labels, in display order.
var StarBuckets = []string{"<100", "100-1k", "1k-10k", "10k+"}

// MaxLanguages bounds the language distribution; the rest fold into "other".
const MaxLanguages = 8

// Bucket is one labelled count of a distribution.
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Aggregates are the project distributions charted on the dashboard.
type Aggregates struct {
	Total     int      `json:"total"`
	Active    int      `json:"active"` // updated within six months
	Stale     int      `json:"stale"`
	AvgStars  float64  `json:"avgStars"`
	Languages []Bucket `json:"languages"`
	Stars     []Bucket `json:"stars"`
}

// Options configures the DuckDB instance.
type Options struct {
	Threads     int
	MemoryLimit string
}

// ProjectStore loads project batches into DuckDB and queries aggregates.
// Each Aggregate call works on its own batch so concurrent renders never
// see each other's rows.
type ProjectStore struct {
	db     *sql.DB
	logger *slog.Logger

	// Limits concurrent aggregations
	querySem chan struct{}
}

// NewProjectStore opens an in-memory DuckDB database.
func NewProjectStore(opts Options, logger *slog.Logger) (*ProjectStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "analytics")

	if opts.Threads <= 0 {
		opts.Threads = 2
	}
	if opts.MemoryLimit == "" {
		opts.MemoryLimit = "256MB"
	}

	connector, err := duckdb.NewConnector("", func(execer driver.ExecerContext) error {
		pragmas := []string{
			fmt.Sprintf("PRAGMA memory_limit='%s'", opts.MemoryLimit),
			fmt.Sprintf("PRAGMA threads=%d", opts.Threads),
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return fmt.Errorf("%s: %w", pragma, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)

	_, err = db.Exec(`
		CREATE TABLE projects (
			batch      VARCHAR NOT NULL,
			name       VARCHAR NOT NULL,
			language   VARCHAR NOT NULL,
			stars      BIGINT NOT NULL,
			forks      BIGINT NOT NULL,
			updated_at TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	logger.Debug("project store ready", "threads", opts.Threads, "memory_limit", opts.MemoryLimit)
	return &ProjectStore{
		db:       db,
		logger:   logger,
		querySem: make(chan struct{}, 4),
	}, nil
}

// Close releases the database.
func (s *ProjectStore) Close() error {
	return s.db.Close()
}

// Aggregate computes the chart distributions for projects. Projects without
// a last-updated time count as stale.
func (s *ProjectStore) Aggregate(ctx context.Context, projects []models.Project, now time.Time) (*Aggregates, error) {
	select {
	case s.querySem <- struct{}{}:
		defer func() { <-s.querySem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	batch := uuid.New().String()
	if err := s.load(ctx, batch, projects); err != nil {
		return nil, err
	}
	defer func() {
		if _, err := s.db.ExecContext(context.Background(), "DELETE FROM projects WHERE batch = ?", batch); err != nil {
			s.logger.Warn("failed to drop project batch", "batch", batch, "error", err)
		}
	}()

	agg := &Aggregates{}
	cutoff := now.AddDate(0, -6, 0)

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE updated_at >= ?),
		       COALESCE(AVG(stars), 0)
		FROM projects WHERE batch = ?`, cutoff, batch).Scan(&agg.Total, &agg.Active, &agg.AvgStars)
	if err != nil {
		return nil, fmt.Errorf("querying totals: %w", err)
	}
	agg.Stale = agg.Total - agg.Active

	if agg.Languages, err = s.languages(ctx, batch); err != nil {
		return nil, err
	}
	if agg.Stars, err = s.starBuckets(ctx, batch); err != nil {
		return nil, err
	}

	return agg, nil
}

// load appends projects using the native Appender API.
func (s *ProjectStore) load(ctx context.Context, batch string, projects []models.Project) error {
	if len(projects) == 0 {
		return nil
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", "projects")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		for i, p := range projects {
			var updated driver.Value
			if p.UpdatedAt != nil {
				updated = p.UpdatedAt.UTC()
			}
			err := appender.AppendRow(batch, p.Name, p.LanguageOrUnknown(), int64(p.Stars), int64(p.Forks), updated)
			if err != nil {
				return fmt.Errorf("failed to append row %d: %w", i, err)
			}
		}
		return appender.Flush()
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}
	return nil
}

func (s *ProjectStore) languages(ctx context.Context, batch string) ([]Bucket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT language, COUNT(*) AS n
		FROM projects WHERE batch = ?
		GROUP BY language
		ORDER BY n DESC, language ASC`, batch)
	if err != nil {
		return nil, fmt.Errorf("querying languages: %w", err)
	}
	defer rows.Close()

	var out []Bucket
	other := 0
	for rows.Next() {
		var b Bucket
		if err := rows.Scan(&b.Label, &b.Count); err != nil {
			return nil, fmt.Errorf("scanning language row: %w", err)
		}
		if len(out) < MaxLanguages {
			out = append(out, b)
		} else {
			other += b.Count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating languages: %w", err)
	}
	if other > 0 {
		out = append(out, Bucket{Label: "other", Count: other})
	}
	return out, nil
}

func (s *ProjectStore) starBuckets(ctx context.Context, batch string) ([]Bucket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT CASE
		         WHEN stars < 100 THEN '<100'
		         WHEN stars < 1000 THEN '100-1k'
		         WHEN stars < 10000 THEN '1k-10k'
		         ELSE '10k+'
		       END AS bucket,
		       COUNT(*)
		FROM projects WHERE batch = ?
		GROUP BY bucket`, batch)
	if err != nil {
		return nil, fmt.Errorf("querying star buckets: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int, len(StarBuckets))
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, fmt.Errorf("scanning star bucket: %w", err)
		}
		counts[label] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating star buckets: %w", err)
	}

	out := make([]Bucket, 0, len(StarBuckets))
	for _, label := range StarBuckets {
		out = append(out, Bucket{Label: label, Count: counts[label]})
	}
	return out, nil
}
