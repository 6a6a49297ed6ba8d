package dojo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// MySQL driver for direct DefectDojo database access.
	_ "github.com/go-sql-driver/mysql"
)

// SQLSource reads findings straight from a DefectDojo MySQL database. Air-
// gapped deployments often expose the database replica but not the API, and
// a direct query also sidesteps REST pagination on large instances.
type SQLSource struct {
	db        *sql.DB
	productID int
}

// OpenSQLSource connects to the DefectDojo database at dsn. productID of
// zero means no product filter.
func OpenSQLSource(dsn string, productID int) (*SQLSource, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("dojo: open database: %w", err)
	}
	db.SetMaxOpenConns(4)
	return &SQLSource{db: db, productID: productID}, nil
}

// Close releases the database connection pool.
func (s *SQLSource) Close() error { return s.db.Close() }

// ListOpen returns open, non-duplicate, unmitigated findings matching the
// given severities, mirroring Client.ListOpen.
func (s *SQLSource) ListOpen(ctx context.Context, severities []string) ([]Finding, error) {
	if len(severities) == 0 {
		severities = []string{SeverityCritical, SeverityHigh}
	}

	placeholders := strings.TrimRight(strings.Repeat("?,", len(severities)), ",")
	query := fmt.Sprintf(`SELECT f.id, f.title, f.severity,
		COALESCE(f.component_name, ''), COALESCE(f.component_version, ''),
		COALESCE(f.file_path, ''), f.verified
	FROM dojo_finding f
	JOIN dojo_test t ON t.id = f.test_id
	JOIN dojo_engagement e ON e.id = t.engagement_id
	WHERE f.active = 1 AND f.duplicate = 0 AND f.is_mitigated = 0
	  AND f.severity IN (%s)`, placeholders)

	args := make([]any, 0, len(severities)+1)
	for _, sev := range severities {
		args = append(args, sev)
	}
	if s.productID > 0 {
		query += " AND e.product_id = ?"
		args = append(args, s.productID)
	}
	query += " ORDER BY f.id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("dojo: query findings: %w", err)
	}
	defer rows.Close()

	var findings []Finding
	for rows.Next() {
		f := Finding{Active: true}
		if err := rows.Scan(&f.ID, &f.Title, &f.Severity,
			&f.ComponentName, &f.ComponentVersion, &f.FilePath, &f.Verified); err != nil {
			return nil, fmt.Errorf("dojo: scan finding row: %w", err)
		}
		findings = append(findings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dojo: iterate findings: %w", err)
	}
	return findings, nil
}
