package results

import (
	"context"
	"database/sql"
	"fmt"

	"contribsampler/internal/results/db"
)

// SQLStore persists the results table into a sqlite (or libsql) database.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates the results table if it doesn't exist yet. The store
// takes ownership of database.
func NewSQLStore(ctx context.Context, database *sql.DB) (SQLStore, error) {
	_, err := database.ExecContext(ctx, db.Schema)
	if err != nil {
		return SQLStore{}, fmt.Errorf("create results schema: %w", err)
	}
	return SQLStore{db: database}, nil
}

func (s SQLStore) Load(ctx context.Context) (Table, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`select repo, repo_url, avg_num_contributors, start_date, contrib_info, date_urls
		from results order by ordinal`,
	)
	if err != nil {
		return Table{}, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var table Table
	for rows.Next() {
		var r Row
		err := rows.Scan(&r.Repo, &r.RepoURL, &r.AvgNumContributors, &r.StartDate, &r.ContribInfo, &r.DateURLs)
		if err != nil {
			return Table{}, fmt.Errorf("scan results: %w", err)
		}
		table.Rows = append(table.Rows, r)
	}
	return table, rows.Err()
}

func (s SQLStore) Save(ctx context.Context, t Table) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, "delete from results")
	if err != nil {
		return fmt.Errorf("clear results: %w", err)
	}

	stmt, err := tx.PrepareContext(
		ctx,
		`insert into results(ordinal, repo, repo_url, avg_num_contributors, start_date, contrib_info, date_urls)
		values (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range t.Rows {
		_, err = stmt.ExecContext(ctx, i, r.Repo, r.RepoURL, r.AvgNumContributors, r.StartDate, r.ContribInfo, r.DateURLs)
		if err != nil {
			return fmt.Errorf("insert %s: %w", r.Repo, err)
		}
	}
	return tx.Commit()
}

func (s SQLStore) Close() error {
	return s.db.Close()
}
