// ABOUTME: Movie persistence inside the tenant database in scope
// ABOUTME: Create, fetch, list and delete movies

package store

import (
	"context"
	"fmt"
	"time"
)

// CreateMovie inserts a movie and sets its ID.
func (s *SQLiteStore) CreateMovie(ctx context.Context, movie *Movie) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO movies (title, runtime, release_date)
		VALUES (?, ?, ?)
	`, movie.Title, movie.Runtime, movie.ReleaseDate.Format(dateLayout))
	if err != nil {
		return fmt.Errorf("inserting movie: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading movie id: %w", err)
	}
	movie.ID = id

	s.logger.Debug("created movie", "id", id)
	return nil
}

// GetMovie retrieves a movie by ID.
// Returns ErrNotFound if the movie doesn't exist.
func (s *SQLiteStore) GetMovie(ctx context.Context, id int64) (*Movie, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, `
		SELECT id, title, runtime, release_date
		FROM movies
		WHERE id = ?
	`, id)
	movie, err := scanMovie(row.Scan)
	if err != nil {
		return nil, notFound(err)
	}
	return movie, nil
}

// ListMovies returns up to limit movies ordered by ID.
func (s *SQLiteStore) ListMovies(ctx context.Context, limit int) ([]*Movie, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, title, runtime, release_date
		FROM movies
		ORDER BY id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying movies: %w", err)
	}
	defer rows.Close()

	var movies []*Movie
	for rows.Next() {
		movie, err := scanMovie(rows.Scan)
		if err != nil {
			return nil, err
		}
		movies = append(movies, movie)
	}
	return movies, rows.Err()
}

// DeleteMovie removes a movie. Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) DeleteMovie(ctx context.Context, id int64) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `DELETE FROM movies WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting movie: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// scanMovie reads one movie row using scan.
func scanMovie(scan func(dest ...any) error) (*Movie, error) {
	var (
		movie   Movie
		release string
	)
	if err := scan(&movie.ID, &movie.Title, &movie.Runtime, &release); err != nil {
		return nil, err
	}
	t, err := time.Parse(dateLayout, release)
	if err != nil {
		return nil, fmt.Errorf("parsing release_date: %w", err)
	}
	movie.ReleaseDate = t
	return &movie, nil
}
