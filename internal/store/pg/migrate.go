package pg

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// listSQL returns the files in fsys ending in suffix, lexically sorted.
func listSQL(fsys fs.FS, suffix string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(e.Name()), suffix) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func (s *Store) execSQLFiles(ctx context.Context, fsys fs.FS, files []string) error {
	for _, f := range files {
		b, err := fs.ReadFile(fsys, f)
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("exec %s: %w", f, err)
		}
	}
	return nil
}

// RunMigrations applies every *_up.sql in fsys in ascending order.
// The statements are idempotent (IF NOT EXISTS), so re-running is safe.
func (s *Store) RunMigrations(ctx context.Context, fsys fs.FS) error {
	files, err := listSQL(fsys, "_up.sql")
	if err != nil {
		return err
	}
	return s.execSQLFiles(ctx, fsys, files)
}

// RunMigrationsDown applies every *_down.sql in fsys in descending order.
func (s *Store) RunMigrationsDown(ctx context.Context, fsys fs.FS) error {
	files, err := listSQL(fsys, "_down.sql")
	if err != nil {
		return err
	}
	for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
		files[i], files[j] = files[j], files[i]
	}
	return s.execSQLFiles(ctx, fsys, files)
}
