package migration

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var fileNamePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_-]+)\.sql$`)

// Migration is one versioned schema file.
type Migration struct {
	Version     string
	Description string
	File        string
	SQL         string
	Checksum    string
}

// AppliedMigration is a row of the version table.
type AppliedMigration struct {
	Version       string
	AppliedAt     time.Time
	ExecutionTime time.Duration
	Checksum      string
}

// Executor runs migrations against a concrete database.
type Executor interface {
	// InitializeVersionTable creates schema_migrations if it does not exist.
	InitializeVersionTable(ctx context.Context) error
	// AppliedMigrations lists recorded versions in ascending order.
	AppliedMigrations(ctx context.Context) ([]AppliedMigration, error)
	// Apply executes statements and records m in a single transaction.
	Apply(ctx context.Context, m Migration, statements []string) error
}

// Scan reads every migration file in the root of fsys, ordered by version.
func Scan(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, newMigrationError("", ".", "read directory", err)
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		matches := fileNamePattern.FindStringSubmatch(entry.Name())
		if matches == nil {
			return nil, newMigrationError("", entry.Name(), "validate filename",
				fmt.Errorf("%w: expected {version}_{description}.sql", ErrInvalidMigrationFile))
		}
		number, _ := strconv.Atoi(matches[1])
		if existing, ok := seen[number]; ok {
			return nil, newMigrationError(matches[1], entry.Name(), "check duplicates",
				fmt.Errorf("%w: also defined in %s", ErrDuplicateVersion, existing))
		}
		seen[number] = entry.Name()

		content, err := fs.ReadFile(fsys, path.Clean(entry.Name()))
		if err != nil {
			return nil, newMigrationError(matches[1], entry.Name(), "read file", err)
		}
		if len(SplitStatements(string(content))) == 0 {
			return nil, newMigrationError(matches[1], entry.Name(), "parse SQL",
				fmt.Errorf("%w: no statements", ErrInvalidMigrationFile))
		}
		sum := sha256.Sum256(content)
		migrations = append(migrations, Migration{
			Version:     fmt.Sprintf("%03d", number),
			Description: strings.ReplaceAll(matches[2], "_", " "),
			File:        entry.Name(),
			SQL:         string(content),
			Checksum:    hex.EncodeToString(sum[:]),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return versionNumber(migrations[i].Version) < versionNumber(migrations[j].Version)
	})
	return migrations, nil
}

// SplitStatements splits SQL on semicolons and drops comment-only lines.
func SplitStatements(sql string) []string {
	var statements []string
	for _, chunk := range strings.Split(sql, ";") {
		var lines []string
		for _, line := range strings.Split(chunk, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "--") {
				continue
			}
			lines = append(lines, line)
		}
		if len(lines) > 0 {
			statements = append(statements, strings.Join(lines, "\n"))
		}
	}
	return statements
}

// Runner applies pending migrations in order.
type Runner struct {
	executor Executor
	logger   *slog.Logger
}

// NewRunner constructs a Runner. A nil logger falls back to slog.Default.
func NewRunner(executor Executor, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{executor: executor, logger: logger.With("component", "migration")}
}

// Pending returns the migrations of fsys that are not yet applied after
// validating that the applied history matches the files.
func (r *Runner) Pending(ctx context.Context, fsys fs.FS) ([]Migration, error) {
	available, err := Scan(fsys)
	if err != nil {
		return nil, err
	}
	if err := r.executor.InitializeVersionTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize version table: %w", err)
	}
	applied, err := r.executor.AppliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	if err := validateSequence(available, applied); err != nil {
		return nil, err
	}

	done := make(map[string]struct{}, len(applied))
	for _, m := range applied {
		done[m.Version] = struct{}{}
	}
	var pending []Migration
	for _, m := range available {
		if _, ok := done[m.Version]; !ok {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// Run applies every pending migration of fsys.
func (r *Runner) Run(ctx context.Context, fsys fs.FS) error {
	pending, err := r.Pending(ctx, fsys)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to plan migrations", "error", err)
		return err
	}
	if len(pending) == 0 {
		r.logger.DebugContext(ctx, "schema up to date")
		return nil
	}

	for i, m := range pending {
		started := time.Now()
		if err := r.executor.Apply(ctx, m, SplitStatements(m.SQL)); err != nil {
			r.logger.ErrorContext(ctx, "migration failed", "version", m.Version, "file", m.File, "error", err)
			return newMigrationError(m.Version, m.File, "execute migration", fmt.Errorf("%w: %v", ErrMigrationFailed, err))
		}
		r.logger.InfoContext(ctx, "migration applied",
			"version", m.Version,
			"description", m.Description,
			"position", i+1,
			"total", len(pending),
			"duration", time.Since(started),
		)
	}
	return nil
}

func validateSequence(available []Migration, applied []AppliedMigration) error {
	byVersion := make(map[string]Migration, len(available))
	for i, m := range available {
		byVersion[m.Version] = m
		if i > 0 && versionNumber(m.Version) != versionNumber(available[i-1].Version)+1 {
			return fmt.Errorf("%w: missing migration before %s", ErrVersionConflict, m.Version)
		}
	}
	for _, a := range applied {
		m, ok := byVersion[a.Version]
		if !ok {
			return fmt.Errorf("%w: applied migration %s has no file", ErrVersionConflict, a.Version)
		}
		if a.Checksum != "" && a.Checksum != m.Checksum {
			return newMigrationError(a.Version, m.File, "verify checksum", ErrChecksumMismatch)
		}
	}
	return nil
}

func versionNumber(version string) int {
	n, _ := strconv.Atoi(version)
	return n
}
