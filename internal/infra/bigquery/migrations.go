package bigquery

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// SchemaMigrations holds the dataset's DDL, one numbered file per change.
//
//go:embed migrations/*.sql
var SchemaMigrations embed.FS

const migrationsTable = "schema_migrations"

// Migration is one numbered schema change.
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string // placeholders substituted
	Checksum string // of the file as written
}

var migrationName = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// ParseMigrationFilename splits "0001_name.sql" into its version and name.
func ParseMigrationFilename(filename string) (version int, name string, ok bool) {
	m := migrationName.FindStringSubmatch(filename)
	if m == nil {
		return 0, "", false
	}
	version, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return version, m[2], true
}

// ReadMigrations loads every migration file in dir of fsys, ordered by
// version, with {{PROJECT_ID}} and {{DATASET_ID}} substituted. Files that do
// not follow the naming scheme are skipped. Two files with one version are an
// error.
func ReadMigrations(fsys fs.FS, dir, project, dataset string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("ReadMigrations: reading %s: %w", dir, err)
	}

	seen := make(map[int]string)
	var migrations []Migration
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		version, name, ok := ParseMigrationFilename(e.Name())
		if !ok {
			continue
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("ReadMigrations: version %04d used by %s and %s", version, prev, e.Name())
		}
		seen[version] = e.Name()

		content, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("ReadMigrations: reading %s: %w", e.Name(), err)
		}

		sql := strings.ReplaceAll(string(content), "{{PROJECT_ID}}", project)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", dataset)

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     name,
			Filename: e.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Pending returns the migrations whose version is not in applied.
func Pending(all []Migration, applied map[int]bool) []Migration {
	var out []Migration
	for _, m := range all {
		if !applied[m.Version] {
			out = append(out, m)
		}
	}
	return out
}

// Migrate applies the embedded migrations that have not run yet and
// records each one in schema_migrations. It returns the applied migrations.
func (c *Client) Migrate(ctx context.Context, appliedBy string) ([]Migration, error) {
	all, err := ReadMigrations(SchemaMigrations, "migrations", c.project, c.dataset)
	if err != nil {
		return nil, fmt.Errorf("Migrate: %w", err)
	}

	if err := c.ensureMigrationsTable(ctx); err != nil {
		return nil, fmt.Errorf("Migrate: ensuring %s: %w", migrationsTable, err)
	}

	applied, err := c.appliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("Migrate: %w", err)
	}

	var done []Migration
	for _, m := range Pending(all, applied) {
		log := c.log.With().Int("version", m.Version).Str("migration", m.Name).Logger()
		log.Info().Msg("applying migration")

		if err := c.run(ctx, c.bq.Query(m.SQL)); err != nil {
			return done, fmt.Errorf("Migrate: executing %s: %w", m.Filename, err)
		}
		if err := c.recordMigration(ctx, m, appliedBy); err != nil {
			return done, fmt.Errorf("Migrate: recording %s: %w", m.Filename, err)
		}
		done = append(done, m)
	}

	c.log.Info().Int("applied", len(done)).Int("known", len(all)).Msg("migrations complete")
	return done, nil
}

func (c *Client) ensureMigrationsTable(ctx context.Context) error {
	return c.run(ctx, c.bq.Query(`
		CREATE TABLE IF NOT EXISTS `+c.table(migrationsTable)+` (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`))
}

func (c *Client) appliedVersions(ctx context.Context) (map[int]bool, error) {
	q := c.bq.Query(`SELECT version FROM ` + c.table(migrationsTable) + ` ORDER BY version`)
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	applied := make(map[int]bool)
	for {
		var row struct {
			Version int64 `bigquery:"version"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating applied migrations: %w", err)
		}
		applied[int(row.Version)] = true
	}
	return applied, nil
}

func (c *Client) recordMigration(ctx context.Context, m Migration, appliedBy string) error {
	q := c.bq.Query(`
		INSERT INTO ` + c.table(migrationsTable) + `
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, @applied_at, @checksum, @applied_by)
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: m.Version},
		{Name: "name", Value: m.Name},
		{Name: "applied_at", Value: time.Now().UTC()},
		{Name: "checksum", Value: m.Checksum},
		{Name: "applied_by", Value: appliedBy},
	}
	return c.run(ctx, q)
}
