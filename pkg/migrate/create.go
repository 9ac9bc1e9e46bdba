package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/angelmondragon/grocery-backend/pkg/config"
)

var (
	nameSanitizeRe = regexp.MustCompile(`[^a-z0-9_]+`)
	dialects       = []string{config.DBDriverSQLite, config.DBDriverPostgres}
)

// CreateSQLMigration creates one goose SQL file per supported dialect, sharing a version:
//
//	<root>/<dialect>/<YYYYMMDDHHMMSS>_<name>.sql
func CreateSQLMigration(root string, name string) ([]string, error) {
	if root == "" {
		return nil, fmt.Errorf("root is required")
	}

	safe := sanitizeName(name)
	if safe == "" {
		return nil, fmt.Errorf("name %q results in empty sanitized filename", name)
	}

	version := time.Now().UTC().Format("20060102150405")
	filename := fmt.Sprintf("%s_%s.sql", version, safe)

	created := make([]string, 0, len(dialects))
	for _, dialect := range dialects {
		dir := filepath.Join(root, dialect)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return created, fmt.Errorf("mkdir %q: %w", dir, err)
		}

		fullpath := filepath.Join(dir, filename)
		if _, err := os.Stat(fullpath); err == nil {
			return created, fmt.Errorf("migration already exists: %s", fullpath)
		}

		if err := os.WriteFile(fullpath, []byte(migrationTemplate(safe, dialect)), 0o644); err != nil {
			return created, fmt.Errorf("write migration %q: %w", fullpath, err)
		}
		created = append(created, fullpath)
	}

	return created, nil
}

func sanitizeName(name string) string {
	safe := strings.ToLower(strings.TrimSpace(name))
	safe = strings.ReplaceAll(safe, " ", "_")
	safe = nameSanitizeRe.ReplaceAllString(safe, "_")
	return strings.Trim(safe, "_")
}

func migrationTemplate(name, dialect string) string {
	return fmt.Sprintf(`-- +goose Up
-- +goose StatementBegin
-- %s (%s)
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- rollback %s
-- +goose StatementEnd
`, name, dialect, name)
}
