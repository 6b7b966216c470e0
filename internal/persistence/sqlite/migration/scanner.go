package migration

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var fileNamePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_-]+)\.sql$`)

// Scanner reads migration files from a file system.
type Scanner struct {
	fsys fs.FS
}

// NewScanner returns a Scanner over fsys.
func NewScanner(fsys fs.FS) *Scanner {
	return &Scanner{fsys: fsys}
}

// Scan returns the migrations in dir ordered by numeric version. Files that do
// not end in .sql are ignored.
func (s *Scanner) Scan(dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(s.fsys, dir)
	if err != nil {
		return nil, &MigrationError{FilePath: dir, Operation: "read directory", Err: err}
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		m, err := s.parse(path.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		number, _ := strconv.Atoi(m.Version)
		if other, ok := seen[number]; ok {
			return nil, &MigrationError{
				Version:   m.Version,
				FilePath:  m.FilePath,
				Operation: "check duplicates",
				Err:       fmt.Errorf("%w: also declared by %s", ErrDuplicateVersion, other),
			}
		}
		seen[number] = m.FilePath
		migrations = append(migrations, m)
	}

	slices.SortFunc(migrations, func(a, b Migration) int {
		return cmp.Compare(versionNumber(a.Version), versionNumber(b.Version))
	})
	return migrations, nil
}

func (s *Scanner) parse(filePath string) (Migration, error) {
	name := path.Base(filePath)
	matches := fileNamePattern.FindStringSubmatch(name)
	if matches == nil {
		return Migration{}, &MigrationError{
			FilePath:  filePath,
			Operation: "validate filename",
			Err:       fmt.Errorf("%w: %q does not match {version}_{description}.sql", ErrInvalidMigrationFile, name),
		}
	}
	version := matches[1]

	content, err := fs.ReadFile(s.fsys, filePath)
	if err != nil {
		return Migration{}, &MigrationError{Version: version, FilePath: filePath, Operation: "read file", Err: err}
	}
	sqlText := string(content)
	if len(splitStatements(sqlText)) == 0 {
		return Migration{}, &MigrationError{
			Version:   version,
			FilePath:  filePath,
			Operation: "validate content",
			Err:       fmt.Errorf("%w: no SQL statements", ErrInvalidMigrationFile),
		}
	}
	if err := checkParentheses(sqlText); err != nil {
		return Migration{}, &MigrationError{Version: version, FilePath: filePath, Operation: "validate content", Err: err}
	}

	description := descriptionFromComments(sqlText)
	if description == "" {
		description = strings.ReplaceAll(matches[2], "_", " ")
	}

	sum := sha256.Sum256(content)
	return Migration{
		Version:     version,
		Description: description,
		SQL:         sqlText,
		FilePath:    filePath,
		Checksum:    hex.EncodeToString(sum[:]),
	}, nil
}

// descriptionFromComments returns the text of a leading "-- Description:" line.
func descriptionFromComments(sqlText string) string {
	for _, line := range strings.Split(sqlText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "--") {
			return ""
		}
		if rest, ok := strings.CutPrefix(line, "-- Description:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

func checkParentheses(sqlText string) error {
	depth := 0
	for _, line := range strings.Split(sqlText, "\n") {
		if idx := strings.Index(line, "--"); idx >= 0 {
			line = line[:idx]
		}
		for _, r := range line {
			switch r {
			case '(':
				depth++
			case ')':
				depth--
				if depth < 0 {
					return errors.Join(ErrInvalidMigrationFile, errors.New("unmatched closing parenthesis"))
				}
			}
		}
	}
	if depth != 0 {
		return errors.Join(ErrInvalidMigrationFile, errors.New("unmatched opening parenthesis"))
	}
	return nil
}

// splitStatements breaks a file into statements on semicolons, dropping
// comment-only lines.
func splitStatements(sqlText string) []string {
	var out []string
	for _, raw := range strings.Split(sqlText, ";") {
		var lines []string
		for _, line := range strings.Split(raw, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			lines = append(lines, trimmed)
		}
		if len(lines) > 0 {
			out = append(out, strings.Join(lines, "\n"))
		}
	}
	return out
}

func versionNumber(version string) int {
	n, _ := strconv.Atoi(version)
	return n
}
