package catalog

import (
	"bytes"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite" // Register the "sqlite" database/sql driver

	"github.com/jmylchreest/huematch/internal/compression"
)

// Format identifies a catalog file encoding.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatYAML   Format = "yaml"
	FormatJSON   Format = "json"
	FormatSQLite Format = "sqlite"
)

const (
	// DefaultTable is the SQLite table read when LoadOptions.Table is empty.
	DefaultTable = "catalog"

	// DefaultMaxBytes caps the decompressed size of a catalog file.
	DefaultMaxBytes int64 = 32 << 20
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// LoadOptions configures how a catalog file is read.
type LoadOptions struct {
	// Format overrides detection from the file extension.
	Format Format

	// Table names the SQLite table holding the entries.
	Table string

	// MaxBytes bounds the (decompressed) file size. Zero uses DefaultMaxBytes.
	MaxBytes int64
}

// DetectFormat derives the catalog format from a file name. A trailing .xz,
// .gz or .bz2 marks the file as compressed.
func DetectFormat(path string) (Format, compression.Kind, error) {
	kind, name := compression.KindFromPath(strings.ToLower(filepath.Base(path)))

	switch filepath.Ext(name) {
	case ".csv":
		return FormatCSV, kind, nil
	case ".yaml", ".yml":
		return FormatYAML, kind, nil
	case ".json":
		return FormatJSON, kind, nil
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite, kind, nil
	default:
		return "", kind, fmt.Errorf("unsupported catalog file type: %s (supported: .csv, .yaml, .yml, .json, .db, .sqlite, .sqlite3, optionally .xz, .gz or .bz2)", filepath.Base(path))
	}
}

// Load reads a catalog file using defaults.
func Load(path string) (*Catalog, error) {
	return LoadWithOptions(path, LoadOptions{})
}

// LoadWithOptions reads and validates a catalog file.
func LoadWithOptions(path string, opts LoadOptions) (*Catalog, error) {
	if path == "" {
		return nil, fmt.Errorf("catalog path cannot be empty")
	}

	format, kind, err := DetectFormat(path)
	if opts.Format != "" {
		format, err = opts.Format, nil
	}
	if err != nil {
		return nil, err
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("catalog file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to stat catalog file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("catalog path is a directory, not a file: %s", path)
	}

	if format == FormatSQLite {
		if kind != compression.None {
			return loadCompressedSQLite(path, kind, opts.Table, maxBytes)
		}
		return readSQLite(path, opts.Table)
	}

	data, err := readFile(path, kind, maxBytes)
	if err != nil {
		return nil, err
	}
	return Read(bytes.NewReader(data), format)
}

// Read decodes a catalog from r. SQLite is not supported here since it needs
// a file on disk.
func Read(r io.Reader, format Format) (*Catalog, error) {
	var (
		entries []ReferenceColor
		err     error
	)
	switch format {
	case FormatCSV:
		entries, err = readCSV(r)
	case FormatYAML:
		entries, err = readYAML(r)
	case FormatJSON:
		entries, err = readJSON(r)
	default:
		return nil, fmt.Errorf("unsupported catalog format for streaming: %s", format)
	}
	if err != nil {
		return nil, err
	}
	return New(entries)
}

func readFile(path string, kind compression.Kind, maxBytes int64) ([]byte, error) {
	file, err := os.Open(path) // #nosec G304 - Catalog path is operator configured
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer file.Close()

	data, err := compression.ReadAll(file, kind, maxBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return data, nil
}

// readCSV expects a header row naming at least the name and hex columns.
// Column order is free and unknown columns are ignored.
func readCSV(r io.Reader) ([]ReferenceColor, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("catalog CSV is empty: missing header row")
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := columns[key]; !dup {
			columns[key] = i
		}
	}
	for _, required := range []string{"name", "hex"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("catalog CSV header is missing the %q column", required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var entries []ReferenceColor
	for row := 1; ; row++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &RowError{Row: row, Err: err}
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			row--
			continue
		}

		stock := 0
		if s := field(record, "stock"); s != "" {
			stock, err = strconv.Atoi(s)
			if err != nil {
				return nil, &RowError{Row: row, Field: "stock", Err: fmt.Errorf("not an integer: %q", s)}
			}
		}

		entries = append(entries, ReferenceColor{
			Name:  field(record, "name"),
			Hex:   field(record, "hex"),
			URL:   field(record, "url"),
			Stock: stock,
		})
	}
	return entries, nil
}

// yamlDocument accepts both a bare list and a mapping with a colours key.
type yamlDocument struct {
	Colours []ReferenceColor `yaml:"colours"`
}

func readYAML(r io.Reader) ([]ReferenceColor, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read YAML catalog: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to parse YAML catalog: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var entries []ReferenceColor
		if err := root.Decode(&entries); err != nil {
			return nil, fmt.Errorf("failed to decode YAML catalog: %w", err)
		}
		return entries, nil
	case yaml.MappingNode:
		var doc yamlDocument
		if err := root.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode YAML catalog: %w", err)
		}
		return doc.Colours, nil
	default:
		return nil, fmt.Errorf("YAML catalog must be a list or a mapping with a colours key")
	}
}

func readJSON(r io.Reader) ([]ReferenceColor, error) {
	var entries []ReferenceColor
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to parse JSON catalog: %w", err)
	}
	return entries, nil
}

func readSQLite(path, table string) (*Catalog, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid catalog table name: %q", table)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite catalog: %w", err)
	}
	defer db.Close()
	// The pragma is per connection, so keep a single one.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA query_only=ON;"); err != nil {
		return nil, fmt.Errorf("failed to apply sqlite pragma: %w", err)
	}

	// #nosec G202 - table name is restricted to identifier characters above
	query := fmt.Sprintf(`SELECT name, hex, COALESCE(url, ''), COALESCE(stock, 0) FROM "%s" ORDER BY rowid`, table)
	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sqlite catalog: %w", err)
	}
	defer rows.Close()

	var entries []ReferenceColor
	for row := 1; rows.Next(); row++ {
		var e ReferenceColor
		if err := rows.Scan(&e.Name, &e.Hex, &e.URL, &e.Stock); err != nil {
			return nil, &RowError{Row: row, Err: err}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sqlite catalog: %w", err)
	}

	return New(entries)
}

func loadCompressedSQLite(path string, kind compression.Kind, table string, maxBytes int64) (*Catalog, error) {
	data, err := readFile(path, kind, maxBytes)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp("", "huematch-catalog-*.db")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary catalog file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write temporary catalog file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to write temporary catalog file: %w", err)
	}

	return readSQLite(tmp.Name(), table)
}
