// Package database enumerates a multisite network straight from its MySQL
// tables, with themes and plugins read from the wp-content directory.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/elliotchance/phpserialize"
	"github.com/go-sql-driver/mysql"

	"wpmu/internal/report"
	"wpmu/internal/source/filesystem"
)

var prefixPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Config describes how to reach the network's database.
type Config struct {
	// DSN is a go-sql-driver/mysql data source name. When empty it is built
	// from Host, User, Password and Name.
	DSN      string
	Host     string
	User     string
	Password string
	Name     string

	TablePrefix string
	NetworkID   int64
	// WPContent is the wp-content directory holding plugins and themes.
	WPContent string
}

// FormatDSN returns the configured DSN or one assembled from its parts.
func (c Config) FormatDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = c.Host
	mc.DBName = c.Name
	return mc.FormatDSN()
}

// Enumerator implements report.Enumerator with SQL queries.
type Enumerator struct {
	db        *sql.DB
	prefix    string
	networkID int64
	scanner   *filesystem.Scanner
}

// Open connects to the database described by cfg.
func Open(ctx context.Context, cfg Config) (*Enumerator, error) {
	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	e, err := New(db, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	return e, nil
}

// New wraps an open database handle.
func New(db *sql.DB, cfg Config) (*Enumerator, error) {
	prefix := cfg.TablePrefix
	if prefix == "" {
		prefix = "wp_"
	}
	if !prefixPattern.MatchString(prefix) {
		return nil, fmt.Errorf("invalid table prefix %q", prefix)
	}
	networkID := cfg.NetworkID
	if networkID == 0 {
		networkID = 1
	}
	return &Enumerator{
		db:        db,
		prefix:    prefix,
		networkID: networkID,
		scanner:   filesystem.NewScanner(cfg.WPContent),
	}, nil
}

// Close releases the database handle.
func (e *Enumerator) Close() error {
	return e.db.Close()
}

func (e *Enumerator) table(name string) string {
	return "`" + e.prefix + name + "`"
}

// optionsTable is wp_options for the main site and wp_<id>_options otherwise.
func (e *Enumerator) optionsTable(siteID int64) string {
	if siteID == 1 {
		return e.table("options")
	}
	return e.table(fmt.Sprintf("%d_options", siteID))
}

func (e *Enumerator) IsMultisite(ctx context.Context) (bool, error) {
	for _, name := range []string{"blogs", "sitemeta"} {
		var n int
		err := e.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?",
			e.prefix+name).Scan(&n)
		if err != nil {
			return false, fmt.Errorf("failed to look up %s table: %w", name, err)
		}
		if n == 0 {
			return false, nil
		}
	}
	return true, nil
}

func (e *Enumerator) Sites(ctx context.Context) ([]report.Site, error) {
	rows, err := e.db.QueryContext(ctx,
		"SELECT blog_id, domain, path, public, archived, deleted, mature, spam FROM "+e.table("blogs")+
			" WHERE site_id = ? ORDER BY blog_id", e.networkID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sites: %w", err)
	}
	defer rows.Close()

	var sites []report.Site
	for rows.Next() {
		var s report.Site
		var public, archived, deleted, mature, spam int64
		if err := rows.Scan(&s.ID, &s.Domain, &s.Path, &public, &archived, &deleted, &mature, &spam); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		// Flags are tinyint; privacy plugins store negative values in public.
		s.Public = public != 0
		s.Archived = archived != 0
		s.Deleted = deleted != 0
		s.Mature = mature != 0
		s.Spam = spam != 0
		sites = append(sites, s)
	}
	return sites, rows.Err()
}

func (e *Enumerator) Themes(context.Context) (map[string]report.Theme, error) {
	return e.scanner.Themes()
}

func (e *Enumerator) InstalledPlugins(context.Context) ([]string, error) {
	plugins, err := e.scanner.Plugins()
	if err != nil {
		return nil, err
	}
	files := make([]string, len(plugins))
	for i, p := range plugins {
		files[i] = p.File
	}
	return files, nil
}

func (e *Enumerator) NetworkActivePlugins(ctx context.Context) ([]string, error) {
	var raw sql.NullString
	err := e.db.QueryRowContext(ctx,
		"SELECT meta_value FROM "+e.table("sitemeta")+" WHERE meta_key = 'active_sitewide_plugins' AND site_id = ?",
		e.networkID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read active_sitewide_plugins: %w", err)
	}
	keys, _, err := decodeArray(raw.String)
	if err != nil {
		return nil, fmt.Errorf("failed to decode active_sitewide_plugins: %w", err)
	}
	return keys, nil
}

func (e *Enumerator) SiteActivePlugins(ctx context.Context, siteID int64) ([]string, error) {
	raw, err := e.option(ctx, siteID, "active_plugins")
	if err != nil {
		return nil, err
	}
	_, values, err := decodeArray(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode active_plugins for site %d: %w", siteID, err)
	}
	return values, nil
}

func (e *Enumerator) SiteTheme(ctx context.Context, siteID int64) (string, error) {
	return e.option(ctx, siteID, "stylesheet")
}

// option reads a single option value. A missing option reads as empty.
func (e *Enumerator) option(ctx context.Context, siteID int64, name string) (string, error) {
	var value sql.NullString
	err := e.db.QueryRowContext(ctx,
		"SELECT option_value FROM "+e.optionsTable(siteID)+" WHERE option_name = ?", name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read option %s for site %d: %w", name, siteID, err)
	}
	return value.String, nil
}

// decodeArray decodes a serialized PHP array and returns its string keys and
// string values, both in key order. Empty and non-array values decode to
// nothing.
func decodeArray(raw string) (keys, values []string, err error) {
	if len(raw) < 2 || raw[:2] != "a:" {
		return nil, nil, nil
	}

	// Malformed length prefixes can panic inside the decoder.
	defer func() {
		if r := recover(); r != nil {
			keys, values = nil, nil
			err = fmt.Errorf("malformed serialized array: %v", r)
		}
	}()

	arr, err := phpserialize.UnmarshalAssociativeArray([]byte(raw))
	if err != nil {
		return nil, nil, err
	}

	ordered := make([]any, 0, len(arr))
	for k := range arr {
		ordered = append(ordered, k)
	}
	sort.Slice(ordered, func(i, j int) bool { return keyLess(ordered[i], ordered[j]) })

	for _, k := range ordered {
		if s, ok := k.(string); ok {
			keys = append(keys, s)
		}
		if s, ok := arr[k].(string); ok {
			values = append(values, s)
		}
	}
	return keys, values, nil
}

// keyLess orders integer keys numerically ahead of string keys.
func keyLess(a, b any) bool {
	ai, aInt := a.(int64)
	bi, bInt := b.(int64)
	switch {
	case aInt && bInt:
		return ai < bi
	case aInt != bInt:
		return aInt
	default:
		return fmt.Sprint(a) < fmt.Sprint(b)
	}
}

var _ report.Enumerator = (*Enumerator)(nil)
