package report

import (
	"context"
	"errors"
)

// ErrNotMultisite is returned when the target installation is a single-site
// WordPress install.
var ErrNotMultisite = errors.New("not a multisite installation")

// Enumerator is the read-only view of a multisite network the reports are
// built from. Plugin identifiers are returned raw (dir/file.php or file.php).
type Enumerator interface {
	IsMultisite(ctx context.Context) (bool, error)
	Sites(ctx context.Context) ([]Site, error)
	Themes(ctx context.Context) (map[string]Theme, error)
	InstalledPlugins(ctx context.Context) ([]string, error)
	NetworkActivePlugins(ctx context.Context) ([]string, error)
	SiteActivePlugins(ctx context.Context, siteID int64) ([]string, error)
	SiteTheme(ctx context.Context, siteID int64) (string, error)
}

// RequireMultisite fails with ErrNotMultisite unless enum reports a
// multisite installation.
func RequireMultisite(ctx context.Context, enum Enumerator) error {
	ok, err := enum.IsMultisite(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotMultisite
	}
	return nil
}
