// Package report assembles theme and plugin inventory reports for a WordPress
// multisite network.
package report

// Site is a single blog in the network as returned by an Enumerator.
type Site struct {
	ID       int64  `json:"blog_id" yaml:"blog_id"`
	Domain   string `json:"domain" yaml:"domain"`
	Path     string `json:"path,omitempty" yaml:"path,omitempty"`
	Public   bool   `json:"public" yaml:"public"`
	Archived bool   `json:"archived" yaml:"archived"`
	Deleted  bool   `json:"deleted" yaml:"deleted"`
	Mature   bool   `json:"mature" yaml:"mature"`
	Spam     bool   `json:"spam" yaml:"spam"`
}

// Status collapses the site flags into a single label. The first set flag wins
// in the order public, archived, deleted, mature, spam.
func (s Site) Status() string {
	switch {
	case s.Public:
		return "public"
	case s.Archived:
		return "archived"
	case s.Deleted:
		return "deleted"
	case s.Mature:
		return "mature"
	case s.Spam:
		return "spam"
	default:
		return "Unknown"
	}
}

// URL returns the domain and path the site is served from, suitable for
// passing to wp-cli's --url flag.
func (s Site) URL() string {
	if s.Path == "" || s.Path == "/" {
		return s.Domain
	}
	return s.Domain + s.Path
}

// Theme is an installed theme keyed by its stylesheet (directory) name.
type Theme struct {
	Name string `json:"name" yaml:"name"`
	// Parent is the display name of the parent theme. Empty when the theme is
	// not a child theme or its parent is not installed.
	Parent string `json:"parent,omitempty" yaml:"parent,omitempty"`
}
