// Package filesystem reads plugin and theme headers from a wp-content
// directory, mirroring how WordPress discovers installed extensions.
package filesystem

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"wpmu/internal/report"
)

// WordPress only reads the first 8KiB of a file when looking for headers.
const headerBytes = 8 * 1024

// Plugin is an installed plugin discovered on disk.
type Plugin struct {
	// File is the identifier relative to the plugins directory, e.g.
	// "akismet/akismet.php" or "hello.php".
	File string
	Name string
}

// Scanner reads a wp-content directory.
type Scanner struct {
	root string
}

// NewScanner returns a Scanner rooted at the wp-content directory.
func NewScanner(wpContent string) *Scanner {
	return &Scanner{root: wpContent}
}

// Plugins returns every plugin with a "Plugin Name" header, sorted by name.
// Single-file plugins live directly in plugins/, others one level below.
func (s *Scanner) Plugins() ([]Plugin, error) {
	dir := filepath.Join(s.root, "plugins")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugins directory: %w", err)
	}

	var plugins []Plugin
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if !entry.IsDir() {
			if p, ok := readPlugin(dir, entry.Name()); ok {
				plugins = append(plugins, p)
			}
			continue
		}

		sub, err := os.ReadDir(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		for _, f := range sub {
			if f.IsDir() || strings.HasPrefix(f.Name(), ".") {
				continue
			}
			if p, ok := readPlugin(dir, entry.Name()+"/"+f.Name()); ok {
				plugins = append(plugins, p)
			}
		}
	}

	sort.SliceStable(plugins, func(i, j int) bool {
		return strings.ToLower(plugins[i].Name) < strings.ToLower(plugins[j].Name)
	})
	return plugins, nil
}

func readPlugin(pluginsDir, file string) (Plugin, bool) {
	if !strings.HasSuffix(file, ".php") {
		return Plugin{}, false
	}
	headers, err := readHeaders(filepath.Join(pluginsDir, filepath.FromSlash(file)), "Plugin Name")
	if err != nil || headers["Plugin Name"] == "" {
		return Plugin{}, false
	}
	return Plugin{File: file, Name: headers["Plugin Name"]}, true
}

// Themes returns installed themes keyed by stylesheet directory. Themes whose
// parent is missing are kept with an empty parent.
func (s *Scanner) Themes() (map[string]report.Theme, error) {
	dir := filepath.Join(s.root, "themes")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read themes directory: %w", err)
	}

	names := make(map[string]string)
	templates := make(map[string]string)
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		headers, err := readHeaders(filepath.Join(dir, entry.Name(), "style.css"), "Theme Name", "Template")
		if err != nil {
			continue
		}
		name := headers["Theme Name"]
		if name == "" {
			name = entry.Name()
		}
		names[entry.Name()] = name
		templates[entry.Name()] = headers["Template"]
	}

	themes := make(map[string]report.Theme, len(names))
	for slug, name := range names {
		theme := report.Theme{Name: name}
		if tpl := templates[slug]; tpl != "" && tpl != slug {
			theme.Parent = names[tpl]
		}
		themes[slug] = theme
	}
	return themes, nil
}

var headerPatterns = map[string]*regexp.Regexp{
	"Plugin Name": headerRegexp("Plugin Name"),
	"Theme Name":  headerRegexp("Theme Name"),
	"Template":    headerRegexp("Template"),
}

// headerRegexp matches a header line the way WordPress' get_file_data does.
func headerRegexp(field string) *regexp.Regexp {
	return regexp.MustCompile(`(?mi)^(?:[ \t]*<\?php)?[ \t/*#@]*` + regexp.QuoteMeta(field) + `:(.*)$`)
}

// readHeaders extracts "Field: value" headers from the start of a file.
func readHeaders(path string, fields ...string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := io.ReadAll(io.LimitReader(bufio.NewReader(f), headerBytes))
	if err != nil {
		return nil, err
	}
	text := strings.ReplaceAll(string(buf), "\r", "\n")

	headers := make(map[string]string, len(fields))
	for _, field := range fields {
		m := headerPatterns[field].FindStringSubmatch(text)
		if m == nil {
			continue
		}
		headers[field] = cleanHeader(m[1])
	}
	return headers, nil
}

func cleanHeader(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimSpace(strings.TrimSuffix(v, "*/"))
	v = strings.TrimSpace(strings.TrimSuffix(v, "?>"))
	return v
}
