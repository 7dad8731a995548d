package report

// Status is the activation state of a plugin on one site.
type Status string

const (
	NetworkActive Status = "network active"
	Active        Status = "active"
	Inactive      Status = "inactive"
)

// Classify returns the status of plugin name on a site. Network activation
// takes precedence over the site's own activation list.
func Classify(name string, networkActive, siteActive Set) Status {
	if networkActive.Has(name) {
		return NetworkActive
	}
	if siteActive.Has(name) {
		return Active
	}
	return Inactive
}
