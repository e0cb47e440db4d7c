package vocabulary

import (
	"fmt"
	"sort"

	id "terrasync/pkg/domain"
)

// IssueSeverity distinguishes blocking incompatibilities from advisories.
type IssueSeverity string

const (
	SeverityBlocking IssueSeverity = "blocking"
	SeverityWarning  IssueSeverity = "warning"
)

// CompatIssue describes one vocabulary version disagreement.
type CompatIssue struct {
	Vocabulary     string        `json:"vocabulary"`
	PackageVersion string        `json:"package_version"`
	ServerVersion  string        `json:"server_version"`
	Severity       IssueSeverity `json:"severity"`
	Message        string        `json:"message"`
}

// CompatResult is the outcome of comparing a package's vocabulary versions
// against the server's current set.
type CompatResult struct {
	Compatible bool          `json:"compatible"`
	Issues     []CompatIssue `json:"issues"`
}

// CheckCompatibility applies the semantic-version rules: a MAJOR mismatch is
// a blocking incompatibility, a MINOR mismatch is a warning (older devices
// simply know fewer values), and PATCH differences are ignored. A vocabulary
// the server no longer carries, or an unparseable version, is blocking.
//
// Issues are sorted by vocabulary name so the same disagreement always
// produces the same message regardless of upload order.
func CheckCompatibility(packageVersions map[string]string, serverVersions map[string]id.SemVer) CompatResult {
	result := CompatResult{Compatible: true}

	names := make([]string, 0, len(packageVersions))
	for name := range packageVersions {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		raw := packageVersions[name]
		server, known := serverVersions[name]
		if !known {
			result.Issues = append(result.Issues, CompatIssue{
				Vocabulary:     name,
				PackageVersion: raw,
				Severity:       SeverityBlocking,
				Message:        fmt.Sprintf("vocabulary %q is not known to this server", name),
			})
			result.Compatible = false
			continue
		}
		pkg, err := id.ParseSemVer(raw)
		if err != nil {
			result.Issues = append(result.Issues, CompatIssue{
				Vocabulary:     name,
				PackageVersion: raw,
				ServerVersion:  server.String(),
				Severity:       SeverityBlocking,
				Message:        fmt.Sprintf("vocabulary %q has malformed version %q", name, raw),
			})
			result.Compatible = false
			continue
		}
		switch {
		case pkg.Major != server.Major:
			result.Issues = append(result.Issues, CompatIssue{
				Vocabulary:     name,
				PackageVersion: pkg.String(),
				ServerVersion:  server.String(),
				Severity:       SeverityBlocking,
				Message: fmt.Sprintf("vocabulary %q major version mismatch: package %s, server %s",
					name, pkg, server),
			})
			result.Compatible = false
		case pkg.Minor != server.Minor:
			result.Issues = append(result.Issues, CompatIssue{
				Vocabulary:     name,
				PackageVersion: pkg.String(),
				ServerVersion:  server.String(),
				Severity:       SeverityWarning,
				Message: fmt.Sprintf("vocabulary %q minor version differs: package %s, server %s",
					name, pkg, server),
			})
		}
		// Patch differences carry no semantic change.
	}
	return result
}
