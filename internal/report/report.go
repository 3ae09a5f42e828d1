// Package report formats lockfile entries into the tabular, human-facing
// output consumed by cmd/ams-compose, following golang-dep/cmd/dep's
// status.go use of text/tabwriter for column alignment.
package report

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/amscompose/ams-compose/internal/config"
)

// WriteEntries prints one tab-aligned row per library, in name order, with
// the columns `name`, `commit:<8hex>`, `ref:<ref>`, `license:<type-or-None>`
// and `status:<status>` separated by padding spaces (no "|" characters),
// followed by an indented warning line (prefixed "⚠")
// when LicenseWarning is set and a license-change line (prefixed "↳") when
// LicenseChange is set. status is validation_status when nonempty,
// falling back to install_status.
func WriteEntries(w io.Writer, entries map[string]config.LockEntry) {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, name := range names {
		e := entries[name]
		status := e.ValidationStatus
		if status == "" {
			status = e.InstallStatus
		}
		license := e.DetectedLicense
		if license == "" {
			license = "None"
		}
		fmt.Fprintf(tw, "%s\tcommit:%s\tref:%s\tlicense:%s\tstatus:%s\n",
			name, shortCommit(e.Commit), e.Ref, license, status)
		if e.LicenseWarning != "" {
			fmt.Fprintf(tw, "\t⚠ %s\n", e.LicenseWarning)
		}
		if e.LicenseChange != "" {
			fmt.Fprintf(tw, "\t↳ license changed: %s\n", e.LicenseChange)
		}
	}
	tw.Flush()
}

func shortCommit(commit string) string {
	if len(commit) <= 8 {
		return commit
	}
	return commit[:8]
}
