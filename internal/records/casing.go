package records

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var upper = cases.Upper(language.Und)

// normalizeJob stores job titles the way the SCOTT rows spell them.
func normalizeJob(job string) string {
	return upper.String(strings.TrimSpace(job))
}

func normalizeCode(value string) string {
	return upper.String(strings.TrimSpace(value))
}
