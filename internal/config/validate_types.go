package config

import (
	"fmt"
	"strings"
)

// Issue is one problem found at a field path such as "policy.status_runs[0].threshold".
type Issue struct {
	Field   string
	Message string
}

// ValidationError lists every issue found in one document.
type ValidationError struct {
	// Document is "config" or "batch".
	Document string
	Issues   []Issue
}

// Error renders one "field: message" line per issue.
func (err *ValidationError) Error() string {
	if err == nil || len(err.Issues) == 0 {
		return err.document() + " validation failed"
	}
	lines := make([]string, 0, len(err.Issues))
	for _, issue := range err.Issues {
		lines = append(lines, fmt.Sprintf("%s: %s", issue.Field, issue.Message))
	}
	return strings.Join(lines, "\n")
}

// Has reports whether any issue was recorded at field.
func (err *ValidationError) Has(field string) bool {
	if err == nil {
		return false
	}
	for _, issue := range err.Issues {
		if issue.Field == field {
			return true
		}
	}
	return false
}

func (err *ValidationError) document() string {
	if err == nil || err.Document == "" {
		return "config"
	}
	return err.Document
}
