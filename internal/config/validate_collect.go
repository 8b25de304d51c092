package config

import "fmt"

// issueAdder records an issue at a field path.
type issueAdder func(field, message string)

// issueCollector accumulates the issues of one document.
type issueCollector struct {
	document string
	issues   []Issue
}

func newIssueCollector(document string) *issueCollector {
	return &issueCollector{document: document}
}

func (c *issueCollector) add(field, message string) {
	c.issues = append(c.issues, Issue{Field: field, Message: message})
}

// at returns an adder for the list element name[index]. An empty field
// reports against the element itself.
func (c *issueCollector) at(name string, index int) issueAdder {
	prefix := fmt.Sprintf("%s[%d]", name, index)
	return func(field, message string) {
		if field != "" {
			field = prefix + "." + field
		} else {
			field = prefix
		}
		c.add(field, message)
	}
}

// result returns a ValidationError when issues are present.
func (c *issueCollector) result() error {
	if len(c.issues) == 0 {
		return nil
	}
	return &ValidationError{Document: c.document, Issues: c.issues}
}
