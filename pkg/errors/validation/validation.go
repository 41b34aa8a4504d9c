// Package validation collects configuration problems so a user sees every
// mistake in one pass instead of fixing them one re-run at a time.
package validation

import (
	"fmt"
	"net"
	"regexp"
	"strings"
)

type ValidationErrors struct {
	errors []string
}

func (v *ValidationErrors) Add(format string, args ...interface{}) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *ValidationErrors) AddError(path, message string) {
	v.errors = append(v.errors, fmt.Sprintf("%s: %s", path, message))
}

func (v *ValidationErrors) Error() string {
	if len(v.errors) == 0 {
		return ""
	}
	return strings.Join(v.errors, "\n")
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.errors) > 0
}

func (v *ValidationErrors) Count() int {
	return len(v.errors)
}

// GetErrors returns all validation errors as a slice.
func (v *ValidationErrors) GetErrors() []string {
	return v.errors
}

var domainRe = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}$`)

// IsValidIP reports whether s parses as an IPv4 or IPv6 address.
func IsValidIP(s string) bool {
	return net.ParseIP(s) != nil
}

// IsValidDomain reports whether s looks like a fully qualified DNS name.
func IsValidDomain(s string) bool {
	return domainRe.MatchString(s)
}
