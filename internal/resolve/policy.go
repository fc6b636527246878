package resolve

import (
	"fmt"
	"strings"
)

// Policy selects what happens when a variant cannot be resolved.
type Policy uint8

const (
	// PolicyError aborts the batch.
	PolicyError Policy = iota
	// PolicyWarning records and logs the condition, then continues.
	PolicyWarning
	// PolicyIgnore continues silently.
	PolicyIgnore
)

var policyNames = map[Policy]string{
	PolicyError:   "error",
	PolicyWarning: "warning",
	PolicyIgnore:  "ignore",
}

// PolicyNames lists the accepted policy spellings.
func PolicyNames() []string {
	return []string{"error", "warning", "ignore"}
}

// ParsePolicy parses a policy name, case-insensitively.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return PolicyError, nil
	case "warning", "warn":
		return PolicyWarning, nil
	case "ignore":
		return PolicyIgnore, nil
	}
	return 0, fmt.Errorf("invalid policy %q (valid: %s)", s, strings.Join(PolicyNames(), ", "))
}

func (p Policy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Policy(%d)", uint8(p))
}

// Set implements pflag.Value so policies are validated while flags are parsed.
func (p *Policy) Set(s string) error {
	v, err := ParsePolicy(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Type implements pflag.Value.
func (p *Policy) Type() string {
	return "policy"
}
