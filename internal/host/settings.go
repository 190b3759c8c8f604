package host

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnresolvedSetting = errors.New("unresolved app setting")

// resolveSetting expands a value of the form %NAME% through lookup.
// Any other value is returned trimmed and unchanged.
func resolveSetting(value string, lookup func(string) (string, bool)) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", errors.New("schedule is required")
	}

	if len(v) < 2 || v[0] != '%' || v[len(v)-1] != '%' {
		return v, nil
	}

	name := v[1 : len(v)-1]
	if name == "" || strings.Contains(name, "%") {
		return "", fmt.Errorf("invalid setting placeholder %q", v)
	}
	if lookup == nil {
		return "", fmt.Errorf("%w: %s", ErrUnresolvedSetting, name)
	}

	resolved, ok := lookup(name)
	resolved = strings.TrimSpace(resolved)
	if !ok || resolved == "" {
		return "", fmt.Errorf("%w: %s", ErrUnresolvedSetting, name)
	}
	return resolved, nil
}
