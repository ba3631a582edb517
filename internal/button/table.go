package button

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultTable is the navigation pad wiring (BCM numbering).
var DefaultTable = []Spec{
	{Name: "DOWN", Pin: 23},
	{Name: "UP", Pin: 24},
	{Name: "LEFT", Pin: 16},
	{Name: "RIGHT", Pin: 26},
	{Name: "ENTER", Pin: 27},
	{Name: "BACKSPACE", Pin: 5},
	{Name: "ESCAPE", Pin: 6},
}

// ParseTable parses "NAME=PIN,NAME=PIN" into specs, preserving order.
// Names are upper-cased. Duplicate names are rejected; duplicate pins are
// left for initialization to report, like any other claimed pin.
func ParseTable(s string) ([]Spec, error) {
	var specs []Spec
	seen := make(map[string]bool)

	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		name, pinStr, ok := strings.Cut(field, "=")
		if !ok {
			return nil, fmt.Errorf("pin mapping %q: want NAME=PIN", field)
		}
		name = strings.ToUpper(strings.TrimSpace(name))
		if name == "" {
			return nil, fmt.Errorf("pin mapping %q: empty name", field)
		}
		pin, err := strconv.Atoi(strings.TrimSpace(pinStr))
		if err != nil {
			return nil, fmt.Errorf("pin mapping %q: %w", field, err)
		}
		if pin < 0 {
			return nil, fmt.Errorf("pin mapping %q: negative pin", field)
		}
		if seen[name] {
			return nil, fmt.Errorf("pin mapping %q: duplicate name %s", field, name)
		}
		seen[name] = true
		specs = append(specs, Spec{Name: name, Pin: pin})
	}

	if len(specs) == 0 {
		return nil, fmt.Errorf("pin mapping: no buttons in %q", s)
	}
	return specs, nil
}

// FormatTable is the inverse of ParseTable.
func FormatTable(specs []Spec) string {
	parts := make([]string, len(specs))
	for i, s := range specs {
		parts[i] = s.Name + "=" + strconv.Itoa(s.Pin)
	}
	return strings.Join(parts, ",")
}
