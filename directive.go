package medley

import (
	"strconv"
	"strings"
)

// Field is one column reference inside a group: a name plus the string-level
// deletion-neighborhood depth requested for its value ("%N" in the DSL).
type Field struct {
	Name   string
	Expand int
}

// Group is a comma-separated tuple of fields hashed together as one logical
// unit. Required groups (leading "&") are never dropped by GroupNeighborhood.
type Group struct {
	Required bool
	Fields   []Field
}

// Alternative is one OR-combined directive string, parsed into an ordered
// list of groups.
type Alternative struct {
	Groups []Group
}

// Plan is the normalized, parser output consumed by RecordHasher: a list of
// alternatives, OR-combined.
type Plan struct {
	Alternatives []Alternative
}

// ParsePlan parses one or more field-directive strings (spec §4.1 grammar)
// into a normalized Plan. Each input string becomes one Alternative; the
// alternatives are OR-combined. Returns ErrDirectiveEmpty if no directive
// strings are given, and ErrDirectiveSyntax for any malformed directive.
func ParsePlan(directives ...string) (Plan, error) {
	if len(directives) == 0 {
		return Plan{}, newDirectiveEmptyError("")
	}

	plan := Plan{Alternatives: make([]Alternative, 0, len(directives))}
	for _, d := range directives {
		alt, err := parseAlternative(d)
		if err != nil {
			return Plan{}, err
		}
		plan.Alternatives = append(plan.Alternatives, alt)
	}
	return plan, nil
}

// stripWhitespace removes every whitespace rune from s (spec §4.1: "whitespace
// is stripped before parsing").
func stripWhitespace(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func parseAlternative(directive string) (Alternative, error) {
	stripped := stripWhitespace(directive)

	groupStrs := strings.Split(stripped, ";")
	alt := Alternative{Groups: make([]Group, 0, len(groupStrs))}

	for _, gs := range groupStrs {
		group, err := parseGroup(gs, directive)
		if err != nil {
			return Alternative{}, err
		}
		alt.Groups = append(alt.Groups, group)
	}

	normalizeAlternative(&alt)
	return alt, nil
}

func parseGroup(groupStr, original string) (Group, error) {
	if groupStr == "" {
		return Group{}, newDirectiveSyntaxError(original, "empty group")
	}

	required := false
	rest := groupStr
	if rest[0] == '&' {
		required = true
		rest = rest[1:]
	}

	// "&" is only legal as the first character of a group; any further
	// occurrence is a syntax error, not a per-field required indicator.
	if strings.ContainsRune(rest, '&') {
		return Group{}, newDirectiveSyntaxError(original, "'&' is only valid as the first character of a group")
	}

	if rest == "" {
		return Group{}, newDirectiveSyntaxError(original, "empty group")
	}

	fieldStrs := strings.Split(rest, ",")
	fields := make([]Field, 0, len(fieldStrs))
	for _, fs := range fieldStrs {
		f, err := parseField(fs, original)
		if err != nil {
			return Group{}, err
		}
		fields = append(fields, f)
	}

	return Group{Required: required, Fields: fields}, nil
}

func parseField(fieldStr, original string) (Field, error) {
	if fieldStr == "" {
		return Field{}, newDirectiveSyntaxError(original, "empty field name")
	}

	parts := strings.Split(fieldStr, "%")
	switch len(parts) {
	case 1:
		if parts[0] == "" {
			return Field{}, newDirectiveSyntaxError(original, "empty field name")
		}
		return Field{Name: parts[0], Expand: 0}, nil
	case 2:
		name, digits := parts[0], parts[1]
		if name == "" {
			return Field{}, newDirectiveSyntaxError(original, "empty field name")
		}
		if digits == "" || !isAllDigits(digits) {
			return Field{}, newDirectiveSyntaxError(original, "'%' must be followed by digits")
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			return Field{}, newDirectiveSyntaxError(original, "'%' must be followed by digits")
		}
		return Field{Name: name, Expand: clampEditDistance(n)}, nil
	default:
		return Field{}, newDirectiveSyntaxError(original, "field has more than one '%'")
	}
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// normalizeAlternative merges repeated field names across the groups of one
// alternative, taking the maximum requested expand distance for every
// occurrence (spec §3).
func normalizeAlternative(alt *Alternative) {
	maxExpand := make(map[string]int)
	for _, g := range alt.Groups {
		for _, f := range g.Fields {
			if cur, ok := maxExpand[f.Name]; !ok || f.Expand > cur {
				maxExpand[f.Name] = f.Expand
			}
		}
	}

	for gi := range alt.Groups {
		for fi := range alt.Groups[gi].Fields {
			name := alt.Groups[gi].Fields[fi].Name
			alt.Groups[gi].Fields[fi].Expand = maxExpand[name]
		}
	}
}
