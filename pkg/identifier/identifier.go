// Package identifier provides parsing and normalization of warehouse object
// names into canonical database.schema.name form.
//
// Unquoted identifier parts are folded to upper case (case-insensitive SQL
// convention); double-quoted parts keep their case with the quotes stripped.
// Names with fewer than three parts are completed from caller-supplied
// defaults, so the same object is never represented by two different keys.
package identifier

import (
	"fmt"
	"strings"
)

// QualifiedName is a fully qualified object name.
type QualifiedName struct {
	Database string
	Schema   string
	Name     string
}

// Key returns the canonical DATABASE.SCHEMA.NAME string used as the graph
// node key.
func (q QualifiedName) Key() string {
	return q.Database + "." + q.Schema + "." + q.Name
}

// String implements fmt.Stringer.
func (q QualifiedName) String() string { return q.Key() }

// IsZero reports whether the name is empty.
func (q QualifiedName) IsZero() bool {
	return q.Database == "" && q.Schema == "" && q.Name == ""
}

// InvalidIdentifierError reports a raw name that does not satisfy the
// identifier grammar.
type InvalidIdentifierError struct {
	Raw    string
	Reason string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid identifier %q: %s", e.Raw, e.Reason)
}

// Normalize parses a raw object name and returns its canonical qualified
// form. Missing database/schema parts are filled from the defaults. It is a
// pure function: same input, same output, no side effects.
func Normalize(raw, defaultDatabase, defaultSchema string) (QualifiedName, error) {
	parts, err := splitParts(raw)
	if err != nil {
		return QualifiedName{}, err
	}

	switch len(parts) {
	case 1:
		return QualifiedName{Database: fold(defaultDatabase), Schema: fold(defaultSchema), Name: parts[0]}, nil
	case 2:
		return QualifiedName{Database: fold(defaultDatabase), Schema: parts[0], Name: parts[1]}, nil
	case 3:
		return QualifiedName{Database: parts[0], Schema: parts[1], Name: parts[2]}, nil
	default:
		return QualifiedName{}, &InvalidIdentifierError{Raw: raw, Reason: "more than three dot-separated parts"}
	}
}

// fold applies unquoted-identifier case folding to a default part supplied by
// configuration rather than parsed from SQL text.
func fold(s string) string {
	if strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) && len(s) >= 2 {
		return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
	}
	return strings.ToUpper(s)
}

// splitParts splits raw on dots outside double quotes and normalizes each
// part. Both quoted and unquoted parts are validated against the target
// identifier grammar.
func splitParts(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &InvalidIdentifierError{Raw: raw, Reason: "empty name"}
	}

	var parts []string
	var cur strings.Builder
	inQuotes := false
	curQuoted := false

	flush := func() error {
		part := cur.String()
		cur.Reset()
		if part == "" {
			return &InvalidIdentifierError{Raw: raw, Reason: "empty name part"}
		}
		if !curQuoted {
			if !validUnquoted(part) {
				return &InvalidIdentifierError{Raw: raw, Reason: fmt.Sprintf("illegal characters in part %q", part)}
			}
			part = strings.ToUpper(part)
		}
		parts = append(parts, part)
		curQuoted = false
		return nil
	}

	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		switch {
		case ch == '"':
			if inQuotes {
				// Doubled quote is an escaped quote inside the part.
				if i+1 < len(raw) && raw[i+1] == '"' {
					cur.WriteByte('"')
					i++
					continue
				}
				inQuotes = false
			} else {
				if cur.Len() != 0 {
					return nil, &InvalidIdentifierError{Raw: raw, Reason: "quote in the middle of a name part"}
				}
				inQuotes = true
				curQuoted = true
			}
		case ch == '.' && !inQuotes:
			if err := flush(); err != nil {
				return nil, err
			}
		default:
			cur.WriteByte(ch)
		}
	}

	if inQuotes {
		return nil, &InvalidIdentifierError{Raw: raw, Reason: "unterminated quoted part"}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return parts, nil
}

// validUnquoted reports whether an unquoted part matches
// [A-Za-z_][A-Za-z0-9_$]*.
func validUnquoted(part string) bool {
	for i := 0; i < len(part); i++ {
		ch := part[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch == '_':
		case i > 0 && (ch >= '0' && ch <= '9' || ch == '$'):
		default:
			return false
		}
	}
	return true
}
