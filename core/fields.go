package core

import "strings"

// ResolveField extracts a value from a nested field map using dotted path
// notation, e.g. "data.win.eventdata.status". Each segment must resolve to a
// map key; any missing segment or navigation into a non-map value (including
// lists, which are not indexable by path) returns the default immediately.
//
// The function is pure: it never mutates its input and never returns an error.
func ResolveField(fields map[string]interface{}, path string, def interface{}) interface{} {
	if path == "" || fields == nil {
		return def
	}

	var current interface{} = fields
	for _, key := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return def
		}
		value, ok := m[key]
		if !ok {
			return def
		}
		current = value
	}

	return current
}

// ResolveFields resolves several paths against the same field map. Each path
// is resolved independently; a miss on one path never affects the others.
func ResolveFields(fields map[string]interface{}, paths []string, def interface{}) map[string]interface{} {
	resolved := make(map[string]interface{}, len(paths))
	for _, path := range paths {
		resolved[path] = ResolveField(fields, path, def)
	}
	return resolved
}
