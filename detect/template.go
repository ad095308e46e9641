package detect

import (
	"regexp"

	"argus/core"
)

// placeholderPattern matches `{field.path}` placeholders in output format
// templates.
var placeholderPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// renderTemplate substitutes each `{field.path}` placeholder with the value
// resolved against the referenced event's fields. Paths absent from the event
// fall back to the group key values, which covers templating the grouping key
// itself (e.g. `{data.srcip}`) when it is not duplicated onto every event.
// Placeholders that resolve nowhere are left verbatim so a misspelled path is
// visible in the rendered message instead of silently vanishing.
func renderTemplate(format string, evt *core.Event, keyValues map[string]interface{}) string {
	return placeholderPattern.ReplaceAllStringFunc(format, func(placeholder string) string {
		path := placeholder[1 : len(placeholder)-1]

		if value := evt.Get(path, nil); value != nil {
			return coerceString(value)
		}
		if value, ok := keyValues[path]; ok && value != nil {
			return coerceString(value)
		}
		return placeholder
	})
}
