package script

import "strings"

// Render substitutes {name} placeholders in a prompt template with values
// from vars. Unknown placeholders are left untouched so a missing collected
// field is visible in transcripts rather than silently blanked.
func Render(template string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(template, "{") {
		return template
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
