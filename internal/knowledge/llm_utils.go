package knowledge

import "strings"

// NoDescription is reported when a response has no separable description.
const NoDescription = "No description found"

var labelDelimiters = []string{"\n", " - ", "\nDescription: ", ": "}

// ParseLabel splits a classifier response into label and description.
// The first delimiter that splits the text wins.
func ParseLabel(text string) (label, description string) {
	text = cleanMarkdownOutput(text)
	for _, d := range labelDelimiters {
		head, tail, ok := strings.Cut(text, d)
		if ok {
			return strings.TrimSpace(head), strings.TrimSpace(tail)
		}
	}
	return strings.TrimSpace(text), NoDescription
}

func cleanMarkdownOutput(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```markdown") {
		text = strings.TrimPrefix(text, "```markdown")
		text = strings.TrimSuffix(text, "```")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
	}
	return strings.TrimSpace(text)
}
