package knowledge

import (
	"fmt"
	"strings"
)

// PromptBuilder constructs the classification prompts.
type PromptBuilder struct{}

func (pb *PromptBuilder) BuildClassPrompt(class string, tax *Taxonomy) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Please analyze the provided descriptions and the details of the imported API, then determine the most fitting domain from a list of %d labels. ", len(tax.Domains))
	sb.WriteString("Return like this domain - description, only the name of the selected domain and a brief description of this domain. ")
	fmt.Fprintf(&sb, "API details: %s. Context:\n", class)
	for _, d := range tax.Domains {
		if d.Description != "" {
			fmt.Fprintf(&sb, "- %s: %s\n", d.Name, d.Description)
		} else {
			fmt.Fprintf(&sb, "- %s\n", d.Name)
		}
	}
	sb.WriteString("Do not include any additional information or reasoning in your response.")
	return sb.String()
}

func (pb *PromptBuilder) BuildFunctionPrompt(class, function string, domain Label) string {
	options := make([]string, 0, len(domain.Subdomains))
	for _, s := range domain.Subdomains {
		options = append(options, fmt.Sprintf("%s: %s", s.Name, s.Description))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Analyze the following information about the API function '%s' which is part of the '%s' in the '%s' domain. ", function, class, domain.Name)
	fmt.Fprintf(&sb, "Choose the most relevant classification from these available sub-domain options: \n%s. ", strings.Join(options, "\n "))
	sb.WriteString("Please provide only the name of the most appropriate subdomain and the description of it, without any additional details or explanation.")
	return sb.String()
}

// noSubdomain is the result recorded when the domain has no subdomain listing.
func noSubdomain(function string) string {
	return fmt.Sprintf("No sub-domain for function '%s'.", function)
}
