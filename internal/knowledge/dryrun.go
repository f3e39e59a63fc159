package knowledge

import (
	"context"

	"github.com/zeebo/xxh3"
)

// DryRunClassifier picks labels from the taxonomy without any external call.
// The choice is a stable hash of the subject, so reruns agree.
type DryRunClassifier struct {
	taxonomy *Taxonomy
}

func NewDryRunClassifier(taxonomy *Taxonomy) *DryRunClassifier {
	if taxonomy == nil {
		taxonomy = &Taxonomy{}
	}
	return &DryRunClassifier{taxonomy: taxonomy}
}

func (c *DryRunClassifier) ClassifyClass(_ context.Context, class string) (Classification, error) {
	if len(c.taxonomy.Domains) == 0 {
		return Classification{Label: "Unclassified", Description: NoDescription}, nil
	}
	d := pick(c.taxonomy.Domains, class)
	return Classification{Label: d.Name, Description: d.Description, Response: d.Name + " - " + d.Description}, nil
}

func (c *DryRunClassifier) ClassifyFunction(_ context.Context, class, function, domain string) (Classification, error) {
	d, ok := c.taxonomy.Domain(domain)
	if !ok || len(d.Subdomains) == 0 {
		return Classification{Label: noSubdomain(function)}, nil
	}
	s := pick(d.Subdomains, class+"::"+function)
	return Classification{Label: s.Name, Description: s.Description, Response: s.Name + " - " + s.Description}, nil
}

func pick(labels []Label, subject string) Label {
	return labels[xxh3.HashString(subject)%uint64(len(labels))]
}
