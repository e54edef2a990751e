package models

import (
	"strings"
	"testing"
)

func TestSearchDocument(t *testing.T) {
	u := &User{
		Name: "Mia Torres",
		Bio:  "Licensed since 2015.",
		ServiceProvider: &ServiceProviderProfile{
			Profession:        "Electrician",
			BusinessName:      "Torres Electric",
			Skills:            []string{"rewiring", "panel upgrades"},
			ServiceCategories: []string{"home-repair"},
		},
	}

	doc := u.SearchDocument()
	for _, want := range []string{"Mia Torres", "Licensed since 2015.", "Electrician", "Torres Electric", "rewiring", "home-repair"} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q:\n%s", want, doc)
		}
	}
}

func TestSearchDocumentNonProvider(t *testing.T) {
	u := &User{Name: "Sam Ellis", Bio: "Just browsing."}
	if got, want := u.SearchDocument(), "Sam Ellis\nJust browsing."; got != want {
		t.Errorf("document = %q, want %q", got, want)
	}
}
