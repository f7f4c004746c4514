package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/locdb/locdb/internal/resource"
)

func TestRepresentation(t *testing.T) {
	tests := []struct {
		name string
		r    resource.Resource
		want string
	}{
		{"empty", resource.Resource{}, ""},
		{"title only", resource.Resource{Title: "Deep Learning"}, "Deep Learning    "},
		{
			"all fields",
			resource.Resource{
				Title:           "Deep Learning",
				Subtitle:        "An Introduction",
				PublicationYear: 2016,
				Number:          "3",
				Contributors: []resource.AgentRole{
					{RoleType: resource.RoleEditor, HeldBy: resource.NewPersonAgent("Ed", "Itor")},
					{RoleType: resource.RoleAuthor, HeldBy: resource.NewPersonAgent("Ian", "Goodfellow")},
				},
			},
			"Deep Learning An Introduction Itor 2016 3",
		},
		{"year only", resource.Resource{PublicationYear: 1999}, "   1999 "},
		{
			"publisher listed first",
			resource.Resource{
				Title: "T",
				Contributors: []resource.AgentRole{
					{RoleType: resource.RolePublisher, HeldBy: resource.Agent{FamilyName: "Springer"}},
					{RoleType: resource.RoleAuthor, HeldBy: resource.Agent{FamilyName: "Doe"}},
				},
			},
			"T  Springer  ",
		},
		{
			"first contributor without family name",
			resource.Resource{
				Title: "T",
				Contributors: []resource.AgentRole{
					{RoleType: resource.RoleCorporate, HeldBy: resource.Agent{NameString: "World Health Organization"}},
					{RoleType: resource.RoleAuthor, HeldBy: resource.Agent{FamilyName: "Doe"}},
				},
			},
			"T    ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Representation(tt.r))
		})
	}
}

func TestScore_FirstContributorWhateverRole(t *testing.T) {
	r := resource.Resource{
		Title: "T",
		Contributors: []resource.AgentRole{
			{RoleType: resource.RolePublisher, HeldBy: resource.Agent{FamilyName: "Springer"}},
			{RoleType: resource.RoleAuthor, HeldBy: resource.Agent{FamilyName: "Doe"}},
		},
	}
	assert.Equal(t, 0, Score("T  Springer  ", r))
}

func TestScore_EmptyResourceIsQueryLength(t *testing.T) {
	for _, q := range []string{"", "a", "climate change", "Müller über Bäume"} {
		assert.Equal(t, len([]rune(q)), Score(q, resource.Resource{}), "query %q", q)
	}
}

func TestScore_TitleMonotonicity(t *testing.T) {
	query := "Deep Learning    "
	exact := resource.Resource{Title: "Deep Learning"}
	near := resource.Resource{Title: "Deep Learnin"}
	far := resource.Resource{Title: "Shallow Thoughts"}

	assert.Equal(t, 0, Score(query, exact))
	assert.Less(t, Score(query, exact), Score(query, near))
	assert.Less(t, Score(query, near), Score(query, far))
}

func TestLevenshtein_ImplementsScorer(t *testing.T) {
	var s Scorer = Levenshtein{}
	r := resource.Resource{Title: "abc"}
	assert.Equal(t, Score("abd", r), s.Score("abd", r))
}
