package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/locdb/locdb/internal/resource"
)

func journalArticle() (resource.Resource, resource.Resource) {
	journal := resource.Resource{
		ID:    "0f7c1d9e-journal",
		Type:  resource.TypeJournal,
		Title: "Scientometrics",
	}
	article := resource.Resource{
		ID:              "3a4b5c6d-7e8f-4a1b-9c2d-3e4f5a6b7c8d",
		Type:            resource.TypeJournalArticle,
		Title:           "Linked Open Citation Data",
		Subtitle:        "A Case Study",
		PublicationYear: 2018,
		PartOf:          journal.ID,
		Identifiers:     []resource.Identifier{{Scheme: resource.SchemeDOI, LiteralValue: "10.1007/s11192-018-1234-5"}},
		Contributors: []resource.AgentRole{
			{RoleType: resource.RoleAuthor, HeldBy: resource.NewPersonAgent("Anne", "Lauscher")},
			{RoleType: resource.RoleAuthor, HeldBy: resource.NewPersonAgent("Kai", "Eckert")},
			{RoleType: resource.RolePublisher, HeldBy: resource.Agent{NameString: "Springer"}},
		},
		EmbodiedAs: []resource.Embodiment{{FirstPage: "101", LastPage: "120"}},
	}
	return journal, article
}

func TestToBibTeX_Article(t *testing.T) {
	journal, article := journalArticle()

	got := ToBibTeX(article, &journal)

	if !strings.HasPrefix(got, "@article{Lauscher2018-3a4b5c6d,") {
		t.Errorf("ToBibTeX() should start with @article{Lauscher2018-3a4b5c6d, got:\n%s", got)
	}
	for _, want := range []string{
		`author = {Lauscher, Anne and Eckert, Kai}`,
		`title = {Linked Open Citation Data: A Case Study}`,
		`journal = {Scientometrics}`,
		`year = {2018}`,
		`publisher = {Springer}`,
		`pages = {101--120}`,
		`doi = {10.1007/s11192-018-1234-5}`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("ToBibTeX() should contain %q, got:\n%s", want, got)
		}
	}
}

func TestToBibTeX_ChapterUsesBooktitle(t *testing.T) {
	chapter := resource.Resource{
		ID:             "c1",
		Type:           resource.TypeBookChapter,
		Title:          "Introduction",
		ContainerTitle: "Handbook of Citation Analysis",
	}
	got := ToBibTeX(chapter, nil)

	if !strings.HasPrefix(got, "@incollection{c1,") {
		t.Errorf("unexpected entry header:\n%s", got)
	}
	if !strings.Contains(got, `booktitle = {Handbook of Citation Analysis}`) {
		t.Errorf("ToBibTeX() should contain booktitle, got:\n%s", got)
	}
	if strings.Contains(got, "year =") {
		t.Errorf("undated resource should have no year, got:\n%s", got)
	}
}

func TestToBibTeX_EscapesLatex(t *testing.T) {
	got := ToBibTeX(resource.Resource{ID: "x", Title: "R&D at 50% cost_{min}"}, nil)
	if !strings.Contains(got, `title = {R\&D at 50\% cost\_\{min\}}`) {
		t.Errorf("title not escaped:\n%s", got)
	}
}

func TestToBibTeXList_ResolvesContainers(t *testing.T) {
	journal, article := journalArticle()
	got := ToBibTeXList([]resource.Resource{journal, article})

	if strings.Count(got, "@") != 2 {
		t.Fatalf("expected two entries, got:\n%s", got)
	}
	if !strings.Contains(got, "@misc{0f7c1d9e,") {
		t.Errorf("journal should be exported as misc, got:\n%s", got)
	}
	if !strings.Contains(got, `journal = {Scientometrics}`) {
		t.Errorf("article container not resolved, got:\n%s", got)
	}
}

func TestEntryType(t *testing.T) {
	tests := map[resource.Type]string{
		resource.TypeJournalArticle:     "article",
		resource.TypeMonograph:          "book",
		resource.TypeBookSection:        "incollection",
		resource.TypeProceedingsArticle: "inproceedings",
		resource.TypeDissertation:       "phdthesis",
		resource.TypeReport:             "techreport",
		resource.TypeDataset:            "misc",
		"":                              "misc",
	}
	for typ, want := range tests {
		if got := EntryType(typ); got != want {
			t.Errorf("EntryType(%q) = %q, want %q", typ, got, want)
		}
	}
}

func TestAppendNew_SkipsExisting(t *testing.T) {
	journal, article := journalArticle()
	path := filepath.Join(t.TempDir(), "refs.bib")

	existing := "@article{Other2020,\n  doi = {10.1007/S11192-018-1234-5},\n}\n"
	if err := os.WriteFile(path, []byte(existing), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	n, err := AppendNew(path, []resource.Resource{journal, article})
	if err != nil {
		t.Fatalf("AppendNew() error = %v", err)
	}
	if n != 1 {
		t.Errorf("AppendNew() = %d, want 1 (article already present by DOI)", n)
	}

	n, err = AppendNew(path, []resource.Resource{journal, article})
	if err != nil {
		t.Fatalf("AppendNew() error = %v", err)
	}
	if n != 0 {
		t.Errorf("second AppendNew() = %d, want 0", n)
	}

	idx, err := ParseBibTeXFile(path)
	if err != nil {
		t.Fatalf("ParseBibTeXFile() error = %v", err)
	}
	if !idx.Keys["0f7c1d9e"] || !idx.Keys["Other2020"] {
		t.Errorf("index keys = %v", idx.Keys)
	}
}

func TestParseBibTeXFile_Missing(t *testing.T) {
	idx, err := ParseBibTeXFile(filepath.Join(t.TempDir(), "none.bib"))
	if err != nil {
		t.Fatalf("ParseBibTeXFile() error = %v", err)
	}
	if len(idx.Keys) != 0 {
		t.Errorf("expected empty index, got %v", idx.Keys)
	}
}
