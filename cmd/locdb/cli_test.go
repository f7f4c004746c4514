package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/locdb/locdb/internal/config"
	"github.com/locdb/locdb/internal/resource"
	"github.com/locdb/locdb/internal/storage"
)

// setupCLI points the configuration at a fresh temp directory.
func setupCLI(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("XDG_DATA_HOME", dir)
	t.Setenv("LOCDB_CONFIG", filepath.Join(dir, "config.yml"))
	t.Setenv("LOCDB_STORE_PATH", filepath.Join(dir, "locdb.db"))
	config.ResetCache()
	t.Cleanup(config.ResetCache)
	humanOutput = false
	return dir
}

// runCLI executes the root command and returns what it wrote to stdout.
func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	stdout := os.Stdout
	os.Stdout = w

	done := make(chan []byte)
	go func() {
		b, _ := io.ReadAll(r)
		done <- b
	}()

	rootCmd.SetArgs(args)
	runErr := rootCmd.Execute()
	w.Close()
	os.Stdout = stdout
	out := <-done

	if runErr != nil {
		t.Fatalf("locdb %s: %v", strings.Join(args, " "), runErr)
	}
	return string(out)
}

func TestCLI_ImportExportRoundTrip(t *testing.T) {
	dir := setupCLI(t)

	in := []resource.Resource{
		{ID: "b1", Type: resource.TypeMonograph, Title: "Little Science, Big Science", PublicationYear: 1963, Status: resource.StatusValid},
		{ID: "j1", Type: resource.TypeJournal, Title: "Scientometrics", Status: resource.StatusValid},
	}
	path := filepath.Join(dir, "backup.jsonl")
	if err := storage.WriteAll(path, in); err != nil {
		t.Fatal(err)
	}

	var status StatusResponse
	if err := json.Unmarshal([]byte(runCLI(t, "import", path)), &status); err != nil {
		t.Fatalf("parsing import output: %v", err)
	}
	if status.Count != 2 {
		t.Errorf("imported %d, want 2", status.Count)
	}

	out, err := storage.Decode(bytes.NewBufferString(runCLI(t, "export", "--format", "jsonl")))
	if err != nil {
		t.Fatalf("parsing export output: %v", err)
	}
	if len(out) != 2 || out[0].ID != "b1" || out[1].ID != "j1" {
		t.Errorf("export = %+v, want b1 then j1", out)
	}

	bib := runCLI(t, "export", "--format", "bibtex", "--append", "")
	if !strings.Contains(bib, "@book{") {
		t.Errorf("bibtex export missing the monograph:\n%s", bib)
	}
}

func TestCLI_GetAndList(t *testing.T) {
	dir := setupCLI(t)
	path := filepath.Join(dir, "in.jsonl")
	err := storage.WriteAll(path, []resource.Resource{
		{ID: "b1", Type: resource.TypeMonograph, Title: "Little Science, Big Science", Status: resource.StatusValid},
		{ID: "j1", Type: resource.TypeJournal, Title: "Scientometrics", Status: resource.StatusValid},
	})
	if err != nil {
		t.Fatal(err)
	}
	runCLI(t, "import", path)

	var got resource.Resource
	if err := json.Unmarshal([]byte(runCLI(t, "get", "b1")), &got); err != nil {
		t.Fatalf("parsing get output: %v", err)
	}
	if got.Title != "Little Science, Big Science" {
		t.Errorf("get title = %q", got.Title)
	}

	var list []resource.Resource
	if err := json.Unmarshal([]byte(runCLI(t, "list", "--type", "JOURNAL", "--status", "", "-q", "")), &list); err != nil {
		t.Fatalf("parsing list output: %v", err)
	}
	if len(list) != 1 || list[0].ID != "j1" {
		t.Errorf("list = %+v, want only j1", list)
	}
}

func TestCLI_ConfigPath(t *testing.T) {
	dir := setupCLI(t)

	var status StatusResponse
	if err := json.Unmarshal([]byte(runCLI(t, "config", "path")), &status); err != nil {
		t.Fatalf("parsing config path output: %v", err)
	}
	if status.Path != filepath.Join(dir, "config.yml") {
		t.Errorf("config path = %q", status.Path)
	}
}
