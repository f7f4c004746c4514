// Package storage persists bibliographic resources in SQLite or Postgres
// and dumps them to and from JSONL files.
package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/locdb/locdb/internal/resource"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading JSONL lines
// (4MB per line; resources embed their whole reference list).
const MaxJSONLLineCapacity = 4 * 1024 * 1024

// ReadAll reads all resources from a JSONL file. A missing file yields an
// empty slice.
func ReadAll(path string) ([]resource.Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening resources file: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode reads JSONL resources from r.
func Decode(r io.Reader) ([]resource.Resource, error) {
	var out []resource.Resource
	scanner := bufio.NewScanner(r)

	// Increase buffer size for long lines
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var res resource.Resource
		if err := json.Unmarshal(line, &res); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		out = append(out, res)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading resources: %w", err)
	}
	return out, nil
}

// WriteAll writes all resources to a JSONL file, replacing existing content.
func WriteAll(path string, resources []resource.Resource) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating resources file: %w", err)
	}
	defer f.Close()

	return Encode(f, resources)
}

// Encode writes resources to w, one JSON document per line.
func Encode(w io.Writer, resources []resource.Resource) error {
	enc := json.NewEncoder(w)
	for i, r := range resources {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("writing resource %d: %w", i, err)
		}
	}
	return nil
}

// Append adds a resource to the end of a JSONL file.
func Append(path string, r resource.Resource) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening resources file for append: %w", err)
	}
	defer f.Close()

	return Encode(f, []resource.Resource{r})
}

// Import inserts resources into store, keeping their ids. Resources whose
// id already exists are replaced. It returns the number written.
func Import(ctx context.Context, store Store, resources []resource.Resource) (int, error) {
	write := func(s Store) error {
		for _, r := range resources {
			existing, err := s.Get(ctx, r.ID)
			if err != nil {
				return err
			}
			if existing != nil {
				if err := s.Update(ctx, r.ID, r); err != nil {
					return fmt.Errorf("updating %s: %w", r.ID, err)
				}
				continue
			}
			if _, err := s.Insert(ctx, r); err != nil {
				return fmt.Errorf("inserting %s: %w", r.ID, err)
			}
		}
		return nil
	}

	if tx, ok := store.(Transactor); ok {
		if err := tx.WithTx(ctx, write); err != nil {
			return 0, err
		}
	} else if err := write(store); err != nil {
		return 0, err
	}
	return len(resources), nil
}

// Export returns every stored resource, ordered by id.
func Export(ctx context.Context, store Store) ([]resource.Resource, error) {
	return store.List(ctx, ListFilter{})
}
