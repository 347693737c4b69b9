package docsrc

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/cognicore/winnow/pkg/winnow/ingest"
)

// Record is one line of a JSONL corpus export.
type Record struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// LoadFromJSONL loads documents from a JSONL file with proper error handling.
// Records without an id get one assigned from their line number.
func LoadFromJSONL(path string) ([]ingest.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}

	var docs []ingest.Document
	lines := strings.Split(string(data), "\n")

	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			log.Printf("Warning: skipping malformed JSON at line %d in %s: %v", i+1, path, err)
			continue
		}
		if rec.ID == "" {
			rec.ID = "doc-" + strconv.Itoa(i+1)
		}
		docs = append(docs, ingest.Document{ID: rec.ID, Text: rec.Text})
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("no valid documents found in %s", path)
	}

	return docs, nil
}
