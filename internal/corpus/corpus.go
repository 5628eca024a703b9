// Package corpus loads the FAQ reference corpus the knowledge index is built from.
package corpus

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is one FAQ item
type Entry struct {
	Category string `yaml:"category"`
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
}

// Text renders the entry the way it is embedded and shown to the generator
func (e Entry) Text() string {
	return fmt.Sprintf("%s - %s - %s", e.Category, e.Question, e.Answer)
}

type document struct {
	FAQs []Entry `yaml:"faqs"`
}

// Parse decodes a YAML document with a top-level "faqs" list. Entries keep
// their file order, which becomes their source index.
func Parse(data []byte) ([]Entry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse corpus: %w", err)
	}

	entries := make([]Entry, 0, len(doc.FAQs))
	for i, e := range doc.FAQs {
		e.Category = strings.ToUpper(strings.TrimSpace(e.Category))
		e.Question = strings.TrimSpace(e.Question)
		e.Answer = strings.TrimSpace(e.Answer)
		if e.Category == "" || e.Question == "" || e.Answer == "" {
			return nil, fmt.Errorf("corpus entry %d: category, question and answer are required", i)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Texts renders entries in order
func Texts(entries []Entry) []string {
	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Text()
	}
	return texts
}

// FileSource reads the corpus from a YAML file on every Load, so edits are
// picked up by the next index rebuild.
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource for path
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Load reads, parses and renders the corpus
func (s *FileSource) Load(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus %s: %w", s.path, err)
	}

	entries, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return Texts(entries), nil
}
