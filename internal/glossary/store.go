package glossary

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Direction is an ordered source/target language pair. Glossary rules only
// apply to directions they were loaded for.
type Direction struct {
	Src string
	Tgt string
}

func (d Direction) String() string {
	return d.Src + "->" + d.Tgt
}

// Entry binds a source-language term to its fixed target-language
// translation. Entries are immutable after load.
type Entry struct {
	Term        string
	Translation string
}

type fileEntry struct {
	SourceLang  string `yaml:"source_lang"`
	TargetLang  string `yaml:"target_lang"`
	Term        string `yaml:"term"`
	Translation string `yaml:"translation"`
}

type glossaryFile struct {
	Entries []fileEntry `yaml:"entries"`
}

// Store holds the per-direction term rules, sorted longest term first so
// that matching never shadows a longer term with a shorter prefix.
type Store struct {
	rules map[Direction][]Entry
}

// LoadFile reads a glossary YAML file. Malformed entries are skipped with a
// warning; a missing or empty file yields an empty store.
func LoadFile(path string, log *slog.Logger) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("glossary file not found, term protection disabled", slog.String("path", path))
			return NewStore(nil), nil
		}
		return nil, fmt.Errorf("read glossary file: %w", err)
	}

	var file glossaryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse glossary file: %w", err)
	}

	store := NewStore(nil)
	seen := make(map[Direction]map[string]bool)
	var loaded int
	for i, fe := range file.Entries {
		dir := Direction{Src: strings.TrimSpace(fe.SourceLang), Tgt: strings.TrimSpace(fe.TargetLang)}
		term := strings.TrimSpace(fe.Term)
		translation := strings.TrimSpace(fe.Translation)
		if dir.Src == "" || dir.Tgt == "" || term == "" || translation == "" {
			log.Warn("skipping malformed glossary entry", slog.Int("index", i))
			continue
		}
		key := strings.ToLower(term)
		if seen[dir] == nil {
			seen[dir] = make(map[string]bool)
		}
		if seen[dir][key] {
			log.Warn("skipping duplicate glossary term",
				slog.String("direction", dir.String()), slog.String("term", term))
			continue
		}
		seen[dir][key] = true
		store.rules[dir] = append(store.rules[dir], Entry{Term: term, Translation: translation})
		loaded++
	}
	store.sortRules()

	log.Info("glossary loaded",
		slog.String("path", path),
		slog.Int("entries", loaded),
		slog.Int("directions", len(store.rules)))
	return store, nil
}

// NewStore builds a store from in-memory rules, mainly for tests.
func NewStore(rules map[Direction][]Entry) *Store {
	s := &Store{rules: make(map[Direction][]Entry)}
	for dir, entries := range rules {
		s.rules[dir] = append([]Entry(nil), entries...)
	}
	s.sortRules()
	return s
}

func (s *Store) sortRules() {
	for _, entries := range s.rules {
		sort.SliceStable(entries, func(i, j int) bool {
			return len(entries[i].Term) > len(entries[j].Term)
		})
	}
}

// Rules returns the entries for a direction, longest term first. Unsupported
// directions return nil.
func (s *Store) Rules(dir Direction) []Entry {
	return s.rules[dir]
}

// Directions lists every direction the store has rules for.
func (s *Store) Directions() []Direction {
	dirs := make([]Direction, 0, len(s.rules))
	for dir := range s.rules {
		dirs = append(dirs, dir)
	}
	sort.Slice(dirs, func(i, j int) bool {
		if dirs[i].Src != dirs[j].Src {
			return dirs[i].Src < dirs[j].Src
		}
		return dirs[i].Tgt < dirs[j].Tgt
	})
	return dirs
}
