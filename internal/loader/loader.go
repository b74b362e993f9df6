// Package loader reads a directory of markdown decision records and parses
// each into a Decision value. It never talks to the store or the embedder;
// it only knows how to turn bytes on disk into a typed, hashed value plus
// per-file warnings for records that could not be parsed.
package loader

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Relation kinds, ordered by the tie-break priority used throughout the
// query engine (SUPERSEDES, AMENDS, DEPENDS_ON, RELATED_TO).
const (
	KindSupersedes = "SUPERSEDES"
	KindAmends     = "AMENDS"
	KindDependsOn  = "DEPENDS_ON"
	KindRelatedTo  = "RELATED_TO"
)

// KindPriority fixes the tie-break order for the four edge kinds.
var KindPriority = []string{KindSupersedes, KindAmends, KindDependsOn, KindRelatedTo}

// Decision statuses recognized in frontmatter.
const (
	StatusProposed   = "proposed"
	StatusAccepted   = "accepted"
	StatusSuperseded = "superseded"
	StatusDeprecated = "deprecated"
)

var validStatuses = map[string]bool{
	StatusProposed:   true,
	StatusAccepted:   true,
	StatusSuperseded: true,
	StatusDeprecated: true,
}

// Edge is a declared relationship from one decision to another, as found
// in frontmatter. Targets are author-assigned decision ids, not yet
// resolved to any internal identity.
type Edge struct {
	Kind string
	To   uint32
}

// Decision is the parsed form of a single markdown decision record.
// Embedding is intentionally absent: per the data model, embeddings are
// computed from Title and Body and never persisted as frontmatter.
type Decision struct {
	ID          uint32
	UUID        string
	Title       string
	Status      string
	Date        time.Time
	Deciders    []string
	Tags        []string
	FilePath    string
	ContentHash string
	GitCommit   string
	Body        string
	Edges       []Edge
}

// Warning describes a single file that could not be loaded.
type Warning struct {
	File   string
	Reason string
}

// frontmatter mirrors the recognized YAML keys in a decision file's header.
type frontmatter struct {
	ID          int      `yaml:"id"`
	UUID        string   `yaml:"uuid"`
	Title       string   `yaml:"title"`
	Status      string   `yaml:"status"`
	Date        string   `yaml:"date"`
	Deciders    []string `yaml:"deciders"`
	Tags        []string `yaml:"tags"`
	ContentHash string   `yaml:"content_hash"` // parsed but ignored; the core recomputes
	GitCommit   string   `yaml:"git_commit"`
	Supersedes  refList  `yaml:"supersedes"`
	Amends      refList  `yaml:"amends"`
	DependsOn   refList  `yaml:"depends_on"`
	RelatedTo   refList  `yaml:"related_to"`
}

// refList accepts either a single YAML scalar integer or a sequence of
// integers and always normalizes to a list, so nothing downstream ever
// branches on the surface form.
type refList []int

func (r *refList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var single int
		if err := node.Decode(&single); err != nil {
			return err
		}
		*r = refList{single}
		return nil
	}
	var list []int
	if err := node.Decode(&list); err != nil {
		return err
	}
	*r = refList(list)
	return nil
}

// Load enumerates the non-recursive *.md entries of dir, parses each into
// a Decision, and returns warnings for files that failed to parse. A
// missing directory is a fatal error; everything else is recovered
// per-file.
func Load(dir string) ([]Decision, []Warning, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var decisions []Decision
	var warnings []Warning

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		d, err := loadFile(path)
		if err != nil {
			warnings = append(warnings, Warning{File: e.Name(), Reason: err.Error()})
			continue
		}
		decisions = append(decisions, *d)
	}

	sort.Slice(decisions, func(i, j int) bool { return decisions[i].ID < decisions[j].ID })

	return decisions, warnings, nil
}

func loadFile(path string) (*Decision, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	fm, body, err := splitFrontmatter(raw)
	if err != nil {
		return nil, err
	}

	var fmVal frontmatter
	if err := yaml.Unmarshal(fm, &fmVal); err != nil {
		return nil, fmt.Errorf("parsing frontmatter: %w", err)
	}

	if fmVal.ID <= 0 {
		return nil, fmt.Errorf("missing or non-positive id")
	}
	if fmVal.Title == "" {
		return nil, fmt.Errorf("missing title")
	}
	if !validStatuses[fmVal.Status] {
		return nil, fmt.Errorf("unknown status %q", fmVal.Status)
	}
	if fmVal.Date == "" {
		return nil, fmt.Errorf("missing date")
	}
	date, err := time.Parse("2006-01-02", fmVal.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", fmVal.Date, err)
	}

	sum := sha256.Sum256(raw)
	hash := hex.EncodeToString(sum[:])

	var edges []Edge
	for _, to := range fmVal.Supersedes {
		edges = append(edges, Edge{Kind: KindSupersedes, To: uint32(to)})
	}
	for _, to := range fmVal.Amends {
		edges = append(edges, Edge{Kind: KindAmends, To: uint32(to)})
	}
	for _, to := range fmVal.DependsOn {
		edges = append(edges, Edge{Kind: KindDependsOn, To: uint32(to)})
	}
	for _, to := range fmVal.RelatedTo {
		edges = append(edges, Edge{Kind: KindRelatedTo, To: uint32(to)})
	}

	return &Decision{
		ID:          uint32(fmVal.ID),
		UUID:        fmVal.UUID,
		Title:       fmVal.Title,
		Status:      fmVal.Status,
		Date:        date,
		Deciders:    fmVal.Deciders,
		Tags:        fmVal.Tags,
		FilePath:    path,
		ContentHash: hash,
		GitCommit:   fmVal.GitCommit,
		Body:        body,
		Edges:       edges,
	}, nil
}

// splitFrontmatter separates the leading "---"-delimited YAML block from
// the markdown body that follows it.
func splitFrontmatter(raw []byte) (fm []byte, body string, err error) {
	text := string(raw)
	lines := strings.Split(text, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return nil, "", fmt.Errorf("missing leading frontmatter delimiter")
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end < 0 {
		return nil, "", fmt.Errorf("missing closing frontmatter delimiter")
	}

	fmText := strings.Join(lines[1:end], "\n")
	bodyText := strings.Join(lines[end+1:], "\n")
	return []byte(fmText), strings.TrimLeft(bodyText, "\n"), nil
}

// ParseID is a small helper exposed for callers (e.g. the CLI) that need
// to parse a decision id from a string argument the same way the loader
// validates one from frontmatter.
func ParseID(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid decision id %q: %w", s, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("invalid decision id %q: must be positive", s)
	}
	return uint32(n), nil
}
