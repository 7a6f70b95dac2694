// Package hierarchy rebuilds a category tree from flattened breadcrumb paths.
//
// A breadcrumb such as "Men>Shirts" registers "Men" and then "Men>Shirts",
// with the second node pointing at the first. Every id is emitted once, the
// first time it is seen; later paths sharing a prefix reuse the existing node
// as a parent. Ids are either derived from the path itself (self-deriving
// mode) or looked up from an external key -> id map (lookup mode), where the
// key is the concatenation of the normalized segments.
package hierarchy

import (
	"errors"
	"fmt"
	"strings"

	"catalog/importer/internal/domain"

	log "github.com/sirupsen/logrus"
)

const (
	PathDelimiter      = ">"
	MultiPathDelimiter = "|"
)

var ErrEmptyPath = errors.New("breadcrumb path has no usable segments")

// MissingKeyError reports a breadcrumb prefix that has no entry in the id lookup.
type MissingKeyError struct {
	Key  string
	Path string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("no category id for key %q (path %q)", e.Key, e.Path)
}

// Tree is the deduplicated category set in first-seen order.
type Tree struct {
	Nodes []domain.CategoryNode
	IDs   []string
}

// Levels groups nodes by depth, roots first. Order inside a level follows
// the tree order.
func (t *Tree) Levels() [][]domain.CategoryNode {
	var levels [][]domain.CategoryNode
	for _, node := range t.Nodes {
		for len(levels) <= node.Depth {
			levels = append(levels, nil)
		}
		levels[node.Depth] = append(levels[node.Depth], node)
	}
	return levels
}

type Builder struct {
	lookup map[string]string
	nodes  []domain.CategoryNode
	ids    []string
	// depths records every emitted id with its depth in the tree.
	depths map[string]int
}

// NewBuilder returns a builder in lookup mode when lookup is non-nil and in
// self-deriving mode otherwise.
func NewBuilder(lookup map[string]string) *Builder {
	return &Builder{
		lookup: lookup,
		depths: make(map[string]int),
	}
}

// segment is one resolved step of a path.
type segment struct {
	id   string
	name string
}

func (b *Builder) walk(path string) ([]segment, error) {
	var (
		key  strings.Builder
		segs []segment
	)

	for _, label := range strings.Split(path, PathDelimiter) {
		token := NormalizeID(label)
		if token == "" {
			continue
		}
		key.WriteString(token)

		id := key.String()
		if b.lookup != nil {
			externalID, ok := b.lookup[id]
			if !ok {
				return segs, &MissingKeyError{Key: id, Path: path}
			}
			id = externalID
		}

		segs = append(segs, segment{id: id, name: DisplayName(label)})
	}

	if len(segs) == 0 {
		return nil, ErrEmptyPath
	}
	return segs, nil
}

// AddPath registers every segment of path and returns the id of its leaf.
// Segments resolved before a lookup miss stay registered.
func (b *Builder) AddPath(path string) (string, error) {
	segs, err := b.walk(path)

	// A node sits one level below wherever its parent was first emitted, so
	// colliding self-derived ids ("Men>Shirts", "MenShirts>Slim") still
	// keep children on a deeper level than their parent.
	parentID := ""
	for _, seg := range segs {
		if _, ok := b.depths[seg.id]; !ok {
			depth := 0
			if parentID != "" {
				depth = b.depths[parentID] + 1
			}
			b.depths[seg.id] = depth
			b.ids = append(b.ids, seg.id)
			b.nodes = append(b.nodes, domain.CategoryNode{
				ID:       seg.id,
				Name:     seg.name,
				ParentID: parentID,
				Depth:    depth,
			})
		}
		parentID = seg.id
	}

	if err != nil {
		return "", err
	}
	return parentID, nil
}

// AddRecord registers each "|"-separated path of a hierarchy field and
// returns the leaf ids of the paths that resolved.
func (b *Builder) AddRecord(field string) ([]string, []error) {
	var (
		leaves []string
		errs   []error
	)

	for _, path := range SplitPaths(field) {
		leaf, err := b.AddPath(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		leaves = append(leaves, leaf)
	}

	return leaves, errs
}

// Resolve returns the leaf id of path without registering anything.
func (b *Builder) Resolve(path string) (string, error) {
	segs, err := b.walk(path)
	if err != nil {
		return "", err
	}
	return segs[len(segs)-1].id, nil
}

func (b *Builder) Tree() *Tree {
	return &Tree{
		Nodes: append([]domain.CategoryNode(nil), b.nodes...),
		IDs:   append([]string(nil), b.ids...),
	}
}

// SplitPaths splits a hierarchy field into its individual breadcrumb paths,
// dropping blanks.
func SplitPaths(field string) []string {
	var paths []string
	for _, p := range strings.Split(field, MultiPathDelimiter) {
		if strings.TrimSpace(p) == "" {
			continue
		}
		paths = append(paths, p)
	}
	return paths
}

// LookupFromRows indexes category rows by their concatenated normalized
// breadcrumb. The first row for a key wins.
func LookupFromRows(rows []domain.CategoryRow) map[string]string {
	lookup := make(map[string]string, len(rows))
	for _, row := range rows {
		// ">" is stripped by NormalizeID, so this equals the per-segment concatenation.
		key := NormalizeID(row.Breadcrumb)
		if key == "" {
			log.Warnf("⚠️ Category row %d has an empty breadcrumb key, skipping", row.Line)
			continue
		}
		if existing, ok := lookup[key]; ok {
			log.Warnf("⚠️ Category row %d repeats key %q (already mapped to %s), keeping the first", row.Line, key, existing)
			continue
		}
		lookup[key] = row.ID
	}
	return lookup
}
