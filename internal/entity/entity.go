// Package entity implements the metadata repository's entity graph:
// JSON-schema-validated TOML records with forward/reverse reference
// indices and cycle-safe traversal.
package entity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/ruyisdk/ruyi-go/internal/ruyierr"
)

// Entity is one typed, schema-validated record loaded from
// entities/<type>/<id>.toml.
type Entity struct {
	Type string
	ID   string
	Data map[string]any

	reverseRefs map[string]bool
}

// Ref returns the entity's "type:id" reference string.
func (e *Entity) Ref() string { return e.Type + ":" + e.ID }

// DisplayName returns the entity's human-readable name, if its typed
// section declares a string "display_name".
func (e *Entity) DisplayName() string {
	section, _ := e.Data[e.Type].(map[string]any)
	if name, ok := section["display_name"].(string); ok {
		return name
	}
	return ""
}

// UniqueAmongTypeDuringTraversal reports whether traversal should only
// ever surface one entity of this entity's type per Traverse call.
func (e *Entity) UniqueAmongTypeDuringTraversal() bool {
	if v, ok := e.Data["unique_among_type_during_traversal"].(bool); ok {
		return v
	}
	return false
}

// RelatedRefs returns the entity's declared forward references.
func (e *Entity) RelatedRefs() []string {
	raw, ok := e.Data["related"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ReverseRefs returns the refs of entities that declared this entity as
// a forward "related" target.
func (e *Entity) ReverseRefs() []string {
	out := make([]string, 0, len(e.reverseRefs))
	for r := range e.reverseRefs {
		out = append(out, r)
	}
	return out
}

// Store holds every schema-validated entity loaded from a repo's
// entities/ directory, plus the derived reverse-ref index.
type Store struct {
	root string

	schemas    map[string]*jsonschema.Schema
	entities   map[string]map[string]*Entity // type -> id -> entity
	entityList []*Entity
}

// NewStore loads and validates every entity under root (a repo's
// entities/ directory), compiling schemas from root/_schemas/*.jsonschema.
func NewStore(root string) (*Store, error) {
	s := &Store{
		root:     root,
		schemas:  make(map[string]*jsonschema.Schema),
		entities: make(map[string]map[string]*Entity),
	}
	if err := s.discoverSchemas(); err != nil {
		return nil, err
	}
	if err := s.loadAll(); err != nil {
		return nil, err
	}
	s.buildReverseIndex()
	return s, nil
}

func (s *Store) schemasRoot() string { return filepath.Join(s.root, "_schemas") }

func (s *Store) discoverSchemas() error {
	dir := s.schemasRoot()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonschema") {
			continue
		}
		entityType := strings.TrimSuffix(e.Name(), ".jsonschema")
		path := filepath.Join(dir, e.Name())

		compiler := jsonschema.NewCompiler()
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		doc, err := jsonschema.UnmarshalJSON(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("decoding schema %s: %w", path, err)
		}
		if err := compiler.AddResource(path, doc); err != nil {
			return fmt.Errorf("adding schema resource %s: %w", path, err)
		}
		schema, err := compiler.Compile(path)
		if err != nil {
			return fmt.Errorf("compiling schema %s: %w", path, err)
		}
		s.schemas[entityType] = schema
		s.entities[entityType] = make(map[string]*Entity)
	}
	return nil
}

func (s *Store) loadAll() error {
	for entityType := range s.schemas {
		typeDir := filepath.Join(s.root, entityType)
		entries, err := os.ReadDir(typeDir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return err
		}

		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".toml") {
				continue
			}
			entityID := strings.TrimSuffix(e.Name(), ".toml")
			path := filepath.Join(typeDir, e.Name())

			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			var parsed map[string]any
			if _, err := toml.Decode(string(data), &parsed); err != nil {
				return fmt.Errorf("parsing entity %s: %w", path, err)
			}

			if schema, ok := s.schemas[entityType]; ok {
				if err := schema.Validate(toJSONCompatible(parsed)); err != nil {
					return ruyierr.New("entity", ruyierr.EntityValidationError, entityType+":"+entityID,
						fmt.Sprintf("entity %s:%s failed schema validation: %v", entityType, entityID, err), err)
				}
			}

			ent := &Entity{Type: entityType, ID: entityID, Data: parsed, reverseRefs: make(map[string]bool)}
			s.entities[entityType][entityID] = ent
			s.entityList = append(s.entityList, ent)
		}
	}
	return nil
}

func (s *Store) buildReverseIndex() {
	for _, e := range s.entityList {
		for _, ref := range e.RelatedRefs() {
			if target := s.GetByRef(ref); target != nil {
				target.reverseRefs[e.Ref()] = true
			}
		}
	}
}

// toJSONCompatible recursively converts TOML-decoded values (which can
// include int64/time.Time) into a form jsonschema's validator accepts
// (map[string]any / []any / string / float64 / bool).
func toJSONCompatible(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = toJSONCompatible(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = toJSONCompatible(vv)
		}
		return out
	case int64:
		return float64(t)
	default:
		return v
	}
}

// EntityTypes returns every entity type discovered from schemas.
func (s *Store) EntityTypes() []string {
	out := make([]string, 0, len(s.schemas))
	for t := range s.schemas {
		out = append(out, t)
	}
	return out
}

// Get returns an entity by (type, id).
func (s *Store) Get(entityType, id string) *Entity {
	return s.entities[entityType][id]
}

// GetByRef resolves a "type:id" reference.
func (s *Store) GetByRef(ref string) *Entity {
	i := strings.IndexByte(ref, ':')
	if i < 0 {
		return nil
	}
	return s.Get(ref[:i], ref[i+1:])
}

// IterEntities returns every entity, optionally filtered to one type.
func (s *Store) IterEntities(entityType string) []*Entity {
	if entityType == "" {
		return append([]*Entity{}, s.entityList...)
	}
	out := make([]*Entity, 0, len(s.entities[entityType]))
	for _, e := range s.entities[entityType] {
		out = append(out, e)
	}
	return out
}

// ListRelated returns the entities directly related to e, combining
// forward and/or reverse refs per the requested direction.
func (s *Store) ListRelated(e *Entity, forward, reverse bool) []*Entity {
	var out []*Entity
	if forward {
		for _, ref := range e.RelatedRefs() {
			if t := s.GetByRef(ref); t != nil {
				out = append(out, t)
			}
		}
	}
	if reverse {
		for ref := range e.reverseRefs {
			if t := s.GetByRef(ref); t != nil {
				out = append(out, t)
			}
		}
	}
	return out
}

// TraverseOptions configures Traverse.
type TraverseOptions struct {
	Forward       bool
	Reverse       bool
	Types         map[string]bool // nil means unfiltered
	Transitive    bool
	Unidirectional bool // when true, recursion never crosses back along the opposite direction
}

// Traverse walks the entity graph from start per spec.md §4.8: a
// visited set prevents cycles, an optional type filter restricts what's
// yielded, transitive mode recurses through every yielded entity, and
// entities whose type declares unique_among_type_during_traversal are
// counted at most once per traversal (per type).
func (s *Store) Traverse(start *Entity, opts TraverseOptions) []*Entity {
	visited := map[string]bool{start.Ref(): true}
	seenUniqueType := map[string]bool{}
	var out []*Entity

	var walk func(cur *Entity, fwd, rev bool)
	walk = func(cur *Entity, fwd, rev bool) {
		for _, dirFwd := range []bool{true, false} {
			if (dirFwd && !fwd) || (!dirFwd && !rev) {
				continue
			}
			for _, rel := range s.ListRelated(cur, dirFwd, !dirFwd) {
				if visited[rel.Ref()] {
					continue
				}
				if rel.UniqueAmongTypeDuringTraversal() {
					if seenUniqueType[rel.Type] {
						visited[rel.Ref()] = true
						continue
					}
					seenUniqueType[rel.Type] = true
				}
				visited[rel.Ref()] = true

				yield := opts.Types == nil || opts.Types[rel.Type]
				if yield {
					out = append(out, rel)
				}
				if opts.Transitive {
					if opts.Unidirectional {
						// Recurse using only the same direction we arrived by,
						// so a reverse-only traversal never turns around and
						// walks back along forward refs (or vice versa).
						walk(rel, dirFwd, !dirFwd)
					} else {
						walk(rel, opts.Forward, opts.Reverse)
					}
				}
			}
		}
	}
	walk(start, opts.Forward, opts.Reverse)
	return out
}

// IsRelatedTo reports whether dst is reachable from src under the given
// traversal policy.
func (s *Store) IsRelatedTo(srcRef, dstRef string, transitive, unidirectional bool) (bool, error) {
	src := s.GetByRef(srcRef)
	if src == nil {
		return false, fmt.Errorf("entity not found: %s", srcRef)
	}
	related := s.Traverse(src, TraverseOptions{Forward: true, Reverse: true, Transitive: transitive, Unidirectional: unidirectional})
	for _, e := range related {
		if e.Ref() == dstRef {
			return true, nil
		}
	}
	return false, nil
}
