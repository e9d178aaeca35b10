package core

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"mumpsdb/cache"
)

// ErrEmptyGlobalName rejects operations without a global name
var ErrEmptyGlobalName = errors.New("global name cannot be empty")

// SearchResult is one (global, path, value) triple returned by searches
type SearchResult struct {
	Global string
	Path   Path
	Value  Value
}

// Stats is the stable set of store statistics
type Stats struct {
	GlobalCount int
	TotalNodes  int
	MemoryUsage int64
	CacheSize   int
	IndexSize   int
}

// Store is the map of global name to tree root with store-level read/write
// coordination. Writes take the exclusive lock; reads take the shared
// lock. Readers see either the pre- or post-state of a mutation, atomically
// at the granularity of one public method.
type Store struct {
	mu      sync.RWMutex
	globals map[string]*TreeNode
	index   *Index
	cache   *cache.QueryCache
}

// NewStore creates an empty store backed by the given query cache
func NewStore(queryCache *cache.QueryCache) *Store {
	return &Store{
		globals: make(map[string]*TreeNode),
		index:   NewIndex(),
		cache:   queryCache,
	}
}

// NormalizeGlobalName prefixes '^' when absent; storage is keyed by the
// leading-caret form.
func NormalizeGlobalName(global string) string {
	if strings.HasPrefix(global, "^") {
		return global
	}
	return "^" + global
}

func validateGlobalName(global string) error {
	if strings.TrimSpace(global) == "" {
		return ErrEmptyGlobalName
	}
	return nil
}

func cacheKey(global string, path Path) string {
	if len(path) == 0 {
		return global
	}
	return global + ":" + path.Key()
}

// Set writes a value at the path under the global, creating the global on
// first write. Indexes and the query cache are refreshed under the same
// exclusive section.
func (s *Store) Set(global string, path Path, v Value) error {
	if err := validateGlobalName(global); err != nil {
		return err
	}
	name := NormalizeGlobalName(global)
	path = NormalizePath(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	root, ok := s.globals[name]
	if !ok {
		root = NewTreeNode()
		s.globals[name] = root
	}

	old := root.Get(path)
	root.Set(path, v)

	key := path.Key()
	if !old.IsNull() && !old.Equal(v) {
		s.index.RemovePath(name, key, old.Text())
	}
	if !v.IsNull() {
		s.index.Add(name, key, v.Text())
	}

	if s.cache != nil {
		if v.IsNull() {
			s.cache.Invalidate(cacheKey(name, path))
		} else {
			s.cache.Put(cacheKey(name, path), v)
		}
	}
	return nil
}

// Get returns the value at the path, or Null when any edge is missing.
// Hits are served from the query cache when present.
func (s *Store) Get(global string, path Path) (Value, error) {
	if err := validateGlobalName(global); err != nil {
		return Null, err
	}
	name := NormalizeGlobalName(global)
	path = NormalizePath(path)

	if s.cache != nil {
		if cached, ok := s.cache.Get(cacheKey(name, path)); ok {
			if v, ok := cached.(Value); ok {
				return v, nil
			}
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	root, ok := s.globals[name]
	if !ok {
		return Null, nil
	}
	v := root.Get(path)
	if s.cache != nil && !v.IsNull() {
		s.cache.Put(cacheKey(name, path), v)
	}
	return v, nil
}

// Kill removes the path's subtree; the empty path removes the whole
// global. Index entries for every vanished value are dropped and cached
// reads under the killed subtree are invalidated.
func (s *Store) Kill(global string, path Path) error {
	if err := validateGlobalName(global); err != nil {
		return err
	}
	name := NormalizeGlobalName(global)
	path = NormalizePath(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	root, ok := s.globals[name]
	if !ok {
		return nil
	}

	if len(path) == 0 {
		delete(s.globals, name)
		s.index.RemoveGlobal(name)
		if s.cache != nil {
			s.cache.Invalidate(name)
			s.cache.InvalidatePrefix(name + ":")
		}
		return nil
	}

	node := root.Locate(path)
	if node == nil {
		return nil
	}
	for _, pv := range node.AllPaths() {
		full := append(path.Clone(), pv.Path...)
		s.index.RemovePath(name, full.Key(), pv.Value.Text())
	}

	if root.Remove(path) {
		delete(s.globals, name)
	}

	if s.cache != nil {
		key := cacheKey(name, path)
		s.cache.Invalidate(key)
		s.cache.InvalidatePrefix(key + ":")
	}
	return nil
}

// Query returns the (remainder path, value) pairs below the addressed node
// up to the given depth.
func (s *Store) Query(global string, path Path, depth int) ([]QueryResult, error) {
	if err := validateGlobalName(global); err != nil {
		return nil, err
	}
	name := NormalizeGlobalName(global)
	path = NormalizePath(path)

	s.mu.RLock()
	defer s.mu.RUnlock()

	root, ok := s.globals[name]
	if !ok {
		return nil, nil
	}
	return root.Query(path, depth), nil
}

// GlobalNames returns every global name in sorted order
func (s *Store) GlobalNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.globals))
	for name := range s.globals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DumpGlobal returns every non-null node of the subtree at the path, with
// full subscript paths from the global root, in subscript order. Used by
// the ZWRITE rendering.
func (s *Store) DumpGlobal(global string, path Path) ([]PathValue, error) {
	if err := validateGlobalName(global); err != nil {
		return nil, err
	}
	name := NormalizeGlobalName(global)
	path = NormalizePath(path)

	s.mu.RLock()
	defer s.mu.RUnlock()

	root, ok := s.globals[name]
	if !ok {
		return nil, nil
	}
	node := root.Locate(path)
	if node == nil {
		return nil, nil
	}

	var out []PathValue
	for _, pv := range node.AllPaths() {
		full := append(path.Clone(), pv.Path...)
		out = append(out, PathValue{Path: full, Value: pv.Value})
	}
	return out, nil
}

// ChildSubscripts returns the ordered direct children of the node at the
// prefix path. The ordered-sibling traversal behind $ORDER builds on this.
func (s *Store) ChildSubscripts(global string, prefix Path) []Subscript {
	name := NormalizeGlobalName(global)
	prefix = NormalizePath(prefix)

	s.mu.RLock()
	defer s.mu.RUnlock()

	root, ok := s.globals[name]
	if !ok {
		return nil
	}
	node := root.Locate(prefix)
	if node == nil {
		return nil
	}
	return node.ChildSubscripts()
}

// FastSearch consults the value index and re-reads each candidate global's
// tree, so every returned triple is live. Stale candidates are pruned
// opportunistically.
func (s *Store) FastSearch(valueText string) []SearchResult {
	candidates := s.index.Candidates(valueText)
	if len(candidates) == 0 {
		return nil
	}

	var results []SearchResult
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, global := range candidates {
		root, ok := s.globals[global]
		if !ok {
			s.index.RemoveGlobal(global)
			continue
		}
		matches := root.FindValues(valueText)
		if len(matches) == 0 {
			s.index.DropCandidate(global, valueText)
			continue
		}
		for _, pv := range matches {
			results = append(results, SearchResult{Global: global, Path: pv.Path, Value: pv.Value})
		}
	}
	return results
}

// ExactSearch scans the store for values whose text equals the query,
// optionally limited to one global.
func (s *Store) ExactSearch(valueText, global string) []SearchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.globals))
	if global != "" {
		names = append(names, NormalizeGlobalName(global))
	} else {
		for name := range s.globals {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	var results []SearchResult
	for _, name := range names {
		root, ok := s.globals[name]
		if !ok {
			continue
		}
		for _, pv := range root.FindValues(valueText) {
			results = append(results, SearchResult{Global: name, Path: pv.Path, Value: pv.Value})
		}
	}
	return results
}

// Begin deep-copies the live store into a new transaction
func (s *Store) Begin() *Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransaction(s.globals)
}

// Commit atomically replaces the live store with the transaction's private
// map. Indexes are rebuilt from the committed state and the query cache is
// purged.
func (s *Store) Commit(tx *Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.globals = tx.globals
	s.index.Rebuild(s.globals)
	if s.cache != nil {
		s.cache.Purge()
	}
}

// Export returns a deep copy of the whole store, for snapshots
func (s *Store) Export() map[string]*TreeNode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*TreeNode, len(s.globals))
	for name, root := range s.globals {
		out[name] = root.DeepCopy()
	}
	return out
}

// Restore replaces the whole store, rebuilding indexes and purging the
// cache. Used by snapshot load.
func (s *Store) Restore(globals map[string]*TreeNode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.globals = globals
	s.index.Rebuild(s.globals)
	if s.cache != nil {
		s.cache.Purge()
	}
}

// Stats returns the stable statistics set
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totalNodes := 0
	for _, root := range s.globals {
		totalNodes += root.CountNodes()
	}
	cacheSize := 0
	if s.cache != nil {
		cacheSize = s.cache.Len()
	}
	return Stats{
		GlobalCount: len(s.globals),
		TotalNodes:  totalNodes,
		MemoryUsage: int64(totalNodes) * 100,
		CacheSize:   cacheSize,
		IndexSize:   s.index.Size(),
	}
}
