package sandbox

import (
	"container/list"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	_ "modernc.org/sqlite"

	"github.com/duns-scotus/mlpy/internal/analyzer"
	"github.com/duns-scotus/mlpy/internal/logging"
)

// CacheOptions bounds both caches. Zero values select the defaults.
type CacheOptions struct {
	// MaxEntries caps each cache's in-memory entry count (LRU past it).
	MaxEntries int
	// CompileTTL bounds a compilation entry's validity.
	CompileTTL time.Duration
	// ExecuteTTL bounds an execution entry's validity.
	ExecuteTTL time.Duration
}

const (
	defaultCacheEntries = 256
	defaultCompileTTL   = time.Hour
	defaultExecuteTTL   = 10 * time.Minute
)

func (o CacheOptions) withDefaults() CacheOptions {
	if o.MaxEntries <= 0 {
		o.MaxEntries = defaultCacheEntries
	}
	if o.CompileTTL <= 0 {
		o.CompileTTL = defaultCompileTTL
	}
	if o.ExecuteTTL <= 0 {
		o.ExecuteTTL = defaultExecuteTTL
	}
	return o
}

// CompiledEntry is one compilation-cache value: everything transpilation
// produced for a source hash, so a repeat run can skip parse, analysis,
// and generation entirely.
type CompiledEntry struct {
	// SourcePath is the ML file the entry was compiled from; the cache
	// watches its directory and drops the entry on external edits.
	SourcePath string
	Code       string
	MapJSON    []byte
	Issues     []analyzer.Issue
}

// CacheStats is the `mlpy cache` subcommand's report.
type CacheStats struct {
	CompileEntries   int    `json:"compile_entries"`
	ExecutionEntries int    `json:"execution_entries"`
	Hits             uint64 `json:"hits"`
	Misses           uint64 `json:"misses"`
	Path             string `json:"path,omitempty"`
}

type cacheRecord struct {
	key      string
	compiled *CompiledEntry  // compile entries
	result   ExecutionResult // execution entries
	storedAt time.Time
}

// Cache holds the compilation cache (ML source hash → generated code +
// issues) and the execution cache (generated-code hash + input hash →
// ExecutionResult), both LRU-bounded and TTL-expired. The execution
// index additionally persists to a sqlite file so results survive
// process restarts; the compilation cache is memory-only and invalidated
// by an fsnotify watch on each cached source file's directory.
type Cache struct {
	opts   CacheOptions
	dbPath string

	mu         sync.Mutex
	compile    map[string]*list.Element
	compileLRU *list.List
	exec       map[string]*list.Element
	execLRU    *list.List
	byPath     map[string]map[string]bool // source path → compile keys
	hits       uint64
	misses     uint64

	db       *sql.DB
	watcher  *fsnotify.Watcher
	watched  map[string]bool
	loopDone chan struct{}
}

// HashSource returns the hex sha256 of s, the key material for both
// caches.
func HashSource(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ExecutionKey combines the generated-code hash and the input hash into
// one execution-cache key.
func ExecutionKey(codeHash, inputHash string) string {
	return codeHash + ":" + inputHash
}

// NewCache opens (or creates) a cache. dbPath may be empty for a purely
// in-memory cache with no persistence.
func NewCache(dbPath string, opts CacheOptions) (*Cache, error) {
	c := &Cache{
		opts:       opts.withDefaults(),
		dbPath:     dbPath,
		compile:    make(map[string]*list.Element),
		compileLRU: list.New(),
		exec:       make(map[string]*list.Element),
		execLRU:    list.New(),
		byPath:     make(map[string]map[string]bool),
		watched:    make(map[string]bool),
	}

	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("cache: create directory: %w", err)
		}
		db, err := sql.Open("sqlite", dbPath)
		if err != nil {
			return nil, fmt.Errorf("cache: open index: %w", err)
		}
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
			logging.CacheDebug("failed to set sqlite busy_timeout: %v", err)
		}
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			logging.CacheDebug("failed to set sqlite journal_mode=WAL: %v", err)
		}
		if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS executions (
			key TEXT PRIMARY KEY,
			result TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`); err != nil {
			db.Close()
			return nil, fmt.Errorf("cache: create schema: %w", err)
		}
		c.db = db
		if err := c.loadPersisted(); err != nil {
			db.Close()
			return nil, err
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		// Without a watcher, compile entries expire by TTL only.
		logging.CacheDebug("fsnotify unavailable, compile entries rely on TTL only: %v", err)
	} else {
		c.watcher = watcher
		c.loopDone = make(chan struct{})
		go c.watchLoop()
	}
	return c, nil
}

// loadPersisted fills the execution LRU from the sqlite index, dropping
// rows past TTL. Called once, before the cache is shared.
func (c *Cache) loadPersisted() error {
	rows, err := c.db.Query("SELECT key, result, created_at FROM executions ORDER BY created_at ASC")
	if err != nil {
		return fmt.Errorf("cache: load index: %w", err)
	}
	defer rows.Close()

	var expired []string
	now := time.Now()
	for rows.Next() {
		var key, resultJSON string
		var createdAt int64
		if err := rows.Scan(&key, &resultJSON, &createdAt); err != nil {
			return fmt.Errorf("cache: scan index row: %w", err)
		}
		stored := time.Unix(createdAt, 0)
		if now.Sub(stored) > c.opts.ExecuteTTL {
			expired = append(expired, key)
			continue
		}
		var res ExecutionResult
		if err := json.Unmarshal([]byte(resultJSON), &res); err != nil {
			logging.CacheDebug("dropping unreadable persisted entry %s: %v", key, err)
			expired = append(expired, key)
			continue
		}
		rec := &cacheRecord{key: key, result: res, storedAt: stored}
		c.exec[key] = c.execLRU.PushFront(rec)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("cache: load index: %w", err)
	}
	// The single connection must be free again before the deletes below.
	rows.Close()
	for _, key := range expired {
		if _, err := c.db.Exec("DELETE FROM executions WHERE key = ?", key); err != nil {
			logging.CacheDebug("failed to prune expired entry %s: %v", key, err)
		}
	}
	c.pruneIndex(c.trimExecLocked()...)
	logging.CacheDebug("loaded %d persisted execution entries (%d expired)", len(c.exec), len(expired))
	return nil
}

// GetCompiled returns the compilation entry for sourceHash, if present
// and within TTL.
func (c *Cache) GetCompiled(sourceHash string) (*CompiledEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.compile[sourceHash]
	if !ok {
		c.misses++
		return nil, false
	}
	rec := el.Value.(*cacheRecord)
	if time.Since(rec.storedAt) > c.opts.CompileTTL {
		c.removeCompileLocked(sourceHash, el)
		c.misses++
		return nil, false
	}
	c.compileLRU.MoveToFront(el)
	c.hits++
	return rec.compiled, true
}

// PutCompiled stores a compilation entry and begins watching the source
// file's directory so an external edit drops it.
func (c *Cache) PutCompiled(sourceHash string, entry *CompiledEntry) {
	c.mu.Lock()
	if el, ok := c.compile[sourceHash]; ok {
		c.removeCompileLocked(sourceHash, el)
	}
	rec := &cacheRecord{key: sourceHash, compiled: entry, storedAt: time.Now()}
	c.compile[sourceHash] = c.compileLRU.PushFront(rec)
	if entry.SourcePath != "" {
		path := filepath.Clean(entry.SourcePath)
		keys := c.byPath[path]
		if keys == nil {
			keys = make(map[string]bool)
			c.byPath[path] = keys
		}
		keys[sourceHash] = true
	}
	c.trimCompileLocked()
	c.mu.Unlock()

	if entry.SourcePath != "" {
		c.watchDir(filepath.Dir(filepath.Clean(entry.SourcePath)))
	}
}

// GetExecution returns the cached ExecutionResult for a generated-code
// hash and input hash, if present and within TTL.
func (c *Cache) GetExecution(codeHash, inputHash string) (ExecutionResult, bool) {
	key := ExecutionKey(codeHash, inputHash)
	c.mu.Lock()
	el, ok := c.exec[key]
	if !ok {
		c.misses++
		c.mu.Unlock()
		return ExecutionResult{}, false
	}
	rec := el.Value.(*cacheRecord)
	if time.Since(rec.storedAt) > c.opts.ExecuteTTL {
		c.removeExecLocked(key, el)
		c.misses++
		c.mu.Unlock()
		c.pruneIndex(key)
		return ExecutionResult{}, false
	}
	c.execLRU.MoveToFront(el)
	c.hits++
	res := rec.result
	c.mu.Unlock()
	return res, true
}

// PutExecution stores an execution result in memory and, when the result
// serializes cleanly (an ML return value always does; a *Function or
// *Bridge handle does not), in the sqlite index. The index writes happen
// after the lock is released.
func (c *Cache) PutExecution(codeHash, inputHash string, res ExecutionResult) {
	key := ExecutionKey(codeHash, inputHash)
	now := time.Now()

	c.mu.Lock()
	if el, ok := c.exec[key]; ok {
		c.removeExecLocked(key, el)
	}
	rec := &cacheRecord{key: key, result: res, storedAt: now}
	c.exec[key] = c.execLRU.PushFront(rec)
	evicted := c.trimExecLocked()
	c.mu.Unlock()

	c.pruneIndex(evicted...)
	if c.db == nil {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		logging.CacheDebug("execution result for %s not persistable: %v", key, err)
		return
	}
	if _, err := c.db.Exec(
		"INSERT OR REPLACE INTO executions (key, result, created_at) VALUES (?, ?, ?)",
		key, string(data), now.Unix(),
	); err != nil {
		logging.CacheDebug("failed to persist execution entry %s: %v", key, err)
	}
}

// Clear empties both caches and the persisted index.
func (c *Cache) Clear() error {
	c.mu.Lock()
	c.compile = make(map[string]*list.Element)
	c.compileLRU.Init()
	c.exec = make(map[string]*list.Element)
	c.execLRU.Init()
	c.byPath = make(map[string]map[string]bool)
	c.hits = 0
	c.misses = 0
	c.mu.Unlock()

	if c.db != nil {
		if _, err := c.db.Exec("DELETE FROM executions"); err != nil {
			return fmt.Errorf("cache: clear index: %w", err)
		}
	}
	return nil
}

// Stats snapshots entry counts and hit rates.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		CompileEntries:   len(c.compile),
		ExecutionEntries: len(c.exec),
		Hits:             c.hits,
		Misses:           c.misses,
		Path:             c.dbPath,
	}
}

// Close stops the watcher goroutine and closes the sqlite index.
func (c *Cache) Close() error {
	if c.watcher != nil {
		c.watcher.Close()
		<-c.loopDone
	}
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// --- internals ---

// trimCompileLocked evicts least-recently-used compile records past
// MaxEntries. Caller holds c.mu.
func (c *Cache) trimCompileLocked() {
	for c.compileLRU.Len() > c.opts.MaxEntries {
		back := c.compileLRU.Back()
		rec := back.Value.(*cacheRecord)
		c.removeCompileLocked(rec.key, back)
	}
}

// trimExecLocked evicts least-recently-used execution records past
// MaxEntries and returns their keys so the caller can prune the sqlite
// index outside the lock — the locking discipline forbids holding c.mu
// across an I/O boundary.
func (c *Cache) trimExecLocked() []string {
	var evicted []string
	for c.execLRU.Len() > c.opts.MaxEntries {
		back := c.execLRU.Back()
		rec := back.Value.(*cacheRecord)
		c.removeExecLocked(rec.key, back)
		evicted = append(evicted, rec.key)
	}
	return evicted
}

// pruneIndex deletes keys from the persisted execution index. Never
// called with c.mu held.
func (c *Cache) pruneIndex(keys ...string) {
	if c.db == nil || len(keys) == 0 {
		return
	}
	for _, key := range keys {
		if _, err := c.db.Exec("DELETE FROM executions WHERE key = ?", key); err != nil {
			logging.CacheDebug("failed to prune index entry %s: %v", key, err)
		}
	}
}

func (c *Cache) removeCompileLocked(key string, el *list.Element) {
	rec := el.Value.(*cacheRecord)
	c.compileLRU.Remove(el)
	delete(c.compile, key)
	if rec.compiled != nil && rec.compiled.SourcePath != "" {
		path := filepath.Clean(rec.compiled.SourcePath)
		if keys := c.byPath[path]; keys != nil {
			delete(keys, key)
			if len(keys) == 0 {
				delete(c.byPath, path)
			}
		}
	}
}

func (c *Cache) removeExecLocked(key string, el *list.Element) {
	c.execLRU.Remove(el)
	delete(c.exec, key)
}

func (c *Cache) watchDir(dir string) {
	c.mu.Lock()
	if c.watcher == nil || c.watched[dir] {
		c.mu.Unlock()
		return
	}
	c.watched[dir] = true
	c.mu.Unlock()

	if err := c.watcher.Add(dir); err != nil {
		logging.CacheDebug("failed to watch %s: %v", dir, err)
	}
}

// watchLoop drops compile entries whose source file changed on disk.
// Exits when the watcher is closed.
func (c *Cache) watchLoop() {
	defer close(c.loopDone)
	for {
		select {
		case ev, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				c.invalidateSource(filepath.Clean(ev.Name))
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			logging.CacheDebug("watch error: %v", err)
		}
	}
}

func (c *Cache) invalidateSource(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := c.byPath[path]
	if len(keys) == 0 {
		return
	}
	logging.CacheDebug("invalidating %d compile entr(ies) for %s", len(keys), path)
	for key := range keys {
		if el, ok := c.compile[key]; ok {
			c.removeCompileLocked(key, el)
		}
	}
	delete(c.byPath, path)
}
