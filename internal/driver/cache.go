package driver

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"hlsched/internal/cfg"
	"hlsched/internal/diag"
	"hlsched/internal/hir"
	"hlsched/internal/quot"
)

// Bump when cachedResult changes shape.
const cacheSchemaVersion uint16 = 1

// Digest is a cache key.
type Digest [32]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Cache stores finished function results on disk, one msgpack file per key.
// Safe for concurrent use.
type Cache struct {
	mu  sync.RWMutex
	dir string
}

type cachedResult struct {
	Schema  uint16
	Func    string
	Blocks  []*hir.Block
	Edges   []cfg.Edge
	Params  []hir.Dest
	Results []hir.Dest
	Events  map[hir.BlockID]quot.Events
	Diags   []diag.Diagnostic
}

// OpenCache creates dir when needed.
func OpenCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

// cacheKey covers the whole document, so editing a callee or a spec
// invalidates every function of the file.
func cacheKey(prog *Program, fn string, opts *Options) Digest {
	h := sha256.New()
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], cacheSchemaVersion)
	h.Write(buf[:])
	h.Write(prog.Hash[:])
	h.Write([]byte(fn))
	h.Write([]byte{0})
	for _, s := range hir.Sorts {
		if opts.enabled(s) {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	}
	h.Write([]byte{byte(opts.Merge)})
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

func (c *Cache) pathFor(key Digest) string {
	return filepath.Join(c.dir, "funcs", key.String()+".mp")
}

func (c *Cache) put(key Digest, res *Result) error {
	if c == nil {
		return nil
	}
	payload := &cachedResult{
		Schema:  cacheSchemaVersion,
		Func:    res.Func,
		Params:  res.Params,
		Results: res.Results,
		Events:  res.Events,
		Diags:   res.Bag.Items(),
	}
	if res.Graph != nil {
		payload.Blocks = res.Graph.Blocks
		payload.Edges = res.Graph.Edges
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if err := msgpack.NewEncoder(f).Encode(payload); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	// atomic replace
	return os.Rename(tmp, p)
}

// get returns false without an error on a miss or a stale schema.
func (c *Cache) get(key Digest, maxDiagnostics int) (*Result, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()
	var payload cachedResult
	if err := msgpack.NewDecoder(f).Decode(&payload); err != nil {
		return nil, false, err
	}
	if payload.Schema != cacheSchemaVersion {
		return nil, false, nil
	}
	res := &Result{
		Func:    payload.Func,
		Params:  payload.Params,
		Results: payload.Results,
		Events:  payload.Events,
		Bag:     diag.NewBag(max(maxDiagnostics, len(payload.Diags))),
		Cached:  true,
	}
	if payload.Blocks != nil {
		res.Graph = cfg.New(payload.Blocks, payload.Edges)
	}
	for _, d := range payload.Diags {
		res.Bag.Add(d)
	}
	return res, true, nil
}

// Clear removes every cached result.
func (c *Cache) Clear() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return os.RemoveAll(filepath.Join(c.dir, "funcs"))
}
