package pipeline

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// EmbeddingCache keeps embeddings in memory and optionally on disk.
// Entries are keyed by model and text, so caches of different models never mix.
type EmbeddingCache struct {
	mu      sync.RWMutex
	m       map[string][]float32
	dir     string
	modelID string
}

// NewEmbeddingCache creates a cache for modelID. An empty dir disables the disk cache.
func NewEmbeddingCache(dir string, modelID string) (*EmbeddingCache, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}
	return &EmbeddingCache{m: make(map[string][]float32), dir: dir, modelID: modelID}, nil
}

// Wrap returns an EmbedFunc serving repeated texts from the cache.
// Every call returns its own copy of the embedding.
func (c *EmbeddingCache) Wrap(embed EmbedFunc) EmbedFunc {
	return func(text string) ([]float32, error) {
		key := c.key(text)
		if v, ok := c.get(key); ok {
			return v, nil
		}
		if v, ok, err := c.load(key); err == nil && ok {
			c.put(key, cloneVector(v))
			return v, nil
		}

		v, err := embed(text)
		if err != nil {
			return nil, err
		}
		c.put(key, cloneVector(v))
		// A failed disk write only costs a recomputation later
		_ = c.save(key, v)

		return v, nil
	}
}

// Len returns the number of embeddings held in memory
func (c *EmbeddingCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

func (c *EmbeddingCache) key(text string) string {
	h := sha1.Sum([]byte(c.modelID + "|" + text))
	return hex.EncodeToString(h[:])
}

func (c *EmbeddingCache) get(key string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[key]
	if !ok {
		return nil, false
	}
	return cloneVector(v), true
}

func (c *EmbeddingCache) put(key string, v []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = v
}

// load reads a cache file: uint32 length followed by little endian float32 values
func (c *EmbeddingCache) load(key string) ([]float32, bool, error) {
	if c.dir == "" {
		return nil, false, nil
	}
	path := filepath.Join(c.dir, key+".bin")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if len(data) < 4 {
		return nil, false, fmt.Errorf("cache file broken: %s", path)
	}
	length := binary.LittleEndian.Uint32(data[:4])
	need := int(length) * 4
	if len(data) < 4+need {
		return nil, false, fmt.Errorf("cache truncated: %s", path)
	}
	vec := make([]float32, int(length))
	if err := binary.Read(bytes.NewReader(data[4:4+need]), binary.LittleEndian, vec); err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

func (c *EmbeddingCache) save(key string, v []float32) error {
	if c.dir == "" {
		return nil
	}
	buf := &bytes.Buffer{}
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(v)))
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(c.dir, key+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(c.dir, key+".bin"))
}

func cloneVector(v []float32) []float32 {
	return append([]float32(nil), v...)
}
