// Package secrets keeps API credentials in Redis. Secrets live as JSON
// files under a local directory; they are concatenated into one document
// keyed by file base name and loaded into Redis, from where every module
// reads at request time.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"
)

const redisKey = "secrets"

// Document is the concatenated secrets dictionary:
// {"secrets": {"<module>": {...}}}.
type Document struct {
	Secrets map[string]map[string]any `json:"secrets"`
}

type Store struct {
	rdb *redis.Client
	dir string
}

func NewStore(rdb *redis.Client, dir string) *Store {
	return &Store{rdb: rdb, dir: dir}
}

// LoadDir walks dir recursively and merges every parseable JSON file into
// one document, keyed by file name without extension.
func LoadDir(dir string) (Document, error) {
	doc := Document{Secrets: map[string]map[string]any{}}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return doc, err
	}
	err = filepath.Walk(abs, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read secrets file %s: %w", path, err)
		}
		var contents map[string]any
		if err := json.Unmarshal(data, &contents); err != nil {
			// Skip non-JSON files rather than failing the whole load.
			return nil
		}
		// Module name is the basename up to the first dot, so
		// api.keys.json lands under "api".
		name, _, _ := strings.Cut(filepath.Base(path), ".")
		doc.Secrets[name] = contents
		return nil
	})
	return doc, err
}

// Reload reads the secrets directory and replaces the Redis document.
func (s *Store) Reload(ctx context.Context) error {
	doc, err := LoadDir(s.dir)
	if err != nil {
		return fmt.Errorf("load secrets dir %s: %w", s.dir, err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, redisKey, data, 0).Err(); err != nil {
		return fmt.Errorf("store secrets in redis: %w", err)
	}
	return nil
}

// Document returns the secrets dictionary, loading it from disk first if
// Redis does not have it yet.
func (s *Store) Document(ctx context.Context) (Document, error) {
	var doc Document
	data, err := s.rdb.Get(ctx, redisKey).Bytes()
	if err == redis.Nil {
		if err := s.Reload(ctx); err != nil {
			return doc, err
		}
		data, err = s.rdb.Get(ctx, redisKey).Bytes()
	}
	if err != nil {
		return doc, fmt.Errorf("get secrets from redis: %w", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("decode secrets document: %w", err)
	}
	return doc, nil
}

// Value returns one secret for a module, e.g. Value(ctx, "gemini", "api_key").
func (s *Store) Value(ctx context.Context, module, field string) (string, error) {
	doc, err := s.Document(ctx)
	if err != nil {
		return "", err
	}
	v, ok := doc.Secrets[module][field]
	if !ok {
		return "", fmt.Errorf("secret %s.%s not found", module, field)
	}
	str, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("secret %s.%s is not a string", module, field)
	}
	return str, nil
}

// Authorized reports whether the request's token header matches the
// module's api_token. Any lookup failure denies access.
func (s *Store) Authorized(r *http.Request, module string) bool {
	token := r.Header.Get("token")
	if token == "" {
		return false
	}
	want, err := s.Value(r.Context(), module, "api_token")
	if err != nil {
		return false
	}
	return token == want
}
