package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/lychee-technology/tempora"
)

// FileEraRegistry loads era descriptors from JSON files for tests and
// offline planning, reading a directory's files in sorted name order.
type FileEraRegistry struct {
	mu   sync.RWMutex
	dir  string
	keys []string
	byKey map[string]*tempora.EraDescriptor
}

// NewFileEraRegistry loads every "*.era.json" file in dir.
func NewFileEraRegistry(dir string) (*FileEraRegistry, error) {
	reg := &FileEraRegistry{
		dir:   dir,
		byKey: make(map[string]*tempora.EraDescriptor),
	}
	if err := reg.load(); err != nil {
		return nil, err
	}
	return reg, nil
}

type eraDescriptorDoc struct {
	Schema     string     `json:"schema"`
	Table      string     `json:"table"`
	EraName    string     `json:"era_name"`
	Identity   []string   `json:"identity"`
	LookupKeys [][]string `json:"lookup_keys"`
	Mode       string     `json:"mode"`
	Domain     string     `json:"domain"`
	ValidFrom  string     `json:"valid_from"`
	ValidUntil string     `json:"valid_until"`
	ValidTo    string     `json:"valid_to"`
	Validity   string     `json:"validity"`
	RangeCtor  string     `json:"range_ctor"`
	Ephemeral  []string   `json:"ephemeral"`
}

func (r *FileEraRegistry) load() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("read era directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".era.json") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files) // deterministic load order

	for _, name := range files {
		raw, err := os.ReadFile(filepath.Join(r.dir, name))
		if err != nil {
			return fmt.Errorf("read era file %s: %w", name, err)
		}

		var asMap map[string]any
		if err := json.Unmarshal(raw, &asMap); err != nil {
			return fmt.Errorf("parse era file %s: %w", name, err)
		}
		if err := tempora.ValidateEraDescriptorDocument(asMap); err != nil {
			return fmt.Errorf("invalid era descriptor %s: %w", name, err)
		}

		var doc eraDescriptorDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("decode era file %s: %w", name, err)
		}

		desc := &tempora.EraDescriptor{
			Schema:     doc.Schema,
			Table:      doc.Table,
			EraName:    doc.EraName,
			Identity:   doc.Identity,
			LookupKeys: doc.LookupKeys,
			Mode:       tempora.IntervalMode(doc.Mode),
			ValidFrom:  doc.ValidFrom,
			ValidUntil: doc.ValidUntil,
			ValidTo:    doc.ValidTo,
			Validity:   doc.Validity,
			Domain:     tempora.RangeDomain(doc.Domain),
			RangeCtor:  doc.RangeCtor,
			Ephemeral:  doc.Ephemeral,
		}
		key := eraCacheKey(desc.Schema, desc.Table, desc.EraName)
		r.byKey[key] = desc
		r.keys = append(r.keys, key)
	}

	return nil
}

// GetEraDescriptor implements tempora.EraRegistry.
func (r *FileEraRegistry) GetEraDescriptor(schema, table, eraName string) (*tempora.EraDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byKey[eraCacheKey(schema, table, eraName)]
	if !ok {
		return nil, tempora.NewEraNotFoundError(schema, table, eraName)
	}
	return d, nil
}

// ListEras implements tempora.EraRegistry.
func (r *FileEraRegistry) ListEras() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	sort.Strings(out)
	return out
}

// Resolve adapts FileEraRegistry to the MetadataResolver interface used by
// the merge engine, for offline/test wiring that bypasses Postgres.
func (r *FileEraRegistry) Resolve(_ context.Context, schema, table, eraName string) (*tempora.EraDescriptor, error) {
	return r.GetEraDescriptor(schema, table, eraName)
}
