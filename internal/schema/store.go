// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/docbridge/docbridge/internal/dbrerr"
	"github.com/docbridge/docbridge/internal/document"
	"github.com/docbridge/docbridge/internal/log"
)

var tracer = otel.Tracer("github.com/docbridge/docbridge/internal/schema")

// Event is emitted by Store.Watch when another process persists a new schema version.
type Event struct {
	SchemaName string
	Version    int
}

// Store is the versioned, file-backed Schema Store (C5, §3.7): schemas are created once
// per (schema_name, version) and are thereafter immutable. It optionally read-through
// caches in Redis and can watch its directory for versions written by other processes.
type Store struct {
	dir    string
	cache  *redis.Client
	logger log.Logger
}

// NewStore creates a Store rooted at dir, creating it if necessary.
func NewStore(dir string, logger log.Logger, cache *redis.Client) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, dbrerr.New(dbrerr.KindIO, "create schema store directory", err)
	}
	return &Store{dir: dir, cache: cache, logger: logger}, nil
}

func (s *Store) schemaDir(name string) string { return filepath.Join(s.dir, "schemas", name) }
func (s *Store) tableDir(name string, version int) string {
	return filepath.Join(s.dir, "tables", name, strconv.Itoa(version))
}

// Generate runs the Inference Engine over stream and persists the result as version 1 of
// name, failing if name already has a version 1 (schemas are immutable once written,
// §3.7); use Regenerate to add a new version to an existing schema.
func (s *Store) Generate(ctx context.Context, name, collection string, stream document.Stream) (*DatabaseSchema, map[string]*Table, error) {
	ctx, span := tracer.Start(ctx, "schema.Store.Generate")
	defer span.End()

	if _, err := s.readSchemaFile(name, 1); err == nil {
		return nil, nil, dbrerr.New(dbrerr.KindSchemaConflict, fmt.Sprintf("schema %q version 1 already exists", name), nil)
	}
	return s.generateVersion(ctx, name, collection, stream, 1)
}

// Regenerate runs the Inference Engine again and persists the result as the next version
// after the latest one currently on disk, per §3.7's "regenerate" lifecycle operation.
// Readers bound to the prior version keep reading it undisturbed, since this never
// mutates an existing version's files.
func (s *Store) Regenerate(ctx context.Context, name, collection string, stream document.Stream) (*DatabaseSchema, map[string]*Table, error) {
	ctx, span := tracer.Start(ctx, "schema.Store.Regenerate")
	defer span.End()

	latest, err := s.latestVersion(name)
	if err != nil {
		return nil, nil, err
	}
	return s.generateVersion(ctx, name, collection, stream, latest+1)
}

func (s *Store) generateVersion(ctx context.Context, name, collection string, stream document.Stream, version int) (*DatabaseSchema, map[string]*Table, error) {
	tables, err := Generate(ctx, collection, stream)
	if err != nil {
		s.logger.ErrorContext(ctx, "schema generation failed", "schema_name", name, "collection", collection, "error", err)
		return nil, nil, err
	}

	refs := make([]string, 0, len(tables))
	for sqlName := range tables {
		refs = append(refs, sqlName)
	}
	sort.Strings(refs)

	ds := &DatabaseSchema{
		SchemaName:      name,
		SQLName:         name,
		SchemaVersion:   version,
		ModifiedAt:      time.Now(),
		TableReferences: refs,
	}

	if err := s.writeVersion(name, version, ds, tables); err != nil {
		return nil, nil, err
	}
	s.logger.InfoContext(ctx, "schema generated", "schema_name", name, "schema_version", version, "table_count", len(tables))
	return ds, tables, nil
}

func (s *Store) writeVersion(name string, version int, ds *DatabaseSchema, tables map[string]*Table) error {
	tdir := s.tableDir(name, version)
	if err := os.MkdirAll(tdir, 0o755); err != nil {
		return dbrerr.New(dbrerr.KindIO, "create table directory", err)
	}
	for sqlName, t := range tables {
		data, err := json.MarshalIndent(t, "", "  ")
		if err != nil {
			return dbrerr.New(dbrerr.KindIO, fmt.Sprintf("encode table %q", sqlName), err)
		}
		if err := writeFileAtomic(filepath.Join(tdir, sqlName+".json"), data); err != nil {
			return err
		}
	}

	sdir := s.schemaDir(name)
	if err := os.MkdirAll(sdir, 0o755); err != nil {
		return dbrerr.New(dbrerr.KindIO, "create schema directory", err)
	}
	data, err := json.MarshalIndent(toWireSchema(ds), "", "  ")
	if err != nil {
		return dbrerr.New(dbrerr.KindIO, "encode schema descriptor", err)
	}
	return writeFileAtomic(filepath.Join(sdir, strconv.Itoa(version)+".json"), data)
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return dbrerr.New(dbrerr.KindIO, fmt.Sprintf("write %s", path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return dbrerr.New(dbrerr.KindIO, fmt.Sprintf("rename into place %s", path), err)
	}
	return nil
}

// Load reads schema name at version, consulting the read-through cache first when
// configured.
func (s *Store) Load(ctx context.Context, name string, version int) (*DatabaseSchema, map[string]*Table, error) {
	ctx, span := tracer.Start(ctx, "schema.Store.Load")
	defer span.End()

	if s.cache != nil {
		if ds, tables, ok := s.loadFromCache(ctx, name, version); ok {
			s.logger.DebugContext(ctx, "schema cache hit", "schema_name", name, "schema_version", version)
			return ds, tables, nil
		}
	}

	ds, err := s.readSchemaFile(name, version)
	if err != nil {
		return nil, nil, err
	}
	tables, err := s.readTables(name, version, ds.TableReferences)
	if err != nil {
		return nil, nil, err
	}

	if s.cache != nil {
		s.storeToCache(ctx, name, version, ds, tables)
	}
	return ds, tables, nil
}

// LoadLatest loads the highest version currently persisted for name.
func (s *Store) LoadLatest(ctx context.Context, name string) (*DatabaseSchema, map[string]*Table, error) {
	v, err := s.latestVersion(name)
	if err != nil {
		return nil, nil, err
	}
	if v == 0 {
		return nil, nil, dbrerr.New(dbrerr.KindUnknownTable, fmt.Sprintf("no schema named %q", name), nil)
	}
	return s.Load(ctx, name, v)
}

// Update applies mutate to the tables of name's latest version and persists the result
// as version+1, retrying exactly once (after reloading the latest version) if a
// concurrent writer advanced the version first — the §7 Schema-Version-Mismatch recovery
// rule.
func (s *Store) Update(ctx context.Context, name string, mutate func(map[string]*Table)) (*DatabaseSchema, error) {
	for attempt := 0; attempt < 2; attempt++ {
		ds, tables, err := s.LoadLatest(ctx, name)
		if err != nil {
			return nil, err
		}
		mutate(tables)

		next := ds.SchemaVersion + 1
		if _, err := s.readSchemaFile(name, next); err == nil {
			// Someone else already wrote this version; retry once against the new latest.
			continue
		}

		newDS := &DatabaseSchema{
			SchemaName:      ds.SchemaName,
			SQLName:         ds.SQLName,
			SchemaVersion:   next,
			ModifiedAt:      time.Now(),
			TableReferences: ds.TableReferences,
		}
		if err := s.writeVersion(name, next, newDS, tables); err != nil {
			return nil, err
		}
		return newDS, nil
	}
	return nil, dbrerr.New(dbrerr.KindSchemaVersionMismatch, fmt.Sprintf("schema %q changed concurrently", name), nil)
}

// Remove deletes every version of name.
func (s *Store) Remove(ctx context.Context, name string) error {
	if err := os.RemoveAll(s.schemaDir(name)); err != nil {
		return dbrerr.New(dbrerr.KindIO, "remove schema directory", err)
	}
	if err := os.RemoveAll(filepath.Join(s.dir, "tables", name)); err != nil {
		return dbrerr.New(dbrerr.KindIO, "remove table directory", err)
	}
	return nil
}

// ListSchemas returns the names of every schema with at least one persisted version.
func (s *Store) ListSchemas(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, "schemas"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, dbrerr.New(dbrerr.KindIO, "list schemas", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// ListTables returns the stable table IDs referenced by name's latest version.
func (s *Store) ListTables(ctx context.Context, name string) ([]string, error) {
	ds, _, err := s.LoadLatest(ctx, name)
	if err != nil {
		return nil, err
	}
	return ds.TableReferences, nil
}

func (s *Store) readSchemaFile(name string, version int) (*DatabaseSchema, error) {
	path := filepath.Join(s.schemaDir(name), strconv.Itoa(version)+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, dbrerr.New(dbrerr.KindUnknownTable, fmt.Sprintf("schema %q version %d not found", name, version), err)
	}
	var ws wireSchema
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, dbrerr.New(dbrerr.KindSchemaConflict, "decode schema descriptor", err)
	}
	modAt, err := time.Parse(timeLayout, ws.ModifiedAt)
	if err != nil {
		return nil, dbrerr.New(dbrerr.KindSchemaConflict, "decode schema descriptor timestamp", err)
	}
	return &DatabaseSchema{
		SchemaName:      ws.SchemaName,
		SQLName:         ws.SQLName,
		SchemaVersion:   ws.SchemaVersion,
		ModifiedAt:      modAt,
		TableReferences: ws.TableReferences,
	}, nil
}

func (s *Store) readTables(name string, version int, refs []string) (map[string]*Table, error) {
	tdir := s.tableDir(name, version)
	tables := make(map[string]*Table, len(refs))
	for _, sqlName := range refs {
		data, err := os.ReadFile(filepath.Join(tdir, sqlName+".json"))
		if err != nil {
			return nil, dbrerr.New(dbrerr.KindIO, fmt.Sprintf("read table %q", sqlName), err)
		}
		t, err := ParseTableJSON(data)
		if err != nil {
			return nil, err
		}
		tables[sqlName] = t
	}
	return tables, nil
}

func (s *Store) latestVersion(name string) (int, error) {
	entries, err := os.ReadDir(s.schemaDir(name))
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, dbrerr.New(dbrerr.KindIO, "list schema versions", err)
	}
	latest := 0
	for _, e := range entries {
		n := strings.TrimSuffix(e.Name(), ".json")
		v, err := strconv.Atoi(n)
		if err != nil {
			continue
		}
		if v > latest {
			latest = v
		}
	}
	return latest, nil
}

func cacheKey(name string, version int) string {
	return fmt.Sprintf("docbridge:schema:%s:%d", name, version)
}

type cacheEnvelope struct {
	Schema wireSchema            `json:"schema"`
	Tables map[string]wireTable `json:"tables"`
}

func (s *Store) loadFromCache(ctx context.Context, name string, version int) (*DatabaseSchema, map[string]*Table, bool) {
	raw, err := s.cache.Get(ctx, cacheKey(name, version)).Bytes()
	if err != nil {
		return nil, nil, false
	}
	var env cacheEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, nil, false
	}
	modAt, err := time.Parse(timeLayout, env.Schema.ModifiedAt)
	if err != nil {
		return nil, nil, false
	}
	ds := &DatabaseSchema{
		SchemaName:      env.Schema.SchemaName,
		SQLName:         env.Schema.SQLName,
		SchemaVersion:   env.Schema.SchemaVersion,
		ModifiedAt:      modAt,
		TableReferences: env.Schema.TableReferences,
	}
	tables := make(map[string]*Table, len(env.Tables))
	for sqlName, wt := range env.Tables {
		data, err := json.Marshal(wt)
		if err != nil {
			return nil, nil, false
		}
		t, err := ParseTableJSON(data)
		if err != nil {
			return nil, nil, false
		}
		tables[sqlName] = t
	}
	return ds, tables, true
}

func (s *Store) storeToCache(ctx context.Context, name string, version int, ds *DatabaseSchema, tables map[string]*Table) {
	env := cacheEnvelope{Schema: toWireSchema(ds), Tables: make(map[string]wireTable, len(tables))}
	for sqlName, t := range tables {
		env.Tables[sqlName] = toWireTable(t)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(name, version), data, time.Hour).Err(); err != nil {
		s.logger.WarnContext(ctx, "schema cache write failed", "schema_name", name, "schema_version", version, "error", err)
	}
}

// Watch starts an fsnotify watch on the store's schema directory and returns a channel
// of Events fired whenever another process persists a new (schema_name, version), so a
// long-lived driver instance can pick up a regenerate without restarting. The returned
// watcher must be closed by the caller via the returned close function.
func (s *Store) Watch(ctx context.Context) (<-chan Event, func() error, error) {
	root := filepath.Join(s.dir, "schemas")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, nil, dbrerr.New(dbrerr.KindIO, "create schema directory", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, dbrerr.New(dbrerr.KindIO, "start schema watcher", err)
	}
	if err := w.Add(root); err != nil {
		w.Close()
		return nil, nil, dbrerr.New(dbrerr.KindIO, "watch schema directory", err)
	}
	// fsnotify is not recursive: watch every existing per-schema subdirectory too, so
	// version files written inside them are observed.
	if entries, err := os.ReadDir(root); err == nil {
		for _, e := range entries {
			if e.IsDir() {
				_ = w.Add(filepath.Join(root, e.Name()))
			}
		}
	}

	events := make(chan Event, 16)
	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					// A new per-schema subdirectory: start watching it too.
					_ = w.Add(ev.Name)
					continue
				}
				if name, version, ok := parseWatchedSchemaDir(root, ev.Name); ok {
					select {
					case events <- Event{SchemaName: name, Version: version}:
					case <-ctx.Done():
						return
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.WarnContext(ctx, "schema watcher error", "error", err)
			}
		}
	}()

	return events, w.Close, nil
}

func parseWatchedSchemaDir(root, path string) (string, int, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", 0, false
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) != 2 {
		return "", 0, false
	}
	v, err := strconv.Atoi(strings.TrimSuffix(parts[1], ".json"))
	if err != nil {
		return "", 0, false
	}
	return parts[0], v, true
}
