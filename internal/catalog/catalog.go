// Package catalog implements the Catalog of spec.md §4.8: ownership of the
// set of entities inside one named database directory, persisted in a
// SQLite file at D/catalog.meta. Grounded on the teacher's
// internal/manifest/catalog.go (database/sql + the mattn/go-sqlite3 driver,
// a write connection pinned to a single open conn plus a separate
// read-only pool, WAL journal mode) — retargeted from tracking partition
// metadata onto tracking entity names.
package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/yourdb-org/yourdb/internal/entity"
	"github.com/yourdb-org/yourdb/internal/errs"
	"github.com/yourdb-org/yourdb/internal/gate"
	"github.com/yourdb-org/yourdb/pkg/record"
)

// Catalog owns the entities living under one database directory D, laid
// out per spec.md §6:
//
//	D/catalog.meta                 -- this SQLite file
//	D/entities/<name>/schema.meta  -- the entity's declared schema, as JSON
//	D/entities/<name>/data.log     -- the entity's log segment
//
// Its own mutations (create/drop) are serialized under a catalog-level
// gate distinct from any entity's gate (spec.md §4.8).
type Catalog struct {
	dir    string
	db     *sql.DB
	readDB *sql.DB
	gate   *gate.Gate
}

// Open opens (creating if absent) the catalog rooted at dir.
func Open(dir string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Join(dir, "entities"), 0o755); err != nil {
		return nil, errs.IOError("create catalog entities directory", err)
	}

	dbPath := filepath.Join(dir, "catalog.meta")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errs.IOError("open catalog.meta", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	readDB, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&mode=ro")
	if err != nil {
		db.Close()
		return nil, errs.IOError("open catalog.meta read pool", err)
	}
	readDB.SetMaxOpenConns(4)
	readDB.SetMaxIdleConns(4)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS entities (
		name       TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL
	)`); err != nil {
		readDB.Close()
		db.Close()
		return nil, errs.IOError("initialize catalog schema", err)
	}

	return &Catalog{dir: dir, db: db, readDB: readDB, gate: gate.New()}, nil
}

// schemaDecl is the JSON shape persisted to schema.meta: the declarative
// part of a record.Schema. UpgradeFunc steps are host-supplied closures and
// cannot be serialized, so OpenEntity takes the caller's live *record.Schema
// (already carrying whatever upgrades the host has registered in code)
// rather than trying to reconstruct one purely from disk; schema.meta exists
// so the on-disk layout is self-describing and inspectable independent of
// the catalog's own SQLite bookkeeping.
type schemaDecl struct {
	Name       string                 `json:"name"`
	PrimaryKey string                 `json:"primary_key"`
	Fields     map[string]record.Kind `json:"fields"`
	Indexed    []string               `json:"indexed"`
	Version    int                    `json:"version"`
}

func (c *Catalog) entityDir(name string) string {
	return filepath.Join(c.dir, "entities", name)
}

func (c *Catalog) logPath(name string) string {
	return filepath.Join(c.entityDir(name), "data.log")
}

func (c *Catalog) schemaMetaPath(name string) string {
	return filepath.Join(c.entityDir(name), "schema.meta")
}

func (c *Catalog) exists(name string) (bool, error) {
	var n string
	err := c.readDB.QueryRow(`SELECT name FROM entities WHERE name = ?`, name).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errs.IOError("query catalog entities", err)
	}
	return true, nil
}

// CreateEntity registers a new entity named name with the given schema,
// writes its schema.meta, and creates its entity directory. It fails with
// errs.EntityExists if name is already registered, or errs.InvalidSchema if
// schema is nil.
func (c *Catalog) CreateEntity(name string, schema *record.Schema) error {
	c.gate.WriteEnter()
	defer c.gate.WriteExit()

	if schema == nil {
		return errs.InvalidSchema("schema must not be nil")
	}
	present, err := c.exists(name)
	if err != nil {
		return err
	}
	if present {
		return errs.EntityExists(name)
	}

	dir := c.entityDir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.IOError("create entity directory", err)
	}

	decl := schemaDecl{
		Name:       schema.Name,
		PrimaryKey: schema.PrimaryKey,
		Fields:     schema.Fields,
		Indexed:    schema.Indexed,
		Version:    schema.Version(),
	}
	blob, err := json.Marshal(decl)
	if err != nil {
		os.RemoveAll(dir)
		return errs.InvalidSchema(fmt.Sprintf("marshal schema: %v", err))
	}
	if err := os.WriteFile(c.schemaMetaPath(name), blob, 0o644); err != nil {
		os.RemoveAll(dir)
		return errs.IOError("write schema.meta", err)
	}

	if _, err := c.db.Exec(`INSERT INTO entities (name, created_at) VALUES (?, strftime('%s','now'))`, name); err != nil {
		os.RemoveAll(dir)
		return errs.IOError("insert catalog row", err)
	}
	return nil
}

// OpenEntity loads the entity's log segment and returns a ready
// *entity.Engine built against schema. It fails with errs.EntityNotFound if
// name was never created (or has been dropped).
func (c *Catalog) OpenEntity(name string, schema *record.Schema) (*entity.Engine, error) {
	c.gate.ReadEnter()
	defer c.gate.ReadExit()

	present, err := c.exists(name)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, errs.EntityNotFound(name)
	}
	return entity.Open(c.logPath(name), schema)
}

// DropEntity removes name's log segment, schema.meta, and catalog entry. It
// fails with errs.EntityNotFound if name is not registered.
func (c *Catalog) DropEntity(name string) error {
	c.gate.WriteEnter()
	defer c.gate.WriteExit()

	present, err := c.exists(name)
	if err != nil {
		return err
	}
	if !present {
		return errs.EntityNotFound(name)
	}

	if _, err := c.db.Exec(`DELETE FROM entities WHERE name = ?`, name); err != nil {
		return errs.IOError("delete catalog row", err)
	}
	if err := os.RemoveAll(c.entityDir(name)); err != nil {
		return errs.IOError("remove entity directory", err)
	}
	return nil
}

// Entities lists every registered entity name.
func (c *Catalog) Entities() ([]string, error) {
	c.gate.ReadEnter()
	defer c.gate.ReadExit()

	rows, err := c.readDB.Query(`SELECT name FROM entities ORDER BY name`)
	if err != nil {
		return nil, errs.IOError("list catalog entities", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, errs.IOError("scan catalog row", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// Close closes the catalog's database connections.
func (c *Catalog) Close() error {
	if err := c.readDB.Close(); err != nil {
		c.db.Close()
		return errs.IOError("close catalog read pool", err)
	}
	if err := c.db.Close(); err != nil {
		return errs.IOError("close catalog.meta", err)
	}
	return nil
}
