// Package tinysql is the embeddable storage engine: a single-node,
// disk-backed SQL storage layer in the SimpleDB tradition. It provides
// block I/O, a write-ahead log, a buffer pool with pluggable page
// replacement, strict two-phase-locking transactions, undo-only crash
// recovery, fixed-slot record pages, and a two-file B-tree index.
//
// It deliberately stops at the storage layer: there is no SQL parser,
// planner, executor, or CLI in this module. Callers
// drive the engine directly through Transaction, record.Layout/RecordPage,
// and index.BTree.
//
// # Basic usage
//
//	db, err := tinysql.Open("mydb", tinysql.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	tx, err := db.NewTransaction()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	block, _ := tx.Append("students.tbl")
//	_ = tx.Commit()
package tinysql

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/SimonWaldherr/tinySQL/internal/admin"
	"github.com/SimonWaldherr/tinySQL/internal/buffer"
	"github.com/SimonWaldherr/tinySQL/internal/config"
	"github.com/SimonWaldherr/tinySQL/internal/file"
	"github.com/SimonWaldherr/tinySQL/internal/recovery"
	"github.com/SimonWaldherr/tinySQL/internal/txn"
	"github.com/SimonWaldherr/tinySQL/internal/walog"
)

// Options configures Open. A zero Options uses config.Default(); any field
// left at its zero value falls back to the matching default.
type Options struct {
	PageSize          int
	BufferCount       int
	ReplacementPolicy string // "clock" (default), "sieve", "lru"
	LockTimeoutMS     int
	BufferTimeoutMS   int
	LogFilename       string

	// CheckpointSchedule is an optional six-field CRON expression (leading
	// seconds field required) on which Database runs an automatic checkpoint. Empty
	// disables automatic checkpointing; callers can still call
	// Database.Checkpoint directly.
	CheckpointSchedule string
}

func (o Options) toConfig() config.Options {
	d := config.Default()
	if o.PageSize > 0 {
		d.PageSize = o.PageSize
	}
	if o.BufferCount > 0 {
		d.BufferCount = o.BufferCount
	}
	if o.ReplacementPolicy != "" {
		d.ReplacementPolicy = o.ReplacementPolicy
	}
	if o.LockTimeoutMS > 0 {
		d.LockTimeoutMS = o.LockTimeoutMS
	}
	if o.BufferTimeoutMS > 0 {
		d.BufferTimeoutMS = o.BufferTimeoutMS
	}
	if o.LogFilename != "" {
		d.LogFilename = o.LogFilename
	}
	return d
}

// Database owns every long-lived component of one open database directory:
// the file manager, the write-ahead log, the buffer pool, the lock table,
// and the recovery manager. It is safe for concurrent use; each
// NewTransaction call returns an independent Transaction.
type Database struct {
	id uuid.UUID

	dir string
	cfg config.Options

	fm *file.Manager
	lm *walog.Manager
	bm *buffer.Manager
	lt *txn.LockTable
	rm *recovery.Manager

	ckpt *admin.Checkpointer
}

// Open opens (creating if necessary) a database rooted at dir, running
// crash recovery on whatever log is already there before returning.
func Open(dir string, opts Options) (*Database, error) {
	cfg := opts.toConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	fm, err := file.Open(dir, cfg.PageSize)
	if err != nil {
		return nil, fmt.Errorf("tinysql: open %s: %w", dir, err)
	}

	lm, err := walog.Open(fm, cfg.LogFilename)
	if err != nil {
		return nil, fmt.Errorf("tinysql: open wal: %w", err)
	}

	bm := buffer.NewManager(fm, lm, buffer.Config{
		PoolSize:    cfg.BufferCount,
		Policy:      cfg.Policy(),
		WaitTimeout: cfg.BufferTimeout(),
	})

	lt := txn.NewLockTable(cfg.LockTimeout())
	rm := recovery.NewManager(lm)

	if err := rm.Recover(bm); err != nil {
		return nil, fmt.Errorf("tinysql: recover %s: %w", dir, err)
	}

	id, err := instanceID(dir)
	if err != nil {
		return nil, err
	}

	db := &Database{
		id:  id,
		dir: dir,
		cfg: cfg,
		fm:  fm,
		lm:  lm,
		bm:  bm,
		lt:  lt,
		rm:  rm,
	}
	db.ckpt = admin.NewCheckpointer(rm, bm)

	if opts.CheckpointSchedule != "" {
		if err := db.ckpt.Start(opts.CheckpointSchedule); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// instanceID reads (or, the first time, creates) a stable identifier for
// the database directory, stored as a plain UUID string in a sidecar
// file. It has no effect on the on-disk page format; it exists so tooling
// can distinguish one database directory from another (log shipping,
// multi-instance admin dashboards) without parsing paths.
func instanceID(dir string) (uuid.UUID, error) {
	path := filepath.Join(dir, ".instance_id")
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return uuid.UUID{}, fmt.Errorf("tinysql: read instance id: %w", err)
	}
	if len(data) > 0 {
		if id, err := uuid.Parse(string(data)); err == nil {
			return id, nil
		}
		// Fall through and mint a fresh one if the sidecar was corrupt.
	}
	id := uuid.New()
	if err := os.WriteFile(path, []byte(id.String()), 0o644); err != nil {
		return uuid.UUID{}, fmt.Errorf("tinysql: write instance id: %w", err)
	}
	return id, nil
}

// ID returns this database's stable instance identifier.
func (db *Database) ID() uuid.UUID { return db.id }

// Dir returns the database directory.
func (db *Database) Dir() string { return db.dir }

// BlockSize returns the configured page size in bytes.
func (db *Database) BlockSize() int { return db.fm.BlockSize() }

// NewTransaction begins a new strict-2PL transaction against this
// database.
func (db *Database) NewTransaction() (*txn.Transaction, error) {
	return txn.New(db.fm, db.bm, db.rm, db.lt)
}

// Checkpoint forces an immediate checkpoint: every dirty buffer frame is
// written to disk and a CHECKPOINT record is appended and flushed.
func (db *Database) Checkpoint() error {
	return db.ckpt.Now()
}

// Close stops the background checkpoint schedule (if any), forces a final
// checkpoint, and releases the file manager's open handles.
func (db *Database) Close() error {
	db.ckpt.Stop()
	if err := db.ckpt.Now(); err != nil {
		return err
	}
	if err := db.lm.Close(); err != nil {
		return err
	}
	return db.fm.Close()
}
