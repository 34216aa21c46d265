// Package recovery implements the undo-only RecoveryManager: it logs
// before-images for every page mutation, drives a single transaction's
// rollback by undoing its writes in reverse order, and drives whole-database
// recovery at open time by undoing every write made by a transaction that
// never committed or rolled back.
//
// This is deliberately undo-only, no-redo, no-CLR: correctness depends on
// the force-at-commit policy in the txn package (every page a transaction
// touched is durable by the time its COMMIT record is durable), so recovery
// never needs to replay committed work forward.
package recovery

import (
	"fmt"

	"github.com/SimonWaldherr/tinySQL/internal/buffer"
	"github.com/SimonWaldherr/tinySQL/internal/file"
	"github.com/SimonWaldherr/tinySQL/internal/walog"
)

// Manager wraps the WAL with the record-shaped log calls the txn layer
// needs, plus the two undo drivers (single-transaction rollback, and
// whole-database recovery).
type Manager struct {
	lm *walog.Manager
}

// NewManager wraps lm.
func NewManager(lm *walog.Manager) *Manager {
	return &Manager{lm: lm}
}

func (m *Manager) append(rec walog.Record) (walog.LSN, error) {
	lsn, err := m.lm.Append(walog.Marshal(rec))
	if err != nil {
		return 0, fmt.Errorf("recovery: append %s: %w", rec.Type, err)
	}
	return lsn, nil
}

// LogStart records the beginning of transaction txID.
func (m *Manager) LogStart(txID int64) (walog.LSN, error) {
	return m.append(walog.Record{Type: walog.RecStart, TxID: txID})
}

// LogCommit records that txID committed.
func (m *Manager) LogCommit(txID int64) (walog.LSN, error) {
	return m.append(walog.Record{Type: walog.RecCommit, TxID: txID})
}

// LogRollback records that txID rolled back.
func (m *Manager) LogRollback(txID int64) (walog.LSN, error) {
	return m.append(walog.Record{Type: walog.RecRollback, TxID: txID})
}

// LogCheckpoint records a quiescent checkpoint marker.
func (m *Manager) LogCheckpoint() (walog.LSN, error) {
	return m.append(walog.Record{Type: walog.RecCheckpoint})
}

// LogSetInt logs the before-image oldVal at (block, offset) for txID,
// returning the LSN the caller must attach to the dirtied frame before
// releasing it.
func (m *Manager) LogSetInt(txID int64, block file.BlockID, offset int32, oldVal int32) (walog.LSN, error) {
	return m.append(walog.Record{
		Type: walog.RecSetInt, TxID: txID, Block: block, Offset: offset, OldInt: oldVal,
	})
}

// LogSetString logs the before-image oldVal at (block, offset) for txID.
func (m *Manager) LogSetString(txID int64, block file.BlockID, offset int32, oldVal string) (walog.LSN, error) {
	return m.append(walog.Record{
		Type: walog.RecSetString, TxID: txID, Block: block, Offset: offset, OldString: oldVal,
	})
}

// FlushTo forces the log durable through lsn.
func (m *Manager) FlushTo(lsn walog.LSN) error {
	return m.lm.FlushTo(lsn)
}

// applyUndo writes rec's before-image back into its block through bm,
// gated by the page's stored LSN: if the page's on-disk image never
// advanced past the record's LSN, the write never reached disk and there
// is nothing to undo. The frame is left dirty and attributed to rec.TxID
// so a subsequent BufferManager.FlushAll(rec.TxID) forces it out.
func (m *Manager) applyUndo(bm *buffer.Manager, rec walog.Record, lsn walog.LSN) error {
	f, err := bm.Pin(rec.Block)
	if err != nil {
		return fmt.Errorf("recovery: pin %s for undo: %w", rec.Block, err)
	}
	defer bm.Unpin(f)

	f.Lock()
	pg := f.Page()
	applied := false
	if pg.StoredLSN() >= uint32(lsn) {
		switch rec.Type {
		case walog.RecSetInt:
			pg.SetInt(int(rec.Offset), rec.OldInt)
		case walog.RecSetString:
			pg.SetString(int(rec.Offset), rec.OldString)
		}
		pg.SetStoredLSN(uint32(lsn))
		applied = true
	}
	f.Unlock()

	if applied {
		f.SetModified(rec.TxID, lsn)
	}
	return nil
}

// Rollback undoes every write txID made, iterating the log in reverse
// until txID's own START record (or a checkpoint) is reached, then forces
// the undone frames to disk. It does not itself emit the ROLLBACK record
// or release locks/pins; callers (txn.Transaction) sequence that.
func (m *Manager) Rollback(txID int64, bm *buffer.Manager) error {
	it, err := m.lm.IterateReverse()
	if err != nil {
		return fmt.Errorf("recovery: rollback %d: %w", txID, err)
	}

	lsn := m.lm.NextLSN() - 1
	touched := false
	for {
		rec, ok, err := it.Next()
		if err != nil {
			return fmt.Errorf("recovery: rollback %d: %w", txID, err)
		}
		if !ok || rec.Type == walog.RecCheckpoint {
			break
		}
		if rec.TxID == txID {
			switch rec.Type {
			case walog.RecStart:
				lsn--
				goto flush
			case walog.RecSetInt, walog.RecSetString:
				if err := m.applyUndo(bm, rec, lsn); err != nil {
					return err
				}
				touched = true
			}
		}
		lsn--
	}

flush:
	if touched {
		if err := bm.FlushAll(txID); err != nil {
			return fmt.Errorf("recovery: rollback %d flush: %w", txID, err)
		}
	}
	return nil
}

// Recover runs whole-database undo-only recovery at open time: every
// write made by a transaction that never reached COMMIT or ROLLBACK is
// undone, then a fresh CHECKPOINT is appended and flushed.
func (m *Manager) Recover(bm *buffer.Manager) error {
	it, err := m.lm.IterateReverse()
	if err != nil {
		return fmt.Errorf("recovery: scan: %w", err)
	}

	lsn := m.lm.NextLSN() - 1
	finished := make(map[int64]bool)
	touchedTx := make(map[int64]bool)

scan:
	for {
		rec, ok, err := it.Next()
		if err != nil {
			return fmt.Errorf("recovery: scan: %w", err)
		}
		if !ok {
			break
		}
		switch rec.Type {
		case walog.RecCheckpoint:
			break scan
		case walog.RecCommit, walog.RecRollback:
			finished[rec.TxID] = true
		case walog.RecSetInt, walog.RecSetString:
			if !finished[rec.TxID] {
				if err := m.applyUndo(bm, rec, lsn); err != nil {
					return err
				}
				touchedTx[rec.TxID] = true
			}
		}
		lsn--
	}

	for txID := range touchedTx {
		if err := bm.FlushAll(txID); err != nil {
			return fmt.Errorf("recovery: recover flush tx %d: %w", txID, err)
		}
	}

	ckLSN, err := m.LogCheckpoint()
	if err != nil {
		return fmt.Errorf("recovery: checkpoint: %w", err)
	}
	return m.lm.FlushTo(ckLSN)
}
