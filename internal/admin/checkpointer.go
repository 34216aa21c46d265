// Package admin runs the database's background maintenance jobs: periodic
// checkpointing on a CRON schedule, in the style of the storage package's
// job scheduler, but narrowed to the one job an embedded engine needs
// unattended.
package admin

import (
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/SimonWaldherr/tinySQL/internal/buffer"
	"github.com/SimonWaldherr/tinySQL/internal/recovery"
)

// Checkpointer periodically forces a quiescent checkpoint so recovery at
// the next open has less log to scan. It tracks no per-transaction state:
// a checkpoint only needs every dirty frame on disk and a CHECKPOINT
// record appended after.
type Checkpointer struct {
	rm *recovery.Manager
	bm *buffer.Manager

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
	running bool

	lastErr error
}

// NewCheckpointer wraps rm/bm. Call Start with a CRON expression to begin
// running checkpoints on a schedule.
func NewCheckpointer(rm *recovery.Manager, bm *buffer.Manager) *Checkpointer {
	return &Checkpointer{
		rm:   rm,
		bm:   bm,
		cron: cron.New(cron.WithSeconds()),
	}
}

// Start registers spec as a six-field CRON expression whose first field is
// seconds (a five-field expression is rejected; descriptors such as
// "@every 1m" are accepted) and begins running checkpoints on that schedule.
// Calling Start twice without an intervening Stop replaces the schedule.
func (c *Checkpointer) Start(spec string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		c.cron.Remove(c.entryID)
	}

	id, err := c.cron.AddFunc(spec, c.runOnce)
	if err != nil {
		return fmt.Errorf("admin: invalid checkpoint schedule %q: %w", spec, err)
	}
	c.entryID = id
	if !c.running {
		c.cron.Start()
		c.running = true
	}
	return nil
}

// Stop halts the schedule. Any checkpoint already in flight finishes.
func (c *Checkpointer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	ctx := c.cron.Stop()
	<-ctx.Done()
	c.running = false
}

// Now forces an immediate checkpoint, outside the cron schedule.
func (c *Checkpointer) Now() error {
	return c.checkpoint()
}

// LastError returns the error from the most recent scheduled checkpoint
// attempt, or nil if the last one (or none yet) succeeded.
func (c *Checkpointer) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Checkpointer) runOnce() {
	err := c.checkpoint()
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	if err != nil {
		log.Printf("admin: checkpoint failed: %v", err)
	}
}

func (c *Checkpointer) checkpoint() error {
	if err := c.bm.FlushAllDirty(); err != nil {
		return fmt.Errorf("admin: checkpoint: %w", err)
	}
	lsn, err := c.rm.LogCheckpoint()
	if err != nil {
		return fmt.Errorf("admin: checkpoint: %w", err)
	}
	if err := c.rm.FlushTo(lsn); err != nil {
		return fmt.Errorf("admin: checkpoint flush: %w", err)
	}
	return nil
}
