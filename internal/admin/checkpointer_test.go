package admin

import (
	"testing"
	"time"

	"github.com/SimonWaldherr/tinySQL/internal/buffer"
	"github.com/SimonWaldherr/tinySQL/internal/file"
	"github.com/SimonWaldherr/tinySQL/internal/recovery"
	"github.com/SimonWaldherr/tinySQL/internal/walog"
)

func newTestCheckpointer(t *testing.T) *Checkpointer {
	t.Helper()
	fm, err := file.Open(t.TempDir(), 64)
	if err != nil {
		t.Fatalf("file.Open: %v", err)
	}
	lm, err := walog.Open(fm, "test.log")
	if err != nil {
		t.Fatalf("walog.Open: %v", err)
	}
	bm := buffer.NewManager(fm, lm, buffer.Config{PoolSize: 4})
	rm := recovery.NewManager(lm)
	return NewCheckpointer(rm, bm)
}

func TestNowForcesCheckpoint(t *testing.T) {
	c := newTestCheckpointer(t)
	if err := c.Now(); err != nil {
		t.Fatalf("Now: %v", err)
	}
	if err := c.LastError(); err != nil {
		t.Fatalf("LastError after manual Now = %v, want nil (Now doesn't set lastErr)", err)
	}
}

func TestStartRunsOnSchedule(t *testing.T) {
	c := newTestCheckpointer(t)
	if err := c.Start("* * * * * *"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(1200 * time.Millisecond)
	c.Stop()
	if err := c.LastError(); err != nil {
		t.Fatalf("LastError after scheduled run = %v, want nil", err)
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	c := newTestCheckpointer(t)
	if err := c.Start("not a cron expression"); err == nil {
		t.Fatal("Start with invalid schedule should error")
	}
}
