package permcache

import (
	"testing"
	"time"

	"github.com/opsdeck/opsdeck/internal/model"
)

func TestGetMissing(t *testing.T) {
	c := New(time.Minute)
	_, fresh, ok := c.Get(1)
	if ok || fresh {
		t.Errorf("ok = %v, fresh = %v, want false/false", ok, fresh)
	}
}

func TestSetGetFresh(t *testing.T) {
	c := New(time.Minute)
	c.Set(1, Permissions{Role: model.RoleAdmin, Pages: []string{"backups"}})

	perms, fresh, ok := c.Get(1)
	if !ok || !fresh {
		t.Fatalf("ok = %v, fresh = %v, want true/true", ok, fresh)
	}
	if perms.Role != model.RoleAdmin {
		t.Errorf("role = %q, want admin", perms.Role)
	}
	if len(perms.Pages) != 1 || perms.Pages[0] != "backups" {
		t.Errorf("pages = %v", perms.Pages)
	}
}

func TestStaleAfterTTL(t *testing.T) {
	c := New(time.Minute)
	base := time.Now()
	c.now = func() time.Time { return base }

	c.Set(1, Permissions{Role: model.RoleViewer})

	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	perms, fresh, ok := c.Get(1)
	if !ok {
		t.Fatal("entry should still exist")
	}
	if fresh {
		t.Error("entry should be stale after TTL")
	}
	if perms.Role != model.RoleViewer {
		t.Errorf("stale entry should keep its value, got role %q", perms.Role)
	}
}

func TestInvalidate(t *testing.T) {
	c := New(time.Minute)
	c.Set(1, Permissions{Role: model.RoleAgent})
	c.Set(2, Permissions{Role: model.RoleAdmin})

	c.Invalidate(1)
	if _, _, ok := c.Get(1); ok {
		t.Error("entry 1 should be gone")
	}
	if _, _, ok := c.Get(2); !ok {
		t.Error("entry 2 should survive")
	}

	c.InvalidateAll()
	if _, _, ok := c.Get(2); ok {
		t.Error("entry 2 should be gone after InvalidateAll")
	}
}
