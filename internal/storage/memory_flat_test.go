package storage

import (
	"context"
	"testing"

	"github.com/wattbuy/planengine/internal/pipeline"
)

func TestMemoryStorage_UserRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	u := User{ID: "u1", Username: "alice", Email: "alice@example.com", Role: "admin"}
	if err := m.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	got, err := m.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}
	if got == nil || got.ID != u.ID {
		t.Fatalf("expected user %+v, got %+v", u, got)
	}

	list, err := m.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 user, got %d", len(list))
	}
}

func TestMemoryStorage_SettingsRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	if err := m.SetSetting(ctx, "refresh_interval_seconds", "300"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	v, err := m.GetSetting(ctx, "refresh_interval_seconds")
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if v != "300" {
		t.Fatalf("expected 300, got %q", v)
	}
}

func TestMemoryStorage_AdvisoryLockIsExclusive(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	ok, err := m.AcquireAdvisoryLock(ctx, 42)
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, got ok=%v err=%v", ok, err)
	}
	ok, err = m.AcquireAdvisoryLock(ctx, 42)
	if err != nil || ok {
		t.Fatalf("expected second acquire to fail while held, got ok=%v err=%v", ok, err)
	}
	if _, err := m.ReleaseAdvisoryLock(ctx, 42); err != nil {
		t.Fatalf("ReleaseAdvisoryLock failed: %v", err)
	}
	ok, err = m.AcquireAdvisoryLock(ctx, 42)
	if err != nil || !ok {
		t.Fatalf("expected acquire after release to succeed, got ok=%v err=%v", ok, err)
	}
}

func TestMemoryStorage_PipelineAccessorsEnumerateHomes(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	m.Pipeline().Put(pipeline.HouseAddress{HomeID: "home-1", TdspSlug: "oncor"})

	homes, err := m.Pipeline().List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(homes) != 1 || homes[0].HomeID != "home-1" {
		t.Fatalf("expected 1 home 'home-1', got %+v", homes)
	}
}
