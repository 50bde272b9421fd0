package keys

import (
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	t.Setenv("GIAOAN_CONFIG_DIR", t.TempDir())
	store, err := NewStore()
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func TestStoreSetGetDelete(t *testing.T) {
	store := newTestStore(t)

	if key, err := store.Get(); err != nil || key != "" {
		t.Fatalf("Get() on empty store = %q, %v", key, err)
	}

	if err := store.Set("AIza-test-key"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if key, err := store.Get(); err != nil || key != "AIza-test-key" {
		t.Errorf("Get() = %q, %v", key, err)
	}

	if err := store.Delete(); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if key, _ := store.Get(); key != "" {
		t.Errorf("Get() after delete = %q, want empty", key)
	}
	if err := store.Delete(); err == nil {
		t.Error("Delete() on empty store should fail")
	}
}

func TestResolvePriority(t *testing.T) {
	store := newTestStore(t)
	if err := store.Set("stored-key"); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GEMINI_API_KEY", "env-key")

	key, source, err := Resolve("flag-key")
	if err != nil || key != "flag-key" || source != "command-line flag" {
		t.Errorf("Resolve(flag) = %q from %q, %v", key, source, err)
	}

	key, source, err = Resolve("")
	if err != nil || key != "env-key" || source != "GEMINI_API_KEY" {
		t.Errorf("Resolve() = %q from %q, %v, want the environment key", key, source, err)
	}

	t.Setenv("GEMINI_API_KEY", "")
	key, _, err = Resolve("")
	if err != nil || key != "stored-key" {
		t.Errorf("Resolve() = %q, %v, want the stored key", key, err)
	}
}

func TestMask(t *testing.T) {
	if got := Mask("short"); got != "*****" {
		t.Errorf("Mask(short) = %q", got)
	}
	if got := Mask("AIzaSyExampleKey"); got != "AIza********eKey" {
		t.Errorf("Mask() = %q", got)
	}
}
