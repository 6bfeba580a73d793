package registry_test

import (
	"testing"

	"github.com/johnwards/orgseed/internal/registry"
)

func TestSetAndGet(t *testing.T) {
	r := registry.New()
	r.Set("Account", "001A", "001X")

	got, ok := r.Get("Account", "001A")
	if !ok || got != "001X" {
		t.Fatalf("Get(Account, 001A) = %q, %v; want 001X, true", got, ok)
	}

	if _, ok := r.Get("Account", "001B"); ok {
		t.Fatalf("Get(Account, 001B) found an entry that was never set")
	}
	if _, ok := r.Get("Contact", "001A"); ok {
		t.Fatalf("Get(Contact, 001A) found an entry registered under a different object")
	}
}

func TestLookupIsPolymorphic(t *testing.T) {
	r := registry.New()
	r.Set("Account", "001A", "001X")
	r.Set("Contact", "003C", "003Z")

	got, ok := r.Lookup("003C")
	if !ok || got != "003Z" {
		t.Fatalf("Lookup(003C) = %q, %v; want 003Z, true", got, ok)
	}

	if _, ok := r.Lookup("999Z"); ok {
		t.Fatalf("Lookup(999Z) found an entry that does not exist")
	}
}

func TestHasObjectAndCount(t *testing.T) {
	r := registry.New()
	if r.HasObject("Account") {
		t.Fatalf("HasObject(Account) = true before any Set")
	}
	r.Set("Account", "001A", "001X")
	r.Set("Account", "001B", "001Y")

	if !r.HasObject("Account") {
		t.Fatalf("HasObject(Account) = false after Set")
	}
	if got := r.Count("Account"); got != 2 {
		t.Fatalf("Count(Account) = %d; want 2", got)
	}
}

func TestAllSourceIDsSpansObjects(t *testing.T) {
	r := registry.New()
	r.Set("Account", "001A", "001X")
	r.Set("Contact", "003C", "003Z")

	ids := r.AllSourceIDs()
	want := map[string]bool{"001A": true, "003C": true}
	if len(ids) != len(want) {
		t.Fatalf("AllSourceIDs() = %v; want entries for %v", ids, want)
	}
	for _, id := range ids {
		if !want[id] {
			t.Fatalf("AllSourceIDs() returned unexpected id %q", id)
		}
	}
}

func TestObjectsOmitsEmptyMaps(t *testing.T) {
	r := registry.New()
	r.Set("Account", "001A", "001X")

	objs := r.Objects()
	if len(objs) != 1 || objs[0] != "Account" {
		t.Fatalf("Objects() = %v; want [Account]", objs)
	}
}
