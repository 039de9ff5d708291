package ldap

import (
	"context"
	"testing"

	"windowsauth/internal/config"
	"windowsauth/internal/types"
)

func TestNormalizeUser(t *testing.T) {
	cases := map[string]string{
		"alice":            "alice",
		` CORP\alice `:     "alice",
		"alice@corp.local": "alice",
		`CORP\alice@corp`:  "alice",
		"@alice":           "@alice",
		"":                 "",
	}
	for in, want := range cases {
		if got := normalizeUser(in); got != want {
			t.Fatalf("normalizeUser(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestLookupDisabledReturnsIdentity(t *testing.T) {
	t.Setenv(config.LDAP_URL, "")
	dir := NewDirectory(config.NewSettingType(false))
	if dir.Enabled() {
		t.Fatalf("expected directory to be disabled without LDAP_URL")
	}

	in := types.Identity{Domain: "CORP", User: "alice"}
	out, err := dir.Lookup(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != in {
		t.Fatalf("expected identity unchanged, got %+v", out)
	}

	var nilDir *Directory
	if nilDir.Enabled() {
		t.Fatalf("expected nil directory to be disabled")
	}
}

func TestLookupCancelledContext(t *testing.T) {
	t.Setenv(config.LDAP_URL, "ldap://127.0.0.1:1")
	dir := NewDirectory(config.NewSettingType(false))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := dir.Lookup(ctx, types.Identity{User: "alice"}); err == nil {
		t.Fatalf("expected cancelled context error")
	}
}
