package environment_test

import (
	"testing"
	"time"

	"github.com/mkoriyama/Akari/common/environment"
)

func TestOverride(t *testing.T) {
	t.Setenv("AKARI_TEST_STR", "from-env")
	if got := environment.Override("AKARI_TEST_STR", "from-file"); got != "from-env" {
		t.Errorf("Override = %q, want from-env", got)
	}
	if got := environment.Override("AKARI_TEST_STR_UNSET", "from-file"); got != "from-file" {
		t.Errorf("Override unset = %q, want from-file", got)
	}
}

func TestOverrideBool(t *testing.T) {
	for _, tc := range []struct {
		value   string
		current bool
		want    bool
	}{
		{"true", false, true},
		{"0", true, false},
		{"", true, true},
		{"yes-ish", false, false}, // malformed keeps current
		{"yes-ish", true, true},
	} {
		t.Setenv("AKARI_TEST_BOOL", tc.value)
		if got := environment.OverrideBool("AKARI_TEST_BOOL", tc.current); got != tc.want {
			t.Errorf("OverrideBool(%q, %v) = %v, want %v", tc.value, tc.current, got, tc.want)
		}
	}
}

func TestOverrideInt(t *testing.T) {
	t.Setenv("AKARI_TEST_INT", "42")
	if got := environment.OverrideInt("AKARI_TEST_INT", 7); got != 42 {
		t.Errorf("OverrideInt = %d, want 42", got)
	}
	t.Setenv("AKARI_TEST_INT", "not-a-number")
	if got := environment.OverrideInt("AKARI_TEST_INT", 7); got != 7 {
		t.Errorf("OverrideInt malformed = %d, want 7", got)
	}
}

func TestOverrideDuration(t *testing.T) {
	t.Setenv("AKARI_TEST_DUR", "90s")
	if got := environment.OverrideDuration("AKARI_TEST_DUR", time.Minute); got != 90*time.Second {
		t.Errorf("OverrideDuration = %v, want 90s", got)
	}
	t.Setenv("AKARI_TEST_DUR", "ninety")
	if got := environment.OverrideDuration("AKARI_TEST_DUR", time.Minute); got != time.Minute {
		t.Errorf("OverrideDuration malformed = %v, want 1m", got)
	}
}

func TestOverrideList(t *testing.T) {
	current := []string{"@a:example.org"}

	t.Setenv("AKARI_TEST_LIST", "@b:example.org, @c:example.org ,")
	got := environment.OverrideList("AKARI_TEST_LIST", current)
	if len(got) != 2 || got[0] != "@b:example.org" || got[1] != "@c:example.org" {
		t.Errorf("OverrideList = %v, want trimmed two-element list", got)
	}

	t.Setenv("AKARI_TEST_LIST", " , ,")
	if got := environment.OverrideList("AKARI_TEST_LIST", current); len(got) != 1 {
		t.Errorf("OverrideList all-empty = %v, want current", got)
	}

	t.Setenv("AKARI_TEST_LIST", "")
	if got := environment.OverrideList("AKARI_TEST_LIST", current); len(got) != 1 {
		t.Errorf("OverrideList unset = %v, want current", got)
	}
}
