package envutil

import (
	"testing"
	"time"
)

func TestBool(t *testing.T) {
	cases := map[string]bool{"1": true, "TRUE": true, "on": true, "0": false, "off": false, "": true, "maybe": true}
	for raw, want := range cases {
		t.Setenv("ENVUTIL_BOOL", raw)
		if got := Bool("ENVUTIL_BOOL", true); got != want {
			t.Fatalf("Bool(%q): want=%v got=%v", raw, want, got)
		}
	}
}

func TestIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("ENVUTIL_INT", "12x")
	if got := Int("ENVUTIL_INT", 7); got != 7 {
		t.Fatalf("Int: want=7 got=%d", got)
	}
	t.Setenv("ENVUTIL_INT", " 42 ")
	if got := Int("ENVUTIL_INT", 7); got != 42 {
		t.Fatalf("Int: want=42 got=%d", got)
	}
}

func TestSecondsClampsNegative(t *testing.T) {
	t.Setenv("ENVUTIL_SECONDS", "-5")
	if got := Seconds("ENVUTIL_SECONDS", 60); got != 0 {
		t.Fatalf("Seconds: want=0 got=%v", got)
	}
	t.Setenv("ENVUTIL_SECONDS", "")
	if got := Seconds("ENVUTIL_SECONDS", 60); got != time.Minute {
		t.Fatalf("Seconds default: want=1m got=%v", got)
	}
}

func TestFloat(t *testing.T) {
	t.Setenv("ENVUTIL_FLOAT", "0.25")
	if got := Float("ENVUTIL_FLOAT", 1); got != 0.25 {
		t.Fatalf("Float: want=0.25 got=%v", got)
	}
	t.Setenv("ENVUTIL_FLOAT", "half")
	if got := Float("ENVUTIL_FLOAT", 1); got != 1 {
		t.Fatalf("Float: want=1 got=%v", got)
	}
}
