package envutil

import "testing"

func TestIntFloatBool(t *testing.T) {
	t.Setenv("RG_TEST_INT", "42")
	t.Setenv("RG_TEST_BAD_INT", "x")
	t.Setenv("RG_TEST_FLOAT", "0.25")
	t.Setenv("RG_TEST_BOOL", "yes")

	if got := Int("RG_TEST_INT", 1); got != 42 {
		t.Fatalf("Int=%d", got)
	}
	if got := Int("RG_TEST_BAD_INT", 7); got != 7 {
		t.Fatalf("Int fallback=%d", got)
	}
	if got := Float("RG_TEST_FLOAT", 1); got != 0.25 {
		t.Fatalf("Float=%v", got)
	}
	if !Bool("RG_TEST_BOOL", false) {
		t.Fatalf("Bool=false")
	}
	if got := String("RG_TEST_MISSING", "def"); got != "def" {
		t.Fatalf("String=%q", got)
	}
}
