package requestid

import (
	"context"
	"testing"
)

func TestNewAndContextRoundTrip(t *testing.T) {
	id := New()
	if len(id) != 32 {
		t.Fatalf("unexpected id length %d (%q)", len(id), id)
	}
	if New() == id {
		t.Fatalf("ids must differ")
	}
	ctx := WithRequestID(context.Background(), " "+id+" ")
	if got := FromContext(ctx); got != id {
		t.Fatalf("FromContext=%q want %q", got, id)
	}
	if got := FromContext(context.Background()); got != "" {
		t.Fatalf("empty context returned %q", got)
	}
}
