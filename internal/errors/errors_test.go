package errors

import (
	"fmt"
	"testing"
)

func TestDefineProducesFreshInstances(t *testing.T) {
	t.Parallel()

	a := ErrStateConflict()
	b := ErrStateConflict().SetDetail("call already accepted")

	if a.Error() == b.Error() {
		t.Fatalf("detail leaked between instances: %q", a.Error())
	}

	if a.Code() != b.Code() {
		t.Fatalf("codes differ for the same definition: %d vs %d", a.Code(), b.Code())
	}
}

func TestFrom(t *testing.T) {
	t.Parallel()

	if From(nil) != nil {
		t.Fatal("nil passes through")
	}

	apiErr := ErrRateLimited()
	if From(apiErr) != apiErr {
		t.Fatal("APIError passes through unchanged")
	}

	wrapped := From(fmt.Errorf("connection refused"))
	if wrapped.Code() != ErrInternalServerError().Code() {
		t.Fatalf("plain error should wrap as internal, got %d", wrapped.Code())
	}
}

func TestFields(t *testing.T) {
	t.Parallel()

	err := ErrPayloadTooLarge().SetFields(Fields{"size": 4096, "limit": 1024})

	f := err.GetFields()
	if f["size"] != 4096 || f["limit"] != 1024 {
		t.Fatalf("fields not retained: %+v", f)
	}
}
