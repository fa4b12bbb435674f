package faults

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{
			name: "nil error",
			err:  nil,
			want: 0,
		},
		{
			name: "generic error",
			err:  errors.New("some random error"),
			want: 0,
		},
		{
			name: "conflict",
			err:  Conflict("group is full"),
			want: KindConflict,
		},
		{
			name: "forbidden",
			err:  Forbidden("only the leader may lock"),
			want: KindForbidden,
		},
		{
			name: "wrapped conflict",
			err:  fmt.Errorf("endorse: %w", Conflict("already in a group")),
			want: KindConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := KindOf(tt.err)
			if got != tt.want {
				t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestPredicates(t *testing.T) {
	if !IsConflict(Conflictf("group %s is locked", "abc")) {
		t.Error("IsConflict should match Conflictf")
	}
	if IsConflict(NotFound("group")) {
		t.Error("IsConflict should not match NotFound")
	}
	if !IsNotFound(fmt.Errorf("lookup: %w", NotFound("group"))) {
		t.Error("IsNotFound should match wrapped NotFound")
	}
	if !IsForbidden(Forbidden("not leader")) {
		t.Error("IsForbidden should match Forbidden")
	}
	if !IsInvalid(Invalid("missing student id")) {
		t.Error("IsInvalid should match Invalid")
	}
}

func TestErrorString(t *testing.T) {
	err := Conflict("already in a group")
	want := "conflict: already in a group"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
