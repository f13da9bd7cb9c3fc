// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package result

import (
	"errors"
	"fmt"
	"testing"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Result
	}{
		{"nil", nil, Ok},
		{"invalid argument", ErrInvalidArgument, InvalidArgument},
		{"wrapped invalid state", fmt.Errorf("dispatcher: %w", ErrInvalidState), InvalidState},
		{"wrapped not found", fmt.Errorf("unit 7: %w", ErrNotFound), NotFound},
		{"resource exhausted", ErrResourceExhausted, ResourceExhausted},
		{"failure", ErrFailure, Failure},
		{"foreign error", errors.New("bus write timeout"), Failure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Code(tt.err); got != tt.want {
				t.Errorf("Code() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResultString(t *testing.T) {
	if Ok.String() != "OK" {
		t.Errorf("Ok.String() = %q", Ok.String())
	}
	if ResourceExhausted.String() != "RESOURCE_EXHAUSTED" {
		t.Errorf("ResourceExhausted.String() = %q", ResourceExhausted.String())
	}
	if Result(42).String() != "UNKNOWN" {
		t.Errorf("Result(42).String() = %q", Result(42).String())
	}
}
