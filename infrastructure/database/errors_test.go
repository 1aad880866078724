package database

import (
	"errors"
	"strings"
	"testing"
)

func TestNotFoundError(t *testing.T) {
	t.Run("Error with ID", func(t *testing.T) {
		err := &NotFoundError{Entity: "job", ID: "123"}
		expected := "job with id '123' not found"
		if err.Error() != expected {
			t.Errorf("Error() = %q, want %q", err.Error(), expected)
		}
	})

	t.Run("Error without ID", func(t *testing.T) {
		err := &NotFoundError{Entity: "job", ID: ""}
		expected := "job not found"
		if err.Error() != expected {
			t.Errorf("Error() = %q, want %q", err.Error(), expected)
		}
	})

	t.Run("Unwrap returns ErrNotFound", func(t *testing.T) {
		err := &NotFoundError{Entity: "job", ID: "123"}
		if err.Unwrap() != ErrNotFound {
			t.Error("Unwrap() should return ErrNotFound")
		}
	})

	t.Run("errors.Is works with NotFoundError", func(t *testing.T) {
		err := &NotFoundError{Entity: "job", ID: "123"}
		if !errors.Is(err, ErrNotFound) {
			t.Error("errors.Is should return true for ErrNotFound")
		}
	})
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("known_beverage", "abc-123")
	nfe, ok := err.(*NotFoundError)
	if !ok {
		t.Fatal("NewNotFoundError() should return *NotFoundError")
	}
	if nfe.Entity != "known_beverage" {
		t.Errorf("Entity = %q, want %q", nfe.Entity, "known_beverage")
	}
	if nfe.ID != "abc-123" {
		t.Errorf("ID = %q, want %q", nfe.ID, "abc-123")
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(ErrNotFound) {
		t.Error("IsNotFound(ErrNotFound) should return true")
	}
	if !IsNotFound(NewNotFoundError("job", "123")) {
		t.Error("IsNotFound should return true for NotFoundError")
	}
	if IsNotFound(ErrAlreadyExists) {
		t.Error("IsNotFound should return false for ErrAlreadyExists")
	}
	if IsNotFound(nil) {
		t.Error("IsNotFound(nil) should return false")
	}
}

func TestIsAlreadyExists(t *testing.T) {
	if !IsAlreadyExists(ErrAlreadyExists) {
		t.Error("IsAlreadyExists(ErrAlreadyExists) should return true")
	}
	if IsAlreadyExists(ErrNotFound) {
		t.Error("IsAlreadyExists should return false for ErrNotFound")
	}
}

func TestIsInvalidInput(t *testing.T) {
	if !IsInvalidInput(ErrInvalidInput) {
		t.Error("IsInvalidInput(ErrInvalidInput) should return true")
	}
	if IsInvalidInput(ErrNotFound) {
		t.Error("IsInvalidInput should return false for ErrNotFound")
	}
}

func TestValidateID(t *testing.T) {
	t.Run("valid UUID with hyphens", func(t *testing.T) {
		if err := ValidateID("550e8400-e29b-41d4-a716-446655440000"); err != nil {
			t.Errorf("ValidateID() error = %v for valid UUID", err)
		}
	})

	t.Run("valid UUID without hyphens", func(t *testing.T) {
		if err := ValidateID("550e8400e29b41d4a716446655440000"); err != nil {
			t.Errorf("ValidateID() error = %v for valid UUID without hyphens", err)
		}
	})

	t.Run("empty ID", func(t *testing.T) {
		err := ValidateID("")
		if err == nil {
			t.Fatal("ValidateID() should return error for empty ID")
		}
		if !IsInvalidInput(err) {
			t.Error("error should be ErrInvalidInput")
		}
	})

	t.Run("invalid format", func(t *testing.T) {
		if err := ValidateID("not a uuid"); err == nil {
			t.Error("ValidateID() should return error for invalid format")
		}
	})
}

func TestValidateLimit(t *testing.T) {
	if v := ValidateLimit(0, 50, 1000); v != 50 {
		t.Errorf("ValidateLimit(0, 50, 1000) = %d, want 50", v)
	}
	if v := ValidateLimit(-10, 50, 1000); v != 50 {
		t.Errorf("ValidateLimit(-10, 50, 1000) = %d, want 50", v)
	}
	if v := ValidateLimit(2000, 50, 1000); v != 1000 {
		t.Errorf("ValidateLimit(2000, 50, 1000) = %d, want 1000", v)
	}
	if v := ValidateLimit(100, 50, 1000); v != 100 {
		t.Errorf("ValidateLimit(100, 50, 1000) = %d, want 100", v)
	}
}

func TestSentinelErrorsDistinct(t *testing.T) {
	sentinels := []error{ErrNotFound, ErrAlreadyExists, ErrInvalidInput, ErrConflict}
	for i, e1 := range sentinels {
		for j, e2 := range sentinels {
			if i != j && errors.Is(e1, e2) {
				t.Errorf("sentinel errors should be distinct: %v vs %v", e1, e2)
			}
		}
	}
}

func TestValidateIDTooLong(t *testing.T) {
	if err := ValidateID(strings.Repeat("a", 129)); err == nil {
		t.Error("expected error for malformed id")
	}
}
