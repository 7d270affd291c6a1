package atomerr

import (
	"errors"
	"fmt"
	"testing"

	"golang.org/x/sys/unix"
)

func TestZeroValue(t *testing.T) {
	var e Error
	if e.Code() != NoError {
		t.Errorf("expected no_error, actually %d", e.Code())
	}
	if e.Message() != "Success" {
		t.Errorf("expected Success, actually %s", e.Message())
	}
	if !e.Ok() {
		t.Error("zero value should be ok")
	}
}

func TestSetErrorCodeClearsStoreMessage(t *testing.T) {
	e := NewStoreError("ERR wrong type")
	if e.StoreErrorMessage() != "ERR wrong type" {
		t.Errorf("store message not kept: %q", e.StoreErrorMessage())
	}
	e.SetErrorCode(InternalError)
	if e.StoreErrorMessage() != "" {
		t.Errorf("store message not cleared: %q", e.StoreErrorMessage())
	}
	if e.Code() != InternalError {
		t.Errorf("expected internal_error, actually %d", e.Code())
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{NoError, "Success"},
		{InternalError, "atom has encountered an internal error"},
		{StoreError, "atom has encountered a redis error"},
		{NoResponse, "atom was unable to get a response"},
		{InvalidCommand, "atom does not support this command"},
		{UnsupportedCommand, "atom does not support this command"},
		{CallbackFailed, "atom callback has failed"},
		{Code(42), "unknown"},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("code=%d", test.code), func(t *testing.T) {
			if got := New(test.code).Message(); got != test.want {
				t.Errorf("Message() = %q, want %q", got, test.want)
			}
		})
	}
	// 详细信息不会出现在 Message 中
	e := NewStoreError("BUSYGROUP Consumer Group name already exists")
	if e.Message() != "atom has encountered a redis error" {
		t.Errorf("detail leaked into Message: %s", e.Message())
	}
	if e.Error() != "atom has encountered a redis error: BUSYGROUP Consumer Group name already exists" {
		t.Errorf("unexpected Error(): %s", e.Error())
	}
}

func TestDefaultCondition(t *testing.T) {
	tests := []struct {
		code Code
		want error
	}{
		{NoError, unix.Errno(0)},
		{InternalError, unix.EIO},
		{NoResponse, unix.ENOMSG},
		{InvalidCommand, unix.ENOTSUP},
		{UnsupportedCommand, unix.ENOTSUP},
	}
	for _, test := range tests {
		e := New(test.code)
		if got := e.DefaultCondition(); got != test.want {
			t.Errorf("code %d: condition %v, want %v", test.code, got, test.want)
		}
		if !errors.Is(e, test.want) {
			t.Errorf("code %d: errors.Is(%v) false", test.code, test.want)
		}
	}

	for _, code := range []Code{StoreError, CallbackFailed} {
		e := New(code)
		if e.DefaultCondition() != error(e) {
			t.Errorf("code %d should map to itself", code)
		}
		for _, errno := range []error{unix.Errno(0), unix.EIO, unix.ENOMSG, unix.ENOTSUP} {
			if errors.Is(e, errno) {
				t.Errorf("code %d should not match %v", code, errno)
			}
		}
	}
}

func TestIsComparesCodes(t *testing.T) {
	wrapped := fmt.Errorf("write entry: %w", New(InvalidCommand))
	if !errors.Is(wrapped, New(InvalidCommand)) {
		t.Error("same code should compare equal")
	}
	if errors.Is(wrapped, New(UnsupportedCommand)) {
		t.Error("different codes should not compare equal")
	}
	if !errors.Is(wrapped, errors.ErrUnsupported) {
		t.Error("not-supported codes should match errors.ErrUnsupported")
	}
	if CodeOf(wrapped) != InvalidCommand {
		t.Errorf("CodeOf = %d", CodeOf(wrapped))
	}
	if CodeOf(nil) != NoError || CodeOf(errors.New("x")) != InternalError {
		t.Error("CodeOf fallback mismatch")
	}
}
