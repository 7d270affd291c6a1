package atomic

import "testing"

func TestBoolean(t *testing.T) {
	var b Boolean
	if b.Get() {
		t.Error("zero value should be false")
	}
	if !b.CompareAndSet(false, true) {
		t.Error("expected swap from false to true")
	}
	if b.CompareAndSet(false, true) {
		t.Error("second swap should fail")
	}
	b.Set(false)
	if b.Get() {
		t.Error("expected false after Set(false)")
	}
}
