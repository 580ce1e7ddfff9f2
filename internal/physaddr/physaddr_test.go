package physaddr

import "testing"

func TestDisabledOracleReportsZero(t *testing.T) {
	o, err := New(false)
	if err != nil {
		t.Fatalf("New(false): %v", err)
	}
	phys, err := o.Resolve(0x1000)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if phys != 0 {
		t.Errorf("phys = %#x, want 0", phys)
	}
}

func TestNilOracleReportsZero(t *testing.T) {
	var o *Oracle
	phys, err := o.Resolve(0x1000)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if phys != 0 {
		t.Errorf("phys = %#x, want 0", phys)
	}
	if err := o.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
