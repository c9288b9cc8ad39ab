package config

import "testing"

func TestDefaultSatisfiesMinimums(t *testing.T) {
	c := Default()
	if c.MaxDims < 5 {
		t.Fatalf("MaxDims = %d, want >= 5", c.MaxDims)
	}
	if c.MaxStringWidth <= 0 {
		t.Fatalf("MaxStringWidth = %d, want positive", c.MaxStringWidth)
	}
	if c.MaxBitStrWidth <= 0 {
		t.Fatalf("MaxBitStrWidth = %d, want positive", c.MaxBitStrWidth)
	}
}

func TestConfigFieldsAreIndependentlyOverridable(t *testing.T) {
	c := Default()
	c.Workers = 1
	other := Default()
	if other.Workers != 4 {
		t.Fatalf("mutating one Config leaked into Default()'s result: got Workers=%d", other.Workers)
	}
}
