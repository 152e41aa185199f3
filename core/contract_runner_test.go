package core

import "testing"

func TestWasmRunnerRejectsInvalidModule(t *testing.T) {
	r := NewWasmRunner()
	if _, err := r.Run([]byte("not a wasm module"), nil); err == nil {
		t.Fatal("invalid module accepted")
	}
}

func TestWasmRunnerRejectsModuleWithoutStart(t *testing.T) {
	// minimal valid empty module: magic + version, no exports
	empty := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	r := NewWasmRunner()
	if _, err := r.Run(empty, nil); err != ErrNoStartExport {
		t.Fatalf("expected ErrNoStartExport, got %v", err)
	}
}
