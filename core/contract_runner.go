package core

// WASM contract execution: the concrete ContractRunner collaborator
// (compile module, instantiate, require a `_start` entrypoint). The
// farmer path invokes it for transactions whose receiver account carries
// code, and folds the result into the vote's execution result.

import (
	"errors"

	"github.com/wasmerio/wasmer-go/wasmer"
)

var (
	ErrNoStartExport = errors.New("contract: _start function required")
	ErrInputTooLarge = errors.New("contract: input exceeds module memory")
)

// WasmRunner executes contract code through a shared wasmer engine.
type WasmRunner struct {
	engine *wasmer.Engine
}

var _ ContractRunner = (*WasmRunner)(nil)

// NewWasmRunner constructs a runner with its own wasmer engine.
func NewWasmRunner() *WasmRunner {
	return &WasmRunner{engine: wasmer.NewEngine()}
}

// Run compiles and executes code. Input is copied into the module's
// exported memory before `_start` runs. Return data is read back from the
// start of memory, sized by an exported `result_len` global; a module
// without that export produces no return data.
func (r *WasmRunner) Run(code []byte, input []byte) ([]byte, error) {
	store := wasmer.NewStore(r.engine)
	mod, err := wasmer.NewModule(store, code)
	if err != nil {
		return nil, err
	}

	instance, err := wasmer.NewInstance(mod, wasmer.NewImportObject())
	if err != nil {
		return nil, err
	}

	if mem, err := instance.Exports.GetMemory("memory"); err == nil && len(input) > 0 {
		data := mem.Data()
		if len(data) < len(input) {
			return nil, ErrInputTooLarge
		}
		copy(data, input)
	}

	start, err := instance.Exports.GetFunction("_start")
	if err != nil {
		return nil, ErrNoStartExport
	}
	if _, err := start(); err != nil {
		return nil, err
	}

	resultLen, err := instance.Exports.GetGlobal("result_len")
	if err != nil {
		return nil, nil
	}
	raw, err := resultLen.Get()
	if err != nil {
		return nil, nil
	}
	n, ok := raw.(int32)
	if !ok || n <= 0 {
		return nil, nil
	}
	mem, err := instance.Exports.GetMemory("memory")
	if err != nil {
		return nil, nil
	}
	data := mem.Data()
	if int(n) > len(data) {
		n = int32(len(data))
	}
	return append([]byte(nil), data[:n]...), nil
}
