package engine

import (
	"fmt"
	"slices"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/vrange/errors"
)

// Export names of the index module.
const (
	MemoryExport = "memory"

	ExportUniformInit     = "uniform-init"
	ExportUniformSetCount = "uniform-set-count"
	ExportUniformOffset   = "uniform-offset"
	ExportUniformRange    = "uniform-range"

	ExportVariableBuild  = "variable-build"
	ExportVariableOffset = "variable-offset"
	ExportVariableSize   = "variable-size"
	ExportVariableFind   = "variable-find"
	ExportVariableRange  = "variable-range"
)

// Export describes one function of the index module with WIT primitive
// type names. Counts and indices travel as f64 so that every value the
// controller handles stays exact up to 2^53.
type Export struct {
	Name    string
	Params  []string
	Results []string
}

// ABI lists the exports every index module must provide.
var ABI = []Export{
	{Name: ExportUniformInit, Params: []string{"f64", "f64"}},
	{Name: ExportUniformSetCount, Params: []string{"f64"}},
	{Name: ExportUniformOffset, Params: []string{"f64"}, Results: []string{"f64"}},
	{Name: ExportUniformRange, Params: []string{"f64", "f64", "f64"}, Results: []string{"f64", "f64"}},
	{Name: ExportVariableBuild, Params: []string{"f64"}},
	{Name: ExportVariableOffset, Params: []string{"f64"}, Results: []string{"f64"}},
	{Name: ExportVariableSize, Params: []string{"f64"}, Results: []string{"f64"}},
	{Name: ExportVariableFind, Params: []string{"f64"}, Results: []string{"f64"}},
	{Name: ExportVariableRange, Params: []string{"f64", "f64", "f64"}, Results: []string{"f64", "f64"}},
}

// maxFlat is the widest parameter or result list in ABI; call stacks are
// sized to it.
const maxFlat = 3

// Lower returns the core wasm signature of the export.
func (e Export) Lower() (params, results []api.ValueType, err error) {
	params, err = lowerAll(e.Params)
	if err != nil {
		return nil, nil, fmt.Errorf("%s params: %w", e.Name, err)
	}
	results, err = lowerAll(e.Results)
	if err != nil {
		return nil, nil, fmt.Errorf("%s results: %w", e.Name, err)
	}
	return params, results, nil
}

func lowerAll(names []string) ([]api.ValueType, error) {
	out := make([]api.ValueType, 0, len(names))
	for _, n := range names {
		vt, err := lowerType(n)
		if err != nil {
			return nil, err
		}
		out = append(out, vt)
	}
	return out, nil
}

// lowerType maps a WIT primitive onto its flat core value type.
func lowerType(name string) (api.ValueType, error) {
	t, err := wit.ParseType(name)
	if err != nil {
		return 0, errors.New(errors.PhaseLoad, errors.KindInvalidInput).
			Value(name).
			Cause(err).
			Detail("parse WIT type %q", name).
			Build()
	}

	switch t.(type) {
	case wit.Bool, wit.U8, wit.S8, wit.U16, wit.S16, wit.U32, wit.S32, wit.Char:
		return api.ValueTypeI32, nil
	case wit.U64, wit.S64:
		return api.ValueTypeI64, nil
	case wit.F32:
		return api.ValueTypeF32, nil
	case wit.F64:
		return api.ValueTypeF64, nil
	default:
		return 0, errors.New(errors.PhaseLoad, errors.KindInvalidInput).
			Value(name).
			Detail("WIT type %q has no single core value type", name).
			Build()
	}
}

// ValidateExports checks that defs provides every ABI export with the
// lowered signature.
func ValidateExports(defs map[string]api.FunctionDefinition) error {
	for _, e := range ABI {
		def, ok := defs[e.Name]
		if !ok {
			return errors.ABIMismatch(e.Name, "export missing")
		}
		params, results, err := e.Lower()
		if err != nil {
			return err
		}
		if !slices.Equal(def.ParamTypes(), params) {
			return errors.ABIMismatch(e.Name, fmt.Sprintf("params %s, want %s",
				typeNames(def.ParamTypes()), typeNames(params)))
		}
		if !slices.Equal(def.ResultTypes(), results) {
			return errors.ABIMismatch(e.Name, fmt.Sprintf("results %s, want %s",
				typeNames(def.ResultTypes()), typeNames(results)))
		}
	}
	return nil
}

func typeNames(types []api.ValueType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = api.ValueTypeName(t)
	}
	return fmt.Sprint(names)
}
