package engine_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/wippyai/vrange/engine"
	"github.com/wippyai/vrange/engine/enginetest"
)

// The fakes stand in for the wasm module in controller and gateway tests,
// so they must answer every query the same way.
func TestFakesMatchIndexModule(t *testing.T) {
	ctx := context.Background()
	rt, err := engine.NewRuntime(ctx, nil)
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	defer rt.Close(ctx)

	rng := rand.New(rand.NewSource(7))

	t.Run("uniform", func(t *testing.T) {
		for _, size := range []float64{1, 17.5, 50} {
			const count = 5000
			wasm, err := rt.NewUniform(ctx, count, size)
			if err != nil {
				t.Fatalf("NewUniform: %v", err)
			}
			fake := enginetest.NewUniform(count, size)

			total := count * size
			for range 500 {
				scroll := rng.Float64() * (total + 200)
				viewport := rng.Float64() * 2000
				overscan := rng.Intn(6)
				compareRange(t, wasm, fake, scroll, viewport, overscan)
			}
			if err := wasm.Free(ctx); err != nil {
				t.Errorf("Free: %v", err)
			}
		}
	})

	t.Run("variable", func(t *testing.T) {
		sizes := make([]float64, 3000)
		for i := range sizes {
			sizes[i] = float64(1 + rng.Intn(100))
		}
		wasm, err := rt.NewVariable(ctx, sizes)
		if err != nil {
			t.Fatalf("NewVariable: %v", err)
		}
		defer wasm.Free(ctx)
		fake := enginetest.NewVariable(sizes)

		total, _ := fake.OffsetOf(len(sizes))
		for range 1000 {
			scroll := rng.Float64() * (total + 200)
			viewport := rng.Float64() * 2000
			overscan := rng.Intn(6)
			compareRange(t, wasm, fake, scroll, viewport, overscan)
		}

		for _, i := range []int{0, 1, 999, len(sizes)} {
			got, err := wasm.OffsetOf(i)
			if err != nil {
				t.Fatalf("OffsetOf(%d): %v", i, err)
			}
			want, _ := fake.OffsetOf(i)
			if got != want {
				t.Errorf("OffsetOf(%d) = %v, fake %v", i, got, want)
			}
		}
	})
}

type ranger interface {
	CalcRange(scroll, viewport float64, overscan int) (int, int, error)
}

func compareRange(t *testing.T, wasm, fake ranger, scroll, viewport float64, overscan int) {
	t.Helper()
	rs, re, err := wasm.CalcRange(scroll, viewport, overscan)
	if err != nil {
		t.Fatalf("CalcRange: %v", err)
	}
	fs, fe, _ := fake.CalcRange(scroll, viewport, overscan)
	if rs != fs || re != fe {
		t.Errorf("CalcRange(%v, %v, %d) = [%d,%d), fake [%d,%d)", scroll, viewport, overscan, rs, re, fs, fe)
	}
}
