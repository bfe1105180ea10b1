package envconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUint(t *testing.T) {
	get := Uint("TENSORCORE_TEST_UINT", 7)

	assert.Equal(t, uint(7), get())

	t.Setenv("TENSORCORE_TEST_UINT", "12")
	assert.Equal(t, uint(12), get())

	t.Setenv("TENSORCORE_TEST_UINT", "-3")
	assert.Equal(t, uint(7), get(), "invalid value falls back to default")
}

func TestBytes(t *testing.T) {
	cases := map[string]uint64{
		"":       1 << 20,
		"4096":   4096,
		"64MiB":  64 << 20,
		"'2 kB'": 2000,
		"bogus":  1 << 20,
	}
	for value, want := range cases {
		t.Run(value, func(t *testing.T) {
			t.Setenv("TENSORCORE_MMAP_THRESHOLD", value)
			assert.Equal(t, want, MmapThreshold())
		})
	}
}

func TestBool(t *testing.T) {
	get := Bool("TENSORCORE_TEST_BOOL")
	assert.False(t, get())
	t.Setenv("TENSORCORE_TEST_BOOL", "false")
	assert.False(t, get())
	t.Setenv("TENSORCORE_TEST_BOOL", "yes please")
	assert.True(t, get())
}

func TestAccelerator(t *testing.T) {
	assert.Equal(t, "auto", Accelerator())
	t.Setenv("TENSORCORE_ACCELERATOR", "Simulated")
	assert.Equal(t, "simulated", Accelerator())
	t.Setenv("TENSORCORE_ACCELERATOR", "cuda")
	assert.Equal(t, "auto", Accelerator())
}

func TestAsMap(t *testing.T) {
	m := AsMap()
	assert.Len(t, m, 5)
	assert.Equal(t, "auto", m["TENSORCORE_ACCELERATOR"].Value)
}
