package tensor

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScope_Close(t *testing.T) {
	s := NewScope()
	a, err := s.Track(Ones(Shape{2}, Float32))
	require.NoError(t, err)
	b, err := s.Track(a.AddScalar(1))
	require.NoError(t, err)
	kept := s.Detach(s.Add(b))
	assert.Equal(t, 2, s.Len())

	_, err = s.Track(a.Add(nil))
	assert.Error(t, err)
	assert.Equal(t, 2, s.Len(), "failed calls add nothing")

	s.Close()
	assert.True(t, a.IsDisposed())
	assert.True(t, b.IsDisposed(), "b was added twice and detached once")
	assert.Same(t, b, kept)

	z, err := Zeros(Shape{1}, Int8)
	require.NoError(t, err)
	late := s.Add(z)
	assert.True(t, late.IsDisposed(), "handles added after Close are disposed")
}

func TestWithScope(t *testing.T) {
	var inner *Tensor
	boom := errors.New("boom")
	err := WithScope(func(s *Scope) error {
		var err error
		if inner, err = s.Track(Zeros(Shape{3}, Float64)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.True(t, inner.IsDisposed())

	assert.Panics(t, func() {
		_ = WithScope(func(s *Scope) error {
			z, err := Zeros(Shape{3}, Float64)
			require.NoError(t, err)
			inner = s.Add(z)
			panic("fail")
		})
	})
	assert.True(t, inner.IsDisposed())
}
