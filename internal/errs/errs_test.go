package errs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	cause := errors.New("duplicate key")
	cases := []struct {
		err  error
		want string
	}{
		{Connectivity("", cause), "connectivity error: duplicate key"},
		{Schema("Genre", cause), "schema error: table=Genre: duplicate key"},
		{Write("FilmWork", 3, cause), "write error: table=FilmWork chunk=3: duplicate key"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.err.Error())
		assert.ErrorIs(t, c.err, cause)
	}
}

func TestNewNil(t *testing.T) {
	t.Parallel()
	assert.Nil(t, New(KindWrite, "Genre", 0, nil))
	assert.Nil(t, WithContext(nil, KindWrite, "Genre", 0))
}

func TestIsAndKindOf(t *testing.T) {
	t.Parallel()

	inner := Schema("Genre", errors.New("no such table"))
	outer := fmt.Errorf("run: %w", Write("Genre", 1, inner))

	assert.True(t, Is(outer, KindWrite))
	assert.True(t, Is(outer, KindSchema))
	assert.False(t, Is(outer, KindMapping))
	assert.Equal(t, KindWrite, KindOf(outer))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestWithContext(t *testing.T) {
	t.Parallel()

	t.Run("fills_missing_table_and_chunk", func(t *testing.T) {
		err := WithContext(Schema("", errors.New("x")), KindWrite, "Person", 2)
		var e *Error
		require.True(t, errors.As(err, &e))
		assert.Equal(t, KindSchema, e.Kind)
		assert.Equal(t, "Person", e.Table)
		assert.Equal(t, 2, e.Chunk)
	})

	t.Run("keeps_complete_error", func(t *testing.T) {
		orig := Mapping("Genre", 5, errors.New("x"))
		assert.Same(t, orig, WithContext(orig, KindWrite, "Person", 2))
	})

	t.Run("classifies_plain_error_with_fallback", func(t *testing.T) {
		err := WithContext(errors.New("boom"), KindWrite, "Person", 4)
		assert.Equal(t, KindWrite, KindOf(err))
		assert.Contains(t, err.Error(), "table=Person chunk=4")
	})

	t.Run("cancellation_wins_over_fallback", func(t *testing.T) {
		err := WithContext(fmt.Errorf("exec: %w", context.Canceled), KindWrite, "Person", 1)
		assert.Equal(t, KindCanceled, KindOf(err))
		assert.ErrorIs(t, err, context.Canceled)
	})
}
