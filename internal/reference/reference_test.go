package reference

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate_FormatAndCharset(t *testing.T) {
	g := NewGenerator()

	ref, err := g.Generate("FL")

	assert.NoError(t, err)
	assert.Len(t, ref, 2+8)
	assert.True(t, strings.HasPrefix(ref, "FL"))
	for _, c := range ref[2:] {
		assert.Contains(t, charset, string(c))
	}
}

func TestGenerateUnique_RetriesPastCollisions(t *testing.T) {
	g := NewGenerator()
	calls := 0
	exists := func(ctx context.Context, candidate string) (bool, error) {
		calls++
		return calls < 3, nil
	}

	ref, err := g.GenerateUnique(context.Background(), "HT", exists)

	assert.NoError(t, err)
	assert.NotEmpty(t, ref)
	assert.Equal(t, 3, calls)
}

func TestGenerateUnique_WidensBeforeGivingUp(t *testing.T) {
	g := NewGeneratorWithLength(1, 3)
	var widened bool
	exists := func(ctx context.Context, candidate string) (bool, error) {
		if len(candidate) > 1 {
			widened = true
			return false, nil
		}
		return true, nil
	}

	ref, err := g.GenerateUnique(context.Background(), "", exists)

	assert.NoError(t, err)
	assert.True(t, widened)
	assert.Len(t, ref, 1+widenBy)
}

func TestGenerateUnique_ExhaustsAfterBound(t *testing.T) {
	g := NewGeneratorWithLength(1, 2)
	calls := 0
	exists := func(ctx context.Context, candidate string) (bool, error) {
		calls++
		return true, nil
	}

	_, err := g.GenerateUnique(context.Background(), "", exists)

	assert.ErrorIs(t, err, ErrCollisionExhausted)
	assert.Equal(t, 4, calls) // 2 attempts at each of the two lengths
}

func TestGenerateUnique_PropagatesExistsError(t *testing.T) {
	g := NewGenerator()
	boom := errors.New("store down")
	exists := func(ctx context.Context, candidate string) (bool, error) {
		return false, boom
	}

	_, err := g.GenerateUnique(context.Background(), "BS", exists)

	assert.ErrorIs(t, err, boom)
}
