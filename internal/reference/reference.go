// Package reference produces human-readable booking references such as
// "FL7K2Q9X1B": a kind prefix followed by random characters from [A-Z0-9].
package reference

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
)

const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const (
	defaultLength   = 8
	defaultAttempts = 5
	widenBy         = 2
)

// ErrCollisionExhausted means no unique reference was found within the retry
// bound, even after widening the random part. With an 8-character [A-Z0-9]
// suffix this indicates an operational problem, not bad luck.
var ErrCollisionExhausted = errors.New("reference generation exhausted retries")

// ExistsFunc reports whether a candidate reference is already taken.
type ExistsFunc func(ctx context.Context, candidate string) (bool, error)

type Generator struct {
	length   int
	attempts int
}

func NewGenerator() *Generator {
	return &Generator{length: defaultLength, attempts: defaultAttempts}
}

// NewGeneratorWithLength keeps the suffix length configurable so small
// reference spaces can be exercised.
func NewGeneratorWithLength(length, attempts int) *Generator {
	if length <= 0 {
		length = defaultLength
	}
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	return &Generator{length: length, attempts: attempts}
}

func (g *Generator) Generate(prefix string) (string, error) {
	return g.generate(prefix, g.length)
}

// GenerateUnique retries Generate against exists up to the attempt bound,
// then retries once more at a widened length before giving up with
// ErrCollisionExhausted.
func (g *Generator) GenerateUnique(ctx context.Context, prefix string, exists ExistsFunc) (string, error) {
	for _, length := range []int{g.length, g.length + widenBy} {
		for i := 0; i < g.attempts; i++ {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			candidate, err := g.generate(prefix, length)
			if err != nil {
				return "", err
			}
			taken, err := exists(ctx, candidate)
			if err != nil {
				return "", fmt.Errorf("check reference %s: %w", candidate, err)
			}
			if !taken {
				return candidate, nil
			}
		}
	}
	return "", ErrCollisionExhausted
}

func (g *Generator) generate(prefix string, length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = charset[int(b)%len(charset)]
	}
	return prefix + string(buf), nil
}
