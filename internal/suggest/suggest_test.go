package suggest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/macropower/kfold/internal/suggest"
)

func TestHint(t *testing.T) {
	t.Parallel()

	candidates := []string{"mean", "majority", "standard-scaler", "stump-forest"}

	assert.Equal(t, ` (did you mean "stump-forest"?)`, suggest.Hint("StumpForest", candidates))
	assert.Empty(t, suggest.Hint("xyz", candidates))
	assert.Contains(t, suggest.Hint("ma", candidates), `"majority"`)
}
