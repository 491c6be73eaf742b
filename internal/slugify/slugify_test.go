package slugify_test

import (
	"testing"

	"agendacerto/internal/slugify"

	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	t.Run("strips accents and punctuation", func(t *testing.T) {
		require.Equal(t, "sao-jose-cia", slugify.Slugify("São José & Cia."))
	})

	t.Run("company name from signup", func(t *testing.T) {
		require.Equal(t, "barbearia-do-joao", slugify.Slugify("Barbearia do João"))
	})

	t.Run("collapses duplicate hyphens", func(t *testing.T) {
		require.Equal(t, "a-b", slugify.Slugify("a -- b"))
	})

	t.Run("no leading or trailing hyphens", func(t *testing.T) {
		require.Equal(t, "salao-da-maria", slugify.Slugify("  Salão da Maria!  "))
	})

	t.Run("idempotent", func(t *testing.T) {
		inputs := []string{"São José & Cia.", "Barbearia do João", "café-com-leite", "A  B   C"}
		for _, in := range inputs {
			once := slugify.Slugify(in)
			require.Equal(t, once, slugify.Slugify(once), "input %q", in)
		}
	})

	t.Run("empty and symbol-only input", func(t *testing.T) {
		require.Equal(t, "", slugify.Slugify(""))
		require.Equal(t, "", slugify.Slugify("!!! &&& ..."))
	})
}
