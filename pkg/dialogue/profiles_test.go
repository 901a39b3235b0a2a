package dialogue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogLoads(t *testing.T) {
	catalog, err := DefaultCatalog()
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(catalog.PhilosopherIDs()), 15)
	require.GreaterOrEqual(t, len(catalog.AuthorIDs()), 20)

	p, ok := catalog.Philosopher("kant")
	require.True(t, ok)
	require.Equal(t, "Immanuel Kant", p.Name)
	require.NotEmpty(t, p.KeyConcepts)
	require.NotEmpty(t, p.Style)

	a, ok := catalog.Author("borges")
	require.True(t, ok)
	require.Equal(t, "Jorge Luis Borges", a.Name)
	require.NotEmpty(t, a.Characteristics)

	_, ok = catalog.Philosopher("unknown")
	require.False(t, ok)
}

func TestCatalogMapsAreCopies(t *testing.T) {
	catalog, err := DefaultCatalog()
	require.NoError(t, err)

	m := catalog.Philosophers()
	delete(m, "kant")
	_, ok := catalog.Philosopher("kant")
	require.True(t, ok)
}
