package dialogue

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/colloquy/pkg/engine"
)

func testRegistryAndCatalog(t *testing.T) (*engine.Registry, *Catalog) {
	t.Helper()
	engines := engine.NewRegistry()
	engines.Register("fake", &fakeEngine{})
	catalog, err := DefaultCatalog()
	require.NoError(t, err)
	return engines, catalog
}

func requireValidationError(t *testing.T, err error, field string) {
	t.Helper()
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, field, vErr.Field)
}

func TestConfigValidateAccepts(t *testing.T) {
	engines, catalog := testRegistryAndCatalog(t)
	require.NoError(t, testConfig().Validate(engines, catalog))
}

func TestConfigValidateRejectsEmptySlots(t *testing.T) {
	engines, catalog := testRegistryAndCatalog(t)

	cfg := testConfig()
	cfg.Actor1.Philosopher = ""
	requireValidationError(t, cfg.Validate(engines, catalog), "actor1.philosopher")

	cfg = testConfig()
	cfg.Actor2.Author = "   "
	requireValidationError(t, cfg.Validate(engines, catalog), "actor2.author")
}

func TestConfigValidateRejectsUnknownNames(t *testing.T) {
	engines, catalog := testRegistryAndCatalog(t)

	cfg := testConfig()
	cfg.Actor1.Philosopher = "jepetto"
	requireValidationError(t, cfg.Validate(engines, catalog), "actor1.philosopher")

	cfg = testConfig()
	cfg.Actor2.Author = "anonymous"
	requireValidationError(t, cfg.Validate(engines, catalog), "actor2.author")
}

func TestConfigValidateRejectsBadEngineSelector(t *testing.T) {
	engines, catalog := testRegistryAndCatalog(t)

	cfg := testConfig()
	cfg.Actor1.Engine = "no-slash"
	requireValidationError(t, cfg.Validate(engines, catalog), "actor1.engine")

	cfg = testConfig()
	cfg.Actor2.Engine = "unknown/model"
	requireValidationError(t, cfg.Validate(engines, catalog), "actor2.engine")
}

func TestConfigValidateRejectsIdenticalActors(t *testing.T) {
	engines, catalog := testRegistryAndCatalog(t)

	cfg := testConfig()
	cfg.Actor2 = cfg.Actor1
	requireValidationError(t, cfg.Validate(engines, catalog), "actor2")
}

func TestConfigValidateTopicBounds(t *testing.T) {
	engines, catalog := testRegistryAndCatalog(t)

	cfg := testConfig()
	cfg.Topic = "woof"
	requireValidationError(t, cfg.Validate(engines, catalog), "topic")

	cfg.Topic = strings.Repeat("x", TopicMaxLen+1)
	requireValidationError(t, cfg.Validate(engines, catalog), "topic")

	// Whitespace does not count toward the minimum.
	cfg.Topic = "  ab  "
	requireValidationError(t, cfg.Validate(engines, catalog), "topic")

	// Rune count, not byte count.
	cfg.Topic = strings.Repeat("é", TopicMaxLen)
	require.NoError(t, cfg.Validate(engines, catalog))
}
