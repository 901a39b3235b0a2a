package dialogue

import (
	_ "embed"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed data/philosophers.yaml
var philosophersYAML []byte

//go:embed data/authors.yaml
var authorsYAML []byte

// PhilosopherProfile describes the thinker an actor embodies. The fields
// feed the prompt builder verbatim.
type PhilosopherProfile struct {
	Name        string   `yaml:"name" json:"name"`
	Era         string   `yaml:"era" json:"era"`
	KeyConcepts []string `yaml:"key_concepts" json:"keyConcepts"`
	Beliefs     string   `yaml:"beliefs" json:"beliefs"`
	Style       string   `yaml:"style" json:"style"`
}

// AuthorProfile describes the literary voice an actor speaks through.
type AuthorProfile struct {
	Name            string   `yaml:"name" json:"name"`
	Characteristics []string `yaml:"characteristics" json:"characteristics"`
	Voice           string   `yaml:"voice" json:"voice"`
}

// Catalog holds the known philosopher and author profiles, keyed by the
// identifiers used in actor configurations.
type Catalog struct {
	philosophers map[string]PhilosopherProfile
	authors      map[string]AuthorProfile
}

// NewCatalog builds a catalog from explicit profile maps.
func NewCatalog(philosophers map[string]PhilosopherProfile, authors map[string]AuthorProfile) *Catalog {
	return &Catalog{philosophers: philosophers, authors: authors}
}

// DefaultCatalog loads the profiles embedded in the binary.
func DefaultCatalog() (*Catalog, error) {
	var philosophers map[string]PhilosopherProfile
	if err := yaml.Unmarshal(philosophersYAML, &philosophers); err != nil {
		return nil, errors.Wrap(err, "could not parse embedded philosopher profiles")
	}
	var authors map[string]AuthorProfile
	if err := yaml.Unmarshal(authorsYAML, &authors); err != nil {
		return nil, errors.Wrap(err, "could not parse embedded author profiles")
	}
	return NewCatalog(philosophers, authors), nil
}

func (c *Catalog) Philosopher(id string) (PhilosopherProfile, bool) {
	p, ok := c.philosophers[id]
	return p, ok
}

func (c *Catalog) Author(id string) (AuthorProfile, bool) {
	a, ok := c.authors[id]
	return a, ok
}

// PhilosopherIDs returns the known philosopher identifiers, sorted.
func (c *Catalog) PhilosopherIDs() []string {
	ids := make([]string, 0, len(c.philosophers))
	for id := range c.philosophers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AuthorIDs returns the known author identifiers, sorted.
func (c *Catalog) AuthorIDs() []string {
	ids := make([]string, 0, len(c.authors))
	for id := range c.authors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Philosophers returns the full philosopher map for metadata responses.
func (c *Catalog) Philosophers() map[string]PhilosopherProfile {
	out := make(map[string]PhilosopherProfile, len(c.philosophers))
	for k, v := range c.philosophers {
		out[k] = v
	}
	return out
}

// Authors returns the full author map for metadata responses.
func (c *Catalog) Authors() map[string]AuthorProfile {
	out := make(map[string]AuthorProfile, len(c.authors))
	for k, v := range c.authors {
		out[k] = v
	}
	return out
}
