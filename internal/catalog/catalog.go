// Package catalog holds the user-facing message texts. Defaults are
// embedded; a deployment can override individual keys with a
// .properties file so copy changes never require a rebuild.
package catalog

import (
	_ "embed"
	"fmt"

	"github.com/magiconair/properties"
)

//go:embed messages.properties
var defaultMessages []byte

type Catalog struct {
	p *properties.Properties
}

// Default returns the embedded catalog.
func Default() *Catalog {
	p, err := properties.Load(defaultMessages, properties.UTF8)
	if err != nil {
		panic(fmt.Sprintf("embedded message catalog is invalid: %v", err))
	}

	return &Catalog{p: p}
}

// Load returns the embedded catalog with keys overridden from the
// given .properties file.
func Load(path string) (*Catalog, error) {
	c := Default()

	overrides, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return nil, fmt.Errorf("load message catalog %q: %w", path, err)
	}

	c.p.Merge(overrides)
	return c, nil
}

// Text returns the message for key. Missing keys return the key
// itself, which keeps a typo visible instead of sending empty text.
func (c *Catalog) Text(key string) string {
	return c.p.GetString(key, key)
}

// Textf formats the message for key with fmt verbs.
func (c *Catalog) Textf(key string, args ...any) string {
	return fmt.Sprintf(c.Text(key), args...)
}
