package service

import (
	"context"
	"fmt"

	"github.com/baseresearch/echopod-companion-chatbot/internal/model"
	"github.com/dgraph-io/ristretto/v2"
)

// textStore defines the lookup the cache falls back to on a miss.
type textStore interface {
	GetOriginalText(ctx context.Context, textID string) (model.OriginalText, error)
}

// textCache caches original sentences by id. Sentences are immutable,
// so entries never need invalidation; the vote prompt is the hot
// reader, pairing every claimed translation with its source text.
type textCache struct {
	cache *ristretto.Cache[string, model.OriginalText]
}

func newTextCache(maxKeys, maxCost int64) *textCache {
	c, err := ristretto.NewCache(&ristretto.Config[string, model.OriginalText]{
		NumCounters: maxKeys * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to create original text cache: %v", err))
	}

	return &textCache{cache: c}
}

func (c *textCache) put(text model.OriginalText) {
	c.cache.Set(text.ID, text, 1)
}

func (c *textCache) get(ctx context.Context, ts textStore, id string) (model.OriginalText, error) {
	if text, found := c.cache.Get(id); found {
		return text, nil
	}

	text, err := ts.GetOriginalText(ctx, id)
	if err != nil {
		return model.OriginalText{}, err
	}

	c.cache.Set(id, text, 1)
	return text, nil
}
