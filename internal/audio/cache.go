package audio

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 256

// Cache holds recent speech PCM keyed by message id. It satisfies
// conversation.AudioSink.
type Cache struct {
	lru *lru.Cache[string, []byte]
}

func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("audio cache: %w", err)
	}
	return &Cache{lru: c}, nil
}

func (c *Cache) PutAudio(messageID string, pcm []byte) {
	c.lru.Add(messageID, pcm)
}

// PCM returns the raw speech for a message.
func (c *Cache) PCM(messageID string) ([]byte, bool) {
	return c.lru.Get(messageID)
}

// WAV returns the speech for a message as a playable WAV file.
func (c *Cache) WAV(messageID string) ([]byte, bool) {
	pcm, ok := c.lru.Get(messageID)
	if !ok {
		return nil, false
	}
	return SpeechWAV(pcm), true
}

func (c *Cache) Len() int {
	return c.lru.Len()
}
