package setoran

import (
	"encoding/json"
	"sync"

	"github.com/jrsteele09/go-setoran-session/internal/securefile"
	"github.com/pkg/errors"
)

// ProfileCache stores the last lecturer profile on disk.
type ProfileCache struct {
	file *securefile.File
	mu   sync.Mutex
}

func NewProfileCache(file *securefile.File) *ProfileCache {
	return &ProfileCache{file: file}
}

func (p *ProfileCache) Save(profile json.RawMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Wrap(p.file.WriteJSON(profile), "[ProfileCache.Save]")
}

// Load returns the cached profile, if any.
func (p *ProfileCache) Load() (json.RawMessage, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var profile json.RawMessage
	found, err := p.file.ReadJSON(&profile)
	if err != nil {
		return nil, false, errors.Wrap(err, "[ProfileCache.Load]")
	}
	return profile, found, nil
}

func (p *ProfileCache) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Wrap(p.file.Remove(), "[ProfileCache.Clear]")
}
