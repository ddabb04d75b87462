package localstore

import (
	"encoding/json"
	"errors"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/cart"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/storage"
)

type CartSnapshots struct {
	Store storage.Store
}

func (c *CartSnapshots) Save(lines []cart.Line) error {
	if lines == nil {
		lines = []cart.Line{}
	}
	raw, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	return c.Store.Set(storage.KeyCart, raw)
}

// Load returns the saved lines, or none when nothing was saved.
func (c *CartSnapshots) Load() ([]cart.Line, error) {
	raw, err := c.Store.Get(storage.KeyCart)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var lines []cart.Line
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}
