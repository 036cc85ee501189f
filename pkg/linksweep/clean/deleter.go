package clean

import (
	"context"
	"sync"

	"github.com/linksweep/linksweep/pkg/linksweep/alldebrid"
)

// magnetAPI is the slice of the AllDebrid client the deleter uses.
type magnetAPI interface {
	Magnets(ctx context.Context) ([]alldebrid.Magnet, error)
	DeleteMagnet(ctx context.Context, id int64) error
}

// MagnetDeleter resolves unit identifiers (torrent directory names) to
// magnet IDs and deletes them through the AllDebrid API. The magnet list is
// fetched once per run and reused for every unit.
type MagnetDeleter struct {
	api magnetAPI

	mu      sync.Mutex
	loaded  bool
	magnets []alldebrid.Magnet
}

// NewMagnetDeleter creates a deleter backed by the given client.
func NewMagnetDeleter(client *alldebrid.Client) *MagnetDeleter {
	return &MagnetDeleter{api: client}
}

// DeleteUnit implements Deleter. A unit with no matching magnet yields
// ErrNotFound: the content is already gone upstream.
func (d *MagnetDeleter) DeleteUnit(ctx context.Context, unit string) error {
	magnets, err := d.loadMagnets(ctx)
	if err != nil {
		return err
	}

	id, ok := alldebrid.FindMagnetID(unit, magnets)
	if !ok {
		return ErrNotFound
	}

	return d.api.DeleteMagnet(ctx, id)
}

// loadMagnets fetches the magnet list on first use. A failed fetch is not
// cached, so a transient listing failure can be retried by the caller.
func (d *MagnetDeleter) loadMagnets(ctx context.Context) ([]alldebrid.Magnet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.loaded {
		return d.magnets, nil
	}

	magnets, err := d.api.Magnets(ctx)
	if err != nil {
		return nil, err
	}

	d.magnets = magnets
	d.loaded = true
	return d.magnets, nil
}
