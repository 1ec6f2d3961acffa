package ingesting

import (
	"context"
	"sync"

	"github.com/wavecrate/wavecrate/src/features/config"
	"github.com/wavecrate/wavecrate/src/music"
)

// albumResolver serializes album resolution per normalized name so that a
// batch ingesting twenty tracks of the same album performs one create and
// nineteen lookups instead of racing the store's unique index.
type albumResolver struct {
	catalog music.Catalog
	policy  config.Retry

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newAlbumResolver(catalog music.Catalog, policy config.Retry) *albumResolver {
	return &albumResolver{
		catalog: catalog,
		policy:  policy,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Resolve maps a raw album name to its canonical record, creating it on
// first sight. An empty name resolves to the singles album.
func (r *albumResolver) Resolve(ctx context.Context, name string) (*music.Album, error) {
	if music.NormalizeAlbumName(name) == "" {
		name = music.SinglesAlbum
	}

	lock := r.lockFor(music.NormalizeAlbumName(name))
	lock.Lock()
	defer lock.Unlock()

	var album *music.Album
	err := withRetry(ctx, r.policy, func() error {
		var err error
		album, err = r.catalog.FindOrCreateAlbum(ctx, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return album, nil
}

func (r *albumResolver) lockFor(normalized string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[normalized]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[normalized] = lock
	}
	return lock
}
