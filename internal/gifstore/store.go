// Package gifstore owns the authoritative local mapping from gif URL to gif
// record and reconciles it against remote snapshots. All read-modify-write
// sequences are serialized by the store mutex so racing assigns, deletes and
// flushes cannot corrupt the collection.
package gifstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Madachii/giffolders/internal/errs"
	"github.com/Madachii/giffolders/internal/model"
	"github.com/Madachii/giffolders/internal/storage"
)

// Store holds the gif collection for one user plus a best-effort preview
// cache keyed by folder id.
type Store struct {
	mu       sync.Mutex
	kv       storage.KV
	key      string
	step     uint64
	log      *zap.Logger
	gifs     map[string]model.Gif
	previews map[int]model.Preview
}

// New constructs a store for one user. Call Load before use.
func New(kv storage.KV, userID string, step uint64, log *zap.Logger) (*Store, error) {
	key, err := storage.GifsKey(userID)
	if err != nil {
		return nil, err
	}
	if step == 0 {
		step = model.DefaultStep
	}
	return &Store{
		kv:       kv,
		key:      key,
		step:     step,
		log:      log,
		gifs:     make(map[string]model.Gif),
		previews: make(map[int]model.Preview),
	}, nil
}

// Load reads the stored collection and rebuilds the preview cache.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return fmt.Errorf("load gifs: %w", err)
	}
	if ok {
		if err := json.Unmarshal(raw, &s.gifs); err != nil {
			return fmt.Errorf("decode gifs: %w", err)
		}
	}
	s.refreshPreviewsLocked()
	return nil
}

// Assign places a gif into the folder's range at max existing order + 1.
// Gaps left by removals are skipped permanently: forward allocation only, so
// an order value is never handed out twice within one folder's lifetime.
// Returns the updated collection (shallow copies).
func (s *Store) Assign(ctx context.Context, folder model.Folder, gif model.Gif) (map[string]model.Gif, error) {
	gif = gif.Clean()
	if gif.URL == "" {
		return nil, errs.ErrMissingIdentifier
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	highest := folder.Start - 1
	for _, g := range s.gifs {
		if folder.Contains(g.Order) && g.Order > highest {
			highest = g.Order
		}
	}
	if highest+1 >= folder.End {
		return nil, fmt.Errorf("folder %q: %w", folder.Name, errs.ErrNoRoom)
	}

	url := gif.URL
	gif.URL = "" // the map key carries identity
	gif.Order = highest + 1

	prev, had := s.gifs[url]
	s.gifs[url] = gif
	if err := s.persistLocked(ctx); err != nil {
		if had {
			s.gifs[url] = prev
		} else {
			delete(s.gifs, url)
		}
		return nil, err
	}

	s.previews[folder.ID] = model.Preview{Src: gif.Src, Format: gif.Format}
	return s.snapshotLocked(nil), nil
}

// Remove deletes the entry. Remaining gifs keep their orders; nothing is
// compacted or renumbered.
func (s *Store) Remove(ctx context.Context, url string) (map[string]model.Gif, error) {
	url = model.CleanURL(url)
	if url == "" {
		return nil, errs.ErrMissingIdentifier
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.gifs[url]
	if !ok {
		return nil, fmt.Errorf("%q: %w", url, errs.ErrNotFound)
	}
	delete(s.gifs, url)
	if err := s.persistLocked(ctx); err != nil {
		s.gifs[url] = prev
		return nil, err
	}
	return s.snapshotLocked(nil), nil
}

// Query returns the gifs whose order falls in the folder's range, or the
// whole collection when folder is nil. Entries are shallow copies; mutating
// the result does not touch the store.
func (s *Store) Query(folder *model.Folder) map[string]model.Gif {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(folder)
}

// CountInRange reports how many gifs currently live in the folder's range.
func (s *Store) CountInRange(folder model.Folder) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, g := range s.gifs {
		if folder.Contains(g.Order) {
			n++
		}
	}
	return n
}

// Reconcile merges a freshly fetched remote snapshot into the local
// collection and persists the result. Remote wins on every field except
// Order, which only exists locally; see Merge for the exact rules.
func (s *Store) Reconcile(ctx context.Context, remote map[string]model.Gif) (map[string]model.Gif, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.gifs
	s.gifs = Merge(s.gifs, remote)
	if err := s.persistLocked(ctx); err != nil {
		s.gifs = prev
		return nil, err
	}
	s.refreshPreviewsLocked()
	return s.snapshotLocked(nil), nil
}

// ReplaceAll overwrites the whole collection, used after a successful flush
// to commit the merged snapshot that was pushed upstream.
func (s *Store) ReplaceAll(ctx context.Context, gifs map[string]model.Gif) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.gifs
	s.gifs = make(map[string]model.Gif, len(gifs))
	for url, g := range gifs {
		g.URL = ""
		s.gifs[model.CleanURL(url)] = g
	}
	if err := s.persistLocked(ctx); err != nil {
		s.gifs = prev
		return err
	}
	s.refreshPreviewsLocked()
	return nil
}

// Preview returns the cached thumbnail for a folder, if any.
func (s *Store) Preview(folderID int) (model.Preview, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.previews[folderID]
	return p, ok
}

// Merge combines local and remote collections: for URLs in both, remote wins
// on every field except Order (remote has no folder concept and would reset
// every position). Remote-only entries are added as-is. Local-only entries
// are kept; they may be unsynced or deleted elsewhere, which this design
// cannot distinguish without tombstones.
func Merge(local, remote map[string]model.Gif) map[string]model.Gif {
	out := make(map[string]model.Gif, len(local)+len(remote))
	for url, g := range local {
		out[url] = g
	}
	for url, rg := range remote {
		rg.URL = ""
		url = model.CleanURL(url)
		if lg, ok := out[url]; ok {
			rg.Order = lg.Order
		}
		out[url] = rg
	}
	return out
}

func (s *Store) snapshotLocked(folder *model.Folder) map[string]model.Gif {
	out := make(map[string]model.Gif)
	for url, g := range s.gifs {
		if folder != nil && !folder.Contains(g.Order) {
			continue
		}
		out[url] = g
	}
	return out
}

func (s *Store) persistLocked(ctx context.Context) error {
	raw, err := json.Marshal(s.gifs)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, s.key, raw); err != nil {
		return fmt.Errorf("persist gifs: %w", err)
	}
	return nil
}

// refreshPreviewsLocked rebuilds the preview cache from a full scan, keeping
// the first gif seen per folder. Map iteration order makes the winner
// arbitrary, which is fine: the cache is cosmetic.
func (s *Store) refreshPreviewsLocked() {
	seen := make(map[int]struct{}, len(s.previews))
	s.previews = make(map[int]model.Preview)
	for _, g := range s.gifs {
		id := int(g.Order / s.step)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		s.previews[id] = model.Preview{Src: g.Src, Format: g.Format}
	}
}
