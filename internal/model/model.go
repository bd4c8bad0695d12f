// Package model defines domain entities shared by the registry, store and scheduler.
package model

import "strings"

// DefaultStep is the width of one folder's slice of the shared order space.
// With a 32-bit order value this bounds the system at roughly 42k folders.
const DefaultStep uint64 = 100_000

// Folder is a named, numerically bounded partition of the order space.
// The range is derived from the id and never changes afterwards: renames swap
// the name only, so every gif's membership survives a rename untouched.
type Folder struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

// NewFolder derives the folder's half-open range [Start, End) from its id:
// Start = id*step + 1, End = id*step + step. The allocation guard in the
// store stops one short of End, so the value id*step+step is never assigned
// and adjacent folders cannot collide.
func NewFolder(id int, name string, step uint64) Folder {
	start := uint64(id)*step + 1
	return Folder{
		ID:    id,
		Name:  name,
		Start: start,
		End:   uint64(id)*step + step,
	}
}

// Contains reports whether an order value falls inside the folder's range.
func (f Folder) Contains(order uint64) bool {
	return order >= f.Start && order < f.End
}

// Gif is a favorited item. The URL is its identity; Order is the sole
// determinant of folder membership. Stored map values leave URL empty since
// the map key already carries it.
type Gif struct {
	URL    string `json:"url,omitempty"`
	Src    string `json:"src"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format int    `json:"format"`
	Order  uint64 `json:"order"`
}

// CleanURL strips transport-appended query parameters so the same logical gif
// maps to one key regardless of cache-busting tokens.
func CleanURL(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i]
	}
	return url
}

// Clean returns a copy with the identifier normalized.
func (g Gif) Clean() Gif {
	g.URL = CleanURL(g.URL)
	return g
}

// Preview is a denormalized thumbnail for a folder. Best-effort: updated
// opportunistically on scans and assigns, never authoritative.
type Preview struct {
	Src    string
	Format int
}

// Batch is the pending mutation set accumulated between flushes. An
// identifier lives in at most one of the two maps; the most recent operation
// wins.
type Batch struct {
	ToSave   map[string]Gif
	ToDelete map[string]struct{}
}

// NewBatch returns an empty batch with both maps allocated.
func NewBatch() Batch {
	return Batch{
		ToSave:   make(map[string]Gif),
		ToDelete: make(map[string]struct{}),
	}
}

// Save stages an upsert and clears any staged delete for the same key.
func (b *Batch) Save(url string, g Gif) {
	delete(b.ToDelete, url)
	b.ToSave[url] = g
}

// Delete stages a removal and clears any staged save for the same key.
func (b *Batch) Delete(url string) {
	delete(b.ToSave, url)
	b.ToDelete[url] = struct{}{}
}

// Empty reports whether nothing is staged.
func (b Batch) Empty() bool {
	return len(b.ToSave) == 0 && len(b.ToDelete) == 0
}

// Clone returns a deep copy so a flush can work on a stable snapshot.
func (b Batch) Clone() Batch {
	out := NewBatch()
	for k, v := range b.ToSave {
		out.ToSave[k] = v
	}
	for k := range b.ToDelete {
		out.ToDelete[k] = struct{}{}
	}
	return out
}
