// Package registry owns the set of named folders and their order-range
// assignments. It is a leaf: no dependencies beyond a key-value load/save at
// operation boundaries.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Madachii/giffolders/internal/errs"
	"github.com/Madachii/giffolders/internal/model"
	"github.com/Madachii/giffolders/internal/storage"
)

// DefaultName is the reserved sink folder for legacy/unassigned gifs. It is
// seeded at id 0 on first load and can be neither renamed nor deleted.
const DefaultName = "default"

// Normalize lowercases and trims a user-supplied folder name.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// snapshot is the persisted registry document. NextID is stored explicitly so
// ids are never reused after a deletion; reusing an id would hand its range to
// a new folder and resurrect stale cached assignments into it.
type snapshot struct {
	NextID  int            `json:"next_id"`
	Folders []model.Folder `json:"folders"`
}

// Registry holds live folders keyed by normalized name. Every mutating
// operation persists the full snapshot before committing the in-memory change.
type Registry struct {
	mu     sync.Mutex
	kv     storage.KV
	key    string
	step   uint64
	log    *zap.Logger
	nextID int
	byName map[string]model.Folder
	names  []string // creation order, for stable listing
}

// New constructs a registry for one user. Call Load before use.
func New(kv storage.KV, userID string, step uint64, log *zap.Logger) (*Registry, error) {
	key, err := storage.FoldersKey(userID)
	if err != nil {
		return nil, err
	}
	if step == 0 {
		step = model.DefaultStep
	}
	return &Registry{
		kv:     kv,
		key:    key,
		step:   step,
		log:    log,
		byName: make(map[string]model.Folder),
	}, nil
}

// Load reads the stored registry and seeds the default folder when none
// exists yet.
func (r *Registry) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw, ok, err := r.kv.Get(ctx, r.key)
	if err != nil {
		return fmt.Errorf("load folders: %w", err)
	}
	if ok {
		var snap snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return fmt.Errorf("decode folders: %w", err)
		}
		r.nextID = snap.NextID
		r.byName = make(map[string]model.Folder, len(snap.Folders))
		r.names = r.names[:0]
		for _, f := range snap.Folders {
			r.byName[f.Name] = f
			r.names = append(r.names, f.Name)
			if f.ID >= r.nextID {
				r.nextID = f.ID + 1
			}
		}
	}
	if len(r.byName) > 0 {
		return nil
	}

	def := model.NewFolder(0, DefaultName, r.step)
	r.byName[DefaultName] = def
	r.names = []string{DefaultName}
	r.nextID = 1
	if err := r.persist(ctx); err != nil {
		return fmt.Errorf("seed default folder: %w", err)
	}
	r.log.Info("seeded default folder",
		zap.Uint64("start", def.Start), zap.Uint64("end", def.End))
	return nil
}

// Create allocates the next id, derives the range from the step rule, and
// persists the registry.
func (r *Registry) Create(ctx context.Context, name string) (model.Folder, error) {
	name = Normalize(name)
	if name == "" {
		return model.Folder{}, errs.ErrInvalidName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return model.Folder{}, fmt.Errorf("%q: %w", name, errs.ErrDuplicateName)
	}

	f := model.NewFolder(r.nextID, name, r.step)
	r.byName[name] = f
	r.names = append(r.names, name)
	r.nextID++
	if err := r.persist(ctx); err != nil {
		delete(r.byName, name)
		r.names = r.names[:len(r.names)-1]
		r.nextID--
		return model.Folder{}, err
	}
	return f, nil
}

// Rename swaps the map key but not the id or range, so every gif's membership
// survives the rename. The default folder cannot be renamed: it is looked up
// by name as the sink for unassigned gifs.
func (r *Registry) Rename(ctx context.Context, oldName, newName string) error {
	oldName, newName = Normalize(oldName), Normalize(newName)
	if newName == "" {
		return errs.ErrInvalidName
	}
	if oldName == newName {
		return nil
	}
	if oldName == DefaultName {
		return errs.ErrProtectedFolder
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, exists := r.byName[oldName]
	if !exists {
		return fmt.Errorf("%q: %w", oldName, errs.ErrNotFound)
	}
	if _, taken := r.byName[newName]; taken {
		return fmt.Errorf("%q: %w", newName, errs.ErrDuplicateName)
	}

	f.Name = newName
	delete(r.byName, oldName)
	r.byName[newName] = f
	for i, n := range r.names {
		if n == oldName {
			r.names[i] = newName
			break
		}
	}
	if err := r.persist(ctx); err != nil {
		f.Name = oldName
		delete(r.byName, newName)
		r.byName[oldName] = f
		for i, n := range r.names {
			if n == newName {
				r.names[i] = oldName
				break
			}
		}
		return err
	}
	return nil
}

// Swap exchanges the id and range of two live folders, trading their contents.
// Names and creation order stay put.
func (r *Registry) Swap(ctx context.Context, a, b string) error {
	a, b = Normalize(a), Normalize(b)
	if a == b {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	fa, okA := r.byName[a]
	fb, okB := r.byName[b]
	if !okA {
		return fmt.Errorf("%q: %w", a, errs.ErrNotFound)
	}
	if !okB {
		return fmt.Errorf("%q: %w", b, errs.ErrNotFound)
	}

	fa.ID, fb.ID = fb.ID, fa.ID
	fa.Start, fb.Start = fb.Start, fa.Start
	fa.End, fb.End = fb.End, fa.End
	r.byName[a], r.byName[b] = fa, fb
	if err := r.persist(ctx); err != nil {
		fa.ID, fb.ID = fb.ID, fa.ID
		fa.Start, fb.Start = fb.Start, fa.Start
		fa.End, fb.End = fb.End, fa.End
		r.byName[a], r.byName[b] = fa, fb
		return err
	}
	return nil
}

// Delete removes a folder from the registry. Its range stays permanently
// unused; ids are never handed out twice. The caller is responsible for
// checking the folder is empty first.
func (r *Registry) Delete(ctx context.Context, name string) error {
	name = Normalize(name)
	if name == DefaultName {
		return errs.ErrProtectedFolder
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, exists := r.byName[name]
	if !exists {
		return fmt.Errorf("%q: %w", name, errs.ErrNotFound)
	}

	delete(r.byName, name)
	idx := -1
	for i, n := range r.names {
		if n == name {
			idx = i
			break
		}
	}
	r.names = append(r.names[:idx], r.names[idx+1:]...)
	if err := r.persist(ctx); err != nil {
		r.byName[name] = f
		r.names = append(r.names, "")
		copy(r.names[idx+1:], r.names[idx:])
		r.names[idx] = name
		return err
	}
	return nil
}

// Lookup returns the folder with the given (normalized) name.
func (r *Registry) Lookup(name string) (model.Folder, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.byName[Normalize(name)]
	return f, ok
}

// All returns the live folders in creation order.
func (r *Registry) All() []model.Folder {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Folder, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.byName[n])
	}
	return out
}

func (r *Registry) persist(ctx context.Context) error {
	snap := snapshot{NextID: r.nextID, Folders: make([]model.Folder, 0, len(r.names))}
	for _, n := range r.names {
		snap.Folders = append(snap.Folders, r.byName[n])
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := r.kv.Set(ctx, r.key, raw); err != nil {
		return fmt.Errorf("persist folders: %w", err)
	}
	return nil
}
