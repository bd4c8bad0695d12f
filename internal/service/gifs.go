// Package service orchestrates the folder registry, the local gif store, the
// sync scheduler and the remote settings endpoint.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Madachii/giffolders/internal/errs"
	"github.com/Madachii/giffolders/internal/frecency"
	"github.com/Madachii/giffolders/internal/gifstore"
	"github.com/Madachii/giffolders/internal/model"
	"github.com/Madachii/giffolders/internal/registry"
	"github.com/Madachii/giffolders/internal/remote"
	"github.com/Madachii/giffolders/internal/scheduler"
)

// GifService is the single entry point the command surface talks to.
type GifService struct {
	log    *zap.Logger
	reg    *registry.Registry
	store  *gifstore.Store
	remote remote.Settings
	sched  *scheduler.Scheduler
}

// New wires the components together. The scheduler is constructed here so
// its flush function closes over the store and remote. A non-positive
// minInterval selects the scheduler default.
func New(log *zap.Logger, reg *registry.Registry, store *gifstore.Store, rem remote.Settings, minInterval time.Duration) *GifService {
	s := &GifService{
		log:    log,
		reg:    reg,
		store:  store,
		remote: rem,
	}
	s.sched = scheduler.New(s.flushBatch, minInterval, log)
	return s
}

// Scheduler exposes the flush scheduler for the background loop.
func (s *GifService) Scheduler() *scheduler.Scheduler { return s.sched }

// Initialize loads local state and merges the remote favorites in. A
// remote failure degrades to the last known local snapshot.
func (s *GifService) Initialize(ctx context.Context) error {
	if err := s.reg.Load(ctx); err != nil {
		return err
	}
	if err := s.store.Load(ctx); err != nil {
		return err
	}

	settings, err := s.remote.Fetch(ctx)
	if err != nil {
		if errors.Is(err, errs.ErrRemoteUnavailable) {
			s.log.Warn("remote unavailable, using local snapshot", zap.Error(err))
			return nil
		}
		return err
	}
	if _, err := s.store.Reconcile(ctx, settings.FavoriteGifs.Gifs); err != nil {
		return err
	}
	s.log.Info("initialized",
		zap.Int("folders", len(s.reg.All())),
		zap.Int("gifs", len(s.store.Query(nil))))
	return nil
}

// AddGif assigns a gif to the named folder, stages the save, and requests a
// flush.
func (s *GifService) AddGif(ctx context.Context, folderName string, gif model.Gif) (model.Gif, error) {
	folder, ok := s.reg.Lookup(folderName)
	if !ok {
		return model.Gif{}, fmt.Errorf("folder %q: %w", folderName, errs.ErrNotFound)
	}
	col, err := s.store.Assign(ctx, folder, gif)
	if err != nil {
		return model.Gif{}, err
	}
	url := model.CleanURL(gif.URL)
	assigned := col[url]
	s.sched.RecordSave(url, assigned)
	s.sched.RequestFlush(ctx)
	return assigned, nil
}

// DeleteGif removes a gif, stages the delete, and requests a flush.
func (s *GifService) DeleteGif(ctx context.Context, url string) error {
	if _, err := s.store.Remove(ctx, url); err != nil {
		return err
	}
	s.sched.RecordDelete(model.CleanURL(url))
	s.sched.RequestFlush(ctx)
	return nil
}

// OpenFolder returns the gifs in the named folder, or the whole collection
// when name is empty.
func (s *GifService) OpenFolder(name string) (map[string]model.Gif, error) {
	if name == "" {
		return s.store.Query(nil), nil
	}
	folder, ok := s.reg.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("folder %q: %w", name, errs.ErrNotFound)
	}
	return s.store.Query(&folder), nil
}

// Folders lists live folders in creation order.
func (s *GifService) Folders() []model.Folder { return s.reg.All() }

// FolderPreview returns the cached thumbnail for a folder.
func (s *GifService) FolderPreview(folderID int) (model.Preview, bool) {
	return s.store.Preview(folderID)
}

// CreateFolder adds a folder under the next free id.
func (s *GifService) CreateFolder(ctx context.Context, name string) (model.Folder, error) {
	return s.reg.Create(ctx, name)
}

// RenameFolder renames a folder; the range and contents stay put.
func (s *GifService) RenameFolder(ctx context.Context, oldName, newName string) error {
	return s.reg.Rename(ctx, oldName, newName)
}

// SwapFolder trades the ranges of two folders, exchanging their contents.
func (s *GifService) SwapFolder(ctx context.Context, a, b string) error {
	return s.reg.Swap(ctx, a, b)
}

// DeleteFolder removes an empty folder. Folders that still hold gifs are
// rejected: orders in an unclaimed range would become invisible forever.
func (s *GifService) DeleteFolder(ctx context.Context, name string) error {
	folder, ok := s.reg.Lookup(name)
	if !ok {
		// let the registry produce ErrProtectedFolder/ErrNotFound uniformly
		return s.reg.Delete(ctx, name)
	}
	if n := s.store.CountInRange(folder); n > 0 {
		return fmt.Errorf("folder %q holds %d gifs: %w", name, n, errs.ErrFolderNotEmpty)
	}
	return s.reg.Delete(ctx, name)
}

// Flush requests an immediate flush, subject to the debounce gate.
func (s *GifService) Flush(ctx context.Context) { s.sched.RequestFlush(ctx) }

// flushBatch merges the pending batch into a fresh remote snapshot inside
// the update mutator, then commits the merged collection locally. Remote
// fields win except Order; batch entries win over both.
func (s *GifService) flushBatch(ctx context.Context, batch model.Batch) error {
	var merged map[string]model.Gif
	err := s.remote.Update(ctx, func(settings *frecency.Settings) {
		merged = gifstore.Merge(s.store.Query(nil), settings.FavoriteGifs.Gifs)
		for url, g := range batch.ToSave {
			g.URL = ""
			merged[url] = g
		}
		for url := range batch.ToDelete {
			delete(merged, url)
		}
		settings.FavoriteGifs.Gifs = merged
	}, 0)
	if err != nil {
		return err
	}
	return s.store.ReplaceAll(ctx, merged)
}
