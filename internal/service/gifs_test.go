package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Madachii/giffolders/internal/errs"
	"github.com/Madachii/giffolders/internal/frecency"
	"github.com/Madachii/giffolders/internal/gifstore"
	"github.com/Madachii/giffolders/internal/model"
	"github.com/Madachii/giffolders/internal/registry"
	"github.com/Madachii/giffolders/internal/remote"
	"github.com/Madachii/giffolders/internal/storage"
)

type fakeKV struct{ data map[string][]byte }

var _ storage.KV = (*fakeKV)(nil)

func newFakeKV() *fakeKV { return &fakeKV{data: make(map[string][]byte)} }

func (f *fakeKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := f.data[key]
	return v, ok, nil
}
func (f *fakeKV) Set(_ context.Context, key string, value []byte) error {
	f.data[key] = append([]byte(nil), value...)
	return nil
}
func (f *fakeKV) Delete(_ context.Context, key string) error {
	delete(f.data, key)
	return nil
}
func (f *fakeKV) Close() error { return nil }

// fakeRemote holds the settings blob in memory, optionally failing.
type fakeRemote struct {
	settings *frecency.Settings
	fetchErr error
	pushErr  error
	updates  int
}

var _ remote.Settings = (*fakeRemote)(nil)

func newFakeRemote(gifs map[string]model.Gif) *fakeRemote {
	if gifs == nil {
		gifs = make(map[string]model.Gif)
	}
	return &fakeRemote{settings: &frecency.Settings{
		FavoriteGifs: frecency.FavoriteGifs{Gifs: gifs},
	}}
}

func (f *fakeRemote) Fetch(context.Context) (*frecency.Settings, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	// decode a fresh copy so callers cannot mutate the stored blob
	return frecency.Unmarshal(f.settings.Marshal())
}

func (f *fakeRemote) Update(ctx context.Context, mutate func(*frecency.Settings), _ time.Duration) error {
	s, err := f.Fetch(ctx)
	if err != nil {
		return err
	}
	mutate(s)
	if f.pushErr != nil {
		return f.pushErr
	}
	f.settings = s
	f.updates++
	return nil
}

func (f *fakeRemote) gifs() map[string]model.Gif { return f.settings.FavoriteGifs.Gifs }

func newTestService(t *testing.T, rem remote.Settings) *GifService {
	t.Helper()
	kv := newFakeKV()
	log := zap.NewNop()
	reg, err := registry.New(kv, "user1", model.DefaultStep, log)
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	store, err := gifstore.New(kv, "user1", model.DefaultStep, log)
	if err != nil {
		t.Fatalf("gifstore.New: %v", err)
	}
	return New(log, reg, store, rem, time.Hour)
}

func TestInitialize_MergesRemote(t *testing.T) {
	t.Parallel()
	rem := newFakeRemote(map[string]model.Gif{
		"https://x.test/a.gif": {Src: "a", Order: 12},
	})
	s := newTestService(t, rem)

	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	all, err := s.OpenFolder("")
	if err != nil {
		t.Fatalf("OpenFolder: %v", err)
	}
	if g, ok := all["https://x.test/a.gif"]; !ok || g.Order != 12 {
		t.Fatalf("remote favorites not imported: %v", all)
	}
}

func TestInitialize_DegradesWhenRemoteDown(t *testing.T) {
	t.Parallel()
	rem := newFakeRemote(nil)
	rem.fetchErr = fmt.Errorf("dial: %w", errs.ErrRemoteUnavailable)
	s := newTestService(t, rem)

	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("remote failure must not be fatal: %v", err)
	}
}

func TestAddGif_AssignsAndPushes(t *testing.T) {
	t.Parallel()
	rem := newFakeRemote(nil)
	s := newTestService(t, rem)
	ctx := context.Background()
	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	hugs, err := s.CreateFolder(ctx, "hugs")
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}

	assigned, err := s.AddGif(ctx, "hugs", model.Gif{URL: "https://x.test/a.gif?cb=1", Src: "a"})
	if err != nil {
		t.Fatalf("AddGif: %v", err)
	}
	if assigned.Order != hugs.Start {
		t.Fatalf("want order %d, got %d", hugs.Start, assigned.Order)
	}

	// lastFlush starts at zero, so the first flush fires immediately
	if rem.updates != 1 {
		t.Fatalf("want 1 remote update, got %d", rem.updates)
	}
	g, ok := rem.gifs()["https://x.test/a.gif"]
	if !ok || g.Order != hugs.Start {
		t.Fatalf("gif not pushed with local order: ok=%v %+v", ok, g)
	}
	if p := s.Scheduler().Pending(); !p.Empty() {
		t.Fatalf("batch not cleared after flush: %+v", p)
	}
}

func TestAddGif_UnknownFolder(t *testing.T) {
	t.Parallel()
	s := newTestService(t, newFakeRemote(nil))
	_ = s.Initialize(context.Background())

	if _, err := s.AddGif(context.Background(), "nope", model.Gif{URL: "u"}); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestDeleteGif_PushesRemoval(t *testing.T) {
	t.Parallel()
	rem := newFakeRemote(nil)
	s := newTestService(t, rem)
	ctx := context.Background()
	_ = s.Initialize(ctx)
	_, _ = s.CreateFolder(ctx, "hugs")

	if _, err := s.AddGif(ctx, "hugs", model.Gif{URL: "https://x.test/a.gif"}); err != nil {
		t.Fatalf("AddGif: %v", err)
	}
	if err := s.DeleteGif(ctx, "https://x.test/a.gif"); err != nil {
		t.Fatalf("DeleteGif: %v", err)
	}

	// second flush is debounced; force the gate open for the test
	s.Scheduler().Stop()
	if _, ok := rem.gifs()["https://x.test/a.gif"]; ok {
		// delete staged but not yet flushed is acceptable; it must be pending
		p := s.Scheduler().Pending()
		if _, staged := p.ToDelete["https://x.test/a.gif"]; !staged {
			t.Fatalf("delete neither pushed nor pending")
		}
	}
	all, _ := s.OpenFolder("")
	if _, ok := all["https://x.test/a.gif"]; ok {
		t.Fatalf("gif still in local store")
	}
}

func TestFlushFailure_KeepsLocalAndBatch(t *testing.T) {
	t.Parallel()
	rem := newFakeRemote(nil)
	rem.pushErr = fmt.Errorf("status 502: %w", errs.ErrRemoteUnavailable)
	s := newTestService(t, rem)
	ctx := context.Background()
	_ = s.Initialize(ctx)
	_, _ = s.CreateFolder(ctx, "hugs")

	if _, err := s.AddGif(ctx, "hugs", model.Gif{URL: "https://x.test/a.gif"}); err != nil {
		t.Fatalf("AddGif itself must succeed locally: %v", err)
	}

	all, _ := s.OpenFolder("hugs")
	if _, ok := all["https://x.test/a.gif"]; !ok {
		t.Fatalf("local assignment lost on flush failure")
	}
	p := s.Scheduler().Pending()
	if _, ok := p.ToSave["https://x.test/a.gif"]; !ok {
		t.Fatalf("batch dropped on flush failure")
	}
}

func TestDeleteFolder_Policy(t *testing.T) {
	t.Parallel()
	s := newTestService(t, newFakeRemote(nil))
	ctx := context.Background()
	_ = s.Initialize(ctx)
	_, _ = s.CreateFolder(ctx, "hugs")

	if _, err := s.AddGif(ctx, "hugs", model.Gif{URL: "u1"}); err != nil {
		t.Fatalf("AddGif: %v", err)
	}
	if err := s.DeleteFolder(ctx, "hugs"); !errors.Is(err, errs.ErrFolderNotEmpty) {
		t.Fatalf("want ErrFolderNotEmpty, got %v", err)
	}

	if err := s.DeleteGif(ctx, "u1"); err != nil {
		t.Fatalf("DeleteGif: %v", err)
	}
	if err := s.DeleteFolder(ctx, "hugs"); err != nil {
		t.Fatalf("empty folder should delete: %v", err)
	}
	if err := s.DeleteFolder(ctx, "default"); !errors.Is(err, errs.ErrProtectedFolder) {
		t.Fatalf("want ErrProtectedFolder, got %v", err)
	}
}

func TestFlush_MergePreservesLocalOrderOverRemote(t *testing.T) {
	t.Parallel()
	rem := newFakeRemote(map[string]model.Gif{
		"https://x.test/a.gif": {Src: "remote-src", Order: 999},
	})
	s := newTestService(t, rem)
	ctx := context.Background()
	_ = s.Initialize(ctx)
	_, _ = s.CreateFolder(ctx, "hugs")

	// move the gif into hugs locally, then flush
	if _, err := s.AddGif(ctx, "hugs", model.Gif{URL: "https://x.test/a.gif", Src: "remote-src"}); err != nil {
		t.Fatalf("AddGif: %v", err)
	}

	g := rem.gifs()["https://x.test/a.gif"]
	folder, _ := s.reg.Lookup("hugs")
	if !folder.Contains(g.Order) {
		t.Fatalf("pushed order %d not in hugs range [%d,%d)", g.Order, folder.Start, folder.End)
	}
}
