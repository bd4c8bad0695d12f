// Command giffolders organizes favorited gifs into named folders backed by
// the remote settings store.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/Madachii/giffolders/internal/gifstore"
	"github.com/Madachii/giffolders/internal/migrate"
	"github.com/Madachii/giffolders/internal/model"
	"github.com/Madachii/giffolders/internal/registry"
	"github.com/Madachii/giffolders/internal/remote"
	"github.com/Madachii/giffolders/internal/service"
	"github.com/Madachii/giffolders/internal/storage"
	"github.com/Madachii/giffolders/internal/storage/postgres"
	"github.com/Madachii/giffolders/internal/storage/sqlite"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "giffolders")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "giffolders")
}

func usage() {
	fmt.Fprintf(os.Stderr, `giffolders CLI
Usage:
  giffolders -user ID [-token TOK] [-db file | -dsn postgres://...] <cmd> [args]

Commands:
  version
  init                                  (import remote favorites)
  folders                               (list folders with previews)
  folder-add     -name <name>
  folder-rename  -old <name> -new <name>
  folder-swap    -a <name> -b <name>    (trade ranges/contents)
  folder-rm      -name <name>           (folder must be empty)
  add            -folder <name> -url <url> [-src <src>] [-w N] [-h N] [-format N]
  rm             -url <url>
  ls             [-folder <name>]
  sync                                  (force a flush)
`)
	os.Exit(2)
}

// main dispatches subcommands over a service wired to the chosen backend.
func main() {
	user := flag.String("user", os.Getenv("GIFFOLDERS_USER"), "user id (storage key scope)")
	token := flag.String("token", os.Getenv("GIFFOLDERS_TOKEN"), "settings API auth token")
	base := flag.String("base", "https://discord.com/api/v9", "settings API base URL")
	dbPath := flag.String("db", filepath.Join(cfgDir(), "gifs.db"), "sqlite database path")
	dsn := flag.String("dsn", "", "PostgreSQL DSN (overrides -db)")
	step := flag.Uint64("step", model.DefaultStep, "order-space width per folder")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)
	if cmd == "version" {
		fmt.Printf("giffolders %s (%s)\n", version, buildDate)
		return
	}

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	kv, err := openKV(ctx, *dbPath, *dsn)
	if err != nil {
		fail(err)
	}
	defer kv.Close()

	reg, err := registry.New(kv, *user, *step, logger)
	if err != nil {
		fail(err)
	}
	store, err := gifstore.New(kv, *user, *step, logger)
	if err != nil {
		fail(err)
	}
	rem := remote.NewClient(*base, *token, logger)
	svc := service.New(logger, reg, store, rem, 0)

	if err := svc.Initialize(ctx); err != nil {
		fail(err)
	}

	switch cmd {

	case "init":
		fmt.Println("ok")

	case "folders":
		type row struct {
			ID         int    `json:"id"`
			Name       string `json:"name"`
			Start      uint64 `json:"start"`
			End        uint64 `json:"end"`
			PreviewSrc string `json:"preview_src,omitempty"`
		}
		rows := []row{}
		for _, f := range svc.Folders() {
			r := row{ID: f.ID, Name: f.Name, Start: f.Start, End: f.End}
			if p, ok := svc.FolderPreview(f.ID); ok {
				r.PreviewSrc = p.Src
			}
			rows = append(rows, r)
		}
		printJSON(rows)

	case "folder-add":
		fs := flag.NewFlagSet("folder-add", flag.ExitOnError)
		name := fs.String("name", "", "folder name")
		_ = fs.Parse(flag.Args()[1:])
		if *name == "" {
			fmt.Fprintln(os.Stderr, "need -name")
			os.Exit(1)
		}
		f, err := svc.CreateFolder(ctx, *name)
		if err != nil {
			fail(err)
		}
		printJSON(f)

	case "folder-rename":
		fs := flag.NewFlagSet("folder-rename", flag.ExitOnError)
		oldName := fs.String("old", "", "current name")
		newName := fs.String("new", "", "new name")
		_ = fs.Parse(flag.Args()[1:])
		if *oldName == "" || *newName == "" {
			fmt.Fprintln(os.Stderr, "need -old and -new")
			os.Exit(1)
		}
		if err := svc.RenameFolder(ctx, *oldName, *newName); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "folder-swap":
		fs := flag.NewFlagSet("folder-swap", flag.ExitOnError)
		a := fs.String("a", "", "first folder")
		b := fs.String("b", "", "second folder")
		_ = fs.Parse(flag.Args()[1:])
		if *a == "" || *b == "" {
			fmt.Fprintln(os.Stderr, "need -a and -b")
			os.Exit(1)
		}
		if err := svc.SwapFolder(ctx, *a, *b); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "folder-rm":
		fs := flag.NewFlagSet("folder-rm", flag.ExitOnError)
		name := fs.String("name", "", "folder name")
		_ = fs.Parse(flag.Args()[1:])
		if *name == "" {
			fmt.Fprintln(os.Stderr, "need -name")
			os.Exit(1)
		}
		if err := svc.DeleteFolder(ctx, *name); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "add":
		fs := flag.NewFlagSet("add", flag.ExitOnError)
		folder := fs.String("folder", registry.DefaultName, "target folder")
		url := fs.String("url", "", "gif url (identifier)")
		src := fs.String("src", "", "render source url")
		w := fs.Int("w", 0, "render width")
		h := fs.Int("h", 0, "render height")
		format := fs.Int("format", 1, "format enum (passthrough)")
		_ = fs.Parse(flag.Args()[1:])
		if *url == "" {
			fmt.Fprintln(os.Stderr, "need -url")
			os.Exit(1)
		}
		gif := model.Gif{URL: *url, Src: *src, Width: *w, Height: *h, Format: *format}
		if gif.Src == "" {
			gif.Src = model.CleanURL(*url)
		}
		assigned, err := svc.AddGif(ctx, *folder, gif)
		if err != nil {
			fail(err)
		}
		fmt.Printf("order=%d\n", assigned.Order)

	case "rm":
		fs := flag.NewFlagSet("rm", flag.ExitOnError)
		url := fs.String("url", "", "gif url (identifier)")
		_ = fs.Parse(flag.Args()[1:])
		if *url == "" {
			fmt.Fprintln(os.Stderr, "need -url")
			os.Exit(1)
		}
		if err := svc.DeleteGif(ctx, *url); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "ls":
		fs := flag.NewFlagSet("ls", flag.ExitOnError)
		folder := fs.String("folder", "", "folder to open (empty = all)")
		_ = fs.Parse(flag.Args()[1:])
		gifs, err := svc.OpenFolder(*folder)
		if err != nil {
			fail(err)
		}
		type row struct {
			URL   string `json:"url"`
			Src   string `json:"src"`
			Order uint64 `json:"order"`
		}
		rows := make([]row, 0, len(gifs))
		for url, g := range gifs {
			rows = append(rows, row{URL: url, Src: g.Src, Order: g.Order})
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].Order < rows[j].Order })
		printJSON(rows)

	case "sync":
		svc.Flush(ctx)
		fmt.Println("ok")

	default:
		usage()
	}
}

// openKV picks the backend: postgres when a DSN is given, sqlite otherwise.
func openKV(ctx context.Context, dbPath, dsn string) (storage.KV, error) {
	if dsn != "" {
		if err := migrate.Up(ctx, dsn); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		db, err := postgres.New(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return postgres.NewKV(db), nil
	}
	return sqlite.Open(dbPath)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
