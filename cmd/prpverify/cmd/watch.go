package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"prp-proof/proof"
)

// settle is how long a file must stay unchanged before it is verified;
// provers write residues in bursts.
const settle = 2 * time.Second

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("pattern", "*.proof", "only verify files matching this glob")
	watchCmd.Flags().String("halving", "square-b", "odd-distance strategy the prover used (square-b|square-a)")
	watchCmd.Flags().Bool("partial", false, "verify proofs that are still being written at reduced power")
	watchCmd.Flags().String("ledger", "", "record results in this ledger directory")
	watchCmd.Flags().Bool("skip-known", false, "skip files the ledger already verified")
	viper.BindPFlag("watch.pattern", watchCmd.Flags().Lookup("pattern"))
}

var watchCmd = &cobra.Command{
	Use:           "watch [dir]",
	Short:         "Verify proofs as they appear in a directory",
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PreRun: func(cmd *cobra.Command, args []string) {
		// verify shares these keys; bind them to this command's flags only
		// when it is the one running
		viper.BindPFlag("verify.halving", cmd.Flags().Lookup("halving"))
		viper.BindPFlag("verify.partial", cmd.Flags().Lookup("partial"))
		viper.BindPFlag("ledger.path", cmd.Flags().Lookup("ledger"))
		viper.BindPFlag("ledger.skip-known", cmd.Flags().Lookup("skip-known"))
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dir := cfg.Watch.Dir
		if len(args) > 0 {
			dir = args[0]
		}
		if dir, err = filepath.Abs(dir); err != nil {
			return err
		}

		s, err := newSession(cfg, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		w, err := newWatcher(ctx, s, cfg.Watch.Pattern)
		if err != nil {
			return err
		}
		defer w.close()
		if err := w.add(dir); err != nil {
			return err
		}
		log.WithField("dir", dir).Infof("Watching for %s", cfg.Watch.Pattern)
		return w.run()
	},
}

// watcher serializes verification of settled files; an engine run is
// CPU bound, so files are verified one at a time.
type watcher struct {
	ctx     context.Context
	s       *session
	pattern string
	fs      *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
	queue   chan string
	// modification times of files already verified, to ignore touches
	seen *lru.Cache[string, time.Time]
}

func newWatcher(ctx context.Context, s *session, pattern string) (*watcher, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, errors.Wrapf(err, "bad pattern %q", pattern)
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	seen, err := lru.New[string, time.Time](1024)
	if err != nil {
		fs.Close()
		return nil, err
	}
	return &watcher{
		ctx:     ctx,
		s:       s,
		pattern: pattern,
		fs:      fs,
		pending: make(map[string]*time.Timer),
		queue:   make(chan string, 64),
		seen:    seen,
	}, nil
}

func (w *watcher) close() error { return w.fs.Close() }

// add watches dir and queues the matching files already in it.
func (w *watcher) add(dir string) error {
	if err := w.fs.Add(dir); err != nil {
		return errors.Wrapf(err, "watch %s", dir)
	}
	matches, err := filepath.Glob(filepath.Join(dir, w.pattern))
	if err != nil {
		return err
	}
	for _, m := range matches {
		w.schedule(m)
	}
	return nil
}

func (w *watcher) matches(path string) bool {
	ok, _ := filepath.Match(w.pattern, filepath.Base(path))
	return ok
}

// schedule (re)starts the settle timer of path.
func (w *watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Reset(settle)
		return
	}
	w.pending[path] = time.AfterFunc(settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		select {
		case w.queue <- path:
		case <-w.ctx.Done():
		}
	})
}

func (w *watcher) run() error {
	for {
		select {
		case <-w.ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.matches(event.Name) || !(event.Has(fsnotify.Create) || event.Has(fsnotify.Write)) {
				continue
			}
			log.Debugf("event: %s", event)
			w.schedule(event.Name)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			log.Errorf("watch error: %v", err)
		case path := <-w.queue:
			w.verify(path)
		}
	}
}

func (w *watcher) verify(path string) {
	info, err := os.Stat(path)
	if err != nil {
		log.WithError(err).Debug("file vanished")
		return
	}
	if prev, ok := w.seen.Get(path); ok && prev.Equal(info.ModTime()) {
		return
	}
	res, known, err := w.s.verify(w.ctx, path)
	switch {
	case known:
	case errors.Is(err, proof.ErrResidueRead) && !w.s.cfg.Verify.Partial:
		// still being written; the next write event reschedules it
		log.WithField("file", path).Debug("proof incomplete")
		return
	case err != nil:
		log.WithField("file", path).Error(err.Error())
	default:
		printResult(w.s.out, path, res)
	}
	w.seen.Add(path, info.ModTime())
}
