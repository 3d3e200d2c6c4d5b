// Package watch notices out-of-band deletions under the storage root so
// in-memory state does not keep pointing at files that no longer exist.
package watch

import (
	"context"
	"log"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bryanwahyu/evidence-locker/internal/infra/storage/vault"
)

const settleAfter = 300 * time.Millisecond

// Watcher tails the evidence directories and reports removed files by their
// relative path.
type Watcher struct {
	vault    *vault.Vault
	onRemove func(rel string)
}

func New(v *vault.Vault, onRemove func(rel string)) *Watcher {
	return &Watcher{vault: v, onRemove: onRemove}
}

// Run blocks until ctx is done. Removals are debounced so a rename (remove
// plus create of the same path) does not fire.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	for _, d := range w.vault.WatchDirs() {
		if err := fw.Add(d); err != nil {
			return err
		}
	}
	log.Printf("watching %d evidence directories", len(w.vault.WatchDirs()))

	pending := map[string]time.Time{}
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				pending[ev.Name] = time.Now()
			}
			if ev.Op&fsnotify.Create != 0 {
				delete(pending, ev.Name)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Printf("watcher error: %v", err)
		case now := <-ticker.C:
			for name, t := range pending {
				if now.Sub(t) < settleAfter {
					continue
				}
				delete(pending, name)
				if rel, ok := w.vault.RelFor(name); ok {
					w.onRemove(rel)
				}
			}
		}
	}
}
