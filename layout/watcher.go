package layout

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// ChangeKind describes what happened to a watched description file.
type ChangeKind int

const (
	ChangeModified ChangeKind = iota
	ChangeRemoved
)

func (k ChangeKind) String() string {
	if k == ChangeRemoved {
		return "removed"
	}
	return "modified"
}

// Change is a debounced change to one of the watched description files.
type Change struct {
	Kind ChangeKind
	File string
}

// Watcher reports edits to the layout, catalog and tools files. The layout
// is loaded once at startup, so changes are surfaced rather than applied.
type Watcher struct {
	Changes <-chan Change

	changes  chan Change
	done     chan struct{}
	files    map[string]bool
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

// NewWatcher creates a watcher for the given files. Their parent
// directories are watched so that editors replacing files are seen.
func NewWatcher(files ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ch := make(chan Change, 16)
	w := &Watcher{
		Changes:  ch,
		changes:  ch,
		done:     make(chan struct{}),
		files:    make(map[string]bool, len(files)),
		debounce: 200 * time.Millisecond,
		watcher:  fw,
	}
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			fw.Close()
			return nil, err
		}
		w.files[abs] = true
	}
	return w, nil
}

// Start begins watching.
func (w *Watcher) Start() error {
	dirs := make(map[string]bool)
	for f := range w.files {
		dirs[filepath.Dir(f)] = true
	}
	for dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			return err
		}
	}
	go w.loop()
	return nil
}

// Stop closes the watcher and the Changes channel.
func (w *Watcher) Stop() {
	w.watcher.Close()
	<-w.done
	close(w.changes)
}

func (w *Watcher) loop() {
	defer close(w.done)

	pending := make(map[string]fsnotify.Op)
	last := make(map[string]time.Time)
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				for file, op := range pending {
					w.emit(file, op)
				}
				return
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !w.files[abs] {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending[abs] = event.Op
				last[abs] = time.Now()
			}

		case <-ticker.C:
			now := time.Now()
			for file, op := range pending {
				if now.Sub(last[file]) >= w.debounce {
					w.emit(file, op)
					delete(pending, file)
					delete(last, file)
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Layout watcher error")
		}
	}
}

func (w *Watcher) emit(file string, op fsnotify.Op) {
	kind := ChangeModified
	if op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
		kind = ChangeRemoved
	}
	select {
	case w.changes <- Change{Kind: kind, File: file}:
	default:
		log.Warn().Str("file", file).Msg("Layout change dropped, channel full")
	}
}
