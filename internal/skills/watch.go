package skills

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a workspace's skills whenever an entry directly inside
// skillDir is written, created, removed or renamed. The watch is not
// recursive: editing the SKILL.md inside an existing skill's subdirectory
// does not trigger a reload.
type Watcher struct {
	dir     string
	watcher *fsnotify.Watcher
	onLoad  func([]Skill)
}

// NewWatcher constructs a watcher over skillDir; onLoad is invoked with the
// freshly reloaded skill set on every relevant filesystem event.
func NewWatcher(skillDir string, onLoad func([]Skill)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(skillDir); err != nil {
		w.Close()
		return nil, err
	}
	return &Watcher{dir: skillDir, watcher: w, onLoad: onLoad}, nil
}

// Run blocks, reloading skills on every write/create/remove/rename event
// until Close is called.
func (w *Watcher) Run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.onLoad(Load(w.dir))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("skills.watch_error", "error", err)
		}
	}
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
