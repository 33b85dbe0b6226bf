// Package watcher 监听文档目录，文档新增或修改后重新索引。
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-faq/pkg/infra/server"
	"github.com/kart-io/sentinel-faq/pkg/utils/validator"
)

// DefaultDebounce 同一文件连续事件的合并窗口。
const DefaultDebounce = 500 * time.Millisecond

// Ingester 重新索引单个文件，由 *biz.FAQService 实现。
type Ingester interface {
	IngestFile(ctx context.Context, path string) (int, error)
}

// Watcher 基于 fsnotify 的文档目录监听器，实现 server.Runnable。
type Watcher struct {
	dir      string
	debounce time.Duration
	ingester Ingester

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	timers  map[string]*time.Timer
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

var _ server.Runnable = (*Watcher)(nil)

// New 创建目录监听器，debounce <= 0 时使用 DefaultDebounce。
func New(dir string, ingester Ingester, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		ingester: ingester,
		timers:   make(map[string]*time.Timer),
	}
}

// Name 返回组件名称。
func (w *Watcher) Name() string {
	return "documents-watcher"
}

// Start 开始监听目录，不阻塞。重复调用无副作用。
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	w.fsw = fsw
	w.ctx, w.cancel = context.WithCancel(context.WithoutCancel(ctx))
	w.running = true

	w.wg.Add(1)
	go w.loop(fsw)

	logger.Infow("Documents watcher: started", "directory", w.dir, "debounce", w.debounce.String())
	return nil
}

// Stop 停止监听，并取消尚未触发的重新索引。
func (w *Watcher) Stop(_ context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	w.cancel()
	err := w.fsw.Close()
	w.mu.Unlock()

	w.wg.Wait()
	logger.Info("Documents watcher: stopped")
	return err
}

func (w *Watcher) loop(fsw *fsnotify.Watcher) {
	defer w.wg.Done()
	for {
		select {
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !validator.HasDocumentExtension(ev.Name) {
				continue
			}
			w.schedule(ev.Name)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logger.Warnw("Documents watcher: fsnotify error", "error", err.Error())
		}
	}
}

// schedule 在 debounce 窗口结束后重新索引 path，窗口内的新事件会重置计时。
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	if t, ok := w.timers[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() { w.reingest(path) })
}

func (w *Watcher) reingest(path string) {
	w.mu.Lock()
	delete(w.timers, path)
	ctx := w.ctx
	running := w.running
	w.mu.Unlock()
	if !running {
		return
	}

	chunks, err := w.ingester.IngestFile(ctx, path)
	if err != nil {
		logger.Errorw("Documents watcher: failed to re-index document",
			"filename", filepath.Base(path),
			"error", err.Error(),
		)
		return
	}
	logger.Infow("Documents watcher: re-indexed document",
		"filename", filepath.Base(path),
		"chunks", chunks,
	)
}
