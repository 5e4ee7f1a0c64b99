package workspace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/zjrosen/diagramdesk/internal/contenthash"
	"github.com/zjrosen/diagramdesk/internal/domain"
	"github.com/zjrosen/diagramdesk/internal/log"
	"github.com/zjrosen/diagramdesk/internal/persistence"
)

// Start launches background work: the persistence writer, the autosave
// job and the external change listener. A stopped Session cannot be
// started again.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return errors.New("session already stopped")
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	s.mu.Unlock()

	if s.persister != nil {
		s.persister.Start(s.ctx)
	}

	if err := s.scheduleAutosave(s.store.State().Settings); err != nil {
		return err
	}
	s.cron.Start()

	if s.changes != nil {
		ch, err := s.changes.Start()
		if err != nil {
			log.Warn(log.CatWatcher, "external change detection disabled", "error", err)
		} else {
			s.wg.Add(1)
			go s.watchChanges(s.ctx, ch)
		}
	}

	log.Info(log.CatWorkspace, "session started")
	return nil
}

// Stop releases everything Start acquired. Pending drafts and the pending
// state snapshot are written before it returns.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.stopped = true
	pending := make([]domain.TabID, 0, len(s.timers))
	for id, t := range s.timers {
		if t.Stop() {
			pending = append(pending, id)
		}
		delete(s.timers, id)
	}
	c := s.cron
	s.mu.Unlock()

	for _, id := range pending {
		s.writeDraft(ctx, id)
	}

	s.cancel()
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}

	if s.changes != nil {
		if err := s.changes.Stop(); err != nil {
			log.Warn(log.CatWatcher, "stopping change source failed", "error", err)
		}
	}

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.wg.Wait()

	if s.persister != nil {
		if err := s.persister.Stop(ctx); err != nil {
			return fmt.Errorf("flushing workspace snapshot: %w", err)
		}
	}
	log.Info(log.CatWorkspace, "session stopped")
	return nil
}

// onChange runs inside Dispatch and only starts asynchronous work.
func (s *Session) onChange(c Change) {
	if !c.Accepted() {
		return
	}

	for _, t := range RemovedTabs(c.Prev, c.State) {
		s.mu.Lock()
		if timer, ok := s.timers[t.ID]; ok {
			timer.Stop()
			delete(s.timers, t.ID)
		}
		s.mu.Unlock()
		if t.IsModified {
			s.stash(t)
		}
	}

	prev, next := c.Prev.Settings, c.State.Settings
	if prev.AutoSave != next.AutoSave || prev.AutoSaveInterval != next.AutoSaveInterval {
		if err := s.scheduleAutosave(next); err != nil {
			log.ErrorErr(log.CatWorkspace, "rescheduling autosave failed", err)
		}
	}
}

// stash writes a closed tab's unsaved content to its autosave slot. Once
// Stop has begun the write happens inline.
func (s *Session) stash(t domain.EditorTab) {
	if s.gateway == nil || t.IsolationKey == "" {
		return
	}
	write := func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(s.baseContext()), s.cfg.CallTimeout)
		defer cancel()
		if err := s.saveDraft(ctx, t); err != nil {
			log.ErrorErr(log.CatPersist, "stashing closed tab failed", err, "tab", t.ID)
			return
		}
		log.Info(log.CatPersist, "stashed unsaved tab", "tab", t.ID, "title", t.Title)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		write()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.wg.Done()
		write()
	}()
}

// scheduleDraft (re)starts the content debounce timer of a tab.
func (s *Session) scheduleDraft(id domain.TabID) {
	if s.gateway == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
	}
	s.timers[id] = time.AfterFunc(s.cfg.ContentDebounce, func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(s.baseContext(), s.cfg.CallTimeout)
		defer cancel()
		s.writeDraft(ctx, id)
	})
}

// PendingDrafts returns how many debounce timers are waiting to fire.
func (s *Session) PendingDrafts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Session) writeDraft(ctx context.Context, id domain.TabID) {
	tab, ok := findTab(s.store.State(), id)
	if !ok || !tab.IsModified {
		return
	}
	if err := s.saveDraft(ctx, tab); err != nil {
		log.ErrorErr(log.CatPersist, "writing autosave draft failed", err, "tab", id)
	}
}

func (s *Session) saveDraft(ctx context.Context, t domain.EditorTab) error {
	_, err := s.gateway.SaveDraft(ctx, t.IsolationKey, contenthash.KindAutosave, persistence.Draft{
		DiagramID: t.DiagramID,
		Title:     t.Title,
		Content:   t.EditorState.Content,
	})
	return err
}

func (s *Session) deleteDraft(ctx context.Context, isolationKey string) {
	if s.gateway == nil || isolationKey == "" {
		return
	}
	if err := s.gateway.DeleteDraft(ctx, isolationKey, contenthash.KindAutosave); err != nil {
		log.ErrorErr(log.CatPersist, "deleting autosave draft failed", err)
	}
}

// scheduleAutosave replaces the autosave job to match settings. It is a
// no-op before Start.
func (s *Session) scheduleAutosave(settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return nil
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
		s.entry = 0
		s.interval = 0
	}
	if !settings.AutoSave {
		return nil
	}
	interval := settings.AutoSaveInterval
	if interval < time.Second {
		interval = time.Second
	}
	entry, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), s.runAutosave)
	if err != nil {
		return fmt.Errorf("scheduling autosave every %s: %w", interval, err)
	}
	s.entry = entry
	s.interval = interval
	log.Debug(log.CatWorkspace, "autosave scheduled", "interval", interval)
	return nil
}

// AutosaveInterval returns the active autosave interval, or zero when
// autosave is not scheduled.
func (s *Session) AutosaveInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *Session) runAutosave() {
	state := s.store.State()
	if !state.Settings.AutoSave || state.CurrentProject == nil || s.remote == nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.baseContext(), s.cfg.CallTimeout)
	defer cancel()
	if err := s.SaveCurrentProject(ctx); err != nil {
		log.Warn(log.CatWorkspace, "autosave incomplete", "error", err)
	}
}

// RunAutosave performs one autosave pass immediately.
func (s *Session) RunAutosave() {
	s.runAutosave()
}

func (s *Session) watchChanges(ctx context.Context, ch <-chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			s.ReloadExternal(ctx)
		}
	}
}

// ReloadExternal restores the stored snapshot when another process wrote
// it. Snapshots this process wrote are ignored.
func (s *Session) ReloadExternal(ctx context.Context) {
	if s.gateway == nil {
		return
	}
	text, ok, err := s.gateway.Raw(ctx)
	if err != nil {
		log.ErrorErr(log.CatWatcher, "reading external snapshot failed", err)
		return
	}
	if !ok || (s.persister != nil && s.persister.IsOwnWrite(text)) {
		return
	}
	state, err := persistence.Deserialize(text)
	if err != nil {
		s.Notify(WarningNotification("Ignored external workspace change", err))
		return
	}
	a := NewStateRestored(state)
	a.SetSkipPersist(true)
	if res := s.store.Dispatch(a); res.Err == nil {
		log.Info(log.CatWatcher, "workspace reloaded after external change", "revision", res.State.Revision)
	}
}

func (s *Session) baseContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}
