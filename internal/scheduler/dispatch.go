package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-rules/internal/action"
	"github.com/nerrad567/gray-logic-rules/internal/condition"
	"github.com/nerrad567/gray-logic-rules/internal/rules"
	"github.com/nerrad567/gray-logic-rules/internal/state"
)

// defaultLoop evaluates the default scene until ctx is cancelled.
func (s *Scheduler) defaultLoop(ctx context.Context, scene *rules.SceneRule) {
	s.logger.Debug("default loop started", "scene", scene.Name)
	defer s.logger.Debug("default loop exited", "scene", scene.Name)

	for ctx.Err() == nil {
		// Never preempt: wait out whatever is in flight.
		if s.inflight.Load() > 0 {
			if !sleep(ctx, s.idleSpin) {
				return
			}
			continue
		}
		if !sleep(ctx, s.tryDefault(ctx, scene)) {
			return
		}
	}
}

// tryDefault runs one default-scene evaluation under the task lock and
// returns how long the loop should sleep afterwards.
func (s *Scheduler) tryDefault(ctx context.Context, scene *rules.SceneRule) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning || ctx.Err() != nil {
		return 0
	}
	if s.inflight.Load() > 0 {
		return s.idleSpin
	}

	now := s.now()
	if last, ok := s.lastRun[scene.Name]; ok {
		if elapsed := now.Sub(last); elapsed < scene.Interval {
			return scene.Interval - elapsed
		}
	}
	s.lastRun[scene.Name] = now

	match, ok := scene.Match(s.registry.Load(), now)
	if !ok {
		return max(scene.Interval, s.idleSpin)
	}

	s.inflight.Add(1)
	s.startChainLocked(scene, "", match, now)
	return max(scene.Interval, s.idleSpin)
}

// onFacts is the registry observer. It runs on the producer's goroutine,
// which may be a running operation, so it never takes the task lock and
// only schedules work on the pool.
func (s *Scheduler) onFacts(applied []state.Fact) {
	if !s.running.Load() {
		return
	}
	m := s.model.Load()
	if m == nil {
		return
	}
	gen := s.generation.Load()

	if trigger, found := pickTrigger(m, applied); found {
		if _, queued := s.pendingTriggers.LoadOrStore(trigger, struct{}{}); queued {
			return
		}
		if !s.pool.Go(func(context.Context) {
			s.pendingTriggers.Delete(trigger)
			s.handleTrigger(gen, trigger)
		}) {
			s.pendingTriggers.Delete(trigger)
		}
		return
	}
	if cur := s.currentInfo.Load(); cur != nil && cur.Interrupt != nil {
		if !s.pendingInterrupt.CompareAndSwap(false, true) {
			return
		}
		if !s.pool.Go(func(context.Context) {
			s.pendingInterrupt.Store(false)
			s.checkInterrupt(gen)
		}) {
			s.pendingInterrupt.Store(false)
		}
	}
}

// pickTrigger selects the highest-priority trigger among non-clear facts.
// An unset priority beats any set one; ties keep the first seen.
func pickTrigger(m *rules.Model, facts []state.Fact) (string, bool) {
	var (
		best     string
		bestPrio *int
		found    bool
	)
	for _, f := range facts {
		if f.Cleared {
			continue
		}
		scene, ok := m.SceneForTrigger(f.Name)
		if !ok {
			continue
		}
		switch {
		case !found:
			best, bestPrio, found = f.Name, scene.Priority, true
		case bestPrio == nil:
		case scene.Priority == nil || *scene.Priority > *bestPrio:
			best, bestPrio = f.Name, scene.Priority
		}
	}
	return best, found
}

// handleTrigger evaluates the scene bound to trigger and dispatches it if
// it matches and may preempt the running chain.
func (s *Scheduler) handleTrigger(gen uint64, trigger string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning || gen != s.generation.Load() {
		return
	}
	scene, ok := s.model.Load().SceneForTrigger(trigger)
	if !ok {
		return
	}

	now := s.now()
	if last, ok := s.lastRun[scene.Name]; ok && now.Sub(last) < scene.Interval {
		s.logger.Debug("trigger ignored: cooling down", "scene", scene.Name, "trigger", trigger)
		return
	}

	match, ok := scene.Match(s.registry.Load(), now)
	if !ok {
		return
	}
	if !canPreempt(s.current, scene.Priority) {
		s.logger.Debug("trigger ignored: running chain has priority",
			"scene", scene.Name,
			"running_scene", s.current.info.Scene,
		)
		return
	}
	s.lastRun[scene.Name] = now

	// Count the new chain before stopping the old one so the default loop
	// never sees an idle gap.
	s.inflight.Add(1)
	if old := s.current; old != nil {
		s.setCurrentLocked(nil)
		finished := old.handle.Stop()
		s.logger.Info("chain preempted",
			"chain_id", old.info.ID,
			"scene", old.info.Scene,
			"by_scene", scene.Name,
			"already_finished", finished,
		)
	}
	s.startChainLocked(scene, trigger, match, now)
}

// canPreempt implements the priority rule.
func canPreempt(cur *running, incoming *int) bool {
	if cur == nil {
		return true
	}
	select {
	case <-cur.handle.Done():
		return true
	default:
	}
	if cur.info.Priority == nil {
		return true
	}
	return incoming != nil && *incoming > *cur.info.Priority
}

// checkInterrupt stops whichever chain is running when the check runs if
// its interrupt condition holds.
func (s *Scheduler) checkInterrupt(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning || gen != s.generation.Load() {
		return
	}
	cur := s.current
	if cur == nil || cur.info.Interrupt == nil {
		return
	}
	if !condition.Eval(cur.info.Interrupt, s.registry.Load(), s.now()) {
		return
	}

	s.setCurrentLocked(nil)
	cur.handle.Stop()
	s.logger.Info("chain interrupted",
		"chain_id", cur.info.ID,
		"scene", cur.info.Scene,
		"interrupt", cur.info.Interrupt.String(),
	)
}

// startChainLocked hands a match to the executor. The caller holds the
// task lock and has already counted the chain in flight.
func (s *Scheduler) startChainLocked(scene *rules.SceneRule, trigger string, match rules.Match, now time.Time) {
	info := ExecutionInfo{
		ID:         uuid.NewString(),
		Scene:      scene.Name,
		Trigger:    trigger,
		Priority:   scene.Priority,
		Operations: match.Operations,
		Expression: match.Expression,
		Interrupt:  match.Interrupt,
		Notify:     match.Notify,
		StartedAt:  now,
	}

	s.logger.Info("chain dispatched",
		"chain_id", info.ID,
		"scene", info.Scene,
		"trigger", info.Trigger,
		"expression", info.Expression,
		"operations", len(info.Operations),
	)
	s.events.push(Event{Kind: EventDispatched, Info: info})

	handle := s.executor.RunAsync(info.ID, info.Operations, func(res action.Result) {
		s.onChainDone(info, res)
	})
	s.setCurrentLocked(&running{info: info, handle: handle})
}

// onChainDone runs on the chain's worker after the executor finished.
// Failures are not retried.
func (s *Scheduler) onChainDone(info ExecutionInfo, res action.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inflight.Add(-1)
	if s.current != nil && s.current.info.ID == info.ID {
		s.setCurrentLocked(nil)
	}

	switch {
	case res.Success:
		s.logger.Info("chain completed", "chain_id", info.ID, "scene", info.Scene)
	case res.Stopped:
		s.logger.Info("chain stopped", "chain_id", info.ID, "scene", info.Scene,
			"completed", res.Completed, "total", res.Total)
	default:
		s.logger.Warn("chain failed", "chain_id", info.ID, "scene", info.Scene, "error", res.Err)
	}

	s.events.push(Event{
		Kind:    EventCompleted,
		Info:    info,
		Success: res.Success,
		Stopped: res.Stopped,
		Err:     res.Err,
	})
}
