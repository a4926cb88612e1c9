/*
 * @Author: Marlon.M
 * @Email: maiguangyang@163.com
 * @Date: 2026-06-19
 */
package relay

import (
	"fmt"
	"strings"

	"github.com/duocall/relay_core/pkg/utils"
)

// CleanupReport collects the outcome of every teardown step. A failed step
// is recorded and never aborts the remaining steps.
type CleanupReport struct {
	steps  int
	errors []error
}

// Record notes one completed step. A nil error counts as success.
func (r *CleanupReport) Record(step string, err error) {
	r.steps++
	if err != nil {
		r.errors = append(r.errors, fmt.Errorf("%s: %w", step, err))
	}
}

// Steps returns how many teardown steps ran.
func (r *CleanupReport) Steps() int {
	return r.steps
}

// Errors returns the recorded step failures.
func (r *CleanupReport) Errors() []error {
	return r.errors
}

// Err summarizes the report as a single error, or nil if every step
// succeeded.
func (r *CleanupReport) Err() error {
	if len(r.errors) == 0 {
		return nil
	}
	msgs := make([]string, len(r.errors))
	for i, err := range r.errors {
		msgs[i] = err.Error()
	}
	return fmt.Errorf("%d of %d cleanup step(s) failed: %s", len(r.errors), r.steps, strings.Join(msgs, "; "))
}

// participantCleaner is the slice of Registry/Orchestrator behavior the
// lifecycle manager drives.
type participantCleaner interface {
	CleanupParticipant(participantID string, report *CleanupReport)
}

// roomLeaver is the slice of Coordinator behavior the lifecycle manager
// drives.
type roomLeaver interface {
	Leave(participantID string)
}

// Lifecycle unwinds everything a participant's connection created: the
// orchestrator's pipelines first (they hold subprocesses and ports), then
// the registry's media objects, then room membership. Best-effort
// throughout; a disconnect must always leave the maps clean.
type Lifecycle struct {
	logger       *utils.Logger
	orchestrator participantCleaner
	registry     participantCleaner
	rooms        roomLeaver
}

// NewLifecycle creates a lifecycle manager.
func NewLifecycle(orchestrator, registry participantCleaner, rooms roomLeaver, logger *utils.Logger) *Lifecycle {
	return &Lifecycle{
		logger:       logger.With("lifecycle"),
		orchestrator: orchestrator,
		registry:     registry,
		rooms:        rooms,
	}
}

// CleanupParticipant tears down all state for a disconnected participant
// and notifies the remaining room member. Cleaning up an unknown
// participant is a no-op with an empty report.
func (l *Lifecycle) CleanupParticipant(participantID string) *CleanupReport {
	report := &CleanupReport{}

	l.orchestrator.CleanupParticipant(participantID, report)
	l.registry.CleanupParticipant(participantID, report)
	l.rooms.Leave(participantID)

	if err := report.Err(); err != nil {
		l.logger.Warn("cleanup for %s finished with errors: %v", participantID, err)
	} else {
		l.logger.Info("cleanup for %s finished (%d step(s))", participantID, report.Steps())
	}
	return report
}
