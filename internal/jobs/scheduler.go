// Package jobs runs the background cron tasks.
package jobs

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/studyquest/backend/internal/session"
)

// DefaultRolloverSpec fires at local midnight.
const DefaultRolloverSpec = "0 0 * * *"

// Sessions is the set of live sessions the jobs act on.
type Sessions interface {
	Each(fn func(*session.Session))
}

// Scheduler runs the day rollover for every open session.
type Scheduler struct {
	cron     *cron.Cron
	sessions Sessions
	spec     string
	loc      *time.Location
}

// NewScheduler creates a scheduler evaluating spec in loc. An empty spec
// means DefaultRolloverSpec; a nil loc means time.Local.
func NewScheduler(sessions Sessions, spec string, loc *time.Location) *Scheduler {
	if spec == "" {
		spec = DefaultRolloverSpec
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		sessions: sessions,
		spec:     spec,
		loc:      loc,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, func() {
		n := s.RunRollover()
		log.WithField("sessions", n).Info("[CRON] Day rollover")
	}); err != nil {
		return fmt.Errorf("rollover schedule %q: %w", s.spec, err)
	}
	s.cron.Start()
	log.WithFields(log.Fields{"spec": s.spec, "tz": s.loc.String()}).Info("Job scheduler started")
	return nil
}

// Stop stops the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Job scheduler stopped")
}

// RunRollover rolls every open session over to a new day and returns how
// many it touched.
func (s *Scheduler) RunRollover() int {
	n := 0
	s.sessions.Each(func(sess *session.Session) {
		sess.Engine.RollOverDay()
		n++
	})
	return n
}
