package main

import (
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"sheetstamp/internal/config"
)

// Scheduler stamps attendance on cron schedules while the panel runs.
type Scheduler struct {
	cronScheduler *cron.Cron
	app           *App
	jobs          []cron.EntryID
}

func NewScheduler(app *App) *Scheduler {
	return &Scheduler{
		cronScheduler: cron.New(),
		app:           app,
	}
}

// Start registers the configured jobs and starts the scheduler. It returns
// the number of jobs registered; with none the scheduler is not started.
func (s *Scheduler) Start(schedule config.Schedule) (int, error) {
	jobs := []struct {
		spec  string
		label string
		run   func(time.Time) (string, error)
	}{
		{schedule.CheckIn, "check-in", s.app.CheckIn},
		{schedule.CheckOut, "check-out", s.app.CheckOut},
	}

	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		job := job
		id, err := s.cronScheduler.AddFunc(job.spec, func() {
			log.Printf("running scheduled %s", job.label)
			path, err := job.run(time.Now())
			if err != nil {
				log.Printf("scheduled %s failed: %v", job.label, err)
				return
			}
			log.Printf("scheduled %s recorded in %s", job.label, path)
		})
		if err != nil {
			return 0, fmt.Errorf("error scheduling %s: %w", job.label, err)
		}
		s.jobs = append(s.jobs, id)
		log.Printf("scheduled %s at %q", job.label, job.spec)
	}

	if len(s.jobs) > 0 {
		s.cronScheduler.Start()
	}
	return len(s.jobs), nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	if len(s.jobs) == 0 {
		return
	}
	<-s.cronScheduler.Stop().Done()
	log.Println("scheduler stopped")
}
