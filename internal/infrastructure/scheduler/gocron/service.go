package timescheduler

import (
	"fmt"
	"time"

	"github.com/anchorswap/swapd/internal/core/ports"
	"github.com/go-co-op/gocron"
)

type service struct {
	scheduler *gocron.Scheduler
}

func NewScheduler() ports.SchedulerService {
	svc := gocron.NewScheduler(time.UTC)
	return &service{svc}
}

func (s *service) Start() {
	s.scheduler.StartAsync()
}

func (s *service) Stop() {
	s.scheduler.Stop()
}

func (s *service) ScheduleTaskOnce(at int64, id string, task func()) error {
	if at < time.Now().Unix() {
		return fmt.Errorf("cannot schedule task in the past")
	}

	// replace any previously armed task with the same id
	// nolint
	s.scheduler.RemoveByTag(id)

	_, err := s.scheduler.Every(1).Second().LimitRunsTo(1).
		StartAt(time.Unix(at, 0)).Tag(id).Do(task)
	return err
}

func (s *service) CancelTask(id string) {
	// nolint
	s.scheduler.RemoveByTag(id)
}
