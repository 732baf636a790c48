package ports

// SchedulerService schedules one-shot tasks at absolute unix times. Used
// by the application layer to arm swap deadline cancellations.
type SchedulerService interface {
	Start()
	Stop()
	// ScheduleTaskOnce runs task once at the given unix time. Scheduling
	// twice with the same id replaces the previous task.
	ScheduleTaskOnce(at int64, id string, task func()) error
	CancelTask(id string)
}
