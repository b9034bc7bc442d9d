package handlers

import (
	"net/http"

	"github.com/onnwee/channel-insights/backend/internal/scheduler"
)

// SchedulerStatus is the body of GET /api/scheduler/jobs.
type SchedulerStatus struct {
	State   string              `json:"state"`
	Running bool                `json:"running"`
	Jobs    []scheduler.JobInfo `json:"jobs"`
}

func schedulerStatus(s *scheduler.Scheduler) SchedulerStatus {
	return SchedulerStatus{
		State:   s.State().String(),
		Running: s.Running(),
		Jobs:    s.Jobs(),
	}
}

// SchedulerJobs returns the scheduler state and registered jobs.
func SchedulerJobs(s *scheduler.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, schedulerStatus(s))
	}
}
