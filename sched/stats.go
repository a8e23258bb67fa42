package sched

// Statistics is a point-in-time summary of scheduler state.
type Statistics struct {
	Policy             Policy
	TotalTasks         int
	ReadyTasks         int
	WaitingTasks       int
	TotalFuelConsumed  uint64
	TotalScheduleCount uint64
	GlobalScheduleTime uint64
	FuelQuantum        uint64
}

// Statistics summarizes the current task set.
func (s *Scheduler) Statistics() Statistics {
	stats := Statistics{
		Policy:             s.policy,
		TotalTasks:         s.tasks.Size(),
		GlobalScheduleTime: s.clock,
		FuelQuantum:        s.quantum,
	}
	s.tasks.Each(func(key, value interface{}) {
		t := value.(*Task)
		stats.TotalFuelConsumed += t.FuelConsumed
		stats.TotalScheduleCount += t.ScheduleCount
		switch t.State {
		case StateReady:
			stats.ReadyTasks++
		case StateWaiting:
			stats.WaitingTasks++
		}
	})
	return stats
}

// AverageFuelPerTask returns the mean fuel consumed across registered
// tasks.
func (st Statistics) AverageFuelPerTask() float64 {
	if st.TotalTasks == 0 {
		return 0
	}
	return float64(st.TotalFuelConsumed) / float64(st.TotalTasks)
}

// SchedulingEfficiency returns the share of schedule time spent inside
// tasks, as a percentage.
func (st Statistics) SchedulingEfficiency() float64 {
	if st.GlobalScheduleTime == 0 {
		return 0
	}
	return float64(st.TotalFuelConsumed) / float64(st.GlobalScheduleTime) * 100
}
