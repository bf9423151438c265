package service

// ExportedProbe runs one probing pass without waiting for the schedule.
func (m *HealthMonitor) ExportedProbe() { m.probe() }
