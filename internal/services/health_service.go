package services

import (
	"context"
	"os"
	"time"
)

// HealthStatus is the aggregate health snapshot returned by the API
type HealthStatus struct {
	Status       string    `json:"status"`
	SettingsOK   bool      `json:"settings_ok"`
	OutputRootOK bool      `json:"output_root_ok"`
	Uptime       string    `json:"uptime"`
	Timestamp    time.Time `json:"timestamp"`
}

// HealthService reports whether the two filesystem dependencies of the
// pipeline are reachable: the settings workbook and the output root.
type HealthService struct {
	settingsPath string
	outputRoot   string
	started      time.Time
}

func NewHealthService(settingsPath, outputRoot string) *HealthService {
	return &HealthService{
		settingsPath: settingsPath,
		outputRoot:   outputRoot,
		started:      time.Now(),
	}
}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	st := HealthStatus{
		Status:    "healthy",
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
	}
	if _, err := os.Stat(s.settingsPath); err == nil {
		st.SettingsOK = true
	}
	if info, err := os.Stat(s.outputRoot); err == nil && info.IsDir() {
		st.OutputRootOK = true
	}
	if !st.SettingsOK || !st.OutputRootOK {
		st.Status = "degraded"
	}
	return st
}
