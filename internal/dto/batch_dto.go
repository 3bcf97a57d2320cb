package dto

import "time"

// BatchRequest selects the subjects a scoring run should cover.
type BatchRequest struct {
	SubjectIDs []uint `json:"subject_ids" validate:"required,min=1,dive,gt=0"`
	Period     string `json:"period"`
}

// BatchError records one subject that failed during a batch run.
type BatchError struct {
	SubjectID uint   `json:"subject_id"`
	Reason    string `json:"reason"`
}

// BatchStats aggregates classification counts across a completed run.
type BatchStats struct {
	Low       int `json:"low"`
	Medium    int `json:"medium"`
	High      int `json:"high"`
	Critical  int `json:"critical"`
	Anomalies int `json:"anomalies"`
}

// BatchReport summarises a scoring run for batch callers.
type BatchReport struct {
	RunID         string       `json:"run_id"`
	StartedAt     time.Time    `json:"started_at"`
	FinishedAt    time.Time    `json:"finished_at"`
	Processed     int          `json:"processed"`
	Committed     int          `json:"committed"`
	AlertsCreated int          `json:"alerts_created"`
	Cancelled     bool         `json:"cancelled"`
	Stats         BatchStats   `json:"stats"`
	Errors        []BatchError `json:"errors"`
}
