package domain

import "time"

// FunnelRun is one execution of the batch wallet funnel.
type FunnelRun struct {
	ID         int64
	Status     string // "running", "completed", "failed"
	StartedAt  time.Time
	FinishedAt *time.Time
	Error      string
}

// StageStats are the per-stage counters exposed for the dashboard.
type StageStats struct {
	RunID      int64
	Stage      int
	Name       string
	Processed  int
	Qualified  int
	Eliminated int
	FinishedAt time.Time
}

// WalletClass is the stage-6 classification of a surviving wallet.
type WalletClass string

const (
	WalletClassInsider    WalletClass = "insider"
	WalletClassSharp      WalletClass = "sharp"
	WalletClassGrinder    WalletClass = "grinder"
	WalletClassUnprofiled WalletClass = "unprofiled"
)
