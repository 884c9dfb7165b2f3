package domain

import "time"

// AlertSeverity orders alerts for notification filtering.
type AlertSeverity int

const (
	AlertInfo AlertSeverity = iota
	AlertWarning
	AlertCritical
)

// AlertKind identifies what happened.
type AlertKind string

const (
	AlertKindFill            AlertKind = "fill"
	AlertKindTempAdjustment  AlertKind = "temp_adjustment"
	AlertKindInventoryBreach AlertKind = "inventory_breach"
	AlertKindDailyLossHalt   AlertKind = "daily_loss_halt"
	AlertKindStreamDown      AlertKind = "stream_down"
)

// Alert is an operational event worth telling a human about.
type Alert struct {
	Kind     AlertKind
	Severity AlertSeverity
	MarketID string
	Message  string
	At       time.Time
}
