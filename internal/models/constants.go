package models

const (
	// DefaultSlotDurationMinutes длительность одного слота
	DefaultSlotDurationMinutes = 30

	// DefaultMaxBookingDays горизонт записи в днях
	DefaultMaxBookingDays = 365

	// DefaultLockTTLSeconds время жизни блокировки расписания
	DefaultLockTTLSeconds = 10
)
