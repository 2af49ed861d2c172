package models

import "time"

// Роли заданий печати
const (
	RoleReceipt       = "receipt"
	RoleKitchenTicket = "kitchen_ticket"
)

// Статусы заданий печати
const (
	JobStatusPending = "pending"
	JobStatusSent    = "sent"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"
)

// Типы принтеров
const (
	PrinterTypeNetwork = "network"
	PrinterTypeUSB     = "usb"
)

const (
	// DefaultPrinterPort стандартный raw-порт сетевых термопринтеров
	DefaultPrinterPort = 9100

	// DefaultPaperWidth ширина ленты в миллиметрах
	DefaultPaperWidth = 80

	// ConnectedThreshold окно, в котором устройство считается подключённым
	ConnectedThreshold = 60 * time.Second

	// DirectSendTimeout таймаут соединения и записи при прямой печати
	DirectSendTimeout = 5 * time.Second

	// ProbeTimeout таймаут проверки доступности принтера
	ProbeTimeout = 2 * time.Second

	// StuckJobThreshold после этого срока отправленное задание без подтверждения считается зависшим
	StuckJobThreshold = 2 * time.Minute

	// DefaultPollBatchSize максимум заданий, выдаваемых агенту за один опрос
	DefaultPollBatchSize = 20
)

// ValidRole reports whether role is one of the job roles.
func ValidRole(role string) bool {
	return role == RoleReceipt || role == RoleKitchenTicket
}

// ValidPrinterType reports whether typ is a supported printer type.
func ValidPrinterType(typ string) bool {
	return typ == PrinterTypeNetwork || typ == PrinterTypeUSB
}

// ValidJobStatus reports whether status is one of the job statuses.
func ValidJobStatus(status string) bool {
	switch status {
	case JobStatusPending, JobStatusSent, JobStatusDone, JobStatusFailed:
		return true
	}
	return false
}
