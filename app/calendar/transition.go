package calendar

import (
	"github.com/lysyi3m/content-calendar/app/database"
	"github.com/lysyi3m/content-calendar/app/errs"
)

// itemStatusOrder is the nominal workflow; failed and cancelled sit outside it.
var itemStatusOrder = []database.ItemStatus{
	database.ItemStatusPlanned,
	database.ItemStatusDraft,
	database.ItemStatusReady,
	database.ItemStatusApproved,
	database.ItemStatusScheduled,
	database.ItemStatusPublished,
}

var validItemStatuses = map[database.ItemStatus]bool{
	database.ItemStatusPlanned:   true,
	database.ItemStatusDraft:     true,
	database.ItemStatusReady:     true,
	database.ItemStatusApproved:  true,
	database.ItemStatusScheduled: true,
	database.ItemStatusPublished: true,
	database.ItemStatusFailed:    true,
	database.ItemStatusCancelled: true,
}

var validPlanStatuses = map[database.PlanStatus]bool{
	database.PlanStatusDraft:     true,
	database.PlanStatusActive:    true,
	database.PlanStatusCompleted: true,
	database.PlanStatusArchived:  true,
}

func IsValidItemStatus(s database.ItemStatus) bool {
	return validItemStatuses[s]
}

func IsValidPlanStatus(s database.PlanStatus) bool {
	return validPlanStatuses[s]
}

// IsTerminal reports whether an item in status s can no longer change status.
func IsTerminal(s database.ItemStatus) bool {
	return s == database.ItemStatusPublished || s == database.ItemStatusCancelled
}

// ItemStatuses returns every item status in workflow order.
func ItemStatuses() []database.ItemStatus {
	return append(append([]database.ItemStatus{}, itemStatusOrder...),
		database.ItemStatusFailed, database.ItemStatusCancelled)
}

// CheckTransition validates a caller-directed status change. Moves between
// non-terminal states are free in either direction; terminal states are final.
// Reaching published additionally requires generated text, which the item
// store checks since it needs the item.
func CheckTransition(from, to database.ItemStatus) error {
	if !IsValidItemStatus(to) {
		return errs.Validation("transition", "unknown item status %q", to)
	}
	if from == to {
		return nil
	}
	if IsTerminal(from) {
		return errs.Validation("transition", "item is %s and cannot move to %s", from, to)
	}
	return nil
}
