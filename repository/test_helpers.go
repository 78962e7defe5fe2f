package repository

import (
	"cashdesk/database"
	"cashdesk/events"
	"cashdesk/service"
)

// NewTestUnitOfWorkFactory creates a unit of work factory for tests, backed
// by a fresh event bus with no subscribers.
func NewTestUnitOfWorkFactory(db *database.DB) service.UnitOfWorkFactory {
	return NewUnitOfWorkFactory(db, events.NewBus())
}
