package database

import (
	"fmt"

	"gorm.io/gorm"
)

// constraint re-creates a named check so the migration can run on every start
type constraint struct {
	table string
	name  string
	check string
}

var checkConstraints = []constraint{
	// hold columns are set exactly when the ticket is HELD
	{
		table: "tickets",
		name:  "chk_ticket_hold_columns",
		check: "(status = 'HELD') = (held_by IS NOT NULL AND hold_expires_at IS NOT NULL)",
	},
	// ORDERED and PAID tickets always point at their order
	{
		table: "tickets",
		name:  "chk_ticket_order_link",
		check: "(status IN ('ORDERED', 'PAID')) = (order_id IS NOT NULL)",
	},
	{
		table: "orders",
		name:  "chk_order_totals",
		check: "subtotal >= 0 AND total >= 0 AND discount_percent BETWEEN 0 AND 100",
	},
}

var indexes = []string{
	// sweeper scan
	`CREATE INDEX IF NOT EXISTS idx_tickets_held_expiry
		ON tickets (hold_expires_at) WHERE status = 'HELD'`,
	// stale pending orders job
	`CREATE INDEX IF NOT EXISTS idx_orders_pending_created
		ON orders (created_at) WHERE status = 'PENDING_PAYMENT'`,
	// delivery outbox retry
	`CREATE INDEX IF NOT EXISTS idx_orders_delivery_pending
		ON orders (paid_at) WHERE status = 'PAID' AND delivery_status = 'PENDING'`,
}

// MigrateConstraints adds the row-level invariants and partial indexes that
// AutoMigrate cannot express
func MigrateConstraints(db *gorm.DB) error {
	for _, c := range checkConstraints {
		stmt := fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s", c.table, c.name)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to drop constraint %s: %w", c.name, err)
		}
		stmt = fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s)", c.table, c.name, c.check)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to add constraint %s: %w", c.name, err)
		}
	}

	for _, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
