package database

import (
	"seatflow/internal/orders"
	"seatflow/internal/promocodes"
	"seatflow/internal/seats"
	"seatflow/internal/users"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&users.User{},
		&seats.Occurrence{},
		&seats.Ticket{},
		&promocodes.Promocode{},
		&promocodes.PromocodeScope{},
		&orders.Order{},
		&orders.OrderItem{},
	)
}
