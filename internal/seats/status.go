package seats

type Status string

const (
	StatusFree    Status = "FREE"
	StatusHeld    Status = "HELD"
	StatusOrdered Status = "ORDERED"
	StatusPaid    Status = "PAID"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusFree, StatusHeld, StatusOrdered, StatusPaid:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// IsSold reports whether the seat is claimed by an order
func (s Status) IsSold() bool {
	return s == StatusOrdered || s == StatusPaid
}
