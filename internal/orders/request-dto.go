package orders

// CreateOrderRequest converts held seats into an order
type CreateOrderRequest struct {
	OccurrenceID string   `json:"occurrence_id" binding:"required,uuid"`
	Seats        []string `json:"seats" binding:"required,min=1,dive,required"`
	PromoCode    string   `json:"promo_code" binding:"omitempty,max=50"`
	Email        string   `json:"email" binding:"omitempty,email"`
}

// ListQuery pages through the orders of an account
type ListQuery struct {
	Page   int    `form:"page" binding:"omitempty,min=1"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Status Status `form:"status" binding:"omitempty,oneof=PENDING_PAYMENT PAID CANCELED"`
}

// WithDefaults fills page 1 and 10 per page when unset
func (q ListQuery) WithDefaults() ListQuery {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	return q
}
