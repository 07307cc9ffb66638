package seats

import (
	"fmt"
	"strconv"
	"strings"

	"seatflow/internal/shared/apperr"

	"github.com/google/uuid"
)

// buildTickets expands category layouts into one FREE ticket per seat
func buildTickets(occ *Occurrence, categories []CategoryLayout) ([]Ticket, error) {
	var tickets []Ticket
	seen := make(map[string]struct{})

	for _, cat := range categories {
		if cat.Price.IsNegative() {
			return nil, apperr.Validation(apperr.CodeInvalidInput, "price must not be negative").WithField("category", cat.Name)
		}
		if _, dup := seen[cat.Name]; dup {
			return nil, apperr.Validation(apperr.CodeInvalidInput, "category listed twice").WithField("category", cat.Name)
		}
		seen[cat.Name] = struct{}{}

		rows, err := generateRowLabels(cat.RowStart, cat.RowEnd)
		if err != nil {
			return nil, apperr.Validation(apperr.CodeInvalidInput, err.Error()).WithField("category", cat.Name)
		}

		position := 1
		for _, row := range rows {
			for n := 1; n <= cat.SeatsPerRow; n++ {
				tickets = append(tickets, Ticket{
					ID:           uuid.New(),
					OccurrenceID: occ.ID,
					HallID:       occ.HallID,
					Category:     cat.Name,
					Row:          row,
					Number:       strconv.Itoa(n),
					Position:     position,
					Status:       StatusFree,
					Price:        cat.Price.Round(2),
					Currency:     occ.Currency,
				})
				position++
			}
		}
	}

	return tickets, nil
}

// generateRowLabels creates row labels between start and end, numeric or single letters
func generateRowLabels(start, end string) ([]string, error) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	var rows []string

	if startNum, err := strconv.Atoi(start); err == nil {
		endNum, err := strconv.Atoi(end)
		if err != nil {
			return nil, fmt.Errorf("inconsistent row format: start is numeric but end is not")
		}
		if startNum > endNum {
			return nil, fmt.Errorf("start row (%d) cannot be greater than end row (%d)", startNum, endNum)
		}
		for i := startNum; i <= endNum; i++ {
			rows = append(rows, strconv.Itoa(i))
		}
		return rows, nil
	}

	if len(start) != 1 || len(end) != 1 {
		return nil, fmt.Errorf("alphabetic rows must be single characters")
	}
	startChar, endChar := strings.ToUpper(start)[0], strings.ToUpper(end)[0]
	if startChar < 'A' || endChar > 'Z' {
		return nil, fmt.Errorf("alphabetic rows must be between A and Z")
	}
	if startChar > endChar {
		return nil, fmt.Errorf("start row (%s) cannot be greater than end row (%s)", start, end)
	}
	for c := startChar; c <= endChar; c++ {
		rows = append(rows, string(c))
	}
	return rows, nil
}
