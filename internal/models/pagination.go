package models

// Page is 1-based offset pagination.
type Page struct {
	Number int `json:"page"`
	Limit  int `json:"limit"`
}

// NewPage clamps number to >= 1 and limit to (0, max], using def when limit is unset.
func NewPage(number, limit, def, max int) Page {
	if number < 1 {
		number = 1
	}
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return Page{Number: number, Limit: limit}
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}
