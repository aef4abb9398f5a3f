package domain

import "time"

type Enquiry struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Subject   string
	Message   string
	HandledAt *time.Time
	HandledBy string
	CreatedAt time.Time
}
