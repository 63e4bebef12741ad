package models

import "time"

type Project struct {
	ID          int64     `json:"id"`
	OwnerID     string    `json:"-"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}
