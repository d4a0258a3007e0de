package models

import (
	"time"

	"github.com/IliyaBaranov/agora/internal/types"
)

// Job is a unit of requested work priced in credits
type Job struct {
	ID            string          `json:"id"`
	MarketplaceID string          `json:"marketplaceId"`
	CustomerID    string          `json:"customerId"`
	ProducerID    *string         `json:"producerId,omitempty"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Address       string          `json:"address"`
	PreferredTime string          `json:"preferredTime"` // free text, e.g. "tomorrow after 18:00"
	Price         int64           `json:"price"`
	IsPaid        bool            `json:"isPaid"`
	Status        types.JobStatus `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	Lat           *float64        `json:"lat,omitempty"`
	Lng           *float64        `json:"lng,omitempty"`

	// Provisional is set when the ID was generated locally because the backend
	// did not issue one. Such a job is unknown to the server.
	Provisional bool `json:"provisional,omitempty"`
}

// HasProducer reports whether a producer is assigned
func (j *Job) HasProducer() bool {
	return j.ProducerID != nil && *j.ProducerID != ""
}

// Clone returns a deep copy of the job
func (j Job) Clone() Job {
	out := j
	out.ProducerID = cloneString(j.ProducerID)
	out.Lat = cloneFloat(j.Lat)
	out.Lng = cloneFloat(j.Lng)
	return out
}
