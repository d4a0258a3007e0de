// Package types provides common type definitions for the marketplace client.
package types

// UserRole represents the role a user holds inside one marketplace
type UserRole string

const (
	// RoleAdmin manages a marketplace: approves producers and assigns roles
	RoleAdmin UserRole = "ADMIN"
	// RoleProducer provides services and takes jobs
	RoleProducer UserRole = "PRODUCER"
	// RoleCustomer posts jobs and pays for them
	RoleCustomer UserRole = "CUSTOMER"
)

// Valid reports whether r is one of the known roles
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleProducer, RoleCustomer:
		return true
	}
	return false
}

// ProducerStatus represents a producer's availability inside a marketplace
type ProducerStatus string

const (
	// ProducerOffline means the producer is not accepting jobs
	ProducerOffline ProducerStatus = "OFFLINE"
	// ProducerOnline means the producer is accepting jobs
	ProducerOnline ProducerStatus = "ONLINE"
	// ProducerWorking means the producer is busy with a taken job
	ProducerWorking ProducerStatus = "WORKING"
)

// Valid reports whether s is one of the known producer statuses
func (s ProducerStatus) Valid() bool {
	switch s {
	case ProducerOffline, ProducerOnline, ProducerWorking:
		return true
	}
	return false
}

// JobStatus represents the lifecycle position of a job
type JobStatus string

const (
	// JobOpen is a posted job nobody has taken yet
	JobOpen JobStatus = "OPEN"
	// JobTaken is a job assigned to a producer
	JobTaken JobStatus = "TAKEN"
	// JobCompleted is a finished job
	JobCompleted JobStatus = "COMPLETED"
)

// Valid reports whether s is one of the known job statuses
func (s JobStatus) Valid() bool {
	switch s {
	case JobOpen, JobTaken, JobCompleted:
		return true
	}
	return false
}

// ApprovalStatus represents the producer-registration workflow state
type ApprovalStatus string

const (
	// ApprovalPending is a submitted application awaiting an admin
	ApprovalPending ApprovalStatus = "PENDING"
	// ApprovalApproved is an accepted application
	ApprovalApproved ApprovalStatus = "APPROVED"
	// ApprovalRejected is a declined application
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// Valid reports whether s is one of the known approval statuses
func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

// UpdatePolicy names how a mutating operation reconciles local state with the backend
type UpdatePolicy string

const (
	// PolicyConfirmFirst applies the local change only after the backend confirms
	PolicyConfirmFirst UpdatePolicy = "confirm_first"
	// PolicyOptimistic applies the local change first and rolls it back on failure
	PolicyOptimistic UpdatePolicy = "optimistic"
	// PolicyLocalOnly never reaches the backend
	PolicyLocalOnly UpdatePolicy = "local_only"
)

// Outcome records how a mutating operation ended
type Outcome string

const (
	// OutcomeConfirmed means the backend accepted the change and local state reflects it
	OutcomeConfirmed Outcome = "confirmed"
	// OutcomeRolledBack means an optimistic change was reverted after a failure
	OutcomeRolledBack Outcome = "rolled_back"
	// OutcomeFailed means the backend refused and nothing changed locally
	OutcomeFailed Outcome = "failed"
	// OutcomeLocalOnly means local state changed without any backend call
	OutcomeLocalOnly Outcome = "local_only"
	// OutcomeProvisional means local state holds a record the backend never issued
	OutcomeProvisional Outcome = "provisional"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
