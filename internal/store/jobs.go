package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/IliyaBaranov/agora/internal/adapter"
	"github.com/IliyaBaranov/agora/internal/errors"
	"github.com/IliyaBaranov/agora/internal/models"
	"github.com/IliyaBaranov/agora/internal/types"
)

// CreateJob posts a job for the signed-in customer and appends it to the job list.
// When the backend does not issue an identifier the job is kept under a provisional
// local one, unique within the store, and no error is returned.
func (s *Store) CreateJob(ctx context.Context, in adapter.JobInput) (*models.Job, error) {
	userID := s.currentUserID()
	if userID == "" {
		return nil, errors.NewNotSignedInError("create job")
	}
	if in.MarketplaceID == "" {
		return nil, errors.NewInvalidParameterError("marketplaceId", "must not be empty")
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, errors.NewInvalidParameterError("title", "must not be empty")
	}
	if in.Price < 0 {
		return nil, errors.NewInvalidParameterError("price", "must not be negative")
	}
	ctx = withRequestID(ctx)
	now := s.now().UTC()

	job := models.Job{
		MarketplaceID: in.MarketplaceID,
		CustomerID:    userID,
		Title:         in.Title,
		Description:   in.Description,
		Address:       in.Address,
		PreferredTime: in.PreferredTime,
		Price:         in.Price,
		Status:        types.JobOpen,
		CreatedAt:     now,
		Lat:           in.Lat,
		Lng:           in.Lng,
	}

	id, err := s.backend.CreateJob(ctx, in)
	outcome := types.OutcomeConfirmed
	if err != nil {
		id = fmt.Sprintf("j%d-%d", now.UnixMilli(), s.provisionalSeq.Add(1))
		job.Provisional = true
		outcome = types.OutcomeProvisional
	}
	job.ID = id

	s.mu.Lock()
	s.jobs = append(s.jobs, job.Clone())
	s.mu.Unlock()

	s.record(ctx, operation{name: "create_job", entityType: "job", entityID: id, policy: types.PolicyConfirmFirst}, outcome, err)
	return &job, nil
}

// TakeJob assigns an open job to the signed-in producer and marks them busy
func (s *Store) TakeJob(ctx context.Context, jobID string) error {
	s.mu.RLock()
	var userID string
	if s.currentUser != nil {
		userID = s.currentUser.ID
	}
	i := s.findJobLocked(jobID)
	var job models.Job
	if i >= 0 {
		job = s.jobs[i].Clone()
	}
	s.mu.RUnlock()

	if userID == "" {
		return errors.NewNotSignedInError("take job")
	}
	if i < 0 {
		return errors.NewNotFoundError("job", jobID)
	}
	if job.Status != types.JobOpen {
		return errors.NewPreconditionError("JOB_NOT_OPEN", fmt.Sprintf("job %s is %s", jobID, job.Status))
	}

	ctx = withRequestID(ctx)
	op := operation{name: "take_job", entityType: "job", entityID: jobID, policy: types.PolicyConfirmFirst}
	if err := s.backend.TakeJob(ctx, jobID); err != nil {
		s.record(ctx, op, types.OutcomeFailed, err)
		return err
	}

	s.mu.Lock()
	if i := s.findJobLocked(jobID); i >= 0 {
		producer := userID
		s.jobs[i].Status = types.JobTaken
		s.jobs[i].ProducerID = &producer
	}
	s.mu.Unlock()
	s.record(ctx, op, types.OutcomeConfirmed, nil)

	if err := s.UpdateProducerStatus(ctx, job.MarketplaceID, types.ProducerWorking); err != nil {
		s.logger.WithError(err).WithField("jobId", jobID).Warn("Could not mark producer as working")
	}
	return nil
}

// CompleteJob marks a job done. A job without a producer is completed locally.
func (s *Store) CompleteJob(ctx context.Context, jobID string) error {
	s.mu.RLock()
	i := s.findJobLocked(jobID)
	hasProducer := i >= 0 && s.jobs[i].HasProducer()
	s.mu.RUnlock()
	if i < 0 {
		return errors.NewNotFoundError("job", jobID)
	}

	ctx = withRequestID(ctx)
	op := operation{name: "complete_job", entityType: "job", entityID: jobID, policy: types.PolicyConfirmFirst}
	outcome := types.OutcomeConfirmed
	if !hasProducer {
		op.policy = types.PolicyLocalOnly
		outcome = types.OutcomeLocalOnly
	} else if err := s.backend.CompleteJob(ctx, jobID); err != nil {
		s.record(ctx, op, types.OutcomeFailed, err)
		return err
	}

	s.mu.Lock()
	if i := s.findJobLocked(jobID); i >= 0 {
		s.jobs[i].Status = types.JobCompleted
	}
	s.mu.Unlock()
	s.record(ctx, op, outcome, nil)
	return nil
}

// PayForJob settles a job from the signed-in user's balance. It reports false
// without calling the backend when the job is unknown, already paid, or not
// covered by the balance. On success the payer is debited, the producer
// credited and the job completed, all in one step.
func (s *Store) PayForJob(ctx context.Context, jobID string) (bool, error) {
	s.mu.RLock()
	var (
		payerID string
		balance int64
		job     models.Job
	)
	if s.currentUser != nil {
		payerID = s.currentUser.ID
		balance = s.currentUser.Credits
	}
	i := s.findJobLocked(jobID)
	if i >= 0 {
		job = s.jobs[i].Clone()
	}
	s.mu.RUnlock()

	switch {
	case payerID == "":
		return false, errors.NewNotSignedInError("pay for job")
	case i < 0:
		return false, errors.NewNotFoundError("job", jobID)
	case job.IsPaid:
		return false, errors.NewPreconditionError("JOB_ALREADY_PAID", fmt.Sprintf("job %s is already paid", jobID))
	case balance < job.Price:
		return false, errors.NewInsufficientCreditsError(balance, job.Price)
	}

	ctx = withRequestID(ctx)
	op := operation{name: "pay_job", entityType: "job", entityID: jobID, policy: types.PolicyConfirmFirst}
	if err := s.backend.PayJob(ctx, jobID); err != nil {
		s.record(ctx, op, types.OutcomeFailed, err)
		return false, err
	}

	s.mu.Lock()
	if i := s.findJobLocked(jobID); i >= 0 && !s.jobs[i].IsPaid {
		j := &s.jobs[i]
		s.adjustCreditsLocked(payerID, -j.Price)
		if j.HasProducer() {
			producerID := *j.ProducerID
			s.adjustCreditsLocked(producerID, j.Price)
			if k := s.findMembershipLocked(producerID, j.MarketplaceID); k >= 0 {
				mu := &s.memberships[k]
				completed, earnings := int64(0), int64(0)
				if mu.CompletedJobs != nil {
					completed = *mu.CompletedJobs
				}
				if mu.Earnings != nil {
					earnings = *mu.Earnings
				}
				mu.CompletedJobs = int64Ptr(completed + 1)
				mu.Earnings = int64Ptr(earnings + j.Price)
			}
		}
		j.IsPaid = true
		j.Status = types.JobCompleted
	}
	s.mu.Unlock()

	s.record(ctx, op, types.OutcomeConfirmed, nil)
	return true, nil
}
