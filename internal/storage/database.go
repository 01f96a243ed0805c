package storage

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/talentline/interview-caller-backend/internal/models"
)

// DatabaseStore implements Store on top of GORM/PostgreSQL
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a database-backed store
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

// Candidate operations

func (d *DatabaseStore) CreateCandidate(candidate *models.Candidate) (*models.Candidate, error) {
	if err := d.db.Create(candidate).Error; err != nil {
		return nil, err
	}
	return candidate, nil
}

func (d *DatabaseStore) GetCandidate(candidateID string) (*models.Candidate, error) {
	var candidate models.Candidate
	err := d.db.Where("candidate_id = ?", candidateID).First(&candidate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("candidate not found")
	}
	if err != nil {
		return nil, err
	}
	return &candidate, nil
}

func (d *DatabaseStore) GetCandidateByPhone(phone string) (*models.Candidate, error) {
	var candidate models.Candidate
	err := d.db.Where("phone = ?", phone).First(&candidate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("candidate not found")
	}
	if err != nil {
		return nil, err
	}
	return &candidate, nil
}

func (d *DatabaseStore) GetAllCandidates() ([]*models.Candidate, error) {
	var candidates []*models.Candidate
	if err := d.db.Order("candidate_id").Find(&candidates).Error; err != nil {
		return nil, err
	}
	return candidates, nil
}

func (d *DatabaseStore) GetCandidatesByStatus(status string) ([]*models.Candidate, error) {
	var candidates []*models.Candidate
	if err := d.db.Where("status = ?", status).Order("candidate_id").Find(&candidates).Error; err != nil {
		return nil, err
	}
	return candidates, nil
}

func (d *DatabaseStore) UpdateCandidate(candidate *models.Candidate) error {
	return d.db.Save(candidate).Error
}

func (d *DatabaseStore) MarkInterviewScheduled(candidateID, slot string, scheduledAt time.Time) (bool, error) {
	// Conditional update so duplicate finalizer runs are no-ops.
	result := d.db.Model(&models.Candidate{}).
		Where("candidate_id = ?", candidateID).
		Where("status <> ? OR confirmed_slot <> ?", models.CandidateStatusInterviewScheduled, slot).
		Updates(map[string]interface{}{
			"status":         models.CandidateStatusInterviewScheduled,
			"confirmed_slot": slot,
			"scheduled_at":   scheduledAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		// Either already applied or the candidate does not exist
		var count int64
		if err := d.db.Model(&models.Candidate{}).Where("candidate_id = ?", candidateID).Count(&count).Error; err != nil {
			return false, err
		}
		if count == 0 {
			return false, fmt.Errorf("candidate not found")
		}
		return false, nil
	}
	return true, nil
}

// Conversation session operations

func (d *DatabaseStore) CreateSession(session *models.ConversationSession) error {
	return d.db.Create(session).Error
}

func (d *DatabaseStore) GetSession(callSid string) (*models.ConversationSession, error) {
	var session models.ConversationSession
	err := d.db.Where("call_sid = ?", callSid).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("session not found")
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (d *DatabaseStore) UpdateSession(session *models.ConversationSession) error {
	return d.db.Save(session).Error
}

func (d *DatabaseStore) DeleteSession(callSid string) error {
	result := d.db.Where("call_sid = ?", callSid).Delete(&models.ConversationSession{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("session not found")
	}
	return nil
}

func (d *DatabaseStore) GetStaleActiveSessions(cutoff time.Time) ([]*models.ConversationSession, error) {
	var sessions []*models.ConversationSession
	err := d.db.
		Where("status = ? AND started_at < ?", models.SessionStatusActive, cutoff).
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// Call attempt ledger

func (d *DatabaseStore) RecordCallAttempt(attempt *models.CallAttempt) (*models.CallAttempt, error) {
	// The ledger is idempotent on call SID so a duplicate status webhook
	// cannot inflate the attempt count.
	var existing models.CallAttempt
	err := d.db.Where("call_sid = ?", attempt.CallSid).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if attempt.InitiatedAt.IsZero() {
		attempt.InitiatedAt = time.Now()
	}
	if err := d.db.Create(attempt).Error; err != nil {
		return nil, err
	}
	return attempt, nil
}

func (d *DatabaseStore) CountCallAttempts(candidateID string) (int, error) {
	var count int64
	err := d.db.Model(&models.CallAttempt{}).Where("candidate_id = ?", candidateID).Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (d *DatabaseStore) GetCallAttempts(candidateID string) ([]*models.CallAttempt, error) {
	var attempts []*models.CallAttempt
	err := d.db.Where("candidate_id = ?", candidateID).Order("initiated_at").Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

// Interview schedules

func (d *DatabaseStore) CreateSchedule(schedule *models.InterviewSchedule) (*models.InterviewSchedule, error) {
	// Unique index on (candidate_id, call_sid) backs this up at the database
	// level; the lookup keeps retries quiet.
	existing, err := d.GetSchedule(schedule.CandidateID, schedule.CallSid)
	if err == nil {
		return existing, nil
	}
	if err := d.db.Create(schedule).Error; err != nil {
		return nil, err
	}
	return schedule, nil
}

func (d *DatabaseStore) GetSchedule(candidateID, callSid string) (*models.InterviewSchedule, error) {
	var schedule models.InterviewSchedule
	err := d.db.Where("candidate_id = ? AND call_sid = ?", candidateID, callSid).First(&schedule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("schedule not found")
	}
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (d *DatabaseStore) UpdateSchedule(schedule *models.InterviewSchedule) error {
	return d.db.Save(schedule).Error
}

func (d *DatabaseStore) GetSchedulesPendingNotification() ([]*models.InterviewSchedule, error) {
	var pending []*models.InterviewSchedule
	err := d.db.
		Where("email_status IN ?", []string{models.NotificationQueued, models.NotificationFailed}).
		Find(&pending).Error
	if err != nil {
		return nil, err
	}
	return pending, nil
}
