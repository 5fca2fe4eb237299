package casestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go-candor/internal/chat"
	"go-candor/internal/investigation"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrStaleCase means the case changed between load and save.
	ErrStaleCase = errors.New("case was modified concurrently")
	ErrNotFound  = errors.New("not found")
)

// UserStore is an investigation.Store bound to one user. It is meant to
// live for a single request: SaveCase compares against the version seen by
// the last Case or CreateCase call.
type UserStore struct {
	db      *gorm.DB
	userID  uint
	version int64
	loaded  bool
}

var _ investigation.Store = (*UserStore)(nil)

func ForUser(db *gorm.DB, userID uint) *UserStore {
	return &UserStore{db: db, userID: userID}
}

func (s *UserStore) Evidence(ctx context.Context) ([]investigation.EvidenceItem, error) {
	var rows []EvidenceRecord
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", s.userID).
		Order("created_at asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]investigation.EvidenceItem, len(rows))
	for i, r := range rows {
		items[i] = r.Item()
	}
	return items, nil
}

func (s *UserStore) Case(ctx context.Context) (*investigation.CaseState, error) {
	rec, err := s.record(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st := rec.State()
	return &st, nil
}

// Record returns the stored case row, or ErrNotFound.
func (s *UserStore) Record(ctx context.Context) (*CaseRecord, error) {
	return s.record(ctx)
}

func (s *UserStore) record(ctx context.Context) (*CaseRecord, error) {
	var rec CaseRecord
	err := s.db.WithContext(ctx).Where("user_id = ?", s.userID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.version, s.loaded = rec.Version, true
	return &rec, nil
}

// MessageCount counts the messages the user has sent across all live chats.
func (s *UserStore) MessageCount(ctx context.Context) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&chat.Message{}).
		Joins("JOIN chats ON chats.id = messages.chat_id AND chats.deleted_at IS NULL").
		Where("chats.user_id = ? AND messages.sender = ?", s.userID, chat.SenderUser).
		Count(&n).Error
	return int(n), err
}

func (s *UserStore) CreateCase(ctx context.Context) (*investigation.CaseState, error) {
	st := investigation.NewCaseState()
	rec := CaseRecord{
		UserID:         s.userID,
		Phase:          int(st.Phase),
		SuspicionLevel: string(st.SuspicionLevel),
		Progress:       st.Progress,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrStaleCase
		}
		return nil, err
	}
	s.version, s.loaded = rec.Version, true
	return &st, nil
}

func (s *UserStore) SaveCase(ctx context.Context, st investigation.CaseState) error {
	if !s.loaded {
		if _, err := s.record(ctx); err != nil {
			return err
		}
	}
	res := s.db.WithContext(ctx).Model(&CaseRecord{}).
		Where("user_id = ? AND version = ?", s.userID, s.version).
		Updates(map[string]interface{}{
			"phase":           int(st.Phase),
			"suspicion_level": string(st.SuspicionLevel),
			"progress":        st.Progress,
			"version":         s.version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleCase
	}
	s.version++
	return nil
}

// Resolve moves the case to the resolution phase.
func (s *UserStore) Resolve(ctx context.Context, now time.Time) (*investigation.CaseState, error) {
	rec, err := s.record(ctx)
	if err != nil {
		return nil, err
	}
	st := investigation.Resolve(rec.State())
	res := s.db.WithContext(ctx).Model(&CaseRecord{}).
		Where("user_id = ? AND version = ?", s.userID, s.version).
		Updates(map[string]interface{}{
			"phase":       int(st.Phase),
			"resolved_at": now,
			"version":     s.version + 1,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrStaleCase
	}
	s.version++
	return &st, nil
}

// Reset deletes the case and all of the user's evidence.
func (s *UserStore) Reset(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", s.userID).Delete(&CaseRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("user_id = ?", s.userID).Delete(&EvidenceRecord{}).Error; err != nil {
			return err
		}
		s.version, s.loaded = 0, false
		return nil
	})
}

func (s *UserStore) AddEvidence(ctx context.Context, e investigation.EvidenceItem) error {
	if err := e.Validate(); err != nil {
		return err
	}
	rec := recordFromItem(s.userID, e)
	return s.db.WithContext(ctx).Create(&rec).Error
}

func (s *UserStore) GetEvidence(ctx context.Context, id string) (*investigation.EvidenceItem, error) {
	var rec EvidenceRecord
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, s.userID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	item := rec.Item()
	return &item, nil
}

// UpdateEvidence replaces the editable fields of an item.
func (s *UserStore) UpdateEvidence(ctx context.Context, e investigation.EvidenceItem) error {
	if err := e.Validate(); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&EvidenceRecord{}).
		Where("id = ? AND user_id = ?", e.ID, s.userID).
		Updates(map[string]interface{}{
			"type":          string(e.Type),
			"significance":  string(e.Significance),
			"description":   e.Description,
			"date_observed": e.DateObserved,
			"module":        string(e.Module),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *UserStore) DeleteEvidence(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, s.userID).Delete(&EvidenceRecord{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordSignal stores one event per finding in the scan result.
func (s *UserStore) RecordSignal(ctx context.Context, chatID uint, res investigation.ScanResult) error {
	var events []SignalEvent
	if res.Crisis != nil {
		payload, err := json.Marshal(map[string]string{"kind": string(*res.Crisis)})
		if err != nil {
			return err
		}
		events = append(events, SignalEvent{UserID: s.userID, ChatID: chatID, Kind: SignalCrisis, Payload: datatypes.JSON(payload)})
	}
	if res.Suggestion != nil {
		payload, err := json.Marshal(res.Suggestion)
		if err != nil {
			return err
		}
		events = append(events, SignalEvent{UserID: s.userID, ChatID: chatID, Kind: SignalSuggestion, Payload: datatypes.JSON(payload)})
	}
	if len(events) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&events).Error; err != nil {
		return fmt.Errorf("record signals: %w", err)
	}
	return nil
}

// Signals returns the user's most recent signal events, newest first.
func (s *UserStore) Signals(ctx context.Context, limit int) ([]SignalEvent, error) {
	var out []SignalEvent
	err := s.db.WithContext(ctx).Where("user_id = ?", s.userID).
		Order("created_at desc, id desc").Limit(limit).Find(&out).Error
	return out, err
}
