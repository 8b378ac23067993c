package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/staycare/booking-backend/internal/database"
	"github.com/staycare/booking-backend/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeBookingStore struct {
	bookings  map[int64]*models.Booking
	guests    map[int64]*models.Guest
	updates   int
	updateErr error
}

func newFakeBookingStore() *fakeBookingStore {
	return &fakeBookingStore{bookings: map[int64]*models.Booking{}, guests: map[int64]*models.Guest{}}
}

func (f *fakeBookingStore) GetByID(_ context.Context, id int64) (*models.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return nil, fmt.Errorf("booking: %w", database.ErrNotFound)
	}
	copied := *b
	return &copied, nil
}

func (f *fakeBookingStore) GetByUUID(_ context.Context, uuid string) (*models.Booking, error) {
	for _, b := range f.bookings {
		if b.UUID == uuid {
			copied := *b
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("booking: %w", database.ErrNotFound)
}

func (f *fakeBookingStore) UpdateLifecycle(_ context.Context, booking *models.Booking) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates++
	copied := *booking
	f.bookings[booking.ID] = &copied
	return nil
}

func (f *fakeBookingStore) UpdateMetainfo(_ context.Context, bookingID int64, meta models.Metainfo) error {
	b, ok := f.bookings[bookingID]
	if !ok {
		return database.ErrNotFound
	}
	b.Metainfo = meta
	return nil
}

func (f *fakeBookingStore) GetGuest(_ context.Context, guestID int64) (*models.Guest, error) {
	g, ok := f.guests[guestID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return g, nil
}

type fakeQaStore struct {
	sections  []models.Section
	links     map[string]int64
	nextID    int64
	saveErr   error
	saveCalls int
}

func newFakeQaStore(sections ...models.Section) *fakeQaStore {
	return &fakeQaStore{sections: sections, links: map[string]int64{}, nextID: 1000}
}

func (f *fakeQaStore) section(id int64) *models.Section {
	for i := range f.sections {
		if f.sections[i].ID == id {
			return &f.sections[i]
		}
	}
	return nil
}

func (f *fakeQaStore) answer(sectionID int64, question string) (string, bool) {
	if sec := f.section(sectionID); sec != nil {
		for _, p := range sec.QaPairs {
			if p.Question == question {
				return p.Answer, true
			}
		}
	}
	return "", false
}

func (f *fakeQaStore) setAnswer(sectionID int64, question string, answer string, questionType models.QuestionType) models.QaPair {
	sec := f.section(sectionID)
	for i := range sec.QaPairs {
		if sec.QaPairs[i].Question == question {
			sec.QaPairs[i].Answer = answer
			return sec.QaPairs[i]
		}
	}
	f.nextID++
	pair := models.QaPair{ID: f.nextID, SectionID: sectionID, Question: question, Answer: answer, QuestionType: questionType}
	sec.QaPairs = append(sec.QaPairs, pair)
	return pair
}

func (f *fakeQaStore) remove(sectionID int64, question string) *models.QaPair {
	sec := f.section(sectionID)
	for i, p := range sec.QaPairs {
		if p.Question == question {
			sec.QaPairs = append(sec.QaPairs[:i], sec.QaPairs[i+1:]...)
			return &p
		}
	}
	return nil
}

func (f *fakeQaStore) SaveBatch(_ context.Context, _ int64, changes []models.Change, equipment []models.EquipmentChange) (*database.SaveBatchResult, error) {
	f.saveCalls++
	if f.saveErr != nil {
		return nil, f.saveErr
	}

	result := &database.SaveBatchResult{}
	for _, c := range changes {
		if c.IsEquipment() {
			continue
		}
		if f.section(c.SectionID) == nil {
			return nil, fmt.Errorf("section %d: %w", c.SectionID, database.ErrNotFound)
		}
	}
	for _, c := range changes {
		if c.IsEquipment() {
			continue
		}
		if c.Delete {
			if removed := f.remove(c.SectionID, c.Question); removed != nil {
				result.Deleted = append(result.Deleted, *removed)
				if removed.QuestionType == models.QuestionTypeFileUpload {
					result.RemovedFiles = append(result.RemovedFiles, removed.Answer)
				}
			}
			continue
		}
		result.Saved = append(result.Saved, f.setAnswer(c.SectionID, c.Question, c.AnswerString(), c.QuestionType))
	}
	for _, e := range equipment {
		f.links[e.Question] = e.EquipmentID
	}
	return result, nil
}

func (f *fakeQaStore) ListSections(_ context.Context, _ int64) ([]models.Section, error) {
	out := make([]models.Section, len(f.sections))
	for i, s := range f.sections {
		s.QaPairs = append([]models.QaPair(nil), s.QaPairs...)
		out[i] = s
	}
	return out, nil
}

type fakeTemplateStore struct {
	questions []models.TemplateQuestion
}

func (f *fakeTemplateStore) QuestionsForSections(_ context.Context, ids []int64) ([]models.TemplateQuestion, error) {
	var out []models.TemplateQuestion
	for _, q := range f.questions {
		for _, id := range ids {
			if q.TemplateSectionID == id {
				out = append(out, q)
			}
		}
	}
	return out, nil
}

// fakeAmendmentStore keeps logs in memory and merges pending entries by question identity
type fakeAmendmentStore struct {
	logs     map[int64]*models.Log
	nextID   int64
	qa       *fakeQaStore
	mergeErr error
	reviews  int
}

func newFakeAmendmentStore(qa *fakeQaStore) *fakeAmendmentStore {
	return &fakeAmendmentStore{logs: map[int64]*models.Log{}, qa: qa}
}

func (f *fakeAmendmentStore) pending(bookingID int64) []*models.Log {
	var out []*models.Log
	for _, l := range f.logs {
		if l.LoggableID == bookingID && !l.Approved() {
			out = append(out, l)
		}
	}
	return out
}

func (f *fakeAmendmentStore) MergePending(_ context.Context, bookingID int64, entries []models.LogData) ([]database.MergeOutcome, error) {
	if f.mergeErr != nil {
		return nil, f.mergeErr
	}

	var outcomes []database.MergeOutcome
	for _, entry := range entries {
		if existing := f.findPending(bookingID, entry); existing != nil {
			switch current := existing.Data.(type) {
			case *models.QaPairLogData:
				current.Merge(entry.(*models.QaPairLogData))
			case *models.EquipmentLogData:
				current.Merge(entry.(*models.EquipmentLogData))
			}
			if entry.Review().Approved {
				existing.Data.Review().Adopt(entry.Review())
			}
			outcomes = append(outcomes, database.MergeOutcome{Log: existing})
			continue
		}

		f.nextID++
		log := &models.Log{
			ID:           f.nextID,
			LoggableType: models.LoggableBooking,
			LoggableID:   bookingID,
			Type:         entry.Kind(),
			Data:         entry,
			CreatedAt:    time.Now(),
		}
		f.logs[log.ID] = log
		outcomes = append(outcomes, database.MergeOutcome{Log: log, Created: true})
	}
	return outcomes, nil
}

func (f *fakeAmendmentStore) findPending(bookingID int64, entry models.LogData) *models.Log {
	for _, l := range f.pending(bookingID) {
		if l.Type != entry.Kind() {
			continue
		}
		switch data := l.Data.(type) {
		case *models.QaPairLogData:
			next := entry.(*models.QaPairLogData)
			key := next.Key()
			if key.IsByID() && data.QaPair.ID != nil && *data.QaPair.ID == key.ID {
				return l
			}
			if (!key.IsByID() || data.QaPair.ID == nil) &&
				data.QaPair.Question == next.QaPair.Question &&
				data.QaPair.QuestionType == next.QaPair.QuestionType {
				return l
			}
		case *models.EquipmentLogData:
			if data.Equipment.Question == entry.Question() {
				return l
			}
		}
	}
	return nil
}

func (f *fakeAmendmentStore) GetByID(_ context.Context, id int64) (*models.Log, error) {
	l, ok := f.logs[id]
	if !ok {
		return nil, fmt.Errorf("amendment log: %w", database.ErrNotFound)
	}
	return l, nil
}

func (f *fakeAmendmentStore) ListForBooking(_ context.Context, bookingID int64, pendingOnly bool) ([]*models.Log, error) {
	var out []*models.Log
	for _, l := range f.logs {
		if l.LoggableID == bookingID && (!pendingOnly || !l.Approved()) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeAmendmentStore) SaveReview(_ context.Context, log *models.Log) error {
	if _, ok := f.logs[log.ID]; !ok {
		return database.ErrNotFound
	}
	f.reviews++
	f.logs[log.ID] = log
	return nil
}

func (f *fakeAmendmentStore) RevertQaPair(_ context.Context, log *models.Log, answer string, dependents []string) error {
	data := log.Data.(*models.QaPairLogData)
	if _, ok := f.logs[log.ID]; !ok {
		return database.ErrNotFound
	}
	delete(f.logs, log.ID)
	f.qa.setAnswer(data.QaPair.SectionID, data.QaPair.Question, answer, data.QaPair.QuestionType)
	for _, q := range dependents {
		f.qa.remove(data.QaPair.SectionID, q)
	}
	return nil
}

func (f *fakeAmendmentStore) RevertEquipment(_ context.Context, log *models.Log, equipmentID int64) error {
	if _, ok := f.logs[log.ID]; !ok {
		return database.ErrNotFound
	}
	delete(f.logs, log.ID)
	f.qa.links[log.Data.Question()] = equipmentID
	return nil
}

type fakeEquipmentStore struct {
	items []models.Equipment
}

func (f *fakeEquipmentStore) GetByName(_ context.Context, name string) (*models.Equipment, error) {
	for _, item := range f.items {
		if item.Name == name {
			return &item, nil
		}
	}
	return nil, database.ErrNotFound
}

type fakeTriggerStore struct {
	triggers []models.EmailTrigger
}

func (f *fakeTriggerStore) ListByEvent(_ context.Context, event models.TriggerEvent) ([]models.EmailTrigger, error) {
	var out []models.EmailTrigger
	for _, t := range f.triggers {
		if t.TriggerOn == event && t.Enabled {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeDispatcher struct {
	mu    sync.Mutex
	tasks []models.Task
	err   error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, task models.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.tasks = append(f.tasks, task)
	return nil
}

func (f *fakeDispatcher) ofType(taskType models.TaskType) []models.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Task
	for _, t := range f.tasks {
		if t.Type == taskType {
			out = append(out, t)
		}
	}
	return out
}

type staticRecipients []string

func (s staticRecipients) Recipients(context.Context) ([]string, error) {
	return s, nil
}

type fakeAudit struct {
	actions []string
}

func (f *fakeAudit) LogStatusChange(_ context.Context, _ Actor, _ int64, axis, _, to string) error {
	f.actions = append(f.actions, "status_change:"+axis+":"+to)
	return nil
}

func (f *fakeAudit) LogAmendmentApproved(_ context.Context, _ Actor, _ *models.Log) error {
	f.actions = append(f.actions, "amendment_approved")
	return nil
}

func (f *fakeAudit) LogAmendmentRejected(_ context.Context, _ Actor, _ *models.Log, _ string) error {
	f.actions = append(f.actions, "amendment_rejected")
	return errors.New("audit table unavailable")
}

type fakeFileStore struct {
	removed []string
}

func (f *fakeFileStore) Remove(path string) error {
	f.removed = append(f.removed, path)
	return nil
}

type fakeScheduledStore struct {
	mu         sync.Mutex
	tasks      map[int64]*models.ScheduledTask
	nextID     int64
	dispatched []int64
	failed     []int64
}

func newFakeScheduledStore() *fakeScheduledStore {
	return &fakeScheduledStore{tasks: map[int64]*models.ScheduledTask{}}
}

func (f *fakeScheduledStore) Create(_ context.Context, task models.Task, runAt time.Time) (*models.ScheduledTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	st := &models.ScheduledTask{ID: f.nextID, TaskType: task.Type, Payload: task.Payload, RunAt: runAt}
	f.tasks[st.ID] = st
	return st, nil
}

func (f *fakeScheduledStore) ListDue(_ context.Context, now time.Time, maxAttempts, limit int) ([]models.ScheduledTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ScheduledTask
	for id := int64(1); id <= f.nextID && len(out) < limit; id++ {
		st, ok := f.tasks[id]
		if ok && st.DispatchedAt == nil && !st.RunAt.After(now) && st.Attempts < maxAttempts {
			out = append(out, *st)
		}
	}
	return out, nil
}

func (f *fakeScheduledStore) MarkDispatched(_ context.Context, id int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[id].DispatchedAt = &at
	f.tasks[id].Attempts++
	f.dispatched = append(f.dispatched, id)
	return nil
}

func (f *fakeScheduledStore) MarkFailed(_ context.Context, id int64, cause error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg := cause.Error()
	f.tasks[id].Attempts++
	f.tasks[id].LastError = &msg
	f.failed = append(f.failed, id)
	return nil
}
