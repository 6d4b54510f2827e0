package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"quizroom-service/internal/domain"
	"quizroom-service/internal/store"
)

// RoomRepository bridges the Room/Student/Response model onto the
// document store's path layout:
//
//	rooms/{id}            room document, minus the two collections
//	rooms/{id}/students   full overwrite per join
//	rooms/{id}/responses  keyed append per submission
//	roomsByCode           code -> room id index, maintained at creation
//
// Mutators apply optimistically to the returned projection and report
// the persistence outcome separately; callers decide whether a failed
// write is worth surfacing (the service layer just logs it).
type RoomRepository struct {
	store    store.DocumentStore
	sessions *SessionCache
	now      func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRoomRepository(docs store.DocumentStore) *RoomRepository {
	return &RoomRepository{
		store:    docs,
		sessions: NewSessionCache(),
		now:      time.Now,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Sessions exposes the local join cache so a reconnecting client can
// re-identify itself without re-joining.
func (r *RoomRepository) Sessions() *SessionCache { return r.sessions }

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const codeLength = 6

func roomPath(id string) string      { return "rooms/" + id }
func studentsPath(id string) string  { return "rooms/" + id + "/students" }
func responsesPath(id string) string { return "rooms/" + id + "/responses" }

const codeIndexPath = "roomsByCode"

// roomDoc is the wire form of the room document: everything except the
// two collections, which live at their own sub-paths.
type roomDoc struct {
	ID                   string            `json:"id"`
	Name                 string            `json:"name"`
	Code                 string            `json:"code"`
	Mode                 domain.RoomMode   `json:"mode"`
	Questions            []domain.Question `json:"questions"`
	Status               domain.RoomStatus `json:"status"`
	CurrentQuestionIndex int               `json:"currentQuestionIndex"`
	AcceptingAnswers     bool              `json:"acceptingAnswers"`
	AnswersRevealed      bool              `json:"answersRevealed"`
	QuestionStartTime    *int64            `json:"questionStartTime"`
	QuestionTimer        *int              `json:"questionTimer"`
}

// Create builds a fresh waiting room, persists it, and registers its
// join code in the index. The room is returned even when persistence
// fails; the error reports the divergence.
func (r *RoomRepository) Create(ctx context.Context, name string, questions []domain.Question, mode domain.RoomMode) (domain.Room, error) {
	room := domain.Room{
		ID:                   fmt.Sprintf("room-%x", r.now().UnixNano()),
		Name:                 name,
		Code:                 r.generateCode(),
		Mode:                 mode,
		Questions:            questions,
		Status:               domain.StatusWaiting,
		CurrentQuestionIndex: 0,
		Students:             []domain.Student{},
		Responses:            []domain.Response{},
	}
	if err := r.store.Write(ctx, roomPath(room.ID), docOf(room)); err != nil {
		return room, fmt.Errorf("persist room: %w", err)
	}
	if err := r.store.Update(ctx, codeIndexPath, map[string]any{room.Code: room.ID}); err != nil {
		return room, fmt.Errorf("index room code: %w", err)
	}
	return room, nil
}

// FindByCode resolves a join code through the index and loads the full
// normalized room. Codes are case-insensitive on input.
func (r *RoomRepository) FindByCode(ctx context.Context, code string) (domain.Room, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	raw, ok, err := r.store.Read(ctx, codeIndexPath)
	if err != nil {
		return domain.Room{}, fmt.Errorf("read code index: %w", err)
	}
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	var index map[string]string
	if err := json.Unmarshal(raw, &index); err != nil {
		return domain.Room{}, fmt.Errorf("decode code index: %w", err)
	}
	id, ok := index[code]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return r.Load(ctx, id)
}

// Load reads and normalizes the room document and both collections.
// Absent collections normalize to empty sequences.
func (r *RoomRepository) Load(ctx context.Context, id string) (domain.Room, error) {
	raw, ok, err := r.store.Read(ctx, roomPath(id))
	if err != nil {
		return domain.Room{}, fmt.Errorf("read room %s: %w", id, err)
	}
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	var doc roomDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.Room{}, fmt.Errorf("decode room %s: %w", id, err)
	}
	room := roomOf(doc)

	if raw, ok, err := r.store.Read(ctx, studentsPath(id)); err == nil && ok {
		room.Students = decodeCollection[domain.Student](raw)
	}
	if raw, ok, err := r.store.Read(ctx, responsesPath(id)); err == nil && ok {
		room.Responses = decodeCollection[domain.Response](raw)
	}
	return room, nil
}

// Join adds a student to the room identified by code. A student whose
// name already exists in the room is returned as-is without a write, so
// a page refresh re-joins idempotently. New students are appended and
// the whole collection is written back to its sub-path.
func (r *RoomRepository) Join(ctx context.Context, name, code string) (domain.Student, domain.Room, error) {
	room, err := r.FindByCode(ctx, code)
	if err != nil {
		return domain.Student{}, domain.Room{}, err
	}

	if existing := room.StudentByName(name); existing != nil {
		r.sessions.Put(room.ID, *existing)
		return *existing, room, nil
	}

	// A name this process joined as before keeps its identity even when
	// the stored collection lost it.
	student, ok := r.sessions.Resume(room.ID, name)
	if !ok {
		student = domain.Student{ID: uuid.NewString(), Name: name}
	}
	room.Students = append(room.Students, student)
	r.sessions.Put(room.ID, student)
	if err := r.store.Write(ctx, studentsPath(room.ID), room.Students); err != nil {
		return student, room, fmt.Errorf("persist students: %w", err)
	}
	return student, room, nil
}

// RecordResponse scores and appends one submission. It silently no-ops
// when the room is not accepting answers or the question id is unknown,
// tolerating late and duplicate network deliveries. The append is keyed
// by (student, question), so a retried submission lands on an occupied
// slot and is rejected by the store instead of duplicating the log.
// recorded reports whether the response entered the local projection.
func (r *RoomRepository) RecordResponse(ctx context.Context, room *domain.Room, studentID string, questionID, selectedOption int, timeTaken float64) (recorded bool, err error) {
	if room == nil || !room.AcceptingAnswers {
		return false, nil
	}
	question := room.QuestionByID(questionID)
	if question == nil {
		return false, nil
	}
	resp := domain.Response{
		StudentID:      studentID,
		QuestionID:     questionID,
		SelectedOption: selectedOption,
		TimeTaken:      timeTaken,
		IsCorrect:      selectedOption != domain.TimedOutOption && selectedOption == question.CorrectOption,
	}
	room.Responses = append(room.Responses, resp)

	// Zero-padded so the keyed shape enumerates a student's responses in
	// question order after the round-trip.
	key := fmt.Sprintf("%s:%08d", studentID, questionID)
	inserted, err := r.store.AppendIfAbsent(ctx, responsesPath(room.ID), key, resp)
	if err != nil {
		return true, fmt.Errorf("persist response: %w", err)
	}
	if !inserted {
		// Duplicate submission; drop the optimistic append again.
		room.Responses = room.Responses[:len(room.Responses)-1]
		return false, nil
	}
	return true, nil
}

// UpdatePhase persists a transition's field patch as a partial update,
// never a full-document rewrite, so concurrent writers to other paths
// are never clobbered.
func (r *RoomRepository) UpdatePhase(ctx context.Context, roomID string, patch domain.FieldPatch) error {
	if len(patch) == 0 {
		return nil
	}
	if err := r.store.Update(ctx, roomPath(roomID), map[string]any(patch)); err != nil {
		return fmt.Errorf("persist phase: %w", err)
	}
	return nil
}

// Watch subscribes to the room's subtree and republishes a fully
// normalized projection on every remote change. Malformed intermediate
// states are skipped, not surfaced.
func (r *RoomRepository) Watch(ctx context.Context, roomID string, fn func(domain.Room)) (func(), error) {
	return r.store.Subscribe(ctx, roomPath(roomID), func(store.Event) {
		room, err := r.Load(ctx, roomID)
		if err != nil {
			// Transient decode failures resolve on the next event.
			return
		}
		fn(room)
	})
}

func (r *RoomRepository) generateCode() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := make([]byte, codeLength)
	for i := range b {
		b[i] = codeAlphabet[r.rnd.Intn(len(codeAlphabet))]
	}
	return string(b)
}

func docOf(room domain.Room) roomDoc {
	return roomDoc{
		ID:                   room.ID,
		Name:                 room.Name,
		Code:                 room.Code,
		Mode:                 room.Mode,
		Questions:            room.Questions,
		Status:               room.Status,
		CurrentQuestionIndex: room.CurrentQuestionIndex,
		AcceptingAnswers:     room.AcceptingAnswers,
		AnswersRevealed:      room.AnswersRevealed,
		QuestionStartTime:    room.QuestionStartTime,
		QuestionTimer:        room.QuestionTimer,
	}
}

func roomOf(doc roomDoc) domain.Room {
	return domain.Room{
		ID:                   doc.ID,
		Name:                 doc.Name,
		Code:                 doc.Code,
		Mode:                 doc.Mode,
		Questions:            doc.Questions,
		Status:               doc.Status,
		CurrentQuestionIndex: doc.CurrentQuestionIndex,
		AcceptingAnswers:     doc.AcceptingAnswers,
		AnswersRevealed:      doc.AnswersRevealed,
		QuestionStartTime:    doc.QuestionStartTime,
		QuestionTimer:        doc.QuestionTimer,
		Students:             []domain.Student{},
		Responses:            []domain.Response{},
	}
}
