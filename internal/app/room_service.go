package app

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"quizroom-service/internal/domain"
	"quizroom-service/internal/repo"
	"quizroom-service/internal/sound"
)

// RoomService owns one client's authoritative projection of a room and
// the operations the two authority levels may invoke on it: the admin
// drives phase transitions, students join and submit. Consistency with
// other clients comes only from the document store's fan-out, which the
// service mirrors back into its projection via the repository watch.
//
// Store writes are best-effort: the projection is updated optimistically
// first and persistence failures are logged, never propagated past this
// layer. The only error callers see is not-found from the join path.
type RoomService struct {
	repo *repo.RoomRepository
	cues *sound.Service
	now  func() time.Time

	mu          sync.RWMutex
	room        *domain.Room
	subscribers map[chan domain.Room]struct{}
	unwatch     func()
}

func NewRoomService(rooms *repo.RoomRepository, cues *sound.Service) *RoomService {
	return &RoomService{
		repo:        rooms,
		cues:        cues,
		now:         time.Now,
		subscribers: make(map[chan domain.Room]struct{}),
	}
}

// NewRoomServiceWithClock is test-only, for deterministic timestamps.
func NewRoomServiceWithClock(rooms *repo.RoomRepository, cues *sound.Service, now func() time.Time) *RoomService {
	s := NewRoomService(rooms, cues)
	s.now = now
	return s
}

// CreateRoom builds a room from pre-authored questions, holds it as the
// local projection immediately, and starts mirroring remote changes.
func (s *RoomService) CreateRoom(ctx context.Context, name string, questions []domain.Question, mode domain.RoomMode) domain.Room {
	room, err := s.repo.Create(ctx, name, questions, mode)
	if err != nil {
		log.Printf("room %s: best-effort create write failed: %v", room.ID, err)
	}
	s.adopt(ctx, room)
	return room
}

// Attach loads the room behind a join code and starts mirroring it.
func (s *RoomService) Attach(ctx context.Context, code string) (domain.Room, error) {
	room, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return domain.Room{}, err
	}
	s.adopt(ctx, room)
	return room, nil
}

// Join registers a student in the room behind code, attaching the
// projection if this client has none yet. Joining twice with the same
// name returns the same identity without a second write.
func (s *RoomService) Join(ctx context.Context, name, code string) (domain.Student, error) {
	student, room, err := s.repo.Join(ctx, name, code)
	if err != nil && room.ID == "" {
		// The null result is the only error signal on the join path; a
		// store failure before the room loaded reads the same as a bad
		// code to the caller.
		if !errors.Is(err, domain.ErrRoomNotFound) {
			log.Printf("join %s: %v", code, err)
		}
		return domain.Student{}, domain.ErrRoomNotFound
	}
	if err != nil {
		log.Printf("room %s: best-effort join write failed: %v", room.ID, err)
	}
	s.adopt(ctx, room)
	return student, nil
}

// Start opens the quiz from the lobby.
func (s *RoomService) Start(ctx context.Context) {
	s.transition(ctx, func(r domain.Room) (domain.Room, domain.FieldPatch) {
		return domain.Start(r)
	}, "quiz-start")
}

// OpenQuestion opens the question at index (current when nil) with an
// optional duration override. Re-opening restarts the shared countdown.
func (s *RoomService) OpenQuestion(ctx context.Context, index, duration *int) {
	nowMillis := s.now().UnixMilli()
	s.transition(ctx, func(r domain.Room) (domain.Room, domain.FieldPatch) {
		return domain.OpenQuestion(r, index, duration, nowMillis)
	}, "question-open")
}

// CloseQuestion stops accepting submissions for the current question.
func (s *RoomService) CloseQuestion(ctx context.Context) {
	s.transition(ctx, domain.CloseQuestion, "question-close")
}

// RevealAnswers shows the correct answer and blocks submissions.
func (s *RoomService) RevealAnswers(ctx context.Context) {
	s.transition(ctx, domain.RevealAnswers, "answers-reveal")
}

// Advance moves to the next question, or ends the quiz on the last one.
func (s *RoomService) Advance(ctx context.Context) {
	s.transition(ctx, domain.Advance, "advance")
}

// EndQuiz forces the terminal state.
func (s *RoomService) EndQuiz(ctx context.Context) {
	s.transition(ctx, domain.EndQuiz, "quiz-end")
}

// SubmitAnswer records a student submission against the current
// projection. Late or duplicate deliveries are dropped silently. The
// store write happens outside the projection lock because its change
// notification re-enters onRemote.
func (s *RoomService) SubmitAnswer(ctx context.Context, studentID string, questionID, selectedOption int, timeTaken float64) {
	s.mu.RLock()
	if s.room == nil {
		s.mu.RUnlock()
		return
	}
	snap := copyRoom(*s.room)
	s.mu.RUnlock()

	recorded, err := s.repo.RecordResponse(ctx, &snap, studentID, questionID, selectedOption, timeTaken)
	if err != nil {
		log.Printf("room %s: best-effort response write failed: %v", snap.ID, err)
	}
	if !recorded {
		return
	}
	resp := snap.Responses[len(snap.Responses)-1]

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room == nil || s.room.ID != snap.ID {
		return
	}
	// The remote mirror may already have delivered this response.
	for _, existing := range s.room.Responses {
		if existing.StudentID == resp.StudentID && existing.QuestionID == resp.QuestionID {
			return
		}
	}
	s.room.Responses = append(s.room.Responses, resp)
	s.broadcastLocked()
}

// Snapshot returns a copy of the current projection, if one is loaded.
func (s *RoomService) Snapshot() (domain.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.room == nil {
		return domain.Room{}, false
	}
	return copyRoom(*s.room), true
}

// Leaderboard recomputes the ranked scoreboard from the response log.
func (s *RoomService) Leaderboard() []domain.LeaderboardEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.room == nil {
		return nil
	}
	return domain.Leaderboard(*s.room)
}

// Subscribe returns a channel receiving the room projection on every
// local or remote change, starting with the current snapshot. The caller
// must invoke cancel to avoid leaks.
func (s *RoomService) Subscribe() (<-chan domain.Room, func()) {
	ch := make(chan domain.Room, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	if s.room != nil {
		// Freshly created and registered under the lock, so the buffered
		// send cannot block.
		ch <- copyRoom(*s.room)
	}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Close stops the remote mirror.
func (s *RoomService) Close() {
	s.mu.Lock()
	unwatch := s.unwatch
	s.unwatch = nil
	s.mu.Unlock()
	if unwatch != nil {
		unwatch()
	}
}

// transition runs one pure phase transition against the projection,
// broadcasts the optimistic result, and persists the field patch as a
// partial update. All transitions silently no-op without a loaded room.
func (s *RoomService) transition(ctx context.Context, apply func(domain.Room) (domain.Room, domain.FieldPatch), cue string) {
	s.mu.Lock()
	if s.room == nil {
		s.mu.Unlock()
		return
	}
	next, patch := apply(*s.room)
	if patch == nil {
		s.mu.Unlock()
		return
	}
	*s.room = next
	roomID := s.room.ID
	s.broadcastLocked()
	s.mu.Unlock()

	s.cues.Play(cue)
	if err := s.repo.UpdatePhase(ctx, roomID, patch); err != nil {
		log.Printf("room %s: best-effort phase write failed: %v", roomID, err)
	}
}

// adopt installs a room as the local projection and re-targets the
// repository watch at it.
func (s *RoomService) adopt(ctx context.Context, room domain.Room) {
	s.mu.Lock()
	sameRoom := s.room != nil && s.room.ID == room.ID
	s.room = &room
	oldUnwatch := s.unwatch
	if sameRoom {
		oldUnwatch = nil
	} else {
		s.unwatch = nil
	}
	s.broadcastLocked()
	s.mu.Unlock()

	if oldUnwatch != nil {
		oldUnwatch()
	}
	if sameRoom {
		return
	}

	unwatch, err := s.repo.Watch(ctx, room.ID, s.onRemote)
	if err != nil {
		log.Printf("room %s: watch failed, projection is local-only: %v", room.ID, err)
		return
	}
	s.mu.Lock()
	s.unwatch = unwatch
	s.mu.Unlock()
}

// onRemote republishes each remote change as the new projection. Last
// write wins; local optimistic state is overwritten wholesale.
func (s *RoomService) onRemote(room domain.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room == nil || s.room.ID != room.ID {
		return
	}
	*s.room = room
	s.broadcastLocked()
}

func (s *RoomService) broadcastLocked() {
	snap := copyRoom(*s.room)
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the stale update so a slow consumer never blocks the
			// broadcast; it only ever needs the latest projection.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func copyRoom(r domain.Room) domain.Room {
	r.Questions = append([]domain.Question(nil), r.Questions...)
	r.Students = append([]domain.Student(nil), r.Students...)
	r.Responses = append([]domain.Response(nil), r.Responses...)
	return r
}
