package app

import (
	"context"
	"crypto/rand"
	"log"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"quiz-room-service/internal/domain"
)

const (
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomCodeLength   = 6
	roomCodeAttempts = 5
)

// Options tunes room creation. DefaultSet is the question set used for rooms
// created without a quiz id; it must be supplied explicitly (demo fixture),
// there is no built-in fallback content.
type Options struct {
	DefaultSet   *domain.QuestionSet
	QuestionTime time.Duration
}

// Directory maps room codes to coordinators, creating one on first reference
// and reusing it thereafter. Evicted rooms are rebuilt from their state
// store snapshot on the next reference.
type Directory struct {
	mu        sync.Mutex
	rooms     map[string]*Room
	store     StateStore
	questions QuestionRepository
	opts      Options
}

func NewDirectory(store StateStore, questions QuestionRepository, opts Options) *Directory {
	return &Directory{
		rooms:     make(map[string]*Room),
		store:     store,
		questions: questions,
		opts:      opts,
	}
}

// CreateRoom mints a room for the given host, loading the question set for
// quizID (or the configured default set when empty) and assigning
// requestedCode or a generated one. Returns the assigned room code.
func (d *Directory) CreateRoom(ctx context.Context, hostName, quizID, requestedCode string) (string, error) {
	questions, err := d.resolveQuestions(ctx, quizID)
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	code := normalizeCode(requestedCode)
	if code != "" {
		if d.codeTakenLocked(ctx, code) {
			return "", domain.ErrRoomCodeTaken
		}
	} else {
		for attempt := 0; ; attempt++ {
			code = generateRoomCode(roomCodeLength)
			if !d.codeTakenLocked(ctx, code) {
				break
			}
			if attempt+1 >= roomCodeAttempts {
				// Out of retries: disambiguate with extra random characters.
				code += generateRoomCode(2)
				break
			}
		}
	}

	state := domain.NewGameState(uuid.NewString(), code, hostName, questions, time.Now())
	room := newRoom(state, d.store, d.opts.QuestionTime)
	d.rooms[code] = room

	if err := d.store.Put(ctx, code, *state.Clone()); err != nil {
		log.Printf("room %s: initial snapshot persist failed: %v", code, err)
	}
	return code, nil
}

// GetOrCreate resolves the coordinator for a code. An evicted room is
// reconstructed from its persisted snapshot; an unseen code gets a fresh
// lobby only when a default question set is configured.
func (d *Directory) GetOrCreate(ctx context.Context, code string) (*Room, error) {
	code = normalizeCode(code)
	if code == "" {
		return nil, domain.ErrRoomNotFound
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if room, ok := d.rooms[code]; ok {
		return room, nil
	}

	if state, ok, err := d.store.Get(ctx, code); err != nil {
		return nil, err
	} else if ok {
		room := newRoom(state.Clone(), d.store, d.opts.QuestionTime)
		room.resume()
		d.rooms[code] = room
		return room, nil
	}

	if d.opts.DefaultSet == nil {
		return nil, domain.ErrRoomNotFound
	}
	questions, err := orderedQuestions(*d.opts.DefaultSet)
	if err != nil {
		return nil, err
	}
	state := domain.NewGameState(uuid.NewString(), code, "", questions, time.Now())
	room := newRoom(state, d.store, d.opts.QuestionTime)
	d.rooms[code] = room
	if err := d.store.Put(ctx, code, *state.Clone()); err != nil {
		log.Printf("room %s: initial snapshot persist failed: %v", code, err)
	}
	return room, nil
}

// Exists answers join-validation queries without requiring an upgrade.
func (d *Directory) Exists(ctx context.Context, code string) (bool, error) {
	code = normalizeCode(code)

	d.mu.Lock()
	_, live := d.rooms[code]
	d.mu.Unlock()
	if live {
		return true, nil
	}

	_, ok, err := d.store.Get(ctx, code)
	return ok, err
}

// Snapshot returns the public projection for a room, live or persisted.
func (d *Directory) Snapshot(ctx context.Context, code string) (domain.PublicState, error) {
	code = normalizeCode(code)

	d.mu.Lock()
	room, live := d.rooms[code]
	d.mu.Unlock()
	if live {
		return room.Snapshot(), nil
	}

	state, ok, err := d.store.Get(ctx, code)
	if err != nil {
		return domain.PublicState{}, err
	}
	if !ok {
		return domain.PublicState{}, domain.ErrRoomNotFound
	}
	return state.Public(), nil
}

// EvictIfEmpty drops the coordinator once its last connection is gone. The
// persisted snapshot remains, so a later join resumes the same room.
func (d *Directory) EvictIfEmpty(code string) {
	code = normalizeCode(code)

	d.mu.Lock()
	defer d.mu.Unlock()
	if room, ok := d.rooms[code]; ok && room.IsEmpty() {
		room.stop()
		delete(d.rooms, code)
	}
}

func (d *Directory) resolveQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	if quizID == "" {
		if d.opts.DefaultSet == nil {
			return nil, domain.ErrQuizNotFound
		}
		return orderedQuestions(*d.opts.DefaultSet)
	}
	set, err := d.questions.GetQuestionSet(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return orderedQuestions(set)
}

func (d *Directory) codeTakenLocked(ctx context.Context, code string) bool {
	if _, ok := d.rooms[code]; ok {
		return true
	}
	_, ok, err := d.store.Get(ctx, code)
	if err != nil {
		log.Printf("room %s: code lookup failed: %v", code, err)
		return false
	}
	return ok
}

func orderedQuestions(set domain.QuestionSet) ([]domain.Question, error) {
	if len(set.Questions) == 0 {
		return nil, domain.ErrEmptyQuestionSet
	}
	questions := append([]domain.Question(nil), set.Questions...)
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].Order < questions[j].Order
	})
	return questions, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func generateRoomCode(length int) string {
	max := big.NewInt(int64(len(roomCodeAlphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails if the platform entropy source is
			// broken; fall back to the first symbol rather than crash.
			buf[i] = roomCodeAlphabet[0]
			continue
		}
		buf[i] = roomCodeAlphabet[n.Int64()]
	}
	return string(buf)
}
