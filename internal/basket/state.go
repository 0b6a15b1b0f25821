package basket

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	pkgerrors "sjsage522/pricebot/pkg/errors"
)

// OrderRecord is one entry of a user's order log. At most the last record
// of a history is open (Final false).
type OrderRecord struct {
	ID       string        `json:"id"`
	Date     time.Time     `json:"date"`
	Items    map[int64]int `json:"items"`
	Final    bool          `json:"final"`
	OrderURL string        `json:"order_url,omitempty"`
}

// State is everything kept per user
type State struct {
	Items   map[int64]int `json:"items"`
	History []OrderRecord `json:"history"`
	Region  string        `json:"region,omitempty"`
}

func newState() State {
	return State{Items: make(map[int64]int)}
}

// openOrder returns the trailing open record, if any
func (s *State) openOrder() *OrderRecord {
	if n := len(s.History); n > 0 && !s.History[n-1].Final {
		return &s.History[n-1]
	}
	return nil
}

func copyItems(items map[int64]int) map[int64]int {
	out := make(map[int64]int, len(items))
	for id, qty := range items {
		out[id] = qty
	}
	return out
}

// Repository loads and saves per-user state. Callers serialize access per
// user; implementations only need to be safe across different users.
type Repository interface {
	Load(ctx context.Context, userID int64) (State, error)
	Save(ctx context.Context, userID int64, state State) error
}

// MemoryRepository keeps state for the process lifetime
type MemoryRepository struct {
	mu     sync.RWMutex
	states map[int64]State
}

// NewMemoryRepository creates an empty repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{states: make(map[int64]State)}
}

// Load implements Repository
func (r *MemoryRepository) Load(_ context.Context, userID int64) (State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st, ok := r.states[userID]
	if !ok {
		return newState(), nil
	}
	// hand out copies so callers never alias stored maps
	out := State{Items: copyItems(st.Items), Region: st.Region}
	for _, rec := range st.History {
		rec.Items = copyItems(rec.Items)
		out.History = append(out.History, rec)
	}
	return out, nil
}

// Save implements Repository
func (r *MemoryRepository) Save(_ context.Context, userID int64, state State) error {
	stored := State{Items: copyItems(state.Items), Region: state.Region}
	for _, rec := range state.History {
		rec.Items = copyItems(rec.Items)
		stored.History = append(stored.History, rec)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[userID] = stored
	return nil
}

// RedisRepository stores each user's state as JSON under basket:<user>
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRepository creates a repository; ttl 0 keeps state forever
func NewRedisRepository(client *redis.Client, ttl time.Duration) *RedisRepository {
	return &RedisRepository{client: client, ttl: ttl}
}

func stateKey(userID int64) string {
	return "basket:" + strconv.FormatInt(userID, 10)
}

// Load implements Repository
func (r *RedisRepository) Load(ctx context.Context, userID int64) (State, error) {
	data, err := r.client.Get(ctx, stateKey(userID)).Bytes()
	if err == redis.Nil {
		return newState(), nil
	}
	if err != nil {
		return State{}, pkgerrors.NewCache("redis", "load basket", err)
	}

	st := newState()
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("decode basket of %d: %w", userID, err)
	}
	if st.Items == nil {
		st.Items = make(map[int64]int)
	}
	return st, nil
}

// Save implements Repository
func (r *RedisRepository) Save(ctx context.Context, userID int64, state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode basket of %d: %w", userID, err)
	}
	if err := r.client.Set(ctx, stateKey(userID), data, r.ttl).Err(); err != nil {
		return pkgerrors.NewCache("redis", "save basket", err)
	}
	return nil
}
