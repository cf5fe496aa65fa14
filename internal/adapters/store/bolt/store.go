package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/fungame/internal/domain"
	"github.com/bnema/fungame/internal/ports"
	"go.etcd.io/bbolt"
)

const statesBucket = "states"

// Store keeps one nested bucket per session under "states". Keys are big-endian
// versions so a cursor walks history in commit order.
type Store struct {
	db *bbolt.DB
}

type stateRecord struct {
	Session       string                    `json:"session"`
	Version       uint64                    `json:"version"`
	World         []string                  `json:"world"`
	Inventories   map[string]map[string]int `json:"inventories"`
	GameOver      bool                      `json:"game_over,omitempty"`
	TriggerBid    string                    `json:"trigger_bid,omitempty"`
	TriggerPlayer string                    `json:"trigger_player,omitempty"`
	Action        string                    `json:"action,omitempty"`
	Response      string                    `json:"response,omitempty"`
	CommittedAt   time.Time                 `json:"committed_at"`
}

var _ ports.StateStore = (*Store)(nil)

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(statesBucket)); err != nil {
			return fmt.Errorf("create states bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Init(ctx context.Context, session domain.SessionID, initial domain.GameState) (domain.GameState, error) {
	if err := ctx.Err(); err != nil {
		return domain.GameState{}, err
	}

	var latest domain.GameState
	err := s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket([]byte(statesBucket))
		if root == nil {
			return fmt.Errorf("states bucket is missing")
		}
		bucket, err := root.CreateBucketIfNotExists([]byte(session))
		if err != nil {
			return fmt.Errorf("create session bucket: %w", err)
		}

		if key, payload := bucket.Cursor().Last(); key != nil {
			latest, err = decodeState(payload)
			return err
		}

		latest = initial.Clone()
		latest.Session = session
		latest.Version = 0
		return putState(bucket, latest)
	})
	if err != nil {
		return domain.GameState{}, fmt.Errorf("init session %s: %w", session, err)
	}

	return latest, nil
}

func (s *Store) Read(ctx context.Context, session domain.SessionID) (domain.GameState, error) {
	if err := ctx.Err(); err != nil {
		return domain.GameState{}, err
	}

	var latest domain.GameState
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := sessionBucket(tx, session)
		if bucket == nil {
			return domain.ErrSessionNotFound
		}
		key, payload := bucket.Cursor().Last()
		if key == nil {
			return domain.ErrSessionNotFound
		}
		var err error
		latest, err = decodeState(payload)
		return err
	})
	if err != nil {
		return domain.GameState{}, err
	}

	return latest, nil
}

func (s *Store) Commit(ctx context.Context, session domain.SessionID, expectedVersion uint64, delta domain.Delta) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var committed uint64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := sessionBucket(tx, session)
		if bucket == nil {
			return domain.ErrSessionNotFound
		}
		key, payload := bucket.Cursor().Last()
		if key == nil {
			return domain.ErrSessionNotFound
		}
		latest, err := decodeState(payload)
		if err != nil {
			return err
		}
		if latest.Version != expectedVersion {
			return fmt.Errorf("commit %s at version %d (current %d): %w", session, expectedVersion, latest.Version, domain.ErrVersionConflict)
		}

		next := latest.Apply(delta)
		if err := putState(bucket, next); err != nil {
			return err
		}
		committed = next.Version
		return nil
	})
	if err != nil {
		return 0, err
	}

	return committed, nil
}

func (s *Store) History(ctx context.Context, session domain.SessionID) ([]domain.GameState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var history []domain.GameState
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := sessionBucket(tx, session)
		if bucket == nil {
			return domain.ErrSessionNotFound
		}
		return bucket.ForEach(func(_, payload []byte) error {
			state, err := decodeState(payload)
			if err != nil {
				return err
			}
			history = append(history, state)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, domain.ErrSessionNotFound
	}

	return history, nil
}

func sessionBucket(tx *bbolt.Tx, session domain.SessionID) *bbolt.Bucket {
	root := tx.Bucket([]byte(statesBucket))
	if root == nil {
		return nil
	}
	return root.Bucket([]byte(session))
}

func putState(bucket *bbolt.Bucket, state domain.GameState) error {
	payload, err := json.Marshal(toRecord(state))
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if existing := bucket.Get(versionKey(state.Version)); existing != nil {
		return fmt.Errorf("version %d already stored: %w", state.Version, domain.ErrVersionConflict)
	}
	return bucket.Put(versionKey(state.Version), payload)
}

func versionKey(version uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, version)
	return key
}

func toRecord(state domain.GameState) stateRecord {
	inventories := make(map[string]map[string]int, len(state.Inventories))
	for player, inventory := range state.Inventories {
		inventories[string(player)] = inventory
	}

	return stateRecord{
		Session:       string(state.Session),
		Version:       state.Version,
		World:         state.World,
		Inventories:   inventories,
		GameOver:      state.GameOver,
		TriggerBid:    string(state.TriggerBid),
		TriggerPlayer: string(state.TriggerPlayer),
		Action:        state.Action,
		Response:      state.Response,
		CommittedAt:   state.CommittedAt,
	}
}

func decodeState(payload []byte) (domain.GameState, error) {
	var record stateRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return domain.GameState{}, fmt.Errorf("unmarshal state: %w", err)
	}

	state := domain.GameState{
		Session:       domain.SessionID(record.Session),
		Version:       record.Version,
		World:         record.World,
		Inventories:   make(map[domain.PlayerID]domain.Inventory, len(record.Inventories)),
		GameOver:      record.GameOver,
		TriggerBid:    domain.BidID(record.TriggerBid),
		TriggerPlayer: domain.PlayerID(record.TriggerPlayer),
		Action:        record.Action,
		Response:      record.Response,
		CommittedAt:   record.CommittedAt,
	}
	if state.World == nil {
		state.World = []string{}
	}
	for player, inventory := range record.Inventories {
		state.Inventories[domain.PlayerID(player)] = inventory
	}

	return state, nil
}
