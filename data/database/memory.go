package database

import (
	"context"
	"sort"
	"sync"

	"github.com/zhihao1021/tjoy/module/chat/model"
	"github.com/zhihao1021/tjoy/tools/errs"
	"github.com/zhihao1021/tjoy/tools/ids"
)

// MemoryStore is an in-process store for development and tests.
// SaveErr / MembersErr inject failures.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[ids.ID]model.Message
	members  map[ids.ID][]ids.ID

	SaveErr    func(m model.Message) error
	MembersErr func(convID ids.ID) error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[ids.ID]model.Message),
		members:  make(map[ids.ID][]ids.ID),
	}
}

func (s *MemoryStore) SaveMessage(_ context.Context, m model.Message) (model.Message, error) {
	if s.SaveErr != nil {
		if err := s.SaveErr(m); err != nil {
			return model.Message{}, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.messages[m.ID]; dup {
		return model.Message{}, errs.ErrArgs.WrapMsg("duplicate message id", "id", m.ID)
	}
	s.messages[m.ID] = m
	return m, nil
}

func (s *MemoryStore) MembersOfConversation(_ context.Context, convID ids.ID) ([]ids.ID, error) {
	if s.MembersErr != nil {
		if err := s.MembersErr(convID); err != nil {
			return nil, err
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ids.ID, len(s.members[convID]))
	copy(out, s.members[convID])
	return out, nil
}

// AddMember keeps each member list sorted by user ID.
func (s *MemoryStore) AddMember(_ context.Context, convID, userID ids.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.members[convID] {
		if u == userID {
			return nil
		}
	}
	ms := append(s.members[convID], userID)
	sort.Slice(ms, func(i, j int) bool { return ms[i] < ms[j] })
	s.members[convID] = ms
	return nil
}

// Messages returns the stored messages of convID in ID order.
func (s *MemoryStore) Messages(convID ids.ID) []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Message
	for _, m := range s.messages {
		if m.ConversationID == convID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
