package draft

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/storage"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infra/logging"
)

const DefaultTTL = 24 * time.Hour

type record struct {
	Data      map[string]string `json:"data"`
	Timestamp int64             `json:"timestamp"`
}

// Service autosaves form drafts under autosave_<formID>.
type Service struct {
	Store  storage.Store
	Logger logging.Logger
	TTL    time.Duration
	Now    func() time.Time
}

func Key(formID string) string {
	if strings.TrimSpace(formID) == "" {
		formID = "default"
	}
	return storage.DraftKeyPrefix + formID
}

func (s *Service) Save(formID string, data map[string]string) error {
	raw, err := json.Marshal(record{
		Data:      data,
		Timestamp: s.now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	return s.Store.Set(Key(formID), raw)
}

// Restore returns the saved fields and true while the draft is younger
// than TTL. Expired or unreadable drafts are deleted.
func (s *Service) Restore(formID string) (map[string]string, bool, error) {
	key := Key(formID)

	raw, err := s.Store.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		s.log("discarding unreadable draft", key, err)
		return nil, false, s.Store.Delete(key)
	}

	age := s.now().Sub(time.UnixMilli(rec.Timestamp))
	if age >= s.ttl() {
		s.log("discarding expired draft", key, nil)
		return nil, false, s.Store.Delete(key)
	}

	return rec.Data, true, nil
}

func (s *Service) Discard(formID string) error {
	return s.Store.Delete(Key(formID))
}

func (s *Service) log(msg, key string, err error) {
	if s.Logger == nil {
		return
	}
	fields := map[string]any{"key": key}
	if err != nil {
		fields["error"] = err.Error()
	}
	s.Logger.Warn(msg, fields)
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Service) ttl() time.Duration {
	if s.TTL <= 0 {
		return DefaultTTL
	}
	return s.TTL
}
