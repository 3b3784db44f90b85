package session

import (
	"context"
	"encoding/json"
	"fmt"
)

// loadLocked reads key from the store. A failed read leaves the in-memory
// default in place and marks the key so the stored value is merged back in
// before it is ever overwritten.
func (e *Engine) loadLocked(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), e.opts.PersistTimeout)
	defer cancel()

	raw, ok, err := e.store.Load(ctx, key)
	if err != nil {
		e.unloaded[key] = true
		e.failed[key] = fmt.Errorf("%w: load %s: %v", ErrPersistence, key, err)
		e.opts.Recorder.RecordPersistFailure(key)
		e.logger.Error("load pomodoro state", "key", key, "error", err)
		return
	}
	delete(e.unloaded, key)
	if !ok {
		return
	}

	switch key {
	case KeySettings:
		var stored Settings
		err = json.Unmarshal(raw, &stored)
		if err == nil {
			err = stored.Validate()
		}
		if err != nil {
			e.logger.Warn("ignoring stored settings", "error", err)
			return
		}
		if !e.configured {
			e.settings = stored
			if e.state == StateIdle {
				e.remaining = stored.seconds(e.phase)
			}
		}
	case KeyRecords:
		stored := DailyRecord{}
		if err := json.Unmarshal(raw, &stored); err != nil {
			e.logger.Warn("ignoring stored records", "error", err)
			return
		}
		for date, count := range stored {
			e.records[date] += count
		}
	}
}

// persistLocked saves key and retries every key whose earlier save failed.
func (e *Engine) persistLocked(key string) error {
	err := e.saveLocked(key)
	for other := range e.failed {
		if other != key {
			_ = e.saveLocked(other)
		}
	}
	return err
}

func (e *Engine) saveLocked(key string) error {
	if e.unloaded[key] {
		e.loadLocked(key)
		if e.unloaded[key] {
			return e.failed[key]
		}
	}

	var raw []byte
	var err error
	switch key {
	case KeySettings:
		raw, err = json.Marshal(e.settings)
	default:
		raw, err = json.Marshal(e.records)
	}
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), e.opts.PersistTimeout)
		err = e.store.Save(ctx, key, raw)
		cancel()
	}
	if err != nil {
		wrapped := fmt.Errorf("%w: save %s: %v", ErrPersistence, key, err)
		e.failed[key] = wrapped
		e.opts.Recorder.RecordPersistFailure(key)
		e.logger.Error("persist pomodoro state", "key", key, "error", err)
		return wrapped
	}
	delete(e.failed, key)
	return nil
}
