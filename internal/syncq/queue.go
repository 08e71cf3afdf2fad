// Package syncq keeps requests that could not reach the API so they can be
// replayed later with `finwise sync`.
package syncq

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

type Command struct {
	Method         string         `json:"method"`
	Path           string         `json:"path"`
	Body           map[string]any `json:"body,omitempty"`
	IdempotencyKey string         `json:"idempotency_key"`
	QueuedAt       time.Time      `json:"queued_at"`
}

func queuePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".finwise")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "queue.json"), nil
}

func Load() ([]Command, error) {
	path, err := queuePath()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Command{}, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return []Command{}, nil
	}
	var out []Command
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func Save(commands []Command) error {
	path, err := queuePath()
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(commands, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func Push(cmd Command) error {
	commands, err := Load()
	if err != nil {
		return err
	}
	if cmd.QueuedAt.IsZero() {
		cmd.QueuedAt = time.Now().UTC()
	}
	commands = append(commands, cmd)
	return Save(commands)
}

// Outcome says what to do with a command after a replay attempt.
type Outcome int

const (
	// Delivered and Dropped both remove the command.
	Delivered Outcome = iota
	Dropped
	// Retry keeps the command and every one after it.
	Retry
)

// Drain replays queued commands in order through send. It stops at the first
// Retry so later commands never overtake earlier ones.
func Drain(send func(Command) Outcome) (delivered, dropped int, err error) {
	commands, err := Load()
	if err != nil {
		return 0, 0, err
	}
	i := 0
	for ; i < len(commands); i++ {
		switch send(commands[i]) {
		case Delivered:
			delivered++
			continue
		case Dropped:
			dropped++
			continue
		}
		break
	}
	return delivered, dropped, Save(commands[i:])
}
