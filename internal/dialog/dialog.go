// Package dialog is a small waterfall dialog engine. The active dialogs of a
// conversation form a stack of frames that is persisted between turns, so a
// conversation suspended at a prompt can resume in a later process.
package dialog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Status is the outcome of running the dialog stack for one turn.
type Status int

const (
	// StatusEmpty means no dialog was active.
	StatusEmpty Status = iota
	// StatusWaiting means a dialog is suspended awaiting user input.
	StatusWaiting
	// StatusComplete means the outermost dialog ended this turn.
	StatusComplete
	// StatusCancelled means the stack was discarded.
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusWaiting:
		return "waiting"
	case StatusComplete:
		return "complete"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is returned by every dialog operation. Value carries the end result
// of the outermost dialog when Status is StatusComplete.
type Result struct {
	Status Status
	Value  any
}

// Redirect is an end result asking the router to begin dialog To once the
// current dialog completes.
type Redirect struct {
	To string
}

// Goodbye is the end result of the goodbye flow. The router does not start
// the goodbye flow again after a dialog that ended with it.
type Goodbye struct{}

// Dialog is one unit of multi-turn conversation.
type Dialog interface {
	ID() string
	// Begin runs the dialog for the first time. Its frame is already on the stack.
	Begin(ctx context.Context, dc *Context, options any) (Result, error)
	// Continue handles a new inbound activity while the dialog is on top.
	Continue(ctx context.Context, dc *Context) (Result, error)
	// Resume is called when a child dialog ended with result.
	Resume(ctx context.Context, dc *Context, result any) (Result, error)
}

// Frame is the persisted position of one dialog on the stack.
type Frame struct {
	DialogID  string                     `json:"dialogId"`
	StepIndex int                        `json:"stepIndex"`
	Options   json.RawMessage            `json:"options,omitempty"`
	Values    map[string]json.RawMessage `json:"values,omitempty"`
}

// DecodeOptions decodes the options the dialog was started with into dst.
func (f *Frame) DecodeOptions(dst any) (bool, error) {
	if len(f.Options) == 0 || string(f.Options) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(f.Options, dst); err != nil {
		return false, fmt.Errorf("dialog: decode options of %q: %w", f.DialogID, err)
	}
	return true, nil
}

// SetValue stores a value scoped to this frame. It is discarded with the frame.
func (f *Frame) SetValue(name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("dialog: encode value %q: %w", name, err)
	}
	if f.Values == nil {
		f.Values = make(map[string]json.RawMessage)
	}
	f.Values[name] = raw
	return nil
}

// Value decodes the frame value stored under name into dst.
func (f *Frame) Value(name string, dst any) (bool, error) {
	raw, ok := f.Values[name]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("dialog: decode value %q: %w", name, err)
	}
	return true, nil
}

// DeleteValue removes a frame value.
func (f *Frame) DeleteValue(name string) {
	delete(f.Values, name)
}

// Set is the registry of dialogs a Context can begin.
type Set struct {
	dialogs map[string]Dialog
}

// NewSet registers dialogs. IDs must be unique.
func NewSet(dialogs ...Dialog) (*Set, error) {
	s := &Set{dialogs: make(map[string]Dialog, len(dialogs))}
	for _, d := range dialogs {
		if err := s.Add(d); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add registers d.
func (s *Set) Add(d Dialog) error {
	if d == nil {
		return errors.New("dialog: nil dialog")
	}
	if d.ID() == "" {
		return errors.New("dialog: dialog id must not be empty")
	}
	if _, dup := s.dialogs[d.ID()]; dup {
		return fmt.Errorf("dialog: duplicate dialog id %q", d.ID())
	}
	s.dialogs[d.ID()] = d
	return nil
}

// Find returns the dialog registered under id, or nil.
func (s *Set) Find(id string) Dialog {
	return s.dialogs[id]
}
