package dialog

import (
	"context"
	"encoding/json"
	"fmt"
)

// StackProperty is the conversation state property holding the dialog stack.
const StackProperty = "dialogState"

// Context drives the dialog stack of one conversation for one turn.
type Context struct {
	Turn *TurnContext

	dialogs *Set
	stack   []*Frame
}

// NewContext creates a Context over an explicit stack.
func NewContext(dialogs *Set, turn *TurnContext, stack []*Frame) *Context {
	return &Context{Turn: turn, dialogs: dialogs, stack: stack}
}

// LoadContext creates a Context over the stack stored in the conversation
// state of turn.
func LoadContext(dialogs *Set, turn *TurnContext) (*Context, error) {
	var stack []*Frame
	if _, err := turn.Conversation.Get(StackProperty, &stack); err != nil {
		return nil, fmt.Errorf("dialog: load stack: %w", err)
	}
	return NewContext(dialogs, turn, stack), nil
}

// Persist writes the stack back to the conversation state. An empty stack
// removes the property.
func (dc *Context) Persist() error {
	if len(dc.stack) == 0 {
		dc.Turn.Conversation.Delete(StackProperty)
		return nil
	}
	if err := dc.Turn.Conversation.Set(StackProperty, dc.stack); err != nil {
		return fmt.Errorf("dialog: persist stack: %w", err)
	}
	return nil
}

// Stack returns a copy of the frame stack, bottom first.
func (dc *Context) Stack() []*Frame {
	out := make([]*Frame, len(dc.stack))
	copy(out, dc.stack)
	return out
}

// Active returns the frame on top of the stack, or nil.
func (dc *Context) Active() *Frame {
	if len(dc.stack) == 0 {
		return nil
	}
	return dc.stack[len(dc.stack)-1]
}

// parent returns the frame right below the active one, or nil.
func (dc *Context) parent() *Frame {
	if len(dc.stack) < 2 {
		return nil
	}
	return dc.stack[len(dc.stack)-2]
}

// Begin pushes a frame for dialog id and runs it.
func (dc *Context) Begin(ctx context.Context, id string, options any) (Result, error) {
	d := dc.dialogs.Find(id)
	if d == nil {
		return Result{}, fmt.Errorf("dialog: %q not found", id)
	}
	frame := &Frame{DialogID: id}
	if options != nil {
		raw, err := json.Marshal(options)
		if err != nil {
			return Result{}, fmt.Errorf("dialog: encode options of %q: %w", id, err)
		}
		frame.Options = raw
	}
	dc.stack = append(dc.stack, frame)
	return d.Begin(ctx, dc, options)
}

// Continue hands the current activity to the active dialog.
func (dc *Context) Continue(ctx context.Context) (Result, error) {
	frame := dc.Active()
	if frame == nil {
		return Result{Status: StatusEmpty}, nil
	}
	d := dc.dialogs.Find(frame.DialogID)
	if d == nil {
		return Result{}, fmt.Errorf("dialog: active dialog %q not found", frame.DialogID)
	}
	return d.Continue(ctx, dc)
}

// End pops the active frame. The dialog below, if any, resumes with value;
// otherwise the stack is complete and value is returned to the caller.
func (dc *Context) End(ctx context.Context, value any) (Result, error) {
	dc.pop()
	frame := dc.Active()
	if frame == nil {
		return Result{Status: StatusComplete, Value: value}, nil
	}
	d := dc.dialogs.Find(frame.DialogID)
	if d == nil {
		return Result{}, fmt.Errorf("dialog: parent dialog %q not found", frame.DialogID)
	}
	return d.Resume(ctx, dc, value)
}

// Replace pops the active frame without resuming its parent and begins id
// in its place.
func (dc *Context) Replace(ctx context.Context, id string, options any) (Result, error) {
	dc.pop()
	return dc.Begin(ctx, id, options)
}

// CancelAll discards every frame.
func (dc *Context) CancelAll() Result {
	if len(dc.stack) == 0 {
		return Result{Status: StatusEmpty}
	}
	dc.stack = nil
	return Result{Status: StatusCancelled}
}

func (dc *Context) pop() {
	if len(dc.stack) == 0 {
		return
	}
	dc.stack[len(dc.stack)-1] = nil
	dc.stack = dc.stack[:len(dc.stack)-1]
}
