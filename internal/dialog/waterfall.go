package dialog

import "context"

// StepFunc is one step of a waterfall. It must return the result of one of
// the Step transitions (Next, Prompt, Begin, End, Replace) or a Waiting
// result of its own.
type StepFunc func(ctx context.Context, step *Step) (Result, error)

// Waterfall runs its steps in order, one per resumption.
type Waterfall struct {
	id    string
	steps []StepFunc
}

func NewWaterfall(id string, steps ...StepFunc) *Waterfall {
	return &Waterfall{id: id, steps: steps}
}

func (w *Waterfall) ID() string {
	return w.id
}

func (w *Waterfall) Begin(ctx context.Context, dc *Context, _ any) (Result, error) {
	return w.run(ctx, dc, 0, nil)
}

// Continue treats the inbound text as the result of the current step.
func (w *Waterfall) Continue(ctx context.Context, dc *Context) (Result, error) {
	if !dc.Turn.Activity.IsMessage() {
		return Result{Status: StatusWaiting}, nil
	}
	return w.run(ctx, dc, dc.Active().StepIndex+1, dc.Turn.Activity.Text)
}

func (w *Waterfall) Resume(ctx context.Context, dc *Context, result any) (Result, error) {
	return w.run(ctx, dc, dc.Active().StepIndex+1, result)
}

func (w *Waterfall) run(ctx context.Context, dc *Context, index int, result any) (Result, error) {
	if index >= len(w.steps) {
		return dc.End(ctx, result)
	}
	frame := dc.Active()
	frame.StepIndex = index
	return w.steps[index](ctx, &Step{Result: result, waterfall: w, dc: dc, frame: frame, index: index})
}

// Step is the view of the waterfall handed to a StepFunc.
type Step struct {
	// Result is the value produced by the previous step, prompt or child dialog.
	Result any

	waterfall *Waterfall
	dc        *Context
	frame     *Frame
	index     int
}

func (s *Step) Context() *Context {
	return s.dc
}

func (s *Step) Turn() *TurnContext {
	return s.dc.Turn
}

func (s *Step) Index() int {
	return s.index
}

// Options decodes the options the waterfall was started with.
func (s *Step) Options(dst any) (bool, error) {
	return s.frame.DecodeOptions(dst)
}

func (s *Step) SetValue(name string, v any) error {
	return s.frame.SetValue(name, v)
}

func (s *Step) Value(name string, dst any) (bool, error) {
	return s.frame.Value(name, dst)
}

// Next runs the following step right away with value as its Result.
func (s *Step) Next(ctx context.Context, value any) (Result, error) {
	return s.waterfall.run(ctx, s.dc, s.index+1, value)
}

// Prompt begins prompt id. The next step receives the validated value.
func (s *Step) Prompt(ctx context.Context, id string, options PromptOptions) (Result, error) {
	return s.dc.Begin(ctx, id, options)
}

// Begin starts a child dialog. The next step receives its end result.
func (s *Step) Begin(ctx context.Context, id string, options any) (Result, error) {
	return s.dc.Begin(ctx, id, options)
}

// End finishes the waterfall with value.
func (s *Step) End(ctx context.Context, value any) (Result, error) {
	return s.dc.End(ctx, value)
}

// Replace finishes the waterfall and starts id in its place.
func (s *Step) Replace(ctx context.Context, id string, options any) (Result, error) {
	return s.dc.Replace(ctx, id, options)
}
