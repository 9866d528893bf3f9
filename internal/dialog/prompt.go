package dialog

import (
	"context"
	"strconv"
	"strings"
	"unicode"
)

// PromptOptions is what a prompt says when it starts and when input is rejected.
type PromptOptions struct {
	Prompt string `json:"prompt,omitempty"`
	Retry  string `json:"retry,omitempty"`
}

// Recognized is the typed reading of the user's reply.
type Recognized[T any] struct {
	Succeeded bool
	Value     T
}

// PromptContext is handed to a Validator.
type PromptContext[T any] struct {
	Turn       *TurnContext
	Recognized Recognized[T]
	Options    PromptOptions
	// Owner is the frame of the dialog that started the prompt. Validators
	// read values scoped to that dialog through it.
	Owner *Frame
}

// Validator accepts or rejects a reply. A rejecting validator may send its
// own message; when it sends nothing the prompt re-asks.
type Validator[T any] func(ctx context.Context, pc *PromptContext[T]) (bool, error)

// Prompt asks for one value and ends with it once a reply is accepted.
type Prompt[T any] struct {
	id        string
	recognize func(text string) Recognized[T]
	validator Validator[T]
	suffix    string
}

func (p *Prompt[T]) ID() string {
	return p.id
}

func (p *Prompt[T]) Begin(_ context.Context, dc *Context, _ any) (Result, error) {
	var opts PromptOptions
	if _, err := dc.Active().DecodeOptions(&opts); err != nil {
		return Result{}, err
	}
	if opts.Prompt != "" {
		dc.Turn.SendText(opts.Prompt + p.suffix)
	}
	return Result{Status: StatusWaiting}, nil
}

func (p *Prompt[T]) Continue(ctx context.Context, dc *Context) (Result, error) {
	if !dc.Turn.Activity.IsMessage() {
		return Result{Status: StatusWaiting}, nil
	}
	var opts PromptOptions
	if _, err := dc.Active().DecodeOptions(&opts); err != nil {
		return Result{}, err
	}

	recognized := p.recognize(dc.Turn.Activity.Text)
	valid := recognized.Succeeded
	if p.validator != nil {
		var err error
		valid, err = p.validator(ctx, &PromptContext[T]{
			Turn:       dc.Turn,
			Recognized: recognized,
			Options:    opts,
			Owner:      dc.parent(),
		})
		if err != nil {
			return Result{}, err
		}
	}
	if valid {
		return dc.End(ctx, recognized.Value)
	}

	if !dc.Turn.Responded() {
		switch {
		case opts.Retry != "":
			dc.Turn.SendText(opts.Retry + p.suffix)
		case opts.Prompt != "":
			dc.Turn.SendText(opts.Prompt + p.suffix)
		}
	}
	return Result{Status: StatusWaiting}, nil
}

// Resume keeps waiting; prompts start no children.
func (p *Prompt[T]) Resume(context.Context, *Context, any) (Result, error) {
	return Result{Status: StatusWaiting}, nil
}

// NewTextPrompt accepts any non-empty text.
func NewTextPrompt(id string, validator Validator[string]) *Prompt[string] {
	return &Prompt[string]{
		id:        id,
		validator: validator,
		recognize: func(text string) Recognized[string] {
			return Recognized[string]{Succeeded: text != "", Value: text}
		},
	}
}

// NewNumberPrompt accepts a number, with either '.' or ',' as the decimal
// separator.
func NewNumberPrompt(id string, validator Validator[float64]) *Prompt[float64] {
	return &Prompt[float64]{
		id:        id,
		validator: validator,
		recognize: func(text string) Recognized[float64] {
			s := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
			n, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return Recognized[float64]{}
			}
			return Recognized[float64]{Succeeded: true, Value: n}
		},
	}
}

// confirmSuffix lists the accepted choices after a confirm question.
const confirmSuffix = " (1) Sim ou (2) Não"

var (
	confirmYes = map[string]bool{"sim": true, "s": true, "yes": true, "y": true, "1": true, "claro": true, "ok": true, "isso": true, "quero": true}
	confirmNo  = map[string]bool{"não": true, "nao": true, "n": true, "no": true, "2": true, "negativo": true}
)

// NewConfirmPrompt accepts a Portuguese yes or no.
func NewConfirmPrompt(id string, validator Validator[bool]) *Prompt[bool] {
	return &Prompt[bool]{
		id:        id,
		validator: validator,
		suffix:    confirmSuffix,
		recognize: parseConfirm,
	}
}

func parseConfirm(text string) Recognized[bool] {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	if len(words) == 0 {
		return Recognized[bool]{}
	}
	switch {
	case confirmYes[words[0]]:
		return Recognized[bool]{Succeeded: true, Value: true}
	case confirmNo[words[0]]:
		return Recognized[bool]{Succeeded: true, Value: false}
	default:
		return Recognized[bool]{}
	}
}
