// Package responder holds the user-facing texts and cards of the bot.
// Texts live in an embedded YAML catalog; placeholders are written as
// {{name}}.
package responder

import (
	_ "embed"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed pt-BR.yaml
var ptBR []byte

type Cancellation struct {
	Pattern         string `yaml:"pattern"`
	Cancelled       string `yaml:"cancelled"`
	NothingToCancel string `yaml:"nothing_to_cancel"`
}

type Generic struct {
	CouldNotUnderstand string `yaml:"could_not_understand"`
	NotTrainedYet      string `yaml:"not_trained_yet"`
	UnexpectedError    string `yaml:"unexpected_error"`
	NeedAnythingElse   string `yaml:"need_anything_else"`
	Thanks             string `yaml:"thanks"`
	IAmAvailable       string `yaml:"i_am_available"`
}

type FAQ struct {
	RedirectToPasswordReset string `yaml:"redirect_to_password_reset"`
}

type PasswordReset struct {
	UserIDPrompt          string `yaml:"user_id_prompt"`
	UserIDReprompt        string `yaml:"user_id_reprompt"`
	UserIDNotFound        string `yaml:"user_id_not_found"`
	UserIDTooSmall        string `yaml:"user_id_too_small"`
	UserIDTooBig          string `yaml:"user_id_too_big"`
	InformAuth            string `yaml:"inform_auth"`
	MagicCodePrompt       string `yaml:"magic_code_prompt"`
	InvalidMagicCode      string `yaml:"invalid_magic_code"`
	SMSCode               string `yaml:"sms_code"`
	SMSPassword           string `yaml:"sms_password"`
	PasswordSent          string `yaml:"password_sent"`
	ErrorChangingPassword string `yaml:"error_changing_password"`
	SMSFailed             string `yaml:"sms_failed"`
	MobileNotFound        string `yaml:"mobile_not_found"`
}

type SupportTicket struct {
	NoTicketFoundWithID      string `yaml:"no_ticket_found_with_id"`
	NoLastTicketFound        string `yaml:"no_last_ticket_found"`
	NoLastOpenTicketsFound   string `yaml:"no_last_open_tickets_found"`
	ProblemStatementPrompt   string `yaml:"problem_statement_prompt"`
	ProblemStatementReprompt string `yaml:"problem_statement_reprompt"`
	ProblemStatementTooSmall string `yaml:"problem_statement_too_small"`
	GotYourProblem           string `yaml:"got_your_problem"`
	LookingForSolutions      string `yaml:"looking_for_solutions"`
	NoAnswerFound            string `yaml:"no_answer_found"`
	ContinueOpeningTicket    string `yaml:"continue_opening_ticket"`
	TicketCreated            string `yaml:"ticket_created"`
	TicketOpenFailed         string `yaml:"ticket_open_failed"`
	TicketQueryFailed        string `yaml:"ticket_query_failed"`
	KBLink                   string `yaml:"kb_link"`
	KBLinkURL                string `yaml:"kb_link_url"`
	CardTicketID             string `yaml:"card_ticket_id"`
	CardCreator              string `yaml:"card_creator"`
	CardCreatedAt            string `yaml:"card_created_at"`
	CardStatusTitle          string `yaml:"card_status_title"`
	CardStatusOpen           string `yaml:"card_status_open"`
	CardStatusClosed         string `yaml:"card_status_closed"`
	CardLastUpdateTitle      string `yaml:"card_last_update_title"`
}

type Auth struct {
	Prompt  string `yaml:"prompt"`
	Title   string `yaml:"title"`
	Hello   string `yaml:"hello"`
	Failure string `yaml:"failure"`
}

type Welcome struct {
	Title    string   `yaml:"title"`
	Text     string   `yaml:"text"`
	Examples []string `yaml:"examples"`
}

// Catalog is the full set of texts for one locale.
type Catalog struct {
	Cancellation  Cancellation  `yaml:"cancellation"`
	Generic       Generic       `yaml:"generic"`
	FAQ           FAQ           `yaml:"faq"`
	PasswordReset PasswordReset `yaml:"password_reset"`
	SupportTicket SupportTicket `yaml:"support_ticket"`
	Auth          Auth          `yaml:"auth"`
	Welcome       Welcome       `yaml:"welcome"`

	cancel *regexp.Regexp
}

// Default returns the embedded pt-BR catalog.
func Default() (*Catalog, error) {
	return Parse(ptBR)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("responder: parse catalog: %w", err)
	}
	if err := validate(reflect.ValueOf(c), ""); err != nil {
		return nil, err
	}
	re, err := regexp.Compile(c.Cancellation.Pattern)
	if err != nil {
		return nil, fmt.Errorf("responder: cancellation pattern: %w", err)
	}
	c.cancel = re
	return &c, nil
}

// validate reports the first empty text in v.
func validate(v reflect.Value, path string) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := strings.Split(f.Tag.Get("yaml"), ",")[0]
		if path != "" {
			name = path + "." + name
		}
		fv := v.Field(i)
		switch fv.Kind() {
		case reflect.Struct:
			if err := validate(fv, name); err != nil {
				return err
			}
		case reflect.String:
			if fv.String() == "" {
				return fmt.Errorf("responder: %s must not be empty", name)
			}
		}
	}
	return nil
}

// IsCancellation reports whether text asks to stop what is in progress.
// Matching is case-insensitive.
func (c *Catalog) IsCancellation(text string) bool {
	if text == "" || c.cancel == nil {
		return false
	}
	return c.cancel.MatchString(strings.ToLower(text))
}

// Format replaces {{name}} placeholders in tmpl. vars holds name/value pairs.
func Format(tmpl string, vars ...string) string {
	if len(vars)%2 != 0 {
		vars = append(vars, "")
	}
	pairs := make([]string, 0, len(vars))
	for i := 0; i < len(vars); i += 2 {
		pairs = append(pairs, "{{"+vars[i]+"}}", vars[i+1])
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// UnexpectedError is the reply sent when a turn fails.
func (c *Catalog) UnexpectedError(activityID string) string {
	return Format(c.Generic.UnexpectedError, "activityId", activityID)
}
