package recognizer

import "fmt"

// App enumerates the LUIS applications the bot consults.
type App int

const (
	AppDispatch App = iota
	AppAccountPassword
	AppSupportTicket
	AppSupportKBDispatch
)

func (a App) String() string {
	switch a {
	case AppDispatch:
		return "dispatch"
	case AppAccountPassword:
		return "account_password"
	case AppSupportTicket:
		return "support_ticket"
	case AppSupportKBDispatch:
		return "support_kb_dispatch"
	default:
		return fmt.Sprintf("app(%d)", int(a))
	}
}

// Registry maps each App to its recognizer. It is built once at startup
// and shared read-only afterwards.
type Registry struct {
	recognizers map[App]Recognizer
}

// NewRegistry validates that every App has a recognizer.
func NewRegistry(recognizers map[App]Recognizer) (*Registry, error) {
	for _, app := range []App{AppDispatch, AppAccountPassword, AppSupportTicket, AppSupportKBDispatch} {
		if recognizers[app] == nil {
			return nil, fmt.Errorf("recognizer: no recognizer registered for %s", app)
		}
	}
	copied := make(map[App]Recognizer, len(recognizers))
	for k, v := range recognizers {
		copied[k] = v
	}
	return &Registry{recognizers: copied}, nil
}

// Get returns the recognizer registered for app.
func (r *Registry) Get(app App) Recognizer {
	return r.recognizers[app]
}
