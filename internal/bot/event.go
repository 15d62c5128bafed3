package bot

import (
	"context"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ashureev/shsh-autopilot/internal/domain"
)

// GoalCommand prefixes a goal request.
const GoalCommand = "!goal"

// Sink delivers text to one conversation.
type Sink interface {
	Send(ctx context.Context, text string) error
	// MaxMessageLength is the transport's per-message limit in characters;
	// zero or less means unlimited.
	MaxMessageLength() int
}

// Event is one incoming chat message.
type Event struct {
	Transport string
	UserID    string
	Username  string
	Text      string
	// Direct is true when the message arrived in a private conversation.
	Direct bool
	// Reply answers in the conversation the message came from.
	Reply Sink
	// DM reaches the author privately.
	DM Sink
}

func (e Event) key() string {
	return e.Transport + ":" + e.UserID
}

// ParseGoal extracts the goal from a "!goal ..." message.
// ok is false when text is not a goal command; goal may be empty.
func ParseGoal(text string) (goal string, ok bool) {
	text = strings.TrimLeftFunc(text, unicode.IsSpace)
	if !strings.HasPrefix(text, GoalCommand) {
		return "", false
	}
	rest := text[len(GoalCommand):]
	if rest != "" {
		if r, _ := utf8.DecodeRuneInString(rest); !unicode.IsSpace(r) {
			return "", false
		}
	}
	return strings.TrimSpace(rest), true
}

var credentialsPattern = regexp.MustCompile(`GROQ API Key: (.+)\r?\nLinux API Key: (.+)`)

// ParseCredentials reads the two-field onboarding reply.
func ParseCredentials(text string) (domain.Credentials, bool) {
	m := credentialsPattern.FindStringSubmatch(text)
	if m == nil {
		return domain.Credentials{}, false
	}
	creds := domain.Credentials{
		ModelAPIKey:   strings.TrimSpace(m[1]),
		SandboxAPIKey: strings.TrimSpace(m[2]),
	}
	return creds, creds.Complete()
}
