package bot

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

const (
	directiveAdd    = "add"
	directiveRemove = "rm"
	directiveList   = "list"
	directiveHelp   = "help"
)

var (
	triggerPattern = regexp.MustCompile(`^(_botScriber|_bs)(\s|$)`)

	ErrNotAddressed = errors.New("message is not addressed to the bot")
	ErrNoDirective  = errors.New("trigger without directive")
)

// Command is one of Add, Remove, List, Help or Unknown.
type Command interface {
	command()
}

type Add struct {
	URL string
}

type Remove struct {
	URL string
}

type List struct{}

type Help struct{}

type Unknown struct {
	Directive string
}

func (Add) command()     {}
func (Remove) command()  {}
func (List) command()    {}
func (Help) command()    {}
func (Unknown) command() {}

// ParseCommand turns "<trigger> <directive> [url]" into a Command.
// An empty URL in Add or Remove means the argument was omitted.
func ParseCommand(text string) (Command, error) {
	if !triggerPattern.MatchString(text) {
		return nil, ErrNotAddressed
	}
	tokens := strings.Fields(text)
	if len(tokens) < 2 {
		return nil, ErrNoDirective
	}
	var argument string
	if len(tokens) > 2 {
		argument = tokens[2]
	}
	switch directive := tokens[1]; directive {
	case directiveAdd:
		return Add{URL: argument}, nil
	case directiveRemove:
		return Remove{URL: argument}, nil
	case directiveList:
		return List{}, nil
	case directiveHelp:
		return Help{}, nil
	default:
		return Unknown{Directive: directive}, nil
	}
}
