package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/smazurov/phonecam/internal/frame"
)

// ErrCommandParse is returned for text messages no command grammar accepts.
var ErrCommandParse = errors.New("unrecognized command")

// State is the per-session transform state commands act on.
type State = frame.Transform

// Action names a command.
type Action string

// Supported actions.
const (
	ActionRotate Action = "rotate"
	ActionFlip   Action = "flip"
)

// Axis selects which flip flag a flip command sets.
type Axis string

// Flip axes.
const (
	AxisHorizontal Axis = "H"
	AxisVertical   Axis = "V"
)

// Command is one parsed text message.
type Command struct {
	Action   Action
	Rotation int  // rotate: degrees as sent, not normalized
	Axis     Axis // flip only
	Value    bool // flip only
}

// Apply mutates state. Rotation is stored as given; the transform
// normalizes it when a frame is processed.
func (c Command) Apply(state *State) {
	switch c.Action {
	case ActionRotate:
		state.Rotation = c.Rotation
	case ActionFlip:
		switch c.Axis {
		case AxisHorizontal:
			state.FlipHorizontal = c.Value
		case AxisVertical:
			state.FlipVertical = c.Value
		}
	}
}

func (c Command) String() string {
	if c.Action == ActionRotate {
		return fmt.Sprintf("rotate %d", c.Rotation)
	}
	return fmt.Sprintf("flip %s %t", c.Axis, c.Value)
}

// parser tries one grammar. ok is false when the text is not in that
// grammar at all and the next parser should be tried.
type parser func(text string) (cmd Command, ok bool, err error)

// parsers run in order; first match wins.
var parsers = []parser{parseJSON, parseDelimited}

// ParseCommand parses a text message, trying the JSON form first and the
// ROTATE:/FLIP: form second.
func ParseCommand(text string) (Command, error) {
	for _, p := range parsers {
		cmd, ok, err := p(text)
		if !ok {
			continue
		}
		if err != nil {
			return Command{}, fmt.Errorf("%w: %w", ErrCommandParse, err)
		}
		return cmd, nil
	}
	return Command{}, fmt.Errorf("%w: %q", ErrCommandParse, truncate(text, 64))
}

type jsonCommand struct {
	Action string          `json:"action"`
	Type   string          `json:"type"`
	Value  json.RawMessage `json:"value"`
}

func parseJSON(text string) (Command, bool, error) {
	var raw jsonCommand
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Command{}, false, nil
	}

	switch Action(raw.Action) {
	case ActionRotate:
		deg, err := jsonInt(raw.Value)
		if err != nil {
			return Command{}, true, fmt.Errorf("rotate value: %w", err)
		}
		return Command{Action: ActionRotate, Rotation: deg}, true, nil

	case ActionFlip:
		axis, err := parseAxis(raw.Type)
		if err != nil {
			return Command{}, true, err
		}
		var v bool
		if len(raw.Value) > 0 {
			if err := json.Unmarshal(raw.Value, &v); err != nil {
				return Command{}, true, fmt.Errorf("flip value: %w", err)
			}
		}
		return Command{Action: ActionFlip, Axis: axis, Value: v}, true, nil

	default:
		return Command{}, true, fmt.Errorf("unknown action %q", raw.Action)
	}
}

// jsonInt accepts a JSON number (fraction truncated) or a numeric string.
// A missing value is zero.
func jsonInt(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return 0, err
		}
		n = json.Number(strings.TrimSpace(s))
	}
	if i, err := n.Int64(); err == nil {
		return int(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func parseAxis(s string) (Axis, error) {
	switch Axis(strings.ToUpper(strings.TrimSpace(s))) {
	case AxisHorizontal:
		return AxisHorizontal, nil
	case AxisVertical:
		return AxisVertical, nil
	default:
		return "", fmt.Errorf("unknown flip type %q", s)
	}
}

const (
	rotatePrefix = "ROTATE:"
	flipHPrefix  = "FLIP:H:"
	flipVPrefix  = "FLIP:V:"
)

func parseDelimited(text string) (Command, bool, error) {
	switch {
	case strings.HasPrefix(text, rotatePrefix):
		field, _, _ := strings.Cut(text[len(rotatePrefix):], ":")
		deg, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return Command{}, true, fmt.Errorf("rotate value: %w", err)
		}
		return Command{Action: ActionRotate, Rotation: deg}, true, nil

	case strings.HasPrefix(text, flipHPrefix):
		return Command{Action: ActionFlip, Axis: AxisHorizontal, Value: parseFlag(text[len(flipHPrefix):])}, true, nil

	case strings.HasPrefix(text, flipVPrefix):
		return Command{Action: ActionFlip, Axis: AxisVertical, Value: parseFlag(text[len(flipVPrefix):])}, true, nil
	}
	return Command{}, false, nil
}

// parseFlag reports whether the first field of s is "true", ignoring case.
// Every other token is false.
func parseFlag(s string) bool {
	field, _, _ := strings.Cut(s, ":")
	return strings.EqualFold(strings.TrimSpace(field), "true")
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
