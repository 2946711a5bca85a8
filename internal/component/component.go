package component

import (
	"context"
	"errors"
	"fmt"

	"github.com/keshon/cordhost/pkg/cmd"
)

// ErrConfiguration is wrapped by registration errors.
var ErrConfiguration = cmd.ErrConfiguration

// Component is a plugin registered with the Dispatcher. It exposes text
// commands and reacts to the gateway events it lists in Events.
type Component interface {
	Name() string
	Events() []EventKind
	TryCommand(ctx context.Context, req *Request) Result
	TryEvent(ctx context.Context, ev Event) Result
}

// Request is one inbound text command.
type Request struct {
	// ID correlates log lines. The Dispatcher assigns one when empty.
	ID        string
	Caller    cmd.Caller
	Username  string
	ChannelID string
	MessageID string
	// Line is the raw text including the command prefix.
	Line string
	// Tokens is Line without the prefix, tokenized. Set by the Dispatcher.
	Tokens []string
}

// EventKind tags a gateway event.
type EventKind string

const (
	EventReady                EventKind = "ready"
	EventGuildCreate          EventKind = "guild_create"
	EventComponentInteraction EventKind = "component_interaction"
)

// Event is one inbound gateway event.
type Event struct {
	Kind      EventKind
	Caller    cmd.Caller
	Username  string
	ChannelID string
	MessageID string
	// CustomID and Values are set for component interactions.
	CustomID string
	Values   []string
	// Payload carries kind specific data, e.g. Ready.
	Payload any
}

// Ready is the payload of EventReady.
type Ready struct {
	UserID   string
	Username string
	Guilds   []string
}

// Guild is the payload of EventGuildCreate.
type Guild struct {
	ID   string
	Name string
}

// Claim is a component's answer to an input.
type Claim int

const (
	NotClaimed Claim = iota
	Claimed
	Failed
)

func (c Claim) String() string {
	switch c {
	case NotClaimed:
		return "not_claimed"
	case Claimed:
		return "claimed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("claim(%d)", int(c))
	}
}

// Result is the outcome of offering an input to a component.
type Result struct {
	Claim Claim
	Reply *Reply
	Err   error
}

// Pass declines an input.
func Pass() Result { return Result{Claim: NotClaimed} }

// Done claims an input. reply may be nil.
func Done(reply *Reply) Result { return Result{Claim: Claimed, Reply: reply} }

// Fail claims an input that could not be handled.
func Fail(err error) Result { return Result{Claim: Failed, Err: err} }

// ReplyKind selects how a reply is rendered.
type ReplyKind int

const (
	ReplyInfo ReplyKind = iota
	ReplySuccess
	ReplyError
)

// Field is a titled paragraph of a reply.
type Field struct {
	Name  string
	Value string
}

// Reply is an outbound message. The gateway adapter decides how to render
// and deliver it.
type Reply struct {
	Kind      ReplyKind
	Title     string
	Text      string
	Fields    []Field
	Ephemeral bool
}

// GenericFailure is shown for failures that are not the user's doing.
const GenericFailure = "something went wrong, please try again later"

// Text returns an informational reply.
func Text(text string) *Reply { return &Reply{Kind: ReplyInfo, Text: text} }

// Success returns a success reply.
func Success(format string, args ...any) *Reply {
	return &Reply{Kind: ReplySuccess, Text: fmt.Sprintf(format, args...)}
}

// Errorf returns an error reply.
func Errorf(format string, args ...any) *Reply {
	return &Reply{Kind: ReplyError, Title: "Error", Text: fmt.Sprintf(format, args...)}
}

// FailureReply turns a failure into the reply shown to the user. Match
// failures carry their own message. Anything else gets a generic message;
// the error itself stays in the logs.
func FailureReply(err error) *Reply {
	var me *cmd.MatchError
	if errors.As(err, &me) {
		return Errorf("%s", me.Error())
	}
	return Errorf("%s", GenericFailure)
}
