package tickets

import (
	"context"
	"errors"
	"time"
)

// ErrStaffRoleMissing is returned by CreateTicket when the guild has no
// role named after the staff role.
var ErrStaffRoleMissing = errors.New("staff role does not exist")

// Platform performs the chat side effects of the ticket workflow.
type Platform interface {
	// SendMenu posts the ticket type menu and returns the message ID.
	SendMenu(ctx context.Context, channelID string, options []MenuOption) (string, error)
	// UpdateMenu replaces the options of an existing menu message.
	UpdateMenu(ctx context.Context, loc MenuLocation, options []MenuOption) error
	DeleteMessage(ctx context.Context, loc MenuLocation) error

	// ParentID returns the Discord category a channel belongs to, or "".
	ParentID(ctx context.Context, channelID string) (string, error)
	// CreateTicket creates a private ticket channel and greets its owner.
	// It creates nothing and returns ErrStaffRoleMissing when the staff
	// role cannot be found.
	CreateTicket(ctx context.Context, spec TicketSpec) (string, error)
	// TicketOwner returns the user the ticket was opened for, or "".
	TicketOwner(ctx context.Context, channelID string) (string, error)
	AllowMember(ctx context.Context, channelID, userID string) error
	Messages(ctx context.Context, channelID string) ([]Message, error)
	DeleteChannel(ctx context.Context, channelID string) error
	Username(ctx context.Context, userID string) (string, error)
}

// MenuOption is one entry of the ticket type menu.
type MenuOption struct {
	Label       string
	Value       string
	Description string
}

// TicketSpec describes a ticket channel to create.
type TicketSpec struct {
	GuildID    string
	CategoryID string
	Name       string
	OwnerID    string
	// StaffRole is the name of the role that can see every ticket.
	StaffRole string
}

// Message is an archived chat message.
type Message struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
