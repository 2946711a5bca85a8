package tickets

import "slices"

// Data is the persisted state of the tickets component.
type Data struct {
	// Menu is where the ticket type menu was posted, so it can be replaced.
	Menu       *MenuLocation `json:"msg_choose,omitempty"`
	Categories []Category    `json:"categories"`
}

// MenuLocation identifies the menu message.
type MenuLocation struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

// Category is a kind of ticket. Tickets of a category are created as
// channels under the Discord category ID.
type Category struct {
	Name string `json:"name"`
	// Prefix starts the name of every ticket channel: <prefix>-<username>.
	Prefix  string   `json:"prefix"`
	ID      string   `json:"id"`
	Desc    string   `json:"desc,omitempty"`
	Tickets []string `json:"tickets"`
	Hidden  bool     `json:"hidden"`
}

func emptyData() Data {
	return Data{Categories: []Category{}}
}

func (d *Data) find(name string) int {
	return slices.IndexFunc(d.Categories, func(c Category) bool { return c.Name == name })
}

func (d *Data) byDiscordCategory(id string) int {
	return slices.IndexFunc(d.Categories, func(c Category) bool { return c.ID == id })
}

// menuOptions lists the categories shown in the menu.
func (d *Data) menuOptions() []MenuOption {
	var opts []MenuOption
	for _, c := range d.Categories {
		if c.Hidden {
			continue
		}
		opts = append(opts, MenuOption{Label: c.Name, Value: c.Name, Description: c.Desc})
	}
	return opts
}

func (c Category) description() string {
	if c.Desc == "" {
		return "*No description*"
	}
	return c.Desc
}
