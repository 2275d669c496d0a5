package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Down      key.Binding
	Up        key.Binding
	PageDown  key.Binding
	PageUp    key.Binding
	NextPage  key.Binding
	PrevPage  key.Binding
	Top       key.Binding
	Bottom    key.Binding
	ZoomIn    key.Binding
	ZoomOut   key.Binding
	Select    key.Binding
	Bookmark  key.Binding
	Quote     key.Binding
	Copy      key.Binding
	Bookmarks key.Binding
	Jump      key.Binding
	Cancel    key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Down:      key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		Up:        key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		PageDown:  key.NewBinding(key.WithKeys("pgdown", " ", "f"), key.WithHelp("space", "screen down")),
		PageUp:    key.NewBinding(key.WithKeys("pgup", "u"), key.WithHelp("u", "screen up")),
		NextPage:  key.NewBinding(key.WithKeys("n", "right"), key.WithHelp("n", "next page")),
		PrevPage:  key.NewBinding(key.WithKeys("p", "left"), key.WithHelp("p", "prev page")),
		Top:       key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "start")),
		Bottom:    key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "end")),
		ZoomIn:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "zoom in")),
		ZoomOut:   key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "zoom out")),
		Select:    key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "select lines")),
		Bookmark:  key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "bookmark")),
		Quote:     key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quote")),
		Copy:      key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy")),
		Bookmarks: key.NewBinding(key.WithKeys("B"), key.WithHelp("B", "bookmarks")),
		Jump:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "go to")),
		Cancel:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:      key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Down, k.Up, k.ZoomIn, k.ZoomOut, k.Select, k.Bookmark, k.Quote, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Down, k.Up, k.PageDown, k.PageUp},
		{k.NextPage, k.PrevPage, k.Top, k.Bottom},
		{k.ZoomIn, k.ZoomOut, k.Select, k.Copy},
		{k.Bookmark, k.Quote, k.Bookmarks, k.Jump},
		{k.Cancel, k.Help, k.Quit},
	}
}
