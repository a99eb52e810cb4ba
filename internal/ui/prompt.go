package ui

import (
	"github.com/gdamore/tcell/v2"
)

// Confirm draws a yes/no box over the current view and blocks until the user
// answers. It is called from queued work, so the Run loop is parked
// meanwhile and key presses are read here directly.
func (t *TUI) Confirm(message string) bool {
	prev := t.app.Mode
	t.app.Mode = ModeConfirm
	t.app.Prompt = message
	defer func() {
		t.app.Mode = prev
		t.app.Prompt = ""
	}()

	for {
		t.drawPrompt(prev)
		t.app.Screen.Show()

		select {
		case <-t.ctx.Done():
			return false
		case ev := <-t.events:
			switch tev := ev.(type) {
			case *tcell.EventResize:
				t.app.Screen.Sync()
			case *tcell.EventKey:
				if answer, done := promptAnswer(tev); done {
					return answer
				}
			}
		}
	}
}

func promptAnswer(ev *tcell.EventKey) (answer, done bool) {
	switch ev.Key() {
	case tcell.KeyEnter:
		return true, true
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false, true
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'y', 'Y':
			return true, true
		case 'n', 'N':
			return false, true
		}
	}
	return false, false
}

func (t *TUI) drawPrompt(under AppMode) {
	t.app.Mode = under
	t.draw()
	t.app.Mode = ModeConfirm

	s := t.app.Screen
	w, h := s.Size()
	text := " " + t.app.Prompt + " [y/n] "
	boxW := min(len([]rune(text))+2, w)
	x := (w - boxW) / 2
	y := h / 2

	style := tcell.StyleDefault.Reverse(true)
	for dy := -1; dy <= 1; dy++ {
		for dx := 0; dx < boxW; dx++ {
			s.SetContent(x+dx, y+dy, ' ', nil, style)
		}
	}
	PutString(s, x+1, y, TruncateToWidth(text, boxW-2), style)
}
