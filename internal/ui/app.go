package ui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/rs/zerolog"

	"github.com/dastanaron/voicenotes/internal/models"
	"github.com/dastanaron/voicenotes/internal/speech"
	"github.com/dastanaron/voicenotes/internal/state"
)

const (
	ModeNormal = 1
	ModeSearch = 2
	ModeForm   = 3
	ModeModal  = 4
)

const timeLayout = "2006-01-02 15:04"

// folderItem is one row of the folder list
type folderItem struct {
	ID    *string // nil for "All Notes"
	Name  string
	Color string
}

// App represents the TUI application. Every store call runs on the tview
// event loop; speech callbacks are queued onto it.
type App struct {
	ctx            context.Context
	app            *tview.Application
	folderList     *tview.List
	list           *tview.List
	detail         *tview.TextView
	search         *tview.InputField
	status         *tview.TextView
	pages          *tview.Pages
	mode           uint8
	store          *state.Store
	adapter        *speech.Adapter
	permission     speech.Permission
	speechOpts     speech.Options
	log            zerolog.Logger
	notes          []models.Note // notes shown in the list
	current        *models.Note
	selectedFolder *string // nil = all notes
	focusOnFolders bool
	folderItems    []folderItem
	snap           state.Snapshot
	dictating      string // id of the note receiving dictation
	transcript     *speech.Transcript
}

// NewApp creates a new application instance
func NewApp(store *state.Store, adapter *speech.Adapter, permission speech.Permission, opts speech.Options, log zerolog.Logger) *App {
	return &App{
		app:        tview.NewApplication(),
		folderList: tview.NewList(),
		list:       tview.NewList(),
		detail:     tview.NewTextView().SetDynamicColors(true).SetWrap(true),
		search:     tview.NewInputField().SetLabel("Search: "),
		status:     tview.NewTextView().SetDynamicColors(true),
		pages:      tview.NewPages(),
		mode:       ModeNormal,
		store:      store,
		adapter:    adapter,
		permission: permission,
		speechOpts: opts,
		log:        log.With().Str("component", "ui").Logger(),
	}
}

// Run starts the application and blocks until it quits
func (a *App) Run(ctx context.Context) error {
	a.ctx = ctx
	a.list.SetBorder(true).SetTitle("Notes")
	a.detail.SetBorder(true).SetTitle("Details")
	a.folderList.SetBorder(true).SetTitle("Folders")

	cols := tview.NewFlex().
		AddItem(a.folderList, 0, 1, false).
		AddItem(a.list, 0, 2, true).
		AddItem(a.detail, 0, 2, false)

	main := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.search, 1, 0, false).
		AddItem(cols, 0, 1, true).
		AddItem(a.status, 1, 0, false)

	a.pages.AddPage("main", main, true, true)

	unsubscribe := a.store.Subscribe(a.onState)
	defer unsubscribe()

	a.adapter.SetOnResult(func(text string, isFinal bool, _ float64) {
		a.app.QueueUpdateDraw(func() { a.onSpeechResult(text, isFinal) })
	})
	a.adapter.SetOnError(func(message, code string) {
		a.app.QueueUpdateDraw(func() {
			a.endDictation()
			a.showError(fmt.Sprintf("Speech recognition error: %s", message))
		})
	})
	a.adapter.SetOnEnd(func() {
		a.app.QueueUpdateDraw(a.endDictation)
	})
	defer a.adapter.Destroy()

	if err := a.store.FetchFolders(ctx); err != nil {
		return err
	}
	if err := a.store.FetchNotes(ctx, nil); err != nil {
		return err
	}
	a.fillFolderList()
	a.fillList()

	a.search.SetChangedFunc(a.onSearchChange)
	a.search.SetDoneFunc(a.onSearchDone)
	a.list.SetChangedFunc(a.onSelect)

	a.app.SetRoot(a.pages, true)
	a.app.SetInputCapture(a.globalInput)
	a.updateStatus()

	a.focusOnFolders = false
	a.app.SetFocus(a.list)
	return a.app.Run()
}

// onState is called by the store after every change
func (a *App) onState(s state.Snapshot) {
	prev := a.snap
	a.snap = s
	if s.Notes.Error != "" && prev.Notes.Error == "" {
		a.showError(s.Notes.Error)
	}
	if s.Folders.Error != "" && prev.Folders.Error == "" {
		a.showError(s.Folders.Error)
	}
	a.updateStatus()
}

func (a *App) updateStatus() {
	countText := fmt.Sprintf(" [::b]%d[::r] notes", len(a.notes))

	statusText := "[::b]Tab[::r] switch  [::b]/[::r] search  [::b]a[::r] add  [::b]e[::r] edit  [::b]d[::r] del  [::b]v[::r] dictate  [::b]q[::r] quit" + countText
	if a.focusOnFolders {
		statusText = "[::b]Tab[::r] switch  [::b]Enter[::r] select  [::b]a[::r] add folder  [::b]d[::r] del folder  [::b]q[::r] quit" + countText
	}
	if a.snap.Notes.Loading || a.snap.Folders.Loading {
		statusText = "[yellow]Loading...[-] " + statusText
	}
	if a.dictating != "" {
		partial := ""
		if a.transcript != nil {
			partial = a.transcript.Partial()
		}
		statusText = fmt.Sprintf("[red]● Listening[-] %s  [::b]v[::r] stop", tview.Escape(partial))
	}
	a.status.SetText(statusText)
}

// reloadNotes fetches the notes of the selected folder, or the search
// results when a query is typed
func (a *App) reloadNotes() {
	query := strings.TrimSpace(a.search.GetText())
	if query != "" {
		a.store.SearchNotes(a.ctx, query)
	} else {
		a.store.FetchNotes(a.ctx, a.selectedFolder)
	}
	a.fillList()
}

func (a *App) reloadFolders() {
	a.store.FetchFolders(a.ctx)
	a.fillFolderList()
}

func (a *App) fillList() {
	selectedID := ""
	if a.current != nil {
		selectedID = a.current.ID
	}

	cached := a.store.Snapshot().Notes.Notes
	notes := make([]models.Note, 0, len(cached))
	for _, n := range cached {
		// search results span all folders
		if a.selectedFolder != nil && !n.InFolder(*a.selectedFolder) {
			continue
		}
		notes = append(notes, n)
	}
	a.notes = notes

	a.list.Clear()
	selected := 0
	for i := range a.notes {
		n := a.notes[i]
		if n.ID == selectedID {
			selected = i
		}
		secondary := n.UpdatedAt.Local().Format(timeLayout)
		if preview := firstLine(n.Content); preview != "" {
			secondary += "  " + preview
		}
		a.list.AddItem(tview.Escape(n.Title), tview.Escape(secondary), 0, nil)
	}

	if len(a.notes) > 0 {
		a.list.SetCurrentItem(selected)
		a.current = &a.notes[selected]
	} else {
		a.current = nil
	}

	title := "Notes"
	if a.selectedFolder != nil {
		if f := a.folderByID(*a.selectedFolder); f != nil {
			title = fmt.Sprintf("Notes (%s)", f.Name)
		}
	}
	a.list.SetTitle(title)
	a.showDetails()
	a.updateStatus()
}

func (a *App) onFolderSelect(item folderItem) {
	if item.ID != nil {
		id := *item.ID
		a.selectedFolder = &id
		a.folderList.SetTitle(fmt.Sprintf("Folders (%s)", item.Name))
	} else {
		a.selectedFolder = nil
		a.folderList.SetTitle("Folders (All)")
	}

	a.reloadNotes()

	a.focusOnFolders = false
	a.app.SetFocus(a.list)
	a.updateStatus()
}

func (a *App) fillFolderList() {
	folders := a.store.Snapshot().Folders.Folders

	a.folderList.Clear()
	a.folderItems = []folderItem{{ID: nil, Name: "All Notes"}}
	a.folderList.AddItem("All Notes", "", 0, nil)

	for _, f := range folders {
		id := f.ID
		a.folderItems = append(a.folderItems, folderItem{ID: &id, Name: f.Name, Color: f.Color})
		a.folderList.AddItem(fmt.Sprintf("[%s]●[-] %s", swatchColor(f.Color), tview.Escape(f.Name)), "", 0, nil)
	}

	if a.selectedFolder != nil && a.folderByID(*a.selectedFolder) == nil {
		// the selected folder was deleted
		a.selectedFolder = nil
	}
	if a.selectedFolder == nil {
		a.folderList.SetTitle("Folders (All)")
	}
}

func (a *App) folderByID(id string) *models.Folder {
	folders := a.store.Snapshot().Folders.Folders
	for i := range folders {
		if folders[i].ID == id {
			return &folders[i]
		}
	}
	return nil
}

func (a *App) showDetails() {
	n := a.current
	if n == nil {
		a.detail.SetText("")
		return
	}

	folderName := "Unfiled"
	if n.FolderID != nil {
		folderName = *n.FolderID
		if f := a.folderByID(*n.FolderID); f != nil {
			folderName = f.Name
		}
	}

	content := tview.Escape(n.Content)
	if a.dictating == n.ID && a.transcript != nil && a.transcript.Partial() != "" {
		content = models.AppendSentence(content, "[gray]"+tview.Escape(a.transcript.Partial())+"[-]")
	}

	a.detail.SetText(fmt.Sprintf(
		"[::b]Title:[::-]\n%s\n\n[::b]Folder:[::-]\n%s\n\n[::b]Created:[::-] %s\n[::b]Updated:[::-] %s\n\n[::b]Content:[::-]\n%s",
		tview.Escape(n.Title), tview.Escape(folderName),
		n.CreatedAt.Local().Format(timeLayout), n.UpdatedAt.Local().Format(timeLayout),
		content))
}

func (a *App) setMode(m uint8) {
	a.mode = m
	switch m {
	case ModeSearch:
		a.app.SetFocus(a.search)
	case ModeNormal:
		if a.focusOnFolders {
			a.app.SetFocus(a.folderList)
		} else {
			a.app.SetFocus(a.list)
		}
	}
}

// toggleFocus switches between the folder list and the note list
func (a *App) toggleFocus() {
	a.focusOnFolders = !a.focusOnFolders
	if a.focusOnFolders {
		a.app.SetFocus(a.folderList)
	} else {
		a.app.SetFocus(a.list)
	}
	a.updateStatus()
}

func (a *App) onSearchChange(text string) {
	a.reloadNotes()
}

func (a *App) onSearchDone(key tcell.Key) {
	switch key {
	case tcell.KeyEnter:
		a.setMode(ModeNormal)
	case tcell.KeyEscape:
		a.search.SetText("")
		a.reloadNotes()
		a.setMode(ModeNormal)
	}
}

func (a *App) onSelect(index int, mainText, secondaryText string, shortcut rune) {
	if index >= 0 && index < len(a.notes) {
		a.current = &a.notes[index]
		a.showDetails()
	}
}

func (a *App) globalInput(event *tcell.EventKey) *tcell.EventKey {
	// modals handle their own keys
	if a.pages.HasPage("confirm") || a.pages.HasPage("error") {
		return event
	}

	switch a.mode {
	case ModeNormal:
		if event.Key() == tcell.KeyTab {
			a.toggleFocus()
			return nil
		}

		if a.focusOnFolders {
			switch event.Key() {
			case tcell.KeyEnter:
				currentIndex := a.folderList.GetCurrentItem()
				if currentIndex >= 0 && currentIndex < len(a.folderItems) {
					a.onFolderSelect(a.folderItems[currentIndex])
				}
				return nil
			case tcell.KeyRune:
				switch event.Rune() {
				case 'q':
					a.app.Stop()
					return nil
				case '/':
					a.setMode(ModeSearch)
					return nil
				case 'a':
					a.showFolderForm()
					return nil
				case 'd':
					currentIndex := a.folderList.GetCurrentItem()
					if currentIndex > 0 && currentIndex < len(a.folderItems) {
						item := a.folderItems[currentIndex]
						confirmMessage := fmt.Sprintf("Delete folder '%s'? Its notes move to %s.", item.Name, models.DefaultFolderName)
						a.showConfirm(confirmMessage, func() {
							if err := a.store.DeleteFolder(a.ctx, *item.ID); err != nil {
								return
							}
							a.reloadFolders()
							a.fillList()
						})
					}
					return nil
				}
			}
			return event
		}

		switch event.Key() {
		case tcell.KeyEnter:
			if a.current != nil {
				n := *a.current
				a.showForm(&n, true)
			}
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case '/':
				a.setMode(ModeSearch)
				return nil
			case 'a':
				n := models.Note{}
				if a.selectedFolder != nil {
					n.FolderID = models.StringPtr(*a.selectedFolder)
				}
				a.showForm(&n, false)
				return nil
			case 'e':
				if a.current != nil {
					n := *a.current
					a.showForm(&n, true)
				}
				return nil
			case 'd':
				if a.current != nil {
					id := a.current.ID
					confirmMessage := fmt.Sprintf("Are you sure you want to delete note '%s'?", a.current.Title)
					a.showConfirm(confirmMessage, func() {
						if a.dictating == id {
							a.adapter.CancelListening()
							a.endDictation()
						}
						if err := a.store.DeleteNote(a.ctx, id); err != nil {
							return
						}
						a.fillList()
					})
				}
				return nil
			case 'v':
				a.toggleDictation()
				return nil
			case 'q':
				a.app.Stop()
				return nil
			}
		}
	case ModeForm:
		if event.Key() == tcell.KeyEscape {
			a.pages.RemovePage("form")
			a.pages.RemovePage("folderForm")
			a.setMode(ModeNormal)
		}
	}
	return event
}

func (a *App) toggleDictation() {
	if a.dictating != "" {
		a.adapter.StopListening()
		a.endDictation()
		return
	}
	if a.current == nil {
		a.showError("Select a note to dictate into")
		return
	}
	if err := speech.Require(a.ctx, a.permission); err != nil {
		a.showError(fmt.Sprintf("Cannot start dictation: %v", err))
		return
	}
	if !a.adapter.IsAvailable(a.ctx) {
		a.showError("Speech recognition is not available on this device")
		return
	}

	a.dictating = a.current.ID
	a.transcript = speech.NewTranscript(a.current.Content)
	if !a.adapter.StartListening(a.ctx, a.speechOpts) {
		// the reason arrives through the error callback
		a.dictating = ""
		a.transcript = nil
	}
	a.updateStatus()
}

func (a *App) onSpeechResult(text string, isFinal bool) {
	if a.dictating == "" || a.transcript == nil {
		return
	}
	if a.transcript.Apply(text, isFinal) {
		if _, err := a.store.AppendToNote(a.ctx, a.dictating, text); err != nil {
			a.adapter.CancelListening()
			a.endDictation()
			return
		}
		a.fillList()
	}
	a.showDetails()
	a.updateStatus()
}

func (a *App) endDictation() {
	if a.transcript != nil {
		a.transcript.Reset()
	}
	a.dictating = ""
	a.transcript = nil
	a.showDetails()
	a.updateStatus()
}

func (a *App) showForm(n *models.Note, edit bool) {
	draft := models.Draft{Title: n.Title, Content: n.Content, FolderID: n.FolderID}
	if edit {
		draft.ID = n.ID
	}

	folders := a.store.Snapshot().Folders.Folders
	folderOptions := []string{"None"}
	folderIDs := []*string{nil}
	for i := range folders {
		folderOptions = append(folderOptions, folders[i].Name)
		folderIDs = append(folderIDs, models.StringPtr(folders[i].ID))
	}

	selectedIndex := 0
	if draft.FolderID != nil {
		for i, id := range folderIDs {
			if id != nil && *id == *draft.FolderID {
				selectedIndex = i
				break
			}
		}
	}

	form := tview.NewForm()
	form.AddInputField("Title", draft.Title, 60, nil, func(t string) { draft.Title = t })
	form.AddTextArea("Content", draft.Content, 60, 10, 0, func(t string) { draft.Content = t })
	form.AddDropDown("Folder", folderOptions, selectedIndex, func(option string, index int) {
		if index >= 0 && index < len(folderIDs) {
			draft.FolderID = folderIDs[index]
		} else {
			draft.FolderID = nil
		}
	})

	form.AddButton("Save", func() {
		saved, err := a.store.SaveNote(a.ctx, draft)
		if err != nil {
			// the store reports the error; keep the form open
			return
		}
		a.current = saved
		a.pages.RemovePage("form")
		a.setMode(ModeNormal)
		a.reloadNotes()
	})
	form.AddButton("Cancel", func() {
		a.pages.RemovePage("form")
		a.setMode(ModeNormal)
	})

	formTitle := "New Note"
	if edit {
		formTitle = "Edit Note"
	}
	form.SetBorder(true).SetTitle(formTitle)
	a.pages.AddPage("form", form, true, true)
	a.app.SetFocus(form)
	a.mode = ModeForm
}

func (a *App) showFolderForm() {
	name := ""
	color := models.DefaultFolderColor

	form := tview.NewForm()
	form.AddInputField("Name", name, 40, nil, func(t string) { name = t })
	form.AddInputField("Color", color, 10, nil, func(t string) { color = t })

	form.AddButton("Save", func() {
		if strings.TrimSpace(name) == "" {
			a.showError("Error: Folder name is required")
			return
		}
		color = strings.TrimSpace(color)
		if !validColor(color) {
			a.showError("Error: Color must be a hex value like #007AFF")
			return
		}
		if _, err := a.store.CreateFolder(a.ctx, name, color); err != nil {
			return
		}
		a.fillFolderList()
		a.pages.RemovePage("folderForm")
		a.setMode(ModeNormal)
	})
	form.AddButton("Cancel", func() {
		a.pages.RemovePage("folderForm")
		a.setMode(ModeNormal)
	})

	form.SetBorder(true).SetTitle("New Folder")
	a.pages.AddPage("folderForm", form, true, true)
	a.app.SetFocus(form)
	a.mode = ModeForm
}

// showError shows a modal. Closing it acknowledges pending store errors.
func (a *App) showError(message string) {
	if a.pages.HasPage("error") {
		return
	}
	modal := tview.NewModal().
		SetText(message).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			a.pages.RemovePage("error")
			a.store.ClearNotesError()
			a.store.ClearFoldersError()
			a.restoreFocus()
		})

	modal.SetBorder(true).SetTitle("Error")
	a.pages.AddPage("error", modal, true, true)
	a.mode = ModeModal
	a.app.SetFocus(modal)
}

func (a *App) showConfirm(message string, onConfirm func()) {
	modal := tview.NewModal().
		SetText(message).
		AddButtons([]string{"Cancel", "OK"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			a.pages.RemovePage("confirm")
			a.restoreFocus()
			if buttonIndex == 1 && onConfirm != nil {
				onConfirm()
			}
		})

	modal.SetBorder(true).SetTitle("Confirm")
	a.pages.AddPage("confirm", modal, true, true)
	a.mode = ModeModal
	a.app.SetFocus(modal)
}

func (a *App) restoreFocus() {
	if name, page := a.pages.GetFrontPage(); name == "form" || name == "folderForm" {
		a.mode = ModeForm
		a.app.SetFocus(page)
		return
	}
	a.mode = ModeNormal
	if a.focusOnFolders {
		a.app.SetFocus(a.folderList)
	} else {
		a.app.SetFocus(a.list)
	}
}

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

func validColor(c string) bool {
	return hexColor.MatchString(c)
}

// swatchColor returns c when it is safe inside a tview color tag
func swatchColor(c string) string {
	c = strings.TrimSpace(c)
	if !validColor(c) {
		return models.DefaultFolderColor
	}
	return c
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const limit = 40
	if r := []rune(s); len(r) > limit {
		s = string(r[:limit]) + "…"
	}
	return s
}
