package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Joseda-hg/lazyagenda/internal/agenda"
	"github.com/Joseda-hg/lazyagenda/internal/model"
	goerrors "github.com/go-errors/errors"
	"github.com/jesseduffield/gocui"
)

const (
	viewHeader   = "header"
	viewFooter   = "footer"
	viewUsers    = "users"
	viewSubjects = "subjects"
	viewTasks    = "tasks"
	viewDetail   = "detail"
	viewForm     = "form"
	viewConfirm  = "confirm"
	viewHelp     = "help"
)

type UI struct {
	manager *agenda.Manager
	gui     *gocui.Gui
	ctx     context.Context
	now     func() time.Time

	session *agenda.Session

	users    []model.User
	subjects []model.Subject
	tasks    []model.Task
	history  []model.HistoryEntry

	selectedUser    int
	selectedSubject int
	selectedTask    int
	focus           string

	form       *formState
	formEditor *formEditor
	confirm    *confirmState
	helpActive bool
	status     string
}

// confirmState is a pending destructive action waiting for y/n.
type confirmState struct {
	message string
	action  func() error
}

type formEditor struct {
	ui *UI
}

func Run(ctx context.Context, manager *agenda.Manager) error {
	gui, err := gocui.NewGui(gocui.NewGuiOpts{OutputMode: gocui.OutputNormal})
	if err != nil {
		return err
	}
	defer gui.Close()

	ui := newUI(ctx, manager)
	ui.gui = gui
	gui.Mouse = true

	gui.SetManagerFunc(ui.layout)
	if err := ui.bindKeys(gui); err != nil {
		return err
	}
	if err := ui.resume(); err != nil {
		return err
	}

	if err := gui.MainLoop(); err != nil && err != gocui.ErrQuit {
		return err
	}

	return nil
}

func newUI(ctx context.Context, manager *agenda.Manager) *UI {
	ui := &UI{
		manager: manager,
		ctx:     ctx,
		now:     time.Now,
		focus:   viewUsers,
	}
	ui.formEditor = &formEditor{ui: ui}
	return ui
}

func (u *UI) bindKeys(gui *gocui.Gui) error {
	if err := gui.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, u.quit); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'q', gocui.ModNone, u.quitKey); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'r', gocui.ModNone, u.reload); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'a', gocui.ModNone, u.addItem); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'e', gocui.ModNone, u.editItem); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'd', gocui.ModNone, u.deleteItem); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'x', gocui.ModNone, u.toggleMark); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'L', gocui.ModNone, u.logout); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", '?', gocui.ModNone, u.toggleHelp); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", gocui.KeyTab, gocui.ModNone, u.switchFocus); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", '1', gocui.ModNone, u.focusUsers); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", '2', gocui.ModNone, u.focusSubjects); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", '3', gocui.ModNone, u.focusTasks); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", '4', gocui.ModNone, u.focusDetail); err != nil {
		return err
	}
	for _, name := range []string{viewUsers, viewSubjects, viewTasks} {
		if err := gui.SetKeybinding(name, gocui.KeyArrowDown, gocui.ModNone, u.moveDown); err != nil {
			return err
		}
		if err := gui.SetKeybinding(name, 'j', gocui.ModNone, u.moveDown); err != nil {
			return err
		}
		if err := gui.SetKeybinding(name, gocui.KeyArrowUp, gocui.ModNone, u.moveUp); err != nil {
			return err
		}
		if err := gui.SetKeybinding(name, 'k', gocui.ModNone, u.moveUp); err != nil {
			return err
		}
	}
	if err := gui.SetKeybinding(viewUsers, gocui.KeyEnter, gocui.ModNone, u.login); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewSubjects, gocui.KeyEnter, gocui.ModNone, u.openSubject); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTasks, gocui.KeyEnter, gocui.ModNone, u.focusDetail); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewDetail, gocui.KeyArrowDown, gocui.ModNone, u.scrollDown); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewDetail, 'j', gocui.ModNone, u.scrollDown); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewDetail, gocui.KeyArrowUp, gocui.ModNone, u.scrollUp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewDetail, 'k', gocui.ModNone, u.scrollUp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyEnter, gocui.ModNone, u.submitForm); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyCtrlJ, gocui.ModNone, u.submitForm); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyTab, gocui.ModNone, u.nextFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyBacktab, gocui.ModNone, u.prevFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyArrowDown, gocui.ModNone, u.nextFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyArrowUp, gocui.ModNone, u.prevFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyEsc, gocui.ModNone, u.cancelForm); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewConfirm, 'y', gocui.ModNone, u.confirmYes); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewConfirm, gocui.KeyEnter, gocui.ModNone, u.confirmYes); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewConfirm, 'n', gocui.ModNone, u.confirmNo); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewConfirm, gocui.KeyEsc, gocui.ModNone, u.confirmNo); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewHelp, gocui.KeyEsc, gocui.ModNone, u.closeHelp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewHelp, 'q', gocui.ModNone, u.closeHelp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewHelp, '?', gocui.ModNone, u.closeHelp); err != nil {
		return err
	}
	for _, name := range []string{viewUsers, viewSubjects, viewTasks} {
		if err := gui.SetViewClickBinding(&gocui.ViewMouseBinding{ViewName: name, Key: gocui.MouseLeft, Handler: func(opts gocui.ViewMouseBindingOpts) error {
			return u.onListClick(gui, name, opts)
		}}); err != nil {
			return err
		}
	}
	return u.bindMouseScroll(gui)
}

func (u *UI) layout(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	if maxX <= 0 || maxY <= 0 {
		return nil
	}

	headerView, err := gui.SetView(viewHeader, 0, 0, maxX-1, 0, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	headerView.Frame = false
	headerView.Wrap = true
	headerView.FgColor = gocui.ColorDefault
	u.renderHeader(headerView)

	footerY1 := max(maxY-2, 1)
	footerY0 := max(footerY1-2, 1)
	footerView, err := gui.SetView(viewFooter, 0, footerY0, maxX-1, footerY1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	footerView.Frame = false
	footerView.Wrap = true
	footerView.FgColor = gocui.ColorDefault | gocui.AttrDim
	footerView.BgColor = gocui.ColorDefault
	u.renderFooter(footerView)

	bodyTop := 1
	bodyBottom := footerY0 - 1
	if bodyBottom < bodyTop {
		return nil
	}

	layout := computeLayout(maxX, bodyBottom-bodyTop+1)
	leftX0 := 0
	leftX1 := leftX0 + layout.leftWidth - 1
	rightX0 := leftX1 + 1
	if rightX0 >= maxX {
		rightX0 = leftX1
	}
	rightX1 := maxX - 1

	usersY1 := bodyTop + layout.usersHeight - 1
	tasksY1 := bodyTop + layout.tasksHeight - 1

	usersView, err := gui.SetView(viewUsers, leftX0, bodyTop, leftX1, usersY1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		usersView.Title = "1 Users"
	}
	applyViewStyle(usersView, u.focus == viewUsers, true)
	u.renderUsers(usersView)

	subjectsView, err := gui.SetView(viewSubjects, leftX0, usersY1+1, leftX1, bodyBottom, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		subjectsView.Title = "2 Subjects"
	}
	applyViewStyle(subjectsView, u.focus == viewSubjects, true)
	u.renderSubjects(subjectsView)

	tasksView, err := gui.SetView(viewTasks, rightX0, bodyTop, rightX1, tasksY1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		tasksView.Title = "3 Tasks"
	}
	applyViewStyle(tasksView, u.focus == viewTasks, true)
	u.renderTasks(tasksView)

	detailView, err := gui.SetView(viewDetail, rightX0, tasksY1+1, rightX1, bodyBottom, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		detailView.Title = "4 Detail"
		detailView.Wrap = true
	}
	applyViewStyle(detailView, u.focus == viewDetail, false)
	u.renderDetail(detailView)

	_, _ = gui.SetViewOnTop(viewHeader)
	_, _ = gui.SetViewOnTop(viewFooter)

	if u.form != nil {
		if err := u.showForm(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewForm)
	}

	if u.confirm != nil {
		if err := u.showConfirm(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewConfirm)
	}

	if u.helpActive {
		if err := u.showHelp(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewHelp)
	}

	if gui.CurrentView() == nil {
		_, _ = gui.SetCurrentView(u.focus)
	}

	gui.Cursor = u.form != nil

	return nil
}

type layout struct {
	leftWidth   int
	usersHeight int
	tasksHeight int
}

func computeLayout(width, height int) layout {
	safeWidth := max(width-2, 20)
	safeHeight := max(height, 8)

	leftWidth := safeWidth / 3
	if leftWidth < 26 {
		leftWidth = 26
	}
	if leftWidth > safeWidth-18 {
		leftWidth = safeWidth / 2
	}

	usersHeight := max(int(float64(safeHeight)*0.35), 4)
	if safeHeight-usersHeight < 4 {
		usersHeight = max(safeHeight-4, 3)
	}

	tasksHeight := max(int(float64(safeHeight)*0.55), 4)
	if safeHeight-tasksHeight < 4 {
		tasksHeight = max(safeHeight-4, 3)
	}

	return layout{
		leftWidth:   leftWidth,
		usersHeight: usersHeight,
		tasksHeight: tasksHeight,
	}
}

// resume restores the session of the last user that logged in, if any.
func (u *UI) resume() error {
	session, ok, err := u.manager.Resume(u.ctx)
	if err != nil {
		return err
	}
	if ok {
		u.session = &session
		u.focus = viewSubjects
	}
	return u.load()
}

func (u *UI) load() error {
	users, err := u.manager.ListUsers(u.ctx)
	if err != nil {
		return err
	}
	u.users = users
	u.selectedUser = clampIndex(u.selectedUser, len(u.users))
	return u.loadSubjects()
}

func (u *UI) loadSubjects() error {
	u.subjects = nil
	if u.session != nil {
		subjects, err := u.manager.ListSubjectsForUser(u.ctx, u.session.User.ID)
		if err != nil {
			return err
		}
		u.subjects = subjects
	}
	u.selectedSubject = clampIndex(u.selectedSubject, len(u.subjects))
	return u.loadTasks()
}

func (u *UI) loadTasks() error {
	u.tasks = nil
	if subject := u.currentSubject(); subject != nil {
		tasks, err := u.manager.ListTasksForSubject(u.ctx, subject.ID)
		if err != nil {
			return err
		}
		u.tasks = tasks
	}
	u.selectedTask = clampIndex(u.selectedTask, len(u.tasks))
	return u.loadHistory()
}

func (u *UI) loadHistory() error {
	u.history = nil
	task := u.currentTask()
	if task == nil {
		return nil
	}

	history, err := u.manager.TaskHistory(u.ctx, task.ID)
	if err != nil {
		return err
	}
	u.history = history
	return nil
}

func (u *UI) renderHeader(view *gocui.View) {
	view.Clear()
	if u.session == nil {
		fmt.Fprint(view, "Not logged in | pick a user and press enter, or press a to create one")
		return
	}

	subject := "none"
	if selected := u.currentSubject(); selected != nil {
		subject = selected.Name
	}
	fmt.Fprintf(view, "User: %s | Subject: %s | Since: %s", formatUserSummary(u.session.User), subject, u.session.StartedAt.Format("15:04"))
}

func (u *UI) renderFooter(view *gocui.View) {
	view.Clear()
	view.SetOrigin(0, 0)
	view.SetCursor(0, 0)

	fmt.Fprintln(view, "a add | e edit | d delete | x mark/unmark | enter login/open | L logout")
	fmt.Fprintln(view, "tab cycle | 1-4 panes | j/k move | r reload | ? help | q quit")
	if u.status != "" {
		fmt.Fprint(view, ansiRed+u.status+ansiReset)
	}
}

func (u *UI) renderUsers(view *gocui.View) {
	view.Clear()
	focused := u.focus == viewUsers
	for index, user := range u.users {
		marker := " "
		if u.session != nil && u.session.User.ID == user.ID {
			marker = "@"
		}
		fmt.Fprintf(view, "%s %s %s\n", selectionPrefix(index == u.selectedUser, focused), marker, formatUserSummary(user))
	}
	if focused && len(u.users) > 0 {
		view.SetCursor(0, u.selectedUser)
	}
}

func (u *UI) renderSubjects(view *gocui.View) {
	view.Clear()
	if u.session == nil {
		fmt.Fprint(view, "Log in to see subjects")
		return
	}
	focused := u.focus == viewSubjects
	for index, subject := range u.subjects {
		fmt.Fprintf(view, "%s %s\n", selectionPrefix(index == u.selectedSubject, focused), formatSubjectSummary(subject))
	}
	if focused && len(u.subjects) > 0 {
		view.SetCursor(0, u.selectedSubject)
	}
}

func (u *UI) renderTasks(view *gocui.View) {
	view.Clear()
	if u.currentSubject() == nil {
		fmt.Fprint(view, "No subject selected")
		return
	}
	focused := u.focus == viewTasks
	for index, task := range u.tasks {
		fmt.Fprintf(view, "%s %s\n", selectionPrefix(index == u.selectedTask, focused), formatTaskSummary(task))
	}
	if focused && len(u.tasks) > 0 {
		view.SetCursor(0, u.selectedTask)
	}
}

func (u *UI) renderDetail(view *gocui.View) {
	view.Clear()
	task := u.currentTask()
	if task == nil {
		fmt.Fprint(view, "No task selected")
		return
	}
	fmt.Fprint(view, formatTaskDetail(*task, u.subjectName(task.SubjectID), u.history))
}

func selectionPrefix(selected, focused bool) string {
	if !selected {
		return " "
	}
	if focused {
		return ">"
	}
	return "*"
}

func (u *UI) onListClick(gui *gocui.Gui, viewName string, opts gocui.ViewMouseBindingOpts) error {
	if u.inputActive() {
		return nil
	}
	view, err := gui.View(viewName)
	if err != nil {
		return nil
	}

	_, y0, _, _ := view.Dimensions()
	_, oy := view.Origin()
	row := max(opts.Y-y0-1+oy, 0)

	switch viewName {
	case viewUsers:
		u.selectedUser = clampIndex(row, len(u.users))
	case viewSubjects:
		u.selectedSubject = clampIndex(row, len(u.subjects))
		if err := u.loadTasks(); err != nil {
			return err
		}
	case viewTasks:
		u.selectedTask = clampIndex(row, len(u.tasks))
		if err := u.loadHistory(); err != nil {
			return err
		}
	default:
		return nil
	}
	return u.setFocus(gui, viewName)
}

func (u *UI) bindMouseScroll(gui *gocui.Gui) error {
	for _, name := range []string{viewUsers, viewSubjects, viewTasks, viewDetail} {
		if err := gui.SetKeybinding(name, gocui.MouseWheelUp, gocui.ModNone, u.scrollUp); err != nil {
			return err
		}
		if err := gui.SetKeybinding(name, gocui.MouseWheelDown, gocui.ModNone, u.scrollDown); err != nil {
			return err
		}
	}
	return nil
}

func (u *UI) scrollUp(gui *gocui.Gui, view *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if view == nil && gui != nil {
		view = gui.CurrentView()
	}
	if view == nil {
		return nil
	}
	view.ScrollUp(1)
	return nil
}

func (u *UI) scrollDown(gui *gocui.Gui, view *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if view == nil && gui != nil {
		view = gui.CurrentView()
	}
	if view == nil {
		return nil
	}
	view.ScrollDown(1)
	return nil
}

func (u *UI) currentUser() *model.User {
	if u.selectedUser >= 0 && u.selectedUser < len(u.users) {
		return &u.users[u.selectedUser]
	}
	return nil
}

func (u *UI) currentSubject() *model.Subject {
	if u.selectedSubject >= 0 && u.selectedSubject < len(u.subjects) {
		return &u.subjects[u.selectedSubject]
	}
	return nil
}

func (u *UI) currentTask() *model.Task {
	if u.selectedTask >= 0 && u.selectedTask < len(u.tasks) {
		return &u.tasks[u.selectedTask]
	}
	return nil
}

func (u *UI) subjectName(id int64) string {
	for _, subject := range u.subjects {
		if subject.ID == id {
			return subject.Name
		}
	}
	return fmt.Sprintf("#%d", id)
}

func (u *UI) switchFocus(gui *gocui.Gui, _ *gocui.View) error {
	switch u.focus {
	case viewUsers:
		return u.setFocus(gui, viewSubjects)
	case viewSubjects:
		return u.setFocus(gui, viewTasks)
	case viewTasks:
		return u.setFocus(gui, viewDetail)
	default:
		return u.setFocus(gui, viewUsers)
	}
}

func (u *UI) focusUsers(gui *gocui.Gui, _ *gocui.View) error {
	return u.setFocus(gui, viewUsers)
}

func (u *UI) focusSubjects(gui *gocui.Gui, _ *gocui.View) error {
	return u.setFocus(gui, viewSubjects)
}

func (u *UI) focusTasks(gui *gocui.Gui, _ *gocui.View) error {
	return u.setFocus(gui, viewTasks)
}

func (u *UI) focusDetail(gui *gocui.Gui, _ *gocui.View) error {
	return u.setFocus(gui, viewDetail)
}

func (u *UI) setFocus(gui *gocui.Gui, name string) error {
	if u.inputActive() {
		return nil
	}
	u.focus = name
	u.setCurrentView(gui, name)
	return nil
}

func (u *UI) moveDown(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	switch u.focus {
	case viewUsers:
		if u.selectedUser < len(u.users)-1 {
			u.selectedUser++
		}
	case viewSubjects:
		if u.selectedSubject < len(u.subjects)-1 {
			u.selectedSubject++
			u.selectedTask = 0
			return u.loadTasks()
		}
	case viewTasks:
		if u.selectedTask < len(u.tasks)-1 {
			u.selectedTask++
			return u.loadHistory()
		}
	}
	return nil
}

func (u *UI) moveUp(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	switch u.focus {
	case viewUsers:
		if u.selectedUser > 0 {
			u.selectedUser--
		}
	case viewSubjects:
		if u.selectedSubject > 0 {
			u.selectedSubject--
			u.selectedTask = 0
			return u.loadTasks()
		}
	case viewTasks:
		if u.selectedTask > 0 {
			u.selectedTask--
			return u.loadHistory()
		}
	}
	return nil
}

func (u *UI) reload(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.status = ""
	return u.load()
}

func (u *UI) login(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() || u.focus != viewUsers {
		return nil
	}
	user := u.currentUser()
	if user == nil {
		return nil
	}

	session, err := u.manager.Login(u.ctx, user.ID)
	if err != nil {
		u.status = err.Error()
		return nil
	}
	u.session = &session
	u.selectedSubject = 0
	u.selectedTask = 0
	u.status = ""
	if err := u.loadSubjects(); err != nil {
		return err
	}
	return u.setFocus(gui, viewSubjects)
}

func (u *UI) logout(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() || u.session == nil {
		return nil
	}
	if err := u.manager.Logout(u.ctx, *u.session); err != nil {
		u.status = err.Error()
		return nil
	}
	u.session = nil
	u.status = ""
	if err := u.loadSubjects(); err != nil {
		return err
	}
	return u.setFocus(gui, viewUsers)
}

func (u *UI) openSubject(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() || u.currentSubject() == nil {
		return nil
	}
	u.selectedTask = 0
	if err := u.loadTasks(); err != nil {
		return err
	}
	return u.setFocus(gui, viewTasks)
}

func (u *UI) addItem(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	switch u.focus {
	case viewUsers:
		u.form = newUserForm()
	case viewSubjects:
		if u.session == nil {
			u.status = "log in first: select a user and press enter"
			return nil
		}
		u.form = newSubjectForm(nil)
	default:
		subject := u.currentSubject()
		if subject == nil {
			u.status = "select a subject first"
			return nil
		}
		u.form = newTaskForm(nil, *subject, u.now())
	}
	return nil
}

func (u *UI) editItem(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	switch u.focus {
	case viewSubjects:
		if subject := u.currentSubject(); subject != nil {
			u.form = newSubjectForm(subject)
		}
	case viewTasks, viewDetail:
		task := u.currentTask()
		subject := u.currentSubject()
		if task != nil && subject != nil {
			u.form = newTaskForm(task, *subject, u.now())
		}
	}
	return nil
}

func (u *UI) deleteItem(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	switch u.focus {
	case viewSubjects:
		subject := u.currentSubject()
		if subject == nil {
			return nil
		}
		id := subject.ID
		u.confirm = &confirmState{
			message: fmt.Sprintf("Delete subject %q and its %d task(s)?", subject.Name, len(u.tasks)),
			action: func() error {
				return u.manager.DeleteSubject(u.ctx, id)
			},
		}
	case viewTasks, viewDetail:
		task := u.currentTask()
		if task == nil {
			return nil
		}
		id := task.ID
		u.confirm = &confirmState{
			message: fmt.Sprintf("Delete task %q?", task.Title),
			action: func() error {
				return u.manager.DeleteTask(u.ctx, id)
			},
		}
	}
	return nil
}

func (u *UI) toggleMark(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() || (u.focus != viewTasks && u.focus != viewDetail) {
		return nil
	}
	task := u.currentTask()
	if task == nil {
		return nil
	}

	var err error
	if task.Completed() {
		_, err = u.manager.UnmarkTask(u.ctx, task.ID)
	} else {
		_, err = u.manager.MarkTask(u.ctx, task.ID)
	}
	if err != nil {
		u.status = err.Error()
		return nil
	}

	id := task.ID
	u.status = ""
	if err := u.loadTasks(); err != nil {
		return err
	}
	u.selectTaskByID(id)
	return u.loadHistory()
}

func (u *UI) confirmYes(gui *gocui.Gui, _ *gocui.View) error {
	if u.confirm == nil {
		return nil
	}
	action := u.confirm.action
	u.confirm = nil
	u.closeView(gui, viewConfirm)

	if err := action(); err != nil {
		u.status = err.Error()
		return nil
	}
	u.status = ""
	return u.load()
}

func (u *UI) confirmNo(gui *gocui.Gui, _ *gocui.View) error {
	u.confirm = nil
	u.closeView(gui, viewConfirm)
	return nil
}

func (u *UI) showConfirm(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := max(40, len(u.confirm.message)+4)
	height := 3
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	view, err := gui.SetView(viewConfirm, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Title = "Confirm (y/n)"
		view.Wrap = true
		view.FrameColor = gocui.ColorRed
		view.TitleColor = gocui.ColorRed
	}
	view.Clear()
	fmt.Fprint(view, u.confirm.message)
	_, _ = gui.SetCurrentView(viewConfirm)
	return nil
}

func (u *UI) showForm(gui *gocui.Gui) error {
	if u.form == nil {
		return nil
	}

	maxX, maxY := gui.Size()
	width := max(60, maxX/2)
	height := min(len(u.form.fields)+3, max(5, maxY-2))
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	view, err := gui.SetView(viewForm, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Wrap = true
	}
	view.Title = u.form.title()
	view.Editable = true
	view.KeybindOnEdit = true
	view.Editor = u.formEditor
	u.renderForm(view)
	_, _ = gui.SetCurrentView(viewForm)
	return nil
}

func (u *UI) submitForm(gui *gocui.Gui, _ *gocui.View) error {
	if u.form == nil {
		return nil
	}
	if err := u.saveForm(); err != nil {
		u.status = err.Error()
		return nil
	}

	u.form = nil
	u.status = ""
	u.closeView(gui, viewForm)
	return nil
}

// saveForm sends the open form to the manager and reloads the panes so the
// saved entity is selected.
func (u *UI) saveForm() error {
	form := u.form
	switch form.kind {
	case formUser:
		user, err := u.manager.CreateUser(u.ctx, form.value(userFieldName), form.value(userFieldEmail))
		if err != nil {
			return err
		}
		if err := u.load(); err != nil {
			return err
		}
		u.selectUserByID(user.ID)
		return nil

	case formSubject:
		var subject model.Subject
		var err error
		if form.id == 0 {
			if u.session == nil {
				return fmt.Errorf("log in before adding subjects")
			}
			subject, err = u.manager.CreateSubject(u.ctx, u.session.User.ID, form.value(subjectFieldName), form.value(subjectFieldColor))
		} else {
			subject, err = u.manager.EditSubject(u.ctx, form.id, form.value(subjectFieldName), form.value(subjectFieldColor))
		}
		if err != nil {
			return err
		}
		if err := u.loadSubjects(); err != nil {
			return err
		}
		u.selectSubjectByID(subject.ID)
		return u.loadTasks()

	default:
		input, err := parseTaskForm(form)
		if err != nil {
			return err
		}
		var task model.Task
		if form.id == 0 {
			task, err = u.manager.CreateTask(u.ctx, input)
		} else {
			task, err = u.manager.EditTask(u.ctx, form.id, input)
		}
		if err != nil {
			return err
		}
		u.selectSubjectByID(task.SubjectID)
		if err := u.loadTasks(); err != nil {
			return err
		}
		u.selectTaskByID(task.ID)
		return u.loadHistory()
	}
}

func (u *UI) cancelForm(gui *gocui.Gui, _ *gocui.View) error {
	u.form = nil
	u.status = ""
	u.closeView(gui, viewForm)
	return nil
}

func (u *UI) nextFormField(_ *gocui.Gui, view *gocui.View) error {
	if u.form == nil {
		return nil
	}
	if u.form.index < len(u.form.fields)-1 {
		u.form.index++
	}
	u.renderForm(view)
	return nil
}

func (u *UI) prevFormField(_ *gocui.Gui, view *gocui.View) error {
	if u.form == nil {
		return nil
	}
	if u.form.index > 0 {
		u.form.index--
	}
	u.renderForm(view)
	return nil
}

func (u *UI) renderForm(view *gocui.View) {
	if u.form == nil || view == nil {
		return
	}
	view.Clear()
	for index, field := range u.form.fields {
		prefix := "  "
		if index == u.form.index {
			prefix = "> "
		}
		value := field.Value
		if field.kind == fieldPriority {
			if priority, err := model.ParsePriority(value); err == nil {
				value = colorPriority(priority)
			}
		}
		fmt.Fprintf(view, "%s%s: %s\n", prefix, field.Label, value)
	}
	current := u.form.fields[u.form.index]
	cursorX := len([]rune(current.Label)) + len([]rune(current.Value)) + 4
	view.SetCursor(cursorX, u.form.index)
}

func (e *formEditor) Edit(view *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) bool {
	ui := e.ui
	if ui == nil || ui.form == nil || view == nil {
		return false
	}
	ui.editField(key, ch, mod)
	ui.renderForm(view)
	return true
}

// editField applies one keypress to the focused form field.
func (u *UI) editField(key gocui.Key, ch rune, mod gocui.Modifier) {
	field := &u.form.fields[u.form.index]

	switch field.kind {
	case fieldPriority:
		switch key {
		case gocui.KeyArrowRight, gocui.KeySpace:
			field.Value = cyclePriority(field.Value, 1)
		case gocui.KeyArrowLeft:
			field.Value = cyclePriority(field.Value, -1)
		}
		return
	case fieldSubject:
		switch key {
		case gocui.KeyArrowRight, gocui.KeySpace:
			cycleSubject(u.form, u.subjects, 1)
		case gocui.KeyArrowLeft:
			cycleSubject(u.form, u.subjects, -1)
		}
		return
	}

	switch key {
	case gocui.KeyBackspace, gocui.KeyBackspace2:
		runes := []rune(field.Value)
		if len(runes) > 0 {
			field.Value = string(runes[:len(runes)-1])
		}
	case gocui.KeySpace:
		field.Value += " "
	case gocui.KeyCtrlU:
		field.Value = ""
	}

	if ch != 0 && ch != '\n' && ch != '\r' && mod == 0 {
		field.Value += string(ch)
	}
}

func (u *UI) selectUserByID(id int64) {
	for index, user := range u.users {
		if user.ID == id {
			u.selectedUser = index
			return
		}
	}
}

func (u *UI) selectSubjectByID(id int64) {
	for index, subject := range u.subjects {
		if subject.ID == id {
			u.selectedSubject = index
			return
		}
	}
}

func (u *UI) selectTaskByID(id int64) {
	for index, task := range u.tasks {
		if task.ID == id {
			u.selectedTask = index
			return
		}
	}
}

func (u *UI) toggleHelp(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() && !u.helpActive {
		return nil
	}
	u.helpActive = !u.helpActive
	return nil
}

func (u *UI) closeHelp(gui *gocui.Gui, _ *gocui.View) error {
	u.helpActive = false
	u.closeView(gui, viewHelp)
	return nil
}

func (u *UI) showHelp(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := max(60, maxX/2)
	height := 20
	x0 := (maxX - width) / 2
	y0 := max((maxY-height)/2, 0)

	view, err := gui.SetView(viewHelp, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Title = "Help"
		view.Wrap = true
	}
	view.Clear()
	fmt.Fprint(view, helpText())
	_, _ = gui.SetCurrentView(viewHelp)
	return nil
}

func (u *UI) setCurrentView(gui *gocui.Gui, name string) {
	if gui == nil {
		return
	}
	_, _ = gui.SetCurrentView(name)
}

func (u *UI) closeView(gui *gocui.Gui, name string) {
	if gui == nil {
		return
	}
	_ = gui.DeleteView(name)
	_, _ = gui.SetCurrentView(u.focus)
}

func (u *UI) inputActive() bool {
	return u.form != nil || u.confirm != nil || u.helpActive
}

func (u *UI) quitKey(gui *gocui.Gui, view *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	return u.quit(gui, view)
}

func (u *UI) quit(_ *gocui.Gui, _ *gocui.View) error {
	return gocui.ErrQuit
}

func helpText() string {
	return strings.Join([]string{
		"Navigation:",
		"  Tab cycle panes (users/subjects/tasks/detail)",
		"  1 Users | 2 Subjects | 3 Tasks | 4 Detail",
		"  j/k or arrows move selection",
		"  mouse click to focus/select",
		"  mouse wheel scrolls hovered pane",
		"",
		"Users:",
		"  a add user | enter log in | L log out",
		"",
		"Subjects:",
		"  a add | e edit | d delete with its tasks | enter open",
		"",
		"Tasks:",
		"  a add | e edit | d delete | x mark/unmark completed",
		"",
		"Forms:",
		"  tab/arrows next field | space/left/right cycle priority or subject",
		"  enter save | esc cancel",
		"",
		"Other:",
		"  r reload | ? help | esc/q close help | q quit",
	}, "\n")
}

func applyViewStyle(view *gocui.View, focused bool, highlight bool) {
	view.Frame = true
	view.Highlight = focused && highlight
	view.HighlightInactive = false
	view.SelBgColor = gocui.ColorBlue
	view.SelFgColor = gocui.ColorBlack
	view.InactiveViewSelBgColor = gocui.ColorDefault
	if focused {
		view.FrameColor = gocui.ColorCyan
		view.TitleColor = gocui.ColorCyan
	} else {
		view.FrameColor = gocui.ColorDefault
		view.TitleColor = gocui.ColorDefault
	}
}

func clampIndex(index, length int) int {
	if index >= length {
		index = length - 1
	}
	if index < 0 {
		index = 0
	}
	return index
}
