package workspace

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zjrosen/diagramdesk/internal/domain"
)

// Action is an intent to change the workspace. The set of actions is
// closed: every concrete action is declared in this file and handled by
// Reduce.
type Action interface {
	// ID returns the unique action identifier.
	ID() string
	// Type returns the action type.
	Type() ActionType
	// Source returns where the action originated.
	Source() ActionSource
	// CreatedAt returns the action timestamp. The reducer takes all time from here.
	CreatedAt() time.Time
	// SkipPersist reports whether the resulting state should not be persisted.
	SkipPersist() bool
	// Validate checks the payload before the action is reduced.
	Validate() error

	base() *BaseAction
}

// ActionType identifies the kind of action.
type ActionType string

const (
	// Project actions
	ActProjectListLoaded ActionType = "project.list_loaded"
	ActProjectCreated    ActionType = "project.created"
	ActProjectLoaded     ActionType = "project.loaded"
	ActProjectUpdated    ActionType = "project.updated"
	ActProjectClosed     ActionType = "project.closed"
	ActProjectRemoved    ActionType = "project.removed"

	// Diagram actions
	ActDiagramAdded   ActionType = "diagram.added"
	ActDiagramSaved   ActionType = "diagram.saved"
	ActDiagramDeleted ActionType = "diagram.deleted"

	// Navigation pane actions
	ActNavigationToggled ActionType = "navigation.toggled"
	ActNavigationResized ActionType = "navigation.resized"
	ActDiagramSelected   ActionType = "navigation.selected"
	ActSearchChanged     ActionType = "navigation.search"
	ActSortChanged       ActionType = "navigation.sort"

	// Tab actions
	ActTabOpened             ActionType = "tab.opened"
	ActTabClosed             ActionType = "tab.closed"
	ActTabSwitched           ActionType = "tab.switched"
	ActAllTabsClosed         ActionType = "tab.all_closed"
	ActOtherTabsClosed       ActionType = "tab.others_closed"
	ActTabPinToggled         ActionType = "tab.pin_toggled"
	ActTabReordered          ActionType = "tab.reordered"
	ActTabModifiedSet        ActionType = "tab.modified"
	ActTabContentUpdated     ActionType = "tab.content_updated"
	ActTabEditorStateUpdated ActionType = "tab.editor_state_updated"
	ActTabUndo               ActionType = "tab.undo"
	ActTabRedo               ActionType = "tab.redo"

	// Preferences
	ActSettingsUpdated ActionType = "settings.updated"
	ActThemeChanged    ActionType = "theme.changed"

	// Notifications
	ActNotificationAdded   ActionType = "notification.added"
	ActNotificationRemoved ActionType = "notification.removed"
	ActNotificationsClear  ActionType = "notification.cleared"

	// Whole-state actions
	ActStateRestored ActionType = "state.restored"
	ActStateReset    ActionType = "state.reset"
)

func (t ActionType) String() string {
	return string(t)
}

// ActionSource identifies where an action originated.
type ActionSource string

const (
	SourceUser     ActionSource = "user"
	SourceSystem   ActionSource = "system"
	SourceRemote   ActionSource = "remote"
	SourceStorage  ActionSource = "storage"
	SourceAutosave ActionSource = "autosave"
)

// BaseAction carries the fields every action shares. Concrete actions embed it.
type BaseAction struct {
	id          string
	actionType  ActionType
	source      ActionSource
	createdAt   time.Time
	skipPersist bool
}

// NewBaseAction creates a BaseAction of type t. The id, timestamp and
// source are filled in by Dispatch when left empty.
func NewBaseAction(t ActionType) BaseAction {
	return BaseAction{actionType: t}
}

func (b *BaseAction) ID() string           { return b.id }
func (b *BaseAction) Type() ActionType     { return b.actionType }
func (b *BaseAction) Source() ActionSource { return b.source }
func (b *BaseAction) CreatedAt() time.Time { return b.createdAt }
func (b *BaseAction) SkipPersist() bool    { return b.skipPersist }

// Validate is a no-op for BaseAction. Actions with payloads override it.
func (b *BaseAction) Validate() error { return nil }

func (b *BaseAction) base() *BaseAction { return b }

// SetSource sets the action source.
func (b *BaseAction) SetSource(s ActionSource) { b.source = s }

// SetCreatedAt sets the action timestamp.
func (b *BaseAction) SetCreatedAt(t time.Time) { b.createdAt = t }

// SetSkipPersist opts the action out of persistence.
func (b *BaseAction) SetSkipPersist(skip bool) { b.skipPersist = skip }

// stamp fills in the fields the caller left empty.
func (b *BaseAction) stamp(now time.Time) {
	if b.id == "" {
		b.id = uuid.NewString()
	}
	if b.createdAt.IsZero() {
		b.createdAt = now
	}
	if b.source == "" {
		b.source = SourceUser
	}
}

func base(t ActionType) BaseAction {
	return NewBaseAction(t)
}

// ===========================================================================
// Project actions
// ===========================================================================

// ProjectListLoaded replaces the project list.
type ProjectListLoaded struct {
	BaseAction
	Projects []domain.Project
}

func NewProjectListLoaded(projects []domain.Project) *ProjectListLoaded {
	return &ProjectListLoaded{BaseAction: base(ActProjectListLoaded), Projects: projects}
}

// ProjectCreated adds a new project to the list and opens it.
type ProjectCreated struct {
	BaseAction
	Project domain.Project
}

func NewProjectCreated(p domain.Project) *ProjectCreated {
	return &ProjectCreated{BaseAction: base(ActProjectCreated), Project: p}
}

func (a *ProjectCreated) Validate() error {
	return requireProject(a.Project)
}

// ProjectLoaded makes Project the current project.
type ProjectLoaded struct {
	BaseAction
	Project domain.Project
}

func NewProjectLoaded(p domain.Project) *ProjectLoaded {
	return &ProjectLoaded{BaseAction: base(ActProjectLoaded), Project: p}
}

func (a *ProjectLoaded) Validate() error {
	return requireProject(a.Project)
}

// ProjectUpdated renames or re-describes a project.
type ProjectUpdated struct {
	BaseAction
	ProjectID   string
	Name        string
	Description string
}

func NewProjectUpdated(id, name, description string) *ProjectUpdated {
	return &ProjectUpdated{BaseAction: base(ActProjectUpdated), ProjectID: id, Name: name, Description: description}
}

func (a *ProjectUpdated) Validate() error {
	if a.ProjectID == "" {
		return fmt.Errorf("project id is required")
	}
	if a.Name == "" {
		return fmt.Errorf("project name is required")
	}
	return nil
}

// ProjectClosed unloads the current project. Open tabs stay open.
type ProjectClosed struct {
	BaseAction
}

func NewProjectClosed() *ProjectClosed {
	return &ProjectClosed{BaseAction: base(ActProjectClosed)}
}

// ProjectRemoved drops a project from the list, the recent list and, when
// current, unloads it and closes its tabs.
type ProjectRemoved struct {
	BaseAction
	ProjectID string
}

func NewProjectRemoved(id string) *ProjectRemoved {
	return &ProjectRemoved{BaseAction: base(ActProjectRemoved), ProjectID: id}
}

func (a *ProjectRemoved) Validate() error {
	if a.ProjectID == "" {
		return fmt.Errorf("project id is required")
	}
	return nil
}

// ===========================================================================
// Diagram actions
// ===========================================================================

// DiagramAdded adds a diagram to the current project. Unsaved diagrams
// have an empty ID and a LocalKey.
type DiagramAdded struct {
	BaseAction
	Diagram domain.Diagram
}

func NewDiagramAdded(d domain.Diagram) *DiagramAdded {
	return &DiagramAdded{BaseAction: base(ActDiagramAdded), Diagram: d}
}

func (a *DiagramAdded) Validate() error {
	if a.Diagram.ID == "" && a.Diagram.LocalKey == "" {
		return fmt.Errorf("diagram needs an id or a local key")
	}
	if a.Diagram.ProjectID == "" {
		return fmt.Errorf("diagram project id is required")
	}
	return validDiagramText(a.Diagram)
}

// DiagramSaved merges the server's copy of a diagram after a successful
// save. LocalKey identifies a diagram saved for the first time; SentContent
// is the content the save carried.
type DiagramSaved struct {
	BaseAction
	LocalKey    string
	Diagram     domain.Diagram
	SentContent string
}

func NewDiagramSaved(localKey string, d domain.Diagram, sentContent string) *DiagramSaved {
	return &DiagramSaved{BaseAction: base(ActDiagramSaved), LocalKey: localKey, Diagram: d, SentContent: sentContent}
}

func (a *DiagramSaved) Validate() error {
	if a.Diagram.ID == "" {
		return fmt.Errorf("saved diagram has no id")
	}
	return nil
}

// DiagramDeleted removes a diagram after the remote delete succeeded and
// closes its tab.
type DiagramDeleted struct {
	BaseAction
	ProjectID string
	DiagramID domain.DiagramID
}

func NewDiagramDeleted(projectID string, id domain.DiagramID) *DiagramDeleted {
	return &DiagramDeleted{BaseAction: base(ActDiagramDeleted), ProjectID: projectID, DiagramID: id}
}

func (a *DiagramDeleted) Validate() error {
	if a.DiagramID == "" {
		return fmt.Errorf("diagram id is required")
	}
	return nil
}

// ===========================================================================
// Navigation pane actions
// ===========================================================================

type NavigationToggled struct {
	BaseAction
}

func NewNavigationToggled() *NavigationToggled {
	return &NavigationToggled{BaseAction: base(ActNavigationToggled)}
}

type NavigationResized struct {
	BaseAction
	Width int
}

func NewNavigationResized(width int) *NavigationResized {
	return &NavigationResized{BaseAction: base(ActNavigationResized), Width: width}
}

func (a *NavigationResized) Validate() error {
	if a.Width < domain.MinNavigationWidth || a.Width > domain.MaxNavigationWidth {
		return fmt.Errorf("width %d outside [%d, %d]", a.Width, domain.MinNavigationWidth, domain.MaxNavigationWidth)
	}
	return nil
}

type DiagramSelected struct {
	BaseAction
	DiagramID domain.DiagramID
}

func NewDiagramSelected(id domain.DiagramID) *DiagramSelected {
	return &DiagramSelected{BaseAction: base(ActDiagramSelected), DiagramID: id}
}

type SearchChanged struct {
	BaseAction
	Query string
}

func NewSearchChanged(query string) *SearchChanged {
	return &SearchChanged{BaseAction: base(ActSearchChanged), Query: query}
}

type SortChanged struct {
	BaseAction
	Field      domain.SortField
	Descending bool
}

func NewSortChanged(field domain.SortField, descending bool) *SortChanged {
	return &SortChanged{BaseAction: base(ActSortChanged), Field: field, Descending: descending}
}

func (a *SortChanged) Validate() error {
	if !a.Field.Valid() {
		return fmt.Errorf("unknown sort field %q", a.Field)
	}
	return nil
}

// ===========================================================================
// Tab actions
// ===========================================================================

// TabOpened opens Diagram in a tab, or switches to the tab already showing
// it. TabID is used only when a new tab is created.
type TabOpened struct {
	BaseAction
	TabID   domain.TabID
	Diagram domain.Diagram
}

func NewTabOpened(d domain.Diagram) *TabOpened {
	return &TabOpened{BaseAction: base(ActTabOpened), TabID: domain.TabID(uuid.NewString()), Diagram: d}
}

func (a *TabOpened) Validate() error {
	if a.TabID == "" {
		return fmt.Errorf("tab id is required")
	}
	if a.Diagram.ID == "" && a.Diagram.LocalKey == "" {
		return fmt.Errorf("diagram needs an id or a local key")
	}
	return validDiagramText(a.Diagram)
}

func validDiagramText(d domain.Diagram) error {
	if !domain.ValidText(d.Title) {
		return fmt.Errorf("diagram title is not valid UTF-8")
	}
	if !domain.ValidText(d.Content) {
		return fmt.Errorf("diagram content is not valid UTF-8")
	}
	return nil
}

// tabAction is embedded by actions that target one existing tab.
type tabAction struct {
	BaseAction
	TabID domain.TabID
}

func (a *tabAction) Validate() error {
	if a.TabID == "" {
		return fmt.Errorf("tab id is required")
	}
	return nil
}

func newTabAction(t ActionType, id domain.TabID) tabAction {
	return tabAction{BaseAction: base(t), TabID: id}
}

type TabClosed struct{ tabAction }

func NewTabClosed(id domain.TabID) *TabClosed {
	return &TabClosed{newTabAction(ActTabClosed, id)}
}

type TabSwitched struct{ tabAction }

func NewTabSwitched(id domain.TabID) *TabSwitched {
	return &TabSwitched{newTabAction(ActTabSwitched, id)}
}

type AllTabsClosed struct {
	BaseAction
}

func NewAllTabsClosed() *AllTabsClosed {
	return &AllTabsClosed{BaseAction: base(ActAllTabsClosed)}
}

type OtherTabsClosed struct{ tabAction }

// NewOtherTabsClosed closes every unpinned tab except keep.
func NewOtherTabsClosed(keep domain.TabID) *OtherTabsClosed {
	return &OtherTabsClosed{newTabAction(ActOtherTabsClosed, keep)}
}

type TabPinToggled struct{ tabAction }

func NewTabPinToggled(id domain.TabID) *TabPinToggled {
	return &TabPinToggled{newTabAction(ActTabPinToggled, id)}
}

type TabReordered struct {
	tabAction
	Index int
}

func NewTabReordered(id domain.TabID, index int) *TabReordered {
	return &TabReordered{tabAction: newTabAction(ActTabReordered, id), Index: index}
}

type TabModifiedSet struct {
	tabAction
	Modified bool
}

func NewTabModifiedSet(id domain.TabID, modified bool) *TabModifiedSet {
	return &TabModifiedSet{tabAction: newTabAction(ActTabModifiedSet, id), Modified: modified}
}

// TabContentUpdated is an undoable edit of the tab content.
type TabContentUpdated struct {
	tabAction
	Content string
}

func NewTabContentUpdated(id domain.TabID, content string) *TabContentUpdated {
	return &TabContentUpdated{tabAction: newTabAction(ActTabContentUpdated, id), Content: content}
}

func (a *TabContentUpdated) Validate() error {
	if err := a.tabAction.Validate(); err != nil {
		return err
	}
	if !domain.ValidText(a.Content) {
		return fmt.Errorf("content is not valid UTF-8")
	}
	return nil
}

// TabEditorStateUpdated records cursor, scroll or selection changes.
type TabEditorStateUpdated struct {
	tabAction
	Patch domain.EditorStatePatch
}

func NewTabEditorStateUpdated(id domain.TabID, patch domain.EditorStatePatch) *TabEditorStateUpdated {
	return &TabEditorStateUpdated{tabAction: newTabAction(ActTabEditorStateUpdated, id), Patch: patch}
}

func (a *TabEditorStateUpdated) Validate() error {
	if err := a.tabAction.Validate(); err != nil {
		return err
	}
	if a.Patch.Content != nil && !domain.ValidText(*a.Patch.Content) {
		return fmt.Errorf("content is not valid UTF-8")
	}
	return nil
}

type TabUndo struct{ tabAction }

func NewTabUndo(id domain.TabID) *TabUndo {
	return &TabUndo{newTabAction(ActTabUndo, id)}
}

type TabRedo struct{ tabAction }

func NewTabRedo(id domain.TabID) *TabRedo {
	return &TabRedo{newTabAction(ActTabRedo, id)}
}

// ===========================================================================
// Preferences
// ===========================================================================

// SettingsPatch is a partial Settings update. Nil fields are unchanged.
type SettingsPatch struct {
	AutoSave         *bool
	AutoSaveInterval *time.Duration
	MaxTabs          *int
	FontSize         *int
	WordWrap         *bool
	ShowLineNumbers  *bool
}

// Apply returns s with the patch applied.
func (p SettingsPatch) Apply(s domain.Settings) domain.Settings {
	if p.AutoSave != nil {
		s.AutoSave = *p.AutoSave
	}
	if p.AutoSaveInterval != nil {
		s.AutoSaveInterval = *p.AutoSaveInterval
	}
	if p.MaxTabs != nil {
		s.MaxTabs = *p.MaxTabs
	}
	if p.FontSize != nil {
		s.FontSize = *p.FontSize
	}
	if p.WordWrap != nil {
		s.WordWrap = *p.WordWrap
	}
	if p.ShowLineNumbers != nil {
		s.ShowLineNumbers = *p.ShowLineNumbers
	}
	return s
}

// SettingsUpdated changes user preferences. Lowering MaxTabs evicts tabs.
type SettingsUpdated struct {
	BaseAction
	Patch SettingsPatch
}

func NewSettingsUpdated(patch SettingsPatch) *SettingsUpdated {
	return &SettingsUpdated{BaseAction: base(ActSettingsUpdated), Patch: patch}
}

func (a *SettingsUpdated) Validate() error {
	if a.Patch.MaxTabs != nil && *a.Patch.MaxTabs < 1 {
		return fmt.Errorf("max tabs must be at least 1")
	}
	if a.Patch.AutoSaveInterval != nil && *a.Patch.AutoSaveInterval < time.Second {
		return fmt.Errorf("auto-save interval must be at least 1s")
	}
	if a.Patch.FontSize != nil && (*a.Patch.FontSize < 6 || *a.Patch.FontSize > 72) {
		return fmt.Errorf("font size %d outside [6, 72]", *a.Patch.FontSize)
	}
	return nil
}

type ThemeChanged struct {
	BaseAction
	Theme domain.Theme
}

func NewThemeChanged(theme domain.Theme) *ThemeChanged {
	return &ThemeChanged{BaseAction: base(ActThemeChanged), Theme: theme}
}

func (a *ThemeChanged) Validate() error {
	if !a.Theme.Valid() {
		return fmt.Errorf("unknown theme %q", a.Theme)
	}
	return nil
}

// ===========================================================================
// Notifications
// ===========================================================================

type NotificationAdded struct {
	BaseAction
	Notification domain.Notification
}

func NewNotificationAdded(n domain.Notification) *NotificationAdded {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return &NotificationAdded{BaseAction: base(ActNotificationAdded), Notification: n}
}

func (a *NotificationAdded) Validate() error {
	if a.Notification.ID == "" {
		return fmt.Errorf("notification id is required")
	}
	switch a.Notification.Type {
	case domain.NotificationSuccess, domain.NotificationError, domain.NotificationWarning, domain.NotificationInfo:
	default:
		return fmt.Errorf("unknown notification type %q", a.Notification.Type)
	}
	if a.Notification.Title == "" && a.Notification.Message == "" {
		return fmt.Errorf("notification needs a title or message")
	}
	return nil
}

type NotificationRemoved struct {
	BaseAction
	NotificationID string
}

func NewNotificationRemoved(id string) *NotificationRemoved {
	return &NotificationRemoved{BaseAction: base(ActNotificationRemoved), NotificationID: id}
}

func (a *NotificationRemoved) Validate() error {
	if a.NotificationID == "" {
		return fmt.Errorf("notification id is required")
	}
	return nil
}

type NotificationsCleared struct {
	BaseAction
}

func NewNotificationsCleared() *NotificationsCleared {
	return &NotificationsCleared{BaseAction: base(ActNotificationsClear)}
}

// ===========================================================================
// Whole-state actions
// ===========================================================================

// StateRestored replaces the state with a snapshot loaded from storage.
type StateRestored struct {
	BaseAction
	State domain.WorkspaceState
}

func NewStateRestored(state domain.WorkspaceState) *StateRestored {
	a := &StateRestored{BaseAction: base(ActStateRestored), State: state}
	a.source = SourceStorage
	return a
}

// StateReset returns the workspace to defaults.
type StateReset struct {
	BaseAction
}

func NewStateReset() *StateReset {
	return &StateReset{BaseAction: base(ActStateReset)}
}

func requireProject(p domain.Project) error {
	if p.ID == "" {
		return fmt.Errorf("project id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("project name is required")
	}
	return nil
}
