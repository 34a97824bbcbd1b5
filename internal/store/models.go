package store

import "time"

type Collection string

const (
	Projects       Collection = "projects"
	Tasks          Collection = "tasks"
	Staff          Collection = "staff"
	Costs          Collection = "costs"
	Documents      Collection = "documents"
	ChangeRequests Collection = "change-requests"
)

// Collections lists every collection in presentation order.
var Collections = []Collection{Projects, Tasks, Staff, Costs, Documents, ChangeRequests}

func (c Collection) Valid() bool {
	for _, known := range Collections {
		if c == known {
			return true
		}
	}
	return false
}

type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "Active"
	ProjectQuoting   ProjectStatus = "Quoting"
	ProjectCompleted ProjectStatus = "Completed"
	ProjectOnHold    ProjectStatus = "On Hold"
)

type TaskStatus string

const (
	TaskToDo       TaskStatus = "To Do"
	TaskInProgress TaskStatus = "In Progress"
	TaskCompleted  TaskStatus = "Completed"
)

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

type CostType string

const (
	CostMaterial CostType = "material"
	CostLabor    CostType = "labor"
)

// Timestamp keeps the seconds/nanoseconds wire shape the dashboard already renders.
type Timestamp struct {
	Seconds     int64 `json:"seconds"`
	Nanoseconds int32 `json:"nanoseconds"`
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanoseconds: int32(t.Nanosecond())}
}

// Entity is implemented by every stored type. WithID returns a copy carrying the given id.
type Entity[E any] interface {
	EntityID() string
	SampleData() bool
	WithID(id string) E
}

type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name" validate:"required"`
	Address     string        `json:"address"`
	Client      string        `json:"client" validate:"required"`
	Progress    int           `json:"progress" validate:"min=0,max=100"`
	Status      ProjectStatus `json:"status" validate:"required,oneof=Active Quoting Completed 'On Hold'"`
	QuoteAmount *float64      `json:"quoteAmount,omitempty" validate:"omitempty,gte=0"`
	IsSample    bool          `json:"isSample,omitempty"`
}

func (p Project) EntityID() string         { return p.ID }
func (p Project) SampleData() bool         { return p.IsSample }
func (p Project) WithID(id string) Project { p.ID = id; return p }

type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status" validate:"required,oneof='To Do' 'In Progress' Completed"`
	Priority    Priority   `json:"priority" validate:"required,oneof=Low Medium High"`
	DueDate     string     `json:"dueDate"`
	AssigneeID  string     `json:"assigneeId"`
	ProjectID   string     `json:"projectId" validate:"required"`
	IsSample    bool       `json:"isSample,omitempty"`
}

func (t Task) EntityID() string      { return t.ID }
func (t Task) SampleData() bool      { return t.IsSample }
func (t Task) WithID(id string) Task { t.ID = id; return t }

type StaffMember struct {
	ID        string `json:"id"`
	Name      string `json:"name" validate:"required"`
	AvatarURL string `json:"avatarUrl"`
	Role      string `json:"role"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone"`
	IsSample  bool   `json:"isSample,omitempty"`
}

func (m StaffMember) EntityID() string             { return m.ID }
func (m StaffMember) SampleData() bool             { return m.IsSample }
func (m StaffMember) WithID(id string) StaffMember { m.ID = id; return m }

type CostItem struct {
	ID          string   `json:"id"`
	ProjectID   string   `json:"projectId" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Amount      float64  `json:"amount" validate:"gte=0"`
	Type        CostType `json:"type" validate:"required,oneof=material labor"`
	Date        string   `json:"date"`
	DocumentID  string   `json:"documentId,omitempty"`
	IsSample    bool     `json:"isSample,omitempty"`
}

func (c CostItem) EntityID() string          { return c.ID }
func (c CostItem) SampleData() bool          { return c.IsSample }
func (c CostItem) WithID(id string) CostItem { c.ID = id; return c }

// Document is the metadata row for a blob stored at StoragePath.
type Document struct {
	ID          string    `json:"id"`
	Name        string    `json:"name" validate:"required"`
	URL         string    `json:"url"`
	ProjectID   string    `json:"projectId" validate:"required"`
	FileType    string    `json:"fileType"`
	StoragePath string    `json:"storagePath" validate:"required"`
	UploadedAt  Timestamp `json:"uploadedAt"`
}

func (d Document) EntityID() string          { return d.ID }
func (d Document) SampleData() bool          { return false }
func (d Document) WithID(id string) Document { d.ID = id; return d }

type ChangeRequest struct {
	ID          string    `json:"id"`
	Description string    `json:"description" validate:"required"`
	FeatureArea string    `json:"featureArea" validate:"required"`
	Priority    Priority  `json:"priority" validate:"required,oneof=Low Medium High"`
	SubmittedAt Timestamp `json:"submittedAt"`
}

func (r ChangeRequest) EntityID() string               { return r.ID }
func (r ChangeRequest) SampleData() bool               { return false }
func (r ChangeRequest) WithID(id string) ChangeRequest { r.ID = id; return r }

// ProjectWithTasks groups a project with its tasks for board views.
type ProjectWithTasks struct {
	Project
	Tasks []Task `json:"tasks"`
}
