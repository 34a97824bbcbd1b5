package overlay

import "github.com/PeacockIllustrated/project-manager/internal/store"

// Set is one copy of the demonstration data. Every entity in it has IsSample set.
type Set struct {
	Projects []store.Project
	Tasks    []store.Task
	Staff    []store.StaffMember
	Costs    []store.CostItem
}

func quote(v float64) *float64 { return &v }

// Samples builds a fresh Set, so callers may not share or mutate each other's copy.
func Samples() Set {
	return Set{
		Staff: []store.StaffMember{
			{ID: "sample-staff-1", Name: "Olivia Chen (Sample)", AvatarURL: "https://i.pravatar.cc/150?u=olivia", Role: "Lead Developer", Email: "olivia.c@example.com", Phone: "07700 900101", IsSample: true},
			{ID: "sample-staff-2", Name: "Ben Carter (Sample)", AvatarURL: "https://i.pravatar.cc/150?u=ben", Role: "Junior Developer", Email: "ben.c@example.com", Phone: "07700 900102", IsSample: true},
			{ID: "sample-staff-3", Name: "Sophia Rodriguez (Sample)", AvatarURL: "https://i.pravatar.cc/150?u=sophia", Role: "QA Engineer", Email: "sophia.r@example.com", Phone: "07700 900103", IsSample: true},
		},
		Projects: []store.Project{
			{ID: "sample-proj-1", Name: "Client Project Alpha (Sample)", Address: "123 Business Park, London, W1 1AA", Client: "Alpha Corp", Progress: 75, Status: store.ProjectActive, QuoteAmount: quote(42000), IsSample: true},
			{ID: "sample-proj-2", Name: "Internal Initiative Q3 (Sample)", Address: "456 Innovation Hub, Manchester, M1 1AA", Client: "Internal", Progress: 10, Status: store.ProjectActive, QuoteAmount: quote(18500), IsSample: true},
			{ID: "sample-proj-3", Name: "Marketing Campaign Launch (Sample)", Address: "789 Creative Suite, Birmingham, B1 1AA", Client: "Marketing Dept.", Progress: 30, Status: store.ProjectOnHold, QuoteAmount: quote(110000), IsSample: true},
			{ID: "sample-proj-4", Name: "Software Upgrade (Sample)", Address: "101 Tech Campus, Bristol, BS1 1AA", Client: "IT Department", Progress: 100, Status: store.ProjectCompleted, QuoteAmount: quote(32000), IsSample: true},
		},
		Tasks: []store.Task{
			{ID: "sample-task-1", Title: "Finalize project scope", Description: "Meet with Alpha Corp to get final sign-off on the design.", Status: store.TaskCompleted, Priority: store.PriorityHigh, DueDate: "2024-08-10T00:00:00Z", AssigneeID: "sample-staff-1", ProjectID: "sample-proj-1", IsSample: true},
			{ID: "sample-task-2", Title: "Procure necessary assets", Description: "Purchase stock imagery and software licenses.", Status: store.TaskInProgress, Priority: store.PriorityHigh, DueDate: "2024-08-25T00:00:00Z", AssigneeID: "sample-staff-1", ProjectID: "sample-proj-1", IsSample: true},
			{ID: "sample-task-3", Title: "Initial setup & env config", Description: "Setup the development and staging environments.", Status: store.TaskCompleted, Priority: store.PriorityMedium, DueDate: "2024-08-15T00:00:00Z", AssigneeID: "sample-staff-2", ProjectID: "sample-proj-1", IsSample: true},
			{ID: "sample-task-4", Title: "Phase 1 development", Description: "Build out the core features.", Status: store.TaskInProgress, Priority: store.PriorityMedium, DueDate: "2024-09-05T00:00:00Z", AssigneeID: "sample-staff-1", ProjectID: "sample-proj-1", IsSample: true},
			{ID: "sample-task-5", Title: "Final review and deployment", Description: "Final QA pass and production deployment.", Status: store.TaskToDo, Priority: store.PriorityLow, DueDate: "2024-09-20T00:00:00Z", AssigneeID: "sample-staff-3", ProjectID: "sample-proj-1", IsSample: true},
			{ID: "sample-task-6", Title: "Market research and analysis", Description: "Analyze competitor strategies for Q3.", Status: store.TaskInProgress, Priority: store.PriorityHigh, DueDate: "2024-08-30T00:00:00Z", AssigneeID: "sample-staff-1", ProjectID: "sample-proj-2", IsSample: true},
			{ID: "sample-task-7", Title: "Prepare campaign materials", Description: "Create ad copy, graphics, and landing pages.", Status: store.TaskToDo, Priority: store.PriorityMedium, DueDate: "2024-09-10T00:00:00Z", AssigneeID: "sample-staff-2", ProjectID: "sample-proj-2", IsSample: true},
			{ID: "sample-task-8", Title: "Launch social media campaign", Description: "Push the new campaign live across all platforms.", Status: store.TaskToDo, Priority: store.PriorityMedium, DueDate: "2024-09-25T00:00:00Z", AssigneeID: "sample-staff-1", ProjectID: "sample-proj-2", IsSample: true},
			{ID: "sample-task-9", Title: "Server infrastructure setup", Status: store.TaskCompleted, Priority: store.PriorityHigh, DueDate: "2024-06-10T00:00:00Z", AssigneeID: "sample-staff-1", ProjectID: "sample-proj-4", IsSample: true},
			{ID: "sample-task-10", Title: "Database migration", Status: store.TaskCompleted, Priority: store.PriorityHigh, DueDate: "2024-06-20T00:00:00Z", AssigneeID: "sample-staff-2", ProjectID: "sample-proj-4", IsSample: true},
			{ID: "sample-task-11", Title: "Final deployment and testing", Status: store.TaskCompleted, Priority: store.PriorityMedium, DueDate: "2024-07-05T00:00:00Z", AssigneeID: "sample-staff-3", ProjectID: "sample-proj-4", IsSample: true},
		},
		Costs: []store.CostItem{
			{ID: "sample-cost-1", ProjectID: "sample-proj-1", Description: "Software Licensing", Amount: 7800, Type: store.CostMaterial, Date: "2024-08-12T00:00:00Z", IsSample: true},
			{ID: "sample-cost-2", ProjectID: "sample-proj-1", Description: "Cloud Service Subscription", Amount: 650, Type: store.CostMaterial, Date: "2024-08-18T00:00:00Z", IsSample: true},
			{ID: "sample-cost-3", ProjectID: "sample-proj-1", Description: "Lead Developer - Labor (40 hours)", Amount: 2800, Type: store.CostLabor, Date: "2024-08-20T00:00:00Z", IsSample: true},
			{ID: "sample-cost-4", ProjectID: "sample-proj-1", Description: "Junior Developer - Labor (30 hours)", Amount: 1050, Type: store.CostLabor, Date: "2024-08-20T00:00:00Z", IsSample: true},
			{ID: "sample-cost-5", ProjectID: "sample-proj-2", Description: "Stock Photo & Asset Purchase", Amount: 3900, Type: store.CostMaterial, Date: "2024-08-22T00:00:00Z", IsSample: true},
			{ID: "sample-cost-6", ProjectID: "sample-proj-2", Description: "Marketing Lead - Labor (16 hours)", Amount: 1120, Type: store.CostLabor, Date: "2024-08-25T00:00:00Z", IsSample: true},
			{ID: "sample-cost-7", ProjectID: "sample-proj-4", Description: "New Server Hardware", Amount: 3200, Type: store.CostMaterial, Date: "2024-06-05T00:00:00Z", IsSample: true},
			{ID: "sample-cost-8", ProjectID: "sample-proj-4", Description: "Data Migration Tools", Amount: 1500, Type: store.CostMaterial, Date: "2024-06-25T00:00:00Z", IsSample: true},
			{ID: "sample-cost-9", ProjectID: "sample-proj-4", Description: "System Admin - Total Labor", Amount: 14000, Type: store.CostLabor, Date: "2024-07-10T00:00:00Z", IsSample: true},
		},
	}
}
