package catalog

// FlowLeaveManagement is the flow identifier served by the leave request board.
const FlowLeaveManagement = "Leave management"

const leaveBoardModel = "Leave_Request_Board"

// userAttributes is the attribute set shared by user-typed system fields.
var userAttributes = []Attribute{
	{ID: "Status", Name: "Status", Type: "DropdownList"},
	{ID: "FirstName", Name: "First name", Type: "Text"},
	{ID: "LastName", Name: "Last name", Type: "Text"},
	{ID: "ProfilePicture", Name: "Profile picture", Type: "ProfilePicture"},
}

// LeaveRequestBoard is the field catalog of the leave request flow. Summary
// and Start_Date are the only required fields.
var LeaveRequestBoard = []Field{
	{ID: "_item_id", Name: "Item Id", Type: "Text", Model: leaveBoardModel, IsSystemField: true},
	{ID: "_counter", Name: "Counter", Type: "Number", Model: leaveBoardModel, IsSystemField: true, IsInternal: true},
	{ID: "Name", Name: "Title", Type: "Text", Model: leaveBoardModel, IsSystemField: true, IsComputedField: true},
	{ID: "AssignedTo", Name: "Assignee", Type: "User", Model: leaveBoardModel, IsSystemField: true, SourceFlowID: "UserAbstract", Attributes: userAttributes},
	{ID: "_category", Name: "Category", Type: "Text", Model: leaveBoardModel, IsSystemField: true, IsInternal: true},
	{ID: "_status_name", Name: "Status", Type: "Text", Model: leaveBoardModel, IsSystemField: true},
	{ID: "_priority_name", Name: "Priority", Type: "Text", Model: leaveBoardModel, IsSystemField: true},
	{ID: "DueDate", Name: "Due date", Type: "DateTime", Model: leaveBoardModel, IsSystemField: true},
	{ID: "_start_date", Name: "Start date", Type: "DateTime", Model: leaveBoardModel, IsSystemField: true},
	{ID: "Requester", Name: "Requester", Type: "User", Model: leaveBoardModel, IsSystemField: true, SourceFlowID: "UserAbstract", Attributes: userAttributes},
	{ID: "Summary", Name: "Reason for leave", Type: "Text", Model: leaveBoardModel, Required: true},
	{ID: "Attachment", Name: "Proof Docs", Type: "Attachment", Model: leaveBoardModel},
	{ID: "_resolved_at", Name: "Resolved at", Type: "DateTime", Model: leaveBoardModel, IsSystemField: true},
	{ID: "_resolution_time", Name: "Resolution time", Type: "Number", Model: leaveBoardModel, IsSystemField: true},
	{ID: "_created_by", Name: "Created by", Type: "User", Model: leaveBoardModel, IsSystemField: true, SourceFlowID: "UserAbstract", Attributes: userAttributes},
	{ID: "_created_at", Name: "Created at", Type: "DateTime", Model: leaveBoardModel, IsSystemField: true},
	{ID: "_modified_by", Name: "Modified by", Type: "User", Model: leaveBoardModel, IsSystemField: true, SourceFlowID: "UserAbstract", Attributes: userAttributes},
	{ID: "_modified_at", Name: "Modified at", Type: "DateTime", Model: leaveBoardModel, IsSystemField: true},
	{ID: "_subitem_title", Name: "Subitem title", Type: "Text", Model: leaveBoardModel, IsSystemField: true, IsSubitemField: true},
	{ID: "_subitem_description", Name: "Subitem description", Type: "Text", Model: leaveBoardModel, IsSystemField: true, IsSubitemField: true},
	{ID: "_state_name", Name: "Subitem state", Type: "Text", Model: leaveBoardModel, IsSystemField: true, IsInternal: true, IsSubitemField: true},
	{ID: "_estimated_time", Name: "Estimated time", Type: "Number", Model: leaveBoardModel, IsSystemField: true},
	{ID: "Start_Date", Name: "Start Date", Type: "DateTime", Model: leaveBoardModel, Required: true},
	{ID: "End_Date", Name: "End Date", Type: "DateTime", Model: leaveBoardModel},
}

// NewDefaultProvider returns a provider with the built-in flows registered.
func NewDefaultProvider() *StaticProvider {
	p := NewStaticProvider()
	p.Register(FlowLeaveManagement, LeaveRequestBoard)
	return p
}
