package entity

// Business modules whose actions can be gated by an approval flow
const (
	ModuleMeasurement  = "MEASUREMENT"
	ModuleInstallation = "INSTALLATION"
	ModuleQuote        = "QUOTE"
	ModuleOrder        = "ORDER"
	ModuleFinance      = "FINANCE"
)

// Trigger actions
const (
	TriggerCreate       = "CREATE"
	TriggerSubmit       = "SUBMIT"
	TriggerStatusChange = "STATUS_CHANGE"
	TriggerCancel       = "CANCEL"
)

// Approver types
const (
	ApproverTypeUser         = "USER"
	ApproverTypeRole         = "ROLE"
	ApproverTypeManagerChain = "MANAGER_CHAIN"
)

// Timeout actions applied by the sweeper to overdue tasks
const (
	TimeoutRemind      = "REMIND"
	TimeoutAutoApprove = "AUTO_APPROVE"
	TimeoutAutoReject  = "AUTO_REJECT"
	TimeoutEscalate    = "ESCALATE"
)

// Decision actions
const (
	ActionApprove = "APPROVE"
	ActionReject  = "REJECT"
	ActionCancel  = "CANCEL"
)

// Terminal outcomes delivered to entity status bridges
const (
	OutcomeApproved = "APPROVED"
	OutcomeRejected = "REJECTED"
	OutcomeCanceled = "CANCELED"
)

// SystemActorID identifies decisions made by the timeout sweeper rather
// than a human approver.
const SystemActorID = "system"

var validModules = map[string]bool{
	ModuleMeasurement:  true,
	ModuleInstallation: true,
	ModuleQuote:        true,
	ModuleOrder:        true,
	ModuleFinance:      true,
}

var validTriggerActions = map[string]bool{
	TriggerCreate:       true,
	TriggerSubmit:       true,
	TriggerStatusChange: true,
	TriggerCancel:       true,
}

var validApproverTypes = map[string]bool{
	ApproverTypeUser:         true,
	ApproverTypeRole:         true,
	ApproverTypeManagerChain: true,
}

var validTimeoutActions = map[string]bool{
	TimeoutRemind:      true,
	TimeoutAutoApprove: true,
	TimeoutAutoReject:  true,
	TimeoutEscalate:    true,
}

// IsValidModule reports whether m is a known business module
func IsValidModule(m string) bool { return validModules[m] }

// IsValidTriggerAction reports whether a is a known trigger action
func IsValidTriggerAction(a string) bool { return validTriggerActions[a] }

// IsValidApproverType reports whether t is a known approver type
func IsValidApproverType(t string) bool { return validApproverTypes[t] }

// IsValidTimeoutAction reports whether a is a known timeout action
func IsValidTimeoutAction(a string) bool { return validTimeoutActions[a] }
