package workforce

// =============================================================================
// OUTBOUND TELEMETRY - Append-only event records produced by a tick
// =============================================================================

const (
	TopicKPI             = "telemetry.workforce.kpi.v1"
	TopicWarning         = "telemetry.workforce.warning.v1"
	TopicPayrollSnapshot = "telemetry.workforce.payroll_snapshot.v1"
	TopicTerminated      = "telemetry.workforce.employee.terminated.v1"
	TopicRaise           = "telemetry.workforce.raise.v1"
	TopicMarketScan      = "telemetry.workforce.market_scan.v1"
	TopicHired           = "telemetry.workforce.hired.v1"
)

// Event is one outbound telemetry record. Payload is one of the *Payload
// types below when produced by the engine, or json.RawMessage when loaded
// back from a store.
type Event struct {
	Topic   string `json:"topic"`
	Tick    int64  `json:"tick"`
	Payload any    `json:"payload"`
}

type KPIPayload struct {
	Snapshot KpiSnapshot `json:"snapshot"`
}

type WarningPayload struct {
	Warnings []Warning `json:"warnings"`
}

type PayrollSnapshotPayload struct {
	Snapshot PayrollState `json:"snapshot"`
	// Headcount is the roster size the snapshot was taken against.
	Headcount int `json:"headcount"`
}

type TerminatedPayload struct {
	Event TerminationOutcome `json:"event"`
}

type RaisePayload struct {
	Outcome RaiseOutcome `json:"outcome"`
}

type MarketScanPayload struct {
	Scan ScanResult `json:"scan"`
}

type HiredPayload struct {
	EmployeeID  EmployeeID  `json:"employeeId"`
	CandidateID CandidateID `json:"candidateId"`
	StructureID StructureID `json:"structureId"`
	RoleID      RoleID      `json:"roleId"`
}
