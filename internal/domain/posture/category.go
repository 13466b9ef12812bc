package posture

// Category names one slice of the posture evaluation.
type Category string

const (
	CategoryInterface      Category = "interface"
	CategoryDNS            Category = "dns"
	CategoryHostAudit      Category = "host_audit"
	CategoryOpsec          Category = "opsec"
	CategoryTrafficMonitor Category = "traffic_monitor"
)

// Categories lists every category in evaluation order.
var Categories = []Category{
	CategoryInterface,
	CategoryDNS,
	CategoryHostAudit,
	CategoryOpsec,
	CategoryTrafficMonitor,
}

// CategoryResult is the closed set of values a category slot can hold: one concrete
// result type per category, Skipped, or Failed. A nil slot means the category never
// reported at all.
type CategoryResult interface {
	Category() Category
	sealed()
}

// Skipped records that configuration disabled a category. It carries no penalty.
type Skipped struct {
	Of     Category
	Reason string
}

func (s Skipped) Category() Category { return s.Of }
func (Skipped) sealed()              {}

// Failed records that a category ran but could not produce a result.
type Failed struct {
	Of     Category
	Reason string
}

func (f Failed) Category() Category { return f.Of }
func (Failed) sealed()              {}

func (*InterfaceCheckResult) Category() Category { return CategoryInterface }
func (*InterfaceCheckResult) sealed()            {}

func (*DNSCheckResult) Category() Category { return CategoryDNS }
func (*DNSCheckResult) sealed()            {}

func (*HostAuditResult) Category() Category { return CategoryHostAudit }
func (*HostAuditResult) sealed()            {}

func (*OpsecResult) Category() Category { return CategoryOpsec }
func (*OpsecResult) sealed()            {}

func (*TrafficMonitorResult) Category() Category { return CategoryTrafficMonitor }
func (*TrafficMonitorResult) sealed()            {}
