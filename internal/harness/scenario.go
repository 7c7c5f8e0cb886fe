package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario drives one or more terminals against a shared in-memory remote
// store and checks the outcome.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Terminals lists the terminals taking part. Empty means one terminal
	// called "main".
	Terminals []TerminalSpec `yaml:"terminals,omitempty"`

	// Seed inserts orders into the remote store before the first step.
	Seed []SeedOrder `yaml:"seed,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Expect is checked after the last step.
	Expect *Expectations `yaml:"expect,omitempty"`
}

// TerminalSpec configures one terminal.
type TerminalSpec struct {
	Name string `yaml:"name"`

	// Online starts the terminal online. Default: offline.
	Online bool `yaml:"online,omitempty"`

	// StaleInvoice and StaleReads make the terminal's first max-invoice
	// reads return StaleInvoice.
	StaleInvoice string `yaml:"stale_invoice,omitempty"`
	StaleReads   int    `yaml:"stale_reads,omitempty"`
}

// SeedOrder is a remote order present before the scenario starts.
type SeedOrder struct {
	ID            string `yaml:"id"`
	Status        string `yaml:"status,omitempty"`
	InvoiceNumber string `yaml:"invoice_number,omitempty"`
}

// Step is one action. Which fields apply depends on Action.
type Step struct {
	// Action is one of the Action* constants.
	Action string `yaml:"action"`

	// Terminal names the acting terminal. Empty means the first one.
	Terminal string `yaml:"terminal,omitempty"`

	Order string `yaml:"order,omitempty"`

	// create
	Type     string     `yaml:"type,omitempty"`
	Table    string     `yaml:"table,omitempty"`
	Party    int        `yaml:"party,omitempty"`
	Discount int64      `yaml:"discount,omitempty"`
	Items    []ItemSpec `yaml:"items,omitempty"`

	// status
	Status string `yaml:"status,omitempty"`

	// payment
	Method   string `yaml:"method,omitempty"`
	Received int64  `yaml:"received,omitempty"`
	PaidAt   string `yaml:"paid_at,omitempty"`

	// fail, hide
	Call  string `yaml:"call,omitempty"`
	Error string `yaml:"error,omitempty"`
	Count int    `yaml:"count,omitempty"`

	// ExpectError requires the step to fail with an error containing this
	// text. Without it any step error fails the scenario.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// ItemSpec is a line item in a create or items step.
type ItemSpec struct {
	Product string      `yaml:"product"`
	Name    string      `yaml:"name,omitempty"`
	Price   int64       `yaml:"price"`
	Qty     int         `yaml:"qty"`
	Note    string      `yaml:"note,omitempty"`
	Addons  []AddonSpec `yaml:"addons,omitempty"`
}

// AddonSpec is an addon on an ItemSpec.
type AddonSpec struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name,omitempty"`
	Price    int64  `yaml:"price,omitempty"`
	Qty      int    `yaml:"qty"`
	Included bool   `yaml:"included,omitempty"`
}

// Expectations are checked against the final state.
type Expectations struct {
	// Pending maps terminal name to its expected queue length.
	Pending map[string]int `yaml:"pending,omitempty"`

	// Orders are subset-matched against the remote store.
	Orders []OrderExpect `yaml:"orders,omitempty"`

	// Invoices is the exact set of invoice numbers in the remote store.
	Invoices []string `yaml:"invoices,omitempty"`

	// Writes is the exact sequence of successful remote writes, each as
	// "Method ORDER-ID".
	Writes []string `yaml:"writes,omitempty"`
}

// OrderExpect describes one remote order. Unset fields are not checked.
type OrderExpect struct {
	ID        string `yaml:"id"`
	Status    string `yaml:"status,omitempty"`
	Cancelled *bool  `yaml:"cancelled,omitempty"`
	Invoice   string `yaml:"invoice,omitempty"`
	Total     *int64 `yaml:"total,omitempty"`
	Items     *int   `yaml:"items,omitempty"`
	Paid      *bool  `yaml:"paid,omitempty"`
}

// Step actions.
const (
	ActionOffline   = "offline"
	ActionOnline    = "online"
	ActionOnlineAll = "online_all"
	ActionDrain     = "drain"
	ActionRestart   = "restart"

	ActionCreate  = "create"
	ActionStatus  = "status"
	ActionPayment = "payment"
	ActionCancel  = "cancel"
	ActionItems   = "items"

	// Remote fault injection.
	ActionFail = "fail"
	ActionDown = "down"
	ActionUp   = "up"
	ActionHide = "hide"
)

// LoadScenario reads a scenario file. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps must contain at least one step")
	}

	names := map[string]bool{}
	for i, t := range s.Terminals {
		if t.Name == "" {
			return fmt.Errorf("terminals[%d]: name is required", i)
		}
		if names[t.Name] {
			return fmt.Errorf("terminals[%d]: duplicate name %q", i, t.Name)
		}
		names[t.Name] = true
	}
	if len(names) == 0 {
		names[defaultTerminal] = true
	}

	for i, st := range s.Steps {
		if st.Terminal != "" && !names[st.Terminal] {
			return fmt.Errorf("steps[%d]: unknown terminal %q", i, st.Terminal)
		}
		switch st.Action {
		case ActionOffline, ActionOnline, ActionOnlineAll, ActionDrain, ActionRestart, ActionDown, ActionUp:
		case ActionCreate, ActionStatus, ActionPayment, ActionCancel, ActionItems, ActionHide:
			if st.Order == "" {
				return fmt.Errorf("steps[%d]: %s requires order", i, st.Action)
			}
		case ActionFail:
			if st.Call == "" || st.Error == "" {
				return fmt.Errorf("steps[%d]: fail requires call and error", i)
			}
			if _, ok := faultErrors[st.Error]; !ok {
				return fmt.Errorf("steps[%d]: unknown error %q", i, st.Error)
			}
		case "":
			return fmt.Errorf("steps[%d]: action is required", i)
		default:
			return fmt.Errorf("steps[%d]: unknown action %q", i, st.Action)
		}
	}

	if s.Expect != nil {
		for term := range s.Expect.Pending {
			if !names[term] {
				return fmt.Errorf("expect.pending: unknown terminal %q", term)
			}
		}
	}
	return nil
}
