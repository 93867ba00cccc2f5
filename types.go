package volt

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	oaierrors "github.com/go-openapi/errors"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/validate"
)

// Pod is a provisioned GPU compute instance.
//
// Pods are never mutated locally; every state change comes from a server
// round-trip. SSHHost and SSHPort are only set while Status is running.
//
//	pod, err := client.GetPod(ctx, "pod-123")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if cmd, ok := pod.SSHCommand(); ok {
//	    fmt.Println(cmd)
//	}
type Pod struct {
	// ID is the provider-assigned identifier.
	ID string `json:"id"`

	// Name is the user-chosen display name.
	Name string `json:"name"`

	// Status is the lifecycle state.
	Status PodStatus `json:"status"`

	// GPUType is the GPU model, e.g. "RTX 4090".
	GPUType string `json:"gpuType"`

	// GPUCount is the number of GPUs attached.
	GPUCount int `json:"gpuCount"`

	// TemplateID references the template the pod was created from.
	TemplateID string `json:"templateId,omitempty"`

	// SSHHost is the host to connect to. Empty unless running.
	SSHHost string `json:"sshHost,omitempty"`

	// SSHPort is the SSH port. Zero unless running.
	SSHPort int `json:"sshPort,omitempty"`

	// CreatedAt is the creation time reported by the provider.
	CreatedAt strfmt.DateTime `json:"createdAt"`

	// HourlyCost is the price per hour in account currency.
	HourlyCost float64 `json:"hourlyPrice"`
}

// UnmarshalJSON decodes a pod and rejects responses without an id or with
// an unknown status.
func (p *Pod) UnmarshalJSON(data []byte) error {
	type wire Pod
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if err := checkFields(
		validate.RequiredString("id", "pod", w.ID),
		validate.RequiredString("status", "pod", string(w.Status)),
	); err != nil {
		return err
	}
	status, err := ParsePodStatus(string(w.Status))
	if err != nil {
		return err
	}
	w.Status = status
	if w.Status != PodRunning {
		w.SSHHost = ""
		w.SSHPort = 0
	}
	*p = Pod(w)
	return nil
}

// IsRunning returns true if the pod is running.
func (p *Pod) IsRunning() bool {
	return p.Status == PodRunning
}

// SSHCommand returns the command used to connect to a running pod.
func (p *Pod) SSHCommand() (string, bool) {
	if p.Status != PodRunning || p.SSHHost == "" || p.SSHPort == 0 {
		return "", false
	}
	return fmt.Sprintf("ssh -p %d root@%s", p.SSHPort, p.SSHHost), true
}

var (
	huidAdjectives = []string{"swift", "brave", "calm", "eager", "gentle", "cosmic", "golden", "lunar", "zesty", "noble"}
	huidNouns      = []string{"hawk", "lion", "eagle", "fox", "wolf", "shark", "raven", "matrix", "comet", "orbit"}
)

// HUID returns a short human-readable alias for the pod id, e.g.
// "swift-hawk-3f". The alias is stable for a given id.
func (p *Pod) HUID() string {
	return HUID(p.ID)
}

// HUID derives a human-readable alias from an id.
func HUID(id string) string {
	if id == "" {
		return "invalid"
	}
	sum := md5.Sum([]byte(id))
	digest := hex.EncodeToString(sum[:])
	a, _ := strconv.ParseUint(digest[:4], 16, 32)
	n, _ := strconv.ParseUint(digest[4:8], 16, 32)
	return fmt.Sprintf("%s-%s-%s",
		huidAdjectives[a%uint64(len(huidAdjectives))],
		huidNouns[n%uint64(len(huidNouns))],
		digest[len(digest)-2:])
}

// Template is a predefined software environment used to create pods.
type Template struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Category    string  `json:"category,omitempty"`
	HourlyPrice float64 `json:"hourlyPrice"`
	DockerImage string  `json:"dockerImage"`
	Description string  `json:"description,omitempty"`
	GPUType     string  `json:"gpuType,omitempty"`
	MinGPU      int     `json:"minGpu,omitempty"`
	MaxGPU      int     `json:"maxGpu,omitempty"`
}

// UnmarshalJSON decodes a template and rejects responses without an id.
func (t *Template) UnmarshalJSON(data []byte) error {
	type wire Template
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if err := checkFields(validate.RequiredString("id", "template", w.ID)); err != nil {
		return err
	}
	*t = Template(w)
	return nil
}

// SSHKey is a public key registered with the account.
type SSHKey struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	PublicKey   string          `json:"publicKey"`
	Fingerprint string          `json:"fingerprint,omitempty"`
	CreatedAt   strfmt.DateTime `json:"createdAt"`
}

// UnmarshalJSON decodes an SSH key and rejects responses without an id.
func (k *SSHKey) UnmarshalJSON(data []byte) error {
	type wire SSHKey
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if err := checkFields(validate.RequiredString("id", "sshKey", w.ID)); err != nil {
		return err
	}
	*k = SSHKey(w)
	return nil
}

// Machine is an inventory record of available GPU capacity.
type Machine struct {
	ID                string  `json:"id"`
	GPUType           string  `json:"gpuType"`
	GPUCountAvailable int     `json:"gpuCount"`
	HourlyPrice       float64 `json:"hourlyPrice"`
	Region            string  `json:"location,omitempty"`
	CPUCores          int     `json:"cpuCores,omitempty"`
	RAMGB             int     `json:"ramGb,omitempty"`
	StorageGB         int     `json:"storageGb,omitempty"`
	Available         bool    `json:"available"`
}

// UnmarshalJSON decodes a machine and rejects responses without an id.
// Available defaults to true when the field is absent.
func (m *Machine) UnmarshalJSON(data []byte) error {
	type wire Machine
	w := wire{Available: true}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if err := checkFields(validate.RequiredString("id", "machine", w.ID)); err != nil {
		return err
	}
	*m = Machine(w)
	return nil
}

// Balance is a snapshot of the account balance. It is fetched fresh on
// every call.
type Balance struct {
	Balance     float64 `json:"balance"`
	Currency    string  `json:"currency"`
	UsageToDate float64 `json:"usageToDate"`
}

// UnmarshalJSON decodes a balance and rejects responses without a balance
// or currency field.
func (b *Balance) UnmarshalJSON(data []byte) error {
	var w struct {
		Balance     *float64 `json:"balance"`
		Currency    string   `json:"currency"`
		UsageToDate float64  `json:"usageToDate"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var missing []*oaierrors.Validation
	if w.Balance == nil {
		missing = append(missing, oaierrors.Required("balance", "balance", nil))
	}
	if w.Currency == "" {
		missing = append(missing, oaierrors.Required("currency", "balance", nil))
	}
	if len(missing) > 0 {
		return checkFields(missing...)
	}
	*b = Balance{Balance: *w.Balance, Currency: w.Currency, UsageToDate: w.UsageToDate}
	return nil
}

// Account describes the authenticated user.
type Account struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	Name        string  `json:"name,omitempty"`
	Balance     float64 `json:"balance"`
	Currency    string  `json:"currency,omitempty"`
	UsageToDate float64 `json:"usageToDate"`
}

// UnmarshalJSON decodes an account and rejects responses without an id.
func (a *Account) UnmarshalJSON(data []byte) error {
	type wire Account
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if err := checkFields(validate.RequiredString("id", "account", w.ID)); err != nil {
		return err
	}
	*a = Account(w)
	return nil
}
