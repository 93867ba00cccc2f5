// Package output renders volt resources for the terminal, either as aligned
// tables or as JSON.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	volt "github.com/voltagegpu/volt-go"
)

// Printer writes command results. In JSON mode every result is a single
// indented JSON document; otherwise results are tables.
type Printer struct {
	out   io.Writer
	err   io.Writer
	json  bool
	color bool
}

// Option configures a Printer.
type Option func(*Printer)

// WithColor forces colour on or off. By default colour follows
// color.NoColor, which is false when stdout is not a terminal.
func WithColor(enabled bool) Option {
	return func(p *Printer) {
		p.color = enabled
	}
}

// WithErrorWriter sets where errors are written.
func WithErrorWriter(w io.Writer) Option {
	return func(p *Printer) {
		p.err = w
	}
}

// New creates a Printer writing to out.
func New(out io.Writer, jsonMode bool, opts ...Option) *Printer {
	p := &Printer{
		out:   out,
		err:   out,
		json:  jsonMode,
		color: !color.NoColor,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// JSONMode reports whether the printer emits JSON.
func (p *Printer) JSONMode() bool {
	return p.json
}

// JSON writes v as indented JSON.
func (p *Printer) JSON(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Messagef writes an informational line. It is suppressed in JSON mode so
// that stdout stays parseable.
func (p *Printer) Messagef(format string, args ...any) {
	if p.json {
		return
	}
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Success writes a green confirmation line, or {"ok": true, ...} in JSON
// mode.
func (p *Printer) Success(msg string, fields map[string]any) error {
	if p.json {
		doc := map[string]any{"ok": true, "message": msg}
		for k, v := range fields {
			doc[k] = v
		}
		return p.JSON(doc)
	}
	_, err := fmt.Fprintln(p.out, p.paint(color.FgGreen, "✓ "+msg))
	return err
}

type errorDoc struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
	Field   string `json:"field,omitempty"`
}

// Error writes err to the error writer.
func (p *Printer) Error(err error) {
	body := errorBody{Code: "ERROR", Message: err.Error()}
	var apiErr *volt.Error
	if errors.As(err, &apiErr) {
		body = errorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Status:  apiErr.Status,
			Field:   apiErr.Field,
		}
	}
	if p.json {
		enc := json.NewEncoder(p.err)
		enc.SetIndent("", "  ")
		_ = enc.Encode(errorDoc{Error: body})
		return
	}
	fmt.Fprintf(p.err, "%s %s\n", p.paint(color.FgRed, "Error:"), err)
}

// Pods renders a pod list.
func (p *Printer) Pods(pods []volt.Pod) error {
	if p.json {
		return p.JSON(pods)
	}
	if len(pods) == 0 {
		p.Messagef("No pods found.")
		return nil
	}
	return p.table([]string{"ID", "HUID", "NAME", "STATUS", "GPU", "GPUS", "$/HR", "SSH"}, len(pods), func(i int) []string {
		pod := pods[i]
		ssh := "-"
		if pod.SSHHost != "" && pod.SSHPort != 0 {
			ssh = pod.SSHHost + ":" + strconv.Itoa(pod.SSHPort)
		}
		return []string{
			pod.ID,
			pod.HUID(),
			pod.Name,
			p.Status(pod.Status),
			dash(pod.GPUType),
			strconv.Itoa(pod.GPUCount),
			price(pod.HourlyCost),
			ssh,
		}
	})
}

// Pod renders a single pod.
func (p *Printer) Pod(pod *volt.Pod) error {
	if p.json {
		return p.JSON(pod)
	}
	rows := [][2]string{
		{"ID", pod.ID},
		{"HUID", pod.HUID()},
		{"Name", pod.Name},
		{"Status", p.Status(pod.Status)},
		{"GPU", fmt.Sprintf("%d x %s", pod.GPUCount, dash(pod.GPUType))},
		{"Template", dash(pod.TemplateID)},
		{"Hourly cost", price(pod.HourlyCost)},
		{"Created", timestamp(time.Time(pod.CreatedAt))},
	}
	if cmd, ok := pod.SSHCommand(); ok {
		rows = append(rows, [2]string{"SSH", cmd})
	}
	return p.details(rows)
}

// Templates renders a template list.
func (p *Printer) Templates(templates []volt.Template) error {
	if p.json {
		return p.JSON(templates)
	}
	if len(templates) == 0 {
		p.Messagef("No templates found.")
		return nil
	}
	return p.table([]string{"ID", "NAME", "CATEGORY", "IMAGE", "$/HR"}, len(templates), func(i int) []string {
		t := templates[i]
		return []string{t.ID, t.Name, dash(t.Category), t.DockerImage, price(t.HourlyPrice)}
	})
}

// Template renders a single template.
func (p *Printer) Template(t *volt.Template) error {
	if p.json {
		return p.JSON(t)
	}
	return p.details([][2]string{
		{"ID", t.ID},
		{"Name", t.Name},
		{"Category", dash(t.Category)},
		{"Image", t.DockerImage},
		{"GPU", dash(t.GPUType)},
		{"GPUs", fmt.Sprintf("%d-%d", t.MinGPU, t.MaxGPU)},
		{"Hourly price", price(t.HourlyPrice)},
		{"Description", dash(t.Description)},
	})
}

// SSHKeys renders registered keys.
func (p *Printer) SSHKeys(keys []volt.SSHKey) error {
	if p.json {
		return p.JSON(keys)
	}
	if len(keys) == 0 {
		p.Messagef("No SSH keys found.")
		return nil
	}
	return p.table([]string{"ID", "NAME", "FINGERPRINT"}, len(keys), func(i int) []string {
		k := keys[i]
		return []string{k.ID, k.Name, dash(k.Fingerprint)}
	})
}

// SSHKey renders one key.
func (p *Printer) SSHKey(k *volt.SSHKey) error {
	if p.json {
		return p.JSON(k)
	}
	return p.details([][2]string{
		{"ID", k.ID},
		{"Name", k.Name},
		{"Fingerprint", dash(k.Fingerprint)},
	})
}

// Machines renders machine inventory.
func (p *Printer) Machines(machines []volt.Machine) error {
	if p.json {
		return p.JSON(machines)
	}
	if len(machines) == 0 {
		p.Messagef("No machines found.")
		return nil
	}
	return p.table([]string{"ID", "GPU", "GPUS", "CPU", "RAM", "STORAGE", "REGION", "$/HR", "STATUS"}, len(machines), func(i int) []string {
		m := machines[i]
		status := p.paint(color.FgGreen, "available")
		if !m.Available {
			status = p.paint(color.FgRed, "busy")
		}
		return []string{
			m.ID,
			m.GPUType,
			strconv.Itoa(m.GPUCountAvailable),
			strconv.Itoa(m.CPUCores),
			fmt.Sprintf("%dGB", m.RAMGB),
			fmt.Sprintf("%dGB", m.StorageGB),
			dash(m.Region),
			price(m.HourlyPrice),
			status,
		}
	})
}

// Balance renders an account balance.
func (p *Printer) Balance(b *volt.Balance) error {
	if p.json {
		return p.JSON(b)
	}
	return p.details([][2]string{
		{"Balance", fmt.Sprintf("%.2f %s", b.Balance, b.Currency)},
		{"Usage to date", fmt.Sprintf("%.2f %s", b.UsageToDate, b.Currency)},
	})
}

// Account renders account details.
func (p *Printer) Account(a *volt.Account) error {
	if p.json {
		return p.JSON(a)
	}
	currency := a.Currency
	if currency == "" {
		currency = "USD"
	}
	return p.details([][2]string{
		{"ID", a.ID},
		{"Email", a.Email},
		{"Name", dash(a.Name)},
		{"Balance", fmt.Sprintf("%.2f %s", a.Balance, currency)},
		{"Usage to date", fmt.Sprintf("%.2f %s", a.UsageToDate, currency)},
	})
}

// Status returns the status label, coloured when colour is enabled.
func (p *Printer) Status(s volt.PodStatus) string {
	switch s {
	case volt.PodRunning:
		return p.paint(color.FgGreen, string(s))
	case volt.PodCreating, volt.PodDeleting:
		return p.paint(color.FgYellow, string(s))
	case volt.PodError:
		return p.paint(color.FgRed, string(s))
	default:
		return p.paint(color.FgHiBlack, string(s))
	}
}

func (p *Printer) paint(attr color.Attribute, s string) string {
	c := color.New(attr)
	if p.color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(s)
}

func (p *Printer) table(header []string, n int, row func(int) []string) error {
	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	writeRow(w, header)
	for i := 0; i < n; i++ {
		writeRow(w, row(i))
	}
	return w.Flush()
}

func (p *Printer) details(rows [][2]string) error {
	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	for _, r := range rows {
		fmt.Fprintf(w, "%s:\t%s\n", r[0], r[1])
	}
	return w.Flush()
}

func writeRow(w io.Writer, cells []string) {
	for i, c := range cells {
		if i > 0 {
			_, _ = io.WriteString(w, "\t")
		}
		_, _ = io.WriteString(w, c)
	}
	_, _ = io.WriteString(w, "\n")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func price(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
