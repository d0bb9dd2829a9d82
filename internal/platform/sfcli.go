package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/connectforce/connectforce/internal/security"
)

// DefaultCLITimeout bounds one sf invocation when the caller sets none.
const DefaultCLITimeout = 2 * time.Minute

// Runner executes a command and returns its stdout. The error, when set,
// should carry stderr.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs the command with os/exec; arguments are never passed
// through a shell.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	err := cmd.Run()
	if err != nil && stdout.Len() == 0 {
		return nil, fmt.Errorf("%w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	// sf reports failures as JSON on stdout with a non-zero exit code.
	return stdout.Bytes(), nil
}

// SFCLI implements Metadata with the sf command line tool.
type SFCLI struct {
	Bin     string
	Timeout time.Duration
	Run     Runner
	Logger  *zap.Logger
}

var _ Metadata = (*SFCLI)(nil)

// CLIError is a failed sf invocation; Message is redacted.
type CLIError struct {
	Command string
	Message string
}

func (e *CLIError) Error() string {
	return fmt.Sprintf("sf %s: %s", e.Command, e.Message)
}

// NewSFCLI returns a client using the sf binary on PATH.
func NewSFCLI(timeout time.Duration, logger *zap.Logger) *SFCLI {
	return &SFCLI{Bin: "sf", Timeout: timeout, Run: ExecRunner, Logger: logger}
}

type envelope struct {
	Status  int             `json:"status"`
	Result  json.RawMessage `json:"result"`
	Message string          `json:"message"`
}

func (c *SFCLI) call(ctx context.Context, out any, args ...string) error {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultCLITimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log := c.Logger
	if log == nil {
		log = zap.NewNop()
	}
	bin, run := c.Bin, c.Run
	if bin == "" {
		bin = "sf"
	}
	if run == nil {
		run = ExecRunner
	}
	args = append(args, "--json")
	command := args[0]
	if len(args) > 2 {
		command += " " + args[1]
	}
	log.Debug("running sf", zap.Strings("args", args))

	raw, err := run(ctx, bin, args...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &CLIError{Command: command, Message: fmt.Sprintf("timed out after %s", timeout)}
		}
		return &CLIError{Command: command, Message: security.RedactError(err)}
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &CLIError{Command: command, Message: "unexpected output: " + security.Redact(string(raw))}
	}
	if env.Status != 0 {
		msg := env.Message
		if msg == "" {
			msg = fmt.Sprintf("exit status %d", env.Status)
		}
		return &CLIError{Command: command, Message: security.Redact(msg)}
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return &CLIError{Command: command, Message: fmt.Sprintf("decode result: %v", err)}
	}
	return nil
}

func (c *SFCLI) ListObjects(ctx context.Context) ([]Object, error) {
	var res []struct {
		Name      string `json:"name"`
		Label     string `json:"label"`
		KeyPrefix string `json:"keyPrefix"`
	}
	if err := c.call(ctx, &res, "sobject", "list"); err != nil {
		return nil, err
	}
	out := make([]Object, 0, len(res))
	for _, o := range res {
		label := o.Label
		if label == "" {
			label = o.Name
		}
		out = append(out, Object{Name: o.Name, Label: label, APIName: o.Name, IsCustom: IsCustomObject(o.Name), KeyPrefix: o.KeyPrefix})
	}
	return out, nil
}

type describedField struct {
	Name              string          `json:"name"`
	Label             string          `json:"label"`
	Type              string          `json:"type"`
	Length            int             `json:"length"`
	Precision         int             `json:"precision"`
	Scale             int             `json:"scale"`
	Nillable          bool            `json:"nillable"`
	DefaultedOnCreate bool            `json:"defaultedOnCreate"`
	Unique            bool            `json:"unique"`
	ExternalID        bool            `json:"externalId"`
	ReferenceTo       []string        `json:"referenceTo"`
	PicklistValues    []PicklistValue `json:"picklistValues"`
	DefaultValue      any             `json:"defaultValue"`
	CalculatedFormula string          `json:"calculatedFormula"`
	Calculated        bool            `json:"calculated"`
	Createable        bool            `json:"createable"`
	Updateable        bool            `json:"updateable"`
}

func (c *SFCLI) DescribeObject(ctx context.Context, name string) (*Object, error) {
	if !ValidObjectName(name) {
		return nil, fmt.Errorf("invalid object name %q", name)
	}
	var res struct {
		Label     string           `json:"label"`
		KeyPrefix string           `json:"keyPrefix"`
		Fields    []describedField `json:"fields"`
	}
	if err := c.call(ctx, &res, "sobject", "describe", "--sobject", name); err != nil {
		return nil, err
	}
	obj := &Object{Name: name, Label: res.Label, APIName: name, IsCustom: IsCustomObject(name), KeyPrefix: res.KeyPrefix}
	for _, f := range res.Fields {
		obj.Fields = append(obj.Fields, Field{
			Name:           f.Name,
			Label:          f.Label,
			Type:           f.Type,
			Length:         f.Length,
			Precision:      f.Precision,
			Scale:          f.Scale,
			Required:       !f.Nillable && !f.DefaultedOnCreate,
			Unique:         f.Unique,
			ExternalID:     f.ExternalID,
			ReferenceTo:    f.ReferenceTo,
			PicklistValues: f.PicklistValues,
			DefaultValue:   f.DefaultValue,
			Formula:        f.CalculatedFormula,
			Calculated:     f.Calculated,
			Createable:     f.Createable,
			Updateable:     f.Updateable,
		})
	}
	return obj, nil
}

func (c *SFCLI) Query(ctx context.Context, soql string) ([]Record, error) {
	var res struct {
		Records []Record `json:"records"`
	}
	if err := c.call(ctx, &res, "data", "query", "--query", soql); err != nil {
		return nil, err
	}
	return res.Records, nil
}

// Deploy starts a source deploy. The result reports failure instead of
// returning an error when the CLI ran but the deploy did not succeed.
func (c *SFCLI) Deploy(ctx context.Context, sourceDir string) (DeployResult, error) {
	err := c.call(ctx, nil, "project", "deploy", "start", "--source-dir", sourceDir)
	var cliErr *CLIError
	switch {
	case err == nil:
		return DeployResult{Success: true, Message: "Deployment successful"}, nil
	case errors.As(err, &cliErr):
		return DeployResult{Success: false, Message: cliErr.Message}, nil
	default:
		return DeployResult{}, err
	}
}

// Org is the default org reported by the CLI. The access token is dropped.
type Org struct {
	Username    string `json:"username"`
	OrgID       string `json:"id"`
	InstanceURL string `json:"instanceUrl"`
	Alias       string `json:"alias,omitempty"`
}

func (c *SFCLI) DefaultOrg(ctx context.Context) (*Org, error) {
	var org Org
	if err := c.call(ctx, &org, "org", "display"); err != nil {
		return nil, err
	}
	return &org, nil
}
