package genaisvc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"text/template"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Output kinds
const (
	OutputJSON = "json"
	OutputText = "text"
)

// Flows
const (
	FlowLeaveRequestAnalysis       = "leaveRequestAnalysis"
	FlowLeaveRequestChat           = "leaveRequestChat"
	FlowAttendanceAnomalyDetection = "attendanceAnomalyDetection"
	FlowBookRequirementMessage     = "bookRequirementMessage"
)

const promptsDir = "prompts"

// Prompt is a flow definition: a system text and a body, both text/templates.
type Prompt struct {
	Name     string `yaml:"name"`
	Output   string `yaml:"output"`
	System   string `yaml:"system"`
	Template string `yaml:"template"`

	system *template.Template
	body   *template.Template
}

var funcs = template.FuncMap{
	"join": strings.Join,
	"json": func(v interface{}) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
}

func (p *Prompt) parse() (err error) {
	if p.Name == "" {
		return errors.New("missing name")
	}
	switch p.Output {
	case OutputJSON, OutputText:
	case "":
		p.Output = OutputText
	default:
		return fmt.Errorf("unknown output %q", p.Output)
	}
	if p.system, err = template.New(p.Name + ".system").Funcs(funcs).Option("missingkey=error").Parse(p.System); err != nil {
		return err
	}
	p.body, err = template.New(p.Name).Funcs(funcs).Option("missingkey=error").Parse(p.Template)
	return err
}

// Render executes the system and body templates with data.
func (p *Prompt) Render(data interface{}) (system, body string, err error) {
	var buf bytes.Buffer
	if err = p.system.Execute(&buf, data); err != nil {
		return "", "", errors.Wrapf(err, "rendering %s system", p.Name)
	}
	system = strings.TrimSpace(buf.String())
	buf.Reset()
	if err = p.body.Execute(&buf, data); err != nil {
		return "", "", errors.Wrapf(err, "rendering %s", p.Name)
	}
	return system, strings.TrimSpace(buf.String()), nil
}

// LoadPrompts parses every YAML prompt definition under the prompts directory of fsys, keyed by name.
func LoadPrompts(fsys fs.FS) (map[string]*Prompt, error) {
	fps, err := fs.Glob(fsys, path.Join(promptsDir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	prompts := make(map[string]*Prompt, len(fps))
	for _, fp := range fps {
		raw, err := fs.ReadFile(fsys, fp)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", fp)
		}
		p := new(Prompt)
		if err = yaml.Unmarshal(raw, p); err != nil {
			return nil, errors.Wrapf(err, "decoding %s", fp)
		}
		if err = p.parse(); err != nil {
			return nil, errors.Wrapf(err, "parsing %s", fp)
		}
		if _, dup := prompts[p.Name]; dup {
			return nil, fmt.Errorf("duplicate prompt %q in %s", p.Name, fp)
		}
		prompts[p.Name] = p
	}
	for _, name := range []string{
		FlowLeaveRequestAnalysis,
		FlowLeaveRequestChat,
		FlowAttendanceAnomalyDetection,
		FlowBookRequirementMessage,
	} {
		if _, ok := prompts[name]; !ok {
			return nil, fmt.Errorf("missing prompt %q", name)
		}
	}
	return prompts, nil
}
