// Package genaisvc runs the application's AI flows against a langchaingo model.
package genaisvc

import (
	"context"
	"fmt"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/tmc/langchaingo/llms"

	"github.com/trezcool/smartbackpack/core"
	"github.com/trezcool/smartbackpack/core/attendance"
	"github.com/trezcool/smartbackpack/core/backpack"
	"github.com/trezcool/smartbackpack/core/leave"
	appfs "github.com/trezcool/smartbackpack/fs"
)

// Assistant implements the domain assistants on top of an llms.Model.
type Assistant struct {
	model       llms.Model
	prompts     map[string]*Prompt
	validate    *validator.Validate
	logger      core.Logger
	timeout     time.Duration
	temperature float64
	maxTokens   int
}

var (
	_ backpack.Assistant   = (*Assistant)(nil)
	_ attendance.Assistant = (*Assistant)(nil)
	_ leave.Assistant      = (*Assistant)(nil)
)

// New loads the embedded prompts and returns an Assistant running them on model.
func New(model llms.Model, conf core.AIConfig, translator ut.Translator, logger core.Logger) (*Assistant, error) {
	prompts, err := LoadPrompts(appfs.FS)
	if err != nil {
		return nil, errors.Wrap(err, "loading prompts")
	}
	return &Assistant{
		model:       model,
		prompts:     prompts,
		validate:    core.NewValidator(translator),
		logger:      logger,
		timeout:     conf.Timeout,
		temperature: conf.Temperature,
		maxTokens:   conf.MaxTokens,
	}, nil
}

// run renders the flow's prompt, appends history between the system text and
// the new message and returns the model's raw answer.
func (a *Assistant) run(ctx context.Context, flow string, data interface{}, history ...llms.MessageContent) (string, error) {
	p, ok := a.prompts[flow]
	if !ok {
		return "", fmt.Errorf("unknown flow %q", flow)
	}
	system, body, err := p.Render(data)
	if err != nil {
		return "", err
	}

	msgs := make([]llms.MessageContent, 0, len(history)+2)
	if system != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	msgs = append(msgs, history...)
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, body))

	opts := []llms.CallOption{llms.WithTemperature(a.temperature)}
	if a.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(a.maxTokens))
	}
	if p.Output == OutputJSON {
		opts = append(opts, llms.WithJSONMode())
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	start := time.Now()
	resp, err := a.model.GenerateContent(ctx, msgs, opts...)
	if err != nil {
		return "", errors.Wrapf(err, "running %s", flow)
	}
	if a.logger != nil {
		a.logger.Debug(fmt.Sprintf("genai: %s answered in %v", flow, time.Since(start)))
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", errors.Wrapf(ErrInvalidOutput, "%s: no choices", flow)
	}
	return resp.Choices[0].Content, nil
}

func (a *Assistant) AnalyzeLeaveRequest(ctx context.Context, in leave.AnalysisInput) (leave.Analysis, error) {
	answer, err := a.run(ctx, FlowLeaveRequestAnalysis, in)
	if err != nil {
		return leave.Analysis{}, err
	}
	summary, risk, err := parseScored(a.validate, answer)
	if err != nil {
		return leave.Analysis{}, errors.Wrap(err, FlowLeaveRequestAnalysis)
	}
	return leave.Analysis{Summary: summary, RiskScore: risk}, nil
}

// LeaveRequestChat replays the stored thread as chat turns before the new question.
func (a *Assistant) LeaveRequestChat(ctx context.Context, in leave.ChatInput) (string, error) {
	history := make([]llms.MessageContent, 0, len(in.History))
	for _, msg := range in.History {
		role := llms.ChatMessageTypeHuman
		if msg.Role == leave.RoleModel {
			role = llms.ChatMessageTypeAI
		}
		history = append(history, llms.TextParts(role, msg.Content))
	}
	answer, err := a.run(ctx, FlowLeaveRequestChat, in, history...)
	if err != nil {
		return "", err
	}
	return parseText(answer)
}

func (a *Assistant) DetectAttendanceAnomaly(ctx context.Context, in attendance.AnomalyInput) (attendance.Analysis, error) {
	answer, err := a.run(ctx, FlowAttendanceAnomalyDetection, in)
	if err != nil {
		return attendance.Analysis{}, err
	}
	summary, risk, err := parseScored(a.validate, answer)
	if err != nil {
		return attendance.Analysis{}, errors.Wrap(err, FlowAttendanceAnomalyDetection)
	}
	return attendance.Analysis{Summary: summary, RiskScore: risk}, nil
}

func (a *Assistant) BookRequirementMessage(ctx context.Context, in backpack.MessageInput) (string, error) {
	answer, err := a.run(ctx, FlowBookRequirementMessage, in)
	if err != nil {
		return "", err
	}
	return parseText(answer)
}
