package genaisvc

import (
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// ErrInvalidOutput is returned when the model answer does not match the flow's output schema.
var ErrInvalidOutput = errors.New("invalid AI output")

// scoredOutput is the output schema of the analysis flows.
type scoredOutput struct {
	Summary   string   `json:"summary" validate:"required,notblank"`
	RiskScore *float64 `json:"riskScore" validate:"required,min=0,max=1"`
}

// stripFences removes a markdown code fence wrapping the answer, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:] // language tag
	} else {
		s = ""
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// extractObject returns the outermost JSON object of s.
func extractObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

func parseScored(validate *validator.Validate, answer string) (summary string, risk float64, err error) {
	var out scoredOutput
	if err = json.Unmarshal([]byte(extractObject(stripFences(answer))), &out); err != nil {
		return "", 0, errors.Wrap(ErrInvalidOutput, err.Error())
	}
	if err = validate.Struct(out); err != nil {
		return "", 0, errors.Wrap(ErrInvalidOutput, err.Error())
	}
	return strings.TrimSpace(out.Summary), *out.RiskScore, nil
}

func parseText(answer string) (string, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", errors.Wrap(ErrInvalidOutput, "empty answer")
	}
	return answer, nil
}
