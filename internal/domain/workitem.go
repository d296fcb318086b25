package domain

import (
	"fmt"
	"strings"
)

// Work item parameter names, as the workflow definition spells them.
const (
	ParamTowerURL    = "ansibleTowerUrl"
	ParamBearerToken = "bearerToken"
	ParamContentData = "contentData"
	ParamContentType = "contentType"
	ParamMethod      = "method"
	ParamResultClass = "resultClass"
)

// Result keys handed back to the host on completion.
const (
	ResultStatus    = "Status"
	ResultStatusMsg = "StatusMsg"
	ResultResult    = "Result"
)

// RequiredParams lists the parameters every work item must carry.
var RequiredParams = []string{ParamTowerURL, ParamBearerToken}

// WorkItem is a unit of external work delegated by the host workflow engine.
type WorkItem struct {
	ID         string         `json:"id"`
	Name       string         `json:"name,omitempty"`
	Parameters map[string]any `json:"parameters"`
}

// Param returns a raw parameter value, or nil.
func (w *WorkItem) Param(name string) any {
	if w == nil || w.Parameters == nil {
		return nil
	}
	return w.Parameters[name]
}

// StringParam returns a string parameter. A missing or nil parameter yields
// ("", nil); a parameter of any other type is an error.
func (w *WorkItem) StringParam(name string) (string, error) {
	v := w.Param(name)
	if v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", NewError(KindInvalidParameter, "read parameter",
			fmt.Errorf("parameter %q must be a string, got %T", name, v))
	}
	return s, nil
}

// Validate checks that all required parameters are present and non-empty.
func (w *WorkItem) Validate() error {
	var missing []string
	for _, name := range RequiredParams {
		s, err := w.StringParam(name)
		if err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return NewError(KindMissingParameter, "validate work item",
			fmt.Errorf("missing required parameter(s): %s", strings.Join(missing, ", ")))
	}
	return nil
}

// InvocationRequest builds the request described by the work item's
// parameters, applying the GET and JSON defaults.
func (w *WorkItem) InvocationRequest() (*InvocationRequest, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	url, _ := w.StringParam(ParamTowerURL)
	token, _ := w.StringParam(ParamBearerToken)

	rawMethod, err := w.StringParam(ParamMethod)
	if err != nil {
		return nil, err
	}
	method, ok := ParseMethod(rawMethod)
	if !ok {
		return nil, NewError(KindUnsupportedMethod, "validate work item",
			fmt.Errorf("method %q is not supported (valid: GET, POST)", rawMethod))
	}

	contentType, err := w.StringParam(ParamContentType)
	if err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = DefaultContentType
	}

	resultType, err := w.StringParam(ParamResultClass)
	if err != nil {
		return nil, err
	}

	return &InvocationRequest{
		TargetURL:       url,
		BearerToken:     token,
		Method:          method,
		Body:            w.Param(ParamContentData),
		BodyContentType: contentType,
		ResultType:      resultType,
	}, nil
}
