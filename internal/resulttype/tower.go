package resulttype

import "encoding/xml"

// JobLaunch is the body returned by POST /api/v2/job_templates/{id}/launch/.
type JobLaunch struct {
	XMLName       xml.Name       `json:"-" xml:"launch"`
	Job           int            `json:"job" xml:"job"`
	ID            int            `json:"id" xml:"id"`
	Type          string         `json:"type" xml:"type"`
	URL           string         `json:"url" xml:"url"`
	Status        string         `json:"status" xml:"status"`
	IgnoredFields map[string]any `json:"ignored_fields,omitempty" xml:"-"`
}

// Job is a job record as returned by GET /api/v2/jobs/{id}/.
type Job struct {
	XMLName     xml.Name `json:"-" xml:"job"`
	ID          int      `json:"id" xml:"id"`
	Type        string   `json:"type" xml:"type"`
	URL         string   `json:"url" xml:"url"`
	Name        string   `json:"name" xml:"name"`
	Status      string   `json:"status" xml:"status"`
	Failed      bool     `json:"failed" xml:"failed"`
	Started     string   `json:"started,omitempty" xml:"started,omitempty"`
	Finished    string   `json:"finished,omitempty" xml:"finished,omitempty"`
	Elapsed     float64  `json:"elapsed" xml:"elapsed"`
	JobTemplate int      `json:"job_template" xml:"job_template"`
	LaunchType  string   `json:"launch_type" xml:"launch_type"`
	ExtraVars   string   `json:"extra_vars,omitempty" xml:"extra_vars,omitempty"`
}

// JobTemplate is a job template record as returned by
// GET /api/v2/job_templates/{id}/.
type JobTemplate struct {
	XMLName     xml.Name `json:"-" xml:"job_template"`
	ID          int      `json:"id" xml:"id"`
	Name        string   `json:"name" xml:"name"`
	Description string   `json:"description" xml:"description"`
	JobType     string   `json:"job_type" xml:"job_type"`
	Inventory   int      `json:"inventory" xml:"inventory"`
	Project     int      `json:"project" xml:"project"`
	Playbook    string   `json:"playbook" xml:"playbook"`
	Status      string   `json:"status" xml:"status"`
}
