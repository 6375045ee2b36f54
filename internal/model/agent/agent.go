package agent

import "time"

// Agent is the directory entry exposed to the frontend.
type Agent struct {
	ID   string `json:"agentId" yaml:"id" toml:"id"`
	Name string `json:"name" yaml:"name" toml:"name"`
}

// Details describes a single agent as returned by the vendor registry.
type Details struct {
	ID           string    `json:"agentId" yaml:"id" toml:"id"`
	Name         string    `json:"name" yaml:"name" toml:"name"`
	FirstMessage string    `json:"firstMessage,omitempty" yaml:"firstMessage,omitempty" toml:"firstMessage"`
	Language     string    `json:"language,omitempty" yaml:"language,omitempty" toml:"language"`
	VoiceID      string    `json:"voiceId,omitempty" yaml:"voiceId,omitempty" toml:"voiceId"`
	Tags         []string  `json:"tags,omitempty" yaml:"tags,omitempty" toml:"tags"`
	CreatedAt    time.Time `json:"createdAt,omitempty" yaml:"-" toml:"-"`
}

// Reference strips the descriptive fields.
func (d Details) Reference() Agent {
	return Agent{ID: d.ID, Name: d.Name}
}
