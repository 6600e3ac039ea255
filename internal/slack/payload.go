package slack

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Command is a parsed slash-command request.
type Command struct {
	Command     string
	Text        string
	UserID      string
	ChannelID   string
	TriggerID   string
	ResponseURL string
}

// ParseCommand decodes the form-encoded slash-command body.
func ParseCommand(body []byte) (*Command, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse command body: %w", err)
	}
	return &Command{
		Command:     values.Get("command"),
		Text:        strings.TrimSpace(values.Get("text")),
		UserID:      values.Get("user_id"),
		ChannelID:   values.Get("channel_id"),
		TriggerID:   values.Get("trigger_id"),
		ResponseURL: values.Get("response_url"),
	}, nil
}

// Subcommand splits the command text into its first word and the rest.
func (c *Command) Subcommand() (string, string) {
	parts := strings.SplitN(c.Text, " ", 2)
	sub := strings.ToLower(strings.TrimSpace(parts[0]))
	rest := ""
	if len(parts) == 2 {
		rest = strings.TrimSpace(parts[1])
	}
	return sub, rest
}

// Interaction is a parsed interactive payload. The platform posts these as a
// form with a single JSON-encoded "payload" field.
type Interaction struct {
	Type      string `json:"type"`
	User      User   `json:"user"`
	TriggerID string `json:"trigger_id"`
	// block_suggestion fields
	ActionID string `json:"action_id"`
	BlockID  string `json:"block_id"`
	Value    string `json:"value"`
	// view_submission fields
	View View `json:"view"`
}

// User identifies who triggered the interaction.
type User struct {
	ID string `json:"id"`
}

// View carries the submitted modal state.
type View struct {
	CallbackID string    `json:"callback_id"`
	State      ViewState `json:"state"`
}

// ViewState is the nested block/action value map of a submitted view.
type ViewState struct {
	Values map[string]map[string]BlockValue `json:"values"`
}

// BlockValue is one input's submitted value.
type BlockValue struct {
	Type           string       `json:"type"`
	Value          string       `json:"value"`
	SelectedOption SelectOption `json:"selected_option"`
}

// SelectOption is the chosen option of a select element.
type SelectOption struct {
	Value string `json:"value"`
	Text  struct {
		Text string `json:"text"`
	} `json:"text"`
}

// ParseInteraction decodes the form-encoded interactive payload body.
func ParseInteraction(body []byte) (*Interaction, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse interaction body: %w", err)
	}

	raw := values.Get("payload")
	if raw == "" {
		return nil, fmt.Errorf("interaction body has no payload field")
	}

	var interaction Interaction
	if err := json.Unmarshal([]byte(raw), &interaction); err != nil {
		return nil, fmt.Errorf("failed to decode interaction payload: %w", err)
	}
	return &interaction, nil
}

// MappingSubmission is the parsed result of the mapping modal.
type MappingSubmission struct {
	ProjectKey string
	FieldID    string
	FieldType  string
	FieldName  string
}

// ParseMappingSubmission extracts the mapping inputs from a submitted view.
// The field option value carries "fieldID|fieldType" as built by FieldOption.
func ParseMappingSubmission(view View) (*MappingSubmission, error) {
	projectBlock, ok := view.State.Values[ProjectBlockID]
	if !ok {
		return nil, fmt.Errorf("submission is missing the project block")
	}
	project := strings.TrimSpace(projectBlock[ProjectInputID].Value)
	if project == "" {
		return nil, fmt.Errorf("submission has an empty project key")
	}

	fieldBlock, ok := view.State.Values[FieldBlockID]
	if !ok {
		return nil, fmt.Errorf("submission is missing the field block")
	}
	option := fieldBlock[FieldSelectID].SelectedOption
	if option.Value == "" {
		return nil, fmt.Errorf("submission has no field selected")
	}

	fieldID, fieldType := option.Value, ""
	if idx := strings.IndexByte(option.Value, '|'); idx >= 0 {
		fieldID, fieldType = option.Value[:idx], option.Value[idx+1:]
	}

	return &MappingSubmission{
		ProjectKey: project,
		FieldID:    fieldID,
		FieldType:  fieldType,
		FieldName:  option.Text.Text,
	}, nil
}
