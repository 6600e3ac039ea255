package slack

// Block Kit view builders for the bridge's two modals.

// Callback IDs routing view submissions back to the right handler.
const (
	MappingViewCallbackID = "mapping_modal"

	// Block and action IDs inside the mapping modal
	ProjectBlockID = "project_block"
	ProjectInputID = "project_key"
	FieldBlockID   = "field_block"
	FieldSelectID  = "field_select"
)

// ConnectModal builds a modal pointing the user at the authorization URL.
func ConnectModal(authURL string) map[string]interface{} {
	return map[string]interface{}{
		"type":  "modal",
		"title": plainText("Connect to Jira"),
		"close": plainText("Close"),
		"blocks": []interface{}{
			map[string]interface{}{
				"type": "section",
				"text": map[string]interface{}{
					"type": "mrkdwn",
					"text": "Authorize the bridge to update issues on your behalf.",
				},
			},
			map[string]interface{}{
				"type": "actions",
				"elements": []interface{}{
					map[string]interface{}{
						"type":      "button",
						"text":      plainText("Connect"),
						"style":     "primary",
						"url":       authURL,
						"action_id": "connect_button",
					},
				},
			},
		},
	}
}

// MappingModal builds the project-to-field mapping modal. The field select
// is an external select so options come back through a block_suggestion
// request as the user types.
func MappingModal() map[string]interface{} {
	return map[string]interface{}{
		"type":        "modal",
		"callback_id": MappingViewCallbackID,
		"title":       plainText("Map progress field"),
		"submit":      plainText("Save"),
		"close":       plainText("Cancel"),
		"blocks": []interface{}{
			map[string]interface{}{
				"type":     "input",
				"block_id": ProjectBlockID,
				"label":    plainText("Project key"),
				"element": map[string]interface{}{
					"type":        "plain_text_input",
					"action_id":   ProjectInputID,
					"placeholder": plainText("PROJ"),
				},
			},
			map[string]interface{}{
				"type":     "input",
				"block_id": FieldBlockID,
				"label":    plainText("Progress field"),
				"element": map[string]interface{}{
					"type":             "external_select",
					"action_id":        FieldSelectID,
					"min_query_length": 0,
					"placeholder":      plainText("Search fields"),
				},
			},
		},
	}
}

// FieldOption shapes one suggestion in the block_suggestion response. The
// value carries both the field ID and its type so the submission handler
// does not need another API round trip.
func FieldOption(name, fieldID, fieldType string) map[string]interface{} {
	return map[string]interface{}{
		"text":  plainText(name),
		"value": fieldID + "|" + fieldType,
	}
}

func plainText(text string) map[string]interface{} {
	return map[string]interface{}{
		"type": "plain_text",
		"text": text,
	}
}
