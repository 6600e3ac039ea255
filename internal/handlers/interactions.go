package handlers

import (
	"net/http"

	"slack-jira-bridge/internal/common/logging"
	"slack-jira-bridge/internal/slack"
)

// HandleInteraction serves POST /slack/interactions: block_suggestion
// requests from the mapping modal's field select and the modal's final
// submission. Signature-gated like the command endpoint.
func (h *Handlers) HandleInteraction(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readVerified(w, r)
	if !ok {
		return
	}

	interaction, err := slack.ParseInteraction(body)
	if err != nil {
		h.logger.Warn("malformed interaction payload", logging.Err(err))
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	switch interaction.Type {
	case "block_suggestion":
		h.handleFieldSuggestion(w, r, interaction)
	case "view_submission":
		h.handleViewSubmission(w, r, interaction)
	default:
		// Acknowledge anything else so the platform stops retrying
		w.WriteHeader(http.StatusOK)
	}
}

func (h *Handlers) handleFieldSuggestion(w http.ResponseWriter, r *http.Request, interaction *slack.Interaction) {
	if interaction.ActionID != slack.FieldSelectID {
		h.respondJSON(w, http.StatusOK, map[string]interface{}{"options": []interface{}{}})
		return
	}

	fields, err := h.fields.SearchFields(r.Context(), interaction.User.ID, interaction.Value)
	if err != nil {
		h.logger.Warn("field suggestion lookup failed",
			logging.String("user_id", interaction.User.ID),
			logging.Err(err))
		h.respondJSON(w, http.StatusOK, map[string]interface{}{"options": []interface{}{}})
		return
	}

	options := make([]interface{}, 0, len(fields))
	for _, f := range fields {
		options = append(options, slack.FieldOption(f.Name, f.ID, f.Schema.Type))
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"options": options})
}

func (h *Handlers) handleViewSubmission(w http.ResponseWriter, r *http.Request, interaction *slack.Interaction) {
	if interaction.View.CallbackID != slack.MappingViewCallbackID {
		w.WriteHeader(http.StatusOK)
		return
	}

	submission, err := slack.ParseMappingSubmission(interaction.View)
	if err != nil {
		h.respondJSON(w, http.StatusOK, map[string]interface{}{
			"response_action": "errors",
			"errors": map[string]string{
				slack.ProjectBlockID: "Enter a project key and pick a field.",
			},
		})
		return
	}

	err = h.mappings.SaveMapping(r.Context(), interaction.User.ID,
		submission.ProjectKey, submission.FieldID, submission.FieldType, "")
	if err != nil {
		h.logger.Error("failed to save mapping", err,
			logging.String("user_id", interaction.User.ID),
			logging.String("project_key", submission.ProjectKey))
		h.respondJSON(w, http.StatusOK, map[string]interface{}{
			"response_action": "errors",
			"errors": map[string]string{
				slack.ProjectBlockID: "Saving failed. Please try again.",
			},
		})
		return
	}

	// Empty 200 closes the modal
	w.WriteHeader(http.StatusOK)
}
