package pipeline

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const itemSchema = `{
  "type": "object",
  "required": ["resumeData"],
  "properties": {
    "resumeData": {"type": "object"},
    "notifyEmail": {"type": ["string", "null"]}
  }
}`

const (
	msgResumeDataRequired = "`resumeData` (object) is required in request body."
	msgItemsRequired      = "`items` (array of { resumeData }) is required."
)

var compiledItemSchema = mustSchema(itemSchema)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile schema: %v", err))
	}
	return s
}

// validateItem checks one {resumeData, notifyEmail} payload. The decoded
// resumeData is returned as a map once it is known to be a JSON object.
func validateItem(item Item) (map[string]any, error) {
	doc := map[string]any{"resumeData": item.ResumeData}
	if item.NotifyEmail != nil {
		doc["notifyEmail"] = *item.NotifyEmail
	}
	if item.ResumeData == nil {
		delete(doc, "resumeData")
	}
	res, err := compiledItemSchema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, &ValidationError{Message: msgResumeDataRequired, Details: err.Error()}
	}
	if !res.Valid() {
		details := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			details = append(details, e.String())
		}
		return nil, &ValidationError{Message: msgResumeDataRequired, Details: details}
	}
	data, ok := item.ResumeData.(map[string]any)
	if !ok {
		return nil, &ValidationError{Message: msgResumeDataRequired}
	}
	return data, nil
}

func bulkLimitError(limit, sent int) error {
	return &ValidationError{
		Message: fmt.Sprintf("Bulk limit is %d items. You sent %d.", limit, sent),
		Details: map[string]int{"limit": limit, "count": sent},
	}
}

func normalizeEmail(raw *string) *string {
	if raw == nil {
		return nil
	}
	v := strings.TrimSpace(*raw)
	if v == "" {
		return nil
	}
	return &v
}
