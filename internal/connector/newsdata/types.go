package newsdata

import (
	"encoding/json"
	"strings"
)

// Results stay raw so the original payload of every article can be
// persisted alongside the mapped fields.
type apiResponse struct {
	Status       string            `json:"status"`
	TotalResults int               `json:"totalResults"`
	Results      []json.RawMessage `json:"results"`
	NextPage     string            `json:"nextPage"`
}

type apiArticle struct {
	ArticleID   string          `json:"article_id"`
	Title       string          `json:"title"`
	Link        string          `json:"link"`
	Description *string         `json:"description"`
	Creator     flexibleStrings `json:"creator"`
	PubDate     string          `json:"pubDate"`
	Category    flexibleStrings `json:"category"`
	Country     flexibleStrings `json:"country"`
	Keywords    flexibleStrings `json:"keywords"`
}

// flexibleStrings decodes a field the provider returns inconsistently:
// null, a bare string, or an array of strings.
type flexibleStrings []string

func (f *flexibleStrings) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		*f = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var values []string
		if err := json.Unmarshal(data, &values); err != nil {
			return err
		}
		*f = values
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	if single == "" {
		*f = nil
		return nil
	}
	*f = []string{single}
	return nil
}
