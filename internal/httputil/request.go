package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// maxRequestBody bounds turn request bodies; inline attachments are already
// text, so anything larger is abuse rather than a legitimate turn.
const maxRequestBody = 10 << 20

// ParseJSON decodes the request body into dest. Unknown fields pass through;
// turn requests are validated downstream where the tenant config is known.
func ParseJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
