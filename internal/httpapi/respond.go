package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Cray-HPE/ims-sub000/internal/apierrors"
)

// writeJSON writes a JSON response with status, matching the teacher's
// handlers.writeJSON helper.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeProblem renders err as an RFC 7807 application/problem+json body,
// extracting an *apierrors.Problem from its chain if present and falling
// back to a generic Internal problem otherwise (§7).
func writeProblem(w http.ResponseWriter, r *http.Request, err error) {
	p, ok := apierrors.As(err)
	if !ok {
		p = apierrors.Wrap(apierrors.KindInternal, err.Error(), err)
	}
	p.Instance = r.URL.Path

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	json.NewEncoder(w).Encode(struct {
		Type     string `json:"type"`
		Title    string `json:"title"`
		Detail   string `json:"detail"`
		Status   int    `json:"status"`
		Instance string `json:"instance,omitempty"`
	}{
		Type:     p.Type(),
		Title:    p.Title,
		Detail:   p.Detail,
		Status:   p.Status,
		Instance: p.Instance,
	})
}

// queryBool parses a boolean query parameter the way the original
// resources did (request.args.get(name, default).lower() in [...]),
// so an absent or unrecognized value falls back to def rather than
// erroring.
func queryBool(r *http.Request, name string, def bool) bool {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return def
	}
}

// decodeBody decodes r's JSON body into v, reporting an empty body as
// MissingInput (§7) rather than a generic decode error.
func decodeBody(r *http.Request, v any) error {
	if r.ContentLength == 0 {
		return apierrors.New(apierrors.KindMissingInput, "request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apierrors.Wrap(apierrors.KindMissingInput, "request body is not valid JSON", err)
	}
	return nil
}
