package assets

import (
	"fmt"
	"net/url"
	"strings"
)

// URLForm selects the template used to turn a file id into a CardURL.
// A deployment uses exactly one form.
type URLForm string

const (
	FormThumbnail URLForm = "thumbnail"
	FormView      URLForm = "view"
	FormLocal     URLForm = "local"
)

// ParseURLForm validates s as a URLForm. An empty string selects FormThumbnail.
func ParseURLForm(s string) (URLForm, error) {
	switch f := URLForm(s); f {
	case "":
		return FormThumbnail, nil
	case FormThumbnail, FormView, FormLocal:
		return f, nil
	default:
		return "", fmt.Errorf("unknown url form %q", s)
	}
}

// CardURL derives the display URL for a file id.
func (f URLForm) CardURL(id string) string {
	switch f {
	case FormView:
		return "https://drive.google.com/uc?id=" + id
	case FormLocal:
		parts := strings.Split(id, "/")
		for i, p := range parts {
			parts[i] = url.PathEscape(p)
		}
		return "/cards/" + strings.Join(parts, "/")
	default:
		return "https://drive.google.com/thumbnail?id=" + id + "&sz=w1000"
	}
}
