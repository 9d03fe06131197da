package push

import (
	"fmt"
	"strings"
)

// DefaultSound is the builtin sound used when a user has no preference.
const DefaultSound = "default"

// ResolveSoundURL turns a stored notification-sound preference into an
// absolute URL. A preference that is already a URL (custom uploaded clip)
// is used verbatim; a bare identifier is templated into the app's static
// sounds path; an empty preference falls back to the default sound.
func ResolveSoundURL(pref, baseURL string) string {
	if pref == "" {
		pref = DefaultSound
	}
	if strings.HasPrefix(pref, "http") {
		return pref
	}
	return fmt.Sprintf("%s/sounds/%s.mp3", baseURL, pref)
}
