// Package i18n maps pipeline failures and notices to short user-facing
// messages in English and Romanian.
package i18n

import (
	"errors"
	"strings"

	"golang.org/x/text/language"

	"nutrifacts/internal/domain"
)

// Key identifies a message.
type Key string

// Message keys.
const (
	KeyValidation        Key = "validation"
	KeyUnauthenticated   Key = "unauthenticated"
	KeyInvalidCredential Key = "invalid_credential"
	KeyPermissionDenied  Key = "permission_denied"
	KeyCancelled         Key = "cancelled"
	KeyTimeout           Key = "timeout"
	KeyNetwork           Key = "network"
	KeyRecognition       Key = "recognition_failed"
	KeyPersistence       Key = "persistence_failed"
	KeyFetch             Key = "fetch_failed"
	KeyAccount           Key = "account_failed"
	KeyLoginRejected     Key = "login_rejected"
	KeyUnknown           Key = "unknown"
	KeySaved             Key = "saved"
	KeySaveWarning       Key = "save_warning"
	KeyLoggedIn          Key = "logged_in"
	KeyLoggedOut         Key = "logged_out"
	KeyRegistered        Key = "registered"
	KeyRefreshed         Key = "refreshed"
	KeyEmptyHistory      Key = "empty_history"
	KeyAlbumSaved        Key = "album_saved"
)

var supported = []language.Tag{language.English, language.Romanian}

var matcher = language.NewMatcher(supported)

var catalog = map[language.Tag]map[Key]string{
	language.English: {
		KeyValidation:        "Please enter the product name.",
		KeyUnauthenticated:   "You are not logged in. Please log in again.",
		KeyInvalidCredential: "Your session is invalid. Please log in again.",
		KeyPermissionDenied:  "Access to the camera or gallery was denied.",
		KeyCancelled:         "No image was selected.",
		KeyTimeout:           "The scan took too long. Please try again.",
		KeyNetwork:           "Cannot reach the server. Check your connection.",
		KeyRecognition:       "Could not read the nutrition label. Try a clearer photo.",
		KeyPersistence:       "The scan could not be saved.",
		KeyFetch:             "Could not load your history.",
		KeyAccount:           "The request could not be completed. Please try again.",
		KeyLoginRejected:     "Wrong email or password.",
		KeyUnknown:           "Something went wrong.",
		KeySaved:             "Saved to your history.",
		KeySaveWarning:       "Scan complete, but it was not saved to your history.",
		KeyLoggedIn:          "Logged in.",
		KeyLoggedOut:         "Logged out.",
		KeyRegistered:        "Account created. You can now log in.",
		KeyRefreshed:         "Session refreshed.",
		KeyEmptyHistory:      "No scans yet.",
		KeyAlbumSaved:        "Image saved to the NutriFacts album.",
	},
	language.Romanian: {
		KeyValidation:        "Introduceți numele produsului.",
		KeyUnauthenticated:   "Nu sunteți autentificat. Vă rugăm să vă autentificați din nou.",
		KeyInvalidCredential: "Sesiunea nu este validă. Vă rugăm să vă autentificați din nou.",
		KeyPermissionDenied:  "Accesul la cameră sau galerie a fost refuzat.",
		KeyCancelled:         "Nu a fost selectată nicio imagine.",
		KeyTimeout:           "Scanarea a durat prea mult. Încercați din nou.",
		KeyNetwork:           "Serverul nu poate fi contactat. Verificați conexiunea.",
		KeyRecognition:       "Eticheta nutrițională nu a putut fi citită. Încercați o fotografie mai clară.",
		KeyPersistence:       "Scanarea nu a putut fi salvată.",
		KeyFetch:             "Istoricul nu a putut fi încărcat.",
		KeyAccount:           "Cererea nu a putut fi finalizată. Încercați din nou.",
		KeyLoginRejected:     "Email sau parolă greșită.",
		KeyUnknown:           "A apărut o eroare.",
		KeySaved:             "Salvat în istoric.",
		KeySaveWarning:       "Scanare reușită, dar nu a fost salvată în istoric.",
		KeyLoggedIn:          "Autentificare reușită.",
		KeyLoggedOut:         "Ați fost deconectat.",
		KeyRegistered:        "Cont creat. Vă puteți autentifica.",
		KeyRefreshed:         "Sesiune reîmprospătată.",
		KeyEmptyHistory:      "Nicio scanare încă.",
		KeyAlbumSaved:        "Imagine salvată în albumul NutriFacts.",
	},
}

var detailLabels = map[string]string{
	"Total Fat":           "Grăsimi totale",
	"Saturated Fat":       "Grăsimi saturate",
	"Trans Fat":           "Grăsimi trans",
	"Cholesterol":         "Colesterol",
	"Sodium":              "Sodiu",
	"Total Carbohydrates": "Carbohidrați totali",
	"Dietary Fiber":       "Fibre",
	"Sugars":              "Zaharuri",
	"Protein":             "Proteine",
	"Calories":            "Calorii",
	"Water":               "Apă",
}

// Match returns the supported language closest to lang, which may be a
// BCP 47 tag, an Accept-Language list or a POSIX locale such as
// "ro_RO.UTF-8". English is the fallback.
func Match(lang string) language.Tag {
	lang = strings.TrimSpace(lang)
	if !strings.ContainsAny(lang, ",;") {
		// POSIX locale: drop the .charset and @modifier suffixes.
		if i := strings.IndexAny(lang, ".@"); i >= 0 {
			lang = lang[:i]
		}
		lang = strings.ReplaceAll(lang, "_", "-")
	}
	_, idx := language.MatchStrings(matcher, lang)
	return supported[idx]
}

// Text returns the message for key in lang.
func Text(key Key, lang string) string {
	if s, ok := catalog[Match(lang)][key]; ok {
		return s
	}
	return catalog[language.English][key]
}

// KeyFor classifies err. Transport failures and timeouts get their own keys
// whatever operation they interrupted.
func KeyFor(err error) Key {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrTimeout):
		return KeyTimeout
	case errors.Is(err, domain.ErrNetwork):
		return KeyNetwork
	case errors.Is(err, domain.ErrLoginRejected):
		return KeyLoginRejected
	case errors.Is(err, domain.ErrUnauthenticated):
		return KeyUnauthenticated
	case errors.Is(err, domain.ErrInvalidCredential):
		return KeyInvalidCredential
	case errors.Is(err, domain.ErrPermissionDenied):
		return KeyPermissionDenied
	case errors.Is(err, domain.ErrCancelled):
		return KeyCancelled
	case errors.Is(err, domain.ErrValidation):
		return KeyValidation
	case errors.Is(err, domain.ErrRecognitionFailed):
		return KeyRecognition
	case errors.Is(err, domain.ErrPersistenceFailed):
		return KeyPersistence
	case errors.Is(err, domain.ErrFetchFailed):
		return KeyFetch
	case errors.Is(err, domain.ErrAccountFailed):
		return KeyAccount
	default:
		return KeyUnknown
	}
}

// Message returns the user-facing text for err in lang, or "" for nil.
func Message(err error, lang string) string {
	key := KeyFor(err)
	if key == "" {
		return ""
	}
	return Text(key, lang)
}

// DetailLabel translates a detail row label.
func DetailLabel(label, lang string) string {
	if Match(lang) == language.Romanian {
		if s, ok := detailLabels[label]; ok {
			return s
		}
	}
	return label
}
