package widget

// Themes are the names accepted by setTheme.
var Themes = []string{"light", "dark"}

var messages = map[string]map[string]string{
	"en": {
		"title":        "JSON editor",
		"titleField":   "Document title",
		"save":         "Save",
		"close":        "Close",
		"saved":        "Saved",
		"savedLocally": "Saved on this device",
		"invalidJson":  "The document is not valid JSON",
		"missingTitle": "Enter a title first",
		"documents":    "Saved documents",
	},
	"es": {
		"title":        "Editor JSON",
		"titleField":   "Título del documento",
		"save":         "Guardar",
		"close":        "Cerrar",
		"saved":        "Guardado",
		"savedLocally": "Guardado en este dispositivo",
		"invalidJson":  "El documento no es JSON válido",
		"missingTitle": "Introduce un título",
		"documents":    "Documentos guardados",
	},
}

// Messages returns the UI strings for locale, falling back to English.
func Messages(locale string) map[string]string {
	if m, ok := messages[locale]; ok {
		return m
	}
	return messages["en"]
}
