package sidebar

import "fmt"

type textKey int

const (
	textThinking textKey = iota
	textAuthRequired
	textFailed
	textDone
	textInsertReady
	textInserted
	textHighlightCount
	textHighlighted
	textEmptyQuery
)

var texts = map[string]map[textKey]string{
	"en": {
		textThinking:       "Thinking...",
		textAuthRequired:   "Authorization required. Please allow access to your spreadsheet and try again.",
		textFailed:         "Something went wrong: %s",
		textDone:           "Done.",
		textInsertReady:    "The answer contains a table you can insert into the sheet.",
		textInserted:       "Inserted %d rows.",
		textHighlightCount: "%d matching rows.",
		textHighlighted:    "Highlighted %d rows.",
		textEmptyQuery:     "Please type a question.",
	},
	"es": {
		textThinking:       "Pensando...",
		textAuthRequired:   "Se requiere autorización. Permite el acceso a tu hoja de cálculo e inténtalo de nuevo.",
		textFailed:         "Algo salió mal: %s",
		textDone:           "Listo.",
		textInsertReady:    "La respuesta contiene una tabla que puedes insertar en la hoja.",
		textInserted:       "Se insertaron %d filas.",
		textHighlightCount: "%d filas coinciden.",
		textHighlighted:    "Se resaltaron %d filas.",
		textEmptyQuery:     "Escribe una pregunta.",
	},
	"fr": {
		textThinking:       "Réflexion...",
		textAuthRequired:   "Autorisation requise. Autorisez l'accès à votre feuille de calcul puis réessayez.",
		textFailed:         "Une erreur est survenue : %s",
		textDone:           "Terminé.",
		textInsertReady:    "La réponse contient un tableau que vous pouvez insérer dans la feuille.",
		textInserted:       "%d lignes insérées.",
		textHighlightCount: "%d lignes correspondantes.",
		textHighlighted:    "%d lignes surlignées.",
		textEmptyQuery:     "Veuillez saisir une question.",
	},
	"de": {
		textThinking:       "Denke nach...",
		textAuthRequired:   "Autorisierung erforderlich. Bitte erlaube den Zugriff auf deine Tabelle und versuche es erneut.",
		textFailed:         "Etwas ist schiefgelaufen: %s",
		textDone:           "Fertig.",
		textInsertReady:    "Die Antwort enthält eine Tabelle, die du in das Blatt einfügen kannst.",
		textInserted:       "%d Zeilen eingefügt.",
		textHighlightCount: "%d passende Zeilen.",
		textHighlighted:    "%d Zeilen hervorgehoben.",
		textEmptyQuery:     "Bitte gib eine Frage ein.",
	},
}

func localize(locale string, key textKey, args ...interface{}) string {
	table, ok := texts[locale]
	if !ok {
		table = texts["en"]
	}
	s, ok := table[key]
	if !ok {
		s = texts["en"][key]
	}
	if len(args) > 0 {
		return fmt.Sprintf(s, args...)
	}
	return s
}
