package importer

import "strings"

// Alias lists for the logical fields the engine recognizes, covering the
// Spanish and English header spellings seen in real exports. Order matters:
// the substring fallback takes the first alias that matches.
var (
	studentNameAliases = []string{"nombre", "name", "estudiante", "student", "alumno"}
	studentIDAliases   = []string{"rut", "id", "cedula", "identificacion"}
	courseAliases      = []string{"curso", "course", "grade", "nivel", "grado"}
	sectionAliases     = []string{"seccion", "sección", "section", "sala"}
	subjectAliases     = []string{"asignatura", "subject", "materia", "subject_name"}
	dateAliases        = []string{"fecha", "date", "timestamp"}
	typeAliases        = []string{"tipo", "type", "categoria", "category"}
	scoreAliases       = []string{"nota", "score", "calificacion", "grade", "puntos", "calificación"}
	statusAliases      = []string{"estado", "status", "asistencia", "attendance"}
	teacherAliases     = []string{"profesor", "teacher", "docente", "prof"}
	topicAliases       = []string{"tema", "topic", "theme"}
	titleAliases       = []string{"actividad", "activity", "title", "titulo"}
)

// ExtractField resolves a logical field from a row: first an exact
// case-insensitive header match, then a substring match in header order so
// partial headers like "nota final" still resolve. Returns "" when nothing
// matches.
func ExtractField(headers []string, row map[string]string, aliases []string) string {
	for _, alias := range aliases {
		lowered := strings.ToLower(alias)
		if value, ok := row[lowered]; ok {
			return strings.TrimSpace(value)
		}
	}

	for _, alias := range aliases {
		lowered := strings.ToLower(alias)
		for _, header := range headers {
			if strings.Contains(header, lowered) {
				return strings.TrimSpace(row[header])
			}
		}
	}

	return ""
}
