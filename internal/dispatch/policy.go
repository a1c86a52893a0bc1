package dispatch

import (
	"fmt"
	"strings"

	"github.com/dropDatabas3/hellomail/internal/domain/repository"
)

// StatusPolicy decide el estado final a partir de los resultados por destinatario.
type StatusPolicy string

const (
	// PolicyPipeline: siempre "sent" al completar el recorrido, aun con fallos parciales o totales.
	PolicyPipeline StatusPolicy = "pipeline"
	// PolicyStrict: "sent" si todos salieron, "partially_sent" si alguno, "failed" si ninguno.
	PolicyStrict StatusPolicy = "strict"
)

// ParseStatusPolicy acepta "" (pipeline), "pipeline" o "strict".
func ParseStatusPolicy(s string) (StatusPolicy, error) {
	switch StatusPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyPipeline:
		return PolicyPipeline, nil
	case PolicyStrict:
		return PolicyStrict, nil
	}
	return "", fmt.Errorf("dispatch: unknown status policy %q", s)
}

func (p StatusPolicy) finalStatus(r *Result) (repository.EmailStatus, string) {
	if p != PolicyStrict {
		return repository.EmailSent, ""
	}
	switch {
	case r.Failed == 0:
		return repository.EmailSent, ""
	case r.Sent == 0:
		return repository.EmailFailed, fmt.Sprintf("all %d recipients failed", r.Total)
	default:
		return repository.EmailPartiallySent, fmt.Sprintf("%d of %d recipients failed", r.Failed, r.Total)
	}
}
