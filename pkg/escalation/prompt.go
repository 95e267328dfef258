package escalation

import (
	"fmt"
	"strings"

	"github.com/fleetops/tracker/pkg/config"
)

// systemPromptParams is the typed parameter record the prompt is built
// from — spec Design Note §9: "build with a typed parameter record; never
// concatenate user-supplied strings into the storage SQL layer."
type systemPromptParams struct {
	locale             config.LocaleConfig
	languageCode       string
	tripID             string
	unitLabel          string
	stoppedMinutes     int
	lat, lng           float64
	thresholdMinutes   int
	contextMotive      string
	customInstructions string
}

// buildSystemPrompt renders the locale-branching system prompt template
// described in §4.6.2.
func buildSystemPrompt(p systemPromptParams) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s\n\n", fmt.Sprintf(p.locale.SystemPromptIntro, p.locale.CompanyName))
	fmt.Fprintf(&sb, "Viaje: %s. Unidad/placas: %s.\n", p.tripID, p.unitLabel)
	fmt.Fprintf(&sb, "Minutos detenida: %d. Coordenadas: %.4f, %.4f. Umbral configurado: %d minutos.\n\n",
		p.stoppedMinutes, p.lat, p.lng, p.thresholdMinutes)

	sb.WriteString("Durante la llamada debes:\n")
	sb.WriteString("1. Presentarte.\n")
	sb.WriteString("2. Informar el motivo de la llamada.\n")
	sb.WriteString("3. Preguntar la situación actual de la unidad.\n")
	sb.WriteString("4. Preguntar el tiempo estimado de llegada (ETA).\n")
	sb.WriteString("5. Despedirte cordialmente.\n\n")

	sb.WriteString("Reglas:\n")
	sb.WriteString("- Sé breve y profesional.\n")
	sb.WriteString("- Nunca leas las coordenadas exactas en voz alta.\n")
	sb.WriteString("- Si se trata de una emergencia, indica que se está escalando soporte de inmediato.\n")
	if p.languageCode == "es" {
		sb.WriteString("- Usa español mexicano en toda la conversación.\n")
	}

	if p.contextMotive != "" {
		sb.WriteString("\nContexto de la llamada: ")
		sb.WriteString(p.contextMotive)
		sb.WriteString("\n")
	}

	if p.customInstructions != "" {
		sb.WriteString("\n")
		sb.WriteString(p.customInstructions)
	}

	return sb.String()
}

// buildGreeting renders the locale's first-message template with the
// locale's company name and the unit label. The recipient role and the
// stopped-minutes count are not part of the greeting.
func buildGreeting(locale config.LocaleConfig, unitLabel string) string {
	return fmt.Sprintf(locale.GreetingTemplate, locale.CompanyName, unitLabel)
}

func localeFor(cfg *config.Config, code string) config.LocaleConfig {
	return cfg.Locale(code)
}
