package escalation

import (
	"fmt"

	"github.com/fleetops/tracker/pkg/models"
)

// baseMotive is minutes-stopped, last coord to 6 decimals, and the
// configured threshold (§4.6 step 4).
func baseMotive(ev *models.StopEvent) string {
	return fmt.Sprintf(
		"La unidad lleva %d minutos detenida (umbral %d min) en la posición %.6f, %.6f.",
		ev.StoppedMinutes, ev.Threshold, ev.LastLat, ev.LastLng,
	)
}

// operatorHandoffMotive builds the contextual motive for a coordinator
// call, depending on whether the prior operator call was answered
// (§4.6 step "for any coordinator").
func operatorHandoffMotive(base string, operatorAnswered bool, operatorSummary string) string {
	if operatorAnswered {
		return fmt.Sprintf("%s Ya se llamó al operador y dijo: %s", base, operatorSummary)
	}
	return fmt.Sprintf("%s El operador no contestó; infórmale al coordinador.", base)
}
