package ports

import (
	"context"

	"github.com/driftmark/keeper/internal/domain"
)

// Notifier presenta el estado del keeper al operador.
type Notifier interface {
	// Notify imprime la línea de estado de cada ciclo: últimos precios
	// conocidos y contadores de la sesión.
	Notify(ctx context.Context, prices []domain.PriceSnapshot, stats domain.SessionStats) error

	// Summary imprime el informe final de la sesión al apagar.
	Summary(stats domain.SessionStats)
}
