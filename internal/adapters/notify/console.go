package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/driftmark/keeper/internal/domain"
)

// Console implementa ports.Notifier.
type Console struct {
	out io.Writer
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Notify imprime la línea de estado del ciclo: últimos precios conocidos
// y contadores de la sesión.
func (c *Console) Notify(_ context.Context, prices []domain.PriceSnapshot, stats domain.SessionStats) error {
	now := time.Now().Format("15:04:05")

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s]", now)

	if len(prices) == 0 {
		sb.WriteString(" prices: none yet")
	} else {
		for _, p := range prices {
			fmt.Fprintf(&sb, " %s=%s", p.Asset, p.Price.StringFixed(2))
		}
	}

	fmt.Fprintf(&sb, " | liq:%d ord:%d slip:%d orph:%d err:%d rwd:%s",
		stats.Liquidations,
		stats.OrdersExecuted,
		stats.OrdersSlippage,
		stats.OrdersOrphaned,
		stats.Errors,
		domain.FormatAmount(stats.RewardEarned),
	)

	fmt.Fprintln(c.out, sb.String())
	return nil
}

// Summary imprime el informe final de la sesión.
func (c *Console) Summary(stats domain.SessionStats) {
	fmt.Fprintf(c.out, "\n=== KEEPER SESSION SUMMARY ===\n")

	table := tablewriter.NewWriter(c.out)
	table.Header("Metric", "Value")
	table.Append("Runtime", stats.Elapsed().Round(time.Second).String())
	table.Append("Oracle updates", fmt.Sprintf("%d", stats.OracleUpdates))
	table.Append("Liquidations", fmt.Sprintf("%d", stats.Liquidations))
	table.Append("Orders executed", fmt.Sprintf("%d", stats.OrdersExecuted))
	table.Append("Orders cancelled (slippage)", fmt.Sprintf("%d", stats.OrdersSlippage))
	table.Append("Orders skipped (orphaned)", fmt.Sprintf("%d", stats.OrdersOrphaned))
	table.Append("Funding settlements", fmt.Sprintf("%d", stats.FundingApplied))
	table.Append("Errors", fmt.Sprintf("%d", stats.Errors))
	table.Append("Total reward", domain.FormatAmount(stats.RewardEarned))
	table.Render()
}
