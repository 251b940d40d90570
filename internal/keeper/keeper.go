package keeper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/driftmark/keeper/internal/domain"
	"github.com/driftmark/keeper/internal/ports"
)

const (
	// outcomeQueueSize bounds the background-outcome queue. A tick produces
	// at most one outcome per configured asset plus one funding outcome.
	outcomeQueueSize = 256

	// shutdownGrace is how long we wait for in-flight background tasks
	// before rendering the final report anyway.
	shutdownGrace = 15 * time.Second
)

// Config contiene la configuración del keeper.
type Config struct {
	PollInterval    time.Duration
	OracleInterval  time.Duration
	FundingInterval time.Duration
	WritePacing     time.Duration // pause between same-signer oracle writes
	Assets          []domain.Asset
	Once            bool // run a single cycle and exit
}

// DefaultConfig devuelve una configuración sensata para producción.
func DefaultConfig() Config {
	return Config{
		PollInterval:    5 * time.Second,
		OracleInterval:  30 * time.Second,
		FundingInterval: time.Hour,
		WritePacing:     1500 * time.Millisecond,
	}
}

// Keeper is the orchestration core: one control loop driving the four
// maintenance tasks against the chain gateway.
//
// Concurrency model: the loop goroutine owns SessionStats and the schedule
// timestamps. Oracle refresh and funding settlement are dispatched as
// background units of work that report through a buffered outcome queue,
// drained at tick boundaries — so a slow oracle push never delays the
// liquidation and order scans, and stats stay single-writer. Write
// serialization for the shared signing identity is the gateway's job.
type Keeper struct {
	cfg      Config
	gateway  ports.ChainGateway
	prices   ports.PriceSource
	journal  ports.Journal // optional, may be nil
	notifier ports.Notifier

	stats       domain.SessionStats
	lastOracle  time.Time // zero = never run
	lastFunding time.Time // zero = never run

	snapMu    sync.RWMutex
	snapshots map[string]domain.PriceSnapshot

	pace     *rate.Limiter // spaces consecutive oracle writes
	outcomes chan domain.TaskOutcome
	bg       sync.WaitGroup
}

// New crea un Keeper con todas las dependencias inyectadas.
// journal puede ser nil para deshabilitar el journal de transacciones.
func New(
	cfg Config,
	gateway ports.ChainGateway,
	prices ports.PriceSource,
	journal ports.Journal,
	notifier ports.Notifier,
) *Keeper {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.OracleInterval <= 0 {
		cfg.OracleInterval = DefaultConfig().OracleInterval
	}
	if cfg.FundingInterval <= 0 {
		cfg.FundingInterval = DefaultConfig().FundingInterval
	}
	if cfg.WritePacing <= 0 {
		cfg.WritePacing = DefaultConfig().WritePacing
	}

	return &Keeper{
		cfg:       cfg,
		gateway:   gateway,
		prices:    prices,
		journal:   journal,
		notifier:  notifier,
		stats:     domain.NewSessionStats(),
		snapshots: make(map[string]domain.PriceSnapshot),
		pace:      rate.NewLimiter(rate.Every(cfg.WritePacing), 1),
		outcomes:  make(chan domain.TaskOutcome, outcomeQueueSize),
	}
}

// Run ejecuta el loop del keeper hasta que el contexto se cancele.
// La señal de stop se observa solo en los límites de tick: el tick en
// curso siempre termina y el informe final se imprime antes de salir.
func (k *Keeper) Run(ctx context.Context) error {
	slog.Info("keeper starting",
		"poll_interval", k.cfg.PollInterval,
		"oracle_interval", k.cfg.OracleInterval,
		"funding_interval", k.cfg.FundingInterval,
		"assets", len(k.cfg.Assets),
		"once", k.cfg.Once,
	)

	k.safeTick(ctx)

	if k.cfg.Once {
		k.shutdown(ctx)
		return nil
	}

	ticker := time.NewTicker(k.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("keeper stopping")
			k.shutdown(ctx)
			return nil
		case <-ticker.C:
			k.safeTick(ctx)
		}
	}
}

// Stats devuelve una copia de los contadores de la sesión.
func (k *Keeper) Stats() domain.SessionStats {
	return k.stats
}

// safeTick runs one tick with a catch-all: nothing escaping a dispatch may
// kill the loop — it becomes one error count and life goes on.
func (k *Keeper) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("keeper: tick panicked", "panic", r)
			k.stats.Errors++
		}
	}()
	k.tick(ctx)
}

// tick ejecuta un ciclo completo: oracle (background) → liquidaciones →
// órdenes → funding (background) → línea de estado.
func (k *Keeper) tick(ctx context.Context) {
	k.drainOutcomes()
	now := time.Now()

	// Oracle first, without waiting: its internal pacing serializes the
	// per-asset writes, and a slow price push must not starve the scans.
	if now.Sub(k.lastOracle) >= k.cfg.OracleInterval {
		k.lastOracle = now
		k.dispatch(ctx, k.updateOracle)
	}

	if err := k.checkLiquidations(ctx); err != nil {
		slog.Error("keeper: liquidation scan failed", "err", err)
		k.stats.Errors++
	}

	if err := k.checkOrders(ctx); err != nil {
		slog.Error("keeper: order scan failed", "err", err)
		k.stats.Errors++
	}

	if now.Sub(k.lastFunding) >= k.cfg.FundingInterval {
		k.lastFunding = now
		k.dispatch(ctx, k.applyFunding)
	}

	k.drainOutcomes()

	if err := k.notifier.Notify(ctx, k.latestPrices(), k.stats); err != nil {
		slog.Warn("keeper: notifier error", "err", err)
	}
}

// dispatch lanza una tarea en background que reporta por la cola de
// outcomes. El contexto se desacopla de la cancelación: una tarea en vuelo
// se termina, no se interrumpe a mitad de una transacción ya firmada.
func (k *Keeper) dispatch(ctx context.Context, task func(context.Context)) {
	bgCtx := context.WithoutCancel(ctx)
	k.bg.Add(1)
	go func() {
		defer k.bg.Done()
		task(bgCtx)
	}()
}

// report encola un outcome producido por una tarea en background.
func (k *Keeper) report(o domain.TaskOutcome) {
	select {
	case k.outcomes <- o:
	default:
		// Should not happen with a sane queue size; losing an error count
		// is worse than a noisy log line.
		slog.Warn("keeper: outcome queue full, dropping", "task", o.Task, "kind", o.Kind)
	}
}

// drainOutcomes aplica todos los outcomes pendientes de tareas background.
func (k *Keeper) drainOutcomes() {
	for {
		select {
		case o := <-k.outcomes:
			k.stats.Apply(o)
		default:
			return
		}
	}
}

// shutdown espera (acotado) a las tareas en vuelo y pinta el informe final.
func (k *Keeper) shutdown(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		k.bg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(shutdownGrace):
		slog.Warn("keeper: background tasks still in flight after grace period")
	}

	k.drainOutcomes()
	k.notifier.Summary(k.stats)
}

// setSnapshot sobreescribe el último precio conocido de un asset.
func (k *Keeper) setSnapshot(snap domain.PriceSnapshot) {
	k.snapMu.Lock()
	k.snapshots[snap.Asset] = snap
	k.snapMu.Unlock()
}

// latestPrices devuelve los snapshots en el orden configurado de assets.
func (k *Keeper) latestPrices() []domain.PriceSnapshot {
	k.snapMu.RLock()
	defer k.snapMu.RUnlock()

	out := make([]domain.PriceSnapshot, 0, len(k.snapshots))
	for _, a := range k.cfg.Assets {
		if snap, ok := k.snapshots[a.Symbol]; ok {
			out = append(out, snap)
		}
	}
	return out
}

// recordTx escribe la transacción en el journal si está habilitado.
func (k *Keeper) recordTx(ctx context.Context, rec ports.TxRecord) {
	if k.journal == nil {
		return
	}
	rec.SubmittedAt = time.Now().UTC()
	if err := k.journal.RecordTx(ctx, rec); err != nil {
		slog.Warn("keeper: journal write failed", "err", err)
	}
}
