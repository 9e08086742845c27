package order

import (
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"orderflow/internal/config"
	"orderflow/internal/observability"
	"orderflow/internal/order/controller"
	orderrepo "orderflow/internal/order/repository"
	"orderflow/internal/order/service"
	"orderflow/internal/order/usecase"
)

func NewModule(
	db *sqlx.DB,
	cfg config.OrderConfig,
	catalog usecase.ProductCatalog,
	notifier usecase.ChangeNotifier,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *controller.LifecycleController {
	orderRepo := orderrepo.NewMySQLOrderRepository(db, cfg.TxTimeout)

	stateMachine := service.NewOrderStateMachine(nil)
	ledger := service.NewAdjustmentLedger(nil, nil)
	tracker := service.NewDeliveryTracker(ledger, service.WithBatchWindow(cfg.BatchWindow))

	uc := usecase.NewLifecycleUseCase(
		orderRepo,
		catalog,
		stateMachine,
		ledger,
		tracker,
		notifier,
		metrics,
		logger,
		cfg.MaxRetryAttempts,
	)

	return controller.NewLifecycleController(uc, logger)
}
