package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hyeonlabs/guideport-backend/pkg/config"
	"github.com/hyeonlabs/guideport-backend/pkg/db"
	"github.com/hyeonlabs/guideport-backend/pkg/db/models"
	"github.com/hyeonlabs/guideport-backend/pkg/enums"
	pkgerrors "github.com/hyeonlabs/guideport-backend/pkg/errors"
	"github.com/hyeonlabs/guideport-backend/pkg/logger"
	"github.com/hyeonlabs/guideport-backend/pkg/metrics"
	"github.com/hyeonlabs/guideport-backend/pkg/outbox"
	"github.com/hyeonlabs/guideport-backend/pkg/period"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type nameResolver interface {
	ResolveNames(ctx context.Context, ids []uuid.UUID) map[uuid.UUID]string
}

const (
	opPreview  = "preview"
	opLock     = "lock"
	opResume   = "resume"
	opMarkPaid = "mark_paid"
)

// Service owns the monthly settlement ledger: previewing, locking a period
// into immutable run and guide rows, resuming partial commits, and tracking
// payouts against the locked rows.
type Service interface {
	Preview(ctx context.Context, input PreviewInput) (*PreviewResult, error)
	Lock(ctx context.Context, input LockInput) (*LockResult, error)
	Resume(ctx context.Context, input ResumeInput) (*ResumeResult, error)
	MarkPaid(ctx context.Context, input MarkPaidInput) (*models.GuideSettlement, error)
	GetRun(ctx context.Context, key period.Key) (*RunDetail, error)
	ListRuns(ctx context.Context, limit int) ([]models.SettlementRun, error)
	GetGuideSettlement(ctx context.Context, key period.Key, guideID uuid.UUID) (*models.GuideSettlement, error)
	ListGuideSettlements(ctx context.Context, guideID uuid.UUID, limit int) ([]models.GuideSettlement, error)
	ExportCSV(ctx context.Context, key period.Key) ([]byte, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	names   nameResolver
	cfg     config.SettlementConfig
	metrics *metrics.SettlementMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds a settlement service with the required dependencies.
// Metrics and logger may be nil.
func NewService(
	repo Repository,
	tx txRunner,
	outboxSvc outboxPublisher,
	names nameResolver,
	cfg config.SettlementConfig,
	settlementMetrics *metrics.SettlementMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if names == nil {
		return nil, fmt.Errorf("guide name resolver required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 430
	}
	if cfg.AuditLineCap <= 0 {
		cfg.AuditLineCap = 200
	}
	if cfg.DefaultCommissionPct <= 0 {
		cfg.DefaultCommissionPct = 10
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  outboxSvc,
		names:   names,
		cfg:     cfg,
		metrics: settlementMetrics,
		logg:    logg,
		now:     time.Now,
	}, nil
}

func (s *service) Preview(ctx context.Context, input PreviewInput) (*PreviewResult, error) {
	if !input.PeriodKey.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid period %q", input.PeriodKey))
	}
	pct, err := s.resolveCommissionPct(input.CommissionPct)
	if err != nil {
		return nil, err
	}
	key := input.PeriodKey.String()

	locked := false
	if _, err := s.repo.FindRun(ctx, key); err == nil {
		locked = true
	} else if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settlement run")
	}

	orders, err := s.repo.CollectConfirmedOrders(ctx, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "collect confirmed orders")
	}

	calc := Calculate(toOrderInputs(orders), pct, s.cfg.AuditLineCap)
	names := s.names.ResolveNames(ctx, guideIDsOf(calc.Guides))

	result := &PreviewResult{
		PeriodKey:     key,
		CommissionPct: pct,
		Locked:        locked,
		Totals:        calc.Totals,
		Guides:        make([]GuidePreview, 0, len(calc.Guides)),
	}
	for _, agg := range calc.Guides {
		result.Guides = append(result.Guides, GuidePreview{
			GuideID:    agg.GuideID,
			GuideName:  names[agg.GuideID],
			OrderCount: agg.OrderCount,
			Gross:      agg.Gross,
			Fee:        agg.Fee,
			Net:        agg.Net,
		})
	}
	s.metrics.IncSuccess(opPreview)
	return result, nil
}

func (s *service) Lock(ctx context.Context, input LockInput) (*LockResult, error) {
	started := s.now()
	result, err := s.lock(ctx, input)
	s.metrics.ObserveDuration(opLock, s.now().Sub(started))
	if err != nil {
		s.metrics.IncFailure(opLock)
		return nil, err
	}
	s.metrics.IncSuccess(opLock)
	return result, nil
}

func (s *service) lock(ctx context.Context, input LockInput) (*LockResult, error) {
	if !input.PeriodKey.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid period %q", input.PeriodKey))
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	pct, err := s.resolveCommissionPct(input.CommissionPct)
	if err != nil {
		return nil, err
	}
	key := input.PeriodKey.String()
	if s.logg != nil {
		ctx = s.logg.WithPeriod(ctx, key)
	}

	// Cheap guard before collecting; the conditional insert below is the
	// authoritative one.
	if _, err := s.repo.FindRun(ctx, key); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeAlreadyLocked, fmt.Sprintf("period %s is already locked", key))
	} else if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settlement run")
	}

	orders, err := s.repo.CollectConfirmedOrders(ctx, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "collect confirmed orders")
	}
	if len(orders) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNothingToSettle, fmt.Sprintf("no confirmed orders in period %s", key))
	}
	for _, order := range orders {
		if order.GuideID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeMissingGuide,
				fmt.Sprintf("order %s has no guide reference", order.ID))
		}
	}

	calc := Calculate(toOrderInputs(orders), pct, s.cfg.AuditLineCap)
	names := s.names.ResolveNames(ctx, guideIDsOf(calc.Guides))

	now := s.now()
	run := &models.SettlementRun{
		PeriodKey:     key,
		CommissionPct: pct,
		TotalGross:    calc.Totals.Gross,
		TotalFee:      calc.Totals.Fee,
		TotalNet:      calc.Totals.Net,
		OrderCount:    calc.Totals.OrderCount,
		GuideCount:    calc.Totals.GuideCount,
		LockedBy:      input.ActorID,
		LockedAt:      now,
	}
	guideRows := make([]models.GuideSettlement, 0, len(calc.Guides))
	for _, agg := range calc.Guides {
		name, ok := names[agg.GuideID]
		if !ok && s.logg != nil {
			s.logg.Warn(s.logg.WithGuideID(ctx, agg.GuideID.String()), "guide name unresolved; storing blank")
		}
		guideRows = append(guideRows, models.GuideSettlement{
			PeriodKey:    key,
			GuideID:      agg.GuideID,
			GuideName:    name,
			Gross:        agg.Gross,
			Fee:          agg.Fee,
			Net:          agg.Net,
			OrderCount:   agg.OrderCount,
			OrderLines:   agg.OrderLines,
			PayoutStatus: enums.PayoutStatusUnpaid,
		})
	}

	orderIDs := make([]uuid.UUID, 0, len(orders))
	for _, order := range orders {
		orderIDs = append(orderIDs, order.ID)
	}

	// The first batch must carry the run row and every guide row so a
	// partially committed period still has its full aggregate snapshot.
	// Order flips fill whatever capacity remains. When guide rows alone
	// exceed BatchSize the first transaction runs oversized rather than
	// splitting the snapshot; firstCap floors at 0 and every order flip
	// moves to the follow-up batches.
	firstCap := s.cfg.BatchSize - 1 - len(guideRows)
	if firstCap < 0 {
		firstCap = 0
	}
	if firstCap > len(orderIDs) {
		firstCap = len(orderIDs)
	}

	var settledTotal int64
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if err := repo.CreateRun(ctx, run); err != nil {
			if db.IsUniqueViolation(err, "settlement_runs") {
				return pkgerrors.New(pkgerrors.CodeAlreadyLocked, fmt.Sprintf("period %s is already locked", key))
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create settlement run")
		}
		if err := repo.CreateGuideSettlements(ctx, guideRows); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create guide settlements")
		}

		affected, err := s.settleChunk(ctx, repo, orderIDs[:firstCap], now)
		if err != nil {
			return err
		}
		settledTotal += affected

		if firstCap == len(orderIDs) {
			return s.completeRun(ctx, repo, tx, run, input.ActorID, input.ActorRole, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Later batches commit independently. A failure here leaves the run
	// partial (completed_at stays NULL); resume picks up the remainder.
	if firstCap < len(orderIDs) {
		remaining := orderIDs[firstCap:]
		for start := 0; start < len(remaining); start += s.cfg.BatchSize {
			end := start + s.cfg.BatchSize
			if end > len(remaining) {
				end = len(remaining)
			}
			chunk := remaining[start:end]
			err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
				affected, err := s.settleChunk(ctx, s.repo.WithTx(tx), chunk, now)
				if err != nil {
					return err
				}
				settledTotal += affected
				return nil
			})
			if err != nil {
				s.metrics.AddOrdersSettled(int(settledTotal))
				return nil, s.partialCommit(ctx, key, err)
			}
		}
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.completeRun(ctx, s.repo.WithTx(tx), tx, run, input.ActorID, input.ActorRole, now)
		})
		if err != nil {
			s.metrics.AddOrdersSettled(int(settledTotal))
			return nil, s.partialCommit(ctx, key, err)
		}
	}

	s.metrics.AddOrdersSettled(int(settledTotal))
	completedAt := run.LockedAt
	run.CompletedAt = &completedAt
	if s.logg != nil {
		s.logg.Info(ctx, fmt.Sprintf("settlement locked: %d orders, %d guides, net %d",
			run.OrderCount, run.GuideCount, run.TotalNet))
	}
	return &LockResult{Run: run, Guides: guideRows}, nil
}

func (s *service) Resume(ctx context.Context, input ResumeInput) (*ResumeResult, error) {
	started := s.now()
	result, err := s.resume(ctx, input)
	s.metrics.ObserveDuration(opResume, s.now().Sub(started))
	if err != nil {
		s.metrics.IncFailure(opResume)
		return nil, err
	}
	s.metrics.IncSuccess(opResume)
	return result, nil
}

func (s *service) resume(ctx context.Context, input ResumeInput) (*ResumeResult, error) {
	if !input.PeriodKey.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid period %q", input.PeriodKey))
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	key := input.PeriodKey.String()
	if s.logg != nil {
		ctx = s.logg.WithPeriod(ctx, key)
	}

	run, err := s.repo.FindRun(ctx, key)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("period %s is not locked", key))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settlement run")
	}
	if run.CompletedAt != nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("period %s is already fully settled", key))
	}

	// Anything still confirmed in the period is the unfinished remainder of
	// the original lock. Totals stay as computed at lock time.
	orders, err := s.repo.CollectConfirmedOrders(ctx, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "collect confirmed orders")
	}

	now := s.now()
	var settledTotal int64
	orderIDs := make([]uuid.UUID, 0, len(orders))
	for _, order := range orders {
		orderIDs = append(orderIDs, order.ID)
	}

	for start := 0; start < len(orderIDs); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(orderIDs) {
			end = len(orderIDs)
		}
		chunk := orderIDs[start:end]
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			affected, err := s.settleChunk(ctx, s.repo.WithTx(tx), chunk, now)
			if err != nil {
				return err
			}
			settledTotal += affected
			return nil
		})
		if err != nil {
			s.metrics.AddOrdersSettled(int(settledTotal))
			return nil, s.partialCommit(ctx, key, err)
		}
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CompleteRun(ctx, key, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete settlement run")
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSettlementResumed,
			AggregateType: enums.AggregateSettlementRun,
			AggregateID:   key,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorID, Role: input.ActorRole},
			Data: SettlementResumedEvent{
				PeriodKey:     key,
				OrdersSettled: int(settledTotal),
			},
		})
	})
	if err != nil {
		s.metrics.AddOrdersSettled(int(settledTotal))
		return nil, s.partialCommit(ctx, key, err)
	}

	s.metrics.AddOrdersSettled(int(settledTotal))
	run.CompletedAt = &now
	if s.logg != nil {
		s.logg.Info(ctx, fmt.Sprintf("settlement resumed: %d orders settled", settledTotal))
	}
	return &ResumeResult{Run: run, OrdersSettled: int(settledTotal)}, nil
}

func (s *service) MarkPaid(ctx context.Context, input MarkPaidInput) (*models.GuideSettlement, error) {
	if !input.PeriodKey.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid period %q", input.PeriodKey))
	}
	if input.GuideID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guide id required")
	}
	if input.Method == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout method required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	key := input.PeriodKey.String()

	var row *models.GuideSettlement
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := repo.FindGuideRow(ctx, key, input.GuideID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound,
					fmt.Sprintf("no settlement for guide %s in period %s", input.GuideID, key))
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guide settlement")
		}

		now := s.now()
		// Re-marking is allowed; method, reference and timestamps are
		// overwritten each time.
		updates := map[string]any{
			"payout_status":    enums.PayoutStatusPaid,
			"payout_method":    input.Method,
			"payout_reference": nullableString(input.Reference),
			"paid_at":          now,
			"paid_by":          input.ActorID,
		}
		affected, err := repo.UpdateGuideRowPayout(ctx, key, input.GuideID, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payout paid")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("settlement row for guide %s was updated concurrently", input.GuideID))
		}

		current.PayoutStatus = enums.PayoutStatusPaid
		current.PayoutMethod = &input.Method
		current.PayoutReference = nullableString(input.Reference)
		current.PaidAt = &now
		current.PaidBy = &input.ActorID
		row = current

		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSettlementPayoutPaid,
			AggregateType: enums.AggregateGuideSettlement,
			AggregateID:   fmt.Sprintf("%s/%s", key, input.GuideID),
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorID, Role: input.ActorRole},
			Data: SettlementPayoutPaidEvent{
				PeriodKey: key,
				GuideID:   input.GuideID,
				Method:    input.Method,
				Reference: input.Reference,
				PaidAt:    now,
			},
		})
	})
	if err != nil {
		s.metrics.IncFailure(opMarkPaid)
		return nil, err
	}
	s.metrics.IncSuccess(opMarkPaid)
	return row, nil
}

func (s *service) GetRun(ctx context.Context, key period.Key) (*RunDetail, error) {
	if !key.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid period %q", key))
	}
	run, err := s.repo.FindRun(ctx, key.String())
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("period %s is not locked", key))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settlement run")
	}
	rows, err := s.repo.FindGuideRows(ctx, key.String())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guide settlements")
	}
	return &RunDetail{Run: run, Guides: rows}, nil
}

func (s *service) ListRuns(ctx context.Context, limit int) ([]models.SettlementRun, error) {
	runs, err := s.repo.ListRuns(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list settlement runs")
	}
	return runs, nil
}

func (s *service) GetGuideSettlement(ctx context.Context, key period.Key, guideID uuid.UUID) (*models.GuideSettlement, error) {
	if !key.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid period %q", key))
	}
	if guideID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guide id required")
	}
	row, err := s.repo.FindGuideRow(ctx, key.String(), guideID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound,
				fmt.Sprintf("no settlement for guide %s in period %s", guideID, key))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guide settlement")
	}
	return row, nil
}

func (s *service) ListGuideSettlements(ctx context.Context, guideID uuid.UUID, limit int) ([]models.GuideSettlement, error) {
	if guideID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guide id required")
	}
	rows, err := s.repo.ListGuideRowsForGuide(ctx, guideID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list guide settlements")
	}
	return rows, nil
}

// settleChunk flips a chunk of orders to settled together with their guide
// order mirrors and returns how many orders actually changed.
func (s *service) settleChunk(ctx context.Context, repo Repository, orderIDs []uuid.UUID, at time.Time) (int64, error) {
	if len(orderIDs) == 0 {
		return 0, nil
	}
	affected, err := repo.MarkOrdersSettled(ctx, orderIDs, at)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark orders settled")
	}
	if err := repo.MarkGuideOrdersSettled(ctx, orderIDs); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark guide orders settled")
	}
	return affected, nil
}

func (s *service) completeRun(ctx context.Context, repo Repository, tx *gorm.DB, run *models.SettlementRun, actorID uuid.UUID, actorRole string, at time.Time) error {
	if err := repo.CompleteRun(ctx, run.PeriodKey, at); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete settlement run")
	}
	return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSettlementLocked,
		AggregateType: enums.AggregateSettlementRun,
		AggregateID:   run.PeriodKey,
		Version:       1,
		Actor:         &outbox.ActorRef{UserID: actorID, Role: actorRole},
		Data: SettlementLockedEvent{
			PeriodKey:     run.PeriodKey,
			CommissionPct: run.CommissionPct,
			OrderCount:    run.OrderCount,
			GuideCount:    run.GuideCount,
			TotalGross:    run.TotalGross,
			TotalFee:      run.TotalFee,
			TotalNet:      run.TotalNet,
			LockedAt:      run.LockedAt,
		},
	})
}

func (s *service) partialCommit(ctx context.Context, key string, err error) error {
	if s.logg != nil {
		s.logg.Error(ctx, "settlement commit left partial; resume required", err)
	}
	return pkgerrors.Wrap(pkgerrors.CodePartialCommit, err,
		fmt.Sprintf("settlement for %s committed partially; resume the period to finish", key))
}

func (s *service) resolveCommissionPct(requested *int) (int, error) {
	pct := s.cfg.DefaultCommissionPct
	if requested != nil {
		pct = *requested
	}
	if pct < 0 || pct > 100 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("commission pct %d out of range", pct))
	}
	return pct, nil
}

func toOrderInputs(orders []models.Order) []OrderInput {
	inputs := make([]OrderInput, 0, len(orders))
	for _, order := range orders {
		inputs = append(inputs, OrderInput{
			OrderID:   order.ID,
			GuideID:   order.GuideID,
			TourTitle: order.TourTitle,
			Amount:    order.Amount,
		})
	}
	return inputs
}

func guideIDsOf(aggs []GuideAggregate) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(aggs))
	for _, agg := range aggs {
		ids = append(ids, agg.GuideID)
	}
	return ids
}

func nullableString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
