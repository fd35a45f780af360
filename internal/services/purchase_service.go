package services

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/klture/creditwallet/internal/audit"
	"github.com/klture/creditwallet/internal/models"
	"github.com/klture/creditwallet/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

const paidViaWallet = "Paid via Credit Wallet"

var transitions = map[models.PurchaseState][]models.PurchaseState{
	models.StateReceived:       {models.StateBalanceChecked, models.StateCommitted, models.StateRejected},
	models.StateBalanceChecked: {models.StateCommitted, models.StateRejected},
}

// PurchaseCoordinator is the only path that turns a purchase request into
// ledger, sale and registration writes.
type PurchaseCoordinator struct {
	store      repository.Store
	catalog    Catalog
	balances   *BalanceService
	validation *ValidationHelper
	audit      *audit.Logger
	logger     *zap.Logger
	newID      func() string
}

func NewPurchaseCoordinator(store repository.Store, catalog Catalog, balances *BalanceService, auditLogger *audit.Logger, logger *zap.Logger) *PurchaseCoordinator {
	return &PurchaseCoordinator{
		store:      store,
		catalog:    catalog,
		balances:   balances,
		validation: NewValidationHelper(),
		audit:      auditLogger,
		logger:     logger,
		newID:      uuid.NewString,
	}
}

// purchaseRun tracks one request through the state machine.
type purchaseRun struct {
	req     models.PurchaseRequest
	state   models.PurchaseState
	result  models.PurchaseResult
	program *models.Program
	logger  *zap.Logger
}

func (r *purchaseRun) advance(to models.PurchaseState) {
	for _, next := range transitions[r.state] {
		if next == to {
			r.logger.Debug("purchase transition",
				zap.String("from", string(r.state)), zap.String("to", string(to)))
			r.state = to
			r.result.Status = to
			return
		}
	}
	panic(fmt.Sprintf("illegal purchase transition %s -> %s", r.state, to))
}

func (r *purchaseRun) reject(reason error, balance decimal.Decimal) {
	r.advance(models.StateRejected)
	r.result.Reason = reason
	r.result.Balance = balance
}

// SubmitPurchase runs a request to Committed or Rejected. Business and
// validation failures come back as a Rejected result with a typed Reason.
// A non-nil error means the outcome is unknown (storage unavailable or the
// caller gave up) and the request may be retried with the same idempotency key.
func (c *PurchaseCoordinator) SubmitPurchase(ctx context.Context, req models.PurchaseRequest) (*models.PurchaseResult, error) {
	req.ProgramTitle = normalizeTitle(req.ProgramTitle)
	run := &purchaseRun{
		req:   req,
		state: models.StateReceived,
		logger: c.logger.With(
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.String("account_id", req.AccountID),
			zap.String("program", req.ProgramTitle)),
	}
	run.result.Status = models.StateReceived

	if err := c.validate(req); err != nil {
		run.reject(err, decimal.Zero)
		c.audit.LogRejected(req.IdempotencyKey, req.AccountID, err)
		return &run.result, nil
	}

	// A committed key always matches the quoted request, so the fingerprint
	// is taken from the request and a replay never depends on today's catalog.
	fingerprint := purchaseFingerprint(req.AccountID, req.ProgramTitle, req.Price)

	// A duplicate key here means another request committed the same key
	// between our lookup and insert; the second pass sees its record.
	var err error
	for attempt := 0; ; attempt++ {
		run.state = models.StateReceived
		run.result = models.PurchaseResult{Status: models.StateReceived}

		err = c.store.WithAccount(ctx, req.AccountID, func(tx repository.AccountTx) error {
			return c.commit(ctx, tx, run, fingerprint)
		})
		if errors.Is(err, repository.ErrDuplicateKey) && attempt == 0 {
			continue
		}
		break
	}

	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		run.state = models.StateReceived
		run.reject(verr, decimal.Zero)
		c.audit.LogRejected(req.IdempotencyKey, req.AccountID, verr)
		return &run.result, nil
	case err != nil:
		run.logger.Error("purchase not committed", zap.Error(err))
		c.audit.LogError(req.IdempotencyKey, req.AccountID, err)
		return nil, err
	}

	switch run.state {
	case models.StateCommitted:
		if !run.result.Replayed {
			c.balances.Invalidate(ctx, req.AccountID)
			c.audit.LogPurchase(req.IdempotencyKey, req.AccountID, run.program.Title, run.program.Price, "COMMITTED")
		}
		run.logger.Info("purchase committed",
			zap.Bool("replayed", run.result.Replayed),
			zap.String("entry_id", run.result.EntryID),
			zap.String("balance", run.result.Balance.StringFixed(2)))
	case models.StateRejected:
		c.audit.LogRejected(req.IdempotencyKey, req.AccountID, run.result.Reason)
		run.logger.Info("purchase rejected", zap.Error(run.result.Reason))
	}

	return &run.result, nil
}

// validate checks the request shape. It needs no store or catalog access.
func (c *PurchaseCoordinator) validate(req models.PurchaseRequest) *ValidationError {
	if req.Price.IsNegative() {
		return invalid("price", "must not be negative")
	}
	if err := c.validation.ValidateStruct(req); err != nil {
		var verr *ValidationError
		errors.As(toValidationError(err), &verr)
		return verr
	}
	return nil
}

// priceProgram resolves the program and requires the quoted price to match the catalog.
func (c *PurchaseCoordinator) priceProgram(ctx context.Context, req models.PurchaseRequest) (*models.Program, error) {
	program, err := c.catalog.Lookup(ctx, req.ProgramTitle)
	if err != nil {
		return nil, err
	}
	if !req.Price.Equal(program.Price) {
		return nil, invalid("price", "price changed: quoted %s, current %s",
			req.Price.StringFixed(2), program.Price.StringFixed(2))
	}
	return program, nil
}

// commit runs under the account lock. A stored record for the key is replayed
// before the catalog is consulted; only new keys are priced.
func (c *PurchaseCoordinator) commit(ctx context.Context, tx repository.AccountTx, run *purchaseRun, fingerprint string) error {
	req := run.req

	prior, err := tx.PurchaseByKey(ctx, req.IdempotencyKey)
	switch {
	case err == nil:
		if prior.Fingerprint != fingerprint {
			return invalid("idempotency_key", "idempotency key reused for a different request")
		}
		balance, err := tx.Balance(ctx)
		if err != nil {
			return err
		}
		run.advance(models.StateCommitted)
		run.result.Replayed = true
		run.result.Balance = balance
		run.result.EntryID = prior.EntryID
		run.result.SaleID = prior.SaleID
		run.result.RegistrationID = prior.RegistrationID
		return nil
	case !errors.Is(err, repository.ErrNotFound):
		return err
	}

	program, err := c.priceProgram(ctx, req)
	if err != nil {
		return err
	}
	run.program = program

	balance, err := tx.Balance(ctx)
	if err != nil {
		return err
	}

	if program.Price.IsZero() {
		return c.enrollFree(ctx, tx, run, program, fingerprint, balance)
	}

	run.advance(models.StateBalanceChecked)
	if balance.LessThan(program.Price) {
		run.reject(&InsufficientFundsError{Required: program.Price, Available: balance}, balance)
		return nil
	}

	saleID := c.newID()
	entry := models.LedgerEntry{
		EntryID:   c.newID(),
		AccountID: req.AccountID,
		Kind:      models.EntrySpend,
		Amount:    program.Price.Neg(),
		Reference: saleID,
		Note:      "Payment for " + program.Title,
	}
	entryID, dup, err := appendEntry(ctx, tx, &entry, PurchaseKeyPrefix+req.IdempotencyKey)
	if err != nil {
		return err
	}
	if dup {
		return fmt.Errorf("%w: spend entry %s has no purchase record", ErrInconsistent, entryID)
	}

	sale := models.SaleRecord{
		SaleID:       saleID,
		AccountID:    req.AccountID,
		EntryID:      entryID,
		ProgramTitle: program.Title,
		Category:     program.Category,
		Amount:       program.Price,
		Note:         paidViaWallet,
	}
	if err := tx.InsertSale(ctx, &sale); err != nil {
		return err
	}

	reg, err := c.register(ctx, tx, req, program)
	if err != nil {
		return err
	}

	err = tx.InsertPurchase(ctx, &models.PurchaseRecord{
		IdempotencyKey: req.IdempotencyKey,
		AccountID:      req.AccountID,
		Fingerprint:    fingerprint,
		EntryID:        entryID,
		SaleID:         saleID,
		RegistrationID: reg.RegistrationID,
		Price:          program.Price,
	})
	if err != nil {
		return err
	}

	run.advance(models.StateCommitted)
	run.result.Balance = balance.Sub(program.Price)
	run.result.EntryID = entryID
	run.result.SaleID = saleID
	run.result.RegistrationID = reg.RegistrationID
	return nil
}

// enrollFree registers the account in a zero-priced program. Enrolling twice
// returns the first registration.
func (c *PurchaseCoordinator) enrollFree(ctx context.Context, tx repository.AccountTx, run *purchaseRun, program *models.Program, fingerprint string, balance decimal.Decimal) error {
	existing, err := tx.FindRegistration(ctx, program.Title)
	switch {
	case err == nil:
		run.advance(models.StateCommitted)
		run.result.Replayed = true
		run.result.Balance = balance
		run.result.RegistrationID = existing.RegistrationID
		return nil
	case !errors.Is(err, repository.ErrNotFound):
		return err
	}

	reg, err := c.register(ctx, tx, run.req, program)
	if err != nil {
		return err
	}
	err = tx.InsertPurchase(ctx, &models.PurchaseRecord{
		IdempotencyKey: run.req.IdempotencyKey,
		AccountID:      run.req.AccountID,
		Fingerprint:    fingerprint,
		RegistrationID: reg.RegistrationID,
		Price:          decimal.Zero,
	})
	if err != nil {
		return err
	}

	run.advance(models.StateCommitted)
	run.result.Balance = balance
	run.result.RegistrationID = reg.RegistrationID
	return nil
}

func (c *PurchaseCoordinator) register(ctx context.Context, tx repository.AccountTx, req models.PurchaseRequest, program *models.Program) (*models.Registration, error) {
	reg := &models.Registration{
		RegistrationID: c.newID(),
		AccountID:      req.AccountID,
		ProgramTitle:   program.Title,
		Category:       program.Category,
		PreferredDate:  req.PreferredDate,
		Message:        req.Message,
	}
	if err := tx.InsertRegistration(ctx, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// purchaseFingerprint identifies what a key was first used for.
func purchaseFingerprint(accountID, title string, price decimal.Decimal) string {
	sum := blake2b.Sum256([]byte(accountID + "\x00" + title + "\x00" + price.StringFixed(2)))
	return hex.EncodeToString(sum[:])
}
