package services

import (
	"context"

	"github.com/klture/creditwallet/internal/audit"
	"github.com/klture/creditwallet/internal/repository"
	"go.uber.org/zap"
)

// ReconciliationService checks that every spend entry has exactly one matching
// sale record. Findings are reported, never repaired.
type ReconciliationService struct {
	store  repository.Store
	audit  *audit.Logger
	logger *zap.Logger
}

func NewReconciliationService(store repository.Store, auditLogger *audit.Logger, logger *zap.Logger) *ReconciliationService {
	return &ReconciliationService{store: store, audit: auditLogger, logger: logger}
}

// Audit returns *InconsistencyError when any pair fails to line up.
func (s *ReconciliationService) Audit(ctx context.Context) error {
	findings, err := s.store.FindMismatches(ctx)
	if err != nil {
		return err
	}
	if len(findings) == 0 {
		s.logger.Info("reconciliation clean")
		return nil
	}

	for _, f := range findings {
		s.logger.Error("ledger and sales disagree",
			zap.String("kind", string(f.Kind)),
			zap.String("account_id", f.AccountID),
			zap.String("entry_id", f.EntryID),
			zap.String("sale_id", f.SaleID))
		s.audit.LogInconsistency(string(f.Kind), f.EntryID, f.SaleID, f.AccountID)
	}

	return &InconsistencyError{Findings: findings}
}
