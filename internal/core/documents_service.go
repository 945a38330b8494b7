package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/erp-dms/dms-assistant/internal/catalog"
	"github.com/erp-dms/dms-assistant/internal/documents"
	"github.com/erp-dms/dms-assistant/internal/rpc"
)

// DocumentsService backs the document list and dashboard screens. Unlike
// AnalysisService it keeps no state: failures are logged and returned.
type DocumentsService struct {
	docs *documents.Service
	log  *zap.Logger
}

func NewDocumentsService(docs *documents.Service, log *zap.Logger) *DocumentsService {
	if log == nil {
		log = zap.NewNop()
	}
	return &DocumentsService{docs: docs, log: log.With(zap.String("module", "documents"))}
}

func (s *DocumentsService) FetchDocsMaster(ctx context.Context, userName string) ([]rpc.Row, error) {
	rows, err := s.docs.DocMasterList(ctx, userName)
	if err != nil {
		s.log.Error("fetch document list failed", zap.String("user", userName), zap.Error(err))
		return nil, fmt.Errorf("failed to fetch documents: %w", err)
	}
	return rows, nil
}

// Document returns the master row and its values, or ErrDocumentNotFound.
func (s *DocumentsService) Document(ctx context.Context, refSeqNo int64) (*documents.Document, []documents.DocumentValue, error) {
	doc, err := s.docs.Master(ctx, refSeqNo)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch document %d: %w", refSeqNo, err)
	}
	if doc == nil {
		return nil, nil, ErrDocumentNotFound
	}
	values, err := s.docs.Values(ctx, refSeqNo)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch values of document %d: %w", refSeqNo, err)
	}
	return doc, values, nil
}

func (s *DocumentsService) DeleteDocument(ctx context.Context, userName string, refSeqNo int64) (string, error) {
	if refSeqNo <= 0 {
		return "", fmt.Errorf("%w: invalid document number %d", ErrValidation, refSeqNo)
	}
	msg, err := s.docs.DeleteMaster(ctx, userName, refSeqNo)
	if err != nil {
		s.log.Error("delete document failed", zap.Int64("refSeqNo", refSeqNo), zap.Error(err))
		return "", fmt.Errorf("failed to delete document %d: %w", refSeqNo, err)
	}
	s.log.Info("document deleted", zap.String("user", userName), zap.Int64("refSeqNo", refSeqNo))
	return msg, nil
}

func (s *DocumentsService) Dashboard(ctx context.Context, userName string) ([]rpc.Row, error) {
	rows, err := s.docs.DashboardSummary(ctx, userName)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dashboard: %w", err)
	}
	return rows, nil
}

func (s *DocumentsService) CategoryBreakdown(ctx context.Context, userName string) ([]documents.CategoryCount, error) {
	counts, err := s.docs.CategoryCounts(ctx, userName)
	if err != nil {
		s.log.Error("fetch category breakdown failed", zap.String("user", userName), zap.Error(err))
		return nil, fmt.Errorf("failed to fetch category breakdown: %w", err)
	}
	return counts, nil
}

func (s *DocumentsService) AllowedCategories(ctx context.Context, userName string) ([]catalog.Category, error) {
	cats, err := s.docs.AllowedCategories(ctx, userName)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch allowed categories: %w", err)
	}
	return cats, nil
}
