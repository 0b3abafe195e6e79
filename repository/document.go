/*
 * Copyright 2026 absnotary.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package repository

import (
	"context"
	"math"
	"time"

	"github.com/absnotary/absorm/database"
	"github.com/absnotary/absorm/model"
)

// UserDocumentsQuery narrows a per-user document listing. Zero values
// mean "no filter" for Status and Type and "no bound" for Limit/Offset.
type UserDocumentsQuery struct {
	Status model.DocStatus
	Type   model.DocType
	Limit  int
	Offset int
}

// OnChainProof carries the blockchain evidence recorded when a document
// is anchored.
type OnChainProof struct {
	TransactionHash    string
	SignedJSONPath     string
	SignedPDFPath      string
	ArweaveFileURL     string
	ArweaveMetadataURL string
	NFTTokenID         string
}

// DocumentStats summarizes the document table by status and type.
type DocumentStats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	OnChain    int `json:"on_chain"`
	Error      int `json:"error"`
	HashType   int `json:"hash_type"`
	NFTType    int `json:"nft_type"`
}

// DocumentRepository extends the generic repository with notarization
// pipeline queries.
type DocumentRepository struct {
	Repository[model.Document]
	uow    *database.UnitOfWork
	logger database.Logger
}

// NewDocumentRepository returns a document repository bound to the unit
// of work.
func NewDocumentRepository(uow *database.UnitOfWork) *DocumentRepository {
	return &DocumentRepository{
		Repository: NewRepository[model.Document](uow),
		uow:        uow,
		logger:     database.GetLogger(),
	}
}

// GetByFileHash returns the document with the given file hash, or nil
// when none exists.
func (r *DocumentRepository) GetByFileHash(ctx context.Context, fileHash string) (*model.Document, error) {
	doc, err := r.GetBy(ctx, "file_hash", fileHash)
	if err == nil && doc == nil {
		r.logger.Warn("document not found", "file_hash", fileHash)
	}
	return doc, err
}

// GetByTransactionHash returns the document anchored by the given
// transaction hash, or nil when none exists.
func (r *DocumentRepository) GetByTransactionHash(ctx context.Context, txHash string) (*model.Document, error) {
	return r.GetBy(ctx, "transaction_hash", txHash)
}

// UserDocuments lists a user's documents with optional status, type,
// and window filters.
func (r *DocumentRepository) UserDocuments(ctx context.Context, userID int64, q UserDocumentsQuery) ([]*model.Document, error) {
	var docs []*model.Document
	query := r.uow.DB().NewSelect().Model(&docs).Where("owner_id = ?", userID)
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.Type != "" {
		query = query.Where("type = ?", q.Type)
	}
	query = query.Order("id ASC")
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	} else if q.Offset > 0 {
		// SQLite rejects OFFSET without LIMIT.
		query = query.Limit(math.MaxInt32)
	}
	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}
	err := query.Scan(ctx)
	return docs, err
}

// ByStatus returns all documents in the given status.
func (r *DocumentRepository) ByStatus(ctx context.Context, status model.DocStatus) ([]*model.Document, error) {
	return r.FilterBy(ctx, Fields{"status": status})
}

// ByType returns all documents of the given type.
func (r *DocumentRepository) ByType(ctx context.Context, docType model.DocType) ([]*model.Document, error) {
	return r.FilterBy(ctx, Fields{"type": docType})
}

// PendingDocuments returns documents awaiting processing, optionally
// capped at limit.
func (r *DocumentRepository) PendingDocuments(ctx context.Context, limit int) ([]*model.Document, error) {
	var docs []*model.Document
	query := r.uow.DB().NewSelect().
		Model(&docs).
		Where("status = ?", model.DocStatusPending).
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Scan(ctx)
	return docs, err
}

// ProcessingDocuments returns documents currently being processed.
func (r *DocumentRepository) ProcessingDocuments(ctx context.Context) ([]*model.Document, error) {
	return r.ByStatus(ctx, model.DocStatusProcessing)
}

// ErrorDocuments returns documents that failed processing.
func (r *DocumentRepository) ErrorDocuments(ctx context.Context) ([]*model.Document, error) {
	return r.ByStatus(ctx, model.DocStatusError)
}

// UpdateStatus transitions the document and records an error message
// when the new status is error. It touches updated_at and returns the
// refreshed document, or nil when not found.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, documentID int64, status model.DocStatus, errorMessage string) (*model.Document, error) {
	fields := Fields{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if status == model.DocStatusError && errorMessage != "" {
		fields["error_message"] = errorMessage
		r.logger.Warn("document entered error state",
			"document_id", documentID, "error_message", errorMessage)
	}
	return r.Update(ctx, documentID, fields)
}

// MarkOnChain records the proof fields and moves the document to the
// on_chain status. It returns the refreshed document, or nil when not
// found.
func (r *DocumentRepository) MarkOnChain(ctx context.Context, documentID int64, proof OnChainProof) (*model.Document, error) {
	fields := Fields{
		"status":           model.DocStatusOnChain,
		"transaction_hash": proof.TransactionHash,
		"signed_json_path": proof.SignedJSONPath,
		"signed_pdf_path":  proof.SignedPDFPath,
		"updated_at":       time.Now().UTC(),
	}
	if proof.ArweaveFileURL != "" {
		fields["arweave_file_url"] = proof.ArweaveFileURL
	}
	if proof.ArweaveMetadataURL != "" {
		fields["arweave_metadata_url"] = proof.ArweaveMetadataURL
	}
	if proof.NFTTokenID != "" {
		fields["nft_token_id"] = proof.NFTTokenID
	}
	return r.Update(ctx, documentID, fields)
}

// FileHashExists reports whether a document with the given file hash
// exists.
func (r *DocumentRepository) FileHashExists(ctx context.Context, fileHash string) (bool, error) {
	return r.ExistsBy(ctx, Fields{"file_hash": fileHash})
}

// CountByStatus counts documents in the given status.
func (r *DocumentRepository) CountByStatus(ctx context.Context, status model.DocStatus) (int, error) {
	return r.Count(ctx, Fields{"status": status})
}

// CountUserDocuments counts a user's documents, optionally filtered by
// status.
func (r *DocumentRepository) CountUserDocuments(ctx context.Context, userID int64, status model.DocStatus) (int, error) {
	fields := Fields{"owner_id": userID}
	if status != "" {
		fields["status"] = status
	}
	return r.Count(ctx, fields)
}

// SearchByFileName returns documents whose file name contains the
// pattern, case-insensitively.
func (r *DocumentRepository) SearchByFileName(ctx context.Context, pattern string) ([]*model.Document, error) {
	return r.Query(ctx, "lower(file_name) LIKE lower(?)", "%"+pattern+"%")
}

// RecentDocuments returns documents created within the last N days.
func (r *DocumentRepository) RecentDocuments(ctx context.Context, days int) ([]*model.Document, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	return r.Query(ctx, "created_at >= ?", cutoff)
}

// Stats returns aggregate document counts by status and type.
func (r *DocumentRepository) Stats(ctx context.Context) (*DocumentStats, error) {
	stats := &DocumentStats{}
	var err error
	if stats.Total, err = r.Count(ctx, nil); err != nil {
		return nil, err
	}
	if stats.Pending, err = r.CountByStatus(ctx, model.DocStatusPending); err != nil {
		return nil, err
	}
	if stats.Processing, err = r.CountByStatus(ctx, model.DocStatusProcessing); err != nil {
		return nil, err
	}
	if stats.OnChain, err = r.CountByStatus(ctx, model.DocStatusOnChain); err != nil {
		return nil, err
	}
	if stats.Error, err = r.CountByStatus(ctx, model.DocStatusError); err != nil {
		return nil, err
	}
	if stats.HashType, err = r.Count(ctx, Fields{"type": model.DocTypeHash}); err != nil {
		return nil, err
	}
	if stats.NFTType, err = r.Count(ctx, Fields{"type": model.DocTypeNFT}); err != nil {
		return nil, err
	}
	return stats, nil
}
