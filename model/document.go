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

package model

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/absnotary/absorm/database"
)

// DocStatus tracks a document through the notarization pipeline.
type DocStatus string

const (
	DocStatusPending    DocStatus = "pending"
	DocStatusProcessing DocStatus = "processing"
	DocStatusOnChain    DocStatus = "on_chain"
	DocStatusError      DocStatus = "error"
)

// DocType selects the notarization product: a bare hash anchor or a
// minted NFT.
type DocType string

const (
	DocTypeHash DocType = "hash"
	DocTypeNFT  DocType = "nft"
)

// Document is a file registered for on-chain notarization.
type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	ID                 int64     `bun:"id,pk,autoincrement" json:"id"`
	FileName           string    `bun:"file_name,notnull" json:"file_name"`
	FileHash           string    `bun:"file_hash,notnull,unique" json:"file_hash"`
	FilePath           string    `bun:"file_path,notnull" json:"file_path"`
	Status             DocStatus `bun:"status,nullzero,notnull,default:'pending'" json:"status"`
	Type               DocType   `bun:"type,nullzero,notnull,default:'hash'" json:"type"`
	TransactionHash    string    `bun:"transaction_hash,unique,nullzero" json:"transaction_hash,omitempty"`
	ArweaveFileURL     string    `bun:"arweave_file_url,nullzero" json:"arweave_file_url,omitempty"`
	ArweaveMetadataURL string    `bun:"arweave_metadata_url,nullzero" json:"arweave_metadata_url,omitempty"`
	NFTTokenID         string    `bun:"nft_token_id,nullzero" json:"nft_token_id,omitempty"`
	SignedJSONPath     string    `bun:"signed_json_path,nullzero" json:"signed_json_path,omitempty"`
	SignedPDFPath      string    `bun:"signed_pdf_path,nullzero" json:"signed_pdf_path,omitempty"`
	ErrorMessage       string    `bun:"error_message,nullzero" json:"error_message,omitempty"`
	CreatedAt          time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt          time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
	OwnerID            int64     `bun:"owner_id,notnull" json:"owner_id"`

	Owner *User `bun:"rel:belongs-to,join:owner_id=id" json:"-"`
}

func (d *Document) String() string {
	return fmt.Sprintf("Document(id=%d, file=%s, status=%s)", d.ID, d.FileName, d.Status)
}

func init() {
	database.RegisterModel((*Document)(nil), 20)
}
