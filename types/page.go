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

// Package types holds the small value objects shared by the repository
// layer: raw query filters and pagination containers.
package types

// QueryFilter describes a WHERE clause fragment and its argument values.
type QueryFilter struct {
	Clause string
	Args   []interface{}
}

// NewQueryFilter creates a query filter from a clause and its args.
func NewQueryFilter(clause string, args ...interface{}) *QueryFilter {
	return &QueryFilter{clause, args}
}

// PageRequest describes a 1-based page, page size, optional filter, and
// ordering expressions such as "id ASC".
type PageRequest struct {
	page     int
	pageSize int
	filter   *QueryFilter
	orders   []string
}

func (p *PageRequest) Page() int {
	if p.page < 1 {
		p.page = 1
	}
	return p.page
}

func (p *PageRequest) PageSize() int {
	if p.pageSize < 1 {
		p.pageSize = 10
	}
	return p.pageSize
}

func (p *PageRequest) Offset() int {
	return (p.Page() - 1) * p.PageSize()
}

func (p *PageRequest) Filter() *QueryFilter { return p.filter }

func (p *PageRequest) Orders() []string { return p.orders }

// NewPageRequest constructs a PageRequest with filter and ordering.
func NewPageRequest(page, pageSize int, filter *QueryFilter, orders []string) *PageRequest {
	return &PageRequest{page, pageSize, filter, orders}
}

// NewDefaultPageRequest constructs a PageRequest with no filter or ordering.
func NewDefaultPageRequest(page, pageSize int) *PageRequest {
	return NewPageRequest(page, pageSize, nil, nil)
}

// Page holds one page of results along with pagination metadata.
type Page[T any] struct {
	Page     int
	PageSize int
	Total    int
	Items    []*T
}

// NewEmptyPage constructs a page container with no items.
func NewEmptyPage[T any](page, pageSize int) *Page[T] {
	return &Page[T]{Page: page, PageSize: pageSize, Items: make([]*T, 0)}
}

// TotalPages returns the number of pages implied by Total and PageSize.
func (p *Page[T]) TotalPages() int {
	if p.PageSize < 1 || p.Total < 1 {
		return 0
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}
