// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stacklok/vtn-core/pkg/auth"
	"github.com/stacklok/vtn-core/pkg/domain"
	domainerrors "github.com/stacklok/vtn-core/pkg/errors"
	"github.com/stacklok/vtn-core/pkg/policy"
	"github.com/stacklok/vtn-core/pkg/store"
)

// ReportService implements report.list/get/create/update/delete.
type ReportService struct {
	reports  store.ReportRepository
	programs store.ProgramRepository
	vens     store.VENRepository
}

// NewReportService constructs a ReportService over its repositories.
// vens backs the VEN-caller client_name resolution described on
// auth.Caller.VENNames; it is consulted only for callers of Kind VEN.
func NewReportService(reports store.ReportRepository, programs store.ProgramRepository, vens store.VENRepository) *ReportService {
	return &ReportService{reports: reports, programs: programs, vens: vens}
}

// resolveCaller loads the authenticated Caller and, for a VEN caller,
// resolves its VENIDs to VENNames so report visibility and write checks
// can match against client_name (the Open Question resolution recorded
// in DESIGN.md: report visibility is client_name-matched, not
// ven_id-backfilled).
func (s *ReportService) resolveCaller(ctx context.Context) (*auth.Caller, error) {
	caller, err := callerOrUnauthenticated(ctx)
	if err != nil {
		return nil, err
	}
	if caller.Kind != auth.KindVEN || len(caller.VENIDs) == 0 {
		return caller, nil
	}

	ids := make([]string, 0, len(caller.VENIDs))
	for id := range caller.VENIDs {
		ids = append(ids, id)
	}
	names, err := s.vens.NamesForIDs(ctx, ids)
	if err != nil {
		return nil, domainerrors.Internal("resolving ven names", err)
	}
	return caller.WithVENNames(names), nil
}

// List returns the reports the caller may see under optional
// programID/eventID/clientName restrictions, windowed by page.
func (s *ReportService) List(ctx context.Context, programID, eventID, clientName *string, page domain.Pagination) ([]domain.Report, int, error) {
	caller, err := s.resolveCaller(ctx)
	if err != nil {
		return nil, 0, err
	}
	if err := page.Validate(); err != nil {
		return nil, 0, domainerrors.InvalidRequest(err.Error(), err)
	}

	vis := policy.ReportRead(caller)
	items, total, err := s.reports.List(ctx, vis, programID, eventID, clientName, page)
	if err != nil {
		return nil, 0, domainerrors.Internal("listing reports", err)
	}
	return items, total, nil
}

// Get returns a single report, or NotFound if it does not exist or is
// not visible to the caller.
func (s *ReportService) Get(ctx context.Context, id string) (domain.Report, error) {
	caller, err := s.resolveCaller(ctx)
	if err != nil {
		return domain.Report{}, err
	}

	vis := policy.ReportRead(caller)
	r, err := s.reports.Get(ctx, vis, id)
	if err == store.ErrNotFound {
		return domain.Report{}, domainerrors.NotFound("report not found", err)
	}
	if err != nil {
		return domain.Report{}, domainerrors.Internal("getting report", err)
	}
	return r, nil
}

// Create authorizes against the parent program and client_name and
// inserts a new report.
func (s *ReportService) Create(ctx context.Context, r domain.Report) (domain.Report, error) {
	caller, err := s.resolveCaller(ctx)
	if err != nil {
		return domain.Report{}, err
	}

	program, err := s.programs.Get(ctx, policy.ProgramVisibility{AllowAll: true}, r.ProgramID)
	if err == store.ErrNotFound {
		return domain.Report{}, domainerrors.InvalidRequest("programID does not exist", err)
	}
	if err != nil {
		return domain.Report{}, domainerrors.Internal("getting parent program", err)
	}
	if !policy.ReportWriteAllowed(caller, r.ClientName, program.BusinessID) {
		return domain.Report{}, domainerrors.Forbidden("not authorized to create this report", nil)
	}

	now := time.Now().UTC()
	r.ID = uuid.NewString()
	r.CreatedDateTime = now
	r.ModificationDateTime = now

	created, err := s.reports.Create(ctx, r)
	if err != nil {
		return domain.Report{}, domainerrors.Internal("creating report", err)
	}
	return created, nil
}

// Update authorizes against the parent program and client_name and
// overwrites the report.
func (s *ReportService) Update(ctx context.Context, r domain.Report) (domain.Report, error) {
	caller, err := s.resolveCaller(ctx)
	if err != nil {
		return domain.Report{}, err
	}

	existing, err := s.reports.Get(ctx, policy.ReportVisibility{AllowAll: true}, r.ID)
	if err == store.ErrNotFound {
		return domain.Report{}, domainerrors.NotFound("report not found", err)
	}
	if err != nil {
		return domain.Report{}, domainerrors.Internal("getting report", err)
	}

	program, err := s.programs.Get(ctx, policy.ProgramVisibility{AllowAll: true}, existing.ProgramID)
	if err != nil {
		return domain.Report{}, domainerrors.Internal("getting parent program", err)
	}
	if !policy.ReportWriteAllowed(caller, r.ClientName, program.BusinessID) {
		return domain.Report{}, domainerrors.Forbidden("not authorized to update this report", nil)
	}

	r.CreatedDateTime = existing.CreatedDateTime
	r.ModificationDateTime = time.Now().UTC()

	updated, err := s.reports.Update(ctx, r)
	if err == store.ErrNotFound {
		return domain.Report{}, domainerrors.NotFound("report not found", err)
	}
	if err != nil {
		return domain.Report{}, domainerrors.Internal("updating report", err)
	}
	return updated, nil
}

// Delete authorizes against the parent program and client_name and
// removes the report.
func (s *ReportService) Delete(ctx context.Context, id string) error {
	caller, err := s.resolveCaller(ctx)
	if err != nil {
		return err
	}

	existing, err := s.reports.Get(ctx, policy.ReportVisibility{AllowAll: true}, id)
	if err == store.ErrNotFound {
		return domainerrors.NotFound("report not found", err)
	}
	if err != nil {
		return domainerrors.Internal("getting report", err)
	}

	program, err := s.programs.Get(ctx, policy.ProgramVisibility{AllowAll: true}, existing.ProgramID)
	if err != nil {
		return domainerrors.Internal("getting parent program", err)
	}
	if !policy.ReportWriteAllowed(caller, existing.ClientName, program.BusinessID) {
		return domainerrors.Forbidden("not authorized to delete this report", nil)
	}

	vis := policy.ReportRead(caller)
	if err := s.reports.Delete(ctx, vis, id); err != nil {
		if err == store.ErrNotFound {
			return domainerrors.NotFound("report not found", err)
		}
		return domainerrors.Internal("deleting report", err)
	}
	return nil
}
