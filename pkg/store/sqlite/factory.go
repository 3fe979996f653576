// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"

	"github.com/stacklok/vtn-core/pkg/store"
)

// Stores bundles every repository over a single open database, the way
// a caller typically wants to construct them together at startup.
type Stores struct {
	DB          *DB
	Programs    *ProgramStore
	Events      *EventStore
	Reports     *ReportStore
	VENs        *VENStore
	Resources   *ResourceStore
	Users       *UserStore
	Credentials *CredentialStore
	Bindings    *BindingStore
}

// OpenStores opens dbPath and wires every repository over it.
func OpenStores(ctx context.Context, dbPath string) (*Stores, error) {
	db, err := Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	return &Stores{
		DB:          db,
		Programs:    NewProgramStore(db),
		Events:      NewEventStore(db),
		Reports:     NewReportStore(db),
		VENs:        NewVENStore(db),
		Resources:   NewResourceStore(db),
		Users:       NewUserStore(db),
		Credentials: NewCredentialStore(db),
		Bindings:    NewBindingStore(db),
	}, nil
}

// Close releases the underlying database.
func (s *Stores) Close() error {
	return s.DB.Close()
}

var (
	_ store.ProgramRepository           = (*ProgramStore)(nil)
	_ store.EventRepository             = (*EventStore)(nil)
	_ store.ReportRepository            = (*ReportStore)(nil)
	_ store.VENRepository               = (*VENStore)(nil)
	_ store.ResourceRepository          = (*ResourceStore)(nil)
	_ store.UserRepository              = (*UserStore)(nil)
	_ store.CredentialRepository        = (*CredentialStore)(nil)
	_ store.VENProgramBindingRepository = (*BindingStore)(nil)
)
