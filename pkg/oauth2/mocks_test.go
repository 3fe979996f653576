// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth2

import (
	"context"
	"reflect"

	"go.uber.org/mock/gomock"

	"github.com/stacklok/vtn-core/pkg/domain"
)

// MockCredentialLookup is a gomock-style double for CredentialLookup,
// used where a test needs to assert Grant calls it with particular
// arguments rather than just returning canned data.
type MockCredentialLookup struct {
	ctrl     *gomock.Controller
	recorder *MockCredentialLookupRecorder
}

type MockCredentialLookupRecorder struct {
	mock *MockCredentialLookup
}

func NewMockCredentialLookup(ctrl *gomock.Controller) *MockCredentialLookup {
	m := &MockCredentialLookup{ctrl: ctrl}
	m.recorder = &MockCredentialLookupRecorder{m}
	return m
}

func (m *MockCredentialLookup) EXPECT() *MockCredentialLookupRecorder {
	return m.recorder
}

func (m *MockCredentialLookup) GetByClientID(ctx context.Context, clientID string) (domain.Credential, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByClientID", ctx, clientID)
	cred, _ := ret[0].(domain.Credential)
	err, _ := ret[1].(error)
	return cred, err
}

func (mr *MockCredentialLookupRecorder) GetByClientID(ctx, clientID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByClientID", reflect.TypeOf((*MockCredentialLookup)(nil).GetByClientID), ctx, clientID)
}

// MockUserLookup is a gomock-style double for UserLookup.
type MockUserLookup struct {
	ctrl     *gomock.Controller
	recorder *MockUserLookupRecorder
}

type MockUserLookupRecorder struct {
	mock *MockUserLookup
}

func NewMockUserLookup(ctrl *gomock.Controller) *MockUserLookup {
	m := &MockUserLookup{ctrl: ctrl}
	m.recorder = &MockUserLookupRecorder{m}
	return m
}

func (m *MockUserLookup) EXPECT() *MockUserLookupRecorder {
	return m.recorder
}

func (m *MockUserLookup) Get(ctx context.Context, id string) (domain.User, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Get", ctx, id)
	user, _ := ret[0].(domain.User)
	err, _ := ret[1].(error)
	return user, err
}

func (mr *MockUserLookupRecorder) Get(ctx, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Get", reflect.TypeOf((*MockUserLookup)(nil).Get), ctx, id)
}
